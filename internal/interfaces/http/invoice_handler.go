package http

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// InvoiceService casos de uso de la NFS-e consumidos por el handler.
type InvoiceService interface {
	Create(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error)
	Get(ctx context.Context, provider entity.Provider, ref string) (*entity.Invoice, error)
	ReplaceLineItems(ctx context.Context, provider entity.Provider, ref string, items []entity.LineItem) (*entity.Invoice, error)
	Delete(ctx context.Context, provider entity.Provider, ref string) error
	Send(ctx context.Context, provider entity.Provider, ref string) (*entity.Invoice, error)
	Query(ctx context.Context, provider entity.Provider, ref string) (*entity.Invoice, error)
	Cancel(ctx context.Context, provider entity.Provider, ref, justification string) (*entity.Invoice, error)
	ResendEmail(ctx context.Context, provider entity.Provider, ref string, emails []string) error
	Artifact(ctx context.Context, provider entity.Provider, ref string, kind appnfse.ArtifactKind) ([]byte, error)
}

// RPSPrinter espelho del RPS.
type RPSPrinter interface {
	Print(ctx context.Context, provider entity.Provider, ref string) ([]byte, string, error)
}

// InvoiceHandler maneja las peticiones HTTP de NFS-e (protegido).
type InvoiceHandler struct {
	svc     InvoiceService
	printer RPSPrinter
}

// NewInvoiceHandler construye el handler. printer puede ser nil (sin espelho).
func NewInvoiceHandler(svc InvoiceService, printer RPSPrinter) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, printer: printer}
}

// Create registra la nota en borrador.
// POST /api/invoices
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	inv, err := h.svc.Create(c.UserContext(), in.ToEntity())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromInvoice(inv))
}

// Get detalle de la nota con su bitácora.
// GET /api/invoices/:provider/:ref
func (h *InvoiceHandler) Get(c *fiber.Ctx) error {
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	inv, err := h.svc.Get(c.UserContext(), provider, ref)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInvoice(inv))
}

// ReplaceItems reemplaza las líneas de servicio del borrador.
// PUT /api/invoices/:provider/:ref/items
func (h *InvoiceHandler) ReplaceItems(c *fiber.Ctx) error {
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	var in dto.ReplaceItemsRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	inv, err := h.svc.ReplaceLineItems(c.UserContext(), provider, ref, dto.LineItemsToEntity(in.Items))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInvoice(inv))
}

// Delete elimina un borrador o una nota con error.
// DELETE /api/invoices/:provider/:ref
func (h *InvoiceHandler) Delete(c *fiber.Ctx) error {
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.svc.Delete(c.UserContext(), provider, ref); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Send transmite la nota al proveedor.
// POST /api/invoices/:provider/:ref/send
func (h *InvoiceHandler) Send(c *fiber.Ctx) error {
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	inv, err := h.svc.Send(c.UserContext(), provider, ref)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.FromInvoice(inv))
}

// Query consulta el estado en el proveedor.
// POST /api/invoices/:provider/:ref/query
func (h *InvoiceHandler) Query(c *fiber.Ctx) error {
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	inv, err := h.svc.Query(c.UserContext(), provider, ref)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInvoice(inv))
}

// Cancel solicita la cancelación de una nota autorizada.
// POST /api/invoices/:provider/:ref/cancel
func (h *InvoiceHandler) Cancel(c *fiber.Ctx) error {
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	var in dto.CancelRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	inv, err := h.svc.Cancel(c.UserContext(), provider, ref, in.Justification)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInvoice(inv))
}

// ResendEmail reenvía la nota autorizada por e-mail.
// POST /api/invoices/:provider/:ref/email
func (h *InvoiceHandler) ResendEmail(c *fiber.Ctx) error {
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	var in dto.ResendEmailRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.svc.ResendEmail(c.UserContext(), provider, ref, in.Emails); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// PDF DANFSE de la nota autorizada.
// GET /api/invoices/:provider/:ref/pdf
func (h *InvoiceHandler) PDF(c *fiber.Ctx) error {
	return h.artifact(c, appnfse.ArtifactPDF)
}

// XML XML autorizado de la nota.
// GET /api/invoices/:provider/:ref/xml
func (h *InvoiceHandler) XML(c *fiber.Ctx) error {
	return h.artifact(c, appnfse.ArtifactXML)
}

func (h *InvoiceHandler) artifact(c *fiber.Ctx, kind appnfse.ArtifactKind) error {
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	data, err := h.svc.Artifact(c.UserContext(), provider, ref, kind)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, kind.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="nfse-%s.%s"`, ref, kind))
	return c.Send(data)
}

// Espelho PDF del RPS sin valor fiscal.
// GET /api/invoices/:provider/:ref/espelho.pdf
func (h *InvoiceHandler) Espelho(c *fiber.Ctx) error {
	if h.printer == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_CONFIGURED", Message: "espelho no disponible"})
	}
	provider, ref, err := keyParams(c)
	if err != nil {
		return writeError(c, err)
	}
	data, filename, err := h.printer.Print(c.UserContext(), provider, ref)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, filename))
	return c.Send(data)
}

// keyParams lee :provider y :ref de la ruta.
func keyParams(c *fiber.Ctx) (entity.Provider, string, error) {
	provider := entity.Provider(strings.ToLower(strings.TrimSpace(c.Params("provider"))))
	ref := strings.TrimSpace(c.Params("ref"))
	if !provider.Valid() {
		return "", "", fmt.Errorf("%w: %s", domain.ErrUnknownProvider, provider)
	}
	if ref == "" {
		return "", "", domain.NewValidationError("ref", "requerido")
	}
	return provider, ref, nil
}
