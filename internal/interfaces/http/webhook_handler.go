package http

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// HeaderWebhookSecret header con el secreto compartido del gatillo.
const HeaderWebhookSecret = "X-Webhook-Secret"

// StatusApplier aplica eventos asíncronos del proveedor.
type StatusApplier interface {
	ApplyStatusUpdate(ctx context.Context, u appnfse.StatusUpdate) (*entity.Invoice, error)
}

// WebhookHandler recibe los gatillos de Focus NFSe y PlugNotas (público, autenticado por secreto).
type WebhookHandler struct {
	svc     StatusApplier
	secrets map[entity.Provider]string
}

// NewWebhookHandler construye el handler con el secreto de cada proveedor.
func NewWebhookHandler(svc StatusApplier, focusSecret, plugNotasSecret string) *WebhookHandler {
	return &WebhookHandler{
		svc: svc,
		secrets: map[entity.Provider]string{
			entity.ProviderFocusNFe:  focusSecret,
			entity.ProviderPlugNotas: plugNotasSecret,
		},
	}
}

// Enabled indica si el proveedor tiene secreto configurado.
func (h *WebhookHandler) Enabled(p entity.Provider) bool {
	return h.secrets[p] != ""
}

// Focus POST /webhooks/focusnfe
func (h *WebhookHandler) Focus(c *fiber.Ctx) error {
	if !h.authorized(c, entity.ProviderFocusNFe) {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_SECRET", Message: "secreto de webhook inválido"})
	}
	var in dto.FocusWebhook
	if err := c.BodyParser(&in); err != nil || strings.TrimSpace(in.Ref) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "ref y status requeridos"})
	}
	return h.apply(c, appnfse.StatusUpdate{
		Provider:         entity.ProviderFocusNFe,
		Reference:        strings.TrimSpace(in.Ref),
		NativeStatus:     in.Status,
		Number:           in.Number(),
		VerificationCode: string(in.CodigoVerificacao),
		CancelReason:     in.MotivoCancelamento,
		Message:          in.Message(),
		Raw:              string(c.Body()),
	})
}

// PlugNotas POST /webhooks/plugnotas
func (h *WebhookHandler) PlugNotas(c *fiber.Ctx) error {
	if !h.authorized(c, entity.ProviderPlugNotas) {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_SECRET", Message: "secreto de webhook inválido"})
	}
	var in dto.PlugNotasWebhook
	if err := c.BodyParser(&in); err != nil || strings.TrimSpace(in.IDIntegracao) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "idIntegracao y situacao requeridos"})
	}
	return h.apply(c, appnfse.StatusUpdate{
		Provider:         entity.ProviderPlugNotas,
		Reference:        strings.TrimSpace(in.IDIntegracao),
		NativeStatus:     strings.ToUpper(in.Situacao),
		Number:           string(in.NumeroNFSe),
		VerificationCode: string(in.CodigoVerificacao),
		Message:          in.Mensagem,
		Raw:              string(c.Body()),
	})
}

func (h *WebhookHandler) apply(c *fiber.Ctx, u appnfse.StatusUpdate) error {
	if strings.TrimSpace(u.NativeStatus) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "status requerido"})
	}
	inv, err := h.svc.ApplyStatusUpdate(c.UserContext(), u)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.WebhookAck{Reference: inv.Reference, Status: string(inv.Status)})
}

func (h *WebhookHandler) authorized(c *fiber.Ctx, p entity.Provider) bool {
	want := h.secrets[p]
	if want == "" {
		return false
	}
	got := c.Get(HeaderWebhookSecret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
