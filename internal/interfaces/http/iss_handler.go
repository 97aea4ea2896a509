package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/infrastructure/issdigital"
)

var brt = time.FixedZone("BRT", -3*60*60)

// NotesLister consulta de notas emitidas en ISS Digital.
type NotesLister interface {
	ConsultarNotas(ctx context.Context, from, to time.Time, notaInicial int64) (*issdigital.Response, error)
}

// ISSDigitalHandler consultas propias del webservice de São Luís.
type ISSDigitalHandler struct {
	lister NotesLister
}

// NewISSDigitalHandler construye el handler.
func NewISSDigitalHandler(lister NotesLister) *ISSDigitalHandler {
	return &ISSDigitalHandler{lister: lister}
}

// Notas lista las NFS-e del período.
// GET /api/iss-digital/notas?from=2025-01-01&to=2025-01-31&nota_inicial=1
func (h *ISSDigitalHandler) Notas(c *fiber.Ctx) error {
	from, err := time.ParseInLocation("2006-01-02", c.Query("from"), brt)
	if err != nil {
		return writeError(c, domain.NewValidationError("from", "formato AAAA-MM-DD"))
	}
	to, err := time.ParseInLocation("2006-01-02", c.Query("to"), brt)
	if err != nil {
		return writeError(c, domain.NewValidationError("to", "formato AAAA-MM-DD"))
	}
	if to.Before(from) {
		return writeError(c, domain.NewValidationError("to", "debe ser posterior a from"))
	}
	notaInicial := int64(1)
	if v := c.Query("nota_inicial"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return writeError(c, domain.NewValidationError("nota_inicial", "entero positivo"))
		}
		notaInicial = n
	}

	res, err := h.lister.ConsultarNotas(c.UserContext(), from, to, notaInicial)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.ISSNotasResponse{Notas: make([]dto.ISSNotaDTO, 0, len(res.Notes))}
	for _, n := range res.Notes {
		out.Notas = append(out.Notas, dto.ISSNotaDTO{
			InscricaoPrestador: n.InscricaoPrestador,
			NumeroNFe:          n.NumeroNFe,
			CodigoVerificacao:  n.CodigoVerificacao,
		})
	}
	for _, a := range res.Alerts {
		out.Alertas = append(out.Alertas, a.String())
	}
	return c.JSON(out)
}
