package focusnfe

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// Estados nativos que se asumen cuando la respuesta 2xx no trae "status".
const (
	statusProcessandoAutorizacao = "processando_autorizacao"
	statusCancelado              = "cancelado"
)

// Gateway implementa nfse.ProviderGateway y nfse.EmailResender para Focus NFSe.
type Gateway struct {
	client *Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewGateway construye el gateway sobre un cliente ya configurado.
func NewGateway(client *Client, log zerolog.Logger, now func() time.Time) *Gateway {
	if now == nil {
		now = time.Now
	}
	return &Gateway{client: client, log: log, now: now}
}

// Provider implementa nfse.ProviderGateway.
func (g *Gateway) Provider() entity.Provider { return entity.ProviderFocusNFe }

// Preflight exige el token y que el payload se pueda armar.
func (g *Gateway) Preflight(inv *entity.Invoice) error {
	if strings.TrimSpace(g.client.Token()) == "" {
		return &domain.ConfigurationError{Field: "focus.token", Message: "token de Focus NFSe no configurado"}
	}
	_, err := BuildPayload(inv, g.now())
	return err
}

// Send transmite la nota con la referencia como clave de idempotencia.
func (g *Gateway) Send(ctx context.Context, inv *entity.Invoice) (*appnfse.ProviderResult, error) {
	p, err := BuildPayload(inv, g.now())
	if err != nil {
		return nil, err
	}
	body, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Send(ctx, inv.Reference, body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, g.failure(resp)
	}
	res := g.result(resp, statusProcessandoAutorizacao)
	res.ProviderDocumentID = inv.Reference
	g.log.Info().Str("ref", inv.Reference).Str("status", res.NativeStatus).Int("http_status", resp.StatusCode).Msg("NFS-e enviada a Focus")
	return res, nil
}

// Query consulta por referencia.
func (g *Gateway) Query(ctx context.Context, inv *entity.Invoice) (*appnfse.ProviderResult, error) {
	resp, err := g.client.Get(ctx, inv.Reference)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, g.failure(resp)
	}
	return g.result(resp, ""), nil
}

// Cancel DELETE con la justificación.
func (g *Gateway) Cancel(ctx context.Context, inv *entity.Invoice, reason string) (*appnfse.ProviderResult, error) {
	resp, err := g.client.Cancel(ctx, inv.Reference, reason)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, g.failure(resp)
	}
	res := g.result(resp, statusCancelado)
	res.CancelReason = reason
	return res, nil
}

// ResendEmail reenvía la NFS-e autorizada a los destinatarios dados.
func (g *Gateway) ResendEmail(ctx context.Context, inv *entity.Invoice, emails []string) (*appnfse.ProviderResult, error) {
	resp, err := g.client.ResendEmail(ctx, inv.Reference, emails)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, g.failure(resp)
	}
	return &appnfse.ProviderResult{
		NativeStatus: inv.ProviderStatus,
		HTTPStatus:   resp.StatusCode,
		Message:      "e-mail reenviado a " + strings.Join(emails, ", "),
		Raw:          string(resp.Body),
	}, nil
}

// ArtifactCandidates PDF: url_danfse y luego la ruta .pdf de la API. XML: url_xml o caminho_xml_nota_fiscal.
// Las URLs de object storage público van sin credenciales.
func (g *Gateway) ArtifactCandidates(inv *entity.Invoice, res *appnfse.ProviderResult) (pdf, xml []appnfse.ArtifactCandidate) {
	if res != nil && res.PDFURL != "" {
		pdf = append(pdf, g.candidate(g.client.ResolveURL(res.PDFURL)))
	}
	pdf = append(pdf, g.candidate(g.client.PDFURL(inv.Reference)))
	if res != nil && res.XMLURL != "" {
		xml = append(xml, g.candidate(g.client.ResolveURL(res.XMLURL)))
	}
	return pdf, xml
}

func (g *Gateway) candidate(u string) appnfse.ArtifactCandidate {
	if IsPublicStorageURL(u) {
		return appnfse.ArtifactCandidate{URL: u}
	}
	return appnfse.ArtifactCandidate{URL: u, Headers: map[string]string{"Authorization": basicAuth(g.client.Token())}}
}

// IsPublicStorageURL URLs de S3 que el proveedor publica sin autenticación.
func IsPublicStorageURL(u string) bool {
	return strings.Contains(u, "amazonaws.com") || strings.Contains(u, "s3.")
}

func basicAuth(token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token+":"))
}

// result traduce una respuesta 2xx; fallback es el estado nativo cuando no viene "status".
func (g *Gateway) result(resp *Response, fallback string) *appnfse.ProviderResult {
	r := ParseNFSeResponse(resp.Body)
	status := strings.TrimSpace(r.Status)
	if status == "" {
		status = fallback
	}
	return &appnfse.ProviderResult{
		NativeStatus:     status,
		HTTPStatus:       resp.StatusCode,
		Number:           r.NumeroNota(),
		VerificationCode: string(r.CodigoVerificacao),
		IssuedAt:         r.IssuedAt(),
		Message:          r.Message(),
		Raw:              string(resp.Body),
		PDFURL:           r.URLDanfse,
		XMLURL:           r.XMLPath(),
	}
}

// failure 4xx con error de negocio es un rechazo; el resto es falla de comunicación con el status HTTP.
func (g *Gateway) failure(resp *Response) error {
	r := ParseNFSeResponse(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError && r.IsBusinessError() {
		return &domain.ProviderRejectionError{
			Provider:   string(entity.ProviderFocusNFe),
			StatusCode: resp.StatusCode,
			Code:       r.ErrorCode(),
			Message:    r.Message(),
			Raw:        string(resp.Body),
		}
	}
	msg := r.Message()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.CommunicationError{
		Provider:   string(entity.ProviderFocusNFe),
		StatusCode: resp.StatusCode,
		Err:        errors.New(truncate(msg, 500)),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var (
	_ appnfse.ProviderGateway = (*Gateway)(nil)
	_ appnfse.EmailResender   = (*Gateway)(nil)
)
