package plugnotas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// Estado nativo tras un envío aceptado.
const statusProcessando = "PROCESSANDO"

// Gateway implementa nfse.ProviderGateway para PlugNotas.
type Gateway struct {
	client *Client
	log    zerolog.Logger
}

// NewGateway construye el gateway sobre un cliente ya configurado.
func NewGateway(client *Client, log zerolog.Logger) *Gateway {
	return &Gateway{client: client, log: log}
}

// Provider implementa nfse.ProviderGateway.
func (g *Gateway) Provider() entity.Provider { return entity.ProviderPlugNotas }

// Preflight exige la API key y que el payload se pueda armar.
func (g *Gateway) Preflight(inv *entity.Invoice) error {
	if strings.TrimSpace(g.client.APIKey()) == "" {
		return &domain.ConfigurationError{Field: "plugnotas.api_key", Message: "API key de PlugNotas no configurada"}
	}
	_, err := BuildPayload(inv)
	return err
}

// Send transmite la nota; el id devuelto en documents[0] identifica la nota en PlugNotas.
func (g *Gateway) Send(ctx context.Context, inv *entity.Invoice) (*appnfse.ProviderResult, error) {
	docs, err := BuildPayload(inv)
	if err != nil {
		return nil, err
	}
	body, err := Marshal(docs)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Send(ctx, body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, g.failure(resp)
	}

	var sr SendResponse
	if err := json.Unmarshal(resp.Body, &sr); err != nil || len(sr.Documents) == 0 || sr.Documents[0].ID == "" {
		return nil, &domain.CommunicationError{
			Provider:   string(entity.ProviderPlugNotas),
			StatusCode: resp.StatusCode,
			Err:        errors.New("respuesta sin documents[0].id: " + truncate(string(resp.Body), 300)),
		}
	}
	res := &appnfse.ProviderResult{
		NativeStatus:       statusProcessando,
		HTTPStatus:         resp.StatusCode,
		ProviderDocumentID: sr.Documents[0].ID,
		Message:            sr.Message,
		Raw:                string(resp.Body),
	}
	g.log.Info().Str("ref", inv.Reference).Str("plugnotas_id", res.ProviderDocumentID).Msg("NFS-e enviada a PlugNotas")
	return res, nil
}

// Query consulta por el id de PlugNotas.
func (g *Gateway) Query(ctx context.Context, inv *entity.Invoice) (*appnfse.ProviderResult, error) {
	id := strings.TrimSpace(inv.ProviderDocumentID)
	if id == "" {
		return nil, domain.ErrNotSubmitted
	}
	resp, err := g.client.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, g.failure(resp)
	}
	records, err := ParseRecords(resp.Body)
	if err != nil || len(records) == 0 {
		return nil, &domain.CommunicationError{
			Provider:   string(entity.ProviderPlugNotas),
			StatusCode: resp.StatusCode,
			Err:        errors.New("consulta sin registros: " + truncate(string(resp.Body), 300)),
		}
	}
	rec := pick(records, id)
	return &appnfse.ProviderResult{
		NativeStatus:       strings.ToUpper(strings.TrimSpace(rec.Situacao)),
		HTTPStatus:         resp.StatusCode,
		ProviderDocumentID: id,
		Number:             rec.NumeroNFSe,
		VerificationCode:   rec.Verification(),
		IssuedAt:           rec.IssuedAt(),
		Message:            rec.Text(),
		Raw:                string(resp.Body),
		PDFURL:             rec.PDF,
		XMLURL:             rec.XML,
	}, nil
}

// Cancel la integración con PlugNotas no cancela notas.
func (g *Gateway) Cancel(context.Context, *entity.Invoice, string) (*appnfse.ProviderResult, error) {
	return nil, domain.ErrCancelUnsupported
}

// ArtifactCandidates URL informada en la consulta y luego la ruta fija de la API, siempre con x-api-key.
func (g *Gateway) ArtifactCandidates(inv *entity.Invoice, res *appnfse.ProviderResult) (pdf, xml []appnfse.ArtifactCandidate) {
	headers := map[string]string{HeaderAPIKey: g.client.APIKey()}
	if res != nil && res.PDFURL != "" {
		pdf = append(pdf, appnfse.ArtifactCandidate{URL: res.PDFURL, Headers: headers})
	}
	if res != nil && res.XMLURL != "" {
		xml = append(xml, appnfse.ArtifactCandidate{URL: res.XMLURL, Headers: headers})
	}
	if id := strings.TrimSpace(inv.ProviderDocumentID); id != "" {
		pdf = append(pdf, appnfse.ArtifactCandidate{URL: g.client.PDFURL(id), Headers: headers})
		xml = append(xml, appnfse.ArtifactCandidate{URL: g.client.XMLURL(id), Headers: headers})
	}
	return pdf, xml
}

func pick(records []Record, id string) Record {
	for _, r := range records {
		if r.ID == id {
			return r
		}
	}
	return records[0]
}

// failure 4xx con mensaje estructurado es un rechazo; el resto es falla de comunicación.
func (g *Gateway) failure(resp *Response) error {
	msg, structured := ErrorMessage(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError && structured {
		return &domain.ProviderRejectionError{
			Provider:   string(entity.ProviderPlugNotas),
			StatusCode: resp.StatusCode,
			Message:    msg,
			Raw:        string(resp.Body),
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.CommunicationError{
		Provider:   string(entity.ProviderPlugNotas),
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

var _ appnfse.ProviderGateway = (*Gateway)(nil)
