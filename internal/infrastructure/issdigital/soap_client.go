package issdigital

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/pkg/config"
)

// ── Endpoints ─────────────────────────────────────────────────────────────────

const (
	EndpointProduction   = "http://sistemas.semfaz.saoluis.ma.gov.br/WsNFe2/LoteRps.jws"
	EndpointHomologation = "http://beta.semfaz.saoluis.ma.gov.br/WsNFe2/LoteRps.jws"

	soapNS        = "http://schemas.xmlsoap.org/soap/envelope/"
	soapServiceNS = "http://sistemas.semfaz.saoluis.ma.gov.br/WsNFe2/LoteRps.jws"
)

// Operaciones del webservice.
const (
	OpEnviar           = "enviar"
	OpConsultarLote    = "consultarLote"
	OpConsultarNota    = "consultarNota"
	OpConsultarNFSeRps = "ConsultarNFSeRps"
)

// soapActions el WSDL declara soapAction vacío salvo en consultarNota.
var soapActions = map[string]string{
	OpConsultarNota: OpConsultarNota,
}

const maxResponseBytes = 1 << 20 // 1 MB

// SOAPResponse respuesta HTTP cruda.
type SOAPResponse struct {
	StatusCode int
	Body       []byte
}

// SOAPClient transporte SOAP 1.1 de ISS Digital sobre net/http.
type SOAPClient struct {
	httpClient *http.Client
	endpoint   string
}

// NewSOAPClient timeout se limita a config.MaxProviderTimeout.
func NewSOAPClient(endpoint string, timeout time.Duration) *SOAPClient {
	return &SOAPClient{
		httpClient: &http.Client{Timeout: config.ClampTimeout(timeout)},
		endpoint:   endpoint,
	}
}

// Endpoint URL en uso.
func (c *SOAPClient) Endpoint() string { return c.endpoint }

// Envelope envuelve el XML de negocio en ArquivoXML tal cual, sin escapar.
func Envelope(op string, payload []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(payload) + 400)
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<soap:Envelope xmlns:soap="` + soapNS + `" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">`)
	b.WriteString(`<soap:Body>`)
	b.WriteString(`<ns:` + op + ` xmlns:ns="` + soapServiceNS + `">`)
	b.WriteString(`<ArquivoXML>`)
	b.Write(payload)
	b.WriteString(`</ArquivoXML>`)
	b.WriteString(`</ns:` + op + `>`)
	b.WriteString(`</soap:Body></soap:Envelope>`)
	return b.Bytes()
}

// Call invoca la operación. Errores de red y timeouts vuelven como *domain.CommunicationError;
// cualquier respuesta HTTP se devuelve para que la interprete el gateway.
func (c *SOAPClient) Call(ctx context.Context, op string, payload []byte) (*SOAPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(Envelope(op, payload)))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "text/xml, application/xml")
	req.Header.Set("SOAPAction", soapActions[op])

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		} else {
			err = fmt.Errorf("soap: llamada HTTP fallida: %w", err)
		}
		return nil, &domain.CommunicationError{Provider: string(entity.ProviderISSDigital), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.CommunicationError{
			Provider:   string(entity.ProviderISSDigital),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("soap: leer respuesta: %w", err),
		}
	}
	return &SOAPResponse{StatusCode: resp.StatusCode, Body: raw}, nil
}
