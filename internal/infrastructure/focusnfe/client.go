// Package focusnfe integra la API REST "NFSe Nacional" de Focus NFe:
// emisión por referencia, consulta, cancelación, reenvío de e-mail y DANFSE.
package focusnfe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/pkg/config"
)

const (
	BaseURLProduction   = "https://api.focusnfe.com.br"
	BaseURLHomologation = "https://homologacao.focusnfe.com.br"

	nfsenPath        = "/v2/nfsen"
	maxResponseBytes = 4 << 20
)

// ClientConfig configuración inmutable del cliente.
type ClientConfig struct {
	Token        string
	Homologation bool
	BaseURL      string // vacío = URL oficial del ambiente
	Timeout      time.Duration
}

// Response respuesta HTTP cruda del proveedor.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK indica 2xx.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// JSON devuelve el cuerpo como objeto; un cuerpo que no es JSON se envuelve en {"erro": texto}.
func (r *Response) JSON() map[string]any {
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil || m == nil {
		return map[string]any{"erro": strings.TrimSpace(string(r.Body))}
	}
	return m
}

// Client transporte HTTP con Basic auth (token como usuario, contraseña vacía).
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient construye el cliente. El timeout se limita a config.MaxProviderTimeout.
func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = BaseURLProduction
		if cfg.Homologation {
			base = BaseURLHomologation
		}
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.ClampTimeout(cfg.Timeout)},
		baseURL:    base,
		token:      cfg.Token,
	}
}

// BaseURL URL base en uso.
func (c *Client) BaseURL() string { return c.baseURL }

// Token credencial de la cuenta, usada también para descargar artefactos.
func (c *Client) Token() string { return c.token }

// Send POST /v2/nfsen?ref={ref}.
func (c *Client) Send(ctx context.Context, ref string, payload []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, nfsenPath+"?ref="+url.QueryEscape(ref), payload)
}

// Get GET /v2/nfsen/{ref}.
func (c *Client) Get(ctx context.Context, ref string) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.refPath(ref), nil)
}

// Cancel DELETE /v2/nfsen/{ref} con {"justificativa": ...}.
func (c *Client) Cancel(ctx context.Context, ref, justificativa string) (*Response, error) {
	body, err := json.Marshal(map[string]string{"justificativa": justificativa})
	if err != nil {
		return nil, fmt.Errorf("focus: serializar cancelación: %w", err)
	}
	return c.do(ctx, http.MethodDelete, c.refPath(ref), body)
}

// ResendEmail POST /v2/nfsen/{ref}/email con {"emails": [...]}.
func (c *Client) ResendEmail(ctx context.Context, ref string, emails []string) (*Response, error) {
	body, err := json.Marshal(map[string][]string{"emails": emails})
	if err != nil {
		return nil, fmt.Errorf("focus: serializar e-mails: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.refPath(ref)+"/email", body)
}

// PDFURL URL del DANFSE servida por la propia API (requiere Basic auth).
func (c *Client) PDFURL(ref string) string {
	return c.baseURL + c.refPath(ref) + ".pdf"
}

// ResolveURL completa rutas relativas (caminho_xml_nota_fiscal) con la URL base.
func (c *Client) ResolveURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return c.baseURL + "/" + strings.TrimLeft(u, "/")
}

func (c *Client) refPath(ref string) string {
	return nfsenPath + "/" + url.PathEscape(ref)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("focus: crear request: %w", err)
	}
	req.SetBasicAuth(c.token, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("focus: timeout o cancelación: %w", ctx.Err())
		} else {
			err = fmt.Errorf("focus: llamada HTTP fallida: %w", err)
		}
		return nil, &domain.CommunicationError{Provider: string(entity.ProviderFocusNFe), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.CommunicationError{
			Provider:   string(entity.ProviderFocusNFe),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("focus: leer respuesta: %w", err),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}
