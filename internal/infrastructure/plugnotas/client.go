// Package plugnotas integra la API REST de NFS-e de PlugNotas (Tecnospeed).
// La integración emite y consulta; no cancela.
package plugnotas

import (
	"bytes"
	"context"
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
	BaseURLProduction = "https://api.plugnotas.com.br/nfse"
	BaseURLSandbox    = "https://api.sandbox.plugnotas.com.br/nfse"

	// HeaderAPIKey header de autenticación de la API.
	HeaderAPIKey = "x-api-key"

	maxResponseBytes = 4 << 20
)

// ClientConfig configuración inmutable del cliente.
type ClientConfig struct {
	APIKey  string
	Sandbox bool
	BaseURL string
	Timeout time.Duration
}

// Response respuesta HTTP cruda.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK indica 2xx.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Client transporte JSON con x-api-key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient construye el cliente; el timeout se limita a config.MaxProviderTimeout.
func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = BaseURLProduction
		if cfg.Sandbox {
			base = BaseURLSandbox
		}
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.ClampTimeout(cfg.Timeout)},
		baseURL:    base,
		apiKey:     cfg.APIKey,
	}
}

// APIKey credencial, usada también para descargar artefactos.
func (c *Client) APIKey() string { return c.apiKey }

// BaseURL URL base en uso.
func (c *Client) BaseURL() string { return c.baseURL }

// Send POST {base} con el arreglo de documentos.
func (c *Client) Send(ctx context.Context, payload []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.baseURL, payload)
}

// Get GET {base}/consultar/{id}.
func (c *Client) Get(ctx context.Context, id string) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.baseURL+"/consultar/"+url.PathEscape(id), nil)
}

// PDFURL {base}/pdf/{id}.
func (c *Client) PDFURL(id string) string { return c.baseURL + "/pdf/" + url.PathEscape(id) }

// XMLURL {base}/xml/{id}.
func (c *Client) XMLURL(id string) string { return c.baseURL + "/xml/" + url.PathEscape(id) }

func (c *Client) do(ctx context.Context, method, target string, body []byte) (*Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("plugnotas: crear request: %w", err)
	}
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("plugnotas: timeout o cancelación: %w", ctx.Err())
		} else {
			err = fmt.Errorf("plugnotas: llamada HTTP fallida: %w", err)
		}
		return nil, &domain.CommunicationError{Provider: string(entity.ProviderPlugNotas), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.CommunicationError{
			Provider:   string(entity.ProviderPlugNotas),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("plugnotas: leer respuesta: %w", err),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}
