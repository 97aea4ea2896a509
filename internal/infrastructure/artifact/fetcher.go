// Package artifact descarga los PDF y XML que publican los proveedores.
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second
	maxBytes       = 20 << 20
)

var pdfMagic = []byte("%PDF")

// HTTPFetcher implementa nfse.ArtifactFetcher probando los candidatos en orden.
type HTTPFetcher struct {
	client *http.Client
	log    zerolog.Logger
}

// NewHTTPFetcher timeout <= 0 usa DefaultTimeout.
func NewHTTPFetcher(timeout time.Duration, log zerolog.Logger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}, log: log}
}

// Fetch devuelve el primer cuerpo válido. Un PDF debe empezar con %PDF; un XML con '<'.
// Si ninguno sirve devuelve domain.ErrArtifactUnavailable envolviendo el último error.
func (f *HTTPFetcher) Fetch(ctx context.Context, kind appnfse.ArtifactKind, candidates []appnfse.ArtifactCandidate) ([]byte, error) {
	var lastErr error
	for _, c := range candidates {
		if c.URL == "" {
			continue
		}
		data, err := f.get(ctx, c)
		if err == nil {
			err = validate(kind, data)
		}
		if err != nil {
			f.log.Warn().Err(err).Str("kind", string(kind)).Str("url", c.URL).Msg("candidato de artefacto descartado")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = errors.New("sin candidatos")
	}
	return nil, fmt.Errorf("%w: %s: %v", domain.ErrArtifactUnavailable, kind, lastErr)
}

func (f *HTTPFetcher) get(ctx context.Context, c appnfse.ArtifactCandidate) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBytes))
}

func validate(kind appnfse.ArtifactKind, data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("cuerpo vacío")
	}
	switch kind {
	case appnfse.ArtifactPDF:
		if !bytes.HasPrefix(data, pdfMagic) {
			return errors.New("el contenido no es un PDF")
		}
	case appnfse.ArtifactXML:
		if trimmed[0] != '<' {
			return errors.New("el contenido no es XML")
		}
	}
	return nil
}

var _ appnfse.ArtifactFetcher = (*HTTPFetcher)(nil)
