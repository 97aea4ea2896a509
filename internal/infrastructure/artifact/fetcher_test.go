package artifact_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/infrastructure/artifact"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>login</html>")
	})
	mux.HandleFunc("/pdf", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Basic abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "%PDF-1.4 contenido")
	})
	mux.HandleFunc("/xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "\n<?xml version=\"1.0\"?><CompNfse/>")
	})
	mux.HandleFunc("/caida", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_DescartaPDFInvalidoYUsaSiguiente(t *testing.T) {
	srv := newServer(t)
	f := artifact.NewHTTPFetcher(5*time.Second, zerolog.Nop())

	data, err := f.Fetch(context.Background(), appnfse.ArtifactPDF, []appnfse.ArtifactCandidate{
		{URL: srv.URL + "/html"},
		{URL: srv.URL + "/pdf", Headers: map[string]string{"Authorization": "Basic abc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 contenido", string(data))
}

func TestFetch_PDFInvalidoEsNoDisponible(t *testing.T) {
	srv := newServer(t)
	f := artifact.NewHTTPFetcher(0, zerolog.Nop())

	_, err := f.Fetch(context.Background(), appnfse.ArtifactPDF, []appnfse.ArtifactCandidate{
		{URL: srv.URL + "/html"},
		{URL: srv.URL + "/pdf"},
		{URL: srv.URL + "/caida"},
	})
	assert.ErrorIs(t, err, domain.ErrArtifactUnavailable)
}

func TestFetch_XML(t *testing.T) {
	srv := newServer(t)
	f := artifact.NewHTTPFetcher(0, zerolog.Nop())

	data, err := f.Fetch(context.Background(), appnfse.ArtifactXML, []appnfse.ArtifactCandidate{{URL: srv.URL + "/xml"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), "<CompNfse/>")
}

func TestFetch_SinCandidatos(t *testing.T) {
	f := artifact.NewHTTPFetcher(0, zerolog.Nop())
	_, err := f.Fetch(context.Background(), appnfse.ArtifactXML, nil)
	assert.ErrorIs(t, err, domain.ErrArtifactUnavailable)
}
