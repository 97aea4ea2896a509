package focusnfe_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	domnfse "github.com/jhoicas/nfse-api/internal/domain/nfse"
	"github.com/jhoicas/nfse-api/internal/infrastructure/focusnfe"
)

const testToken = "token-homologacao"

// ── Servidor falso de Focus ───────────────────────────────────────────────────

type recorded struct {
	method  string
	path    string
	query   string
	user    string
	pass    string
	hasAuth bool
	body    []byte
}

type focusServer struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []recorded
	status int
	reply  string
}

func newFocusServer(t *testing.T, status int, reply string) *focusServer {
	t.Helper()
	s := &focusServer{status: status, reply: reply}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		u, p, ok := r.BasicAuth()
		s.mu.Lock()
		s.calls = append(s.calls, recorded{
			method: r.Method, path: r.URL.Path, query: r.URL.RawQuery,
			user: u, pass: p, hasAuth: ok, body: b,
		})
		status, reply := s.status, s.reply
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *focusServer) last(t *testing.T) recorded {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.calls, "se esperaba al menos un request")
	return s.calls[len(s.calls)-1]
}

func (s *focusServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newGateway(baseURL, token string) *focusnfe.Gateway {
	client := focusnfe.NewClient(focusnfe.ClientConfig{
		Token:        token,
		Homologation: true,
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
	})
	return focusnfe.NewGateway(client, zerolog.Nop(), func() time.Time { return fixedNow })
}

// ── Envío ─────────────────────────────────────────────────────────────────────

func TestGateway_SendBasicAuthYReferencia(t *testing.T) {
	srv := newFocusServer(t, http.StatusAccepted, `{"cnpj_prestador":"12345678000195","ref":"NFSE-FOCUS-1","status":"processando_autorizacao"}`)
	g := newGateway(srv.URL, testToken)
	inv := buildFocusInvoice()

	require.NoError(t, g.Preflight(inv))
	res, err := g.Send(context.Background(), inv)
	require.NoError(t, err)

	call := srv.last(t)
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/v2/nfsen", call.path)
	assert.Equal(t, "ref=NFSE-FOCUS-1", call.query)
	assert.True(t, call.hasAuth)
	assert.Equal(t, testToken, call.user, "token como usuario")
	assert.Empty(t, call.pass)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(call.body, &sent))
	assert.Equal(t, "080100", sent["codigo_tributacao_nacional_iss"])

	assert.Equal(t, "processando_autorizacao", res.NativeStatus)
	assert.Equal(t, "NFSE-FOCUS-1", res.ProviderDocumentID)
	assert.Equal(t, http.StatusAccepted, res.HTTPStatus)
	st, known := domnfse.MapStatus(entity.ProviderFocusNFe, res.NativeStatus)
	assert.True(t, known)
	assert.Equal(t, entity.StatusProcessing, st)
}

func TestGateway_PreflightSinToken(t *testing.T) {
	srv := newFocusServer(t, http.StatusOK, `{}`)
	g := newGateway(srv.URL, "")

	err := g.Preflight(buildFocusInvoice())
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "focus.token", ce.Field)
	assert.Zero(t, srv.count())
}

func TestGateway_SendRechazoConTextoLiteral(t *testing.T) {
	body := `{"codigo":"requisicao_invalida","mensagem":"CNPJ do emitente não autorizado ou não habilitado"}`
	srv := newFocusServer(t, http.StatusUnprocessableEntity, body)
	g := newGateway(srv.URL, testToken)

	_, err := g.Send(context.Background(), buildFocusInvoice())
	var re *domain.ProviderRejectionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnprocessableEntity, re.StatusCode)
	assert.Equal(t, "requisicao_invalida", re.Code)
	assert.Equal(t, "CNPJ do emitente não autorizado ou não habilitado", re.Message)
	assert.Equal(t, body, re.Raw)
}

func TestGateway_ErrorServidorNoJSON(t *testing.T) {
	srv := newFocusServer(t, http.StatusBadGateway, "<html>Bad Gateway</html>")
	g := newGateway(srv.URL, testToken)

	_, err := g.Send(context.Background(), buildFocusInvoice())
	var ce *domain.CommunicationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusBadGateway, ce.StatusCode, "el status HTTP no se enmascara")
	assert.Contains(t, ce.Error(), "Bad Gateway")
}

func TestGateway_ServidorCaido(t *testing.T) {
	srv := newFocusServer(t, http.StatusOK, "")
	url := srv.URL
	srv.Close()

	_, err := newGateway(url, testToken).Send(context.Background(), buildFocusInvoice())
	var ce *domain.CommunicationError
	require.ErrorAs(t, err, &ce)
	assert.Zero(t, ce.StatusCode)
}

// ── Consulta ──────────────────────────────────────────────────────────────────

func TestGateway_QueryAutorizada(t *testing.T) {
	srv := newFocusServer(t, http.StatusOK, `{
		"ref":"NFSE-FOCUS-1","status":"autorizado","numero":1234,"codigo_verificacao":"AB12CD",
		"data_emissao":"2024-03-15T10:05:00-03:00",
		"url_danfse":"https://focusnfe.s3.sa-east-1.amazonaws.com/arquivos/danfse.pdf",
		"caminho_xml_nota_fiscal":"/arquivos/12345678000195/202403/XMLs/nfse.xml"}`)
	g := newGateway(srv.URL, testToken)
	inv := buildFocusInvoice()

	res, err := g.Query(context.Background(), inv)
	require.NoError(t, err)

	call := srv.last(t)
	assert.Equal(t, http.MethodGet, call.method)
	assert.Equal(t, "/v2/nfsen/NFSE-FOCUS-1", call.path)

	assert.Equal(t, "autorizado", res.NativeStatus)
	assert.Equal(t, "1234", res.Number, "número numérico en el JSON")
	assert.Equal(t, "AB12CD", res.VerificationCode)
	require.NotNil(t, res.IssuedAt)
	assert.True(t, res.IssuedAt.Equal(time.Date(2024, 3, 15, 13, 5, 0, 0, time.UTC)))

	pdf, xml := g.ArtifactCandidates(inv, res)
	require.Len(t, pdf, 2)
	assert.Equal(t, "https://focusnfe.s3.sa-east-1.amazonaws.com/arquivos/danfse.pdf", pdf[0].URL)
	assert.Empty(t, pdf[0].Headers, "S3 público sin credenciales")
	assert.Equal(t, srv.URL+"/v2/nfsen/NFSE-FOCUS-1.pdf", pdf[1].URL)
	assert.Equal(t, "Basic dG9rZW4taG9tb2xvZ2FjYW86", pdf[1].Headers["Authorization"])

	require.Len(t, xml, 1)
	assert.Equal(t, srv.URL+"/arquivos/12345678000195/202403/XMLs/nfse.xml", xml[0].URL)
	assert.NotEmpty(t, xml[0].Headers["Authorization"])
}

func TestGateway_QueryErroAutorizacao(t *testing.T) {
	srv := newFocusServer(t, http.StatusOK, `{"status":"erro_autorizacao","erros":[{"codigo":"E0014","mensagem":"Conjunto de Série e Número já existe"}]}`)
	g := newGateway(srv.URL, testToken)

	res, err := g.Query(context.Background(), buildFocusInvoice())
	require.NoError(t, err)
	assert.Equal(t, "erro_autorizacao", res.NativeStatus)
	assert.Equal(t, "E0014: Conjunto de Série e Número já existe", res.Message)
}

func TestGateway_QueryNoEncontrada(t *testing.T) {
	srv := newFocusServer(t, http.StatusNotFound, `{"codigo":"nao_encontrado","mensagem":"Nota fiscal não encontrada"}`)
	_, err := newGateway(srv.URL, testToken).Query(context.Background(), buildFocusInvoice())
	assert.True(t, domain.IsRejection(err))
}

func TestGateway_SinURLDanfseUsaRutaDeLaAPI(t *testing.T) {
	g := newGateway("https://homologacao.focusnfe.com.br", testToken)
	pdf, xml := g.ArtifactCandidates(buildFocusInvoice(), &appnfse.ProviderResult{})
	require.Len(t, pdf, 1)
	assert.Equal(t, "https://homologacao.focusnfe.com.br/v2/nfsen/NFSE-FOCUS-1.pdf", pdf[0].URL)
	assert.Empty(t, xml)
}

// ── Cancelación y e-mail ──────────────────────────────────────────────────────

func TestGateway_CancelEnviaJustificativa(t *testing.T) {
	srv := newFocusServer(t, http.StatusOK, `{"status":"cancelado"}`)
	g := newGateway(srv.URL, testToken)

	res, err := g.Cancel(context.Background(), buildFocusInvoice(), "Serviço não prestado ao aluno")
	require.NoError(t, err)

	call := srv.last(t)
	assert.Equal(t, http.MethodDelete, call.method)
	assert.Equal(t, "/v2/nfsen/NFSE-FOCUS-1", call.path)
	assert.JSONEq(t, `{"justificativa":"Serviço não prestado ao aluno"}`, string(call.body))
	assert.Equal(t, "cancelado", res.NativeStatus)
	assert.Equal(t, "Serviço não prestado ao aluno", res.CancelReason)
}

func TestGateway_CancelPendiente(t *testing.T) {
	srv := newFocusServer(t, http.StatusOK, `{"status":"processando_cancelamento"}`)
	res, err := newGateway(srv.URL, testToken).Cancel(context.Background(), buildFocusInvoice(), "Serviço não prestado ao aluno")
	require.NoError(t, err)
	st, _ := domnfse.MapStatus(entity.ProviderFocusNFe, res.NativeStatus)
	assert.Equal(t, entity.StatusCancelPending, domnfse.CancelOutcome(st))
}

func TestGateway_ResendEmail(t *testing.T) {
	srv := newFocusServer(t, http.StatusOK, `{}`)
	g := newGateway(srv.URL, testToken)
	inv := buildFocusInvoice()
	inv.ProviderStatus = "autorizado"

	res, err := g.ResendEmail(context.Background(), inv, []string{"a@example.com", "b@example.com"})
	require.NoError(t, err)

	call := srv.last(t)
	assert.Equal(t, "/v2/nfsen/NFSE-FOCUS-1/email", call.path)
	assert.JSONEq(t, `{"emails":["a@example.com","b@example.com"]}`, string(call.body))
	assert.Equal(t, "autorizado", res.NativeStatus)
}

func TestResponse_JSONEnvuelveTextoPlano(t *testing.T) {
	r := &focusnfe.Response{StatusCode: 500, Body: []byte("Internal Server Error\n")}
	assert.Equal(t, map[string]any{"erro": "Internal Server Error"}, r.JSON())

	ok := &focusnfe.Response{StatusCode: 200, Body: []byte(`{"status":"autorizado"}`)}
	assert.Equal(t, "autorizado", ok.JSON()["status"])
}
