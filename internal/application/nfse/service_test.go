package nfse_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

var ctx = context.Background()

const reason20 = "Serviço não prestado"

// ── Create ────────────────────────────────────────────────────────────────────

func TestCreate_BorradorConReferencia(t *testing.T) {
	h := newHarness(&fakeGateway{provider: entity.ProviderFocusNFe})

	inv, err := h.svc.Create(ctx, buildDraft(entity.ProviderFocusNFe, ""))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, inv.Status)
	assert.True(t, strings.HasPrefix(inv.Reference, "NFSE-"), "referencia generada: %s", inv.Reference)
	assert.Equal(t, "080100", inv.TaxClassificationCode)
	assert.Zero(t, h.repo.logCount(), "crear no escribe en la bitácora")
}

func TestCreate_ReferenciaDuplicada(t *testing.T) {
	h := newHarness(&fakeGateway{provider: entity.ProviderFocusNFe})
	_, err := h.svc.Create(ctx, buildDraft(entity.ProviderFocusNFe, "REF-1"))
	require.NoError(t, err)

	_, err = h.svc.Create(ctx, buildDraft(entity.ProviderFocusNFe, "REF-1"))
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestCreate_ISSAsignaNumeroRPS(t *testing.T) {
	h := newHarness(&fakeGateway{provider: entity.ProviderISSDigital})
	a, err := h.svc.Create(ctx, buildDraft(entity.ProviderISSDigital, "A"))
	require.NoError(t, err)
	b, err := h.svc.Create(ctx, buildDraft(entity.ProviderISSDigital, "B"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.RPS.Number)
	assert.Equal(t, int64(2), b.RPS.Number)
}

// ── Send ──────────────────────────────────────────────────────────────────────

func TestSend_ProcessandoAutorizacaoQuedaEnProcessing(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, send: result("processando_autorizacao")}
	h := newHarness(gw)
	h.seed("REF-B", entity.StatusDraft)

	inv, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-B")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, inv.Status, "ni error ni authorized")
	assert.Equal(t, "processando_autorizacao", inv.ProviderStatus)
	require.Equal(t, 1, h.repo.logCount())
	assert.Equal(t, entity.OutcomeProcessing, h.repo.lastLog().Outcome)
	assert.Zero(t, h.fetcher.calls.Load())
}

func TestSend_AutorizadaGuardaArtefactos(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		send: func(*entity.Invoice) (*nfse.ProviderResult, error) {
			return &nfse.ProviderResult{NativeStatus: "autorizado", Number: "123", VerificationCode: "ABC"}, nil
		},
	}
	h := newHarness(gw)
	h.seed("REF-OK", entity.StatusDraft)

	inv, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-OK")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.Equal(t, "123", inv.Number)
	assert.Equal(t, "ABC", inv.VerificationCode)
	require.NotNil(t, inv.IssuedAt)
	assert.NotEmpty(t, inv.PDFKey)
	assert.NotEmpty(t, inv.XMLKey)
	assert.Equal(t, int32(2), h.fetcher.calls.Load())

	stored, err := h.repo.GetByReference(ctx, entity.ProviderFocusNFe, "REF-OK")
	require.NoError(t, err)
	assert.Equal(t, inv.PDFKey, stored.PDFKey, "las claves de artefacto quedan persistidas")

	pdf, err := h.svc.Artifact(ctx, entity.ProviderFocusNFe, "REF-OK", nfse.ArtifactPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
}

func TestSend_RechazoDejaErrorConMensajeLiteral(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		send: func(*entity.Invoice) (*nfse.ProviderResult, error) {
			return nil, &domain.ProviderRejectionError{Provider: "focusnfe", StatusCode: 422, Code: "E01", Message: "CNPJ do prestador inválido", Raw: `{"codigo":"E01"}`}
		},
	}
	h := newHarness(gw)
	h.seed("REF-R", entity.StatusDraft)

	inv, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-R")
	require.Error(t, err)
	assert.True(t, domain.IsRejection(err))
	assert.Equal(t, entity.StatusError, inv.Status)

	entry := h.repo.lastLog()
	assert.Equal(t, entity.OutcomeError, entry.Outcome)
	assert.Equal(t, "CNPJ do prestador inválido", entry.Message)
	assert.Equal(t, 422, entry.HTTPStatus)
	assert.Equal(t, `{"codigo":"E01"}`, entry.Body)
}

func TestSend_FallaDeComunicacionDejaError(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		send: func(*entity.Invoice) (*nfse.ProviderResult, error) {
			return nil, &domain.CommunicationError{Provider: "focusnfe", Err: context.DeadlineExceeded}
		},
	}
	h := newHarness(gw)
	h.seed("REF-T", entity.StatusDraft)

	inv, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-T")
	assert.True(t, domain.IsCommunication(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, entity.StatusError, inv.Status)
	assert.Equal(t, 1, h.repo.logCount())
}

func TestSend_RechazadoEnEstadosNoReenviables(t *testing.T) {
	for _, st := range []entity.Status{entity.StatusAuthorized, entity.StatusProcessing, entity.StatusCancelled, entity.StatusCancelPending} {
		t.Run(string(st), func(t *testing.T) {
			gw := &fakeGateway{provider: entity.ProviderFocusNFe, send: result("autorizado")}
			h := newHarness(gw)
			h.seed("REF", st)

			_, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF")
			assert.ErrorIs(t, err, domain.ErrCannotResend)
			assert.Zero(t, gw.sends.Load(), "no se llama al proveedor")
		})
	}
}

func TestSend_ReintentoDesdeError(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, send: result("processando_autorizacao")}
	h := newHarness(gw)
	h.seed("REF-E", entity.StatusError)

	inv, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-E")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, inv.Status)
}

func TestSend_EstadoDeErrorEnRespuesta2xxDevuelveRechazo(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		send: func(*entity.Invoice) (*nfse.ProviderResult, error) {
			return &nfse.ProviderResult{
				NativeStatus: "erro_autorizacao",
				HTTPStatus:   200,
				Message:      "Prestador não habilitado",
				Raw:          `{"status":"erro_autorizacao"}`,
			}, nil
		},
	}
	h := newHarness(gw)
	h.seed("REF-2XX", entity.StatusDraft)

	inv, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-2XX")
	var re *domain.ProviderRejectionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 200, re.StatusCode)
	assert.Equal(t, "erro_autorizacao", re.Code)
	assert.Equal(t, "Prestador não habilitado", re.Message)
	assert.Equal(t, entity.StatusError, inv.Status)

	stored, _ := h.repo.GetByReference(ctx, entity.ProviderFocusNFe, "REF-2XX")
	assert.Equal(t, entity.StatusError, stored.Status, "el error queda persistido")
	assert.Equal(t, entity.OutcomeError, h.repo.lastLog().Outcome)
}

func TestSend_XMLSinFirmaQuedaMarcadoEnBitacora(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		send: func(*entity.Invoice) (*nfse.ProviderResult, error) {
			return &nfse.ProviderResult{NativeStatus: "processando_autorizacao", HTTPStatus: 200, Message: "Lote recebido", Unsigned: true}, nil
		},
	}
	h := newHarness(gw)
	h.seed("REF-SF", entity.StatusDraft)

	_, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-SF")
	require.NoError(t, err)
	assert.Equal(t, "Lote recebido [signed=false]", h.repo.lastLog().Message)
}

func TestSend_RechazoDeXMLSinFirmaQuedaMarcado(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		send: func(*entity.Invoice) (*nfse.ProviderResult, error) {
			rej := &domain.ProviderRejectionError{Provider: "issdigital", StatusCode: 200, Code: "E160", Message: "Assinatura ausente"}
			return nil, errors.Join(rej, domain.ErrUnsignedPayload)
		},
	}
	h := newHarness(gw)
	h.seed("REF-SFR", entity.StatusDraft)

	_, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-SFR")
	assert.True(t, domain.IsRejection(err))
	entry := h.repo.lastLog()
	assert.Equal(t, "E160", entry.ProviderStatus)
	assert.Equal(t, "Assinatura ausente [signed=false]", entry.Message)
}

func TestSend_ValidacionNoTocaEstadoNiBitacora(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, send: result("autorizado")}
	h := newHarness(gw)
	inv := h.seed("REF-V", entity.StatusDraft)
	inv.Payer.Document = "123"
	require.NoError(t, h.repo.Update(ctx, inv))

	_, err := h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-V")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "payer.document", ve.Field)

	stored, _ := h.repo.GetByReference(ctx, entity.ProviderFocusNFe, "REF-V")
	assert.Equal(t, entity.StatusDraft, stored.Status)
	assert.Zero(t, h.repo.logCount())
	assert.Zero(t, gw.sends.Load())
}

func TestSend_ConfiguracionFaltanteAntesDeLaRed(t *testing.T) {
	gw := &fakeGateway{
		provider:  entity.ProviderISSDigital,
		preflight: &domain.ConfigurationError{Field: "cert", Message: "producción exige certificado"},
		send:      result(domnfseAuthorized),
	}
	h := newHarness(gw)
	h.seed("REF-C", entity.StatusDraft)

	_, err := h.svc.Send(ctx, entity.ProviderISSDigital, "REF-C")
	assert.True(t, domain.IsConfiguration(err))
	assert.Zero(t, gw.sends.Load())
	stored, _ := h.repo.GetByReference(ctx, entity.ProviderISSDigital, "REF-C")
	assert.Equal(t, entity.StatusDraft, stored.Status)
}

const domnfseAuthorized = "autorizado"

func TestSend_ConcurrentesUnaSolaLlamada(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		send: func(*entity.Invoice) (*nfse.ProviderResult, error) {
			time.Sleep(30 * time.Millisecond)
			return &nfse.ProviderResult{NativeStatus: "processando_autorizacao"}, nil
		},
	}
	h := newHarness(gw)
	h.seed("REF-X", entity.StatusDraft)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Send(ctx, entity.ProviderFocusNFe, "REF-X")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), gw.sends.Load(), "una sola transmisión por referencia")
	okCount := 0
	for _, err := range errs {
		if err == nil {
			okCount++
		} else {
			assert.ErrorIs(t, err, domain.ErrCannotResend)
		}
	}
	assert.Equal(t, 1, okCount)
}

// ── Query ─────────────────────────────────────────────────────────────────────

func TestQuery_BorradorNoTransmitido(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, query: result("autorizado")}
	h := newHarness(gw)
	h.seed("REF-D", entity.StatusDraft)

	_, err := h.svc.Query(ctx, entity.ProviderFocusNFe, "REF-D")
	assert.ErrorIs(t, err, domain.ErrNotSubmitted)
	assert.Zero(t, gw.queries.Load())
}

func TestQuery_FallaDeComunicacionNoMueveEstado(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		query: func(*entity.Invoice) (*nfse.ProviderResult, error) {
			return nil, &domain.CommunicationError{Provider: "focusnfe", StatusCode: 503, Err: errors.New("indisponível")}
		},
	}
	h := newHarness(gw)
	h.seed("REF-Q", entity.StatusProcessing)

	inv, err := h.svc.Query(ctx, entity.ProviderFocusNFe, "REF-Q")
	require.Error(t, err)
	assert.Equal(t, entity.StatusProcessing, inv.Status)
	require.Equal(t, 1, h.repo.logCount())
	assert.Equal(t, 503, h.repo.lastLog().HTTPStatus)
}

func TestQuery_EstadoDesconocidoEsError(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, query: result("status_inventado")}
	h := newHarness(gw)
	h.seed("REF-U", entity.StatusProcessing)

	inv, err := h.svc.Query(ctx, entity.ProviderFocusNFe, "REF-U")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusError, inv.Status)
}

func TestQuery_AutorizadaSinArtefactosReintenta(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, query: result("autorizado")}
	h := newHarness(gw)
	h.seed("REF-A", entity.StatusAuthorized)

	inv, err := h.svc.Query(ctx, entity.ProviderFocusNFe, "REF-A")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.True(t, inv.HasArtifacts())
	assert.Equal(t, 1, h.repo.logCount(), "la consulta explícita siempre se registra")
}

func TestQuery_PDFInvalidoNoRompeLaAutorizacion(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, query: result("autorizado")}
	h := newHarness(gw)
	h.fetcher.err = errors.New("contenido no es PDF")
	h.seed("REF-PDF", entity.StatusProcessing)

	inv, err := h.svc.Query(ctx, entity.ProviderFocusNFe, "REF-PDF")
	require.NoError(t, err, "la falla de artefactos no se propaga")
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.Empty(t, inv.PDFKey)
	assert.Empty(t, h.store.data)
}

// ── Cancel ────────────────────────────────────────────────────────────────────

func TestCancel_JustificacionCortaAntesDeLaRed(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		cancel: func(*entity.Invoice, string) (*nfse.ProviderResult, error) {
			return &nfse.ProviderResult{NativeStatus: "cancelado"}, nil
		},
	}
	h := newHarness(gw)
	h.seed("REF-C", entity.StatusAuthorized)

	_, err := h.svc.Cancel(ctx, entity.ProviderFocusNFe, "REF-C", "0123456789")
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, gw.cancels.Load())

	inv, err := h.svc.Cancel(ctx, entity.ProviderFocusNFe, "REF-C", reason20)
	require.NoError(t, err)
	assert.Equal(t, int32(1), gw.cancels.Load())
	assert.Equal(t, entity.StatusCancelled, inv.Status)
	assert.Equal(t, reason20, inv.CancelReason)
}

func TestCancel_PendienteLuegoWebhookConfirma(t *testing.T) {
	gw := &fakeGateway{
		provider: entity.ProviderFocusNFe,
		cancel: func(*entity.Invoice, string) (*nfse.ProviderResult, error) {
			return &nfse.ProviderResult{NativeStatus: "processando_cancelamento"}, nil
		},
	}
	h := newHarness(gw)
	h.seed("REF-P", entity.StatusAuthorized)

	inv, err := h.svc.Cancel(ctx, entity.ProviderFocusNFe, "REF-P", reason20)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelPending, inv.Status)

	inv, err = h.svc.ApplyStatusUpdate(ctx, nfse.StatusUpdate{
		Provider: entity.ProviderFocusNFe, Reference: "REF-P", NativeStatus: "cancelado",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, inv.Status)
}

func TestCancel_NoSoportado(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderPlugNotas}
	h := newHarness(gw)
	h.seed("REF-N", entity.StatusAuthorized)

	inv, err := h.svc.Cancel(ctx, entity.ProviderPlugNotas, "REF-N", reason20)
	assert.ErrorIs(t, err, domain.ErrCancelUnsupported)
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.Zero(t, h.repo.logCount())
}

func TestCancel_SoloAutorizadas(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, cancel: func(*entity.Invoice, string) (*nfse.ProviderResult, error) {
		return &nfse.ProviderResult{NativeStatus: "cancelado"}, nil
	}}
	h := newHarness(gw)
	h.seed("REF-S", entity.StatusProcessing)

	_, err := h.svc.Cancel(ctx, entity.ProviderFocusNFe, "REF-S", reason20)
	assert.ErrorIs(t, err, domain.ErrCannotCancel)
	assert.Zero(t, gw.cancels.Load())
}

func TestCancel_RechazoMantieneAutorizada(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe, cancel: func(*entity.Invoice, string) (*nfse.ProviderResult, error) {
		return nil, &domain.ProviderRejectionError{Provider: "focusnfe", Message: "prazo de cancelamento expirado"}
	}}
	h := newHarness(gw)
	h.seed("REF-RJ", entity.StatusAuthorized)

	inv, err := h.svc.Cancel(ctx, entity.ProviderFocusNFe, "REF-RJ", reason20)
	assert.True(t, domain.IsRejection(err))
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.Empty(t, inv.CancelReason)
	assert.Equal(t, "prazo de cancelamento expirado", h.repo.lastLog().Message)
}

// ── Webhook ───────────────────────────────────────────────────────────────────

func TestApplyStatusUpdate_Idempotente(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe}
	h := newHarness(gw)
	h.seed("REF-W", entity.StatusProcessing)

	upd := nfse.StatusUpdate{Provider: entity.ProviderFocusNFe, Reference: "REF-W", NativeStatus: "autorizado", Number: "77"}
	inv, err := h.svc.ApplyStatusUpdate(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.Equal(t, "77", inv.Number)
	logs := h.repo.logCount()
	fetches := h.fetcher.calls.Load()

	inv, err = h.svc.ApplyStatusUpdate(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.Equal(t, logs, h.repo.logCount(), "la reentrega no duplica la bitácora")
	assert.Equal(t, fetches, h.fetcher.calls.Load(), "ni vuelve a descargar artefactos")
}

func TestApplyStatusUpdate_AtrasadoSeIgnora(t *testing.T) {
	gw := &fakeGateway{provider: entity.ProviderFocusNFe}
	h := newHarness(gw)
	h.seed("REF-L", entity.StatusAuthorized)

	inv, err := h.svc.ApplyStatusUpdate(ctx, nfse.StatusUpdate{
		Provider: entity.ProviderFocusNFe, Reference: "REF-L", NativeStatus: "processando_autorizacao",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.Contains(t, h.repo.lastLog().Message, "ignorada")
}

func TestApplyStatusUpdate_ReferenciaInexistente(t *testing.T) {
	h := newHarness(&fakeGateway{provider: entity.ProviderFocusNFe})
	_, err := h.svc.ApplyStatusUpdate(ctx, nfse.StatusUpdate{Provider: entity.ProviderFocusNFe, Reference: "NOPE", NativeStatus: "autorizado"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ── Borrador: edición y borrado ───────────────────────────────────────────────

func TestDelete_SoloBorradorOError(t *testing.T) {
	h := newHarness(&fakeGateway{provider: entity.ProviderFocusNFe})
	h.seed("REF-1", entity.StatusAuthorized)
	h.seed("REF-2", entity.StatusDraft)

	assert.ErrorIs(t, h.svc.Delete(ctx, entity.ProviderFocusNFe, "REF-1"), domain.ErrCannotDelete)
	require.NoError(t, h.svc.Delete(ctx, entity.ProviderFocusNFe, "REF-2"))
	_, err := h.svc.Get(ctx, entity.ProviderFocusNFe, "REF-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReplaceLineItems_SoloEnBorrador(t *testing.T) {
	h := newHarness(&fakeGateway{provider: entity.ProviderFocusNFe})
	h.seed("REF-I", entity.StatusProcessing)

	_, err := h.svc.ReplaceLineItems(ctx, entity.ProviderFocusNFe, "REF-I", nil)
	assert.ErrorIs(t, err, domain.ErrNotEditable)
}

// ── Artefactos ────────────────────────────────────────────────────────────────

func TestArtifact_NoDisponibleEnProcessing(t *testing.T) {
	h := newHarness(&fakeGateway{provider: entity.ProviderFocusNFe})
	h.seed("REF-Z", entity.StatusProcessing)

	_, err := h.svc.Artifact(ctx, entity.ProviderFocusNFe, "REF-Z", nfse.ArtifactXML)
	assert.ErrorIs(t, err, domain.ErrArtifactUnavailable)
}
