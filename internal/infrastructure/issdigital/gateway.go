// Package issdigital integra el webservice SOAP de NFS-e de São Luís/MA (ISS Digital):
// lote de RPS firmado, consultas de lote, notas y RPS.
package issdigital

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	domnfse "github.com/jhoicas/nfse-api/internal/domain/nfse"
	"github.com/jhoicas/nfse-api/internal/infrastructure/issdigital/signer"
)

// Signer firma el elemento con el Id dado. nil = sin certificado.
type Signer interface {
	Sign(xml []byte, referenceID string) ([]byte, error)
}

// Config configuración inmutable del gateway.
type Config struct {
	Issuer       Issuer
	Homologation bool
	Endpoint     string // vacío = endpoint oficial del ambiente
	Timeout      time.Duration
}

// Gateway implementa nfse.ProviderGateway para ISS Digital.
type Gateway struct {
	cfg     Config
	builder *Builder
	client  *SOAPClient
	signer  Signer
	lots    *snowflake.Node
	log     zerolog.Logger
}

// NewGateway construye el gateway. sig puede ser nil (solo homologación).
func NewGateway(cfg Config, sig Signer, lots *snowflake.Node, log zerolog.Logger, now func() time.Time) (*Gateway, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = EndpointProduction
		if cfg.Homologation {
			cfg.Endpoint = EndpointHomologation
		}
	}
	if lots == nil {
		var err error
		if lots, err = snowflake.NewNode(1); err != nil {
			return nil, fmt.Errorf("iss: generador de lotes: %w", err)
		}
	}
	return &Gateway{
		cfg:     cfg,
		builder: NewBuilder(cfg.Issuer, now),
		client:  NewSOAPClient(cfg.Endpoint, cfg.Timeout),
		signer:  sig,
		lots:    lots,
		log:     log,
	}, nil
}

// Provider implementa nfse.ProviderGateway.
func (g *Gateway) Provider() entity.Provider { return entity.ProviderISSDigital }

// Preflight producción sin certificado es un error de configuración, nunca un envío sin firma.
func (g *Gateway) Preflight(inv *entity.Invoice) error {
	if err := g.requireCert(); err != nil {
		return err
	}
	if g.cfg.Issuer.InscricaoMunicipal == "" {
		return &domain.ConfigurationError{Field: "iss_digital.inscricao_municipal", Message: "inscripción municipal del remitente no configurada"}
	}
	if strings.Trim(g.cfg.Issuer.CNPJ, "0") == "" {
		return &domain.ConfigurationError{Field: "iss_digital.cnpj", Message: "CNPJ del remitente no configurado"}
	}
	if inv.RPS.Number <= 0 {
		return domain.NewValidationError("rps.number", "número de RPS obligatorio")
	}
	return nil
}

// Send transmite un lote con un RPS.
func (g *Gateway) Send(ctx context.Context, inv *entity.Invoice) (*appnfse.ProviderResult, error) {
	lotID := g.lots.Generate().String()
	payload, err := g.builder.LotXML(lotID, []RPSInput{{Invoice: inv, Situacao: SituacaoNormal}})
	if err != nil {
		return nil, err
	}
	signed, unsigned := g.sign(payload, signer.LotID(lotID), inv.Reference)
	resp, parsed, err := g.call(ctx, OpEnviar, signed)
	if err != nil {
		return nil, markUnsigned(err, unsigned)
	}
	if parsed.Fault != nil || parsed.Rejected() {
		return nil, markUnsigned(g.rejection(resp, parsed), unsigned)
	}
	res := g.interpret(resp, parsed, false)
	res.ProviderDocumentID = lotNumber(parsed, lotID)
	res.Unsigned = unsigned
	g.log.Info().Str("ref", inv.Reference).Str("lote", res.ProviderDocumentID).Str("status", res.NativeStatus).Msg("lote RPS enviado")
	return res, nil
}

// Query consulta el lote; sin número de lote cae a la consulta por RPS.
func (g *Gateway) Query(ctx context.Context, inv *entity.Invoice) (*appnfse.ProviderResult, error) {
	cancelling := inv.Status == entity.StatusCancelPending
	if inv.ProviderDocumentID == "" {
		resp, parsed, unsigned, err := g.consultarRPS(ctx, inv.RPS.Number)
		if err != nil {
			return nil, markUnsigned(err, unsigned)
		}
		if parsed.Fault != nil {
			return nil, markUnsigned(g.rejection(resp, parsed), unsigned)
		}
		res := g.interpret(resp, parsed, cancelling)
		res.Unsigned = unsigned
		return res, nil
	}

	resp, parsed, err := g.call(ctx, OpConsultarLote, g.builder.ConsultaLoteXML(inv.ProviderDocumentID))
	if err != nil {
		return nil, err
	}
	if parsed.Fault != nil {
		return nil, g.rejection(resp, parsed)
	}
	return g.interpret(resp, parsed, cancelling), nil
}

// Cancel reenvía el RPS con SituacaoRPS=C y el motivo. El número del lote de
// cancelación pasa a ser el documento a consultar.
func (g *Gateway) Cancel(ctx context.Context, inv *entity.Invoice, reason string) (*appnfse.ProviderResult, error) {
	if err := g.Preflight(inv); err != nil {
		return nil, err
	}
	lotID := g.lots.Generate().String()
	payload, err := g.builder.LotXML(lotID, []RPSInput{{Invoice: inv, Situacao: SituacaoCancelada, MotCancelamento: reason}})
	if err != nil {
		return nil, err
	}
	signed, unsigned := g.sign(payload, signer.LotID(lotID), inv.Reference)
	resp, parsed, err := g.call(ctx, OpEnviar, signed)
	if err != nil {
		return nil, markUnsigned(err, unsigned)
	}
	if parsed.Fault != nil || parsed.Rejected() {
		return nil, markUnsigned(g.rejection(resp, parsed), unsigned)
	}
	res := g.interpret(resp, parsed, true)
	res.ProviderDocumentID = lotNumber(parsed, lotID)
	res.CancelReason = reason
	res.Unsigned = unsigned
	return res, nil
}

// ArtifactCandidates ISS Digital no publica URLs; el XML llega en línea en la consulta.
func (g *Gateway) ArtifactCandidates(*entity.Invoice, *appnfse.ProviderResult) (pdf, xml []appnfse.ArtifactCandidate) {
	return nil, nil
}

// ── Consultas adicionales ─────────────────────────────────────────────────────

// ConsultarNotas notas emitidas en el período (máx. 100 por página, desde notaInicial).
func (g *Gateway) ConsultarNotas(ctx context.Context, from, to time.Time, notaInicial int64) (*Response, error) {
	payload, unsigned := g.sign(g.builder.ConsultaNotasXML(from, to, notaInicial), signer.ConsultaNotasID, "consulta-notas")
	resp, parsed, err := g.call(ctx, OpConsultarNota, payload)
	if err != nil {
		return nil, markUnsigned(err, unsigned)
	}
	if parsed.Fault != nil || parsed.Rejected() {
		return parsed, markUnsigned(g.rejection(resp, parsed), unsigned)
	}
	return parsed, nil
}

// ConsultarNFSeRps NFS-e generada por un número de RPS.
func (g *Gateway) ConsultarNFSeRps(ctx context.Context, numeroRPS int64) (*SOAPResponse, *Response, error) {
	resp, parsed, unsigned, err := g.consultarRPS(ctx, numeroRPS)
	return resp, parsed, markUnsigned(err, unsigned)
}

func (g *Gateway) consultarRPS(ctx context.Context, numeroRPS int64) (*SOAPResponse, *Response, bool, error) {
	payload, unsigned := g.sign(g.builder.ConsultaRPSXML(numeroRPS), signer.ConsultaRPSLotID, fmt.Sprintf("rps-%d", numeroRPS))
	resp, parsed, err := g.call(ctx, OpConsultarNFSeRps, payload)
	return resp, parsed, unsigned, err
}

// ── helpers ───────────────────────────────────────────────────────────────────

// requireCert producción sin certificado no transmite nada.
func (g *Gateway) requireCert() error {
	if !g.cfg.Homologation && g.signer == nil {
		return &domain.ConfigurationError{Field: "iss_digital.cert", Message: "producción exige certificado digital A1"}
	}
	return nil
}

// sign sin certificado (homologación) el XML sale tal cual. Una falla de firma se
// registra y el XML sale sin firma con unsigned=true para la bitácora.
func (g *Gateway) sign(payload []byte, referenceID, ref string) (out []byte, unsigned bool) {
	if g.signer == nil {
		g.log.Debug().Str("ref", ref).Bool("signed", false).Msg("XML sin firma (sin certificado)")
		return payload, false
	}
	signed, err := g.signer.Sign(payload, referenceID)
	if err != nil {
		g.log.Error().Err(err).Str("ref", ref).Str("reference_id", referenceID).Bool("signed", false).Msg("firma XML fallida")
		return payload, true
	}
	return signed, false
}

// markUnsigned adjunta domain.ErrUnsignedPayload a los errores de un envío sin firma.
func markUnsigned(err error, unsigned bool) error {
	if err == nil || !unsigned {
		return err
	}
	return errors.Join(err, domain.ErrUnsignedPayload)
}

func (g *Gateway) call(ctx context.Context, op string, payload []byte) (*SOAPResponse, *Response, error) {
	if err := g.requireCert(); err != nil {
		return nil, nil, err
	}
	resp, err := g.client.Call(ctx, op, payload)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := ParseResponse(resp.Body)
	if err != nil {
		return resp, nil, &domain.CommunicationError{Provider: string(entity.ProviderISSDigital), StatusCode: resp.StatusCode, Err: err}
	}
	if parsed.Fault == nil && resp.StatusCode >= http.StatusBadRequest && !parsed.Rejected() {
		return resp, nil, &domain.CommunicationError{
			Provider:   string(entity.ProviderISSDigital),
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(string(resp.Body), 500)),
		}
	}
	return resp, parsed, nil
}

func (g *Gateway) rejection(resp *SOAPResponse, parsed *Response) error {
	return &domain.ProviderRejectionError{
		Provider:   string(entity.ProviderISSDigital),
		StatusCode: resp.StatusCode,
		Code:       parsed.FirstErrorCode(),
		Message:    parsed.ErrorMessage(),
		Raw:        string(resp.Body),
	}
}

// interpret traduce la respuesta al vocabulario nativo de ISS Digital.
func (g *Gateway) interpret(resp *SOAPResponse, parsed *Response, cancelling bool) *appnfse.ProviderResult {
	res := &appnfse.ProviderResult{HTTPStatus: resp.StatusCode, Raw: string(resp.Body)}
	switch {
	case parsed.Rejected():
		res.NativeStatus = domnfse.ISSStatusRejected
		res.Message = parsed.ErrorMessage()
	case len(parsed.Notes) > 0:
		n := parsed.Notes[0]
		res.NativeStatus = domnfse.ISSStatusAuthorized
		if cancelling {
			res.NativeStatus = domnfse.ISSStatusCancelled
		}
		res.Number = n.NumeroNFe
		res.VerificationCode = n.CodigoVerificacao
		res.XML = parsed.Inner
	default:
		res.NativeStatus = domnfse.ISSStatusProcessing
		if cancelling {
			res.NativeStatus = domnfse.ISSStatusCancelPending
		}
	}
	if res.Message == "" && len(parsed.Alerts) > 0 {
		res.Message = parsed.Alerts[0].String()
	}
	return res
}

func lotNumber(parsed *Response, fallback string) string {
	if parsed.NumeroLote != "" {
		return parsed.NumeroLote
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ appnfse.ProviderGateway = (*Gateway)(nil)
