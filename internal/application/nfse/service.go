package nfse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	domnfse "github.com/jhoicas/nfse-api/internal/domain/nfse"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
)

// Service máquina de estados de la NFS-e: única puerta de entrada para emitir,
// consultar, cancelar y aplicar actualizaciones de webhook.
//
// Toda operación sobre una referencia corre bajo Locker durante la llamada al
// proveedor y la conciliación, así un webhook y un poll nunca se pisan.
type Service struct {
	repo     repository.InvoiceRepository
	tx       TxRunner
	registry *Registry
	locker   Locker
	fetcher  ArtifactFetcher
	store    ArtifactStore
	log      zerolog.Logger
	now      func() time.Time
}

// Deps dependencias del servicio. Fetcher y Store pueden ser nil (sin artefactos).
type Deps struct {
	Repo     repository.InvoiceRepository
	Tx       TxRunner
	Registry *Registry
	Locker   Locker
	Fetcher  ArtifactFetcher
	Store    ArtifactStore
	Logger   zerolog.Logger
	Now      func() time.Time
}

// NewService construye el servicio.
func NewService(d Deps) *Service {
	s := &Service{
		repo:     d.Repo,
		tx:       d.Tx,
		registry: d.Registry,
		locker:   d.Locker,
		fetcher:  d.Fetcher,
		store:    d.Store,
		log:      d.Logger,
		now:      d.Now,
	}
	if s.locker == nil {
		s.locker = NewKeyedMutex()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// StatusUpdate evento asíncrono del proveedor (webhook).
type StatusUpdate struct {
	Provider         entity.Provider
	Reference        string
	NativeStatus     string
	Number           string
	VerificationCode string
	CancelReason     string
	Message          string
	Raw              string
}

// ── Borrador ──────────────────────────────────────────────────────────────────

// Create persiste la nota en borrador. Asigna referencia si no viene y número de RPS para ISS Digital.
func (s *Service) Create(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	if inv == nil {
		return nil, domain.NewValidationError("invoice", "nota vacía")
	}
	if !inv.Provider.Valid() {
		return nil, domain.NewValidationError("provider", "proveedor no soportado: "+string(inv.Provider))
	}
	if _, err := s.registry.Get(inv.Provider); err != nil {
		return nil, &domain.ConfigurationError{Field: "provider", Message: err.Error()}
	}
	if err := domnfse.ValidateLineItems(inv.LineItems); err != nil {
		return nil, err
	}

	now := s.now()
	inv.ID = uuid.New().String()
	inv.Reference = strings.TrimSpace(inv.Reference)
	if inv.Reference == "" {
		inv.Reference = "NFSE-" + strings.ReplaceAll(inv.ID, "-", "")[:20]
	}
	inv.Status = entity.StatusDraft
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if code, err := domnfse.DeriveTaxClassificationCode(inv.ServiceCode); err == nil {
		inv.TaxClassificationCode = code
	}
	if inv.Provider == entity.ProviderISSDigital && inv.RPS.Number == 0 {
		n, err := s.repo.NextRPSNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("nfse: número de RPS: %w", err)
		}
		inv.RPS.Number = n
	}
	for i := range inv.LineItems {
		inv.LineItems[i].ID = uuid.New().String()
		inv.LineItems[i].InvoiceID = inv.ID
		inv.LineItems[i].Position = i + 1
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.log.Info().Str("provider", string(inv.Provider)).Str("ref", inv.Reference).Msg("nota creada en borrador")
	return inv, nil
}

// Get devuelve la nota con su bitácora.
func (s *Service) Get(ctx context.Context, provider entity.Provider, ref string) (*entity.Invoice, error) {
	inv, err := s.load(ctx, provider, ref)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.ListLog(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("nfse: leer bitácora: %w", err)
	}
	inv.ResponseLog = logs
	return inv, nil
}

// ReplaceLineItems sustituye las líneas; solo en borrador.
func (s *Service) ReplaceLineItems(ctx context.Context, provider entity.Provider, ref string, items []entity.LineItem) (*entity.Invoice, error) {
	if err := domnfse.ValidateLineItems(items); err != nil {
		return nil, err
	}
	var out *entity.Invoice
	err := s.withLock(ctx, provider, ref, func() error {
		inv, err := s.load(ctx, provider, ref)
		if err != nil {
			return err
		}
		if err := domnfse.CanEdit(inv.Status); err != nil {
			return err
		}
		for i := range items {
			items[i].ID = uuid.New().String()
			items[i].InvoiceID = inv.ID
			items[i].Position = i + 1
		}
		inv.LineItems = items
		inv.UpdatedAt = s.now()
		err = s.tx.RunInvoice(ctx, func(repo repository.InvoiceRepository) error {
			if err := repo.ReplaceLineItems(ctx, inv.ID, items); err != nil {
				return err
			}
			return repo.Update(ctx, inv)
		})
		out = inv
		return err
	})
	return out, err
}

// Delete elimina borradores o notas con error; la bitácora cae en cascada.
func (s *Service) Delete(ctx context.Context, provider entity.Provider, ref string) error {
	return s.withLock(ctx, provider, ref, func() error {
		inv, err := s.load(ctx, provider, ref)
		if err != nil {
			return err
		}
		if err := domnfse.CanDelete(inv.Status); err != nil {
			return err
		}
		return s.repo.Delete(ctx, inv.ID)
	})
}

// ── Emisión ───────────────────────────────────────────────────────────────────

// Send transmite la nota. Solo desde borrador o error; validación y configuración
// fallan antes de cambiar el estado y sin registrar nada.
func (s *Service) Send(ctx context.Context, provider entity.Provider, ref string) (*entity.Invoice, error) {
	var out *entity.Invoice
	err := s.withLock(ctx, provider, ref, func() error {
		inv, err := s.load(ctx, provider, ref)
		if err != nil {
			return err
		}
		out = inv
		if err := domnfse.CanSend(inv.Status); err != nil {
			return err
		}
		if err := domnfse.Validate(inv); err != nil {
			return err
		}
		gw, err := s.registry.Get(inv.Provider)
		if err != nil {
			return &domain.ConfigurationError{Field: "provider", Message: err.Error()}
		}
		if err := gw.Preflight(inv); err != nil {
			return err
		}
		if code, err := domnfse.DeriveTaxClassificationCode(inv.ServiceCode); err == nil {
			inv.TaxClassificationCode = code
		}

		inv.Status = entity.StatusProcessing
		inv.StatusMessage = ""
		inv.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("nfse: marcar processing: %w", err)
		}

		res, sendErr := gw.Send(ctx, inv)
		if sendErr != nil {
			return s.failSend(ctx, inv, sendErr)
		}
		if res.ProviderDocumentID != "" {
			inv.ProviderDocumentID = res.ProviderDocumentID
		}
		if err := s.reconcile(ctx, inv, gw, entity.OpSend, res, false); err != nil {
			return err
		}
		// 2xx cuyo estado nativo se traduce a error: rechazo para el llamador.
		if inv.Status == entity.StatusError {
			msg := inv.StatusMessage
			if msg == "" {
				msg = fmt.Sprintf("el proveedor devolvió el estado %q", res.NativeStatus)
			}
			return &domain.ProviderRejectionError{
				Provider:   string(inv.Provider),
				StatusCode: res.HTTPStatus,
				Code:       res.NativeStatus,
				Message:    msg,
				Raw:        res.Raw,
			}
		}
		return nil
	})
	return out, err
}

// failSend toda falla de transporte o rechazo al emitir deja la nota en error y en la bitácora.
func (s *Service) failSend(ctx context.Context, inv *entity.Invoice, sendErr error) error {
	entry := s.errorEntry(inv, entity.OpSend, sendErr)
	inv.Status = entity.StatusError
	inv.StatusMessage = entry.Message
	inv.UpdatedAt = s.now()
	if err := s.persist(ctx, inv, entry); err != nil {
		s.log.Error().Err(err).Str("ref", inv.Reference).Msg("no se pudo persistir el error de envío")
	}
	s.log.Warn().Err(sendErr).Str("provider", string(inv.Provider)).Str("ref", inv.Reference).Msg("envío fallido")
	return sendErr
}

// ── Consulta / webhook ────────────────────────────────────────────────────────

// Query consulta al proveedor y concilia. Fallas de consulta se registran sin mover el estado.
func (s *Service) Query(ctx context.Context, provider entity.Provider, ref string) (*entity.Invoice, error) {
	var out *entity.Invoice
	err := s.withLock(ctx, provider, ref, func() error {
		inv, err := s.load(ctx, provider, ref)
		if err != nil {
			return err
		}
		out = inv
		if inv.Status == entity.StatusDraft {
			return domain.ErrNotSubmitted
		}
		gw, err := s.registry.Get(inv.Provider)
		if err != nil {
			return &domain.ConfigurationError{Field: "provider", Message: err.Error()}
		}
		res, qErr := gw.Query(ctx, inv)
		if qErr != nil {
			if domain.IsValidation(qErr) || domain.IsConfiguration(qErr) || errors.Is(qErr, domain.ErrNotSubmitted) {
				return qErr
			}
			entry := s.errorEntry(inv, entity.OpQuery, qErr)
			if err := s.repo.AppendLog(ctx, entry); err != nil {
				s.log.Error().Err(err).Str("ref", inv.Reference).Msg("no se pudo registrar la consulta fallida")
			}
			return qErr
		}
		return s.reconcile(ctx, inv, gw, entity.OpQuery, res, false)
	})
	return out, err
}

// ApplyStatusUpdate aplica un evento de webhook. Idempotente: el mismo estado
// entregado dos veces no transiciona ni registra de nuevo.
func (s *Service) ApplyStatusUpdate(ctx context.Context, u StatusUpdate) (*entity.Invoice, error) {
	if strings.TrimSpace(u.Reference) == "" {
		return nil, domain.NewValidationError("reference", "referencia obligatoria")
	}
	var out *entity.Invoice
	err := s.withLock(ctx, u.Provider, u.Reference, func() error {
		inv, err := s.load(ctx, u.Provider, u.Reference)
		if err != nil {
			return err
		}
		out = inv
		gw, err := s.registry.Get(inv.Provider)
		if err != nil {
			return &domain.ConfigurationError{Field: "provider", Message: err.Error()}
		}
		res := &ProviderResult{
			NativeStatus:     u.NativeStatus,
			Number:           u.Number,
			VerificationCode: u.VerificationCode,
			CancelReason:     u.CancelReason,
			Message:          u.Message,
			Raw:              u.Raw,
		}
		return s.reconcile(ctx, inv, gw, entity.OpWebhook, res, true)
	})
	return out, err
}

// ── Cancelación ───────────────────────────────────────────────────────────────

// Cancel solicita la cancelación. La justificación (15 a 255) y el estado se
// validan antes de la red. Rechazo o falla de transporte dejan la nota autorizada.
func (s *Service) Cancel(ctx context.Context, provider entity.Provider, ref, justification string) (*entity.Invoice, error) {
	reason, err := domnfse.NormalizeCancelReason(justification)
	if err != nil {
		return nil, err
	}
	var out *entity.Invoice
	err = s.withLock(ctx, provider, ref, func() error {
		inv, err := s.load(ctx, provider, ref)
		if err != nil {
			return err
		}
		out = inv
		if err := domnfse.CanCancel(inv.Status); err != nil {
			return err
		}
		gw, err := s.registry.Get(inv.Provider)
		if err != nil {
			return &domain.ConfigurationError{Field: "provider", Message: err.Error()}
		}

		res, cErr := gw.Cancel(ctx, inv, reason)
		if cErr != nil {
			if errors.Is(cErr, domain.ErrCancelUnsupported) || domain.IsValidation(cErr) || domain.IsConfiguration(cErr) {
				return cErr
			}
			entry := s.errorEntry(inv, entity.OpCancel, cErr)
			inv.StatusMessage = entry.Message
			inv.UpdatedAt = s.now()
			if err := s.persist(ctx, inv, entry); err != nil {
				s.log.Error().Err(err).Str("ref", inv.Reference).Msg("no se pudo persistir el error de cancelación")
			}
			return cErr
		}

		mapped, known := domnfse.MapStatus(inv.Provider, res.NativeStatus)
		if !known {
			s.log.Warn().Str("provider", string(inv.Provider)).Str("status", res.NativeStatus).Msg("estado de cancelación desconocido")
		}
		next := domnfse.CancelOutcome(mapped)
		if res.ProviderDocumentID != "" {
			inv.ProviderDocumentID = res.ProviderDocumentID
		}
		inv.Status = next
		inv.ProviderStatus = res.NativeStatus
		inv.StatusMessage = res.Message
		inv.UpdatedAt = s.now()
		if next != entity.StatusAuthorized {
			inv.CancelReason = reason
		}
		entry := s.entry(inv, entity.OpCancel, entity.OutcomeFor(mapped), res)
		if err := s.persist(ctx, inv, entry); err != nil {
			return err
		}
		s.log.Info().Str("ref", inv.Reference).Str("status", string(next)).Msg("cancelación procesada")
		return nil
	})
	return out, err
}

// ResendEmail reenvía la nota autorizada por e-mail (solo proveedores que lo soportan).
func (s *Service) ResendEmail(ctx context.Context, provider entity.Provider, ref string, emails []string) error {
	if len(emails) == 0 {
		return domain.NewValidationError("emails", "al menos un e-mail")
	}
	return s.withLock(ctx, provider, ref, func() error {
		inv, err := s.load(ctx, provider, ref)
		if err != nil {
			return err
		}
		if inv.Status != entity.StatusAuthorized {
			return domain.ErrInvalidTransition
		}
		gw, err := s.registry.Get(inv.Provider)
		if err != nil {
			return &domain.ConfigurationError{Field: "provider", Message: err.Error()}
		}
		resender, ok := gw.(EmailResender)
		if !ok {
			return domain.ErrOperationUnsupported
		}
		res, rErr := resender.ResendEmail(ctx, inv, emails)
		if rErr != nil {
			if appendErr := s.repo.AppendLog(ctx, s.errorEntry(inv, entity.OpEmail, rErr)); appendErr != nil {
				s.log.Error().Err(appendErr).Msg("no se pudo registrar el reenvío fallido")
			}
			return rErr
		}
		return s.repo.AppendLog(ctx, s.entry(inv, entity.OpEmail, entity.OutcomeSuccess, res))
	})
}

// ── Artefactos ────────────────────────────────────────────────────────────────

// Artifact devuelve el PDF o XML guardado. Si falta y la nota está autorizada,
// reintenta la descarga una vez.
func (s *Service) Artifact(ctx context.Context, provider entity.Provider, ref string, kind ArtifactKind) ([]byte, error) {
	inv, err := s.load(ctx, provider, ref)
	if err != nil {
		return nil, err
	}
	key := artifactKey(inv, kind)
	if key != "" && s.store != nil {
		data, err := s.store.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		s.log.Warn().Err(err).Str("key", key).Msg("artefacto registrado pero no legible")
	}
	if inv.Status != entity.StatusAuthorized && inv.Status != entity.StatusCancelled {
		return nil, domain.ErrArtifactUnavailable
	}

	var data []byte
	err = s.withLock(ctx, provider, ref, func() error {
		inv, err := s.load(ctx, provider, ref)
		if err != nil {
			return err
		}
		gw, err := s.registry.Get(inv.Provider)
		if err != nil {
			return err
		}
		s.fetchArtifacts(ctx, inv, gw, &ProviderResult{})
		if key := artifactKey(inv, kind); key != "" && s.store != nil {
			data, err = s.store.Get(ctx, key)
			return err
		}
		return domain.ErrArtifactUnavailable
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ── Conciliación ──────────────────────────────────────────────────────────────

// reconcile traduce la respuesta, decide la transición y persiste estado + bitácora
// en una sola transacción. dedupe=true descarta la reentrega exacta (webhook).
func (s *Service) reconcile(ctx context.Context, inv *entity.Invoice, gw ProviderGateway, op string, res *ProviderResult, dedupe bool) error {
	mapped, known := domnfse.MapStatus(inv.Provider, res.NativeStatus)
	if !known {
		s.log.Warn().
			Str("provider", string(inv.Provider)).
			Str("ref", inv.Reference).
			Str("status", res.NativeStatus).
			Msg("estado desconocido del proveedor, se trata como error")
	}
	next, changed := domnfse.Transition(inv.Status, mapped)

	if dedupe && !changed && strings.EqualFold(inv.ProviderStatus, res.NativeStatus) {
		s.log.Debug().Str("ref", inv.Reference).Str("status", res.NativeStatus).Msg("actualización repetida, sin efecto")
		return nil
	}

	prev := inv.Status
	if changed {
		inv.Status = next
		inv.ProviderStatus = res.NativeStatus
		inv.StatusMessage = res.Message
		if next == entity.StatusAuthorized {
			s.captureAuthorization(inv, res)
		}
		if next == entity.StatusCancelled && res.CancelReason != "" && inv.CancelReason == "" {
			inv.CancelReason = res.CancelReason
		}
	} else if prev == mapped {
		inv.ProviderStatus = res.NativeStatus
		if mapped == entity.StatusAuthorized {
			s.captureAuthorization(inv, res)
		}
	}
	inv.UpdatedAt = s.now()

	entry := s.entry(inv, op, entity.OutcomeFor(mapped), res)
	if !changed && prev != mapped {
		entry.Message = strings.TrimSpace(fmt.Sprintf("actualización ignorada: %s no aplica sobre %s. %s", mapped, prev, entry.Message))
		s.log.Info().Str("ref", inv.Reference).Str("current", string(prev)).Str("incoming", string(mapped)).Msg("actualización atrasada ignorada")
	}
	if err := s.persist(ctx, inv, entry); err != nil {
		return err
	}
	if changed {
		s.log.Info().
			Str("provider", string(inv.Provider)).
			Str("ref", inv.Reference).
			Str("from", string(prev)).
			Str("to", string(next)).
			Msg("estado conciliado")
	}

	if inv.Status == entity.StatusAuthorized && (changed || !inv.HasArtifacts()) {
		s.fetchArtifacts(ctx, inv, gw, res)
	}
	return nil
}

func (s *Service) captureAuthorization(inv *entity.Invoice, res *ProviderResult) {
	if res.Number != "" {
		inv.Number = res.Number
	}
	if res.VerificationCode != "" {
		inv.VerificationCode = res.VerificationCode
	}
	if res.IssuedAt != nil {
		inv.IssuedAt = res.IssuedAt
	} else if inv.IssuedAt == nil {
		t := s.now()
		inv.IssuedAt = &t
	}
}

// fetchArtifacts descarga y guarda PDF/XML. Nunca falla la operación: la nota sigue
// autorizada y una consulta posterior reintenta lo que falte.
func (s *Service) fetchArtifacts(ctx context.Context, inv *entity.Invoice, gw ProviderGateway, res *ProviderResult) {
	if s.store == nil {
		return
	}
	pdfCands, xmlCands := gw.ArtifactCandidates(inv, res)
	updated := false

	if inv.PDFKey == "" && s.fetcher != nil && len(pdfCands) > 0 {
		if data, err := s.fetcher.Fetch(ctx, ArtifactPDF, pdfCands); err != nil {
			s.log.Warn().Err(err).Str("ref", inv.Reference).Msg("PDF no disponible")
		} else if key, err := s.storeArtifact(ctx, inv, ArtifactPDF, data); err != nil {
			s.log.Warn().Err(err).Str("ref", inv.Reference).Msg("no se pudo guardar el PDF")
		} else {
			inv.PDFKey, updated = key, true
		}
	}

	if inv.XMLKey == "" {
		data := res.XML
		if len(data) == 0 && s.fetcher != nil && len(xmlCands) > 0 {
			var err error
			if data, err = s.fetcher.Fetch(ctx, ArtifactXML, xmlCands); err != nil {
				s.log.Warn().Err(err).Str("ref", inv.Reference).Msg("XML no disponible")
			}
		}
		if len(data) > 0 {
			if key, err := s.storeArtifact(ctx, inv, ArtifactXML, data); err != nil {
				s.log.Warn().Err(err).Str("ref", inv.Reference).Msg("no se pudo guardar el XML")
			} else {
				inv.XMLKey, updated = key, true
			}
		}
	}

	if updated {
		inv.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, inv); err != nil {
			s.log.Error().Err(err).Str("ref", inv.Reference).Msg("no se pudieron registrar los artefactos")
		}
	}
}

func (s *Service) storeArtifact(ctx context.Context, inv *entity.Invoice, kind ArtifactKind, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s/%s.%s", inv.Provider, inv.Reference, inv.ID, kind)
	if err := s.store.Put(ctx, key, kind.ContentType(), data); err != nil {
		return "", err
	}
	return key, nil
}

func artifactKey(inv *entity.Invoice, kind ArtifactKind) string {
	if kind == ArtifactPDF {
		return inv.PDFKey
	}
	return inv.XMLKey
}

// ── helpers privados ──────────────────────────────────────────────────────────

func (s *Service) withLock(ctx context.Context, provider entity.Provider, ref string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, lockKey(provider, ref))
	if err != nil {
		if errors.Is(err, domain.ErrOperationInProgress) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrOperationInProgress, err)
	}
	defer release()
	return fn()
}

func lockKey(provider entity.Provider, ref string) string {
	return string(provider) + ":" + ref
}

func (s *Service) load(ctx context.Context, provider entity.Provider, ref string) (*entity.Invoice, error) {
	inv, err := s.repo.GetByReference(ctx, provider, ref)
	if err != nil {
		return nil, fmt.Errorf("nfse: leer nota: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func (s *Service) persist(ctx context.Context, inv *entity.Invoice, entry *entity.ResponseLogEntry) error {
	return s.tx.RunInvoice(ctx, func(repo repository.InvoiceRepository) error {
		if err := repo.Update(ctx, inv); err != nil {
			return err
		}
		return repo.AppendLog(ctx, entry)
	})
}

func (s *Service) entry(inv *entity.Invoice, op, outcome string, res *ProviderResult) *entity.ResponseLogEntry {
	return &entity.ResponseLogEntry{
		ID:             uuid.New().String(),
		InvoiceID:      inv.ID,
		Operation:      op,
		Outcome:        outcome,
		HTTPStatus:     res.HTTPStatus,
		ProviderStatus: res.NativeStatus,
		Message:        markUnsigned(res.Message, res.Unsigned),
		Body:           res.Raw,
		CreatedAt:      s.now(),
	}
}

// errorEntry conserva el texto literal del proveedor y el cuerpo crudo.
func (s *Service) errorEntry(inv *entity.Invoice, op string, err error) *entity.ResponseLogEntry {
	e := &entity.ResponseLogEntry{
		ID:        uuid.New().String(),
		InvoiceID: inv.ID,
		Operation: op,
		Outcome:   entity.OutcomeError,
		Message:   err.Error(),
		CreatedAt: s.now(),
	}
	var rej *domain.ProviderRejectionError
	var comm *domain.CommunicationError
	switch {
	case errors.As(err, &rej):
		e.HTTPStatus = rej.StatusCode
		e.ProviderStatus = rej.Code
		e.Message = rej.Message
		e.Body = rej.Raw
	case errors.As(err, &comm):
		e.HTTPStatus = comm.StatusCode
	}
	e.Message = markUnsigned(e.Message, errors.Is(err, domain.ErrUnsignedPayload))
	return e
}

// markUnsigned deja constancia en la bitácora de un XML transmitido sin firma.
func markUnsigned(msg string, unsigned bool) string {
	if !unsigned || strings.Contains(msg, "signed=false") {
		return msg
	}
	return strings.TrimSpace(msg + " [signed=false]")
}
