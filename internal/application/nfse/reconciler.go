package nfse

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
)

// Reconciler consulta periódicamente las notas que esperan respuesta del proveedor.
type Reconciler struct {
	repo      repository.InvoiceRepository
	service   *Service
	batchSize int
	log       zerolog.Logger
}

// ReconcileReport resumen de una pasada.
type ReconcileReport struct {
	Checked int
	Changed int
	Skipped int // referencia ocupada por otra operación
	Failed  int
}

// NewReconciler construye el conciliador. batchSize <= 0 usa 50.
func NewReconciler(repo repository.InvoiceRepository, service *Service, batchSize int, log zerolog.Logger) *Reconciler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Reconciler{repo: repo, service: service, batchSize: batchSize, log: log}
}

// RunOnce recorre las notas en processing y cancel_pending. Una falla en una nota
// no detiene la pasada.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	pending, err := r.repo.ListByStatus(ctx, []entity.Status{entity.StatusProcessing, entity.StatusCancelPending}, r.batchSize)
	if err != nil {
		return rep, err
	}
	for _, inv := range pending {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		rep.Checked++
		before := inv.Status
		updated, err := r.service.Query(ctx, inv.Provider, inv.Reference)
		switch {
		case errors.Is(err, domain.ErrOperationInProgress):
			rep.Skipped++
		case err != nil:
			rep.Failed++
			r.log.Warn().Err(err).Str("provider", string(inv.Provider)).Str("ref", inv.Reference).Msg("conciliación fallida")
		case updated != nil && updated.Status != before:
			rep.Changed++
		}
	}
	if rep.Checked > 0 {
		r.log.Info().
			Int("checked", rep.Checked).
			Int("changed", rep.Changed).
			Int("skipped", rep.Skipped).
			Int("failed", rep.Failed).
			Msg("pasada de conciliación")
	}
	return rep, nil
}
