package nfse

import (
	"context"
	"fmt"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
)

// RPSPrintUseCase genera el espelho del RPS: representación local, sin valor fiscal,
// útil antes de que el proveedor devuelva la DANFSE.
type RPSPrintUseCase struct {
	repo    repository.InvoiceRepository
	printer RPSPrinter
}

// NewRPSPrintUseCase construye el caso de uso.
func NewRPSPrintUseCase(repo repository.InvoiceRepository, printer RPSPrinter) *RPSPrintUseCase {
	return &RPSPrintUseCase{repo: repo, printer: printer}
}

// Print devuelve el PDF y un nombre de archivo sugerido.
//
// Retorna:
//   - domain.ErrNotFound si la referencia no existe.
//   - domain.ErrOperationUnsupported si no hay generador configurado.
func (uc *RPSPrintUseCase) Print(ctx context.Context, provider entity.Provider, ref string) ([]byte, string, error) {
	if uc.printer == nil {
		return nil, "", domain.ErrOperationUnsupported
	}
	inv, err := uc.repo.GetByReference(ctx, provider, ref)
	if err != nil {
		return nil, "", fmt.Errorf("espelho: leer nota: %w", err)
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}
	data, err := uc.printer.Generate(inv)
	if err != nil {
		return nil, "", fmt.Errorf("espelho: generación fallida: %w", err)
	}
	return data, fmt.Sprintf("espelho_%s.pdf", inv.Reference), nil
}
