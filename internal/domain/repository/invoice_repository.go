package repository

import (
	"context"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// InvoiceRepository puerto de persistencia de la NFS-e, sus líneas y su bitácora.
// Los métodos Get* devuelven (nil, nil) si no existe.
type InvoiceRepository interface {
	// Create inserta cabecera y líneas. ErrDuplicate si (provider, reference) ya existe.
	Create(ctx context.Context, inv *entity.Invoice) error
	// Update persiste estado, identificadores del proveedor y referencias a artefactos.
	Update(ctx context.Context, inv *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetByReference(ctx context.Context, provider entity.Provider, reference string) (*entity.Invoice, error)
	ListByStatus(ctx context.Context, statuses []entity.Status, limit int) ([]*entity.Invoice, error)
	ReplaceLineItems(ctx context.Context, invoiceID string, items []entity.LineItem) error
	Delete(ctx context.Context, id string) error

	AppendLog(ctx context.Context, entry *entity.ResponseLogEntry) error
	ListLog(ctx context.Context, invoiceID string) ([]entity.ResponseLogEntry, error)

	// NextRPSNumber número secuencial del RPS (ISS Digital).
	NextRPSNumber(ctx context.Context) (int64, error)
}
