// Package nfse orquesta la emisión, consulta y cancelación de NFS-e sobre
// los proveedores configurados y concilia sus estados con la máquina de estados canónica.
package nfse

import (
	"context"
	"time"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
)

// ProviderResult respuesta de negocio de un proveedor, ya interpretada por su gateway.
type ProviderResult struct {
	NativeStatus       string // vocabulario del proveedor, se traduce con nfse.MapStatus
	HTTPStatus         int
	ProviderDocumentID string
	Number             string
	VerificationCode   string
	IssuedAt           *time.Time
	Message            string
	CancelReason       string
	Raw                string // cuerpo crudo para la bitácora

	PDFURL string // URLs informadas por el proveedor (ej. url_danfse)
	XMLURL string
	XML    []byte // XML devuelto en línea (ISS Digital)

	Unsigned bool // el payload salió sin firma por una falla del firmador
}

// ProviderGateway variante por proveedor: arma el payload, transmite e interpreta.
// Errores esperados: *domain.ValidationError y *domain.ConfigurationError antes de la red;
// *domain.CommunicationError y *domain.ProviderRejectionError después.
type ProviderGateway interface {
	Provider() entity.Provider
	// Preflight valida reglas del proveedor y la configuración sin tocar la red.
	Preflight(inv *entity.Invoice) error
	Send(ctx context.Context, inv *entity.Invoice) (*ProviderResult, error)
	Query(ctx context.Context, inv *entity.Invoice) (*ProviderResult, error)
	// Cancel devuelve domain.ErrCancelUnsupported si el proveedor no cancela.
	Cancel(ctx context.Context, inv *entity.Invoice, reason string) (*ProviderResult, error)
	// ArtifactCandidates URLs candidatas en orden de prioridad para PDF y XML.
	ArtifactCandidates(inv *entity.Invoice, res *ProviderResult) (pdf, xml []ArtifactCandidate)
}

// EmailResender lo implementan los gateways que reenvían la nota por e-mail.
type EmailResender interface {
	ResendEmail(ctx context.Context, inv *entity.Invoice, emails []string) (*ProviderResult, error)
}

// ArtifactKind tipo de artefacto.
type ArtifactKind string

const (
	ArtifactPDF ArtifactKind = "pdf"
	ArtifactXML ArtifactKind = "xml"
)

// ContentType tipo MIME del artefacto.
func (k ArtifactKind) ContentType() string {
	if k == ArtifactPDF {
		return "application/pdf"
	}
	return "application/xml"
}

// ArtifactCandidate URL a intentar, con los headers de autenticación que exige.
// Headers vacío = URL pública (ej. bucket S3 del proveedor).
type ArtifactCandidate struct {
	URL     string
	Headers map[string]string
}

// ArtifactFetcher descarga el primer candidato válido.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, kind ArtifactKind, candidates []ArtifactCandidate) ([]byte, error)
}

// ArtifactStore guarda los binarios fuera de la tabla de notas.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Locker exclusión mutua por referencia. release siempre debe llamarse.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// TxRunner ejecuta fn dentro de una transacción con el repositorio atado a ella.
type TxRunner interface {
	RunInvoice(ctx context.Context, fn func(repo repository.InvoiceRepository) error) error
}

// RPSPrinter genera el espelho del RPS en PDF (sin valor fiscal).
type RPSPrinter interface {
	Generate(inv *entity.Invoice) ([]byte, error)
}
