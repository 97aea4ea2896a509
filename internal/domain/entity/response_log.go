package entity

import "time"

// Operaciones registradas en la bitácora de respuestas.
const (
	OpSend    = "send"
	OpQuery   = "query"
	OpCancel  = "cancel"
	OpWebhook = "webhook"
	OpEmail   = "email"
)

// Resultado de cada entrada.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeProcessing = "processing"
)

// ResponseLogEntry respuesta de un proveedor. Solo se agrega; nunca se modifica.
type ResponseLogEntry struct {
	ID             string
	InvoiceID      string
	Operation      string
	Outcome        string
	HTTPStatus     int
	ProviderStatus string
	Message        string
	Body           string // payload crudo (JSON, XML o texto)
	CreatedAt      time.Time
}

// OutcomeFor traduce el estado canónico al resultado de la bitácora.
func OutcomeFor(s Status) string {
	switch s {
	case StatusAuthorized, StatusCancelled:
		return OutcomeSuccess
	case StatusProcessing, StatusCancelPending:
		return OutcomeProcessing
	default:
		return OutcomeError
	}
}
