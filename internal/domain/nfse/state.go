package nfse

import (
	"strings"
	"unicode/utf8"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// Límites de la justificación de cancelación (en caracteres, tras recortar espacios).
const (
	MinCancelReason = 15
	MaxCancelReason = 255
)

// CanSend solo se transmite desde borrador o tras un error.
func CanSend(s entity.Status) error {
	if s == entity.StatusDraft || s == entity.StatusError {
		return nil
	}
	return domain.ErrCannotResend
}

// CanCancel solo se cancelan notas autorizadas.
func CanCancel(s entity.Status) error {
	if s == entity.StatusAuthorized {
		return nil
	}
	return domain.ErrCannotCancel
}

// CanEdit las líneas y datos solo cambian en borrador.
func CanEdit(s entity.Status) error {
	if s == entity.StatusDraft {
		return nil
	}
	return domain.ErrNotEditable
}

// CanDelete se eliminan borradores y notas con error; nunca lo que el proveedor ya tiene.
func CanDelete(s entity.Status) error {
	if s == entity.StatusDraft || s == entity.StatusError {
		return nil
	}
	return domain.ErrCannotDelete
}

// NormalizeCancelReason recorta la justificación y valida su longitud.
func NormalizeCancelReason(reason string) (string, error) {
	r := strings.TrimSpace(reason)
	n := utf8.RuneCountInString(r)
	if n < MinCancelReason || n > MaxCancelReason {
		return "", domain.NewValidationError("justification", "la justificación debe tener entre 15 y 255 caracteres")
	}
	return r, nil
}

// Transition decide el siguiente estado ante una actualización asíncrona (consulta o webhook).
// changed=false significa que la actualización es redundante o atrasada y no altera la nota.
//
//	processing     -> cualquier estado
//	authorized     -> cancel_pending | cancelled
//	cancel_pending -> cancelled | authorized (cancelación negada o con error)
//	draft, error, cancelled: no cambian por actualizaciones asíncronas
func Transition(current, incoming entity.Status) (next entity.Status, changed bool) {
	if current == incoming {
		return current, false
	}
	switch current {
	case entity.StatusProcessing:
		return incoming, true
	case entity.StatusAuthorized:
		if incoming == entity.StatusCancelPending || incoming == entity.StatusCancelled {
			return incoming, true
		}
	case entity.StatusCancelPending:
		switch incoming {
		case entity.StatusCancelled:
			return incoming, true
		case entity.StatusAuthorized, entity.StatusError:
			return entity.StatusAuthorized, true
		}
	}
	return current, false
}

// CancelOutcome estado resultante de una respuesta de cancelación del proveedor.
// Cualquier cosa que no sea confirmación o pendiente deja la nota autorizada.
func CancelOutcome(providerStatus entity.Status) entity.Status {
	switch providerStatus {
	case entity.StatusCancelled:
		return entity.StatusCancelled
	case entity.StatusCancelPending, entity.StatusProcessing:
		return entity.StatusCancelPending
	default:
		return entity.StatusAuthorized
	}
}

// NeedsReconciliation estados que la conciliación periódica debe consultar.
func NeedsReconciliation(s entity.Status) bool {
	return s == entity.StatusProcessing || s == entity.StatusCancelPending
}
