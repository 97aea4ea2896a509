package nfse

import (
	"strings"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// Vocabulario nativo de ISS Digital, derivado de la respuesta SOAP por el cliente.
const (
	ISSStatusAuthorized    = "autorizado"
	ISSStatusProcessing    = "processando"
	ISSStatusRejected      = "rejeitado"
	ISSStatusCancelled     = "cancelado"
	ISSStatusCancelPending = "cancelamento_pendente"
)

var focusStatuses = map[string]entity.Status{
	"autorizado":               entity.StatusAuthorized,
	"autorizada":               entity.StatusAuthorized,
	"emitido":                  entity.StatusAuthorized,
	"emitida":                  entity.StatusAuthorized,
	"concluido":                entity.StatusAuthorized,
	"concluida":                entity.StatusAuthorized,
	"substituido":              entity.StatusAuthorized,
	"processando_autorizacao":  entity.StatusProcessing,
	"processando":              entity.StatusProcessing,
	"em_processamento":         entity.StatusProcessing,
	"erro_autorizacao":         entity.StatusError,
	"erro":                     entity.StatusError,
	"rejeitado":                entity.StatusError,
	"rejeitada":                entity.StatusError,
	"denegado":                 entity.StatusError,
	"erro_cancelamento":        entity.StatusError,
	"cancelado":                entity.StatusCancelled,
	"cancelada":                entity.StatusCancelled,
	"processando_cancelamento": entity.StatusCancelPending,
}

var plugNotasStatuses = map[string]entity.Status{
	"CONCLUIDO":                entity.StatusAuthorized,
	"AUTORIZADO":               entity.StatusAuthorized,
	"PROCESSANDO":              entity.StatusProcessing,
	"REJEITADO":                entity.StatusError,
	"DENEGADO":                 entity.StatusError,
	"CANCELADO":                entity.StatusCancelled,
	"CANCELAMENTO_PENDENTE":    entity.StatusCancelPending,
	"PROCESSANDO_CANCELAMENTO": entity.StatusCancelPending,
}

var issStatuses = map[string]entity.Status{
	ISSStatusAuthorized:    entity.StatusAuthorized,
	ISSStatusProcessing:    entity.StatusProcessing,
	ISSStatusRejected:      entity.StatusError,
	ISSStatusCancelled:     entity.StatusCancelled,
	ISSStatusCancelPending: entity.StatusCancelPending,
}

// MapStatus traduce el estado nativo del proveedor al canónico.
// Un término desconocido devuelve StatusError y known=false.
func MapStatus(provider entity.Provider, native string) (status entity.Status, known bool) {
	var (
		table map[string]entity.Status
		key   = strings.TrimSpace(native)
	)
	switch provider {
	case entity.ProviderFocusNFe:
		table, key = focusStatuses, strings.ToLower(key)
	case entity.ProviderPlugNotas:
		table, key = plugNotasStatuses, strings.ToUpper(key)
	case entity.ProviderISSDigital:
		table, key = issStatuses, strings.ToLower(key)
	default:
		return entity.StatusError, false
	}
	s, ok := table[key]
	if !ok {
		return entity.StatusError, false
	}
	return s, true
}
