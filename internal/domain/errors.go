package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound             = errors.New("recurso no encontrado")
	ErrDuplicate            = errors.New("recurso duplicado")
	ErrUnauthorized         = errors.New("no autorizado")
	ErrForbidden            = errors.New("acceso denegado")
	ErrCannotResend         = errors.New("la nota no puede reenviarse en su estado actual")
	ErrCannotCancel         = errors.New("solo se cancelan notas autorizadas")
	ErrCancelUnsupported    = errors.New("el proveedor no soporta cancelación")
	ErrOperationUnsupported = errors.New("operación no soportada por el proveedor")
	ErrOperationInProgress  = errors.New("ya hay una operación en curso para esta referencia")
	ErrNotSubmitted         = errors.New("la nota aún no fue transmitida al proveedor")
	ErrNotEditable          = errors.New("la nota solo se modifica en borrador")
	ErrCannotDelete         = errors.New("la nota no puede eliminarse en su estado actual")
	ErrArtifactUnavailable  = errors.New("artefacto no disponible")
	ErrInvalidTransition    = errors.New("transición de estado inválida")
	ErrUnknownProvider      = errors.New("proveedor desconocido")
	ErrUnsignedPayload      = errors.New("signed=false: el XML se transmitió sin firma")
)

// ValidationError dato faltante o mal formado, corregible por el usuario. Nunca sale a la red.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validación: " + e.Message
	}
	return fmt.Sprintf("validación: %s: %s", e.Field, e.Message)
}

// NewValidationError atajo para construir el error.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// ConfigurationError falta una credencial o certificado requerido para el ambiente actual.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuración: %s: %s", e.Field, e.Message)
}

// CommunicationError falla de red, timeout o respuesta HTTP sin significado de negocio.
// StatusCode es 0 cuando no hubo respuesta.
type CommunicationError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *CommunicationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: comunicación fallida (HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: comunicación fallida: %v", e.Provider, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// ProviderRejectionError el proveedor respondió pero rechazó el documento.
// Message lleva el texto literal del proveedor.
type ProviderRejectionError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	Raw        string
}

func (e *ProviderRejectionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rechazó el documento [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s rechazó el documento: %s", e.Provider, e.Message)
}

// IsValidation / IsConfiguration / IsCommunication / IsRejection facilitan el mapeo en la capa HTTP.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsConfiguration(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

func IsCommunication(err error) bool {
	var e *CommunicationError
	return errors.As(err, &e)
}

func IsRejection(err error) bool {
	var e *ProviderRejectionError
	return errors.As(err, &e)
}
