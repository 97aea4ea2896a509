package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// HealthResponse respuesta de /health.
type HealthResponse struct {
	Status    string   `json:"status"`
	Env       string   `json:"env"`
	Providers []string `json:"providers"`
}
