package http

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Invoices        InvoiceService
	Auth            AuthService // opcional
	Webhooks        StatusApplier
	Printer         RPSPrinter  // opcional
	ISSNotes        NotesLister // opcional, solo con ISS Digital habilitado
	Providers       []entity.Provider
	Env             string
	JWTSecret       string
	FocusSecret     string
	PlugNotasSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		providers := make([]string, 0, len(deps.Providers))
		for _, p := range deps.Providers {
			providers = append(providers, string(p))
		}
		sort.Strings(providers)
		return c.JSON(dto.HealthResponse{Status: "ok", Env: deps.Env, Providers: providers})
	})

	// Webhooks (públicos, autenticados por secreto compartido)
	webhookHandler := NewWebhookHandler(deps.Webhooks, deps.FocusSecret, deps.PlugNotasSecret)
	hooks := app.Group("/webhooks")
	if webhookHandler.Enabled(entity.ProviderFocusNFe) {
		hooks.Post("/focusnfe", webhookHandler.Focus)
	}
	if webhookHandler.Enabled(entity.ProviderPlugNotas) {
		hooks.Post("/plugnotas", webhookHandler.PlugNotas)
	}

	api := app.Group("/api")

	// Auth (login público)
	var authHandler *AuthHandler
	if deps.Auth != nil {
		authHandler = NewAuthHandler(deps.Auth)
		api.Post("/auth/login", authHandler.Login)
	}

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	read := RequireRole(jwt.RoleAdmin, jwt.RoleOperator, jwt.RoleViewer)
	write := RequireRole(jwt.RoleAdmin, jwt.RoleOperator)

	if authHandler != nil {
		protected.Post("/auth/register", RequireRole(jwt.RoleAdmin), authHandler.Register)
	}

	invoiceHandler := NewInvoiceHandler(deps.Invoices, deps.Printer)
	invoices := protected.Group("/invoices")
	invoices.Post("/", write, invoiceHandler.Create)
	invoices.Get("/:provider/:ref", read, invoiceHandler.Get)
	invoices.Put("/:provider/:ref/items", write, invoiceHandler.ReplaceItems)
	invoices.Delete("/:provider/:ref", write, invoiceHandler.Delete)
	invoices.Post("/:provider/:ref/send", write, invoiceHandler.Send)
	invoices.Post("/:provider/:ref/query", read, invoiceHandler.Query)
	invoices.Post("/:provider/:ref/cancel", RequireRole(jwt.RoleAdmin), invoiceHandler.Cancel)
	invoices.Post("/:provider/:ref/email", write, invoiceHandler.ResendEmail)
	invoices.Get("/:provider/:ref/pdf", read, invoiceHandler.PDF)
	invoices.Get("/:provider/:ref/xml", read, invoiceHandler.XML)
	invoices.Get("/:provider/:ref/espelho.pdf", read, invoiceHandler.Espelho)

	if deps.ISSNotes != nil {
		issHandler := NewISSDigitalHandler(deps.ISSNotes)
		protected.Get("/iss-digital/notas", read, issHandler.Notas)
	}
}
