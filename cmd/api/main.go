package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/nfse-api/internal/application/auth"
	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/bootstrap"
	infrapdf "github.com/jhoicas/nfse-api/internal/infrastructure/pdf"
	"github.com/jhoicas/nfse-api/internal/infrastructure/postgres"
	"github.com/jhoicas/nfse-api/internal/infrastructure/scheduler"
	httpRouter "github.com/jhoicas/nfse-api/internal/interfaces/http"
	"github.com/jhoicas/nfse-api/pkg/config"
	"github.com/jhoicas/nfse-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET requerido")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(cfg.DB.MigrationsPath, cfg.DB.ConnectionString(), log.Component("migrate")); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	comps, err := bootstrap.Build(ctx, cfg, log, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar servicios")
	}
	defer comps.Close()

	// Operadores: login JWT y primer admin opcional
	authUC := auth.NewAuthUseCase(postgres.NewUserRepository(pool), auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	if cfg.Auth.AdminEmail != "" {
		created, err := authUC.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.AdminTenant)
		if err != nil {
			log.Fatal().Err(err).Msg("crear admin inicial")
		}
		if created {
			log.Info().Str("email", cfg.Auth.AdminEmail).Msg("admin inicial creado")
		}
	}

	// Espelho del RPS (PDF sin valor fiscal)
	printUC := appnfse.NewRPSPrintUseCase(comps.Repo, infrapdf.NewRPSEspelho())

	// Conciliación periódica de notas en processing / cancel_pending
	var poller *scheduler.Poller
	if cfg.Scheduler.Enabled {
		reconciler := appnfse.NewReconciler(comps.Repo, comps.Service, cfg.Scheduler.BatchSize, log.Component("reconciler"))
		poller, err = scheduler.NewPoller(reconciler, cfg.Scheduler.Interval, log.Component("scheduler"))
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler")
		}
		poller.Start()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: config.MaxProviderTimeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "NFS-e API",
	}))

	deps := httpRouter.RouterDeps{
		Invoices:        comps.Service,
		Auth:            authUC,
		Webhooks:        comps.Service,
		Printer:         printUC,
		Providers:       comps.Registry.Providers(),
		Env:             cfg.App.Env,
		JWTSecret:       cfg.JWT.Secret,
		FocusSecret:     cfg.Webhook.FocusSecret,
		PlugNotasSecret: cfg.Webhook.PlugNotasSecret,
	}
	if cfg.ISSDigital.Enabled() {
		deps.ISSNotes = comps.ISS
	}
	httpRouter.Router(app, deps)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	if poller != nil {
		if err := poller.Stop(); err != nil {
			log.Error().Err(err).Msg("detener scheduler")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
