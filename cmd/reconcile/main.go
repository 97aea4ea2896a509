// reconcile ejecuta una pasada de conciliación de notas pendientes y termina.
// Pensado para cron externo cuando la API corre con RECONCILE_ENABLED=false.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
	"github.com/jhoicas/nfse-api/internal/bootstrap"
	"github.com/jhoicas/nfse-api/internal/infrastructure/postgres"
	"github.com/jhoicas/nfse-api/pkg/config"
	"github.com/jhoicas/nfse-api/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "nfse-reconcile"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("conexión a PostgreSQL")
		return 1
	}
	defer pool.Close()

	comps, err := bootstrap.Build(ctx, cfg, log, pool)
	if err != nil {
		log.Error().Err(err).Msg("inicializar servicios")
		return 1
	}
	defer comps.Close()

	rep, err := appnfse.NewReconciler(comps.Repo, comps.Service, cfg.Scheduler.BatchSize, log.Component("reconciler")).RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("conciliación interrumpida")
	}
	log.Info().
		Int("checked", rep.Checked).
		Int("changed", rep.Changed).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Msg("conciliación finalizada")
	if err != nil || rep.Failed > 0 {
		return 1
	}
	return 0
}
