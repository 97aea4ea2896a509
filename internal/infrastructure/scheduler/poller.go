// Package scheduler ejecuta la conciliación periódica de notas pendientes.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	appnfse "github.com/jhoicas/nfse-api/internal/application/nfse"
)

const (
	jobName         = "nfse-reconcile"
	defaultInterval = 5 * time.Minute
)

// Runner una pasada de conciliación (nfse.Reconciler).
type Runner interface {
	RunOnce(ctx context.Context) (appnfse.ReconcileReport, error)
}

// Poller corre el Runner cada intervalo; una pasada nunca se solapa con la siguiente.
type Poller struct {
	scheduler gocron.Scheduler
	runner    Runner
	interval  time.Duration
	log       zerolog.Logger
	cancel    context.CancelFunc
}

// NewPoller interval <= 0 usa 5 minutos.
func NewPoller(runner Runner, interval time.Duration, log zerolog.Logger) (*Poller, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: crear: %w", err)
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{scheduler: s, runner: runner, interval: interval, log: log, cancel: cancel}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(p.tick, ctx),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = s.Shutdown()
		return nil, fmt.Errorf("scheduler: registrar %s: %w", jobName, err)
	}
	return p, nil
}

// Start arranca el scheduler en segundo plano.
func (p *Poller) Start() {
	p.log.Info().Dur("interval", p.interval).Msg("conciliación periódica iniciada")
	p.scheduler.Start()
}

// Stop cancela la pasada en curso y espera a que termine.
func (p *Poller) Stop() error {
	p.cancel()
	return p.scheduler.Shutdown()
}

func (p *Poller) tick(ctx context.Context) {
	started := time.Now()
	rep, err := p.runner.RunOnce(ctx)
	ev := p.log.Info()
	if err != nil {
		ev = p.log.Error().Err(err)
	}
	ev.Int("checked", rep.Checked).
		Int("changed", rep.Changed).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("pasada de conciliación")
}
