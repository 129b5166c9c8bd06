package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// ErrBusy se devuelve cuando ya hay una ejecución en curso.
var ErrBusy = errors.New("scheduler: run already in progress")

// RunFunc es una ejecución completa del pipeline.
type RunFunc func(ctx context.Context) domain.RunResult

// Runner dispara RunFunc desde cron o a mano (HTTP) sin permitir nunca dos
// ejecuciones a la vez: el read-merge-write de los históricos asume un
// único escritor.
type Runner struct {
	cron    *cron.Cron
	run     RunFunc
	baseCtx context.Context
	timeout time.Duration

	mu      sync.Mutex
	running bool
	last    *domain.RunResult
	wg      sync.WaitGroup
}

// New crea un Runner. Las ejecuciones de cron usan baseCtx; timeout (si > 0)
// acota cada ejecución.
func New(baseCtx context.Context, run RunFunc, timeout time.Duration) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger := slogLogger{}
	return &Runner{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		run:     run,
		baseCtx: baseCtx,
		timeout: timeout,
	}
}

// Schedule registra la ejecución periódica. spec acepta el formato estándar
// de 5 campos y los descriptores ("@every 15m", "@hourly").
func (r *Runner) Schedule(spec string) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		if _, err := r.Trigger(r.baseCtx); errors.Is(err, ErrBusy) {
			slog.Info("scheduled run skipped, previous still running")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("scheduler.Schedule: %q: %w", spec, err)
	}
	return id, nil
}

// Trigger ejecuta ahora y espera el resultado. ErrBusy si ya hay una en curso.
func (r *Runner) Trigger(ctx context.Context) (domain.RunResult, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return domain.RunResult{}, ErrBusy
	}
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		r.wg.Done()
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res := r.run(ctx)

	r.mu.Lock()
	r.last = &res
	r.mu.Unlock()
	return res, nil
}

// Last devuelve el resultado de la última ejecución terminada.
func (r *Runner) Last() (domain.RunResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return domain.RunResult{}, false
	}
	return *r.last, true
}

// Running indica si hay una ejecución en curso.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Next devuelve la próxima ejecución programada (cero si no hay ninguna).
func (r *Runner) Next() time.Time {
	var next time.Time
	for _, e := range r.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

func (r *Runner) Start() {
	slog.Info("scheduler started", "entries", len(r.cron.Entries()))
	r.cron.Start()
}

// Stop para el cron y espera a que termine la ejecución en curso.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.wg.Wait()
	slog.Info("scheduler stopped")
}

// slogLogger adapta cron.Logger al logger global.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
