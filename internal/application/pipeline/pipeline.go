package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/predictstats/internal/application/stats"
	"github.com/alejandrodnm/predictstats/internal/domain"
	"github.com/alejandrodnm/predictstats/internal/ports"
)

// DefaultHistoryLimit es el tope de días de las series recortadas.
const DefaultHistoryLimit = 90

// Keys son los nombres de blob que lee y escribe el pipeline. Una key vacía
// desactiva esa salida.
type Keys struct {
	Trades        string `yaml:"trades"`
	Stats         string `yaml:"stats"`
	State         string `yaml:"state"`
	PointsByDay   string `yaml:"points_by_day"` // desc, con tope
	PointsHistory string `yaml:"points_history"`
	VolumeHistory string `yaml:"volume_history"`
	Weekly        string `yaml:"weekly"`
	Daily         string `yaml:"daily"`
	LastRun       string `yaml:"last_run"`
}

// DefaultKeys devuelve los nombres que espera el dashboard.
func DefaultKeys() Keys {
	return Keys{
		Trades:        "trades.jsonl",
		Stats:         "stats.json",
		State:         "state.json",
		PointsByDay:   "points_hist.json",
		PointsHistory: "points-history.json",
		VolumeHistory: "volume-history.json",
		Weekly:        "weekly_summary.json",
		Daily:         "daily_summary.json",
		LastRun:       "last_run.json",
	}
}

// All devuelve las keys configuradas, sin las vacías.
func (k Keys) All() []string {
	all := []string{
		k.Trades, k.Stats, k.State, k.PointsByDay, k.PointsHistory,
		k.VolumeHistory, k.Weekly, k.Daily, k.LastRun,
	}
	out := all[:0]
	for _, key := range all {
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}

// withDefaults rellena las keys vacías. Se usa solo cuando no hay ninguna
// configurada; si el usuario deja alguna vacía es para desactivarla.
func (k Keys) withDefaults() Keys {
	if k == (Keys{}) {
		return DefaultKeys()
	}
	return k
}

// Config contiene la configuración del pipeline.
type Config struct {
	Keys          Keys
	HistoryLimit  int            // días de points_hist y volume-history (0 = DefaultHistoryLimit)
	Location      *time.Location // zona del "día de hoy" y de los buckets (nil = Local)
	DefaultWallet string         // wallet de las posiciones que no traen una
	Clock         func() time.Time
}

// DefaultConfig devuelve una Config con todos los valores por defecto.
func DefaultConfig() Config {
	return Config{
		Keys:         DefaultKeys(),
		HistoryLimit: DefaultHistoryLimit,
		Location:     time.Local,
		Clock:        time.Now,
	}
}

// Pipeline compone normalizar → agregar → buckets → merge de históricos →
// escribir blobs. No guarda estado entre ejecuciones salvo lo que persiste
// el BlobStore.
type Pipeline struct {
	cfg      Config
	source   ports.TradeSource
	store    ports.BlobStore
	reporter ports.Reporter
}

// New crea un Pipeline con las dependencias inyectadas. reporter puede ser nil.
func New(cfg Config, source ports.TradeSource, store ports.BlobStore, reporter ports.Reporter) *Pipeline {
	cfg.Keys = cfg.Keys.withDefaults()
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Pipeline{cfg: cfg, source: source, store: store, reporter: reporter}
}

// Keys devuelve los nombres de blob efectivos.
func (p *Pipeline) Keys() Keys {
	return p.cfg.Keys
}

// inputs es todo lo que trae el fetch concurrente.
type inputs struct {
	trades      []domain.RawRecord
	positions   []domain.RawRecord
	positionsOK bool
	points      *domain.PointsSnapshot
	volume      *domain.VolumeSnapshot
	warnings    []string
}

type blob struct {
	key  string
	data []byte
}

// Run ejecuta una pasada completa. Nunca devuelve error: el fallo se refleja
// en RunResult.Status. Si el fetch de trades falla no se escribe ningún blob.
func (p *Pipeline) Run(ctx context.Context) domain.RunResult {
	now := p.cfg.Clock()
	res := domain.RunResult{RunID: uuid.NewString(), StartedAt: now}
	log := slog.With("run_id", res.RunID)

	in, err := p.fetch(ctx)
	if err != nil {
		return p.fail(ctx, log, res, err)
	}
	res.Trades = len(in.trades)
	res.Warnings = append(res.Warnings, in.warnings...)

	report, blobs, warnings, err := p.build(ctx, in, now)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		return p.fail(ctx, log, res, err)
	}

	// Todo está codificado: a partir de aquí solo quedan escrituras.
	var putErrs []error
	for _, b := range blobs {
		if err := p.store.Put(ctx, b.key, b.data); err != nil {
			putErrs = append(putErrs, fmt.Errorf("pipeline.Run: put %s: %w", b.key, err))
			continue
		}
		res.Written = append(res.Written, b.key)
	}

	res.Status = domain.RunOK
	if len(res.Warnings) > 0 {
		res.Status = domain.RunDegraded
	}
	if err := errors.Join(putErrs...); err != nil {
		res.Status = domain.RunFailed
		res.Error = err.Error()
	}
	res.FinishedAt = p.cfg.Clock()
	p.writeLastRun(ctx, log, res)

	for _, w := range res.Warnings {
		log.Warn("pipeline degraded", "warning", w)
	}
	if res.Status == domain.RunFailed {
		log.Error("pipeline run failed", "err", res.Error, "written", len(res.Written))
	} else {
		log.Info("pipeline run complete",
			"status", res.Status,
			"trades", res.Trades,
			"closed", report.Stats.TotalTrades,
			"net_profit", report.Stats.NetProfitUSDC.String(),
			"written", len(res.Written),
			"duration", res.Duration().Round(time.Millisecond),
		)
	}

	report.Result = res
	p.report(ctx, log, report)
	return res
}

// fail cierra una ejecución fallida antes de escribir salidas.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, res domain.RunResult, err error) domain.RunResult {
	res.Status = domain.RunFailed
	res.Error = err.Error()
	res.FinishedAt = p.cfg.Clock()
	log.Error("pipeline run failed", "err", err)
	p.report(ctx, log, domain.Report{Result: res})
	return res
}

// fetch lanza las cuatro llamadas a la vez. Solo el error de trades cancela
// el resto; los demás se convierten en warnings.
func (p *Pipeline) fetch(ctx context.Context) (inputs, error) {
	var (
		in                     inputs
		posErr, ptsErr, volErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trades, err := p.source.FetchTrades(gctx)
		if err != nil {
			return fmt.Errorf("pipeline.fetch: trades: %w", err)
		}
		in.trades = trades
		return nil
	})
	g.Go(func() error {
		in.positions, posErr = p.source.FetchPositions(gctx)
		return nil
	})
	g.Go(func() error {
		in.points, ptsErr = p.source.FetchPoints(gctx)
		return nil
	})
	g.Go(func() error {
		in.volume, volErr = p.source.FetchVolume(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}

	if posErr != nil {
		in.warnings = append(in.warnings, fmt.Sprintf("positions unavailable: %v", posErr))
	} else {
		in.positionsOK = true
	}
	if ptsErr != nil {
		in.points = nil
		in.warnings = append(in.warnings, fmt.Sprintf("points unavailable: %v", ptsErr))
	}
	if volErr != nil {
		in.volume = nil
		in.warnings = append(in.warnings, fmt.Sprintf("volume unavailable: %v", volErr))
	}
	return in, nil
}

// build calcula y codifica todas las salidas sin escribir nada.
func (p *Pipeline) build(ctx context.Context, in inputs, now time.Time) (domain.Report, []blob, []string, error) {
	keys := p.cfg.Keys
	loc := p.cfg.Location
	var (
		blobs    []blob
		warnings []string
	)
	add := func(key string, v any) error {
		if key == "" {
			return nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("pipeline.build: encode %s: %w", key, err)
		}
		blobs = append(blobs, blob{key: key, data: data})
		return nil
	}

	trades := make([]domain.Trade, 0, len(in.trades))
	for _, r := range in.trades {
		trades = append(trades, stats.Normalize(r, now))
	}
	stats.SortByTimeDesc(trades)

	st := stats.Aggregate(trades, now)
	if in.points != nil {
		pts := in.points.Points
		st.Points = &pts
		st.Rank = in.points.Rank
	}
	daily := stats.Bucketize(trades, stats.DailyKey(loc))
	weekly := stats.Bucketize(trades, stats.WeeklyKey(loc))

	if keys.Trades != "" {
		data, err := encodeJSONL(trades)
		if err != nil {
			return domain.Report{}, nil, warnings, err
		}
		blobs = append(blobs, blob{key: keys.Trades, data: data})
	}
	if err := add(keys.Stats, st); err != nil {
		return domain.Report{}, nil, warnings, err
	}
	if in.positionsOK {
		if err := add(keys.State, stats.BuildState(in.positions, p.cfg.DefaultWallet)); err != nil {
			return domain.Report{}, nil, warnings, err
		}
	}
	if err := add(keys.Daily, daily); err != nil {
		return domain.Report{}, nil, warnings, err
	}
	if err := add(keys.Weekly, weekly); err != nil {
		return domain.Report{}, nil, warnings, err
	}

	today := domain.DateKey(now, loc)
	stamp := domain.FormatTimestamp(now)
	capped := stats.MergeOptions{Order: stats.Descending, Limit: p.cfg.HistoryLimit}

	// Sin puntos no hay nada que añadir: los históricos de puntos no se tocan.
	if in.points != nil {
		entry := domain.PointsEntry{Date: today, Points: in.points.Points, Rank: in.points.Rank, LastUpdated: stamp}
		for _, h := range []struct {
			key  string
			opts stats.MergeOptions
		}{
			{keys.PointsByDay, capped},
			{keys.PointsHistory, stats.MergeOptions{Order: stats.Ascending}},
		} {
			series, warn, ok := readHistory[domain.PointsEntry](ctx, p.store, h.key)
			warnings = appendNonEmpty(warnings, warn)
			if !ok {
				continue
			}
			if err := add(h.key, stats.MergeHistory(series, entry, h.opts)); err != nil {
				return domain.Report{}, nil, warnings, err
			}
		}
	}

	volEntry := domain.VolumeEntry{
		Date:        today,
		VolumeUSDC:  st.TotalVolumeUSDC,
		Trades:      st.TotalTrades,
		Source:      "trades",
		LastUpdated: stamp,
	}
	if in.volume != nil {
		volEntry.VolumeUSDC = in.volume.VolumeUSDC
		volEntry.Trades = in.volume.Trades
		volEntry.Source = "api"
	}
	series, warn, ok := readHistory[domain.VolumeEntry](ctx, p.store, keys.VolumeHistory)
	warnings = appendNonEmpty(warnings, warn)
	if ok {
		if err := add(keys.VolumeHistory, stats.MergeHistory(series, volEntry, capped)); err != nil {
			return domain.Report{}, nil, warnings, err
		}
	}

	return domain.Report{Stats: st, Daily: daily}, blobs, warnings, nil
}

// readHistory lee una serie persistida. Un blob ausente o corrupto es una
// serie vacía (con warning si estaba corrupto). Si el store falla al leer,
// ok=false y esa serie no se reescribe en esta ejecución.
func readHistory[E any](ctx context.Context, store ports.BlobStore, key string) (series []E, warning string, ok bool) {
	if key == "" {
		return nil, "", false
	}
	data, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Sprintf("history %s unreadable, left untouched: %v", key, err), false
	}
	if !found {
		return nil, "", true
	}
	series, err = stats.DecodeHistory[E](data)
	if err != nil {
		return nil, fmt.Sprintf("history %s corrupt, starting fresh: %v", key, err), true
	}
	return series, "", true
}

func (p *Pipeline) writeLastRun(ctx context.Context, log *slog.Logger, res domain.RunResult) {
	key := p.cfg.Keys.LastRun
	if key == "" {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		log.Warn("encode last run", "err", err)
		return
	}
	if err := p.store.Put(ctx, key, data); err != nil {
		log.Warn("write last run", "key", key, "err", err)
	}
}

func (p *Pipeline) report(ctx context.Context, log *slog.Logger, r domain.Report) {
	if p.reporter == nil {
		return
	}
	if err := p.reporter.Report(ctx, r); err != nil {
		log.Warn("reporter error", "err", err)
	}
}

// encodeJSONL escribe un trade por línea, sin escapar HTML en los títulos.
func encodeJSONL(trades []domain.Trade) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, t := range trades {
		if err := enc.Encode(t); err != nil {
			return nil, fmt.Errorf("pipeline.encodeJSONL: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func appendNonEmpty(s []string, v string) []string {
	if v == "" {
		return s
	}
	return append(s, v)
}
