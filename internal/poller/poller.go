// Package poller runs the interval loop that pulls new rows from the active
// source table into the visible feed.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rpattn/streamgate/internal/dedup"
	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/feed"
	"github.com/rpattn/streamgate/internal/metrics"
	"github.com/rpattn/streamgate/internal/source"

	"go.uber.org/zap"
)

// Rate bounds, matching the dashboard slider.
const (
	MinRate = 1000 * time.Millisecond
	MaxRate = 15000 * time.Millisecond
)

var (
	ErrRateOutOfRange = errors.New("rate out of range")
	ErrUnknownSource  = errors.New("unknown source table")
)

// Fetcher reads rows ordered oldest-first by the table's timestamp column.
type Fetcher interface {
	Fetch(ctx context.Context, table domain.SourceTable, limit, offset int) ([]source.Row, error)
}

// Config is the initial poller state.
type Config struct {
	Rate     time.Duration
	Limit    int
	MaxPages int
	Tables   []domain.SourceTable
	Active   string
}

// TickResult summarizes one tick.
type TickResult struct {
	Source     string `json:"source"`
	Pages      int    `json:"pages"`
	Fetched    int    `json:"fetched"`
	Surfaced   int    `json:"surfaced"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
}

// Status is the operator view of the loop. LastError describes the most recent
// tick only and is cleared by the next successful one.
type Status struct {
	RateMs        int64      `json:"rate_ms"`
	Source        string     `json:"source"`
	Paused        bool       `json:"paused"`
	Limit         int        `json:"limit"`
	ProcessedKeys int        `json:"processed_keys"`
	FeedSize      int        `json:"feed_size"`
	LastTickAt    *time.Time `json:"last_tick_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
}

// Poller owns the fetch loop. Ticks never overlap.
type Poller struct {
	fetcher Fetcher
	set     *dedup.Set
	feed    *feed.Feed
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	limit    int
	maxPages int
	tables   map[string]domain.SourceTable
	order    []string

	mu         sync.RWMutex
	rate       time.Duration
	active     string
	paused     bool
	lastTickAt time.Time
	lastErr    error
	lastErrAt  time.Time

	tickMu sync.Mutex
	wake   chan struct{}
}

// New validates cfg and builds a poller.
func New(cfg Config, fetcher Fetcher, set *dedup.Set, f *feed.Feed, m *metrics.Metrics, logger *zap.Logger) (*Poller, error) {
	if fetcher == nil || set == nil || f == nil {
		return nil, fmt.Errorf("poller requires a fetcher, a processed-key set and a feed")
	}
	if err := validateRate(cfg.Rate); err != nil {
		return nil, err
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("at least one source table is required")
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tables := make(map[string]domain.SourceTable, len(cfg.Tables))
	order := make([]string, 0, len(cfg.Tables))
	for _, t := range cfg.Tables {
		t = t.WithDefaults()
		if _, dup := tables[t.Name]; dup {
			return nil, fmt.Errorf("duplicate source table %q", t.Name)
		}
		tables[t.Name] = t
		order = append(order, t.Name)
	}
	active := cfg.Active
	if active == "" {
		active = order[0]
	}
	if _, ok := tables[active]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, active)
	}

	p := &Poller{
		fetcher:  fetcher,
		set:      set,
		feed:     f,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		limit:    cfg.Limit,
		maxPages: cfg.MaxPages,
		tables:   tables,
		order:    order,
		rate:     cfg.Rate,
		active:   active,
		wake:     make(chan struct{}, 1),
	}
	m.ProcessedKeys.Set(float64(set.Len()))
	m.FeedSize.Set(float64(f.Len()))
	return p, nil
}

func validateRate(rate time.Duration) error {
	if rate < MinRate || rate > MaxRate {
		return fmt.Errorf("%w: %s not within [%s, %s]", ErrRateOutOfRange, rate, MinRate, MaxRate)
	}
	return nil
}

// Run ticks until ctx is cancelled. Each wait starts after the previous tick
// returns. Reconfiguration cancels the pending wait and ticks right away.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		zap.String("source", p.ActiveSource().Name),
		zap.Duration("rate", p.Rate()))

	for {
		if !p.Paused() {
			if _, err := p.Tick(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("poll tick failed, retrying next interval", zap.Error(err))
			}
		}

		if p.Paused() {
			select {
			case <-ctx.Done():
				p.logger.Info("poller stopped")
				return ctx.Err()
			case <-p.wake:
			}
			continue
		}

		timer := time.NewTimer(p.Rate())
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Tick fetches from the active table, drops rows whose key was already
// processed, and surfaces the rest in timestamp order.
func (p *Poller) Tick(ctx context.Context) (TickResult, error) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	start := p.now()
	table := p.ActiveSource()
	result := TickResult{Source: table.Name}
	defer func() {
		p.metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		fresh []domain.Event
		keys  []string
		batch = make(map[string]struct{})
	)
	for page := 0; page < p.maxPages; page++ {
		rows, err := p.fetcher.Fetch(ctx, table, p.limit, page*p.limit)
		if err != nil {
			p.recordError(err)
			return result, fmt.Errorf("failed to fetch %s: %w", table.Name, err)
		}
		result.Pages++
		result.Fetched += len(rows)
		p.metrics.RowsFetched.Add(float64(len(rows)))

		fetchedAt := p.now()
		for _, row := range rows {
			rowID, ok := source.RowID(table, row)
			if !ok {
				result.Skipped++
				p.logger.Debug("skipping row without id", zap.String("source", table.Name))
				continue
			}
			key := domain.CompositeKey(table.Name, rowID)
			if _, dup := batch[key]; dup || p.set.Seen(key) {
				result.Duplicates++
				continue
			}
			event, err := source.MapRow(table, row, fetchedAt)
			if err != nil {
				result.Skipped++
				p.logger.Debug("skipping unmappable row", zap.String("key", key), zap.Error(err))
				continue
			}
			batch[key] = struct{}{}
			fresh = append(fresh, event)
			keys = append(keys, key)
		}

		if len(fresh) > 0 || len(rows) < p.limit {
			break
		}
	}

	result.Surfaced = len(fresh)
	p.metrics.DuplicatesSkipped.Add(float64(result.Duplicates))

	if len(fresh) > 0 {
		p.feed.Prepend(fresh...)
		p.metrics.EventsSurfaced.WithLabelValues(table.Name).Add(float64(len(fresh)))
	}

	var persistErr error
	if len(keys) > 0 || p.set.Unpersisted() > 0 {
		if _, err := p.set.Mark(ctx, keys...); err != nil {
			p.logger.Error("failed to persist processed keys", zap.Error(err))
			persistErr = err
		}
	}

	p.metrics.ProcessedKeys.Set(float64(p.set.Len()))
	p.metrics.FeedSize.Set(float64(p.feed.Len()))

	if persistErr != nil {
		p.recordError(persistErr)
	} else {
		p.metrics.PollTicks.WithLabelValues("ok").Inc()
	}

	p.mu.Lock()
	p.lastTickAt = p.now()
	if persistErr == nil {
		p.lastErr = nil
		p.lastErrAt = time.Time{}
	}
	p.mu.Unlock()

	if result.Surfaced > 0 || result.Skipped > 0 {
		p.logger.Debug("poll tick",
			zap.String("source", result.Source),
			zap.Int("fetched", result.Fetched),
			zap.Int("surfaced", result.Surfaced),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("skipped", result.Skipped))
	}
	return result, nil
}

func (p *Poller) recordError(err error) {
	p.metrics.PollTicks.WithLabelValues("error").Inc()
	p.mu.Lock()
	p.lastErr = err
	p.lastErrAt = p.now()
	p.mu.Unlock()
}

// ClearHistory empties the processed-key set and the feed so previously seen
// rows surface again.
func (p *Poller) ClearHistory(ctx context.Context) error {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	if err := p.set.Clear(ctx); err != nil {
		return err
	}
	p.feed.Clear()
	p.metrics.ProcessedKeys.Set(0)
	p.metrics.FeedSize.Set(0)
	p.logger.Info("history cleared")
	return nil
}

// Update is a partial reconfiguration. Nil fields are left unchanged.
type Update struct {
	RateMs *int64
	Source *string
	Paused *bool
}

// Apply validates every field of u before changing anything.
func (p *Poller) Apply(u Update) error {
	if u.RateMs != nil {
		ms := *u.RateMs
		if ms < MinRate.Milliseconds() || ms > MaxRate.Milliseconds() {
			return fmt.Errorf("%w: rate_ms %d not within [%d, %d]",
				ErrRateOutOfRange, ms, MinRate.Milliseconds(), MaxRate.Milliseconds())
		}
	}
	if u.Source != nil {
		if _, ok := p.tables[*u.Source]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSource, *u.Source)
		}
	}

	if u.Source != nil {
		if err := p.SetSource(*u.Source); err != nil {
			return err
		}
	}
	if u.RateMs != nil {
		if err := p.SetRate(time.Duration(*u.RateMs) * time.Millisecond); err != nil {
			return err
		}
	}
	if u.Paused != nil {
		p.SetPaused(*u.Paused)
	}
	return nil
}

// SetRate changes the interval and restarts the wait.
func (p *Poller) SetRate(rate time.Duration) error {
	if err := validateRate(rate); err != nil {
		return err
	}
	p.mu.Lock()
	changed := p.rate != rate
	p.rate = rate
	p.mu.Unlock()
	if changed {
		p.logger.Info("poll rate changed", zap.Duration("rate", rate))
		p.signal()
	}
	return nil
}

// SetSource switches the active table and restarts the wait.
func (p *Poller) SetSource(name string) error {
	if _, ok := p.tables[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	p.mu.Lock()
	changed := p.active != name
	p.active = name
	p.mu.Unlock()
	if changed {
		p.logger.Info("source changed", zap.String("source", name))
		p.signal()
	}
	return nil
}

// SetPaused stops or resumes ticking without touching the feed or the set.
func (p *Poller) SetPaused(paused bool) {
	p.mu.Lock()
	changed := p.paused != paused
	p.paused = paused
	p.mu.Unlock()
	if changed {
		p.logger.Info("poller pause state changed", zap.Bool("paused", paused))
		p.signal()
	}
}

func (p *Poller) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Rate returns the current interval.
func (p *Poller) Rate() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rate
}

// Paused reports whether ticking is suspended.
func (p *Poller) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// ActiveSource returns the table currently polled.
func (p *Poller) ActiveSource() domain.SourceTable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tables[p.active]
}

// Table looks up a configured table by name.
func (p *Poller) Table(name string) (domain.SourceTable, bool) {
	t, ok := p.tables[name]
	return t, ok
}

// Sources lists the configured tables in configuration order.
func (p *Poller) Sources() []domain.SourceTable {
	out := make([]domain.SourceTable, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.tables[name])
	}
	return out
}

// Status returns a snapshot of the loop state.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{
		RateMs:        p.rate.Milliseconds(),
		Source:        p.active,
		Paused:        p.paused,
		Limit:         p.limit,
		ProcessedKeys: p.set.Len(),
		FeedSize:      p.feed.Len(),
	}
	if !p.lastTickAt.IsZero() {
		at := p.lastTickAt
		s.LastTickAt = &at
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
		at := p.lastErrAt
		s.LastErrorAt = &at
	}
	return s
}
