package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agile-defense/vesselwatch/pkg/ingest"
	"github.com/agile-defense/vesselwatch/pkg/kinematics"
	"github.com/agile-defense/vesselwatch/pkg/risk"
	"github.com/agile-defense/vesselwatch/pkg/target"
)

// Notifier is called when a target enters the danger state. It is not
// called for muted targets.
type Notifier func(t target.Target)

// Tick summarises one pass of the run loop
type Tick struct {
	At      time.Time
	NoFix   bool
	Removed int
	Err     error
}

// Engine recomputes derived fields for every target in a store
type Engine struct {
	store   *target.Store
	selfID  string
	cfg     Config
	logger  zerolog.Logger
	metrics *Metrics

	profiles   atomic.Pointer[risk.ProfileSet]
	classifier func(risk.Input, risk.Profile) risk.Assessment

	mu       sync.Mutex
	notifier Notifier
	onTick   func(Tick)
}

// NewEngine creates an engine over store. The self id is the store's.
func NewEngine(store *target.Store, cfg Config, profiles risk.ProfileSet, logger zerolog.Logger, metrics *Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	if err := profiles.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collision profiles: %w", err)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	e := &Engine{
		store:   store,
		selfID:  store.SelfID(),
		cfg:     cfg,
		logger:  logger.With().Str("component", "tracker").Logger(),
		metrics: metrics,

		classifier: risk.Classify,
	}
	set := profiles.Clone()
	e.profiles.Store(&set)
	return e, nil
}

// Store returns the underlying target store
func (e *Engine) Store() *target.Store {
	return e.store
}

// SelfID returns the self target id
func (e *Engine) SelfID() string {
	return e.selfID
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// SetNotifier installs the danger notifier
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// OnTick installs a callback run after every tick of Run
func (e *Engine) OnTick(fn func(Tick)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// Profiles returns a copy of the current profile set
func (e *Engine) Profiles() risk.ProfileSet {
	return e.profiles.Load().Clone()
}

// SetProfiles replaces the profile set. Takes effect on the next tick.
func (e *Engine) SetProfiles(set risk.ProfileSet) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("invalid collision profiles: %w", err)
	}
	c := set.Clone()
	e.profiles.Store(&c)
	e.logger.Info().Str("profile", c.Current).Msg("Collision profiles updated")
	return nil
}

// SelectProfile makes name the active profile
func (e *Engine) SelectProfile(name string) error {
	set, err := e.profiles.Load().WithCurrent(name)
	if err != nil {
		return err
	}
	return e.SetProfiles(set)
}

// ApplyDelta merges an incremental update into the store
func (e *Engine) ApplyDelta(d ingest.Delta) (ingest.Result, bool) {
	res, ok := ingest.ProcessUpdate(d, e.store)
	if !ok {
		e.metrics.updatesTotal.WithLabelValues("rejected").Inc()
		e.logger.Debug().Str("context", d.Context).Msg("Rejected update with malformed id")
		return res, false
	}
	e.metrics.updatesTotal.WithLabelValues("applied").Inc()
	if res.Created {
		e.logger.Debug().Str("target_id", res.ID).Msg("New target")
	}
	return res, true
}

// Mute sets the operator mute flag on a target
func (e *Engine) Mute(id string, muted bool) bool {
	return e.store.SetMuted(id, muted)
}

// RecomputeTick runs kinematics and classification over every target.
// When the self fix is missing it returns a *kinematics.NoFixError and
// no target is touched.
func (e *Engine) RecomputeTick(now time.Time) error {
	start := time.Now()

	targets := e.store.All()
	sols, err := kinematics.Compute(targets, e.selfID, e.cfg.Horizon)
	if err != nil {
		var nf *kinematics.NoFixError
		if errors.As(err, &nf) {
			e.metrics.recordTick("no_fix", time.Since(start))
		} else {
			e.metrics.recordTick("error", time.Since(start))
		}
		return err
	}

	profile, err := e.profiles.Load().Active()
	if err != nil {
		e.metrics.recordTick("error", time.Since(start))
		return fmt.Errorf("failed to load active profile: %w", err)
	}

	counts := make(map[target.AlarmState]int)
	var entered []target.Target

	for _, t := range targets {
		prev := t.Derived
		d := prev

		d.Age = e.age(t.Raw, now).Seconds()
		d.Valid = t.Raw.HasPosition()
		d.Lost = d.Age > e.cfg.LostAge.Seconds()

		sol := sols[t.ID]
		d.X, d.Y = sol.Position.X, sol.Position.Y
		d.VX, d.VY = sol.Velocity.X, sol.Velocity.Y
		d.Range, d.Bearing = sol.Range, sol.Bearing
		d.CPA, d.TCPA = sol.CPA, sol.TCPA

		if t.ID != e.selfID {
			t.Derived = d
			if a, ok := e.classify(t, profile); ok {
				a.Apply(&d)
			}
			counts[d.State]++
			if d.State == target.StateDanger && prev.State != target.StateDanger && !t.Muted {
				t.Derived = d
				entered = append(entered, t)
			}
		}

		e.store.SetDerived(t.ID, d)
	}

	e.metrics.recordStates(len(targets), counts)
	e.metrics.recordTick("ok", time.Since(start))

	e.notify(entered)
	return nil
}

// classify runs the classifier for one target, recovering from a panic so
// the rest of the tick proceeds.
func (e *Engine) classify(t target.Target, p risk.Profile) (a risk.Assessment, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.classifyErrors.Inc()
			e.logger.Error().
				Str("target_id", t.ID).
				Interface("panic", r).
				Msg("Classification failed, keeping previous alarm state")
			ok = false
		}
	}()
	return e.classifier(risk.InputFor(t), p), true
}

func (e *Engine) notify(entered []target.Target) {
	e.mu.Lock()
	n := e.notifier
	e.mu.Unlock()

	for _, t := range entered {
		e.metrics.notifiedTotal.Inc()
		e.logger.Warn().
			Str("target_id", t.ID).
			Strs("alarms", t.Derived.AlarmTypes).
			Msg("Target entered danger state")
		if n != nil {
			n(t)
		}
	}
}

// age returns time since the last position report, falling back to the
// last update of any field. Never negative.
func (e *Engine) age(r target.Raw, now time.Time) time.Duration {
	ref := r.LastSeen
	if ref.IsZero() {
		ref = r.Updated
	}
	if ref.IsZero() {
		return 0
	}
	if d := now.Sub(ref); d > 0 {
		return d
	}
	return 0
}

// AgeOut removes targets older than MaxAge. The self target is kept.
func (e *Engine) AgeOut(now time.Time) int {
	removed := 0
	for _, t := range e.store.All() {
		if t.ID == e.selfID {
			continue
		}
		if e.age(t.Raw, now) > e.cfg.MaxAge && e.store.Remove(t.ID) {
			removed++
			e.logger.Debug().Str("target_id", t.ID).Msg("Target aged out")
		}
	}
	if removed > 0 {
		e.metrics.removedTotal.Add(float64(removed))
	}
	return removed
}

// Self returns a copy of the self target
func (e *Engine) Self() (target.Target, bool) {
	return e.store.Get(e.selfID)
}

// Target returns a copy of the target for id
func (e *Engine) Target(id string) (target.Target, bool) {
	return e.store.Get(id)
}

// Ranked returns all targets except self, most urgent first. Ties are
// broken by id.
func (e *Engine) Ranked() []target.Target {
	all := e.store.All()
	out := make([]target.Target, 0, len(all))
	for _, t := range all {
		if t.ID != e.selfID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Derived.Order != out[j].Derived.Order {
			return out[i].Derived.Order < out[j].Derived.Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Run recomputes and ages out targets every tick interval until ctx is
// cancelled. A tick without a self fix is logged and retried next tick.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.logger.Info().
		Str("self_id", e.selfID).
		Dur("interval", e.cfg.TickInterval).
		Msg("Tracker started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Tracker stopped")
			return ctx.Err()
		case now := <-ticker.C:
			e.step(now)
		}
	}
}

func (e *Engine) step(now time.Time) Tick {
	tick := Tick{At: now}

	if err := e.RecomputeTick(now); err != nil {
		var nf *kinematics.NoFixError
		if errors.As(err, &nf) {
			tick.NoFix = true
			e.logger.Warn().Err(err).Msg("No GPS fix, skipping tick")
		} else {
			tick.Err = err
			e.logger.Error().Err(err).Msg("Recompute failed")
		}
	}
	tick.Removed = e.AgeOut(now)

	e.mu.Lock()
	fn := e.onTick
	e.mu.Unlock()
	if fn != nil {
		fn(tick)
	}
	return tick
}
