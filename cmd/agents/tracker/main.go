// Tracker Agent - Maintains the target picture, computes CPA/TCPA and raises collision alarms
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/agile-defense/vesselwatch/pkg/agent"
	"github.com/agile-defense/vesselwatch/pkg/handler"
	"github.com/agile-defense/vesselwatch/pkg/ingest"
	"github.com/agile-defense/vesselwatch/pkg/messages"
	natsutil "github.com/agile-defense/vesselwatch/pkg/nats"
	"github.com/agile-defense/vesselwatch/pkg/postgres"
	"github.com/agile-defense/vesselwatch/pkg/risk"
	"github.com/agile-defense/vesselwatch/pkg/target"
	"github.com/agile-defense/vesselwatch/pkg/tracker"
)

// Config holds the tracker agent configuration
type Config struct {
	Agent agent.Config

	HTTPAddr     string
	SelfID       string
	SnapshotPath string
	ProfilePath  string
	PostgresURL  string
	// Built from POSTGRES_HOST and friends when no URL is given
	Postgres *postgres.Config

	CORSOrigins []string
	WSOrigins   []string

	Tracker tracker.Config

	LogLevel string
	LogJSON  bool
}

// LoadConfig reads configuration from the environment
func LoadConfig() (Config, error) {
	cfg := Config{
		Agent: agent.Config{
			ID:           getEnv("AGENT_ID", "tracker-"+uuid.New().String()[:8]),
			Type:         agent.AgentTypeTracker,
			NATSUrl:      getEnv("NATS_URL", "nats://localhost:4222"),
			NATSUser:     os.Getenv("NATS_USER"),
			NATSPassword: os.Getenv("NATS_PASSWORD"),
			Secret:       []byte(os.Getenv("AGENT_SECRET")),
		},
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		SelfID:       os.Getenv("SELF_ID"),
		SnapshotPath: os.Getenv("SNAPSHOT_PATH"),
		ProfilePath:  os.Getenv("PROFILE_PATH"),
		PostgresURL:  os.Getenv("POSTGRES_URL"),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
		WSOrigins:    splitList(getEnv("WS_ORIGINS", "localhost:*,127.0.0.1:*")),
		Tracker:      tracker.DefaultConfig(),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogJSON:      getEnv("LOG_JSON", "false") == "true",
	}

	if _, ok := ingest.ExtractID(cfg.SelfID); !ok || len(cfg.SelfID) != 9 {
		return cfg, fmt.Errorf("SELF_ID must be the 9-digit identity of the own vessel, got %q", cfg.SelfID)
	}

	var err error
	if cfg.Agent.FeedTimeout, err = getDuration("FEED_TIMEOUT", agent.DefaultFeedTimeout); err != nil {
		return cfg, err
	}
	if cfg.PostgresURL == "" && os.Getenv("POSTGRES_HOST") != "" {
		if cfg.Postgres, err = postgresFromEnv(); err != nil {
			return cfg, err
		}
	}
	if cfg.Tracker.TickInterval, err = getDuration("TICK_INTERVAL", cfg.Tracker.TickInterval); err != nil {
		return cfg, err
	}
	if cfg.Tracker.MaxAge, err = getDuration("MAX_AGE", cfg.Tracker.MaxAge); err != nil {
		return cfg, err
	}
	if cfg.Tracker.LostAge, err = getDuration("LOST_AGE", cfg.Tracker.LostAge); err != nil {
		return cfg, err
	}
	if cfg.Tracker.Horizon, err = getDuration("TCPA_HORIZON", cfg.Tracker.Horizon); err != nil {
		return cfg, err
	}
	return cfg, cfg.Tracker.Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// postgresFromEnv overrides the default pool settings from the environment
func postgresFromEnv() (*postgres.Config, error) {
	pg := postgres.DefaultConfig()
	pg.Host = getEnv("POSTGRES_HOST", pg.Host)
	pg.Database = getEnv("POSTGRES_DB", pg.Database)
	pg.User = getEnv("POSTGRES_USER", pg.User)
	pg.Password = getEnv("POSTGRES_PASSWORD", pg.Password)
	pg.SSLMode = getEnv("POSTGRES_SSLMODE", pg.SSLMode)

	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid POSTGRES_PORT %q", v)
		}
		pg.Port = port
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid POSTGRES_MAX_CONNS %q", v)
		}
		pg.MaxConns = int32(n)
		if pg.MinConns > pg.MaxConns {
			pg.MinConns = pg.MaxConns
		}
	}
	return &pg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TrackerAgent feeds vessel deltas into the tracker engine and publishes
// the ranked picture after every tick
type TrackerAgent struct {
	*agent.BaseAgent
	cfg      Config
	logger   zerolog.Logger
	engine   *tracker.Engine
	consumer jetstream.Consumer
	hub      *handler.WebSocketHub

	db       *postgres.Pool
	profiles *postgres.ProfileStore
}

// errDrop marks a message that will never process and must not be redelivered
var errDrop = errors.New("message dropped")

// NewTrackerAgent creates the agent, loads collision profiles and seeds the
// store from the snapshot file when one is configured
func NewTrackerAgent(ctx context.Context, cfg Config) (*TrackerAgent, error) {
	base, err := agent.NewBaseAgent(cfg.Agent)
	if err != nil {
		return nil, err
	}

	a := &TrackerAgent{
		BaseAgent: base,
		cfg:       cfg,
		logger:    *base.Logger(),
	}

	set, err := a.loadProfiles(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	store := target.NewStore(cfg.SelfID)
	if cfg.SnapshotPath != "" {
		if err := a.loadSnapshot(store); err != nil {
			a.Close()
			return nil, err
		}
	}

	engine, err := tracker.NewEngine(store, cfg.Tracker, set, a.logger, tracker.NewMetrics(base.Metrics()))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create tracker engine: %w", err)
	}
	a.engine = engine

	return a, nil
}

// loadProfiles resolves the collision profiles: PostgreSQL when configured,
// otherwise the profile file, otherwise the built-in defaults. An empty
// database is seeded with the file or default set.
func (a *TrackerAgent) loadProfiles(ctx context.Context) (risk.ProfileSet, error) {
	set := risk.DefaultProfileSet()
	if a.cfg.ProfilePath != "" {
		loaded, err := risk.LoadProfileSet(a.cfg.ProfilePath)
		if err != nil {
			return set, err
		}
		set = loaded
		a.logger.Info().Str("path", a.cfg.ProfilePath).Str("current", set.Current).Msg("Loaded collision profiles from file")
	}

	var (
		db  *postgres.Pool
		err error
	)
	switch {
	case a.cfg.PostgresURL != "":
		db, err = postgres.NewPoolFromURL(ctx, a.cfg.PostgresURL)
	case a.cfg.Postgres != nil:
		db, err = postgres.NewPool(ctx, *a.cfg.Postgres)
	default:
		return set, nil
	}
	if err != nil {
		return set, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.db = db
	a.profiles = postgres.NewProfileStore(db)

	if err := a.profiles.EnsureSchema(ctx); err != nil {
		return set, err
	}

	stored, err := a.profiles.LoadProfiles(ctx)
	switch {
	case errors.Is(err, postgres.ErrNoProfiles):
		if err := a.profiles.SaveProfiles(ctx, set); err != nil {
			return set, err
		}
		a.logger.Info().Str("current", set.Current).Msg("Seeded collision profiles in database")
		return set, nil
	case err != nil:
		return set, err
	}

	a.logger.Info().Str("current", stored.Current).Int("profiles", len(stored.Profiles)).Msg("Loaded collision profiles from database")
	return stored, nil
}

func (a *TrackerAgent) loadSnapshot(store *target.Store) error {
	f, err := os.Open(a.cfg.SnapshotPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := ingest.DecodeSnapshot(f)
	if err != nil {
		return err
	}

	stats := ingest.BulkLoad(snap, store, a.cfg.Tracker.MaxAge, time.Now())
	a.logger.Info().
		Str("path", a.cfg.SnapshotPath).
		Int("loaded", stats.Loaded).
		Int("stale", stats.Stale).
		Int("malformed", stats.Malformed).
		Msg("Loaded target snapshot")
	return nil
}

// Close releases the database pool
func (a *TrackerAgent) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// profileSaver returns the database store as a handler.ProfileSaver, or a
// nil interface when profiles are not persisted
func (a *TrackerAgent) profileSaver() handler.ProfileSaver {
	if a.profiles == nil {
		return nil
	}
	return a.profiles
}

// connected reports whether deltas and reports flow over NATS
func (a *TrackerAgent) connected() bool {
	return a.consumer != nil
}

// connectFeed starts the base agent and the delta consumer. Without NATS the
// tracker still serves the snapshot picture over HTTP.
func (a *TrackerAgent) connectFeed(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("failed to start base agent: %w", err)
	}

	if err := natsutil.SetupStreams(ctx, a.JetStream()); err != nil {
		return fmt.Errorf("failed to setup streams: %w", err)
	}

	consumer, err := natsutil.SetupConsumer(ctx, a.JetStream(), natsutil.StreamDeltas, natsutil.ConsumerTracker)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}
	a.consumer = consumer
	return nil
}

// consumeMessages applies vessel deltas until ctx is cancelled
func (a *TrackerAgent) consumeMessages(ctx context.Context) error {
	a.logger.Info().Msg("Tracker consuming from VESSEL_DELTAS stream")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := a.consumer.Fetch(100, jetstream.FetchMaxWait(time.Second))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			a.logger.Error().Err(err).Msg("Failed to fetch messages")
			a.RecordError("fetch_error")
			time.Sleep(time.Second)
			continue
		}

		for msg := range msgs.Messages() {
			err := a.handleDelta(msg.Data())
			switch {
			case err == nil:
				msg.Ack()
			case errors.Is(err, errDrop):
				a.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Dropping vessel delta")
				msg.Term()
			default:
				a.logger.Error().Err(err).Msg("Failed to process vessel delta")
				a.RecordError("process_error")
				msg.Nak()
			}
		}

		if msgs.Error() != nil && !errors.Is(msgs.Error(), context.DeadlineExceeded) {
			a.logger.Warn().Err(msgs.Error()).Msg("Message batch error")
		}
	}
}

// handleDelta verifies and applies one wire delta. Malformed or unsigned
// messages and rejected ids return errDrop.
func (a *TrackerAgent) handleDelta(data []byte) error {
	start := time.Now()

	var du messages.DeltaUpdate
	if err := messages.UnmarshalVerified(data, &du, a.cfg.Agent.Secret); err != nil {
		a.RecordDelta("invalid", time.Since(start))
		return fmt.Errorf("%w: %v", errDrop, err)
	}

	res, ok := a.engine.ApplyDelta(du.Delta())
	if !ok {
		a.RecordDelta("rejected", time.Since(start))
		return fmt.Errorf("%w: malformed context %q", errDrop, du.Context)
	}

	a.RecordDelta("applied", time.Since(start))
	a.logger.Debug().
		Str("target_id", res.ID).
		Bool("created", res.Created).
		Int("fields", res.Recognised).
		Str("source", du.Envelope.Source).
		Msg("Applied vessel delta")
	return nil
}

// publishReport sends the ranked picture after every tick, over NATS when
// connected or straight to websocket clients otherwise
func (a *TrackerAgent) publishReport(ctx context.Context, tick tracker.Tick) {
	var self *target.Target
	if t, ok := a.engine.Self(); ok {
		self = &t
	}
	report := messages.NewTargetReport(a.ID(), a.engine.SelfID(), self, a.engine.Ranked(), a.engine.Profiles().Current, tick.NoFix)

	if !a.connected() {
		if err := a.hub.BroadcastJSON(handler.MessageTypeTargetReport, report, report.Envelope.CorrelationID); err != nil {
			a.logger.Error().Err(err).Msg("Failed to broadcast target report")
		}
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Publish(pubCtx, report, "target_report"); err != nil {
		a.logger.Error().Err(err).Msg("Failed to publish target report")
	}
}

// publishAlarm announces a target entering the danger state
func (a *TrackerAgent) publishAlarm(ctx context.Context, t target.Target) {
	event := messages.NewAlarmEvent(a.ID(), t)

	if !a.connected() {
		msgType := handler.MessageTypeAlarm + "." + string(event.State)
		if err := a.hub.BroadcastJSON(msgType, event, event.Envelope.CorrelationID); err != nil {
			a.logger.Error().Err(err).Msg("Failed to broadcast alarm")
		}
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Publish(pubCtx, event, "alarm_event"); err != nil {
		a.logger.Error().Err(err).Str("target_id", t.ID).Msg("Failed to publish alarm")
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Agent     agent.HealthStatus `json:"agent"`
	Services  map[string]string  `json:"services"`
	SelfFix   bool               `json:"self_fix"`
	Targets   int                `json:"targets"`
	Clients   int                `json:"websocket_clients"`
}

func (a *TrackerAgent) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Agent:     a.Health(),
		Services:  make(map[string]string),
		Targets:   a.engine.Store().Len(),
		Clients:   a.hub.ClientCount(),
	}
	if self, ok := a.engine.Self(); ok {
		resp.SelfFix = self.Raw.HasPosition()
	}

	if a.connected() {
		if resp.Agent.Healthy {
			resp.Services["nats"] = "healthy"
		} else {
			resp.Services["nats"] = "unhealthy: " + resp.Agent.Status
			resp.Status = "degraded"
		}
	} else {
		resp.Services["nats"] = "not configured"
	}

	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.Health(ctx); err != nil {
			resp.Services["postgres"] = "unhealthy: " + err.Error()
			resp.Status = "degraded"
		} else {
			resp.Services["postgres"] = "healthy"
		}
	} else {
		resp.Services["postgres"] = "not configured"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	handler.WriteJSON(w, status, resp)
}

func (a *TrackerAgent) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(handler.CorrelationID)
	r.Use(middleware.RealIP)
	r.Use(handler.RequestLogger(a.logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Correlation-ID", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", a.healthHandler)
	r.Handle("/metrics", promhttp.HandlerFor(a.Metrics(), promhttp.HandlerOpts{}))
	r.Handle("/ws", handler.NewWebSocketHandler(a.hub, a.cfg.WSOrigins, a.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/targets", handler.NewTargetHandler(a.engine, a.logger).Routes())
		r.Mount("/profiles", handler.NewProfileHandler(a.engine, a.profileSaver(), a.logger).Routes())
	})

	return r
}

// Run connects, then supervises the tick loop, delta consumer, websocket
// hub and HTTP server until ctx is cancelled
func (a *TrackerAgent) Run(ctx context.Context) error {
	if a.cfg.Agent.NATSUrl != "" {
		if err := a.connectFeed(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("NATS unavailable, running without delta feed")
			a.consumer = nil
			a.Stop(ctx)
		}
	}

	if a.connected() {
		subjects := map[string]string{
			natsutil.SubjectReports: handler.MessageTypeTargetReport,
			natsutil.SubjectAlarms:  handler.MessageTypeAlarm + "." + string(target.StateDanger),
		}
		a.hub = handler.NewWebSocketHub(a.NATS(), subjects, a.logger)
	} else {
		a.hub = handler.NewWebSocketHub(nil, nil, a.logger)
	}

	a.engine.OnTick(func(tick tracker.Tick) {
		a.publishReport(ctx, tick)
	})
	a.engine.SetNotifier(func(t target.Target) {
		a.publishAlarm(ctx, t)
	})

	server := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      a.setupRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		if err := a.engine.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if a.consumer != nil {
		g.Go(func() error {
			if err := a.consumeMessages(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		a.logger.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupLogging(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogJSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
}

func main() {
	cfg, err := LoadConfig()
	setupLogging(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("self_id", cfg.SelfID).
		Str("nats_url", cfg.Agent.NATSUrl).
		Str("http_addr", cfg.HTTPAddr).
		Dur("tick_interval", cfg.Tracker.TickInterval).
		Msg("Starting vesselwatch tracker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	trk, err := NewTrackerAgent(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create tracker agent")
	}
	defer trk.Close()

	if err := trk.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Tracker error")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	trk.Stop(stopCtx)

	log.Info().Msg("Tracker shutdown complete")
}
