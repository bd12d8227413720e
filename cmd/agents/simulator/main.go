// AIS Simulator Agent
// Generates synthetic own-ship and AIS target deltas around a self vessel
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agile-defense/vesselwatch/pkg/agent"
	"github.com/agile-defense/vesselwatch/pkg/handler"
	"github.com/agile-defense/vesselwatch/pkg/ingest"
	"github.com/agile-defense/vesselwatch/pkg/kinematics"
	"github.com/agile-defense/vesselwatch/pkg/messages"
	natsutil "github.com/agile-defense/vesselwatch/pkg/nats"
	"github.com/agile-defense/vesselwatch/pkg/risk"
)

// Configuration limits
const (
	MinEmissionInterval = 200 * time.Millisecond
	MaxEmissionInterval = 30 * time.Second
	MinVesselCount      = 0
	MaxVesselCount      = 500

	DefaultEmissionInterval = 2 * time.Second
	DefaultVesselCount      = 12

	// Static data (name, callsign, type, length) goes out every Nth report
	StaticEvery = 10

	// Random traffic is placed within this range of own ship
	SpawnRadiusNM = 8.0
)

// vesselKind describes the AIS static data and speed range of a traffic type
type vesselKind struct {
	shipType int
	typeName string
	class    string
	minKn    float64
	maxKn    float64
	minLen   float64
	maxLen   float64
}

var vesselKinds = map[string]vesselKind{
	"cargo":     {shipType: 70, typeName: "Cargo", class: "A", minKn: 10, maxKn: 18, minLen: 120, maxLen: 300},
	"tanker":    {shipType: 80, typeName: "Tanker", class: "A", minKn: 9, maxKn: 15, minLen: 150, maxLen: 330},
	"passenger": {shipType: 60, typeName: "Passenger", class: "A", minKn: 12, maxKn: 22, minLen: 50, maxLen: 250},
	"fishing":   {shipType: 30, typeName: "Fishing", class: "A", minKn: 2, maxKn: 9, minLen: 15, maxLen: 40},
	"pleasure":  {shipType: 37, typeName: "Pleasure", class: "B", minKn: 4, maxKn: 20, minLen: 8, maxLen: 20},
}

// DefaultKindWeights is the traffic mix (percentages)
var DefaultKindWeights = map[string]int{
	"cargo":     30,
	"tanker":    15,
	"passenger": 10,
	"fishing":   20,
	"pleasure":  25,
}

// SimulatorConfig holds the runtime configuration for the simulator
type SimulatorConfig struct {
	mu sync.RWMutex

	emissionInterval time.Duration
	vesselCount      int
	paused           bool
	kindWeights      map[string]int
}

// NewSimulatorConfig creates a new SimulatorConfig with default values
func NewSimulatorConfig() *SimulatorConfig {
	return &SimulatorConfig{
		emissionInterval: DefaultEmissionInterval,
		vesselCount:      DefaultVesselCount,
		kindWeights:      copyWeights(DefaultKindWeights),
	}
}

func copyWeights(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// GetEmissionInterval returns the current emission interval
func (c *SimulatorConfig) GetEmissionInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emissionInterval
}

// SetEmissionInterval sets the emission interval with validation
func (c *SimulatorConfig) SetEmissionInterval(d time.Duration) error {
	if d < MinEmissionInterval || d > MaxEmissionInterval {
		return fmt.Errorf("emission_interval must be between %v and %v", MinEmissionInterval, MaxEmissionInterval)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emissionInterval = d
	return nil
}

// GetVesselCount returns the number of random traffic vessels
func (c *SimulatorConfig) GetVesselCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vesselCount
}

// SetVesselCount sets the number of random traffic vessels
func (c *SimulatorConfig) SetVesselCount(count int) error {
	if count < MinVesselCount || count > MaxVesselCount {
		return fmt.Errorf("vessel_count must be between %d and %d", MinVesselCount, MaxVesselCount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vesselCount = count
	return nil
}

// SetPaused sets the paused state
func (c *SimulatorConfig) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

// GetKindWeights returns a copy of the traffic mix
func (c *SimulatorConfig) GetKindWeights() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyWeights(c.kindWeights)
}

// SetKindWeights replaces the traffic mix
func (c *SimulatorConfig) SetKindWeights(weights map[string]int) error {
	total := 0
	for key, weight := range weights {
		if _, ok := vesselKinds[key]; !ok {
			return fmt.Errorf("invalid vessel kind: %s", key)
		}
		if weight < 0 {
			return fmt.Errorf("weight for %s cannot be negative", key)
		}
		total += weight
	}
	if total == 0 {
		return fmt.Errorf("at least one kind weight must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.kindWeights = copyWeights(weights)
	return nil
}

// Reset restores the defaults
func (c *SimulatorConfig) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emissionInterval = DefaultEmissionInterval
	c.vesselCount = DefaultVesselCount
	c.paused = false
	c.kindWeights = copyWeights(DefaultKindWeights)
}

// Snapshot returns a copy of the current configuration
func (c *SimulatorConfig) Snapshot() ConfigResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConfigResponse{
		EmissionIntervalMS: c.emissionInterval.Milliseconds(),
		VesselCount:        c.vesselCount,
		Paused:             c.paused,
		KindWeights:        copyWeights(c.kindWeights),
	}
}

// ConfigResponse represents the JSON response for configuration
type ConfigResponse struct {
	EmissionIntervalMS int64          `json:"emission_interval_ms"`
	VesselCount        int            `json:"vessel_count"`
	Paused             bool           `json:"paused"`
	KindWeights        map[string]int `json:"kind_weights"`
}

// ConfigUpdateRequest represents a partial configuration update request
type ConfigUpdateRequest struct {
	EmissionIntervalMS *int64          `json:"emission_interval_ms,omitempty"`
	VesselCount        *int            `json:"vessel_count,omitempty"`
	Paused             *bool           `json:"paused,omitempty"`
	KindWeights        *map[string]int `json:"kind_weights,omitempty"`
	ClearStreams       *bool           `json:"clear_streams,omitempty"`
}

// simVessel is one simulated AIS station. Speeds are m/s and angles radians.
type simVessel struct {
	id       string
	name     string
	callsign string
	kind     string
	class    string
	shipType int
	typeName string
	length   float64

	lat, lon float64
	sog      float64
	cog      float64

	// Fixed stations (SART beacons) never manoeuvre
	fixed   bool
	reports int
}

// Scenario is the fleet around own ship
type Scenario struct {
	mu      sync.RWMutex
	rng     *rand.Rand
	self    *simVessel
	vessels map[string]*simVessel
	nextID  int
}

// NewScenario places own ship, a head-on crosser and an AIS-SART. Random
// traffic is added with Resize.
func NewScenario(selfID string, lat, lon, sogKn, cogDeg float64, rng *rand.Rand) *Scenario {
	s := &Scenario{
		rng:     rng,
		vessels: make(map[string]*simVessel),
	}
	s.self = &simVessel{
		id:    selfID,
		name:  "OWN SHIP",
		class: "A",
		lat:   lat,
		lon:   lon,
		sog:   sogKn / risk.KnotsPerMPS,
		cog:   cogDeg * math.Pi / 180,
	}

	// Crosser 3.5 NM ahead on the reciprocal course
	ahead := offset(lat, lon, 3.5*risk.MetersPerNM, s.self.cog)
	s.vessels["366999001"] = &simVessel{
		id: "366999001", name: "HEAD ON", callsign: "WHO0001", kind: "cargo", class: "A",
		shipType: 70, typeName: "Cargo", length: 180,
		lat: ahead[0], lon: ahead[1],
		sog: 10 / risk.KnotsPerMPS,
		cog: math.Mod(s.self.cog+math.Pi, 2*math.Pi),
	}

	// SART 1.5 NM on the starboard beam
	beam := offset(lat, lon, 1.5*risk.MetersPerNM, s.self.cog+math.Pi/2)
	s.vessels["970999001"] = &simVessel{
		id: "970999001", name: "SART ACTIVE", class: "A",
		lat: beam[0], lon: beam[1],
		fixed: true,
	}

	return s
}

// offset moves dist meters from lat/lon along bearing (radians)
func offset(lat, lon, dist, bearing float64) [2]float64 {
	dLat := dist * math.Cos(bearing) / kinematics.MetersPerDegree
	dLon := dist * math.Sin(bearing) / (kinematics.MetersPerDegree * math.Cos(lat*math.Pi/180))
	return [2]float64{lat + dLat, lon + dLon}
}

// Resize adds or removes random traffic so that count random vessels exist.
// The crosser and SART are kept.
func (s *Scenario) Resize(count int, weights map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	random := s.randomIDsLocked()
	for len(random) > count {
		delete(s.vessels, random[len(random)-1])
		random = random[:len(random)-1]
	}
	for i := len(random); i < count; i++ {
		v := s.spawnLocked(weightedRandomSelect(s.rng, weights))
		s.vessels[v.id] = v
	}
}

// Regenerate replaces all random traffic with a fresh mix
func (s *Scenario) Regenerate(count int, weights map[string]int) {
	s.mu.Lock()
	for _, id := range s.randomIDsLocked() {
		delete(s.vessels, id)
	}
	s.mu.Unlock()
	s.Resize(count, weights)
}

func (s *Scenario) randomIDsLocked() []string {
	var ids []string
	for id := range s.vessels {
		if id != "366999001" && id != "970999001" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Scenario) spawnLocked(kindName string) *simVessel {
	kind := vesselKinds[kindName]
	s.nextID++
	id := fmt.Sprintf("3670%05d", s.nextID)

	pos := offset(s.self.lat, s.self.lon,
		s.rng.Float64()*SpawnRadiusNM*risk.MetersPerNM,
		s.rng.Float64()*2*math.Pi)
	speedKn := kind.minKn + s.rng.Float64()*(kind.maxKn-kind.minKn)

	return &simVessel{
		id:       id,
		name:     fmt.Sprintf("%s %d", kind.typeName, s.nextID),
		callsign: fmt.Sprintf("WSM%04d", s.nextID),
		kind:     kindName,
		class:    kind.class,
		shipType: kind.shipType,
		typeName: kind.typeName,
		length:   math.Round(kind.minLen + s.rng.Float64()*(kind.maxLen-kind.minLen)),
		lat:      pos[0],
		lon:      pos[1],
		sog:      speedKn / risk.KnotsPerMPS,
		cog:      s.rng.Float64() * 2 * math.Pi,
	}
}

// Step advances every vessel by dt
func (s *Scenario) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.move(s.self, dt)
	for _, v := range s.vessels {
		s.move(v, dt)
	}
}

func (s *Scenario) move(v *simVessel, dt time.Duration) {
	if v.fixed {
		return
	}
	pos := offset(v.lat, v.lon, v.sog*dt.Seconds(), v.cog)
	v.lat, v.lon = pos[0], pos[1]

	// Random traffic occasionally alters course and speed
	if v.kind == "" || v.id == "366999001" {
		return
	}
	if s.rng.Float64() < 0.02 {
		v.cog = math.Mod(v.cog+(s.rng.Float64()-0.5)*math.Pi/6+2*math.Pi, 2*math.Pi)
	}
	if s.rng.Float64() < 0.02 {
		kind := vesselKinds[v.kind]
		kn := v.sog*risk.KnotsPerMPS + (s.rng.Float64()-0.5)*2
		v.sog = math.Max(kind.minKn, math.Min(kind.maxKn, kn)) / risk.KnotsPerMPS
	}
}

// Deltas renders one update per vessel, own ship first
func (s *Scenario) Deltas(source string, now time.Time) []*messages.DeltaUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*messages.DeltaUpdate{buildDelta(source, s.self, now)}
	for _, id := range sortedKeys(s.vessels) {
		out = append(out, buildDelta(source, s.vessels[id], now))
	}
	return out
}

// Len returns the number of simulated targets, excluding own ship
func (s *Scenario) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vessels)
}

func sortedKeys(m map[string]*simVessel) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildDelta renders a vessel's dynamic data, plus static data on its
// first and every StaticEvery-th report
func buildDelta(source string, v *simVessel, now time.Time) *messages.DeltaUpdate {
	du := messages.NewDeltaUpdate(source, "simulator", "vessels.urn:mrn:imo:mmsi:"+v.id, now)

	add := func(path string, value interface{}) {
		if data, err := json.Marshal(value); err == nil {
			du.Add(path, data)
		}
	}

	add(ingest.PathPosition, map[string]float64{"latitude": v.lat, "longitude": v.lon})
	add(ingest.PathSOG, v.sog)
	add(ingest.PathCOG, v.cog)
	if !v.fixed {
		add(ingest.PathHeading, v.cog)
	}

	if v.reports%StaticEvery == 0 {
		add(ingest.PathName, v.name)
		add(ingest.PathAISClass, v.class)
		if v.callsign != "" {
			add(ingest.PathCallsign, v.callsign)
		}
		if v.shipType != 0 {
			add(ingest.PathShipType, map[string]interface{}{"id": v.shipType, "name": v.typeName})
		}
		if v.length > 0 {
			add(ingest.PathLength, map[string]float64{"overall": v.length})
		}
	}
	v.reports++

	du.Envelope.CorrelationID = uuid.New().String()
	return du
}

// weightedRandomSelect selects a key from a weights map using weighted random selection
func weightedRandomSelect(rng *rand.Rand, weights map[string]int) string {
	keys := make([]string, 0, len(weights))
	total := 0
	for key, weight := range weights {
		keys = append(keys, key)
		total += weight
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		return ""
	}
	if total == 0 {
		return keys[0]
	}

	r := rng.Intn(total)
	cumulative := 0
	for _, key := range keys {
		cumulative += weights[key]
		if r < cumulative {
			return key
		}
	}
	return keys[0]
}

// SimulatorAgent publishes the scenario as vessel deltas
type SimulatorAgent struct {
	*agent.BaseAgent
	logger   zerolog.Logger
	config   *SimulatorConfig
	scenario *Scenario
}

// NewSimulatorAgent creates a new simulator agent
func NewSimulatorAgent(cfg agent.Config, scenario *Scenario, config *SimulatorConfig) (*SimulatorAgent, error) {
	base, err := agent.NewBaseAgent(cfg)
	if err != nil {
		return nil, err
	}

	s := &SimulatorAgent{
		BaseAgent: base,
		logger:    *base.Logger(),
		config:    config,
		scenario:  scenario,
	}
	scenario.Resize(config.GetVesselCount(), config.GetKindWeights())
	return s, nil
}

// Routes returns the HTTP routes of the simulator
func (s *SimulatorAgent) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(handler.CorrelationID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(s.Metrics(), promhttp.HandlerOpts{}))
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/config", func(r chi.Router) {
		r.Get("/", s.handleGetConfig)
		r.Patch("/", s.handlePatchConfig)
		r.Post("/reset", s.handleResetConfig)
	})

	return r
}

func (s *SimulatorAgent) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.Health()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	handler.WriteJSON(w, status, health)
}

// handleGetConfig handles GET /api/v1/config
func (s *SimulatorAgent) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	handler.WriteJSON(w, http.StatusOK, s.config.Snapshot())
}

// handlePatchConfig handles PATCH /api/v1/config
func (s *SimulatorAgent) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	correlationID := handler.GetCorrelationID(r.Context())

	var req ConfigUpdateRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error(), correlationID)
		return
	}

	if req.EmissionIntervalMS != nil {
		interval := time.Duration(*req.EmissionIntervalMS) * time.Millisecond
		if err := s.config.SetEmissionInterval(interval); err != nil {
			handler.WriteError(w, http.StatusBadRequest, err.Error(), correlationID)
			return
		}
		s.logger.Info().Dur("emission_interval", interval).Msg("Updated emission interval")
	}

	if req.VesselCount != nil {
		if err := s.config.SetVesselCount(*req.VesselCount); err != nil {
			handler.WriteError(w, http.StatusBadRequest, err.Error(), correlationID)
			return
		}
		s.logger.Info().Int("vessel_count", *req.VesselCount).Msg("Updated vessel count")
	}

	if req.Paused != nil {
		s.config.SetPaused(*req.Paused)
		s.logger.Info().Bool("paused", *req.Paused).Msg("Updated paused state")
	}

	if req.KindWeights != nil {
		if err := s.config.SetKindWeights(*req.KindWeights); err != nil {
			handler.WriteError(w, http.StatusBadRequest, err.Error(), correlationID)
			return
		}
		s.scenario.Regenerate(s.config.GetVesselCount(), s.config.GetKindWeights())
		s.logger.Info().Interface("kind_weights", *req.KindWeights).Msg("Regenerated traffic with new mix")
	} else if req.VesselCount != nil {
		s.scenario.Resize(*req.VesselCount, s.config.GetKindWeights())
	}

	if req.ClearStreams != nil && *req.ClearStreams {
		if err := s.purgeStreams(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("Error during stream purge")
		}
	}

	s.handleGetConfig(w, r)
}

// handleResetConfig handles POST /api/v1/config/reset
func (s *SimulatorAgent) handleResetConfig(w http.ResponseWriter, r *http.Request) {
	s.config.Reset()
	s.scenario.Regenerate(DefaultVesselCount, DefaultKindWeights)
	s.logger.Info().Msg("Configuration reset to defaults")
	s.handleGetConfig(w, r)
}

// purgeStreams drops queued deltas and the tracker's consumer so a restarted
// scenario does not replay stale positions
func (s *SimulatorAgent) purgeStreams(ctx context.Context) error {
	js := s.JetStream()
	if js == nil {
		return fmt.Errorf("not connected to NATS")
	}

	stream, err := js.Stream(ctx, natsutil.StreamDeltas)
	if err != nil {
		return fmt.Errorf("stream %s not found: %w", natsutil.StreamDeltas, err)
	}
	if err := stream.DeleteConsumer(ctx, natsutil.ConsumerTracker); err != nil {
		s.logger.Warn().Err(err).Str("consumer", natsutil.ConsumerTracker).Msg("Could not delete consumer")
	}
	if err := stream.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge stream %s: %w", natsutil.StreamDeltas, err)
	}

	s.logger.Info().Str("stream", natsutil.StreamDeltas).Msg("Purged stream")
	return nil
}

// Run moves the scenario and publishes it every emission interval
func (s *SimulatorAgent) Run(ctx context.Context) error {
	if err := natsutil.SetupStreams(ctx, s.JetStream()); err != nil {
		return fmt.Errorf("failed to setup streams: %w", err)
	}

	interval := s.config.GetEmissionInterval()
	s.logger.Info().
		Dur("interval", interval).
		Int("vessels", s.scenario.Len()).
		Msg("Starting AIS simulation")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			snap := s.config.Snapshot()
			if current := time.Duration(snap.EmissionIntervalMS) * time.Millisecond; current != interval {
				ticker.Reset(current)
				interval = current
			}

			s.scenario.Step(now.Sub(last))
			last = now

			if snap.Paused {
				continue
			}
			s.emit(ctx, now)
		}
	}
}

func (s *SimulatorAgent) emit(ctx context.Context, now time.Time) {
	for _, du := range s.scenario.Deltas(s.ID(), now) {
		if err := s.Publish(ctx, du, "vessel_delta"); err != nil {
			s.logger.Error().Err(err).Str("context", du.Context).Msg("Failed to publish delta")
			continue
		}
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", val).Msg("Invalid number, using default")
	}
	return defaultVal
}

func setupLogging() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if getEnv("LOG_JSON", "false") == "true" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
}

func main() {
	setupLogging()

	cfg := agent.Config{
		ID:           getEnv("AGENT_ID", "simulator-001"),
		Type:         agent.AgentTypeSimulator,
		NATSUrl:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSUser:     os.Getenv("NATS_USER"),
		NATSPassword: os.Getenv("NATS_PASSWORD"),
		Secret:       []byte(os.Getenv("AGENT_SECRET")),
	}

	selfID := getEnv("SELF_ID", "366000000")
	if _, ok := ingest.ExtractID(selfID); !ok || len(selfID) != 9 {
		log.Fatal().Str("self_id", selfID).Msg("SELF_ID must be a 9-digit identity")
	}

	config := NewSimulatorConfig()
	if intervalStr := os.Getenv("EMISSION_INTERVAL"); intervalStr != "" {
		if interval, err := time.ParseDuration(intervalStr); err != nil || config.SetEmissionInterval(interval) != nil {
			log.Warn().Str("value", intervalStr).Msg("Invalid EMISSION_INTERVAL, using default")
		}
	}
	if countStr := os.Getenv("VESSEL_COUNT"); countStr != "" {
		if count, err := strconv.Atoi(countStr); err != nil || config.SetVesselCount(count) != nil {
			log.Warn().Str("value", countStr).Msg("Invalid VESSEL_COUNT, using default")
		}
	}

	seed := time.Now().UnixNano()
	if seedStr := os.Getenv("SIM_SEED"); seedStr != "" {
		if v, err := strconv.ParseInt(seedStr, 10, 64); err == nil {
			seed = v
		}
	}

	scenario := NewScenario(selfID,
		getFloat("SELF_LAT", 39.95),
		getFloat("SELF_LON", -75.12),
		getFloat("SELF_SOG_KN", 6),
		getFloat("SELF_COG_DEG", 0),
		rand.New(rand.NewSource(seed)))

	sim, err := NewSimulatorAgent(cfg, scenario, config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create simulator agent")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	go func() {
		addr := getEnv("HTTP_ADDR", ":9090")
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := http.ListenAndServe(addr, sim.Routes()); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	if err := sim.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start simulator agent")
	}

	if err := sim.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Simulator error")
	}

	sim.Stop(context.Background())
}
