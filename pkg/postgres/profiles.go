package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agile-defense/vesselwatch/pkg/risk"
)

const currentProfileKey = "current_profile"

const schema = `
	CREATE TABLE IF NOT EXISTS collision_profiles (
		name        TEXT PRIMARY KEY,
		thresholds  JSONB NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS tracker_settings (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// ErrNoProfiles is returned when the database holds no collision profiles
var ErrNoProfiles = errors.New("no collision profiles stored")

// ProfileStore persists collision profiles and the active profile selection
type ProfileStore struct {
	pool *Pool
}

// NewProfileStore creates a profile store over pool
func NewProfileStore(pool *Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// EnsureSchema creates the profile tables if they do not exist
func (s *ProfileStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create profile schema: %w", err)
	}
	return nil
}

// LoadProfiles reads every stored profile and the current selection.
// Returns ErrNoProfiles when the tables are empty.
func (s *ProfileStore) LoadProfiles(ctx context.Context) (risk.ProfileSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, thresholds FROM collision_profiles ORDER BY name`)
	if err != nil {
		return risk.ProfileSet{}, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	set := risk.ProfileSet{Profiles: make(map[string]risk.Profile)}
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			return risk.ProfileSet{}, fmt.Errorf("failed to scan profile: %w", err)
		}
		p, err := decodeProfile(raw)
		if err != nil {
			return risk.ProfileSet{}, fmt.Errorf("profile %q: %w", name, err)
		}
		set.Profiles[name] = p
	}
	if err := rows.Err(); err != nil {
		return risk.ProfileSet{}, fmt.Errorf("error iterating profiles: %w", err)
	}
	if len(set.Profiles) == 0 {
		return risk.ProfileSet{}, ErrNoProfiles
	}

	err = s.pool.QueryRow(ctx, `SELECT value FROM tracker_settings WHERE key = $1`, currentProfileKey).Scan(&set.Current)
	if errors.Is(err, pgx.ErrNoRows) {
		set.Current = set.Names()[0]
	} else if err != nil {
		return risk.ProfileSet{}, fmt.Errorf("failed to get current profile: %w", err)
	}

	if err := set.Validate(); err != nil {
		return risk.ProfileSet{}, fmt.Errorf("stored profiles are invalid: %w", err)
	}
	return set, nil
}

// SaveProfiles replaces the stored profiles and selection with set
func (s *ProfileStore) SaveProfiles(ctx context.Context, set risk.ProfileSet) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("invalid profile set: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM collision_profiles`); err != nil {
		return fmt.Errorf("failed to clear profiles: %w", err)
	}

	batch := &pgx.Batch{}
	for _, name := range set.Names() {
		raw, err := encodeProfile(set.Profiles[name])
		if err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		batch.Queue(`INSERT INTO collision_profiles (name, thresholds) VALUES ($1, $2)`, name, raw)
	}
	batch.Queue(upsertSetting, currentProfileKey, set.Current)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store profiles: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveCurrent stores the active profile selection
func (s *ProfileStore) SaveCurrent(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, upsertSetting, currentProfileKey, name); err != nil {
		return fmt.Errorf("failed to save current profile: %w", err)
	}
	return nil
}

const upsertSetting = `
	INSERT INTO tracker_settings (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
`

func encodeProfile(p risk.Profile) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thresholds: %w", err)
	}
	return raw, nil
}

func decodeProfile(raw []byte) (risk.Profile, error) {
	var p risk.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return risk.Profile{}, fmt.Errorf("failed to decode thresholds: %w", err)
	}
	return p, nil
}
