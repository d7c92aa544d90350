/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/pulseboard-io/pulseboard/internal/config"
    "github.com/pulseboard-io/pulseboard/internal/domain"
    "github.com/rs/zerolog"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

// Repository is a key-value document store over a single jsonb table.
// Saves overwrite the whole document for a key: last writer wins, no
// ordering guarantees between sessions.
type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

// Persisted state keys, one document per domain.
const (
    KeyConfig          = "config"
    KeyTeamConfig      = "teamConfig"
    KeyAbsences        = "absences"
    KeyRisks           = "risks"
    KeyCommunications  = "communications"
    KeyVelocityConfig  = "velocityConfig"
    KeyUserPreferences = "userPreferences"
)

var knownKeys = map[string]bool{
    KeyConfig: true, KeyTeamConfig: true, KeyAbsences: true, KeyRisks: true,
    KeyCommunications: true, KeyVelocityConfig: true, KeyUserPreferences: true,
}

var ErrUnknownKey = errors.New("unknown document key")

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

// GetDocument returns the raw document for a key, or nil when absent.
func (r *Repository) GetDocument(ctx context.Context, key string) (json.RawMessage, error) {
    if !knownKeys[key] { return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key) }
    var doc []byte
    err := r.db.Pool.QueryRow(ctx, `SELECT doc FROM documents WHERE key=$1`, key).Scan(&doc)
    if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
    if err != nil { return nil, err }
    return doc, nil
}

// PutDocument overwrites the whole document for a key.
func (r *Repository) PutDocument(ctx context.Context, key string, doc json.RawMessage) error {
    if !knownKeys[key] { return fmt.Errorf("%w: %s", ErrUnknownKey, key) }
    const q = `INSERT INTO documents(key, doc, updated_at) VALUES($1,$2,now())
        ON CONFLICT(key) DO UPDATE SET doc=EXCLUDED.doc, updated_at=now()`
    _, err := r.db.Pool.Exec(ctx, q, key, doc)
    return err
}

func getTyped[T any](r *Repository, ctx context.Context, key string, out *T) error {
    doc, err := r.GetDocument(ctx, key)
    if err != nil { return err }
    if doc == nil { return nil }
    return json.Unmarshal(doc, out)
}

func putTyped[T any](r *Repository, ctx context.Context, key string, v T) error {
    doc, err := json.Marshal(v)
    if err != nil { return err }
    return r.PutDocument(ctx, key, doc)
}

type TeamConfig struct {
    TeamMembers []domain.TeamMember `json:"teamMembers"`
}

func (r *Repository) GetProjectConfig(ctx context.Context) (domain.ProjectConfig, error) {
    var c domain.ProjectConfig
    err := getTyped(r, ctx, KeyConfig, &c)
    return c, err
}

func (r *Repository) SaveProjectConfig(ctx context.Context, c domain.ProjectConfig) error {
    return putTyped(r, ctx, KeyConfig, c)
}

func (r *Repository) GetTeamConfig(ctx context.Context) (TeamConfig, error) {
    var t TeamConfig
    err := getTyped(r, ctx, KeyTeamConfig, &t)
    return t, err
}

func (r *Repository) SaveTeamConfig(ctx context.Context, t TeamConfig) error {
    return putTyped(r, ctx, KeyTeamConfig, t)
}

func (r *Repository) GetAbsences(ctx context.Context) ([]domain.Absence, error) {
    var a []domain.Absence
    err := getTyped(r, ctx, KeyAbsences, &a)
    return a, err
}

func (r *Repository) SaveAbsences(ctx context.Context, a []domain.Absence) error {
    return putTyped(r, ctx, KeyAbsences, a)
}

func (r *Repository) GetRisks(ctx context.Context) ([]domain.Risk, error) {
    var v []domain.Risk
    err := getTyped(r, ctx, KeyRisks, &v)
    return v, err
}

func (r *Repository) SaveRisks(ctx context.Context, v []domain.Risk) error {
    return putTyped(r, ctx, KeyRisks, v)
}

func (r *Repository) GetCommunications(ctx context.Context) ([]domain.CommunicationEntry, error) {
    var v []domain.CommunicationEntry
    err := getTyped(r, ctx, KeyCommunications, &v)
    return v, err
}

func (r *Repository) SaveCommunications(ctx context.Context, v []domain.CommunicationEntry) error {
    return putTyped(r, ctx, KeyCommunications, v)
}

func (r *Repository) GetVelocityConfig(ctx context.Context) (domain.VelocityConfig, error) {
    v := domain.VelocityConfig{
        Mode:                domain.VelocityModeStatic,
        MetricType:          domain.MetricIssues,
        StaticHoursPerIssue: 8,
        StaticHoursPerPoint: 4,
        LookbackIterations:  3,
    }
    err := getTyped(r, ctx, KeyVelocityConfig, &v)
    return v, err
}

func (r *Repository) SaveVelocityConfig(ctx context.Context, v domain.VelocityConfig) error {
    return putTyped(r, ctx, KeyVelocityConfig, v)
}

func (r *Repository) GetUserPreferences(ctx context.Context) (domain.UserPreferences, error) {
    var v domain.UserPreferences
    err := getTyped(r, ctx, KeyUserPreferences, &v)
    return v, err
}

func (r *Repository) SaveUserPreferences(ctx context.Context, v domain.UserPreferences) error {
    return putTyped(r, ctx, KeyUserPreferences, v)
}
