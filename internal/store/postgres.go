package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/db"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	upsertCriterionSQL = db.MustUpsertSQL(db.UpsertConfig{
		Table:        "scoring_criteria",
		Columns:      []string{"profile", "criteria_name", "weight", "active", "updated_at"},
		ConflictKeys: []string{"profile", "criteria_name"},
	})
	upsertSettingSQL = db.MustUpsertSQL(db.UpsertConfig{
		Table:        "settings",
		Columns:      []string{"key", "value", "updated_at"},
		ConflictKeys: []string{"key"},
	})
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id                      BIGSERIAL PRIMARY KEY,
	source_id               TEXT NOT NULL UNIQUE,
	title                   TEXT NOT NULL DEFAULT '',
	url                     TEXT NOT NULL DEFAULT '',
	description             TEXT NOT NULL DEFAULT '',
	municipality            TEXT NOT NULL DEFAULT '',
	price                   DOUBLE PRECISION,
	area                    DOUBLE PRECISION,
	land_type               TEXT NOT NULL DEFAULT '',
	legal_status            TEXT NOT NULL DEFAULT '',
	location_lat            DOUBLE PRECISION,
	location_lon            DOUBLE PRECISION,
	location_accuracy       TEXT NOT NULL DEFAULT '',
	infrastructure_basic    JSONB,
	infrastructure_extended JSONB,
	transport               JSONB,
	environment             JSONB,
	services_quality        JSONB,
	travel                  JSONB,
	extra                   JSONB,
	score_total             DOUBLE PRECISION,
	score_investment        DOUBLE PRECISION,
	score_lifestyle         DOUBLE PRECISION,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scoring_criteria (
	profile       TEXT NOT NULL,
	criteria_name TEXT NOT NULL,
	weight        DOUBLE PRECISION NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT true,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (profile, criteria_name)
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enrichment_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	listing_id  BIGINT NOT NULL REFERENCES listings(id),
	status      TEXT NOT NULL DEFAULT 'running',
	phases      JSONB,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_listings_location ON listings(location_lat, location_lon);
CREATE INDEX IF NOT EXISTS idx_listings_pending ON listings(id) WHERE score_total IS NULL OR location_lat IS NULL;
CREATE INDEX IF NOT EXISTS idx_enrichment_runs_listing_id ON enrichment_runs(listing_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Listings

func (s *PostgresStore) CreateListing(ctx context.Context, l *model.Listing) error {
	facts, err := encodeFacts(l)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	err = s.pool.QueryRow(ctx,
		`INSERT INTO listings (source_id, title, url, description, municipality, price, area,
			land_type, legal_status, location_lat, location_lon, location_accuracy,
			infrastructure_basic, infrastructure_extended, transport, environment,
			services_quality, travel, extra, score_total, score_investment, score_lifestyle,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		 RETURNING id`,
		l.SourceID, l.Title, l.URL, l.Description, l.Municipality, l.Price, l.Area,
		l.LandType, l.LegalStatus, l.Lat, l.Lon, accuracyOrUnknown(l),
		facts.Infrastructure, facts.Amenities, facts.Transport, facts.Environment,
		facts.Services, facts.Travel, facts.Extra,
		l.ScoreTotal, l.ScoreInvestment, l.ScoreLifestyle, now, now,
	).Scan(&l.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert listing %s", l.SourceID)
	}
	l.CreatedAt = now
	l.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanPgListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "listing %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get listing %d", id)
	}
	return l, nil
}

// execFunc is satisfied by both Pool.Exec and pgx.Tx.Exec.
type execFunc func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

func (s *PostgresStore) SaveListing(ctx context.Context, l *model.Listing) error {
	return savePgListing(ctx, s.pool.Exec, l)
}

func (s *PostgresStore) SaveListingsBatch(ctx context.Context, ls []*model.Listing) error {
	if len(ls) == 0 {
		return nil
	}
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, l := range ls {
			if err := savePgListing(ctx, tx.Exec, l); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListingIDs(ctx context.Context, filter ListingFilter) ([]int64, error) {
	query := `SELECT id FROM listings WHERE id > $1`
	args := []any{filter.AfterID}
	if filter.OnlyPending {
		query += ` AND (score_total IS NULL OR location_lat IS NULL OR location_lon IS NULL)`
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listing ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list listing ids iterate")
}

func (s *PostgresStore) CoordinatesClaimed(ctx context.Context, lat, lon float64, excludeID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE location_lat = $1 AND location_lon = $2 AND id <> $3)`,
		lat, lon, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: coordinates claimed")
	}
	return exists, nil
}

// Scoring criteria

func (s *PostgresStore) LoadCriteria(ctx context.Context, profile model.Profile) ([]model.ScoringCriterion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT criteria_name, profile, weight, active, updated_at FROM scoring_criteria
		 WHERE profile = $1 ORDER BY criteria_name`,
		string(profile),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load criteria %s", profile)
	}
	defer rows.Close()

	var out []model.ScoringCriterion
	for rows.Next() {
		var c model.ScoringCriterion
		var p string
		if err := rows.Scan(&c.Name, &p, &c.Weight, &c.Active, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan criterion")
		}
		c.Profile = model.Profile(p)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load criteria iterate")
}

func (s *PostgresStore) SaveCriteria(ctx context.Context, profile model.Profile, criteria []model.ScoringCriterion) error {
	now := time.Now().UTC()
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, c := range criteria {
			if _, err := tx.Exec(ctx, upsertCriterionSQL, string(profile), c.Name, c.Weight, c.Active, now); err != nil {
				return eris.Wrapf(err, "postgres: save criterion %s/%s", profile, c.Name)
			}
		}
		return nil
	})
}

// Settings

func (s *PostgresStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "setting %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, upsertSettingSQL, key, value, time.Now().UTC())
	return eris.Wrapf(err, "postgres: set setting %s", key)
}

// Enrichment runs

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	phasesJSON, err := json.Marshal(run.Phases)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phases")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO enrichment_runs (id, listing_id, status, phases, error, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.ListingID, string(run.Status), phasesJSON, run.Error, run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	phasesJSON, err := json.Marshal(run.Phases)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phases")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_runs SET status = $1, phases = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(run.Status), phasesJSON, run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	var status string
	var phasesJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, listing_id, status, phases, error, started_at, finished_at FROM enrichment_runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.ListingID, &status, &phasesJSON, &r.Error, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	r.Status = model.RunStatus(status)
	if len(phasesJSON) > 0 {
		if err := json.Unmarshal(phasesJSON, &r.Phases); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal phases")
		}
	}
	return &r, nil
}

// helpers

func savePgListing(ctx context.Context, exec execFunc, l *model.Listing) error {
	facts, err := encodeFacts(l)
	if err != nil {
		return err
	}
	l.UpdatedAt = time.Now().UTC()

	tag, err := exec(ctx,
		`UPDATE listings SET title = $1, url = $2, description = $3, municipality = $4, price = $5, area = $6,
			land_type = $7, legal_status = $8, location_lat = $9, location_lon = $10, location_accuracy = $11,
			infrastructure_basic = $12, infrastructure_extended = $13, transport = $14, environment = $15,
			services_quality = $16, travel = $17, extra = $18, score_total = $19, score_investment = $20,
			score_lifestyle = $21, updated_at = $22
		 WHERE id = $23`,
		l.Title, l.URL, l.Description, l.Municipality, l.Price, l.Area,
		l.LandType, l.LegalStatus, l.Lat, l.Lon, accuracyOrUnknown(l),
		facts.Infrastructure, facts.Amenities, facts.Transport, facts.Environment,
		facts.Services, facts.Travel, facts.Extra,
		l.ScoreTotal, l.ScoreInvestment, l.ScoreLifestyle, l.UpdatedAt, l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save listing %d", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "listing %d", l.ID)
	}
	return nil
}

func scanPgListing(row pgx.Row) (*model.Listing, error) {
	var l model.Listing
	var lat, lon *float64
	var accuracy string
	var facts listingFacts

	err := row.Scan(
		&l.ID, &l.SourceID, &l.Title, &l.URL, &l.Description, &l.Municipality, &l.Price, &l.Area,
		&l.LandType, &l.LegalStatus, &lat, &lon, &accuracy,
		&facts.Infrastructure, &facts.Amenities, &facts.Transport, &facts.Environment,
		&facts.Services, &facts.Travel, &facts.Extra,
		&l.ScoreTotal, &l.ScoreInvestment, &l.ScoreLifestyle, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		l.SetLocation(*lat, *lon, model.Accuracy(accuracy))
	}
	if err := decodeFacts(&l, &facts); err != nil {
		return nil, err
	}
	return &l, nil
}
