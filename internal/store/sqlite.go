package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id               TEXT NOT NULL UNIQUE,
	title                   TEXT NOT NULL DEFAULT '',
	url                     TEXT NOT NULL DEFAULT '',
	description             TEXT NOT NULL DEFAULT '',
	municipality            TEXT NOT NULL DEFAULT '',
	price                   REAL,
	area                    REAL,
	land_type               TEXT NOT NULL DEFAULT '',
	legal_status            TEXT NOT NULL DEFAULT '',
	location_lat            REAL,
	location_lon            REAL,
	location_accuracy       TEXT NOT NULL DEFAULT '',
	infrastructure_basic    TEXT,
	infrastructure_extended TEXT,
	transport               TEXT,
	environment             TEXT,
	services_quality        TEXT,
	travel                  TEXT,
	extra                   TEXT,
	score_total             REAL,
	score_investment        REAL,
	score_lifestyle         REAL,
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scoring_criteria (
	profile       TEXT NOT NULL,
	criteria_name TEXT NOT NULL,
	weight        REAL NOT NULL,
	active        INTEGER NOT NULL DEFAULT 1,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (profile, criteria_name)
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS enrichment_runs (
	id          TEXT PRIMARY KEY,
	listing_id  INTEGER NOT NULL REFERENCES listings(id),
	status      TEXT NOT NULL DEFAULT 'running',
	phases      TEXT,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_listings_location ON listings(location_lat, location_lon);
CREATE INDEX IF NOT EXISTS idx_listings_score_total ON listings(score_total);
CREATE INDEX IF NOT EXISTS idx_enrichment_runs_listing_id ON enrichment_runs(listing_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Listings

func (s *SQLiteStore) CreateListing(ctx context.Context, l *model.Listing) error {
	facts, err := encodeFacts(l)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO listings (source_id, title, url, description, municipality, price, area,
			land_type, legal_status, location_lat, location_lon, location_accuracy,
			infrastructure_basic, infrastructure_extended, transport, environment,
			services_quality, travel, extra, score_total, score_investment, score_lifestyle,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.SourceID, l.Title, l.URL, l.Description, l.Municipality, l.Price, l.Area,
		l.LandType, l.LegalStatus, l.Lat, l.Lon, accuracyOrUnknown(l),
		string(facts.Infrastructure), string(facts.Amenities), string(facts.Transport), string(facts.Environment),
		string(facts.Services), string(facts.Travel), string(facts.Extra),
		l.ScoreTotal, l.ScoreInvestment, l.ScoreLifestyle, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert listing %s", l.SourceID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	l.ID = id
	l.CreatedAt = now
	l.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "listing %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get listing %d", id)
	}
	return l, nil
}

func (s *SQLiteStore) SaveListing(ctx context.Context, l *model.Listing) error {
	return saveListingSQLite(ctx, s.db, l)
}

func (s *SQLiteStore) SaveListingsBatch(ctx context.Context, ls []*model.Listing) error {
	if len(ls) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin batch")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, l := range ls {
		if err := saveListingSQLite(ctx, tx, l); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit batch")
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveListingSQLite(ctx context.Context, ex sqlExecer, l *model.Listing) error {
	facts, err := encodeFacts(l)
	if err != nil {
		return err
	}
	l.UpdatedAt = time.Now().UTC()

	res, err := ex.ExecContext(ctx,
		`UPDATE listings SET title = ?, url = ?, description = ?, municipality = ?, price = ?, area = ?,
			land_type = ?, legal_status = ?, location_lat = ?, location_lon = ?, location_accuracy = ?,
			infrastructure_basic = ?, infrastructure_extended = ?, transport = ?, environment = ?,
			services_quality = ?, travel = ?, extra = ?, score_total = ?, score_investment = ?,
			score_lifestyle = ?, updated_at = ?
		 WHERE id = ?`,
		l.Title, l.URL, l.Description, l.Municipality, l.Price, l.Area,
		l.LandType, l.LegalStatus, l.Lat, l.Lon, accuracyOrUnknown(l),
		string(facts.Infrastructure), string(facts.Amenities), string(facts.Transport), string(facts.Environment),
		string(facts.Services), string(facts.Travel), string(facts.Extra),
		l.ScoreTotal, l.ScoreInvestment, l.ScoreLifestyle, l.UpdatedAt, l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save listing %d", l.ID)
	}
	return checkRowsAffected(res, "listing", l.ID)
}

func (s *SQLiteStore) ListingIDs(ctx context.Context, filter ListingFilter) ([]int64, error) {
	query := `SELECT id FROM listings WHERE id > ?`
	args := []any{filter.AfterID}
	if filter.OnlyPending {
		query += ` AND (score_total IS NULL OR location_lat IS NULL OR location_lon IS NULL)`
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listing ids")
	}
	defer rows.Close() //nolint:errcheck

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list listing ids iterate")
}

func (s *SQLiteStore) CoordinatesClaimed(ctx context.Context, lat, lon float64, excludeID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE location_lat = ? AND location_lon = ? AND id != ?`,
		lat, lon, excludeID,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: coordinates claimed")
	}
	return n > 0, nil
}

// Scoring criteria

func (s *SQLiteStore) LoadCriteria(ctx context.Context, profile model.Profile) ([]model.ScoringCriterion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT criteria_name, profile, weight, active, updated_at FROM scoring_criteria
		 WHERE profile = ? ORDER BY criteria_name`,
		string(profile),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load criteria %s", profile)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ScoringCriterion
	for rows.Next() {
		var c model.ScoringCriterion
		if err := rows.Scan(&c.Name, &c.Profile, &c.Weight, &c.Active, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan criterion")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load criteria iterate")
}

func (s *SQLiteStore) SaveCriteria(ctx context.Context, profile model.Profile, criteria []model.ScoringCriterion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save criteria")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, c := range criteria {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO scoring_criteria (profile, criteria_name, weight, active, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (profile, criteria_name) DO UPDATE SET
			 	weight = excluded.weight, active = excluded.active, updated_at = excluded.updated_at`,
			string(profile), c.Name, c.Weight, c.Active, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save criterion %s/%s", profile, c.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save criteria")
}

// Settings

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "setting %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set setting %s", key)
}

// Enrichment runs

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	phasesJSON, err := json.Marshal(run.Phases)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phases")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_runs (id, listing_id, status, phases, error, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.ListingID, string(run.Status), string(phasesJSON), run.Error, run.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	phasesJSON, err := json.Marshal(run.Phases)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phases")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_runs SET status = ?, phases = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), string(phasesJSON), run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	var phasesJSON sql.NullString
	var finished sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, listing_id, status, phases, error, started_at, finished_at FROM enrichment_runs WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.ListingID, &r.Status, &phasesJSON, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	if phasesJSON.Valid && phasesJSON.String != "" {
		if err := json.Unmarshal([]byte(phasesJSON.String), &r.Phases); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal phases")
		}
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %v", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanListing(row scannable) (*model.Listing, error) {
	var l model.Listing
	var price, area, lat, lon, total, inv, life sql.NullFloat64
	var accuracy string
	var infra, amen, transport, env, services, travel, extra sql.NullString

	err := row.Scan(
		&l.ID, &l.SourceID, &l.Title, &l.URL, &l.Description, &l.Municipality, &price, &area,
		&l.LandType, &l.LegalStatus, &lat, &lon, &accuracy,
		&infra, &amen, &transport, &env, &services, &travel, &extra,
		&total, &inv, &life, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Price = nullFloat(price)
	l.Area = nullFloat(area)
	l.ScoreTotal = nullFloat(total)
	l.ScoreInvestment = nullFloat(inv)
	l.ScoreLifestyle = nullFloat(life)
	if lat.Valid && lon.Valid {
		l.SetLocation(lat.Float64, lon.Float64, model.Accuracy(accuracy))
	}

	facts := &listingFacts{
		Infrastructure: []byte(infra.String),
		Amenities:      []byte(amen.String),
		Transport:      []byte(transport.String),
		Environment:    []byte(env.String),
		Services:       []byte(services.String),
		Travel:         []byte(travel.String),
		Extra:          []byte(extra.String),
	}
	if err := decodeFacts(&l, facts); err != nil {
		return nil, err
	}
	return &l, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
