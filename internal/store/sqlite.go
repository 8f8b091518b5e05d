package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscope/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id              TEXT PRIMARY KEY,
	domain          TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	location        TEXT,
	signals         TEXT NOT NULL,
	scores          TEXT NOT NULL,
	opportunity     TEXT NOT NULL,
	recommendations TEXT,
	competitors     TEXT,
	sequence        INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pipeline_items (
	id             TEXT PRIMARY KEY,
	profile_id     TEXT NOT NULL REFERENCES profiles(id),
	item_type      TEXT NOT NULL,
	status         TEXT NOT NULL,
	priority       TEXT NOT NULL,
	notes          TEXT,
	last_contacted DATETIME,
	added_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS status_changes (
	id          TEXT PRIMARY KEY,
	item_id     TEXT NOT NULL REFERENCES pipeline_items(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	note        TEXT,
	at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_profiles_domain ON profiles(domain);
CREATE INDEX IF NOT EXISTS idx_pipeline_items_type ON pipeline_items(item_type);
CREATE INDEX IF NOT EXISTS idx_pipeline_items_status ON pipeline_items(status);
CREATE INDEX IF NOT EXISTS idx_status_changes_item_id ON status_changes(item_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const profileColumns = `id, domain, name, location, signals, scores, opportunity, recommendations, competitors, sequence, created_at, updated_at`

func (s *SQLiteStore) SaveProfile(ctx context.Context, p *model.BusinessProfile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	blobs, err := marshalProfile(p)
	if err != nil {
		return err
	}

	// The sequence guard makes replayed saves with an older sequence no-ops.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET
		   name = excluded.name, location = excluded.location,
		   signals = excluded.signals, scores = excluded.scores,
		   opportunity = excluded.opportunity,
		   recommendations = excluded.recommendations,
		   competitors = excluded.competitors,
		   sequence = excluded.sequence, updated_at = excluded.updated_at
		 WHERE excluded.sequence >= profiles.sequence`,
		p.ID, p.Domain, p.Name, p.Location,
		blobs.signals, blobs.scores, blobs.opportunity, blobs.recommendations, blobs.competitors,
		p.Sequence, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save profile %s", p.Domain)
	}

	// On conflict the stored row keeps its original id and created_at;
	// reflect them back onto the caller's record.
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM profiles WHERE domain = ?`, p.Domain)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return eris.Wrapf(err, "sqlite: reload profile %s", p.Domain)
	}
	return nil
}

func (s *SQLiteStore) SaveProfiles(ctx context.Context, ps []*model.BusinessProfile) error {
	for _, p := range ps {
		if err := s.SaveProfile(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*model.BusinessProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	return scanProfile(row)
}

func (s *SQLiteStore) GetProfileByDomain(ctx context.Context, domain string) (*model.BusinessProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE domain = ?`, domain)
	return scanProfile(row)
}

func (s *SQLiteStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.BusinessProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE 1=1`
	var args []any

	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.MinLeadScore > 0 {
		query += ` AND json_extract(scores, '$.lead') >= ?`
		args = append(args, filter.MinLeadScore)
	}
	if filter.MinOpportunity > 0 {
		query += ` AND json_extract(opportunity, '$.total') >= ?`
		args = append(args, filter.MinOpportunity)
	}
	if filter.RankByLead {
		query += ` ORDER BY json_extract(scores, '$.lead') DESC, updated_at DESC`
	} else {
		query += ` ORDER BY updated_at DESC`
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profiles")
	}
	defer rows.Close()

	var profiles []model.BusinessProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, eris.Wrap(rows.Err(), "sqlite: list profiles iterate")
}

func (s *SQLiteStore) DeleteProfile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete profile %s", id)
	}
	return checkRowsAffected(res, "profile", id)
}

func (s *SQLiteStore) CreateItem(ctx context.Context, item *model.PipelineItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_items (id, profile_id, item_type, status, priority, notes, last_contacted, added_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ProfileID, string(item.ItemType), string(item.Status), string(item.Priority),
		item.Notes, item.LastContacted, item.AddedAt, item.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert item for profile %s", item.ProfileID)
}

const itemColumns = `id, profile_id, item_type, status, priority, notes, last_contacted, added_at, updated_at`

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*model.PipelineItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM pipeline_items WHERE id = ?`, id)
	return scanItem(row)
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, item *model.PipelineItem) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_items SET status = ?, priority = ?, notes = ?, last_contacted = ?, updated_at = ? WHERE id = ?`,
		string(item.Status), string(item.Priority), item.Notes, item.LastContacted, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update item %s", item.ID)
	}
	return checkRowsAffected(res, "item", item.ID)
}

func (s *SQLiteStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.PipelineItem, error) {
	query := `SELECT ` + itemColumns + ` FROM pipeline_items WHERE 1=1`
	var args []any

	if filter.ItemType != "" {
		query += ` AND item_type = ?`
		args = append(args, string(filter.ItemType))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(filter.Priority))
	}
	query += ` ORDER BY added_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list items")
	}
	defer rows.Close()

	var items []model.PipelineItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM status_changes WHERE item_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete item history %s", id)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_items WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete item %s", id)
	}
	return checkRowsAffected(res, "item", id)
}

func (s *SQLiteStore) CommitTransition(ctx context.Context, item *model.PipelineItem, change *model.StatusChange) error {
	if change.ID == "" {
		change.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transition")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE pipeline_items SET status = ?, priority = ?, notes = ?, last_contacted = ?, updated_at = ? WHERE id = ?`,
		string(item.Status), string(item.Priority), item.Notes, item.LastContacted, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition item %s", item.ID)
	}
	if err := checkRowsAffected(res, "item", item.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO status_changes (id, item_id, from_status, to_status, note, at) VALUES (?, ?, ?, ?, ?, ?)`,
		change.ID, change.ItemID, string(change.From), string(change.To), change.Note, change.At,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record status change for item %s", item.ID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit transition")
}

func (s *SQLiteStore) ListStatusChanges(ctx context.Context, itemID string) ([]model.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, from_status, to_status, note, at FROM status_changes WHERE item_id = ? ORDER BY at ASC`,
		itemID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list status changes %s", itemID)
	}
	defer rows.Close()

	var changes []model.StatusChange
	for rows.Next() {
		var c model.StatusChange
		var note sql.NullString
		if err := rows.Scan(&c.ID, &c.ItemID, &c.From, &c.To, &note, &c.At); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status change")
		}
		c.Note = note.String
		changes = append(changes, c)
	}
	return changes, eris.Wrap(rows.Err(), "sqlite: list status changes iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

type profileBlobs struct {
	signals         string
	scores          string
	opportunity     string
	recommendations string
	competitors     string
}

func marshalProfile(p *model.BusinessProfile) (*profileBlobs, error) {
	signals, err := json.Marshal(p.Signals)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal signals")
	}
	scores, err := json.Marshal(p.Scores)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal scores")
	}
	opportunity, err := json.Marshal(p.Opportunity)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal opportunity")
	}
	recommendations, err := json.Marshal(p.Recommendations)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal recommendations")
	}
	competitors, err := json.Marshal(p.Competitors)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal competitors")
	}
	return &profileBlobs{
		signals:         string(signals),
		scores:          string(scores),
		opportunity:     string(opportunity),
		recommendations: string(recommendations),
		competitors:     string(competitors),
	}, nil
}

func scanProfile(row scannable) (*model.BusinessProfile, error) {
	var p model.BusinessProfile
	var location sql.NullString
	var signals, scores, opportunity string
	var recommendations, competitors sql.NullString

	err := row.Scan(&p.ID, &p.Domain, &p.Name, &location,
		&signals, &scores, &opportunity, &recommendations, &competitors,
		&p.Sequence, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "profile")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan profile")
	}
	p.Location = location.String

	if err := json.Unmarshal([]byte(signals), &p.Signals); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal signals")
	}
	if err := json.Unmarshal([]byte(scores), &p.Scores); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal scores")
	}
	if err := json.Unmarshal([]byte(opportunity), &p.Opportunity); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal opportunity")
	}
	if recommendations.Valid && recommendations.String != "" {
		if err := json.Unmarshal([]byte(recommendations.String), &p.Recommendations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal recommendations")
		}
	}
	if competitors.Valid && competitors.String != "" {
		if err := json.Unmarshal([]byte(competitors.String), &p.Competitors); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal competitors")
		}
	}
	return &p, nil
}

func scanItem(row scannable) (*model.PipelineItem, error) {
	var it model.PipelineItem
	var notes sql.NullString
	var lastContacted sql.NullTime

	err := row.Scan(&it.ID, &it.ProfileID, &it.ItemType, &it.Status, &it.Priority,
		&notes, &lastContacted, &it.AddedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "item")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan item")
	}
	it.Notes = notes.String
	if lastContacted.Valid {
		t := lastContacted.Time
		it.LastContacted = &t
	}
	return &it, nil
}
