package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscope/internal/db"
	"github.com/sells-group/leadscope/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_profile":           `SELECT id, domain, name, location, signals, scores, opportunity, recommendations, competitors, sequence, created_at, updated_at FROM profiles WHERE id = $1`,
	"get_profile_by_domain": `SELECT id, domain, name, location, signals, scores, opportunity, recommendations, competitors, sequence, created_at, updated_at FROM profiles WHERE domain = $1`,
	"get_item":              `SELECT id, profile_id, item_type, status, priority, notes, last_contacted, added_at, updated_at FROM pipeline_items WHERE id = $1`,
	"update_item":           `UPDATE pipeline_items SET status = $1, priority = $2, notes = $3, last_contacted = $4, updated_at = $5 WHERE id = $6`,
	"list_status_changes":   `SELECT id, item_id, from_status, to_status, note, at FROM status_changes WHERE item_id = $1 ORDER BY at ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain          TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	location        TEXT,
	signals         JSONB NOT NULL,
	scores          JSONB NOT NULL,
	opportunity     JSONB NOT NULL,
	recommendations JSONB,
	competitors     JSONB,
	sequence        BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pipeline_items (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	profile_id     TEXT NOT NULL REFERENCES profiles(id),
	item_type      TEXT NOT NULL,
	status         TEXT NOT NULL,
	priority       TEXT NOT NULL,
	notes          TEXT,
	last_contacted TIMESTAMPTZ,
	added_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS status_changes (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	item_id     TEXT NOT NULL REFERENCES pipeline_items(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	note        TEXT,
	at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_profiles_domain ON profiles(domain);
CREATE INDEX IF NOT EXISTS idx_profiles_lead_score ON profiles(((scores->>'lead')::int) DESC);
CREATE INDEX IF NOT EXISTS idx_pipeline_items_type ON pipeline_items(item_type);
CREATE INDEX IF NOT EXISTS idx_pipeline_items_status ON pipeline_items(status);
CREATE INDEX IF NOT EXISTS idx_status_changes_item_id ON status_changes(item_id);
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

func (s *PostgresStore) SaveProfile(ctx context.Context, p *model.BusinessProfile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	blobs, err := marshalProfileJSONB(p)
	if err != nil {
		return err
	}

	// The sequence guard makes replayed saves with an older sequence no-ops.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (id, domain, name, location, signals, scores, opportunity, recommendations, competitors, sequence, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (domain) DO UPDATE SET
		   name = EXCLUDED.name, location = EXCLUDED.location,
		   signals = EXCLUDED.signals, scores = EXCLUDED.scores,
		   opportunity = EXCLUDED.opportunity,
		   recommendations = EXCLUDED.recommendations,
		   competitors = EXCLUDED.competitors,
		   sequence = EXCLUDED.sequence, updated_at = EXCLUDED.updated_at
		 WHERE EXCLUDED.sequence >= profiles.sequence`,
		p.ID, p.Domain, p.Name, p.Location,
		blobs.signals, blobs.scores, blobs.opportunity, blobs.recommendations, blobs.competitors,
		p.Sequence, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save profile %s", p.Domain)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT id, created_at FROM profiles WHERE domain = $1`, p.Domain,
	).Scan(&p.ID, &p.CreatedAt)
	return eris.Wrapf(err, "postgres: reload profile %s", p.Domain)
}

// SaveProfiles bulk-upserts a batch of profiles in one round trip. Batch
// saves skip the sequence guard; they are meant for initial imports, not
// concurrent recomputes.
func (s *PostgresStore) SaveProfiles(ctx context.Context, ps []*model.BusinessProfile) error {
	if len(ps) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(ps))
	for _, p := range ps {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now

		blobs, err := marshalProfileJSONB(p)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			p.ID, p.Domain, p.Name, p.Location,
			blobs.signals, blobs.scores, blobs.opportunity, blobs.recommendations, blobs.competitors,
			p.Sequence, p.CreatedAt, p.UpdatedAt,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "profiles",
		Columns: []string{
			"id", "domain", "name", "location",
			"signals", "scores", "opportunity", "recommendations", "competitors",
			"sequence", "created_at", "updated_at",
		},
		ConflictKeys: []string{"domain"},
		UpdateCols: []string{
			"name", "location", "signals", "scores", "opportunity",
			"recommendations", "competitors", "sequence", "updated_at",
		},
	}, rows)
	return eris.Wrap(err, "postgres: save profiles")
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*model.BusinessProfile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, domain, name, location, signals, scores, opportunity, recommendations, competitors, sequence, created_at, updated_at
		 FROM profiles WHERE id = $1`, id)
	return scanProfilePG(row)
}

func (s *PostgresStore) GetProfileByDomain(ctx context.Context, domain string) (*model.BusinessProfile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, domain, name, location, signals, scores, opportunity, recommendations, competitors, sequence, created_at, updated_at
		 FROM profiles WHERE domain = $1`, domain)
	return scanProfilePG(row)
}

func (s *PostgresStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.BusinessProfile, error) {
	query := `SELECT id, domain, name, location, signals, scores, opportunity, recommendations, competitors, sequence, created_at, updated_at
	          FROM profiles WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Domain != "" {
		query += fmt.Sprintf(` AND domain = $%d`, argIdx)
		args = append(args, filter.Domain)
		argIdx++
	}
	if filter.MinLeadScore > 0 {
		query += fmt.Sprintf(` AND (scores->>'lead')::int >= $%d`, argIdx)
		args = append(args, filter.MinLeadScore)
		argIdx++
	}
	if filter.MinOpportunity > 0 {
		query += fmt.Sprintf(` AND (opportunity->>'total')::int >= $%d`, argIdx)
		args = append(args, filter.MinOpportunity)
		argIdx++
	}
	if filter.RankByLead {
		query += ` ORDER BY (scores->>'lead')::int DESC, updated_at DESC`
	} else {
		query += ` ORDER BY updated_at DESC`
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	var profiles []model.BusinessProfile
	for rows.Next() {
		p, err := scanProfilePG(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, eris.Wrap(rows.Err(), "postgres: list profiles iterate")
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete profile %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "profile %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateItem(ctx context.Context, item *model.PipelineItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	item.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_items (id, profile_id, item_type, status, priority, notes, last_contacted, added_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.ProfileID, string(item.ItemType), string(item.Status), string(item.Priority),
		item.Notes, item.LastContacted, item.AddedAt, item.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert item for profile %s", item.ProfileID)
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*model.PipelineItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, profile_id, item_type, status, priority, notes, last_contacted, added_at, updated_at
		 FROM pipeline_items WHERE id = $1`, id)
	return scanItemPG(row)
}

func (s *PostgresStore) UpdateItem(ctx context.Context, item *model.PipelineItem) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_items SET status = $1, priority = $2, notes = $3, last_contacted = $4, updated_at = $5 WHERE id = $6`,
		string(item.Status), string(item.Priority), item.Notes, item.LastContacted, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update item %s", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "item %s", item.ID)
	}
	return nil
}

func (s *PostgresStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.PipelineItem, error) {
	query := `SELECT id, profile_id, item_type, status, priority, notes, last_contacted, added_at, updated_at
	          FROM pipeline_items WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ItemType != "" {
		query += fmt.Sprintf(` AND item_type = $%d`, argIdx)
		args = append(args, string(filter.ItemType))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Priority != "" {
		query += fmt.Sprintf(` AND priority = $%d`, argIdx)
		args = append(args, string(filter.Priority))
		argIdx++
	}
	query += ` ORDER BY added_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	var items []model.PipelineItem
	for rows.Next() {
		it, err := scanItemPG(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM status_changes WHERE item_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete item history %s", id)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM pipeline_items WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete item %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "item %s", id)
	}
	return nil
}

func (s *PostgresStore) CommitTransition(ctx context.Context, item *model.PipelineItem, change *model.StatusChange) error {
	if change.ID == "" {
		change.ID = uuid.New().String()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin transition")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE pipeline_items SET status = $1, priority = $2, notes = $3, last_contacted = $4, updated_at = $5 WHERE id = $6`,
		string(item.Status), string(item.Priority), item.Notes, item.LastContacted, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition item %s", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "item %s", item.ID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO status_changes (id, item_id, from_status, to_status, note, at) VALUES ($1, $2, $3, $4, $5, $6)`,
		change.ID, change.ItemID, string(change.From), string(change.To), change.Note, change.At,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record status change for item %s", item.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit transition")
}

func (s *PostgresStore) ListStatusChanges(ctx context.Context, itemID string) ([]model.StatusChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_id, from_status, to_status, note, at FROM status_changes WHERE item_id = $1 ORDER BY at ASC`,
		itemID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list status changes %s", itemID)
	}
	defer rows.Close()

	var changes []model.StatusChange
	for rows.Next() {
		var c model.StatusChange
		var note *string
		if err := rows.Scan(&c.ID, &c.ItemID, &c.From, &c.To, &note, &c.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status change")
		}
		if note != nil {
			c.Note = *note
		}
		changes = append(changes, c)
	}
	return changes, eris.Wrap(rows.Err(), "postgres: list status changes iterate")
}

// helpers

type profileBlobsPG struct {
	signals         []byte
	scores          []byte
	opportunity     []byte
	recommendations []byte
	competitors     []byte
}

func marshalProfileJSONB(p *model.BusinessProfile) (*profileBlobsPG, error) {
	signals, err := json.Marshal(p.Signals)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal signals")
	}
	scores, err := json.Marshal(p.Scores)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal scores")
	}
	opportunity, err := json.Marshal(p.Opportunity)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal opportunity")
	}
	recommendations, err := json.Marshal(p.Recommendations)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal recommendations")
	}
	competitors, err := json.Marshal(p.Competitors)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal competitors")
	}
	return &profileBlobsPG{
		signals:         signals,
		scores:          scores,
		opportunity:     opportunity,
		recommendations: recommendations,
		competitors:     competitors,
	}, nil
}

func scanProfilePG(row pgx.Row) (*model.BusinessProfile, error) {
	var p model.BusinessProfile
	var location *string
	var signals, scores, opportunity []byte
	var recommendations, competitors *[]byte

	err := row.Scan(&p.ID, &p.Domain, &p.Name, &location,
		&signals, &scores, &opportunity, &recommendations, &competitors,
		&p.Sequence, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "profile")
		}
		return nil, eris.Wrap(err, "postgres: scan profile")
	}
	if location != nil {
		p.Location = *location
	}

	if err := json.Unmarshal(signals, &p.Signals); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal signals")
	}
	if err := json.Unmarshal(scores, &p.Scores); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal scores")
	}
	if err := json.Unmarshal(opportunity, &p.Opportunity); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal opportunity")
	}
	if recommendations != nil {
		if err := json.Unmarshal(*recommendations, &p.Recommendations); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal recommendations")
		}
	}
	if competitors != nil {
		if err := json.Unmarshal(*competitors, &p.Competitors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal competitors")
		}
	}
	return &p, nil
}

func scanItemPG(row pgx.Row) (*model.PipelineItem, error) {
	var it model.PipelineItem
	var notes *string
	var lastContacted *time.Time

	err := row.Scan(&it.ID, &it.ProfileID, &it.ItemType, &it.Status, &it.Priority,
		&notes, &lastContacted, &it.AddedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "item")
		}
		return nil, eris.Wrap(err, "postgres: scan item")
	}
	if notes != nil {
		it.Notes = *notes
	}
	it.LastContacted = lastContacted
	return &it, nil
}
