package record

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/oswaldlabs/streamlog/pkg/database"
)

// Repository defines the data access layer for activity records
type Repository interface {
	InsertRecord(ctx context.Context, rec *Record) (int64, error)
	InsertMeta(ctx context.Context, recordID int64, key, value string) error
	Select(ctx context.Context, spec QuerySpec, opts queryOptions) ([]*Record, int64, error)
	LoadMeta(ctx context.Context, recordIDs []int64) (map[int64]map[string]MetaValue, error)
	DistinctValues(ctx context.Context, column string) ([]string, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *database.DB
}

// NewRepository creates a new record repository
func NewRepository(db *database.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertRecord(ctx context.Context, rec *Record) (int64, error) {
	query := `
		INSERT INTO activity_records (
			site_id, tenant_id, object_id, actor_id, actor_role,
			summary, connector, context, action, source_ip, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	var objectID sql.NullInt64
	if rec.ObjectID != nil {
		objectID = sql.NullInt64{Int64: *rec.ObjectID, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rec.SiteID, rec.TenantID, objectID, rec.ActorID, rec.ActorRole,
		rec.Summary, rec.Connector, rec.Context, rec.Action, rec.SourceIP,
		rec.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	return id, nil
}

func (r *repository) InsertMeta(ctx context.Context, recordID int64, key, value string) error {
	query := `
		INSERT INTO activity_meta (record_id, meta_key, meta_value)
		VALUES ($1, $2, $3)`

	if err := r.db.ExecOne(ctx, query, recordID, key, value); err != nil {
		return fmt.Errorf("failed to insert meta %q for record %d: %w", key, recordID, err)
	}
	return nil
}

func (r *repository) Select(ctx context.Context, spec QuerySpec, opts queryOptions) ([]*Record, int64, error) {
	q := buildQuery(spec, opts)

	var total int64
	if err := r.db.QueryRowContext(ctx, q.countSQL, q.countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, q.selectSQL, q.selectArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows, q.columns)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read records: %w", err)
	}

	if q.hydrate && len(records) > 0 {
		ids := make([]int64, len(records))
		for i, rec := range records {
			ids[i] = rec.ID
		}
		meta, err := r.LoadMeta(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for _, rec := range records {
			if m, ok := meta[rec.ID]; ok {
				rec.Meta = m
			}
		}
	}

	return records, total, nil
}

// scanRecord scans one row according to the projected column set
func scanRecord(rows *sql.Rows, columns []string) (*Record, error) {
	rec := &Record{}

	var (
		objectID sql.NullInt64
		sourceIP sql.NullString
	)

	targets := make([]interface{}, len(columns))
	for i, col := range columns {
		switch col {
		case "id":
			targets[i] = &rec.ID
		case "site_id":
			targets[i] = &rec.SiteID
		case "tenant_id":
			targets[i] = &rec.TenantID
		case "object_id":
			targets[i] = &objectID
		case "actor_id":
			targets[i] = &rec.ActorID
		case "actor_role":
			targets[i] = &rec.ActorRole
		case "summary":
			targets[i] = &rec.Summary
		case "connector":
			targets[i] = &rec.Connector
		case "context":
			targets[i] = &rec.Context
		case "action":
			targets[i] = &rec.Action
		case "source_ip":
			targets[i] = &sourceIP
		case "created_at":
			targets[i] = &rec.CreatedAt
		default:
			var discard interface{}
			targets[i] = &discard
		}
	}

	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	if objectID.Valid {
		rec.ObjectID = &objectID.Int64
	}
	rec.SourceIP = sourceIP.String

	return rec, nil
}

func (r *repository) LoadMeta(ctx context.Context, recordIDs []int64) (map[int64]map[string]MetaValue, error) {
	if len(recordIDs) == 0 {
		return map[int64]map[string]MetaValue{}, nil
	}

	query := `
		SELECT record_id, meta_key, meta_value
		FROM activity_meta
		WHERE record_id = ANY($1)
		ORDER BY record_id, meta_id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(recordIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}
	defer rows.Close()

	raw := make(map[int64]map[string][]string)
	for rows.Next() {
		var (
			recordID   int64
			key, value string
		)
		if err := rows.Scan(&recordID, &key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		if raw[recordID] == nil {
			raw[recordID] = make(map[string][]string)
		}
		raw[recordID][key] = append(raw[recordID][key], value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}

	result := make(map[int64]map[string]MetaValue, len(raw))
	for recordID, keyed := range raw {
		result[recordID] = groupMeta(keyed)
	}
	return result, nil
}

func (r *repository) DistinctValues(ctx context.Context, column string) ([]string, error) {
	if !distinctColumns[column] {
		return nil, ErrColumnNotAllowed
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM activity_records WHERE %s <> '' ORDER BY %s",
		column, column, column)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan distinct value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (r *repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM activity_records WHERE created_at < $1", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge records: %w", err)
	}
	return result.RowsAffected()
}
