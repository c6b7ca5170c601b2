package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for audit records.
type Repository interface {
	Insert(ctx context.Context, log Log) error
	Query(ctx context.Context, filters Filters) ([]Log, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PGRepository)(nil)

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends a new audit record. The timestamp is set by the server.
func (r *PGRepository) Insert(ctx context.Context, log Log) error {
	detailsJSON, err := json.Marshal(log.Details)
	if err != nil {
		return fmt.Errorf("audit: marshal details: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, resource_type, resource_id, details, ip, user_agent, impersonated, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		optionalInt8(log.ActorID),
		log.Action,
		log.ResourceType,
		optionalText(log.ResourceID),
		detailsJSON,
		optionalText(log.IP),
		optionalText(log.UserAgent),
		log.Impersonated,
	)
	return err
}

// Query returns a page of matching records plus the total match count.
func (r *PGRepository) Query(ctx context.Context, filters Filters) ([]Log, int, error) {
	where, args := buildWhere(filters)

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_logs" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := orderClause(filters.SortAsc)
	offset := (filters.Page - 1) * filters.PageSize
	pageQuery := fmt.Sprintf(
		"SELECT id, occurred_at, actor_id, action, resource_type, resource_id, details, ip, user_agent, impersonated FROM audit_logs%s%s LIMIT $%d OFFSET $%d",
		where, order, len(args)+1, len(args)+2,
	)
	args = append(args, filters.PageSize, offset)

	rows, err := r.pool.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var (
			log        Log
			occurredAt pgtype.Timestamptz
			actorID    pgtype.Int8
			resourceID pgtype.Text
			details    []byte
			ip         pgtype.Text
			userAgent  pgtype.Text
		)
		if err := rows.Scan(&log.ID, &occurredAt, &actorID, &log.Action, &log.ResourceType, &resourceID, &details, &ip, &userAgent, &log.Impersonated); err != nil {
			return nil, 0, err
		}
		if occurredAt.Valid {
			log.OccurredAt = occurredAt.Time
		}
		if actorID.Valid {
			id := actorID.Int64
			log.ActorID = &id
		}
		log.ResourceID = resourceID.String
		log.IP = ip.String
		log.UserAgent = userAgent.String
		if len(details) > 0 {
			_ = json.Unmarshal(details, &log.Details)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// orderClause sorts by timestamp, newest first unless ascending order
// was requested. The id tiebreaker keeps pages stable when entries
// share a timestamp.
func orderClause(sortAsc bool) string {
	if sortAsc {
		return " ORDER BY occurred_at ASC, id ASC"
	}
	return " ORDER BY occurred_at DESC, id DESC"
}

func buildWhere(filters Filters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filters.ActorID != nil {
		add("actor_id = $%d", *filters.ActorID)
	}
	if filters.Action != "" {
		add("action = $%d", filters.Action)
	}
	if filters.ResourceType != "" {
		add("resource_type = $%d", filters.ResourceType)
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func optionalInt8(value *int64) pgtype.Int8 {
	if value == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *value, Valid: true}
}
