package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallpines/campreg/internal/app/models"
)

// AuditLogRepository is the write-only persistence for the audit trail. There
// is deliberately no update or delete method: entries are append-only.
type AuditLogRepository struct {
	db *pgxpool.Pool
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Insert writes one entry. It accepts a Querier so callers can pass their own
// transaction: a state mutation and its audit entry must commit together.
func (r *AuditLogRepository) Insert(ctx context.Context, q Querier, entry *models.AuditLogEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("error encoding audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (entity_type, entity_id, action, actor_id, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err = q.QueryRow(ctx, query,
		entry.EntityType, entry.EntityID, entry.Action, entry.ActorID,
		payload, entry.IPAddress, entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting audit entry: %w", err)
	}
	return nil
}

// Record writes an entry outside any caller transaction, for best-effort
// records like rejected transition attempts.
func (r *AuditLogRepository) Record(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.Insert(ctx, r.db, entry)
}

// AuditQuery filters the read side of the audit log.
type AuditQuery struct {
	EntityType string
	Action     string
	ActorID    *int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Query returns entries newest first. Category and severity are not stored;
// the service layer derives them on the way out.
func (r *AuditLogRepository) Query(ctx context.Context, f AuditQuery) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, details, ip_address, user_agent, created_at
		FROM audit_log
		WHERE 1=1`
	var args []any

	addArg := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}

	if f.EntityType != "" {
		addArg(" AND entity_type = $%d", f.EntityType)
	}
	if f.Action != "" {
		addArg(" AND action = $%d", f.Action)
	}
	if f.ActorID != nil {
		addArg(" AND actor_id = $%d", *f.ActorID)
	}
	if f.From != nil {
		addArg(" AND created_at >= $%d", *f.From)
	}
	if f.To != nil {
		addArg(" AND created_at <= $%d", *f.To)
	}

	query += " ORDER BY created_at DESC, id DESC"
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	addArg(" LIMIT $%d", limit)
	if f.Offset > 0 {
		addArg(" OFFSET $%d", f.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		var entry models.AuditLogEntry
		var payload []byte
		if err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action,
			&entry.ActorID, &payload, &entry.IPAddress, &entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Details); err != nil {
				return nil, fmt.Errorf("error decoding audit details: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
