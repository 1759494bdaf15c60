package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := readContext(ctx)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping checks the database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := readContext(ctx)
	defer cancel()
	return r.pool.Ping(ctx)
}

const eventColumns = `id, dataset_id, raw_file_id, event_time, source_type, host, username,
	src_ip, dst_ip, src_port, dst_port, event_type, severity_hint,
	http_method, url_path, http_status, user_agent, response_size,
	signature_id, signature, category, ids_priority, protocol, message,
	raw_json, extras`

// ListEvents returns the events matching filter ordered by source IP, then
// time (untimestamped last), then ID.
func (r *PostgresRepository) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	if filter.DatasetID == "" {
		return nil, fmt.Errorf("failed to list events: dataset id is required")
	}

	where := []string{"dataset_id = $1"}
	args := []interface{}{filter.DatasetID}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if len(filter.SourceTypes) > 0 {
		types := make([]string, len(filter.SourceTypes))
		for i, st := range filter.SourceTypes {
			types[i] = string(st)
		}
		add("source_type = ANY($%d)", types)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if filter.SrcIP != "" {
		add("src_ip = $%d", filter.SrcIP)
	}
	if filter.RequireSrcIP {
		where = append(where, "src_ip IS NOT NULL AND src_ip <> ''")
	}
	if filter.From != nil {
		add("event_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("event_time <= $%d", *filter.To)
	}
	if filter.ExcludeID != "" {
		add("id <> $%d", filter.ExcludeID)
	}

	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY src_ip, event_time NULLS LAST, id`,
		eventColumns, strings.Join(where, " AND "))

	ctx, cancel := bulkContext(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// InsertEvents writes events in a single batch. Existing IDs are left untouched.
func (r *PostgresRepository) InsertEvents(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(query,
			e.ID, e.DatasetID, e.RawFileID, e.EventTime, string(e.SourceType),
			nullIfEmpty(e.Host), nullIfEmpty(e.Username),
			nullIfEmpty(e.SrcIP), nullIfEmpty(e.DstIP), e.SrcPort, e.DstPort,
			nullIfEmpty(e.EventType), nullIfEmpty(e.SeverityHint),
			nullIfEmpty(e.HTTPMethod), nullIfEmpty(e.URLPath), e.HTTPStatus,
			nullIfEmpty(e.UserAgent), e.ResponseSize,
			nullIfEmpty(e.SignatureID), nullIfEmpty(e.Signature), nullIfEmpty(e.Category),
			e.IDSPriority, nullIfEmpty(e.Protocol), nullIfEmpty(e.Message),
			e.RawJSON, e.Extras,
		)
	}

	ctx, cancel := bulkContext(ctx)
	defer cancel()

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}
	return nil
}

// IncidentExists reports whether the natural key is already taken
func (r *PostgresRepository) IncidentExists(ctx context.Context, datasetID string, ruleID models.RuleID, groupKey string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM incidents
			WHERE dataset_id = $1 AND rule_id = $2 AND group_key = $3
		)
	`

	ctx, cancel := readContext(ctx)
	defer cancel()

	var exists bool
	if err := r.pool.QueryRow(ctx, query, datasetID, string(ruleID), groupKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check incident: %w", err)
	}
	return exists, nil
}

// CreateIncident inserts the incident and its event links in one transaction
func (r *PostgresRepository) CreateIncident(ctx context.Context, inc *models.Incident, links []*models.IncidentEvent) error {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO incidents (id, dataset_id, title, status, severity, incident_type,
			confidence, rule_id, rule_explanation, group_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (dataset_id, rule_id, group_key) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query,
		inc.ID, inc.DatasetID, inc.Title, string(inc.Status), string(inc.Severity), string(inc.Type),
		inc.Confidence, string(inc.RuleID), inc.RuleExplanation, inc.GroupKey, inc.CreatedAt, inc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIncidentExists
		}
		return fmt.Errorf("failed to create incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIncidentExists
	}

	if len(links) > 0 {
		linkQuery := `
			INSERT INTO incident_events (id, incident_id, event_id, relevance)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (incident_id, event_id) DO NOTHING
		`
		batch := &pgx.Batch{}
		for _, l := range links {
			batch.Queue(linkQuery, l.ID, l.IncidentID, l.EventID, string(l.Relevance))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to link events to incident: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit incident: %w", err)
	}
	return nil
}

// CountIncidents counts every incident of a dataset, whichever run created it
func (r *PostgresRepository) CountIncidents(ctx context.Context, datasetID string) (int, error) {
	ctx, cancel := readContext(ctx)
	defer cancel()

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidents WHERE dataset_id = $1`, datasetID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return count, nil
}

// ListIncidents returns a dataset's incidents, newest first
func (r *PostgresRepository) ListIncidents(ctx context.Context, datasetID string) ([]*models.Incident, error) {
	query := `
		SELECT id, dataset_id, title, status, severity, incident_type, confidence,
			rule_id, rule_explanation, group_key, created_at, updated_at,
			acknowledged_by, acknowledged_at, assigned_to, closed_by, closed_at
		FROM incidents
		WHERE dataset_id = $1
		ORDER BY created_at DESC, id
	`

	ctx, cancel := readContext(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		var (
			inc                                    models.Incident
			status, severity, incidentType, ruleID string
			explanation                            *string
		)
		if err := rows.Scan(
			&inc.ID, &inc.DatasetID, &inc.Title, &status, &severity, &incidentType, &inc.Confidence,
			&ruleID, &explanation, &inc.GroupKey, &inc.CreatedAt, &inc.UpdatedAt,
			&inc.AcknowledgedBy, &inc.AcknowledgedAt, &inc.AssignedTo, &inc.ClosedBy, &inc.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		inc.Status = models.IncidentStatus(status)
		inc.Severity = models.Severity(severity)
		inc.Type = models.IncidentType(incidentType)
		inc.RuleID = models.RuleID(ruleID)
		inc.RuleExplanation = deref(explanation)
		incidents = append(incidents, &inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}

	return incidents, nil
}

// ListIncidentEvents returns the links of an incident, primary first
func (r *PostgresRepository) ListIncidentEvents(ctx context.Context, incidentID string) ([]*models.IncidentEvent, error) {
	query := `
		SELECT id, incident_id, event_id, relevance
		FROM incident_events
		WHERE incident_id = $1
		ORDER BY relevance DESC, event_id
	`

	ctx, cancel := readContext(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident events: %w", err)
	}
	defer rows.Close()

	var links []*models.IncidentEvent
	for rows.Next() {
		var (
			l         models.IncidentEvent
			relevance string
		)
		if err := rows.Scan(&l.ID, &l.IncidentID, &l.EventID, &relevance); err != nil {
			return nil, fmt.Errorf("failed to scan incident event: %w", err)
		}
		l.Relevance = models.Relevance(relevance)
		links = append(links, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incident events: %w", err)
	}

	return links, nil
}

// CreateDataset creates a new dataset
func (r *PostgresRepository) CreateDataset(ctx context.Context, d *models.Dataset) error {
	query := `
		INSERT INTO datasets (id, name, description, status, uploaded_by, uploaded_at,
			event_count, incident_count, parse_errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	parseErrors := d.ParseErrors
	if parseErrors == nil {
		parseErrors = []models.ParseError{}
	}

	ctx, cancel := writeContext(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.Name, nullIfEmpty(d.Description), string(d.Status), d.UploadedBy, d.UploadedAt,
		d.EventCount, d.IncidentCount, parseErrors,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

// GetDataset retrieves a dataset by ID
func (r *PostgresRepository) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	query := `
		SELECT id, name, description, status, uploaded_by, uploaded_at,
			event_count, incident_count, parse_errors
		FROM datasets
		WHERE id = $1
	`

	ctx, cancel := readContext(ctx)
	defer cancel()

	var (
		d           models.Dataset
		description *string
		status      string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Name, &description, &status, &d.UploadedBy, &d.UploadedAt,
		&d.EventCount, &d.IncidentCount, &d.ParseErrors,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDatasetNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	d.Description = deref(description)
	d.Status = models.DatasetStatus(status)

	return &d, nil
}

// UpdateDatasetStatus moves a dataset to a new lifecycle status
func (r *PostgresRepository) UpdateDatasetStatus(ctx context.Context, id string, status models.DatasetStatus, parseErrors []models.ParseError) error {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	var (
		tag pgconn.CommandTag
		err error
	)
	if parseErrors == nil {
		tag, err = r.pool.Exec(ctx, `UPDATE datasets SET status = $2 WHERE id = $1`, id, string(status))
	} else {
		tag, err = r.pool.Exec(ctx, `UPDATE datasets SET status = $2, parse_errors = $3 WHERE id = $1`,
			id, string(status), parseErrors)
	}
	if err != nil {
		return fmt.Errorf("failed to update dataset status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDatasetNotFound
	}
	return nil
}

// UpdateEventCount stores the number of ingested events
func (r *PostgresRepository) UpdateEventCount(ctx context.Context, id string, count int) error {
	return r.updateCounter(ctx, "event_count", id, count)
}

// UpdateIncidentCount stores the number of incidents of the dataset
func (r *PostgresRepository) UpdateIncidentCount(ctx context.Context, id string, count int) error {
	return r.updateCounter(ctx, "incident_count", id, count)
}

func (r *PostgresRepository) updateCounter(ctx context.Context, column, id string, count int) error {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	// column is one of two constants above, never user input
	query := fmt.Sprintf(`UPDATE datasets SET %s = $2 WHERE id = $1`, column)
	tag, err := r.pool.Exec(ctx, query, id, count)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDatasetNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var (
		e          models.Event
		sourceType string
	)
	var host, username, srcIP, dstIP, eventType, severityHint *string
	var httpMethod, urlPath, userAgent, signatureID, signature *string
	var category, protocol, message *string

	err := row.Scan(
		&e.ID, &e.DatasetID, &e.RawFileID, &e.EventTime, &sourceType, &host, &username,
		&srcIP, &dstIP, &e.SrcPort, &e.DstPort, &eventType, &severityHint,
		&httpMethod, &urlPath, &e.HTTPStatus, &userAgent, &e.ResponseSize,
		&signatureID, &signature, &category, &e.IDSPriority, &protocol, &message,
		&e.RawJSON, &e.Extras,
	)
	if err != nil {
		return nil, err
	}

	e.SourceType = models.SourceType(sourceType)
	e.Host = deref(host)
	e.Username = deref(username)
	e.SrcIP = deref(srcIP)
	e.DstIP = deref(dstIP)
	e.EventType = deref(eventType)
	e.SeverityHint = deref(severityHint)
	e.HTTPMethod = deref(httpMethod)
	e.URLPath = deref(urlPath)
	e.UserAgent = deref(userAgent)
	e.SignatureID = deref(signatureID)
	e.Signature = deref(signature)
	e.Category = deref(category)
	e.Protocol = deref(protocol)
	e.Message = deref(message)

	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
