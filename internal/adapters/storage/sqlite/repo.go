package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository persists table records and the mutation ledger in sqlite.
type Repository struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates it.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// each pooled connection would otherwise see its own empty database
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY,
			position INTEGER NOT NULL,
			header TEXT NOT NULL,
			section_type TEXT NOT NULL,
			status TEXT NOT NULL,
			target TEXT NOT NULL DEFAULT '',
			limit_text TEXT NOT NULL DEFAULT '',
			reviewer TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			due_date TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'Medium',
			tags_json TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_position ON records(position);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mutation_id TEXT NOT NULL DEFAULT '',
			operation TEXT NOT NULL,
			record_ids_json TEXT NOT NULL DEFAULT '[]',
			fields_json TEXT NOT NULL DEFAULT '[]',
			actor_id TEXT NOT NULL DEFAULT 'local',
			actor_type TEXT NOT NULL DEFAULT 'user',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_created_at ON change_events(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// LoadRecords returns every record in canonical order.
func (r *Repository) LoadRecords(ctx context.Context) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, header, section_type, status, target, limit_text, reviewer, description, due_date, priority, tags_json
		FROM records
		ORDER BY position ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ReplaceAll swaps the stored table for records in one transaction. The
// ledger is left untouched.
func (r *Repository) ReplaceAll(ctx context.Context, records []domain.Record) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return err
	}
	now := time.Now()
	for i, rec := range records {
		if err = insertRecord(ctx, tx, rec, i, now); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// Persist applies one committed table mutation and appends it to the ledger.
func (r *Repository) Persist(ctx context.Context, m domain.Mutation) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	at := normalizeEventTS(m.OccurredAt)
	switch m.Op {
	case domain.MutationInsert:
		for _, rec := range m.Records {
			if err = insertRecord(ctx, tx, rec, positionOf(m.Order, rec.ID), at); err != nil {
				return err
			}
		}
	case domain.MutationUpdate:
		for _, rec := range m.Records {
			if err = updateRecord(ctx, tx, rec, at); err != nil {
				return err
			}
		}
	case domain.MutationRemove:
		for _, id := range m.RecordIDs {
			if _, err = tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
				return err
			}
		}
	case domain.MutationImport:
		for _, rec := range m.Records {
			if err = upsertRecord(ctx, tx, rec, positionOf(m.Order, rec.ID), at); err != nil {
				return err
			}
		}
	case domain.MutationReorder:
	default:
		err = fmt.Errorf("unsupported mutation op %q", m.Op)
		return err
	}
	if m.Op != domain.MutationUpdate && len(m.Order) > 0 {
		if err = writePositions(ctx, tx, m.Order); err != nil {
			return err
		}
	}

	if err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		MutationID: m.ID,
		Op:         m.Op,
		RecordIDs:  m.RecordIDs,
		Fields:     m.Fields,
		ActorID:    m.ActorID,
		ActorType:  m.ActorType,
		OccurredAt: at,
	}); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// ListChangeEvents returns the newest ledger entries first.
func (r *Repository) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mutation_id, operation, record_ids_json, fields_json, actor_id, actor_type, created_at
		FROM change_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event      domain.ChangeEvent
			opRaw      string
			idsRaw     string
			fieldsRaw  string
			actorType  string
			createdRaw string
		)
		if err := rows.Scan(&event.Seq, &event.MutationID, &opRaw, &idsRaw, &fieldsRaw, &event.ActorID, &actorType, &createdRaw); err != nil {
			return nil, err
		}
		event.Op = domain.MutationOp(opRaw)
		event.ActorType = normalizeActorType(domain.ActorType(actorType))
		event.OccurredAt = parseTS(createdRaw)
		if err := json.Unmarshal([]byte(idsRaw), &event.RecordIDs); err != nil {
			return nil, fmt.Errorf("decode change_events.record_ids_json: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsRaw), &event.Fields); err != nil {
			return nil, fmt.Errorf("decode change_events.fields_json: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func insertRecord(ctx context.Context, execer execerContext, rec domain.Record, position int, now time.Time) error {
	tagsJSON, err := encodeTags(rec.Tags)
	if err != nil {
		return err
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO records(id, position, header, section_type, status, target, limit_text, reviewer, description, due_date, priority, tags_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		position,
		rec.Header,
		string(rec.Type),
		string(rec.Status),
		rec.Target,
		rec.Limit,
		rec.Reviewer,
		rec.Description,
		rec.DueDate,
		string(rec.Priority),
		tagsJSON,
		ts(now),
	)
	if err != nil {
		return fmt.Errorf("insert record %d: %w", rec.ID, err)
	}
	return nil
}

func updateRecord(ctx context.Context, execer execerContext, rec domain.Record, now time.Time) error {
	tagsJSON, err := encodeTags(rec.Tags)
	if err != nil {
		return err
	}
	res, err := execer.ExecContext(ctx, `
		UPDATE records
		SET header = ?, section_type = ?, status = ?, target = ?, limit_text = ?, reviewer = ?, description = ?, due_date = ?, priority = ?, tags_json = ?, updated_at = ?
		WHERE id = ?
	`,
		rec.Header,
		string(rec.Type),
		string(rec.Status),
		rec.Target,
		rec.Limit,
		rec.Reviewer,
		rec.Description,
		rec.DueDate,
		string(rec.Priority),
		tagsJSON,
		ts(now),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	return translateNoRows(res)
}

// upsertRecord updates rec in place, inserting it when no row exists yet.
func upsertRecord(ctx context.Context, execer execerContext, rec domain.Record, position int, now time.Time) error {
	err := updateRecord(ctx, execer, rec, now)
	if !errors.Is(err, app.ErrNotFound) {
		return err
	}
	return insertRecord(ctx, execer, rec, position, now)
}

func writePositions(ctx context.Context, execer execerContext, order []int) error {
	for pos, id := range order {
		if _, err := execer.ExecContext(ctx, `UPDATE records SET position = ? WHERE id = ?`, pos, id); err != nil {
			return fmt.Errorf("write position of record %d: %w", id, err)
		}
	}
	return nil
}

// insertChangeEvent inserts a change-event ledger record.
func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	idsJSON, err := json.Marshal(nonNilInts(event.RecordIDs))
	if err != nil {
		return fmt.Errorf("encode change event ids: %w", err)
	}
	fieldsJSON, err := json.Marshal(nonNilFields(event.Fields))
	if err != nil {
		return fmt.Errorf("encode change event fields: %w", err)
	}
	actorID := strings.TrimSpace(event.ActorID)
	if actorID == "" {
		actorID = "local"
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(mutation_id, operation, record_ids_json, fields_json, actor_id, actor_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.MutationID,
		string(event.Op),
		string(idsJSON),
		string(fieldsJSON),
		actorID,
		string(normalizeActorType(event.ActorType)),
		ts(normalizeEventTS(event.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// scanner represents the shared Scan contract of sql.Row and sql.Rows.
type scanner interface {
	Scan(...any) error
}

func scanRecord(s scanner) (domain.Record, error) {
	var (
		rec      domain.Record
		typ      string
		status   string
		priority string
		tagsRaw  string
	)
	if err := s.Scan(&rec.ID, &rec.Header, &typ, &status, &rec.Target, &rec.Limit, &rec.Reviewer, &rec.Description, &rec.DueDate, &priority, &tagsRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, app.ErrNotFound
		}
		return domain.Record{}, err
	}
	rec.Type = domain.SectionType(typ)
	rec.Status = domain.Status(status)
	rec.Priority = domain.Priority(priority)
	if strings.TrimSpace(tagsRaw) == "" {
		tagsRaw = "[]"
	}
	if err := json.Unmarshal([]byte(tagsRaw), &rec.Tags); err != nil {
		return domain.Record{}, fmt.Errorf("decode records.tags_json: %w", err)
	}
	if len(rec.Tags) == 0 {
		rec.Tags = nil
	}
	return rec, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(raw), nil
}

func positionOf(order []int, id int) int {
	if idx := slices.Index(order, id); idx >= 0 {
		return idx
	}
	return len(order)
}

func nonNilInts(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}

func nonNilFields(in []domain.Field) []domain.Field {
	if in == nil {
		return []domain.Field{}
	}
	return in
}

func normalizeActorType(actorType domain.ActorType) domain.ActorType {
	switch actorType {
	case domain.ActorTypeUser, domain.ActorTypeAgent, domain.ActorTypeSystem:
		return actorType
	default:
		return domain.ActorTypeUser
	}
}

func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
