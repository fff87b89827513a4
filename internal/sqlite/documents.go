package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/repository"
)

// DocumentRepository implements count.Repository for SQLite
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Load reads the facility and its history
func (r *DocumentRepository) Load(ctx context.Context) (*count.State, error) {
	var id, body string
	err := r.db.QueryRowContext(ctx, `SELECT id, body FROM facilities ORDER BY id LIMIT 1`).Scan(&id, &body)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load facility: %w", err)
	}

	facility := &count.Facility{}
	if err := json.Unmarshal([]byte(body), facility); err != nil {
		return nil, fmt.Errorf("%w: decoding facility: %v", count.ErrInvalidDocument, err)
	}
	if err := count.ValidateFacility(facility); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT body FROM history_records
		WHERE facility_id = ?
		ORDER BY sequence ASC, completed_at ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	history := &count.History{Records: []count.HistoryRecord{}}
	for rows.Next() {
		var recordBody string
		if err := rows.Scan(&recordBody); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		var rec count.HistoryRecord
		if err := json.Unmarshal([]byte(recordBody), &rec); err != nil {
			return nil, fmt.Errorf("%w: decoding history record: %v", count.ErrInvalidDocument, err)
		}
		history.Records = append(history.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return &count.State{Facility: facility, History: history}, nil
}

// SaveFacility replaces the facility document
func (r *DocumentRepository) SaveFacility(ctx context.Context, facility *count.Facility) error {
	if err := count.ValidateFacility(facility); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := checkStored(ctx, tx, facility)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	if err := writeFacility(ctx, tx, facility); err != nil {
		return err
	}
	return commit(tx)
}

// SaveAll replaces the facility and its history in one transaction
func (r *DocumentRepository) SaveAll(ctx context.Context, facility *count.Facility, history *count.History) error {
	if err := count.ValidateFacility(facility); err != nil {
		return err
	}
	if err := count.ValidateHistory(history); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := checkStored(ctx, tx, facility); err != nil {
		return err
	}
	if err := writeFacility(ctx, tx, facility); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_records WHERE facility_id = ?`, facility.ID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	for _, rec := range history.Records {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode history record %s: %w", rec.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO history_records (id, facility_id, count_id, sequence, items_counted, total_value, completed_at, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			facility.ID,
			rec.CountID,
			rec.Sequence,
			rec.ItemsCounted,
			rec.TotalValue.String(),
			rec.CompletedAt,
			string(body),
		)
		if err != nil {
			return classify(fmt.Sprintf("history record %s", rec.CountID), err)
		}
	}
	return commit(tx)
}

// checkStored reports whether a facility row exists and enforces its version.
func checkStored(ctx context.Context, tx *sql.Tx, facility *count.Facility) (bool, error) {
	var id string
	var version int
	err := tx.QueryRowContext(ctx, `SELECT id, version FROM facilities ORDER BY id LIMIT 1`).Scan(&id, &version)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read facility version: %w", err)
	}
	if id != facility.ID {
		return true, fmt.Errorf("%w: store holds facility %q, not %q", repository.ErrConflict, id, facility.ID)
	}
	return true, repository.CheckVersion(version, facility.Metadata.Version)
}

func writeFacility(ctx context.Context, tx *sql.Tx, facility *count.Facility) error {
	body, err := json.Marshal(facility)
	if err != nil {
		return fmt.Errorf("failed to encode facility: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO facilities (id, name, version, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			body = excluded.body,
			updated_at = excluded.updated_at
	`,
		facility.ID,
		facility.Name,
		facility.Metadata.Version,
		string(body),
		facility.Metadata.LastUpdated,
	)
	if err != nil {
		return classify("facility", err)
	}
	return nil
}

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func classify(what string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: duplicate %s", count.ErrInvalidDocument, what)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s references a missing facility", repository.ErrNotFound, what)
	default:
		return fmt.Errorf("failed to write %s: %w", what, err)
	}
}
