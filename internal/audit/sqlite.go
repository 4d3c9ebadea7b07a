package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cardio-cdss-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite. It is the
// standalone deployment backend and also serves the query side, since no
// separate read pool exists for a file database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a calculation is being recorded.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the audit table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		calculator_id TEXT NOT NULL,
		calculator_version TEXT NOT NULL,
		input_snapshot TEXT NOT NULL,
		result_snapshot TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		patient_id TEXT,
		correlation_id TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_patient
		ON audit_records(patient_id, created_at);

	CREATE INDEX IF NOT EXISTS idx_audit_calculator
		ON audit_records(calculator_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Record appends one audit record. Duplicate identifiers are an error.
func (s *SQLiteStore) Record(ctx context.Context, record *domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_records (
			id, calculator_id, calculator_version,
			input_snapshot, result_snapshot,
			actor_id, patient_id, correlation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		string(record.CalculatorID),
		record.CalculatorVersion,
		string(record.InputSnapshot),
		string(record.ResultSnapshot),
		record.ActorID,
		nullableString(record.PatientID),
		nullableString(record.CorrelationID),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// GetRecord retrieves a single audit record by identifier.
// Returns nil when no record exists.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*domain.AuditRecord, error) {
	query := `
		SELECT id, calculator_id, calculator_version,
			input_snapshot, result_snapshot,
			actor_id, patient_id, correlation_id, created_at
		FROM audit_records
		WHERE id = ?
	`

	record, err := scanAuditRecord(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}
	return record, nil
}

// ListRecordsByPatient returns a patient's audit records, newest first.
func (s *SQLiteStore) ListRecordsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.AuditRecord, error) {
	query := `
		SELECT id, calculator_id, calculator_version,
			input_snapshot, result_snapshot,
			actor_id, patient_id, correlation_id, created_at
		FROM audit_records
		WHERE patient_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuditRecord
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}

	return result, rows.Err()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanAuditRecord scans a row into an AuditRecord.
func scanAuditRecord(s scanner) (*domain.AuditRecord, error) {
	record := &domain.AuditRecord{}
	var calculatorID, inputSnapshot, resultSnapshot string
	var patientID, correlationID sql.NullString

	err := s.Scan(
		&record.ID, &calculatorID, &record.CalculatorVersion,
		&inputSnapshot, &resultSnapshot,
		&record.ActorID, &patientID, &correlationID, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.CalculatorID = domain.CalculatorID(calculatorID)
	record.InputSnapshot = []byte(inputSnapshot)
	record.ResultSnapshot = []byte(resultSnapshot)
	record.PatientID = patientID.String
	record.CorrelationID = correlationID.String
	return record, nil
}
