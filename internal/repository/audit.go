package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cardio-cdss-server/internal/domain"
)

// AuditRepository is the PostgreSQL query side of the audit log. Writes go
// through the audit package; this repository only reads.
type AuditRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *pgxpool.Pool, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: logger,
	}
}

// GetRecord retrieves a single audit record by identifier.
// Returns nil when no record exists.
func (r *AuditRepository) GetRecord(ctx context.Context, id string) (*domain.AuditRecord, error) {
	query := `
		SELECT id, calculator_id, calculator_version,
			   input_snapshot, result_snapshot,
			   actor_id, COALESCE(patient_id, ''), COALESCE(correlation_id, ''), created_at
		FROM audit_records
		WHERE id = $1`

	record := &domain.AuditRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.CalculatorID,
		&record.CalculatorVersion,
		&record.InputSnapshot,
		&record.ResultSnapshot,
		&record.ActorID,
		&record.PatientID,
		&record.CorrelationID,
		&record.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.log.WithFields(logrus.Fields{
			"record_id": id,
			"error":     err,
		}).Error("Failed to get audit record")
		return nil, fmt.Errorf("getting audit record: %w", err)
	}

	return record, nil
}

// ListRecordsByPatient returns a patient's audit records, newest first.
func (r *AuditRepository) ListRecordsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.AuditRecord, error) {
	query := `
		SELECT id, calculator_id, calculator_version,
			   input_snapshot, result_snapshot,
			   actor_id, COALESCE(patient_id, ''), COALESCE(correlation_id, ''), created_at
		FROM audit_records
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, patientID, limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"error":      err,
		}).Error("Failed to list audit records")
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuditRecord
	for rows.Next() {
		record := &domain.AuditRecord{}
		err := rows.Scan(
			&record.ID,
			&record.CalculatorID,
			&record.CalculatorVersion,
			&record.InputSnapshot,
			&record.ResultSnapshot,
			&record.ActorID,
			&record.PatientID,
			&record.CorrelationID,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		result = append(result, record)
	}

	return result, rows.Err()
}
