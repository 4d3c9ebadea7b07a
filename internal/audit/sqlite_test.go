package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardio-cdss-server/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(patientID string) *domain.AuditRecord {
	return &domain.AuditRecord{
		CalculatorID:      domain.CHA2DS2VASC,
		CalculatorVersion: "2010.1.0",
		InputSnapshot:     json.RawMessage(`{"age":70,"sex":"male"}`),
		ResultSnapshot:    json.RawMessage(`{"total_score":1,"risk_category":"CONSIDER_ANTICOAGULATION"}`),
		ActorID:           "dr.jones",
		PatientID:         patientID,
		CorrelationID:     "corr-1",
	}
}

func TestNewSQLiteStore_CreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "audit.db")

	// Act
	store, err := NewSQLiteStore(dbPath)

	// Assert
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_RecordAndGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	record := testRecord("pt-1001")

	// Act
	err := store.Record(ctx, record)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID, "ID should be assigned")
	assert.False(t, record.CreatedAt.IsZero(), "CreatedAt should be set")

	got, err := store.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.CalculatorID, got.CalculatorID)
	assert.Equal(t, record.CalculatorVersion, got.CalculatorVersion)
	assert.Equal(t, "dr.jones", got.ActorID)
	assert.Equal(t, "pt-1001", got.PatientID)
	assert.Equal(t, "corr-1", got.CorrelationID)
	assert.JSONEq(t, string(record.InputSnapshot), string(got.InputSnapshot))
	assert.JSONEq(t, string(record.ResultSnapshot), string(got.ResultSnapshot))
}

func TestSQLiteStore_GetRecord_NotFound(t *testing.T) {
	store := createTestStore(t)

	got, err := store.GetRecord(context.Background(), "no-such-id")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_AppendOnly_DuplicateIDRejected(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	record := testRecord("pt-1001")
	require.NoError(t, store.Record(ctx, record))

	// A second write with the same identifier must fail, never overwrite.
	duplicate := testRecord("pt-9999")
	duplicate.ID = record.ID
	assert.Error(t, store.Record(ctx, duplicate))

	got, err := store.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "pt-1001", got.PatientID)
}

func TestSQLiteStore_ListRecordsByPatient(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		record := testRecord("pt-1001")
		record.CreatedAt = time.Date(2026, 8, 1+i, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.Record(ctx, record))
	}
	require.NoError(t, store.Record(ctx, testRecord("pt-2002")))

	// Act
	records, err := store.ListRecordsByPatient(ctx, "pt-1001", 10, 0)

	// Assert: newest first, only the requested patient.
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, "pt-1001", r.PatientID)
	}
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))
	assert.True(t, records[1].CreatedAt.After(records[2].CreatedAt))
}

func TestSQLiteStore_ListRecordsByPatient_Pagination(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		record := testRecord("pt-1001")
		record.CreatedAt = time.Date(2026, 8, 1+i, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.Record(ctx, record))
	}

	page, err := store.ListRecordsByPatient(ctx, "pt-1001", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestSQLiteStore_AnonymousRecordHasNoPatient(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	record := testRecord("")
	require.NoError(t, store.Record(ctx, record))

	got, err := store.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PatientID)
}
