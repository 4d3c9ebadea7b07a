// Package service orchestrates the calculation pipeline: resolve the
// calculator, validate the inputs, compute, categorize, recommend, then
// persist the audit record. Nothing in this package knows about transports.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cardio-cdss-server/internal/domain"
)

// Alerter receives operator alerts for failures that indicate a defective
// calculator definition rather than a bad request.
type Alerter interface {
	ComputationFailure(calculatorID domain.CalculatorID, correlationID, detail string)
}

// CalculationService runs calculations end to end. A request moves through
// validation, computation, and categorization; patient-linked requests then
// block on the audit write, while anonymous ones audit in the background.
type CalculationService struct {
	logger   *logrus.Logger
	registry domain.CalculatorRegistry
	sink     domain.AuditSink
	reader   domain.AuditReader
	dedup    DedupStore
	alerter  Alerter

	auditTimeout time.Duration

	// asyncAudit runs the anonymous-path audit write. Tests replace it to
	// observe completion without sleeping.
	asyncAudit func(func())
}

// CalculationServiceConfig carries optional collaborators. Registry, sink,
// and logger are required; the rest degrade gracefully when absent.
type CalculationServiceConfig struct {
	Registry     domain.CalculatorRegistry
	Sink         domain.AuditSink
	Reader       domain.AuditReader
	Dedup        DedupStore
	Alerter      Alerter
	AuditTimeout time.Duration
}

// NewCalculationService creates the service.
func NewCalculationService(cfg CalculationServiceConfig, logger *logrus.Logger) (*CalculationService, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("calculator registry is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("audit sink is required")
	}
	if cfg.AuditTimeout <= 0 {
		cfg.AuditTimeout = 10 * time.Second
	}

	return &CalculationService{
		logger:       logger,
		registry:     cfg.Registry,
		sink:         cfg.Sink,
		reader:       cfg.Reader,
		dedup:        cfg.Dedup,
		alerter:      cfg.Alerter,
		auditTimeout: cfg.AuditTimeout,
		asyncAudit:   func(f func()) { go f() },
	}, nil
}

// Calculate runs one request through the full pipeline.
//
// The returned error is one of the typed domain errors: ValidationError,
// UnknownCalculatorError, ComputationError, or AuditPersistenceError. A nil
// error means the result is complete and, for patient-linked requests, the
// audit record is durably written.
func (s *CalculationService) Calculate(ctx context.Context, req *domain.CalculationRequest) (*domain.CalculationResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"calculator_id":  req.CalculatorID,
		"correlation_id": req.CorrelationID,
		"patient_linked": req.PatientLinked(),
	})
	log.Debug("Calculation received")

	calc, err := s.registry.Resolve(req.CalculatorID)
	if err != nil {
		return nil, err
	}

	// A replayed request returns the original record's result so retries
	// after a network failure never double-audit.
	if cached, ok := s.replayDeduplicated(ctx, req); ok {
		log.WithField("audit_record_id", cached.AuditRecordID).Info("Calculation deduplicated")
		return cached, nil
	}

	if verr := calc.Validate(req.Inputs); verr != nil {
		log.WithField("violations", len(verr.Violations)).Info("Calculation rejected")
		return nil, verr
	}

	comp, err := calc.Compute(req.Inputs)
	if err != nil {
		return nil, s.computationFailed(log, req, err)
	}

	category, err := calc.Categorize(comp)
	if err != nil {
		return nil, s.computationFailed(log, req, err)
	}

	info := calc.Info()
	result := &domain.CalculationResult{
		CalculatorID:      info.ID,
		CalculatorVersion: info.Version,
		TotalScore:        comp.TotalScore,
		AdjustedScore:     comp.TotalScore,
		Probabilities:     comp.Probabilities,
		RiskCategory:      category,
		RiskDescription:   calc.Describe(comp),
		Recommendation:    calc.Recommend(category, comp),
		Breakdown:         comp.Breakdown,
		ModifiableFactors: comp.ModifiableFactors,
		CalculatedAt:      time.Now().UTC(),
	}

	record, err := s.buildAuditRecord(req, result)
	if err != nil {
		return nil, err
	}

	if req.PatientLinked() {
		if err := s.recordPatientLinked(ctx, record); err != nil {
			log.WithError(err).Error("Patient-linked calculation failed at audit")
			return nil, err
		}
		result.AuditRecordID = record.ID
		s.rememberDedup(ctx, req, record.ID)
	} else {
		// The write is best-effort and may still fail, so the response
		// does not cite the record.
		s.recordAnonymous(record)
	}

	log.WithFields(logrus.Fields{
		"risk_category":   result.RiskCategory,
		"audit_record_id": record.ID,
	}).Info("Calculation completed")
	return result, nil
}

// buildAuditRecord snapshots the request and result. The snapshots are taken
// before the response leaves the service so the record always matches what
// the caller saw.
func (s *CalculationService) buildAuditRecord(req *domain.CalculationRequest, result *domain.CalculationResult) (*domain.AuditRecord, error) {
	inputSnapshot, err := json.Marshal(req.Inputs)
	if err != nil {
		return nil, fmt.Errorf("snapshotting inputs: %w", err)
	}
	resultSnapshot, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("snapshotting result: %w", err)
	}

	return &domain.AuditRecord{
		ID:                uuid.New().String(),
		CalculatorID:      result.CalculatorID,
		CalculatorVersion: result.CalculatorVersion,
		InputSnapshot:     inputSnapshot,
		ResultSnapshot:    resultSnapshot,
		ActorID:           req.ActorID,
		PatientID:         req.PatientID,
		CorrelationID:     req.CorrelationID,
		CreatedAt:         result.CalculatedAt,
	}, nil
}

// recordPatientLinked writes the audit record synchronously. The write is
// detached from request cancellation: once a result exists, abandoning the
// connection must not leave the calculation unrecorded.
func (s *CalculationService) recordPatientLinked(ctx context.Context, record *domain.AuditRecord) error {
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	defer cancel()

	if err := s.sink.Record(auditCtx, record); err != nil {
		if _, ok := domain.AsAuditPersistenceError(err); ok {
			return err
		}
		return &domain.AuditPersistenceError{CalculatorID: record.CalculatorID, Cause: err}
	}
	return nil
}

// recordAnonymous writes the audit record in the background. Anonymous
// calculations carry no patient identifier, so losing a record under outage
// degrades the trail without blocking clinical use.
func (s *CalculationService) recordAnonymous(record *domain.AuditRecord) {
	s.asyncAudit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.auditTimeout)
		defer cancel()

		if err := s.sink.Record(ctx, record); err != nil {
			s.logger.WithFields(logrus.Fields{
				"calculator_id":   record.CalculatorID,
				"audit_record_id": record.ID,
				"error":           err.Error(),
			}).Warn("Anonymous audit record dropped")
		}
	})
}

// computationFailed wraps a compute or categorize failure and alerts
// operators, since these indicate a defective definition artifact.
func (s *CalculationService) computationFailed(log *logrus.Entry, req *domain.CalculationRequest, err error) error {
	cerr, ok := domain.AsComputationError(err)
	if !ok {
		cerr = &domain.ComputationError{CalculatorID: req.CalculatorID, Detail: err.Error()}
	}
	log.WithField("detail", cerr.Detail).Error("Calculation failed during computation")
	if s.alerter != nil {
		s.alerter.ComputationFailure(cerr.CalculatorID, req.CorrelationID, cerr.Detail)
	}
	return cerr
}

// replayDeduplicated returns the result recorded for the request's dedup
// key, when one exists and the stored record is still readable.
func (s *CalculationService) replayDeduplicated(ctx context.Context, req *domain.CalculationRequest) (*domain.CalculationResult, bool) {
	if req.DedupKey == "" || s.dedup == nil || s.reader == nil {
		return nil, false
	}

	recordID, ok, err := s.dedup.Lookup(ctx, dedupKey(req))
	if err != nil {
		s.logger.WithError(err).Warn("Dedup lookup failed, recalculating")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	record, err := s.reader.GetRecord(ctx, recordID)
	if err != nil || record == nil {
		return nil, false
	}

	result := &domain.CalculationResult{}
	if err := json.Unmarshal(record.ResultSnapshot, result); err != nil {
		s.logger.WithError(err).Warn("Dedup record snapshot unreadable, recalculating")
		return nil, false
	}
	result.AuditRecordID = record.ID
	return result, true
}

// rememberDedup stores the dedup association after a durable audit write.
func (s *CalculationService) rememberDedup(ctx context.Context, req *domain.CalculationRequest, recordID string) {
	if req.DedupKey == "" || s.dedup == nil {
		return
	}
	if err := s.dedup.Remember(ctx, dedupKey(req), recordID); err != nil {
		s.logger.WithError(err).Warn("Dedup remember failed")
	}
}

// dedupKey scopes the caller-supplied key by actor and calculator so two
// actors cannot collide on the same key.
func dedupKey(req *domain.CalculationRequest) string {
	return fmt.Sprintf("%s:%s:%s", req.ActorID, req.CalculatorID, req.DedupKey)
}
