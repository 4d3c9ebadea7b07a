package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/cardio-cdss-server/internal/domain"
)

// ResilientStore wraps a Store with a circuit breaker and a per-call timeout.
// When the underlying store is unhealthy the breaker opens and writes fail
// fast instead of queueing behind a dead database. Every failure surfaces as
// a retryable AuditPersistenceError so callers can distinguish an audit
// outage from a bad request.
type ResilientStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *logrus.Logger
}

// ResilientConfig tunes the breaker and the per-write timeout.
type ResilientConfig struct {
	Timeout     time.Duration
	MaxRequests uint32
	Interval    time.Duration
	OpenTimeout time.Duration
}

// DefaultResilientConfig returns the production defaults.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout:     5 * time.Second,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		OpenTimeout: 60 * time.Second,
	}
}

// NewResilientStore wraps the given store.
func NewResilientStore(inner Store, cfg ResilientConfig, logger *logrus.Logger) *ResilientStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultResilientConfig().Timeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Audit store circuit breaker state changed")
		},
	})

	return &ResilientStore{
		inner:   inner,
		breaker: breaker,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Record appends one audit record through the breaker.
func (s *ResilientStore) Record(ctx context.Context, record *domain.AuditRecord) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return nil, s.inner.Record(callCtx, record)
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"calculator_id": record.CalculatorID,
			"error":         err.Error(),
		}).Error("Audit record write failed")
		return &domain.AuditPersistenceError{CalculatorID: record.CalculatorID, Cause: err}
	}
	return nil
}

// Close closes the underlying store.
func (s *ResilientStore) Close() error {
	return s.inner.Close()
}
