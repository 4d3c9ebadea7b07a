package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cardio-cdss-server/internal/domain"
)

// calculateBody is the POST body for a calculation. The calculator comes
// from the URL and the actor from the authenticated header, never the body.
type calculateBody struct {
	Inputs    domain.Inputs `json:"inputs" binding:"required"`
	PatientID string        `json:"patient_id"`
	DedupKey  string        `json:"dedup_key"`
}

// handleListCalculators returns the registered calculators and versions.
func (s *Server) handleListCalculators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"calculators": s.registry.List(),
	})
}

// handleCalculate runs one calculation.
func (s *Server) handleCalculate(c *gin.Context) {
	var body calculateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Malformed request body",
			"detail":         err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	req := &domain.CalculationRequest{
		CalculatorID:  domain.CalculatorID(c.Param("calculator_id")),
		Inputs:        body.Inputs,
		ActorID:       c.GetString("actor_id"),
		PatientID:     body.PatientID,
		DedupKey:      body.DedupKey,
		CorrelationID: c.GetString("correlation_id"),
	}

	result, err := s.service.Calculate(c.Request.Context(), req)
	if err != nil {
		s.writeCalculationError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeCalculationError maps the typed domain errors onto HTTP statuses.
func (s *Server) writeCalculationError(c *gin.Context, err error) {
	correlationID := c.GetString("correlation_id")

	if verr, ok := domain.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Validation failed",
			"code":           domain.ErrValidation,
			"violations":     verr.Violations,
			"correlation_id": correlationID,
		})
		return
	}

	if uerr, ok := domain.AsUnknownCalculatorError(err); ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":          "Unknown calculator",
			"code":           domain.ErrUnknownCalc,
			"calculator_id":  uerr.CalculatorID,
			"correlation_id": correlationID,
		})
		return
	}

	if aerr, ok := domain.AsAuditPersistenceError(err); ok {
		// The calculation succeeded but could not be recorded. The result
		// is withheld; retrying with the same dedup key is safe.
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":          "Calculation could not be audited",
			"code":           domain.ErrAuditPersistence,
			"retryable":      aerr.Retryable(),
			"correlation_id": correlationID,
		})
		return
	}

	if _, ok := domain.AsComputationError(err); ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":          "Calculation failed",
			"code":           domain.ErrComputation,
			"correlation_id": correlationID,
		})
		return
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"error":          err.Error(),
	}).Error("Unhandled calculation error")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":          "Internal server error",
		"code":           domain.ErrInternalServer,
		"correlation_id": correlationID,
	})
}

// handleGetAuditRecord retrieves one audit record by identifier.
func (s *Server) handleGetAuditRecord(c *gin.Context) {
	if s.reader == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Audit queries are not available"})
		return
	}

	record, err := s.reader.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":          "Failed to read audit record",
			"code":           domain.ErrDatabaseError,
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":          "Audit record not found",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleListAuditRecords lists a patient's audit records, newest first.
func (s *Server) handleListAuditRecords(c *gin.Context) {
	if s.reader == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Audit queries are not available"})
		return
	}

	patientID := c.Query("patient_id")
	if patientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "patient_id query parameter is required",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.reader.ListRecordsByPatient(c.Request.Context(), patientID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":          "Failed to list audit records",
			"code":           domain.ErrDatabaseError,
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id": patientID,
		"count":      len(records),
		"records":    records,
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
