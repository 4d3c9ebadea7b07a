// Package audit provides durable, append-only storage for calculation audit
// records. Records are immutable once written; there is no update or delete
// path anywhere in this package.
package audit

import (
	"github.com/cardio-cdss-server/internal/domain"
)

// Store is the write side of the audit log plus lifecycle management. Every
// implementation must be strictly append-only.
type Store interface {
	domain.AuditSink

	// Close closes the store and releases resources.
	Close() error
}
