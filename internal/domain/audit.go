package domain

import "time"

// AuditAction is the kind of state-changing action being recorded.
type AuditAction string

const (
	AuditCreate      AuditAction = "create"
	AuditUpdate      AuditAction = "update"
	AuditApprove     AuditAction = "approve"
	AuditReject      AuditAction = "reject"
	AuditTransfer    AuditAction = "transfer"
	AuditTransaction AuditAction = "transaction"
	AuditReversal    AuditAction = "reversal"
	AuditNotify      AuditAction = "notify"
	AuditOther       AuditAction = "other"
)

// AuditSeverity grades an audit entry.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// AuditLogEntry is one append-only record of a state-changing action.
// Entries are immutable once written; retention marks them archived but
// never mutates or deletes prior entries.
type AuditLogEntry struct {
	ID          string        `json:"id"`
	Action      AuditAction   `json:"action"`
	Model       string        `json:"model"`
	RecordID    string        `json:"record_id"`
	AccountID   string        `json:"account_id,omitempty"`
	Description string        `json:"description"`
	Actor       string        `json:"actor"`
	Severity    AuditSeverity `json:"severity"`
	OldValues   string        `json:"old_values,omitempty"`
	NewValues   string        `json:"new_values,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	Archived    bool          `json:"archived"`
}
