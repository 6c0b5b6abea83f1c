package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin                = "LOGIN"
	AuditActionChangeRequestCreate  = "CHANGE_REQUEST_CREATE"
	AuditActionChangeRequestApprove = "CHANGE_REQUEST_APPROVE"
	AuditActionChangeRequestReject  = "CHANGE_REQUEST_REJECT"
	AuditActionChangeRequestCancel  = "CHANGE_REQUEST_CANCEL"
	AuditActionEnrollmentCreate     = "ENROLLMENT_CREATE"
	AuditActionEnrollmentDeactivate = "ENROLLMENT_DEACTIVATE"
	AuditActionCreditUse            = "CREDIT_USE"
	AuditActionCreditRevoke         = "CREDIT_REVOKE"
	AuditActionRepair               = "DATA_REPAIR"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	RequestID  string    `db:"request_id" json:"requestId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
