package models

import "time"

// Audit actions recorded for account and moderation events.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionRegister       = "REGISTER"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionEmailChange    = "EMAIL_CHANGE"
	AuditActionVerifySubmit   = "VERIFICATION_SUBMIT"
	AuditActionApprove        = "USER_APPROVE"
	AuditActionReject         = "USER_REJECT"
	AuditActionBan            = "USER_BAN"
	AuditActionUnban          = "USER_UNBAN"
	AuditActionSetActive      = "USER_SET_ACTIVE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionIdentityRevoke = "IDENTITY_REVOKE"
	AuditActionAnnouncement   = "ANNOUNCEMENT_WRITE"
	AuditActionAdminMessage   = "ADMIN_MESSAGE_WRITE"
	AuditActionOrphanCleanup  = "IDENTITY_ORPHAN_CLEANUP"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
