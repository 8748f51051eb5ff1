package models

// ViewKind is the screen a signed-in account is routed to.
type ViewKind string

const (
	ViewAdmin            ViewKind = "admin"
	ViewBanned           ViewKind = "banned"
	ViewMessagesOnly     ViewKind = "messages_only"
	ViewVerificationForm ViewKind = "verification_form"
	ViewPendingReview    ViewKind = "pending_review"
	ViewRejected         ViewKind = "rejected"
	ViewDashboard        ViewKind = "dashboard"
	ViewUnknown          ViewKind = "unknown"
)

// View is the evaluated access decision for an account. Banner carries the
// verification state shown above the messages-only view of inactive members.
type View struct {
	Kind            ViewKind            `json:"kind"`
	Status          VerificationStatus  `json:"verificationStatus"`
	Banner          *VerificationStatus `json:"banner,omitempty"`
	RejectionReason string              `json:"rejectionReason,omitempty"`
	CanResubmit     bool                `json:"canResubmit"`
	Message         string              `json:"message,omitempty"`
}

// Session binds the verified token claims to the freshly loaded user document
// and its evaluated view for the duration of a request.
type Session struct {
	Claims *JWTClaims
	User   *User
	View   View
}

// UserID returns the authenticated subject.
func (s *Session) UserID() string {
	if s == nil || s.Claims == nil {
		return ""
	}
	return s.Claims.UserID
}

// IsAdmin reports whether the stored role is admin.
func (s *Session) IsAdmin() bool {
	return s != nil && s.User.IsAdmin()
}
