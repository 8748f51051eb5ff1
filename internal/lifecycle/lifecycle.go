// Package lifecycle evaluates which view a member account is routed to and
// applies the verification and moderation transitions to a user document.
package lifecycle

import (
	"strings"
	"time"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

const (
	unknownStatusMessage = "unrecognized account status, log out and sign in again"
	bannedMessage        = "this account has been banned"
	inactiveMessage      = "this account is inactive, only messaging is available"
)

// EffectiveStatus folds empty or incomplete profiles into not_submitted.
func EffectiveStatus(u *models.User) models.VerificationStatus {
	if u.VerificationStatus == "" || !profileComplete(u) {
		return models.VerificationNotSubmitted
	}
	return u.VerificationStatus
}

// Evaluate returns the view for u. Priority is fixed: admin role, banned,
// inactive, then verification status.
func Evaluate(u *models.User) models.View {
	if u == nil {
		return models.View{Kind: models.ViewUnknown, Message: unknownStatusMessage}
	}
	if u.IsAdmin() {
		return models.View{Kind: models.ViewAdmin, Status: u.VerificationStatus}
	}

	status := EffectiveStatus(u)
	if u.IsBanned {
		return models.View{Kind: models.ViewBanned, Status: status, Message: bannedMessage}
	}
	if !u.IsActive {
		banner := status
		return models.View{
			Kind:            models.ViewMessagesOnly,
			Status:          status,
			Banner:          &banner,
			RejectionReason: rejectionReason(u, status),
			CanResubmit:     status == models.VerificationRejected || status == models.VerificationNotSubmitted,
			Message:         inactiveMessage,
		}
	}
	return statusView(u, status)
}

func statusView(u *models.User, status models.VerificationStatus) models.View {
	switch status {
	case models.VerificationNotSubmitted:
		return models.View{Kind: models.ViewVerificationForm, Status: status, CanResubmit: true}
	case models.VerificationPending:
		return models.View{Kind: models.ViewPendingReview, Status: status}
	case models.VerificationRejected:
		return models.View{Kind: models.ViewRejected, Status: status, RejectionReason: u.RejectionReason, CanResubmit: true}
	case models.VerificationApproved:
		return models.View{Kind: models.ViewDashboard, Status: status}
	default:
		return models.View{Kind: models.ViewUnknown, Status: status, Message: unknownStatusMessage}
	}
}

// Allows reports whether view is one of kinds.
func Allows(view models.View, kinds ...models.ViewKind) bool {
	for _, k := range kinds {
		if view.Kind == k {
			return true
		}
	}
	return false
}

func profileComplete(u *models.User) bool {
	return strings.TrimSpace(u.FullName) != "" &&
		strings.TrimSpace(u.NIM) != "" &&
		strings.TrimSpace(u.Prodi) != ""
}

func rejectionReason(u *models.User, status models.VerificationStatus) string {
	if status == models.VerificationRejected {
		return u.RejectionReason
	}
	return ""
}

func stamp(t time.Time) *time.Time {
	ts := t.UTC()
	return &ts
}

func actorRef(actor string) *string {
	a := actor
	return &a
}
