package lifecycle

import (
	"strings"
	"time"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
)

// ConfirmDeleteWord must be typed verbatim to hard-delete a member.
const ConfirmDeleteWord = "HAPUS"

// VerificationForm is the member's verification submission.
type VerificationForm struct {
	FullName             string `json:"fullName" validate:"required,max=150"`
	NIM                  string `json:"nim" validate:"required,max=30"`
	Prodi                string `json:"prodi" validate:"required,max=150"`
	PhoneNumber          string `json:"phoneNumber" validate:"required,max=30"`
	JenisKelamin         string `json:"jenisKelamin" validate:"required,jenis_kelamin"`
	IsIbafMember         bool   `json:"isIbafMember"`
	IbafMembershipNumber string `json:"ibafMembershipNumber" validate:"required_if=IsIbafMember true,max=50"`
}

// Normalize trims every text field.
func (f *VerificationForm) Normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.NIM = strings.TrimSpace(f.NIM)
	f.Prodi = strings.TrimSpace(f.Prodi)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	f.JenisKelamin = strings.TrimSpace(f.JenisKelamin)
	f.IbafMembershipNumber = strings.TrimSpace(f.IbafMembershipNumber)
	if !f.IsIbafMember {
		f.IbafMembershipNumber = ""
	}
}

// MissingFields lists required fields that are empty after normalization.
func (f VerificationForm) MissingFields() []string {
	missing := make([]string, 0)
	check := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	check("fullName", f.FullName)
	check("nim", f.NIM)
	check("prodi", f.Prodi)
	check("phoneNumber", f.PhoneNumber)
	check("jenisKelamin", f.JenisKelamin)
	if f.IsIbafMember {
		check("ibafMembershipNumber", f.IbafMembershipNumber)
	}
	return missing
}

// Submit applies a verification submission. It is accepted from the form
// view, from the rejected view (resubmission) and from the messages-only view
// when the underlying status still allows it.
func Submit(u *models.User, form VerificationForm, now time.Time) error {
	form.Normalize()
	if missing := form.MissingFields(); len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	view := Evaluate(u)
	if !view.CanResubmit || view.Kind == models.ViewBanned {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "verification cannot be submitted from status "+string(view.Status))
	}

	u.FullName = form.FullName
	u.NIM = form.NIM
	u.Prodi = form.Prodi
	u.PhoneNumber = form.PhoneNumber
	u.JenisKelamin = form.JenisKelamin
	u.IsIbafMember = form.IsIbafMember
	u.IbafMembershipNumber = form.IbafMembershipNumber
	u.Name = form.FullName
	u.VerificationStatus = models.VerificationPending
	u.VerificationRequestedAt = stamp(now)
	u.UpdatedAt = now.UTC()
	return nil
}

// Approve moves a pending member to approved and reactivates the account.
func Approve(u *models.User, actor string, isIbafMember bool, now time.Time) error {
	if EffectiveStatus(u) != models.VerificationPending {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending members can be approved")
	}
	u.VerificationStatus = models.VerificationApproved
	u.IsActive = true
	u.IsIbafMember = isIbafMember
	if !isIbafMember {
		u.IbafMembershipNumber = ""
	}
	u.Name = u.FullName
	u.RejectionReason = ""
	u.ApprovedAt = stamp(now)
	u.ApprovedBy = actorRef(actor)
	u.UpdatedAt = now.UTC()
	return nil
}

// Reject moves a pending member to rejected with a mandatory reason and
// deactivates the account.
func Reject(u *models.User, actor, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	if EffectiveStatus(u) != models.VerificationPending {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending members can be rejected")
	}
	u.VerificationStatus = models.VerificationRejected
	u.IsActive = false
	u.RejectionReason = reason
	u.RejectedAt = stamp(now)
	u.RejectedBy = actorRef(actor)
	u.UpdatedAt = now.UTC()
	return nil
}

// Ban blocks the account regardless of verification status.
func Ban(u *models.User, actor string, now time.Time) error {
	if u.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admins cannot be banned")
	}
	u.IsBanned = true
	u.IsActive = false
	u.BannedAt = stamp(now)
	u.BannedBy = actorRef(actor)
	u.UpdatedAt = now.UTC()
	return nil
}

// Unban lifts a ban. Verification status is left as is.
func Unban(u *models.User, actor string, now time.Time) error {
	if !u.IsBanned {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "account is not banned")
	}
	u.IsBanned = false
	u.IsActive = true
	u.UnbannedAt = stamp(now)
	u.UnbannedBy = actorRef(actor)
	u.UpdatedAt = now.UTC()
	return nil
}

// SetActive toggles isActive without touching verification status.
func SetActive(u *models.User, active bool, now time.Time) error {
	if u.IsAdmin() && !active {
		return appErrors.Clone(appErrors.ErrForbidden, "admins cannot be deactivated")
	}
	u.IsActive = active
	u.UpdatedAt = now.UTC()
	return nil
}

// ConfirmDelete checks the typed confirmation word for hard deletes.
func ConfirmDelete(u *models.User, confirmation string) error {
	if strings.TrimSpace(confirmation) != ConfirmDeleteWord {
		return appErrors.Clone(appErrors.ErrConfirmationNeeded, "type "+ConfirmDeleteWord+" to confirm deletion")
	}
	if u.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin accounts cannot be deleted")
	}
	return nil
}
