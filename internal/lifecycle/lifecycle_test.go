package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
)

func completeUser(status models.VerificationStatus) *models.User {
	return &models.User{
		ID:                 "u1",
		Email:              "budi@example.com",
		Role:               models.RoleUser,
		FullName:           "Budi",
		NIM:                "12345",
		Prodi:              "Teknik",
		PhoneNumber:        "0812",
		JenisKelamin:       models.GenderMale,
		VerificationStatus: status,
		IsActive:           true,
	}
}

func budiForm() VerificationForm {
	return VerificationForm{
		FullName:     "Budi",
		NIM:          "12345",
		Prodi:        "Teknik",
		PhoneNumber:  "0812...",
		JenisKelamin: models.GenderMale,
	}
}

func TestEvaluateBannedWinsOverEverything(t *testing.T) {
	statuses := []models.VerificationStatus{"", models.VerificationNotSubmitted, models.VerificationPending, models.VerificationApproved, models.VerificationRejected, "weird"}
	for _, status := range statuses {
		for _, active := range []bool{true, false} {
			u := completeUser(status)
			u.IsBanned = true
			u.IsActive = active
			assert.Equal(t, models.ViewBanned, Evaluate(u).Kind, "status=%q active=%v", status, active)
		}
	}
}

func TestEvaluateInactiveIsMessagesOnlyWithBanner(t *testing.T) {
	cases := map[models.VerificationStatus]models.VerificationStatus{
		models.VerificationPending:  models.VerificationPending,
		models.VerificationApproved: models.VerificationApproved,
		models.VerificationRejected: models.VerificationRejected,
		"":                          models.VerificationNotSubmitted,
	}
	for stored, banner := range cases {
		u := completeUser(stored)
		u.IsActive = false
		view := Evaluate(u)
		assert.Equal(t, models.ViewMessagesOnly, view.Kind)
		require.NotNil(t, view.Banner)
		assert.Equal(t, banner, *view.Banner)
	}
}

func TestEvaluateByVerificationStatus(t *testing.T) {
	assert.Equal(t, models.ViewVerificationForm, Evaluate(completeUser(models.VerificationNotSubmitted)).Kind)
	assert.Equal(t, models.ViewPendingReview, Evaluate(completeUser(models.VerificationPending)).Kind)
	assert.Equal(t, models.ViewDashboard, Evaluate(completeUser(models.VerificationApproved)).Kind)

	rejected := completeUser(models.VerificationRejected)
	rejected.RejectionReason = "NIM tidak valid"
	view := Evaluate(rejected)
	assert.Equal(t, models.ViewRejected, view.Kind)
	assert.Equal(t, "NIM tidak valid", view.RejectionReason)
	assert.True(t, view.CanResubmit)

	assert.Equal(t, models.ViewUnknown, Evaluate(completeUser("archived")).Kind)
}

func TestEvaluateIncompleteProfileIsNotSubmitted(t *testing.T) {
	u := completeUser(models.VerificationApproved)
	u.Prodi = ""
	assert.Equal(t, models.ViewVerificationForm, Evaluate(u).Kind)
}

func TestEvaluateAdminBypassesLifecycle(t *testing.T) {
	u := &models.User{Role: models.RoleAdmin, IsBanned: true}
	assert.Equal(t, models.ViewAdmin, Evaluate(u).Kind)
}

func TestSubmitThenApproveScenario(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	u := &models.User{ID: "u1", Role: models.RoleUser, Name: "budi", IsActive: true, VerificationStatus: models.VerificationNotSubmitted}

	require.NoError(t, Submit(u, budiForm(), now))
	assert.Equal(t, models.VerificationPending, u.VerificationStatus)
	require.NotNil(t, u.VerificationRequestedAt)
	assert.Equal(t, now, *u.VerificationRequestedAt)
	assert.Equal(t, "0812...", u.PhoneNumber)
	assert.Equal(t, "Budi", u.Name)

	require.NoError(t, Approve(u, "admin@ibaf.id", false, now.Add(time.Hour)))
	assert.Equal(t, models.VerificationApproved, u.VerificationStatus)
	assert.True(t, u.IsActive)
	assert.Equal(t, "Budi", u.Name)
	require.NotNil(t, u.ApprovedBy)
	assert.Equal(t, "admin@ibaf.id", *u.ApprovedBy)
	assert.Equal(t, models.ViewDashboard, Evaluate(u).Kind)
}

func TestSubmitRejectsMissingFieldsWithoutMutation(t *testing.T) {
	u := &models.User{Role: models.RoleUser, IsActive: true}
	form := budiForm()
	form.PhoneNumber = "  "

	err := Submit(u, form, time.Now())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, u.FullName)
	assert.Empty(t, u.VerificationStatus)
}

func TestSubmitRequiresMembershipNumberForMembers(t *testing.T) {
	u := &models.User{Role: models.RoleUser, IsActive: true}
	form := budiForm()
	form.IsIbafMember = true

	err := Submit(u, form, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ibafMembershipNumber")
}

func TestSubmitNotAllowedWhilePendingOrApproved(t *testing.T) {
	for _, status := range []models.VerificationStatus{models.VerificationPending, models.VerificationApproved} {
		err := Submit(completeUser(status), budiForm(), time.Now())
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	}
}

func TestRejectRequiresReasonAndDeactivates(t *testing.T) {
	u := completeUser(models.VerificationPending)
	require.Error(t, Reject(u, "admin@ibaf.id", "   ", time.Now()))
	assert.Equal(t, models.VerificationPending, u.VerificationStatus)

	require.NoError(t, Reject(u, "admin@ibaf.id", "Data tidak lengkap", time.Now()))
	assert.Equal(t, models.VerificationRejected, u.VerificationStatus)
	assert.False(t, u.IsActive)
	assert.Equal(t, "Data tidak lengkap", u.RejectionReason)

	view := Evaluate(u)
	assert.Equal(t, models.ViewMessagesOnly, view.Kind)
	assert.True(t, view.CanResubmit)

	require.NoError(t, Submit(u, budiForm(), time.Now()))
	assert.Equal(t, models.VerificationPending, u.VerificationStatus)
}

func TestApproveOnlyFromPending(t *testing.T) {
	err := Approve(completeUser(models.VerificationApproved), "a", true, time.Now())
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestBanAndUnbanKeepVerificationStatus(t *testing.T) {
	u := completeUser(models.VerificationApproved)
	require.NoError(t, Ban(u, "admin@ibaf.id", time.Now()))
	assert.True(t, u.IsBanned)
	assert.False(t, u.IsActive)

	require.NoError(t, Unban(u, "admin@ibaf.id", time.Now()))
	assert.False(t, u.IsBanned)
	assert.True(t, u.IsActive)
	assert.Equal(t, models.VerificationApproved, u.VerificationStatus)

	assert.Error(t, Unban(u, "admin@ibaf.id", time.Now()))
}

func TestSetActiveIsIndependent(t *testing.T) {
	u := completeUser(models.VerificationPending)
	require.NoError(t, SetActive(u, false, time.Now()))
	assert.Equal(t, models.VerificationPending, u.VerificationStatus)
	assert.Equal(t, models.ViewMessagesOnly, Evaluate(u).Kind)
}

func TestConfirmDelete(t *testing.T) {
	u := completeUser(models.VerificationApproved)
	assert.Error(t, ConfirmDelete(u, "hapus"))
	assert.NoError(t, ConfirmDelete(u, "HAPUS"))
	assert.Error(t, ConfirmDelete(&models.User{Role: models.RoleAdmin}, "HAPUS"))
}
