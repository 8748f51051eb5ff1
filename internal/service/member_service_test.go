package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/lifecycle"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
)

func sessionFor(u *models.User) *models.Session {
	return &models.Session{Claims: &models.JWTClaims{UserID: u.ID, Role: u.Role}, User: u}
}

func verificationForm() lifecycle.VerificationForm {
	return lifecycle.VerificationForm{
		FullName:     "Budi",
		NIM:          "12345",
		Prodi:        "Teknik",
		PhoneNumber:  "0812...",
		JenisKelamin: models.GenderMale,
	}
}

func TestMemberServiceSubmitVerification(t *testing.T) {
	repo := newUserRepoStub()
	pub := &recordingPublisher{}
	svc := NewMemberService(repo, nil, pub, nil, zap.NewNop())
	member := &models.User{ID: "u1", Email: "budi@upi.edu", Role: models.RoleUser, VerificationStatus: models.VerificationNotSubmitted, IsActive: true}

	result, err := svc.SubmitVerification(context.Background(), sessionFor(member), verificationForm())
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, result.User.VerificationStatus)
	assert.NotNil(t, result.User.VerificationRequestedAt)
	assert.Equal(t, "Budi", result.User.Name)
	assert.Equal(t, models.ViewPendingReview, result.View.Kind)

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "12345", repo.saved[0].NIM)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionVerifySubmit, repo.audits[0].Action)
	assert.NotEmpty(t, pub.events)

	// the session document is not mutated in place
	assert.Equal(t, models.VerificationNotSubmitted, member.VerificationStatus)
}

func TestMemberServiceSubmitRejectsInvalidGender(t *testing.T) {
	repo := newUserRepoStub()
	svc := NewMemberService(repo, nil, nil, nil, zap.NewNop())
	member := &models.User{ID: "u1", Role: models.RoleUser, IsActive: true}

	form := verificationForm()
	form.JenisKelamin = "L"
	_, err := svc.SubmitVerification(context.Background(), sessionFor(member), form)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "jenisKelamin")
	assert.Empty(t, repo.saved)
}

func TestMemberServiceSubmitRequiresMembershipNumber(t *testing.T) {
	repo := newUserRepoStub()
	svc := NewMemberService(repo, nil, nil, nil, zap.NewNop())
	member := &models.User{ID: "u1", Role: models.RoleUser, IsActive: true}

	form := verificationForm()
	form.IsIbafMember = true
	_, err := svc.SubmitVerification(context.Background(), sessionFor(member), form)
	require.Error(t, err)
	assert.Empty(t, repo.saved)
}

func TestMemberServiceResubmitAfterRejection(t *testing.T) {
	repo := newUserRepoStub()
	svc := NewMemberService(repo, nil, nil, nil, zap.NewNop())
	member := &models.User{
		ID: "u1", Role: models.RoleUser, FullName: "Budi", NIM: "1", Prodi: "Teknik",
		VerificationStatus: models.VerificationRejected, RejectionReason: "foto buram", IsActive: true,
	}

	result, err := svc.SubmitVerification(context.Background(), sessionFor(member), verificationForm())
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, result.User.VerificationStatus)
}

func TestMemberServiceSubmitWhilePending(t *testing.T) {
	repo := newUserRepoStub()
	svc := NewMemberService(repo, nil, nil, nil, zap.NewNop())
	member := pendingMember("u1")

	_, err := svc.SubmitVerification(context.Background(), sessionFor(member), verificationForm())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestMemberServiceUpdateProfile(t *testing.T) {
	repo := newUserRepoStub()
	svc := NewMemberService(repo, nil, nil, nil, zap.NewNop())
	member := pendingMember("u1")

	user, err := svc.UpdateProfile(context.Background(), sessionFor(member), ProfileRequest{Name: "  Budi S.  "})
	require.NoError(t, err)
	assert.Equal(t, "Budi S.", user.Name)
	assert.Equal(t, "Budi S.", user.FullName)

	_, err = svc.UpdateProfile(context.Background(), sessionFor(member), ProfileRequest{Name: " "})
	assert.Error(t, err)
}

func TestMemberServiceAccess(t *testing.T) {
	svc := NewMemberService(newUserRepoStub(), nil, nil, nil, zap.NewNop())

	banned := pendingMember("u1")
	banned.IsBanned = true
	result, err := svc.Access(sessionFor(banned))
	require.NoError(t, err)
	assert.Equal(t, models.ViewBanned, result.View.Kind)

	_, err = svc.Access(nil)
	assert.Error(t, err)
}
