package service

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/storage"
)

func exportFixture() []models.WorkoutLog {
	return []models.WorkoutLog{
		{ID: "l2", UserID: "u1", Week: 1, Day: 3, WorkoutDate: "2024-09-11", Exercises: models.Exercises{
			{Name: "Squat", Sets: []models.ExerciseSet{{Weight: 42.5, Reps: 8}}},
		}},
		{ID: "l1", UserID: "u1", Week: 0, Day: 1, WorkoutDate: "2024-09-02", Exercises: models.Exercises{
			{Name: "Bench Press", Sets: []models.ExerciseSet{{Weight: 20, Reps: 10}, {Weight: 20, Reps: 8}}},
			{Name: "Plank"},
		}},
	}
}

func TestBuildWorkoutDatasetOneRowPerSet(t *testing.T) {
	data := BuildWorkoutDataset(exportFixture())
	assert.Equal(t, []string{"Minggu", "Hari", "Tanggal", "Latihan", "Set", "Berat (kg)", "Repetisi", "Volume (kg)"}, data.Headers)
	require.Len(t, data.Rows, 4)

	first := data.Rows[0]
	assert.Equal(t, "Pre-Test", first["Minggu"])
	assert.Equal(t, "Senin", first["Hari"])
	assert.Equal(t, "02/09/2024", first["Tanggal"])
	assert.Equal(t, "Bench Press", first["Latihan"])
	assert.Equal(t, "1", first["Set"])
	assert.Equal(t, "200", first["Volume (kg)"])

	assert.Equal(t, "2", data.Rows[1]["Set"])
	assert.Equal(t, "Plank", data.Rows[2]["Latihan"])
	assert.Equal(t, "", data.Rows[2]["Set"])
	assert.Equal(t, "0", data.Rows[2]["Volume (kg)"])

	last := data.Rows[3]
	assert.Equal(t, "Minggu 1", last["Minggu"])
	assert.Equal(t, "Rabu", last["Hari"])
	assert.Equal(t, "42.5", last["Berat (kg)"])
	assert.Equal(t, "340", last["Volume (kg)"])
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc := NewExportService(newWorkoutRepoStub(exportFixture()...), nil, nil, ExportConfig{}, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 9, 30, 12, 0, 0, 0, time.UTC) }
	owner := &models.User{ID: "u1", NIM: "2101234", FullName: "Budi"}

	file, err := svc.Export(context.Background(), owner, models.WorkoutLogFilter{}, ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "workout_2101234_20240930_120000.csv", file.Filename)
	assert.True(t, strings.HasPrefix(file.ContentType, "text/csv"))
	assert.True(t, bytes.HasPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(file.Data), "Pre-Test,Senin,02/09/2024,Bench Press,1,20,10,200")
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc := NewExportService(newWorkoutRepoStub(exportFixture()...), nil, nil, ExportConfig{}, zap.NewNop(), nil, nil)

	file, err := svc.Export(context.Background(), &models.User{ID: "u1", FullName: "Budi"}, models.WorkoutLogFilter{}, ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportCSV, format)

	format, err = ParseExportFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, ExportPDF, format)

	_, err = ParseExportFormat("xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceShareAndOpen(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(newWorkoutRepoStub(exportFixture()...), store, signer, ExportConfig{APIPrefix: "/api/v1/"}, zap.NewNop(), nil, nil)
	owner := &models.User{ID: "u1", NIM: "2101234"}

	link, err := svc.Share(context.Background(), owner, models.WorkoutLogFilter{}, ExportCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/exports/download?token="))

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	assert.Equal(t, link.Token, token)

	file, grant, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "u1", grant.OwnerID)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Bench Press")

	_, _, err = svc.Open(token + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceShareWithoutStorage(t *testing.T) {
	svc := NewExportService(newWorkoutRepoStub(), nil, nil, ExportConfig{}, zap.NewNop(), nil, nil)

	_, err := svc.Share(context.Background(), &models.User{ID: "u1"}, models.WorkoutLogFilter{}, ExportCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestExportServicePurgeOwner(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(newWorkoutRepoStub(exportFixture()...), store, signer, ExportConfig{}, zap.NewNop(), nil, nil)

	link, err := svc.Share(context.Background(), &models.User{ID: "u1"}, models.WorkoutLogFilter{}, ExportCSV)
	require.NoError(t, err)
	require.NoError(t, svc.PurgeOwner("u1"))

	_, _, err = svc.Open(link.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
