package service

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/export"
	"github.com/ibaf-upi/ibaf-api/pkg/storage"
)

// Export columns, in file order.
const (
	colWeek     = "Minggu"
	colDay      = "Hari"
	colDate     = "Tanggal"
	colExercise = "Latihan"
	colSet      = "Set"
	colWeight   = "Berat (kg)"
	colReps     = "Repetisi"
	colVolume   = "Volume (kg)"
)

var exportHeaders = []string{colWeek, colDay, colDate, colExercise, colSet, colWeight, colReps, colVolume}

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ParseExportFormat defaults to CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportPDF:
		return ExportPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

type workoutLister interface {
	List(ctx context.Context, filter models.WorkoutLogFilter) ([]models.WorkoutLog, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	DeletePrefix(prefix string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, doc export.PDFDocument) ([]byte, error)
}

type urlSigner interface {
	Sign(ownerID, path string) (string, time.Time, error)
	Verify(token string) (storage.DownloadGrant, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ShareLink points at a stored export behind a signed token.
type ShareLink struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExportService renders workout logs into downloadable files.
type ExportService struct {
	workouts workoutLister
	storage  fileStorage
	signer   urlSigner
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

// NewExportService constructs an ExportService. storage and signer may be nil
// when share links are disabled.
func NewExportService(workouts workoutLister, storage fileStorage, signer urlSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		workouts: workouts,
		storage:  storage,
		signer:   signer,
		csv:      csv,
		pdf:      pdf,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Export renders every log of owner, optionally narrowed by week and day.
func (s *ExportService) Export(ctx context.Context, owner *models.User, filter models.WorkoutLogFilter, format ExportFormat) (*ExportFile, error) {
	if owner == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	filter.UserID = owner.ID
	logs, err := s.workouts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.Render(owner, logs, format)
}

// Render builds the dataset for logs and encodes it.
func (s *ExportService) Render(owner *models.User, logs []models.WorkoutLog, format ExportFormat) (*ExportFile, error) {
	dataset := BuildWorkoutDataset(logs)

	var (
		payload     []byte
		err         error
		contentType string
	)
	switch format {
	case ExportCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv; charset=utf-8"
	case ExportPDF:
		payload, err = s.pdf.Render(dataset, export.PDFDocument{
			Title:    "Log Latihan IBAF",
			Subtitle: owner.DisplayName(),
			Footer:   fmt.Sprintf("Total volume: %s kg", formatNumber(models.Exercises(flattenExercises(logs)).Volume())),
		})
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    s.filename(owner, format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

// Share stores a rendered export under the owner's directory and returns a
// signed download link.
func (s *ExportService) Share(ctx context.Context, owner *models.User, filter models.WorkoutLogFilter, format ExportFormat) (*ShareLink, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export sharing is not configured")
	}
	file, err := s.Export(ctx, owner, filter, format)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(path.Join(owner.ID, file.Filename), file.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Sign(owner.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ShareLink{
		URL:       fmt.Sprintf("%s/exports/download?token=%s", prefix, url.QueryEscape(token)),
		Token:     token,
		Filename:  file.Filename,
		ExpiresAt: expiresAt,
	}, nil
}

// Open verifies a download token and returns the stored file. The caller
// closes it.
func (s *ExportService) Open(token string) (*os.File, storage.DownloadGrant, error) {
	if s.storage == nil || s.signer == nil {
		return nil, storage.DownloadGrant{}, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	grant, err := s.signer.Verify(token)
	if err != nil {
		return nil, storage.DownloadGrant{}, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link")
	}
	if !strings.HasPrefix(grant.Path, grant.OwnerID+"/") {
		return nil, storage.DownloadGrant{}, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	file, err := s.storage.Open(grant.Path)
	if err != nil {
		return nil, storage.DownloadGrant{}, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return file, grant, nil
}

// PurgeOwner drops every stored export of a user.
func (s *ExportService) PurgeOwner(ownerID string) error {
	if s == nil || s.storage == nil || ownerID == "" {
		return nil
	}
	return s.storage.DeletePrefix(ownerID)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func (s *ExportService) filename(owner *models.User, format ExportFormat) string {
	name := owner.NIM
	if name == "" {
		name = owner.DisplayName()
	}
	stamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("workout_%s_%s.%s", sanitizeFilename(name), stamp, format)
}

// BuildWorkoutDataset flattens logs to one row per set, ordered by week, day
// and entry order. Exercises without sets still produce a row.
func BuildWorkoutDataset(logs []models.WorkoutLog) export.Dataset {
	sorted := make([]models.WorkoutLog, len(logs))
	copy(sorted, logs)
	SortLogs(sorted)

	rows := make([]map[string]string, 0, len(sorted))
	for _, log := range sorted {
		base := map[string]string{
			colWeek: models.WeekLabel(log.Week),
			colDay:  dayLabel(log),
			colDate: exportDate(log.WorkoutDate),
		}
		for _, ex := range log.Exercises {
			if strings.TrimSpace(ex.Name) == "" {
				continue
			}
			if len(ex.Sets) == 0 {
				row := cloneRow(base)
				row[colExercise] = ex.Name
				row[colVolume] = "0"
				rows = append(rows, row)
				continue
			}
			for i, set := range ex.Sets {
				row := cloneRow(base)
				row[colExercise] = ex.Name
				row[colSet] = strconv.Itoa(i + 1)
				row[colWeight] = formatNumber(set.Weight)
				row[colReps] = strconv.Itoa(set.Reps)
				row[colVolume] = formatNumber(set.Volume())
				rows = append(rows, row)
			}
		}
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func dayLabel(log models.WorkoutLog) string {
	if name := models.DayName(log.Day); name != "" {
		return name
	}
	return log.DayName
}

func exportDate(raw string) string {
	t, err := time.Parse(models.WorkoutDateLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(models.ExportDateLayout)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cloneRow(base map[string]string) map[string]string {
	row := make(map[string]string, len(exportHeaders))
	for k, v := range base {
		row[k] = v
	}
	return row
}

func flattenExercises(logs []models.WorkoutLog) []models.Exercise {
	var out []models.Exercise
	for _, log := range logs {
		out = append(out, log.Exercises...)
	}
	return out
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
