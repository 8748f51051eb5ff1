package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/service"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

type workoutService interface {
	List(ctx context.Context, filter models.WorkoutLogFilter) ([]models.WorkoutLog, error)
	Summary(ctx context.Context, userID string) (*models.WorkoutSummary, error)
	Create(ctx context.Context, user *models.User, req models.WorkoutLogRequest) (*models.WorkoutLog, error)
	Update(ctx context.Context, userID, id string, req models.WorkoutLogUpdateRequest) (*models.WorkoutLog, error)
	Delete(ctx context.Context, userID, id string) error
}

type workoutExporter interface {
	Export(ctx context.Context, owner *models.User, filter models.WorkoutLogFilter, format service.ExportFormat) (*service.ExportFile, error)
	Share(ctx context.Context, owner *models.User, filter models.WorkoutLogFilter, format service.ExportFormat) (*service.ShareLink, error)
}

type userLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// WorkoutHandler serves workout logs for members and for admins viewing a member.
type WorkoutHandler struct {
	workouts workoutService
	exports  workoutExporter
	users    userLookup
}

// NewWorkoutHandler creates a workout handler.
func NewWorkoutHandler(workouts workoutService, exports workoutExporter, users userLookup) *WorkoutHandler {
	return &WorkoutHandler{workouts: workouts, exports: exports, users: users}
}

// List godoc
// @Summary List own workout logs
// @Tags Workouts
// @Produce json
// @Param week query int false "Program week 0-9"
// @Param day query int false "Day 1-7"
// @Success 200 {object} response.Envelope
// @Router /me/workout-logs [get]
func (h *WorkoutHandler) List(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	filter, ok := workoutFilter(c, session.User.ID)
	if !ok {
		return
	}

	logs, err := h.workouts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, nil)
}

// Create godoc
// @Summary Record a workout
// @Tags Workouts
// @Accept json
// @Produce json
// @Param payload body models.WorkoutLogRequest true "Workout"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/workout-logs [post]
func (h *WorkoutHandler) Create(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	var req models.WorkoutLogRequest
	if !bindJSON(c, &req, "invalid workout payload") {
		return
	}

	log, err := h.workouts.Create(c.Request.Context(), session.User, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, log)
}

// Update godoc
// @Summary Edit a workout
// @Description Replaces date and exercises. Week and day are fixed once recorded.
// @Tags Workouts
// @Accept json
// @Produce json
// @Param id path string true "Workout log ID"
// @Param payload body models.WorkoutLogUpdateRequest true "Workout"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/workout-logs/{id} [put]
func (h *WorkoutHandler) Update(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	var req models.WorkoutLogUpdateRequest
	if !bindJSON(c, &req, "invalid workout payload") {
		return
	}

	log, err := h.workouts.Update(c.Request.Context(), session.User.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, log, nil)
}

// Delete godoc
// @Summary Delete a workout
// @Tags Workouts
// @Param id path string true "Workout log ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /me/workout-logs/{id} [delete]
func (h *WorkoutHandler) Delete(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	if err := h.workouts.Delete(c.Request.Context(), session.User.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Stats godoc
// @Summary Weekly progress
// @Description Per-week volume for the ten program weeks plus totals and improvement
// @Tags Workouts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/workout-logs/stats [get]
func (h *WorkoutHandler) Stats(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	summary, err := h.workouts.Summary(c.Request.Context(), session.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export own workout logs
// @Tags Workouts
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Param week query int false "Program week 0-9"
// @Success 200 {file} binary
// @Router /me/workout-logs/export [get]
func (h *WorkoutHandler) Export(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	h.export(c, session.User)
}

// AdminList godoc
// @Summary List a member's workout logs
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/workout-logs [get]
func (h *WorkoutHandler) AdminList(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	filter, ok := workoutFilter(c, owner.ID)
	if !ok {
		return
	}

	summary, err := h.workouts.Summary(c.Request.Context(), owner.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, err := h.workouts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"user": owner, "logs": logs, "summary": summary}, nil)
}

// AdminExport godoc
// @Summary Export a member's workout logs
// @Tags Admin
// @Produce octet-stream
// @Param id path string true "User ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /admin/users/{id}/workout-logs/export [get]
func (h *WorkoutHandler) AdminExport(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	h.export(c, owner)
}

// AdminShare godoc
// @Summary Share a member's export
// @Description Stores the export and returns a signed, expiring download link
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admin/users/{id}/workout-logs/share [post]
func (h *WorkoutHandler) AdminShare(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	filter, format, ok := exportParams(c, owner.ID)
	if !ok {
		return
	}

	link, err := h.exports.Share(c.Request.Context(), owner, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, link)
}

func (h *WorkoutHandler) export(c *gin.Context, owner *models.User) {
	filter, format, ok := exportParams(c, owner.ID)
	if !ok {
		return
	}

	file, err := h.exports.Export(c.Request.Context(), owner, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func (h *WorkoutHandler) owner(c *gin.Context) (*models.User, bool) {
	owner, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return owner, true
}

func exportParams(c *gin.Context, userID string) (models.WorkoutLogFilter, service.ExportFormat, bool) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return models.WorkoutLogFilter{}, "", false
	}
	filter, ok := workoutFilter(c, userID)
	return filter, format, ok
}

func workoutFilter(c *gin.Context, userID string) (models.WorkoutLogFilter, bool) {
	filter := models.WorkoutLogFilter{UserID: userID}
	for _, q := range []struct {
		name string
		dest **int
	}{{"week", &filter.Week}, {"day", &filter.Day}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid "+q.name))
			return models.WorkoutLogFilter{}, false
		}
		*q.dest = &v
	}
	return filter, true
}
