package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/presence"
	"github.com/Nurudeenbika/university-crm-backend/internal/service"
)

// PresenceStats reports how many users and connections are online.
type PresenceStats interface {
	Stats() presence.Stats
}

type Handler struct {
	courseService     service.CourseService
	enrollmentService service.EnrollmentService
	assignmentService service.AssignmentService
	gradebookService  service.GradebookService
	notifier          service.Notifier
	presence          PresenceStats
	validate          *validator.Validate
	translator        ut.Translator
	logger            zerolog.Logger

	workerStats func() map[string]interface{}
}

func NewHandler(
	courseService service.CourseService,
	enrollmentService service.EnrollmentService,
	assignmentService service.AssignmentService,
	gradebookService service.GradebookService,
	notifier service.Notifier,
	presence PresenceStats,
	logger zerolog.Logger,
) *Handler {
	validate, translator := newValidator()

	return &Handler{
		courseService:     courseService,
		enrollmentService: enrollmentService,
		assignmentService: assignmentService,
		gradebookService:  gradebookService,
		notifier:          notifier,
		presence:          presence,
		validate:          validate,
		translator:        translator,
		logger:            logger,
	}
}

// SetWorkerStats adds the grading worker pool to the health report.
func (h *Handler) SetWorkerStats(stats func() map[string]interface{}) {
	h.workerStats = stats
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Use(CallerIdentity)

		api.Route("/courses", func(r chi.Router) {
			r.Get("/", h.GetAllCourses)
			r.Post("/", h.CreateCourse)
			r.Get("/{id}", h.GetCourse)
			r.Get("/{id}/enrollments", h.GetCourseEnrollments)
			r.Get("/{id}/gradebook", h.ExportGradebook)
			r.Get("/{id}/assignments", h.GetCourseAssignments)
		})

		api.Route("/enrollments", func(r chi.Router) {
			r.With(RequireRole(models.RoleAdmin)).Get("/", h.GetAllEnrollments)
			r.Get("/my", h.GetMyEnrollments)
			r.With(RequireRole(models.RoleStudent)).Post("/enroll", h.RequestEnrollment)
			r.Patch("/{id}/status", h.UpdateEnrollmentStatus)
			r.With(RequireRole(models.RoleStudent)).Delete("/drop/{courseId}", h.DropEnrollment)
		})

		api.Route("/assignments", func(r chi.Router) {
			r.With(RequireRole(models.RoleStudent)).Post("/", h.SubmitAssignment)
			r.Get("/{id}", h.GetAssignmentByID)
			r.Patch("/{id}/grade", h.GradeAssignment)
		})

		api.Route("/notifications", func(r chi.Router) {
			r.With(RequireRole(models.RoleAdmin)).Post("/broadcast", h.Broadcast)
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "university-crm",
		"timestamp": time.Now().UTC(),
		"presence":  h.presence.Stats(),
	}
	if h.workerStats != nil {
		response["grading_workers"] = h.workerStats()
	}

	writeJSON(w, http.StatusOK, response)
}

// handleServiceError maps domain errors to status codes; anything unexpected
// is logged and hidden behind a 500.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPermission):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getIDParam(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeSuccessStatus(w, http.StatusOK, data)
}

func writeSuccessStatus(w http.ResponseWriter, status int, data interface{}) {
	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}
	writeJSON(w, status, response)
}
