package httpd

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	course, err := h.courseService.CreateCourse(r.Context(), caller(r), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, course)
}

func (h *Handler) GetAllCourses(w http.ResponseWriter, r *http.Request) {
	page := getIntQueryParam(r, "page", 1)
	limit := getIntQueryParam(r, "limit", 20)

	courses, total, err := h.courseService.GetAllCourses(r.Context(), page, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, map[string]interface{}{
		"courses": courses,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := getIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid course ID")
		return
	}

	course, err := h.courseService.GetCourse(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, course)
}

// GetCourseEnrollments returns the roster to admins and the course lecturer.
func (h *Handler) GetCourseEnrollments(w http.ResponseWriter, r *http.Request) {
	id, ok := getIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid course ID")
		return
	}

	ctx := r.Context()
	course, err := h.courseService.GetCourse(ctx, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	c := caller(r)
	if !c.IsAdmin() && course.LecturerID != c.UserID {
		writeError(w, http.StatusForbidden, "you can only view enrollments for your courses")
		return
	}

	enrollments, err := h.enrollmentService.GetEnrollmentsByCourse(ctx, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, enrollments)
}

func (h *Handler) GetCourseAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := getIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid course ID")
		return
	}

	assignments, err := h.assignmentService.GetAssignmentsByCourse(r.Context(), caller(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, assignments)
}

func (h *Handler) ExportGradebook(w http.ResponseWriter, r *http.Request) {
	id, ok := getIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid course ID")
		return
	}

	book, err := h.gradebookService.ExportGradebook(r.Context(), caller(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", book.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(book.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(book.Content); err != nil {
		h.logger.Warn().Err(err).Int64("course_id", id).Msg("Failed to write gradebook")
	}
}
