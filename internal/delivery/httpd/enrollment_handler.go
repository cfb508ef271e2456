package httpd

import (
	"net/http"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

func (h *Handler) RequestEnrollment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEnrollmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	if _, err := h.courseService.GetCourse(ctx, req.CourseID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	enrollment, err := h.enrollmentService.RequestEnrollment(ctx, req.CourseID, caller(r).UserID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, enrollment)
}

func (h *Handler) GetMyEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.enrollmentService.GetEnrollmentsByStudent(r.Context(), caller(r).UserID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, enrollments)
}

func (h *Handler) GetAllEnrollments(w http.ResponseWriter, r *http.Request) {
	page := getIntQueryParam(r, "page", 1)
	limit := getIntQueryParam(r, "limit", 20)

	response, err := h.enrollmentService.GetAllEnrollments(r.Context(), page, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, response)
}

func (h *Handler) UpdateEnrollmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := getIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid enrollment ID")
		return
	}

	var req models.UpdateEnrollmentStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	enrollment, err := h.enrollmentService.Decide(
		r.Context(),
		caller(r),
		id,
		models.EnrollmentStatus(req.Status),
		req.FinalGrade,
	)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, enrollment)
}

func (h *Handler) DropEnrollment(w http.ResponseWriter, r *http.Request) {
	courseID, ok := getIDParam(r, "courseId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid course ID")
		return
	}

	enrollment, err := h.enrollmentService.Drop(r.Context(), courseID, caller(r).UserID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, enrollment)
}
