package httpd

import (
	"net/http"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

func (h *Handler) SubmitAssignment(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAssignmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	assignment, err := h.assignmentService.SubmitAssignment(r.Context(), caller(r), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, assignment)
}

func (h *Handler) GetAssignmentByID(w http.ResponseWriter, r *http.Request) {
	id, ok := getIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid assignment ID")
		return
	}

	assignment, err := h.assignmentService.GetAssignmentByID(r.Context(), caller(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, assignment)
}

func (h *Handler) GradeAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := getIDParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid assignment ID")
		return
	}

	var req models.GradeAssignmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	assignment, err := h.assignmentService.GradeAssignment(r.Context(), caller(r), id, &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, assignment)
}
