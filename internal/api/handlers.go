package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps domain sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrTargetNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrEditConflict):
		writeJSON(w, http.StatusConflict, errorBody("edit conflict"))
	case errors.Is(err, apperr.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListTasks handles GET /api/tasks.
//
// Optional query parameters: tag filters on exact tag membership,
// status on the task status.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tag := q.Get("tag")
	status := models.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown status"))
		return
	}

	tasks, err := h.svc.ListTasks(tag, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Total: len(tasks)})
}

// PatchDocumentTask handles PATCH /api/tasks/document. The patch is
// written back into the source document line.
func (h *Handler) PatchDocumentTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req PatchDocumentTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}

	task, err := h.svc.UpdateDocumentTask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CreateCalendarTask handles POST /api/tasks/calendar.
func (h *Handler) CreateCalendarTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateCalendarTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	task, err := h.svc.CreateCalendarTask(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// UpdateCalendarTask handles PATCH /api/tasks/calendar/{id}.
func (h *Handler) UpdateCalendarTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")
	var req UpdateCalendarTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	task, err := h.svc.UpdateCalendarTask(id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteCalendarTask handles DELETE /api/tasks/calendar/{id}.
func (h *Handler) DeleteCalendarTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteCalendarTask(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportICS handles POST /api/import/ics. The request body is the raw
// iCalendar payload.
func (h *Handler) ImportICS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("empty calendar payload"))
		return
	}

	resp, err := h.svc.ImportICS(string(body))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StartTimer handles POST /api/timer/start.
func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTimerAction(w, r)
	if !ok {
		return
	}
	derived, err := h.svc.StartTimer(req.TaskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, derived)
}

// PauseTimer handles POST /api/timer/pause.
func (h *Handler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.PauseTimer(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.TimerStatus())
}

// ResumeTimer handles POST /api/timer/resume.
func (h *Handler) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResumeTimer(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.TimerStatus())
}

// StopTimer handles POST /api/timer/stop.
func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	minutes, err := h.svc.StopTimer()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"minutes": minutes})
}

// ToggleTimer handles POST /api/timer/toggle.
func (h *Handler) ToggleTimer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTimerAction(w, r)
	if !ok {
		return
	}
	derived, err := h.svc.ToggleTimer(req.TaskID)
	if err != nil {
		writeError(w, err)
		return
	}
	if derived != nil {
		writeJSON(w, http.StatusCreated, derived)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.TimerStatus())
}

// TimerStatus handles GET /api/timer.
func (h *Handler) TimerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.TimerStatus())
}

func decodeTimerAction(w http.ResponseWriter, r *http.Request) (TimerActionRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req TimerActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	if req.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("taskId is required"))
		return req, false
	}
	return req, true
}

// GetCollapsedTags handles GET /api/ui/collapsed-tags.
func (h *Handler) GetCollapsedTags(w http.ResponseWriter, _ *http.Request) {
	tags, err := h.svc.CollapsedTags()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CollapsedTagsBody{Tags: tags})
}

// PutCollapsedTags handles PUT /api/ui/collapsed-tags.
func (h *Handler) PutCollapsedTags(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CollapsedTagsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}
	if err := h.svc.SetCollapsedTags(req.Tags); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CollapsedTagsBody{Tags: req.Tags})
}
