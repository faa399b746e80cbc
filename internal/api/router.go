package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Merged task collection.
	r.Get("/tasks", h.ListTasks)
	r.Patch("/tasks/document", h.PatchDocumentTask)

	// Calendar-only tasks.
	r.Post("/tasks/calendar", h.CreateCalendarTask)
	r.Patch("/tasks/calendar/{id}", h.UpdateCalendarTask)
	r.Delete("/tasks/calendar/{id}", h.DeleteCalendarTask)

	// iCalendar import.
	r.Post("/import/ics", h.ImportICS)

	// Timer.
	r.Get("/timer", h.TimerStatus)
	r.Post("/timer/start", h.StartTimer)
	r.Post("/timer/pause", h.PauseTimer)
	r.Post("/timer/resume", h.ResumeTimer)
	r.Post("/timer/stop", h.StopTimer)
	r.Post("/timer/toggle", h.ToggleTimer)

	// Persisted UI state.
	r.Get("/ui/collapsed-tags", h.GetCollapsedTags)
	r.Put("/ui/collapsed-tags", h.PutCollapsedTags)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
