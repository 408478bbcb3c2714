package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/tracker"
	"github.com/clintrovert/praxis/pkg/types"
)

// TrackingEngine is the slice of the tracker the API exposes
type TrackingEngine interface {
	TrackStory(ctx context.Context, key string, opts tracker.TrackOptions) *types.TrackingResult
	TrackProject(ctx context.Context, projectKey string, opts tracker.TrackOptions) (*types.ProjectReport, error)
	TrackAssignee(ctx context.Context, assigneeEmail, projectKey string, opts tracker.TrackOptions) (*types.AssigneeReport, error)
	InvalidateCandidates()
}

// CommentPoster posts a comment onto a tracked story
type CommentPoster interface {
	AddComment(ctx context.Context, key, body string) error
}

// MappingDirectory reads and writes the learned project mappings
type MappingDirectory interface {
	All() (map[string]string, error)
	Save(projectKey, repository string) error
}

// Handler handles REST API requests
type Handler struct {
	engine   TrackingEngine
	comments CommentPoster
	mappings MappingDirectory
	logger   *zap.Logger
}

// NewHandler creates a new REST handler. comments may be nil when no
// issue tracker credentials allow posting
func NewHandler(engine TrackingEngine, comments CommentPoster, mappings MappingDirectory, logger *zap.Logger) *Handler {
	return &Handler{
		engine:   engine,
		comments: comments,
		mappings: mappings,
		logger:   logger,
	}
}

// TrackRequest asks for one story's tracking run
type TrackRequest struct {
	StoryKey   string `json:"story_key"`
	Identity   string `json:"identity,omitempty"`
	Repository string `json:"repository,omitempty"`
	Validate   bool   `json:"validate,omitempty"`
}

// ProjectTrackRequest tunes a project fan-out run
type ProjectTrackRequest struct {
	Identity string `json:"identity,omitempty"`
	Validate bool   `json:"validate,omitempty"`
}

// AssigneeTrackRequest asks for a per-assignee fan-out run
type AssigneeTrackRequest struct {
	AssigneeEmail string `json:"assignee_email"`
	ProjectKey    string `json:"project_key,omitempty"`
	Validate      bool   `json:"validate,omitempty"`
}

// CommentRequest tunes the run behind a posted report
type CommentRequest struct {
	Identity   string `json:"identity,omitempty"`
	Repository string `json:"repository,omitempty"`
}

// CommentResponse reports whether the tracking report was posted
type CommentResponse struct {
	StoryKey string                `json:"story_key"`
	Posted   bool                  `json:"posted"`
	Result   *types.TrackingResult `json:"result"`
}

// MappingRequest sets a project's repository mapping
type MappingRequest struct {
	Repository string `json:"repository"`
}

// MappingResponse echoes a stored mapping
type MappingResponse struct {
	ProjectKey string `json:"project_key"`
	Repository string `json:"repository"`
}

// TrackStory handles POST /tracks
func (h *Handler) TrackStory(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.StoryKey == "" {
		http.Error(w, "story_key is required", http.StatusBadRequest)
		return
	}

	result := h.engine.TrackStory(r.Context(), req.StoryKey, tracker.TrackOptions{
		Identity:   req.Identity,
		Repository: req.Repository,
		Validate:   req.Validate,
	})

	h.respond(w, result)
}

// PostReport handles POST /tracks/{storyKey}/comment: it tracks the story
// and posts the report back onto it
func (h *Handler) PostReport(w http.ResponseWriter, r *http.Request) {
	storyKey := chi.URLParam(r, "storyKey")

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.comments == nil {
		http.Error(w, "comment posting is not configured", http.StatusServiceUnavailable)
		return
	}

	result := h.engine.TrackStory(r.Context(), storyKey, tracker.TrackOptions{
		Identity:   req.Identity,
		Repository: req.Repository,
		Validate:   true,
	})

	if result.Error != nil {
		// Nothing worth posting; hand the failed result back instead
		h.respond(w, CommentResponse{StoryKey: storyKey, Posted: false, Result: result})
		return
	}

	body := tracker.FormatReportComment(result)
	if err := h.comments.AddComment(r.Context(), storyKey, body); err != nil {
		h.logger.Error("failed to post report comment", zap.String("story", storyKey), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.respond(w, CommentResponse{StoryKey: storyKey, Posted: true, Result: result})
}

// TrackProject handles POST /projects/{projectKey}/tracks
func (h *Handler) TrackProject(w http.ResponseWriter, r *http.Request) {
	projectKey := chi.URLParam(r, "projectKey")

	var req ProjectTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.engine.TrackProject(r.Context(), projectKey, tracker.TrackOptions{
		Identity: req.Identity,
		Validate: req.Validate,
	})
	if err != nil {
		h.logger.Error("failed to track project", zap.String("project", projectKey), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respond(w, report)
}

// TrackAssignee handles POST /assignees/tracks
func (h *Handler) TrackAssignee(w http.ResponseWriter, r *http.Request) {
	var req AssigneeTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AssigneeEmail == "" {
		http.Error(w, "assignee_email is required", http.StatusBadRequest)
		return
	}

	report, err := h.engine.TrackAssignee(r.Context(), req.AssigneeEmail, req.ProjectKey, tracker.TrackOptions{
		Validate: req.Validate,
	})
	if err != nil {
		h.logger.Error("failed to track assignee", zap.String("assignee", req.AssigneeEmail), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respond(w, report)
}

// ListMappings handles GET /mappings
func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.mappings.All()
	if err != nil {
		h.logger.Error("failed to read mappings", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.respond(w, mappings)
}

// SaveMapping handles PUT /mappings/{projectKey}
func (h *Handler) SaveMapping(w http.ResponseWriter, r *http.Request) {
	projectKey := chi.URLParam(r, "projectKey")

	var req MappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := types.ParseRepository(req.Repository); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.mappings.Save(projectKey, req.Repository); err != nil {
		h.logger.Error("failed to save mapping", zap.String("project", projectKey), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respond(w, MappingResponse{ProjectKey: projectKey, Repository: req.Repository})
}

// RefreshRepositories handles POST /repositories/refresh
func (h *Handler) RefreshRepositories(w http.ResponseWriter, r *http.Request) {
	h.engine.InvalidateCandidates()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success": true}`))
}

func (h *Handler) respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// RegisterRoutes registers REST API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/tracks", h.TrackStory)
	r.Post("/tracks/{storyKey}/comment", h.PostReport)
	r.Post("/projects/{projectKey}/tracks", h.TrackProject)
	r.Post("/assignees/tracks", h.TrackAssignee)
	r.Get("/mappings", h.ListMappings)
	r.Put("/mappings/{projectKey}", h.SaveMapping)
	r.Post("/repositories/refresh", h.RefreshRepositories)
}
