package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civita/internal/platform/middleware"
	"civita/internal/profile"
	jsonResponse "civita/internal/transport/http/json"
	"civita/internal/transport/http/shared"
	"civita/pkg/faults"
)

// Service defines the profile operations the HTTP layer delegates to.
type Service interface {
	Get(ctx context.Context, uid string) (*profile.Profile, error)
	List(ctx context.Context) ([]*profile.Profile, error)
	Approve(ctx context.Context, uid, actor string) error
	Reject(ctx context.Context, uid, actor string) error
	UpdateTheme(ctx context.Context, uid string, theme profile.Theme) error
	UpdatePhotoURL(ctx context.Context, uid string, url string) error
}

// Watcher exposes the live profile subscription used by the SSE endpoint.
type Watcher interface {
	Watch(ctx context.Context, uid string) (<-chan profile.Snapshot, func())
}

// Handler exposes profile reads, preference updates and the back-office
// approval surface over HTTP.
type Handler struct {
	svc     Service
	watcher Watcher
	logger  *slog.Logger
}

// New creates the profile Handler.
func New(svc Service, watcher Watcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, watcher: watcher, logger: logger}
}

// Register registers the guard-gated native profile routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/native/profile", h.HandleGet)
	r.Patch("/native/profile", h.HandlePatch)
}

// RegisterWatch registers the profile watch stream. It is mounted outside the
// native guard: a pending user watches their own profile precisely while the
// guard keeps them on the pending-approval screen, and the stream is what
// moves them off it when the decision lands.
func (h *Handler) RegisterWatch(r chi.Router) {
	r.Get("/native/profile/watch", h.HandleWatch)
}

// RegisterAdmin registers the back-office routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/users", h.HandleList)
	r.Post("/admin/users/{uid}/approve", h.HandleApprove)
	r.Post("/admin/users/{uid}/reject", h.HandleReject)
}

type patchRequest struct {
	Theme    *string `json:"theme,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// HandleGet implements GET /native/profile.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info := middleware.GetSession(ctx)
	if info == nil {
		shared.WriteError(w, faults.New(faults.CodeRequiresReauth, "no active session"))
		return
	}
	p, err := h.svc.Get(ctx, info.UID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonResponse.WriteJSON(w, http.StatusOK, p)
}

// HandleWatch implements GET /native/profile/watch as a server-sent event
// stream: the current snapshot immediately, then one event per change. An
// approval decision made in the back office reaches a waiting client here.
func (h *Handler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info := middleware.GetSession(ctx)
	if info == nil {
		shared.WriteError(w, faults.New(faults.CodeRequiresReauth, "no active session"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.WriteError(w, faults.New(faults.CodeInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshots, cancel := h.watcher.Watch(ctx, info.UID)
	defer cancel()

	for {
		select {
		case snap, open := <-snapshots:
			if !open {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				h.logger.ErrorContext(ctx, "failed to encode snapshot",
					"uid", info.UID,
					"error", err,
				)
				return
			}
			if _, err := w.Write([]byte("event: profile\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// HandlePatch implements PATCH /native/profile for theme and photo updates.
func (h *Handler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info := middleware.GetSession(ctx)
	if info == nil {
		shared.WriteError(w, faults.New(faults.CodeRequiresReauth, "no active session"))
		return
	}

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if req.Theme == nil && req.PhotoURL == nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "nothing to update"))
		return
	}

	if req.Theme != nil {
		if err := h.svc.UpdateTheme(ctx, info.UID, profile.Theme(*req.Theme)); err != nil {
			shared.WriteError(w, err)
			return
		}
	}
	if req.PhotoURL != nil {
		if err := h.svc.UpdatePhotoURL(ctx, info.UID, *req.PhotoURL); err != nil {
			shared.WriteError(w, err)
			return
		}
	}

	p, err := h.svc.Get(ctx, info.UID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonResponse.WriteJSON(w, http.StatusOK, p)
}

// HandleList implements GET /admin/users.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profiles, err := h.svc.List(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonResponse.WriteJSON(w, http.StatusOK, map[string]any{"users": profiles})
}

// HandleApprove implements POST /admin/users/{uid}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.Approve)
}

// HandleReject implements POST /admin/users/{uid}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, uid, actor string) error) {
	ctx := r.Context()
	info := middleware.GetSession(ctx)
	if info == nil {
		shared.WriteError(w, faults.New(faults.CodeRequiresReauth, "no active session"))
		return
	}
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "missing uid"))
		return
	}

	if err := fn(ctx, uid, info.Email); err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "approval decision applied",
		"request_id", middleware.GetRequestID(ctx),
		"uid", uid,
		"actor", info.Email,
	)
	p, err := h.svc.Get(ctx, uid)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonResponse.WriteJSON(w, http.StatusOK, p)
}
