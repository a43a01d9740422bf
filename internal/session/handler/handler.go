package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"civita/internal/platform/middleware"
	"civita/internal/profile"
	"civita/internal/session"
	"civita/internal/session/guard"
	jsonResponse "civita/internal/transport/http/json"
	"civita/internal/transport/http/shared"
	"civita/internal/watchdog"
	"civita/pkg/faults"
)

// Service defines the controller operations the HTTP layer delegates to.
type Service interface {
	Register(ctx context.Context, req *session.RegisterRequest) (string, error)
	Login(ctx context.Context, email, password, userAgent string) (*session.LoginResult, error)
	VerifyCode(ctx context.Context, challengeID uuid.UUID, input string) (*session.VerifyResult, error)
	Cancel(ctx context.Context, challengeID uuid.UUID) error
	Logout(ctx context.Context, sessionID uuid.UUID) error
	Resolve(ctx context.Context, sessionID uuid.UUID) (*session.AuthState, error)
}

// ProfileReader supplies profile snapshots for guard decisions.
type ProfileReader interface {
	Snapshot(ctx context.Context, uid string) profile.Snapshot
}

// ActivitySink receives interaction events that reset the inactivity countdown.
type ActivitySink interface {
	Touch(id uuid.UUID, activity watchdog.Activity)
}

// Handler exposes the login protocol over HTTP.
type Handler struct {
	svc      Service
	profiles ProfileReader
	guard    *guard.Guard
	activity ActivitySink
	logger   *slog.Logger
}

// New creates the session Handler.
func New(svc Service, profiles ProfileReader, g *guard.Guard, activity ActivitySink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:      svc,
		profiles: profiles,
		guard:    g,
		activity: activity,
		logger:   logger,
	}
}

// Register registers the public auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/otp/verify", h.HandleVerify)
	r.Post("/auth/otp/cancel", h.HandleCancel)
}

// RegisterProtected registers the routes requiring a live session.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/session", h.HandleSession)
	r.Post("/session/activity", h.HandleActivity)
	r.Get("/guard/native", h.HandleGuardNative)
	r.Get("/guard/admin", h.HandleGuardAdmin)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type cancelRequest struct {
	ChallengeID string `json:"challenge_id"`
}

type activityRequest struct {
	Activity string `json:"activity"`
}

// HandleRegister implements POST /auth/register. The created account stays
// pending until the back office approves it; no session is returned.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req session.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request",
			"error", err,
			"request_id", requestID,
		)
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid JSON in request body"))
		return
	}

	uid, err := h.svc.Register(ctx, &req)
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"error", err,
			"request_id", requestID,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration accepted",
		"request_id", requestID,
		"uid", uid,
	)

	jsonResponse.WriteJSON(w, http.StatusCreated, map[string]string{
		"uid":    uid,
		"status": string(profile.StatusPending),
	})
}

// HandleLogin implements POST /auth/login. On success the caller holds a
// challenge ID and must complete the OTP step before receiving a token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid JSON in request body"))
		return
	}

	res, err := h.svc.Login(ctx, req.Email, req.Password, r.UserAgent())
	if err != nil {
		h.logger.WarnContext(ctx, "login rejected",
			"error", err,
			"request_id", requestID,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "login accepted, code dispatched",
		"request_id", requestID,
		"challenge_id", res.ChallengeID.String(),
	)

	jsonResponse.WriteJSON(w, http.StatusOK, map[string]string{
		"challenge_id": res.ChallengeID.String(),
		"state":        string(res.State),
	})
}

// HandleVerify implements POST /auth/otp/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	challengeID, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid challenge id"))
		return
	}

	res, err := h.svc.VerifyCode(ctx, challengeID, req.Code)
	if err != nil {
		h.logger.WarnContext(ctx, "otp verification failed",
			"error", err,
			"request_id", requestID,
			"challenge_id", req.ChallengeID,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "otp verified",
		"request_id", requestID,
		"session_id", res.SessionID.String(),
		"role", string(res.Role),
	)

	jsonResponse.WriteJSON(w, http.StatusOK, map[string]string{
		"session_id": res.SessionID.String(),
		"role":       string(res.Role),
		"token":      res.Token,
		"target":     string(res.Target),
	})
}

// HandleCancel implements POST /auth/otp/cancel, the back-to-login action.
// Repeating it is harmless.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	challengeID, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid challenge id"))
		return
	}

	if err := h.svc.Cancel(ctx, challengeID); err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonResponse.WriteJSON(w, http.StatusOK, map[string]string{"state": string(session.StateLoggedOut)})
}

// HandleLogout implements POST /auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info := middleware.GetSession(ctx)
	if info == nil {
		shared.WriteError(w, faults.New(faults.CodeRequiresReauth, "no active session"))
		return
	}
	id, err := uuid.Parse(info.SessionID)
	if err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid session id"))
		return
	}
	if err := h.svc.Logout(ctx, id); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "logout",
		"request_id", middleware.GetRequestID(ctx),
		"session_id", info.SessionID,
	)
	jsonResponse.WriteJSON(w, http.StatusOK, map[string]string{"state": string(session.StateLoggedOut)})
}

// HandleSession implements GET /auth/session, the who-am-I endpoint.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := h.resolveState(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonResponse.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id":   state.SessionID.String(),
		"uid":          state.UID,
		"email":        state.Email,
		"role":         string(state.Role),
		"state":        string(state.State()),
		"device":       state.Device,
		"created_at":   state.CreatedAt,
		"last_seen_at": state.LastSeenAt,
	})
}

// HandleActivity implements POST /session/activity: interaction events
// forwarded by the client to reset the inactivity countdown.
func (h *Handler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info := middleware.GetSession(ctx)
	if info == nil {
		shared.WriteError(w, faults.New(faults.CodeRequiresReauth, "no active session"))
		return
	}
	id, err := uuid.Parse(info.SessionID)
	if err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid session id"))
		return
	}

	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, faults.New(faults.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	activity := watchdog.Activity(req.Activity)
	if activity == "" {
		activity = watchdog.ActivityRequest
	}
	h.activity.Touch(id, activity)
	w.WriteHeader(http.StatusNoContent)
}

// HandleGuardNative implements GET /guard/native.
func (h *Handler) HandleGuardNative(w http.ResponseWriter, r *http.Request) {
	h.handleGuard(w, r, h.guard.Native)
}

// HandleGuardAdmin implements GET /guard/admin.
func (h *Handler) HandleGuardAdmin(w http.ResponseWriter, r *http.Request) {
	h.handleGuard(w, r, h.guard.Admin)
}

func (h *Handler) handleGuard(w http.ResponseWriter, r *http.Request, decide func(*session.AuthState, profile.Snapshot) guard.Decision) {
	ctx := r.Context()
	state, err := h.resolveState(ctx)
	if err != nil {
		// Guards decide on absent sessions too; surface the redirect rather
		// than an error.
		decision := decide(nil, profile.None())
		jsonResponse.WriteJSON(w, http.StatusOK, decision)
		return
	}
	snap := h.profiles.Snapshot(ctx, state.UID)
	jsonResponse.WriteJSON(w, http.StatusOK, decide(state, snap))
}

func (h *Handler) resolveState(ctx context.Context) (*session.AuthState, error) {
	info := middleware.GetSession(ctx)
	if info == nil {
		return nil, faults.New(faults.CodeRequiresReauth, "no active session")
	}
	id, err := uuid.Parse(info.SessionID)
	if err != nil {
		return nil, faults.New(faults.CodeBadRequest, "invalid session id")
	}
	return h.svc.Resolve(ctx, id)
}
