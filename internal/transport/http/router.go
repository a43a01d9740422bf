// Package httptransport assembles the HTTP surface: middleware stack, auth
// and profile handlers, guard-enforced route groups, health and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civita/internal/platform/metrics"
	"civita/internal/platform/middleware"
	"civita/internal/profile"
	"civita/internal/session"
	"civita/internal/session/guard"
	"civita/internal/transport/http/json"
	"civita/internal/watchdog"
)

// StateResolver returns the live auth state behind a session ID.
type StateResolver interface {
	Resolve(ctx context.Context, sessionID uuid.UUID) (*session.AuthState, error)
}

// SnapshotSource supplies the profile observation guards consume.
type SnapshotSource interface {
	Snapshot(ctx context.Context, uid string) profile.Snapshot
}

// ActivitySink receives interaction events that reset the inactivity countdown.
type ActivitySink interface {
	Touch(id uuid.UUID, activity watchdog.Activity)
}

// Registrar mounts a handler's routes on a router group.
type Registrar interface {
	Register(r chi.Router)
}

// RegistrarFunc adapts a plain function to Registrar.
type RegistrarFunc func(chi.Router)

func (f RegistrarFunc) Register(r chi.Router) { f(r) }

// Deps carries everything the router wires together.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Verifier  middleware.SessionVerifier
	Resolver  StateResolver
	Snapshots SnapshotSource
	Guard     *guard.Guard
	Activity  ActivitySink

	// Auth mounts public auth routes; AuthProtected the session-scoped ones.
	Auth          Registrar
	AuthProtected Registrar
	// Profile mounts native profile routes; ProfileWatch the profile stream;
	// ProfileAdmin the back office.
	Profile      Registrar
	ProfileWatch Registrar
	ProfileAdmin Registrar
}

// NewRouter wires all endpoints with the middleware stack. The native group
// is gated by the native guard, the admin group by the admin guard; guard
// verdicts other than allow never reach the handlers.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(latencyMiddleware(d.Metrics))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		json.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public auth surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		d.Auth.Register(r)
	})

	// Session-scoped surface: logout, session introspection, activity,
	// guard probes. A valid token is enough here; guard verdicts are what
	// these endpoints report, not what gates them.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.RequireSession(d.Verifier, d.Logger))
		r.Use(activityMiddleware(d.Activity))
		d.AuthProtected.Register(r)
	})

	// Native portal surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.RequireSession(d.Verifier, d.Logger))
		r.Use(activityMiddleware(d.Activity))
		r.Use(guardMiddleware(d, d.Guard.Native))
		d.Profile.Register(r)
	})

	// Profile watch stream. Session-scoped, not guard-gated: a pending user
	// must be able to watch their own profile while the guard holds them on
	// the pending-approval screen. The stream also rules out the timeout
	// wrapper, which buffers responses.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(d.Verifier, d.Logger))
		r.Use(activityMiddleware(d.Activity))
		d.ProfileWatch.Register(r)
	})

	// Back-office surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.RequireSession(d.Verifier, d.Logger))
		r.Use(activityMiddleware(d.Activity))
		r.Use(guardMiddleware(d, d.Guard.Admin))
		d.ProfileAdmin.Register(r)
	})

	return r
}

// activityMiddleware counts every authenticated request as an interaction
// event, so ordinary API traffic resets the inactivity countdown the same way
// explicit activity reports do.
func activityMiddleware(sink ActivitySink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if sink == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info := middleware.GetSession(r.Context()); info != nil {
				if id, err := uuid.Parse(info.SessionID); err == nil {
					sink.Touch(id, watchdog.ActivityRequest)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// latencyMiddleware observes per-endpoint latency keyed by the chi route
// pattern, so path parameters do not explode the label cardinality.
func latencyMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}
			m.ObserveEndpointLatency(endpoint, time.Since(start).Seconds())
		})
	}
}

// guardMiddleware enforces a guard decision before the handler runs.
// Pending renders the pending-approval view in place; loading answers 202 so
// clients retry rather than redirect; redirects answer 401 with the target.
func guardMiddleware(d Deps, decide func(*session.AuthState, profile.Snapshot) guard.Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var state *session.AuthState
			if info := middleware.GetSession(ctx); info != nil {
				if id, err := uuid.Parse(info.SessionID); err == nil {
					state, _ = d.Resolver.Resolve(ctx, id)
				}
			}

			snap := profile.None()
			if state != nil {
				snap = d.Snapshots.Snapshot(ctx, state.UID)
			}

			decision := decide(state, snap)
			switch decision.Verdict {
			case guard.VerdictAllow:
				next.ServeHTTP(w, r)
			case guard.VerdictPending:
				json.WriteJSON(w, http.StatusOK, map[string]string{"view": "pending-approval"})
			case guard.VerdictLoading:
				json.WriteJSON(w, http.StatusAccepted, decision)
			default:
				json.WriteJSON(w, http.StatusUnauthorized, decision)
			}
		})
	}
}
