// Command server runs the portal authentication service: password + OTP
// login, approval gating, route guards and inactivity-driven logout.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"civita/internal/audit"
	"civita/internal/credstore"
	"civita/internal/otp"
	"civita/internal/platform/config"
	"civita/internal/platform/logger"
	"civita/internal/platform/metrics"
	"civita/internal/profile"
	profilehandler "civita/internal/profile/handler"
	"civita/internal/session"
	"civita/internal/session/guard"
	sessionhandler "civita/internal/session/handler"
	"civita/internal/token"
	httptransport "civita/internal/transport/http"
	"civita/internal/watchdog"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	auditLog := audit.NewMemoryLog(0)
	tokens := token.NewService(cfg.SigningKey, cfg.Issuer, cfg.SessionTTL)

	creds := credstore.NewMemoryStore(tokens)
	profiles := profile.NewInMemoryStore()
	profileSvc := profile.NewService(profiles,
		profile.WithLogger(log),
		profile.WithAuditPublisher(auditLog),
	)

	challenges := otp.NewRegistry(
		otp.WithTTL(cfg.OTPChallengeTTL),
		otp.WithMaxAttempts(cfg.OTPMaxAttempts),
		otp.WithLogger(log),
	)

	var sender otp.Sender
	if cfg.MailRelayURL != "" {
		sender = otp.NewRelaySender(cfg.MailRelayURL, otp.WithRelayLogger(log))
	} else {
		log.Warn("no mail relay configured, otp codes go to the log")
		sender = otp.NewLogSender(log)
	}

	sessions := session.NewRegistry()

	// The supervisor terminates sessions through the controller, and the
	// controller notifies the supervisor through hooks; the closure breaks
	// the construction cycle.
	var ctrl *session.Controller
	supervisor := watchdog.NewSupervisor(
		cfg.AdminIdleTTL,
		cfg.NativeIdleTTL,
		sessions,
		func(ctx context.Context, id uuid.UUID, reason session.LogoutReason) error {
			_, err := ctrl.ForceLogout(ctx, id, reason)
			return err
		},
		watchdog.WithSupervisorLogger(log),
	)

	ctrl, err := session.NewController(creds, profiles, challenges, sender, sessions, tokens,
		session.WithLogger(log),
		session.WithMetrics(m),
		session.WithAuditPublisher(auditLog),
		session.WithHooks(session.Hooks{
			OnVerified:  supervisor.Mount,
			OnLoggedOut: supervisor.Unmount,
		}),
	)
	if err != nil {
		return err
	}

	if err := seedBootstrapAccount(ctx, cfg, creds, profiles, log); err != nil {
		return err
	}

	g := guard.New(guard.NewStaticPolicy(cfg.BootstrapEmail))
	sessHandler := sessionhandler.New(ctrl, profileSvc, g, supervisor, log)
	profHandler := profilehandler.New(profileSvc, profiles, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Metrics:       m,
		Verifier:      ctrl,
		Resolver:      ctrl,
		Snapshots:     profileSvc,
		Guard:         g,
		Activity:      supervisor,
		Auth:          httptransport.RegistrarFunc(sessHandler.Register),
		AuthProtected: httptransport.RegistrarFunc(sessHandler.RegisterProtected),
		Profile:       httptransport.RegistrarFunc(profHandler.Register),
		ProfileWatch:  httptransport.RegistrarFunc(profHandler.RegisterWatch),
		ProfileAdmin:  httptransport.RegistrarFunc(profHandler.RegisterAdmin),
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		return challenges.Start(ctx)
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// seedBootstrapAccount creates the distinguished super-admin credential and
// its approved admin profile so the back office is reachable on first start.
func seedBootstrapAccount(ctx context.Context, cfg config.Server, creds *credstore.MemoryStore, profiles *profile.InMemoryStore, log *slog.Logger) error {
	if cfg.BootstrapPassword == "" {
		log.Warn("no bootstrap password configured, back office starts unreachable")
		return nil
	}

	sess, err := creds.SignUp(ctx, cfg.BootstrapEmail, cfg.BootstrapPassword)
	if err != nil {
		return err
	}
	if err := creds.SignOut(ctx, sess.ID); err != nil {
		return err
	}

	if err := profiles.Save(ctx, &profile.Profile{
		UID:       sess.UID,
		Email:     sess.Email,
		FullName:  "Portal Administrator",
		Role:      profile.RoleAdmin,
		Status:    profile.StatusApproved,
		Theme:     profile.ThemeLight,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}

	log.Info("bootstrap account seeded", "uid", sess.UID)
	return nil
}
