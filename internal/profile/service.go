package profile

import (
	"context"
	"errors"
	"log/slog"

	"civita/internal/audit"
	"civita/internal/sentinel"
	"civita/pkg/faults"
)

// Store defines the persistence interface the service needs.
// Error Contract: Find methods return sentinel.ErrNotFound (wrapped) when the
// profile doesn't exist.
type Store interface {
	Save(ctx context.Context, p *Profile) error
	FindByUID(ctx context.Context, uid string) (*Profile, error)
	SetStatus(ctx context.Context, uid string, status Status) error
	SetTheme(ctx context.Context, uid string, theme Theme) error
	SetPhotoURL(ctx context.Context, uid string, url string) error
	ListAll(ctx context.Context) ([]*Profile, error)
}

// Service exposes back-office approval decisions and user preference updates.
type Service struct {
	store  Store
	logger *slog.Logger
	audit  audit.Publisher
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// NewService constructs a profile service around the given store.
func NewService(store Store, opts ...Option) *Service {
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Get returns the profile for uid.
func (s *Service) Get(ctx context.Context, uid string) (*Profile, error) {
	p, err := s.store.FindByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, faults.New(faults.CodeNotFound, "profile not found")
		}
		return nil, faults.Wrap(err, faults.CodeInternal, "failed to load profile")
	}
	return p, nil
}

// Snapshot returns the tri-state observation guards consume. A uid with no
// document maps to None; a store failure maps to Loading, since the
// observation never settled and loading must not redirect.
func (s *Service) Snapshot(ctx context.Context, uid string) Snapshot {
	p, err := s.store.FindByUID(ctx, uid)
	switch {
	case err == nil:
		return Value(p)
	case errors.Is(err, sentinel.ErrNotFound):
		return None()
	default:
		s.logger.WarnContext(ctx, "profile snapshot failed", "uid", uid, "error", err)
		return Loading()
	}
}

// List returns every profile for the admin back office.
func (s *Service) List(ctx context.Context) ([]*Profile, error) {
	profiles, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeInternal, "failed to list profiles")
	}
	return profiles, nil
}

// Approve marks the account approved. Watchers of the profile see the change
// immediately, which is what moves a user off the pending-approval screen
// without a reload.
func (s *Service) Approve(ctx context.Context, uid, actor string) error {
	return s.decide(ctx, uid, actor, StatusApproved, audit.ActionAccountApproved)
}

// Reject marks the account rejected.
func (s *Service) Reject(ctx context.Context, uid, actor string) error {
	return s.decide(ctx, uid, actor, StatusRejected, audit.ActionAccountRejected)
}

func (s *Service) decide(ctx context.Context, uid, actor string, status Status, action audit.Action) error {
	if err := s.store.SetStatus(ctx, uid, status); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return faults.New(faults.CodeNotFound, "profile not found")
		}
		return faults.Wrap(err, faults.CodeInternal, "failed to update status")
	}
	s.logger.InfoContext(ctx, string(action),
		"uid", uid,
		"actor", actor,
		"log_type", "audit",
	)
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.Event{
			Action: action,
			Actor:  actor,
			Detail: map[string]string{"uid": uid},
		})
	}
	return nil
}

// UpdateTheme records the user's display preference.
func (s *Service) UpdateTheme(ctx context.Context, uid string, theme Theme) error {
	if theme != ThemeLight && theme != ThemeDark {
		return faults.New(faults.CodeBadRequest, "unknown theme")
	}
	if err := s.store.SetTheme(ctx, uid, theme); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return faults.New(faults.CodeNotFound, "profile not found")
		}
		return faults.Wrap(err, faults.CodeInternal, "failed to update theme")
	}
	return nil
}

// UpdatePhotoURL records the user's profile photo location, typically the URL
// returned by the object store after an upload.
func (s *Service) UpdatePhotoURL(ctx context.Context, uid string, url string) error {
	if err := s.store.SetPhotoURL(ctx, uid, url); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return faults.New(faults.CodeNotFound, "profile not found")
		}
		return faults.Wrap(err, faults.CodeInternal, "failed to update photo")
	}
	return nil
}
