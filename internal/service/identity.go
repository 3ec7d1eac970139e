package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/metrics"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/repository"
)

// Lifecycle event types sent by the identity provider.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// IdentityService mirrors the identity provider's user lifecycle into the
// user store.
//
// Every event maps to exactly one store statement, and both of them are
// idempotent, so duplicate or out-of-order deliveries converge instead of
// failing. Sync never touches roles; Promote is the operator path that
// grants admin.
type IdentityService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewIdentityService(users repository.UserRepository, logger *slog.Logger) *IdentityService {
	return &IdentityService{users: users, logger: logger}
}

// Upsert creates the user for p.ExternalID with RoleUser, or refreshes the
// profile fields of the existing one.
func (s *IdentityService) Upsert(ctx context.Context, p model.Profile) (*model.User, error) {
	externalID := strings.TrimSpace(p.ExternalID)
	if externalID == "" {
		return nil, apperror.ValidationFailed("externalId", "externalId is required")
	}

	user := &model.User{
		ExternalID:  externalID,
		Email:       strings.TrimSpace(p.Email),
		DisplayName: strings.TrimSpace(p.DisplayName),
		AvatarURL:   strings.TrimSpace(p.AvatarURL),
	}
	if err := s.users.UpsertByExternalID(ctx, user); err != nil {
		return nil, fmt.Errorf("upserting user (externalID=%s): %w", externalID, err)
	}

	s.logger.Info("user synced",
		slog.String("userID", user.ID),
		slog.String("externalID", externalID),
	)
	return user, nil
}

// Delete removes the user for externalID. Deleting an unknown user is a
// no-op. Recommendations owned by the user are kept.
func (s *IdentityService) Delete(ctx context.Context, externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return apperror.ValidationFailed("externalId", "externalId is required")
	}

	removed, err := s.users.DeleteByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("deleting user (externalID=%s): %w", externalID, err)
	}

	if removed {
		s.logger.Info("user deleted", slog.String("externalID", externalID))
	} else {
		s.logger.Debug("user delete for unknown identity", slog.String("externalID", externalID))
	}
	return nil
}

// HandleEvent applies one lifecycle event. For user.deleted only
// p.ExternalID is read. Unknown event types are logged and ignored.
func (s *IdentityService) HandleEvent(ctx context.Context, eventType string, p model.Profile) error {
	var err error
	switch eventType {
	case EventUserCreated, EventUserUpdated:
		_, err = s.Upsert(ctx, p)
	case EventUserDeleted:
		err = s.Delete(ctx, p.ExternalID)
	default:
		s.logger.Info("ignoring identity event", slog.String("type", eventType))
		metrics.IdentityEvents.WithLabelValues(eventType, "ignored").Inc()
		return nil
	}

	switch {
	case err == nil:
		metrics.IdentityEvents.WithLabelValues(eventType, "applied").Inc()
	case errors.Is(err, apperror.ErrValidation):
		metrics.IdentityEvents.WithLabelValues(eventType, "rejected").Inc()
	default:
		metrics.IdentityEvents.WithLabelValues(eventType, "error").Inc()
	}
	return err
}

// CurrentUser returns the user behind externalID, or nil when the caller is
// anonymous or not yet synced.
func (s *IdentityService) CurrentUser(ctx context.Context, externalID string) (*model.User, error) {
	if externalID == "" {
		return nil, nil
	}
	user, err := s.users.GetUserByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching user (externalID=%s): %w", externalID, err)
	}
	return user, nil
}

// Promote grants the admin role to the already-synced user behind
// externalID. It is an operator action: the startup bootstrap and the
// promote command call it, no API route does. An unsynced identity is
// NotFound.
func (s *IdentityService) Promote(ctx context.Context, externalID string) (*model.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperror.ValidationFailed("externalId", "externalId is required")
	}

	user, err := s.users.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("promoting user (externalID=%s): %w", externalID, err)
	}
	if user.Role.IsAdmin() {
		return user, nil
	}

	if err := s.users.SetRole(ctx, user.ID, model.RoleAdmin); err != nil {
		return nil, fmt.Errorf("promoting user (externalID=%s): %w", externalID, err)
	}
	promoted, err := s.users.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading promoted user %s: %w", user.ID, err)
	}

	s.logger.Info("user promoted to admin",
		slog.String("userID", promoted.ID),
		slog.String("externalID", externalID),
	)
	return promoted, nil
}

// PromoteAll applies Promote to every id in externalIDs. Identities that are
// not synced yet are skipped with a warning; any other failure stops the
// run.
func (s *IdentityService) PromoteAll(ctx context.Context, externalIDs []string) error {
	for _, ext := range externalIDs {
		if _, err := s.Promote(ctx, ext); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				s.logger.Warn("admin identity not synced yet", slog.String("externalID", ext))
				continue
			}
			return err
		}
	}
	return nil
}
