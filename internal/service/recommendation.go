// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → resolves the caller, consults policy, validates
//	Repository (Data layer)  → reads/writes the store
//
// Services accept primitives and domain types, never *http.Request, and
// return apperror values that the handler maps to status codes.
//
// The caller of every operation is identified by the verified external
// identity (the provider's subject). An empty string means anonymous.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/metrics"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/policy"
	"github.com/sakif/hypeshelf/internal/repository"
)

// RecommendationService is the public operation surface for recommendations:
// list, list-mine, add, remove and mark-staff-pick.
type RecommendationService struct {
	recs     repository.RecommendationRepository
	users    repository.UserRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRecommendationService wires the service to its stores.
func NewRecommendationService(
	recs repository.RecommendationRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *RecommendationService {
	return &RecommendationService{
		recs:     recs,
		users:    users,
		validate: newValidator(),
		logger:   logger,
	}
}

// List returns the public feed: up to repository.PageSize recommendations,
// newest first, optionally restricted to one genre.
//
// Anyone may list. When callerID resolves to a user, each view also carries
// the caller's role and an ownership flag; a caller that does not resolve is
// treated as anonymous rather than failing.
func (s *RecommendationService) List(ctx context.Context, callerID string, genre model.Genre) (views []model.RecommendationView, err error) {
	defer func() { observe("list", err) }()

	if genre != "" && !genre.Valid() {
		return nil, invalidGenre()
	}

	caller, err := s.lookupCaller(ctx, callerID)
	if err != nil {
		return nil, err
	}

	decision := policy.Authorize(caller, policy.ActionList, nil)
	if err := decision.Err(); err != nil {
		return nil, err
	}

	return s.listScoped(ctx, caller, decision.Scope, genre)
}

// ListMine returns the caller's own recommendations, or every
// recommendation when the caller is an admin.
func (s *RecommendationService) ListMine(ctx context.Context, callerID string, genre model.Genre) (views []model.RecommendationView, err error) {
	defer func() { observe("list_mine", err) }()

	caller, err := s.requireCaller(ctx, callerID, policy.ActionListMine)
	if err != nil {
		return nil, err
	}

	if genre != "" && !genre.Valid() {
		return nil, invalidGenre()
	}

	decision := policy.Authorize(caller, policy.ActionListMine, nil)
	if err := decision.Err(); err != nil {
		return nil, err
	}

	return s.listScoped(ctx, caller, decision.Scope, genre)
}

// Add validates and stores a new recommendation owned by the caller and
// returns its id. The record always starts with IsStaffPick false.
//
// Surrounding whitespace is trimmed before length checks, so a title of
// only spaces fails as "required".
func (s *RecommendationService) Add(ctx context.Context, callerID, title string, genre model.Genre, blurb, link string) (id string, err error) {
	defer func() { observe("add", err) }()

	caller, err := s.requireCaller(ctx, callerID, policy.ActionAdd)
	if err != nil {
		return "", err
	}
	if err := policy.Authorize(caller, policy.ActionAdd, nil).Err(); err != nil {
		return "", err
	}

	// === VALIDATION ===
	in := recommendationInput{
		Title: strings.TrimSpace(title),
		Genre: model.Genre(strings.TrimSpace(string(genre))),
		Link:  strings.TrimSpace(link),
		Blurb: strings.TrimSpace(blurb),
	}
	if err := s.validate.Struct(in); err != nil {
		return "", toValidationError(err)
	}

	rec := &model.Recommendation{
		OwnerID:     caller.ID,
		Title:       in.Title,
		Genre:       in.Genre,
		Link:        in.Link,
		Blurb:       in.Blurb,
		IsStaffPick: false,
	}
	if err := s.recs.Create(ctx, rec); err != nil {
		s.logger.Error("failed to create recommendation",
			slog.String("ownerID", caller.ID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("creating recommendation: %w", err)
	}

	s.logger.Info("recommendation added",
		slog.String("id", rec.ID),
		slog.String("ownerID", rec.OwnerID),
		slog.String("genre", string(rec.Genre)),
	)
	return rec.ID, nil
}

// Remove deletes a recommendation. Owners may remove their own records;
// admins may remove any.
func (s *RecommendationService) Remove(ctx context.Context, callerID, id string) (err error) {
	defer func() { observe("remove", err) }()

	caller, rec, err := s.resolveTarget(ctx, callerID, id, policy.ActionRemove)
	if err != nil {
		return err
	}

	if err := policy.Authorize(caller, policy.ActionRemove, rec).Err(); err != nil {
		s.logger.Warn("recommendation remove denied",
			slog.String("id", rec.ID),
			slog.String("callerID", caller.ID),
		)
		return err
	}

	// A concurrent delete between GetByID and here surfaces as NotFound.
	if err := s.recs.Delete(ctx, rec.ID); err != nil {
		return err
	}

	s.logger.Info("recommendation removed",
		slog.String("id", rec.ID),
		slog.String("by", caller.ID),
	)
	return nil
}

// MarkAsStaffPick flags a recommendation as a staff pick. Admin only.
// Calling it on an existing pick is a successful no-op; there is no way to
// unset the flag.
func (s *RecommendationService) MarkAsStaffPick(ctx context.Context, callerID, id string) (err error) {
	defer func() { observe("mark_staff_pick", err) }()

	caller, err := s.requireCaller(ctx, callerID, policy.ActionMarkStaffPick)
	if err != nil {
		return err
	}

	// Non-admins are refused before the lookup: a missing id and an existing
	// one both answer Forbidden.
	if err := policy.Authorize(caller, policy.ActionMarkStaffPick, nil).Err(); err != nil {
		return err
	}

	rec, err := s.loadTarget(ctx, id)
	if err != nil {
		return err
	}

	if err := s.recs.MarkStaffPick(ctx, rec.ID); err != nil {
		return err
	}

	s.logger.Info("recommendation marked as staff pick",
		slog.String("id", rec.ID),
		slog.String("by", caller.ID),
	)
	return nil
}

// listScoped runs the store query for an authorized read and enriches the
// page.
func (s *RecommendationService) listScoped(ctx context.Context, caller *model.User, scope policy.Scope, genre model.Genre) ([]model.RecommendationView, error) {
	recs, err := s.recs.List(ctx, repository.ListOptions{
		Genre:   genre,
		OwnerID: scope.OwnerID,
		Limit:   repository.PageSize,
	})
	if err != nil {
		s.logger.Error("failed to list recommendations", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing recommendations: %w", err)
	}

	return enrich(ctx, s.users, recs, caller)
}

// lookupCaller resolves callerID for operations that allow anonymous
// callers. An empty id or an unknown identity yields (nil, nil).
func (s *RecommendationService) lookupCaller(ctx context.Context, callerID string) (*model.User, error) {
	if callerID == "" {
		return nil, nil
	}
	user, err := s.users.GetUserByExternalID(ctx, callerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving caller: %w", err)
	}
	return user, nil
}

// requireCaller resolves callerID for operations that need a signed-in
// user. No identity → the policy's Unauthenticated decision; an identity
// with no synced user record → NotFound.
func (s *RecommendationService) requireCaller(ctx context.Context, callerID string, action policy.Action) (*model.User, error) {
	if callerID == "" {
		return nil, policy.Authorize(nil, action, nil).Err()
	}
	user, err := s.users.GetUserByExternalID(ctx, callerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("user", callerID)
		}
		return nil, fmt.Errorf("resolving caller: %w", err)
	}
	return user, nil
}

// resolveTarget loads both the caller and the recommendation a record-level
// action refers to.
func (s *RecommendationService) resolveTarget(ctx context.Context, callerID, id string, action policy.Action) (*model.User, *model.Recommendation, error) {
	caller, err := s.requireCaller(ctx, callerID, action)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.loadTarget(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return caller, rec, nil
}

func (s *RecommendationService) loadTarget(ctx context.Context, id string) (*model.Recommendation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "recommendation ID is required")
	}
	return s.recs.GetByID(ctx, id)
}

// observe records the outcome of an operation.
func observe(op string, err error) {
	metrics.RecommendationOps.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, apperror.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrValidation):
		return "validation"
	}
	return "error"
}
