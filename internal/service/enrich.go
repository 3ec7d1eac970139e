package service

import (
	"context"
	"fmt"

	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/repository"
)

// UnknownOwnerName is shown for recommendations whose owner no longer
// exists.
const UnknownOwnerName = "Unknown"

// enrich maps a page of recommendations to their display form.
//
// Owners are loaded once per distinct ownerId with a single batched store
// call, never once per record. caller may be nil, in which case the
// caller-dependent fields stay empty.
func enrich(ctx context.Context, users repository.UserRepository, recs []model.Recommendation, caller *model.User) ([]model.RecommendationView, error) {
	views := make([]model.RecommendationView, 0, len(recs))
	if len(recs) == 0 {
		return views, nil
	}

	seen := make(map[string]struct{}, len(recs))
	ownerIDs := make([]string, 0, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.OwnerID]; ok {
			continue
		}
		seen[r.OwnerID] = struct{}{}
		ownerIDs = append(ownerIDs, r.OwnerID)
	}

	owners, err := users.GetUsersByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("loading recommendation owners: %w", err)
	}
	byID := make(map[string]model.User, len(owners))
	for _, u := range owners {
		byID[u.ID] = u
	}

	for _, r := range recs {
		v := model.RecommendationView{
			ID:               r.ID,
			Title:            r.Title,
			Genre:            r.Genre,
			Link:             r.Link,
			Blurb:            r.Blurb,
			IsStaffPick:      r.IsStaffPick,
			CreatedAt:        r.CreatedAt,
			OwnerDisplayName: UnknownOwnerName,
		}
		if owner, ok := byID[r.OwnerID]; ok {
			v.OwnerDisplayName = owner.DisplayName
			v.OwnerAvatarURL = owner.AvatarURL
		}
		if caller != nil {
			v.CallerRole = caller.Role
			v.IsOwner = r.OwnerID == caller.ID
		}
		views = append(views, v)
	}
	return views, nil
}
