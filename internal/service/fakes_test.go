package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserRepo is an in-memory repository.UserRepository with the same
// upsert semantics as the real stores.
type fakeUserRepo struct {
	mu     sync.Mutex
	byID   map[string]*model.User
	byExt  map[string]string // externalID → ID
	nextID int

	batchCalls int // GetUsersByIDs invocations
	upsertErr  error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:  make(map[string]*model.User),
		byExt: make(map[string]string),
	}
}

func (f *fakeUserRepo) UpsertByExternalID(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}

	now := time.Now().UTC()
	if id, ok := f.byExt[user.ExternalID]; ok {
		existing := f.byID[id]
		existing.Email = user.Email
		existing.DisplayName = user.DisplayName
		existing.AvatarURL = user.AvatarURL
		existing.UpdatedAt = now
		*user = *existing
		return nil
	}

	f.nextID++
	user.ID = fmt.Sprintf("u%d", f.nextID)
	user.Role = model.RoleUser
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	f.byID[user.ID] = &stored
	f.byExt[user.ExternalID] = user.ID
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byExt[externalID]
	if !ok {
		return nil, apperror.NotFound("user", externalID)
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeUserRepo) GetUsersByIDs(_ context.Context, ids []string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	var out []model.User
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) DeleteByExternalID(_ context.Context, externalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byExt[externalID]
	if !ok {
		return false, nil
	}
	delete(f.byExt, externalID)
	delete(f.byID, id)
	return true, nil
}

func (f *fakeUserRepo) SetRole(_ context.Context, id string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Role = role
	return nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// fakeRecRepo is an in-memory repository.RecommendationRepository. seq
// stands in for insertion order so ties on CreatedAt stay deterministic.
type fakeRecRepo struct {
	mu     sync.Mutex
	recs   map[string]*model.Recommendation
	seq    map[string]int
	nextID int
	clock  time.Time
}

func newFakeRecRepo() *fakeRecRepo {
	return &fakeRecRepo{
		recs:  make(map[string]*model.Recommendation),
		seq:   make(map[string]int),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRecRepo) Create(_ context.Context, rec *model.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	rec.ID = fmt.Sprintf("r%d", f.nextID)
	rec.CreatedAt = f.clock
	stored := *rec
	f.recs[rec.ID] = &stored
	f.seq[rec.ID] = f.nextID
	return nil
}

func (f *fakeRecRepo) GetByID(_ context.Context, id string) (*model.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return nil, apperror.NotFound("recommendation", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRecRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Recommendation
	for _, r := range f.recs {
		if opts.Genre != "" && r.Genre != opts.Genre {
			continue
		}
		if opts.OwnerID != "" && r.OwnerID != opts.OwnerID {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return f.seq[out[i].ID] > f.seq[out[j].ID]
	})
	if limit := opts.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRecRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recs[id]; !ok {
		return apperror.NotFound("recommendation", id)
	}
	delete(f.recs, id)
	return nil
}

func (f *fakeRecRepo) MarkStaffPick(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return apperror.NotFound("recommendation", id)
	}
	r.IsStaffPick = true
	return nil
}

func (f *fakeRecRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}
