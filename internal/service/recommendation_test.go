package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/repository"
)

// recEnv bundles a RecommendationService with its fakes.
type recEnv struct {
	users *fakeUserRepo
	recs  *fakeRecRepo
	svc   *RecommendationService
}

func newRecEnv(t *testing.T) *recEnv {
	t.Helper()
	users := newFakeUserRepo()
	recs := newFakeRecRepo()
	return &recEnv{
		users: users,
		recs:  recs,
		svc:   NewRecommendationService(recs, users, discardLogger()),
	}
}

// seedUser syncs a user and optionally promotes it to admin.
func (e *recEnv) seedUser(t *testing.T, externalID, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{ExternalID: externalID, Email: externalID + "@example.com", DisplayName: name}
	if err := e.users.UpsertByExternalID(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	if role == model.RoleAdmin {
		if err := e.users.SetRole(context.Background(), u.ID, model.RoleAdmin); err != nil {
			t.Fatalf("promoting user: %v", err)
		}
		u.Role = model.RoleAdmin
	}
	return u
}

func (e *recEnv) add(t *testing.T, callerExt, title string, genre model.Genre) string {
	t.Helper()
	id, err := e.svc.Add(context.Background(), callerExt, title, genre, "a blurb", "")
	if err != nil {
		t.Fatalf("Add(%q) error = %v", title, err)
	}
	return id
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want kind %v", err, kind)
	}
}

// =========================================================================
// SCENARIOS
// =========================================================================

func TestScenario_AddPickRemove(t *testing.T) {
	e := newRecEnv(t)
	ctx := context.Background()
	a := e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.seedUser(t, "ext_b", "Bob", model.RoleAdmin)
	e.seedUser(t, "ext_c", "Carol", model.RoleUser)

	id, err := e.svc.Add(ctx, "ext_a", "Dune", model.GenreSciFi, "Great book", "")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	rec, err := e.recs.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.OwnerID != a.ID || rec.IsStaffPick {
		t.Fatalf("new record = %+v, want owner %s and not a staff pick", rec, a.ID)
	}

	if err := e.svc.MarkAsStaffPick(ctx, "ext_b", id); err != nil {
		t.Fatalf("MarkAsStaffPick() by admin error = %v", err)
	}

	err = e.svc.Remove(ctx, "ext_c", id)
	assertKind(t, err, apperror.ErrForbidden)
	if e.recs.count() != 1 {
		t.Fatal("record should survive a forbidden remove")
	}

	if err := e.svc.Remove(ctx, "ext_a", id); err != nil {
		t.Fatalf("Remove() by owner error = %v", err)
	}
	if e.recs.count() != 0 {
		t.Fatal("record should be gone after owner remove")
	}
}

func TestScenario_AnonymousListMine(t *testing.T) {
	e := newRecEnv(t)

	_, err := e.svc.ListMine(context.Background(), "", "")
	assertKind(t, err, apperror.ErrUnauthenticated)
}

func TestScenario_EmptyTitle(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)

	_, err := e.svc.Add(context.Background(), "ext_a", "", model.GenreSciFi, "x", "")
	assertKind(t, err, apperror.ErrValidation)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Field != "title" {
		t.Fatalf("error = %v, want field title", err)
	}
}

// =========================================================================
// LIST
// =========================================================================

func TestList_AnonymousSeesEverythingWithoutCallerFields(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.add(t, "ext_a", "Alien", model.GenreHorror)

	views, err := e.svc.List(context.Background(), "", "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("len(views) = %d, want 1", len(views))
	}
	v := views[0]
	if v.CallerRole != "" || v.IsOwner {
		t.Errorf("anonymous view has caller fields: role=%q isOwner=%v", v.CallerRole, v.IsOwner)
	}
	if v.OwnerDisplayName != "Alice" {
		t.Errorf("OwnerDisplayName = %q, want Alice", v.OwnerDisplayName)
	}
}

func TestList_CallerFields(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.seedUser(t, "ext_b", "Bob", model.RoleUser)
	e.add(t, "ext_a", "Alien", model.GenreHorror)
	e.add(t, "ext_b", "Heat", model.GenreAction)

	views, err := e.svc.List(context.Background(), "ext_a", "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, v := range views {
		if v.CallerRole != model.RoleUser {
			t.Errorf("%s: CallerRole = %q, want user", v.Title, v.CallerRole)
		}
		if want := v.Title == "Alien"; v.IsOwner != want {
			t.Errorf("%s: IsOwner = %v, want %v", v.Title, v.IsOwner, want)
		}
	}
}

func TestList_UnknownCallerTreatedAsAnonymous(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.add(t, "ext_a", "Alien", model.GenreHorror)

	views, err := e.svc.List(context.Background(), "ext_not_synced", "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != 1 || views[0].CallerRole != "" {
		t.Fatalf("views = %+v, want one anonymous view", views)
	}
}

func TestList_NewestFirstAndGenreFilter(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.add(t, "ext_a", "first", model.GenreDrama)
	e.add(t, "ext_a", "second", model.GenreComedy)
	e.add(t, "ext_a", "third", model.GenreDrama)

	views, err := e.svc.List(context.Background(), "", "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var titles []string
	for _, v := range views {
		titles = append(titles, v.Title)
	}
	if got := strings.Join(titles, ","); got != "third,second,first" {
		t.Errorf("order = %s, want third,second,first", got)
	}

	dramas, err := e.svc.List(context.Background(), "", model.GenreDrama)
	if err != nil {
		t.Fatalf("List(drama) error = %v", err)
	}
	if len(dramas) != 2 {
		t.Errorf("len(dramas) = %d, want 2", len(dramas))
	}
}

func TestList_InvalidGenre(t *testing.T) {
	e := newRecEnv(t)

	_, err := e.svc.List(context.Background(), "", model.Genre("jazz"))
	assertKind(t, err, apperror.ErrValidation)
}

func TestList_PageCap(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	for i := 0; i < repository.PageSize+5; i++ {
		e.add(t, "ext_a", fmt.Sprintf("title %d", i), model.GenreDrama)
	}

	views, err := e.svc.List(context.Background(), "", "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != repository.PageSize {
		t.Errorf("len(views) = %d, want %d", len(views), repository.PageSize)
	}
}

func TestList_EnrichmentIsBatched(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.seedUser(t, "ext_b", "Bob", model.RoleUser)
	for i := 0; i < 10; i++ {
		e.add(t, "ext_a", fmt.Sprintf("a%d", i), model.GenreDrama)
		e.add(t, "ext_b", fmt.Sprintf("b%d", i), model.GenreDrama)
	}
	e.users.batchCalls = 0

	if _, err := e.svc.List(context.Background(), "", ""); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if e.users.batchCalls != 1 {
		t.Errorf("GetUsersByIDs calls = %d, want 1 per page", e.users.batchCalls)
	}
}

func TestList_OrphanShowsUnknown(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.add(t, "ext_a", "Alien", model.GenreHorror)
	if _, err := e.users.DeleteByExternalID(context.Background(), "ext_a"); err != nil {
		t.Fatalf("deleting owner: %v", err)
	}

	views, err := e.svc.List(context.Background(), "", "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != 1 || views[0].OwnerDisplayName != UnknownOwnerName {
		t.Fatalf("views = %+v, want one orphan shown as %q", views, UnknownOwnerName)
	}
}

// =========================================================================
// LIST MINE
// =========================================================================

func TestListMine_ScopedByRole(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.seedUser(t, "ext_b", "Bob", model.RoleUser)
	e.seedUser(t, "ext_admin", "Root", model.RoleAdmin)
	e.add(t, "ext_a", "mine", model.GenreDrama)
	e.add(t, "ext_b", "theirs", model.GenreDrama)

	mine, err := e.svc.ListMine(context.Background(), "ext_a", "")
	if err != nil {
		t.Fatalf("ListMine(user) error = %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "mine" || !mine[0].IsOwner {
		t.Errorf("user ListMine = %+v, want only own record", mine)
	}

	all, err := e.svc.ListMine(context.Background(), "ext_admin", "")
	if err != nil {
		t.Fatalf("ListMine(admin) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin ListMine len = %d, want 2", len(all))
	}
}

func TestListMine_UnsyncedCaller(t *testing.T) {
	e := newRecEnv(t)

	_, err := e.svc.ListMine(context.Background(), "ext_ghost", "")
	assertKind(t, err, apperror.ErrNotFound)
}

// =========================================================================
// ADD
// =========================================================================

func TestAdd_Validation(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)

	tests := []struct {
		name      string
		title     string
		genre     model.Genre
		blurb     string
		link      string
		wantField string
	}{
		{"whitespace title", "   ", model.GenreDrama, "b", "", "title"},
		{"title too long", strings.Repeat("t", MaxTitleLength+1), model.GenreDrama, "b", "", "title"},
		{"empty blurb", "t", model.GenreDrama, "", "", "blurb"},
		{"blurb too long", "t", model.GenreDrama, strings.Repeat("b", MaxBlurbLength+1), "", "blurb"},
		{"unknown genre", "t", model.Genre("jazz"), "b", "", "genre"},
		{"missing genre", "t", "", "b", "", "genre"},
		{"bad link", "t", model.GenreDrama, "b", "not a url", "link"},
		{"non-http link", "t", model.GenreDrama, "b", "ftp://example.com/file", "link"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Add(context.Background(), "ext_a", tt.title, tt.genre, tt.blurb, tt.link)
			assertKind(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || appErr.Field != tt.wantField {
				t.Errorf("error = %v, want field %q", err, tt.wantField)
			}
		})
	}
	if e.recs.count() != 0 {
		t.Errorf("invalid adds stored %d records", e.recs.count())
	}
}

func TestAdd_LimitsCountCharacters(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)

	title := strings.Repeat("é", MaxTitleLength)
	if _, err := e.svc.Add(context.Background(), "ext_a", title, model.GenreDrama, "b", ""); err != nil {
		t.Fatalf("Add() with %d multi-byte characters error = %v", MaxTitleLength, err)
	}
}

func TestAdd_TrimsAndKeepsLink(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)

	id, err := e.svc.Add(context.Background(), "ext_a", "  Dune  ", model.GenreSciFi, " Great book ", "https://example.com/dune")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	rec, _ := e.recs.GetByID(context.Background(), id)
	if rec.Title != "Dune" || rec.Blurb != "Great book" || rec.Link != "https://example.com/dune" {
		t.Errorf("stored = %+v", rec)
	}
}

func TestAdd_Anonymous(t *testing.T) {
	e := newRecEnv(t)

	_, err := e.svc.Add(context.Background(), "", "Dune", model.GenreSciFi, "b", "")
	assertKind(t, err, apperror.ErrUnauthenticated)
}

// =========================================================================
// REMOVE / STAFF PICK
// =========================================================================

func TestRemove_AdminRemovesAnyAndMissingIsNotFound(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.seedUser(t, "ext_admin", "Root", model.RoleAdmin)
	id := e.add(t, "ext_a", "Alien", model.GenreHorror)

	if err := e.svc.Remove(context.Background(), "ext_admin", id); err != nil {
		t.Fatalf("Remove() by admin error = %v", err)
	}

	err := e.svc.Remove(context.Background(), "ext_admin", id)
	assertKind(t, err, apperror.ErrNotFound)
}

func TestRemove_Anonymous(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	id := e.add(t, "ext_a", "Alien", model.GenreHorror)

	err := e.svc.Remove(context.Background(), "", id)
	assertKind(t, err, apperror.ErrUnauthenticated)
}

func TestMarkAsStaffPick(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	e.seedUser(t, "ext_admin", "Root", model.RoleAdmin)
	id := e.add(t, "ext_a", "Alien", model.GenreHorror)

	err := e.svc.MarkAsStaffPick(context.Background(), "ext_a", id)
	assertKind(t, err, apperror.ErrForbidden)

	for i := 0; i < 2; i++ {
		if err := e.svc.MarkAsStaffPick(context.Background(), "ext_admin", id); err != nil {
			t.Fatalf("MarkAsStaffPick() call %d error = %v", i+1, err)
		}
	}
	rec, _ := e.recs.GetByID(context.Background(), id)
	if !rec.IsStaffPick {
		t.Error("IsStaffPick = false after admin pick")
	}

	err = e.svc.MarkAsStaffPick(context.Background(), "ext_admin", "missing")
	assertKind(t, err, apperror.ErrNotFound)
}

func TestMarkAsStaffPick_NonAdminCannotTellMissingFromExisting(t *testing.T) {
	e := newRecEnv(t)
	e.seedUser(t, "ext_a", "Alice", model.RoleUser)
	id := e.add(t, "ext_a", "Alien", model.GenreHorror)

	for _, target := range []string{id, "missing", ""} {
		err := e.svc.MarkAsStaffPick(context.Background(), "ext_a", target)
		assertKind(t, err, apperror.ErrForbidden)
	}
}
