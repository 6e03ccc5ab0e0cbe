package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/akarpov/bowltab/internal/audit"
	"github.com/akarpov/bowltab/internal/models"
	"github.com/akarpov/bowltab/internal/storage/sqlite"
	"github.com/akarpov/bowltab/internal/telegram"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "bowltab-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"), 100)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(store, audit.New(store, 100))
}

func identity(tgID int64, first string) *telegram.Identity {
	return &telegram.Identity{TelegramID: tgID, FirstName: first, Username: "tg" + first}
}

func TestUpsertFirstUserIsAdmin(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	first, err := dir.Upsert(ctx, identity(1, "Alice"))
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if first.Role != models.RoleAdmin {
		t.Errorf("first user role = %s, want admin", first.Role)
	}

	second, err := dir.Upsert(ctx, identity(2, "Bob"))
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if second.Role != models.RoleUser {
		t.Errorf("second user role = %s, want user", second.Role)
	}
}

func TestUpsertRefreshesProfileOnly(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.Upsert(ctx, identity(1, "Alice"))
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	again, err := dir.Upsert(ctx, &telegram.Identity{TelegramID: 1, FirstName: "Alina", Username: "alina"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if again.ID != created.ID {
		t.Errorf("upsert created a second record: %s vs %s", again.ID, created.ID)
	}
	if again.DisplayName != "Alina" || again.Username != "alina" {
		t.Errorf("profile not refreshed: %+v", again)
	}
	if again.Role != models.RoleAdmin {
		t.Errorf("role not preserved: %s", again.Role)
	}
}

func TestSetRole(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	admin, _ := dir.Upsert(ctx, identity(1, "Alice"))
	user, _ := dir.Upsert(ctx, identity(2, "Bob"))

	t.Run("admin promotes another user", func(t *testing.T) {
		promoted, err := dir.SetRole(ctx, admin, user.ID, models.RoleAdmin)
		if err != nil {
			t.Fatalf("SetRole failed: %v", err)
		}
		if promoted.Role != models.RoleAdmin {
			t.Errorf("role = %s, want admin", promoted.Role)
		}
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		outsider, _ := dir.Upsert(ctx, identity(3, "Eve"))
		if _, err := dir.SetRole(ctx, outsider, admin.ID, models.RoleUser); !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown target is not found", func(t *testing.T) {
		if _, err := dir.SetRole(ctx, admin, "ghost", models.RoleUser); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("bogus role is rejected", func(t *testing.T) {
		if _, err := dir.SetRole(ctx, admin, user.ID, models.Role("owner")); !errors.Is(err, ErrInvalidRole) {
			t.Errorf("error = %v, want ErrInvalidRole", err)
		}
	})
}

func TestAdminSelfHeal(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	alice, _ := dir.Upsert(ctx, identity(1, "Alice"))
	bob, _ := dir.Upsert(ctx, identity(2, "Bob"))

	// Alice promotes Bob, then Bob demotes Alice, then Bob demotes himself:
	// the directory must immediately promote the earliest-created user back.
	bob, err := dir.SetRole(ctx, alice, bob.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if _, err := dir.SetRole(ctx, bob, alice.ID, models.RoleUser); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if _, err := dir.SetRole(ctx, bob, bob.ID, models.RoleUser); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}

	// The invariant: at least one admin exists whenever at least one user
	// does. The promoted user is the earliest-created one.
	admins := 0
	for _, id := range []string{alice.ID, bob.ID} {
		u, err := dir.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if u.Role == models.RoleAdmin {
			admins++
		}
	}
	if admins == 0 {
		t.Error("no admin left after reconciliation")
	}
}

func TestVisibleUsers(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	admin, _ := dir.Upsert(ctx, identity(1, "Alice"))
	user, _ := dir.Upsert(ctx, identity(2, "Bob"))

	all, err := dir.VisibleUsers(ctx, admin)
	if err != nil {
		t.Fatalf("VisibleUsers failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin sees %d users, want 2", len(all))
	}

	own, err := dir.VisibleUsers(ctx, user)
	if err != nil {
		t.Fatalf("VisibleUsers failed: %v", err)
	}
	if len(own) != 1 || own[0].ID != user.ID {
		t.Errorf("non-admin sees %d users, want only self", len(own))
	}
}

func TestUpdateSettings(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	user, _ := dir.Upsert(ctx, identity(1, "Alice"))
	if !user.NotifyOnNewBowl {
		t.Fatal("notifications should default to on")
	}

	off := false
	updated, err := dir.UpdateSettings(ctx, user.ID, &off)
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if updated.NotifyOnNewBowl {
		t.Error("NotifyOnNewBowl still on")
	}

	// nil means "leave it alone".
	unchanged, err := dir.UpdateSettings(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if unchanged.NotifyOnNewBowl {
		t.Error("NotifyOnNewBowl flipped without being set")
	}
}

func TestUpdateSettingsDoesNotRevertRoleChange(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	admin, _ := dir.Upsert(ctx, identity(1, "Alice"))
	user, _ := dir.Upsert(ctx, identity(2, "Bob"))

	// Settings writes rewrite the whole user record, so they must re-read
	// it under the directory lock; a stale write here would silently undo
	// the promotion happening alongside it.
	off := false
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := dir.UpdateSettings(ctx, user.ID, &off); err != nil {
				t.Errorf("UpdateSettings failed: %v", err)
			}
		}()
	}
	if _, err := dir.SetRole(ctx, admin, user.ID, models.RoleAdmin); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	wg.Wait()

	got, err := dir.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Role != models.RoleAdmin {
		t.Errorf("role = %s, want admin; a settings write reverted the promotion", got.Role)
	}
	if got.NotifyOnNewBowl {
		t.Error("NotifyOnNewBowl still on")
	}
}
