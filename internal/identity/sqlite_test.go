package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testSQLiteDirectory(t *testing.T) *SQLiteDirectory {
	t.Helper()
	dir, err := OpenSQLite(filepath.Join(t.TempDir(), "principals.db"))
	if err != nil {
		t.Fatalf("open sqlite directory: %v", err)
	}
	t.Cleanup(func() { dir.Close() })
	return dir
}

func TestSQLitePutResolve(t *testing.T) {
	dir := testSQLiteDirectory(t)
	ctx := context.Background()

	if err := dir.Put(ctx, Identity{Name: "admin", Superuser: true}); err != nil {
		t.Fatalf("put admin: %v", err)
	}
	if err := dir.Put(ctx, Identity{Name: "alice"}); err != nil {
		t.Fatalf("put alice: %v", err)
	}

	id, err := dir.Resolve(ctx, "admin")
	if err != nil {
		t.Fatalf("resolve admin: %v", err)
	}
	if !id.Superuser {
		t.Error("expected admin to be superuser")
	}

	id, err = dir.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve alice: %v", err)
	}
	if id.Superuser {
		t.Error("expected alice to not be superuser")
	}
}

func TestSQLiteResolveUnknown(t *testing.T) {
	dir := testSQLiteDirectory(t)

	_, err := dir.Resolve(context.Background(), "mallory")
	var unknown *UnknownPrincipalError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownPrincipalError, got %v", err)
	}
}

func TestSQLitePutUpdatesExisting(t *testing.T) {
	dir := testSQLiteDirectory(t)
	ctx := context.Background()

	if err := dir.Put(ctx, Identity{Name: "bob"}); err != nil {
		t.Fatalf("put bob: %v", err)
	}
	if err := dir.Put(ctx, Identity{Name: "bob", Superuser: true}); err != nil {
		t.Fatalf("promote bob: %v", err)
	}

	id, err := dir.Resolve(ctx, "bob")
	if err != nil {
		t.Fatalf("resolve bob: %v", err)
	}
	if !id.Superuser {
		t.Error("expected bob to be superuser after update")
	}
}

func TestSQLiteList(t *testing.T) {
	dir := testSQLiteDirectory(t)
	ctx := context.Background()

	for _, id := range []Identity{
		{Name: "carol", Superuser: false},
		{Name: "admin", Superuser: true},
		{Name: "bob", Superuser: false},
	} {
		if err := dir.Put(ctx, id); err != nil {
			t.Fatalf("put %q: %v", id.Name, err)
		}
	}

	list, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 principals, got %d", len(list))
	}
	wantOrder := []string{"admin", "bob", "carol"}
	for i, name := range wantOrder {
		if list[i].Name != name {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Name, name)
		}
	}
}
