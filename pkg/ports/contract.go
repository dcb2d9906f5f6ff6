package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/tessellate-io/weft/pkg/domain"
)

// RunSessionStoreContract exercises the behavior every SessionStore adapter
// must provide. Adapter test files call it with a fresh store.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	t.Helper()
	ctx := context.Background()

	session := domain.NewSession("contract")
	session.Context.Public["greeting"] = "hello"
	session.Context.Private["raw"] = "secret"
	session.StepStatus["seed"] = domain.StepCompleted

	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	loaded, err := store.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID != session.ID {
		t.Errorf("Load returned id %q, want %q", loaded.ID, session.ID)
	}
	if loaded.Context.Public["greeting"] != "hello" {
		t.Errorf("public context not round-tripped: %v", loaded.Context.Public)
	}
	if loaded.Context.Private["raw"] != "secret" {
		t.Errorf("private context not round-tripped: %v", loaded.Context.Private)
	}
	if loaded.StepStatus["seed"] != domain.StepCompleted {
		t.Errorf("step status not round-tripped: %v", loaded.StepStatus)
	}

	// Mutating the loaded copy must not leak into the store.
	loaded.Context.Public["greeting"] = "tampered"
	reloaded, err := store.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if reloaded.Context.Public["greeting"] != "hello" {
		t.Error("Load must return an isolated copy")
	}

	session.Status = domain.StatusCompleted
	session.Cursor = 3
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	saved, err := store.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("Load after Save failed: %v", err)
	}
	if saved.Status != domain.StatusCompleted || saved.Cursor != 3 {
		t.Errorf("Save not applied: status=%s cursor=%d", saved.Status, saved.Cursor)
	}

	if err := store.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Load after Delete = %v, want ErrSessionNotFound", err)
	}

	if _, err := store.Load(ctx, "never-created"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Load of unknown id = %v, want ErrSessionNotFound", err)
	}
}
