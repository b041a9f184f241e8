package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"mealcore/internal/blob/core"
)

func TestPutGetHeadDeleteLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	info, err := store.Put(ctx, "exports/2026-03-01/a.json", strings.NewReader("{}"),
		core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"day": "2026-03-01"}})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != 2 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := store.Put(ctx, "exports/2026-03-01/a.json", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("duplicate Put accepted")
	}

	got, rc, err := store.Get(ctx, "exports/2026-03-01/a.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}" || got.Metadata["day"] != "2026-03-01" {
		t.Fatalf("unexpected blob: %s %+v", body, got)
	}

	head, err := store.Head(ctx, "exports/2026-03-01/a.json")
	if err != nil || head.Size != 2 {
		t.Fatalf("Head: %v %+v", err, head)
	}

	ok, err := store.Delete(ctx, "exports/2026-03-01/a.json")
	if err != nil || !ok {
		t.Fatalf("Delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "exports/2026-03-01/a.json")
	if err != nil || ok {
		t.Fatalf("second Delete: %v %v", ok, err)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, key := range []string{"exports/a/1.json", "exports/b/1.json", "exports/a/2.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "exports/a/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "exports/a/1.json" || infos[1].Key != "exports/a/2.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}

func TestPresignUnsupported(t *testing.T) {
	store := New()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver: %s", store.Driver())
	}
}
