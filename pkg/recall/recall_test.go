package recall_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/recall-oss/recall/internal/testutil"
	"github.com/recall-oss/recall/pkg/recall"
)

func TestOpen_RequiresGenerator(t *testing.T) {
	if _, err := recall.Open(t.TempDir(), recall.Options{}); err == nil {
		t.Fatal("expected error when no generator is supplied")
	}
}

func TestOpen_DefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	client, err := recall.Open(dir, recall.Options{Generator: &testutil.MockGenerator{}})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	cfg := client.Config()
	if cfg.Memory.MaxActiveMessages != 10 {
		t.Errorf("expected default max_active_messages 10, got %d", cfg.Memory.MaxActiveMessages)
	}

	// The store lands under the config dir.
	if _, err := os.Stat(filepath.Join(dir, ".recall", "history.db")); err != nil {
		t.Errorf("expected history db under %s: %v", dir, err)
	}
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	bad := "memory:\n  max_active_messages: 2\n  rotation_batch_size: 5\n"
	if err := os.WriteFile(filepath.Join(dir, "recall.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := recall.Open(dir, recall.Options{Generator: &testutil.MockGenerator{}}); err == nil {
		t.Fatal("expected error for batch size exceeding active cap")
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	a := recall.NewSessionID()
	b := recall.NewSessionID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}

func TestClient_DeleteSessionDropsWorker(t *testing.T) {
	client, err := recall.Open(t.TempDir(), recall.Options{Generator: &testutil.MockGenerator{}})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	worker, err := client.Session("doomed")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := worker.Process(context.Background(), "remember this", nil); err != nil {
		t.Fatal(err)
	}

	if err := client.DeleteSession("doomed"); err != nil {
		t.Fatal(err)
	}

	if _, err := client.Stats("doomed"); err == nil {
		t.Error("expected stats to fail for a deleted session")
	}

	// A new worker for the same id starts with empty memory.
	fresh, err := client.Session("doomed")
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh.Memory().Context()) != 0 {
		t.Error("recreated session should start empty")
	}
}
