package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/purlock/purlock/internal/models"
)

func TestResolve(t *testing.T) {
	cat, err := New(map[string]models.BindingMode{
		"100": models.BindingModeDevice,
		"200": models.BindingModeNetwork,
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	mode, err := cat.Resolve("100")
	if err != nil || mode != models.BindingModeDevice {
		t.Fatalf("expected device, got %v %v", mode, err)
	}

	mode, err = cat.Resolve("200")
	if err != nil || mode != models.BindingModeNetwork {
		t.Fatalf("expected network, got %v %v", mode, err)
	}

	if _, err := cat.Resolve("999"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}

func TestNewRejectsInvalidMode(t *testing.T) {
	if _, err := New(map[string]models.BindingMode{"100": "floppy"}); err == nil {
		t.Fatal("expected error for invalid mode")
	}
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for empty catalog")
	}
	if _, err := New(map[string]models.BindingMode{"": models.BindingModeDevice}); err == nil {
		t.Fatal("expected error for empty item id")
	}
}

func TestParse(t *testing.T) {
	cat, err := Parse("100:device, 200:network")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", cat.Len())
	}

	if _, err := Parse("100=device"); err == nil {
		t.Fatal("expected error for malformed entry")
	}
	if _, err := Parse("100:tape"); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "items:\n  \"100\": device\n  \"200\": network\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}

	cat, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mode, err := cat.Resolve("200")
	if err != nil || mode != models.BindingModeNetwork {
		t.Fatalf("expected network, got %v %v", mode, err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
