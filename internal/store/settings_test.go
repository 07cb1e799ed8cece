package store

import (
	"errors"
	"testing"
)

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()

	if _, err := settings.Get("enabled"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on empty store error = %v, want ErrNotFound", err)
	}
	if v, err := settings.GetOr("enabled", "false"); err != nil || v != "false" {
		t.Errorf("GetOr() = %q, %v", v, err)
	}

	if err := settings.Set("enabled", "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := settings.Set("enabled", "false"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if err := settings.Set("mirror_x", "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	all, err := settings.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 || all["enabled"] != "false" || all["mirror_x"] != "true" {
		t.Errorf("All() = %v", all)
	}

	if err := settings.Delete("enabled"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := settings.Delete("enabled"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
	if _, err := settings.Get("enabled"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}
