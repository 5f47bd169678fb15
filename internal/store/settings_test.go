package store

import (
	"testing"

	"github.com/dukerupert/taskhero/internal/database"
)

func setupSettingsTestDB(t *testing.T) *SettingsStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSettingsStore(db)
}

func TestSettingsSeedData(t *testing.T) {
	ss := setupSettingsTestDB(t)

	settings, err := ss.GetClientSettings()
	if err != nil {
		t.Fatalf("get client settings: %v", err)
	}

	expected := map[string]string{
		"theme_mode":            "system",
		"notifications_enabled": "true",
	}
	for key, want := range expected {
		if got := settings[key]; got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if _, ok := settings["api_base_url"]; ok {
		t.Error("api_base_url should not be seeded")
	}
}

func TestSettingsSetAndGet(t *testing.T) {
	ss := setupSettingsTestDB(t)

	if err := ss.Set("theme_mode", "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := ss.Get("theme_mode")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "dark" {
		t.Errorf("theme_mode = %q, want %q", got, "dark")
	}
}

func TestSettingsGetNotFound(t *testing.T) {
	ss := setupSettingsTestDB(t)

	if _, err := ss.Get("nonexistent"); err == nil {
		t.Fatal("expected error for missing setting")
	}
}

func TestSettingsList(t *testing.T) {
	ss := setupSettingsTestDB(t)

	ss.Set("api_base_url", "https://api.example.com")
	all, err := ss.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("settings count = %d, want 3", len(all))
	}
	if all[0].Key != "api_base_url" || all[0].Value != "https://api.example.com" {
		t.Errorf("first setting = %+v, want api_base_url", all[0])
	}
	if all[0].UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
}
