package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Driver != DriverMemory {
		t.Errorf("Expected memory driver, got %s", cfg.Database.Driver)
	}
	if cfg.Session.PreviewDebounce != 500*time.Millisecond {
		t.Errorf("Expected 500ms debounce, got %v", cfg.Session.PreviewDebounce)
	}
	if cfg.Credits.DownloadCost != 1 {
		t.Errorf("Expected download cost 1, got %d", cfg.Credits.DownloadCost)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Unexpected CORS origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("EXPORT_BACKEND", "BROWSER")
	t.Setenv("PREVIEW_DEBOUNCE", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.App.Port)
	}
	if cfg.Export.Backend != BackendBrowser {
		t.Errorf("Expected browser backend, got %s", cfg.Export.Backend)
	}
	if cfg.Session.PreviewDebounce != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", cfg.Session.PreviewDebounce)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Expected two trimmed origins, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("DB_DRIVER=postgres\nDB_NAME=studio\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.Name != "studio" {
		t.Errorf("Expected values from file, got %+v", cfg.Database)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"driver", "DB_DRIVER", "mysql"},
		{"backend", "EXPORT_BACKEND", "wkhtml"},
		{"printer type", "PRINTER_TYPE", "usb"},
		{"network printer without address", "PRINTER_TYPE", "network"},
		{"debounce", "PREVIEW_DEBOUNCE", "0s"},
		{"download cost", "DOWNLOAD_COST", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(""); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", User: "u", Password: "p", Name: "n", Port: "5432", SSLMode: "disable", Timezone: "UTC"}
	want := "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC"
	if got := c.DSN(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
