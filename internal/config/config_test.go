package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestTOML(t *testing.T, dir, contents string) string {
	t.Helper()

	path := filepath.Join(dir, "main.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write test main.toml: %v", err)
	}

	return dir + string(filepath.Separator)
}

const minimalTOML = `
Title = "dirsync"

[Webserver]
Port = 8080
URL = "http://localhost:8080"

[DB]
Host = "localhost"
Port = 5432
Name = "dirsync"
GormEngine = "postgres"
`

func TestReadConfig(t *testing.T) {
	configPath := writeTestTOML(t, t.TempDir(), minimalTOML)

	cfg, err := ReadConfig(configPath)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title != "dirsync" {
		t.Errorf("Config.Title = %q, want %q", cfg.Title, "dirsync")
	}

	if cfg.Webserver.Port != 8080 {
		t.Errorf("Webserver.Port = %v, want 8080", cfg.Webserver.Port)
	}

	if cfg.Webserver.URL == "" {
		t.Error("Webserver.URL should not be empty")
	}

	if cfg.DB.Host == "" {
		t.Error("DB.Host should not be empty")
	}

	// ShutDownTime defaults to 5 when unset.
	if cfg.Webserver.ShutDownTime != 5 {
		t.Errorf("Webserver.ShutDownTime = %v, want default 5", cfg.Webserver.ShutDownTime)
	}
}

func TestReadConfigWithJSONOverride(t *testing.T) {
	configPath := writeTestTOML(t, t.TempDir(), minimalTOML)

	t.Setenv("DIRSYNC_CONFIG_JSON", `{"Title":"Test Override","Webserver":{"Port":9090,"URL":"http://localhost:9090"}}`)

	cfg, err := ReadConfig(configPath)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title != "Test Override" {
		t.Errorf("Title = %v, want %v", cfg.Title, "Test Override")
	}

	if cfg.Webserver.Port != 9090 {
		t.Errorf("Webserver.Port = %v, want %v", cfg.Webserver.Port, 9090)
	}
}

func TestReadConfigLoadsSyncFromEnv(t *testing.T) {
	configPath := writeTestTOML(t, t.TempDir(), minimalTOML)

	t.Setenv("OIDC_SYNC_ENABLED", "true")
	t.Setenv("OIDC_SYNC_ADMIN_URL", "https://idp.example.com")
	t.Setenv("OIDC_SYNC_REALM", "dirsync")
	t.Setenv("OIDC_SYNC_CLIENT_ID", "dirsync-sync")
	t.Setenv("OIDC_SYNC_CLIENT_SECRET", "s3cr3t")
	t.Setenv("SYNC_REPLICA_COUNT", "3")

	cfg, err := ReadConfig(configPath)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if !cfg.Sync.Enabled {
		t.Error("Sync.Enabled should be true")
	}

	if cfg.Sync.AdminURL != "https://idp.example.com" {
		t.Errorf("Sync.AdminURL = %q", cfg.Sync.AdminURL)
	}

	if cfg.Sync.ReplicaCount != 3 {
		t.Errorf("Sync.ReplicaCount = %v, want 3", cfg.Sync.ReplicaCount)
	}
}

func TestLoadSyncConfigDefaultsReplicaCountToOne(t *testing.T) {
	s := LoadSyncConfig()
	if s.ReplicaCount != 1 {
		t.Errorf("ReplicaCount = %v, want default 1", s.ReplicaCount)
	}

	if s.BatchSize != 100 {
		t.Errorf("BatchSize = %v, want default 100", s.BatchSize)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Webserver: Webserver{
					Port: 8080,
					URL:  "http://localhost:8080",
				},
			},
			wantErr: false,
		},
		{
			name: "missing port",
			config: Config{
				Webserver: Webserver{
					Port: 0,
					URL:  "http://localhost:8080",
				},
			},
			wantErr: true,
		},
		{
			name: "missing URL",
			config: Config{
				Webserver: Webserver{
					Port: 8080,
					URL:  "",
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{
		Title:   "Test",
		DevMode: true,
		Webserver: Webserver{
			Port: 8080,
			URL:  "http://localhost:8080",
		},
	}

	tomlStr, err := DumpConfig(cfg)
	if err != nil {
		t.Fatalf("DumpConfig() error = %v", err)
	}

	if tomlStr == "" {
		t.Error("DumpConfig() returned empty string")
	}

	if !strings.Contains(tomlStr, "Test") {
		t.Error("DumpConfig() output should contain Title")
	}
}

func TestDumpConfigJSON(t *testing.T) {
	cfg := Config{
		Title:   "Test",
		DevMode: true,
		Webserver: Webserver{
			Port: 8080,
			URL:  "http://localhost:8080",
		},
	}

	jsonStr, err := DumpConfigJSON(cfg)
	if err != nil {
		t.Fatalf("DumpConfigJSON() error = %v", err)
	}

	if jsonStr == "" {
		t.Error("DumpConfigJSON() returned empty string")
	}

	if !strings.Contains(jsonStr, "Test") {
		t.Error("DumpConfigJSON() output should contain Title")
	}
}
