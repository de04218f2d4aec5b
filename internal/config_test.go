package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/deepdish/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDatabaseConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DatabaseConfig
		wantErr bool
	}{
		{"memory without dsn", DatabaseConfig{Driver: DatabaseMemory}, false},
		{"sqlite with path", DatabaseConfig{Driver: DatabaseSQLite, DSN: "./x.db"}, false},
		{"postgres with dsn", DatabaseConfig{Driver: DatabasePostgres, DSN: "postgres://localhost/deepdish"}, false},
		{"sqlite without path", DatabaseConfig{Driver: DatabaseSQLite}, true},
		{"unknown driver", DatabaseConfig{Driver: "mysql", DSN: "x"}, true},
		{"empty driver", DatabaseConfig{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessagingConfig(t *testing.T) {
	cfg := MessagingConfig{Driver: MessagingStub}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("stub: %v", err)
	}

	cfg = MessagingConfig{Driver: MessagingRedis}
	if err := cfg.Validate(); err == nil {
		t.Fatal("redis without addr should fail")
	}

	cfg.Redis = RedisConfig{Addr: "localhost:6379", TopicPrefix: "deepdish"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("redis: %v", err)
	}

	cfg.Driver = "kafka"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown messaging driver should fail")
	}
}

func TestFullConfig_NestedValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Database.Driver = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch database error")
	}

	cfg = NewDefaultConfig()
	cfg.App.HTTP.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch port error")
	}
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	t.Setenv("DEEPDISH_TEST_DSN", "postgres://db/deepdish")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := strings.Join([]string{
		"app:",
		"  log_level: debug",
		"database:",
		"  driver: postgres",
		"  dsn: ${DEEPDISH_TEST_DSN}",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.Database.DSN != "postgres://db/deepdish" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.App.HTTP.Port != 8080 || cfg.Messaging.Driver != MessagingStub {
		t.Errorf("defaults lost: %+v", cfg)
	}
}
