package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.JWTTTL != 168*time.Hour {
		t.Errorf("JWTTTL = %s, want 168h", cfg.JWTTTL)
	}
	if cfg.OTPTTL != 10*time.Minute {
		t.Errorf("OTPTTL = %s, want 10m", cfg.OTPTTL)
	}
	if len(cfg.CassandraHosts) != 1 || cfg.CassandraHosts[0] != "127.0.0.1" {
		t.Errorf("CassandraHosts = %v", cfg.CassandraHosts)
	}
	if cfg.GraphEnabled() {
		t.Error("graph should be disabled without NEO4J_URI")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "MONGO_URI=mongodb://mongo:27017\nJWT_SECRET=from-file\nCASS_DB=cass1, cass2\nSERVER_PORT=9000\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("writing env file: %v", err)
	}
	// godotenv never overrides variables that are already set.
	for _, key := range []string{"MONGO_URI", "JWT_SECRET", "CASS_DB", "SERVER_PORT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() {
		for _, key := range []string{"MONGO_URI", "JWT_SECRET", "CASS_DB", "SERVER_PORT"} {
			os.Unsetenv(key)
		}
	})

	if cfg.JWTSecret != "from-file" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if len(cfg.CassandraHosts) != 2 || cfg.CassandraHosts[1] != "cass2" {
		t.Errorf("CassandraHosts = %v", cfg.CassandraHosts)
	}
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored, got %v", err)
	}
}

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected an error when JWT_SECRET is empty")
	}
}
