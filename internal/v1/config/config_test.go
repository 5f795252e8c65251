package config

import (
	"os"
	"strings"
	"testing"
)

// setupTestEnv clears relevant environment variables and returns a cleanup func
func setupTestEnv(t *testing.T) func() {
	t.Helper()

	keys := []string{
		"PORT", "REDIS_ENABLED", "REDIS_ADDR", "REDIS_PASSWORD",
		"ICE_SERVERS", "TURN_USERNAME", "TURN_CREDENTIAL",
		"OPENROUTER_API_KEY", "OPENROUTER_BASE_URL", "OPENROUTER_MODEL",
		"GO_ENV", "LOG_LEVEL", "DEVELOPMENT_MODE", "ALLOWED_ORIGINS",
		"RATE_LIMIT_API_GLOBAL", "RATE_LIMIT_WS_IP", "OTEL_COLLECTOR_ADDR",
	}

	origVars := make(map[string]string, len(keys))
	for _, key := range keys {
		origVars[key] = os.Getenv(key)
		os.Unsetenv(key)
	}

	return func() {
		for key, val := range origVars {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	}
}

func TestValidateEnv_ValidConfiguration(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("REDIS_ENABLED", "false")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected PORT to be '8080', got '%s'", cfg.Port)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("Expected GO_ENV to default to 'production', got '%s'", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LOG_LEVEL to default to 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.OpenRouterModel != "openrouter/free" {
		t.Errorf("Expected OPENROUTER_MODEL default, got '%s'", cfg.OpenRouterModel)
	}
	if len(cfg.ICEServers) != 2 {
		t.Errorf("Expected 2 default STUN servers, got %d", len(cfg.ICEServers))
	}
}

func TestValidateEnv_MissingPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for missing PORT")
	}
	if !strings.Contains(err.Error(), "PORT is required") {
		t.Errorf("Expected PORT error, got: %v", err)
	}
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	tests := []string{"0", "65536", "notaport", "-1"}
	for _, port := range tests {
		os.Setenv("PORT", port)
		_, err := ValidateEnv()
		if err == nil {
			t.Errorf("Expected error for PORT=%q", port)
		}
	}
}

func TestValidateEnv_RedisEnabled(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "redis.internal:6379")
	os.Setenv("REDIS_PASSWORD", "secret")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !cfg.RedisEnabled {
		t.Error("Expected RedisEnabled to be true")
	}
	if cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("Expected REDIS_ADDR, got '%s'", cfg.RedisAddr)
	}
	if cfg.RedisPassword != "secret" {
		t.Error("Expected REDIS_PASSWORD to be set")
	}
}

func TestValidateEnv_RedisEnabledDefaultsAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("REDIS_ENABLED", "true")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Expected default REDIS_ADDR, got '%s'", cfg.RedisAddr)
	}
}

func TestValidateEnv_InvalidRedisAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "not-a-host-port")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for invalid REDIS_ADDR")
	}
}

func TestParseICEServers(t *testing.T) {
	servers := parseICEServers("stun:stun.example.com:3478, turn:turn.example.com:3478", "alice", "wonder")

	if len(servers) != 2 {
		t.Fatalf("Expected 2 servers, got %d", len(servers))
	}
	if servers[0].Username != "" {
		t.Error("STUN entry must not carry TURN credentials")
	}
	if servers[1].Username != "alice" || servers[1].Credential != "wonder" {
		t.Error("TURN entry must carry the configured credentials")
	}
}

func TestParseICEServers_EmptySegments(t *testing.T) {
	servers := parseICEServers("stun:a,,  ,stun:b", "", "")
	if len(servers) != 2 {
		t.Fatalf("Expected 2 servers, got %d", len(servers))
	}
}

func TestIsValidHostPort(t *testing.T) {
	valid := []string{"localhost:6379", "10.0.0.1:1", "redis:65535"}
	invalid := []string{"", "localhost", ":6379", "host:0", "host:65536", "host:port", "a:b:c"}

	for _, addr := range valid {
		if !isValidHostPort(addr) {
			t.Errorf("Expected %q to be valid", addr)
		}
	}
	for _, addr := range invalid {
		if isValidHostPort(addr) {
			t.Errorf("Expected %q to be invalid", addr)
		}
	}
}

func TestRedactSecret(t *testing.T) {
	if got := redactSecret("short"); got != "***" {
		t.Errorf("Expected '***', got %q", got)
	}
	if got := redactSecret("sk-or-v1-abcdef123456"); got != "sk-or-v1***" {
		t.Errorf("Expected prefix redaction, got %q", got)
	}
}
