package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestCalendarConfig_Defaults(t *testing.T) {
	cfg := CalendarConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty calendar config should validate with defaults: %v", err)
	}
	if cfg.DefaultDuration != 30 {
		t.Errorf("default duration = %d, want 30", cfg.DefaultDuration)
	}
	if cfg.WeekStart != WeekStartMonday {
		t.Errorf("week start = %q, want monday", cfg.WeekStart)
	}
}

func TestCalendarConfig_Invalid(t *testing.T) {
	cfg := CalendarConfig{DefaultDuration: 2000, WeekStart: "monday"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("duration above a day should fail")
	}
	cfg = CalendarConfig{DefaultDuration: 30, WeekStart: "friday"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown week start should fail")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
