package config

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GETENV_KEY", "value")
	defer os.Unsetenv("TEST_GETENV_KEY")

	if got := GetEnv("TEST_GETENV_KEY", "default"); got != "value" {
		t.Errorf("GetEnv() = %v, want value", got)
	}
	if got := GetEnv("TEST_GETENV_MISSING", "default"); got != "default" {
		t.Errorf("GetEnv() = %v, want default", got)
	}
}

func TestRequireEnv(t *testing.T) {
	os.Setenv("TEST_REQUIRE_KEY", "value")
	defer os.Unsetenv("TEST_REQUIRE_KEY")

	if got := RequireEnv("TEST_REQUIRE_KEY"); got != "value" {
		t.Errorf("RequireEnv() = %v, want value", got)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("RequireEnv() should panic for missing variable")
		}
	}()
	RequireEnv("TEST_REQUIRE_MISSING")
}

func TestGetEnvironment(t *testing.T) {
	original := os.Getenv("PHARMACY_SERVER_ENVIRONMENT")
	defer func() {
		if original != "" {
			os.Setenv("PHARMACY_SERVER_ENVIRONMENT", original)
		} else {
			os.Unsetenv("PHARMACY_SERVER_ENVIRONMENT")
		}
	}()

	os.Unsetenv("PHARMACY_SERVER_ENVIRONMENT")
	if got := GetEnvironment(); got != EnvDevelopment {
		t.Errorf("GetEnvironment() = %v, want development", got)
	}

	os.Setenv("PHARMACY_SERVER_ENVIRONMENT", "PRODUCTION")
	if got := GetEnvironment(); got != EnvProduction {
		t.Errorf("GetEnvironment() = %v, want production (case-insensitive)", got)
	}
	if !IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if !IsProductionLike() {
		t.Error("IsProductionLike() = false, want true")
	}

	os.Setenv("PHARMACY_SERVER_ENVIRONMENT", "staging")
	if IsProduction() {
		t.Error("IsProduction() = true in staging, want false")
	}
	if !IsProductionLike() {
		t.Error("IsProductionLike() = false in staging, want true")
	}

	os.Setenv("PHARMACY_SERVER_ENVIRONMENT", "development")
	if !IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}
}
