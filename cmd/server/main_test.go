package main

import (
	"testing"

	"hotline/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "123456"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	weak := []string{"123456", "987654", "444444", "121212", "234567"}
	for _, pin := range weak {
		if err := validatePINStrength(pin); err == nil {
			t.Fatalf("expected %s to be rejected", pin)
		}
	}
	if err := validatePINStrength("730291"); err != nil {
		t.Fatalf("expected 730291 to pass, got %v", err)
	}
}

func TestNewLoggerHonoursAppEnv(t *testing.T) {
	logger, err := newLogger(config.Config{AppEnv: "development"})
	if err != nil {
		t.Fatalf("development logger: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level enabled in development")
	}

	logger, err = newLogger(config.Config{AppEnv: "production"})
	if err != nil {
		t.Fatalf("production logger: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level disabled in production")
	}
}
