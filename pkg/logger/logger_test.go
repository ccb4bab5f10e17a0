package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func jsonTestLogger(t *testing.T, level Level) (Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: level, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log, &buf
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
	if err := DebugConfig().Validate(); err != nil {
		t.Errorf("debug config failed validation: %v", err)
	}

	bad := &Config{Level: Level("whisper"), Format: TextFormat}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for unknown level")
	}

	badFormat := &Config{Level: InfoLevel, Format: Format("interpretive_dance")}
	if err := badFormat.Validate(); err == nil {
		t.Error("expected validation error for unknown format")
	}
}

func TestLevelFiltering(t *testing.T) {
	log, buf := jsonTestLogger(t, WarnLevel)

	log.Debug("debug line")
	log.Info("info line")
	log.Warn("warn line")

	output := buf.String()
	if strings.Contains(output, "debug line") || strings.Contains(output, "info line") {
		t.Errorf("lines below warn leaked through: %q", output)
	}
	if !strings.Contains(output, "warn line") {
		t.Errorf("warn line missing from output: %q", output)
	}
}

func TestWithFieldCarriesFields(t *testing.T) {
	log, buf := jsonTestLogger(t, InfoLevel)

	log.WithField("tenant_id", "tenant-1").
		WithFields(Fields{"rule": "Payouts"}).
		Info("matched")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	if line["tenant_id"] != "tenant-1" {
		t.Errorf("tenant_id field = %v, want tenant-1", line["tenant_id"])
	}
	if line["rule"] != "Payouts" {
		t.Errorf("rule field = %v, want Payouts", line["rule"])
	}
	if line["msg"] != "matched" {
		t.Errorf("msg = %v, want matched", line["msg"])
	}
}

func TestWithComponent(t *testing.T) {
	log, buf := jsonTestLogger(t, InfoLevel)

	log.WithComponent("rule_engine").Info("ready")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if line["component"] != "rule_engine" {
		t.Errorf("component = %v, want rule_engine", line["component"])
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	log, _ := jsonTestLogger(t, DebugLevel)
	SetGlobalLogger(log)

	if GetGlobalLogger() != log {
		t.Error("expected the globally set logger back")
	}
}
