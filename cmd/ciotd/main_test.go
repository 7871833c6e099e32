package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/infrastructure/config"
	"github.com/nerrad567/ciot-device-core/internal/infrastructure/logging"
	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ciotd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func staticConfig() *config.Config {
	cfg := config.Default()
	cfg.Device.Name = "test-device"
	cfg.Broker.URL = "tcp://127.0.0.1"
	cfg.Register.ProductKey = "PK1"
	cfg.Register.DeviceID = "DEV1"
	cfg.Register.ProductSecret = "product-secret"
	cfg.Register.DeviceSecret = "device-secret"
	return cfg
}

// ─── Startup Tests ─────────────────────────────────────────────────

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("CIOT_CONFIG", "/nonexistent/path/ciotd.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_ValidationFailure verifies run rejects an incomplete config.
func TestRun_ValidationFailure(t *testing.T) {
	t.Setenv("CIOT_CONFIG", writeConfig(t, `
device:
  name: ""
broker:
  url: "tcp://127.0.0.1"
`))

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail without device name and product key")
	}
}

// TestRun_BrokerUnreachable verifies run registers, then fails to connect
// and returns instead of waiting for a signal.
func TestRun_BrokerUnreachable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ciotd.db")
	t.Setenv("CIOT_CONFIG", writeConfig(t, `
device:
  name: "test-device"
broker:
  url: "tcp://127.0.0.1"
  port: "1"
register:
  mode: static
  product_key: "PK1"
  device_id: "DEV1"
  device_secret: "device-secret"
  cache: true
database:
  enabled: true
  path: "`+dbPath+`"
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the broker refuses connections")
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database was not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("CIOT_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/ciotd.yaml"
	t.Setenv("CIOT_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// ─── Manager Wiring Tests ──────────────────────────────────────────

func TestBuildManager_StaticUsesDeviceSecret(t *testing.T) {
	m, err := buildManager(staticConfig(), nil, nil, nil, testLogger())
	if err != nil {
		t.Fatalf("buildManager() error = %v", err)
	}

	id, err := m.Register(context.Background())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id.DeviceID != "DEV1" || id.DeviceSecret != "device-secret" {
		t.Errorf("identity = %+v, want DEV1 with the device secret", id)
	}
}

func TestBuildManager_StaticFallsBackToProductSecret(t *testing.T) {
	cfg := staticConfig()
	cfg.Register.DeviceSecret = ""

	m, err := buildManager(cfg, nil, nil, nil, testLogger())
	if err != nil {
		t.Fatalf("buildManager() error = %v", err)
	}
	id, err := m.Register(context.Background())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id.DeviceSecret != "product-secret" {
		t.Errorf("DeviceSecret = %q, want product-secret", id.DeviceSecret)
	}
}

func TestBuildManager_UnsupportedProtocol(t *testing.T) {
	cfg := staticConfig()
	cfg.Device.Protocol = "carrier-pigeon"

	if _, err := buildManager(cfg, nil, nil, nil, testLogger()); err == nil {
		t.Error("buildManager() with unknown protocol: expected error")
	}
}

// ─── Shadow Tests ──────────────────────────────────────────────────

func TestShadow_SetGet(t *testing.T) {
	sh := newShadow()

	if res := sh.set(tsl.Basic{}, tsl.Request{Params: `{"temp":21.5,"mode":"eco"}`}); !res.OK() {
		t.Fatalf("set() = %+v", res)
	}

	tests := []struct {
		name   string
		params string
		want   map[string]any
	}{
		{"named", `["temp"]`, map[string]any{"temp": 21.5}},
		{"unknown name", `["humidity"]`, map[string]any{}},
		{"all", `[]`, map[string]any{"temp": 21.5, "mode": "eco"}},
		{"empty params", ``, map[string]any{"temp": 21.5, "mode": "eco"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := sh.get(tsl.Basic{}, tsl.Request{Params: tt.params})
			if !res.OK() {
				t.Fatalf("get() = %+v", res)
			}
			var got map[string]any
			if err := json.Unmarshal([]byte(res.Data), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("get() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("get()[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestShadow_BadParams(t *testing.T) {
	sh := newShadow()
	want := tsl.ErrorDeserializeFail.String()

	if res := sh.set(tsl.Basic{}, tsl.Request{Params: `[1,2]`}); res.Code != want {
		t.Errorf("set() code = %s, want %s", res.Code, want)
	}
	if res := sh.get(tsl.Basic{}, tsl.Request{Params: `{"a":1}`}); res.Code != want {
		t.Errorf("get() code = %s, want %s", res.Code, want)
	}
}
