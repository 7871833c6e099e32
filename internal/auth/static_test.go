package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStaticRegister(t *testing.T) {
	cfg := RegisterConfig{ProductKey: "PK1", DeviceID: "DEV1", ProductSecret: "s3cret"}

	id, err := Static{}.Register(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	want := Identity{ProductKey: "PK1", DeviceID: "DEV1", DeviceSecret: "s3cret"}
	if id != want {
		t.Errorf("Register() = %+v, want %+v", id, want)
	}
}

func TestStaticRegister_DeviceSecret(t *testing.T) {
	cfg := RegisterConfig{ProductKey: "PK1", DeviceID: "DEV1", ProductSecret: "product"}

	id, err := Static{DeviceSecret: "device"}.Register(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id.DeviceSecret != "device" {
		t.Errorf("DeviceSecret = %q, want device", id.DeviceSecret)
	}

	cfg.ProductSecret = ""
	if _, err := (Static{DeviceSecret: "device"}).Register(context.Background(), cfg); err != nil {
		t.Errorf("Register() without product secret error = %v", err)
	}
}

func TestStaticRegister_MissingFields(t *testing.T) {
	_, err := Static{}.Register(context.Background(), RegisterConfig{ProductKey: "PK1"})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Register() error = %v, want ErrInvalidConfig", err)
	}

	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("error is not *FieldError: %T", err)
	}
	if len(fe.Fields) != 2 || fe.Fields[0] != "device_id" || fe.Fields[1] != "product_secret" {
		t.Errorf("Fields = %v, want [device_id product_secret]", fe.Fields)
	}
}

func TestStaticRegister_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RegisterConfig{ProductKey: "PK1", DeviceID: "DEV1", ProductSecret: "s"}
	if _, err := (Static{}).Register(ctx, cfg); !errors.Is(err, context.Canceled) {
		t.Errorf("Register() error = %v, want context.Canceled", err)
	}
}

func TestIdentityValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		wantErr bool
	}{
		{"complete", Identity{ProductKey: "p", DeviceID: "d", DeviceSecret: "s"}, false},
		{"zero", Identity{}, true},
		{"no secret", Identity{ProductKey: "p", DeviceID: "d"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error should match ErrInvalidConfig")
			}
		})
	}

	if !(Identity{}).IsZero() {
		t.Error("zero Identity should report IsZero")
	}
}
