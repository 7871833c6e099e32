package iot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

func TestClient_NotConnected(t *testing.T) {
	broker := &fakeBroker{}
	m := newTestManager(t, broker)
	if _, err := m.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	desc, err := m.InitTransport("")
	if err != nil {
		t.Fatalf("InitTransport() error = %v", err)
	}
	c := desc.Client
	sub := auth.Identity{ProductKey: "S", DeviceID: "S1", DeviceSecret: "x"}

	calls := map[string]func() error{
		"PostProperty":      func() error { return c.PostProperty(tsl.Basic{}, tsl.Request{}) },
		"PostEvent":         func() error { return c.PostEvent(tsl.Basic{}, tsl.Request{Method: "alarm"}) },
		"PublishCustom":     func() error { return c.PublishCustom("/t", "T", "{}") },
		"PublishMessage":    func() error { return c.PublishMessage("/t", nil, 1, false) },
		"PostDeviceVersion": func() error { return c.PostDeviceVersion("1.0") },
		"PostDeviceName":    func() error { return c.PostDeviceName("n") },
		"PostConfigVersion": func() error { return c.PostConfigVersion(nil) },
		"AddSubDevice":      func() error { return c.AddSubDevice(tsl.Basic{}, sub) },
		"DelSubDevice":      func() error { return c.DelSubDevice(tsl.Basic{}, sub) },
		"OnlineSubDevice":   func() error { return c.OnlineSubDevice(tsl.Basic{}, sub) },
		"OfflineSubDevice":  func() error { return c.OfflineSubDevice(tsl.Basic{}, sub) },
		"GetProperty": func() error {
			res, err := c.GetProperty(context.Background(), tsl.Basic{}, tsl.Request{})
			if res.Code != tsl.CodeFailed {
				t.Errorf("GetProperty() code = %q, want %q", res.Code, tsl.CodeFailed)
			}
			return err
		},
		"CallService": func() error {
			_, err := c.CallService(context.Background(), tsl.Basic{}, tsl.Request{Method: "x"})
			return err
		},
		"GetSubDevices": func() error {
			subs, _, err := c.GetSubDevices(context.Background(), tsl.Basic{})
			if subs != nil {
				t.Errorf("GetSubDevices() subs = %v, want nil", subs)
			}
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ErrNotConnected) {
				t.Errorf("%s() error = %v, want ErrNotConnected", name, err)
			}
		})
	}
	if n := len(broker.messages()); n != 0 {
		t.Errorf("messages = %d, want 0", n)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true before ConnectAsync")
	}
}

func TestClient_CallbackRegistration(t *testing.T) {
	broker := &fakeBroker{}
	m := newTestManager(t, broker)
	ctx := context.Background()
	if _, err := m.Register(ctx); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	desc, err := m.InitTransport("")
	if err != nil {
		t.Fatalf("InitTransport() error = %v", err)
	}
	c := desc.Client

	noop := func(tsl.Basic, tsl.Request) tsl.Response { return tsl.Response{} }
	regs := map[string]func() error{
		"SetPropertySetCallback": func() error { return c.SetPropertySetCallback(noop) },
		"SetPropertyGetCallback": func() error { return c.SetPropertyGetCallback(noop) },
		"SetServiceCallback":     func() error { return c.SetServiceCallback(noop) },
		"SetConfigCallback":      func() error { return c.SetConfigCallback(func([]tsl.ConfigItem) error { return nil }) },
		"SetUpgradeCallback":     func() error { return c.SetUpgradeCallback(func(string) error { return nil }) },
		"SubscribeCustom":        func() error { return c.SubscribeCustom("/app/x", func(string, []byte) {}) },
	}
	for name, reg := range regs {
		if err := reg(); err != nil {
			t.Errorf("%s() with live point error = %v", name, err)
		}
	}

	if err := m.ConnectAsync(ctx); err != nil {
		t.Fatalf("ConnectAsync() error = %v", err)
	}
	if _, ok := broker.last().subs["/app/x"]; !ok {
		t.Error("custom topic not subscribed on connect")
	}
	if err := m.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	for name, reg := range regs {
		if err := reg(); !errors.Is(err, ErrNotUsable) {
			t.Errorf("%s() after disconnect error = %v, want ErrNotUsable", name, err)
		}
	}
}

func TestClient_Uplink(t *testing.T) {
	broker := &fakeBroker{}
	_, c := connectedManager(t, broker)

	if err := c.PostDeviceVersion("3.2.1"); err != nil {
		t.Fatalf("PostDeviceVersion() error = %v", err)
	}
	if err := c.OnlineSubDevice(tsl.Basic{}, auth.Identity{ProductKey: "S", DeviceID: "S1"}); err != nil {
		t.Fatalf("OnlineSubDevice() error = %v", err)
	}

	msgs := broker.messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	for _, msg := range msgs {
		if msg.topic != "/sys/PK1/DEV1/up/request" {
			t.Errorf("topic = %q", msg.topic)
		}
	}
	_, req, err := tsl.DecodeRequest(msgs[0].payload)
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	var params map[string]string
	if err := json.Unmarshal([]byte(req.Params), &params); err != nil || params["version"] != "3.2.1" {
		t.Errorf("params = %s", req.Params)
	}
	_, req, _ = tsl.DecodeRequest(msgs[1].payload)
	if req.Method != tsl.UpMethodSubConnect {
		t.Errorf("method = %q, want %q", req.Method, tsl.UpMethodSubConnect)
	}
}

func TestClient_GetPropertyRoundTrip(t *testing.T) {
	broker := &fakeBroker{}
	_, c := connectedManager(t, broker)
	conn := broker.last()

	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(2 * time.Second)
		for len(broker.messages()) == 0 {
			if time.Now().After(deadline) {
				t.Error("no up request published")
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
		basic, _, err := tsl.DecodeRequest(broker.messages()[0].payload)
		if err != nil {
			t.Errorf("DecodeRequest() error = %v", err)
			return
		}
		body, _ := tsl.EncodeResponse(basic, tsl.Success(`{"temp":20}`))
		if err := conn.deliver("/sys/PK1/DEV1/up/response/"+basic.TraceID, body); err != nil {
			t.Errorf("deliver() error = %v", err)
		}
	}()

	res, err := c.GetProperty(context.Background(), tsl.Basic{}, tsl.Request{Params: `["temp"]`})
	<-done
	if err != nil {
		t.Fatalf("GetProperty() error = %v", err)
	}
	if !res.OK() || res.Data != `{"temp":20}` {
		t.Errorf("res = %+v", res)
	}
}
