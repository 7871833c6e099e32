package iot

import (
	"context"

	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/transport"
	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// Client is the application-facing API of a Manager. Uplink calls fail
// with ErrNotConnected unless the manager is Connected; callback
// registration fails with ErrNotUsable unless the transport point is live.
// Failures never reach the transport.
type Client struct {
	m *Manager
}

// Handler types for downlink callbacks.
type (
	RequestHandler = transport.RequestHandler
	ConfigHandler  = transport.ConfigHandler
	UpgradeHandler = transport.UpgradeHandler
	TopicHandler   = transport.TopicHandler
)

var notConnectedResponse = tsl.Response{
	Code:    tsl.CodeFailed,
	Message: "IoT platform is not connected",
	Data:    "null",
}

// session returns the active session. Caller holds the read lock.
func (c *Client) session(op string) (*transport.Session, error) {
	if c.m.state != StateConnected {
		return nil, notConnected(op)
	}
	s, err := c.m.handle.Session()
	if err != nil {
		return nil, &Error{Kind: KindNotConnected, Op: op, Err: err}
	}
	return s, nil
}

// usable reports whether callbacks may be registered. Caller holds the
// read lock.
func (c *Client) usable(op string) error {
	if c.m.state == StateDisconnecting || c.m.state == StateDisconnected || !c.m.handle.CheckPointEnable() {
		return &Error{Kind: KindNotUsable, Op: op}
	}
	return nil
}

// publish runs fn against the active session under the read lock.
func (c *Client) publish(op string, fn func(*transport.Session) error) error {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	s, err := c.session(op)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return transportErr(op, err)
	}
	return nil
}

// request runs a synchronous fn against the active session under the read
// lock. A non-nil error is returned alongside the failure response.
func (c *Client) request(op string, fn func(*transport.Session) (tsl.Response, error)) (tsl.Response, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	s, err := c.session(op)
	if err != nil {
		return notConnectedResponse, err
	}
	res, err := fn(s)
	if err != nil {
		return res, transportErr(op, err)
	}
	return res, nil
}

func (c *Client) register(op string, fn func(*transport.Callbacks)) error {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if err := c.usable(op); err != nil {
		return err
	}
	fn(c.m.callbacks)
	return nil
}

// IsConnected reports whether the manager is connected.
func (c *Client) IsConnected() bool { return c.m.IsConnected() }

// PostProperty reports property values.
func (c *Client) PostProperty(basic tsl.Basic, req tsl.Request) error {
	return c.publish("post property", func(s *transport.Session) error { return s.PostProperty(basic, req) })
}

// PostEvent reports an event.
func (c *Client) PostEvent(basic tsl.Basic, req tsl.Request) error {
	return c.publish("post event", func(s *transport.Session) error { return s.PostEvent(basic, req) })
}

// PublishCustom publishes params to a custom topic.
func (c *Client) PublishCustom(topic, traceID, params string) error {
	return c.publish("publish custom", func(s *transport.Session) error {
		return s.PublishCustom(topic, traceID, params)
	})
}

// PublishMessage publishes raw bytes.
func (c *Client) PublishMessage(topic string, payload []byte, qos byte, retained bool) error {
	return c.publish("publish message", func(s *transport.Session) error {
		return s.PublishMessage(topic, payload, qos, retained)
	})
}

// PostDeviceVersion reports the firmware version.
func (c *Client) PostDeviceVersion(version string) error {
	return c.publish("post device version", func(s *transport.Session) error { return s.PostDeviceVersion(version) })
}

// PostDeviceName reports the device display name.
func (c *Client) PostDeviceName(name string) error {
	return c.publish("post device name", func(s *transport.Session) error { return s.PostDeviceName(name) })
}

// PostConfigVersion reports the configuration versions held.
func (c *Client) PostConfigVersion(keys []tsl.ConfigKey) error {
	return c.publish("post config version", func(s *transport.Session) error { return s.PostConfigVersion(keys) })
}

// GetProperty queries property values and waits for the reply.
func (c *Client) GetProperty(ctx context.Context, basic tsl.Basic, req tsl.Request) (tsl.Response, error) {
	return c.request("get property", func(s *transport.Session) (tsl.Response, error) {
		return s.GetProperty(ctx, basic, req)
	})
}

// CallService invokes a cloud service and waits for the reply.
func (c *Client) CallService(ctx context.Context, basic tsl.Basic, req tsl.Request) (tsl.Response, error) {
	return c.request("call service", func(s *transport.Session) (tsl.Response, error) {
		return s.CallService(ctx, basic, req)
	})
}

// AddSubDevice binds a sub-device to this gateway.
func (c *Client) AddSubDevice(basic tsl.Basic, sub auth.Identity) error {
	return c.publish("add sub device", func(s *transport.Session) error { return s.AddSubDevice(basic, sub) })
}

// DelSubDevice unbinds a sub-device.
func (c *Client) DelSubDevice(basic tsl.Basic, sub auth.Identity) error {
	return c.publish("delete sub device", func(s *transport.Session) error { return s.DeleteSubDevice(basic, sub) })
}

// OnlineSubDevice reports a sub-device online.
func (c *Client) OnlineSubDevice(basic tsl.Basic, sub auth.Identity) error {
	return c.publish("online sub device", func(s *transport.Session) error { return s.SubConnect(basic, sub) })
}

// OfflineSubDevice reports a sub-device offline.
func (c *Client) OfflineSubDevice(basic tsl.Basic, sub auth.Identity) error {
	return c.publish("offline sub device", func(s *transport.Session) error { return s.SubDisconnect(basic, sub) })
}

// GetSubDevices lists the sub-devices bound to this gateway.
func (c *Client) GetSubDevices(ctx context.Context, basic tsl.Basic) ([]auth.Identity, tsl.Response, error) {
	var subs []auth.Identity
	res, err := c.request("get sub devices", func(s *transport.Session) (tsl.Response, error) {
		var (
			res tsl.Response
			err error
		)
		subs, res, err = s.GetSubDevices(ctx, basic)
		return res, err
	})
	return subs, res, err
}

// SetPropertySetCallback handles thing.property.set.
func (c *Client) SetPropertySetCallback(h RequestHandler) error {
	return c.register("set property set callback", func(cb *transport.Callbacks) { cb.SetPropertySet(h) })
}

// SetPropertyGetCallback handles thing.property.get.
func (c *Client) SetPropertyGetCallback(h RequestHandler) error {
	return c.register("set property get callback", func(cb *transport.Callbacks) { cb.SetPropertyGet(h) })
}

// SetServiceCallback handles thing.service.* other than configPush and upgrade.
func (c *Client) SetServiceCallback(h RequestHandler) error {
	return c.register("set service callback", func(cb *transport.Callbacks) { cb.SetService(h) })
}

// SetConfigCallback handles thing.service.configPush.
func (c *Client) SetConfigCallback(h ConfigHandler) error {
	return c.register("set config callback", func(cb *transport.Callbacks) { cb.SetConfig(h) })
}

// SetUpgradeCallback handles thing.service.upgrade.
func (c *Client) SetUpgradeCallback(h UpgradeHandler) error {
	return c.register("set upgrade callback", func(cb *transport.Callbacks) { cb.SetUpgrade(h) })
}

// SubscribeCustom routes messages on an exact topic to h. While offline the
// broker subscription is made on the next connect.
func (c *Client) SubscribeCustom(topic string, h TopicHandler) error {
	const op = "subscribe custom"
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if err := c.usable(op); err != nil {
		return err
	}
	s, err := c.m.handle.Session()
	if err != nil {
		c.m.callbacks.SetTopic(topic, h)
		return nil
	}
	if err := s.SubscribeCustom(topic, h); err != nil {
		return transportErr(op, err)
	}
	return nil
}
