package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ciot-device-core/internal/transport"
)

// Client wraps paho.mqtt.golang as a transport.Conn.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are restored on every reconnect.
type Client struct {
	client pahomqtt.Client
	opts   transport.ConnOptions

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	logger transport.Logger
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler transport.MessageHandler
}

var _ transport.Conn = (*Client)(nil)

// Dial builds a Client without connecting. It satisfies transport.Dialer.
func Dial(opts transport.ConnOptions) (transport.Conn, error) {
	return New(opts)
}

// New builds a Client without connecting.
func New(opts transport.ConnOptions) (*Client, error) {
	po, err := buildClientOptions(opts)
	if err != nil {
		return nil, err
	}

	c := &Client{
		opts:          opts,
		subscriptions: make(map[string]subscription),
		logger:        opts.Logger,
	}
	po.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleConnectionLost(err) })
	po.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if c.logger != nil {
			c.logger.Info("mqtt reconnecting", "client_id", opts.ClientID)
		}
	})

	c.client = pahomqtt.NewClient(po)
	return c, nil
}

// ConnectAsync starts the connection and waits for the first attempt,
// bounded by ctx and the connect timeout.
func (c *Client) ConnectAsync(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs on its own goroutine and may not have
	// executed yet.
	c.setConnected(true)
	return nil
}

// handleConnect runs after every successful (re)connect.
func (c *Client) handleConnect() {
	c.setConnected(true)
	c.restoreSubscriptions()

	if c.opts.OnConnect != nil {
		c.opts.OnConnect()
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.setConnected(false)
	if c.logger != nil {
		c.logger.Warn("mqtt connection lost", "client_id", c.opts.ClientID, "error", err)
	}
	if c.opts.OnConnectionLost != nil {
		c.opts.OnConnectionLost(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		if !token.WaitTimeout(defaultOperationTimeout) || token.Error() != nil {
			if c.logger != nil {
				c.logger.Warn("mqtt subscription restore failed", "topic", sub.topic, "error", token.Error())
			}
		}
	}
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// Close disconnects from the broker and stops any reconnect in progress.
// Safe to call when never connected.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.setConnected(false)
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// IsConnected reports the last known state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// wrapHandler wraps a MessageHandler with panic recovery and logging.
func (c *Client) wrapHandler(handler transport.MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil && c.logger != nil {
				c.logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && c.logger != nil {
			c.logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
