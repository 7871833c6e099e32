package transport

import (
	"sync"

	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// RequestHandler answers a cloud request. A zero Response is sent as success.
type RequestHandler func(basic tsl.Basic, req tsl.Request) tsl.Response

// ConfigHandler applies pushed configuration. A non-nil error is reported
// back to the cloud as a failure.
type ConfigHandler func(items []tsl.ConfigItem) error

// UpgradeHandler starts an OTA upgrade to versionCode.
type UpgradeHandler func(versionCode string) error

// TopicHandler receives a message on a custom topic.
type TopicHandler func(topic string, payload []byte)

// Callbacks holds downlink handlers. It outlives individual sessions so
// handlers survive a reconnect. Safe for concurrent use.
type Callbacks struct {
	mu          sync.RWMutex
	propertySet RequestHandler
	propertyGet RequestHandler
	service     RequestHandler
	config      ConfigHandler
	upgrade     UpgradeHandler
	custom      map[string]TopicHandler
}

// NewCallbacks returns an empty registry.
func NewCallbacks() *Callbacks {
	return &Callbacks{custom: make(map[string]TopicHandler)}
}

// SetPropertySet stores the thing.property.set handler. nil clears it.
func (c *Callbacks) SetPropertySet(h RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.propertySet = h
}

// SetPropertyGet stores the thing.property.get handler. nil clears it.
func (c *Callbacks) SetPropertyGet(h RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.propertyGet = h
}

// SetService stores the handler for every other thing.service.* method.
func (c *Callbacks) SetService(h RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.service = h
}

// SetConfig stores the config push handler.
func (c *Callbacks) SetConfig(h ConfigHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = h
}

// SetUpgrade stores the OTA upgrade handler.
func (c *Callbacks) SetUpgrade(h UpgradeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upgrade = h
}

// SetTopic stores h for topic; a nil h removes it.
func (c *Callbacks) SetTopic(topic string, h TopicHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil {
		delete(c.custom, topic)
		return
	}
	c.custom[topic] = h
}

// Topic returns the handler for an exact topic.
func (c *Callbacks) Topic(topic string) TopicHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.custom[topic]
}

// Topics returns the registered custom topics.
func (c *Callbacks) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.custom))
	for t := range c.custom {
		out = append(out, t)
	}
	return out
}

type handlerSet struct {
	propertySet, propertyGet, service RequestHandler
	config                            ConfigHandler
	upgrade                           UpgradeHandler
}

func (c *Callbacks) snapshot() handlerSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return handlerSet{
		propertySet: c.propertySet,
		propertyGet: c.propertyGet,
		service:     c.service,
		config:      c.config,
		upgrade:     c.upgrade,
	}
}
