package notify

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"botherd/internal/config"
	"botherd/internal/settings"
	"botherd/internal/template"
	"botherd/pkg/logging"
)

// pingUnit is the unit of TelegramAutoPing.EveryHours.
var pingUnit = time.Hour

// ControllerConfig holds the controller dependencies.
type ControllerConfig struct {
	// Factory builds messengers. Defaults to a Telegram messenger using Notify.
	Factory Factory

	// Notify carries the transport options and message templates.
	Notify config.NotifyConfig

	// Templates renders messages. A new engine is created when nil.
	Templates *template.Engine

	// InstanceCount feeds the ping message.
	InstanceCount func() int
}

// Controller owns the notification channel lifecycle.
//
// Apply is called with the messenger block of every reconciled settings
// document and moves the channel between disabled and enabled. A single
// messenger exists at a time; disabling drops it and the next enable builds
// a new one.
type Controller struct {
	mu sync.Mutex

	cfg       ControllerConfig
	relay     *Relay
	startedAt time.Time

	messenger Messenger
	active    settings.MessengerSettings

	pingCancel   context.CancelFunc
	pingDone     chan struct{}
	pingInterval time.Duration
}

// NewController creates a disabled controller.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Templates == nil {
		cfg.Templates = template.New()
	}
	if cfg.Factory == nil {
		transport := cfg.Notify
		cfg.Factory = func(m settings.MessengerSettings) Messenger {
			return NewTelegram(TelegramOptions{
				APIURL:         transport.APIURL,
				Token:          m.API,
				ChatID:         m.ChatID,
				RequestTimeout: transport.RequestTimeout,
				RetryMax:       transport.RetryMax,
			})
		}
	}
	if cfg.InstanceCount == nil {
		cfg.InstanceCount = func() int { return 0 }
	}

	return &Controller{
		cfg:       cfg,
		relay:     &Relay{},
		startedAt: time.Now(),
	}
}

// Relay returns the notifier handed to workers.
func (c *Controller) Relay() *Relay {
	return c.relay
}

// Active reports whether a messenger is currently enabled.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messenger != nil
}

// PingInterval returns the running autoping interval, zero when stopped.
func (c *Controller) PingInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingInterval
}

// Apply reconciles the channel with the messenger block of a settings document.
func (c *Controller) Apply(ctx context.Context, m settings.MessengerSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !m.Active {
		if c.messenger != nil {
			logging.Info("Notify", "Telegram Messenger disabled")
			c.teardownLocked(ctx)
		} else {
			logging.Debug("Notify", "Telegram Messenger disabled")
		}
		return nil
	}

	if c.messenger != nil && !c.active.SameCredentials(m) {
		logging.Info("Notify", "Telegram Messenger credentials changed, reconnecting")
		c.teardownLocked(ctx)
	}

	if c.messenger == nil {
		logging.Info("Notify", "Activating Telegram Messenger")
		messenger := c.cfg.Factory(m)
		if err := messenger.Arm(ctx); err != nil {
			_ = messenger.Close()
			return fmt.Errorf("failed to activate Telegram Messenger: %w", err)
		}
		c.messenger = messenger
		c.relay.set(messenger)
		c.sendLocked(ctx, c.cfg.Notify.ActivatedMessage, nil)
	}
	c.active = m

	c.applyAutoPingLocked(m.AutoPing)
	return nil
}

// Shutdown tears the channel down.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.messenger != nil {
		c.teardownLocked(ctx)
	}
}

// NormalizePingInterval converts EveryHours into an interval; zero or less
// means one hour. Values past the time.Duration range are capped.
func NormalizePingInterval(everyHours int64) time.Duration {
	if everyHours <= 0 {
		return pingUnit
	}
	if limit := int64(math.MaxInt64 / pingUnit); everyHours > limit {
		return time.Duration(limit) * pingUnit
	}
	return time.Duration(everyHours) * pingUnit
}

func (c *Controller) applyAutoPingLocked(p settings.AutoPing) {
	if !p.Active {
		if c.pingCancel != nil {
			logging.Info("Notify", "Telegram Messenger AutoPing disabled.")
			c.stopAutoPingLocked()
		}
		return
	}

	if p.EveryHours <= 0 {
		logging.Info("Notify", "Telegram Messenger AutoPing EveryHours is %d. Setting to 1 hour.", p.EveryHours)
	}
	interval := NormalizePingInterval(p.EveryHours)
	if c.pingCancel != nil && c.pingInterval == interval {
		return
	}
	c.stopAutoPingLocked()

	logging.Info("Notify", "Telegram Messenger AutoPing is enabled every %s", interval)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.pingCancel = cancel
	c.pingDone = done
	c.pingInterval = interval

	go c.autoPing(ctx, interval, done)
}

func (c *Controller) autoPing(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ping(ctx)
		}
	}
}

func (c *Controller) ping(ctx context.Context) {
	msg, err := c.render(c.cfg.Notify.PingMessage, map[string]interface{}{
		"Instances": c.cfg.InstanceCount(),
		"Uptime":    time.Since(c.startedAt).Round(time.Second).String(),
	})
	if err != nil {
		logging.Error("Notify", err, "Failed to render autoping message")
		return
	}
	if err := c.relay.Notify(ctx, msg); err != nil {
		logging.Warn("Notify", "AutoPing failed: %v", err)
	}
}

func (c *Controller) stopAutoPingLocked() {
	if c.pingCancel == nil {
		return
	}
	c.pingCancel()
	<-c.pingDone
	c.pingCancel = nil
	c.pingDone = nil
	c.pingInterval = 0
}

func (c *Controller) teardownLocked(ctx context.Context) {
	c.stopAutoPingLocked()
	c.sendLocked(ctx, c.cfg.Notify.DeactivatedMessage, nil)
	c.relay.set(nil)
	if err := c.messenger.Close(); err != nil {
		logging.Warn("Notify", "Error closing messenger: %v", err)
	}
	c.messenger = nil
	c.active = settings.MessengerSettings{}
}

func (c *Controller) sendLocked(ctx context.Context, text string, extra map[string]interface{}) {
	if text == "" || c.messenger == nil {
		return
	}
	msg, err := c.render(text, extra)
	if err != nil {
		logging.Error("Notify", err, "Failed to render message")
		return
	}
	if err := c.messenger.Send(ctx, msg); err != nil {
		logging.Warn("Notify", "Failed to send message: %v", err)
	}
}

func (c *Controller) render(text string, extra map[string]interface{}) (string, error) {
	hostname, _ := os.Hostname()
	base := map[string]interface{}{
		"Hostname":  hostname,
		"Instances": c.cfg.InstanceCount(),
		"Uptime":    time.Since(c.startedAt).Round(time.Second).String(),
	}
	return c.cfg.Templates.Render(text, template.MergeContexts(base, extra))
}
