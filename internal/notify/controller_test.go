package notify

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botherd/internal/config"
	"botherd/internal/settings"
)

type fakeMessenger struct {
	mu       sync.Mutex
	token    string
	armErr   error
	armed    bool
	closed   bool
	messages []string
}

func (f *fakeMessenger) Arm(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return f.armErr
	}
	f.armed = true
	return nil
}

func (f *fakeMessenger) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeMessenger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeMessenger) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}

type fakeFactory struct {
	mu      sync.Mutex
	built   []*fakeMessenger
	armErr  error
}

func (f *fakeFactory) build(m settings.MessengerSettings) Messenger {
	f.mu.Lock()
	defer f.mu.Unlock()
	fm := &fakeMessenger{token: m.API, armErr: f.armErr}
	f.built = append(f.built, fm)
	return fm
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func (f *fakeFactory) last() *fakeMessenger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[len(f.built)-1]
}

func newTestController(factory *fakeFactory) *Controller {
	notifyCfg := config.GetDefaultConfig().Notify
	notifyCfg.ActivatedMessage = "on"
	notifyCfg.DeactivatedMessage = "off"
	notifyCfg.PingMessage = "ping {{ .Instances }}"
	return NewController(ControllerConfig{
		Factory:       factory.build,
		Notify:        notifyCfg,
		InstanceCount: func() int { return 3 },
	})
}

func enabled(token string) settings.MessengerSettings {
	return settings.MessengerSettings{Active: true, API: token, ChatID: "42"}
}

func TestController_DisabledToEnabled(t *testing.T) {
	factory := &fakeFactory{}
	c := newTestController(factory)
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, settings.MessengerSettings{}))
	assert.False(t, c.Active())
	assert.Equal(t, 0, factory.count())

	require.NoError(t, c.Apply(ctx, enabled("t1")))
	assert.True(t, c.Active())
	require.Equal(t, 1, factory.count())
	assert.True(t, factory.last().armed)
	assert.Equal(t, []string{"on"}, factory.last().sent())
	assert.True(t, c.Relay().Active())
}

func TestController_EnabledStaysEnabledWithoutRebuild(t *testing.T) {
	factory := &fakeFactory{}
	c := newTestController(factory)
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, enabled("t1")))
	require.NoError(t, c.Apply(ctx, enabled("t1")))

	assert.Equal(t, 1, factory.count())
}

func TestController_EnabledToDisabledDropsHandle(t *testing.T) {
	factory := &fakeFactory{}
	c := newTestController(factory)
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, enabled("t1")))
	first := factory.last()

	require.NoError(t, c.Apply(ctx, settings.MessengerSettings{}))
	assert.False(t, c.Active())
	assert.False(t, c.Relay().Active())
	assert.True(t, first.closed)
	assert.Equal(t, []string{"on", "off"}, first.sent())

	// Re-enabling builds a fresh messenger
	require.NoError(t, c.Apply(ctx, enabled("t1")))
	assert.Equal(t, 2, factory.count())
	assert.NotSame(t, first, factory.last())
}

func TestController_CredentialChangeReconnects(t *testing.T) {
	factory := &fakeFactory{}
	c := newTestController(factory)
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, enabled("t1")))
	first := factory.last()

	require.NoError(t, c.Apply(ctx, enabled("t2")))
	require.Equal(t, 2, factory.count())
	assert.True(t, first.closed)
	assert.Equal(t, "t2", factory.last().token)
	assert.True(t, c.Active())
}

func TestController_ArmFailureLeavesDisabled(t *testing.T) {
	factory := &fakeFactory{armErr: errors.New("unauthorized")}
	c := newTestController(factory)

	err := c.Apply(context.Background(), enabled("bad"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.False(t, c.Active())
	assert.False(t, c.Relay().Active())
	assert.True(t, factory.last().closed)
}

func TestNormalizePingInterval(t *testing.T) {
	assert.Equal(t, time.Hour, NormalizePingInterval(0))
	assert.Equal(t, time.Hour, NormalizePingInterval(-3))
	assert.Equal(t, time.Hour, NormalizePingInterval(1))
	assert.Equal(t, 6*time.Hour, NormalizePingInterval(6))

	// Past the time.Duration range the interval is capped, never wrapped.
	capped := time.Duration(settings.MaxPingHours) * time.Hour
	assert.Equal(t, capped, NormalizePingInterval(settings.MaxPingHours))
	assert.Equal(t, capped, NormalizePingInterval(3000000))
	assert.Equal(t, capped, NormalizePingInterval(5124096))
	assert.Equal(t, capped, NormalizePingInterval(math.MaxInt64))
}

func TestController_AutoPingHugeIntervalDoesNotPanic(t *testing.T) {
	factory := &fakeFactory{}
	c := newTestController(factory)
	ctx := context.Background()

	m := enabled("t1")
	m.AutoPing = settings.AutoPing{Active: true, EveryHours: math.MaxInt64}
	require.NoError(t, c.Apply(ctx, m))
	assert.Greater(t, c.PingInterval(), time.Duration(0))

	c.Shutdown(ctx)
	assert.Equal(t, time.Duration(0), c.PingInterval())
}

func TestController_AutoPing(t *testing.T) {
	original := pingUnit
	pingUnit = 20 * time.Millisecond
	defer func() { pingUnit = original }()

	factory := &fakeFactory{}
	c := newTestController(factory)
	ctx := context.Background()

	m := enabled("t1")
	m.AutoPing = settings.AutoPing{Active: true, EveryHours: 0}
	require.NoError(t, c.Apply(ctx, m))
	assert.Equal(t, pingUnit, c.PingInterval())

	messenger := factory.last()
	assert.Eventually(t, func() bool {
		for _, msg := range messenger.sent() {
			if msg == "ping 3" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// Interval change restarts the loop
	m.AutoPing.EveryHours = 3
	require.NoError(t, c.Apply(ctx, m))
	assert.Equal(t, 3*pingUnit, c.PingInterval())

	// Disabling autoping keeps the messenger
	m.AutoPing.Active = false
	require.NoError(t, c.Apply(ctx, m))
	assert.Equal(t, time.Duration(0), c.PingInterval())
	assert.True(t, c.Active())

	c.Shutdown(ctx)
	assert.False(t, c.Active())
	assert.True(t, messenger.closed)
}

func TestRelay_DropsWhileDisabled(t *testing.T) {
	relay := &Relay{}
	assert.NoError(t, relay.Notify(context.Background(), "nobody listens"))

	fm := &fakeMessenger{}
	relay.set(fm)
	require.NoError(t, relay.Notify(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, fm.sent())

	relay.set(nil)
	assert.False(t, relay.Active())
}
