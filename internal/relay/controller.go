package relay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/btrelay/internal/hid"
	"github.com/bnema/btrelay/internal/input"
	"github.com/bnema/btrelay/internal/logger"
)

// ControllerOptions selects which devices get relayed.
type ControllerOptions struct {
	// Identifiers is the allow-list; ignored when AutoDiscover is set.
	Identifiers      []input.Identifier
	AutoDiscover     bool
	SkipNamePrefixes []string

	// Relay is applied to every spawned relay.
	Relay Options
}

// Controller owns one relay task per connected, matching device. Tasks
// are spawned on discovery adds (idempotently), cancelled and awaited on
// removes, and fail independently: one relay going down never cancels a
// sibling.
type Controller struct {
	sink  hid.Sink
	pause *PauseSignal
	opts  ControllerOptions

	// Swappable for tests.
	openDevice func(path string) (input.Device, error)
	describe   func(path string) (input.DeviceInfo, error)
	list       func(skipNamePrefixes []string) ([]input.DeviceInfo, error)

	mu    sync.Mutex
	tasks map[string]*task
	group errgroup.Group
}

type task struct {
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewController builds a controller over a shared sink and pause signal.
func NewController(sink hid.Sink, pause *PauseSignal, opts ControllerOptions) *Controller {
	return &Controller{
		sink:       sink,
		pause:      pause,
		opts:       opts,
		openDevice: input.Open,
		describe:   input.Describe,
		list:       input.ListDevices,
		tasks:      make(map[string]*task),
	}
}

// Start relays every matching device that is already connected.
func (c *Controller) Start(ctx context.Context) error {
	infos, err := c.list(c.opts.SkipNamePrefixes)
	if err != nil {
		return fmt.Errorf("initial device scan: %w", err)
	}
	matched := 0
	for _, info := range infos {
		if !c.matches(info) {
			continue
		}
		matched++
		c.add(ctx, info)
	}
	logger.Infof("Initial scan: %d of %d devices selected for relaying", matched, len(infos))
	return nil
}

// ChangeHandler returns the callback wired into the discovery monitor.
func (c *Controller) ChangeHandler(ctx context.Context) func(input.DeviceChange) {
	return func(change input.DeviceChange) {
		switch change.Type {
		case input.DeviceAdded:
			c.AddPath(ctx, change.Path)
		case input.DeviceRemoved:
			c.Remove(change.Path)
		}
	}
}

// AddPath inspects a freshly appeared node and relays it if it matches
// the configured selection. Duplicate adds for a running device are
// ignored.
func (c *Controller) AddPath(ctx context.Context, path string) {
	if c.running(path) {
		logger.Debugf("Already relaying %s, ignoring duplicate add", path)
		return
	}
	info, err := c.describe(path)
	if err != nil {
		logger.Debugf("Cannot inspect %s: %v", path, err)
		return
	}
	if input.SkippedByName(info.Name, c.opts.SkipNamePrefixes) {
		logger.Debugf("Skipping %s (%s): name prefix excluded", info.Name, path)
		return
	}
	if !c.matches(info) {
		logger.Debugf("Device %s (%s) does not match any identifier", info.Name, path)
		return
	}
	c.add(ctx, info)
}

// Remove cancels the relay for a departed device and waits for its
// release path to finish.
func (c *Controller) Remove(path string) {
	c.mu.Lock()
	t := c.tasks[path]
	c.mu.Unlock()
	if t == nil {
		return
	}
	t.cancel()
	<-t.stopped
	logger.Infof("Stopped relaying %s", path)
}

// Active returns the device paths currently being relayed.
func (c *Controller) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.tasks))
	for path := range c.tasks {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Shutdown cancels every relay and waits up to timeout for their release
// paths. A relay failing during shutdown does not abort the others.
func (c *Controller) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	for _, t := range c.tasks {
		t.cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("relay shutdown timed out after %s", timeout)
	}
}

func (c *Controller) matches(info input.DeviceInfo) bool {
	if c.opts.AutoDiscover {
		return true
	}
	return input.MatchesAny(c.opts.Identifiers, info)
}

func (c *Controller) running(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tasks[path]
	return ok
}

func (c *Controller) add(ctx context.Context, info input.DeviceInfo) {
	c.mu.Lock()
	if _, ok := c.tasks[info.Path]; ok {
		c.mu.Unlock()
		logger.Debugf("Already relaying %s, ignoring duplicate add", info.Path)
		return
	}
	dev, err := c.openDevice(info.Path)
	if err != nil {
		c.mu.Unlock()
		logger.Warnf("Cannot open %s: %v", info.Path, err)
		return
	}
	tctx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, stopped: make(chan struct{})}
	c.tasks[info.Path] = t
	c.mu.Unlock()

	ro := c.opts.Relay
	if !info.Keys {
		// Pointer-only devices cannot produce the movement gesture.
		ro.Movement = nil
	}
	rel := NewRelay(dev, c.sink, c.pause, ro)
	path := info.Path
	c.group.Go(func() error {
		defer close(t.stopped)
		defer c.forget(path, t)
		// Run can return on its own (device loss, persistent write
		// failures); release the task context either way.
		defer t.cancel()
		if err := rel.Run(tctx); err != nil {
			logger.Errorf("Relay for %s failed: %v", path, err)
		}
		// Failures stay local to this relay.
		return nil
	})
}

// forget drops a finished task, unless the slot was already reused by a
// re-add of the same path.
func (c *Controller) forget(path string, t *task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tasks[path] == t {
		delete(c.tasks, path)
	}
}
