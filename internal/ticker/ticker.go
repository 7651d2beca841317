// Package ticker 驱动引擎节拍：按固定频率累加 tick 计数并调用注册的回调。
package ticker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/driftwood2d/resvfs/internal/logging"
)

// Callback 在到期的 tick 上被调用，elapsed 为距离上次调用经过的 tick 数。
type Callback func(now, elapsed int64)

// Option 调整单个回调的调度方式。
type Option func(*registration)

// WithDelay 设置两次调用之间至少间隔的 tick 数。
func WithDelay(ticks int64) Option {
	return func(r *registration) {
		if ticks > 0 {
			r.delay = ticks
		}
	}
}

// Once 表示回调只执行一次，执行后自动注销。
func Once() Option {
	return func(r *registration) { r.once = true }
}

// DuringPause 表示暂停期间仍调用该回调。
func DuringPause() Option {
	return func(r *registration) { r.duringPause = true }
}

type registration struct {
	name        string
	fn          Callback
	delay       int64
	once        bool
	duringPause bool
	last        int64
}

// Driver 维护 tick 计数与回调表，可由 Run 自行驱动，也可由外部循环调用 Step。
type Driver struct {
	rate   int
	logger logrus.FieldLogger

	count  atomic.Int64
	paused atomic.Bool

	mu        sync.Mutex
	callbacks []*registration
}

// New 创建指定频率（每秒 tick 数）的驱动器。
func New(rate int, logger logrus.FieldLogger) (*Driver, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", rate)
	}
	return &Driver{rate: rate, logger: logging.OrNop(logger)}, nil
}

// Rate 返回每秒 tick 数。
func (d *Driver) Rate() int {
	return d.rate
}

// Ticks 返回启动以来的 tick 数，可直接作为缓存时钟。
func (d *Driver) Ticks() int64 {
	return d.count.Load()
}

// Register 以名称注册回调，同名回调会被替换。
func (d *Driver) Register(name string, fn Callback, opts ...Option) error {
	if name == "" {
		return errors.New("callback name is required")
	}
	if fn == nil {
		return fmt.Errorf("callback %s is nil", name)
	}
	reg := &registration{name: name, fn: fn, last: d.Ticks()}
	for _, opt := range opts {
		opt(reg)
	}

	d.mu.Lock()
	d.removeLocked(name)
	d.callbacks = append(d.callbacks, reg)
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{
		"domain": logging.DomainTick,
		"action": "register",
		"name":   name,
		"delay":  reg.delay,
	}).Debug("tick_registered")
	return nil
}

// Unregister 注销回调，未注册时返回 false。
func (d *Driver) Unregister(name string) bool {
	d.mu.Lock()
	removed := d.removeLocked(name)
	d.mu.Unlock()

	if !removed {
		d.logger.WithFields(logrus.Fields{
			"domain": logging.DomainTick,
			"action": "unregister",
			"name":   name,
		}).Warn("tick_unregister_unknown")
	}
	return removed
}

// Registered 判断名称是否已注册。
func (d *Driver) Registered(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, reg := range d.callbacks {
		if reg.name == name {
			return true
		}
	}
	return false
}

// TogglePause 切换暂停状态并返回新状态。暂停期间计数照常增加，
// 只有 DuringPause 回调会被调用。
func (d *Driver) TogglePause() bool {
	for {
		old := d.paused.Load()
		if d.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Paused 返回当前是否暂停。
func (d *Driver) Paused() bool {
	return d.paused.Load()
}

// Step 推进一个 tick 并调用所有到期回调，返回新的 tick 值。
func (d *Driver) Step() int64 {
	now := d.count.Add(1)
	paused := d.paused.Load()

	type call struct {
		fn      Callback
		elapsed int64
	}

	d.mu.Lock()
	due := make([]call, 0, len(d.callbacks))
	kept := d.callbacks[:0]
	for _, reg := range d.callbacks {
		if now-reg.last >= max(reg.delay, 1) && (!paused || reg.duringPause) {
			due = append(due, call{fn: reg.fn, elapsed: now - reg.last})
			reg.last = now
			if reg.once {
				continue
			}
		}
		kept = append(kept, reg)
	}
	clear(d.callbacks[len(kept):])
	d.callbacks = kept
	d.mu.Unlock()

	// 回调在锁外执行，允许其注册或注销其他回调。
	for _, c := range due {
		c.fn(now, c.elapsed)
	}
	return now
}

// Run 按频率驱动 Step，直到 ctx 取消。
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(d.rate))
	defer ticker.Stop()

	d.logger.WithFields(logrus.Fields{
		"domain": logging.DomainTick,
		"action": "run",
		"rate":   d.rate,
	}).Info("tick_driver_started")

	for {
		select {
		case <-ctx.Done():
			d.logger.WithFields(logrus.Fields{
				"domain": logging.DomainTick,
				"action": "stop",
				"ticks":  d.Ticks(),
			}).Info("tick_driver_stopped")
			return ctx.Err()
		case <-ticker.C:
			d.Step()
		}
	}
}

func (d *Driver) removeLocked(name string) bool {
	for i, reg := range d.callbacks {
		if reg.name == name {
			d.callbacks = append(d.callbacks[:i], d.callbacks[i+1:]...)
			return true
		}
	}
	return false
}
