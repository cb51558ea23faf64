package timing

import (
	"sync"
	"time"
)

// Tier names one of the fixed settle intervals inserted after OS-visible actions.
type Tier int

const (
	Short Tier = iota
	Medium
	Long
	ExtraLong
)

func (t Tier) String() string {
	switch t {
	case Short:
		return "short"
	case Medium:
		return "medium"
	case Long:
		return "long"
	case ExtraLong:
		return "extra_long"
	default:
		return "unknown"
	}
}

// Table holds the duration of every tier. Zero entries fall back to defaults.
type Table struct {
	Short     time.Duration `yaml:"short"`
	Medium    time.Duration `yaml:"medium"`
	Long      time.Duration `yaml:"long"`
	ExtraLong time.Duration `yaml:"extra_long"`
}

// DefaultTable returns the stage durations tuned against the desktop client.
func DefaultTable() Table {
	return Table{
		Short:     300 * time.Millisecond,
		Medium:    700 * time.Millisecond,
		Long:      1500 * time.Millisecond,
		ExtraLong: 3 * time.Second,
	}
}

func (t Table) Duration(tier Tier) time.Duration {
	def := DefaultTable()
	pick := func(v, fallback time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return fallback
	}
	switch tier {
	case Short:
		return pick(t.Short, def.Short)
	case Medium:
		return pick(t.Medium, def.Medium)
	case Long:
		return pick(t.Long, def.Long)
	case ExtraLong:
		return pick(t.ExtraLong, def.ExtraLong)
	default:
		return def.Short
	}
}

// Clock is the single time provider used by workflows and polling loops.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// Pacer inserts tiered pauses using its Clock.
type Pacer struct {
	Clock Clock
	Table Table
}

func NewPacer(clock Clock, table Table) *Pacer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Pacer{Clock: clock, Table: table}
}

func (p *Pacer) Pause(tier Tier) {
	p.Clock.Sleep(p.Table.Duration(tier))
}

// FakeClock never blocks. Each Sleep advances virtual time and is recorded in order.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// Sleeps returns a copy of every recorded sleep, in call order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}
