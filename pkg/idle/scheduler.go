package idle

import (
	"math/rand"
	"time"
)

const (
	DefaultMinDelay    = 15 * time.Second
	DefaultMaxDelay    = 20 * time.Second
	DefaultWiden       = 5 * time.Second
	DefaultMaxMessages = 3
)

// State of the auto-message timer.
type State int

const (
	Armed State = iota
	Waiting
	Firing
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Firing:
		return "firing"
	default:
		return "armed"
	}
}

// Conditions is everything the timer depends on. Any change to it must be
// followed by Rearm.
type Conditions struct {
	Thinking     bool
	Loading      bool
	ModalOpen    bool
	HasDraft     bool
	AutoMessages int
}

// Config bounds the randomized idle delay.
type Config struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Widen       time.Duration
	MaxMessages int
}

func DefaultConfig() Config {
	return Config{
		MinDelay:    DefaultMinDelay,
		MaxDelay:    DefaultMaxDelay,
		Widen:       DefaultWiden,
		MaxMessages: DefaultMaxMessages,
	}
}

// Scheduler debounces user inactivity into auto-message turns. It is driven
// from a single event loop: Rearm and Fire must be called from that loop.
// The fire callback runs on the clock's goroutine and should only hand the
// generation back to the loop.
type Scheduler struct {
	clock Clock
	cfg   Config
	rng   *rand.Rand
	fire  func(generation uint64)

	generation uint64
	timer      Timer
	state      State
}

func NewScheduler(clock Clock, cfg Config, src rand.Source, fire func(generation uint64)) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Scheduler{
		clock: clock,
		cfg:   cfg,
		rng:   rand.New(src),
		fire:  fire,
	}
}

// Suppressed reports whether the timer must stay disarmed.
func (s *Scheduler) Suppressed(c Conditions) bool {
	return c.Thinking ||
		c.Loading ||
		c.ModalOpen ||
		c.HasDraft ||
		c.AutoMessages >= s.cfg.MaxMessages
}

// Window returns the delay bounds after n consecutive auto-messages.
func (s *Scheduler) Window(n int) (time.Duration, time.Duration) {
	extra := time.Duration(n) * s.cfg.Widen
	return s.cfg.MinDelay + extra, s.cfg.MaxDelay + extra
}

func (s *Scheduler) delay(n int) time.Duration {
	lo, hi := s.Window(n)
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int63n(int64(hi-lo)+1))
}

// Rearm invalidates any pending timer and, unless suppressed, schedules a new
// one. It returns the delay chosen, or 0 when nothing was scheduled.
func (s *Scheduler) Rearm(c Conditions) time.Duration {
	s.cancel()
	s.generation++
	s.state = Armed

	if s.Suppressed(c) {
		return 0
	}

	gen := s.generation
	d := s.delay(c.AutoMessages)
	s.timer = s.clock.AfterFunc(d, func() {
		s.fire(gen)
	})
	s.state = Waiting
	return d
}

// Fire claims a timer expiry. Stale generations return false and must be
// ignored by the caller.
func (s *Scheduler) Fire(generation uint64) bool {
	if generation != s.generation || s.state != Waiting {
		return false
	}
	s.timer = nil
	s.state = Firing
	return true
}

// Valid reports whether generation is still current.
func (s *Scheduler) Valid(generation uint64) bool {
	return generation == s.generation
}

// Generation is the current timer generation.
func (s *Scheduler) Generation() uint64 {
	return s.generation
}

func (s *Scheduler) State() State {
	return s.state
}

// Stop cancels the pending timer and invalidates every outstanding fire.
func (s *Scheduler) Stop() {
	s.cancel()
	s.generation++
	s.state = Armed
}

func (s *Scheduler) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
