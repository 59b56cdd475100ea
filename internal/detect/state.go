package detect

import (
	"sync"
	"time"
)

// RunState is the lifecycle state of the detection loop.
type RunState int

const (
	// Stopped is the initial state. No goroutine is running.
	Stopped RunState = iota

	// Running means the goroutine captures and evaluates frames.
	Running

	// Paused means the goroutine is alive but does no capture work.
	Paused
)

// String returns the lower-case name of the state.
func (s RunState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Status is a point-in-time copy of the shared state for the control
// surface.
type Status struct {
	State RunState

	// Triggers counts celebrations handed to the audio output this session.
	Triggers int64

	// Unplayed counts accepted triggers that could not be played this
	// session.
	Unplayed int64

	// Cycles counts completed detection cycles this session.
	Cycles int64

	// LastError is the most recent error text, or "" when none occurred.
	LastError   string
	LastErrorAt time.Time

	// CycleLatency and TriggerLatency summarise recent samples.
	CycleLatency   Percentiles
	TriggerLatency Percentiles

	// Config is the active configuration.
	Config Config
}

// State is the only data shared between the detection goroutine and the
// control surface. One mutex guards every field; critical sections copy or
// assign fields and never call out.
type State struct {
	mu sync.Mutex

	run       RunState
	triggers  int64
	unplayed  int64
	cycles    int64
	lastErr   error
	lastErrAt time.Time
	snap      *snapshot
	stats     latencyStats
}

func newState(snap *snapshot, window int) *State {
	return &State{snap: snap, stats: newLatencyStats(window)}
}

// runState returns the current lifecycle state.
func (s *State) runState() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// transition moves from one state to another and reports whether the current
// state was from.
func (s *State) transition(from, to RunState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != from {
		return false
	}
	s.run = to
	return true
}

// begin resets the session counters and enters Running.
func (s *State) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = Running
	s.triggers = 0
	s.unplayed = 0
	s.cycles = 0
	s.lastErr = nil
	s.lastErrAt = time.Time{}
	s.stats.reset()
}

// end enters Stopped and reports whether the loop was active.
func (s *State) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == Stopped {
		return false
	}
	s.run = Stopped
	return true
}

// load returns the lifecycle state and the active snapshot together.
func (s *State) load() (RunState, *snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run, s.snap
}

func (s *State) snapshot() *snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *State) setSnapshot(snap *snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

func (s *State) recordError(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = at
}

func (s *State) recordCycle(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.stats.cycle.add(d)
}

func (s *State) recordTrigger(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
	s.stats.trigger.add(latency)
}

func (s *State) recordUnplayed(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unplayed++
	s.lastErr = err
	s.lastErrAt = at
}

// status copies the shared fields under the lock and computes the latency
// summaries after releasing it.
func (s *State) status() Status {
	s.mu.Lock()
	st := Status{
		State:       s.run,
		Triggers:    s.triggers,
		Unplayed:    s.unplayed,
		Cycles:      s.cycles,
		LastErrorAt: s.lastErrAt,
	}
	lastErr := s.lastErr
	snap := s.snap
	cycle := s.stats.cycle.samples()
	trig := s.stats.trigger.samples()
	s.mu.Unlock()

	st.CycleLatency = summarize(cycle)
	st.TriggerLatency = summarize(trig)
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	if snap != nil {
		st.Config = snap.cfg
	}
	return st
}
