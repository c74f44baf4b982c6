package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is the delay between status fetches.
	DefaultPollInterval = 2 * time.Second

	MsgConnectionFailed = "Failed to connect to the server."
	MsgMissingJobID     = "No job ID provided. Please go back and try again."
)

// ErrAlreadyPolling is returned when Run is called on a poller that is already running.
var ErrAlreadyPolling = errors.New("poller is already running")

// State is the poller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// StatusFetcher reads a job's status. Client implements it.
type StatusFetcher interface {
	Status(ctx context.Context, jobID string) (*JobStatus, error)
}

// Poller follows one job until it reaches a terminal state.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration

	mu      sync.Mutex
	state   State
	running bool
}

func NewPoller(fetcher StatusFetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{fetcher: fetcher, interval: interval}
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run polls jobID until it is complete or error and returns the final status.
// The first fetch happens immediately. Any failure to read the status ends polling
// with a synthesized error status instead of retrying.
// onUpdate, if set, sees every observed status and is never called after ctx is done.
// Parameters:
//   - ctx: cancelling it stops polling; Run then returns ctx.Err().
//   - jobID: job to follow.
//   - onUpdate: optional observer.
// Returns:
//   - *JobStatus: terminal status.
//   - error: ErrAlreadyPolling or the context error.
func (p *Poller) Run(ctx context.Context, jobID string, onUpdate func(*JobStatus)) (*JobStatus, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrAlreadyPolling
	}
	p.running = true
	p.state = StatePolling
	p.mu.Unlock()

	final, err := p.loop(ctx, jobID, onUpdate)

	p.mu.Lock()
	p.running = false
	if err != nil {
		p.state = StateIdle
	} else {
		p.state = StateTerminal
	}
	p.mu.Unlock()
	return final, err
}

func (p *Poller) loop(ctx context.Context, jobID string, onUpdate func(*JobStatus)) (*JobStatus, error) {
	notify := func(st *JobStatus) {
		if onUpdate != nil && ctx.Err() == nil {
			onUpdate(st)
		}
	}

	if jobID == "" {
		st := errorStatus(MsgMissingJobID)
		notify(st)
		return st, nil
	}

	for {
		st, err := p.fetcher.Status(ctx, jobID)
		if ctx.Err() != nil {
			// A late response after cancellation is dropped
			return nil, ctx.Err()
		}
		if err != nil {
			st = errorStatus(MsgConnectionFailed)
			notify(st)
			return st, nil
		}

		notify(st)
		if st.Terminal() {
			return st, nil
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func errorStatus(msg string) *JobStatus {
	return &JobStatus{Status: "error", ErrorMsg: &msg}
}
