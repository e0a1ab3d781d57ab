package domain

import (
	"context"
	"time"
)

// Agent is the capability every pipeline unit implements. Run blocks until
// the context is cancelled; stopping an agent is cancelling the context the
// orchestrator gave it. Running reports liveness for health checks.
type Agent interface {
	Name() string
	Run(ctx context.Context) error
	Running() bool
}

// AgentStatus is the orchestrator-driven lifecycle state of an agent.
type AgentStatus string

const (
	AgentRegistered AgentStatus = "registered"
	AgentStarting   AgentStatus = "starting"
	AgentRunning    AgentStatus = "running"
	AgentStopping   AgentStatus = "stopping"
	AgentStopped    AgentStatus = "stopped"
	AgentFailed     AgentStatus = "failed"
)

// AgentRecord is the orchestrator's view of one registered agent. Records
// are mutated only by orchestrator-driven lifecycle transitions.
type AgentRecord struct {
	Name            string
	Status          AgentStatus
	LastHealthCheck time.Time
	LastError       string
}

// Clock supplies timestamps for staleness and ordering decisions, so tests
// can substitute a deterministic source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
