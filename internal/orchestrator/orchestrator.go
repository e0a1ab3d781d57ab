// Package orchestrator manages the agent fleet: registration, startup,
// health tracking, and ordered shutdown.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

const defaultHealthInterval = 30 * time.Second

type managed struct {
	agent  domain.Agent
	record domain.AgentRecord
	cancel context.CancelFunc
}

// Orchestrator owns every agent's lifecycle. Agents are registered before
// StartAll; a failed agent is recorded and reported but never restarted, the
// operator restarts the process.
type Orchestrator struct {
	bus            *bus.EventBus
	clock          domain.Clock
	logger         *slog.Logger
	healthInterval time.Duration

	mu     sync.Mutex
	agents []*managed
	byName map[string]*managed

	group *errgroup.Group
}

// New creates an Orchestrator. clock may be nil for the system clock.
func New(b *bus.EventBus, clock domain.Clock, logger *slog.Logger) *Orchestrator {
	if clock == nil {
		clock = domain.SystemClock
	}
	return &Orchestrator{
		bus:            b,
		clock:          clock,
		logger:         logger.With(slog.String("component", "orchestrator")),
		healthInterval: defaultHealthInterval,
		byName:         make(map[string]*managed),
	}
}

// Register adds an agent to the fleet. Registering the same name twice is an
// error. Must be called before StartAll.
func (o *Orchestrator) Register(agent domain.Agent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	name := agent.Name()
	if _, dup := o.byName[name]; dup {
		return fmt.Errorf("orchestrator: agent %q already registered", name)
	}
	m := &managed{
		agent:  agent,
		record: domain.AgentRecord{Name: name, Status: domain.AgentRegistered},
	}
	o.agents = append(o.agents, m)
	o.byName[name] = m
	o.logger.Info("agent registered", slog.String("agent", name))
	return nil
}

// StartAll launches every registered agent in registration order, each under
// its own child context, plus the health and error-watch loops. It returns
// immediately; Wait blocks for completion.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.group != nil {
		return fmt.Errorf("orchestrator: already started")
	}
	if len(o.agents) == 0 {
		return fmt.Errorf("orchestrator: no agents registered")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	o.group = g

	for _, m := range o.agents {
		m := m
		agentCtx, cancel := context.WithCancel(groupCtx)
		m.cancel = cancel
		m.record.Status = domain.AgentStarting

		g.Go(func() error {
			o.setStatus(m, domain.AgentRunning, "")
			o.logger.Info("agent starting", slog.String("agent", m.agent.Name()))

			err := m.agent.Run(agentCtx)
			if err != nil && !isContextErr(err) {
				o.setStatus(m, domain.AgentFailed, err.Error())
				o.logger.Error("agent failed",
					slog.String("agent", m.agent.Name()),
					slog.String("error", err.Error()),
				)
				o.bus.Publish(domain.AgentError{
					Agent:    m.agent.Name(),
					Err:      err.Error(),
					Context:  "run",
					Critical: true,
					At:       o.clock.Now(),
				})
				return nil
			}
			o.setStatus(m, domain.AgentStopped, "")
			o.logger.Info("agent stopped", slog.String("agent", m.agent.Name()))
			return nil
		})
	}

	g.Go(func() error {
		o.healthLoop(groupCtx)
		return nil
	})
	g.Go(func() error {
		o.watchErrors(groupCtx)
		return nil
	})

	o.logger.Info("all agents started", slog.Int("count", len(o.agents)))
	return nil
}

// Wait blocks until every agent goroutine has returned.
func (o *Orchestrator) Wait() error {
	o.mu.Lock()
	g := o.group
	o.mu.Unlock()
	if g == nil {
		return fmt.Errorf("orchestrator: not started")
	}
	return g.Wait()
}

// StopAll cancels agents in reverse registration order and waits for each to
// signal it stopped running, bounded by timeout per agent.
func (o *Orchestrator) StopAll(timeout time.Duration) {
	o.mu.Lock()
	agents := make([]*managed, len(o.agents))
	copy(agents, o.agents)
	o.mu.Unlock()

	for i := len(agents) - 1; i >= 0; i-- {
		m := agents[i]
		if m.cancel == nil {
			continue
		}
		o.setStatus(m, domain.AgentStopping, "")
		m.cancel()

		deadline := time.Now().Add(timeout)
		for m.agent.Running() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if m.agent.Running() {
			o.logger.Warn("agent did not stop in time", slog.String("agent", m.agent.Name()))
		}
	}
	o.logger.Info("all agents stopped")
}

// healthLoop compares each agent's Running flag against its record.
func (o *Orchestrator) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(o.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.checkHealth()
		}
	}
}

func (o *Orchestrator) checkHealth() {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.clock.Now()
	for _, m := range o.agents {
		m.record.LastHealthCheck = now
		if m.record.Status == domain.AgentRunning && !m.agent.Running() {
			m.record.Status = domain.AgentFailed
			if m.record.LastError == "" {
				m.record.LastError = "liveness check failed"
			}
			o.logger.Error("agent liveness check failed", slog.String("agent", m.record.Name))
		}
	}
}

// watchErrors marks records failed on critical agent errors. Agents are
// never auto-restarted.
func (o *Orchestrator) watchErrors(ctx context.Context) {
	errs, cancel := o.bus.Subscribe(domain.TopicAgentError)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-errs:
			if !ok {
				return
			}
			ae, isAgentErr := ev.(domain.AgentError)
			if !isAgentErr || !ae.Critical {
				continue
			}
			o.mu.Lock()
			if m, known := o.byName[ae.Agent]; known {
				m.record.Status = domain.AgentFailed
				m.record.LastError = ae.Err
			}
			o.mu.Unlock()
			o.logger.Error("critical agent error",
				slog.String("agent", ae.Agent),
				slog.String("error", ae.Err),
				slog.String("context", ae.Context),
			)
		}
	}
}

// Status returns a snapshot of every agent record, in registration order.
func (o *Orchestrator) Status() []domain.AgentRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.AgentRecord, len(o.agents))
	for i, m := range o.agents {
		out[i] = m.record
	}
	return out
}

// SetHealthInterval overrides the liveness check interval. Must be called
// before StartAll.
func (o *Orchestrator) SetHealthInterval(d time.Duration) {
	o.healthInterval = d
}

func (o *Orchestrator) setStatus(m *managed, status domain.AgentStatus, errMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// A failed record is terminal; a late clean return must not mask it.
	if m.record.Status == domain.AgentFailed && status != domain.AgentFailed {
		return
	}
	m.record.Status = status
	if errMsg != "" {
		m.record.LastError = errMsg
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
