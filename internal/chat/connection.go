package chat

import (
	"context"

	"github.com/qmuntal/stateless"

	"github.com/comigor/ragchat-go/internal/logger"
)

// Connection is the tri-state backend indicator.
type Connection string

const (
	ConnChecking     Connection = "checking"
	ConnConnected    Connection = "connected"
	ConnDisconnected Connection = "disconnected"
)

// Probe triggers.
const (
	TriggerProbe       Trigger = "Probe"
	TriggerProbeOK     Trigger = "ProbeOK"
	TriggerProbeFailed Trigger = "ProbeFailed"
)

func newConnectionMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(ConnChecking)

	fsm.Configure(ConnChecking).
		Ignore(TriggerProbe).
		Permit(TriggerProbeOK, ConnConnected).
		Permit(TriggerProbeFailed, ConnDisconnected)

	fsm.Configure(ConnConnected).
		Permit(TriggerProbe, ConnChecking)

	fsm.Configure(ConnDisconnected).
		Permit(TriggerProbe, ConnChecking)

	return fsm
}

func (c *Controller) connection() Connection {
	return c.conn.MustState().(Connection)
}

// Connection returns the current indicator value.
func (c *Controller) Connection() Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection()
}

// Probe checks the backend health endpoint and updates the indicator. A probe
// requested while another one runs is ignored. Failures only flip the
// indicator.
func (c *Controller) Probe(ctx context.Context) Connection {
	c.mu.Lock()
	if c.probing {
		st := c.connection()
		c.mu.Unlock()
		return st
	}
	c.probing = true
	if err := c.conn.Fire(TriggerProbe); err != nil {
		logger.L.Warn("connection fsm fire error", "error", err)
	}
	c.mu.Unlock()

	reqCtx, cancel := scoped(ctx, c.life)
	defer cancel()
	_, err := c.backend.Health(reqCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.probing = false
	trigger := TriggerProbeOK
	if err != nil {
		logger.L.Warn("backend connection failed", "error", err)
		trigger = TriggerProbeFailed
	} else {
		logger.L.Info("backend connected")
	}
	if err := c.conn.Fire(trigger); err != nil {
		logger.L.Warn("connection fsm fire error", "trigger", trigger, "error", err)
	}
	return c.connection()
}
