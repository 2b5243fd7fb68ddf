// Quizbox lobby coordinator
//
// Players connect over TCP (or the websocket bridge), answer the ENTER_NAME
// prompt, and send READY to wait for a round. Once enough players are waiting
// a countdown starts; when it expires, or as soon as the pool is full, the
// whole pool is moved into a new round.
//
// Features:
// - One goroutine owns the registry, the waiting pool, the countdown and the
//   round; every other goroutine talks to it through a single event channel
// - Countdown ticks arrive as events too, tagged with a generation so a
//   cancelled countdown can never fire
// - Each session has a bounded outbound queue; overflowing it disconnects that
//   session only
// - A read error is handled exactly like LEAVE
// - Rounds end on GAME_FINISHED (top score wins, ties reported together) or
//   when departures leave fewer than the minimum number of players

package main

import (
	"context"
	"time"
)

type event interface {
	apply(c *Coordinator)
}

type registerEvent struct {
	session *Session
}

type nameEvent struct {
	session *Session
	name    string
}

type commandEvent struct {
	session *Session
	cmd     Command
}

type disconnectEvent struct {
	session *Session
	reason  string
}

type tickEvent struct {
	generation uint64
}

type statusEvent struct {
	reply chan Status
}

// Status is a committed snapshot of the lobby, safe to hand to other goroutines.
type Status struct {
	Connected   []string     `json:"connected"`
	Waiting     []string     `json:"waiting"`
	Countdown   int          `json:"countdown"`
	RoundActive bool         `json:"round_active"`
	Players     []string     `json:"players"`
	Scores      []ScoreEntry `json:"scores"`
	Sessions    int          `json:"sessions"`
}

type Coordinator struct {
	cfg *Config

	events chan event
	done   chan struct{}

	registry *Registry
	bcast    *Broadcaster
	lobby    *Lobby
	round    *Round
}

func NewCoordinator(cfg *Config) *Coordinator {
	registry := NewRegistry()
	bcast := NewBroadcaster(cfg, registry)

	c := &Coordinator{
		cfg:      cfg,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		registry: registry,
		bcast:    bcast,
		lobby:    NewLobby(cfg, bcast),
		round:    NewRound(cfg, bcast),
	}
	c.lobby.startTicker = c.runTicker

	return c
}

// Run applies events in arrival order until ctx is cancelled, then closes
// every session.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case e := <-c.events:
			e.apply(c)

		case <-ctx.Done():
			c.lobby.Cancel()
			for _, s := range c.registry.Sessions() {
				s.close()
			}
			close(c.done)
			c.discardPending()
			logf(c.cfg, "LOBBY: Coordinator stopped")
			return
		}
	}
}

// discardPending empties the event queue after shutdown. Sessions that were
// still waiting to register are closed so their pumps exit.
func (c *Coordinator) discardPending() {
	for {
		select {
		case e := <-c.events:
			switch e := e.(type) {
			case registerEvent:
				e.session.close()
			case disconnectEvent:
				e.session.close()
			}
		default:
			return
		}
	}
}

func (c *Coordinator) submit(e event) error {
	select {
	case <-c.done:
		return ErrCoordinatorStopped
	default:
	}

	select {
	case c.events <- e:
		return nil
	case <-c.done:
		return ErrCoordinatorStopped
	}
}

// Status asks the coordinator for a snapshot of the current state.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)

	if err := c.submit(statusEvent{reply: reply}); err != nil {
		return Status{}, err
	}

	select {
	case st := <-reply:
		return st, nil
	case <-c.done:
		return Status{}, ErrCoordinatorStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// runTicker feeds one tick per interval into the event loop until cd is
// stopped.
func (c *Coordinator) runTicker(cd *countdown) {
	go func() {
		ticker := time.NewTicker(c.cfg.tick)
		defer ticker.Stop()

		for {
			select {
			case <-cd.stop:
				return
			case <-c.done:
				return
			case <-ticker.C:
				select {
				case c.events <- tickEvent{generation: cd.generation}:
				case <-cd.stop:
					return
				case <-c.done:
					return
				}
			}
		}
	}()
}

func (e registerEvent) apply(c *Coordinator) {
	c.registry.Register(e.session)

	logf(c.cfg, "CONN: %s connected as %s (%d sessions)", e.session.conn.RemoteAddr(), e.session.ID, c.registry.Len())

	c.bcast.To(e.session, tokenEnterName)
}

func (e nameEvent) apply(c *Coordinator) {
	if !c.registry.Contains(e.session) || e.session.closed {
		return
	}

	name := c.registry.SetName(e.session, e.name)

	logf(c.cfg, "CONN: %s is now known as %q", e.session.ID, name)

	c.broadcastLists()
}

func (e commandEvent) apply(c *Coordinator) {
	s := e.session
	if !c.registry.Contains(s) || s.name == "" || s.closed {
		logf(c.cfg, "IGNORE: %s from %s, whose session is not live", e.cmd.Kind, s.Name())
		return
	}

	logf(c.cfg, "CONN: %s sent %s", s.name, e.cmd.Kind)

	switch e.cmd.Kind {
	case CmdReady:
		c.join(s)
	case CmdScore:
		c.round.UpdateScore(s.name, e.cmd.Score)
	case CmdFinish:
		if c.round.Finish(s.name) {
			c.broadcastLists()
			c.evaluate()
		}
	}
}

func (e disconnectEvent) apply(c *Coordinator) {
	s := e.session
	if !c.registry.Unregister(s) {
		return
	}
	s.close()

	logf(c.cfg, "CONN: %s (%s) %s (%d sessions)", s.Name(), s.ID, e.reason, c.registry.Len())

	if s.name == "" {
		return
	}

	c.lobby.Remove(s.name)
	inRound := c.round.Remove(s.name)

	c.bcast.ToAll(msgPlayerLeft(s.name))
	c.broadcastLists()
	if inRound && c.round.Active() {
		c.bcast.ToAll(msgScores(c.round.Scoreboard()))
	}

	c.evaluate()
}

func (e tickEvent) apply(c *Coordinator) {
	if c.round.Active() {
		c.lobby.Cancel()
		return
	}

	if c.lobby.Tick(e.generation) {
		c.startRound()
	}
}

func (e statusEvent) apply(c *Coordinator) {
	e.reply <- Status{
		Connected:   c.registry.AllNames(),
		Waiting:     c.lobby.Names(),
		Countdown:   c.lobby.Remaining(),
		RoundActive: c.round.Active(),
		Players:     c.round.Participants(),
		Scores:      c.round.Scoreboard(),
		Sessions:    c.registry.Len(),
	}
}

// join handles READY.
func (c *Coordinator) join(s *Session) {
	if c.round.Active() {
		logf(c.cfg, "LOBBY: %s tried to join while a round is active", s.name)
		c.bcast.To(s, msgServer("A game is currently active. Please wait for it to finish."))
		return
	}

	if c.lobby.Contains(s.name) || c.round.Has(s.name) {
		c.bcast.To(s, msgServer("You are already in the waiting room."))
		return
	}

	c.lobby.Add(s.name)

	logf(c.cfg, "LOBBY: %s joined, %d waiting", s.name, c.lobby.Len())

	c.broadcastLists()
	c.evaluate()
}

func (c *Coordinator) evaluate() {
	if c.round.Active() {
		return
	}

	if c.lobby.Evaluate() {
		c.startRound()
	}
}

func (c *Coordinator) startRound() {
	c.lobby.Cancel()
	c.round.Start(c.lobby.Drain())
	c.broadcastLists()
}

func (c *Coordinator) broadcastLists() {
	c.bcast.ToAll(msgConnected(c.registry.AllNames()))
	c.bcast.ToAll(msgWaiting(c.lobby.Names()))
}
