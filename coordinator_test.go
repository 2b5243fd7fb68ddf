/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

// newTestCoordinator returns a coordinator whose events are applied directly
// by the test, with no ticker goroutines.
func newTestCoordinator(cfg *Config) *Coordinator {
	c := NewCoordinator(cfg)
	c.lobby.startTicker = func(*countdown) {}
	return c
}

func connect(c *Coordinator, name string) *Session {
	s := newSession(&fakeConn{addr: name + ":1"}, c.cfg.queueSize)

	registerEvent{session: s}.apply(c)
	nameEvent{session: s, name: name}.apply(c)

	return s
}

func send(c *Coordinator, s *Session, kind CommandKind, score int) {
	commandEvent{session: s, cmd: Command{Kind: kind, Score: score}}.apply(c)
}

func tick(c *Coordinator, n int) {
	for i := 0; i < n && c.lobby.countdown != nil; i++ {
		tickEvent{generation: c.lobby.countdown.generation}.apply(c)
	}
}

func drainAll(sessions ...*Session) {
	for _, s := range sessions {
		drain(s)
	}
}

func TestHandshake(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := newSession(&fakeConn{addr: "a:1"}, 16)
	registerEvent{session: a}.apply(c)

	if got := drain(a); !slices.Equal(got, []string{tokenEnterName}) {
		t.Fatalf("after register: %q", got)
	}

	nameEvent{session: a, name: "alice"}.apply(c)

	want := []string{"CONNECTED:alice", "WAITING:"}
	if got := drain(a); !slices.Equal(got, want) {
		t.Errorf("after name: %q, want %q", got, want)
	}

	b := connect(c, "alice")
	if b.name != "alice_2" {
		t.Errorf("duplicate name resolved to %q", b.name)
	}
	if got := drain(a); !slices.Equal(got, []string{"CONNECTED:alice,alice_2", "WAITING:"}) {
		t.Errorf("alice saw %q", got)
	}
}

func TestCommandsBeforeNameAreIgnored(t *testing.T) {
	c := newTestCoordinator(testConfig())

	s := newSession(&fakeConn{addr: "a:1"}, 16)
	registerEvent{session: s}.apply(c)
	drain(s)

	send(c, s, CmdReady, 0)

	if c.lobby.Len() != 0 {
		t.Error("unnamed session joined the pool")
	}
}

func TestCountdownThenRoundStarts(t *testing.T) {
	cfg := testConfig()
	cfg.countdown = 3
	c := newTestCoordinator(cfg)

	a := connect(c, "A")
	b := connect(c, "B")
	drainAll(a, b)

	send(c, a, CmdReady, 0)
	send(c, b, CmdReady, 0)

	if !c.lobby.Counting() {
		t.Fatal("countdown not started with two players waiting")
	}

	tick(c, 3)

	if !c.round.Active() {
		t.Fatal("round not started after countdown expired")
	}
	if got := c.round.Participants(); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("participants = %q", got)
	}

	want := []string{
		"CONNECTED:A,B", "WAITING:A",
		"CONNECTED:A,B", "WAITING:A,B",
		"TIMER:3", "TIMER:2", "TIMER:1", "TIMER:0",
		tokenGameStarted, "SCORES:A:0,B:0",
		"CONNECTED:A,B", "WAITING:",
	}
	if got := drain(a); !slices.Equal(got, want) {
		t.Errorf("A received\n%q\nwant\n%q", got, want)
	}
}

func TestFullPoolStartsImmediately(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	b := connect(c, "B")
	send(c, a, CmdReady, 0)
	send(c, b, CmdReady, 0)

	gen := c.lobby.countdown.generation
	tick(c, 15)
	if c.lobby.Remaining() != 15 {
		t.Fatalf("Remaining() = %d, want 15", c.lobby.Remaining())
	}

	cs := connect(c, "C")
	d := connect(c, "D")
	send(c, cs, CmdReady, 0)
	drainAll(a, b, cs, d)

	send(c, d, CmdReady, 0)

	if !c.round.Active() {
		t.Fatal("fourth player did not start a round")
	}
	if c.lobby.Counting() {
		t.Error("countdown survived the round start")
	}
	if got := c.round.Participants(); !slices.Equal(got, []string{"A", "B", "C", "D"}) {
		t.Errorf("participants = %q", got)
	}

	tickEvent{generation: gen}.apply(c)

	got := drain(d)
	if count(got, tokenGameStarted) != 1 {
		t.Errorf("D received %q, want exactly one GAME_STARTED", got)
	}
	for _, line := range got {
		if line == "TIMER:14" {
			t.Error("stale tick reached a player after the round started")
		}
	}
}

func TestReadyRejections(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	send(c, a, CmdReady, 0)
	drain(a)

	send(c, a, CmdReady, 0)
	if got := drain(a); !slices.Equal(got, []string{"SERVER_MESSAGE:You are already in the waiting room."}) {
		t.Errorf("repeat READY: %q", got)
	}

	b := connect(c, "B")
	send(c, b, CmdReady, 0)
	tick(c, 30)
	if !c.round.Active() {
		t.Fatal("round not started")
	}

	e := connect(c, "E")
	drain(e)
	send(c, e, CmdReady, 0)

	if got := drain(e); !slices.Equal(got, []string{"SERVER_MESSAGE:A game is currently active. Please wait for it to finish."}) {
		t.Errorf("READY during round: %q", got)
	}
	if c.lobby.Len() != 0 {
		t.Error("player joined the pool while a round was active")
	}
}

func TestFinishEndsRound(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	b := connect(c, "B")
	send(c, a, CmdReady, 0)
	send(c, b, CmdReady, 0)
	tick(c, 30)

	send(c, a, CmdScore, 10)
	send(c, b, CmdScore, 5)
	drainAll(a, b)

	send(c, a, CmdFinish, 0)

	if c.round.Active() {
		t.Fatal("round still active after GAME_FINISHED")
	}

	want := []string{
		"GAME_ENDED:A wins with 10 points! Final Scores: A:10,B:5",
		"SCORES:",
		"CONNECTED:A,B",
		"WAITING:",
	}
	if got := drain(b); !slices.Equal(got, want) {
		t.Errorf("B received %q, want %q", got, want)
	}

	send(c, a, CmdReady, 0)
	if !c.lobby.Contains("A") {
		t.Error("player could not rejoin after the round ended")
	}
}

func TestDisconnectDuringRound(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	b := connect(c, "B")
	send(c, a, CmdReady, 0)
	send(c, b, CmdReady, 0)
	tick(c, 30)
	send(c, a, CmdScore, 3)
	drainAll(a, b)

	disconnectEvent{session: b, reason: "left"}.apply(c)

	want := []string{
		"GAME_ENDED:A wins by default as all other players left! Final Score: 3 points. Final Scores: A:3",
		"SCORES:",
		"PLAYER_LEFT:B",
		"CONNECTED:A",
		"WAITING:",
	}
	if got := drain(a); !slices.Equal(got, want) {
		t.Errorf("A received %q, want %q", got, want)
	}

	if !b.closed {
		t.Error("departed session's queue left open")
	}
}

func TestDisconnectWithRoundContinuing(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	b := connect(c, "B")
	cs := connect(c, "C")
	for _, s := range []*Session{a, b, cs} {
		send(c, s, CmdReady, 0)
	}
	tick(c, 30)
	drainAll(a, b, cs)

	disconnectEvent{session: cs, reason: "disconnected"}.apply(c)

	want := []string{
		"PLAYER_LEFT:C",
		"CONNECTED:A,B",
		"WAITING:",
		"SCORES:A:0,B:0",
	}
	if got := drain(a); !slices.Equal(got, want) {
		t.Errorf("A received %q, want %q", got, want)
	}
	if !c.round.Active() {
		t.Error("round ended with two players left")
	}
}

func TestDisconnectCancelsCountdown(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	b := connect(c, "B")
	send(c, a, CmdReady, 0)
	send(c, b, CmdReady, 0)
	drainAll(a, b)

	disconnectEvent{session: b, reason: "left"}.apply(c)
	disconnectEvent{session: b, reason: "disconnected"}.apply(c)

	want := []string{
		"PLAYER_LEFT:B",
		"CONNECTED:A",
		"WAITING:A",
		"SERVER_MESSAGE:Countdown cancelled: not enough players.",
	}
	if got := drain(a); !slices.Equal(got, want) {
		t.Errorf("A received %q, want %q", got, want)
	}
	if c.lobby.Counting() {
		t.Error("countdown still running")
	}
}

func TestUnnamedDisconnectIsSilent(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	drain(a)

	s := newSession(&fakeConn{addr: "x:1"}, 16)
	registerEvent{session: s}.apply(c)
	disconnectEvent{session: s, reason: "disconnected"}.apply(c)

	if got := drain(a); len(got) != 0 {
		t.Errorf("A received %q", got)
	}
	if c.registry.Len() != 1 {
		t.Errorf("registry has %d sessions, want 1", c.registry.Len())
	}
}

func TestStatusSnapshot(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	connect(c, "B")
	send(c, a, CmdReady, 0)

	reply := make(chan Status, 1)
	statusEvent{reply: reply}.apply(c)
	st := <-reply

	if !slices.Equal(st.Connected, []string{"A", "B"}) || !slices.Equal(st.Waiting, []string{"A"}) {
		t.Errorf("status = %+v", st)
	}
	if st.Countdown != -1 || st.RoundActive || st.Sessions != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestRunAndStop(t *testing.T) {
	c := NewCoordinator(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	s := newSession(&fakeConn{addr: "a:1"}, 16)
	if err := c.submit(registerEvent{session: s}); err != nil {
		t.Fatal(err)
	}

	statusCtx, statusCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer statusCancel()

	st, err := c.Status(statusCtx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Sessions != 1 {
		t.Errorf("Sessions = %d, want 1", st.Sessions)
	}

	cancel()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop")
	}

	if err := c.submit(tickEvent{}); !errors.Is(err, ErrCoordinatorStopped) {
		t.Errorf("submit after stop = %v", err)
	}
	if _, err := c.Status(statusCtx); !errors.Is(err, ErrCoordinatorStopped) {
		t.Errorf("Status after stop = %v", err)
	}

	if got := drain(s); !slices.Equal(got, []string{tokenEnterName}) {
		t.Errorf("session received %q before shutdown", got)
	}
	if !s.closed {
		t.Error("session left open after shutdown")
	}
}

func TestKickedSessionCannotChangeState(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	b := connect(c, "B")
	cs := connect(c, "C")
	d := connect(c, "D")
	for _, s := range []*Session{a, b, cs} {
		send(c, s, CmdReady, 0)
	}

	d.kick()
	send(c, d, CmdReady, 0)

	if c.round.Active() {
		t.Fatal("kicked session started a round")
	}
	if got := c.lobby.Names(); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("pool = %q, want A, B and C", got)
	}
	if !d.conn.(*fakeConn).isClosed() {
		t.Error("kicked session's connection left open")
	}

	unnamed := newSession(&fakeConn{addr: "e:1"}, 16)
	registerEvent{session: unnamed}.apply(c)
	unnamed.kick()
	nameEvent{session: unnamed, name: "E"}.apply(c)

	if unnamed.name != "" || c.registry.Lookup("E") != nil {
		t.Error("kicked session completed the handshake")
	}
}

func TestKickedParticipantCannotScoreOrFinish(t *testing.T) {
	c := newTestCoordinator(testConfig())

	a := connect(c, "A")
	b := connect(c, "B")
	cs := connect(c, "C")
	for _, s := range []*Session{a, b, cs} {
		send(c, s, CmdReady, 0)
	}
	tick(c, 30)

	c.round.UpdateScore("B", 5)
	b.kick()

	send(c, b, CmdScore, 99)
	send(c, b, CmdFinish, 0)

	if !c.round.Active() {
		t.Fatal("kicked participant ended the round")
	}
	if got := c.round.Scoreboard(); !slices.Equal(got, []ScoreEntry{{"A", 0}, {"B", 5}, {"C", 0}}) {
		t.Errorf("scoreboard = %v", got)
	}
}

func TestRunClosesQueuedSessionsOnStop(t *testing.T) {
	for i := 0; i < 20; i++ {
		c := NewCoordinator(testConfig())

		pending := newSession(&fakeConn{addr: "p:1"}, 16)
		leaving := connect(c, "L")
		c.events <- registerEvent{session: pending}
		c.events <- disconnectEvent{session: leaving, reason: "left"}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c.Run(ctx)

		if !pending.closed {
			t.Fatal("session queued for registration left open after stop")
		}
		if !leaving.closed {
			t.Fatal("session queued for disconnect left open after stop")
		}
		if len(c.events) != 0 {
			t.Fatalf("%d events left queued after stop", len(c.events))
		}
	}
}
