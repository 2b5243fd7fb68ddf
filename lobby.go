/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"slices"
)

// countdown is one running forced-start timer. Ticks from an earlier
// generation are ignored.
type countdown struct {
	generation uint64
	remaining  int
	stop       chan struct{}
}

// Lobby owns the waiting pool and the countdown. Like the rest of the lobby
// and round state it is only touched from the coordinator goroutine.
type Lobby struct {
	cfg   *Config
	bcast *Broadcaster

	pool       []string
	countdown  *countdown
	generation uint64

	// startTicker begins delivering ticks for cd until cd.stop is closed.
	startTicker func(cd *countdown)
}

func NewLobby(cfg *Config, bcast *Broadcaster) *Lobby {
	return &Lobby{
		cfg:         cfg,
		bcast:       bcast,
		startTicker: func(*countdown) {},
	}
}

func (l *Lobby) Contains(name string) bool {
	return slices.Contains(l.pool, name)
}

func (l *Lobby) Add(name string) {
	if l.Contains(name) {
		return
	}
	l.pool = append(l.pool, name)
}

// Remove takes name out of the pool and reports whether it was there.
func (l *Lobby) Remove(name string) bool {
	i := slices.Index(l.pool, name)
	if i < 0 {
		return false
	}
	l.pool = slices.Delete(l.pool, i, i+1)
	return true
}

// Names returns a copy of the pool in join order.
func (l *Lobby) Names() []string {
	return slices.Clone(l.pool)
}

func (l *Lobby) Len() int {
	return len(l.pool)
}

// Drain empties the pool and returns its previous contents.
func (l *Lobby) Drain() []string {
	drained := l.pool
	l.pool = nil
	return drained
}

func (l *Lobby) Counting() bool {
	return l.countdown != nil
}

// Remaining reports the seconds left on the countdown, or -1 if none is running.
func (l *Lobby) Remaining() int {
	if l.countdown == nil {
		return -1
	}
	return l.countdown.remaining
}

// Evaluate applies the countdown rules to the current pool size and reports
// whether a round should start right now.
func (l *Lobby) Evaluate() bool {
	switch n := len(l.pool); {
	case n >= l.cfg.maxPlayers:
		if l.Counting() {
			l.Cancel()
			logf(l.cfg, "LOBBY: Countdown cancelled, %d players reached", n)
		}
		return true
	case n >= l.cfg.minPlayers && !l.Counting():
		l.startCountdown()
	case n < l.cfg.minPlayers && l.Counting():
		l.Cancel()
		logf(l.cfg, "LOBBY: Countdown cancelled, only %d waiting", n)
		l.bcast.ToAll(msgServer("Countdown cancelled: not enough players."))
	}

	return false
}

func (l *Lobby) startCountdown() {
	l.generation++

	cd := &countdown{
		generation: l.generation,
		remaining:  l.cfg.countdown,
		stop:       make(chan struct{}),
	}
	l.countdown = cd

	logf(l.cfg, "LOBBY: Countdown started at %d with %d waiting", cd.remaining, len(l.pool))

	l.bcast.ToAll(msgTimer(cd.remaining))
	l.startTicker(cd)
}

// Cancel stops the running countdown, if any.
func (l *Lobby) Cancel() {
	if l.countdown == nil {
		return
	}
	close(l.countdown.stop)
	l.countdown = nil
}

// Tick advances the countdown of the given generation by one step and reports
// whether it expired with enough players to start a round.
func (l *Lobby) Tick(generation uint64) bool {
	cd := l.countdown
	if cd == nil || cd.generation != generation {
		return false
	}

	cd.remaining--
	l.bcast.ToAll(msgTimer(cd.remaining))

	if cd.remaining > 0 {
		return false
	}

	l.Cancel()

	if len(l.pool) >= l.cfg.minPlayers {
		logf(l.cfg, "LOBBY: Countdown finished with %d waiting", len(l.pool))
		return true
	}

	logf(l.cfg, "LOBBY: Countdown finished with only %d waiting", len(l.pool))
	l.bcast.ToAll(msgServer("Countdown finished but not enough players to start."))

	return false
}
