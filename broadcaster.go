/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Broadcaster fans messages out to registered sessions. A session whose queue
// is full is kicked instead of stalling everybody else.
type Broadcaster struct {
	cfg      *Config
	registry *Registry
}

func NewBroadcaster(cfg *Config, registry *Registry) *Broadcaster {
	return &Broadcaster{
		cfg:      cfg,
		registry: registry,
	}
}

func (b *Broadcaster) To(s *Session, line string) {
	if s == nil || s.closed {
		return
	}

	select {
	case s.send <- line:
	default:
		logf(b.cfg, "CONN: Outbound queue full for %s (%s), disconnecting", s.Name(), s.ID)
		s.kick()
	}
}

// ToNames sends line to the sessions bound to names, in the given order.
func (b *Broadcaster) ToNames(names []string, line string) {
	for _, name := range names {
		b.To(b.registry.Lookup(name), line)
	}
}

func (b *Broadcaster) ToAll(line string) {
	for _, s := range b.registry.Sessions() {
		b.To(s, line)
	}
}
