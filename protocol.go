/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Client -> server tokens.
const (
	tokenReady        = "READY"
	tokenLeave        = "LEAVE"
	tokenUpdateScore  = "UPDATE_SCORE:"
	tokenGameFinished = "GAME_FINISHED"
)

// Server -> client tokens.
const (
	tokenEnterName     = "ENTER_NAME"
	tokenConnected     = "CONNECTED:"
	tokenWaiting       = "WAITING:"
	tokenTimer         = "TIMER:"
	tokenGameStarted   = "GAME_STARTED"
	tokenScores        = "SCORES:"
	tokenPlayerLeft    = "PLAYER_LEFT:"
	tokenGameEnded     = "GAME_ENDED:"
	tokenServerMessage = "SERVER_MESSAGE:"
)

type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdReady
	CmdLeave
	CmdScore
	CmdFinish
)

func (k CommandKind) String() string {
	switch k {
	case CmdReady:
		return "ready"
	case CmdLeave:
		return "leave"
	case CmdScore:
		return "score"
	case CmdFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Command is one parsed line received after the handshake.
type Command struct {
	Kind  CommandKind
	Score int
	Raw   string
}

// ParseCommand decodes a single inbound line. Unrecognised input is returned as
// CmdUnknown rather than an error so callers can log and carry on.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmptyLine
	}

	cmd := Command{Raw: line}

	switch {
	case line == tokenReady:
		cmd.Kind = CmdReady
	case line == tokenLeave:
		cmd.Kind = CmdLeave
	case line == tokenGameFinished:
		cmd.Kind = CmdFinish
	case strings.HasPrefix(line, tokenUpdateScore):
		score, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, tokenUpdateScore)))
		if err != nil {
			return cmd, fmt.Errorf("%w: %q", ErrBadScore, line)
		}
		cmd.Kind = CmdScore
		cmd.Score = score
	default:
		cmd.Kind = CmdUnknown
	}

	return cmd, nil
}

// sanitizeName trims a handshake reply and strips the characters the wire
// format uses as separators.
func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == ',' || r == ':' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	return strings.TrimSpace(name)
}

// ScoreEntry is one row of a scoreboard snapshot.
type ScoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func formatScores(entries []ScoreEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Name+":"+strconv.Itoa(e.Score))
	}

	return strings.Join(parts, ",")
}

func msgConnected(names []string) string { return tokenConnected + strings.Join(names, ",") }

func msgWaiting(names []string) string { return tokenWaiting + strings.Join(names, ",") }

func msgTimer(remaining int) string { return tokenTimer + strconv.Itoa(remaining) }

func msgScores(entries []ScoreEntry) string { return tokenScores + formatScores(entries) }

func msgPlayerLeft(name string) string { return tokenPlayerLeft + name }

func msgGameEnded(text string) string { return tokenGameEnded + text }

func msgServer(text string) string { return tokenServerMessage + text }
