/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleRound   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleTimer   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleScores  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styleLeft    = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	styleAdvice  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("9"))
	stylePrompt  = lipgloss.NewStyle().Bold(true)
	styleRoster  = lipgloss.NewStyle().Faint(true)
	styleDefault = lipgloss.NewStyle()
)

// renderServerLine picks a style for one server message.
func renderServerLine(line string) string {
	style := styleDefault

	switch {
	case line == tokenGameStarted, strings.HasPrefix(line, tokenGameEnded):
		style = styleRound
	case strings.HasPrefix(line, tokenTimer):
		style = styleTimer
	case strings.HasPrefix(line, tokenScores):
		style = styleScores
	case strings.HasPrefix(line, tokenPlayerLeft):
		style = styleLeft
	case strings.HasPrefix(line, tokenServerMessage):
		style = styleAdvice
	case line == tokenEnterName:
		style = stylePrompt
	case strings.HasPrefix(line, tokenConnected), strings.HasPrefix(line, tokenWaiting):
		style = styleRoster
	}

	return style.Render(line)
}

// runClient relays lines typed on in to the lobby at cc.addr and prints what
// the lobby sends back to out. When in is exhausted the client sends LEAVE and
// waits for the server to hang up.
func runClient(ctx context.Context, cc *clientConfig, in io.Reader, out io.Writer) error {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", cc.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cc.addr, err)
	}
	defer conn.Close()

	stopClose := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stopClose()

	done := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := scanner.Text()

			fmt.Fprintln(out, renderServerLine(line))

			if line == tokenEnterName && cc.name != "" {
				if _, err := fmt.Fprintln(conn, cc.name); err != nil {
					done <- err
					return
				}
			}
		}
		done <- scanner.Err()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case err := <-done:
			if ctx.Err() != nil {
				return nil
			}
			return err

		case line, ok := <-lines:
			if !ok {
				if _, err := fmt.Fprintln(conn, tokenLeave); err != nil {
					return err
				}
				lines = nil
				continue
			}

			if _, err := fmt.Fprintln(conn, line); err != nil {
				return err
			}
		}
	}
}
