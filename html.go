/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"embed"
	"fmt"
	"html"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

//go:embed assets/*
var assets embed.FS

func cspHome(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self'; style-src 'self'")
}

func renderList(names []string) string {
	if len(names) == 0 {
		return `<p class="empty">nobody</p>`
	}

	var b strings.Builder
	b.WriteString("<ul>")
	for _, name := range names {
		b.WriteString("<li>" + html.EscapeString(name) + "</li>")
	}
	b.WriteString("</ul>")

	return b.String()
}

func renderHome(cfg *Config, st Status, joinAddr string) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	b.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	b.WriteString(fmt.Sprintf(`<link rel="stylesheet" href="%s/assets/quizbox.css">`, cfg.prefix))
	b.WriteString(`<title>quizbox</title></head><body>`)

	b.WriteString(`<h1>quizbox</h1>`)
	b.WriteString(fmt.Sprintf(`<p>Join with <code>quizbox client --addr %s</code> or any line-based client.</p>`, html.EscapeString(joinAddr)))
	b.WriteString(fmt.Sprintf(`<img class="qr" src="%s/qr" alt="QR code for this page">`, cfg.prefix))

	b.WriteString(`<h2>Connected</h2>`)
	b.WriteString(renderList(st.Connected))

	b.WriteString(`<h2>Waiting</h2>`)
	b.WriteString(renderList(st.Waiting))
	if st.Countdown >= 0 {
		b.WriteString(fmt.Sprintf(`<p class="timer">Starting in %ds</p>`, st.Countdown))
	}

	if st.RoundActive {
		b.WriteString(`<h2>Round in progress</h2><table>`)
		for _, e := range st.Scores {
			b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%d</td></tr>", html.EscapeString(e.Name), e.Score))
		}
		b.WriteString(`</table>`)
	}

	b.WriteString(`</body></html>`)

	return b.String()
}

func serveHomePage(cfg *Config, co *Coordinator, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		st, err := co.Status(ctx)
		if err != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(newPage("Unavailable", "The lobby is not running.")))

			return
		}

		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			host = r.Host
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)
		cspHome(cfg, w)

		written, err := w.Write([]byte(renderHome(cfg, st, net.JoinHostPort(host, strconv.Itoa(cfg.port)))))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(written),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveAssets(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fname := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, cfg.prefix), "/")

		data, err := assets.ReadFile(fname)
		if err != nil {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		ext := strings.ToLower(filepath.Ext(fname))
		switch ext {
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".js":
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		}

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
