/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind       string
	countdown  int
	httpPort   int
	maxPlayers int
	minPlayers int
	ngrok      bool
	ngrokToken string
	port       int
	prefix     string
	profile    bool
	queueSize  int
	tick       time.Duration
	tlsCert    string
	tlsKey     string
	verbose    bool
	version    bool
}

// clientConfig holds the flags of the client subcommand.
type clientConfig struct {
	addr string
	name string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.httpPort < 0 || c.httpPort > 65535 {
		return fmt.Errorf("invalid http port (must be 0 to disable, or between 1-65535 inclusive): %d", c.httpPort)
	}
	if c.httpPort != 0 && c.httpPort == c.port {
		return fmt.Errorf("--port and --http-port must differ: %d", c.port)
	}
	if c.minPlayers < 1 {
		return fmt.Errorf("invalid minimum player count (must be at least 1): %d", c.minPlayers)
	}
	if c.maxPlayers <= c.minPlayers {
		return fmt.Errorf("maximum player count (%d) must be greater than minimum player count (%d)", c.maxPlayers, c.minPlayers)
	}
	if c.countdown < 1 {
		return fmt.Errorf("invalid countdown (must be at least 1 tick): %d", c.countdown)
	}
	if c.tick <= 0 {
		return fmt.Errorf("invalid tick duration (must be positive): %s", c.tick)
	}
	if c.queueSize < 1 {
		return fmt.Errorf("invalid queue size (must be at least 1): %d", c.queueSize)
	}
	if c.ngrok && c.ngrokToken == "" {
		c.ngrokToken = os.Getenv("NGROK_AUTHTOKEN")
		if c.ngrokToken == "" {
			return errors.New("--ngrok requires --ngrok-token (or NGROK_AUTHTOKEN)")
		}
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// bindEnv lets QUIZBOX_* environment variables fill in any flag not set on the
// command line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("QUIZBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "quizbox",
		Short:         "A lobby and round coordinator for small multiplayer quiz games.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(normalizeFlag)

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZBOX_BIND)")
	fs.IntVar(&cfg.countdown, "countdown", 30, "countdown length, in ticks, once enough players are waiting (env: QUIZBOX_COUNTDOWN)")
	fs.IntVar(&cfg.httpPort, "http-port", 8080, "port for the status page and websocket bridge, 0 to disable (env: QUIZBOX_HTTP_PORT)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 4, "waiting players that start a round immediately (env: QUIZBOX_MAX_PLAYERS)")
	fs.IntVar(&cfg.minPlayers, "min-players", 2, "players needed to start the countdown and keep a round going (env: QUIZBOX_MIN_PLAYERS)")
	fs.BoolVar(&cfg.ngrok, "ngrok", false, "expose the lobby through an ngrok tcp tunnel (env: QUIZBOX_NGROK)")
	fs.StringVar(&cfg.ngrokToken, "ngrok-token", "", "ngrok auth token (env: QUIZBOX_NGROK_TOKEN or NGROK_AUTHTOKEN)")
	fs.IntVarP(&cfg.port, "port", "p", 12345, "port for the lobby protocol (env: QUIZBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUIZBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIZBOX_PROFILE)")
	fs.IntVar(&cfg.queueSize, "queue-size", 64, "outbound messages buffered per player before disconnecting them (env: QUIZBOX_QUEUE_SIZE)")
	fs.DurationVar(&cfg.tick, "tick", time.Second, "duration of one countdown tick (env: QUIZBOX_TICK)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate for the http server (env: QUIZBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile for the http server (env: QUIZBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIZBOX_VERSION)")

	bindEnv(v, fs)

	cmd.AddCommand(newClientCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newClientCmd() *cobra.Command {
	v := newViper()
	cc := &clientConfig{}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Join a quizbox lobby from the terminal.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cc.addr == "" {
				return errors.New("--addr must not be empty")
			}
			return runClient(cmd.Context(), cc, os.Stdin, os.Stdout)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(normalizeFlag)

	fs.StringVarP(&cc.addr, "addr", "a", "localhost:12345", "lobby address to connect to (env: QUIZBOX_ADDR)")
	fs.StringVarP(&cc.name, "name", "n", "", "display name to answer the handshake with (env: QUIZBOX_NAME)")

	bindEnv(v, fs)

	return cmd
}
