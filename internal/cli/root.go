// Package cli implements notifyctl, a terminal client for the notification
// engine.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"task-notifications/internal/config"
	"task-notifications/internal/session"
)

// connectWait bounds how long commands wait for the live channel.
const connectWait = 3 * time.Second

type globalFlags struct {
	configPath string
	server     string
	username   string
	password   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "Follow task notifications from the terminal",
		Long:          "notifyctl signs in to the task notification API, keeps a live channel open and shows notifications, counters and comment threads.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultConfigPath(), "path to config.yaml")
	pf.StringVar(&flags.server, "server", "", "API base URL (overrides client.base_url)")
	pf.StringVarP(&flags.username, "user", "u", "", "username (overrides client.username)")
	pf.StringVar(&flags.password, "password", "", "password (overrides client.password)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging to stderr")

	cmd.AddCommand(newListCmd(flags))
	cmd.AddCommand(newStatsCmd(flags))
	cmd.AddCommand(newReadCmd(flags))
	cmd.AddCommand(newReadAllCmd(flags))
	cmd.AddCommand(newWatchCmd(flags))
	cmd.AddCommand(newCommentsCmd(flags))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

func (f *globalFlags) logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if f.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Str("component", "notifyctl").Logger()
}

// clientConfig merges the config file, environment and flags.
func (f *globalFlags) clientConfig() (config.ClientConfig, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.ClientConfig{}, err
	}
	cc := cfg.Client
	if f.server != "" {
		cc.BaseURL = f.server
	}
	if f.username != "" {
		cc.Username = f.username
	}
	if f.password != "" {
		cc.Password = f.password
	}
	if cc.Username == "" || cc.Password == "" {
		return cc, errors.New("username and password are required (flags, config or TM_CLIENT_USERNAME/TM_CLIENT_PASSWORD)")
	}
	return cc, nil
}

// open signs in and opens a session. The caller closes it.
func (f *globalFlags) open(ctx context.Context) (*session.Session, error) {
	cc, err := f.clientConfig()
	if err != nil {
		return nil, err
	}
	id, err := session.Login(ctx, cc.BaseURL, cc.Username, cc.Password)
	if err != nil {
		return nil, fmt.Errorf("login as %s: %w", cc.Username, err)
	}
	log := f.logger()
	s, err := session.Open(ctx, session.Config{
		BaseURL:        cc.BaseURL,
		PageSize:       cc.PageSize,
		ResyncInterval: cc.ResyncInterval,
		ReconnectBase:  cc.ReconnectBase,
		ReconnectMax:   cc.ReconnectMax,
		DedupTTL:       cc.DedupTTL,
	}, id, log)
	if err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, connectWait)
	defer cancel()
	if !s.WaitConnected(waitCtx) {
		log.Warn().Msg("live channel not up yet, continuing over REST")
	}
	return s, nil
}
