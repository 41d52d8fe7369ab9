package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/zkwire"
	"github.com/bft-labs/zkwire/internal/cliconfig"
	zlog "github.com/bft-labs/zkwire/pkg/log"
	"github.com/rs/zerolog"
)

const longHelp = `zkcli is a command-line client for ZooKeeper ensembles.

It reads its configuration from ~/.zkcli/config.toml, ZKCLI_* environment
variables and flags, in that order of increasing precedence.`

const exampleUsage = `  zkcli --servers zk1:2181,zk2:2181 get /config/feature
  zkcli create /locks/job-1 --ephemeral
  zkcli watch /services --recursive`

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration and logger into subcommands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
}

// resolve layers the configuration sources and validates the result. It
// runs as the root PersistentPreRunE so every subcommand sees the final
// config.
func (a *app) resolve(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	cmd.InheritedFlags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	a.cfgPath = cfgFile
	a.log = cliconfig.Logger(a.cfg.LogLevel)
	return nil
}

// connect dials the ensemble, waits for the session and applies any
// configured credentials.
func (a *app) connect(ctx context.Context) (*zkwire.Conn, error) {
	cfg := zkwire.DefaultConfig()
	cfg.Servers = a.cfg.Servers
	cfg.SessionTimeout = a.cfg.SessionTimeout
	cfg.ReadOnly = a.cfg.ReadOnly
	cfg.Logger = zlog.NewZerologAdapterWithLogger(a.log)

	conn, err := zkwire.Dial(cfg)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				conn.Close()
				return nil, fmt.Errorf("session ended before connecting")
			}
			if ev.Type != zkwire.EventSession {
				continue
			}
			switch ev.State {
			case zkwire.StateHasSession, zkwire.StateSessionResumed:
				if a.cfg.AuthScheme != "" {
					if err := conn.AddAuth(ctx, a.cfg.AuthScheme, []byte(a.cfg.AuthData)); err != nil {
						conn.Close()
						return nil, fmt.Errorf("add auth: %w", err)
					}
				}
				return conn, nil
			case zkwire.StateExpired:
				conn.Close()
				return nil, zkwire.ErrSessionExpired
			}
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		}
	}
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "zkcli",
		Short:         "Command-line client for ZooKeeper ensembles",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.zkcli/config.toml)")
	pf.StringSliceVar(&a.cfg.Servers, "servers", a.cfg.Servers, "ensemble member addresses")
	pf.DurationVar(&a.cfg.SessionTimeout, "timeout", a.cfg.SessionTimeout, "requested session timeout")
	pf.StringVar(&a.cfg.AuthScheme, "auth-scheme", a.cfg.AuthScheme, "authentication scheme (e.g. digest)")
	pf.StringVar(&a.cfg.AuthData, "auth-data", a.cfg.AuthData, "authentication data (e.g. user:password)")
	pf.BoolVar(&a.cfg.ReadOnly, "read-only", a.cfg.ReadOnly, "accept a read-only session during partitions")
	pf.BoolVar(&a.cfg.NoColor, "no-color", a.cfg.NoColor, "disable colored output")
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newCreateCmd(a),
		newDeleteCmd(a),
		newLsCmd(a),
		newStatCmd(a),
		newSyncCmd(a),
		newMvCmd(a),
		newWatchCmd(a),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "zkcli: %v\n", err)
		os.Exit(1)
	}
}
