// Command auth-client is a command line consumer of the session machine:
// it logs in against the identity provider, keeps the credentials in a
// local store and hands out live access tokens.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/gizmette/auth-client/internal/config"
	"github.com/gizmette/auth-client/pkg/credstore/bolt"
	"github.com/gizmette/auth-client/pkg/fingerprint"
	"github.com/gizmette/auth-client/pkg/session"
	"github.com/gizmette/auth-client/pkg/transport"
)

// BuildInfo will be set by the build system
var BuildInfo = "dev"

var configPath string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), BuildInfo)
	},
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "auth-client",
		Short:         "Session and credential manager for the gizmette identity provider",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <user config dir>/auth-client/config.yaml)")

	cmd.AddCommand(
		versionCmd,
		loginCmd(),
		logoutCmd(),
		tokenCmd(),
		statusCmd(),
	)

	return cmd
}

// setup builds the whole chain: config, key material, bolt store, HTTP
// transport and the session machine, bootstrapped from the persisted state.
// The returned closer releases the store.
func setup(ctx context.Context) (*session.Manager, func(), error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, nil, oops.In("cli").Wrapf(err, "Failed to locate the configuration")
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, oops.In("cli").Wrapf(err, "Failed to load the configuration")
	}

	initLogger(cfg.Debug)

	publicKey, err := cfg.PublicKeyPEM()
	if err != nil {
		return nil, nil, oops.In("cli").Wrapf(err, "Failed to load the verification key")
	}

	storePath, err := cfg.ResolveStorePath()
	if err != nil {
		return nil, nil, oops.In("cli").Wrapf(err, "Failed to resolve the credential store path")
	}

	store, err := bolt.Open(storePath)
	if err != nil {
		return nil, nil, oops.In("cli").Wrapf(err, "Failed to open the credential store")
	}

	client, err := transport.New(cfg.Endpoint, cfg.ClientID)
	if err != nil {
		store.Close()

		return nil, nil, oops.In("cli").Wrapf(err, "Failed to build the transport")
	}

	manager, err := session.New(session.Config{
		ClientID:          cfg.ClientID,
		Domain:            cfg.Domain,
		Issuer:            cfg.Issuer,
		PublicKey:         publicKey,
		SessionExpiration: cfg.SessionExpiration,
		Debug:             cfg.Debug,
	}, store, client, session.WithFingerprint(fingerprint.Default()))
	if err != nil {
		store.Close()

		return nil, nil, oops.In("cli").Wrapf(err, "Failed to build the session manager")
	}

	manager.Bootstrap(ctx)

	return manager, func() { store.Close() }, nil
}

func initLogger(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}

	handler := slogctx.NewHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		nil,
	)
	slog.SetDefault(slog.New(handler))
}

func execute() error {
	ctx, cancelOnSignal := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancelOnSignal()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		return err
	}

	return nil
}

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
