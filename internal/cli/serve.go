package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/config"
	"github.com/dshills/juris/internal/explain"
	"github.com/dshills/juris/internal/providers"
	"github.com/dshills/juris/internal/review"
	"github.com/dshills/juris/internal/server"
)

var (
	flagAddr    string
	flagNoStore bool
)

// buildServer wires the engine, explainer and store into an HTTP server. The
// returned cleanup closes the store.
func buildServer(cfg config.Config) (*server.Server, func(), error) {
	log := zap.L()

	client, err := providers.FromConfig(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	engine, err := review.FromConfig(cfg, client, log)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := promptsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := server.Options{
		Analyzer:  engine,
		Explainer: explain.New(client, catalog, log),
		Logger:    log,
	}
	cleanup := func() {}
	if !flagNoStore {
		st, err := openStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts.Store = st
		cleanup = func() { _ = st.Close() }
	}
	return server.New(opts), cleanup, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := buildOverrides()
		if flagAddr != "" {
			overrides["server.addr"] = flagAddr
		}
		cfg, err := config.Load(overrides)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		srv, cleanup, err := buildServer(cfg)
		if err != nil {
			zap.L().Error("server setup failed", zap.Error(err))
			exitCode = ExitRuntimeError
			if providers.IsAuthError(err) {
				exitCode = ExitAuthError
			}
			return nil
		}
		defer cleanup()

		ctx, cancel := signalContext()
		defer cancel()
		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			zap.L().Error("server stopped with error", zap.Error(err))
			exitCode = ExitRuntimeError
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&flagNoStore, "no-store", false, "Do not persist reviews")
	serveCmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	serveCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Chat completions endpoint URL")
	serveCmd.Flags().StringVar(&flagPromptsFile, "prompts", "", "YAML prompt catalog file")
}
