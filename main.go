package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"queryrouter/controllers"
	"queryrouter/services"
	"queryrouter/utils"
)

// Version is set via -ldflags at build time.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

// appServices holds the wired services for one process.
type appServices struct {
	cfg       *utils.Config
	logger    zerolog.Logger
	assistant *services.Assistant
	discord   *services.DiscordService
}

// newAppServices wires every service from the configuration.
func newAppServices(cfg *utils.Config, logger zerolog.Logger) (*appServices, error) {
	lexicon := services.DefaultLexicon()
	if cfg.LexiconFile != "" {
		loaded, err := services.LoadLexicon(cfg.LexiconFile)
		if err != nil {
			return nil, err
		}
		lexicon = loaded
		logger.Info().Str("file", cfg.LexiconFile).Msg("loaded lexicon")
	}

	llm := services.NewLLMService(logger)
	classifier := services.NewIntentClassifier(lexicon, llm, logger)
	classifier.SetTimeout(cfg.Retrieval.ClassifyTimeout)

	fetcher := services.NewPageFetcher(cfg.Retrieval.UserAgent, cfg.Retrieval.AcceptLanguage)
	retrieval := services.NewRetrievalService(fetcher, services.RetrievalConfig{
		PageTimeout:   cfg.Retrieval.PageTimeout,
		SearchTimeout: cfg.Retrieval.SearchTimeout,
	}, logger)

	assistant := services.NewAssistant(services.AssistantConfig{
		Classifier:    classifier,
		Retrieval:     retrieval,
		Ranker:        services.NewOllamaSourceRanker(cfg.Model.BaseURL, cfg.Model.EmbeddingModel, logger),
		LLM:           llm,
		Model:         cfg.ModelConfig(),
		AnswerTimeout: cfg.Retrieval.AnswerTimeout,
	}, logger)

	return &appServices{
		cfg:       cfg,
		logger:    logger,
		assistant: assistant,
		discord:   services.NewDiscordService(cfg.Discord, assistant, logger),
	}, nil
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	var rt *appServices

	app := &cli.App{
		Name:    "queryrouter",
		Usage:   "Route queries to web search or an AI assistant",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"CONFIG_FILE"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "log-level", Usage: "Override the configured log level"},
			&cli.BoolFlag{Name: "pretty", Usage: "Human-readable logs"},
		},
		Before: func(c *cli.Context) error {
			bootLogger := utils.NewLogger("info", true)
			if err := utils.LoadEnvWithFallback(bootLogger); err != nil {
				return err
			}
			cfg, err := utils.LoadConfig(c.String("config"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if level := c.String("log-level"); level != "" {
				cfg.LogLevel = level
			}
			pretty := cfg.PrettyLogs || c.Bool("pretty")
			if !c.IsSet("pretty") && !cfg.IsProduction() && c.Args().First() == "serve" {
				pretty = true
			}
			logger := utils.NewLogger(cfg.LogLevel, pretty)

			rt, err = newAppServices(cfg, logger)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(&rt),
			classifyCmd(&rt),
			searchCmd(&rt),
			fetchCmd(&rt),
			askCmd(&rt),
		},
	}
	return app
}

// serveCmd runs the HTTP API and, when configured, the Discord bot.
func serveCmd(rt **appServices) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (overrides config)"},
			&cli.BoolFlag{Name: "discord", Value: true, Usage: "Start the Discord bot when a token is configured"},
		},
		Action: func(c *cli.Context) error {
			r := *rt
			port := r.cfg.Port
			if p := c.String("port"); p != "" {
				port = p
			}
			addr := ":" + strings.TrimPrefix(port, ":")

			controller := controllers.NewController(r.assistant, r.discord, r.logger)
			controller.AllowModelOverride(r.cfg.Model.AllowOverride)
			if err := controller.StartServices(c.Bool("discord")); err != nil {
				r.logger.Warn().Err(err).Msg("continuing without Discord")
			}
			defer controller.StopServices()

			server := &http.Server{
				Addr:              addr,
				Handler:           controller.Handler(r.cfg.CORSOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				r.logger.Info().Str("addr", addr).Str("environment", r.cfg.Environment).Msg("server starting")
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			r.logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func main() {
	if err := newCLIApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
