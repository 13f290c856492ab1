package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"time"

	"file-qa/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const configFilePath = "./configs/config.yaml"

type app struct {
	configPath string
	debug      bool
	cfg        *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "fileqa",
		Short:         "Ask questions about a document",
		Long:          "fileqa splits a pdf, docx, txt or md document into chunks, stores their embeddings in a vector store and answers questions with a hosted chat model using the most relevant chunks.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(a.debug)
			return a.loadConfig()
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", configFilePath, "path to the config file")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newIngestCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newCheckKeyCmd(a),
	)
	return cmd
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// loadConfig reads .env and the config file. A missing file at the default
// location falls back to built-in defaults.
func (a *app) loadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Error loading .env")
	}

	cfg, err := config.LoadConfig(a.configPath)
	if errors.Is(err, fs.ErrNotExist) && a.configPath == configFilePath {
		log.Warn().Str("path", a.configPath).Msg("Config file not found, using defaults")
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	log.Debug().Str("store", cfg.VectorStore.Type).Str("embed_provider", cfg.EmbedLLM.Provider).
		Str("model", cfg.LLM.Model).Msg("Loaded config")
	return nil
}
