package ordextract

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/socheatsok78/ordextract/txsource"
	"github.com/urfave/cli/v3"
)

var (
	Name                = "ordextract"
	Version             = "dev"
	HttpHeaderUserAgent = Name + "/" + Version
)

type Config struct {
	LoggingLevel string
	UseNode      bool
	Source       txsource.Config

	OutputDir  string
	OutputName string

	ListenAddress            string
	AccessControlAllowOrigin []string
	SentryDSN                string
}

// source returns the transaction source configuration with the mode and
// logger resolved from the command line.
func (c *Config) source() txsource.Config {
	cfg := c.Source
	cfg.UsePublicAPI = !c.UseNode
	cfg.Logger = logger
	return cfg
}

func Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return NewCommand().Run(ctx, os.Args)
}

// NewCommand builds the command line interface with a fresh configuration.
func NewCommand() *cli.Command {
	cfg := &Config{Source: txsource.DefaultConfig()}

	return &cli.Command{
		Name:    Name,
		Usage:   "Extract ordinal inscriptions from Bitcoin transactions",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Set the log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("ORDEXTRACT_LOG_LEVEL"),
				Destination: &cfg.LoggingLevel,
			},
			&cli.BoolFlag{
				Name:        "use-node",
				Usage:       "Read transactions from a local bitcoind instead of the public APIs",
				Sources:     cli.EnvVars("ORDEXTRACT_USE_NODE"),
				Destination: &cfg.UseNode,
			},
			&cli.StringFlag{
				Name:        "public-api",
				Usage:       "The primary Esplora API endpoint",
				Value:       txsource.DefaultPublicEndpoint,
				Sources:     cli.EnvVars("ORDEXTRACT_PUBLIC_API"),
				Destination: &cfg.Source.PublicEndpoint,
				Validator:   validateEndpoint,
			},
			&cli.StringFlag{
				Name:        "fallback-api",
				Usage:       "The Esplora API endpoint used when the primary one fails",
				Value:       txsource.DefaultFallbackEndpoint,
				Sources:     cli.EnvVars("ORDEXTRACT_FALLBACK_API"),
				Destination: &cfg.Source.FallbackEndpoint,
				Validator:   validateEndpoint,
			},
			&cli.StringFlag{
				Name:        "rpc-host",
				Usage:       "The bitcoind RPC address",
				Value:       txsource.DefaultNodeHost,
				Sources:     cli.EnvVars("ORDEXTRACT_RPC_HOST"),
				Destination: &cfg.Source.NodeHost,
			},
			&cli.StringFlag{
				Name:        "rpc-user",
				Usage:       "The bitcoind RPC user",
				Sources:     cli.EnvVars("ORDEXTRACT_RPC_USER"),
				Destination: &cfg.Source.NodeUser,
			},
			&cli.StringFlag{
				Name:        "rpc-pass",
				Usage:       "The bitcoind RPC password",
				Sources:     cli.EnvVars("ORDEXTRACT_RPC_PASS"),
				Destination: &cfg.Source.NodePass,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "Timeout of a single request to a transaction source",
				Value:       txsource.DefaultTimeout,
				Sources:     cli.EnvVars("ORDEXTRACT_TIMEOUT"),
				Destination: &cfg.Source.Timeout,
			},
		},
		Commands: []*cli.Command{
			extractCommand(cfg),
			decodeCommand(cfg),
			annotateCommand(cfg),
			encodeCommand(cfg),
			transactionCommand(cfg),
			blockCommand(cfg),
			chainInfoCommand(cfg),
			serveCommand(cfg),
		},
	}
}

func validateEndpoint(s string) error {
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint: %s", s)
	}
	return nil
}

// setup applies the global flags before a subcommand runs.
func setup(cfg *Config) {
	logger = newLogger(os.Stderr, cfg.LoggingLevel)
}

// withTimeout bounds one whole fetch including retries and fallbacks.
func withTimeout(ctx context.Context, cfg *Config) (context.Context, context.CancelFunc) {
	per := cfg.Source.Timeout
	if per <= 0 {
		per = txsource.DefaultTimeout
	}
	return context.WithTimeout(ctx, 4*per*time.Duration(cfg.Source.Retries+1))
}
