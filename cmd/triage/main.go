// Command triage runs the triage engine from a terminal: an interactive chat,
// a one-shot assessment, and catalog validation.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/wolfman30/mindbridge-triage/cmd/mainconfig"
	"github.com/wolfman30/mindbridge-triage/internal/app/bootstrap"
	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	appconfig "github.com/wolfman30/mindbridge-triage/internal/config"
	"github.com/wolfman30/mindbridge-triage/internal/conversation"
	"github.com/wolfman30/mindbridge-triage/internal/triage"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// Global flags.
var (
	catalogDir string
	logLevel   string
	generate   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "triage",
		Short:        "Student wellness triage from the command line",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&catalogDir, "catalog-dir", "", "load catalog YAML from this directory instead of the embedded catalog")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&generate, "generate", false, "use the configured LLM provider for reply narratives")

	root.AddCommand(newChatCmd(), newAssessCmd(), newCatalogCmd())
	return root
}

// stack is the engine shared by chat and assess.
type stack struct {
	manager *conversation.Manager
	closer  io.Closer
}

func (r *stack) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func buildStack(ctx context.Context, stderr io.Writer) (*stack, error) {
	logger := logging.NewWithWriter(logLevel, stderr)

	cat, err := loadCatalog(catalogDir)
	if err != nil {
		return nil, err
	}

	mainconfig.LoadEnv()
	cfg := appconfig.Load()
	rt := &stack{}

	var gen conversation.ReplyGenerator
	if generate {
		var awsCfg *aws.Config
		if mainconfig.NeedsAWS(cfg) {
			loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("triage: load aws config: %w", err)
			}
			awsCfg = &loaded
		}
		client, closer, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
		if err != nil {
			return nil, err
		}
		rt.closer = closer
		gen = bootstrap.BuildReplyGenerator(cfg, client)
		if gen == nil {
			logger.Warn("no LLM provider configured; using template replies")
		}
	}

	engine := triage.NewEngine(cat, triage.EngineConfig{
		MaxResults: cfg.MaxResults,
		MinScore:   cfg.MinScenarioScore,
	}, logger)
	rt.manager = conversation.NewManager(engine, logger,
		conversation.WithMaxTurns(cfg.MaxTurns),
		conversation.WithComposer(conversation.NewComposer(gen, cfg.ReplyTimeout, logger, nil)),
	)
	return rt, nil
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("triage: load embedded catalog: %w", err)
		}
		return cat, nil
	}
	cat, err := catalog.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("triage: load catalog from %s: %w", dir, err)
	}
	return cat, nil
}
