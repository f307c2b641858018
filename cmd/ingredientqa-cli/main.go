// Command ingredientqa-cli checks glossary pages against the ingredient
// workbook from a terminal or CI job.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yashubustudio/ingredientqa/internal/config"
	"yashubustudio/ingredientqa/internal/logging"
)

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitFailed = 2
)

// errRulesFailed marks a completed check with at least one failing rule.
var errRulesFailed = errors.New("one or more rules failed")

type cli struct {
	configPath string
	verbose    bool
	dataURL    string

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRulesFailed):
		return exitFailed
	default:
		fmt.Fprintf(stderr, "ingredientqa-cli: %v\n", err)
		return exitError
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "ingredientqa-cli",
		Short: "Ingredient glossary QA checks",
		Long: `Checks the ingredient glossary of a product page against the
ingredient workbook: removed and renamed names must be gone, only key
ingredients may be linked, and every key ingredient must be linked.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to config.yaml (default: $"+config.EnvPath+" or ./config.yaml)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&c.dataURL, "data-url", "", "Override the ingredient workbook URL or path")

	root.AddCommand(c.checkCmd(), c.localesCmd(), c.datasetCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.dataURL != "" {
		cfg.Data.URL = c.dataURL
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("--data-url: %w", err)
		}
	}
	logger, err := logging.New(cfg.LoggingOptions(c.verbose))
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger.Named("cli")
	return nil
}
