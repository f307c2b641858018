package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yashubustudio/ingredientqa/ingredientqa"
	"yashubustudio/ingredientqa/internal/report"
)

func (c *cli) checkCmd() *cobra.Command {
	var (
		locale   string
		pageURL  string
		pageFile string
		browser  bool
		format   string
		hints    bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check one glossary page for a locale",
		Long: `Downloads the workbook and reads the page concurrently, then applies the
four glossary rules. Exits 0 when every rule passes and 2 when any fails.`,
		Example: `  ingredientqa-cli check --locale fr --page-url https://example.com/fr/serum
  ingredientqa-cli check --locale es --page-file saved.html --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := parseSelectable(locale)
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("page-url") || cmd.Flags().Changed("page-file") {
				c.cfg.Page.URL = pageURL
				c.cfg.Page.File = pageFile
			}
			if cmd.Flags().Changed("browser") {
				c.cfg.Page.Browser = browser
			}
			if cmd.Flags().Changed("hints") {
				c.cfg.Hints.Enabled = hints
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			src, err := c.cfg.MentionSource(c.logger)
			if err != nil {
				return err
			}
			mgr, closeFn, err := c.cfg.Session(c.logger)
			if err != nil {
				return fmt.Errorf("init hints: %w", err)
			}
			defer closeFn()

			r, err := mgr.Run(cmd.Context(), l, src)
			if err != nil {
				return err
			}
			if err := report.Write(c.stdout, f, r); err != nil {
				return err
			}
			if !r.Passed {
				return errRulesFailed
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&locale, "locale", "l", "", "Locale code, e.g. fr or INT")
	flags.StringVar(&pageURL, "page-url", "", "URL of the page to check")
	flags.StringVar(&pageFile, "page-file", "", "Saved HTML page to check")
	flags.BoolVar(&browser, "browser", false, "Render --page-url in Chrome before reading links")
	flags.StringVarP(&format, "format", "o", string(report.FormatText), "Output format: text, markdown, json or yaml")
	flags.BoolVar(&hints, "hints", false, "Suggest the closest allowed name for each failure")
	_ = cmd.MarkFlagRequired("locale")
	cmd.MarkFlagsMutuallyExclusive("page-url", "page-file")
	return cmd
}

func (c *cli) localesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: "List the locales that can be checked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeFn, err := c.cfg.Session(c.logger)
			if err != nil {
				return err
			}
			defer closeFn()
			if _, err := mgr.Reload(cmd.Context()); err != nil {
				return err
			}
			for _, l := range mgr.Locales() {
				fmt.Fprintln(c.stdout, l.Label())
			}
			return nil
		},
	}
}

// datasetView is the merged rule input for one locale.
type datasetView struct {
	Locale   ingredientqa.Locale `json:"locale" yaml:"locale"`
	Key      []string            `json:"key" yaml:"key"`
	OldNames []string            `json:"old_names" yaml:"old_names"`
	Removed  []string            `json:"removed" yaml:"removed"`
	Allowed  int                 `json:"allowed" yaml:"allowed"`
}

func (c *cli) datasetCmd() *cobra.Command {
	var (
		locale string
		format string
	)
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Show the ingredient lists a locale is checked against",
		Long: `Prints the key ingredients of a locale and its old and removed names,
merged with the INT lists exactly as the rules see them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := parseSelectable(locale)
			if err != nil {
				return err
			}
			mgr, closeFn, err := c.cfg.Session(c.logger)
			if err != nil {
				return err
			}
			defer closeFn()
			corpus, err := mgr.Reload(cmd.Context())
			if err != nil {
				return err
			}
			view, err := buildDatasetView(corpus, l)
			if err != nil {
				return err
			}
			c.logger.Debug("dataset resolved", zap.String("locale", l.Code()), zap.Int("key", len(view.Key)))
			return writeDataset(c, format, view)
		},
	}
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale code, e.g. fr or INT")
	cmd.Flags().StringVarP(&format, "format", "o", "text", "Output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("locale")
	return cmd
}

func buildDatasetView(corpus *ingredientqa.Corpus, l ingredientqa.Locale) (datasetView, error) {
	if !ingredientqa.Selectable(corpus, l) {
		return datasetView{}, fmt.Errorf("%w: %s has no key ingredients", ingredientqa.ErrLocaleNotFound, l.Code())
	}
	key, err := corpus.KeyIngredients(l)
	if err != nil {
		return datasetView{}, err
	}
	old, err := corpus.OldNamesSet(l)
	if err != nil {
		return datasetView{}, err
	}
	removed, err := corpus.RemovedSet(l)
	if err != nil {
		return datasetView{}, err
	}
	allowed, err := corpus.AllowedSet(l)
	if err != nil {
		return datasetView{}, err
	}
	return datasetView{
		Locale:   l,
		Key:      key,
		OldNames: old.DisplayNames(),
		Removed:  removed.DisplayNames(),
		Allowed:  allowed.Len(),
	}, nil
}

func writeDataset(c *cli, format string, view datasetView) error {
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case report.FormatJSON:
		return report.EncodeJSON(c.stdout, view)
	case report.FormatYAML:
		return report.EncodeYAML(c.stdout, view)
	case report.FormatMarkdown:
		return fmt.Errorf("dataset does not support %s output", f)
	}
	fmt.Fprintf(c.stdout, "%s (%d allowed names)\n", view.Locale.Label(), view.Allowed)
	section := func(title string, names []string) {
		fmt.Fprintf(c.stdout, "\n%s (%d)\n", title, len(names))
		for _, n := range names {
			fmt.Fprintf(c.stdout, "  %s\n", n)
		}
	}
	section("Key ingredients", view.Key)
	section("Old names", view.OldNames)
	section("Removed", view.Removed)
	return nil
}

func parseSelectable(code string) (ingredientqa.Locale, error) {
	l, ok := ingredientqa.ParseLocale(code)
	if !ok || l.IsUniversal() {
		return 0, fmt.Errorf("%w: %q", ingredientqa.ErrLocaleNotFound, strings.TrimSpace(code))
	}
	return l, nil
}
