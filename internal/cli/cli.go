// Package cli implements the recipeimport command line tool. It runs the same
// import pipeline as the HTTP server against local files, URLs and catalogs.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/internal/infrastructure/catalog"
	"github.com/recipebox/backend/internal/infrastructure/fetcher"
	"github.com/recipebox/backend/internal/infrastructure/store"
	"github.com/recipebox/backend/internal/usecase"
	"github.com/recipebox/backend/pkg/logger"
)

const (
	name    = "recipeimport"
	version = "1.0.0"
)

// globalFlags are built per command tree since cli flags carry parse state
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "catalog",
			Aliases: []string{"c"},
			Usage:   "YAML ingredient catalog used for matching",
			Sources: cli.EnvVars("RECIPEBOX_CATALOG_PATH"),
		},
		&cli.StringFlag{
			Name:    "db",
			Usage:   "SQLite store; used as the catalog when --catalog is not set",
			Sources: cli.EnvVars("RECIPEBOX_STORE_PATH"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "json",
			Usage:   "output format (json, yaml)",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "warn",
			Usage:   "log level (debug, info, warn, error)",
			Sources: cli.EnvVars("RECIPEBOX_LOG_LEVEL"),
		},
		&cli.Float64Flag{
			Name:  "partial-threshold",
			Value: 0.5,
			Usage: "minimum length ratio for a partial ingredient match",
		},
	}
}

// Execute runs the tool with os.Args and exits non-zero on failure
func Execute() {
	if err := NewCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewCommand builds the root command
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:    name,
		Version: version,
		Usage:   "Import recipes from pages, text and export archives",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			parseCmd(),
			archiveCmd(),
			fetchCmd(),
			matchCmd(),
			convertCmd(),
			seedCmd(),
		},
	}
}

func parseCmd() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a flat-text recipe file (- for stdin)",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   string(usecase.FormatAuto),
				Usage:   fmt.Sprintf("text dialect (supported values: %s)", usecase.SupportedTextFormats()),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := usecase.ParseTextFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}

			return withService(cmd, func(svc *usecase.ImportService) error {
				result, err := svc.ImportText(ctx, string(data), format)
				if err != nil {
					return err
				}
				return writeOutput(cmd, result)
			})
		},
	}
}

func archiveCmd() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Import every recipe in an export archive (zip, gzip or JSON)",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			data, err := readInput(cmd)
			if err != nil {
				return err
			}

			return withService(cmd, func(svc *usecase.ImportService) error {
				results, err := svc.ImportArchive(ctx, data)
				if err != nil {
					return err
				}
				return writeOutput(cmd, results)
			})
		},
	}
}

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a recipe page and extract the recipe",
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			pageURL := cmd.Args().First()
			if pageURL == "" {
				return errors.New("a URL argument is required")
			}

			return withService(cmd, func(svc *usecase.ImportService) error {
				result, err := svc.ImportURL(ctx, pageURL)
				if err != nil {
					return err
				}
				return writeOutput(cmd, result)
			})
		},
	}
}

func matchCmd() *cli.Command {
	return &cli.Command{
		Name:      "match",
		Usage:     "Match ingredient lines against the catalog",
		ArgsUsage: "LINE...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			lines := cmd.Args().Slice()
			if len(lines) == 0 {
				return errors.New("at least one ingredient line is required")
			}

			return withService(cmd, func(svc *usecase.ImportService) error {
				report, err := svc.MatchLines(ctx, lines)
				if err != nil {
					return err
				}
				return writeOutput(cmd, report)
			})
		},
	}
}

func convertCmd() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Parse a flat-text recipe and render it in another dialect",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Value: string(usecase.FormatAuto),
				Usage: "source dialect",
			},
			&cli.StringFlag{
				Name:     "to",
				Required: true,
				Usage:    "target dialect (meal-master, paprika, generic)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			from, err := usecase.ParseTextFormat(cmd.String("from"))
			if err != nil {
				return err
			}
			to, err := usecase.ParseTextFormat(cmd.String("to"))
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}

			parser := usecase.NewTextParser(newLogger(cmd))
			results := parser.ParseAll(string(data), from)
			var out strings.Builder
			for _, result := range results {
				if !result.Found() {
					return fmt.Errorf("no recipe found: %s", result.Hint)
				}
				text, err := usecase.RenderText(result.Recipe, to)
				if err != nil {
					return err
				}
				out.WriteString(text)
			}
			_, err = io.WriteString(writer(cmd), out.String())
			return err
		},
	}
}

func seedCmd() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load a YAML catalog into the SQLite store",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			catalogPath, dbPath := cmd.String("catalog"), cmd.String("db")
			if catalogPath == "" || dbPath == "" {
				return errors.New("seed needs both --catalog and --db")
			}

			fc, err := catalog.NewFileCatalog(catalogPath)
			if err != nil {
				return err
			}
			ingredients, err := fc.ListIngredients(ctx)
			if err != nil {
				return err
			}
			aliases, err := fc.ListAliases(ctx)
			if err != nil {
				return err
			}

			db, err := store.Open(dbPath, newLogger(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.SeedCatalog(ctx, &domain.Catalog{Ingredients: ingredients, Aliases: aliases}); err != nil {
				return err
			}
			_, err = fmt.Fprintf(writer(cmd), "seeded %d ingredients and %d aliases into %s\n",
				len(ingredients), len(aliases), dbPath)
			return err
		},
	}
}

// withService opens the configured catalog and store for the duration of fn
func withService(cmd *cli.Command, fn func(*usecase.ImportService) error) error {
	log := newLogger(cmd)

	var ingredients domain.IngredientCatalog
	var recipes domain.RecipeRepository

	if path := cmd.String("catalog"); path != "" {
		fc, err := catalog.NewFileCatalog(path)
		if err != nil {
			return err
		}
		ingredients = fc
	}
	if path := cmd.String("db"); path != "" {
		db, err := store.Open(path, log)
		if err != nil {
			return err
		}
		defer db.Close()
		recipes = db
		if ingredients == nil {
			ingredients = db
		}
	}

	svc := usecase.NewImportService(
		nil,
		fetcher.NewClient(fetcher.Config{Timeout: cmd.Duration("timeout"), Logger: log}),
		ingredients,
		recipes,
		usecase.ImportServiceConfig{
			PartialThreshold: cmd.Float64("partial-threshold"),
			Logger:           log,
		},
	)
	return fn(svc)
}

func newLogger(cmd *cli.Command) *zap.Logger {
	log, err := logger.New(logger.Config{Level: cmd.String("log-level"), Format: "console"})
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// readInput reads the first argument as a file, or stdin for "-"
func readInput(cmd *cli.Command) ([]byte, error) {
	path := cmd.Args().First()
	switch path {
	case "":
		return nil, errors.New("a FILE argument is required (- for stdin)")
	case "-":
		reader := cmd.Root().Reader
		if reader == nil {
			reader = os.Stdin
		}
		return io.ReadAll(reader)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return data, nil
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// writeOutput serializes v in the --output format
func writeOutput(cmd *cli.Command, v any) error {
	w := writer(cmd)
	switch format := cmd.String("output"); format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format: %q", format)
	}
}
