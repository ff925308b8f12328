package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/urfave/cli/v2"

	"github.com/SojoC/PPAM-WEB-APP/internal/analytics"
	"github.com/SojoC/PPAM-WEB-APP/internal/directory"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/engine"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/rebuild"
	"github.com/SojoC/PPAM-WEB-APP/pkg/config"
	"github.com/SojoC/PPAM-WEB-APP/pkg/database"
	"github.com/SojoC/PPAM-WEB-APP/pkg/kafka"
	"github.com/SojoC/PPAM-WEB-APP/pkg/logger"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "ppamctl",
		Usage:  "Administer the contact directory and its search index",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				EnvVars: []string{"PPAM_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create the directory and analytics tables",
				Action: migrateCommand,
			},
			{
				Name:   "seed",
				Usage:  "Import contacts from a CSV export",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "CSV file to import (default: directory.seedFile)",
					},
					&cli.StringFlag{
						Name:  "delimiter",
						Usage: "Field delimiter (default: directory.csvDelimiter)",
					},
					&cli.StringFlag{
						Name:  "encoding",
						Usage: "File encoding, utf8 or latin1 (default: directory.csvEncoding)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run a query against the directory",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full result as JSON",
					},
				},
			},
			{
				Name:   "rebuild",
				Usage:  "Ask running services to rebuild their vocabulary index",
				Action: rebuildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Call the rebuild endpoint of this service instead of publishing an event",
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Reason recorded with the rebuild",
						Value: "manual",
					},
				},
			},
			{
				Name:   "loadtest",
				Usage:  "Drive concurrent search traffic at a running service",
				Action: loadtestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Base URL of the search service",
						Value: "http://localhost:8080",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of concurrent workers",
						Value: 10,
					},
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "Test duration",
						Value: 30 * time.Second,
					},
					&cli.StringFlag{
						Name:  "queries",
						Usage: "File with one query per line",
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func connect(c *cli.Context) (*config.Config, *database.Client, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func migrateCommand(c *cli.Context) error {
	_, db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := directory.Migrate(c.Context, db.DB, db.Driver); err != nil {
		return err
	}
	if err := analytics.NewSnapshotStore(db).Migrate(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "migrated %s schema\n", db.Driver)
	return nil
}

func seedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	file := flagOr(c, "file", cfg.Directory.SeedFile)
	delimiter := flagOr(c, "delimiter", cfg.Directory.CSVDelimiter)
	delim, size := utf8.DecodeRuneInString(delimiter)
	if size == 0 || size != len(delimiter) {
		return fmt.Errorf("delimiter must be a single character, got %q", delimiter)
	}
	if file == "" {
		return fmt.Errorf("no seed file, pass --file or set directory.seedFile")
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := directory.Migrate(c.Context, db.DB, db.Driver); err != nil {
		return err
	}
	im := directory.NewImporter(db, directory.ImportOptions{
		Delimiter: delim,
		Encoding:  flagOr(c, "encoding", cfg.Directory.CSVEncoding),
	})
	stats, err := im.ImportFile(c.Context, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "rows=%d persons=%d existing=%d units=%d sub_areas=%d skipped=%d\n",
		stats.Rows, stats.Persons, stats.Existing, stats.Units, stats.SubAreas, stats.Skipped)

	if cfg.Kafka.Enabled && stats.Persons > 0 {
		return publishChange(c.Context, cfg, "seed")
	}
	return nil
}

// flagOr returns the named flag when it was given and def otherwise.
func flagOr(c *cli.Context, name, def string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return def
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")

	cfg, db, err := connect(c)
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(directory.NewSQLStore(db.DB), engine.OptionsFromConfig(cfg.Search), nil)
	if _, err := eng.Rebuild(c.Context); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: vocabulary unavailable, matching literally: %v\n", err)
	}
	result, err := eng.Search(c.Context, query)
	if err != nil {
		return err
	}
	return printResult(c.App.Writer, result, c.Bool("json"))
}

func printResult(w io.Writer, result *engine.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for _, corr := range result.Corrections {
		fmt.Fprintf(w, "~ %s -> %s (%s)\n", corr.Input, corr.Term, corr.Strategy)
	}
	for _, r := range result.Results {
		line := fmt.Sprintf("%-30s %-16s %-10s %s", r.Name, r.Phone, r.GroupingCode, r.UnitName)
		if len(r.RoleTags) > 0 {
			line += " [" + strings.Join(r.RoleTags, ", ") + "]"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	fmt.Fprintf(w, "%d result(s)\n", result.Total)
	return nil
}

func rebuildCommand(c *cli.Context) error {
	if url := c.String("url"); url != "" {
		return rebuildOverHTTP(c.Context, c.App.Writer, url)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka is disabled, pass --url to call a service directly")
	}
	if err := publishChange(c.Context, cfg, c.String("reason")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "published to %s\n", cfg.Kafka.Topics.DirectoryChanged)
	return nil
}

func publishChange(ctx context.Context, cfg *config.Config, reason string) error {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DirectoryChanged)
	defer producer.Close()
	return rebuild.Notify(ctx, producer, reason)
}

func rebuildOverHTTP(ctx context.Context, w io.Writer, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/v1/index/rebuild", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling rebuild: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rebuild failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Fprintln(w, strings.TrimSpace(string(body)))
	return nil
}
