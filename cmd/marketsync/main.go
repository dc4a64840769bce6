// Command marketsync runs sync processes once from the shell and performs
// operator tasks that have no place in the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/bootstrap"
	"github.com/marketsync/backend/internal/infrastructure/auth"
	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/infrastructure/scheduler"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(config.Load).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var connectionFlag = &cli.StringFlag{
	Name:  "connection",
	Value: "all",
	Usage: `connection id, or "all" for every active connection`,
}

// newApp builds the command tree. loadConfig is injected so tests can run
// commands without an environment.
func newApp(loadConfig func() (*config.Config, error)) *cli.App {
	jobCommand := func(name, usage string, jobType scheduler.JobType, extra ...cli.Flag) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Flags: append([]cli.Flag{connectionFlag}, extra...),
			Action: func(c *cli.Context) error {
				return runJob(c, loadConfig, jobType)
			},
		}
	}

	return &cli.App{
		Name:  "marketsync",
		Usage: "marketplace catalog and order sync operator tool",
		Commands: []*cli.Command{
			jobCommand("catalog-export", "build and upload the full catalog", scheduler.JobTypeCatalogExport),
			{
				Name:  "offer-export",
				Usage: "upload stock and price updates",
				Flags: []cli.Flag{
					connectionFlag,
					&cli.BoolFlag{Name: "queued", Usage: "only products queued by storefront changes"},
					&cli.IntFlag{Name: "limit", Usage: "queue entries per run (queued mode)"},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("queued") {
						return runJob(c, loadConfig, scheduler.JobTypeFullOfferExport)
					}
					return runJob(c, loadConfig, scheduler.JobTypeQueuedOfferExport)
				},
			},
			jobCommand("order-import", "import paid marketplace orders", scheduler.JobTypeOrderImport),
			jobCommand("shipment-export", "report shipped orders to the marketplace", scheduler.JobTypeShipmentExport,
				&cli.IntFlag{Name: "limit", Usage: "ledger rows per run"}),
			{
				Name:  "artifact-cleanup",
				Usage: "remove old export files from the temp directory",
				Action: func(c *cli.Context) error {
					return runJob(c, loadConfig, scheduler.JobTypeArtifactCleanup)
				},
			},
			{
				Name:      "reimport",
				Usage:     "release a marketplace order so the next import picks it up again",
				ArgsUsage: "<marketplace order number>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "also release orders that were imported successfully"},
				},
				Action: func(c *cli.Context) error {
					return reimport(c, loadConfig)
				},
			},
			{
				Name:  "token",
				Usage: "mint a bearer token for the admin API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Required: true, Usage: "operator the token is issued to"},
					&cli.StringFlag{Name: "scope", Value: auth.ScopeReadOnly, Usage: "comma separated scopes (admin, read)"},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime; zero uses the configured expiration"},
				},
				Action: func(c *cli.Context) error {
					return mintToken(c, loadConfig)
				},
			},
		},
	}
}

// runJob executes one job synchronously with the executor the server uses,
// then prints the job record.
func runJob(c *cli.Context, loadConfig func() (*config.Config, error), jobType scheduler.JobType) error {
	var connectionID *int64
	if c.IsSet(connectionFlag.Name) || jobType != scheduler.JobTypeArtifactCleanup {
		id, err := bootstrap.ParseConnectionID(c.String(connectionFlag.Name))
		if err != nil {
			return err
		}
		connectionID = id
	}

	cfg, log, err := setup(loadConfig)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if n := c.Int("limit"); n > 0 {
		switch jobType {
		case scheduler.JobTypeQueuedOfferExport:
			cfg.Export.OfferQueueSize = n
		case scheduler.JobTypeShipmentExport:
			cfg.Export.ShipmentQueueSize = n
		}
	}

	ctr, err := bootstrap.New(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer closeContainer(ctr, log)

	job := scheduler.NewJob(jobType, connectionID, scheduler.TriggerManual)
	job.Start()
	if err := ctr.NewExecutor().Execute(c.Context, job); err != nil {
		job.Fail(err.Error())
	} else {
		job.Complete()
	}

	if err := printJob(c.App.Writer, job.Snapshot()); err != nil {
		return err
	}
	if job.Status == scheduler.JobStatusFailed {
		return fmt.Errorf("job %s failed", job.Type)
	}
	return nil
}

func printJob(w io.Writer, job *scheduler.Job) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(job)
}

func reimport(c *cli.Context, loadConfig func() (*config.Config, error)) error {
	if c.NArg() != 1 {
		return fmt.Errorf("reimport needs exactly one marketplace order number")
	}
	number := c.Args().First()

	cfg, log, err := setup(loadConfig)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctr, err := bootstrap.New(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer closeContainer(ctr, log)

	if err := ctr.Imports.ForceReimport(c.Context, number, c.Bool("force")); err != nil {
		return err
	}
	log.Info("Order released for reimport", zap.String("remote_number", number))
	return nil
}

func mintToken(c *cli.Context, loadConfig func() (*config.Config, error)) error {
	scopes, err := parseScopes(c.String("scope"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := auth.NewJWTService(cfg.JWT).GenerateToken(c.String("subject"), scopes, c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token.AccessToken)
	fmt.Fprintln(c.App.ErrWriter, "expires", token.ExpiresAt.Format(time.RFC3339))
	return nil
}

func parseScopes(s string) ([]string, error) {
	var scopes []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		switch p {
		case "":
			continue
		case auth.ScopeAdmin, auth.ScopeReadOnly:
			scopes = append(scopes, p)
		default:
			return nil, fmt.Errorf("unknown scope %q", p)
		}
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	return scopes, nil
}

func setup(loadConfig func() (*config.Config, error)) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, log, nil
}

func closeContainer(c *bootstrap.Container, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		log.Error("Error releasing resources", zap.Error(err))
	}
}
