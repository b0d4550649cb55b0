// Command twinsim runs a simulated fleet of digital twins.
//
// The fleet is updated in the background and its forecast alerts are logged
// every update interval. Optionally, the state of the fleet is broadcast to a
// pubsub topic (-topic) and mirrored into a Neo4j database (-neo4j-uri).
//
// Every flag may also be set through an environment variable prefixed with
// TWINSIM_, e.g. TWINSIM_INTERVAL=10s.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/peterbourgon/ff/v3"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	"golang.org/x/sync/errgroup"

	"github.com/go-digitaltwin/twinfleet"
	"github.com/go-digitaltwin/twinfleet/neo4jmirror"
)

type options struct {
	fleet    twinfleet.Config
	logLevel slog.Level

	topicURL string

	neo4jURI      string
	neo4jUser     string
	neo4jPassword string
	neo4jDatabase string
}

func parseOptions(args []string) (options, error) {
	def := twinfleet.DefaultConfig()
	o := options{fleet: def}

	fs := flag.NewFlagSet("twinsim", flag.ContinueOnError)
	fs.IntVar(&o.fleet.NumTwins, "twins", def.NumTwins, "number of simulated twins")
	fs.IntVar(&o.fleet.HistoryLen, "history", def.HistoryLen, "number of samples kept per metric")
	fs.DurationVar(&o.fleet.UpdateInterval, "interval", def.UpdateInterval, "period between two updates of the fleet")
	fs.DurationVar(&o.fleet.StopTimeout, "stop-timeout", def.StopTimeout, "how long to wait for the update engine on shutdown")
	fs.Uint64Var(&o.fleet.Seed, "seed", 0, "seed of the simulation noise (0 picks a random seed)")
	logLevel := fs.String("log-level", "info", "minimal level of logged records (debug, info, warn, error)")
	fs.StringVar(&o.topicURL, "topic", "", "pubsub URL to broadcast telemetry to, e.g. mem://twins")
	fs.StringVar(&o.neo4jURI, "neo4j-uri", "", "bolt URI of a Neo4j server to mirror the fleet into")
	fs.StringVar(&o.neo4jUser, "neo4j-user", "", "Neo4j user (empty for no authentication)")
	fs.StringVar(&o.neo4jPassword, "neo4j-password", "", "Neo4j password")
	fs.StringVar(&o.neo4jDatabase, "neo4j-database", "twins", "Neo4j database holding the mirror")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("TWINSIM")); err != nil {
		return options{}, err
	}
	if err := o.logLevel.UnmarshalText([]byte(*logLevel)); err != nil {
		return options{}, fmt.Errorf("parse log level: %w", err)
	}
	if err := o.fleet.Validate(); err != nil {
		return options{}, err
	}
	return o, nil
}

func main() {
	o, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "twinsim:", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: o.logLevel}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = component.InjectLogger(ctx, logger)

	if err := run(ctx, o); err != nil {
		logger.Error("Fleet simulator failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// run simulates the fleet until ctx is done.
func run(ctx context.Context, o options) error {
	logger := component.Logger(ctx)

	sim, err := twinfleet.NewSimulator(o.fleet)
	if err != nil {
		return fmt.Errorf("create simulator: %w", err)
	}

	var topic *pubsub.Topic
	if o.topicURL != "" {
		topic, err = pubsub.OpenTopic(ctx, o.topicURL)
		if err != nil {
			return fmt.Errorf("open topic %q: %w", o.topicURL, err)
		}
		defer func() {
			if err := topic.Shutdown(context.Background()); err != nil {
				logger.Error("Failed to shut down topic", slog.Any("error", err))
			}
		}()
	}

	var driver neo4j.DriverWithContext
	if o.neo4jURI != "" {
		driver, err = openNeo4j(ctx, o)
		if err != nil {
			return err
		}
		defer func() {
			if err := driver.Close(context.Background()); err != nil {
				logger.Error("Failed to close neo4j driver", slog.Any("error", err))
			}
		}()
	}

	sim.Start(ctx)
	defer func() {
		if err := sim.Stop(); err != nil {
			logger.Warn("Update engine did not stop gracefully", slog.Any("error", err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reportAlerts(ctx, sim, o.fleet.UpdateInterval)
		return nil
	})
	if topic != nil {
		p := twinfleet.NewPublisher(sim, topic)
		g.Go(func() error {
			p.Run(ctx, o.fleet.UpdateInterval)
			return nil
		})
		logger.Info("Broadcasting fleet telemetry", slog.String("topic", o.topicURL))
	}
	if driver != nil {
		m := neo4jmirror.NewMirror(driver, o.neo4jDatabase)
		g.Go(func() error {
			m.Run(ctx, sim, o.fleet.UpdateInterval)
			return nil
		})
		logger.Info("Mirroring fleet", slog.String("neo4j.uri", o.neo4jURI), slog.String("neo4j.database", o.neo4jDatabase))
	}
	return g.Wait()
}

func openNeo4j(ctx context.Context, o options) (neo4j.DriverWithContext, error) {
	auth := neo4j.NoAuth()
	if o.neo4jUser != "" {
		auth = neo4j.BasicAuth(o.neo4jUser, o.neo4jPassword, "")
	}
	driver, err := neo4j.NewDriverWithContext(o.neo4jURI, auth)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	if err := neo4jmirror.BootstrapDatabase(ctx, driver, o.neo4jDatabase); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return driver, nil
}

// reportAlerts forecasts every twin of fleet each interval and logs the raised
// alerts, until ctx is done.
func reportAlerts(ctx context.Context, fleet twinfleet.Fleet, every time.Duration) {
	logger := component.Logger(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var alerts int
		for _, v := range fleet.Snapshot(ctx) {
			p, err := fleet.Forecast(ctx, v.ID)
			if err != nil {
				logger.Error("Couldn't forecast twin", slog.String("twin.id", v.ID), slog.Any("error", err))
				continue
			}
			twinLogger := logger.With(slog.String("twin.id", p.ID), slog.String("twin.name", p.Name))
			for _, a := range p.Alerts {
				twinLogger.Warn(a.Message,
					slog.String("metric", a.Metric),
					slog.String("type", string(a.Type)),
					slog.Float64("value", a.Value),
					slog.Int("in-seconds", a.InSeconds),
				)
			}
			alerts += len(p.Alerts)
		}
		logger.Info("Fleet forecast evaluated", slog.Int("alerts", alerts))
	}
}
