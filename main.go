package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	driveragent "bustrack/cmd/driver_agent"
	reporter "bustrack/cmd/reporter"
	trackingservice "bustrack/cmd/tracking_service"
	"bustrack/internal/cli"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {

	case cli.ModeTracking:
		fs := flag.NewFlagSet(cli.ModeTracking, flag.ContinueOnError)
		configPath := fs.String("config", "./config/config.yaml", "Path to the YAML configuration file")
		maxConc := fs.Int("max-concurrent", 500, "Maximum number of concurrent HTTP requests and websocket connections")
		cli.AttachUsage(fs, cli.ModeTracking)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := trackingservice.Run(ctx, *configPath, *maxConc); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeDriver:
		fs := flag.NewFlagSet(cli.ModeDriver, flag.ContinueOnError)
		server := fs.String("server", "ws://localhost:3000/ws", "Tracking server websocket URL")
		token := fs.String("token", os.Getenv("BUSTRACK_TOKEN"), "Driver JWT (defaults to BUSTRACK_TOKEN)")
		tripID := fs.String("trip", "", "Active trip ID")
		busID := fs.String("bus", "", "Bus ID")
		driverID := fs.String("driver", "", "Driver ID")
		storePath := fs.String("store", defaultStorePath(), "Path to the persisted identity store")
		interval := fs.Duration("interval", 5*time.Second, "Sample emission interval")
		cli.AttachUsage(fs, cli.ModeDriver)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if err := driveragent.Run(ctx, driveragent.AgentConfig{
			ServerURL: *server,
			Token:     *token,
			TripID:    *tripID,
			BusID:     *busID,
			DriverID:  *driverID,
			StorePath: *storePath,
			Interval:  *interval,
		}); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeReporter:
		fs := flag.NewFlagSet(cli.ModeReporter, flag.ContinueOnError)
		server := fs.String("server", "http://localhost:3000", "Tracking server base URL")
		storePath := fs.String("store", defaultStorePath(), "Path to the persisted identity store")
		lat := fs.Float64("lat", 0, "Latitude of the sample")
		lng := fs.Float64("lng", 0, "Longitude of the sample")
		speed := fs.Float64("speed", 0, "Speed in m/s as reported by the GPS")
		heading := fs.Float64("heading", 0, "Heading in degrees")
		cli.AttachUsage(fs, cli.ModeReporter)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if err := reporter.Run(ctx, *storePath, *server, *lat, *lng, *speed, *heading); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./bustrack-identity.json"
	}
	return home + "/.bustrack/identity.json"
}
