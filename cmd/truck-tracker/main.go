package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"

	"github.com/Bucknalla/go-truck-tracker/route"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

// options holds the command line configuration
type options struct {
	RouteFile   string
	Rate        time.Duration
	Lookahead   int
	SerialPort  string
	BaudRate    int
	GPXEnabled  bool
	GPXFile     string
	Quiet       bool
	ShowVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("truck-tracker", flag.ContinueOnError)

	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information and exit")
	fs.StringVar(&opts.RouteFile, "route", "", "Route file to play (.gpx, .yaml or .yml). Default is the built-in demo route")
	fs.DurationVar(&opts.Rate, "rate", time.Second, "Time between route points")
	fs.IntVar(&opts.Lookahead, "lookahead", 3, "Points before the end at which the near-arrival alert fires")
	fs.StringVar(&opts.SerialPort, "serial", "", "Serial port for NMEA output (e.g., /dev/ttyUSB0, COM1)")
	fs.IntVar(&opts.BaudRate, "baud", 9600, "Serial port baud rate")
	fs.BoolVar(&opts.GPXEnabled, "gpx", false, "Record the trip to a GPX file with timestamp-based filename")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Suppress info messages (only output NMEA data)")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(fs.Output(), "\nTruck Route Player\n")
		fmt.Fprintf(fs.Output(), "Drives a delivery truck along a route, one point per tick, and outputs NMEA sentences.\n\n")
		fmt.Fprintf(fs.Output(), "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.GPXEnabled {
		opts.GPXFile = fmt.Sprintf("%s.gpx", time.Now().Format("20060102_150405"))
	}
	return opts, nil
}

func (o options) validate() error {
	if o.Rate <= 0 {
		return errors.New("rate must be positive")
	}
	if o.Lookahead < 1 {
		return errors.New("lookahead must be at least 1")
	}
	if o.BaudRate <= 0 {
		return errors.New("baud rate must be positive")
	}
	return nil
}

func loadRoute(o options) (route.Route, error) {
	if o.RouteFile == "" {
		return route.DefaultRoute(), nil
	}
	return route.LoadRouteFile(o.RouteFile)
}

// run plays the route once, writing NMEA sentences to out and progress
// messages to info. It returns when the truck arrives or ctx is cancelled.
func run(ctx context.Context, o options, out, info io.Writer) error {
	r, err := loadRoute(o)
	if err != nil {
		return fmt.Errorf("load route: %w", err)
	}

	config := route.DefaultConfig()
	config.Interval = o.Rate
	config.NearArrivalSteps = o.Lookahead
	player, err := route.NewPlayer(config)
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}

	arrived := make(chan struct{})
	listeners := route.Listeners{route.NewNMEAWriter(out, r, o.Rate)}

	var gpxWriter *route.GPXWriter
	if o.GPXFile != "" {
		gpxWriter, err = route.NewGPXWriter(o.GPXFile)
		if err != nil {
			return fmt.Errorf("create GPX writer: %w", err)
		}
		defer gpxWriter.Close()
		listeners = append(listeners, route.NewTripRecorder(gpxWriter))
	}

	listeners = append(listeners, route.Callbacks{
		OnPosition: func(step route.Step) {
			if !o.Quiet {
				fmt.Fprintf(info, "Point %d/%d: %s (%.0f%%)\n", step.Index+1, len(r), step.Point, step.Progress*100)
			}
		},
		OnNearArrival: func() {
			if !o.Quiet {
				fmt.Fprintf(info, "Truck is arriving soon\n")
			}
		},
		OnArrived: func() {
			if !o.Quiet {
				fmt.Fprintf(info, "Truck arrived at %s\n", r[len(r)-1])
			}
			close(arrived)
		},
	})

	if err := player.Start(r, listeners); err != nil {
		return fmt.Errorf("start route: %w", err)
	}
	defer player.Stop()

	select {
	case <-arrived:
		return nil
	case <-ctx.Done():
		if !o.Quiet {
			fmt.Fprintf(info, "Stopped at point %d/%d\n", player.Cursor(), len(r))
		}
		return nil
	}
}

// openSerial opens the NMEA serial port. Tests replace it.
var openSerial = func(name string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(name, mode)
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

// realMain runs the command and returns its exit code, so deferred cleanup
// runs on every path
func realMain(args []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)

	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Handle version flag
	if opts.ShowVersion {
		if Version != "dev" {
			fmt.Fprintf(stdout, "v%s\n", Version)
		} else {
			fmt.Fprintf(stdout, "%s\n", Commit)
		}
		return 0
	}

	if err := opts.validate(); err != nil {
		logger.Print(err)
		return 1
	}

	// Setup output writer (serial port or stdout)
	nmeaWriter := stdout
	if opts.SerialPort != "" {
		mode := &serial.Mode{
			BaudRate: opts.BaudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}

		port, err := openSerial(opts.SerialPort, mode)
		if err != nil {
			logger.Printf("Failed to open serial port %s: %v", opts.SerialPort, err)
			return 1
		}
		defer port.Close()
		nmeaWriter = port

		if !opts.Quiet {
			fmt.Fprintf(stderr, "Opened serial port: %s at %d baud\n", opts.SerialPort, opts.BaudRate)
		}
	}

	// Log to stderr so it doesn't interfere with NMEA output
	if !opts.Quiet {
		fmt.Fprintf(stderr, "Starting truck route player...\n")
		if opts.RouteFile != "" {
			fmt.Fprintf(stderr, "Route file: %s\n", opts.RouteFile)
		} else {
			fmt.Fprintf(stderr, "Route: built-in demo route\n")
		}
		fmt.Fprintf(stderr, "Output rate: %v\n", opts.Rate)
		fmt.Fprintf(stderr, "Near-arrival lookahead: %d points\n", opts.Lookahead)
		if opts.SerialPort != "" {
			fmt.Fprintf(stderr, "NMEA output: %s (%d baud)\n", opts.SerialPort, opts.BaudRate)
		} else {
			fmt.Fprintf(stderr, "NMEA output: stdout\n")
		}
		if opts.GPXFile != "" {
			fmt.Fprintf(stderr, "GPX output: %s\n", opts.GPXFile)
		}
		fmt.Fprintf(stderr, "\nPress Ctrl+C to stop\n\n")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, nmeaWriter, stderr); err != nil {
		logger.Print(err)
		return 1
	}
	return 0
}
