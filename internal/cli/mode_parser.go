package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeTracking = "tracking-service"
	ModeDriver   = "driver-agent"
	ModeReporter = "background-reporter"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeTracking, "tracking", "t":
		return ModeTracking, true
	case ModeDriver, "driver", "d":
		return ModeDriver, true
	case ModeReporter, "reporter", "r":
		return ModeReporter, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `tracking-service --max-concurrent=500`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./bustrack --mode=<service> [flags]

Services (modes):
  tracking-service         Realtime tracking server: websocket hub, REST API, fanout
  driver-agent             Driver-side session that emits GPS samples for a trip
  background-reporter      One-shot REST location report from the persisted identity

Examples:
  ./bustrack --mode=tracking-service --max-concurrent=500
  ./bustrack --mode=driver-agent --server=ws://localhost:3000/ws --trip=<id> --bus=<id> --driver=<id> --token=<jwt>
  ./bustrack --mode=background-reporter --lat=41.31 --lng=69.28`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./bustrack --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
