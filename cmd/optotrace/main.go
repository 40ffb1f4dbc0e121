// Command optotrace inspects protocol capture files written by the console
// adapter's trace recorder.
//
// Usage:
//
//	optotrace <command> [flags] <file>
//
// Commands:
//
//	view     Print capture events in a human-readable line format
//	stats    Show summary statistics for a capture file
//
// Examples:
//
//	# View all events
//	optotrace view session.capture
//
//	# View only acknowledgement lines of one connection
//	optotrace view -conn 2f9f0c7e -kind ack session.capture
//
//	# View everything the controller sent back during a time window
//	optotrace view -dir in -since 2026-08-21T09:00:00Z -until 2026-08-21T09:05:00Z session.capture
//
//	# Summarize a capture
//	optotrace stats session.capture
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/photonio/go-optocon/trace"
)

const usage = `optotrace - console protocol capture inspector

Usage:
  optotrace <command> [flags] <file>

Commands:
  view     Print capture events in a human-readable line format
  stats    Show summary statistics for a capture file

Use "optotrace <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `optotrace view - Print capture events in a human-readable line format

Usage:
  optotrace view [flags] <file>

Flags:
`)
		fs.PrintDefaults()
	}

	conn := fs.String("conn", "", "Filter by connection ID (prefix match)")
	port := fs.String("port", "", "Filter by port name")
	kind := fs.String("kind", "", "Filter by event kind (command, echo, data, ack, flush, state, error)")
	dir := fs.String("dir", "", "Filter by direction (in, out)")
	since := fs.String("since", "", "Only events at or after this time (RFC3339)")
	until := fs.String("until", "", "Only events before this time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter := trace.Filter{Port: *port}

	if *kind != "" {
		k, ok := trace.ParseKind(*kind)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: invalid kind: %s (must be command, echo, data, ack, flush, state, or error)\n", *kind)
			os.Exit(1)
		}
		filter.Kind = &k
	}

	if *dir != "" {
		d, err := parseDirectionFlag(*dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Direction = &d
	}

	if *since != "" {
		t, err := parseTimeFlag(*since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -since: %v\n", err)
			os.Exit(1)
		}
		filter.TimeStart = &t
	}

	if *until != "" {
		t, err := parseTimeFlag(*until)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -until: %v\n", err)
			os.Exit(1)
		}
		filter.TimeEnd = &t
	}

	if err := view(fs.Arg(0), filter, *conn, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// view streams matching events from the capture file to w. Connection
// filtering happens here rather than in the trace filter so a shortened ID
// prefix, as printed by view itself, can be pasted back in.
func view(path string, filter trace.Filter, connPrefix string, w io.Writer) error {
	reader, err := trace.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("opening capture file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading event: %w", err)
		}

		if connPrefix != "" && !strings.HasPrefix(event.ConnectionID, connPrefix) {
			continue
		}

		formatEvent(w, event)
	}

	return nil
}

// formatEvent writes one event as a single line:
//
//	2026-08-21T09:00:00.000000Z [conn:2f9f0c7e] OUT COMMAND "power set 10.0"
func formatEvent(w io.Writer, event trace.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [conn:%s] %-3s %-7s",
		ts, shortenConnID(event.ConnectionID), event.Direction, event.Kind)

	switch event.Kind {
	case trace.KindFlush:
		if event.Command != "" {
			fmt.Fprintf(w, " after %q", event.Command)
		}
	case trace.KindState, trace.KindError:
		fmt.Fprintf(w, " %s", event.Message)
	default:
		fmt.Fprintf(w, " %q", event.Line)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func parseDirectionFlag(s string) (trace.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return trace.DirectionIn, nil
	case "out":
		return trace.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

func parseTimeFlag(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `optotrace stats - Show summary statistics for a capture file

Usage:
  optotrace stats <file>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := stats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// connStats aggregates per-connection counters for the stats command.
type connStats struct {
	firstSeen time.Time
	lastSeen  time.Time
	port      string
	events    int
	commands  int
	errors    int
}

func stats(path string, w io.Writer) error {
	reader, err := trace.NewReader(path)
	if err != nil {
		return fmt.Errorf("opening capture file: %w", err)
	}
	defer reader.Close()

	var (
		total       int
		totalErrors int
		start, end  time.Time
		byKind      = make(map[trace.Kind]int)
		byDirection = make(map[trace.Direction]int)
		conns       = make(map[string]*connStats)
	)

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading event: %w", err)
		}

		total++
		byKind[event.Kind]++
		byDirection[event.Direction]++

		if start.IsZero() || event.Timestamp.Before(start) {
			start = event.Timestamp
		}
		if event.Timestamp.After(end) {
			end = event.Timestamp
		}

		conn, ok := conns[event.ConnectionID]
		if !ok {
			conn = &connStats{firstSeen: event.Timestamp, lastSeen: event.Timestamp}
			conns[event.ConnectionID] = conn
		}
		conn.events++
		if event.Timestamp.After(conn.lastSeen) {
			conn.lastSeen = event.Timestamp
		}
		if event.Port != "" && conn.port == "" {
			conn.port = event.Port
		}

		switch event.Kind {
		case trace.KindCommand:
			conn.commands++
		case trace.KindError:
			conn.errors++
			totalErrors++
		}
	}

	fmt.Fprintln(w, "=== Console Capture Statistics ===")
	fmt.Fprintln(w)

	if total > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", start.Format(time.RFC3339), end.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", end.Sub(start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", total)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Kind:")
	kinds := []trace.Kind{
		trace.KindCommand, trace.KindEcho, trace.KindData, trace.KindAck,
		trace.KindFlush, trace.KindState, trace.KindError,
	}
	for _, k := range kinds {
		if count := byKind[k]; count > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", k.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, d := range []trace.Direction{trace.DirectionIn, trace.DirectionOut} {
		if count := byDirection[d]; count > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", d.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Connections: %d\n", len(conns))
	if len(conns) > 0 {
		type connInfo struct {
			id    string
			stats *connStats
		}
		infos := make([]connInfo, 0, len(conns))
		for id, cs := range conns {
			infos = append(infos, connInfo{id, cs})
		}
		sort.Slice(infos, func(i, j int) bool {
			return infos[i].stats.firstSeen.Before(infos[j].stats.firstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range infos {
			duration := c.stats.lastSeen.Sub(c.stats.firstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d commands, duration %s\n",
				shortenConnID(c.id), c.stats.events, c.stats.commands, duration)
			if c.stats.port != "" {
				fmt.Fprintf(w, "             Port: %s\n", c.stats.port)
			}
			if c.stats.errors > 0 {
				fmt.Fprintf(w, "             Errors: %d\n", c.stats.errors)
			}
		}
	}

	if totalErrors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", totalErrors)
	}

	return nil
}
