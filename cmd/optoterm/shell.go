package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/photonio/go-optocon/console"
	"github.com/photonio/go-optocon/lineport"
	"github.com/photonio/go-optocon/logger"
	"github.com/photonio/go-optocon/profile"
	"github.com/photonio/go-optocon/trace"
)

// shell drives the interactive prompt. Connections are registered in
// console.DefaultRegistry under the name given to open, so they stay
// addressable after switching with use.
type shell struct {
	rl        *readline.Instance
	profiles  *profile.File
	tracePath string
	log       logger.Logger

	// captures holds per-connection trace recorders so close can release
	// the file handles.
	captures map[string]*trace.FileRecorder

	// current names the connection instrument commands act on.
	current string
}

func newShell(profiles *profile.File, tracePath string, log logger.Logger) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "optoterm> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("creating readline: %w", err)
	}

	return &shell{
		rl:        rl,
		profiles:  profiles,
		tracePath: tracePath,
		log:       log,
		captures:  make(map[string]*trace.FileRecorder),
	}, nil
}

// run reads and dispatches prompt input until EOF or the exit command.
func (sh *shell) run() {
	fmt.Fprintln(sh.rl.Stdout(), "optoterm interactive console (type 'help' for commands)")

	for {
		line, err := sh.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err != nil {
			fmt.Fprintln(sh.rl.Stdout(), "Exiting...")
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			sh.printHelp()
		case "open":
			sh.cmdOpen(args)
		case "use":
			sh.cmdUse(args)
		case "close":
			sh.cmdClose(args)
		case "list", "ls":
			sh.cmdList()
		case "ports":
			sh.cmdPorts()
		case "profiles":
			sh.cmdProfiles()
		case "ask":
			sh.cmdAsk(rest(line))
		case "set":
			sh.cmdWrite(rest(line), true)
		case "raw":
			sh.cmdWrite(rest(line), false)
		case "read":
			sh.cmdRead()
		case "value":
			sh.cmdValue(rest(line))
		case "state":
			sh.cmdState(args)
		case "metrics":
			sh.cmdMetrics(args)
		case "exit", "quit", "q":
			fmt.Fprintln(sh.rl.Stdout(), "Exiting...")
			return
		default:
			fmt.Fprintf(sh.rl.Stdout(), "unknown command %q (type 'help' for commands)\n", cmd)
		}
	}
}

// close shuts down every open connection, the capture files and the prompt.
func (sh *shell) close() {
	var names []string
	console.DefaultRegistry.Range(func(name string, _ *console.Adapter) bool {
		names = append(names, name)
		return true
	})
	for _, name := range names {
		if adapter := console.DefaultRegistry.Deregister(name); adapter != nil {
			if err := adapter.Close(); err != nil {
				sh.log.Warn("closing connection failed", "name", name, "error", err)
			}
		}
	}
	for _, capture := range sh.captures {
		_ = capture.Close()
	}
	sh.rl.Close()
}

// rest returns the input line with the leading command word removed.
func rest(line string) string {
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}

// openProfile opens a connection described by a named profile from the
// -config file and makes it current.
func (sh *shell) openProfile(name string) error {
	if sh.profiles == nil {
		return errors.New("no profile file loaded (start with -config)")
	}

	p, err := sh.profiles.Get(name)
	if err != nil {
		return err
	}
	if name == "" {
		name = sh.profiles.Default
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}

	portCfg, err := p.PortConfig(lineport.WithLogger(sh.log))
	if err != nil {
		return err
	}

	// The profile's capture file wins over the -trace flag.
	capturePath := p.TraceFile
	if capturePath == "" {
		capturePath = sh.tracePath
	}

	capture, adapterOpts, err := sh.newCapture(capturePath)
	if err != nil {
		return err
	}
	adapterOpts = append(adapterOpts, console.WithLogger(sh.log))

	adapterCfg, err := p.AdapterConfig(adapterOpts...)
	if err != nil {
		closeCapture(capture)
		return err
	}

	return sh.connect(name, portCfg, adapterCfg, capture)
}

// openPort opens a raw serial port with library defaults and makes it
// current.
func (sh *shell) openPort(portName string, baudRate int) error {
	portCfg, err := lineport.NewConfig(portName,
		lineport.WithBaudRate(baudRate),
		lineport.WithLogger(sh.log),
	)
	if err != nil {
		return err
	}

	capture, adapterOpts, err := sh.newCapture(sh.tracePath)
	if err != nil {
		return err
	}
	adapterOpts = append(adapterOpts, console.WithLogger(sh.log))

	adapterCfg, err := console.NewAdapterConfig(baudRate, adapterOpts...)
	if err != nil {
		closeCapture(capture)
		return err
	}

	return sh.connect(portName, portCfg, adapterCfg, capture)
}

// newCapture opens a trace recorder for path and returns the adapter option
// wiring it in. An empty path yields no recorder.
func (sh *shell) newCapture(path string) (*trace.FileRecorder, []console.AdapterOption, error) {
	if path == "" {
		return nil, nil, nil
	}

	capture, err := trace.NewFileRecorder(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening capture file: %w", err)
	}

	return capture, []console.AdapterOption{console.WithTraceRecorder(capture)}, nil
}

func closeCapture(capture *trace.FileRecorder) {
	if capture != nil {
		_ = capture.Close()
	}
}

// connect opens the port, negotiates the console protocol and registers the
// connection under name.
func (sh *shell) connect(name string, portCfg *lineport.Config, adapterCfg *console.AdapterConfig, capture *trace.FileRecorder) error {
	port, err := lineport.Open(portCfg)
	if err != nil {
		closeCapture(capture)
		return err
	}

	adapter, err := console.NewAdapter(port, adapterCfg)
	if err != nil {
		_ = port.Close()
		closeCapture(capture)
		return err
	}

	if err := adapter.Open(); err != nil {
		_ = adapter.Close()
		closeCapture(capture)
		return err
	}

	if err := console.DefaultRegistry.Register(name, adapter); err != nil {
		_ = adapter.Close()
		closeCapture(capture)
		return err
	}

	if capture != nil {
		sh.captures[name] = capture
	}
	sh.current = name
	fmt.Fprintf(sh.rl.Stdout(), "connected %s (%s, %d baud)\n", name, adapter.Name(), port.BaudRate())
	return nil
}

// adapter returns the current connection, printing a hint when there is
// none.
func (sh *shell) adapter() (*console.Adapter, bool) {
	if sh.current == "" {
		fmt.Fprintln(sh.rl.Stdout(), "no connection selected (see 'open' and 'use')")
		return nil, false
	}

	adapter, ok := console.DefaultRegistry.Lookup(sh.current)
	if !ok {
		fmt.Fprintf(sh.rl.Stdout(), "connection %q is gone\n", sh.current)
		sh.current = ""
		return nil, false
	}
	return adapter, true
}

// target resolves an optional connection name argument, falling back to the
// current connection.
func (sh *shell) target(args []string) (*console.Adapter, bool) {
	if len(args) == 0 {
		return sh.adapter()
	}

	adapter, ok := console.DefaultRegistry.Lookup(args[0])
	if !ok {
		fmt.Fprintf(sh.rl.Stdout(), "no connection named %q (see 'list')\n", args[0])
		return nil, false
	}
	return adapter, true
}

func (sh *shell) cmdOpen(args []string) {
	if len(args) > 2 {
		fmt.Fprintln(sh.rl.Stdout(), "Usage: open [port|profile] [baud]")
		return
	}

	// Bare open connects the profile file's default profile.
	if len(args) == 0 {
		if err := sh.openProfile(""); err != nil {
			fmt.Fprintf(sh.rl.Stdout(), "open failed: %v\n", err)
		}
		return
	}

	name := args[0]
	if sh.profiles != nil && len(args) == 1 {
		if _, err := sh.profiles.Get(name); err == nil {
			if err := sh.openProfile(name); err != nil {
				fmt.Fprintf(sh.rl.Stdout(), "open failed: %v\n", err)
			}
			return
		}
	}

	baudRate := lineport.DefaultBaudRate
	if len(args) == 2 {
		b, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(sh.rl.Stdout(), "invalid baud rate %q\n", args[1])
			return
		}
		baudRate = b
	}

	if err := sh.openPort(name, baudRate); err != nil {
		fmt.Fprintf(sh.rl.Stdout(), "open failed: %v\n", err)
	}
}

func (sh *shell) cmdUse(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(sh.rl.Stdout(), "Usage: use <name>")
		return
	}

	if _, ok := console.DefaultRegistry.Lookup(args[0]); !ok {
		fmt.Fprintf(sh.rl.Stdout(), "no connection named %q (see 'list')\n", args[0])
		return
	}
	sh.current = args[0]
	fmt.Fprintf(sh.rl.Stdout(), "using %s\n", args[0])
}

func (sh *shell) cmdClose(args []string) {
	name := sh.current
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		fmt.Fprintln(sh.rl.Stdout(), "Usage: close [name]")
		return
	}

	adapter := console.DefaultRegistry.Deregister(name)
	if adapter == nil {
		fmt.Fprintf(sh.rl.Stdout(), "no connection named %q\n", name)
		return
	}

	if err := adapter.Close(); err != nil {
		fmt.Fprintf(sh.rl.Stdout(), "close failed: %v\n", err)
	}
	if capture, ok := sh.captures[name]; ok {
		_ = capture.Close()
		delete(sh.captures, name)
	}
	if sh.current == name {
		sh.current = ""
	}
	fmt.Fprintf(sh.rl.Stdout(), "closed %s\n", name)
}

func (sh *shell) cmdList() {
	type row struct {
		name    string
		adapter *console.Adapter
	}
	var rows []row
	console.DefaultRegistry.Range(func(name string, adapter *console.Adapter) bool {
		rows = append(rows, row{name, adapter})
		return true
	})
	if len(rows) == 0 {
		fmt.Fprintln(sh.rl.Stdout(), "no connections")
		return
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	for _, r := range rows {
		marker := " "
		if r.name == sh.current {
			marker = "*"
		}
		fmt.Fprintf(sh.rl.Stdout(), "%s %-16s %-16s %s (%s)\n",
			marker, r.name, r.adapter.Name(), r.adapter.OpState(), r.adapter.State())
	}
}

func (sh *shell) cmdPorts() {
	ports, err := lineport.Ports()
	if err != nil {
		fmt.Fprintf(sh.rl.Stdout(), "listing ports failed: %v\n", err)
		return
	}
	if len(ports) == 0 {
		fmt.Fprintln(sh.rl.Stdout(), "no serial ports found")
		return
	}
	for _, p := range ports {
		fmt.Fprintln(sh.rl.Stdout(), p)
	}
}

func (sh *shell) cmdProfiles() {
	if sh.profiles == nil {
		fmt.Fprintln(sh.rl.Stdout(), "no profile file loaded (start with -config)")
		return
	}

	for _, name := range sh.profiles.Names() {
		p, err := sh.profiles.Get(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(sh.rl.Stdout(), "%-16s %s\n", name, p.Port)
	}
}

func (sh *shell) cmdAsk(command string) {
	if command == "" {
		fmt.Fprintln(sh.rl.Stdout(), "Usage: ask <command>")
		return
	}
	adapter, ok := sh.adapter()
	if !ok {
		return
	}

	value, err := adapter.Ask(command)
	if err != nil {
		fmt.Fprintf(sh.rl.Stdout(), "ask failed: %v\n", err)
		return
	}
	fmt.Fprintln(sh.rl.Stdout(), value)
}

func (sh *shell) cmdWrite(command string, checkAck bool) {
	if command == "" {
		verb := "raw"
		if checkAck {
			verb = "set"
		}
		fmt.Fprintf(sh.rl.Stdout(), "Usage: %s <command>\n", verb)
		return
	}
	adapter, ok := sh.adapter()
	if !ok {
		return
	}

	if err := adapter.Write(command, checkAck); err != nil {
		fmt.Fprintf(sh.rl.Stdout(), "write failed: %v\n", err)
		return
	}
	fmt.Fprintln(sh.rl.Stdout(), "ok")
}

func (sh *shell) cmdRead() {
	adapter, ok := sh.adapter()
	if !ok {
		return
	}

	data, err := adapter.Read()
	if err != nil {
		fmt.Fprintf(sh.rl.Stdout(), "read failed: %v\n", err)
		return
	}
	fmt.Fprintln(sh.rl.Stdout(), data)
}

func (sh *shell) cmdValue(text string) {
	if text == "" {
		fmt.Fprintln(sh.rl.Stdout(), "Usage: value <reply text>")
		return
	}
	fmt.Fprintln(sh.rl.Stdout(), console.ExtractValue(text))
}

func (sh *shell) cmdState(args []string) {
	adapter, ok := sh.target(args)
	if !ok {
		return
	}

	fmt.Fprintf(sh.rl.Stdout(), "id:           %s\n", adapter.ID())
	fmt.Fprintf(sh.rl.Stdout(), "port:         %s\n", adapter.Name())
	fmt.Fprintf(sh.rl.Stdout(), "lifecycle:    %s\n", adapter.OpState())
	fmt.Fprintf(sh.rl.Stdout(), "conversation: %s\n", adapter.State())
	fmt.Fprintf(sh.rl.Stdout(), "last command: %q\n", adapter.LastCommand())
}

func (sh *shell) cmdMetrics(args []string) {
	adapter, ok := sh.target(args)
	if !ok {
		return
	}

	m := adapter.Metrics()
	fmt.Fprintf(sh.rl.Stdout(), "commands sent:  %d\n", m.CommandSendCount.Load())
	fmt.Fprintf(sh.rl.Stdout(), "lines received: %d\n", m.LineRecvCount.Load())
	fmt.Fprintf(sh.rl.Stdout(), "queries:        %d\n", m.AskCount.Load())
	fmt.Fprintf(sh.rl.Stdout(), "echo errors:    %d\n", m.EchoErrCount.Load())
	fmt.Fprintf(sh.rl.Stdout(), "ack errors:     %d\n", m.AckErrCount.Load())
	fmt.Fprintf(sh.rl.Stdout(), "resyncs:        %d\n", m.ResyncCount.Load())
}

func (sh *shell) printHelp() {
	fmt.Fprint(sh.rl.Stdout(), `
Connections:
  open [port|profile] [baud]  Open a port or -config profile (bare: the default profile)
  use <name>                  Select the connection instrument commands act on
  close [name]                Close a connection (default: current)
  list                        List open connections
  ports                       List serial ports on this machine
  profiles                    List profiles from the -config file

Instrument:
  ask <command>               Send a query and print the extracted value
  set <command>               Send a command and require the acknowledgement
  raw <command>               Send a command without acknowledgement check
  read                        Read one data line plus its acknowledgement
  value <reply text>          Run the reply extractor on literal text

Diagnostics:
  state [name]                Show lifecycle and conversation state
  metrics [name]              Show protocol counters

Other:
  help                        Show this help
  exit                        Close all connections and quit

`)
}
