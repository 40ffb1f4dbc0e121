package console

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/photonio/go-optocon/internal/pool"
	"github.com/photonio/go-optocon/logger"
	"github.com/photonio/go-optocon/trace"
)

// Mode-negotiation commands issued by Open.
const (
	// cmdEchoOff disables the instrument's command echo, which would
	// otherwise corrupt line framing.
	cmdEchoOff = "echo off"
	// cmdPromptOff disables the prompt banner.
	cmdPromptOff = "prom off"
	// cmdTalkUsual finalizes the instrument into its structured reply mode.
	cmdTalkUsual = "talk usual"
)

// Sentinel errors for the console protocol.
var (
	// Protocol errors.
	ErrUnexpectedEcho  = errors.New("console: non-empty echo line")
	ErrAcknowledgement = errors.New("console: unexpected acknowledgement")

	// Lifecycle errors.
	ErrNotOpened     = errors.New("console: adapter not opened")
	ErrAlreadyOpened = errors.New("console: adapter already opened")
	ErrAdapterClosed = errors.New("console: adapter closed")
)

// LineTransport is the line-framed byte transport an adapter drives.
//
// Implementations frame outbound lines with their configured write
// terminator, strip the read terminator from inbound lines, and bound every
// read with a transport-level timeout. The lineport package provides the
// serial implementation.
type LineTransport interface {
	// WriteLine sends one line, framed with the write terminator.
	WriteLine(line string) error

	// ReadLine blocks until a full line arrives or the transport read
	// timeout elapses, and returns the line with its terminator stripped.
	// An empty string is a valid line.
	ReadLine() (string, error)

	// FlushInput discards buffered, unread input.
	FlushInput() error

	// SetBaudRate reconfigures the serial rate. It must be callable after
	// open; Open re-applies the configured rate through it because some
	// serial stacks silently drop a baud override supplied at open time.
	SetBaudRate(baud int) error

	// QueryDelay returns the minimum wait between sending a query and
	// reading its reply.
	QueryDelay() time.Duration

	// Name identifies the transport, e.g. the serial device path.
	Name() string

	// Close releases the transport.
	Close() error
}

// Adapter owns one conversation with a console-style instrument controller.
//
// The adapter holds the transport exclusively for its lifetime: it opens the
// conversation with [Adapter.Open], exchanges commands with [Adapter.Ask],
// [Adapter.Write] and [Adapter.Read], and releases the transport with
// [Adapter.Close].
//
// An Adapter is NOT goroutine-safe; callers must serialize access.
type Adapter struct {
	id        string
	cfg       *AdapterConfig
	transport LineTransport
	logger    logger.Logger
	recorder  trace.Recorder

	opState   AtomicOpState
	convState AtomicConvState
	released  atomic.Bool

	// lastCommand is the most recently sent command, kept for diagnostics.
	lastCommand string

	metrics AdapterMetrics
}

// NewAdapter creates an adapter over the given transport.
//
// The adapter takes ownership of the transport; no I/O happens until Open.
func NewAdapter(transport LineTransport, cfg *AdapterConfig) (*Adapter, error) {
	if transport == nil {
		return nil, errors.New("console: transport is nil")
	}
	if cfg == nil {
		return nil, errors.New("console: adapter config is nil")
	}

	a := &Adapter{
		id:        uuid.NewString(),
		cfg:       cfg,
		transport: transport,
		logger:    cfg.logger.With("port", transport.Name()),
		recorder:  cfg.recorder,
	}
	a.opState.Set(ClosedState)

	return a, nil
}

// --- Accessors ---

// ID returns the connection UUID used in trace events.
func (a *Adapter) ID() string { return a.id }

// Name returns the transport name, e.g. the serial device path.
func (a *Adapter) Name() string { return a.transport.Name() }

// State returns the current conversation phase.
func (a *Adapter) State() ConvState { return a.convState.Get() }

// OpState returns the current lifecycle state.
func (a *Adapter) OpState() OpState { return a.opState.Get() }

// LastCommand returns the most recently sent command.
func (a *Adapter) LastCommand() string { return a.lastCommand }

// Metrics returns the adapter metrics.
func (a *Adapter) Metrics() *AdapterMetrics { return &a.metrics }

// --- Lifecycle ---

// Open negotiates the instrument into the framing this adapter relies on:
//
//  1. Re-applies the configured baud rate on the transport.
//  2. Sends "echo off" and "prom off", bypassing the echo/ack read path.
//  3. Waits the settle delay, then discards buffered input (boot banner and
//     mode-change residue).
//  4. Runs a full "talk usual" ask cycle, discarding the result.
//
// On any failure the adapter stays closed and may be opened again once the
// cause is fixed.
func (a *Adapter) Open() error {
	if a.released.Load() {
		return ErrAdapterClosed
	}
	if !a.opState.ToOpening() {
		return ErrAlreadyOpened
	}

	a.logger.Debug("opening adapter", "baud", a.cfg.baudRate)

	if err := a.handshake(); err != nil {
		a.opState.Set(ClosedState)
		a.record(trace.Event{Kind: trace.KindError, Direction: trace.DirectionIn, Command: a.lastCommand, Message: err.Error()})
		a.logger.Error("mode negotiation failed", "error", err)

		return err
	}

	a.opState.ToOpened()
	a.record(trace.Event{Kind: trace.KindState, Direction: trace.DirectionOut, Message: a.opState.String()})
	a.logger.Info("adapter opened", "baud", a.cfg.baudRate)

	return nil
}

// Close releases the transport. It is safe to call multiple times; once
// closed an adapter cannot be reopened.
func (a *Adapter) Close() error {
	if !a.released.CompareAndSwap(false, true) {
		return nil
	}

	a.opState.Set(ClosingState)
	err := a.transport.Close()
	a.opState.Set(ClosedState)
	a.convState.Set(IdleState)

	a.record(trace.Event{Kind: trace.KindState, Direction: trace.DirectionOut, Message: a.opState.String()})
	a.logger.Info("adapter closed")

	if err != nil {
		return fmt.Errorf("console: closing transport: %w", err)
	}

	return nil
}

// --- Protocol operations ---

// Write sends a command and consumes the instrument's echoed line-end
// response, which must be empty. When checkAck is true it also consumes one
// acknowledgement line and validates it with CheckAcknowledgement.
//
// Exactly one line (checkAck false) or two lines (checkAck true) are
// consumed from the transport before Write returns.
func (a *Adapter) Write(command string, checkAck bool) error {
	if !a.opState.IsOpened() {
		return ErrNotOpened
	}

	return a.write(command, checkAck)
}

// Read consumes one data line, then one acknowledgement line validated with
// CheckAcknowledgement, and returns the data line.
//
// Only single-data-line replies are supported: commands producing
// multi-line output must be handled by direct transport access, and callers
// must know in advance which commands those are.
func (a *Adapter) Read() (string, error) {
	if !a.opState.IsOpened() {
		return "", ErrNotOpened
	}

	return a.read()
}

// Ask is the primary query primitive: Write without acknowledgement check,
// a wait of at least the transport's query delay, then Read. The data line
// is passed through the installed reply preprocessor before it is returned.
func (a *Adapter) Ask(command string) (string, error) {
	if !a.opState.IsOpened() {
		return "", ErrNotOpened
	}

	return a.ask(command)
}

// CheckAcknowledgement validates that reply is the literal AckToken.
//
// On mismatch the channel is assumed out of sync: the transport input
// buffer is flushed first, then an error wrapping ErrAcknowledgement is
// returned carrying the last command and the offending reply.
func (a *Adapter) CheckAcknowledgement(reply string) error {
	if reply == AckToken {
		return nil
	}

	a.metrics.incAckErrCount()

	if err := a.resync(); err != nil {
		a.logger.Warn("resync after acknowledgement mismatch failed", "error", err)
	}

	err := fmt.Errorf("%w: command %q replied %q", ErrAcknowledgement, a.lastCommand, reply)
	a.record(trace.Event{Kind: trace.KindError, Direction: trace.DirectionIn, Line: reply, Command: a.lastCommand, Message: err.Error()})
	a.logger.Debug("acknowledgement mismatch", "command", a.lastCommand, "reply", reply)

	return err
}

// --- Protocol internals ---

// handshake runs the Open sequence against the transport.
func (a *Adapter) handshake() error {
	// Corrective step: re-apply the baud rate after open.
	if err := a.transport.SetBaudRate(a.cfg.baudRate); err != nil {
		return fmt.Errorf("console: re-applying baud rate: %w", err)
	}

	// Until echo off takes effect the instrument may echo these very
	// commands, so their responses are not read here; the settle delay and
	// flush below swallow them.
	if err := a.sendRaw(cmdEchoOff); err != nil {
		return err
	}
	if err := a.sendRaw(cmdPromptOff); err != nil {
		return err
	}

	pool.Sleep(a.cfg.settleDelay)

	if err := a.resync(); err != nil {
		return err
	}

	if _, err := a.ask(cmdTalkUsual); err != nil {
		return err
	}

	return nil
}

// write implements the command/echo[/ack] exchange without lifecycle guard.
func (a *Adapter) write(command string, checkAck bool) error {
	a.lastCommand = command

	if err := a.sendRaw(command); err != nil {
		return err
	}

	a.convState.Set(AwaitingEchoState)
	defer a.convState.Set(IdleState)

	echo, err := a.readLine()
	if err != nil {
		return fmt.Errorf("console: reading echo for %q: %w", command, err)
	}
	a.record(trace.Event{Kind: trace.KindEcho, Direction: trace.DirectionIn, Line: echo, Command: command})

	if echo != "" {
		a.metrics.incEchoErrCount()

		echoErr := fmt.Errorf("%w: command %q echoed %q", ErrUnexpectedEcho, command, echo)
		if a.cfg.resyncOnEchoError {
			if err := a.resync(); err != nil {
				a.logger.Warn("resync after unexpected echo failed", "error", err)
			}
		}
		a.record(trace.Event{Kind: trace.KindError, Direction: trace.DirectionIn, Line: echo, Command: command, Message: echoErr.Error()})
		a.logger.Debug("unexpected echo", "command", command, "echo", echo)

		return echoErr
	}

	if checkAck {
		a.convState.Set(AwaitingAckState)

		ack, err := a.readLine()
		if err != nil {
			return fmt.Errorf("console: reading acknowledgement for %q: %w", command, err)
		}
		a.record(trace.Event{Kind: trace.KindAck, Direction: trace.DirectionIn, Line: ack, Command: command})

		if err := a.CheckAcknowledgement(ack); err != nil {
			return err
		}
	}

	return nil
}

// read implements the data/ack exchange without lifecycle guard.
func (a *Adapter) read() (string, error) {
	a.convState.Set(AwaitingDataState)
	defer a.convState.Set(IdleState)

	data, err := a.readLine()
	if err != nil {
		return "", fmt.Errorf("console: reading data line for %q: %w", a.lastCommand, err)
	}
	a.record(trace.Event{Kind: trace.KindData, Direction: trace.DirectionIn, Line: data, Command: a.lastCommand})

	a.convState.Set(AwaitingAckState)

	ack, err := a.readLine()
	if err != nil {
		return "", fmt.Errorf("console: reading acknowledgement for %q: %w", a.lastCommand, err)
	}
	a.record(trace.Event{Kind: trace.KindAck, Direction: trace.DirectionIn, Line: ack, Command: a.lastCommand})

	if err := a.CheckAcknowledgement(ack); err != nil {
		return "", err
	}

	return data, nil
}

// ask implements the full query cycle without lifecycle guard.
func (a *Adapter) ask(command string) (string, error) {
	if err := a.write(command, false); err != nil {
		return "", err
	}

	pool.Sleep(a.transport.QueryDelay())

	data, err := a.read()
	if err != nil {
		return "", err
	}

	a.metrics.incAskCount()

	return a.cfg.preprocessor(data), nil
}

// sendRaw frames and sends one line. It does not touch lastCommand and
// reads nothing back.
func (a *Adapter) sendRaw(command string) error {
	a.record(trace.Event{Kind: trace.KindCommand, Direction: trace.DirectionOut, Line: command, Command: command})
	a.logger.Debug("send command", "command", command)
	a.metrics.incCommandSendCount()

	if err := a.transport.WriteLine(command); err != nil {
		return fmt.Errorf("console: sending %q: %w", command, err)
	}

	return nil
}

func (a *Adapter) readLine() (string, error) {
	line, err := a.transport.ReadLine()
	if err != nil {
		return "", err
	}

	a.metrics.incLineRecvCount()
	a.logger.Debug("recv line", "line", line)

	return line, nil
}

// resync discards buffered input so the next exchange starts clean.
func (a *Adapter) resync() error {
	a.metrics.incResyncCount()
	a.record(trace.Event{Kind: trace.KindFlush, Direction: trace.DirectionIn, Command: a.lastCommand})
	a.logger.Debug("flushing input")

	if err := a.transport.FlushInput(); err != nil {
		return fmt.Errorf("console: flushing input: %w", err)
	}

	return nil
}

// record stamps the event with the connection identity and hands it to the
// recorder.
func (a *Adapter) record(ev trace.Event) {
	ev.Timestamp = time.Now()
	ev.ConnectionID = a.id
	ev.Port = a.transport.Name()
	a.recorder.Record(ev)
}
