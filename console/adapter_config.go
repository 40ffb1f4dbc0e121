package console

import (
	"errors"
	"fmt"
	"time"

	"github.com/photonio/go-optocon/logger"
	"github.com/photonio/go-optocon/trace"
)

const (
	// DefaultBaudRate is the serial rate console-style laser controllers
	// commonly ship with.
	DefaultBaudRate = 115200

	// DefaultSettleDelay is the wait after the mode-negotiation commands of
	// Open, giving the instrument time to apply the echo/prompt change
	// before its residue is flushed.
	DefaultSettleDelay = 40 * time.Millisecond

	// MaxSettleDelay bounds WithSettleDelay.
	MaxSettleDelay = 5 * time.Second
)

// AckToken is the literal acknowledgement line a command must provoke to be
// considered successful.
const AckToken = "[OK]"

// ReplyPreprocessor normalizes a raw data line before Ask returns it.
type ReplyPreprocessor func(reply string) string

// AdapterConfig holds all configuration for a console adapter.
type AdapterConfig struct {
	// baudRate is re-applied to the transport after opening; some serial
	// stacks silently drop a baud override supplied at open time.
	baudRate int

	// settleDelay is the wait between mode negotiation and the input flush
	// during Open.
	settleDelay time.Duration

	// resyncOnEchoError extends the flush-on-error policy to the unexpected
	// echo path. Off by default: an ack mismatch flushes, a bad echo does not.
	resyncOnEchoError bool

	preprocessor ReplyPreprocessor
	recorder     trace.Recorder
	logger       logger.Logger
}

// NewAdapterConfig creates a new adapter configuration.
//
// baudRate is the serial rate re-applied to the transport during Open; pass
// DefaultBaudRate unless the instrument is configured otherwise.
// opts are functional options applied in order; see With* functions.
func NewAdapterConfig(baudRate int, opts ...AdapterOption) (*AdapterConfig, error) {
	if baudRate <= 0 {
		return nil, fmt.Errorf("console: baud rate %d must be positive", baudRate)
	}

	cfg := &AdapterConfig{
		baudRate:     baudRate,
		settleDelay:  DefaultSettleDelay,
		preprocessor: ExtractValue,
		recorder:     trace.NopRecorder{},
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// BaudRate returns the serial rate re-applied during Open.
func (cfg *AdapterConfig) BaudRate() int { return cfg.baudRate }

// SettleDelay returns the mode-negotiation settle wait.
func (cfg *AdapterConfig) SettleDelay() time.Duration { return cfg.settleDelay }

// ResyncOnEchoError returns whether an unexpected echo also flushes input.
func (cfg *AdapterConfig) ResyncOnEchoError() bool { return cfg.resyncOnEchoError }

// Preprocessor returns the installed reply preprocessor.
func (cfg *AdapterConfig) Preprocessor() ReplyPreprocessor { return cfg.preprocessor }

// TraceRecorder returns the configured protocol event recorder.
func (cfg *AdapterConfig) TraceRecorder() trace.Recorder { return cfg.recorder }

// GetLogger returns the configured logger.
func (cfg *AdapterConfig) GetLogger() logger.Logger { return cfg.logger }

// --- AdapterOption ---

// AdapterOption is a functional option for configuring an AdapterConfig.
type AdapterOption interface {
	apply(*AdapterConfig) error
}

type adapterOptFunc func(*AdapterConfig) error

func (f adapterOptFunc) apply(cfg *AdapterConfig) error { return f(cfg) }

// WithSettleDelay sets the wait between the mode-negotiation commands and
// the input flush during Open. Must be in [0, MaxSettleDelay].
func WithSettleDelay(d time.Duration) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if d < 0 || d > MaxSettleDelay {
			return fmt.Errorf("console: settle delay %v out of range [0, %v]", d, MaxSettleDelay)
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithResyncOnEchoError makes an unexpected echo flush buffered input before
// the error is returned, the same way an acknowledgement mismatch does.
//
// The default keeps the two error paths asymmetric: a bad echo surfaces the
// error without touching the buffer.
func WithResyncOnEchoError() AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		cfg.resyncOnEchoError = true

		return nil
	})
}

// WithReplyPreprocessor replaces the reply preprocessor applied by Ask.
// The default is ExtractValue.
func WithReplyPreprocessor(f ReplyPreprocessor) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if f == nil {
			return errors.New("console: reply preprocessor must not be nil")
		}
		cfg.preprocessor = f

		return nil
	})
}

// WithTraceRecorder installs a protocol event recorder; see the trace
// package. Recording is disabled by default.
func WithTraceRecorder(r trace.Recorder) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if r == nil {
			return errors.New("console: trace recorder must not be nil")
		}
		cfg.recorder = r

		return nil
	})
}

// WithLogger sets the logger for the adapter.
func WithLogger(l logger.Logger) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if l == nil {
			return errors.New("console: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
