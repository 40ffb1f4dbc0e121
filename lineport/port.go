package lineport

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/photonio/go-optocon/logger"
)

// I/O errors reported by Port.
var (
	ErrReadTimeout = errors.New("lineport: read timeout")
	ErrLineTooLong = errors.New("lineport: line exceeds maximum length")
	ErrPortClosed  = errors.New("lineport: port closed")
)

const (
	// readChunkSize is the device read granularity.
	readChunkSize = 256
	// maxLineBytes bounds the bytes accumulated while hunting for a line
	// termination. A stream exceeding it is not line-oriented.
	maxLineBytes = 4096
	// drainReadTimeout is the silence window that ends an input drain.
	drainReadTimeout = 20 * time.Millisecond
	// maxDrainBytes caps an input drain so a chattering device cannot pin
	// the flush forever.
	maxDrainBytes = 64 * 1024
)

// Device is the open serial device a Port drives. It is the subset of
// go.bug.st/serial.Port the line framing needs, kept narrow so tests can
// substitute an in-memory implementation.
type Device interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

var _ Device = (serial.Port)(nil)

// Port frames a serial device into lines.
type Port struct {
	cfg    *Config
	dev    Device
	logger logger.Logger

	baudRate int
	buf      []byte
	tmp      [readChunkSize]byte
	closed   bool
}

// Open opens the serial device named by cfg and wraps it in a Port.
func Open(cfg *Config) (*Port, error) {
	if cfg == nil {
		return nil, errors.New("lineport: config is nil")
	}

	dev, err := serial.Open(cfg.portName, cfg.mode(cfg.baudRate))
	if err != nil {
		return nil, fmt.Errorf("lineport: opening %s: %w", cfg.portName, err)
	}

	port, err := New(dev, cfg)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	return port, nil
}

// New wraps an already-open device. Most callers use Open; New exists for
// devices opened elsewhere and for tests.
func New(dev Device, cfg *Config) (*Port, error) {
	if dev == nil {
		return nil, errors.New("lineport: device is nil")
	}
	if cfg == nil {
		return nil, errors.New("lineport: config is nil")
	}

	if err := dev.SetReadTimeout(cfg.readTimeout); err != nil {
		return nil, fmt.Errorf("lineport: setting read timeout on %s: %w", cfg.portName, err)
	}

	p := &Port{
		cfg:      cfg,
		dev:      dev,
		logger:   cfg.logger,
		baudRate: cfg.baudRate,
	}
	p.logger.Debug("port ready", "port", cfg.portName, "baud", cfg.baudRate)

	return p, nil
}

// Ports lists the serial device names present on the system.
func Ports() ([]string, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("lineport: listing ports: %w", err)
	}

	return names, nil
}

// Name returns the serial device name.
func (p *Port) Name() string { return p.cfg.portName }

// BaudRate returns the rate currently applied to the device.
func (p *Port) BaudRate() int { return p.baudRate }

// QueryDelay returns the minimum wait between a query and its reply read.
func (p *Port) QueryDelay() time.Duration { return p.cfg.queryDelay }

// WriteLine sends line framed with the write termination. The line itself
// must not contain the termination.
func (p *Port) WriteLine(line string) error {
	if p.closed {
		return ErrPortClosed
	}

	data := []byte(line + p.cfg.writeTermination)
	for len(data) > 0 {
		n, err := p.dev.Write(data)
		if err != nil {
			return fmt.Errorf("lineport: writing %s: %w", p.cfg.portName, err)
		}
		data = data[n:]
	}

	return nil
}

// ReadLine accumulates device bytes until the read termination appears and
// returns the line with the termination stripped. Bytes following the
// termination stay buffered for the next call.
//
// A read window passing without any bytes fails with ErrReadTimeout.
func (p *Port) ReadLine() (string, error) {
	if p.closed {
		return "", ErrPortClosed
	}

	term := []byte(p.cfg.readTermination)

	for {
		if i := bytes.Index(p.buf, term); i >= 0 {
			line := string(p.buf[:i])
			rest := p.buf[i+len(term):]
			p.buf = append(p.buf[:0], rest...)

			return line, nil
		}

		if len(p.buf) > maxLineBytes {
			return "", fmt.Errorf("%w: %d bytes without termination on %s",
				ErrLineTooLong, len(p.buf), p.cfg.portName)
		}

		n, err := p.dev.Read(p.tmp[:])
		if err != nil {
			return "", fmt.Errorf("lineport: reading %s: %w", p.cfg.portName, err)
		}
		if n == 0 {
			return "", fmt.Errorf("%w: no termination within %v on %s",
				ErrReadTimeout, p.cfg.readTimeout, p.cfg.portName)
		}

		p.buf = append(p.buf, p.tmp[:n]...)
	}
}

// FlushInput discards all pending input: the accumulation buffer, the
// driver buffer, and whatever the device is still transmitting, by reading
// until a silent window.
func (p *Port) FlushInput() error {
	if p.closed {
		return ErrPortClosed
	}

	p.buf = p.buf[:0]

	if err := p.dev.ResetInputBuffer(); err != nil {
		return fmt.Errorf("lineport: flushing %s: %w", p.cfg.portName, err)
	}

	drainErr := p.drain()

	if err := p.dev.SetReadTimeout(p.cfg.readTimeout); err != nil {
		return fmt.Errorf("lineport: restoring read timeout on %s: %w", p.cfg.portName, err)
	}
	if drainErr != nil {
		return fmt.Errorf("lineport: flushing %s: %w", p.cfg.portName, drainErr)
	}

	return nil
}

// drain reads with a short timeout until silence, leaving the short
// timeout applied; the caller restores the configured one.
func (p *Port) drain() error {
	if err := p.dev.SetReadTimeout(drainReadTimeout); err != nil {
		return err
	}

	drained := 0
	for drained < maxDrainBytes {
		n, err := p.dev.Read(p.tmp[:])
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		drained += n
	}

	if drained > 0 {
		p.logger.Debug("discarded stale input", "port", p.cfg.portName, "bytes", drained)
	}

	return nil
}

// SetBaudRate re-applies the serial mode with the given rate, keeping the
// configured character framing.
func (p *Port) SetBaudRate(baudRate int) error {
	if p.closed {
		return ErrPortClosed
	}
	if baudRate <= 0 {
		return fmt.Errorf("lineport: baud rate %v out of range, must be positive", baudRate)
	}

	if err := p.dev.SetMode(p.cfg.mode(baudRate)); err != nil {
		return fmt.Errorf("lineport: setting baud rate on %s: %w", p.cfg.portName, err)
	}

	p.baudRate = baudRate
	p.logger.Debug("baud rate applied", "port", p.cfg.portName, "baud", baudRate)

	return nil
}

// Close releases the device. It is safe to call multiple times.
func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.dev.Close(); err != nil {
		return fmt.Errorf("lineport: closing %s: %w", p.cfg.portName, err)
	}

	return nil
}
