// Package profile loads and saves named instrument profiles.
//
// A profile file is a YAML document mapping profile names to the serial and
// protocol parameters of one instrument, so interactive tools can open a
// connection by name instead of repeating flags:
//
//	default: dlc-lab
//	profiles:
//	  dlc-lab:
//	    port: /dev/ttyUSB0
//	    baud_rate: 115200
//	    query_delay: 50ms
//	    trace_file: /var/log/optocon/dlc-lab.cbor
//
// Zero-valued fields fall back to the lineport and console defaults.
package profile

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/photonio/go-optocon/console"
	"github.com/photonio/go-optocon/lineport"
)

// File is an on-disk profile collection. Default optionally names the
// profile Get resolves when asked for an empty name.
type File struct {
	Default  string              `yaml:"default,omitempty"`
	Profiles map[string]*Profile `yaml:"profiles"`
}

// Profile describes how to reach and drive one instrument.
type Profile struct {
	Port              string        `yaml:"port"`
	BaudRate          int           `yaml:"baud_rate,omitempty"`
	DataBits          int           `yaml:"data_bits,omitempty"`
	Parity            string        `yaml:"parity,omitempty"`
	StopBits          string        `yaml:"stop_bits,omitempty"`
	ReadTermination   string        `yaml:"read_termination,omitempty"`
	WriteTermination  string        `yaml:"write_termination,omitempty"`
	ReadTimeout       time.Duration `yaml:"read_timeout,omitempty"`
	QueryDelay        time.Duration `yaml:"query_delay,omitempty"`
	SettleDelay       time.Duration `yaml:"settle_delay,omitempty"`
	ResyncOnEchoError bool          `yaml:"resync_on_echo_error,omitempty"`
	TraceFile         string        `yaml:"trace_file,omitempty"`
}

// Load reads and parses a profile file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: reading profile file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("profile: parsing profile file: %w", err)
	}

	return &file, nil
}

// Save writes the profile collection to path, replacing the file.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("profile: encoding profile file: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("profile: writing profile file: %w", err)
	}

	return nil
}

// Get returns the named profile. An empty name resolves the file's default
// profile.
func (f *File) Get(name string) (*Profile, error) {
	if name == "" {
		if f.Default == "" {
			return nil, fmt.Errorf("profile: no profile named and no default set")
		}
		name = f.Default
	}

	p, ok := f.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile: unknown profile %q", name)
	}

	return p, nil
}

// Names returns the profile names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Default returns a profile carrying the library defaults, which a user can
// save and edit as a starting point.
func Default() *Profile {
	return &Profile{
		BaudRate:         lineport.DefaultBaudRate,
		DataBits:         lineport.DefaultDataBits,
		Parity:           "none",
		StopBits:         "1",
		ReadTermination:  lineport.DefaultReadTermination,
		WriteTermination: lineport.DefaultWriteTermination,
		ReadTimeout:      lineport.DefaultReadTimeout,
		QueryDelay:       lineport.DefaultQueryDelay,
		SettleDelay:      console.DefaultSettleDelay,
	}
}

// Validate checks the profile for values that cannot produce a working
// connection. Zero values are fine; they fall back to defaults.
func (p *Profile) Validate() error {
	if p.Port == "" {
		return fmt.Errorf("profile: port is empty")
	}
	if p.BaudRate < 0 {
		return fmt.Errorf("profile: baud rate %v out of range", p.BaudRate)
	}
	if p.ReadTimeout < 0 || p.QueryDelay < 0 || p.SettleDelay < 0 {
		return fmt.Errorf("profile: negative duration")
	}

	if _, err := lineport.ParseParity(p.Parity); err != nil {
		return err
	}
	if _, err := lineport.ParseStopBits(p.StopBits); err != nil {
		return err
	}

	switch p.DataBits {
	case 0, 5, 6, 7, 8:
	default:
		return fmt.Errorf("profile: data bits %v out of range", p.DataBits)
	}

	return nil
}

// PortConfig builds a lineport configuration from the profile. Extra
// options are applied after the profile's own, so callers can override.
func (p *Profile) PortConfig(extra ...lineport.PortOption) (*lineport.Config, error) {
	opts := make([]lineport.PortOption, 0, 8+len(extra))

	if p.BaudRate > 0 {
		opts = append(opts, lineport.WithBaudRate(p.BaudRate))
	}
	if p.DataBits > 0 {
		opts = append(opts, lineport.WithDataBits(p.DataBits))
	}

	if p.Parity != "" {
		parity, err := lineport.ParseParity(p.Parity)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lineport.WithParity(parity))
	}

	if p.StopBits != "" {
		stopBits, err := lineport.ParseStopBits(p.StopBits)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lineport.WithStopBits(stopBits))
	}

	if p.ReadTermination != "" {
		opts = append(opts, lineport.WithReadTermination(p.ReadTermination))
	}
	if p.WriteTermination != "" {
		opts = append(opts, lineport.WithWriteTermination(p.WriteTermination))
	}
	if p.ReadTimeout > 0 {
		opts = append(opts, lineport.WithReadTimeout(p.ReadTimeout))
	}
	if p.QueryDelay > 0 {
		opts = append(opts, lineport.WithQueryDelay(p.QueryDelay))
	}

	opts = append(opts, extra...)

	return lineport.NewConfig(p.Port, opts...)
}

// AdapterConfig builds a console adapter configuration from the profile.
// Extra options are applied after the profile's own, so callers can
// override.
func (p *Profile) AdapterConfig(extra ...console.AdapterOption) (*console.AdapterConfig, error) {
	opts := make([]console.AdapterOption, 0, 2+len(extra))

	if p.SettleDelay > 0 {
		opts = append(opts, console.WithSettleDelay(p.SettleDelay))
	}
	if p.ResyncOnEchoError {
		opts = append(opts, console.WithResyncOnEchoError())
	}

	opts = append(opts, extra...)

	baudRate := p.BaudRate
	if baudRate == 0 {
		baudRate = console.DefaultBaudRate
	}

	return console.NewAdapterConfig(baudRate, opts...)
}
