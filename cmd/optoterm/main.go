// Command optoterm is an interactive terminal for line-oriented laser
// controllers. Commands typed at the prompt go through the console adapter,
// so they get the same echo consumption, acknowledgement checking and
// resynchronization the library applies.
//
// Usage:
//
//	optoterm [flags]
//
// Examples:
//
//	# Connect through a profile and record a protocol capture
//	optoterm -config lab.yaml -profile dlc-pro
//
//	# Connect to a raw port with library defaults
//	optoterm -port /dev/ttyUSB0 -baud 115200 -trace session.capture
//
//	# Start disconnected and open ports from the prompt
//	optoterm
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/photonio/go-optocon/lineport"
	"github.com/photonio/go-optocon/logger"
	"github.com/photonio/go-optocon/profile"
)

func main() {
	os.Setenv("ENV", "development")

	configPath := flag.String("config", "", "YAML profile file with named port presets")
	profileName := flag.String("profile", "", "profile to connect at startup")
	portName := flag.String("port", "", "serial port to connect at startup")
	baudRate := flag.Int("baud", lineport.DefaultBaudRate, "baud rate for -port")
	tracePath := flag.String("trace", "", "record a CBOR protocol capture to this file")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	log := logger.NewSlog(logger.ParseLevel(*logLevel), false)

	var profiles *profile.File
	if *configPath != "" {
		var err error
		profiles, err = profile.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "optoterm: %v\n", err)
			os.Exit(1)
		}
	}

	sh, err := newShell(profiles, *tracePath, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "optoterm: %v\n", err)
		os.Exit(1)
	}
	defer sh.close()

	switch {
	case *profileName != "":
		if err := sh.openProfile(*profileName); err != nil {
			fmt.Fprintf(os.Stderr, "optoterm: %v\n", err)
			os.Exit(1)
		}
	case *portName != "":
		if err := sh.openPort(*portName, *baudRate); err != nil {
			fmt.Fprintf(os.Stderr, "optoterm: %v\n", err)
			os.Exit(1)
		}
	}

	sh.run()
}
