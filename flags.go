package main

import (
	"flag"
	"strconv"
)

type udpPorts []int

func (i *udpPorts) String() string {
	res := ""
	for i, p := range *i {
		if i > 0 {
			res += ","
		}
		res += strconv.Itoa(p)
	}
	return res
}

func (i *udpPorts) Set(value string) error {
	p, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*i = append(*i, p)
	return nil
}

type initOptions struct {
	logfile      string
	configFile   string
	ports        udpPorts
	withmt       bool
	verbose      bool
	printTouches bool
	versionFlag  bool
}

func parseFlags() initOptions {
	var options initOptions
	flag.StringVar(
		&(options.logfile),
		"l",
		"",
		"Log into a file, rotating after 20MB",
	)
	flag.StringVar(
		&(options.configFile),
		"c",
		"",
		"Read configuration from a TOML file. Reloaded on change.",
	)
	flag.Var(
		&(options.ports),
		"e",
		"Use UDP port for emulator. Can be repeated for more ports. Example: trackpadd -e 21324 -e 21326",
	)
	flag.BoolVar(
		&(options.withmt),
		"m",
		true,
		"Use multitouch hardware. Can be disabled for testing environments. Example: trackpadd -e 21324 -m=false",
	)
	flag.BoolVar(
		&(options.verbose),
		"v",
		false,
		"Write verbose logs to either stderr or logfile",
	)
	flag.BoolVar(
		&(options.printTouches),
		"print",
		false,
		"Print touch records from the default device to stdout instead of serving",
	)
	flag.BoolVar(
		&(options.versionFlag),
		"version",
		false,
		"Write version",
	)
	flag.Parse()
	return options
}
