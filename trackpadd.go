package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DeepSignSecurity/trackpad-go/config"
	"github.com/DeepSignSecurity/trackpad-go/core"
	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/mt"
	"github.com/DeepSignSecurity/trackpad-go/server"
	"github.com/DeepSignSecurity/trackpad-go/touch"
)

const version = "0.3.1"

func initMultitouch(init bool, wr *memorywriter.MemoryWriter, sl *log.Logger) []core.Bus {
	if !init {
		return nil
	}
	wr.Log("Initing multitouch")
	m, err := mt.InitMultitouch(wr)
	if err != nil {
		sl.Fatalf("multitouch: %s", err)
	}
	return []core.Bus{m}
}

func main() {
	options := parseFlags()

	if options.versionFlag {
		fmt.Printf("trackpadd version %s\n", version)
		return
	}

	cfg, cfgErr := config.Load(options.configFile)

	// command line wins over the file
	if options.logfile != "" {
		cfg.Log.File = options.logfile
	}
	if options.verbose {
		cfg.Log.Verbose = true
	}
	cfg.Emulator.Ports = append(cfg.Emulator.Ports, options.ports...)

	stderrWriter, stderrLogger, shortMemoryWriter, longMemoryWriter := initLoggers(cfg.Log.File, cfg.Log.Verbose)
	if cfgErr != nil {
		stderrLogger.Printf("config: %s, continuing with defaults", cfgErr)
	}

	stderrLogger.Printf("trackpadd v%s is starting.", version)

	bus := initMultitouch(options.withmt, longMemoryWriter, stderrLogger)

	longMemoryWriter.Log(fmt.Sprintf("UDP port count - %d", len(cfg.Emulator.Ports)))

	if len(cfg.Emulator.Ports) > 0 {
		e, errUDP := mt.InitEmulator(longMemoryWriter, cfg.Emulator.Ports)
		if errUDP != nil {
			stderrLogger.Fatalf("emulator: %s", errUDP)
		}
		bus = append(bus, e)
	}

	if len(bus) == 0 {
		stderrLogger.Fatalf("No backends enabled")
	}

	b := mt.Init(bus...)
	longMemoryWriter.Log("Creating core")
	c := core.New(b, longMemoryWriter)

	if options.printTouches {
		runPrint(c, stderrLogger)
		return
	}

	longMemoryWriter.Log("Creating HTTP server")
	s, err := server.New(c, stderrWriter, shortMemoryWriter, longMemoryWriter, version,
		cfg.Server.Addr, cfg.Server.Origins)
	if err != nil {
		stderrLogger.Fatalf("http: %s", err)
	}

	if options.configFile != "" {
		w, errWatch := config.Watch(options.configFile, longMemoryWriter, func(next *config.Config) {
			if errOrigins := s.SetOrigins(next.Server.Origins); errOrigins != nil {
				longMemoryWriter.Log("origins not applied: " + errOrigins.Error())
			}
		})
		if errWatch != nil {
			stderrLogger.Printf("config watch: %s", errWatch)
		} else {
			defer w.Close() //nolint:errcheck
		}
	}

	longMemoryWriter.Log("Running HTTP server")
	err = s.Run()
	if err != nil {
		stderrLogger.Fatalf("http: %s", err)
	}

	longMemoryWriter.Log("Main ended successfully")
}

// runPrint opens the default device and writes every record to stdout
// until interrupted. Useful for a quick look at what a device reports.
func runPrint(c *core.Core, sl *log.Logger) {
	entries, err := c.Enumerate()
	if err != nil {
		sl.Fatalf("enumerate: %s", err)
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\tfamily %d\n", e.Path, e.Class, e.FamilyID)
	}

	h, err := c.Default()
	if err != nil {
		sl.Fatalf("default device: %s", err)
	}
	defer h.Close() //nolint:errcheck

	width, height := h.SurfaceSize()
	fmt.Printf("listening on %s (%.1f x %.1f cm), ^C to stop\n", h.Info().Path, width, height)

	err = h.Listen(func(device int32, touches []touch.Touch, timestamp float64, frame int32) {
		for _, t := range touches {
			fmt.Printf("frame %d dev %d %s z %.3f\n", frame, device, t, t.ZTotal)
		}
	})
	if err != nil {
		sl.Fatalf("listen: %s", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if err := h.Stop(); err != nil {
		sl.Printf("stop: %s", err)
	}
}
