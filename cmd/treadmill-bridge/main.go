package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/bt"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/config"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/console"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/heartrate"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/logging"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/simulator"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/virtual"
)

var adapter = bluetooth.DefaultAdapter

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	must("load config", err)
	must("validate config", config.Validate(cfg))

	var logLines *logging.ChannelWriter
	var extra []io.Writer
	if cfg.Console {
		logLines = logging.NewChannelWriter(512)
		extra = append(extra, logLines)
	}
	logger, err := logging.New(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		// the console owns the terminal
		Stderr: cfg.Log.Verbose || !cfg.Console,
		Extra:  extra,
	})
	must("open log", err)
	defer logger.Close()
	if cfg.File != "" {
		logger.Printf("Main: config from %s", cfg.File)
	}

	profile, err := protocol.ProfileByName(cfg.Device.Profile, cfg.Device.PollInterval)
	must("select profile", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &bridge{logger: logger.Logger}
	defer b.close()

	opts := treadmill.Options{
		WeightKg:          cfg.Weight,
		RequestTimeout:    cfg.Device.RequestTimeout,
		MaxIntegrationGap: cfg.Metrics.MaxIntegrationGap,
		ReconnectInterval: cfg.Reconnect.Interval,
		ReconnectBurst:    cfg.Reconnect.Burst,
		InitSpeed:         cfg.ForceInitSpeed,
		InitIncline:       cfg.ForceInitInclination,
		VirtualDevice:     cfg.VirtualDeviceEnabled,
		ForceBike:         cfg.VirtualDeviceForceBike,
	}

	var transport bt.Transport
	if cfg.Simulate {
		transport = b.simulate(profile, cfg.Simulator.Port)
	} else {
		must("enable BLE stack", bt.EnableAdapter(adapter))
		central := bt.NewCentral(adapter, logger.Logger, bt.Target{Address: cfg.Device.Address, Name: cfg.Device.Name}, cfg.Device.ScanTimeout)
		must("enable central", central.Enable())
		transport = central

		if cfg.VirtualDeviceEnabled {
			opts.Exporter = virtual.NewExporter(adapter, logger.Logger, cfg.VirtualDeviceName, virtual.DefaultPublishInterval)
		}
		if cfg.HeartRateBeltEnabled() {
			opts.HeartRate = b.heartRateBelt(cfg)
		}
	}
	b.closers = append(b.closers, transport.Close)

	var view *console.View
	if cfg.Console {
		view = console.NewView(logger.Logger, logLines.Lines(), stop)
		opts.Display = view
	}

	driver := treadmill.NewDriver(logger.Logger, transport, profile, opts)
	// the driver closes before its transport
	b.closers = append([]func() error{driver.Close}, b.closers...)
	b.watch(driver.Events())
	driver.Start()

	if view == nil {
		<-ctx.Done()
		logger.Println("Main: shutting down")
		return
	}

	view.Bind(driver)
	uiDone := make(chan error, 1)
	go func() { uiDone <- view.Run() }()
	select {
	case <-ctx.Done():
		view.Stop()
		<-uiDone
	case err := <-uiDone:
		if err != nil {
			logger.Printf("Main: %v", err)
		}
	}
	logger.Println("Main: shutting down")
}

// bridge owns what main starts and closes it in order
type bridge struct {
	logger  *log.Logger
	closers []func() error
}

func (b *bridge) simulate(profile protocol.Profile, port int) bt.Transport {
	equipment := simulator.New(b.logger, profile, simulator.DefaultTelemetryInterval)
	mock := bt.NewMockTransport(b.logger, equipment)
	if port > 0 {
		panel := simulator.NewControlPanel(b.logger, equipment, mock, port)
		panel.Start()
		b.closers = append(b.closers, func() error {
			panel.Shutdown()
			return nil
		})
	}
	b.logger.Printf("Main: simulating %s", profile.Name())
	return mock
}

func (b *bridge) heartRateBelt(cfg *config.Config) treadmill.HeartRateSource {
	central := bt.NewCentral(adapter, b.logger, bt.Target{Name: cfg.HeartRateBeltName}, cfg.Device.ScanTimeout)
	must("enable heart rate central", central.Enable())
	belt := heartrate.NewBelt(b.logger, central, heartrate.Options{ReconnectInterval: cfg.Reconnect.Interval})
	belt.Start()
	b.closers = append(b.closers, belt.Close)
	return belt
}

// watch logs the driver's lifecycle events
func (b *bridge) watch(events *treadmill.Events) {
	unregister := []func(){
		events.ConnectedAndDiscovered.Listen(func(session string) {
			b.logger.Printf("Main: treadmill ready (session %s)", session)
		}),
		events.Disconnected.Listen(func(session string) {
			b.logger.Printf("Main: treadmill lost (session %s)", session)
		}),
		events.Errors.Listen(func(err error) {
			b.logger.Printf("Main: %v", err)
		}),
	}
	b.closers = append(b.closers, func() error {
		for _, f := range unregister {
			f()
		}
		return nil
	})
}

func (b *bridge) close() {
	for _, c := range b.closers {
		if err := c(); err != nil {
			b.logger.Printf("Main: close: %v", err)
		}
	}
}

func must(action string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to %s: %v\n", action, err)
		os.Exit(1)
	}
}
