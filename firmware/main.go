// Command firmware runs the sensor node: it samples an analog source into the
// ring and serves the data plane and the control plane over TCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/iaware/pkg/analog"
	"github.com/itohio/iaware/pkg/config"
	"github.com/itohio/iaware/pkg/device"
	"github.com/itohio/iaware/pkg/indicator"
	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/metrics"
	"github.com/itohio/iaware/pkg/netstate"
	"github.com/itohio/iaware/pkg/prof"
	"github.com/itohio/iaware/pkg/ring"
	"github.com/itohio/iaware/pkg/store"
)

func main() {
	var (
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		portFlag    = flag.String("p", "", "Serial port of the ADC bridge (selects the serial source)")
		mockFlag    = flag.Bool("mock", false, "Use the synthetic source")
		metricsFlag = flag.String("metrics", "", "Metrics listen address (overrides config)")
		storeFlag   = flag.String("store", "", "Persistent state file (overrides config)")
		profFlag    = flag.String("profile", "cpu", "Profile mode when built with the profile tag")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *portFlag != "" {
		cfg.Source.Kind = "serial"
		cfg.Serial.Port = *portFlag
	}
	if *mockFlag {
		cfg.Source.Kind = "mock"
	}
	if *metricsFlag != "" {
		cfg.Metrics.Addr = *metricsFlag
	}
	if *storeFlag != "" {
		cfg.Store.Path = *storeFlag
	}

	log := logger.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	if prof.Enabled {
		defer prof.Start(".", *profFlag).Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("node stopped", "error", err)
		os.Exit(1)
	}
	log.Info("node stopped")
}

// run boots the device and boots it again after every restart request or
// allocation failure until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Component("firmware")

	st := store.NewFile(cfg.Store.Path, cfg.Sampling.DefaultFrequency)
	m := metrics.NewCollector()
	gate := netstate.New(cfg.Network.Interface == "" || netstate.InterfaceUp(cfg.Network.Interface))
	ind := indicator.NewLog(logger.Component("indicator"))

	var serialSrc *analog.Serial
	if cfg.Source.Kind == "serial" {
		serialSrc = analog.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate)
		if err := serialSrc.Connect(); err != nil {
			return err
		}
		defer serialSrc.Close()
		log.Info("ADC bridge connected", "port", cfg.Serial.Port, "baud", cfg.Serial.BaudRate)
	}

	for boot := 1; ; boot++ {
		var src analog.Source = serialSrc
		if serialSrc == nil {
			src = analog.NewMock(&cfg.Mock, st.SamplingFrequency())
		}

		d, err := device.Boot(cfg, st, src,
			device.WithLogger(logger.Get().With("boot", boot)),
			device.WithMetrics(m),
			device.WithIndicator(ind),
			device.WithGate(gate))
		if err == nil {
			err = d.Run(ctx)
		}

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, device.ErrRestart):
			log.Info("restarting", "delay", cfg.Sampling.RestartDelay, "reason", err)
		case errors.Is(err, ring.ErrAllocation):
			log.Error("failed to allocate ring", "error", err, "delay", cfg.Sampling.RestartDelay)
			m.Restart("allocation")
		default:
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Sampling.RestartDelay):
		}
	}
}
