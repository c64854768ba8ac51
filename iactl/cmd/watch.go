package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/itohio/iaware/pkg/client"
	"github.com/itohio/iaware/pkg/monitor"
	"github.com/itohio/iaware/pkg/sample"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		interval time.Duration
		noStart  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live statistics of the streamed samples",
		Long: `Enable streaming and print window statistics until interrupted
or until --duration elapses. Streaming is disabled again on exit unless
--no-start is given.

Example:
  iactl watch --interval 500ms --duration 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDevice(func(dev client.Device) error {
				return a.watch(cmd.OutOrStdout(), dev, duration, interval, !noStart)
			})
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 = until interrupted)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "statistics interval in sample time")
	cmd.Flags().BoolVar(&noStart, "no-start", false, "do not toggle streaming")
	return cmd
}

func (a *app) watch(w io.Writer, dev client.Device, duration, interval time.Duration, toggle bool) error {
	mcfg := a.monitorConfig()
	mon := monitor.New(mcfg)
	mon.SetUpdateInterval(interval)

	var mu sync.Mutex
	mon.OnUpdate(func(_ []sample.Sample, st monitor.Stats) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "n=%d mean=%.4fV std=%.4fV min=%.4fV max=%.4fV median=%.4fV fs=%.0fHz span=%s\n",
			st.Count, st.Mean, st.StdDev, st.Min, st.Max, st.Median, st.Frequency, formatDuration(st.Span))
	})

	samples := sample.NewConverter(mcfg, a.v.GetUint32("sampling.default_frequency"), 0)(dev.Frames())
	if n := mcfg.AverageSamples; n > 0 {
		samples = sample.NewAveragingConverter(n, 0)(samples)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		mon.ProcessSamples(samples)
	}()

	if toggle {
		if err := dev.Start(); err != nil {
			dev.Close()
			<-done
			return err
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	var timeout <-chan time.Time
	if duration > 0 {
		t := time.NewTimer(duration)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-sig:
	case <-timeout:
	case <-done:
		return fmt.Errorf("node closed the data connection")
	}

	if toggle {
		if err := dev.Stop(); err != nil {
			fmt.Fprintf(w, "failed to stop streaming: %v\n", err)
		}
	}
	dev.Close()
	<-done
	return nil
}
