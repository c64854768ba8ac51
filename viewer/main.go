package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/iaware/pkg/client"
	"github.com/itohio/iaware/pkg/config"
	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/monitor"
	"github.com/itohio/iaware/pkg/sample"
	"github.com/itohio/iaware/pkg/scope"
)

// frameInterval throttles scope redraws to about 60 FPS.
const frameInterval = 16 * time.Millisecond

func main() {
	var (
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use a simulated node instead of TCP")
		dataFlag    = flag.String("data", "", "Data plane address override (host:port)")
		controlFlag = flag.String("control", "", "Control plane address override (host:port)")
		averageFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataFlag != "" {
		cfg.Client.DataAddr = *dataFlag
	}
	if *controlFlag != "" {
		cfg.Client.ControlAddr = *controlFlag
	}
	if *averageFlag >= 0 {
		cfg.Monitor.AverageSamples = *averageFlag
	}
	log := logger.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format).With("component", "viewer")

	application := app.NewWithID("com.itohio.iaware")
	window := application.NewWindow("iaware")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	st := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		log:        log,
		monitor:    monitor.New(&cfg.Monitor),
		window:     window,
		useMock:    *mockFlag,
	}
	st.scope = scope.New(&cfg.Monitor)
	st.monitor.OnUpdate(st.onUpdate)

	window.SetContent(container.NewBorder(createToolbar(st), nil, nil, nil, st.scope))
	window.SetOnClosed(func() {
		closeChain(st.chain)
	})
	window.ShowAndRun()
}

// chain is one connection and the goroutines draining it.
type chain struct {
	device      client.Device
	monitorDone chan struct{}
}

type appState struct {
	cfg        *config.Config
	configPath string
	log        *slog.Logger
	monitor    *monitor.Monitor
	scope      *scope.ScopeWidget
	window     fyne.Window
	useMock    bool
	chain      *chain
	streaming  bool

	connectBtn *widget.Button
	streamBtn  *widget.Button

	updateMu   sync.Mutex
	lastUpdate time.Time
}

func createToolbar(st *appState) fyne.CanvasObject {
	st.connectBtn = widget.NewButtonWithIcon("Connect", theme.LoginIcon(), func() {
		handleConnect(st)
	})
	st.streamBtn = widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), func() {
		handleStream(st)
	})
	st.streamBtn.Disable()

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(st)
	})

	return container.NewBorder(nil, nil,
		container.NewHBox(st.connectBtn, st.streamBtn),
		settingsBtn,
		nil)
}

func (st *appState) connected() bool {
	return st.chain != nil && st.chain.device.IsConnected()
}

func (st *appState) newDevice() client.Device {
	if st.useMock {
		return client.NewMock(&st.cfg.Mock, st.cfg.Sampling.DefaultFrequency, st.cfg.Sampling.SendFrequency)
	}
	c := st.cfg.Client
	return client.NewTCP(c.DataAddr, c.ControlAddr, c.DialTimeout, client.DefaultBufferSize)
}

func handleConnect(st *appState) {
	if st.connected() {
		disconnect(st)
		return
	}

	dev := st.newDevice()
	if err := dev.Connect(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect: %w", err), st.window)
		return
	}
	st.log.Info("connected", "mock", st.useMock, "data_addr", st.cfg.Client.DataAddr)

	st.monitor.Reset()
	st.chain = startChain(st, dev)
	st.connectBtn.SetText("Disconnect")
	st.connectBtn.SetIcon(theme.LogoutIcon())
	st.streamBtn.Enable()
}

func disconnect(st *appState) {
	closeChain(st.chain)
	st.chain = nil
	st.streaming = false
	st.connectBtn.SetText("Connect")
	st.connectBtn.SetIcon(theme.LoginIcon())
	st.streamBtn.SetText("Start")
	st.streamBtn.SetIcon(theme.MediaPlayIcon())
	st.streamBtn.Disable()
	st.scope.Clear()
	st.log.Info("disconnected")
}

func handleStream(st *appState) {
	if !st.connected() {
		return
	}
	dev := st.chain.device

	var err error
	if st.streaming {
		err = dev.Stop()
	} else {
		err = dev.Start()
	}
	if err != nil {
		dialog.ShowError(fmt.Errorf("stream command failed: %w", err), st.window)
		return
	}

	st.streaming = !st.streaming
	if st.streaming {
		st.streamBtn.SetText("Stop")
		st.streamBtn.SetIcon(theme.MediaStopIcon())
	} else {
		st.streamBtn.SetText("Start")
		st.streamBtn.SetIcon(theme.MediaPlayIcon())
	}
}

// startChain wires frames -> samples -> optional averaging -> monitor.
func startChain(st *appState, dev client.Device) *chain {
	samples := sample.NewConverter(&st.cfg.Monitor, st.cfg.Sampling.DefaultFrequency, 4096)(dev.Frames())
	if n := st.cfg.Monitor.AverageSamples; n > 0 {
		samples = sample.NewAveragingConverter(n, 4096)(samples)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		st.monitor.ProcessSamples(samples)
	}()
	return &chain{device: dev, monitorDone: done}
}

// closeChain closes the device, which closes the frames channel, and waits
// for the monitor to drain.
func closeChain(c *chain) {
	if c == nil {
		return
	}
	c.device.Close()
	<-c.monitorDone
}

func (st *appState) onUpdate(samples []sample.Sample, stats monitor.Stats) {
	st.updateMu.Lock()
	now := time.Now()
	if now.Sub(st.lastUpdate) < frameInterval {
		st.updateMu.Unlock()
		return
	}
	st.lastUpdate = now
	st.updateMu.Unlock()

	fyne.Do(func() {
		st.scope.UpdateData(samples, stats)
	})
}
