// Package cmd implements the iactl command line: one-shot control commands
// and a live statistics watch against a sensor node.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/itohio/iaware/pkg/client"
	"github.com/itohio/iaware/pkg/config"
)

// DeviceFactory builds the node client from the resolved settings.
type DeviceFactory func(v *viper.Viper) client.Device

type app struct {
	v         *viper.Viper
	cfgFile   string
	newDevice DeviceFactory
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd(nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. A nil factory dials the node over TCP,
// or simulates it when --mock is set.
func NewRootCmd(factory DeviceFactory) *cobra.Command {
	a := &app{v: viper.New(), newDevice: factory}
	if a.newDevice == nil {
		a.newDevice = defaultDevice
	}

	root := &cobra.Command{
		Use:   "iactl",
		Short: "iactl controls an iaware sensor node",
		Long: `iactl controls an iaware sensor node over its control plane and
watches the samples it streams on the data plane.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	def := config.Default()
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./config.yaml)")
	pf.String("data", def.Client.DataAddr, "data plane address")
	pf.String("control", def.Client.ControlAddr, "control plane address")
	pf.Duration("dial-timeout", def.Client.DialTimeout, "connection timeout")
	pf.Bool("mock", false, "use a simulated node")

	_ = a.v.BindPFlag("client.data_addr", pf.Lookup("data"))
	_ = a.v.BindPFlag("client.control_addr", pf.Lookup("control"))
	_ = a.v.BindPFlag("client.dial_timeout", pf.Lookup("dial-timeout"))
	_ = a.v.BindPFlag("mock.enabled", pf.Lookup("mock"))

	a.setDefaults(def)

	root.AddCommand(
		newStartCmd(a),
		newStopCmd(a),
		newSetFsCmd(a),
		newSetSendFreqCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setDefaults(def *config.Config) {
	a.v.SetDefault("sampling.default_frequency", def.Sampling.DefaultFrequency)
	a.v.SetDefault("sampling.send_frequency", def.Sampling.SendFrequency)
	a.v.SetDefault("monitor.window_seconds", def.Monitor.WindowSeconds)
	a.v.SetDefault("monitor.average_samples", def.Monitor.AverageSamples)
	a.v.SetDefault("monitor.vref", def.Monitor.VRef)
	a.v.SetDefault("monitor.adc_bits", def.Monitor.ADCBits)
	a.v.SetDefault("mock.offset", def.Mock.Offset)
	a.v.SetDefault("mock.amplitude", def.Mock.Amplitude)
	a.v.SetDefault("mock.signal_hz", def.Mock.SignalHz)
	a.v.SetDefault("mock.noise_level", def.Mock.NoiseLevel)
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}

	a.v.SetEnvPrefix("IAWARE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (a *app) monitorConfig() *config.MonitorConfig {
	return &config.MonitorConfig{
		WindowSeconds:  a.v.GetFloat64("monitor.window_seconds"),
		AverageSamples: a.v.GetInt("monitor.average_samples"),
		VRef:           a.v.GetFloat64("monitor.vref"),
		ADCBits:        a.v.GetInt("monitor.adc_bits"),
	}
}

func defaultDevice(v *viper.Viper) client.Device {
	if v.GetBool("mock.enabled") {
		mock := &config.MockConfig{
			Offset:     v.GetFloat64("mock.offset"),
			Amplitude:  v.GetFloat64("mock.amplitude"),
			SignalHz:   v.GetFloat64("mock.signal_hz"),
			NoiseLevel: v.GetFloat64("mock.noise_level"),
		}
		return client.NewMock(mock, v.GetUint32("sampling.default_frequency"), v.GetUint32("sampling.send_frequency"))
	}
	return client.NewTCP(
		v.GetString("client.data_addr"),
		v.GetString("client.control_addr"),
		v.GetDuration("client.dial_timeout"),
		client.DefaultBufferSize)
}

// withDevice connects, runs fn and closes the connection.
func (a *app) withDevice(fn func(client.Device) error) error {
	dev := a.newDevice(a.v)
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer dev.Close()
	return fn(dev)
}

// deciHz converts a send frequency in Hz to the wire's 0.1 Hz units.
func deciHz(hz float64) (uint8, error) {
	d := hz*10 + 0.5
	if d < 1 || d >= 256 {
		return 0, fmt.Errorf("send frequency %.2f Hz is outside 0.1..25.5 Hz", hz)
	}
	return uint8(d), nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
