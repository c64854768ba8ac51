package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

func showSettingsDialog(st *appState) {
	tabs := container.NewAppTabs(
		createNodeTab(st),
		createSamplingTab(st),
		createMonitorTab(st),
		createMockTab(st),
	)

	d := dialog.NewCustom("Settings", "Close", tabs, st.window)
	d.Resize(fyne.NewSize(600, 450))
	d.Show()
}

func (st *appState) save() {
	if err := st.cfg.Save(st.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), st.window)
	}
}

func createNodeTab(st *appState) *container.TabItem {
	dataEntry := widget.NewEntry()
	dataEntry.SetText(st.cfg.Client.DataAddr)

	controlEntry := widget.NewEntry()
	controlEntry.SetText(st.cfg.Client.ControlAddr)

	timeoutEntry := widget.NewEntry()
	timeoutEntry.SetText(st.cfg.Client.DialTimeout.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Data address", Widget: dataEntry},
			{Text: "Control address", Widget: controlEntry},
			{Text: "Dial timeout", Widget: timeoutEntry},
		},
		OnSubmit: func() {
			changed := st.cfg.Client.DataAddr != dataEntry.Text || st.cfg.Client.ControlAddr != controlEntry.Text
			st.cfg.Client.DataAddr = dataEntry.Text
			st.cfg.Client.ControlAddr = controlEntry.Text
			if d, err := time.ParseDuration(timeoutEntry.Text); err == nil && d > 0 {
				st.cfg.Client.DialTimeout = d
			}
			st.save()

			if changed && st.connected() {
				disconnect(st)
				handleConnect(st)
			}
		},
	}
	return container.NewTabItem("Node", form)
}

// createSamplingTab sends frequency changes to the connected node. A new
// sampling frequency makes the node restart, which drops the connection.
func createSamplingTab(st *appState) *container.TabItem {
	fsEntry := widget.NewEntry()
	fsEntry.SetText(strconv.FormatUint(uint64(st.cfg.Sampling.DefaultFrequency), 10))

	sendEntry := widget.NewEntry()
	sendEntry.SetText(fmt.Sprintf("%.1f", float64(st.cfg.Sampling.SendFrequency)/10))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Sampling frequency (Hz)", Widget: fsEntry},
			{Text: "Send frequency (Hz)", Widget: sendEntry},
		},
		OnSubmit: func() {
			if !st.connected() {
				dialog.ShowInformation("Sampling", "Connect to a node first.", st.window)
				return
			}
			dev := st.chain.device

			if hz, err := strconv.ParseFloat(sendEntry.Text, 64); err == nil {
				deci := uint32(hz*10 + 0.5)
				if deci == 0 || deci > 255 {
					dialog.ShowError(fmt.Errorf("send frequency must be within 0.1..25.5 Hz"), st.window)
					return
				}
				if deci != st.cfg.Sampling.SendFrequency {
					if err := dev.SetSendFrequency(uint8(deci)); err != nil {
						dialog.ShowError(err, st.window)
						return
					}
					st.cfg.Sampling.SendFrequency = deci
				}
			}

			if fs, err := strconv.ParseUint(fsEntry.Text, 10, 32); err == nil && fs > 0 &&
				uint32(fs) != st.cfg.Sampling.DefaultFrequency {
				if err := dev.SetSamplingFrequency(uint32(fs)); err != nil {
					dialog.ShowError(err, st.window)
					return
				}
				st.cfg.Sampling.DefaultFrequency = uint32(fs)
				st.log.Info("node restarting at new sampling frequency", "sampling_hz", fs)
			}
			st.save()
		},
	}
	return container.NewTabItem("Sampling", form)
}

func createMonitorTab(st *appState) *container.TabItem {
	windowEntry := widget.NewEntry()
	windowEntry.SetText(fmt.Sprintf("%.1f", st.cfg.Monitor.WindowSeconds))

	averageEntry := widget.NewEntry()
	averageEntry.SetText(strconv.Itoa(st.cfg.Monitor.AverageSamples))

	pointsEntry := widget.NewEntry()
	pointsEntry.SetText(strconv.Itoa(st.cfg.Monitor.PlotPoints))

	vrefEntry := widget.NewEntry()
	vrefEntry.SetText(fmt.Sprintf("%.2f", st.cfg.Monitor.VRef))

	bitsEntry := widget.NewEntry()
	bitsEntry.SetText(strconv.Itoa(st.cfg.Monitor.ADCBits))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowEntry},
			{Text: "Average samples (0=disabled)", Widget: averageEntry},
			{Text: "Plot points", Widget: pointsEntry},
			{Text: "VRef (V)", Widget: vrefEntry},
			{Text: "ADC bits", Widget: bitsEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(windowEntry.Text, 64); err == nil && v > 0 {
				st.cfg.Monitor.WindowSeconds = v
			}
			if v, err := strconv.Atoi(averageEntry.Text); err == nil && v >= 0 {
				st.cfg.Monitor.AverageSamples = v
			}
			if v, err := strconv.Atoi(pointsEntry.Text); err == nil && v > 0 {
				st.cfg.Monitor.PlotPoints = v
			}
			if v, err := strconv.ParseFloat(vrefEntry.Text, 64); err == nil && v > 0 {
				st.cfg.Monitor.VRef = v
			}
			if v, err := strconv.Atoi(bitsEntry.Text); err == nil && v > 0 && v <= 16 {
				st.cfg.Monitor.ADCBits = v
			}
			st.save()
			dialog.ShowInformation("Monitor", "Changes apply on the next connection.", st.window)
		},
	}
	return container.NewTabItem("Monitor", form)
}

func createMockTab(st *appState) *container.TabItem {
	offsetEntry := widget.NewEntry()
	offsetEntry.SetText(fmt.Sprintf("%.0f", st.cfg.Mock.Offset))

	amplitudeEntry := widget.NewEntry()
	amplitudeEntry.SetText(fmt.Sprintf("%.0f", st.cfg.Mock.Amplitude))

	signalEntry := widget.NewEntry()
	signalEntry.SetText(fmt.Sprintf("%.2f", st.cfg.Mock.SignalHz))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.1f", st.cfg.Mock.NoiseLevel))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Offset (counts)", Widget: offsetEntry},
			{Text: "Amplitude (counts)", Widget: amplitudeEntry},
			{Text: "Signal (Hz)", Widget: signalEntry},
			{Text: "Noise (counts)", Widget: noiseEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(offsetEntry.Text, 64); err == nil {
				st.cfg.Mock.Offset = v
			}
			if v, err := strconv.ParseFloat(amplitudeEntry.Text, 64); err == nil {
				st.cfg.Mock.Amplitude = v
			}
			if v, err := strconv.ParseFloat(signalEntry.Text, 64); err == nil {
				st.cfg.Mock.SignalHz = v
			}
			if v, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
				st.cfg.Mock.NoiseLevel = v
			}
			st.save()
		},
	}
	return container.NewTabItem("Mock", form)
}
