package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/iaware/pkg/client"
	"github.com/itohio/iaware/pkg/config"
)

func run(t *testing.T, factory DeviceFactory, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(factory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mockFactory(m *client.Mock) DeviceFactory {
	return func(*viper.Viper) client.Device { return m }
}

func newMock() *client.Mock {
	return client.NewMock(&config.Default().Mock, 20000, 200)
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, nil, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "iactl controls an iaware sensor node")
	for _, sub := range []string{"start", "stop", "set-fs", "set-send-freq", "watch"} {
		assert.Contains(t, out, sub)
	}
}

func TestStartStop(t *testing.T) {
	m := newMock()

	out, err := run(t, mockFactory(m), "start")
	require.NoError(t, err)
	assert.Contains(t, out, "streaming enabled")
	assert.False(t, m.IsConnected(), "connection is closed after the command")

	out, err = run(t, mockFactory(m), "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "streaming disabled")
}

func TestSetFs(t *testing.T) {
	m := newMock()

	out, err := run(t, mockFactory(m), "set-fs", "10000")
	require.NoError(t, err)
	assert.Contains(t, out, "10000 Hz")
	assert.Equal(t, 1, m.Restarts())

	for _, arg := range []string{"0", "abc", "-5"} {
		_, err := run(t, mockFactory(m), "set-fs", arg)
		assert.Error(t, err, arg)
	}
	assert.Equal(t, 1, m.Restarts())

	_, err = run(t, mockFactory(m), "set-fs")
	assert.Error(t, err, "argument is required")
}

func TestSetSendFreq(t *testing.T) {
	m := newMock()

	out, err := run(t, mockFactory(m), "set-send-freq", "2.5")
	require.NoError(t, err)
	assert.Contains(t, out, "2.5 Hz")

	_, err = run(t, mockFactory(m), "set-send-freq", "30")
	assert.Error(t, err)
}

func TestDeciHz(t *testing.T) {
	tests := []struct {
		hz      float64
		want    uint8
		wantErr bool
	}{
		{20, 200, false},
		{0.1, 1, false},
		{2.54, 25, false},
		{25.5, 255, false},
		{0, 0, true},
		{0.04, 0, true},
		{25.6, 0, true},
	}
	for _, tt := range tests {
		got, err := deciHz(tt.hz)
		if tt.wantErr {
			assert.Error(t, err, "%v Hz", tt.hz)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v Hz", tt.hz)
	}
}

func TestWatch_Mock(t *testing.T) {
	out, err := run(t, nil, "--mock", "watch", "--duration", "400ms", "--interval", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "mean=")
	assert.Contains(t, out, "fs=20000Hz")
}

func TestConnectFailure(t *testing.T) {
	factory := func(*viper.Viper) client.Device {
		return client.NewTCP("127.0.0.1:1", "127.0.0.1:1", 200*time.Millisecond, client.DefaultBufferSize)
	}
	_, err := run(t, factory, "start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
}
