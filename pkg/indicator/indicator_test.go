package indicator

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	r.ClientAttached("data")
	r.StreamActive(true)
	r.StreamActive(false)
	r.ClientDetached("data")

	assert.Equal(t, []string{"attached:data", "stream:on", "stream:off", "detached:data"}, r.Events())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.ClientAttached("control")
	l.StreamActive(true)

	assert.Contains(t, buf.String(), "role=control")
	assert.Contains(t, buf.String(), "active=true")
}

func TestNop(t *testing.T) {
	var i Indicator = Nop{}
	assert.NotPanics(t, func() {
		i.StreamActive(true)
		i.ClientAttached("x")
		i.ClientDetached("x")
	})
}
