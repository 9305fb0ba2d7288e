package logging

import (
	"bytes"
	"testing"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestHelpersWriteToLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	t.Cleanup(func() { L = prev })

	SetDebug(true)
	Debugf("hello %s", "dbg")
	Infof("info %d", 1)
	Warnf("warn")
	Errorf("err %v", "E")

	out := buf.String()
	for _, want := range []string{"hello dbg", "info 1", "warn", "err E"} {
		assert.Contains(t, out, want)
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	t.Cleanup(func() { L = prev })

	SetDebug(false)
	Debugf("quiet")
	assert.NotContains(t, buf.String(), "quiet")

	SetOutput(&buf)
	Infof("loud")
	assert.Contains(t, buf.String(), "loud")
}
