package logging_test

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chidi150c/currencycycle/internal/logging"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "INFO", logging.Info.String())
	assert.Equal(t, "WARN", logging.Warn.String())
	assert.Equal(t, "ERROR", logging.Error.String())
}

func TestLogDropsWhenChannelFull(t *testing.T) {
	l := logging.NewLogger(1)
	l.Log("a", logging.Info, "first")

	doneCh := make(chan struct{})
	go func() {
		// capacity is already exhausted and nothing is draining yet, so
		// this must not block.
		l.Log("b", logging.Info, "second, dropped")
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Log blocked instead of dropping when channel is full")
	}
	l.Close()
}

func TestRunPrintsFormattedLinesThenStopsOnClose(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewLogger(4)
	l.SetOutput(log.New(&buf, "", 0))

	runDone := make(chan struct{})
	go func() {
		l.Run()
		close(runDone)
	}()

	l.Log("book", logging.Info, "applied order")
	l.Log("network", logging.Warn, "stale edge")
	l.Close()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	out := buf.String()
	assert.True(t, strings.Contains(out, "INFO:book:applied order"))
	assert.True(t, strings.Contains(out, "WARN:network:stale edge"))
}
