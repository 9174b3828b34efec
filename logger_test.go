package memrep_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simon-rock/memrep"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := memrep.NewLogger(slog.NewTextHandler(&buf, nil))

	l.WithRep("TestRep").WithBuckets(42).Info("created")

	out := buf.String()
	assert.Contains(t, out, "rep=TestRep")
	assert.Contains(t, out, "buckets=42")
	assert.Contains(t, out, "created")
}

func TestNoopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		memrep.NoopLogger().Warn("discarded")
	})
}

func TestNewLoggerNilHandler(t *testing.T) {
	assert.NotNil(t, memrep.NewLogger(nil))
}
