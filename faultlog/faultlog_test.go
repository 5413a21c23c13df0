package faultlog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Report("test-context", errors.New("boom"))
		Report("test-context", errors.New("boom again"))
	})
}

func TestCountersIncrement(t *testing.T) {
	c := &Counters{}
	c.IncParserDrop()
	c.IncParserDrop()
	c.IncCoordinatorDrop()
	c.IncSnapshotDropped()
	c.IncToolProbeFailure()

	assert.Equal(t, uint64(2), c.ParserDrops())
	assert.Equal(t, uint64(1), c.CoordinatorDrops())
	assert.Equal(t, uint64(1), c.SnapshotsDropped())
	assert.Equal(t, uint64(1), c.ToolProbeFailures())
}
