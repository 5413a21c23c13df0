package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThroughputOutput(t *testing.T) {
	bps, err := parseThroughputOutput("connecting...\n\n  1234567.5  \n")
	require.NoError(t, err)
	assert.Equal(t, 1234567.5, bps)
}

func TestParseThroughputOutputRejectsGarbage(t *testing.T) {
	_, err := parseThroughputOutput("connection refused")
	assert.Error(t, err)
}

func TestParseThroughputOutputRejectsEmpty(t *testing.T) {
	_, err := parseThroughputOutput("   \n  ")
	assert.Error(t, err)
}

func TestParsePathloadLine(t *testing.T) {
	loss, err := parsePathloadLine("probing...\nloss: 0.042\ndone\n")
	require.NoError(t, err)
	assert.InDelta(t, 0.042, loss, 1e-9)
}

func TestParsePathloadLineMissing(t *testing.T) {
	_, err := parsePathloadLine("no useful output here")
	assert.Error(t, err)
}

func TestParseICMPOutput(t *testing.T) {
	rtt, err := parseICMPOutput("64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=12.3 ms")
	require.NoError(t, err)
	assert.Equal(t, 12300*time.Microsecond, rtt)
}

func TestParseICMPOutputMissing(t *testing.T) {
	_, err := parseICMPOutput("Request timeout for icmp_seq 1")
	assert.Error(t, err)
}
