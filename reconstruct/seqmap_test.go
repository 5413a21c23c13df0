package reconstruct

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeqWrapAware(t *testing.T) {
	assert.True(t, leq(1, 1))
	assert.True(t, leq(1, 2))
	assert.False(t, leq(2, 1))

	// Across the 32-bit wrap: 0xFFFFFFF0 precedes 0x10.
	assert.True(t, leq(0xFFFFFFF0, 0x10))
	assert.False(t, leq(0x10, 0xFFFFFFF0))
}

func TestLeqTransitiveWithinHalfSpace(t *testing.T) {
	// Any chain spanning less than 2^31 must be transitive, including one
	// that crosses the wrap point.
	chains := [][3]uint32{
		{10, 20, 30},
		{math.MaxUint32 - 5, 2, 100},
		{math.MaxUint32 - 1000, math.MaxUint32 - 10, 500},
	}
	for _, c := range chains {
		require.True(t, leq(c[0], c[1]), "chain %v", c)
		require.True(t, leq(c[1], c[2]), "chain %v", c)
		assert.True(t, leq(c[0], c[2]), "chain %v must be transitive", c)
	}
}

func TestSegmentMapTracksInsertedMinusAcked(t *testing.T) {
	m := newSegmentMap(DefaultSegmentCapacity)
	base := time.Unix(0, 0)

	m.insert(100, 100, base)
	m.insert(200, 100, base)
	m.insert(300, 100, base)
	require.Equal(t, 3, m.len())

	covered := m.ackSweep(300)
	require.Len(t, covered, 2, "ack=300 covers seq 100 and 200 only")
	assert.Equal(t, 1, m.len())

	// The remaining entry is seq 300; acking past it empties the map.
	covered = m.ackSweep(400)
	require.Len(t, covered, 1)
	assert.EqualValues(t, 300, covered[0].sequence)
	assert.Equal(t, 0, m.len())
}

func TestSegmentMapAckSweepStopsAtFirstUncovered(t *testing.T) {
	m := newSegmentMap(DefaultSegmentCapacity)
	base := time.Unix(0, 0)

	m.insert(100, 100, base)
	m.insert(300, 100, base) // hole at 200

	covered := m.ackSweep(250)
	require.Len(t, covered, 1)
	assert.EqualValues(t, 100, covered[0].sequence)
	assert.Equal(t, 1, m.len())
}

func TestSegmentMapRetransmissionKeepsOriginalTimestamp(t *testing.T) {
	m := newSegmentMap(DefaultSegmentCapacity)
	base := time.Unix(0, 0)

	m.insert(100, 100, base)
	m.insert(100, 100, base.Add(200*time.Millisecond))

	assert.Equal(t, 1, m.retransmitCount)
	require.Equal(t, 1, m.len())
	seg := m.bySeq[100]
	require.NotNil(t, seg)
	assert.Equal(t, base, seg.sentAt, "a retransmit must not refresh the send timestamp")
	assert.Equal(t, 1, seg.retransmissions)
}

func TestSegmentMapRetransmitCounterIsMonotone(t *testing.T) {
	m := newSegmentMap(DefaultSegmentCapacity)
	base := time.Unix(0, 0)

	prev := 0
	for i := 0; i < 5; i++ {
		m.insert(100, 100, base)
		assert.GreaterOrEqual(t, m.retransmitCount, prev)
		prev = m.retransmitCount
	}
	assert.Equal(t, 4, m.retransmitCount)
}

func TestSegmentMapBoundedEvictionCountsLostVisibility(t *testing.T) {
	m := newSegmentMap(2)
	base := time.Unix(0, 0)

	m.insert(100, 50, base)
	m.insert(200, 60, base)
	m.insert(300, 70, base)

	assert.Equal(t, 2, m.len(), "capacity bounds the map")
	assert.EqualValues(t, 50, m.lostVisibilityBytes, "the oldest entry's bytes are lost visibility, not loss")
	assert.NotContains(t, m.bySeq, uint32(100))
	assert.Contains(t, m.bySeq, uint32(300))
}
