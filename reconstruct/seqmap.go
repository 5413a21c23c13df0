package reconstruct

import (
	"sort"
	"time"
)

// leq compares sequence numbers with 32-bit wrap awareness: a <= b iff
// (a - b) is non-positive when read as a signed 32-bit value.
func leq(a, b uint32) bool {
	return int32(a-b) <= 0
}

// segment is a tracked, not-yet-acknowledged send.
type segment struct {
	sequence        uint32
	length          uint32
	sentAt          time.Time
	retransmissions int
}

// segmentMap holds the unacknowledged segments sent in one direction of a
// TCP stream. It keeps two independent orderings: ascending-by-sequence (for
// the cumulative-ACK sweep, which must stop at the first uncovered entry)
// and insertion order (for bounded FIFO eviction).
type segmentMap struct {
	bySeq       map[uint32]*segment
	seqOrder    []uint32
	insertOrder []uint32
	capacity    int

	retransmitCount     int
	lostVisibilityBytes uint64
}

func newSegmentMap(capacity int) *segmentMap {
	return &segmentMap{
		bySeq:    make(map[uint32]*segment),
		capacity: capacity,
	}
}

// insert records a new segment. If the sequence is already tracked, it is
// marked as a retransmission without touching its send timestamp (Karn's
// rule). Zero-length segments (pure ACKs) are never inserted.
func (m *segmentMap) insert(seq uint32, length uint32, at time.Time) {
	if existing, ok := m.bySeq[seq]; ok {
		existing.retransmissions++
		m.retransmitCount++
		return
	}
	if length == 0 {
		return
	}
	m.bySeq[seq] = &segment{sequence: seq, length: length, sentAt: at}
	m.insertSeqOrder(seq)
	m.insertOrder = append(m.insertOrder, seq)

	if len(m.bySeq) > m.capacity {
		m.evictOldest()
	}
}

func (m *segmentMap) insertSeqOrder(seq uint32) {
	i := sort.Search(len(m.seqOrder), func(i int) bool { return m.seqOrder[i] >= seq })
	m.seqOrder = append(m.seqOrder, 0)
	copy(m.seqOrder[i+1:], m.seqOrder[i:])
	m.seqOrder[i] = seq
}

func (m *segmentMap) evictOldest() {
	if len(m.insertOrder) == 0 {
		return
	}
	seq := m.insertOrder[0]
	m.insertOrder = m.insertOrder[1:]
	if seg, ok := m.bySeq[seq]; ok {
		m.lostVisibilityBytes += uint64(seg.length)
		delete(m.bySeq, seq)
		m.removeSeqOrder(seq)
	}
}

func (m *segmentMap) removeSeqOrder(seq uint32) {
	i := sort.Search(len(m.seqOrder), func(i int) bool { return m.seqOrder[i] >= seq })
	if i < len(m.seqOrder) && m.seqOrder[i] == seq {
		m.seqOrder = append(m.seqOrder[:i], m.seqOrder[i+1:]...)
	}
}

// ackSweep removes every segment covered by the cumulative ack, walking in
// ascending sequence order and stopping at the first uncovered entry (the
// map is ordered, so later entries cannot be covered either). It returns the
// covered segments in the order they were removed.
func (m *segmentMap) ackSweep(ack uint32) []segment {
	var covered []segment
	removed := 0
	for _, seq := range m.seqOrder {
		seg := m.bySeq[seq]
		if seg == nil || !leq(seq+seg.length, ack) {
			break
		}
		covered = append(covered, *seg)
		delete(m.bySeq, seq)
		removed++
	}
	if removed == 0 {
		return nil
	}
	m.seqOrder = m.seqOrder[removed:]
	m.removeFromInsertOrder(covered)
	return covered
}

func (m *segmentMap) removeFromInsertOrder(covered []segment) {
	skip := make(map[uint32]int, len(covered))
	for _, s := range covered {
		skip[s.sequence]++
	}
	kept := m.insertOrder[:0]
	for _, seq := range m.insertOrder {
		if skip[seq] > 0 {
			skip[seq]--
			continue
		}
		kept = append(kept, seq)
	}
	m.insertOrder = kept
}

func (m *segmentMap) len() int {
	return len(m.bySeq)
}
