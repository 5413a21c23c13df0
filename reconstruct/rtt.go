package reconstruct

import "time"

// smoothedRTTAlpha is the classic RFC 6298 EWMA weight.
const smoothedRTTAlpha = 0.125

// RTTSample is one output of the smoothed-RTT filter: the new smoothed
// value, and whether this raw sample ran hot against the smoothed baseline.
type RTTSample struct {
	Smoothed time.Duration
	Elevated bool
}

// smoothedRTT is a first-order exponential filter,
// srtt <- srtt + alpha*(sample - srtt), seeded by the first sample.
type smoothedRTT struct {
	value *time.Duration
}

func (s *smoothedRTT) observe(sample time.Duration) RTTSample {
	if s.value == nil {
		v := sample
		s.value = &v
		return RTTSample{Smoothed: sample, Elevated: false}
	}
	prev := *s.value
	updated := prev + time.Duration(smoothedRTTAlpha*float64(sample-prev))
	s.value = &updated
	elevated := float64(sample) > 1.1*float64(updated)
	return RTTSample{Smoothed: updated, Elevated: elevated}
}

func (s *smoothedRTT) current() (time.Duration, bool) {
	if s.value == nil {
		return 0, false
	}
	return *s.value, true
}
