package logging

import (
	"strings"
	"sync"
)

// ProgressSampler thins out upload progress events. A percent of zero or
// below starts a new upload (or reports a failure) and is always emitted;
// after that an event passes when it enters a new bucket or changes the
// status text. Safe for concurrent use.
type ProgressSampler struct {
	bucketSize float64

	mu         sync.Mutex
	lastStatus string
	lastBucket int
}

// NewProgressSampler returns a sampler with bucketSize-percent buckets,
// defaulting to 10.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// Sample reports whether the event should be forwarded. A nil sampler
// forwards everything.
func (s *ProgressSampler) Sample(percent float64, status string) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	status = strings.TrimSpace(status)
	if percent <= 0 {
		s.lastStatus = status
		s.lastBucket = 0
		return true
	}
	if percent > 100 {
		percent = 100
	}
	bucket := int(percent / s.bucketSize)
	emit := bucket > s.lastBucket || (status != "" && status != s.lastStatus)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
	}
	if status != "" {
		s.lastStatus = status
	}
	return emit
}
