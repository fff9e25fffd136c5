package errors

import (
	"sync"
	"time"
)

// rateLimiter 按调用栈限制上报频率，silent时间内同一调用栈只上报一次
type rateLimiter struct {
	lock   sync.Mutex
	silent time.Duration
	now    func() time.Time
	buffer map[string]*errorStats
}

func newRateLimiter(silent time.Duration) *rateLimiter {
	return &rateLimiter{
		silent: silent,
		now:    time.Now,
		buffer: map[string]*errorStats{},
	}
}

type errorStats struct {
	// 总计的发生次数
	totalOccurCount int
	// 上次报告过后发生的次数
	occurCountSinceLastReport int
	// 最近上报时间，零值表示未上报过
	lastReportTime time.Time
}

// StackBasedRateLimited counts one occurrence for stack and reports whether
// it must be dropped. stats is the state before this occurrence.
func (b *rateLimiter) StackBasedRateLimited(stack string) (limited bool, stats errorStats) {
	b.lock.Lock()
	defer b.lock.Unlock()
	s, ok := b.buffer[stack]
	if !ok {
		s = &errorStats{}
		b.buffer[stack] = s
	}
	stats = *s
	now := b.now()
	s.totalOccurCount++
	if !s.lastReportTime.IsZero() && now.Sub(s.lastReportTime) < b.silent {
		s.occurCountSinceLastReport++
		return true, stats
	}
	s.occurCountSinceLastReport = 0
	s.lastReportTime = now
	return false, stats
}
