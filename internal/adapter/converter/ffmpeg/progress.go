package ffmpeg

import (
	"strconv"
	"strings"
	"sync"

	"github.com/bnema/mediaq/internal/port"
)

// tracker averages the most recent percentage of every in-flight encode job
// and reports the average only when it moves forward. Stale reports from
// slower jobs never make the combined progress regress.
type tracker struct {
	mu     sync.Mutex
	perJob []int
	last   int
	cb     port.ProgressFunc
}

func newTracker(jobs int, cb port.ProgressFunc) *tracker {
	return &tracker{
		perJob: make([]int, jobs),
		cb:     cb,
	}
}

func (t *tracker) update(job, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	t.mu.Lock()
	if job < 0 || job >= len(t.perJob) || pct <= t.perJob[job] {
		t.mu.Unlock()
		return
	}
	t.perJob[job] = pct
	sum := 0
	for _, p := range t.perJob {
		sum += p
	}
	avg := sum / len(t.perJob)
	if avg <= t.last {
		t.mu.Unlock()
		return
	}
	t.last = avg
	cb := t.cb
	t.mu.Unlock()

	if cb != nil {
		cb(avg)
	}
}

// finish forces the combined progress to 100 on pipeline completion.
func (t *tracker) finish() {
	t.mu.Lock()
	if t.last >= 100 {
		t.mu.Unlock()
		return
	}
	t.last = 100
	cb := t.cb
	t.mu.Unlock()

	if cb != nil {
		cb(100)
	}
}

// parseProgressLine reads one key=value line of ffmpeg's -progress output.
// out_time_us and out_time_ms both carry microseconds.
func parseProgressLine(line string) (usec int64, end bool, ok bool) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "out_time_us="), strings.HasPrefix(line, "out_time_ms="):
		v, err := strconv.ParseInt(line[len("out_time_us="):], 10, 64)
		if err != nil || v < 0 {
			return 0, false, false
		}
		return v, false, true
	case line == "progress=end":
		return 0, true, true
	default:
		return 0, false, false
	}
}
