package progress

import "sync/atomic"

// Tracker counts completed jobs and reports progress every `every` completions
// and on the last one. Reported values only ever increase.
type Tracker struct {
	total      int64
	every      int64
	done       atomic.Int64
	OnProgress func(done, total int64, percent float64)
}

func NewTracker(total, every int, cb func(done, total int64, percent float64)) *Tracker {
	if every < 1 {
		every = 1
	}

	return &Tracker{
		total:      int64(total),
		every:      int64(every),
		OnProgress: cb,
	}
}

// Done marks one job complete and returns the completed count.
func (t *Tracker) Done() int64 {
	n := t.done.Add(1)

	if t.OnProgress != nil && (n%t.every == 0 || n == t.total) {
		t.OnProgress(n, t.total, t.Percent())
	}

	return n
}

// Percent returns completed/total as a percentage; 100 when total is zero.
func (t *Tracker) Percent() float64 {
	if t.total <= 0 {
		return 100
	}

	return float64(t.done.Load()) * 100 / float64(t.total)
}
