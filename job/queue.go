package job

import "iter"

// Queue is the pending side of the pipeline: jobs that have been built but
// not yet submitted. Jobs are consumed from the front exactly once.
//
// Queue is not safe for concurrent use.
type Queue struct {
	next  func() (Job, bool)
	stop  func()
	head  Job
	ok    bool
	total int
	taken int
}

// NewQueue returns a queue over seq. total is the number of jobs seq yields
// and is used only for Len.
func NewQueue(seq iter.Seq[Job], total int) *Queue {
	next, stop := iter.Pull(seq)
	q := &Queue{next: next, stop: stop, total: total}
	q.head, q.ok = q.next()
	return q
}

// FromSlice returns a queue over a prebuilt job list.
func FromSlice(jobs []Job) *Queue {
	return NewQueue(func(yield func(Job) bool) {
		for _, j := range jobs {
			if !yield(j) {
				return
			}
		}
	}, len(jobs))
}

// Empty reports whether every job has been taken.
func (q *Queue) Empty() bool {
	return !q.ok
}

// Next removes and returns the front job.
func (q *Queue) Next() (Job, bool) {
	if !q.ok {
		return Job{}, false
	}
	j := q.head
	q.taken++
	q.head, q.ok = q.next()
	return j, true
}

// Len returns the number of jobs not yet taken.
func (q *Queue) Len() int {
	if !q.ok {
		return 0
	}
	return q.total - q.taken
}

// Close releases the underlying iterator. It is safe to call more than once.
func (q *Queue) Close() {
	q.stop()
	q.ok = false
}
