package capture

import "sync"

// fileQueue dispatches jobs in enqueue order per key and runs them serially.
// Different keys run concurrently. A key's goroutine exits once its queue
// is empty.
type fileQueue struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
}

func newFileQueue() *fileQueue {
	return &fileQueue{queues: make(map[string][]func())}
}

func (q *fileQueue) enqueue(key string, job func()) {
	q.mu.Lock()
	pending, running := q.queues[key]
	q.queues[key] = append(pending, job)
	q.wg.Add(1)
	q.mu.Unlock()
	if !running {
		go q.drain(key)
	}
}

func (q *fileQueue) drain(key string) {
	for {
		q.mu.Lock()
		pending := q.queues[key]
		if len(pending) == 0 {
			delete(q.queues, key)
			q.mu.Unlock()
			return
		}
		job := pending[0]
		q.queues[key] = pending[1:]
		q.mu.Unlock()

		job()
		q.wg.Done()
	}
}

// wait blocks until every enqueued job has run.
func (q *fileQueue) wait() {
	q.wg.Wait()
}
