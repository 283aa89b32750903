package audio

import "sync"

// ChunkQueue is the handoff between the driver callback (single producer) and
// the recorder (single consumer). Push never blocks on the consumer and never
// drops: the backing slice grows as needed.
type ChunkQueue struct {
	mu     sync.Mutex
	chunks [][]byte
	frames uint64
}

// Push copies data onto the tail of the queue.
func (q *ChunkQueue) Push(data []byte) {
	if len(data) == 0 {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)

	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.frames += uint64(len(data) / BytesPerSample)
	q.mu.Unlock()
}

// Drain returns everything queued so far in arrival order and empties the queue.
func (q *ChunkQueue) Drain() [][]byte {
	q.mu.Lock()
	chunks := q.chunks
	q.chunks = nil
	q.frames = 0
	q.mu.Unlock()
	return chunks
}

func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Frames reports the number of samples currently queued.
func (q *ChunkQueue) Frames() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frames
}
