package queue

import (
	"context"
	"fmt"
	"sync"
)

// MemoryQueue is an in-memory Queue used in tests. ReceiptHandles are
// assigned sequentially and deletion removes the message from the backlog.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []Message
	deleted  map[string]bool
	nextSeq  int
	inflight map[string]Message
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		deleted:  make(map[string]bool),
		inflight: make(map[string]Message),
	}
}

// Push enqueues a message body, assigning it a fresh receipt handle.
func (q *MemoryQueue) Push(body string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeq++
	q.pending = append(q.pending, Message{Body: body, ReceiptHandle: fmt.Sprintf("handle-%d", q.nextSeq)})
}

// Receive returns and removes all currently pending messages, tracking them
// as in-flight until Delete is called.
func (q *MemoryQueue) Receive(ctx context.Context) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	for _, m := range out {
		q.inflight[m.ReceiptHandle] = m
	}
	return out, nil
}

// Delete acknowledges a message by receipt handle.
func (q *MemoryQueue) Delete(ctx context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, msg.ReceiptHandle)
	q.deleted[msg.ReceiptHandle] = true
	return nil
}

// ExtendVisibility is a no-op for the in-memory fake.
func (q *MemoryQueue) ExtendVisibility(ctx context.Context, msg Message, seconds int32) error {
	return nil
}

// WasDeleted reports whether a message with this receipt handle was deleted.
func (q *MemoryQueue) WasDeleted(receiptHandle string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deleted[receiptHandle]
}

// Redeliver requeues an in-flight message that was never deleted,
// simulating visibility-timeout expiry.
func (q *MemoryQueue) Redeliver(receiptHandle string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if m, ok := q.inflight[receiptHandle]; ok {
		q.pending = append(q.pending, m)
	}
}
