// Package coalesce groups concurrent requests that share a routing key into
// pending batches. A batch flushes when it reaches the size limit or when
// its wait timer fires, whichever happens first; the backend is still
// invoked once per member, in submission order.
package coalesce

import (
	"context"
	"sync"
	"time"
)

const (
	defaultMaxBatchSize = 4
	defaultMaxWait      = 50 * time.Millisecond
)

// Key identifies which pending batch a request belongs to.
type Key struct {
	Model    string
	Endpoint string
}

// Invoker performs the actual backend call for one batch member.
type Invoker func(ctx context.Context, endpoint string, payload []byte) ([]byte, error)

type result struct {
	resp []byte
	err  error
}

type member struct {
	ctx     context.Context
	payload []byte
	done    chan result // buffered; resolving never blocks the flusher
}

type batch struct {
	key      Key
	members  []*member
	timer    *time.Timer
	openedAt time.Time
}

// Coalescer owns the pending-batch table. At most one batch is open per
// key; appending to and flushing the same key are mutually exclusive.
type Coalescer struct {
	mu     sync.Mutex
	open   map[Key]*batch
	invoke Invoker

	maxSize int
	maxWait time.Duration

	flushes uint64
}

// New constructs a Coalescer. Non-positive limits select the defaults.
func New(invoke Invoker, maxBatchSize int, maxWait time.Duration) *Coalescer {
	if maxBatchSize <= 0 {
		maxBatchSize = defaultMaxBatchSize
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Coalescer{
		open:    make(map[Key]*batch),
		invoke:  invoke,
		maxSize: maxBatchSize,
		maxWait: maxWait,
	}
}

// Submit appends the payload to the key's open batch (opening one and
// arming its flush timer if needed) and blocks until the member's future
// resolves or ctx is done. Reaching the size limit flushes immediately and
// cancels the timer.
func (c *Coalescer) Submit(ctx context.Context, key Key, payload []byte) ([]byte, error) {
	m := &member{ctx: ctx, payload: payload, done: make(chan result, 1)}

	c.mu.Lock()
	b := c.open[key]
	if b == nil {
		b = &batch{key: key, openedAt: time.Now()}
		c.open[key] = b
		armed := b
		b.timer = time.AfterFunc(c.maxWait, func() {
			if detached := c.detach(key, armed); detached != nil {
				c.run(detached)
			}
		})
	}
	b.members = append(b.members, m)
	if len(b.members) >= c.maxSize {
		delete(c.open, key)
		b.timer.Stop()
		c.flushes++
		c.mu.Unlock()
		go c.run(b)
	} else {
		c.mu.Unlock()
	}

	select {
	case r := <-m.done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// detach removes the batch from the open table if it is still the one that
// armed the timer. Returns nil when a size trigger or explicit flush got
// there first.
func (c *Coalescer) detach(key Key, want *batch) *batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.open[key]
	if b == nil || (want != nil && b != want) {
		return nil
	}
	delete(c.open, key)
	b.timer.Stop()
	c.flushes++
	return b
}

// run invokes the backend for each member in submission order. A member's
// failure rejects only that member; siblings are unaffected.
func (c *Coalescer) run(b *batch) {
	for _, m := range b.members {
		if err := m.ctx.Err(); err != nil {
			m.done <- result{err: err}
			continue
		}
		resp, err := c.invoke(m.ctx, b.key.Endpoint, m.payload)
		m.done <- result{resp: resp, err: err}
	}
}

// Flush synchronously drains the key's open batch, if any. New submissions
// for the key start a fresh batch.
func (c *Coalescer) Flush(key Key) {
	if b := c.detach(key, nil); b != nil {
		c.run(b)
	}
}

// Drain flushes every open batch and waits for the members to resolve.
// Used at shutdown.
func (c *Coalescer) Drain() {
	c.mu.Lock()
	detached := make([]*batch, 0, len(c.open))
	for key, b := range c.open {
		delete(c.open, key)
		b.timer.Stop()
		c.flushes++
		detached = append(detached, b)
	}
	c.mu.Unlock()
	for _, b := range detached {
		c.run(b)
	}
}

// Flushes reports how many batches have been flushed since startup.
func (c *Coalescer) Flushes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// PendingFor reports the size of the key's open batch. Diagnostic only.
func (c *Coalescer) PendingFor(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b := c.open[key]; b != nil {
		return len(b.members)
	}
	return 0
}
