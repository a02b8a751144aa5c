package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize      = 1024                   // Circular buffer size
	MaxEventsPerSec      = 10000                  // Global rate limit
	MaxEventsPerSource   = 200                    // Per-source rate limit per second
	BatchFlushSize       = 64                     // Events per batch write
	BatchFlushInterval   = 100 * time.Millisecond // How often to flush
	SourceLimiterCleanup = 5 * time.Minute        // Cleanup interval for source limiters
	RecentEvents         = 256                    // Flushed events kept for Recent
)

// EventLog provides bounded, rate-limited event logging with backpressure
type EventLog struct {
	// Circular buffer. Heads are atomics so stats never block; bufMu
	// orders slot writes against the flusher.
	buffer    [EventBufferSize]Event
	writeHead uint64 // atomic - producer position
	readHead  uint64 // atomic - consumer position
	bufMu     sync.Mutex
	recent    []Event // tail of flushed events for the API
	session   string  // stamped on every event

	// Rate limiting for DoS protection
	globalLimiter  *rate.Limiter
	sourceLimiters sync.Map // map[string]*sourceLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	fileMu   sync.Mutex
	line     bytes.Buffer // guarded by fileMu
	logger   *zap.Logger

	// Stats for DoS detection and monitoring
	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
	writeErrors  uint64 // atomic
}

// sourceLimiterEntry tracks per-source rate limiting
type sourceLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	el := &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
		logger:        zap.NewNop(),
	}
	return el
}

// SetLogger routes write failures to logger. Call before Start.
func (el *EventLog) SetLogger(logger *zap.Logger) {
	if logger != nil {
		el.logger = logger
	}
}

// Start begins the async writer goroutine
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath

	// Open file for append
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open event log %s: %w", filePath, err)
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop gracefully shuts down the event log
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit adds an event with rate limiting
// Returns false if rate limited or buffer full (DoS protection)
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	// Global rate limit check
	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// Per-source rate limit (one noisy entity or client cannot starve the rest)
	if event.Source != "" {
		limiter := el.getSourceLimiter(event.Source)
		if !limiter.Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	// Acquire write slot in circular buffer
	head := atomic.AddUint64(&el.writeHead, 1)
	tail := atomic.LoadUint64(&el.readHead)

	// Check if buffer is full (DoS backpressure)
	if head-tail >= EventBufferSize {
		// Drop oldest events (rolling window) - this is intentional under attack
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.droppedCount, 1)
	}

	// Assign sequence number and write to buffer
	event.Sequence = head
	event.Session = el.session
	idx := head % EventBufferSize
	el.buffer[idx] = event

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple is a convenience method to emit an event with automatic creation
// The payload is only encoded when the log is running.
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, source string, payload interface{}) bool {
	if el == nil || !el.running.Load() {
		return false
	}
	event := NewEvent(eventType, tickNum, source, payload)
	return el.Emit(event)
}

// getSourceLimiter returns/creates a per-source rate limiter
func (el *EventLog) getSourceLimiter(source string) *rate.Limiter {
	if entry, ok := el.sourceLimiters.Load(source); ok {
		e := entry.(*sourceLimiterEntry)
		e.lastUsed = time.Now()
		return e.limiter
	}

	entry := &sourceLimiterEntry{
		limiter:  rate.NewLimiter(MaxEventsPerSource, MaxEventsPerSource/10),
		lastUsed: time.Now(),
	}
	actual, _ := el.sourceLimiters.LoadOrStore(source, entry)
	return actual.(*sourceLimiterEntry).limiter
}

// writerLoop batches and writes events to disk asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
			return

		case <-ticker.C:
			// Periodic flush
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale source limiters to prevent memory leak
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(SourceLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupSourceLimiters()
		}
	}
}

// cleanupSourceLimiters removes inactive source limiters
func (el *EventLog) cleanupSourceLimiters() {
	cutoff := time.Now().Add(-SourceLimiterCleanup)
	el.sourceLimiters.Range(func(key, value interface{}) bool {
		entry := value.(*sourceLimiterEntry)
		if entry.lastUsed.Before(cutoff) {
			el.sourceLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch reads available events from circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	for i := tail + 1; i <= head && len(batch) < BatchFlushSize; i++ {
		idx := i % EventBufferSize
		batch = append(batch, el.buffer[idx])
		el.recent = append(el.recent, el.buffer[idx])
	}
	if over := len(el.recent) - RecentEvents; over > 0 {
		el.recent = append(el.recent[:0], el.recent[over:]...)
	}

	// Advance read head
	if len(batch) > 0 {
		atomic.AddUint64(&el.readHead, uint64(len(batch)))
	}

	return batch
}

// Recent returns up to n of the most recently flushed events, oldest first.
func (el *EventLog) Recent(n int) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()
	if n <= 0 || n > len(el.recent) {
		n = len(el.recent)
	}
	out := make([]Event, n)
	copy(out, el.recent[len(el.recent)-n:])
	return out
}

// flushBatch writes events to disk (append-only, newline-delimited JSON).
// A failed write drops the batch; the first failure is logged, the rest are counted.
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	el.line.Reset()
	enc := json.NewEncoder(&el.line)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			continue
		}
	}
	if _, err := el.file.Write(el.line.Bytes()); err != nil {
		if atomic.AddUint64(&el.writeErrors, 1) == 1 {
			el.logger.Warn("event log write failed, further failures are only counted",
				zap.String("path", el.filePath), zap.Int("events", len(batch)), zap.Error(err))
		}
	}
}

// GetStats returns metrics for DoS monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	return map[string]interface{}{
		"total":       atomic.LoadUint64(&el.totalCount),
		"dropped":     atomic.LoadUint64(&el.droppedCount),
		"pending":     head - tail,
		"running":     el.running.Load(),
		"writeErrors": atomic.LoadUint64(&el.writeErrors),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events processed
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
