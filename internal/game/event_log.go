package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"arena-combat/internal/world"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Circular buffer size
	MaxEventsPerSec    = 10000                  // Global rate limit
	MaxEventsPerPawn   = 500                    // Per-pawn rate limit per second
	BatchFlushSize     = 64                     // Events per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
	PawnLimiterCleanup = 5 * time.Minute        // Cleanup interval for pawn limiters
)

// Sink receives flushed batches, e.g. the audit store.
type Sink interface {
	WriteEvents(batch []Event) error
}

// EventLog provides bounded, rate-limited event logging with backpressure.
// Events are flushed as newline-delimited JSON and handed to an optional Sink.
type EventLog struct {
	// Circular buffer; oldest events are overwritten when full
	mu        sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64
	readHead  uint64

	// Rate limiting for DoS protection
	globalLimiter *rate.Limiter
	pawnLimiters  sync.Map // map[world.EntityID]*pawnLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// Outputs
	file   *os.File
	out    *bufio.Writer
	fileMu sync.Mutex
	sink   Sink
	logger zerolog.Logger

	// Stats for DoS detection and monitoring
	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
	sinkErrors   uint64 // atomic
}

// pawnLimiterEntry tracks per-pawn rate limiting
type pawnLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// NewEventLog creates a new bounded event log
func NewEventLog(logger zerolog.Logger) *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
		logger:        logger.With().Str("component", "event_log").Logger(),
	}
}

// SetSink attaches a batch consumer. Call before Start.
func (el *EventLog) SetSink(s Sink) { el.sink = s }

// Start begins the async writer goroutines. An empty path disables the file.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return errors.Wrap(err, "create event log dir")
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrap(err, "open event log")
		}
		el.file = file
		el.out = bufio.NewWriter(file)
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes what is pending and shuts down the event log
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.out.Flush()
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit adds an event with rate limiting.
// Returns false if not running or rate limited.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// Per-pawn rate limit (prevents single attacker from flooding)
	if event.Pawn != world.NoEntity {
		if !el.getPawnLimiter(event.Pawn).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	el.mu.Lock()
	el.writeHead++
	head := el.writeHead
	if head-el.readHead > EventBufferSize {
		// Drop oldest events (rolling window)
		el.readHead++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	event.Sequence = head
	el.buffer[head%EventBufferSize] = event
	el.mu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple is a convenience method to emit an event with automatic creation
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, pawn world.EntityID, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tickNum, pawn, payload))
}

// getPawnLimiter returns/creates a per-pawn rate limiter
func (el *EventLog) getPawnLimiter(pawn world.EntityID) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := el.pawnLimiters.Load(pawn); ok {
		e := entry.(*pawnLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &pawnLimiterEntry{limiter: rate.NewLimiter(MaxEventsPerPawn, MaxEventsPerPawn/10)}
	entry.lastUsed.Store(now)
	actual, _ := el.pawnLimiters.LoadOrStore(pawn, entry)
	return actual.(*pawnLimiterEntry).limiter
}

// writerLoop batches and writes events asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush of everything still buffered
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					break
				}
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale pawn limiters to prevent memory leak
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(PawnLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupPawnLimiters(time.Now().Add(-PawnLimiterCleanup))
		}
	}
}

// cleanupPawnLimiters removes limiters unused since cutoff
func (el *EventLog) cleanupPawnLimiters(cutoff time.Time) {
	el.pawnLimiters.Range(func(key, value interface{}) bool {
		entry := value.(*pawnLimiterEntry)
		if entry.lastUsed.Load() < cutoff.UnixNano() {
			el.pawnLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch reads available events from the circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		el.readHead++
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
	}
	return batch
}

// flushBatch writes events to disk (append-only, newline-delimited JSON) and the sink
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	if el.out != nil {
		for _, event := range batch {
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			el.out.Write(data)
			el.out.WriteByte('\n')
		}
		el.out.Flush()
	}
	el.fileMu.Unlock()

	if el.sink != nil {
		if err := el.sink.WriteEvents(batch); err != nil {
			atomic.AddUint64(&el.sinkErrors, 1)
			el.logger.Error().Err(err).Int("events", len(batch)).Msg("sink write failed")
		}
	}
}

// EventLogStats is a point-in-time view for monitoring
type EventLogStats struct {
	Total      uint64 `json:"total"`
	Dropped    uint64 `json:"dropped"`
	Pending    uint64 `json:"pending"`
	SinkErrors uint64 `json:"sinkErrors"`
	Running    bool   `json:"running"`
}

// GetStats returns metrics for DoS monitoring
func (el *EventLog) GetStats() EventLogStats {
	el.mu.Lock()
	pending := el.writeHead - el.readHead
	el.mu.Unlock()

	return EventLogStats{
		Total:      atomic.LoadUint64(&el.totalCount),
		Dropped:    atomic.LoadUint64(&el.droppedCount),
		Pending:    pending,
		SinkErrors: atomic.LoadUint64(&el.sinkErrors),
		Running:    el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
