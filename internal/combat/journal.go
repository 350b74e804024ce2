package combat

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	journalBufferSize   = 1024 // circular buffer slots
	journalMaxPerSec    = 5000 // global emit rate limit
	journalMaxPerSource = 200  // per-entity emit rate limit
	journalFlushSize    = 64
	journalFlushEvery   = 100 * time.Millisecond
)

// Journal is a bounded, rate-limited match event log with an async JSONL
// writer. Emits never block the simulation tick: over-rate or overflowing
// events are counted and dropped.
type Journal struct {
	buffer    [journalBufferSize]Event
	writeHead uint64 // atomic, producer position
	readHead  uint64 // atomic, consumer position

	globalLimiter  *rate.Limiter
	sourceLimiters sync.Map // map[string]*rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// NewJournal creates a stopped journal. Call Start to begin writing.
func NewJournal() *Journal {
	return &Journal{
		globalLimiter: rate.NewLimiter(journalMaxPerSec, journalMaxPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens the output file (append) and begins the async writer. An
// empty path keeps the journal in memory only.
func (j *Journal) Start(filePath string) error {
	if j.running.Load() {
		return nil
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrapf(err, "open journal %s", filePath)
		}
		j.file = file
	}

	j.running.Store(true)
	j.writerWg.Add(1)
	go j.writerLoop()
	return nil
}

// Stop flushes and shuts the journal down. Safe to call more than once.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		j.running.Store(false)
		close(j.stopChan)
		j.writerWg.Wait()

		j.fileMu.Lock()
		if j.file != nil {
			j.file.Close()
		}
		j.fileMu.Unlock()
	})
}

// Emit adds an event, enforcing global and per-source rate limits.
// Returns false if the event was dropped.
func (j *Journal) Emit(event Event) bool {
	if !j.running.Load() {
		return false
	}

	if !j.globalLimiter.Allow() {
		atomic.AddUint64(&j.droppedCount, 1)
		return false
	}
	if event.SourceID != "" && !j.sourceLimiter(event.SourceID).Allow() {
		atomic.AddUint64(&j.droppedCount, 1)
		return false
	}

	// AddUint64 returns the post-increment counter; this event's slot is
	// the one before it. The consumer reads [readHead, writeHead).
	seq := atomic.AddUint64(&j.writeHead, 1) - 1
	tail := atomic.LoadUint64(&j.readHead)
	if seq-tail >= journalBufferSize {
		// Rolling window: drop the oldest entry rather than the newest.
		atomic.AddUint64(&j.readHead, 1)
		atomic.AddUint64(&j.droppedCount, 1)
	}

	event.Sequence = seq
	j.buffer[seq%journalBufferSize] = event

	atomic.AddUint64(&j.totalCount, 1)
	return true
}

// EmitSimple builds and emits an event in one call.
func (j *Journal) EmitSimple(eventType EventType, tickNum uint64, sourceID string, payload interface{}) bool {
	return j.Emit(NewEvent(eventType, tickNum, sourceID, payload))
}

func (j *Journal) sourceLimiter(sourceID string) *rate.Limiter {
	if l, ok := j.sourceLimiters.Load(sourceID); ok {
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(journalMaxPerSource, journalMaxPerSource/10)
	actual, _ := j.sourceLimiters.LoadOrStore(sourceID, l)
	return actual.(*rate.Limiter)
}

func (j *Journal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(journalFlushEvery)
	defer ticker.Stop()

	batch := make([]Event, 0, journalFlushSize)
	for {
		select {
		case <-j.stopChan:
			for {
				batch = j.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.flushBatch(batch)
			}
		case <-ticker.C:
			batch = j.collectBatch(batch[:0])
			if len(batch) > 0 {
				j.flushBatch(batch)
			}
		}
	}
}

func (j *Journal) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&j.writeHead)
	tail := atomic.LoadUint64(&j.readHead)

	for i := tail; i < head && len(batch) < journalFlushSize; i++ {
		batch = append(batch, j.buffer[i%journalBufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&j.readHead, uint64(len(batch)))
	}
	return batch
}

func (j *Journal) flushBatch(batch []Event) {
	j.fileMu.Lock()
	defer j.fileMu.Unlock()

	if j.file == nil {
		return
	}
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		j.file.Write(data)
		j.file.Write([]byte("\n"))
	}
}

// Stats returns counters for monitoring.
func (j *Journal) Stats() map[string]interface{} {
	head := atomic.LoadUint64(&j.writeHead)
	tail := atomic.LoadUint64(&j.readHead)
	return map[string]interface{}{
		"total":   atomic.LoadUint64(&j.totalCount),
		"dropped": atomic.LoadUint64(&j.droppedCount),
		"pending": head - tail,
		"running": j.running.Load(),
	}
}

// DroppedCount returns the number of rate-limited or overflowed events.
func (j *Journal) DroppedCount() uint64 {
	return atomic.LoadUint64(&j.droppedCount)
}

// TotalCount returns the number of accepted events.
func (j *Journal) TotalCount() uint64 {
	return atomic.LoadUint64(&j.totalCount)
}
