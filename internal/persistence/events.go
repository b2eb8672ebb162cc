// Package persistence implements the two-table storage model of
// SPEC_FULL.md §4.5: a Badger-backed `submissions` table with CAS lease
// renewal, and an append-only `task_events` audit log adapted from this
// project's write-ahead-log lineage.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zkstage/coordinator/pkg/types"
)

var (
	// ErrChecksumMismatch indicates a task event's stored checksum doesn't
	// match its recomputed value — the record was corrupted or tampered
	// with between write and replay.
	ErrChecksumMismatch = errors.New("persistence: task event checksum mismatch")
	// ErrEventLogClosed indicates an operation on an already-Closed log.
	ErrEventLogClosed = errors.New("persistence: task event log is closed")
)

// TaskEvent is one append-only audit record (§3, `task_events` table).
type TaskEvent struct {
	Seq          uint64             `json:"seq"`
	Kind         types.TaskKind     `json:"kind"`
	SubmissionID types.SubmissionID `json:"submission_id"`
	TaskID       types.TaskID       `json:"task_id"`
	State        types.TaskState    `json:"state"`
	WorkerID     string             `json:"worker_id,omitempty"`
	TimeCostSecs float64            `json:"time_cost_secs,omitempty"`
	ContentBlob  string             `json:"content_blob,omitempty"`
	CreatedAt    int64              `json:"created_at"`
	Checksum     uint32             `json:"checksum"`
}

func calculateChecksum(e TaskEvent) uint32 {
	data := string(e.Kind) + string(e.SubmissionID) + string(e.TaskID) + e.State.String() +
		fmt.Sprintf(":%d", e.Seq)
	return crc32.ChecksumIEEE([]byte(data))
}

func verifyChecksum(e TaskEvent) bool { return e.Checksum == calculateChecksum(e) }

type batchRequest struct {
	event TaskEvent
	errCh chan error
}

// EventLog is the append-only task_events store: one JSON record per line,
// written in batches with a single fsync per batch (the teacher's WAL
// batch-commit design, generalized from per-job ENQUEUE/ACK/RETRY events
// to per-task Split/Prove/Agg/Snark state transitions).
type EventLog struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	path    string
	seq     uint64

	batchChan     chan batchRequest
	bufferSize    int
	flushInterval time.Duration
	closed        chan struct{}
	wg            sync.WaitGroup
	isClosed      bool
}

// Open creates or appends to the task event log at path, starting its
// background batch writer.
func Open(path string, bufferSize int, flushInterval time.Duration) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create event log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("persistence: open event log: %w", err)
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 10 * time.Millisecond
	}

	var seq uint64
	if last, err := lastEvent(path); err == nil && last != nil {
		seq = last.Seq
	}

	l := &EventLog{
		file:          file,
		encoder:       json.NewEncoder(file),
		path:          path,
		seq:           seq,
		batchChan:     make(chan batchRequest, bufferSize*2),
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		closed:        make(chan struct{}),
	}
	l.wg.Add(1)
	go l.batchWriter()
	return l, nil
}

// Append writes one task event, returning once it (and its batch) have
// been fsynced.
func (l *EventLog) Append(kind types.TaskKind, submissionID types.SubmissionID, taskID types.TaskID, state types.TaskState, workerID string, timeCostSecs float64, contentBlob string) error {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	event := TaskEvent{
		Seq:          seq,
		Kind:         kind,
		SubmissionID: submissionID,
		TaskID:       taskID,
		State:        state,
		WorkerID:     workerID,
		TimeCostSecs: timeCostSecs,
		ContentBlob:  contentBlob,
		CreatedAt:    time.Now().Unix(),
	}
	event.Checksum = calculateChecksum(event)

	errCh := make(chan error, 1)
	select {
	case l.batchChan <- batchRequest{event: event, errCh: errCh}:
		return <-errCh
	case <-l.closed:
		return ErrEventLogClosed
	}
}

// FetchForSubmission replays the log, filtering by submission id and
// (optionally) kind — kind == "" matches every kind.
func (l *EventLog) FetchForSubmission(id types.SubmissionID, kind types.TaskKind) ([]TaskEvent, error) {
	var out []TaskEvent
	err := l.Replay(func(e TaskEvent) error {
		if e.SubmissionID == id && (kind == "" || e.Kind == kind) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Replay reads every event from the start of the log, verifying checksums,
// calling handler for each.
func (l *EventLog) Replay(handler func(TaskEvent) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("persistence: open event log for replay: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	for {
		var e TaskEvent
		if err := decoder.Decode(&e); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("persistence: decode task event: %w", err)
		}
		if !verifyChecksum(e) {
			return ErrChecksumMismatch
		}
		if err := handler(e); err != nil {
			return err
		}
	}
	return nil
}

// LastSeq returns the most recently assigned sequence number.
func (l *EventLog) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

func (l *EventLog) batchWriter() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	batch := make([]batchRequest, 0, l.bufferSize)
	for {
		select {
		case req := <-l.batchChan:
			batch = append(batch, req)
			if len(batch) >= l.bufferSize {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		case <-l.closed:
			if len(batch) > 0 {
				l.flushBatch(batch)
			}
			return
		}
	}
}

func (l *EventLog) flushBatch(batch []batchRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var flushErr error
	for i := range batch {
		if err := l.encoder.Encode(batch[i].event); err != nil {
			flushErr = fmt.Errorf("persistence: encode task event: %w", err)
			break
		}
	}
	if flushErr == nil {
		flushErr = l.file.Sync()
	}
	for i := range batch {
		batch[i].errCh <- flushErr
		close(batch[i].errCh)
	}
}

// Close flushes any pending batch and closes the underlying file. The
// EventLog must not be used after Close returns.
func (l *EventLog) Close() error {
	l.mu.Lock()
	if l.isClosed {
		l.mu.Unlock()
		return nil
	}
	l.isClosed = true
	l.mu.Unlock()

	close(l.closed)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func lastEvent(path string) (*TaskEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	var last *TaskEvent
	for {
		var e TaskEvent
		if err := decoder.Decode(&e); err == io.EOF {
			break
		} else if err != nil {
			return last, nil
		}
		ev := e
		last = &ev
	}
	return last, nil
}
