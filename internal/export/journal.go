package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/memelab/internal/domain"
)

const defaultQueueSize = 64

// JournalConfig configures a Journal.
type JournalConfig struct {
	Dir       string
	QueueSize int
}

// Journal appends every new submission to submissions.jsonl,
// submissions.csv and codes.csv under a directory. Writes happen on a
// background goroutine so request handlers never wait on the disk; the
// database stays the source of truth.
type Journal struct {
	dir    string
	queue  chan *domain.SubmissionRecord
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewJournal creates the directory and starts the writer.
func NewJournal(cfg JournalConfig, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("journal directory is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Journal{
		dir:    cfg.Dir,
		queue:  make(chan *domain.SubmissionRecord, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	j.wg.Add(1)
	go j.run()

	return j, nil
}

// Record queues rec for writing. It never blocks; when the queue is full
// the record is dropped with a warning.
func (j *Journal) Record(rec *domain.SubmissionRecord) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.logger.Warn("Journal closed, dropping submission", "survey_code", rec.SurveyCode)
		return
	}

	select {
	case j.queue <- rec:
	default:
		j.logger.Warn("Journal queue full, dropping submission",
			"survey_code", rec.SurveyCode,
			"queue_len", len(j.queue),
		)
	}
}

func (j *Journal) run() {
	defer j.wg.Done()

	for {
		select {
		case rec := <-j.queue:
			j.write(rec)
		case <-j.ctx.Done():
			// Flush what was accepted before Close.
			for {
				select {
				case rec := <-j.queue:
					j.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(rec *domain.SubmissionRecord) {
	start := time.Now()

	if err := j.appendLine(rec); err != nil {
		j.logger.Error("Failed to journal submission", "file", SubmissionsJSONL, "survey_code", rec.SurveyCode, "error", err)
	}
	if err := j.appendRow(SubmissionsCSV, SubmissionsHeader, SubmissionRow(rec)); err != nil {
		j.logger.Error("Failed to journal submission", "file", SubmissionsCSV, "survey_code", rec.SurveyCode, "error", err)
	}
	if err := j.appendRow(CodesCSV, CodesHeader, CodeRow(rec)); err != nil {
		j.logger.Error("Failed to journal submission", "file", CodesCSV, "survey_code", rec.SurveyCode, "error", err)
	}

	if d := time.Since(start); d > 100*time.Millisecond {
		j.logger.Warn("Slow journal write", "duration_ms", d.Milliseconds())
	}
}

func (j *Journal) appendLine(rec *domain.SubmissionRecord) error {
	f, err := os.OpenFile(filepath.Join(j.dir, SubmissionsJSONL), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return enc.Encode(NewLine(rec))
}

// appendRow writes header first when the file is new or empty.
func (j *Journal) appendRow(name string, header, row []string) error {
	f, err := os.OpenFile(filepath.Join(j.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Close stops accepting records, writes the ones already queued and waits
// for the writer to finish.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	j.logger.Info("Closing journal", "queue_remaining", len(j.queue))
	j.cancel()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("journal shutdown timed out")
	}
}
