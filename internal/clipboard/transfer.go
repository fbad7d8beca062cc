package clipboard

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
	"github.com/breeze-rmm/rdpgfx/internal/workerpool"
)

var transferLog = logging.L("clipboard.transfer")

// TransferConfig sizes one file-transfer engine (spec.md §6).
type TransferConfig struct {
	ChunkBytes int
	StagingDir string
	IOWorkers  int
}

// incomingTransfer tracks one in-progress chunked receive, grounded on the
// teacher's filedrop incomingTransfer but with ConfinePath guarding the
// destination path instead of a bare filepath.Join.
type incomingTransfer struct {
	name     string
	size     int64
	received int64
	path     string
	file     *os.File
}

// TransferEngine manages chunked inbound file transfers, performing disk
// I/O on a bounded worker pool so a slow or large write never blocks the
// multiplexer's clipboard queue drain.
type TransferEngine struct {
	cfg  TransferConfig
	pool *workerpool.Pool

	mu        sync.Mutex
	transfers map[string]*incomingTransfer
}

func NewTransferEngine(cfg TransferConfig, pool *workerpool.Pool) *TransferEngine {
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = 256 << 10
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	return &TransferEngine{
		cfg:       cfg,
		pool:      pool,
		transfers: make(map[string]*incomingTransfer),
	}
}

// NewTransferID mints a fresh transfer correlation id.
func NewTransferID() string {
	return uuid.NewString()
}

// Begin starts tracking an inbound transfer of size bytes for name,
// confining its destination path under the staging directory.
func (e *TransferEngine) Begin(transferID, name string, size int64) error {
	path, err := ConfinePath(e.cfg.StagingDir, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(e.cfg.StagingDir, 0o700); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.transfers[transferID] = &incomingTransfer{name: SanitizeFileName(name), size: size, path: path, file: file}
	e.mu.Unlock()
	return nil
}

// WriteChunk schedules a chunk write on the worker pool. done is invoked
// (from a worker goroutine) once the write completes or fails.
func (e *TransferEngine) WriteChunk(transferID string, offset int64, data []byte, done func(error)) error {
	e.mu.Lock()
	t, ok := e.transfers[transferID]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownTransfer
	}

	buf := append([]byte(nil), data...)
	task := func() {
		_, err := t.file.WriteAt(buf, offset)
		if err == nil {
			e.mu.Lock()
			t.received += int64(len(buf))
			e.mu.Unlock()
		} else {
			transferLog.Warn("chunk write failed", "transferId", transferID, "error", err)
		}
		if done != nil {
			done(err)
		}
	}

	if e.pool == nil {
		task()
		return nil
	}
	if !e.pool.Submit(task) {
		return fmt.Errorf("clipboard: transfer worker pool saturated")
	}
	return nil
}

// Complete closes out transferID and returns the staged file's local path.
func (e *TransferEngine) Complete(transferID string) (path string, name string, err error) {
	e.mu.Lock()
	t, ok := e.transfers[transferID]
	if ok {
		delete(e.transfers, transferID)
	}
	e.mu.Unlock()
	if !ok {
		return "", "", ErrUnknownTransfer
	}

	if closeErr := t.file.Close(); closeErr != nil {
		return "", "", closeErr
	}
	return t.path, t.name, nil
}

// Abort cancels a tracked transfer and removes its partial staged file.
func (e *TransferEngine) Abort(transferID string) error {
	e.mu.Lock()
	t, ok := e.transfers[transferID]
	if ok {
		delete(e.transfers, transferID)
	}
	e.mu.Unlock()
	if !ok {
		return ErrUnknownTransfer
	}
	_ = t.file.Close()
	_ = os.Remove(t.path)
	return nil
}

// Chunks splits data into ChunkBytes-sized pieces for an outbound send.
func (e *TransferEngine) Chunks(data []byte) [][]byte {
	size := e.cfg.ChunkBytes
	var chunks [][]byte
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}
