package clipboard

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
	"github.com/breeze-rmm/rdpgfx/internal/workerpool"
)

var fileContentsLog = logging.L("clipboard.filecontents")

// ContentsFlag mirrors the MS-RDPECLIP FileContentsRequest dwFlags: SIZE
// asks for the 8-byte little-endian file size, RANGE asks for up to Size
// bytes starting at Offset (spec.md §4.6 "File transfer").
type ContentsFlag uint32

const (
	ContentsFlagSize  ContentsFlag = 0x1
	ContentsFlagRange ContentsFlag = 0x2
)

// contentsTransferTimeout is the per-transfer inactivity bound (spec.md
// §4.6 "On any error or 30-s inactivity, close the transfer").
const contentsTransferTimeout = 30 * time.Second

// LocalFileSource resolves a list index (from a prior FileGroupDescriptorW
// advertisement) to a readable local file. The returned ReaderAt must
// support concurrent reads at arbitrary offsets; Close releases it once
// the caller is done with this descriptor. An external collaborator,
// grounded on spec.md §6 "Inbound" OsClipboard family of contracts.
type LocalFileSource interface {
	Open(listIndex uint32) (size int64, r io.ReaderAt, close func() error, err error)
}

// outgoingTransfer tracks one advertised file being served out to the
// peer via SIZE/RANGE requests.
type outgoingTransfer struct {
	listIndex  uint32
	size       int64
	reader     io.ReaderAt
	closeFn    func() error
	lastActive time.Time
	inFlight   bool
}

// FileContentsServer answers FileContentsRequest(stream_id, list_index,
// offset, size, flags) for files this side advertised via CF_HDROP +
// FileGroupDescriptorW, enforcing at most one in-flight chunk per
// stream_id and never blocking the multiplexer tick: reads run on a
// bounded worker pool (spec.md §4.6, §5 "never blocking the multiplexer
// tick").
type FileContentsServer struct {
	src  LocalFileSource
	pool *workerpool.Pool

	mu        sync.Mutex
	transfers map[uint32]*outgoingTransfer
	now       func() time.Time
}

func NewFileContentsServer(src LocalFileSource, pool *workerpool.Pool) *FileContentsServer {
	return &FileContentsServer{
		src:       src,
		pool:      pool,
		transfers: make(map[uint32]*outgoingTransfer),
		now:       time.Now,
	}
}

// Request begins or continues serving streamID, invoking done with the
// response payload (8 bytes for SIZE, up to size bytes for RANGE) from a
// worker goroutine. A stream already serving an in-flight chunk rejects a
// concurrent Request with ErrTransferClosed; the peer is expected not to
// pipeline requests on the same stream_id (spec.md §4.6 "Concurrency: at
// most one in-flight chunk per stream_id").
func (s *FileContentsServer) Request(streamID, listIndex uint32, offset int64, size uint32, flags ContentsFlag, done func([]byte, error)) error {
	s.mu.Lock()
	t, ok := s.transfers[streamID]
	if !ok {
		sz, r, closeFn, err := s.src.Open(listIndex)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("clipboard: open list index %d: %w", listIndex, err)
		}
		t = &outgoingTransfer{listIndex: listIndex, size: sz, reader: r, closeFn: closeFn}
		s.transfers[streamID] = t
	}
	if t.inFlight {
		s.mu.Unlock()
		return ErrTransferClosed
	}
	t.inFlight = true
	t.lastActive = s.now()
	s.mu.Unlock()

	task := func() {
		payload, err := s.serve(t, offset, size, flags)
		s.mu.Lock()
		t.inFlight = false
		t.lastActive = s.now()
		s.mu.Unlock()
		if done != nil {
			done(payload, err)
		}
	}

	if s.pool == nil {
		task()
		return nil
	}
	if !s.pool.Submit(task) {
		s.mu.Lock()
		t.inFlight = false
		s.mu.Unlock()
		return fmt.Errorf("clipboard: file contents worker pool saturated")
	}
	return nil
}

func (s *FileContentsServer) serve(t *outgoingTransfer, offset int64, size uint32, flags ContentsFlag) ([]byte, error) {
	switch flags {
	case ContentsFlagSize:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(t.size))
		return buf[:], nil
	case ContentsFlagRange:
		if offset >= t.size {
			return nil, nil
		}
		n := int64(size)
		if offset+n > t.size {
			n = t.size - offset
		}
		buf := make([]byte, n)
		read, err := t.reader.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			fileContentsLog.Warn("file contents read failed", "listIndex", t.listIndex, "offset", offset, "error", err)
			return nil, err
		}
		return buf[:read], nil
	default:
		return nil, fmt.Errorf("clipboard: unknown FileContentsRequest flags %#x", flags)
	}
}

// Close releases streamID's open file handle and forgets it, used on
// completion, error, or when SweepExpired finds it stale.
func (s *FileContentsServer) Close(streamID uint32) {
	s.mu.Lock()
	t, ok := s.transfers[streamID]
	if ok {
		delete(s.transfers, streamID)
	}
	s.mu.Unlock()
	if ok && t.closeFn != nil {
		_ = t.closeFn()
	}
}

// SweepExpired closes any tracked stream whose last activity exceeds the
// 30-second inactivity bound, returning the stream ids it closed. Callers
// invoke this periodically (e.g. from the session's control tick).
func (s *FileContentsServer) SweepExpired() []uint32 {
	now := s.now()
	var expired []uint32

	s.mu.Lock()
	for id, t := range s.transfers {
		if !t.inFlight && now.Sub(t.lastActive) > contentsTransferTimeout {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.Close(id)
	}
	return expired
}
