// Package memory implements store.Store as an in-process NFSv3 filesystem.
//
// It backs the "memory" store type and the fake server used in tests, and
// supports fault injection: forced statuses per procedure, a per-call hook
// that can block or fail calls, and handle invalidation to simulate stale
// handles.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("memory store closed")

const (
	rootFileID = 1
	handleSize = 12
	fsid       = 0x6e6673 // "nfs"
	maxNameLen = 255
)

// Config controls the limits advertised through FSINFO.
type Config struct {
	// MaxReadSize is rtmax. READ counts above it are clamped.
	MaxReadSize uint32 `mapstructure:"max_read_size"`

	// MaxWriteSize is wtmax.
	MaxWriteSize uint32 `mapstructure:"max_write_size"`
}

// Hook runs before every procedure. A non-nil error is returned to the caller
// in place of a result, which simulates a transport failure. Hooks may block.
type Hook func(ctx context.Context, proc uint32) error

type node struct {
	attr       types.NFSFileAttr
	generation uint32
	parent     uint64
	data       []byte
	children   map[string]uint64
}

// Store is an in-memory store.Store. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	config Config
	nodes  map[uint64]*node
	nextID uint64
	verf   uint64
	closed bool

	faultMu sync.Mutex
	faults  map[uint32][]uint32
	calls   map[uint32]int
	hook    Hook
}

var _ store.Store = (*Store)(nil)

// New creates an empty store holding only the root directory.
func New(config Config) *Store {
	if config.MaxReadSize == 0 {
		config.MaxReadSize = 1 << 20
	}
	if config.MaxWriteSize == 0 {
		config.MaxWriteSize = 1 << 20
	}

	var seed [8]byte
	_, _ = rand.Read(seed[:])

	s := &Store{
		config: config,
		nodes:  make(map[uint64]*node),
		nextID: rootFileID + 1,
		verf:   binary.BigEndian.Uint64(seed[:]),
		faults: make(map[uint32][]uint32),
		calls:  make(map[uint32]int),
	}
	root := s.newNode(rootFileID, types.FileTypeDirectory, 0o755)
	root.parent = rootFileID
	return s
}

// ============================================================================
// Fault Injection
// ============================================================================

// FailNext makes the next times calls of proc return status without touching
// the filesystem.
func (s *Store) FailNext(proc uint32, status uint32, times int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	for range times {
		s.faults[proc] = append(s.faults[proc], status)
	}
}

// SetHook installs a hook run before every procedure; nil removes it.
func (s *Store) SetHook(hook Hook) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.hook = hook
}

// Calls returns how many times proc was invoked.
func (s *Store) Calls(proc uint32) int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.calls[proc]
}

// ResetCalls zeroes the call counters.
func (s *Store) ResetCalls() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.calls = make(map[uint32]int)
}

// Invalidate makes every existing handle of the object stale. The object
// keeps its content and can be looked up again under a new handle.
func (s *Store) Invalidate(handle store.FileHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.resolve(handle)
	if !ok {
		return false
	}
	n.generation++
	return true
}

// enter runs the bookkeeping shared by every procedure. A non-zero status
// means an injected fault.
func (s *Store) enter(ctx context.Context, proc uint32) (uint32, error) {
	s.faultMu.Lock()
	s.calls[proc]++
	hook := s.hook
	var status uint32
	if queue := s.faults[proc]; len(queue) > 0 {
		status = queue[0]
		s.faults[proc] = queue[1:]
	}
	s.faultMu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if hook != nil {
		if err := hook(ctx, proc); err != nil {
			return 0, err
		}
	}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return 0, ErrClosed
	}
	return status, nil
}

// ============================================================================
// Handles and Nodes
// ============================================================================

func (s *Store) handleOf(id uint64) store.FileHandle {
	n := s.nodes[id]
	handle := make(store.FileHandle, handleSize)
	binary.BigEndian.PutUint64(handle[0:8], id)
	binary.BigEndian.PutUint32(handle[8:12], n.generation)
	return handle
}

// resolve maps a handle to its node. Unknown ids and old generations are
// both stale.
func (s *Store) resolve(handle store.FileHandle) (*node, bool) {
	if len(handle) != handleSize {
		return nil, false
	}
	n, ok := s.nodes[binary.BigEndian.Uint64(handle[0:8])]
	if !ok || n.generation != binary.BigEndian.Uint32(handle[8:12]) {
		return nil, false
	}
	return n, true
}

// handleStatus classifies an unresolvable handle: malformed handles are
// BADHANDLE, well-formed ones that no longer resolve are STALE.
func handleStatus(handle store.FileHandle) uint32 {
	if len(handle) != handleSize {
		return types.NFS3ErrBadHandle
	}
	return types.NFS3ErrStale
}

func (s *Store) newNode(id uint64, fileType uint32, mode uint32) *node {
	now := types.TimeValFrom(time.Now())
	n := &node{
		attr: types.NFSFileAttr{
			Type:   fileType,
			Mode:   mode,
			Nlink:  1,
			Fsid:   fsid,
			Fileid: id,
			Atime:  now,
			Mtime:  now,
			Ctime:  now,
		},
	}
	if fileType == types.FileTypeDirectory {
		n.children = make(map[string]uint64)
		n.attr.Nlink = 2
		n.attr.Size = 4096
		n.attr.Used = 4096
	}
	s.nodes[id] = n
	return n
}

func (s *Store) allocID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

func (n *node) attrCopy() *types.NFSFileAttr {
	attr := n.attr
	return &attr
}

func (n *node) touch() {
	now := types.TimeValFrom(time.Now())
	n.attr.Mtime = now
	n.attr.Ctime = now
}

func (n *node) setSize(size uint64) {
	switch {
	case size < uint64(len(n.data)):
		n.data = n.data[:size]
	case size > uint64(len(n.data)):
		n.data = append(n.data, make([]byte, size-uint64(len(n.data)))...)
	}
	n.attr.Size = size
	n.attr.Used = size
}

// ============================================================================
// Lifecycle
// ============================================================================

// RootHandle returns the handle of the root directory.
func (s *Store) RootHandle() store.FileHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handleOf(rootFileID)
}

// Null checks that the store is open.
func (s *Store) Null(ctx context.Context) error {
	_, err := s.enter(ctx, types.NFSProcNull)
	return err
}

// FsInfo reports the configured transfer sizes.
func (s *Store) FsInfo(ctx context.Context, handle store.FileHandle) (*nfs.FsInfoResponse, error) {
	status, err := s.enter(ctx, types.NFSProcFsInfo)
	if err != nil || status != types.NFS3OK {
		return &nfs.FsInfoResponse{Status: status}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.resolve(handle)
	if !ok {
		return &nfs.FsInfoResponse{Status: handleStatus(handle)}, nil
	}
	return &nfs.FsInfoResponse{
		Status: types.NFS3OK,
		Attr:   n.attrCopy(),
		Info: nfs.FsInfo{
			Rtmax:       s.config.MaxReadSize,
			Rtpref:      s.config.MaxReadSize,
			Rtmult:      4096,
			Wtmax:       s.config.MaxWriteSize,
			Wtpref:      s.config.MaxWriteSize,
			Wtmult:      4096,
			Dtpref:      8192,
			MaxFileSize: 1<<63 - 1,
			TimeDelta:   types.TimeVal{Nseconds: 1},
			Properties:  types.FSFHomogeneous | types.FSFCanSetTime,
		},
	}, nil
}

// Close makes every further call fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
