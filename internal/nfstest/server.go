// Package nfstest runs an in-process NFSv3 server for tests.
//
// One TCP listener answers the portmapper, MOUNT v3 and NFSv3 programs, with
// every NFS procedure served by a memory.Store. Faults can be injected at the
// RPC level (swallowed calls, dropped connections) and, through the store, at
// the NFS level.
package nfstest

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/mount"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
	"github.com/marmos91/nfsgate/pkg/store/memory"
	"go.uber.org/atomic"
)

// Server is a fake NFS server.
type Server struct {
	Store  *memory.Store
	Export string

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	drop     atomic.Int32
	calls    atomic.Int64
	accepted atomic.Int64
}

// New starts a server for export on a random loopback port.
func New(st *memory.Store, export string) (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Store:    st,
		Export:   export,
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Start runs a server over a fresh memory store exporting "/export" and
// stops it when the test ends.
func Start(t testing.TB) *Server {
	t.Helper()
	s, err := New(memory.New(memory.Config{}), "/export")
	if err != nil {
		t.Fatalf("start nfs test server: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port, shared by all three programs.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// DropNext swallows the next n calls without replying.
func (s *Server) DropNext(n int) { s.drop.Add(int32(n)) }

// Calls returns the number of calls received.
func (s *Server) Calls() int64 { return s.calls.Load() }

// Accepted returns the number of connections accepted.
func (s *Server) Accepted() int64 { return s.accepted.Load() }

// DropConnections closes every open connection.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// Close stops the server.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.accepted.Inc()

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	records := rpc.NewRecordReader(bufio.NewReader(conn), 0)
	var writeMu sync.Mutex
	var handlers sync.WaitGroup
	defer handlers.Wait()

	for {
		record, err := records.ReadRecord()
		if err != nil {
			return
		}
		call, err := rpc.ReadCall(record)
		if err != nil {
			logger.Debug("nfstest: bad call: %v", err)
			return
		}
		args, err := rpc.ReadData(record, call)
		if err != nil {
			return
		}

		s.calls.Inc()
		if s.drop.Load() > 0 && s.drop.Dec() >= 0 {
			continue
		}

		// Calls are served concurrently, so replies may go out of order.
		handlers.Add(1)
		go func() {
			defer handlers.Done()
			reply := s.dispatch(call, args)
			if reply == nil {
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			_, _ = conn.Write(reply)
		}()
	}
}

func (s *Server) dispatch(call *rpc.RPCCallMessage, args []byte) []byte {
	var (
		reply []byte
		err   error
	)
	switch call.Program {
	case rpc.ProgramPortmap:
		reply, err = s.handlePortmap(call, args)
	case rpc.ProgramMount:
		reply, err = s.handleMount(call, args)
	case rpc.ProgramNFS:
		if call.Version != rpc.NFSVersion {
			reply, err = rpc.MakeProgMismatchReply(call.XID, rpc.NFSVersion, rpc.NFSVersion)
			break
		}
		reply, err = s.handleNFS(call, args)
	default:
		reply, err = rpc.MakeErrorReply(call.XID, rpc.RPCProgUnavail)
	}
	if err != nil {
		logger.Debug("nfstest: xid=0x%x: %v", call.XID, err)
		return nil
	}
	return reply
}

func (s *Server) handlePortmap(call *rpc.RPCCallMessage, args []byte) ([]byte, error) {
	switch call.Procedure {
	case mount.PortmapProcNull:
		return rpc.MakeSuccessReply(call.XID, nil)
	case mount.PortmapProcGetPort:
		mapping, err := mount.DecodeMapping(args)
		if err != nil {
			return rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
		}
		var port uint32
		if mapping.Protocol == mount.ProtoTCP &&
			(mapping.Program == rpc.ProgramMount || mapping.Program == rpc.ProgramNFS) {
			port = uint32(s.Port())
		}
		body, err := (&mount.GetPortResponse{Port: port}).Encode()
		if err != nil {
			return nil, err
		}
		return rpc.MakeSuccessReply(call.XID, body)
	default:
		return rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail)
	}
}

func (s *Server) handleMount(call *rpc.RPCCallMessage, args []byte) ([]byte, error) {
	switch call.Procedure {
	case mount.MountProcNull, mount.MountProcUmnt, mount.MountProcUmntAll:
		return rpc.MakeSuccessReply(call.XID, nil)
	case mount.MountProcMnt:
		req, err := mount.DecodeMountRequest(args)
		if err != nil {
			return rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
		}
		resp := &mount.MountResponse{Status: mount.MountErrNoEnt}
		if req.DirPath == s.Export {
			resp = &mount.MountResponse{
				Status:      mount.MountOK,
				FileHandle:  s.Store.RootHandle(),
				AuthFlavors: []uint32{rpc.AuthNull, rpc.AuthUnix},
			}
		}
		body, err := resp.Encode()
		if err != nil {
			return nil, err
		}
		return rpc.MakeSuccessReply(call.XID, body)
	default:
		return rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail)
	}
}
