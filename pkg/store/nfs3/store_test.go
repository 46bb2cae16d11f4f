package nfs3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/nfsgate/internal/nfstest"
	"github.com/marmos91/nfsgate/internal/protocol/mount"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
	"github.com/marmos91/nfsgate/pkg/store"
	storetesting "github.com/marmos91/nfsgate/pkg/store/testing"
	"github.com/marmos91/nfsgate/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTransport() transport.Config {
	return transport.Config{
		CallTimeout:    500 * time.Millisecond,
		MaxRetries:     3,
		ReconnectDelay: 20 * time.Millisecond,
		IdleTick:       5 * time.Millisecond,
	}
}

func directConfig(server *nfstest.Server) DialConfig {
	return DialConfig{
		Host:        server.Host(),
		Export:      server.Export,
		NFSPort:     server.Port(),
		MountPort:   server.Port(),
		Transport:   testTransport(),
		Credentials: rpc.NewUnixAuth(1000, 1000),
	}
}

func dial(t *testing.T, server *nfstest.Server) *Store {
	t.Helper()
	s, err := Dial(context.Background(), directConfig(server), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNFS3Store(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			return dial(t, nfstest.Start(t))
		},
	}
	suite.Run(t)
}

func TestDial(t *testing.T) {
	ctx := context.Background()

	t.Run("Portmap", func(t *testing.T) {
		server := nfstest.Start(t)
		config := directConfig(server)
		config.NFSPort, config.MountPort = 0, 0
		config.PortmapPort = server.Port()

		s, err := Dial(ctx, config, nil)
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, []byte(server.Store.RootHandle()), []byte(s.RootHandle()))
		require.NoError(t, s.Null(ctx))
	})

	t.Run("UnknownExport", func(t *testing.T) {
		server := nfstest.Start(t)
		config := directConfig(server)
		config.Export = "/nope"

		_, err := Dial(ctx, config, nil)
		var mountErr *MountError
		require.True(t, errors.As(err, &mountErr))
		assert.Equal(t, mount.MountErrNoEnt, mountErr.Status)
		assert.Contains(t, err.Error(), "MNT3ERR_NOENT")
	})

	t.Run("MissingHost", func(t *testing.T) {
		_, err := Dial(ctx, DialConfig{}, nil)
		assert.Error(t, err)
	})
}

func TestTransportFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("LostCallIsRetried", func(t *testing.T) {
		server := nfstest.Start(t)
		s := dial(t, server)

		server.DropNext(1)
		resp, err := s.GetAttr(ctx, s.RootHandle())
		require.NoError(t, err)
		assert.Equal(t, types.NFS3OK, resp.Status)
	})

	t.Run("AllAttemptsLost", func(t *testing.T) {
		server := nfstest.Start(t)
		s := dial(t, server)

		server.DropNext(3)
		_, err := s.GetAttr(ctx, s.RootHandle())
		assert.ErrorIs(t, err, transport.ErrTimeout)
	})

	t.Run("ConnectionDropped", func(t *testing.T) {
		server := nfstest.Start(t)
		s := dial(t, server)
		require.NoError(t, s.Null(ctx))

		server.DropConnections()
		resp, err := s.GetAttr(ctx, s.RootHandle())
		require.NoError(t, err)
		assert.Equal(t, types.NFS3OK, resp.Status)
	})

	t.Run("StatusPassesThrough", func(t *testing.T) {
		server := nfstest.Start(t)
		s := dial(t, server)

		server.Store.FailNext(types.NFSProcLookup, types.NFS3ErrAcces, 1)
		resp, err := s.Lookup(ctx, s.RootHandle(), "x")
		require.NoError(t, err)
		assert.Equal(t, types.NFS3ErrAcces, resp.Status)
	})
}

type unlimitedCaller struct{}

func (unlimitedCaller) Service(context.Context, uint32, uint32, uint32, []byte, rpc.Credentials) (*rpc.Reply, error) {
	return nil, errors.New("not connected")
}

type limitedCaller struct {
	unlimitedCaller
	size int
}

func (c limitedCaller) MaxRecordSize() int { return c.size }

func TestMaxTransferSize(t *testing.T) {
	assert.Equal(t, uint32(0), New(unlimitedCaller{}, nil, nil).MaxTransferSize())
	assert.Equal(t, uint32(4<<20-replyOverhead), New(limitedCaller{size: 4 << 20}, nil, nil).MaxTransferSize())
	assert.Equal(t, uint32(0), New(limitedCaller{size: replyOverhead}, nil, nil).MaxTransferSize())

	t.Run("DialedStoreUsesTransportLimit", func(t *testing.T) {
		s := dial(t, nfstest.Start(t))
		assert.Equal(t, uint32(rpc.DefaultMaxRecordSize-replyOverhead), s.MaxTransferSize())
	})
}
