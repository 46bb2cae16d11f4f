// Package testing holds a contract test suite shared by store.Store
// implementations.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite checks the store.Store contract, not implementation details,
// so the same tests run against the memory store and the NFSv3 client talking
// to the fake server.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) store.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) store.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Attributes", suite.RunAttributeTests)
	t.Run("Namespace", suite.RunNamespaceTests)
	t.Run("IO", suite.RunIOTests)
	t.Run("Directory", suite.RunDirectoryTests)
}

func testContext() context.Context {
	return context.Background()
}

func mustCreate(t *testing.T, s store.Store, dir store.FileHandle, name string) store.FileHandle {
	t.Helper()
	resp, err := s.Create(testContext(), dir, name, types.CreateUnchecked, types.SetAttrs{Mode: types.Uint32(0o644)})
	require.NoError(t, err)
	require.NoError(t, store.CheckStatus("CREATE", name, resp.Status))
	require.NotEmpty(t, resp.Handle)
	return resp.Handle
}

func mustMkdir(t *testing.T, s store.Store, dir store.FileHandle, name string) store.FileHandle {
	t.Helper()
	resp, err := s.Mkdir(testContext(), dir, name, types.SetAttrs{Mode: types.Uint32(0o755)})
	require.NoError(t, err)
	require.NoError(t, store.CheckStatus("MKDIR", name, resp.Status))
	return resp.Handle
}

func mustWrite(t *testing.T, s store.Store, handle store.FileHandle, offset uint64, data []byte) {
	t.Helper()
	resp, err := s.Write(testContext(), handle, offset, types.WriteUnstable, data)
	require.NoError(t, err)
	require.NoError(t, store.CheckStatus("WRITE", "", resp.Status))
	require.Equal(t, uint32(len(data)), resp.Count)
}
