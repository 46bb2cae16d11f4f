package testing

import (
	"fmt"
	"testing"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDirectoryTests covers READDIR.
func (suite *StoreTestSuite) RunDirectoryTests(t *testing.T) {
	t.Run("ReadDir_Empty", suite.testReadDirEmpty)
	t.Run("ReadDir_Paged", suite.testReadDirPaged)
	t.Run("ReadDir_NotDirectory", suite.testReadDirNotDirectory)
}

func (suite *StoreTestSuite) testReadDirEmpty(t *testing.T) {
	s := suite.NewStore(t)
	dir := mustMkdir(t, s, s.RootHandle(), "dir")

	resp, err := s.ReadDir(testContext(), dir, 0, 0, 8192)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.True(t, resp.Eof)

	for _, entry := range resp.Entries {
		assert.Contains(t, []string{".", ".."}, entry.Name)
	}
}

func (suite *StoreTestSuite) testReadDirPaged(t *testing.T) {
	s := suite.NewStore(t)
	dir := mustMkdir(t, s, s.RootHandle(), "dir")

	want := map[string]bool{}
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("file-%02d", i)
		mustCreate(t, s, dir, name)
		want[name] = true
	}

	got := map[string]bool{}
	var cookie, verf uint64
	pages := 0
	for {
		resp, err := s.ReadDir(testContext(), dir, cookie, verf, 512)
		require.NoError(t, err)
		require.Equal(t, types.NFS3OK, resp.Status)
		pages++

		for _, entry := range resp.Entries {
			if entry.Name != "." && entry.Name != ".." {
				got[entry.Name] = true
			}
			cookie = entry.Cookie
		}
		verf = resp.CookieVerf
		if resp.Eof {
			break
		}
		require.Less(t, pages, 100, "listing did not terminate")
	}

	assert.Equal(t, want, got)
	assert.Greater(t, pages, 1)
}

func (suite *StoreTestSuite) testReadDirNotDirectory(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")

	resp, err := s.ReadDir(testContext(), handle, 0, 0, 8192)
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrNotDir, resp.Status)
}
