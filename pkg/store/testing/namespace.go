package testing

import (
	"testing"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunNamespaceTests covers LOOKUP, CREATE, MKDIR, REMOVE, RMDIR and RENAME.
func (suite *StoreTestSuite) RunNamespaceTests(t *testing.T) {
	t.Run("Lookup_NotFound", suite.testLookupNotFound)
	t.Run("Lookup_AfterCreate", suite.testLookupAfterCreate)
	t.Run("Create_GuardedExists", suite.testCreateGuardedExists)
	t.Run("Create_UncheckedTruncates", suite.testCreateUncheckedTruncates)
	t.Run("Mkdir_Exists", suite.testMkdirExists)
	t.Run("Remove_StaleHandle", suite.testRemoveMakesHandleStale)
	t.Run("Rmdir_NotEmpty", suite.testRmdirNotEmpty)
	t.Run("Remove_Directory", suite.testRemoveDirectory)
	t.Run("Rename_File", suite.testRenameFile)
	t.Run("Rename_Overwrite", suite.testRenameOverwrite)
	t.Run("Rename_NotFound", suite.testRenameNotFound)
}

func (suite *StoreTestSuite) testLookupNotFound(t *testing.T) {
	s := suite.NewStore(t)

	resp, err := s.Lookup(testContext(), s.RootHandle(), "missing")
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrNoEnt, resp.Status)
}

func (suite *StoreTestSuite) testLookupAfterCreate(t *testing.T) {
	s := suite.NewStore(t)
	dir := mustMkdir(t, s, s.RootHandle(), "dir")
	handle := mustCreate(t, s, dir, "file")

	resp, err := s.Lookup(testContext(), dir, "file")
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.Equal(t, []byte(handle), resp.Handle)
	require.NotNil(t, resp.Attr)
	assert.True(t, resp.Attr.IsRegular())

	resp, err = s.Lookup(testContext(), handle, "x")
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrNotDir, resp.Status)
}

func (suite *StoreTestSuite) testCreateGuardedExists(t *testing.T) {
	s := suite.NewStore(t)
	mustCreate(t, s, s.RootHandle(), "file")

	resp, err := s.Create(testContext(), s.RootHandle(), "file", types.CreateGuarded, types.SetAttrs{})
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrExist, resp.Status)
}

func (suite *StoreTestSuite) testCreateUncheckedTruncates(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")
	mustWrite(t, s, handle, 0, []byte("content"))

	resp, err := s.Create(testContext(), s.RootHandle(), "file", types.CreateUnchecked, types.SetAttrs{Size: types.Uint64(0)})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.Equal(t, []byte(handle), resp.Handle)

	attr, err := s.GetAttr(testContext(), handle)
	require.NoError(t, err)
	assert.Zero(t, attr.Attr.Size)
}

func (suite *StoreTestSuite) testMkdirExists(t *testing.T) {
	s := suite.NewStore(t)
	mustMkdir(t, s, s.RootHandle(), "dir")

	resp, err := s.Mkdir(testContext(), s.RootHandle(), "dir", types.SetAttrs{})
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrExist, resp.Status)
}

func (suite *StoreTestSuite) testRemoveMakesHandleStale(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")

	resp, err := s.Remove(testContext(), s.RootHandle(), "file")
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)

	attr, err := s.GetAttr(testContext(), handle)
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrStale, attr.Status)

	resp, err = s.Remove(testContext(), s.RootHandle(), "file")
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrNoEnt, resp.Status)
}

func (suite *StoreTestSuite) testRmdirNotEmpty(t *testing.T) {
	s := suite.NewStore(t)
	dir := mustMkdir(t, s, s.RootHandle(), "dir")
	mustCreate(t, s, dir, "file")

	resp, err := s.Rmdir(testContext(), s.RootHandle(), "dir")
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrNotEmpty, resp.Status)

	_, err = s.Remove(testContext(), dir, "file")
	require.NoError(t, err)
	resp, err = s.Rmdir(testContext(), s.RootHandle(), "dir")
	require.NoError(t, err)
	assert.Equal(t, types.NFS3OK, resp.Status)
}

func (suite *StoreTestSuite) testRemoveDirectory(t *testing.T) {
	s := suite.NewStore(t)
	mustMkdir(t, s, s.RootHandle(), "dir")

	resp, err := s.Remove(testContext(), s.RootHandle(), "dir")
	require.NoError(t, err)
	assert.NotEqual(t, types.NFS3OK, resp.Status)
}

func (suite *StoreTestSuite) testRenameFile(t *testing.T) {
	s := suite.NewStore(t)
	src := mustMkdir(t, s, s.RootHandle(), "src")
	dst := mustMkdir(t, s, s.RootHandle(), "dst")
	handle := mustCreate(t, s, src, "a")

	resp, err := s.Rename(testContext(), src, "a", dst, "b")
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)

	lookup, err := s.Lookup(testContext(), dst, "b")
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, lookup.Status)
	assert.Equal(t, []byte(handle), lookup.Handle)

	lookup, err = s.Lookup(testContext(), src, "a")
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrNoEnt, lookup.Status)
}

func (suite *StoreTestSuite) testRenameOverwrite(t *testing.T) {
	s := suite.NewStore(t)
	a := mustCreate(t, s, s.RootHandle(), "a")
	mustWrite(t, s, a, 0, []byte("from a"))
	mustCreate(t, s, s.RootHandle(), "b")

	resp, err := s.Rename(testContext(), s.RootHandle(), "a", s.RootHandle(), "b")
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)

	lookup, err := s.Lookup(testContext(), s.RootHandle(), "b")
	require.NoError(t, err)
	read, err := s.Read(testContext(), lookup.Handle, 0, 64)
	require.NoError(t, err)
	assert.Equal(t, []byte("from a"), read.Data)
}

func (suite *StoreTestSuite) testRenameNotFound(t *testing.T) {
	s := suite.NewStore(t)

	resp, err := s.Rename(testContext(), s.RootHandle(), "nope", s.RootHandle(), "other")
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrNoEnt, resp.Status)
}
