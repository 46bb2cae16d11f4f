package testing

import (
	"bytes"
	"testing"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunIOTests covers READ, WRITE and COMMIT.
func (suite *StoreTestSuite) RunIOTests(t *testing.T) {
	t.Run("ReadWrite_RoundTrip", suite.testReadWriteRoundTrip)
	t.Run("Read_PastEnd", suite.testReadPastEnd)
	t.Run("Write_Sparse", suite.testWriteSparse)
	t.Run("Write_Directory", suite.testWriteDirectory)
	t.Run("Commit", suite.testCommit)
	t.Run("Read_StaleHandle", suite.testReadStaleHandle)
}

func (suite *StoreTestSuite) testReadWriteRoundTrip(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")
	data := bytes.Repeat([]byte("nfsgate-"), 1024)
	mustWrite(t, s, handle, 0, data)

	resp, err := s.Read(testContext(), handle, 0, uint32(len(data)))
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.Equal(t, data, resp.Data)
	assert.True(t, resp.Eof)

	resp, err = s.Read(testContext(), handle, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("nfsgate-"), resp.Data)
	assert.False(t, resp.Eof)
}

func (suite *StoreTestSuite) testReadPastEnd(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")
	mustWrite(t, s, handle, 0, []byte("abc"))

	resp, err := s.Read(testContext(), handle, 3, 10)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.Empty(t, resp.Data)
	assert.True(t, resp.Eof)
}

func (suite *StoreTestSuite) testWriteSparse(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")
	mustWrite(t, s, handle, 4, []byte("x"))

	resp, err := s.Read(testContext(), handle, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 'x'}, resp.Data)
}

func (suite *StoreTestSuite) testWriteDirectory(t *testing.T) {
	s := suite.NewStore(t)
	dir := mustMkdir(t, s, s.RootHandle(), "dir")

	resp, err := s.Write(testContext(), dir, 0, types.WriteUnstable, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrIsDir, resp.Status)
}

func (suite *StoreTestSuite) testCommit(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")

	write, err := s.Write(testContext(), handle, 0, types.WriteUnstable, []byte("data"))
	require.NoError(t, err)

	resp, err := s.Commit(testContext(), handle, 0, 0)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.Equal(t, write.Verf, resp.Verf)
}

func (suite *StoreTestSuite) testReadStaleHandle(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")
	_, err := s.Remove(testContext(), s.RootHandle(), "file")
	require.NoError(t, err)

	resp, err := s.Read(testContext(), handle, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrStale, resp.Status)
}
