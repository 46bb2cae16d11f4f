package testing

import (
	"testing"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAttributeTests covers GETATTR, SETATTR and FSINFO.
func (suite *StoreTestSuite) RunAttributeTests(t *testing.T) {
	t.Run("RootIsDirectory", suite.testRootIsDirectory)
	t.Run("SetAttr_Truncate", suite.testSetAttrTruncate)
	t.Run("SetAttr_Mode", suite.testSetAttrMode)
	t.Run("FsInfo", suite.testFsInfo)
	t.Run("Null", suite.testNull)
}

func (suite *StoreTestSuite) testRootIsDirectory(t *testing.T) {
	s := suite.NewStore(t)

	resp, err := s.GetAttr(testContext(), s.RootHandle())
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.True(t, resp.Attr.IsDir())
}

func (suite *StoreTestSuite) testSetAttrTruncate(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")
	mustWrite(t, s, handle, 0, []byte("0123456789"))

	resp, err := s.SetAttr(testContext(), handle, types.SetAttrs{Size: types.Uint64(4)})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	require.NotNil(t, resp.Wcc.After)
	assert.Equal(t, uint64(4), resp.Wcc.After.Size)

	read, err := s.Read(testContext(), handle, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), read.Data)
	assert.True(t, read.Eof)
}

func (suite *StoreTestSuite) testSetAttrMode(t *testing.T) {
	s := suite.NewStore(t)
	handle := mustCreate(t, s, s.RootHandle(), "file")

	_, err := s.SetAttr(testContext(), handle, types.SetAttrs{Mode: types.Uint32(0o600)})
	require.NoError(t, err)

	attr, err := s.GetAttr(testContext(), handle)
	require.NoError(t, err)
	assert.Equal(t, uint32(0o600), attr.Attr.Mode&0o777)
}

func (suite *StoreTestSuite) testFsInfo(t *testing.T) {
	s := suite.NewStore(t)

	resp, err := s.FsInfo(testContext(), s.RootHandle())
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.NotZero(t, resp.Info.Rtmax)
	assert.NotZero(t, resp.Info.Wtmax)
}

func (suite *StoreTestSuite) testNull(t *testing.T) {
	s := suite.NewStore(t)
	assert.NoError(t, s.Null(testContext()))
}
