package nfs

import (
	"encoding/binary"
	"testing"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHandle = []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}

func testAttr(fileType uint32, size uint64) *types.NFSFileAttr {
	return &types.NFSFileAttr{
		Type:   fileType,
		Mode:   0o644,
		Nlink:  1,
		Size:   size,
		Fileid: 42,
		Mtime:  types.TimeVal{Seconds: 1700000000},
	}
}

func TestRequestsRoundTrip(t *testing.T) {
	t.Run("GetAttr", func(t *testing.T) {
		data, err := (&GetAttrRequest{Handle: testHandle}).Encode()
		require.NoError(t, err)
		// length + 6 bytes + 2 padding
		assert.Len(t, data, 12)

		req, err := DecodeGetAttrRequest(data)
		require.NoError(t, err)
		assert.Equal(t, testHandle, req.Handle)
	})

	t.Run("Lookup", func(t *testing.T) {
		data, err := (&LookupRequest{Dir: testHandle, Name: "file.txt"}).Encode()
		require.NoError(t, err)

		req, err := DecodeLookupRequest(data)
		require.NoError(t, err)
		assert.Equal(t, "file.txt", req.Name)
		assert.Equal(t, testHandle, req.Dir)
	})

	t.Run("Read", func(t *testing.T) {
		data, err := (&ReadRequest{Handle: testHandle, Offset: 1 << 33, Count: 4096}).Encode()
		require.NoError(t, err)

		req, err := DecodeReadRequest(data)
		require.NoError(t, err)
		assert.Equal(t, uint64(1<<33), req.Offset)
		assert.Equal(t, uint32(4096), req.Count)
	})

	t.Run("Write", func(t *testing.T) {
		payload := []byte("hello")
		data, err := (&WriteRequest{
			Handle: testHandle,
			Offset: 10,
			Count:  uint32(len(payload)),
			Stable: types.WriteUnstable,
			Data:   payload,
		}).Encode()
		require.NoError(t, err)

		req, err := DecodeWriteRequest(data)
		require.NoError(t, err)
		assert.Equal(t, payload, req.Data)
		assert.Equal(t, uint64(10), req.Offset)
		assert.Equal(t, types.WriteUnstable, req.Stable)
	})

	t.Run("WriteRejectsCountMismatch", func(t *testing.T) {
		_, err := (&WriteRequest{Handle: testHandle, Count: 3, Data: []byte("x")}).Encode()
		assert.Error(t, err)
	})

	t.Run("Commit", func(t *testing.T) {
		data, err := (&CommitRequest{Handle: testHandle}).Encode()
		require.NoError(t, err)

		req, err := DecodeCommitRequest(data)
		require.NoError(t, err)
		assert.Zero(t, req.Offset)
		assert.Zero(t, req.Count)
	})

	t.Run("SetAttrWithGuard", func(t *testing.T) {
		guard := types.TimeVal{Seconds: 5, Nseconds: 6}
		original := &SetAttrRequest{
			Handle: testHandle,
			Attrs:  types.SetAttrs{Size: types.Uint64(0)},
			Guard:  &guard,
		}
		data, err := original.Encode()
		require.NoError(t, err)

		req, err := DecodeSetAttrRequest(data)
		require.NoError(t, err)
		assert.Equal(t, original, req)
	})

	t.Run("CreateUnchecked", func(t *testing.T) {
		original := &CreateRequest{
			Dir:   testHandle,
			Name:  "new",
			Mode:  types.CreateUnchecked,
			Attrs: types.SetAttrs{Mode: types.Uint32(0o600)},
		}
		data, err := original.Encode()
		require.NoError(t, err)

		req, err := DecodeCreateRequest(data)
		require.NoError(t, err)
		assert.Equal(t, original, req)
	})

	t.Run("CreateExclusive", func(t *testing.T) {
		original := &CreateRequest{Dir: testHandle, Name: "x", Mode: types.CreateExclusive, Verf: 77}
		data, err := original.Encode()
		require.NoError(t, err)

		req, err := DecodeCreateRequest(data)
		require.NoError(t, err)
		assert.Equal(t, uint64(77), req.Verf)
	})

	t.Run("CreateRejectsUnknownMode", func(t *testing.T) {
		_, err := (&CreateRequest{Dir: testHandle, Name: "x", Mode: 9}).Encode()
		assert.Error(t, err)
	})

	t.Run("Mkdir", func(t *testing.T) {
		original := &MkdirRequest{Dir: testHandle, Name: "sub", Attrs: types.SetAttrs{Mode: types.Uint32(0o755)}}
		data, err := original.Encode()
		require.NoError(t, err)

		req, err := DecodeMkdirRequest(data)
		require.NoError(t, err)
		assert.Equal(t, original, req)
	})

	t.Run("Rename", func(t *testing.T) {
		original := &RenameRequest{FromDir: testHandle, FromName: "a", ToDir: []byte{1}, ToName: "b"}
		data, err := original.Encode()
		require.NoError(t, err)

		req, err := DecodeRenameRequest(data)
		require.NoError(t, err)
		assert.Equal(t, original, req)
	})

	t.Run("ReadDir", func(t *testing.T) {
		original := &ReadDirRequest{Dir: testHandle, Cookie: 3, CookieVerf: 9, Count: 8192}
		data, err := original.Encode()
		require.NoError(t, err)

		req, err := DecodeReadDirRequest(data)
		require.NoError(t, err)
		assert.Equal(t, original, req)
	})

	t.Run("RejectsEmptyHandle", func(t *testing.T) {
		_, err := (&GetAttrRequest{}).Encode()
		assert.Error(t, err)
	})

	t.Run("RejectsOversizedHandle", func(t *testing.T) {
		_, err := (&FsInfoRequest{Handle: make([]byte, types.MaxFileHandleSize+1)}).Encode()
		assert.Error(t, err)
	})
}

func TestResponsesRoundTrip(t *testing.T) {
	t.Run("GetAttrOK", func(t *testing.T) {
		original := &GetAttrResponse{Status: types.NFS3OK, Attr: testAttr(types.FileTypeRegular, 10)}
		data, err := original.Encode()
		require.NoError(t, err)
		assert.Len(t, data, 4+84)

		resp, err := DecodeGetAttrResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("GetAttrStaleHasNoBody", func(t *testing.T) {
		data, err := (&GetAttrResponse{Status: types.NFS3ErrStale}).Encode()
		require.NoError(t, err)
		assert.Equal(t, types.NFS3ErrStale, binary.BigEndian.Uint32(data))
		assert.Len(t, data, 4)

		resp, err := DecodeGetAttrResponse(data)
		require.NoError(t, err)
		assert.Nil(t, resp.Attr)
	})

	t.Run("LookupFailureKeepsDirAttr", func(t *testing.T) {
		original := &LookupResponse{Status: types.NFS3ErrNoEnt, DirAttr: testAttr(types.FileTypeDirectory, 0)}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeLookupResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("LookupOK", func(t *testing.T) {
		original := &LookupResponse{
			Status:  types.NFS3OK,
			Handle:  testHandle,
			Attr:    testAttr(types.FileTypeRegular, 1),
			DirAttr: testAttr(types.FileTypeDirectory, 0),
		}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeLookupResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("Read", func(t *testing.T) {
		original := &ReadResponse{
			Status: types.NFS3OK,
			Attr:   testAttr(types.FileTypeRegular, 3),
			Count:  3,
			Eof:    true,
			Data:   []byte("abc"),
		}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeReadResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("ReadRejectsCountMismatch", func(t *testing.T) {
		data, err := (&ReadResponse{Status: types.NFS3OK, Count: 5, Data: []byte("abc")}).Encode()
		require.NoError(t, err)

		_, err = DecodeReadResponse(data)
		assert.Error(t, err)
	})

	t.Run("Write", func(t *testing.T) {
		original := &WriteResponse{
			Status:    types.NFS3OK,
			Wcc:       types.WccData{After: testAttr(types.FileTypeRegular, 5)},
			Count:     5,
			Committed: types.WriteUnstable,
			Verf:      0x1122334455667788,
		}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeWriteResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("WriteFailure", func(t *testing.T) {
		data, err := (&WriteResponse{Status: types.NFS3ErrNoSpc, Count: 99}).Encode()
		require.NoError(t, err)

		resp, err := DecodeWriteResponse(data)
		require.NoError(t, err)
		assert.Equal(t, types.NFS3ErrNoSpc, resp.Status)
		assert.Zero(t, resp.Count)
	})

	t.Run("Commit", func(t *testing.T) {
		original := &CommitResponse{Status: types.NFS3OK, Verf: 12}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeCommitResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("Create", func(t *testing.T) {
		original := &CreateResponse{
			Status: types.NFS3OK,
			Handle: testHandle,
			Attr:   testAttr(types.FileTypeRegular, 0),
			DirWcc: types.WccData{After: testAttr(types.FileTypeDirectory, 0)},
		}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeCreateResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("CreateExist", func(t *testing.T) {
		data, err := (&CreateResponse{Status: types.NFS3ErrExist}).Encode()
		require.NoError(t, err)

		resp, err := DecodeCreateResponse(data)
		require.NoError(t, err)
		assert.Equal(t, types.NFS3ErrExist, resp.Status)
		assert.Nil(t, resp.Handle)
	})

	t.Run("Remove", func(t *testing.T) {
		original := &RemoveResponse{Status: types.NFS3ErrNotEmpty}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeRemoveResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("Rename", func(t *testing.T) {
		original := &RenameResponse{
			Status:     types.NFS3OK,
			FromDirWcc: types.WccData{After: testAttr(types.FileTypeDirectory, 0)},
		}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeRenameResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("ReadDir", func(t *testing.T) {
		original := &ReadDirResponse{
			Status:     types.NFS3OK,
			CookieVerf: 4,
			Entries: []types.DirEntry{
				{Fileid: 1, Name: ".", Cookie: 1},
				{Fileid: 2, Name: "..", Cookie: 2},
				{Fileid: 3, Name: "data.bin", Cookie: 3},
			},
			Eof: true,
		}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeReadDirResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("ReadDirEmpty", func(t *testing.T) {
		data, err := (&ReadDirResponse{Status: types.NFS3OK}).Encode()
		require.NoError(t, err)

		resp, err := DecodeReadDirResponse(data)
		require.NoError(t, err)
		assert.Empty(t, resp.Entries)
		assert.False(t, resp.Eof)
	})

	t.Run("FsInfo", func(t *testing.T) {
		original := &FsInfoResponse{
			Status: types.NFS3OK,
			Info: FsInfo{
				Rtmax:       65536,
				Rtpref:      65536,
				Rtmult:      4096,
				Wtmax:       32768,
				Wtpref:      32768,
				Wtmult:      4096,
				Dtpref:      8192,
				MaxFileSize: 1 << 40,
				TimeDelta:   types.TimeVal{Nseconds: 1},
				Properties:  types.FSFHomogeneous | types.FSFCanSetTime,
			},
		}
		data, err := original.Encode()
		require.NoError(t, err)
		assert.Len(t, data, 4+4+48)

		resp, err := DecodeFsInfoResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("TruncatedResponse", func(t *testing.T) {
		data, err := (&GetAttrResponse{Status: types.NFS3OK, Attr: testAttr(types.FileTypeRegular, 1)}).Encode()
		require.NoError(t, err)

		_, err = DecodeGetAttrResponse(data[:20])
		assert.Error(t, err)
	})
}
