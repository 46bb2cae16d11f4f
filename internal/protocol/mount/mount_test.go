package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountCodec(t *testing.T) {
	t.Run("RequestRoundTrip", func(t *testing.T) {
		data, err := (&MountRequest{DirPath: "/export"}).Encode()
		require.NoError(t, err)
		assert.Len(t, data, 12)

		req, err := DecodeMountRequest(data)
		require.NoError(t, err)
		assert.Equal(t, "/export", req.DirPath)
	})

	t.Run("RejectsLongPath", func(t *testing.T) {
		_, err := (&MountRequest{DirPath: string(make([]byte, MaxPathLen+1))}).Encode()
		assert.Error(t, err)
	})

	t.Run("ResponseRoundTrip", func(t *testing.T) {
		original := &MountResponse{Status: MountOK, FileHandle: []byte{1, 2, 3}, AuthFlavors: []uint32{0, 1}}
		data, err := original.Encode()
		require.NoError(t, err)

		resp, err := DecodeMountResponse(data)
		require.NoError(t, err)
		assert.Equal(t, original, resp)
	})

	t.Run("ErrorResponseHasNoBody", func(t *testing.T) {
		data, err := (&MountResponse{Status: MountErrAccess, FileHandle: []byte{1}}).Encode()
		require.NoError(t, err)
		assert.Len(t, data, 4)

		resp, err := DecodeMountResponse(data)
		require.NoError(t, err)
		assert.Equal(t, MountErrAccess, resp.Status)
		assert.Nil(t, resp.FileHandle)
		assert.Equal(t, "MNT3ERR_ACCES", StatusString(resp.Status))
	})

	t.Run("RejectsBogusFlavorCount", func(t *testing.T) {
		data, err := (&MountResponse{Status: MountOK, FileHandle: []byte{1}}).Encode()
		require.NoError(t, err)
		data[len(data)-1] = 200

		_, err = DecodeMountResponse(data)
		assert.Error(t, err)
	})
}

func TestPortmapCodec(t *testing.T) {
	original := &Mapping{Program: 100003, Version: 3, Protocol: ProtoTCP}
	data, err := original.Encode()
	require.NoError(t, err)
	assert.Len(t, data, 16)

	decoded, err := DecodeMapping(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	data, err = (&GetPortResponse{Port: 2049}).Encode()
	require.NoError(t, err)
	resp, err := DecodeGetPortResponse(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(2049), resp.Port)
}
