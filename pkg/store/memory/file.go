package memory

import (
	"context"
	"time"

	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
)

func (s *Store) GetAttr(ctx context.Context, handle store.FileHandle) (*nfs.GetAttrResponse, error) {
	status, err := s.enter(ctx, types.NFSProcGetAttr)
	if err != nil || status != types.NFS3OK {
		return &nfs.GetAttrResponse{Status: status}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.resolve(handle)
	if !ok {
		return &nfs.GetAttrResponse{Status: handleStatus(handle)}, nil
	}
	return &nfs.GetAttrResponse{Status: types.NFS3OK, Attr: n.attrCopy()}, nil
}

func (s *Store) SetAttr(ctx context.Context, handle store.FileHandle, attrs types.SetAttrs) (*nfs.SetAttrResponse, error) {
	status, err := s.enter(ctx, types.NFSProcSetAttr)
	if err != nil || status != types.NFS3OK {
		return &nfs.SetAttrResponse{Status: status}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.resolve(handle)
	if !ok {
		return &nfs.SetAttrResponse{Status: handleStatus(handle)}, nil
	}
	before := types.WccAttrOf(&n.attr)

	if attrs.Size != nil {
		if n.attr.Type == types.FileTypeDirectory {
			return &nfs.SetAttrResponse{Status: types.NFS3ErrIsDir}, nil
		}
		n.setSize(*attrs.Size)
		n.touch()
	}
	if attrs.Mode != nil {
		n.attr.Mode = *attrs.Mode & 0o7777
	}
	if attrs.UID != nil {
		n.attr.UID = *attrs.UID
	}
	if attrs.GID != nil {
		n.attr.GID = *attrs.GID
	}

	now := types.TimeValFrom(time.Now())
	switch attrs.AtimeHow {
	case types.TimeSetToServer:
		n.attr.Atime = now
	case types.TimeSetToClient:
		n.attr.Atime = attrs.Atime
	}
	switch attrs.MtimeHow {
	case types.TimeSetToServer:
		n.attr.Mtime = now
	case types.TimeSetToClient:
		n.attr.Mtime = attrs.Mtime
	}
	n.attr.Ctime = now

	return &nfs.SetAttrResponse{
		Status: types.NFS3OK,
		Wcc:    types.WccData{Before: before, After: n.attrCopy()},
	}, nil
}

func (s *Store) Read(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.ReadResponse, error) {
	status, err := s.enter(ctx, types.NFSProcRead)
	if err != nil || status != types.NFS3OK {
		return &nfs.ReadResponse{Status: status}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.resolve(handle)
	if !ok {
		return &nfs.ReadResponse{Status: handleStatus(handle)}, nil
	}
	switch n.attr.Type {
	case types.FileTypeRegular:
	case types.FileTypeDirectory:
		return &nfs.ReadResponse{Status: types.NFS3ErrIsDir, Attr: n.attrCopy()}, nil
	default:
		return &nfs.ReadResponse{Status: types.NFS3ErrInval, Attr: n.attrCopy()}, nil
	}

	count = min(count, s.config.MaxReadSize)
	size := uint64(len(n.data))
	if offset >= size {
		return &nfs.ReadResponse{Status: types.NFS3OK, Attr: n.attrCopy(), Eof: true, Data: []byte{}}, nil
	}

	end := min(offset+uint64(count), size)
	data := make([]byte, end-offset)
	copy(data, n.data[offset:end])
	return &nfs.ReadResponse{
		Status: types.NFS3OK,
		Attr:   n.attrCopy(),
		Count:  uint32(len(data)),
		Eof:    end == size,
		Data:   data,
	}, nil
}

func (s *Store) Write(ctx context.Context, handle store.FileHandle, offset uint64, stable uint32, data []byte) (*nfs.WriteResponse, error) {
	status, err := s.enter(ctx, types.NFSProcWrite)
	if err != nil || status != types.NFS3OK {
		return &nfs.WriteResponse{Status: status}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.resolve(handle)
	if !ok {
		return &nfs.WriteResponse{Status: handleStatus(handle)}, nil
	}
	before := types.WccAttrOf(&n.attr)
	switch n.attr.Type {
	case types.FileTypeRegular:
	case types.FileTypeDirectory:
		return &nfs.WriteResponse{Status: types.NFS3ErrIsDir}, nil
	default:
		return &nfs.WriteResponse{Status: types.NFS3ErrInval}, nil
	}

	end := offset + uint64(len(data))
	if end > uint64(len(n.data)) {
		n.setSize(end)
	}
	copy(n.data[offset:end], data)
	n.touch()

	return &nfs.WriteResponse{
		Status:    types.NFS3OK,
		Wcc:       types.WccData{Before: before, After: n.attrCopy()},
		Count:     uint32(len(data)),
		Committed: types.WriteFileSync,
		Verf:      s.verf,
	}, nil
}

func (s *Store) Commit(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.CommitResponse, error) {
	status, err := s.enter(ctx, types.NFSProcCommit)
	if err != nil || status != types.NFS3OK {
		return &nfs.CommitResponse{Status: status}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.resolve(handle)
	if !ok {
		return &nfs.CommitResponse{Status: handleStatus(handle)}, nil
	}
	return &nfs.CommitResponse{
		Status: types.NFS3OK,
		Wcc:    types.WccData{After: n.attrCopy()},
		Verf:   s.verf,
	}, nil
}
