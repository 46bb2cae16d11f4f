package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
)

func validName(name string) uint32 {
	switch {
	case name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/'):
		return types.NFS3ErrInval
	case len(name) > maxNameLen:
		return types.NFS3ErrNameTooLong
	default:
		return types.NFS3OK
	}
}

// dirOf resolves a directory handle, returning a status when it is unusable.
func (s *Store) dirOf(handle store.FileHandle) (*node, uint32) {
	dir, ok := s.resolve(handle)
	if !ok {
		return nil, handleStatus(handle)
	}
	if dir.attr.Type != types.FileTypeDirectory {
		return nil, types.NFS3ErrNotDir
	}
	return dir, types.NFS3OK
}

func (s *Store) Lookup(ctx context.Context, dirHandle store.FileHandle, name string) (*nfs.LookupResponse, error) {
	status, err := s.enter(ctx, types.NFSProcLookup)
	if err != nil || status != types.NFS3OK {
		return &nfs.LookupResponse{Status: status}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dir, status := s.dirOf(dirHandle)
	if status != types.NFS3OK {
		return &nfs.LookupResponse{Status: status}, nil
	}
	if len(name) > maxNameLen {
		return &nfs.LookupResponse{Status: types.NFS3ErrNameTooLong, DirAttr: dir.attrCopy()}, nil
	}

	var id uint64
	switch name {
	case ".":
		id = dir.attr.Fileid
	case "..":
		id = dir.parent
	default:
		child, ok := dir.children[name]
		if !ok {
			return &nfs.LookupResponse{Status: types.NFS3ErrNoEnt, DirAttr: dir.attrCopy()}, nil
		}
		id = child
	}

	return &nfs.LookupResponse{
		Status:  types.NFS3OK,
		Handle:  s.handleOf(id),
		Attr:    s.nodes[id].attrCopy(),
		DirAttr: dir.attrCopy(),
	}, nil
}

func (s *Store) Create(ctx context.Context, dirHandle store.FileHandle, name string, mode uint32, attrs types.SetAttrs) (*nfs.CreateResponse, error) {
	status, err := s.enter(ctx, types.NFSProcCreate)
	if err != nil || status != types.NFS3OK {
		return &nfs.CreateResponse{Status: status}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir, status := s.dirOf(dirHandle)
	if status != types.NFS3OK {
		return &nfs.CreateResponse{Status: status}, nil
	}
	if status := validName(name); status != types.NFS3OK {
		return &nfs.CreateResponse{Status: status}, nil
	}
	before := types.WccAttrOf(&dir.attr)

	if id, exists := dir.children[name]; exists {
		existing := s.nodes[id]
		if mode != types.CreateUnchecked || existing.attr.Type != types.FileTypeRegular {
			return &nfs.CreateResponse{Status: types.NFS3ErrExist, DirWcc: types.WccData{Before: before, After: dir.attrCopy()}}, nil
		}
		// UNCHECKED on an existing file only applies the size attribute.
		if attrs.Size != nil {
			existing.setSize(*attrs.Size)
			existing.touch()
		}
		return &nfs.CreateResponse{
			Status: types.NFS3OK,
			Handle: s.handleOf(id),
			Attr:   existing.attrCopy(),
			DirWcc: types.WccData{Before: before, After: dir.attrCopy()},
		}, nil
	}

	fileMode := uint32(0o644)
	if attrs.Mode != nil {
		fileMode = *attrs.Mode & 0o7777
	}
	child := s.newNode(s.allocID(), types.FileTypeRegular, fileMode)
	child.parent = dir.attr.Fileid
	applyOwner(child, attrs)
	if attrs.Size != nil {
		child.setSize(*attrs.Size)
	}
	dir.children[name] = child.attr.Fileid
	dir.touch()

	return &nfs.CreateResponse{
		Status: types.NFS3OK,
		Handle: s.handleOf(child.attr.Fileid),
		Attr:   child.attrCopy(),
		DirWcc: types.WccData{Before: before, After: dir.attrCopy()},
	}, nil
}

func (s *Store) Mkdir(ctx context.Context, dirHandle store.FileHandle, name string, attrs types.SetAttrs) (*nfs.CreateResponse, error) {
	status, err := s.enter(ctx, types.NFSProcMkdir)
	if err != nil || status != types.NFS3OK {
		return &nfs.CreateResponse{Status: status}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir, status := s.dirOf(dirHandle)
	if status != types.NFS3OK {
		return &nfs.CreateResponse{Status: status}, nil
	}
	if status := validName(name); status != types.NFS3OK {
		return &nfs.CreateResponse{Status: status}, nil
	}
	before := types.WccAttrOf(&dir.attr)
	if _, exists := dir.children[name]; exists {
		return &nfs.CreateResponse{Status: types.NFS3ErrExist, DirWcc: types.WccData{Before: before, After: dir.attrCopy()}}, nil
	}

	dirMode := uint32(0o755)
	if attrs.Mode != nil {
		dirMode = *attrs.Mode & 0o7777
	}
	child := s.newNode(s.allocID(), types.FileTypeDirectory, dirMode)
	child.parent = dir.attr.Fileid
	applyOwner(child, attrs)
	dir.children[name] = child.attr.Fileid
	dir.attr.Nlink++
	dir.touch()

	return &nfs.CreateResponse{
		Status: types.NFS3OK,
		Handle: s.handleOf(child.attr.Fileid),
		Attr:   child.attrCopy(),
		DirWcc: types.WccData{Before: before, After: dir.attrCopy()},
	}, nil
}

func applyOwner(n *node, attrs types.SetAttrs) {
	if attrs.UID != nil {
		n.attr.UID = *attrs.UID
	}
	if attrs.GID != nil {
		n.attr.GID = *attrs.GID
	}
}

func (s *Store) Remove(ctx context.Context, dirHandle store.FileHandle, name string) (*nfs.RemoveResponse, error) {
	return s.unlink(ctx, types.NFSProcRemove, dirHandle, name)
}

func (s *Store) Rmdir(ctx context.Context, dirHandle store.FileHandle, name string) (*nfs.RemoveResponse, error) {
	return s.unlink(ctx, types.NFSProcRmdir, dirHandle, name)
}

func (s *Store) unlink(ctx context.Context, proc uint32, dirHandle store.FileHandle, name string) (*nfs.RemoveResponse, error) {
	status, err := s.enter(ctx, proc)
	if err != nil || status != types.NFS3OK {
		return &nfs.RemoveResponse{Status: status}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir, status := s.dirOf(dirHandle)
	if status != types.NFS3OK {
		return &nfs.RemoveResponse{Status: status}, nil
	}
	if status := validName(name); status != types.NFS3OK {
		return &nfs.RemoveResponse{Status: status}, nil
	}
	before := types.WccAttrOf(&dir.attr)
	wcc := func(status uint32) *nfs.RemoveResponse {
		return &nfs.RemoveResponse{Status: status, DirWcc: types.WccData{Before: before, After: dir.attrCopy()}}
	}

	id, ok := dir.children[name]
	if !ok {
		return wcc(types.NFS3ErrNoEnt), nil
	}
	target := s.nodes[id]
	isDir := target.attr.Type == types.FileTypeDirectory

	switch {
	case proc == types.NFSProcRemove && isDir:
		return wcc(types.NFS3ErrIsDir), nil
	case proc == types.NFSProcRmdir && !isDir:
		return wcc(types.NFS3ErrNotDir), nil
	case isDir && len(target.children) > 0:
		return wcc(types.NFS3ErrNotEmpty), nil
	}

	delete(dir.children, name)
	delete(s.nodes, id)
	if isDir {
		dir.attr.Nlink--
	}
	dir.touch()
	return wcc(types.NFS3OK), nil
}

func (s *Store) Rename(ctx context.Context, fromDirHandle store.FileHandle, fromName string, toDirHandle store.FileHandle, toName string) (*nfs.RenameResponse, error) {
	status, err := s.enter(ctx, types.NFSProcRename)
	if err != nil || status != types.NFS3OK {
		return &nfs.RenameResponse{Status: status}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fromDir, status := s.dirOf(fromDirHandle)
	if status != types.NFS3OK {
		return &nfs.RenameResponse{Status: status}, nil
	}
	toDir, status := s.dirOf(toDirHandle)
	if status != types.NFS3OK {
		return &nfs.RenameResponse{Status: status}, nil
	}
	for _, name := range []string{fromName, toName} {
		if status := validName(name); status != types.NFS3OK {
			return &nfs.RenameResponse{Status: status}, nil
		}
	}

	fromBefore := types.WccAttrOf(&fromDir.attr)
	toBefore := types.WccAttrOf(&toDir.attr)
	result := func(status uint32) *nfs.RenameResponse {
		return &nfs.RenameResponse{
			Status:     status,
			FromDirWcc: types.WccData{Before: fromBefore, After: fromDir.attrCopy()},
			ToDirWcc:   types.WccData{Before: toBefore, After: toDir.attrCopy()},
		}
	}

	id, ok := fromDir.children[fromName]
	if !ok {
		return result(types.NFS3ErrNoEnt), nil
	}
	source := s.nodes[id]
	sourceIsDir := source.attr.Type == types.FileTypeDirectory

	// A directory cannot move below itself.
	if sourceIsDir {
		for cur := toDir.attr.Fileid; ; cur = s.nodes[cur].parent {
			if cur == id {
				return result(types.NFS3ErrInval), nil
			}
			if cur == rootFileID {
				break
			}
		}
	}

	if existingID, exists := toDir.children[toName]; exists {
		if existingID == id {
			return result(types.NFS3OK), nil
		}
		existing := s.nodes[existingID]
		existingIsDir := existing.attr.Type == types.FileTypeDirectory
		switch {
		case sourceIsDir && !existingIsDir:
			return result(types.NFS3ErrNotDir), nil
		case !sourceIsDir && existingIsDir:
			return result(types.NFS3ErrIsDir), nil
		case existingIsDir && len(existing.children) > 0:
			return result(types.NFS3ErrNotEmpty), nil
		}
		delete(s.nodes, existingID)
		if existingIsDir {
			toDir.attr.Nlink--
		}
	}

	delete(fromDir.children, fromName)
	toDir.children[toName] = id
	source.parent = toDir.attr.Fileid
	if sourceIsDir && fromDir != toDir {
		fromDir.attr.Nlink--
		toDir.attr.Nlink++
	}
	source.attr.Ctime = types.TimeValFrom(time.Now())
	fromDir.touch()
	toDir.touch()
	return result(types.NFS3OK), nil
}

// entrySize approximates the encoded size of one entry3.
func entrySize(name string) uint32 {
	return 4 + 8 + 4 + uint32(len(name)+3)&^3 + 8
}

func (s *Store) ReadDir(ctx context.Context, dirHandle store.FileHandle, cookie, cookieVerf uint64, count uint32) (*nfs.ReadDirResponse, error) {
	status, err := s.enter(ctx, types.NFSProcReadDir)
	if err != nil || status != types.NFS3OK {
		return &nfs.ReadDirResponse{Status: status}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dir, status := s.dirOf(dirHandle)
	if status != types.NFS3OK {
		return &nfs.ReadDirResponse{Status: status}, nil
	}

	// The verifier changes whenever the directory is modified, which
	// invalidates cookies handed out before.
	verf := uint64(dir.attr.Mtime.Seconds)<<32 | uint64(dir.attr.Mtime.Nseconds)
	if cookie != 0 && cookieVerf != 0 && cookieVerf != verf {
		return &nfs.ReadDirResponse{Status: types.NFS3ErrBadCookie, DirAttr: dir.attrCopy()}, nil
	}

	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	sort.Strings(names)

	all := make([]types.DirEntry, 0, len(names)+2)
	all = append(all,
		types.DirEntry{Fileid: dir.attr.Fileid, Name: "."},
		types.DirEntry{Fileid: s.nodes[dir.parent].attr.Fileid, Name: ".."},
	)
	for _, name := range names {
		all = append(all, types.DirEntry{Fileid: dir.children[name], Name: name})
	}
	for i := range all {
		all[i].Cookie = uint64(i + 1)
	}

	if cookie > uint64(len(all)) {
		return &nfs.ReadDirResponse{Status: types.NFS3ErrBadCookie, DirAttr: dir.attrCopy()}, nil
	}

	// Fixed part: status, post_op_attr, verifier, list terminator, eof.
	used := uint32(4 + 4 + 84 + 8 + 4 + 4)
	resp := &nfs.ReadDirResponse{Status: types.NFS3OK, DirAttr: dir.attrCopy(), CookieVerf: verf}
	for _, entry := range all[cookie:] {
		size := entrySize(entry.Name)
		if used+size > count {
			break
		}
		used += size
		resp.Entries = append(resp.Entries, entry)
	}
	if len(resp.Entries) == 0 && cookie < uint64(len(all)) {
		return &nfs.ReadDirResponse{Status: types.NFS3ErrTooSmall, DirAttr: dir.attrCopy()}, nil
	}
	resp.Eof = cookie+uint64(len(resp.Entries)) == uint64(len(all))
	return resp, nil
}
