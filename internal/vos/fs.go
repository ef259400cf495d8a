package vos

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/nexusshell/nexus/third_party/cowfs"
	"github.com/nexusshell/nexus/third_party/realpath"
)

// NewMemFS constructs an empty, writable in-memory filesystem.
func NewMemFS() VFS {
	return afero.NewMemMapFs()
}

// LoadSnapshot extracts a gzip-compressed tar stream into fs, creating
// parent directories as needed. Adapted from
// core/vos/fs.go's ExtractTarToVFS; used to seed a fresh root
// filesystem or a recording replay's deterministic starting state.
func LoadSnapshot(fs VFS, r io.Reader) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gr.Close()

	t := tar.NewReader(gr)
	for {
		hdr, err := t.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		name := "/" + trimSlashes(hdr.Name)
		if err := fs.MkdirAll(path.Dir(name), 0o777); err != nil {
			return err
		}

		mode := hdr.FileInfo().Mode()
		switch {
		case mode.IsDir():
			if err := fs.Mkdir(name, mode); err != nil && !os.IsExist(err) {
				return err
			}
		case mode&os.ModeSymlink != 0:
			if linker, ok := fs.(afero.Linker); ok {
				if err := linker.SymlinkIfPossible(hdr.Linkname, name); err != nil && !os.IsExist(err) {
					return err
				}
			}
		default:
			fd, err := fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
			if err != nil {
				return err
			}
			if _, err := io.CopyN(fd, t, hdr.Size); err != nil {
				fd.Close()
				return err
			}
			fd.Close()
		}
	}
}

func trimSlashes(name string) string {
	for len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	for len(name) > 0 && name[len(name)-1] == '/' {
		name = name[:len(name)-1]
	}
	return name
}

// NewOverlay layers a writable memory filesystem on top of a
// read-only base, so writes never mutate base. Grounded on
// core/vos/10_fs.go's NewCopyOnWriteFs, reusing the kept
// third_party/cowfs union filesystem; State.PushOverlay uses it to
// give each transaction a cheap, disposable writable layer.
func NewOverlay(base VFS) VFS {
	roBase := afero.NewReadOnlyFs(base)
	layer := NewLinkingFs(afero.NewMemMapFs())
	return cowfs.NewCopyOnWriteFs(roBase, layer)
}

// LinkingFsWrapper backfills afero.Symlinker onto filesystems that
// don't natively support it, so callers can always ask for
// symlink-aware behaviour. Adapted from core/vos/10_fs.go.
type LinkingFsWrapper struct {
	VFS
}

// NewLinkingFs wraps base with symlink support.
func NewLinkingFs(base VFS) VFS {
	return &LinkingFsWrapper{base}
}

var _ afero.Symlinker = (*LinkingFsWrapper)(nil)

func (l *LinkingFsWrapper) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	fi, err := l.VFS.Stat(name)
	return fi, true, err
}

func (l *LinkingFsWrapper) ReadlinkIfPossible(name string) (string, error) {
	fi, _, err := l.LstatIfPossible(name)
	if err != nil {
		return "", err
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return "", errors.New("not a link")
	}
	contents, err := afero.ReadFile(l.VFS, name)
	return string(contents), err
}

func (l *LinkingFsWrapper) SymlinkIfPossible(oldname, newname string) error {
	return afero.WriteFile(l.VFS, newname, []byte(oldname), 0o666|os.ModeSymlink)
}

// realpathAdapter bridges a State's cwd/fs pair to realpath.OS so
// Resolve can reuse the kept third_party/realpath symlink-resolution
// algorithm unmodified.
type realpathAdapter struct {
	state *State
}

func (r *realpathAdapter) Getwd() (string, error) {
	return r.state.Cwd(), nil
}

func (r *realpathAdapter) Lstat(name string) (os.FileInfo, error) {
	if lstater, ok := r.state.FS().(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(name)
		return fi, err
	}
	return r.state.FS().Stat(name)
}

func (r *realpathAdapter) Readlink(name string) (string, error) {
	if reader, ok := r.state.FS().(afero.LinkReader); ok {
		return reader.ReadlinkIfPossible(name)
	}
	return "", errors.New("not a link")
}

// Resolve returns the canonical, symlink-free absolute form of name
// relative to state's cwd. Grounded on core/vos/10_fs.go's
// NewSymlinkResolvingRelativeFs, reusing third_party/realpath
// directly instead of wrapping every filesystem operation in a
// logging decorator.
func Resolve(state *State, name string) (string, error) {
	return realpath.Realpath(&realpathAdapter{state: state}, name)
}
