package bridge

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"go.starlark.net/starlark"

	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/vos"
)

// resolvePath canonicalizes path to its symlink-free real form before
// it is gated or handed to afero, so a capability grant or sandbox
// boundary is checked against the resource a path actually names
// rather than a symlink alias that might point outside it. Grounded
// on vos.Resolve / third_party/realpath. A path that doesn't exist
// yet (or otherwise can't be resolved) passes through unchanged, so
// "not found" is still reported by the underlying filesystem call
// rather than by resolution itself.
func (b *Bridge) resolvePath(path string) string {
	resolved, err := vos.Resolve(b.state, path)
	if err != nil {
		return path
	}
	return resolved
}

func (b *Bridge) fsModule() starlark.Value {
	return module("fs", starlark.StringDict{
		"readFile": starlark.NewBuiltin("fs.readFile", b.fsReadFile),
		"writeFile": starlark.NewBuiltin("fs.writeFile", b.fsWriteFile),
		"listDir":  starlark.NewBuiltin("fs.listDir", b.fsListDir),
		"stat":     starlark.NewBuiltin("fs.stat", b.fsStat),
		"watch":    starlark.NewBuiltin("fs.watch", b.fsWatch),
		"find":     starlark.NewBuiltin("fs.find", b.fsFind),
	})
}

func (b *Bridge) fsReadFile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	var encoding string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path, "encoding?", &encoding); err != nil {
		return nil, err
	}
	path = b.resolvePath(path)
	if err := b.gate("fs:read", path); err != nil {
		return nil, err
	}
	contents, err := afero.ReadFile(b.state.FS(), path)
	if err != nil {
		return nil, translateFSErr(err)
	}
	if err := b.chargeValue(len(contents)); err != nil {
		return nil, err
	}
	if encoding == "bytes" {
		return starlark.Bytes(string(contents)), nil
	}
	return starlark.String(string(contents)), nil
}

func (b *Bridge) fsWriteFile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	var content starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path, "content", &content); err != nil {
		return nil, err
	}
	if err := b.gate("fs:write", path); err != nil {
		return nil, err
	}

	var data []byte
	switch v := content.(type) {
	case starlark.String:
		data = []byte(v)
	case starlark.Bytes:
		data = []byte(v)
	default:
		return nil, nexuserr.New(nexuserr.KindInvalidArgument, "writeFile content must be a string or bytes")
	}

	if err := afero.WriteFile(b.state.FS(), path, data, 0o644); err != nil {
		return nil, translateFSErr(err)
	}
	return starlark.None, nil
}

func (b *Bridge) fsListDir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	path = b.resolvePath(path)
	if err := b.gate("fs:read", path); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(b.state.FS(), path)
	if err != nil {
		return nil, translateFSErr(err)
	}
	size := 0
	for _, e := range entries {
		size += len(e.Name()) + len(path)
	}
	if err := b.chargeValue(size); err != nil {
		return nil, err
	}
	out := make([]starlark.Value, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryDict(path, e))
	}
	return starlark.NewList(out), nil
}

func entryDict(dir string, e os.FileInfo) *starlark.Dict {
	d := starlark.NewDict(4)
	d.SetKey(starlark.String("name"), starlark.String(e.Name()))
	d.SetKey(starlark.String("isFile"), starlark.Bool(!e.IsDir()))
	d.SetKey(starlark.String("isDirectory"), starlark.Bool(e.IsDir()))
	d.SetKey(starlark.String("path"), starlark.String(joinPath(dir, e.Name())))
	return d
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	if dir[len(dir)-1] == '/' {
		return dir + name
	}
	return dir + "/" + name
}

func (b *Bridge) fsStat(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	path = b.resolvePath(path)
	if err := b.gate("fs:read", path); err != nil {
		return nil, err
	}
	info, err := b.state.FS().Stat(path)
	if err != nil {
		return nil, translateFSErr(err)
	}
	d := starlark.NewDict(6)
	d.SetKey(starlark.String("size"), starlark.MakeInt64(info.Size()))
	d.SetKey(starlark.String("isFile"), starlark.Bool(!info.IsDir()))
	d.SetKey(starlark.String("isDirectory"), starlark.Bool(info.IsDir()))
	d.SetKey(starlark.String("modified"), starlark.MakeInt64(info.ModTime().UnixNano()))
	d.SetKey(starlark.String("created"), starlark.MakeInt64(info.ModTime().UnixNano()))
	d.SetKey(starlark.String("mode"), starlark.String(info.Mode().String()))
	return d, nil
}

// watchHandle backs the handle returned by fs.watch; stop() tears
// down the fsnotify watcher goroutine.
type watchHandle struct {
	watcher *fsnotifyWatcher
	stop    func()
}

func (w *watchHandle) String() string        { return "<watch>" }
func (w *watchHandle) Type() string          { return "watch" }
func (w *watchHandle) Freeze()               {}
func (w *watchHandle) Truth() starlark.Bool  { return starlark.True }
func (w *watchHandle) Hash() (uint32, error) { return 0, nexuserr.New(nexuserr.KindInvalidArgument, "unhashable: watch") }

func (w *watchHandle) Attr(name string) (starlark.Value, error) {
	if name == "stop" {
		return starlark.NewBuiltin("watch.stop", func(t *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			w.stop()
			return starlark.None, nil
		}), nil
	}
	return nil, nil
}

func (w *watchHandle) AttrNames() []string { return []string{"stop"} }

var _ starlark.HasAttrs = (*watchHandle)(nil)

func (b *Bridge) fsWatch(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	var cb starlark.Callable
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path, "cb", &cb); err != nil {
		return nil, err
	}
	if err := b.gate("fs:watch", path); err != nil {
		return nil, err
	}

	watcher, err := newFsnotifyWatcher(path)
	if err != nil {
		return nil, translateFSErr(err)
	}

	wh := &watchHandle{watcher: watcher}
	id, err := b.handles.Put(wh)
	if err != nil {
		watcher.close()
		return nil, err
	}
	wh.stop = func() {
		watcher.close()
		b.handles.Release(id)
	}

	// Starlark threads are not safe for concurrent calls, so watch
	// callbacks run on a dedicated thread owned by this watcher,
	// serialized by fsnotify's own single-goroutine event loop rather
	// than the thread the script is otherwise running on.
	cbThread := &starlark.Thread{Name: "fs.watch callback"}
	go watcher.run(func(eventType, filename string) {
		d := starlark.NewDict(3)
		d.SetKey(starlark.String("eventType"), starlark.String(eventType))
		d.SetKey(starlark.String("filename"), starlark.String(filename))
		d.SetKey(starlark.String("path"), starlark.String(path))
		starlark.Call(cbThread, cb, starlark.Tuple{d}, nil)
	})

	return wh, nil
}

func (b *Bridge) fsFind(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	var root string
	var maxDepth int = 10
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "pattern", &pattern, "path?", &root, "maxDepth?", &maxDepth); err != nil {
		return nil, err
	}
	if root == "" {
		root = "."
	}
	root = b.resolvePath(root)
	if err := b.gate("fs:read", root); err != nil {
		return nil, err
	}

	var matches []string
	err := afero.Walk(b.state.FS(), root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		depth := pathDepth(root, path)
		if depth > maxDepth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if containsSubstring(info.Name(), pattern) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, translateFSErr(err)
	}

	matchSize := 0
	for _, m := range matches {
		matchSize += len(m)
	}
	if err := b.chargeValue(matchSize); err != nil {
		return nil, err
	}

	sort.Strings(matches)
	out := make([]starlark.Value, 0, len(matches))
	for _, m := range matches {
		out = append(out, starlark.String(m))
	}
	return starlark.NewList(out), nil
}

func pathDepth(root, path string) int {
	if len(path) <= len(root) {
		return 0
	}
	rest := path[len(root):]
	depth := 0
	for _, c := range rest {
		if c == '/' {
			depth++
		}
	}
	return depth
}

func containsSubstring(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func translateFSErr(err error) error {
	if os.IsNotExist(err) {
		return nexuserr.Wrap(nexuserr.KindNotFound, err, "no such file or directory")
	}
	if os.IsPermission(err) {
		return nexuserr.Wrap(nexuserr.KindPermissionDenied, err, "permission denied")
	}
	return nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "filesystem operation failed")
}
