package bridge

import (
	"os"

	"github.com/spf13/afero"
)

// Native* methods expose the same filesystem operations fs.go wires
// into Starlark, but as plain Go calls, so built-in commands (native,
// not scripted) route through the same capability gate and virtual
// filesystem as scripted code rather than duplicating the logic
// against internal/vos directly. Grounded on core/shell_builtins.go's
// builtins, which call straight through to the shared vos.VOS rather
// than a separate privileged path.

// NativeReadFile reads path, gated by fs:read.
func (b *Bridge) NativeReadFile(path string) ([]byte, error) {
	if err := b.gate("fs:read", path); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(b.state.FS(), path)
	if err != nil {
		return nil, translateFSErr(err)
	}
	if err := b.chargeValue(len(data)); err != nil {
		return nil, err
	}
	return data, nil
}

// NativeWriteFile writes data to path, gated by fs:write.
func (b *Bridge) NativeWriteFile(path string, data []byte) error {
	if err := b.gate("fs:write", path); err != nil {
		return err
	}
	if err := afero.WriteFile(b.state.FS(), path, data, 0o644); err != nil {
		return translateFSErr(err)
	}
	return nil
}

// NativeReadDir lists path's entries, gated by fs:read.
func (b *Bridge) NativeReadDir(path string) ([]os.FileInfo, error) {
	if err := b.gate("fs:read", path); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(b.state.FS(), path)
	if err != nil {
		return nil, translateFSErr(err)
	}
	return entries, nil
}

// NativeStat stats path, gated by fs:read.
func (b *Bridge) NativeStat(path string) (os.FileInfo, error) {
	if err := b.gate("fs:read", path); err != nil {
		return nil, err
	}
	info, err := b.state.FS().Stat(path)
	if err != nil {
		return nil, translateFSErr(err)
	}
	return info, nil
}

// NativeChdir changes the shared shell state's working directory.
// Directory navigation is core shell plumbing rather than a bridge
// resource access, so it is not capability-gated, matching
// core/shell_builtins.go's Cd calling VirtualOS.Chdir directly.
func (b *Bridge) NativeChdir(path string) error {
	return b.state.SetCwd(path)
}
