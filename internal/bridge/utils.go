package bridge

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.starlark.net/starlark"

	"github.com/nexusshell/nexus/internal/nexuserr"
)

func (b *Bridge) utilsModule() starlark.Value {
	return module("utils", starlark.StringDict{
		"sleep":       starlark.NewBuiltin("utils.sleep", b.utilsSleep),
		"uuid":        starlark.NewBuiltin("utils.uuid", b.utilsUUID),
		"hash":        starlark.NewBuiltin("utils.hash", b.utilsHash),
		"formatBytes": starlark.NewBuiltin("utils.formatBytes", b.utilsFormatBytes),
		"retry":       starlark.NewBuiltin("utils.retry", b.utilsRetry),
		"deepMerge":   starlark.NewBuiltin("utils.deepMerge", b.utilsDeepMerge),
		"deepClone":   starlark.NewBuiltin("utils.deepClone", b.utilsDeepClone),
	})
}

func (b *Bridge) utilsSleep(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ms int
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "ms", &ms); err != nil {
		return nil, err
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return starlark.None, nil
}

func (b *Bridge) utilsUUID(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.String(uuid.NewString()), nil
}

func (b *Bridge) utilsHash(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data string
	var alg string = "sha256"
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "data", &data, "alg?", &alg); err != nil {
		return nil, err
	}

	var sum []byte
	switch alg {
	case "md5":
		h := md5.Sum([]byte(data))
		sum = h[:]
	case "sha1":
		h := sha1.Sum([]byte(data))
		sum = h[:]
	case "sha256":
		h := sha256.Sum256([]byte(data))
		sum = h[:]
	default:
		return nil, nexuserr.Newf(nexuserr.KindInvalidArgument, "unsupported hash algorithm %q", alg)
	}
	return starlark.String(hex.EncodeToString(sum)), nil
}

func (b *Bridge) utilsFormatBytes(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var n int64
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "n", &n); err != nil {
		return nil, err
	}
	return starlark.String(humanize.Bytes(uint64(n))), nil
}

func (b *Bridge) utilsRetry(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var callable starlark.Callable
	var opts *starlark.Dict
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "fn", &callable, "opts?", &opts); err != nil {
		return nil, err
	}

	attempts := 3
	delayMs := 100
	if opts != nil {
		if v, found, _ := opts.Get(starlark.String("attempts")); found {
			if i, ok := v.(starlark.Int); ok {
				n, _ := i.Int64() // overflow beyond a handful of retries is not a real use case
				attempts = int(n)
			}
		}
		if v, found, _ := opts.Get(starlark.String("delayMs")); found {
			if i, ok := v.(starlark.Int); ok {
				n, _ := i.Int64()
				delayMs = int(n)
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := starlark.Call(thread, callable, nil, nil)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < attempts-1 {
			time.Sleep(time.Duration(delayMs) * time.Millisecond)
		}
	}
	return nil, nexuserr.Wrap(nexuserr.KindExecutionFailure, lastErr, "retry exhausted all attempts")
}

func (b *Bridge) utilsDeepMerge(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, c *starlark.Dict
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "a", &a, "b", &c); err != nil {
		return nil, err
	}
	return deepMergeDicts(a, c), nil
}

func deepMergeDicts(a, b *starlark.Dict) *starlark.Dict {
	out := starlark.NewDict(a.Len() + b.Len())
	for _, item := range a.Items() {
		out.SetKey(item[0], item[1])
	}
	for _, item := range b.Items() {
		existing, found, _ := out.Get(item[0])
		if found {
			if ed, ok := existing.(*starlark.Dict); ok {
				if nd, ok := item[1].(*starlark.Dict); ok {
					out.SetKey(item[0], deepMergeDicts(ed, nd))
					continue
				}
			}
		}
		out.SetKey(item[0], item[1])
	}
	return out
}

func (b *Bridge) utilsDeepClone(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "value", &v); err != nil {
		return nil, err
	}
	nv, err := ToNative(b.handles, v)
	if err != nil {
		return nil, err
	}
	if err := b.chargeValue(nv.Meta.Size); err != nil {
		return nil, err
	}
	return ToScripted(b.handles, nv)
}
