package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.starlark.net/starlark"

	"github.com/nexusshell/nexus/internal/nexuserr"
)

func (b *Bridge) netModule() starlark.Value {
	return module("net", starlark.StringDict{
		"get":      starlark.NewBuiltin("net.get", b.netGet),
		"post":     starlark.NewBuiltin("net.post", b.netPost),
		"download": starlark.NewBuiltin("net.download", b.netDownload),
	})
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

func responseDict(resp *http.Response, body []byte) *starlark.Dict {
	d := starlark.NewDict(4)
	d.SetKey(starlark.String("status"), starlark.MakeInt(resp.StatusCode))
	d.SetKey(starlark.String("body"), starlark.String(string(body)))
	d.SetKey(starlark.String("success"), starlark.Bool(resp.StatusCode >= 200 && resp.StatusCode < 300))

	headers := starlark.NewDict(len(resp.Header))
	for k := range resp.Header {
		headers.SetKey(starlark.String(k), starlark.String(resp.Header.Get(k)))
	}
	d.SetKey(starlark.String("headers"), headers)
	return d
}

func applyHeaders(req *http.Request, headers *starlark.Dict) {
	if headers == nil {
		return
	}
	for _, item := range headers.Items() {
		k, _ := starlark.AsString(item[0])
		v, _ := starlark.AsString(item[1])
		req.Header.Set(k, v)
	}
}

func httpClient(timeoutMs int) *http.Client {
	d := 30 * time.Second
	if timeoutMs > 0 {
		d = time.Duration(timeoutMs) * time.Millisecond
	}
	return &http.Client{Timeout: d}
}

func (b *Bridge) netGet(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var rawURL string
	var headers *starlark.Dict
	var timeoutMs int
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "url", &rawURL, "headers?", &headers, "timeout?", &timeoutMs); err != nil {
		return nil, err
	}
	if err := b.gate("net:http", hostOf(rawURL)); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "invalid url")
	}
	applyHeaders(req, headers)

	resp, err := httpClient(timeoutMs).Do(req)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "request failed")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if err := b.chargeValue(len(body)); err != nil {
		return nil, err
	}
	return responseDict(resp, body), nil
}

func (b *Bridge) netPost(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var rawURL string
	var body starlark.Value
	var headers *starlark.Dict
	var timeoutMs int
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "url", &rawURL, "body", &body, "headers?", &headers, "timeout?", &timeoutMs); err != nil {
		return nil, err
	}
	if err := b.gate("net:http", hostOf(rawURL)); err != nil {
		return nil, err
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "invalid url")
	}
	req.Header.Set("Content-Type", contentType)
	applyHeaders(req, headers)

	resp, err := httpClient(timeoutMs).Do(req)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "request failed")
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if err := b.chargeValue(len(respBody)); err != nil {
		return nil, err
	}
	return responseDict(resp, respBody), nil
}

// encodeBody implements spec.md's "object body is JSON-serialised"
// rule: strings/bytes pass through, a dict is JSON-marshalled via a
// native round-trip through ToNative first.
func encodeBody(body starlark.Value) ([]byte, string, error) {
	switch v := body.(type) {
	case starlark.String:
		return []byte(v), "text/plain", nil
	case starlark.Bytes:
		return []byte(v), "application/octet-stream", nil
	case *starlark.Dict:
		nv, err := ToNative(NewHandleTable(nil), v)
		if err != nil {
			return nil, "", err
		}
		payload, err := json.Marshal(nativeToJSON(nv))
		if err != nil {
			return nil, "", nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "failed to encode request body")
		}
		return payload, "application/json", nil
	default:
		return nil, "", nexuserr.New(nexuserr.KindInvalidArgument, "unsupported request body type")
	}
}

func (b *Bridge) netDownload(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var rawURL, path string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "url", &rawURL, "path", &path); err != nil {
		return nil, err
	}
	if err := b.gate("net:http", hostOf(rawURL)); err != nil {
		return nil, err
	}
	if err := b.gate("fs:write", path); err != nil {
		return nil, err
	}

	resp, err := httpClient(0).Get(rawURL)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "download failed")
	}
	defer resp.Body.Close()

	f, err := b.state.FS().OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, translateFSErr(err)
	}
	defer f.Close()

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "failed writing downloaded file")
	}

	dh := &downloadHandle{path: path, size: written}
	id, err := b.handles.Put(dh)
	if err != nil {
		return nil, err
	}
	dh.release = func() { b.handles.Release(id) }
	return dh, nil
}

// downloadHandle backs net.download's returned handle per spec.md
// section 4.3's "returns handle to file" contract, grounded on
// watchHandle/monitorHandle's self-describing-object shape in this
// same package.
type downloadHandle struct {
	path    string
	size    int64
	release func()
}

func (d *downloadHandle) String() string        { return "<download " + d.path + ">" }
func (d *downloadHandle) Type() string          { return "download" }
func (d *downloadHandle) Freeze()               {}
func (d *downloadHandle) Truth() starlark.Bool  { return starlark.True }
func (d *downloadHandle) Hash() (uint32, error) { return 0, nexuserr.New(nexuserr.KindInvalidArgument, "unhashable: download") }

func (d *downloadHandle) Attr(name string) (starlark.Value, error) {
	switch name {
	case "path":
		return starlark.String(d.path), nil
	case "size":
		return starlark.MakeInt64(d.size), nil
	case "release":
		return starlark.NewBuiltin("download.release", func(t *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			d.release()
			return starlark.None, nil
		}), nil
	}
	return nil, nil
}

func (d *downloadHandle) AttrNames() []string { return []string{"path", "size", "release"} }

var _ starlark.HasAttrs = (*downloadHandle)(nil)
