package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.starlark.net/starlark"

	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/vos"
)

func (b *Bridge) procModule() starlark.Value {
	return module("proc", starlark.StringDict{
		"exec":    starlark.NewBuiltin("proc.exec", b.procExec),
		"list":    starlark.NewBuiltin("proc.list", b.procList),
		"kill":    starlark.NewBuiltin("proc.kill", b.procKill),
		"info":    starlark.NewBuiltin("proc.info", b.procInfo),
		"monitor": starlark.NewBuiltin("proc.monitor", b.procMonitor),
	})
}

func (b *Bridge) procExec(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cmdName string
	var argList *starlark.List
	var cwd string
	var env *starlark.Dict
	var timeoutMs int
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"cmd", &cmdName, "args?", &argList, "cwd?", &cwd, "env?", &env, "timeout?", &timeoutMs,
	); err != nil {
		return nil, err
	}
	if err := b.gate("proc:exec", cmdName); err != nil {
		return nil, err
	}

	path, err := vos.LookPath(b.state, cmdName)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindNotFound, err, "executable not found")
	}

	argv := []string{cmdName}
	if argList != nil {
		iter := argList.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			s, ok := starlark.AsString(elem)
			if !ok {
				return nil, nexuserr.New(nexuserr.KindInvalidArgument, "exec args must be strings")
			}
			argv = append(argv, s)
		}
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeoutMs > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := &vos.Cmd{
		Path:   path,
		Args:   argv,
		Dir:    dirOrDefault(cwd, b.state.Cwd()),
		Env:    mergeEnv(b.state, env),
		Stdout: &stdout,
		Stderr: &stderr,
	}

	result, runErr := vos.StartProcess(ctx, cmd)
	if runErr != nil && result.ExitCode == -1 {
		return nil, nexuserr.Wrap(nexuserr.KindExecutionFailure, runErr, "failed to start process")
	}

	d := starlark.NewDict(4)
	d.SetKey(starlark.String("code"), starlark.MakeInt(result.ExitCode))
	d.SetKey(starlark.String("stdout"), starlark.String(stdout.String()))
	d.SetKey(starlark.String("stderr"), starlark.String(stderr.String()))
	d.SetKey(starlark.String("success"), starlark.Bool(result.ExitCode == 0))
	return d, nil
}

func dirOrDefault(dir, fallback string) string {
	if dir == "" {
		return fallback
	}
	return dir
}

func mergeEnv(state *vos.State, extra *starlark.Dict) []string {
	base := state.Env().Environ()
	if extra == nil {
		return base
	}
	out := append([]string{}, base...)
	for _, item := range extra.Items() {
		k, _ := starlark.AsString(item[0])
		v, _ := starlark.AsString(item[1])
		out = append(out, k+"="+v)
	}
	return out
}

func (b *Bridge) procList(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if err := b.gate("proc:list", ""); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return starlark.NewList(nil), nil
	}
	var out []starlark.Value
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		out = append(out, procInfoDict(pid))
	}
	return starlark.NewList(out), nil
}

// procInfoDict builds the {pid, name, cpu, memory, uptime} dict shared by
// proc.list and proc.info. cpu stays 0: a single /proc snapshot has no
// prior sample to diff against, so there is no window to compute a rate
// over.
func procInfoDict(pid int) *starlark.Dict {
	d := starlark.NewDict(5)
	d.SetKey(starlark.String("pid"), starlark.MakeInt(pid))
	d.SetKey(starlark.String("name"), starlark.String(processName(pid)))
	d.SetKey(starlark.String("cpu"), starlark.Float(0))
	d.SetKey(starlark.String("memory"), starlark.MakeInt64(processMemoryBytes(pid)))
	d.SetKey(starlark.String("uptime"), starlark.MakeInt64(processUptimeSeconds(pid)))
	return d
}

func processName(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// clockTicksPerSecond is Linux's USER_HZ, used to convert /proc/pid/stat's
// starttime field (clock ticks since boot) into seconds. Go has no
// portable sysconf(_SC_CLK_TCK) without cgo; 100 is the value on every
// architecture this shell targets.
const clockTicksPerSecond = 100

// processMemoryBytes reports pid's resident set size by reading its
// statm file's second field (resident pages), best-effort: 0 if the
// process has exited or /proc is unavailable.
func processMemoryBytes(pid int) int64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return pages * int64(os.Getpagesize())
}

// processUptimeSeconds reports how long pid has been running, derived
// from /proc/uptime and pid's starttime field in /proc/pid/stat,
// best-effort: 0 if either file can't be read or parsed.
func processUptimeSeconds(pid int) int64 {
	hostUptime, err := hostUptimeSeconds()
	if err != nil {
		return 0
	}
	startTicks, err := processStartTicks(pid)
	if err != nil {
		return 0
	}
	uptime := hostUptime - float64(startTicks)/clockTicksPerSecond
	if uptime < 0 {
		return 0
	}
	return int64(uptime)
}

func hostUptimeSeconds() (float64, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, errors.New("malformed /proc/uptime")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// processStartTicks returns the starttime field (clock ticks since
// boot) from /proc/pid/stat. The command name field is parenthesized
// and may itself contain spaces or parens, so the fields that follow
// are located relative to the last ')' rather than by splitting the
// whole line.
func processStartTicks(pid int) (int64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	close := bytes.LastIndexByte(data, ')')
	if close < 0 || close+2 >= len(data) {
		return 0, errors.New("malformed /proc/pid/stat")
	}
	fields := strings.Fields(string(data[close+2:]))
	const startTimeField = 22 - 3 // fields[0] is field 3 (state); field N lands at index N-3
	if len(fields) <= startTimeField {
		return 0, errors.New("missing starttime field")
	}
	return strconv.ParseInt(fields[startTimeField], 10, 64)
}

func (b *Bridge) procKill(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pid int
	var signal string = "SIGTERM"
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "pid", &pid, "signal?", &signal); err != nil {
		return nil, err
	}
	if err := b.gate("proc:kill", strconv.Itoa(pid)); err != nil {
		return nil, err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindNotFound, err, "process not found")
	}
	sig := signalFor(signal)
	if err := proc.Signal(sig); err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindExecutionFailure, err, "failed to deliver signal")
	}
	return starlark.None, nil
}

func signalFor(name string) os.Signal {
	switch name {
	case "SIGKILL":
		return syscall.SIGKILL
	case "SIGINT":
		return syscall.SIGINT
	case "SIGHUP":
		return syscall.SIGHUP
	default:
		return syscall.SIGTERM
	}
}

func (b *Bridge) procInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pid int
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "pid", &pid); err != nil {
		return nil, err
	}
	if err := b.gate("proc:info", strconv.Itoa(pid)); err != nil {
		return nil, err
	}

	if processName(pid) == "" {
		return starlark.None, nil
	}
	return procInfoDict(pid), nil
}

// monitorHandle backs proc.monitor's returned {stop()} value.
type monitorHandle struct {
	cancel context.CancelFunc
}

func (m *monitorHandle) String() string        { return "<monitor>" }
func (m *monitorHandle) Type() string          { return "monitor" }
func (m *monitorHandle) Freeze()               {}
func (m *monitorHandle) Truth() starlark.Bool  { return starlark.True }
func (m *monitorHandle) Hash() (uint32, error) { return 0, nexuserr.New(nexuserr.KindInvalidArgument, "unhashable: monitor") }

func (m *monitorHandle) Attr(name string) (starlark.Value, error) {
	if name == "stop" {
		return starlark.NewBuiltin("monitor.stop", func(t *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			m.cancel()
			return starlark.None, nil
		}), nil
	}
	return nil, nil
}

func (m *monitorHandle) AttrNames() []string { return []string{"stop"} }

var _ starlark.HasAttrs = (*monitorHandle)(nil)

func (b *Bridge) procMonitor(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cb starlark.Callable
	var intervalMs int = 1000
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "cb", &cb, "interval_ms?", &intervalMs); err != nil {
		return nil, err
	}
	if err := b.gate("proc:monitor", ""); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	mh := &monitorHandle{}
	id, err := b.handles.Put(mh)
	if err != nil {
		cancel()
		return nil, err
	}
	mh.cancel = func() {
		cancel()
		b.handles.Release(id)
	}

	cbThread := &starlark.Thread{Name: "proc.monitor callback"}
	go func() {
		ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				starlark.Call(cbThread, cb, starlark.Tuple{}, nil)
			}
		}
	}()

	return mh, nil
}
