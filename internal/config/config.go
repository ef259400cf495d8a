// Package config implements the shell's configuration file: a
// Configuration struct matching spec.md section 6's JSON schema
// exactly, byte-spec and duration parsing, and struct-tag validation.
//
// Grounded on core/config/config.go's Configuration/Validate shape and
// core/config/load.go's "path-or-directory" Load convenience; the
// teacher's config file is YAML (sigs.k8s.io/yaml) with an
// afero-backed embedded default, but spec.md section 6 names JSON as
// the external interface, so the serializer here is encoding/json —
// the one deliberate stdlib substitution directly mandated by the
// spec, not a dropped dependency (validator is kept for everything
// else the teacher uses it for).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/nexusshell/nexus/internal/nexuserr"
)

// ConfigurationName is the config file's fixed basename, matching the
// teacher's ConfigurationName constant.
const ConfigurationName = "config.json"

// ByteSize is an integer byte count that unmarshals from either a
// JSON number (bytes) or a humanize-style string ("50MB"), per
// spec.md section 6's "<byte-spec>" schema entries.
type ByteSize int64

// UnmarshalJSON accepts a bare integer or a humanize byte-spec string.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "byte size must be a number or a string like \"50MB\"")
	}
	n2, err := humanize.ParseBytes(s)
	if err != nil {
		return nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "failed to parse byte size")
	}
	*b = ByteSize(n2)
	return nil
}

// MarshalJSON renders as a bare byte count.
func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(b))
}

// ShellConfig is spec.md section 6's "shell" block.
type ShellConfig struct {
	MaxMemory      ByteSize `json:"maxMemory"`
	EnableJIT      bool     `json:"enableJIT"`
	EnableSandbox  bool     `json:"enableSandbox"`
	EnableDebug    bool     `json:"enableDebug"`
	ThreadPoolSize int      `json:"threadPoolSize" validate:"gte=0"`
}

// SecurityConfig is spec.md section 6's "security" block.
type SecurityConfig struct {
	DefaultPolicy string   `json:"defaultPolicy" validate:"oneof=sandbox developer production"`
	AuditLogging  bool     `json:"auditLogging"`
	Capabilities  []string `json:"capabilities"`
}

// Thresholds is spec.md section 6's "performance.thresholds" block.
type Thresholds struct {
	MemoryWarning  ByteSize `json:"memoryWarning"`
	LatencyWarning int      `json:"latencyWarning" validate:"gte=0"` // milliseconds
}

// PerformanceConfig is spec.md section 6's "performance" block.
type PerformanceConfig struct {
	Monitoring bool       `json:"monitoring"`
	Thresholds Thresholds `json:"thresholds"`
}

// Configuration is the top-level document at spec.md section 6's
// schema. Unknown top-level and nested keys are ignored by
// encoding/json's default decoding behavior; missing keys take
// defaults because Load unmarshals onto a struct pre-populated by
// Default().
type Configuration struct {
	Shell       ShellConfig       `json:"shell"`
	Security    SecurityConfig    `json:"security"`
	Performance PerformanceConfig `json:"performance"`
}

// Default returns the configuration spec.md section 6 implies when a
// key is missing: default thread pool size is hardware concurrency,
// default policy is the most restrictive ("sandbox").
func Default() *Configuration {
	return &Configuration{
		Shell: ShellConfig{
			MaxMemory:      50 * 1024 * 1024,
			EnableJIT:      true,
			EnableSandbox:  true,
			EnableDebug:    false,
			ThreadPoolSize: runtime.NumCPU(),
		},
		Security: SecurityConfig{
			DefaultPolicy: "sandbox",
			AuditLogging:  true,
		},
		Performance: PerformanceConfig{
			Monitoring: true,
			Thresholds: Thresholds{
				MemoryWarning:  40 * 1024 * 1024,
				LatencyWarning: 500,
			},
		},
	}
}

// Validate checks c for basic semantic errors using struct tags,
// reporting violations by their JSON field name rather than the Go
// field name, matching core/config/config.go's RegisterTagNameFunc.
func (c *Configuration) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := v.Struct(c); err != nil {
		return nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "invalid configuration")
	}
	return nil
}

// Load reads path (or <path>/config.json, if path is a directory) as
// JSON, starting from Default() so any key the file omits keeps its
// default value. Grounded on core/config/load.go's
// "file-or-directory" path handling.
func Load(path string) (*Configuration, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ConfigurationName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindNotFound, err, "failed to read config file")
	}

	out := Default()
	if err := json.Unmarshal(data, out); err != nil {
		return nil, nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "failed to parse config file")
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseMaxMemoryEnv parses the NEXUS_MAX_MEMORY environment variable's
// "byte count or <n>MB" format, per spec.md section 6's CLI surface.
func ParseMaxMemoryEnv(s string) (ByteSize, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ByteSize(n), nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "failed to parse NEXUS_MAX_MEMORY")
	}
	return ByteSize(n), nil
}
