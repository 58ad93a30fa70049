package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"fserve/internal/paths"
)

// ConfigPathEnvVar names an explicit config file, consulted when no path is
// passed on the command line.
const ConfigPathEnvVar = "FSERVE_CONFIG_PATH"

type valueType int

const (
	typeString valueType = iota
	typeInt
	typeBool
)

type envMapping struct {
	path string
	kind valueType
}

// envVarMappings maps FSERVE_* variables onto config paths.
var envVarMappings = map[string]envMapping{
	"FSERVE_HOST":                      {"server.host", typeString},
	"FSERVE_PORT":                      {"server.port", typeInt},
	"FSERVE_ROOT":                      {"server.root", typeString},
	"FSERVE_MAX_REQUEST_BYTES":         {"server.maxRequestBytes", typeInt},
	"FSERVE_READ_TIMEOUT_MS":           {"server.readTimeoutMs", typeInt},
	"FSERVE_WRITE_TIMEOUT_MS":          {"server.writeTimeoutMs", typeInt},
	"FSERVE_MAX_CONCURRENT":            {"limits.maxConcurrent", typeInt},
	"FSERVE_QUEUE_SIZE":                {"limits.queueSize", typeInt},
	"FSERVE_QUEUE_TIMEOUT_MS":          {"limits.queueTimeoutMs", typeInt},
	"FSERVE_ACCESS_LOG_ENABLED":        {"accessLog.enabled", typeBool},
	"FSERVE_ACCESS_LOG_PATH":           {"accessLog.path", typeString},
	"FSERVE_ACCESS_LOG_RETENTION_DAYS": {"accessLog.retentionDays", typeInt},
	"FSERVE_LOG_LEVEL":                 {"logging.level", typeString},
	"FSERVE_LOG_FORMAT":                {"logging.format", typeString},
	"FSERVE_LOG_FILE":                  {"logging.file", typeString},
}

// EnvOverride records one environment variable that changed the config.
type EnvOverride struct {
	EnvVar string `json:"envVar"`
	Path   string `json:"path"`
	Value  string `json:"value"`
}

// LoadResult describes where the effective configuration came from.
type LoadResult struct {
	Config       *Config       `json:"config"`
	ConfigPath   string        `json:"configPath,omitempty"`
	UsedDefaults bool          `json:"usedDefaults"`
	EnvOverrides []EnvOverride `json:"envOverrides,omitempty"`
}

// LoadConfigWithDetails resolves the config file, loads it and applies
// FSERVE_* overrides. The file is explicitPath when set, else
// $FSERVE_CONFIG_PATH, else the first of paths.DefaultConfigPaths that
// exists. An explicit or env-named file must exist.
func LoadConfigWithDetails(explicitPath string) (*LoadResult, error) {
	result := &LoadResult{}

	path := explicitPath
	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}

	if path != "" {
		if !fileExists(path) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		cfg, err := LoadConfigFromPath(path)
		if err != nil {
			return nil, err
		}
		result.Config = cfg
		result.ConfigPath = path
	} else {
		for _, candidate := range paths.DefaultConfigPaths() {
			if !fileExists(candidate) {
				continue
			}
			cfg, err := LoadConfigFromPath(candidate)
			if err != nil {
				return nil, err
			}
			result.Config = cfg
			result.ConfigPath = candidate
			break
		}
	}

	if result.Config == nil {
		result.Config = DefaultConfig()
		result.UsedDefaults = true
	}

	result.EnvOverrides = applyEnvOverrides(result.Config)
	return result, nil
}

// applyEnvOverrides applies every set FSERVE_* variable to cfg. Values
// that do not parse as the target type are skipped.
func applyEnvOverrides(cfg *Config) []EnvOverride {
	names := make([]string, 0, len(envVarMappings))
	for name := range envVarMappings {
		names = append(names, name)
	}
	sort.Strings(names)

	var overrides []EnvOverride
	for _, name := range names {
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}
		m := envVarMappings[name]

		var value interface{}
		switch m.kind {
		case typeInt:
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			value = n
		case typeBool:
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			value = b
		default:
			value = raw
		}

		if applyOverride(cfg, m.path, value) {
			overrides = append(overrides, EnvOverride{EnvVar: name, Path: m.path, Value: raw})
		}
	}
	return overrides
}

// applyOverride sets the field at path. It reports false for unknown paths
// and for values of the wrong type.
func applyOverride(cfg *Config, path string, value interface{}) bool {
	parts := strings.SplitN(path, ".", 2)
	if len(parts) != 2 {
		return false
	}
	section, field := parts[0], parts[1]

	var target interface{}
	switch section {
	case "server":
		switch field {
		case "host":
			target = &cfg.Server.Host
		case "port":
			target = &cfg.Server.Port
		case "root":
			target = &cfg.Server.Root
		case "maxRequestBytes":
			target = &cfg.Server.MaxRequestBytes
		case "readTimeoutMs":
			target = &cfg.Server.ReadTimeoutMs
		case "writeTimeoutMs":
			target = &cfg.Server.WriteTimeoutMs
		}
	case "limits":
		switch field {
		case "maxConcurrent":
			target = &cfg.Limits.MaxConcurrent
		case "queueSize":
			target = &cfg.Limits.QueueSize
		case "queueTimeoutMs":
			target = &cfg.Limits.QueueTimeoutMs
		}
	case "accessLog":
		switch field {
		case "enabled":
			target = &cfg.AccessLog.Enabled
		case "path":
			target = &cfg.AccessLog.Path
		case "retentionDays":
			target = &cfg.AccessLog.RetentionDays
		}
	case "logging":
		switch field {
		case "level":
			target = &cfg.Logging.Level
		case "format":
			target = &cfg.Logging.Format
		case "file":
			target = &cfg.Logging.File
		}
	}

	switch p := target.(type) {
	case *string:
		v, ok := value.(string)
		if ok {
			*p = v
		}
		return ok
	case *int:
		v, ok := value.(int)
		if ok {
			*p = v
		}
		return ok
	case *bool:
		v, ok := value.(bool)
		if ok {
			*p = v
		}
		return ok
	default:
		return false
	}
}

// GetSupportedEnvVars lists the recognised override variables, sorted.
func GetSupportedEnvVars() []string {
	names := make([]string, 0, len(envVarMappings)+1)
	names = append(names, ConfigPathEnvVar)
	for name := range envVarMappings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvPath returns the config path an environment variable overrides, or ""
// when the variable is not recognised.
func EnvPath(name string) string {
	return envVarMappings[name].path
}
