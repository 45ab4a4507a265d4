package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/sheets/internal/api"
	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "SHEETS"

	cfgKeyBackend         = "backend"
	cfgKeyDataDir         = "data_dir"
	cfgKeyListen          = "listen"
	cfgKeyAllowedOrigins  = "allowed_origins"
	cfgKeyRateRPS         = "rate_limit.rps"
	cfgKeyRateBurst       = "rate_limit.burst"
	cfgKeyTrustProxy      = "rate_limit.trust_proxy"
	cfgKeyLogLevel        = "log.level"
	cfgKeyLogFormat       = "log.format"
	cfgKeyShutdownTimeout = "shutdown_timeout"
)

// envKeys may be overridden from SHEETS_* variables (SHEETS_LISTEN,
// SHEETS_RATE_LIMIT_RPS, ...). data_dir is absent: SHEETS_DATA_DIR ranks
// below config.yaml and is handled by the paths package.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyListen,
	cfgKeyAllowedOrigins,
	cfgKeyRateRPS,
	cfgKeyRateBurst,
	cfgKeyTrustProxy,
	cfgKeyLogLevel,
	cfgKeyLogFormat,
	cfgKeyShutdownTimeout,
}

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# sheets configuration

# Backend selection
backend: sqlite

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# HTTP server (sheets serve)
listen: ":4000"
# allowed_origins: ["http://localhost:3000"]
rate_limit:
  rps: 0      # requests per second per client; 0 disables limiting
  burst: 20
  trust_proxy: false  # key clients by X-Forwarded-For behind a reverse proxy
shutdown_timeout: 10s

log:
  level: ""   # debug, info, warn, error
  format: json
`

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run. A missing config.yaml
// is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyListen, api.DefaultListen)
	v.SetDefault(cfgKeyRateBurst, api.DefaultBurst)
	v.SetDefault(cfgKeyShutdownTimeout, api.DefaultShutdownTimeout)
	v.SetDefault(cfgKeyLogFormat, "json")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does
// not exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// serverConfig builds the HTTP server configuration. allowed_origins may be
// a YAML list or a comma-separated string.
func serverConfig(v *viper.Viper) (api.Config, error) {
	var origins []string
	for _, entry := range v.GetStringSlice(cfgKeyAllowedOrigins) {
		for _, o := range strings.Split(entry, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	c := api.Config{
		Listen:         v.GetString(cfgKeyListen),
		AllowedOrigins: origins,
		RateLimit: api.RateLimitConfig{
			RPS:        v.GetFloat64(cfgKeyRateRPS),
			Burst:      v.GetInt(cfgKeyRateBurst),
			TrustProxy: v.GetBool(cfgKeyTrustProxy),
		},
		ShutdownTimeout: v.GetDuration(cfgKeyShutdownTimeout),
	}
	if c.RateLimit.RPS < 0 {
		return api.Config{}, fmt.Errorf("%s must not be negative", cfgKeyRateRPS)
	}
	return c, nil
}

// setConfigValue sets a top-level scalar key in the YAML file at path,
// keeping comments and the order of the other keys.
func setConfigValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config %s: top level is not a mapping", path)
	}

	valueNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			valueNode.LineComment = root.Content[i+1].LineComment
			root.Content[i+1] = valueNode
			replaced = true
			break
		}
	}
	if !replaced {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			valueNode,
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
