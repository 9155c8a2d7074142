// Package config resolves the host's runtime configuration: plugin
// directory, log level, memory limit, and external-I/O timeouts. Grounded
// in the teacher's cmd/reglet root.go viper/cobra wiring, generalized from
// reglet's `$HOME/.reglet/config.yaml` + no-prefix env vars to viper's own
// flag > env (`LOOM_*`) > config file > default precedence (SPEC_FULL.md
// §10/§11.7).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the resolved, typed view of every flag/env/file setting the
// host reads at startup.
type Config struct {
	PluginDir     string
	LogLevel      string
	MemoryLimitMB int
	ContentHash   bool
	HTTPTimeout   time.Duration
	OCITimeout    time.Duration
	SecretsDir    string
}

// BindFlags registers the persistent flags viper resolves config from,
// matching the teacher's root.go convention of binding flags once on the
// root command and reading them back through viper everywhere else.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("plugin-dir", defaultPluginDir(), "directory containing component modules and sidecars")
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().Int("memory-limit-mb", 0, "default per-component wasm memory limit in MB (0 = engine default)")
	cmd.PersistentFlags().Bool("content-hash", false, "compute a SHA-256 validation stamp on every module (slower cold start)")
	cmd.PersistentFlags().Int("http-timeout-secs", 30, "timeout in seconds for http(s):// fetches")
	cmd.PersistentFlags().Int("oci-timeout-secs", 30, "timeout in seconds for oci:// fetches")

	_ = viper.BindPFlag("plugin_dir", cmd.PersistentFlags().Lookup("plugin-dir"))
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("memory_limit_mb", cmd.PersistentFlags().Lookup("memory-limit-mb"))
	_ = viper.BindPFlag("content_hash", cmd.PersistentFlags().Lookup("content-hash"))
	_ = viper.BindPFlag("http_timeout_secs", cmd.PersistentFlags().Lookup("http-timeout-secs"))
	_ = viper.BindPFlag("oci_timeout_secs", cmd.PersistentFlags().Lookup("oci-timeout-secs"))
}

// InitViper wires env-var and config-file resolution: LOOM_-prefixed
// environment variables and $XDG_CONFIG_HOME/loom/config.yaml (falling
// back to os.UserConfigDir()/loom), consistent with the teacher's
// $HOME/.reglet/config.yaml convention generalized to viper's own
// cross-platform config dir.
func InitViper(explicitConfigFile string) error {
	viper.SetEnvPrefix("loom")
	viper.AutomaticEnv()
	_ = viper.BindEnv("http_timeout_secs", "LOOM_HTTP_TIMEOUT_SECS", "HTTP_TIMEOUT_SECS")
	_ = viper.BindEnv("oci_timeout_secs", "LOOM_OCI_TIMEOUT_SECS", "OCI_TIMEOUT_SECS")

	if explicitConfigFile != "" {
		viper.SetConfigFile(explicitConfigFile)
		return viper.ReadInConfig()
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(configDir, "loom"))
	}
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: read config file: %w", err)
		}
	}
	return nil
}

// Load resolves the final Config from whatever viper has bound by the time
// it's called (flags > env > file > default, viper's own precedence).
func Load() Config {
	pluginDir := orDefault(viper.GetString("plugin_dir"), defaultPluginDir())
	// <id>.secrets.yaml sidecars are colocated with a component's other
	// files by default; secrets_dir overrides that only for deployments
	// that want secrets rooted outside the plugin directory (e.g. a
	// read-only plugin dir mounted from a release artifact).
	secretsDir := orDefault(viper.GetString("secrets_dir"), pluginDir)
	return Config{
		PluginDir:     pluginDir,
		LogLevel:      orDefault(viper.GetString("log_level"), "info"),
		MemoryLimitMB: viper.GetInt("memory_limit_mb"),
		ContentHash:   viper.GetBool("content_hash"),
		HTTPTimeout:   secondsOrDefault(viper.GetInt("http_timeout_secs"), 30),
		OCITimeout:    secondsOrDefault(viper.GetInt("oci_timeout_secs"), 30),
		SecretsDir:    secretsDir,
	}
}

func defaultPluginDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".loom", "plugins")
	}
	return filepath.Join(configDir, "loom", "plugins")
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func secondsOrDefault(secs, fallback int) time.Duration {
	if secs <= 0 {
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}
