package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/ssh2shell/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".ssh2shell.yaml"
	// EnvFileName is the dotenv file checked when no YAML config exists.
	EnvFileName = ".env"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/ssh2shell"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// EnvBindings maps config keys to the environment variables that override
// them. The same names are the flat keys of a dotenv config file.
var EnvBindings = map[string]string{
	"server.host":        "HOST",
	"server.port":        "PORT",
	"server.user_name":   "USER_NAME",
	"server.password":    "PASSWORD",
	"server.private_key": "PRIVATE_KEY",
	"server.passphrase":  "PASSPHRASE",
}

// Load reads config from path, then applies environment overrides. An empty
// path loads defaults plus the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, env := range EnvBindings {
		_ = v.BindEnv(key, env)
	}

	if path != "" {
		v.SetConfigFile(path)
		if isDotenv(path) {
			v.SetConfigType("dotenv")
		}

		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Run 'ssh2shell init' to create a config file, or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML or KEY=value lines")
		}

		if isDotenv(path) {
			if err := liftDotenv(v); err != nil {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Failed to read "+filepath.Base(path),
					"Use KEY=value lines with HOST, PORT, USER_NAME and PASSWORD")
			}
		}
	}

	return parseConfig(v, path)
}

// liftDotenv moves flat dotenv keys (host, port, ...) under server.* so they
// decode like the YAML layout. Process env bindings still win.
func liftDotenv(v *viper.Viper) error {
	server := make(map[string]interface{})
	for key, env := range EnvBindings {
		flat := strings.ToLower(env)
		if v.InConfig(flat) {
			server[strings.TrimPrefix(key, "server.")] = v.Get(flat)
		}
	}
	if len(server) == 0 {
		return nil
	}
	return v.MergeConfigMap(map[string]interface{}{"server": server})
}

func isDotenv(path string) bool {
	base := filepath.Base(path)
	return base == EnvFileName || strings.HasPrefix(base, EnvFileName+".") || filepath.Ext(base) == ".env"
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .ssh2shell.yaml in current directory
// 3. .env in current directory
// 4. .ssh2shell.yaml in parent directories (stops at git root or home)
// 5. ~/.config/ssh2shell/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	for _, name := range []string{ConfigFileName, EnvFileName} {
		local := filepath.Join(cwd, name)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for !isGitRoot(dir) {
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && parent == home) {
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault finds and loads config, falling back to defaults plus the
// environment when there is no file. The returned path is empty in that case.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		source := "the environment"
		if path != "" {
			source = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+source)
	}

	cfg.Server = expandServer(cfg.Server)
	for i := range cfg.Hops {
		cfg.Hops[i].Server = expandServer(cfg.Hops[i].Server)
	}

	return cfg, nil
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}
