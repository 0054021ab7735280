package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .ssh2shell.yaml configuration file.
type Config struct {
	Version   int              `yaml:"version" mapstructure:"version"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Commands  []string         `yaml:"commands" mapstructure:"commands"`
	Prompts   PromptConfig     `yaml:"prompts" mapstructure:"prompts"`
	Responses []ResponseConfig `yaml:"responses" mapstructure:"responses"`
	Shell     ShellConfig      `yaml:"shell" mapstructure:"shell"`
	Messages  MessageConfig    `yaml:"messages" mapstructure:"messages"`
	Output    OutputConfig     `yaml:"output" mapstructure:"output"`
	Hops      []HopConfig      `yaml:"hops" mapstructure:"hops"`
}

// ServerConfig holds connection details. HOST, PORT, USER_NAME, PASSWORD,
// PRIVATE_KEY and PASSPHRASE in the environment override these.
type ServerConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"` // 0 means ssh config, else 22
	UserName string `yaml:"user_name" mapstructure:"user_name"`
	Password string `yaml:"password" mapstructure:"password"`

	// PrivateKey is either PEM key material or a path to a key file.
	PrivateKey string `yaml:"private_key" mapstructure:"private_key"`
	Passphrase string `yaml:"passphrase" mapstructure:"passphrase"`
	UseAgent   bool   `yaml:"use_agent" mapstructure:"use_agent"`

	KnownHosts string        `yaml:"known_hosts" mapstructure:"known_hosts"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PromptConfig controls how shell prompts are recognised.
type PromptConfig struct {
	// Standard lists characters that end a ready prompt, e.g. ">$%#".
	Standard string `yaml:"standard" mapstructure:"standard"`

	// Pattern is a regular expression that replaces Standard when set.
	Pattern string `yaml:"pattern" mapstructure:"pattern"`

	Password   string `yaml:"password" mapstructure:"password"`
	Passphrase string `yaml:"passphrase" mapstructure:"passphrase"`
}

// ResponseConfig answers an interactive question a command asks.
type ResponseConfig struct {
	Match string `yaml:"match" mapstructure:"match"`
	Send  string `yaml:"send" mapstructure:"send"`
}

// ShellConfig controls the PTY and command pacing.
type ShellConfig struct {
	Term  string `yaml:"term" mapstructure:"term"`
	Cols  int    `yaml:"cols" mapstructure:"cols"`
	Rows  int    `yaml:"rows" mapstructure:"rows"`
	Enter string `yaml:"enter" mapstructure:"enter"`

	// IdleTimeout is how long a command may stay silent without a prompt.
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ContinueOnTimeout bool          `yaml:"continue_on_timeout" mapstructure:"continue_on_timeout"`

	ShowBanner bool `yaml:"show_banner" mapstructure:"show_banner"`
	StripANSI  bool `yaml:"strip_ansi" mapstructure:"strip_ansi"`
}

// MessageConfig overrides the lifecycle notices shown on the console.
type MessageConfig struct {
	Connected string `yaml:"connected" mapstructure:"connected"`
	Ready     string `yaml:"ready" mapstructure:"ready"`
	Closed    string `yaml:"closed" mapstructure:"closed"`
}

// OutputConfig controls where session output goes.
type OutputConfig struct {
	// Logs are files that session output is appended to.
	Logs []string `yaml:"logs" mapstructure:"logs"`

	// TranscriptDir, when set, gets a timestamped directory per session with
	// the transcript and a summary.json.
	TranscriptDir string `yaml:"transcript_dir" mapstructure:"transcript_dir"`

	// KeepRuns prunes transcript_dir to the newest N sessions per host. 0 keeps all.
	KeepRuns int `yaml:"keep_runs" mapstructure:"keep_runs"`

	// Prefix puts the host name in front of every console line.
	Prefix bool `yaml:"prefix" mapstructure:"prefix"`

	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`
}

// HopConfig is a host reached through the main server once its commands have run.
type HopConfig struct {
	Server   ServerConfig `yaml:"server" mapstructure:"server"`
	Commands []string     `yaml:"commands" mapstructure:"commands"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Server: ServerConfig{
			Timeout: 10 * time.Second,
		},
		Prompts: PromptConfig{
			Standard:   ">$%#",
			Password:   ":",
			Passphrase: ":",
		},
		Shell: ShellConfig{
			Term:        "xterm",
			Cols:        80,
			Rows:        24,
			Enter:       "\n",
			IdleTimeout: 5 * time.Second,
		},
		Messages: MessageConfig{
			Connected: "Connected",
			Ready:     "Ready",
			Closed:    "Closed",
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}
