package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/spf13/viper"
)

const (
	DefaultPattern = "%Y/%m/%d/IMG_%Y%m%d_%H%M%S"
	DefaultLogFile = ".mediacopy-log"
	JournalFile    = ".mediacopy-journal.jsonl"
)

// Command selects the file operation of a run.
type Command string

const (
	CommandCopy     Command = "copy"
	CommandMove     Command = "move"
	CommandSimulate Command = "simulate"
)

func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.ToLower(s)); c {
	case CommandCopy, CommandMove, CommandSimulate:
		return c, nil
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// Config holds the user's defaults, read from mediacopy.toml and
// MEDIACOPY_* environment variables.
type Config struct {
	Pattern      string        `mapstructure:"pattern"`
	UTC          bool          `mapstructure:"utc"`
	Rotate       bool          `mapstructure:"rotate"`
	Exiftool     bool          `mapstructure:"exiftool"`
	ExiftoolPath string        `mapstructure:"exiftool_path"`
	LogFile      string        `mapstructure:"log_file"`
	Journal      bool          `mapstructure:"journal"`
	QuietPeriod  time.Duration `mapstructure:"watch_quiet"`
}

// LoadConfig reads path, or mediacopy.toml from the user config dir when
// path is empty. A missing file leaves the defaults in place.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mediacopy")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "mediacopy"))
		}
	}

	v.SetDefault("pattern", DefaultPattern)
	v.SetDefault("utc", false)
	v.SetDefault("rotate", true)
	v.SetDefault("exiftool", false)
	v.SetDefault("exiftool_path", "")
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("journal", true)
	v.SetDefault("watch_quiet", 2*time.Second)

	v.SetEnvPrefix("MEDIACOPY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// RunConfig is everything one run needs. It is built once and handed to
// the worker.
type RunConfig struct {
	InputDir     string
	OutputDir    string
	Pattern      string
	UseUTC       bool
	Command      Command
	Rotate       bool
	UseExiftool  bool
	ExiftoolPath string
	LogFile      string // relative names are placed in OutputDir
	Journal      bool
}

// RunConfig combines the defaults with the directories of one run.
func (c *Config) RunConfig(cmd Command, inputDir, outputDir string) RunConfig {
	return RunConfig{
		InputDir:     inputDir,
		OutputDir:    outputDir,
		Pattern:      c.Pattern,
		UseUTC:       c.UTC,
		Command:      cmd,
		Rotate:       c.Rotate,
		UseExiftool:  c.Exiftool,
		ExiftoolPath: c.ExiftoolPath,
		LogFile:      c.LogFile,
		Journal:      c.Journal,
	}
}

// Validate checks the run and makes both directories absolute.
func (rc *RunConfig) Validate() error {
	if _, err := ParseCommand(string(rc.Command)); err != nil {
		return err
	}
	if rc.Pattern == "" {
		return errors.New("pattern must not be empty")
	}
	sample := filepath.FromSlash(strftime.Format(rc.Pattern, time.Date(2019, 2, 5, 12, 10, 32, 0, time.UTC)))
	if !filepath.IsLocal(sample) {
		return fmt.Errorf("pattern %q must render to a relative path inside the output directory", rc.Pattern)
	}

	in, err := filepath.Abs(rc.InputDir)
	if err != nil {
		return err
	}
	st, err := os.Stat(in)
	if err != nil {
		return fmt.Errorf("input directory: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("input %s is not a directory", in)
	}

	out, err := filepath.Abs(rc.OutputDir)
	if err != nil {
		return err
	}
	if out == in {
		return errors.New("output directory must differ from the input directory")
	}
	rc.InputDir, rc.OutputDir = in, out
	return nil
}

// LogPath returns the log file location, or "" when logging to file is off.
func (rc *RunConfig) LogPath() string {
	if rc.LogFile == "" || filepath.IsAbs(rc.LogFile) {
		return rc.LogFile
	}
	return filepath.Join(rc.OutputDir, rc.LogFile)
}

func (rc *RunConfig) JournalPath() string {
	if !rc.Journal {
		return ""
	}
	return filepath.Join(rc.OutputDir, JournalFile)
}
