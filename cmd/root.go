package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/hh-interviewer/internal/ratelimit"
)

const (
	app = "hh-interviewer"
)

type Config struct {
	Transcript *TranscriptConfig `mapstructure:"transcript"`
	AI         *AIConfig         `mapstructure:"ai"`
	Limits     *LimitsConfig     `mapstructure:"limits"`
	Pipeline   *PipelineConfig   `mapstructure:"pipeline"`
	Server     *ServerConfig     `mapstructure:"server"`
}

type TranscriptConfig struct {
	BaseURL     string        `mapstructure:"base-url"`
	APIKeyFile  string        `mapstructure:"api-key-file"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max-attempts"`
	BaseDelay   time.Duration `mapstructure:"base-delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type LimitsConfig struct {
	Transcript ratelimit.Policy `mapstructure:"transcript"`
	Scoring    ratelimit.Policy `mapstructure:"scoring"`
	Upload     ratelimit.Policy `mapstructure:"upload"`
	SweepEvery int              `mapstructure:"sweep-every"`
}

type PipelineConfig struct {
	Deliberation time.Duration `mapstructure:"deliberation"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	AttemptTTL      time.Duration `mapstructure:"attempt-ttl"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-interviewer scores finished voice mock interviews",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("transcript.api-key-file", "ELEVENLABS_API_KEY_FILE"); err != nil {
		log.Fatalf("binding ELEVENLABS_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-interviewer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transcript.base-url", "https://api.elevenlabs.io")
	v.SetDefault("transcript.timeout", 10*time.Second)
	v.SetDefault("transcript.max-attempts", 8)
	v.SetDefault("transcript.base-delay", 3*time.Second)
	v.SetDefault("transcript.multiplier", 1.5)

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.model", "gemini-2.5-pro")
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("limits.transcript.max-requests", 200)
	v.SetDefault("limits.transcript.window", time.Minute)
	v.SetDefault("limits.scoring.max-requests", 30)
	v.SetDefault("limits.scoring.window", time.Minute)
	v.SetDefault("limits.upload.max-requests", 10)
	v.SetDefault("limits.upload.window", time.Minute)
	v.SetDefault("limits.sweep-every", 100)

	v.SetDefault("pipeline.deliberation", 3*time.Second)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.attempt-ttl", 30*time.Minute)
	v.SetDefault("server.shutdown-timeout", 10*time.Second)
}

func initConfig() {
	// Version does not need a config.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// Defaults are enough without a config file, but a broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	if config.Transcript == nil {
		config.Transcript = &TranscriptConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Limits == nil {
		config.Limits = &LimitsConfig{}
	}
	if config.Pipeline == nil {
		config.Pipeline = &PipelineConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}

	return config, nil
}
