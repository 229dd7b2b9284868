// Package session holds the complete configuration of a robot session: one
// YAML file, overridden by environment variables, validated before any
// backend is built.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-robo/pkg/audioio"
	"github.com/teslashibe/go-robo/pkg/device"
	"github.com/teslashibe/go-robo/pkg/notify"
	"github.com/teslashibe/go-robo/pkg/reply"
	"github.com/teslashibe/go-robo/pkg/speech"
	"github.com/teslashibe/go-robo/pkg/turn"
	"github.com/teslashibe/go-robo/pkg/vad"
	"github.com/teslashibe/go-robo/pkg/wake"
	"github.com/teslashibe/go-robo/pkg/web"
)

// Backend names accepted by the config.
const (
	WakeHTTP       = "http"
	WakeTranscript = "transcript"
	WakeEnergy     = "energy"

	STTWhisper = "whisper"
	STTGoogle  = "google"

	LLMOpenAI = "openai"
	LLMGemini = "gemini"
	LLMChain  = "chain"

	TTSOpenAI     = "openai"
	TTSElevenLabs = "elevenlabs"
	TTSGoogle     = "google"

	SpeechCommand = "command"
	SpeechTTS     = "tts"
)

const redacted = "********"

// Config is the full session configuration.
type Config struct {
	Log    LogConfig      `yaml:"log"`
	Audio  audioio.Config `yaml:"audio"`
	Wake   WakeConfig     `yaml:"wake"`
	VAD    vad.Params     `yaml:"vad"`
	Turn   turn.Config    `yaml:"turn"`
	STT    STTConfig      `yaml:"stt"`
	LLM    LLMConfig      `yaml:"llm"`
	Reply  reply.Config   `yaml:"reply"`
	TTS    TTSConfig      `yaml:"tts"`
	Speech SpeechConfig   `yaml:"speech"`
	Device device.Config  `yaml:"device"`
	Notify notify.Config  `yaml:"notify"`
	Web    web.Config     `yaml:"web"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// WakeConfig selects and configures the wake detector.
type WakeConfig struct {
	// Backend is one of http, transcript or energy.
	Backend string          `yaml:"backend"`
	Phrases []string        `yaml:"phrases"`
	HTTP    wake.HTTPConfig `yaml:"http"`
}

// STTConfig configures the speech recognizer.
type STTConfig struct {
	// Backend is whisper (a whisper.cpp server) or google.
	Backend         string        `yaml:"backend"`
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key,omitempty"`
	CredentialsFile string        `yaml:"credentials_file,omitempty"`
	Language        string        `yaml:"language"`
	Model           string        `yaml:"model"`
	Temperature     float64       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// EndpointConfig is one LLM endpoint.
type EndpointConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model"`
}

// LLMConfig configures the inference provider behind the reply generator.
// The chain backend tries OpenAI-compatible first and falls back to Gemini.
type LLMConfig struct {
	Backend    string         `yaml:"backend"`
	OpenAI     EndpointConfig `yaml:"openai"`
	Gemini     EndpointConfig `yaml:"gemini"`
	Timeout    time.Duration  `yaml:"timeout"`
	MaxRetries int            `yaml:"max_retries"`
}

// TTSConfig configures speech synthesis for the tts speech backend.
type TTSConfig struct {
	Backend         string        `yaml:"backend"`
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key,omitempty"`
	CredentialsFile string        `yaml:"credentials_file,omitempty"`
	Voice           string        `yaml:"voice"`
	Model           string        `yaml:"model"`
	Language        string        `yaml:"language"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// SpeechConfig selects how replies are voiced.
type SpeechConfig struct {
	// Backend is command (external program) or tts (synthesis + player).
	Backend string               `yaml:"backend"`
	Command speech.CommandConfig `yaml:"command"`

	// SinkPath receives the synthesized WAV of the last reply (tts backend).
	SinkPath string `yaml:"sink_path"`

	// Player is the argv of the audio player; empty uses aplay.
	Player       []string      `yaml:"player"`
	PlayerDevice string        `yaml:"player_device"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a configuration that runs against local sidecars
// (openWakeWord, whisper.cpp, llama.cpp) with the serial eye board.
func DefaultConfig() *Config {
	return &Config{
		Log:   LogConfig{Level: "info"},
		Audio: audioio.DefaultConfig(),
		Wake: WakeConfig{
			Backend: WakeHTTP,
			Phrases: []string{wake.DefaultPhrase},
			HTTP:    wake.DefaultHTTPConfig(),
		},
		VAD:  vad.DefaultParams(),
		Turn: turn.DefaultConfig(),
		STT: STTConfig{
			Backend:    STTWhisper,
			BaseURL:    "http://127.0.0.1:8080",
			Language:   "nl",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		LLM: LLMConfig{
			Backend: LLMOpenAI,
			OpenAI: EndpointConfig{
				BaseURL: "http://127.0.0.1:8081/v1",
				Model:   "local",
			},
			Gemini: EndpointConfig{
				Model: "gemini-2.0-flash",
			},
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
		Reply: reply.DefaultConfig(),
		TTS: TTSConfig{
			Backend:    TTSOpenAI,
			Voice:      "alloy",
			Language:   "nl-NL",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		Speech: SpeechConfig{
			Backend:  SpeechCommand,
			Command:  speech.DefaultCommandConfig(),
			SinkPath: "/tmp/robo_say.wav",
			Timeout:  speech.DefaultTimeout,
		},
		Device: device.DefaultConfig(),
		Notify: notify.DefaultConfig(),
		Web:    web.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Decode(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Decode merges YAML into c.
func (c *Config) Decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// Resolve loads .env files, the YAML file and environment overrides, then
// validates the result.
func Resolve(path string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.LoadEnvConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// YAML renders the configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	out.STT.APIKey = mask(out.STT.APIKey)
	out.LLM.OpenAI.APIKey = mask(out.LLM.OpenAI.APIKey)
	out.LLM.Gemini.APIKey = mask(out.LLM.Gemini.APIKey)
	out.TTS.APIKey = mask(out.TTS.APIKey)
	out.Notify.MQTT.Password = mask(out.Notify.MQTT.Password)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func fieldErr(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Field: field, Message: err.Error()}
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	add := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	errs = append(errs,
		fieldErr("audio", c.Audio.Validate()),
		fieldErr("vad", c.VAD.Validate()),
		fieldErr("turn", c.Turn.Validate()),
	)
	if c.VAD.SampleRate != audioio.ModelSampleRate {
		add("vad.sample_rate", "must be %d, got %d", audioio.ModelSampleRate, c.VAD.SampleRate)
	}

	switch c.Wake.Backend {
	case WakeHTTP:
		if c.Wake.HTTP.URL == "" {
			add("wake.http.url", "required for the http wake backend")
		}
		if c.Wake.HTTP.Threshold <= 0 || c.Wake.HTTP.Threshold > 1 {
			add("wake.http.threshold", "must be in (0, 1], got %v", c.Wake.HTTP.Threshold)
		}
	case WakeTranscript:
		if len(c.Wake.Phrases) == 0 {
			add("wake.phrases", "at least one phrase required for the transcript wake backend")
		}
	case WakeEnergy:
	default:
		add("wake.backend", "unknown backend %q", c.Wake.Backend)
	}

	switch c.STT.Backend {
	case STTWhisper:
		if c.STT.BaseURL == "" {
			add("stt.base_url", "required for whisper")
		}
	case STTGoogle:
	default:
		add("stt.backend", "unknown backend %q", c.STT.Backend)
	}

	switch c.LLM.Backend {
	case LLMOpenAI:
		if c.LLM.OpenAI.BaseURL == "" {
			add("llm.openai.base_url", "required for the openai backend")
		}
	case LLMGemini:
		if c.LLM.Gemini.APIKey == "" {
			add("llm.gemini.api_key", "GEMINI_API_KEY or GOOGLE_API_KEY is required for gemini")
		}
	case LLMChain:
		if c.LLM.OpenAI.BaseURL == "" && c.LLM.Gemini.APIKey == "" {
			add("llm", "chain needs an openai base_url or a gemini api_key")
		}
	default:
		add("llm.backend", "unknown backend %q", c.LLM.Backend)
	}
	if c.Reply.MaxTokens <= 0 {
		add("reply.max_tokens", "must be positive, got %d", c.Reply.MaxTokens)
	}

	switch c.Speech.Backend {
	case SpeechCommand:
		if c.Speech.Command.Command == "" {
			add("speech.command.command", "required for the command speech backend")
		}
	case SpeechTTS:
		switch c.TTS.Backend {
		case TTSOpenAI:
			if c.TTS.APIKey == "" && c.TTS.BaseURL == "" {
				add("tts.api_key", "OPENAI_API_KEY environment variable is required for OpenAI TTS")
			}
		case TTSElevenLabs:
			if c.TTS.APIKey == "" {
				add("tts.api_key", "ELEVENLABS_API_KEY environment variable is required for ElevenLabs TTS")
			}
		case TTSGoogle:
		default:
			add("tts.backend", "unknown backend %q", c.TTS.Backend)
		}
	default:
		add("speech.backend", "unknown backend %q", c.Speech.Backend)
	}

	switch c.Device.Backend {
	case device.BackendSerial:
		if c.Device.Serial.Port == "" {
			add("device.serial.port", "required for the serial device backend")
		}
	case device.BackendHTTP:
		if c.Device.HTTP.BaseURL == "" {
			add("device.http.base_url", "required for the http device backend")
		}
	case device.BackendMock, device.BackendNone, "":
	default:
		add("device.backend", "unknown backend %q", c.Device.Backend)
	}

	if c.Notify.MQTT.Enabled {
		if c.Notify.MQTT.Broker == "" {
			add("notify.mqtt.broker", "required when mqtt is enabled")
		}
		if c.Notify.MQTT.QoS > 2 {
			add("notify.mqtt.qos", "must be 0, 1 or 2, got %d", c.Notify.MQTT.QoS)
		}
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		add("web.addr", "required when the dashboard is enabled")
	}

	return errors.Join(errs...)
}
