package session

import (
	"os"
	"strings"

	"github.com/teslashibe/go-robo/internal/config"
	"github.com/teslashibe/go-robo/pkg/device"
)

func loadDotEnv(paths ...string) error {
	return config.LoadDotEnv(paths...)
}

// LoadEnvConfig applies environment overrides. API keys only fill empty
// fields; ROBO_* variables always win over the file.
func (c *Config) LoadEnvConfig() {
	c.Log.Level = config.String("ROBO_LOG_LEVEL", c.Log.Level)
	c.Log.JSON = config.Bool("ROBO_LOG_JSON", c.Log.JSON)

	openAIKey := os.Getenv("OPENAI_API_KEY")
	geminiKey := config.String("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))
	credentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")

	fill(&c.LLM.OpenAI.APIKey, openAIKey)
	fill(&c.LLM.Gemini.APIKey, geminiKey)
	c.LLM.OpenAI.BaseURL = config.String("ROBO_LLM_URL", c.LLM.OpenAI.BaseURL)
	c.LLM.OpenAI.Model = config.String("ROBO_LLM_MODEL", c.LLM.OpenAI.Model)
	c.LLM.Backend = config.String("ROBO_LLM_BACKEND", c.LLM.Backend)

	c.STT.BaseURL = config.String("ROBO_STT_URL", c.STT.BaseURL)
	c.STT.Backend = config.String("ROBO_STT_BACKEND", c.STT.Backend)
	c.STT.Language = config.String("ROBO_LANGUAGE", c.STT.Language)
	if c.STT.Backend == STTGoogle {
		fill(&c.STT.CredentialsFile, credentials)
		fill(&c.STT.APIKey, os.Getenv("GOOGLE_API_KEY"))
	}

	c.TTS.Backend = config.String("ROBO_TTS_BACKEND", c.TTS.Backend)
	switch c.TTS.Backend {
	case TTSOpenAI:
		fill(&c.TTS.APIKey, openAIKey)
	case TTSElevenLabs:
		fill(&c.TTS.APIKey, os.Getenv("ELEVENLABS_API_KEY"))
		c.TTS.Voice = config.String("ELEVENLABS_VOICE_ID", c.TTS.Voice)
	case TTSGoogle:
		fill(&c.TTS.CredentialsFile, credentials)
		fill(&c.TTS.APIKey, os.Getenv("GOOGLE_API_KEY"))
	}
	c.Speech.Backend = config.String("ROBO_SPEECH_BACKEND", c.Speech.Backend)
	c.Speech.Command.Command = config.String("ROBO_SPEAK_COMMAND", c.Speech.Command.Command)
	c.Speech.Command.Voice = config.String("ROBO_SPEAK_VOICE", c.Speech.Command.Voice)

	c.Wake.HTTP.URL = config.String("ROBO_WAKE_URL", c.Wake.HTTP.URL)
	c.Wake.HTTP.Threshold = config.Float("ROBO_WAKE_THRESHOLD", c.Wake.HTTP.Threshold)
	if phrases := config.String("ROBO_WAKE_PHRASES", ""); phrases != "" {
		c.Wake.Phrases = splitList(phrases)
	}

	c.Audio.Device = config.String("ROBO_AUDIO_DEVICE", c.Audio.Device)

	if b := config.String("ROBO_DEVICE", ""); b != "" {
		c.Device.Backend = device.Backend(b)
	}
	c.Device.Serial.Port = config.String("ROBO_SERIAL_PORT", c.Device.Serial.Port)
	c.Device.HTTP.BaseURL = config.String("ROBO_DEVICE_URL", c.Device.HTTP.BaseURL)

	if broker := config.String("ROBO_MQTT_BROKER", ""); broker != "" {
		c.Notify.MQTT.Broker = broker
		c.Notify.MQTT.Enabled = true
	}
	c.Notify.MQTT.Username = config.String("ROBO_MQTT_USERNAME", c.Notify.MQTT.Username)
	c.Notify.MQTT.Password = config.String("ROBO_MQTT_PASSWORD", c.Notify.MQTT.Password)
	c.Notify.WebSocket.URL = config.String("ROBO_NOTIFY_WS", c.Notify.WebSocket.URL)

	c.Reply.PersonName = config.String("ROBO_PERSON_NAME", c.Reply.PersonName)
	c.Reply.BotName = config.String("ROBO_BOT_NAME", c.Reply.BotName)

	c.Web.Addr = config.String("ROBO_WEB_ADDR", c.Web.Addr)
	c.Web.Enabled = config.Bool("ROBO_WEB", c.Web.Enabled)

	c.Turn.IdleInterval = config.Duration("ROBO_IDLE_INTERVAL", c.Turn.IdleInterval)
	c.Turn.CaptureDelay = config.Duration("ROBO_CAPTURE_DELAY", c.Turn.CaptureDelay)
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = strings.TrimSpace(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
