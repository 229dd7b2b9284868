package tts

// ElevenLabsVoices maps friendly preset names to ElevenLabs voice IDs.
// All listed voices speak Dutch through the multilingual models.
var ElevenLabsVoices = map[string]string{
	"charlotte": "XB0fDUnXU5powFXDhCwa",
	"aria":      "9BWtsMINqrJLrRacOk9x",
	"sarah":     "EXAVITQu4vr4xnSDxMaL",
	"lily":      "pFZP5JQG7iQjIQuC4Bku",
	"rachel":    "21m00Tcm4TlvDq8ikWAM",
	"adam":      "pNInz6obpgDQGcFmaJgB",
}

// DefaultElevenLabsVoice is the default voice preset.
const DefaultElevenLabsVoice = "charlotte"

// ResolveElevenLabsVoice returns the voice ID for a preset name,
// or the input unchanged if it's already a voice ID.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}

// GoogleVoices maps preset names to Cloud TTS voice names.
var GoogleVoices = map[string]string{
	"nl-female": "nl-NL-Wavenet-A",
	"nl-male":   "nl-NL-Wavenet-B",
	"en-female": "en-US-Neural2-F",
	"en-male":   "en-US-Neural2-D",
}

// ResolveGoogleVoice returns the voice name for a preset, or the input.
func ResolveGoogleVoice(name string) string {
	if v, ok := GoogleVoices[name]; ok {
		return v
	}
	return name
}
