package speech

import (
	"strings"
	"time"
)

// Neural voices per synthesis locale.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
var localeVoices = map[string]string{
	"en-US": "en-US-AvaNeural",
	"hi-IN": "hi-IN-SwaraNeural",
	"zh-CN": "zh-CN-XiaoxiaoNeural",
}

// DefaultVoice is used for locales with no entry in the voice table.
const DefaultVoice = "en-US-AvaNeural"

// VoiceFor returns the Azure voice for a BCP 47 locale.
func VoiceFor(locale string) string {
	if v, ok := localeVoices[locale]; ok {
		return v
	}
	return DefaultVoice
}

// Audio format returned by Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default format.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Recognition defaults for the whisper backed Ear.
const (
	DefaultChunkDuration = 3 * time.Second
	DefaultSessionLength = 60 * time.Second
)

// translateLanguage maps a locale to the language code the Google
// Translate voice accepts: "hi-IN" -> "hi", "zh-CN" stays regional.
func translateLanguage(locale string) string {
	if strings.HasPrefix(locale, "zh") {
		return "zh-CN"
	}
	if i := strings.IndexByte(locale, '-'); i > 0 {
		return locale[:i]
	}
	if locale == "" {
		return "en"
	}
	return locale
}
