package stt

import (
	"strings"

	"golang.org/x/text/language"
)

// WhisperLanguage maps a recognizer language tag such as "en-US" to the
// base code whisper expects. Unparseable tags fall back to "auto".
func WhisperLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, "auto") {
		return "auto"
	}

	t, err := language.Parse(tag)
	if err != nil {
		return "auto"
	}
	base, conf := t.Base()
	if conf == language.No {
		return "auto"
	}
	return base.String()
}
