package bot

import (
	"context"
	"log"
	"strings"
)

// Transcribe runs speech-to-text for a voice message. Failures are reported
// through notify and come back as an empty string; they never reach the
// affection pipeline.
func Transcribe(ctx context.Context, t Transcriber, audio []byte, filename string, notify func(Notice)) string {
	if t == nil || len(audio) == 0 {
		return ""
	}

	text, err := t.Transcribe(ctx, audio, filename)
	if err != nil {
		log.Printf("Error transcribing %s: %v", filename, err)
		if notify != nil {
			notify(Notice{Level: NoticeError, Text: "Couldn't transcribe that voice message."})
		}
		return ""
	}

	text = strings.TrimSpace(text)
	if text == "" {
		log.Printf("Transcription of %s came back empty", filename)
	}
	return text
}
