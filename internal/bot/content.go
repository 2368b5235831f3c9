package bot

import (
	"github.com/mymmrac/telego"
)

// Content labels recognized by the ticket engine. Text messages store their
// raw text; everything else stores a bracketed placeholder like "(photo)".
const (
	LabelText      = "text"
	LabelPhoto     = "photo"
	LabelVideo     = "video"
	LabelVoice     = "voice"
	LabelAudio     = "audio"
	LabelSticker   = "sticker"
	LabelAnimation = "animation"
	LabelDocument  = "document"
	LabelVideoNote = "video_note"
	LabelOther     = "other"
)

// ContentLabel classifies a message into one of the fixed content labels.
// Animation is checked before Document: Telegram attaches both to GIFs.
func ContentLabel(msg *telego.Message) string {
	switch {
	case msg.Text != "":
		return LabelText
	case len(msg.Photo) > 0:
		return LabelPhoto
	case msg.Video != nil:
		return LabelVideo
	case msg.Voice != nil:
		return LabelVoice
	case msg.Audio != nil:
		return LabelAudio
	case msg.Sticker != nil:
		return LabelSticker
	case msg.Animation != nil:
		return LabelAnimation
	case msg.VideoNote != nil:
		return LabelVideoNote
	case msg.Document != nil:
		return LabelDocument
	default:
		return LabelOther
	}
}

// StoredText is what gets persisted for a message: the raw text for text
// messages, a bracketed placeholder otherwise.
func StoredText(msg *telego.Message) string {
	label := ContentLabel(msg)
	if label == LabelText {
		return msg.Text
	}
	return "(" + label + ")"
}

// IsPlaceholder reports whether a stored user_text is one of the bracketed
// content placeholders rather than real text.
func IsPlaceholder(text, label string) bool {
	return text == "("+label+")"
}
