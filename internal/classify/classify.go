// Package classify maps messages to content kinds and applies the
// download policy that gates processing.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/harhitroot/tgmirror/internal/telegram"
)

// Kind is the semantic content kind of a message, enumerated once at
// ingestion and dispatched exhaustively afterwards.
type Kind string

const (
	KindNone      Kind = "none"
	KindText      Kind = "text"
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindAudio     Kind = "audio"
	KindVoice     Kind = "voice"
	KindDocument  Kind = "document"
	KindSticker   Kind = "sticker"
	KindAnimation Kind = "animation"
	KindPoll      Kind = "poll"
	KindGeo       Kind = "geo"
	KindContact   Kind = "contact"
	KindVenue     Kind = "venue"
	KindWebPage   Kind = "webpage"
)

// Structured reports whether the kind carries a structured payload rather
// than transferable bytes.
func (k Kind) Structured() bool {
	switch k {
	case KindPoll, KindGeo, KindContact, KindVenue, KindWebPage:
		return true
	}
	return false
}

// HasContent reports whether the message carries anything worth keeping:
// non-empty text, an attachment, or a structured payload.
func HasContent(m *telegram.Message) bool {
	if m == nil {
		return false
	}
	return strings.TrimSpace(m.Text) != "" ||
		m.Attachment != nil ||
		m.Poll != nil ||
		m.Geo != nil ||
		m.Contact != nil ||
		m.Venue != nil ||
		m.WebPage != nil
}

// Classify derives the content kind. An attachment governs over text, so a
// captioned photo classifies as photo.
func Classify(m *telegram.Message) Kind {
	switch {
	case m == nil:
		return KindNone
	case m.Attachment != nil:
		return attachmentKind(m.Attachment.Kind)
	case m.Poll != nil:
		return KindPoll
	case m.Geo != nil:
		return KindGeo
	case m.Contact != nil:
		return KindContact
	case m.Venue != nil:
		return KindVenue
	case m.WebPage != nil:
		return KindWebPage
	case strings.TrimSpace(m.Text) != "":
		return KindText
	}
	return KindNone
}

func attachmentKind(k telegram.AttachmentKind) Kind {
	switch k {
	case telegram.AttachPhoto:
		return KindPhoto
	case telegram.AttachVideo:
		return KindVideo
	case telegram.AttachAudio:
		return KindAudio
	case telegram.AttachVoice:
		return KindVoice
	case telegram.AttachSticker:
		return KindSticker
	case telegram.AttachAnimation:
		return KindAnimation
	}
	return KindDocument
}

// ShouldProcess decides whether the message enters the pipeline. Plain text
// messages are always kept; anything media-backed is gated by the policy.
func ShouldProcess(m *telegram.Message, p Policy) bool {
	if !HasContent(m) {
		return false
	}

	kind := Classify(m)
	if kind == KindText {
		return true
	}

	ext := ""
	if m.Attachment != nil {
		ext = Extension(m.Attachment)
	}
	return p.Allows(string(kind), ext)
}

// Extension infers the local file extension for an attachment: filename
// hint first, then mime type, then a kind default.
func Extension(att *telegram.Attachment) string {
	if att == nil {
		return ""
	}

	if ext := filepath.Ext(att.FileName); ext != "" {
		return strings.ToLower(strings.TrimPrefix(ext, "."))
	}

	if ext, ok := mimeExtensions[strings.ToLower(att.MimeType)]; ok {
		return ext
	}

	switch att.Kind {
	case telegram.AttachPhoto:
		return "jpeg"
	case telegram.AttachVideo, telegram.AttachAnimation:
		return "mp4"
	case telegram.AttachAudio:
		return "mp3"
	case telegram.AttachVoice:
		return "ogg"
	case telegram.AttachSticker:
		return "webp"
	}
	return "bin"
}

var mimeExtensions = map[string]string{
	"image/jpeg":              "jpeg",
	"image/png":               "png",
	"image/gif":               "gif",
	"image/webp":              "webp",
	"video/mp4":               "mp4",
	"video/webm":              "webm",
	"audio/mpeg":              "mp3",
	"audio/ogg":               "ogg",
	"audio/mp4":               "m4a",
	"application/pdf":         "pdf",
	"application/zip":         "zip",
	"application/x-tgsticker": "tgs",
	"text/plain":              "txt",
}
