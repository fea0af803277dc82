package telegram

import (
	"time"

	"github.com/gotd/td/tg"
)

// AttachmentKind tags the kind of a file-backed attachment.
type AttachmentKind string

const (
	AttachPhoto     AttachmentKind = "photo"
	AttachVideo     AttachmentKind = "video"
	AttachAudio     AttachmentKind = "audio"
	AttachVoice     AttachmentKind = "voice"
	AttachDocument  AttachmentKind = "document"
	AttachSticker   AttachmentKind = "sticker"
	AttachAnimation AttachmentKind = "animation"
)

// Attachment describes a downloadable file attached to a message, together
// with the references needed to fetch or re-send it.
type Attachment struct {
	Kind     AttachmentKind
	Size     int64
	MimeType string
	FileName string
	Duration float64

	// photo location
	PhotoID         int64
	PhotoAccessHash int64
	PhotoFileRef    []byte
	PhotoThumbSize  string

	// document location
	DocID         int64
	DocAccessHash int64
	DocFileRef    []byte
}

// IsPhoto reports whether the attachment is backed by a photo location
// rather than a document location.
func (a *Attachment) IsPhoto() bool {
	return a.Kind == AttachPhoto
}

// Poll is the structured payload of a poll message.
type Poll struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
	Closed   bool     `json:"closed"`
}

// Geo is the structured payload of a location message.
type Geo struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
	Live bool    `json:"live"`
}

// Contact is the structured payload of a shared contact.
type Contact struct {
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

// Venue is the structured payload of a venue message.
type Venue struct {
	Title   string  `json:"title"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Long    float64 `json:"long"`
}

// WebPage is the structured payload of a link preview. When the preview
// carries an image, the photo location fields are set.
type WebPage struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	HasPhoto        bool   `json:"-"`
	PhotoID         int64  `json:"-"`
	PhotoAccessHash int64  `json:"-"`
	PhotoFileRef    []byte `json:"-"`
	PhotoThumbSize  string `json:"-"`
}

// Message is a parsed telegram message. At most one of Attachment and the
// structured payload pointers is set.
type Message struct {
	ID        int
	ChannelID int64
	Text      string
	Entities  []tg.MessageEntityClass
	Date      time.Time
	Out       bool
	SenderID  int64

	Attachment *Attachment
	Poll       *Poll
	Geo        *Geo
	Contact    *Contact
	Venue      *Venue
	WebPage    *WebPage
}

// Channel represents a resolved telegram channel.
type Channel struct {
	ID         int64
	AccessHash int64
	Username   string
	Title      string
}

// InputPeer returns the peer reference used in API calls.
func (c *Channel) InputPeer() tg.InputPeerClass {
	return &tg.InputPeerChannel{
		ChannelID:  c.ID,
		AccessHash: c.AccessHash,
	}
}
