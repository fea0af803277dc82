package telegram

import (
	"sort"
	"time"

	"github.com/gotd/td/tg"
)

// extractMessages converts a telegram history response to parsed messages.
func extractMessages(messagesClass tg.MessagesMessagesClass, channel *Channel) []Message {
	var raw []tg.MessageClass

	switch h := messagesClass.(type) {
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	case *tg.MessagesMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	}

	var messages []Message
	for _, msg := range raw {
		if m := parseMessage(msg, channel); m != nil {
			messages = append(messages, *m)
		}
	}
	return messages
}

func sortAscending(messages []Message) {
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ID < messages[j].ID
	})
}

// parseMessage converts a single telegram message to our Message type.
// Service messages and empty stubs yield nil.
func parseMessage(msg tg.MessageClass, channel *Channel) *Message {
	m, ok := msg.(*tg.Message)
	if !ok {
		return nil
	}

	out := &Message{
		ID:        m.ID,
		ChannelID: channel.ID,
		Text:      m.Message,
		Entities:  m.Entities,
		Date:      time.Unix(int64(m.Date), 0),
		Out:       m.Out,
	}

	if m.FromID != nil {
		switch peer := m.FromID.(type) {
		case *tg.PeerUser:
			out.SenderID = peer.UserID
		case *tg.PeerChannel:
			out.SenderID = peer.ChannelID
		}
	}

	parseMedia(out, m.Media)
	return out
}

// parseMedia populates exactly one of the attachment or structured payload
// fields from the raw media descriptor.
func parseMedia(out *Message, media tg.MessageMediaClass) {
	if media == nil {
		return
	}

	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return
		}
		att := &Attachment{
			Kind:            AttachPhoto,
			MimeType:        "image/jpeg",
			PhotoID:         photo.ID,
			PhotoAccessHash: photo.AccessHash,
			PhotoFileRef:    photo.FileReference,
		}
		att.PhotoThumbSize, att.Size = largestPhotoSize(photo.Sizes)
		out.Attachment = att

	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return
		}
		out.Attachment = parseDocument(doc)

	case *tg.MessageMediaPoll:
		poll := &Poll{
			Question: m.Poll.Question.Text,
			Closed:   m.Poll.Closed,
		}
		for _, a := range m.Poll.Answers {
			poll.Answers = append(poll.Answers, a.Text.Text)
		}
		out.Poll = poll

	case *tg.MessageMediaGeo:
		if geo, ok := m.Geo.(*tg.GeoPoint); ok {
			out.Geo = &Geo{Lat: geo.Lat, Long: geo.Long}
		}

	case *tg.MessageMediaGeoLive:
		if geo, ok := m.Geo.(*tg.GeoPoint); ok {
			out.Geo = &Geo{Lat: geo.Lat, Long: geo.Long, Live: true}
		}

	case *tg.MessageMediaContact:
		out.Contact = &Contact{
			Phone:     m.PhoneNumber,
			FirstName: m.FirstName,
			LastName:  m.LastName,
		}

	case *tg.MessageMediaVenue:
		venue := &Venue{
			Title:   m.Title,
			Address: m.Address,
		}
		if geo, ok := m.Geo.(*tg.GeoPoint); ok {
			venue.Lat = geo.Lat
			venue.Long = geo.Long
		}
		out.Venue = venue

	case *tg.MessageMediaWebPage:
		page, ok := m.Webpage.(*tg.WebPage)
		if !ok {
			return
		}
		wp := &WebPage{
			URL:         page.URL,
			Title:       page.Title,
			Description: page.Description,
		}
		if photo, ok := page.Photo.(*tg.Photo); ok {
			wp.HasPhoto = true
			wp.PhotoID = photo.ID
			wp.PhotoAccessHash = photo.AccessHash
			wp.PhotoFileRef = photo.FileReference
			wp.PhotoThumbSize, _ = largestPhotoSize(photo.Sizes)
		}
		out.WebPage = wp
	}
}

// parseDocument classifies a document by its attributes.
func parseDocument(doc *tg.Document) *Attachment {
	att := &Attachment{
		Kind:          AttachDocument,
		Size:          doc.Size,
		MimeType:      doc.MimeType,
		DocID:         doc.ID,
		DocAccessHash: doc.AccessHash,
		DocFileRef:    doc.FileReference,
	}

	var animated, video bool
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeSticker:
			att.Kind = AttachSticker
		case *tg.DocumentAttributeAnimated:
			animated = true
		case *tg.DocumentAttributeAudio:
			att.Duration = float64(a.Duration)
			if a.Voice {
				att.Kind = AttachVoice
			} else {
				att.Kind = AttachAudio
			}
		case *tg.DocumentAttributeVideo:
			att.Duration = a.Duration
			video = true
		case *tg.DocumentAttributeFilename:
			att.FileName = a.FileName
		}
	}

	// sticker and audio attributes win over the video attribute; an
	// animated video is a gif-style animation
	if att.Kind == AttachDocument && video {
		if animated {
			att.Kind = AttachAnimation
		} else {
			att.Kind = AttachVideo
		}
	}

	return att
}

// largestPhotoSize picks the largest available photo size for best quality.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (thumbType string, size int64) {
	var best *tg.PhotoSize
	for _, s := range sizes {
		if sz, ok := s.(*tg.PhotoSize); ok {
			if best == nil || sz.W*sz.H > best.W*best.H {
				best = sz
			}
		}
	}
	if best != nil {
		return best.Type, int64(best.Size)
	}
	for _, s := range sizes {
		switch sz := s.(type) {
		case *tg.PhotoStrippedSize:
			return sz.Type, 0
		case *tg.PhotoCachedSize:
			return sz.Type, 0
		}
	}
	return "", 0
}
