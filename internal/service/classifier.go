package service

import (
	"strings"

	"gowa-trello/internal/model"
	"gowa-trello/internal/transport"
)

// ClassifyMessage maps a raw transport payload to display content and a
// media-type tag. Media without usable text becomes a bracketed placeholder.
func ClassifyMessage(evt *transport.MessageEvent) (content, mediaType string) {
	switch evt.Kind {
	case transport.KindText, transport.KindExtendedText:
		return evt.Text, model.MediaText
	case transport.KindImage:
		return strings.TrimSpace("[Image] " + evt.Caption), model.MediaImage
	case transport.KindVideo:
		return strings.TrimSpace("[Video] " + evt.Caption), model.MediaVideo
	case transport.KindAudio:
		return "[Audio]", model.MediaAudio
	case transport.KindDocument:
		return strings.TrimSpace("[Document] " + evt.FileName), model.MediaDocument
	case transport.KindSticker:
		return "[Sticker]", model.MediaSticker
	default:
		return "[Media/Other]", model.MediaOther
	}
}
