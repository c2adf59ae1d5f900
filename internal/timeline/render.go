package timeline

import (
	"slices"
	"time"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
)

const (
	RecalledText      = "This message was recalled"
	DeletedForAllText = "This message was deleted"
)

// Rendered is one row as a viewer sees it. Tombstones carry no content or
// attachment.
type Rendered struct {
	ID        string
	SenderID  string
	Content   string
	Type      entity.MessageType
	MediaURL  string
	Status    entity.MessageStatus
	Tombstone bool
	Pending   bool
	SeenBy    []string
	CreatedAt time.Time
}

// Render filters the view for one viewer: messages the viewer deleted for
// themselves are dropped and terminal messages become tombstones.
func (v *View) Render(viewerID string) []Rendered {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Rendered, 0, len(v.entries))
	for _, msg := range v.entries {
		if msg.HiddenFor(viewerID) {
			continue
		}
		row := Rendered{
			ID:        msg.ID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			Type:      msg.Type,
			MediaURL:  msg.MediaURL,
			Status:    msg.Status,
			Pending:   IsLocalID(msg.ID),
			SeenBy:    slices.Clone(msg.SeenBy),
			CreatedAt: msg.CreatedAt,
		}
		switch msg.Status {
		case entity.MessageRecalled:
			row.Tombstone, row.Content, row.MediaURL = true, RecalledText, ""
		case entity.MessageDeletedForAll:
			row.Tombstone, row.Content, row.MediaURL = true, DeletedForAllText, ""
		}
		out = append(out, row)
	}
	return out
}
