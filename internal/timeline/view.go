package timeline

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
)

// LocalIDPrefix marks optimistic entries. Server ids never carry it.
const LocalIDPrefix = "temp_"

const DefaultMatchWindow = time.Minute

func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

type Options struct {
	// MatchWindow bounds the distance between an optimistic entry and the
	// server createdAt it may be reconciled with.
	MatchWindow time.Duration
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MatchWindow <= 0 {
		o.MatchWindow = DefaultMatchWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// View is the local, ordered message list of one open conversation. Entries
// are ordered by createdAt ascending and unique by id.
type View struct {
	ConversationID string

	mu      sync.RWMutex
	entries []*entity.Message
	ids     map[string]struct{}
	opts    Options
}

func NewView(conversationID string, opts Options) *View {
	return &View{
		ConversationID: conversationID,
		ids:            make(map[string]struct{}),
		opts:           opts.withDefaults(),
	}
}

// AddOptimistic appends a placeholder for a message the local user just sent.
func (v *View) AddOptimistic(localID, content, senderID string) *entity.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.ids[localID]; ok {
		return v.entries[v.indexOf(localID)].Clone()
	}
	msg := &entity.Message{
		ID:             localID,
		ConversationID: v.ConversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           entity.MessageTypeText,
		Status:         entity.MessageActive,
		CreatedAt:      v.opts.Now(),
	}
	v.entries = append(v.entries, msg)
	v.ids[localID] = struct{}{}
	return msg.Clone()
}

// Reconcile merges a server message. A pending placeholder from the same
// sender with the same content inside the match window is replaced in place;
// otherwise a new id is inserted by createdAt and a known id has its flags
// merged. It reports whether the list changed.
func (v *View) Reconcile(server *entity.Message) bool {
	if server == nil || server.ID == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.ids[server.ID]; ok {
		return mergeFlags(v.entries[v.indexOf(server.ID)], server)
	}

	if i := v.matchPlaceholder(server); i >= 0 {
		v.replaceAt(i, server)
		return true
	}

	v.insertSorted(server.Clone())
	return true
}

// Confirm settles the placeholder named by localID with the acknowledged
// server message. A placeholder already replaced by the broadcast is a no-op
// apart from merging flags.
func (v *View) Confirm(localID string, server *entity.Message) bool {
	if server == nil || server.ID == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	_, hasLocal := v.ids[localID]
	_, hasServer := v.ids[server.ID]
	switch {
	case hasLocal && hasServer:
		v.removeAt(v.indexOf(localID))
		mergeFlags(v.entries[v.indexOf(server.ID)], server)
		return true
	case hasLocal:
		v.replaceAt(v.indexOf(localID), server)
		return true
	case hasServer:
		return mergeFlags(v.entries[v.indexOf(server.ID)], server)
	default:
		v.insertSorted(server.Clone())
		return true
	}
}

// Discard drops a placeholder whose send was rejected or ignored.
func (v *View) Discard(localID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.ids[localID]; !ok || !IsLocalID(localID) {
		return false
	}
	v.removeAt(v.indexOf(localID))
	return true
}

// ApplyMutation merges a remote lifecycle event. Unknown ids are ignored and
// applying the same mutation twice leaves the view unchanged.
func (v *View) ApplyMutation(m Mutation) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.ids[m.MessageID]; !ok {
		return false
	}
	msg := v.entries[v.indexOf(m.MessageID)]

	switch m.Kind {
	case MutationRecall:
		if msg.Status.Terminal() {
			return false
		}
		at := m.At
		msg.Status = entity.MessageRecalled
		msg.RecallAt = &at
		return true
	case MutationDeleteForAll:
		if msg.Status.Terminal() {
			return false
		}
		at := m.At
		msg.Status = entity.MessageDeletedForAll
		msg.DeletedForAllAt = &at
		msg.DeletedForAllBy = m.UserID
		return true
	case MutationDeleteForUser:
		return addUnique(&msg.DeletedBy, m.UserID)
	case MutationSeen:
		return addUnique(&msg.SeenBy, m.UserID)
	}
	return false
}

// Messages returns a copy of the ordered entries.
func (v *View) Messages() []*entity.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]*entity.Message, len(v.entries))
	for i, msg := range v.entries {
		out[i] = msg.Clone()
	}
	return out
}

func (v *View) Get(id string) (*entity.Message, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if _, ok := v.ids[id]; !ok {
		return nil, false
	}
	return v.entries[v.indexOf(id)].Clone(), true
}

func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

func (v *View) indexOf(id string) int {
	for i, msg := range v.entries {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

// matchPlaceholder returns the first placeholder the server message settles.
func (v *View) matchPlaceholder(server *entity.Message) int {
	for i, msg := range v.entries {
		if !IsLocalID(msg.ID) || msg.SenderID != server.SenderID || msg.Content != server.Content {
			continue
		}
		diff := server.CreatedAt.Sub(msg.CreatedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff <= v.opts.MatchWindow {
			return i
		}
	}
	return -1
}

func (v *View) replaceAt(i int, server *entity.Message) {
	delete(v.ids, v.entries[i].ID)
	v.entries[i] = server.Clone()
	v.ids[server.ID] = struct{}{}
}

func (v *View) removeAt(i int) {
	delete(v.ids, v.entries[i].ID)
	v.entries = slices.Delete(v.entries, i, i+1)
}

// insertSorted places msg after every entry created at or before it, so equal
// timestamps keep arrival order.
func (v *View) insertSorted(msg *entity.Message) {
	i := len(v.entries)
	for i > 0 && v.entries[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}
	v.entries = slices.Insert(v.entries, i, msg)
	v.ids[msg.ID] = struct{}{}
}

// mergeFlags folds a newer server copy into a known entry. Terminal states and
// the per-user sets only ever grow.
func mergeFlags(dst, src *entity.Message) bool {
	changed := false
	if !dst.Status.Terminal() && src.Status.Terminal() {
		settled := src.Clone()
		dst.Status = settled.Status
		dst.RecallAt = settled.RecallAt
		dst.DeletedForAllAt = settled.DeletedForAllAt
		dst.DeletedForAllBy = settled.DeletedForAllBy
		changed = true
	}
	for _, id := range src.DeletedBy {
		changed = addUnique(&dst.DeletedBy, id) || changed
	}
	for _, id := range src.SeenBy {
		changed = addUnique(&dst.SeenBy, id) || changed
	}
	return changed
}

func addUnique(set *[]string, id string) bool {
	if id == "" || slices.Contains(*set, id) {
		return false
	}
	*set = append(*set, id)
	return true
}
