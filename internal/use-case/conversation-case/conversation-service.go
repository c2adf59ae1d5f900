package conversation_service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quocdatk18/appchat-sub000/internal/entity"
	app_error "github.com/quocdatk18/appchat-sub000/internal/errors"
	conversation_repo "github.com/quocdatk18/appchat-sub000/internal/repo/conversation"
	user_repo "github.com/quocdatk18/appchat-sub000/internal/repo/user"
)

const minGroupMembers = 3

type Options struct {
	// MemberPreview bounds how many member profiles a group summary carries.
	MemberPreview int
	Now           func() time.Time
}

type ConversationService struct {
	ConversationRepo conversation_repo.ConversationRepoContract
	UserRepo         user_repo.UserRepoContract
	opts             Options
}

func NewConversationService(conversations conversation_repo.ConversationRepoContract, users user_repo.UserRepoContract, opts Options) ConversationServiceContract {
	if opts.MemberPreview <= 0 {
		opts.MemberPreview = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ConversationService{
		ConversationRepo: conversations,
		UserRepo:         users,
		opts:             opts,
	}
}

// IsConversationAdmin is the only admin check used for authorization.
func IsConversationAdmin(conv *entity.Conversation, userID string) bool {
	return conv != nil && conv.IsAdmin(userID)
}

func (s *ConversationService) now() time.Time {
	return s.opts.Now().UTC().Truncate(time.Millisecond)
}

func (s *ConversationService) ResolveOrCreateDirect(ctx context.Context, userA, userB string) (*entity.Conversation, *app_error.AppError) {
	if userA == "" || userB == "" {
		return nil, app_error.Validation("both participants are required", "members")
	}
	if userA == userB {
		return nil, app_error.Validation("cannot start a conversation with yourself", "members")
	}

	pairKey := entity.DirectPairKey(userA, userB)
	existing, err := s.ConversationRepo.FindDirect(ctx, pairKey)
	if err == nil {
		return s.reopen(ctx, userA, existing)
	}
	if !err.Has(app_error.KindNotFound) {
		return nil, err
	}

	now := s.now()
	conv := &entity.Conversation{
		ID:        uuid.NewString(),
		IsGroup:   false,
		Members:   []string{userA, userB},
		CreatedBy: userA,
		PairKey:   pairKey,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.ConversationRepo.Insert(ctx, conv); err != nil {
		if !err.Has(app_error.KindConflict) {
			return nil, err
		}
		// lost the race for this pair, use the winner's row
		log.Debug().Str("pairKey", pairKey).Msg("direct conversation created concurrently, re-reading")
		winner, err := s.ConversationRepo.FindDirect(ctx, pairKey)
		if err != nil {
			return nil, err
		}
		return s.reopen(ctx, userA, winner)
	}

	log.Info().Str("conversationID", conv.ID).Str("pairKey", pairKey).Msg("direct conversation created")
	return conv, nil
}

// reopen un-hides an existing direct conversation for the caller.
func (s *ConversationService) reopen(ctx context.Context, userID string, conv *entity.Conversation) (*entity.Conversation, *app_error.AppError) {
	if err := s.ConversationRepo.RestoreForUser(ctx, userID, conv.ID); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) CreateGroup(ctx context.Context, creatorID string, memberIDs []string, name string) (*entity.Conversation, *app_error.AppError) {
	if creatorID == "" {
		return nil, app_error.Validation("creator is required", "creator")
	}

	members := dedupeMembers(creatorID, memberIDs)
	if len(members) < minGroupMembers {
		return nil, app_error.Validation("a group needs at least 3 distinct members", "members")
	}

	now := s.now()
	conv := &entity.Conversation{
		ID:        uuid.NewString(),
		IsGroup:   true,
		Name:      strings.TrimSpace(name),
		Members:   members,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ConversationRepo.Insert(ctx, conv); err != nil {
		return nil, err
	}

	log.Info().Str("conversationID", conv.ID).Int("members", len(members)).Msg("group conversation created")
	return conv, nil
}

// dedupeMembers keeps the creator first and drops blanks and repeats.
func dedupeMembers(creatorID string, memberIDs []string) []string {
	seen := map[string]struct{}{creatorID: {}}
	members := []string{creatorID}
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}

func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]entity.ConversationSummary, *app_error.AppError) {
	summaries, _, err := s.visibleSummaries(ctx, userID)
	return summaries, err
}

func (s *ConversationService) Search(ctx context.Context, userID, query string) ([]entity.ConversationSummary, *app_error.AppError) {
	summaries, users, err := s.visibleSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	usernames := make(map[string]string, len(users))
	for id, u := range users {
		usernames[id] = u.Username
	}

	matches := make([]entity.ConversationSummary, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Matches(query, usernames) {
			matches = append(matches, summary)
		}
	}
	return matches, nil
}

func (s *ConversationService) visibleSummaries(ctx context.Context, userID string) ([]entity.ConversationSummary, map[string]*entity.User, *app_error.AppError) {
	convs, err := s.ConversationRepo.FindByMember(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	overlays, err := s.ConversationRepo.FindOverlays(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	visible := make([]*entity.Conversation, 0, len(convs))
	var profileIDs []string
	for _, conv := range convs {
		if o, ok := overlays[conv.ID]; ok && o.IsDeleted {
			continue
		}
		visible = append(visible, conv)
		profileIDs = append(profileIDs, conv.Members...)
	}

	users, err := s.UserRepo.FindByIDs(ctx, profileIDs)
	if err != nil {
		return nil, nil, err
	}

	summaries := make([]entity.ConversationSummary, 0, len(visible))
	for _, conv := range visible {
		overlay, ok := overlays[conv.ID]
		if !ok {
			overlay = &entity.UserConversation{UserID: userID, ConversationID: conv.ID}
		}
		summaries = append(summaries, s.summarize(conv, overlay, userID, users))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Conversation.UpdatedAt.After(summaries[j].Conversation.UpdatedAt)
	})
	return summaries, users, nil
}

func (s *ConversationService) summarize(conv *entity.Conversation, overlay *entity.UserConversation, viewerID string, users map[string]*entity.User) entity.ConversationSummary {
	summary := entity.ConversationSummary{Conversation: conv, Overlay: overlay}
	if !conv.IsGroup {
		peerID := conv.Peer(viewerID)
		profile := entity.PublicProfile{ID: peerID}
		if u, ok := users[peerID]; ok {
			profile = u.Profile()
		}
		summary.Peer = &profile
		return summary
	}

	for _, id := range conv.OtherMembers(viewerID) {
		if len(summary.MemberPreview) >= s.opts.MemberPreview {
			break
		}
		profile := entity.PublicProfile{ID: id}
		if u, ok := users[id]; ok {
			profile = u.Profile()
		}
		summary.MemberPreview = append(summary.MemberPreview, profile)
	}
	return summary
}

func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*entity.ConversationSummary, *app_error.AppError) {
	conv, err := s.RequireMember(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	overlay, err := s.ConversationRepo.FindOverlay(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	users, err := s.UserRepo.FindByIDs(ctx, conv.Members)
	if err != nil {
		return nil, err
	}

	summary := s.summarize(conv, overlay, userID, users)
	return &summary, nil
}

func (s *ConversationService) RequireMember(ctx context.Context, userID, conversationID string) (*entity.Conversation, *app_error.AppError) {
	if conversationID == "" {
		return nil, app_error.Validation("conversation id is required", "conversation-id")
	}
	conv, err := s.ConversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsMember(userID) {
		return nil, app_error.Permission("you are not a member of this conversation", "conversation-id")
	}
	return conv, nil
}

func (s *ConversationService) Overlay(ctx context.Context, userID, conversationID string) (*entity.UserConversation, *app_error.AppError) {
	return s.ConversationRepo.FindOverlay(ctx, userID, conversationID)
}

func (s *ConversationService) UpdateLastMessage(ctx context.Context, conversationID, content string, msgType entity.MessageType, senderID string) *app_error.AppError {
	return s.ConversationRepo.UpdateLastMessage(ctx, conversationID, content, msgType, senderID, s.now())
}

func (s *ConversationService) IncrementUnreadCount(ctx context.Context, conversationID, exceptUserID string) *app_error.AppError {
	conv, err := s.ConversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	recipients := conv.OtherMembers(exceptUserID)
	if len(recipients) == 0 {
		return nil
	}
	return s.ConversationRepo.IncrementUnread(ctx, conversationID, recipients)
}

func (s *ConversationService) MarkRead(ctx context.Context, userID, conversationID string) *app_error.AppError {
	if _, err := s.RequireMember(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.ConversationRepo.MarkRead(ctx, userID, conversationID, s.now())
}

func (s *ConversationService) HideForUser(ctx context.Context, userID, conversationID string) *app_error.AppError {
	if _, err := s.RequireMember(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.ConversationRepo.HideForUser(ctx, userID, conversationID, s.now()); err != nil {
		return err
	}

	log.Info().Str("conversationID", conversationID).Str("userID", userID).Msg("conversation hidden for user")
	return nil
}

func (s *ConversationService) NextMessageSeq(ctx context.Context, conversationID string) (int64, *app_error.AppError) {
	return s.ConversationRepo.NextSeq(ctx, conversationID)
}

func (s *ConversationService) RestoreForUser(ctx context.Context, userID, conversationID string) *app_error.AppError {
	return s.ConversationRepo.RestoreForUser(ctx, userID, conversationID)
}

func (s *ConversationService) SetSettings(ctx context.Context, userID, conversationID string, pinned, muted *bool) (*entity.UserConversation, *app_error.AppError) {
	if pinned == nil && muted == nil {
		return nil, app_error.Validation("nothing to update", "settings")
	}
	if _, err := s.RequireMember(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.ConversationRepo.SetOverlayFlags(ctx, userID, conversationID, pinned, muted)
}

func (s *ConversationService) AddMembers(ctx context.Context, requesterID, conversationID string, memberIDs []string) (*entity.Conversation, *app_error.AppError) {
	conv, err := s.requireGroupMember(ctx, requesterID, conversationID)
	if err != nil {
		return nil, err
	}

	var toAdd []string
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id != "" && !conv.IsMember(id) {
			toAdd = append(toAdd, id)
		}
	}
	if len(toAdd) == 0 {
		return conv, nil
	}

	return s.ConversationRepo.AddMembers(ctx, conversationID, toAdd, s.now())
}

func (s *ConversationService) RemoveMembers(ctx context.Context, requesterID, conversationID string, memberIDs []string) (*entity.Conversation, *app_error.AppError) {
	conv, err := s.requireGroupMember(ctx, requesterID, conversationID)
	if err != nil {
		return nil, err
	}

	var toRemove []string
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" || !conv.IsMember(id) {
			continue
		}
		if id == conv.CreatedBy {
			return nil, app_error.Permission("the group creator cannot be removed", "members")
		}
		if id != requesterID && !IsConversationAdmin(conv, requesterID) {
			return nil, app_error.Permission("only the group admin can remove other members", "members")
		}
		toRemove = append(toRemove, id)
	}
	if len(toRemove) == 0 {
		return conv, nil
	}

	return s.ConversationRepo.RemoveMembers(ctx, conversationID, toRemove, s.now())
}

func (s *ConversationService) requireGroupMember(ctx context.Context, userID, conversationID string) (*entity.Conversation, *app_error.AppError) {
	conv, err := s.RequireMember(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, app_error.Validation("members can only be changed on group conversations", "conversation-id")
	}
	return conv, nil
}
