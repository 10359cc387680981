package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/mortgage-ai-platform/internal/events"
)

const replyGuardProvider = "chatwoot_reply"

// ReplyGuard makes outbound posts at-most-once per token. A token is claimed
// before posting and released if the post fails, so a redelivered job can
// try again but a duplicate delivery never double-posts.
type ReplyGuard struct {
	store events.Store
}

// NewReplyGuard wraps a processed-events store. A nil store disables the
// guard.
func NewReplyGuard(store events.Store) *ReplyGuard {
	return &ReplyGuard{store: store}
}

// ReplyToken identifies the reply to one inbound message.
func ReplyToken(conversationID, messageID int64) string {
	return fmt.Sprintf("reply:%d:%d", conversationID, messageID)
}

// GreetingToken identifies the greeting sent when a lead is linked.
func GreetingToken(conversationID int64, leadID string) string {
	return fmt.Sprintf("greeting:%d:%s", conversationID, leadID)
}

// Claim reports whether the caller may post for token.
func (g *ReplyGuard) Claim(ctx context.Context, token string) (bool, error) {
	if g == nil || g.store == nil {
		return true, nil
	}
	return g.store.MarkProcessed(ctx, replyGuardProvider, token)
}

// Release gives a claim back after a failed post.
func (g *ReplyGuard) Release(ctx context.Context, token string) error {
	if g == nil || g.store == nil {
		return nil
	}
	return g.store.Forget(ctx, replyGuardProvider, token)
}
