package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"DiaBot/models"
	"DiaBot/pkg/metrics"
	"DiaBot/pkg/services"
	"DiaBot/pkg/session"
	"DiaBot/pkg/store"
	"DiaBot/pkg/transcript"

	"github.com/rs/zerolog/log"
)

const titleTimeLayout = "2006-01-02 15:04:05"

type Options struct {
	NewChatPolicy    NewChatPolicy
	CommitMode       CommitMode
	ResponderTimeout time.Duration
	// ProviderName labels responder failure metrics.
	ProviderName string
}

type Reconciler struct {
	convs     store.ConversationStore
	responder services.Responder
	opts      Options
	now       func() time.Time
}

func NewReconciler(convs store.ConversationStore, responder services.Responder, opts Options) *Reconciler {
	if opts.NewChatPolicy == "" {
		opts.NewChatPolicy = AlwaysCreate
	}
	if opts.CommitMode == "" {
		opts.CommitMode = CommitEager
	}
	return &Reconciler{convs: convs, responder: responder, opts: opts, now: time.Now}
}

// Title names a conversation after its owner and creation time.
func Title(id *Identity, at time.Time) string {
	who := id.Email
	if who == "" {
		who = fmt.Sprintf("user %d", id.UserID)
	}
	return who + " - " + at.Format(titleTimeLayout)
}

// HandleNewChat starts a conversation from messages. The session buffer is
// reset to messages either way; only identified clients get a durable record.
func (r *Reconciler) HandleNewChat(ctx context.Context, id *Identity, st *session.State, messages []Message) (NewChatResult, error) {
	turns := make([]models.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, m.Turn())
	}

	if id == nil {
		st.Reset()
		st.Buffer = turns
		metrics.RecordChatEvent("new_chat", false, "ok")
		return NewChatResult{Created: true}, nil
	}

	if r.opts.NewChatPolicy == ReuseCurrent {
		conv, err := r.current(ctx, id, st)
		if err != nil {
			return NewChatResult{}, err
		}
		if conv != nil {
			st.Buffer = turns
			metrics.RecordChatEvent("new_chat", true, "reused")
			return NewChatResult{Created: false, ConversationID: conv.ID}, nil
		}
	}

	lastMessage := ""
	if n := len(messages); n > 0 {
		lastMessage = messages[n-1].Content
	}
	now := r.now()
	convID, err := r.convs.Create(ctx, id.UserID, Title(id, now), transcript.Serialize(turns), lastMessage, now)
	if err != nil {
		metrics.RecordChatEvent("new_chat", true, "storage_error")
		return NewChatResult{}, fmt.Errorf("%w: create conversation: %w", ErrStorage, err)
	}
	metrics.ConversationsCreatedTotal.Inc()

	st.Reset()
	st.Buffer = turns
	st.Attach(convID)
	log.Debug().Uint("user_id", id.UserID).Uint("conversation_id", convID).Msg("[chat] new chat created")
	metrics.RecordChatEvent("new_chat", true, "created")
	return NewChatResult{Created: true, ConversationID: convID}, nil
}

// HandleQuery records query, asks the responder and records the reply.
//
// In eager mode the user turn is on disk before the responder runs and stays
// there when the responder fails. In deferred mode nothing is written unless
// the responder succeeds.
func (r *Reconciler) HandleQuery(ctx context.Context, id *Identity, st *session.State, query string) (QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return QueryResult{}, fmt.Errorf("%w: missing query", ErrValidation)
	}
	event := func(outcome string) { metrics.RecordChatEvent("query", id != nil, outcome) }

	userTurn := models.UserTurn(query)
	st.AddTurn(userTurn)

	var convID uint
	if id != nil {
		conv, err := r.current(ctx, id, st)
		if err != nil {
			event("storage_error")
			return QueryResult{}, err
		}
		switch {
		case conv != nil:
			convID = conv.ID
			if r.opts.CommitMode == CommitEager {
				if err := r.append(ctx, convID, userTurn); err != nil {
					event("storage_error")
					return QueryResult{}, err
				}
			}
		case r.opts.CommitMode == CommitEager:
			if convID, err = r.create(ctx, id, userTurn); err != nil {
				event("storage_error")
				return QueryResult{}, err
			}
			st.Attach(convID)
		default:
			// deferred: the conversation is created after the responder succeeds
			st.Detach()
		}
	}

	reply, err := r.respond(ctx, query, st.Buffer)
	if err != nil {
		log.Warn().Err(err).Uint("conversation_id", convID).Msg("[chat] responder failed")
		event("upstream_error")
		return QueryResult{ConversationID: convID}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	assistantTurn := models.AssistantTurn(reply)

	if id != nil {
		switch {
		case r.opts.CommitMode == CommitEager:
			err = r.append(ctx, convID, assistantTurn)
		case convID != 0:
			err = r.append(ctx, convID, userTurn, assistantTurn)
		default:
			convID, err = r.create(ctx, id, userTurn, assistantTurn)
			if err == nil {
				st.Attach(convID)
			}
		}
		if err != nil {
			event("storage_error")
			return QueryResult{ConversationID: convID}, err
		}
	}

	st.AddTurn(assistantTurn)
	event("ok")
	return QueryResult{Reply: reply, ConversationID: convID}, nil
}

// GetTranscript replays every conversation owned by id, most recent first.
func (r *Reconciler) GetTranscript(ctx context.Context, id *Identity) ([]Transcript, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: identity required", ErrValidation)
	}
	convs, err := r.convs.ListByOwner(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", ErrStorage, err)
	}
	out := make([]Transcript, 0, len(convs))
	for _, c := range convs {
		out = append(out, Transcript{
			ID:        c.ID,
			Title:     c.Title,
			Turns:     transcript.Parse(c.Content),
			Timestamp: c.Timestamp,
		})
	}
	return out, nil
}

// current resolves the session's attached conversation. It returns nil when the
// session is detached or the conversation is gone or owned by someone else.
func (r *Reconciler) current(ctx context.Context, id *Identity, st *session.State) (*models.Conversation, error) {
	if st.ConversationID == nil {
		return nil, nil
	}
	conv, err := r.convs.Get(ctx, *st.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: load conversation: %w", ErrStorage, err)
	}
	if conv == nil || conv.UserID != id.UserID {
		return nil, nil
	}
	return conv, nil
}

func (r *Reconciler) create(ctx context.Context, id *Identity, turns ...models.Turn) (uint, error) {
	now := r.now()
	convID, err := r.convs.Create(ctx, id.UserID, Title(id, now), transcript.Serialize(turns), turns[len(turns)-1].Content, now)
	if err != nil {
		return 0, fmt.Errorf("%w: create conversation: %w", ErrStorage, err)
	}
	metrics.ConversationsCreatedTotal.Inc()
	return convID, nil
}

func (r *Reconciler) append(ctx context.Context, convID uint, turns ...models.Turn) error {
	if err := r.convs.Append(ctx, convID, turns...); err != nil {
		return fmt.Errorf("%w: append to %d: %w", ErrStorage, convID, err)
	}
	return nil
}

func (r *Reconciler) respond(ctx context.Context, query string, buffer []models.Turn) (string, error) {
	if r.opts.ResponderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.ResponderTimeout)
		defer cancel()
	}
	reply, err := r.responder.Respond(ctx, query, buffer)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = services.ErrEmptyReply
	}
	if err != nil {
		provider := r.opts.ProviderName
		if provider == "" {
			provider = "unknown"
		}
		metrics.ResponderErrorsTotal.WithLabelValues(provider).Inc()
		return "", err
	}
	return reply, nil
}

// IsNotFound reports whether err came from a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
