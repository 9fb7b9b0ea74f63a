package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/chatrelay/chatrelay/internal/models"
	"github.com/chatrelay/chatrelay/internal/quota"
	"github.com/chatrelay/chatrelay/internal/session"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

// ErrEmptyMessage indicates a request with a missing or blank message. It is
// raised before any store is touched.
var ErrEmptyMessage = errors.New("chat: empty message")

// ErrQuotaExhausted indicates the user has spent both the daily allowance and
// the bonus balance. No upstream call is made for a denied request.
var ErrQuotaExhausted = errors.New("chat: quota exhausted")

// Completer generates a reply for an assembled conversation.
type Completer interface {
	Complete(ctx context.Context, request upstream.Request) (string, error)
}

// Options carry the orchestrator defaults from configuration.
type Options struct {
	SystemPrompt string  // Default persona prompt; request overrides win.
	Temperature  float64 // Default sampling temperature.
	MaxTokens    int     // Default completion length cap.
}

// Request is one inbound chat message.
type Request struct {
	UserID      string   // Opaque caller-supplied id.
	Message     string   // Required non-empty text.
	System      *string  // Optional system prompt override.
	Temperature *float64 // Optional sampling temperature.
	MaxTokens   *int     // Optional completion length cap.
}

// Reply is a successful chat exchange.
type Reply struct {
	Text      string          // Generated reply text.
	Remaining quota.Remaining // Allowance left after this request.
}

// Service sequences quota check, context assembly, the completion call, and
// the session update for each chat request. Strictly sequential, no retries.
type Service struct {
	quota    *quota.Store
	sessions *session.Store
	upstream Completer
	opts     Options
}

// NewService constructs a Service.
func NewService(quotaStore *quota.Store, sessions *session.Store, completer Completer, opts Options) *Service {
	return &Service{
		quota:    quotaStore,
		sessions: sessions,
		upstream: completer,
		opts:     opts,
	}
}

// Send handles one chat request end to end and returns the generated reply
// with the remaining allowance. Quota is consumed before the upstream call
// and is not refunded when that call fails.
func (s *Service) Send(ctx context.Context, request Request) (Reply, error) {
	message := strings.TrimSpace(request.Message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	userID := strings.TrimSpace(request.UserID)

	if _, errEnsure := s.quota.EnsureUser(ctx, userID); errEnsure != nil {
		return Reply{}, errEnsure
	}

	decision, errConsume := s.quota.Consume(ctx, userID)
	if errConsume != nil {
		return Reply{}, errConsume
	}
	if !decision.Allowed {
		return Reply{}, ErrQuotaExhausted
	}

	history, errHistory := s.sessions.History(ctx, userID)
	if errHistory != nil {
		return Reply{}, errHistory
	}

	conversation := assembleConversation(s.resolveSystemPrompt(request.System), history, message)

	temperature := s.opts.Temperature
	if request.Temperature != nil {
		temperature = *request.Temperature
	}
	maxTokens := s.opts.MaxTokens
	if request.MaxTokens != nil {
		maxTokens = *request.MaxTokens
	}

	reply, errComplete := s.upstream.Complete(ctx, upstream.Request{
		Model:       decision.Model,
		Messages:    conversation,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if errComplete != nil {
		return Reply{}, fmt.Errorf("chat: complete: %w", errComplete)
	}

	// Record the user input first, the assistant output only once it exists.
	// A failure in between must never leave a reply without its question.
	if errAppend := s.sessions.Append(ctx, userID, models.RoleUser, message); errAppend != nil {
		log.WithError(errAppend).WithField("user", userID).Warn("chat: failed to record user message")
		return Reply{Text: reply, Remaining: decision.Remaining}, nil
	}
	if errAppend := s.sessions.Append(ctx, userID, models.RoleAssistant, reply); errAppend != nil {
		log.WithError(errAppend).WithField("user", userID).Warn("chat: failed to record assistant reply")
	}

	return Reply{Text: reply, Remaining: decision.Remaining}, nil
}

// resolveSystemPrompt prefers the request override over the configured default.
func (s *Service) resolveSystemPrompt(override *string) string {
	if override != nil {
		if trimmed := strings.TrimSpace(*override); trimmed != "" {
			return trimmed
		}
	}
	return s.opts.SystemPrompt
}

// assembleConversation builds the outbound message list: one system message,
// the stored history in original order, then the new user message. The stored
// history is not mutated here.
func assembleConversation(systemPrompt string, history []models.Message, message string) []upstream.Message {
	conversation := make([]upstream.Message, 0, len(history)+2)
	if systemPrompt != "" {
		conversation = append(conversation, upstream.Message{Role: models.RoleSystem, Content: systemPrompt})
	}
	for _, entry := range history {
		conversation = append(conversation, upstream.Message{Role: entry.Role, Content: entry.Content})
	}
	conversation = append(conversation, upstream.Message{Role: models.RoleUser, Content: message})
	return conversation
}
