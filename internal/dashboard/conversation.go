package dashboard

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/galeops/windfleet/internal/models"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type MessageStatus string

const (
	MessageSending MessageStatus = "sending"
	MessageSent    MessageStatus = "sent"
	MessageError   MessageStatus = "error"
)

// Message is one entry in a conversation. Status is set for user messages
// only; SQLQuery and Results for assistant messages only.
type Message struct {
	ID        string               `json:"id"`
	Content   string               `json:"content"`
	Sender    Sender               `json:"sender"`
	Timestamp time.Time            `json:"timestamp"`
	Status    MessageStatus        `json:"status,omitempty"`
	SQLQuery  string               `json:"sql_query,omitempty"`
	Results   *models.QueryResults `json:"query_results,omitempty"`
}

// Responder is the remote message-exchange collaborator. conversationID is
// empty on the first send; the responder assigns one.
type Responder interface {
	Send(ctx context.Context, content, conversationID string) (*models.ChatReply, error)
}

// Conversation owns an append-only ordered message list and at most one
// outstanding send. Failures are converted into message status and lastError,
// never propagated.
type Conversation struct {
	mu             sync.Mutex
	responder      Responder
	now            func() time.Time
	nextID         int
	conversationID string
	pending        bool
	lastError      string
	messages       []Message
	revealed       map[string]bool
}

func NewConversation(r Responder) *Conversation {
	return &Conversation{
		responder: r,
		now:       time.Now,
		revealed:  make(map[string]bool),
	}
}

// SeedGreeting appends an initial assistant message without a round trip.
func (c *Conversation) SeedGreeting(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{
		ID:        c.localID("a"),
		Content:   text,
		Sender:    SenderAssistant,
		Timestamp: c.now(),
	})
}

func (c *Conversation) localID(prefix string) string {
	c.nextID++
	return fmt.Sprintf("%s-%d", prefix, c.nextID)
}

// Send appends a user message and issues one request to the responder. It is
// a no-op (returns false) when text is empty after trimming or another send
// is still pending. On success the reply is appended as an assistant message;
// on failure the user message is marked error and lastError is set. In both
// cases the pending guard is released before returning.
func (c *Conversation) Send(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return false
	}
	c.pending = true
	c.lastError = ""
	userID := c.localID("u")
	c.messages = append(c.messages, Message{
		ID:        userID,
		Content:   text,
		Sender:    SenderUser,
		Timestamp: c.now(),
		Status:    MessageSending,
	})
	convID := c.conversationID
	c.mu.Unlock()

	reply, err := c.responder.Send(ctx, text, convID)
	if err == nil && reply == nil {
		err = fmt.Errorf("responder returned no reply")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false

	if err != nil {
		log.Printf("conversation: send failed: %v", err)
		c.setStatus(userID, MessageError)
		c.lastError = "Failed to get a response from the assistant. Please try again."
		return true
	}

	c.setStatus(userID, MessageSent)
	if c.conversationID == "" {
		c.conversationID = reply.ConversationID
	}

	msgID := reply.MessageID
	if msgID == "" {
		msgID = c.localID("a")
	}
	ts := reply.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	c.messages = append(c.messages, Message{
		ID:        msgID,
		Content:   reply.Content,
		Sender:    SenderAssistant,
		Timestamp: ts,
		SQLQuery:  reply.SQLQuery,
		Results:   reply.Results,
	})
	return true
}

func (c *Conversation) setStatus(id string, status MessageStatus) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			c.messages[i].Status = status
			return
		}
	}
}

// ToggleQueryVisibility flips whether the attached query for a message is
// shown. Unknown ids just toggle an entry nothing renders.
func (c *Conversation) ToggleQueryVisibility(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revealed[messageID] {
		delete(c.revealed, messageID)
	} else {
		c.revealed[messageID] = true
	}
}

// QueryVisible reports whether the query for messageID is revealed.
func (c *Conversation) QueryVisible(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revealed[messageID]
}

// Messages returns a copy of the ordered message list.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Conversation) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

func (c *Conversation) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}
