// Package tutor drives a single tutor conversation against POST /api/tutor.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gabarita-ai/gabarita/internal/client"
	"github.com/gabarita-ai/gabarita/internal/domain"
)

// User-facing error strings stored in State.Error.
const (
	UnauthenticatedMessage = "Você precisa estar logado para conversar com o tutor."
	FailureMessage         = "Não foi possível falar com o tutor. Tente novamente."
)

var (
	// ErrUnauthenticated is returned when no user is signed in.
	ErrUnauthenticated = errors.New("tutor: unauthenticated")
	// ErrCommunication is returned when the tutor endpoint failed.
	ErrCommunication = errors.New("tutor: communication failure")
	// ErrEmptyMessage is returned for blank user messages.
	ErrEmptyMessage = errors.New("tutor: empty message")
	// ErrSuperseded is returned when a newer proactive start replaced the
	// conversation while the call was in flight. Its result was discarded.
	ErrSuperseded = errors.New("tutor: superseded by a newer conversation")
)

const tutorPath = "/api/tutor"

type request struct {
	History     domain.History     `json:"history"`
	UserID      string             `json:"userId"`
	Context     domain.WireContext `json:"context"`
	UserMessage string             `json:"userMessage"`
}

type response struct {
	Message string `json:"message"`
}

// State is a snapshot of the conversation.
type State struct {
	History domain.History
	Loading bool
	Error   string
}

// entry tags each stored turn so a failed send can remove exactly the turn it
// added. id 0 marks a model turn.
type entry struct {
	id   uint64
	turn domain.ChatTurn
}

// Conversation owns one learner's chat with the tutor.
type Conversation struct {
	client  *client.Client
	session client.Session
	logger  *slog.Logger

	mu         sync.Mutex
	entries    []entry
	inFlight   int
	errMsg     string
	generation uint64
	nextTurnID uint64

	// The user and (type, questionId) pair seen by the last Sync.
	current  domain.TutorContext
	observed bool
	lastUser string
	lastKey  domain.ContextKey
}

// New creates an empty conversation.
func New(c *client.Client, session client.Session) *Conversation {
	return &Conversation{client: c, session: session, logger: c.Logger()}
}

// State returns a copy of the current state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		History: c.historyLocked(),
		Loading: c.inFlight > 0,
		Error:   c.errMsg,
	}
}

func (c *Conversation) historyLocked() domain.History {
	h := make(domain.History, len(c.entries))
	for i, e := range c.entries {
		h[i] = e.turn
	}
	return h.Clone()
}

// Sync records tc as the current context and starts a proactive conversation
// when the signed-in user or the (type, questionId) pair differs from what
// the previous Sync saw. Leaving a question for another screen, or signing
// out, therefore lets the next Sync on that question start again. Contexts
// other than questions and quiz results never start one.
func (c *Conversation) Sync(ctx context.Context, tc domain.TutorContext) error {
	userID := c.session.UserID()
	var key domain.ContextKey
	if tc != nil {
		key = tc.Key()
	}

	c.mu.Lock()
	changed := !c.observed || c.lastUser != userID || c.lastKey != key
	c.current = tc
	c.observed, c.lastUser, c.lastKey = true, userID, key
	if !changed || userID == "" || !domain.SupportsProactive(tc) {
		c.mu.Unlock()
		return nil
	}

	c.generation++
	gen := c.generation
	c.entries = nil
	c.errMsg = ""
	c.inFlight++
	c.mu.Unlock()

	return c.exchange(ctx, gen, userID, tc, "", 0, domain.History{})
}

// Send appends message as a user turn and asks the tutor for a reply. On
// failure the turn is removed again and State.Error is set.
func (c *Conversation) Send(ctx context.Context, message string) error {
	userID := c.session.UserID()
	if userID == "" {
		c.mu.Lock()
		c.errMsg = UnauthenticatedMessage
		c.mu.Unlock()
		return ErrUnauthenticated
	}
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	gen := c.generation
	c.nextTurnID++
	turnID := c.nextTurnID
	c.entries = append(c.entries, entry{id: turnID, turn: domain.NewTurn(domain.RoleUser, message)})
	history := c.historyLocked()
	tc := c.current
	c.errMsg = ""
	c.inFlight++
	c.mu.Unlock()

	return c.exchange(ctx, gen, userID, tc, message, turnID, history)
}

// exchange performs the round trip. The caller has already incremented
// inFlight. turnID is the optimistic turn to roll back, 0 for proactive calls.
func (c *Conversation) exchange(ctx context.Context, gen uint64, userID string, tc domain.TutorContext, message string, turnID uint64, history domain.History) error {
	var resp response
	err := c.client.PostJSON(ctx, tutorPath, request{
		History:     history.ForTransmission(),
		UserID:      userID,
		Context:     domain.WireContext{TutorContext: tc},
		UserMessage: message,
	}, &resp)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if gen != c.generation {
		c.logger.Debug("Discarding superseded tutor reply", "user_id", userID, "generation", gen)
		return ErrSuperseded
	}

	if err != nil {
		c.logger.Error("Tutor request failed", "user_id", userID, "proactive", turnID == 0, "error", err)
		c.errMsg = FailureMessage
		if turnID != 0 {
			c.removeLocked(turnID)
		}
		return fmt.Errorf("%w: %w", ErrCommunication, err)
	}

	reply := entry{turn: domain.NewTurn(domain.RoleModel, resp.Message)}
	if turnID == 0 {
		// The opening reply goes first; only user turns sent while it was
		// loading can already be stored.
		c.entries = append([]entry{reply}, c.entries...)
	} else {
		c.entries = append(c.entries, reply)
	}
	return nil
}

func (c *Conversation) removeLocked(turnID uint64) {
	for i, e := range c.entries {
		if e.id == turnID {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			return
		}
	}
}

// Reset clears the conversation and forgets the last proactive start so the
// next Sync opens a new one. In-flight calls are discarded.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = nil
	c.errMsg = ""
	c.observed = false
}
