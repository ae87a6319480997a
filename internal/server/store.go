package server

import (
	"log"
	"sync"

	"github.com/samber/lo"
	"github.com/vibechat/relay/internal/types"
)

// MessageStore is the in-memory history log. Messages are kept in append
// order and addressed by id for reactions and deletion.
type MessageStore struct {
	mu       sync.Mutex
	log      *log.Logger
	messages []types.Message
}

func NewMessageStore(logger *log.Logger) *MessageStore {
	return &MessageStore{log: logger}
}

// Append adds msg to the end of the history. A message whose id is
// already present is dropped, leaving the history unchanged.
func (ms *MessageStore) Append(msg types.Message) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if lo.ContainsBy(ms.messages, func(m types.Message) bool { return m.Id == msg.Id }) {
		ms.log.Printf("dropping message with duplicate id %q", msg.Id)
		return false
	}

	ms.messages = append(ms.messages, msg)
	return true
}

// AddReaction records username's reaction on the message with the given
// id, replacing any prior reaction by the same username. The updated
// message is returned; ok is false if the id is unknown.
func (ms *MessageStore) AddReaction(messageId, username, reaction string) (types.Message, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	_, i, ok := lo.FindIndexOf(ms.messages, func(m types.Message) bool {
		return m.Id == messageId
	})
	if !ok {
		return types.Message{}, false
	}

	ms.messages[i].Reactions = lo.Filter(ms.messages[i].Reactions, func(r types.Reaction, _ int) bool {
		return r.Username != username
	})
	ms.messages[i].Reactions = append(ms.messages[i].Reactions, types.Reaction{
		Username: username,
		Reaction: reaction,
	})

	return ms.messages[i], true
}

// Delete removes the message with the given id, reporting whether
// anything was removed.
func (ms *MessageStore) Delete(messageId string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	_, i, ok := lo.FindIndexOf(ms.messages, func(m types.Message) bool {
		return m.Id == messageId
	})
	if !ok {
		return false
	}

	ms.messages = append(ms.messages[:i], ms.messages[i+1:]...)
	return true
}

// History returns a copy of the full log in append order. It is not
// filtered per participant pair; that is a consumer concern.
func (ms *MessageStore) History() []types.Message {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	history := make([]types.Message, len(ms.messages))
	copy(history, ms.messages)
	return history
}
