package types

import (
	"time"
)

type Participant struct {
	ConnectionId string `json:"connection_id"`
	Username     string `json:"username"`
	Avatar       string `json:"avatar,omitempty"`
	Online       bool   `json:"online"`
}

// Reaction is one participant's reaction to a message. A username
// contributes at most one entry per message.
type Reaction struct {
	Username string `json:"username"`
	Reaction string `json:"reaction"`
}

type Message struct {
	Id        string     `json:"id"`
	From      string     `json:"from"`
	To        string     `json:"to,omitempty"`
	Content   string     `json:"content,omitempty"`
	FileRef   string     `json:"file_ref,omitempty"`
	FileType  string     `json:"file_type,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Reactions []Reaction `json:"reactions,omitempty"`
}
