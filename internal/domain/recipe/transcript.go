package recipe

import "sync"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the cooking-assistant conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the append-only message sequence for one Recipes page
// session. There is no server-side conversation state: the full transcript
// is resent with every chat call.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// AppendUser records the user's message before any network call is made, so
// the message survives a failed call.
func (t *Transcript) AppendUser(content string) {
	t.append(Message{Role: RoleUser, Content: content})
}

// AppendAssistant records the assistant reply, or the fallback text when the
// call failed.
func (t *Transcript) AppendAssistant(content string) {
	t.append(Message{Role: RoleAssistant, Content: content})
}

func (t *Transcript) append(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
}

// Messages returns a copy of the transcript in order.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
