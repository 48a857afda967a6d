package models

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one turn of the conversation supplied by the caller.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SuggestionKind names the grounding set a request was answered from.
type SuggestionKind string

const (
	KindCountries SuggestionKind = "countries"
	KindNews      SuggestionKind = "news"
)

// Suggestions is the hydrated payload returned next to the assistant reply.
// Items holds []Country or []NewsItem depending on Type.
type Suggestions struct {
	Type  SuggestionKind `json:"type"`
	Items any            `json:"items"`
}

// LastUserContent returns the content of the last message, or "" for an
// empty conversation.
func LastUserContent(messages []ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
