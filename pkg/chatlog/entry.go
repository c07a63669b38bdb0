package chatlog

import (
	"strings"
	"time"

	"agent-chat/pkg/types"
)

// maxTitleLength caps the title taken from the first user message
const maxTitleLength = 60

// Entry is one conversation in the local chat index
type Entry struct {
	ID           string    `json:"id"`
	Agent        string    `json:"agent"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	Created      time.Time `json:"created"`
	LastUpdated  time.Time `json:"last_updated"`
}

// titleFor returns the first user message, shortened to one line
func titleFor(messages []types.Message) string {
	for _, msg := range messages {
		user, ok := msg.(types.UserMessage)
		if !ok {
			continue
		}
		title := strings.Join(strings.Fields(user.Content), " ")
		if title == "" {
			continue
		}
		if runes := []rune(title); len(runes) > maxTitleLength {
			title = string(runes[:maxTitleLength-3]) + "..."
		}
		return title
	}
	return "New chat"
}
