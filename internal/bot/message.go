package bot

import (
	"github.com/bwmarrin/discordgo"

	"discord-gpt-bot/internal/completion"
)

// MessageFromDiscord converts a Discord message into a conversational turn.
// Thread starter messages carry the opening prompt in the first field of the
// referenced message's embed. Returns nil for messages with nothing usable.
func MessageFromDiscord(msg *discordgo.Message, botID string) *completion.Message {
	if msg.Type == discordgo.MessageTypeThreadStarterMessage &&
		msg.ReferencedMessage != nil &&
		len(msg.ReferencedMessage.Embeds) > 0 &&
		len(msg.ReferencedMessage.Embeds[0].Fields) > 0 {
		field := msg.ReferencedMessage.Embeds[0].Fields[0]
		return &completion.Message{User: completion.RoleUser, Text: field.Value}
	}

	if msg.Content == "" {
		return nil
	}

	user := completion.RoleUser
	if msg.Author != nil && msg.Author.ID == botID {
		user = completion.RoleAssistant
	}

	return &completion.Message{User: user, Text: msg.Content}
}

// IsLastMessageStale reports whether another user message arrived in the
// thread after the one currently being answered.
func IsLastMessageStale(interactionID string, last *discordgo.Message, botID string) bool {
	return last != nil &&
		last.ID != interactionID &&
		last.Author != nil &&
		last.Author.ID != botID
}
