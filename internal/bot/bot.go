package bot

import (
	"context"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"discord-gpt-bot/internal/completion"
	"discord-gpt-bot/internal/config"
	"discord-gpt-bot/internal/db"
)

var messageDB *db.MessageDB

type DiscordMessage struct {
	Session *discordgo.Session
	Message *discordgo.MessageCreate
}

// Close closes the database connection
func Close() {
	if messageDB != nil {
		err := messageDB.Close()
		if err != nil {
			zap.L().Error("failed to close database connection", zap.Error(err))
		}
	}
}

func Init() (*discordgo.Session, chan *DiscordMessage) {
	zap.L().Debug("initializing bot")

	var err error
	messageDB, err = db.New(config.Data.Database.Path)
	if err != nil {
		zap.L().Panic("failed to initialize database", zap.Error(err))
		return nil, nil
	}

	discord, err := discordgo.New("Bot " + config.Data.Discord.Token)
	queue := make(chan *DiscordMessage, 128)

	if err != nil {
		zap.L().Panic("incorrect Discord token", zap.Error(err))
		return nil, nil
	}

	discord.AddHandler(func(session *discordgo.Session, message *discordgo.MessageCreate) {
		if message.Author.ID == config.Data.Discord.BotId {
			return
		}

		queue <- &DiscordMessage{session, message}
	})

	discord.Identify.Intents = discordgo.IntentsGuildMessages

	err = discord.Open()
	if err != nil {
		zap.L().Panic("error initializing Discord bot", zap.Error(err))
		return nil, nil
	}

	return discord, queue
}

// ShouldBlock reports whether a message source is outside the bot's remit.
// DMs are not supported; an empty allow list admits every guild.
func ShouldBlock(guildID string) bool {
	if guildID == "" {
		zap.L().Info("DM not supported")
		return true
	}

	allowed := config.Data.Discord.AllowedServerIds
	if len(allowed) > 0 && !slices.Contains(allowed, guildID) {
		zap.L().Info("guild not allowed", zap.String("guild", guildID))
		return true
	}

	return false
}

func HandleMessage(msg *discordgo.MessageCreate, session *discordgo.Session, client *completion.Client, ctx context.Context) {
	if ShouldBlock(msg.GuildID) {
		return
	}

	sink := NewSink(session)

	// image generation mode
	keyword := config.Data.Discord.MakeImageKeyword
	if keyword != "" && strings.Contains(msg.Content, keyword) {
		_ = session.MessageReactionAdd(msg.ChannelID, msg.ID, "👨🏻‍🎨")

		prompt := completion.Message{
			User: completion.RoleUser,
			Text: strings.TrimSpace(strings.ReplaceAll(msg.Content, keyword, "")),
		}

		data := client.GenerateImage(ctx, prompt)
		RenderImage(sink, msg.ChannelID, data)
		return
	}

	channel, err := session.State.Channel(msg.ChannelID)
	if err != nil {
		channel, err = session.Channel(msg.ChannelID)
	}
	if err != nil {
		zap.L().Error("failed to resolve channel", zap.Error(err))
		return
	}

	if !isActiveBotThread(channel) {
		return
	}

	zap.L().Debug("message received", zap.String("thread", msg.ChannelID), zap.String("text", msg.Content))

	if config.Data.Discord.Typing {
		_ = session.ChannelTyping(msg.ChannelID)
	}

	if messageDB != nil {
		if m := MessageFromDiscord(msg.Message, config.Data.Discord.BotId); m != nil {
			if err = messageDB.SaveMessage(msg.ChannelID, msg.ID, msg.Author.ID, *m); err != nil {
				zap.L().Error("failed to save message to database", zap.Error(err))
			}
		}
	}

	history := fetchThreadHistory(session, msg)
	if len(history) == 0 {
		zap.L().Warn("no usable history for thread", zap.String("thread", msg.ChannelID))
		return
	}

	data := client.GenerateCompletion(ctx, history)

	// a newer user message in the thread supersedes this reply
	if last := latestThreadMessage(session, msg.ChannelID); IsLastMessageStale(msg.ID, last, config.Data.Discord.BotId) {
		zap.L().Info("dropping stale reply", zap.String("thread", msg.ChannelID))
		return
	}

	RenderCompletion(sink, msg.ChannelID, data)

	if messageDB != nil {
		switch {
		case data.Status == completion.ResultTooLong:
			if err = messageDB.DeleteThread(msg.ChannelID); err != nil {
				zap.L().Error("failed to prune closed thread", zap.Error(err))
			}
		case data.Status == completion.ResultOK && data.ReplyText != "":
			reply := completion.Message{User: completion.RoleAssistant, Text: data.ReplyText}
			if err = messageDB.SaveMessage(msg.ChannelID, uuid.NewString(), config.Data.Discord.BotId, reply); err != nil {
				zap.L().Error("failed to save bot response to database", zap.Error(err))
			}
		}
	}
}

func isActiveBotThread(channel *discordgo.Channel) bool {
	if !channel.IsThread() {
		return false
	}

	if channel.OwnerID != config.Data.Discord.BotId {
		return false
	}

	if channel.ThreadMetadata != nil && (channel.ThreadMetadata.Archived || channel.ThreadMetadata.Locked) {
		return false
	}

	return !strings.HasPrefix(channel.Name, config.Data.Discord.ClosedThreadPrefix)
}

// fetchThreadHistory prefers the database cache and falls back to fetching
// the whole thread from Discord, warming the cache as it goes.
func fetchThreadHistory(session *discordgo.Session, msg *discordgo.MessageCreate) []completion.Message {
	if messageDB != nil {
		history, err := messageDB.GetThreadHistory(msg.ChannelID)
		// a single cached row means only the current message is known,
		// fetch the full thread instead
		if err == nil && len(history) > 1 {
			zap.L().Debug("retrieved thread history from database", zap.Int("count", len(history)))
			return history
		}
	}

	zap.L().Debug("fetching thread history from Discord")
	raw, err := session.ChannelMessages(msg.ChannelID, 100, "", "", "")
	if err != nil {
		zap.L().Error("failed to fetch thread history", zap.Error(err))
		return nil
	}

	// ChannelMessages returns newest first
	var history []completion.Message
	for i := len(raw) - 1; i >= 0; i-- {
		m := MessageFromDiscord(raw[i], config.Data.Discord.BotId)
		if m == nil {
			continue
		}

		if messageDB != nil && raw[i].Author != nil {
			if err = messageDB.SaveMessage(msg.ChannelID, raw[i].ID, raw[i].Author.ID, *m); err != nil {
				zap.L().Error("failed to save message to database", zap.Error(err))
			}
		}

		history = append(history, *m)
	}

	return history
}

func latestThreadMessage(session *discordgo.Session, channelID string) *discordgo.Message {
	messages, err := session.ChannelMessages(channelID, 1, "", "", "")
	if err != nil || len(messages) == 0 {
		return nil
	}

	return messages[0]
}
