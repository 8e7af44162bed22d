package bot

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"discord-gpt-bot/internal/completion"
	"discord-gpt-bot/internal/config"
)

const (
	colorYellow = 0xF1C40F
	colorBlue   = 0x3498DB

	invalidResponseNotice = "**Invalid response** - empty response"
	threadClosedNotice    = "**Thread closed** - Context limit reached, closing..."
)

// Sink is the subset of Discord operations the renderers need.
type Sink interface {
	SendText(channelID string, content string) error
	SendFile(channelID string, name string, contents io.Reader) error
	SendEmbed(channelID string, description string, color int) error
	CloseThread(threadID string) error
}

type discordSink struct {
	session *discordgo.Session
}

func NewSink(session *discordgo.Session) Sink {
	return &discordSink{session: session}
}

func (s *discordSink) SendText(channelID string, content string) error {
	_, err := s.session.ChannelMessageSend(channelID, content)
	return err
}

func (s *discordSink) SendFile(channelID string, name string, contents io.Reader) error {
	_, err := s.session.ChannelFileSend(channelID, name, contents)
	return err
}

func (s *discordSink) SendEmbed(channelID string, description string, color int) error {
	_, err := s.session.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Description: description,
		Color:       color,
	})
	return err
}

// CloseThread renames the thread with the closed prefix, announces the
// closure, then archives and locks it.
func (s *discordSink) CloseThread(threadID string) error {
	_, err := s.session.ChannelEdit(threadID, &discordgo.ChannelEdit{
		Name: config.Data.Discord.ClosedThreadPrefix,
	})
	if err != nil {
		return err
	}

	if err = s.SendEmbed(threadID, threadClosedNotice, colorBlue); err != nil {
		zap.L().Error("error announcing thread closure", zap.Error(err))
	}

	archived := true
	locked := true
	_, err = s.session.ChannelEdit(threadID, &discordgo.ChannelEdit{
		Archived: &archived,
		Locked:   &locked,
	})

	return err
}

// RenderCompletion turns a classified completion into thread output. Replies
// are split into chunks; a chunk over the reply limit goes out as a file.
// TOO_LONG closes the thread without replying.
func RenderCompletion(sink Sink, threadID string, data completion.CompletionData) {
	switch data.Status {
	case completion.ResultOK:
		if data.ReplyText == "" {
			sendNotice(sink, threadID, invalidResponseNotice)
			return
		}

		limit := config.Data.Discord.MaxCharsPerReply
		for _, chunk := range SplitMessage(data.ReplyText, limit) {
			var err error
			if len(chunk) > limit {
				err = sink.SendFile(threadID, "message.txt", strings.NewReader(chunk))
			} else {
				err = sink.SendText(threadID, chunk)
			}

			if err != nil {
				zap.L().Error("error sending reply", zap.Error(err))
			}
		}
	case completion.ResultTooLong:
		if err := sink.CloseThread(threadID); err != nil {
			zap.L().Error("error closing thread", zap.Error(err))
		}
	default:
		sendNotice(sink, threadID, "**Error** - "+data.StatusText)
	}
}

// RenderImage attaches a generated image to the channel. TOO_LONG is not
// special-cased here, a plain channel has nothing to close.
func RenderImage(sink Sink, channelID string, data completion.ImageCompletionData) {
	if data.Status != completion.ResultOK {
		sendNotice(sink, channelID, "**Error** - "+data.StatusText)
		return
	}

	if data.ImageB64 == "" {
		sendNotice(sink, channelID, invalidResponseNotice)
		return
	}

	raw, err := base64.StdEncoding.DecodeString(data.ImageB64)
	if err != nil {
		zap.L().Error("undecodable image payload", zap.Error(err))
		sendNotice(sink, channelID, "**Error** - "+err.Error())
		return
	}

	name := uuid.Must(uuid.NewV7()).String() + ".png"
	if err = sink.SendFile(channelID, name, bytes.NewReader(raw)); err != nil {
		zap.L().Error("error sending image", zap.Error(err))
	}
}

func sendNotice(sink Sink, channelID string, description string) {
	if err := sink.SendEmbed(channelID, description, colorYellow); err != nil {
		zap.L().Error("error sending notice", zap.Error(err))
	}
}
