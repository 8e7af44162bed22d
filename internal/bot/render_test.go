package bot

import (
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-gpt-bot/internal/completion"
	"discord-gpt-bot/internal/config"
)

type sentText struct {
	channel string
	content string
}

type sentFile struct {
	channel string
	name    string
	content string
}

type sentEmbed struct {
	channel     string
	description string
	color       int
}

type fakeSink struct {
	texts  []sentText
	files  []sentFile
	embeds []sentEmbed
	closed []string
}

func (f *fakeSink) SendText(channelID string, content string) error {
	f.texts = append(f.texts, sentText{channelID, content})
	return nil
}

func (f *fakeSink) SendFile(channelID string, name string, contents io.Reader) error {
	raw, _ := io.ReadAll(contents)
	f.files = append(f.files, sentFile{channelID, name, string(raw)})
	return nil
}

func (f *fakeSink) SendEmbed(channelID string, description string, color int) error {
	f.embeds = append(f.embeds, sentEmbed{channelID, description, color})
	return nil
}

func (f *fakeSink) CloseThread(threadID string) error {
	f.closed = append(f.closed, threadID)
	return nil
}

func setTestConfig(t *testing.T, maxChars int) {
	t.Helper()
	old := config.Data
	config.Data = &config.Config{
		Discord: config.DiscordConfig{
			BotId:              "bot-id",
			ClosedThreadPrefix: "💬❌",
			MaxCharsPerReply:   maxChars,
		},
	}
	t.Cleanup(func() { config.Data = old })
}

func TestRenderCompletionEmptyReply(t *testing.T) {
	setTestConfig(t, 1500)
	sink := &fakeSink{}

	RenderCompletion(sink, "thread-1", completion.CompletionData{Status: completion.ResultOK})

	require.Len(t, sink.embeds, 1)
	assert.Equal(t, "**Invalid response** - empty response", sink.embeds[0].description)
	assert.Equal(t, colorYellow, sink.embeds[0].color)
	assert.Empty(t, sink.texts)
	assert.Empty(t, sink.closed)
}

func TestRenderCompletionShortReply(t *testing.T) {
	setTestConfig(t, 1500)
	sink := &fakeSink{}

	RenderCompletion(sink, "thread-1", completion.CompletionData{
		Status:    completion.ResultOK,
		ReplyText: "short answer",
	})

	require.Len(t, sink.texts, 1)
	assert.Equal(t, sentText{"thread-1", "short answer"}, sink.texts[0])
	assert.Empty(t, sink.files)
	assert.Empty(t, sink.embeds)
}

func TestRenderCompletionSplitsLongReply(t *testing.T) {
	setTestConfig(t, 20)
	sink := &fakeSink{}

	reply := "one two three four five six seven eight nine ten"
	RenderCompletion(sink, "thread-1", completion.CompletionData{
		Status:    completion.ResultOK,
		ReplyText: reply,
	})

	require.Greater(t, len(sink.texts), 1)
	var parts []string
	for _, sent := range sink.texts {
		assert.LessOrEqual(t, len(sent.content), 20)
		parts = append(parts, sent.content)
	}
	assert.Equal(t, reply, strings.Join(parts, " "))
	assert.Empty(t, sink.files)
}

func TestRenderCompletionOversizedChunkGoesAsFile(t *testing.T) {
	setTestConfig(t, 20)
	sink := &fakeSink{}

	// an unbreakable fenced line longer than the limit cannot be split
	line := strings.Repeat("x", 40)
	RenderCompletion(sink, "thread-1", completion.CompletionData{
		Status:    completion.ResultOK,
		ReplyText: "```" + line + "```",
	})

	require.Len(t, sink.files, 1)
	assert.Equal(t, "message.txt", sink.files[0].name)
	assert.Contains(t, sink.files[0].content, line)
}

func TestRenderCompletionTooLongClosesThread(t *testing.T) {
	setTestConfig(t, 1500)
	sink := &fakeSink{}

	RenderCompletion(sink, "thread-1", completion.CompletionData{
		Status:     completion.ResultTooLong,
		StatusText: `{"error":{"code":"context_length_exceeded"}}`,
	})

	assert.Equal(t, []string{"thread-1"}, sink.closed)
	assert.Empty(t, sink.texts)
	assert.Empty(t, sink.files)
	assert.Empty(t, sink.embeds)
}

func TestRenderCompletionError(t *testing.T) {
	setTestConfig(t, 1500)
	sink := &fakeSink{}

	RenderCompletion(sink, "thread-1", completion.CompletionData{
		Status:     completion.ResultError,
		StatusText: "connection refused",
	})

	require.Len(t, sink.embeds, 1)
	assert.Equal(t, "**Error** - connection refused", sink.embeds[0].description)
	assert.Equal(t, colorYellow, sink.embeds[0].color)
	assert.Empty(t, sink.closed)
}

func TestRenderImageOK(t *testing.T) {
	setTestConfig(t, 1500)
	sink := &fakeSink{}

	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	RenderImage(sink, "channel-1", completion.ImageCompletionData{
		Status:   completion.ResultOK,
		ImageB64: payload,
	})

	require.Len(t, sink.files, 1)
	assert.Equal(t, "channel-1", sink.files[0].channel)
	assert.True(t, strings.HasSuffix(sink.files[0].name, ".png"))
	assert.Equal(t, "png-bytes", sink.files[0].content)
	assert.Empty(t, sink.embeds)
}

func TestRenderImageEmptyPayload(t *testing.T) {
	setTestConfig(t, 1500)
	sink := &fakeSink{}

	RenderImage(sink, "channel-1", completion.ImageCompletionData{Status: completion.ResultOK})

	require.Len(t, sink.embeds, 1)
	assert.Equal(t, "**Invalid response** - empty response", sink.embeds[0].description)
	assert.Empty(t, sink.files)
}

func TestRenderImageTooLongRendersAsError(t *testing.T) {
	setTestConfig(t, 1500)
	sink := &fakeSink{}

	RenderImage(sink, "channel-1", completion.ImageCompletionData{
		Status:     completion.ResultTooLong,
		StatusText: "prompt too long",
	})

	require.Len(t, sink.embeds, 1)
	assert.Equal(t, "**Error** - prompt too long", sink.embeds[0].description)
	assert.Empty(t, sink.closed)
	assert.Empty(t, sink.files)
}

func TestRenderImageUndecodablePayload(t *testing.T) {
	setTestConfig(t, 1500)
	sink := &fakeSink{}

	RenderImage(sink, "channel-1", completion.ImageCompletionData{
		Status:   completion.ResultOK,
		ImageB64: "not base64 at all!!!",
	})

	require.Len(t, sink.embeds, 1)
	assert.Contains(t, sink.embeds[0].description, "**Error**")
	assert.Empty(t, sink.files)
}
