package main

import (
	"context"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"discord-gpt-bot/internal/bot"
	"discord-gpt-bot/internal/completion"
	"discord-gpt-bot/internal/config"
)

func main() {
	appCtx, cancel := context.WithCancel(context.Background())
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	config.Init()
	botInstance, messageQueue := bot.Init()
	client := completion.NewClient(config.Data.OpenAI)

	for {
		select {
		case discordMessage := <-messageQueue:
			go bot.HandleMessage(discordMessage.Message, discordMessage.Session, client, appCtx)
		case <-appCtx.Done():
			_ = botInstance.Close()
		case <-interrupt:
			zap.L().Info("exiting")
			cancel()
			_ = botInstance.Close()
			bot.Close()
			zap.L().Debug("done")
			return
		}
	}
}
