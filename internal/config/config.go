package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Environment int8

const (
	Development Environment = iota
	Production
)

type DiscordConfig struct {
	Token              string
	BotId              string
	AllowedServerIds   []string
	MakeImageKeyword   string
	Typing             bool
	ClosedThreadPrefix string
	MaxCharsPerReply   int
}

type OpenAIConfig struct {
	Endpoint      string
	ImageEndpoint string
	ApiKey        string
	Model         string
	ImageModel    string
	ImageSize     string
}

type DatabaseConfig struct {
	Path string
}

type Config struct {
	Discord  DiscordConfig
	OpenAI   OpenAIConfig
	Database DatabaseConfig
	LogLevel zapcore.Level
	EnvType  Environment
}

var Data *Config = nil

func Init() {
	config := Config{}
	Data = &config

	viper.AddConfigPath(".")
	viper.SetConfigName("app")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	levelString := viper.GetString("LOG_LEVEL")
	switch levelString {
	case "debug":
		config.LogLevel = zapcore.DebugLevel
	case "info":
		config.LogLevel = zapcore.InfoLevel
	case "warn":
		config.LogLevel = zapcore.WarnLevel
	case "error":
		config.LogLevel = zapcore.ErrorLevel
	default:
		config.LogLevel = zapcore.InfoLevel
	}

	InitLogger()

	envString := viper.Get("APP_ENV")
	switch envString {
	case "production", "prod":
		config.EnvType = Production
	default:
		config.EnvType = Development
	}

	config.Discord = DiscordConfig{
		Token:              viper.GetString("DISCORD_TOKEN"),
		BotId:              viper.GetString("DISCORD_BOT_ID"),
		AllowedServerIds:   splitIds(viper.GetString("DISCORD_ALLOWED_SERVER_IDS")),
		MakeImageKeyword:   viper.GetString("DISCORD_MAKE_IMAGE_KEYWORD"),
		Typing:             viper.GetBool("DISCORD_TYPING"),
		ClosedThreadPrefix: viper.GetString("DISCORD_CLOSED_THREAD_PREFIX"),
		MaxCharsPerReply:   viper.GetInt("DISCORD_MAX_CHARS_PER_REPLY"),
	}

	config.OpenAI = OpenAIConfig{
		Endpoint:      viper.GetString("OPENAI_ENDPOINT"),
		ImageEndpoint: viper.GetString("OPENAI_IMG_ENDPOINT"),
		ApiKey:        viper.GetString("OPENAI_API_KEY"),
		Model:         viper.GetString("MODEL"),
		ImageModel:    viper.GetString("IMAGE_MODEL"),
		ImageSize:     viper.GetString("IMAGE_SIZE"),
	}

	config.Database = DatabaseConfig{
		Path: viper.GetString("DB_PATH"),
	}

	if config.Discord.ClosedThreadPrefix == "" {
		config.Discord.ClosedThreadPrefix = "💬❌"
	}

	if config.Discord.MaxCharsPerReply <= 0 {
		config.Discord.MaxCharsPerReply = 1500
	}

	if config.OpenAI.ImageSize == "" {
		config.OpenAI.ImageSize = "256x256"
	}

	if config.OpenAI.Model == "" {
		zap.L().Fatal("model name is required")
	}

	if config.OpenAI.Endpoint == "" || config.OpenAI.ApiKey == "" {
		zap.L().Fatal("invalid openai config")
	}

	if config.Discord.BotId == "" || config.Discord.Token == "" {
		zap.L().Fatal("invalid discord config")
	}

	zap.L().Debug("config loaded")
}

func splitIds(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}

	return ids
}

func InitLogger() {
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(Data.LogLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	if Data.EnvType == Development {
		zapConfig.Development = true
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zapConfig.EncoderConfig.TimeKey = ""
		zapConfig.EncoderConfig.LevelKey = ""
	}

	logger, _ := zapConfig.Build()
	defer zap.ReplaceGlobals(logger)
}
