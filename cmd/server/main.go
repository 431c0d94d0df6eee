package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/tuneverse/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 16,
	}
	queueLimit = configVar[int]{
		envKey:       "SERVER_QUEUE_LIMIT",
		flagKey:      "queue-limit",
		defaultValue: 100,
	}
	chatHistoryLimit = configVar[int]{
		envKey:       "SERVER_CHAT_HISTORY_LIMIT",
		flagKey:      "chat-history-limit",
		defaultValue: 50,
	}
	hostGracePeriod = configVar[time.Duration]{
		envKey:       "SERVER_HOST_GRACE_PERIOD",
		flagKey:      "host-grace-period",
		defaultValue: 30 * time.Second,
	}
	roomCleanupDelay = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_CLEANUP_DELAY",
		flagKey:      "room-cleanup-delay",
		defaultValue: 30 * time.Second,
	}
	sendBuffer = configVar[int]{
		envKey:       "SERVER_SEND_BUFFER",
		flagKey:      "send-buffer",
		defaultValue: 64,
	}
	directoryDriver = configVar[string]{
		envKey:       "SERVER_DIRECTORY_DRIVER",
		flagKey:      "directory-driver",
		defaultValue: app.DirectoryRedis,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	postgresDSN = configVar[string]{
		envKey:       "POSTGRES_DSN",
		flagKey:      "postgres-dsn",
		defaultValue: "",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "JWT secret, anonymous connections when empty")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of members in the room")
	pflag.Int(queueLimit.flagKey, queueLimit.defaultValue, "Maximum number of tracks in the queue")
	pflag.Int(chatHistoryLimit.flagKey, chatHistoryLimit.defaultValue, "Number of chat messages kept per room")
	pflag.Duration(hostGracePeriod.flagKey, hostGracePeriod.defaultValue, "How long a disconnected host keeps the room")
	pflag.Duration(roomCleanupDelay.flagKey, roomCleanupDelay.defaultValue, "How long an empty room waits before deletion")
	pflag.Int(sendBuffer.flagKey, sendBuffer.defaultValue, "Outbound messages buffered per connection")
	pflag.String(directoryDriver.flagKey, directoryDriver.defaultValue, "Room directory store: none, redis or postgres")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.String(postgresDSN.flagKey, postgresDSN.defaultValue, "Postgres connection string")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(secret)
	bind(port)
	bind(host)
	bind(logLevel)
	bind(membersLimit)
	bind(queueLimit)
	bind(chatHistoryLimit)
	bind(hostGracePeriod)
	bind(roomCleanupDelay)
	bind(sendBuffer)
	bind(directoryDriver)
	bind(redisPort)
	bind(redisHost)
	bind(redisPassword)
	bind(postgresDSN)

	return &app.AppConfig{
		Secret:           viper.GetString(secret.flagKey),
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		MembersLimit:     viper.GetInt(membersLimit.flagKey),
		QueueLimit:       viper.GetInt(queueLimit.flagKey),
		ChatHistoryLimit: viper.GetInt(chatHistoryLimit.flagKey),
		HostGracePeriod:  viper.GetDuration(hostGracePeriod.flagKey),
		RoomCleanupDelay: viper.GetDuration(roomCleanupDelay.flagKey),
		SendBuffer:       viper.GetInt(sendBuffer.flagKey),
		DirectoryDriver:  viper.GetString(directoryDriver.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
		PostgresDSN:      viper.GetString(postgresDSN.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
