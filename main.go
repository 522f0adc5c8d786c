package main

import (
	"context"
	"os"
	"time"

	firebase "firebase.google.com/go"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/config"
	"github.com/techagentng/rentchat/db"
	"github.com/techagentng/rentchat/realtime"
	"github.com/techagentng/rentchat/server"
	"github.com/techagentng/rentchat/services"
	"google.golang.org/api/option"
)

func newLogger(conf *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	var log zerolog.Logger
	if conf.IsProduction() {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return log.Level(level).With().Timestamp().Str("app", "rentchat").Logger()
}

// initNotifier returns the FCM notifier when credentials are configured.
func initNotifier(ctx context.Context, conf *config.Config, conversationRepo db.ConversationRepository, deviceRepo db.DeviceRepository, log zerolog.Logger) services.Notifier {
	if conf.FirebaseCredentialsFile == "" {
		log.Warn().Msg("firebase credentials not set, push notifications disabled")
		return services.NoopNotifier{}
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(conf.FirebaseCredentialsFile))
	if err != nil {
		log.Fatal().Err(err).Msg("error initializing firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("error getting firebase messaging client")
	}
	log.Info().Msg("firebase messaging client initialized")
	return services.NewFCMNotifier(client, conversationRepo, deviceRepo, log)
}

func main() {
	conf, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("unable to load config")
	}
	log := newLogger(conf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gormDB, err := db.GetDB(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to the database")
	}
	clock := clockwork.NewRealClock()

	conversationRepo := db.NewConversationRepo(gormDB)
	messageRepo := db.NewMessageRepo(gormDB)
	presenceRepo := db.NewPresenceRepo(gormDB)
	reactionRepo := db.NewReactionRepo(gormDB)
	templateRepo := db.NewTemplateRepo(gormDB)
	deviceRepo := db.NewDeviceRepo(gormDB)

	hub := realtime.NewHub(log)
	defer hub.Close()

	var (
		transport   realtime.Transport = hub
		typingStore db.TypingStore
	)
	if conf.MultiNode() {
		redisClient, err := db.NewRedisClient(ctx, conf.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to connect to redis")
		}
		defer redisClient.Close()

		broker := realtime.NewRedisBroker(redisClient, hub, log)
		go func() {
			if err := broker.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("redis broker stopped")
			}
		}()
		transport = broker
		typingStore = db.NewRedisTypingStore(redisClient)
		log.Info().Msg("running multi-node with redis fan-out")
	} else {
		typingStore = db.NewMemoryTypingStore(clock)
	}

	var putter services.ObjectPutter
	if conf.AWSBucket != "" {
		s3Client, err := services.NewS3Client(ctx, conf)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to create s3 client")
		}
		putter = s3Client
	} else {
		log.Warn().Msg("aws bucket not set, media uploads disabled")
	}

	notifier := initNotifier(ctx, conf, conversationRepo, deviceRepo, log)

	conversationService := services.NewConversationService(conversationRepo, messageRepo, log)
	s := &server.Server{
		Config:              conf,
		Log:                 log,
		ConversationService: conversationService,
		MessageService:      services.NewMessageService(conversationRepo, messageRepo, transport, notifier, clock, log),
		PresenceService:     services.NewPresenceService(presenceRepo, transport, clock, log),
		TypingService:       services.NewTypingService(conversationRepo, typingStore, transport, clock, log),
		ReactionService:     services.NewReactionService(conversationRepo, messageRepo, reactionRepo, transport, clock, log),
		TemplateService:     services.NewTemplateService(templateRepo, clock, log),
		DeviceService:       services.NewDeviceService(deviceRepo, clock),
		MediaService:        services.NewMediaService(putter, conf, log),
		Gateway:             realtime.NewGateway(transport, conversationService.CanSubscribe, log),
	}

	if err := s.Start(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
	}
}
