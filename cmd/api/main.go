package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/algoprep/algoprep-api/internal/config"
	"github.com/algoprep/algoprep-api/internal/database"
	"github.com/algoprep/algoprep-api/internal/handler"
	"github.com/algoprep/algoprep-api/internal/middleware"
	"github.com/algoprep/algoprep-api/internal/models"
	"github.com/algoprep/algoprep-api/internal/repository"
	"github.com/algoprep/algoprep-api/internal/router"
	"github.com/algoprep/algoprep-api/internal/service"
	"github.com/algoprep/algoprep-api/pkg/ai"
	"github.com/algoprep/algoprep-api/pkg/mailer"
	"github.com/algoprep/algoprep-api/pkg/msgcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.Ticket{},
		&models.TicketSolution{},
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	cipher, err := msgcrypt.New(cfg.ChatCipherKey)
	if err != nil {
		log.Fatalf("failed to initialize chat cipher: %v", err)
	}

	mail := mailer.NewNop()
	if cfg.SMTPHost != "" {
		mail, err = mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}, logger)
		if err != nil {
			log.Fatalf("failed to initialize mailer: %v", err)
		}
	}

	var planner ai.Planner
	if cfg.OpenAIAPIKey != "" {
		openaiPlanner, err := ai.NewOpenAIPlanner(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to initialize planner: %v", err)
		}
		planner = openaiPlanner
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	ticketRepo := repository.NewTicketRepository(db)
	chatRepo := repository.NewChatRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := service.NewHub(logger)
	bus := service.NewEventBus(hub, redisClient, cfg.EventChannelBase, natsConn, logger)

	notificationService := service.NewNotificationService(notificationRepo, userRepo, mail, validate, logger)
	chatService := service.NewChatService(chatRepo, questionRepo, cipher, cfg.ChatRetention, bus, logger)
	ticketService := service.NewTicketService(ticketRepo, questionRepo, bus, notificationService, validate, logger)
	signalingService := service.NewSignalingService(logger)
	realtimeService := service.NewRealtimeService(hub, chatService, signalingService, ticketService, validate, logger)
	plannerService := service.NewPlannerService(planner, validate, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(runCtx)
	chatService.Start(runCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		TicketHandler:       handler.NewTicketHandler(ticketService, validate, logger),
		ChatHandler:         handler.NewChatHandler(chatService, validate, logger),
		RealtimeHandler:     handler.NewRealtimeHandler(realtimeService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger),
		QuestionHandler:     handler.NewQuestionHandler(questionRepo, logger),
		PlannerHandler:      handler.NewPlannerHandler(plannerService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
