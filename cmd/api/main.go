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
	"github.com/rs/zerolog"

	"github.com/assessly/assess-api/internal/config"
	"github.com/assessly/assess-api/internal/database"
	"github.com/assessly/assess-api/internal/handler"
	"github.com/assessly/assess-api/internal/middleware"
	"github.com/assessly/assess-api/internal/models"
	"github.com/assessly/assess-api/internal/repository"
	"github.com/assessly/assess-api/internal/router"
	"github.com/assessly/assess-api/internal/service"
	"github.com/assessly/assess-api/pkg/ai"
	cloud "github.com/assessly/assess-api/pkg/cloudinary"
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
		&models.Course{},
		&models.Enrollment{},
		&models.Question{},
		&models.BaseExample{},
		&models.Submission{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var assessor ai.Assessor
	if cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIAssessor(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create assessor: %v", err)
		}
		assessor = openAI
	} else {
		logger.Warn().Msg("no openai api key configured; grading passes will fail submissions")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	gradingService := service.NewGradingService(submissionRepo, assessor, cfg.GradingBatchPause, logger)

	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()

	queue := service.NewGradingQueue(nil, cfg.GradingSubject, cfg.GradingQueueSize, gradingService, logger)
	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Close()
		queue = service.NewGradingQueue(conn, cfg.GradingSubject, cfg.GradingQueueSize, gradingService, logger)
	}
	if err := queue.Start(queueCtx); err != nil {
		log.Fatalf("failed to start grading queue: %v", err)
	}

	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.TokenTTL, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	courseService := service.NewCourseService(courseRepo, userRepo, validate, logger)
	questionService := service.NewQuestionService(questionRepo, courseRepo, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, questionRepo, courseRepo, queue, validate, logger)

	deps := router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(authService, logger),
		UserHandler:       handler.NewUserHandler(userService, logger),
		CourseHandler:     handler.NewCourseHandler(courseService, logger),
		QuestionHandler:   handler.NewQuestionHandler(questionService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	}

	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()

		resultService := service.NewResultService(submissionRepo, questionRepo, courseRepo, redisClient, cfg.InsightsCacheTTL, validate, logger)
		deps.ResultHandler = handler.NewResultHandler(resultService, logger)
	} else {
		resultService := service.NewResultService(submissionRepo, questionRepo, courseRepo, nil, cfg.InsightsCacheTTL, validate, logger)
		deps.ResultHandler = handler.NewResultHandler(resultService, logger)
	}

	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploadService := service.NewUploadService(uploader, 10, logger)
		deps.UploadHandler = handler.NewUploadHandler(uploadService, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopQueue)
}

func waitForShutdown(app *fiber.App, stopQueue context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	stopQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
