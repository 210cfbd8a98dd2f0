package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"taskflow-project/backend/config"
	"taskflow-project/backend/handlers"
	"taskflow-project/backend/logging"
	"taskflow-project/backend/middleware"
	"taskflow-project/backend/realtime"
	"taskflow-project/backend/repositories"
	"taskflow-project/backend/services"
	"taskflow-project/backend/utils"
)

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logging.Logger.Fatalf("Event ID: CONFIG_ERROR, Description: %v", err)
	}

	logging.InitLogger(logging.Options{SystemName: "taskflow-backend", FilePath: cfg.LogFile, Level: cfg.LogLevel})
	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting TaskFlow backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongoClient, err := repositories.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logging.Logger.Warnf("Event ID: DB_DISCONNECT_FAILED, Description: %v", err)
		}
	}()
	db := mongoClient.Database(cfg.MongoDBName)
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Using MongoDB database %s", cfg.MongoDBName)

	userRepo := repositories.NewUserRepo(db)
	projectRepo := repositories.NewProjectRepo(db)
	taskRepo := repositories.NewTaskRepo(db)
	messageRepo := repositories.NewMessageRepo(db)
	directMessageRepo := repositories.NewDirectMessageRepo(db)
	commentRepo := repositories.NewCommentRepo(db)
	for _, repo := range []indexer{userRepo, projectRepo, taskRepo, messageRepo, directMessageRepo, commentRepo} {
		if err := repo.EnsureIndexes(ctx); err != nil {
			logging.Logger.Fatalf("Event ID: DB_INDEX_FAILED, Description: %v", err)
		}
	}

	notificationRepo, err := repositories.NewNotificationRepo(cfg.CassandraHosts, cfg.CassandraKeyspace)
	if err != nil {
		logging.Logger.Fatalf("Event ID: CASSANDRA_CONNECTION_FAILED, Description: Failed to initialize notification repository: %v", err)
	}
	defer notificationRepo.CloseSession()
	if err := notificationRepo.CreateTable(); err != nil {
		logging.Logger.Fatalf("Event ID: CASSANDRA_TABLE_FAILED, Description: %v", err)
	}

	var graph services.DependencyGraph
	if cfg.GraphEnabled() {
		depRepo, err := repositories.NewDependencyRepo(ctx, cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword)
		if err != nil {
			logging.Logger.Fatalf("Event ID: NEO4J_CONNECTION_FAILED, Description: %v", err)
		}
		defer depRepo.Close(context.Background())
		if err := depRepo.EnsureConstraints(ctx); err != nil {
			logging.Logger.Fatalf("Event ID: NEO4J_CONSTRAINT_FAILED, Description: %v", err)
		}
		graph = depRepo
	} else {
		logging.Logger.Warn("Event ID: NEO4J_DISABLED, Description: NEO4J_URI is not set, task dependencies are disabled")
	}

	hub := realtime.NewHub()
	hub.Start()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = realtime.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logging.Logger.Fatalf("Event ID: NATS_CONNECTION_FAILED, Description: %v", err)
		}
	}
	broker, err := realtime.NewBroker(hub, natsConn, realtime.DefaultSubject)
	if err != nil {
		logging.Logger.Fatalf("Event ID: NATS_SUBSCRIBE_FAILED, Description: %v", err)
	}

	var mailer services.Mailer = utils.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = utils.NewSMTPMailer(utils.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}

	blackList, err := services.LoadBlackList(cfg.PasswordBlacklist)
	if err != nil {
		logging.Logger.Fatalf("Event ID: BLACKLIST_LOAD_FAILED, Description: Failed to load password blacklist: %v", err)
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	notificationService := services.NewNotificationService(notificationRepo, userRepo, broker)
	userService := services.NewUserService(userRepo, projectRepo, taskRepo, tokens, mailer, blackList, cfg.OTPTTL)
	projectService := services.NewProjectService(projectRepo, taskRepo, userRepo, commentRepo, messageRepo,
		graph, notificationService, broker)
	taskService := services.NewTaskService(taskRepo, projectRepo, userRepo, commentRepo, graph,
		notificationService, broker)
	messageService := services.NewMessageService(messageRepo, projectRepo, broker)
	directMessageService := services.NewDirectMessageService(directMessageRepo, userRepo, notificationService, broker)
	commentService := services.NewCommentService(commentRepo, taskService, projectService, notificationService)

	router := handlers.NewRouter(handlers.RouterConfig{
		Tokens:         tokens,
		CORSOrigin:     cfg.CORSOrigin,
		Metrics:        middleware.NewMetrics(),
		WebSocket:      realtime.ServeWS(hub, tokens, cfg.CORSOrigin),
		Auth:           handlers.NewAuthHandler(userService),
		Users:          handlers.NewUserHandler(userService),
		Projects:       handlers.NewProjectHandler(projectService),
		Tasks:          handlers.NewTaskHandler(taskService),
		Messages:       handlers.NewMessageHandler(messageService),
		DirectMessages: handlers.NewDirectMessageHandler(directMessageService),
		Notifications:  handlers.NewNotificationHandler(notificationService),
		Comments:       handlers.NewCommentHandler(commentService),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logging.Logger.Infof("Event ID: SERVER_SHUTDOWN, Description: Received %s, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Errorf("Event ID: SERVER_SHUTDOWN_FAILED, Description: %v", err)
	}

	broker.Close()
	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			logging.Logger.Warnf("Event ID: NATS_DRAIN_FAILED, Description: %v", err)
		}
	}
	if err := hub.Stop(); err != nil {
		logging.Logger.Warnf("Event ID: HUB_STOP_FAILED, Description: %v", err)
	}
	logging.Logger.Info("Event ID: SERVICE_STOPPED, Description: TaskFlow backend stopped")
}
