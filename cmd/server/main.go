package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/purrfect/backend/internal/config"
	"github.com/purrfect/backend/internal/database"
	"github.com/purrfect/backend/internal/handlers"
	"github.com/purrfect/backend/internal/middleware"
	"github.com/purrfect/backend/internal/services"
	"github.com/purrfect/backend/internal/storage"
	"github.com/purrfect/backend/pkg/logger"
	"github.com/purrfect/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.AccessTokenMinutes)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	// Avatar storage is optional; the API runs without it and the
	// upload endpoint reports unavailability.
	var avatars *storage.AvatarStore
	if cfg.MinIO.Endpoint != "" {
		avatars, err = storage.NewAvatarStore(cfg.MinIO)
		if err != nil {
			log.Fatalf("minio initialization failed: %v", err)
		}
		if err := avatars.EnsureBucket(context.Background()); err != nil {
			log.Fatalf("failed ensuring minio bucket: %v", err)
		}
	}

	accessService := services.NewAccessService(db)
	auditService := services.NewAuditService(db)

	authHandler := handlers.NewAuthHandler(db, auditService, avatars, cfg)
	usersHandler := handlers.NewUsersHandler(db)
	coursesHandler := handlers.NewCoursesHandler(db, accessService, auditService)
	assignmentsHandler := handlers.NewAssignmentsHandler(db, accessService, auditService)
	activitiesHandler := handlers.NewActivitiesHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/version", handlers.GetVersion)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	authRoutes.Post("/avatar", authMiddleware.RequireAuth, authHandler.UploadAvatar)

	api.Get("/users/search", authMiddleware.RequireAuth, usersHandler.Search)
	api.Get("/users/me/stats", authMiddleware.RequireAuth, usersHandler.MyStats)
	api.Get("/users/leaderboard", authMiddleware.RequireAuth, usersHandler.Leaderboard)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Get("/:id", usersHandler.Get)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Delete("/:id", usersHandler.Delete)

	courseRoutes := api.Group("/courses", authMiddleware.RequireAuth)
	courseRoutes.Post("/", middleware.TeacherOnly, coursesHandler.Create)
	courseRoutes.Get("/", coursesHandler.List)
	courseRoutes.Post("/join", coursesHandler.Join)
	courseRoutes.Get("/:id", coursesHandler.Get)
	courseRoutes.Put("/:id", coursesHandler.Update)
	courseRoutes.Delete("/:id", coursesHandler.Delete)
	courseRoutes.Get("/:id/members", coursesHandler.Members)
	courseRoutes.Delete("/:id/members/me", coursesHandler.Leave)
	courseRoutes.Get("/:id/assignments", coursesHandler.Assignments)

	assignmentRoutes := api.Group("/assignments", authMiddleware.RequireAuth)
	assignmentRoutes.Post("/", middleware.TeacherOnly, assignmentsHandler.Create)
	assignmentRoutes.Get("/me", assignmentsHandler.ListMine)
	assignmentRoutes.Get("/:id", assignmentsHandler.Get)
	assignmentRoutes.Put("/:id", assignmentsHandler.Update)
	assignmentRoutes.Delete("/:id", assignmentsHandler.Delete)
	assignmentRoutes.Post("/:id/submit", assignmentsHandler.Submit)
	assignmentRoutes.Put("/:id/grade", assignmentsHandler.Grade)

	activityRoutes := api.Group("/activities", authMiddleware.RequireAuth)
	activityRoutes.Get("/", activitiesHandler.List)
	activityRoutes.Get("/unread-count", activitiesHandler.UnreadCount)
	activityRoutes.Put("/read-all", activitiesHandler.MarkAllRead)
	activityRoutes.Put("/:id/read", activitiesHandler.MarkRead)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
