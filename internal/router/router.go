package router

import (
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/aniview/aniview/backend/internal/handlers"
	"github.com/aniview/aniview/backend/internal/middleware"
	"github.com/aniview/aniview/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Logger())
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies.
// authClient may be nil, in which case mutation routes fall back to the
// development header-identity middleware.
func SetupRoutes(e *echo.Echo, commentRepo repositories.CommentRepository, authClient *auth.Client) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	public := e.Group("/api/v1")

	protected := e.Group("/api/v1")
	if authClient != nil {
		protected.Use(middleware.FirebaseAuthMiddleware(authClient))
		log.Println("Firebase authentication middleware applied to mutation routes.")
	} else {
		protected.Use(middleware.HeaderAuthMiddleware())
		log.Println("WARNING: header-identity middleware in use; for local development only.")
	}

	commentHandler := handlers.NewCommentHandler(commentRepo)
	commentHandler.RegisterCommentRoutes(public, protected)
	log.Println("Comment routes configured.")
}
