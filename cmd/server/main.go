package main

import (
	"context"
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/aniview/aniview/backend/internal/repositories"
	"github.com/aniview/aniview/backend/internal/router"
	"github.com/aniview/aniview/backend/pkg/config"
	"github.com/aniview/aniview/backend/pkg/firebase"
	"github.com/aniview/aniview/backend/validators"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()
	ctx := context.Background()

	var commentRepo repositories.CommentRepository
	var authClient *auth.Client

	switch cfg.StoreDriver {
	case "firestore":
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		defer app.Close()
		commentRepo = repositories.NewFirestoreCommentRepository(app.Firestore)
		authClient = app.AuthClient

	case "mongo":
		client, err := config.InitMongo(cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer config.CloseMongo(client)
		commentRepo = repositories.NewMongoCommentRepository(client.Database(cfg.MongoDatabase))

		// The Firebase auth client still gates mutations when available.
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Printf("Firebase unavailable (%v); falling back to header identity.", err)
		} else {
			defer app.Close()
			authClient = app.AuthClient
		}

	case "memory":
		commentRepo = repositories.NewMemoryCommentRepository()
		log.Println("Using in-memory comment store; data will not survive a restart.")

	default:
		log.Fatalf("Unknown STORE_DRIVER %q (want firestore, mongo or memory)", cfg.StoreDriver)
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Validator
	e.Validator = validators.NewValidator()

	// Setup routes and dependencies
	router.SetupRoutes(e, commentRepo, authClient)

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
