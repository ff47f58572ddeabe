package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/ripplehq/ripple-backend/internal/config"
	"github.com/ripplehq/ripple-backend/internal/database"
	"github.com/ripplehq/ripple-backend/internal/handlers"
	"github.com/ripplehq/ripple-backend/internal/middleware"
	"github.com/ripplehq/ripple-backend/internal/routes"
	"github.com/ripplehq/ripple-backend/internal/services"
	"github.com/ripplehq/ripple-backend/internal/store"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	mongoClient, db, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect(mongoClient)

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	redisClient, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Ensure MongoDB indexes
	if err := store.EnsureAccountIndexes(context.Background(), db); err != nil {
		log.Fatal("Failed to ensure account indexes:", err)
	}
	if err := services.EnsurePostIndexes(context.Background(), db); err != nil {
		log.Fatal("Failed to ensure post indexes:", err)
	}
	log.Println("✅ MongoDB indexes ensured")

	accounts := store.NewMongoAccounts(db)

	issuer, err := services.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatal("Failed to configure token issuer:", err)
	}

	smtpAddr := cfg.SMTPHost
	if smtpAddr != "" && cfg.SMTPPort > 0 {
		smtpAddr = fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	}
	mailer, err := services.NewSMTPMailer(smtpAddr, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, !cfg.IsProduction(), cfg.MailTimeout)
	if err != nil {
		log.Fatal("Failed to configure mailer:", err)
	}
	if mailer.IsEnabled() {
		log.Println("✅ SMTP mailer configured")
	} else {
		log.Println("Warning: SMTP credentials not found. Verification and reset emails will not be sent")
	}

	lockout := services.NewLockoutPolicy(cfg.LoginMaxAttempts, cfg.LockoutDuration)
	auth := services.NewAuthService(accounts, issuer, lockout, mailer, services.AuthConfig{
		BcryptCost:  cfg.BcryptCost,
		VerifyTTL:   cfg.VerifyTokenTTL,
		ResetTTL:    cfg.ResetTokenTTL,
		FrontendURL: cfg.FrontendURL,
	})
	posts := services.NewPostService(db, accounts)

	var uploads *services.UploadService
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		uploads, err = services.NewUploadService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("File uploads will not be available")
			uploads = nil
		} else {
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. File uploads will not be available")
	}

	h := handlers.New(auth, posts, uploads, accounts)
	limiter := middleware.NewRedisLimiter(redisClient)

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.IsProduction() {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.HostCheck(cfg.AllowedHost))
		log.Println("✅ Production security enabled (security headers, host check)")
	}
	r.Use(middleware.RateLimit(limiter, middleware.RateLimitMaxRequests, middleware.RateLimitWindow))

	routes.Setup(r, h, middleware.RequireAuth(auth), limiter)

	log.Printf("🚀 Ripple backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
