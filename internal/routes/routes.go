package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ripplehq/ripple-backend/internal/handlers"
	"github.com/ripplehq/ripple-backend/internal/middleware"
	"github.com/ripplehq/ripple-backend/internal/models"
)

// Setup mounts every route. Credential endpoints get the tighter login rate
// limit on top of the global one applied in main.
func Setup(r *chi.Mux, h *handlers.Handler, auth func(http.Handler) http.Handler, limiter middleware.Limiter) {
	loginLimit := middleware.RateLimit(limiter, middleware.LoginRateLimitMaxRequests, middleware.LoginRateLimitWindow)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","time":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
	})

	// Auth
	r.Group(func(r chi.Router) {
		r.Use(loginLimit)
		r.Post("/api/auth/signup", h.Signup)
		r.Post("/api/auth/signin", h.Signin)
		r.Post("/api/auth/refresh", h.Refresh)
		r.Post("/api/auth/verify/request", h.RequestVerification)
		r.Post("/api/auth/reset/request", h.RequestReset)
		r.Post("/api/auth/reset/confirm", h.ConfirmReset)
	})
	r.Post("/api/auth/logout", h.Logout)
	r.Post("/api/auth/verify/confirm", h.ConfirmVerification)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/api/auth/logout-all", h.LogoutAll)
		r.Get("/api/auth/me", h.Me)

		// Account
		r.Put("/api/account", h.UpdateProfile)
		r.Post("/api/account/password", h.ChangePassword)

		// Posts
		r.Post("/api/posts", h.CreatePost)
		r.Delete("/api/posts/{id}", h.DeletePost)
		r.Post("/api/posts/{id}/comments", h.CreateComment)
		r.Delete("/api/comments/{commentID}", h.DeleteComment)
		r.Post("/api/posts/{id}/like", h.LikePost)
		r.Delete("/api/posts/{id}/like", h.UnlikePost)

		// Uploads
		r.Post("/api/upload", h.UploadFile)
	})

	// Public reads
	r.Get("/api/accounts/{handle}", h.GetProfile)
	r.Get("/api/posts", h.ListPosts)
	r.Get("/api/posts/{id}", h.GetPost)
	r.Get("/api/posts/{id}/comments", h.ListComments)
	r.Get("/api/stats", h.GetStats)

	// Admin
	r.Group(func(r chi.Router) {
		r.Use(auth, adminOnly)
		r.Post("/api/admin/accounts/{id}/deactivate", h.DeactivateAccount)
		r.Post("/api/admin/accounts/{id}/activate", h.ActivateAccount)
		r.Put("/api/admin/accounts/{id}/role", h.SetAccountRole)
	})
}
