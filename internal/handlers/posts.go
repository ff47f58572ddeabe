package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ripplehq/ripple-backend/internal/middleware"
	"github.com/ripplehq/ripple-backend/internal/services"
	"github.com/ripplehq/ripple-backend/internal/store"
)

const maxPostBodyLength = 2000

type CreatePostRequest struct {
	Body     string `json:"body"`
	ImageURL string `json:"image_url,omitempty"`
}

type CreateCommentRequest struct {
	Body     string `json:"body"`
	ParentID string `json:"parent_id,omitempty"`
}

func parsePaging(r *http.Request) (skip, limit int64) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = int64(v)
		}
	}
	if s := r.URL.Query().Get("skip"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			skip = int64(v)
		}
	}
	return skip, limit
}

func objectIDParam(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// CreatePost publishes a new post by the signed-in account.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())

	var req CreatePostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		respondError(w, http.StatusBadRequest, "Post body is required")
		return
	}
	if len(body) > maxPostBodyLength {
		respondError(w, http.StatusBadRequest, "Post body is too long")
		return
	}

	post, err := h.Posts.CreatePost(r.Context(), p.Account, body, req.ImageURL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create post")
		return
	}
	respondCreated(w, "Post created", map[string]any{"post": post})
}

// ListPosts returns the newest-first feed, optionally filtered by author
// handle via ?author=.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	skip, limit := parsePaging(r)

	var authorID *primitive.ObjectID
	if handle := r.URL.Query().Get("author"); handle != "" {
		account, err := h.Accounts.ByIdentifier(r.Context(), handle)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Account not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to load posts")
			return
		}
		authorID = &account.ID
	}

	posts, hasMore, err := h.Posts.ListPosts(r.Context(), authorID, skip, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load posts")
		return
	}
	respondOK(w, "OK", map[string]any{"posts": posts, "has_more": hasMore})
}

// GetPost returns a single post.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	post, err := h.Posts.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			respondError(w, http.StatusNotFound, "Post not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load post")
		return
	}
	respondOK(w, "OK", map[string]any{"post": post})
}

// DeletePost removes a post. Author, moderator, or admin.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	id, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}

	err := h.Posts.DeletePost(r.Context(), p.Account, id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			respondError(w, http.StatusNotFound, "Post not found")
		case errors.Is(err, services.ErrNotOwner):
			respondError(w, http.StatusForbidden, "You cannot delete this post")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to delete post")
		}
		return
	}
	respondOK(w, "Post deleted", nil)
}

// CreateComment adds a comment or a one-level reply to a post.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	postID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		respondError(w, http.StatusBadRequest, "Comment body is required")
		return
	}
	if len(body) > maxPostBodyLength {
		respondError(w, http.StatusBadRequest, "Comment body is too long")
		return
	}

	var parentID *primitive.ObjectID
	if req.ParentID != "" {
		pid, err := primitive.ObjectIDFromHex(req.ParentID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid parent comment ID")
			return
		}
		parentID = &pid
	}

	comment, err := h.Posts.CreateComment(r.Context(), p.Account, postID, parentID, body)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			respondError(w, http.StatusNotFound, "Post not found")
		case errors.Is(err, services.ErrCommentNotFound):
			respondError(w, http.StatusNotFound, "Parent comment not found")
		case errors.Is(err, services.ErrReplyDepth):
			respondError(w, http.StatusBadRequest, "Replies cannot be nested")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to create comment")
		}
		return
	}
	respondCreated(w, "Comment created", map[string]any{"comment": comment})
}

// ListComments returns a post's comments oldest-first.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	skip, limit := parsePaging(r)

	comments, hasMore, err := h.Posts.ListComments(r.Context(), postID, skip, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load comments")
		return
	}
	respondOK(w, "OK", map[string]any{"comments": comments, "has_more": hasMore})
}

// DeleteComment removes a comment. Author, moderator, or admin.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	id, ok := objectIDParam(w, r, "commentID")
	if !ok {
		return
	}

	err := h.Posts.DeleteComment(r.Context(), p.Account, id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCommentNotFound):
			respondError(w, http.StatusNotFound, "Comment not found")
		case errors.Is(err, services.ErrNotOwner):
			respondError(w, http.StatusForbidden, "You cannot delete this comment")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to delete comment")
		}
		return
	}
	respondOK(w, "Comment deleted", nil)
}

// LikePost records a like; liking twice is a no-op.
func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	postID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.Posts.LikePost(r.Context(), p.Account, postID); err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			respondError(w, http.StatusNotFound, "Post not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to like post")
		return
	}
	respondOK(w, "Post liked", nil)
}

// UnlikePost removes a like; removing a missing like is a no-op.
func (h *Handler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	postID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.Posts.UnlikePost(r.Context(), p.Account, postID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to unlike post")
		return
	}
	respondOK(w, "Post unliked", nil)
}

// GetStats returns platform-wide counts.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Posts.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	respondOK(w, "OK", map[string]any{"stats": stats})
}
