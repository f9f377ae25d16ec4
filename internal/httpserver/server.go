package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/video-feed/internal/assistant"
	"github.com/blackmichael/video-feed/internal/config"
	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/rs/cors"
)

// Assistant answers AI requests. It is optional.
type Assistant interface {
	Recommend(ctx context.Context, expertise string) ([]assistant.Idea, error)
	Ask(ctx context.Context, question string) (string, error)
}

// Services are the domain services the HTTP API exposes.
type Services struct {
	Feed       *domain.FeedService
	Engagement *domain.EngagementService
	Moderation *domain.ModerationService
	Submit     *domain.SubmitService
	Users      domain.UserStore

	// Optional collaborators; nil disables the matching routes.
	Assistant Assistant
	Realtime  http.Handler
	Blobs     http.Handler
}

// Server is the HTTP server for the video feed API.
type Server struct {
	cfg        *config.Config
	svc        Services
	logger     *slog.Logger
	limiter    *rateLimiter
	httpServer *http.Server
}

// NewServer creates a new HTTP server over the given services.
func NewServer(cfg *config.Config, svc Services, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		limiter: newRateLimiter(cfg.MutationsPerSecond, cfg.MutationBurst),
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Minute, // uploads
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.HandleFunc("GET /api/posts/{id}", s.handleGetPost)
	mux.HandleFunc("POST /api/posts", s.limiter.limit(s.handleSubmit))
	mux.HandleFunc("POST /api/posts/{id}/like", s.limiter.limit(s.handleLike))
	mux.HandleFunc("POST /api/posts/{id}/share", s.limiter.limit(s.handleShare))
	mux.HandleFunc("DELETE /api/posts/{id}", s.limiter.limit(s.handleDelete))
	mux.HandleFunc("GET /api/me", s.handleMe)
	mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	mux.HandleFunc("POST /api/assistant/ideas", s.limiter.limit(s.handleIdeas))
	mux.HandleFunc("POST /api/assistant/chat", s.limiter.limit(s.handleChat))
	if s.svc.Realtime != nil {
		mux.Handle("GET /ws", s.svc.Realtime)
	}
	if s.svc.Blobs != nil {
		mux.Handle("GET /blobs/", http.StripPrefix("/blobs", s.svc.Blobs))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return withLogging(s.logger, c.Handler(withUser([]byte(s.cfg.JWTSecret), mux)))
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.PageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > domain.MaxPageSize {
			s.logger.Warn("invalid limit parameter", "limit", l, "error", err)
			writeError(w, http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("limit must be between 1 and %d", domain.MaxPageSize))
			return
		}
		limit = parsed
	}
	cursor := r.URL.Query().Get("cursor")

	page, err := s.svc.Feed.FetchPage(r.Context(), cursor, limit)
	if err != nil {
		s.writeDomainError(w, r, "fetch feed", err)
		return
	}

	viewer := userFrom(r)
	posts := make([]postResponse, len(page.Posts))
	for i := range page.Posts {
		posts[i] = toPostResponse(&page.Posts[i], viewer)
	}
	writeJSON(w, http.StatusOK, feedResponse{
		Posts:      posts,
		Cursor:     page.Cursor,
		IsLastPage: page.IsLastPage,
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.svc.Feed.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, "get post", err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post, userFrom(r)))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req := domain.SubmitRequest{UserID: userFrom(r)}
	if req.UserID == "" {
		s.writeDomainError(w, r, "submit post", domain.ErrAuthRequired)
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes()+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid form data")
			return
		}
		defer r.MultipartForm.RemoveAll()

		req.Title = r.FormValue("title")
		req.Description = r.FormValue("description")
		req.ExternalURL = r.FormValue("url")

		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			req.Upload = &domain.Upload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			}
		}
	} else {
		var body submitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid JSON body")
			return
		}
		req.Title, req.Description, req.ExternalURL = body.Title, body.Description, body.URL
	}

	post, err := s.svc.Submit.Submit(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, "submit post", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(post, req.UserID))
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	var body likeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid JSON body")
		return
	}

	res, err := s.svc.Engagement.Like(r.Context(), r.PathValue("id"), userFrom(r), body.Liked)
	if err != nil {
		s.writeDomainError(w, r, "toggle like", err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{NowLiked: res.NowLiked, LikeCount: res.LikeCount})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Engagement.Share(r.Context(), r.PathValue("id"), userFrom(r))
	if err != nil {
		s.writeDomainError(w, r, "share post", err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{ShareCount: res.ShareCount, URL: res.MediaReference})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Moderation.DeletePost(r.Context(), r.PathValue("id"), userFrom(r), nil)
	if err != nil {
		s.writeDomainError(w, r, "delete post", err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		PostID:         report.PostID,
		AuthorID:       report.AuthorID,
		BlobDeleted:    report.BlobDeleted,
		LedgerRecorded: report.LedgerRecorded,
		Warnings:       report.Warnings,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		s.writeDomainError(w, r, "get current user", domain.ErrAuthRequired)
		return
	}
	user, err := s.svc.Users.GetUser(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		user = &domain.UserRecord{ID: userID}
	} else if err != nil {
		s.writeDomainError(w, r, "get current user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleIdeas(w http.ResponseWriter, r *http.Request) {
	if !s.assistantReady(w, r) {
		return
	}
	var body ideasRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid JSON body")
		return
	}
	ideas, err := s.svc.Assistant.Recommend(r.Context(), body.Expertise)
	if err != nil {
		s.writeDomainError(w, r, "recommend ideas", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ideas": ideas})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.assistantReady(w, r) {
		return
	}
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid JSON body")
		return
	}
	answer, err := s.svc.Assistant.Ask(r.Context(), body.Question)
	if err != nil {
		s.writeDomainError(w, r, "ask assistant", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// assistantReady requires a signed-in user and a configured assistant.
func (s *Server) assistantReady(w http.ResponseWriter, r *http.Request) bool {
	if userFrom(r) == "" {
		s.writeDomainError(w, r, "assistant", domain.ErrAuthRequired)
		return false
	}
	if s.svc.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "Unavailable", "assistant is not configured")
		return false
	}
	return true
}

// writeDomainError maps the domain error taxonomy to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		status  int
		errType string
		message string
	)
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		status, errType, message = http.StatusUnauthorized, "AuthRequired", "please sign in"
	case errors.Is(err, domain.ErrForbidden):
		status, errType, message = http.StatusForbidden, "Forbidden", "only admins can do that"
	case errors.Is(err, domain.ErrNotFound):
		status, errType, message = http.StatusNotFound, "NotFound", "not found"
	case errors.Is(err, domain.ErrAlreadyShared):
		status, errType, message = http.StatusConflict, "AlreadyShared", "you already shared this video"
	case errors.Is(err, domain.ErrValidation):
		status, errType, message = http.StatusBadRequest, "InvalidRequest", "invalid request"
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			message = ve.Error()
		}
	case errors.Is(err, domain.ErrStoreUnavailable):
		status, errType, message = http.StatusServiceUnavailable, "Unavailable", "service temporarily unavailable"
	default:
		status, errType, message = http.StatusInternalServerError, "InternalError", "internal error"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "path", r.URL.Path, "user", userFrom(r), "error", err)
	} else {
		s.logger.Warn("request rejected", "op", op, "path", r.URL.Path, "user", userFrom(r), "status", status, "error", err)
	}
	writeError(w, status, errType, message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack supports the websocket upgrade on /ws.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
