package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/convoflow-ai/convoflow/internal/api"
	"github.com/convoflow-ai/convoflow/internal/api/handlers"
	"github.com/convoflow-ai/convoflow/internal/api/middleware"
)

type RouterConfig struct {
	BotHandler      *handlers.BotHandler
	DocumentHandler *handlers.DocumentHandler
	SearchHandler   *handlers.SearchHandler
	ChatHandler     *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 25 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/bots", func(r chi.Router) {
		r.Post("/", cfg.BotHandler.Create)
		r.Get("/", cfg.BotHandler.List)
		r.Get("/{botID}", cfg.BotHandler.Get)
		r.Put("/{botID}", cfg.BotHandler.Update)
		r.Delete("/{botID}", cfg.BotHandler.Delete)

		r.Route("/{botID}/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/", cfg.DocumentHandler.List)
		})

		r.Post("/{botID}/search", cfg.SearchHandler.Search)
		r.Post("/{botID}/chat", cfg.ChatHandler.Chat)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/{documentID}", cfg.DocumentHandler.Get)
		r.Post("/{documentID}/reindex", cfg.DocumentHandler.Reindex)
		r.Delete("/{documentID}", cfg.DocumentHandler.Delete)
	})

	return r
}
