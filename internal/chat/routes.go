package chat

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/api", func(api chi.Router) {
		api.Get("/whatsapp/webhook", h.VerifyWebhook)
		api.Post("/whatsapp/webhook", h.HandleWebhook)
		api.Post("/chat", h.HandleChat)
		api.Get("/conversations", h.ListConversations)
		api.Get("/analytics", h.Analytics)
		api.Get("/health", h.Health)
	})
}
