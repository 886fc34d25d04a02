package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/learnpath/internal/apperror"
	"github.com/sakif/learnpath/internal/auth"
	"github.com/sakif/learnpath/internal/generator"
	"github.com/sakif/learnpath/internal/service"
)

// GenerateHandler serves curriculum generation. The draft it returns is
// never persisted; the client reviews it and saves it through
// POST /api/learning-paths.
type GenerateHandler struct {
	gen    *generator.Client
	logger *slog.Logger
}

func NewGenerateHandler(gen *generator.Client, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{gen: gen, logger: logger}
}

// HandleGenerate produces a draft curriculum for a topic.
//
// HTTP: POST /api/generate
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Topic string `json:"topic"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		writeError(w, apperror.ValidationFailed("topic", "topic is required"))
		return
	}
	if len(topic) > service.MaxTopicLength {
		writeError(w, apperror.ValidationFailed("topic", "topic is too long"))
		return
	}

	draft, err := h.gen.Generate(r.Context(), topic)
	if err != nil {
		h.logger.Error("curriculum generation failed",
			slog.String("userID", userID),
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.logger.Info("curriculum generated",
		slog.String("userID", userID),
		slog.String("topic", topic),
	)
	writeJSON(w, http.StatusOK, draft)
}
