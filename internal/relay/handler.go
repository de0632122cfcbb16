// Package relay exposes an LLM provider as a plain streaming HTTP endpoint.
package relay

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/samsaffron/streamchat/internal/config"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/llm"
)

// Options configures a Handler. Zero values fall back to the defaults below;
// an empty SystemPrompt uses config.DefaultSystemPrompt. ProviderType names
// the preset, such as "groq", reported by /healthz.
type Options struct {
	SystemPrompt   string
	ProviderType   string
	Model          string
	Temperature    float32
	MaxTokens      int
	AllowedOrigins []string
	Logger         *slog.Logger
}

const (
	DefaultTemperature float32 = 0.5
	DefaultMaxTokens           = 1024
)

// Handler relays chat requests to a single provider. It keeps no state
// between requests.
type Handler struct {
	provider llm.Provider
	opts     Options
	origins  *originMatcher
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds a handler for provider. Invalid origin patterns are
// reported as an error.
func NewHandler(provider llm.Provider, opts Options) (*Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins, err := newOriginMatcher(opts.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	h := &Handler{
		provider: provider,
		opts:     opts,
		origins:  origins,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.origins.Allowed(origin)
		},
	}
	return h, nil
}

// Routes returns the relay routes wrapped in CORS and request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ChatPath, h.handleChat)
	mux.HandleFunc(ChatWSPath, h.handleChatWS)
	mux.HandleFunc(HealthPath, h.handleHealth)
	return requestLogger(h.logger, h.cors(mux))
}

// BuildRequest prepends the system turn to turns and applies the generation
// settings from opts. Every request starts with exactly one system turn.
func BuildRequest(opts Options, turns []conversation.Turn) llm.Request {
	system := opts.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = config.DefaultSystemPrompt
	}
	messages := make([]llm.Message, 0, len(turns)+1)
	messages = append(messages, llm.SystemText(system))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleUser:
			messages = append(messages, llm.UserText(t.Content))
		case conversation.RoleAssistant:
			messages = append(messages, llm.AssistantText(t.Content))
		}
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return llm.Request{
		Model:           opts.Model,
		Messages:        messages,
		Temperature:     temperature,
		MaxOutputTokens: maxTokens,
	}
}

func (h *Handler) buildRequest(turns []conversation.Turn) llm.Request {
	return BuildRequest(h.opts, turns)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	turns, err := decodeChatRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := loggerFrom(r.Context(), h.logger)
	stream, err := h.provider.Stream(r.Context(), h.buildRequest(turns))
	if err != nil {
		log.Error("upstream request failed", "provider", h.provider.Name(), "error", err)
		writeError(w, http.StatusInternalServerError, genericError)
		return
	}
	defer stream.Close()

	// Nothing is committed to the response until the first fragment arrives,
	// so an early upstream failure still gets a clean JSON error.
	first, err := llm.NextText(stream)
	if err != nil && !errors.Is(err, io.EOF) {
		log.Error("upstream stream failed before first fragment", "provider", h.provider.Name(), "error", err)
		writeError(w, http.StatusInternalServerError, genericError)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if errors.Is(err, io.EOF) {
		return
	}

	text := first
	fragments := 0
	for {
		if _, werr := io.WriteString(w, text); werr != nil {
			log.Debug("client went away", "fragments", fragments, "error", werr)
			return
		}
		_ = rc.Flush()
		fragments++

		text, err = llm.NextText(stream)
		if errors.Is(err, io.EOF) {
			log.Debug("stream complete", "fragments", fragments)
			return
		}
		if err != nil {
			log.Error("upstream stream failed mid-response", "provider", h.provider.Name(), "fragments", fragments, "error", err)
			panic(http.ErrAbortHandler)
		}
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	provider := h.opts.ProviderType
	if provider == "" {
		provider = h.provider.Name()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": provider,
		"model":    h.opts.Model,
	})
}
