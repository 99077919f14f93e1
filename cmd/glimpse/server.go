package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"glimpse"
	"glimpse/describer"
	"glimpse/internal/config"
	"glimpse/internal/imaging"
	"glimpse/internal/logging"
	"glimpse/internal/tags"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxUploadBytes = 16 << 20 // 16 MB

type Server struct {
	hs        *http.Server
	responder *glimpse.Responder
	d         describer.Describer
	db        *glimpse.DB
	logger    *logging.Logger

	budgetKB int
	maxDim   int
	maxCtx   int
}

func NewServer(r *glimpse.Responder, d describer.Describer, db *glimpse.DB, cfg *config.Config, logger *logging.Logger) *Server {
	srv := &Server{
		responder: r,
		d:         d,
		db:        db,
		logger:    logger,
		budgetKB:  cfg.ImageBudgetKB,
		maxDim:    cfg.MaxImageDim,
		maxCtx:    cfg.MaxContextTurns,
	}

	srv.hs = &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.serveHandler(),
	}

	return srv
}

func (s *Server) Start() error {
	return s.hs.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.hs.Shutdown(ctx)
}

func (s *Server) serveHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", s.serveChat())
	mux.Handle("GET /api/chat", s.serveHistory())
	mux.Handle("GET /healthz", s.serveHealthz())

	return mux
}

// chatRequest is the JSON variant of a chat turn. The multipart variant
// carries the same fields as form values plus an "image" file.
type chatRequest struct {
	SessionId string `json:"session_id"`
	Message   string `json:"message"`
	ImageData string `json:"image_data"` // data URI supplied by the client
}

type metaTags struct {
	tags.Tags
	ProviderTags []string `json:"provider_tags,omitempty"`
}

type chatStats struct {
	ImageKB  float64 `json:"image_kb,omitempty"`
	Degraded bool    `json:"degraded,omitempty"`
}

type chatResponse struct {
	Success     bool      `json:"success"`
	SessionId   string    `json:"session_id"`
	MessageId   int64     `json:"message_id"`
	Description string    `json:"description"`
	MetaTags    metaTags  `json:"meta_tags"`
	Stats       chatStats `json:"stats"`
}

func (s *Server) serveChat() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		creq, image, err := parseChatRequest(req)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Validate before any storage or network work happens.
		if strings.TrimSpace(creq.Message) == "" && len(image) == 0 {
			s.writeError(w, http.StatusBadRequest, "message or image is required")
			return
		}

		var (
			imageURI string
			imageKB  float64
		)
		if len(image) > 0 {
			img, err := imaging.Normalize(image, imaging.Options{
				MaxDim:   s.maxDim,
				BudgetKB: s.budgetKB,
			})
			if err != nil {
				if errors.Is(err, imaging.ErrDecode) {
					s.writeError(w, http.StatusBadRequest, "cannot decode uploaded image")
					return
				}
				s.logger.Errorw("normalize image", "error", err)
				s.writeError(w, http.StatusInternalServerError, "image processing failed")
				return
			}
			imageURI = img.DataURI()
			imageKB = img.SizeKB()
		}

		sessionID := creq.SessionId
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		// Context window is fetched before the current turn is stored so it
		// only contains prior turns.
		recent, err := s.db.RecentMessages(ctx, sessionID, s.maxCtx)
		if err != nil {
			s.logger.Errorw("load history", "error", err)
			s.writeError(w, http.StatusInternalServerError, "storage error")
			return
		}
		history := make([]describer.Turn, 0, len(recent))
		for _, m := range recent {
			content := m.Content
			if m.ImageData != "" {
				content = "[Image] " + content
			}
			history = append(history, describer.Turn{Role: describer.Role(m.Role), Content: content})
		}

		userMsg := &glimpse.Message{
			SessionId: sessionID,
			Role:      glimpse.RoleUser,
			Content:   creq.Message,
			ImageData: imageURI,
		}
		if err := s.db.InsertMessage(ctx, userMsg); err != nil {
			s.logger.Errorw("insert user message", "error", err)
			s.writeError(w, http.StatusInternalServerError, "storage error")
			return
		}

		reply, err := s.responder.Describe(ctx, creq.Message, imageURI, history)
		if err != nil {
			var perr *describer.ProviderError
			if !errors.As(err, &perr) {
				s.logger.Errorw("describe", "error", err)
				s.writeError(w, http.StatusInternalServerError, "describe failed")
				return
			}
			// A provider failure becomes the assistant turn so the
			// conversation still advances.
			s.logger.Warnw("provider error", "status", perr.StatusCode, "error", perr.Message)
			text := "⚠️ Service Error: " + perr.Message
			reply = &glimpse.Reply{Text: text, Tags: tags.Extract(text)}
		}

		meta := metaTags{Tags: reply.Tags, ProviderTags: reply.ProviderTags}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "encode tags failed")
			return
		}

		aiMsg := &glimpse.Message{
			SessionId: sessionID,
			Role:      glimpse.RoleAssistant,
			Content:   reply.Text,
			MetaTags:  metaJSON,
		}
		if err := s.db.InsertMessage(ctx, aiMsg); err != nil {
			s.logger.Errorw("insert assistant message", "error", err)
			s.writeError(w, http.StatusInternalServerError, "storage error")
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{
			Success:     true,
			SessionId:   sessionID,
			MessageId:   aiMsg.Id,
			Description: reply.Text,
			MetaTags:    meta,
			Stats:       chatStats{ImageKB: imageKB, Degraded: reply.Degraded},
		})
	}
}

type messageJSON struct {
	Id        int64           `json:"id"`
	SessionId string          `json:"session_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ImageData string          `json:"image_data,omitempty"`
	MetaTags  json.RawMessage `json:"meta_tags,omitempty"`
	CreatedAt string          `json:"created_at"`
}

func (s *Server) serveHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sessionID := req.URL.Query().Get("session_id")

		var (
			msgs  []*glimpse.Message
			stats *glimpse.Stats
		)
		g, ctx := errgroup.WithContext(req.Context())
		g.Go(func() error {
			var err error
			msgs, err = s.db.Messages(ctx, sessionID)
			return err
		})
		g.Go(func() error {
			var err error
			stats, err = s.db.Stats(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			s.logger.Errorw("load history", "error", err)
			s.writeError(w, http.StatusInternalServerError, "storage error")
			return
		}

		out := struct {
			Messages []messageJSON  `json:"messages"`
			Stats    *glimpse.Stats `json:"stats"`
		}{Messages: make([]messageJSON, 0, len(msgs)), Stats: stats}

		for _, m := range msgs {
			out.Messages = append(out.Messages, messageJSON{
				Id:        m.Id,
				SessionId: m.SessionId,
				Role:      m.Role,
				Content:   m.Content,
				ImageData: m.ImageData,
				MetaTags:  m.MetaTags,
				CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
			})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) serveHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "ok",
			"provider":         s.d.Name(),
			"provider_healthy": s.d.IsHealthy(),
		})
	}
}

// parseChatRequest accepts either a JSON body or a multipart form and
// returns the request fields plus the raw (pre-normalization) image bytes.
func parseChatRequest(req *http.Request) (*chatRequest, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, nil, errors.New("invalid multipart form")
		}
		creq := &chatRequest{
			SessionId: req.FormValue("session_id"),
			Message:   req.FormValue("message"),
		}

		file, _, err := req.FormFile("image")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return creq, nil, nil
			}
			return nil, nil, errors.New("invalid image upload")
		}
		defer file.Close()

		image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, nil, errors.New("read image upload failed")
		}
		return creq, image, nil
	}

	creq := &chatRequest{}
	if err := json.NewDecoder(io.LimitReader(req.Body, maxUploadBytes)).Decode(creq); err != nil {
		return nil, nil, errors.New("invalid request body")
	}
	if creq.ImageData == "" {
		return creq, nil, nil
	}

	// The client sends a full data URI; only the payload matters here, the
	// image is re-encoded regardless of the advertised type.
	payload := creq.ImageData
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, nil, errors.New("invalid image data")
	}
	return creq, image, nil
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
