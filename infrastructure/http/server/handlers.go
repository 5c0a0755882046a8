package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/wire"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const maxJSONBody = 64 << 10

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body wire.RegisterRequest
	if err := decodeBody(r, &body, maxJSONBody); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.accounts.Register(body.Name, body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.AuthResponse{Token: session.Token, User: wire.FromProfile(session.User)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body wire.LoginRequest
	if err := decodeBody(r, &body, maxJSONBody); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.accounts.Login(body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.AuthResponse{Token: session.Token, User: wire.FromProfile(session.User)})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	profile, err := s.accounts.Me(viewer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromProfile(profile))
}

func (s *Server) users(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	summaries, err := s.chat.Summaries(r.Context(), viewer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromSummaries(summaries))
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sender, _ := auth.UserIDFromContext(r.Context())
	receiver := mux.Vars(r)["id"]

	// base64 inflates by a third
	limit := int64(maxJSONBody + s.options.MaxImageBytes*4/3)
	var body wire.SendMessageRequest
	if err := decodeBody(r, &body, limit); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := auth.ValidateSendMessage(auth.SendMessageRequest{ReceiverID: receiver, Text: body.Text}); err != nil {
		s.fail(w, r, err)
		return
	}
	cmd := domain.SendMessageCommand{
		SenderID:   sender,
		ReceiverID: domain.UserID(receiver),
		Text:       body.Text,
		ImageRef:   body.ImageRef,
	}
	if body.Image != "" {
		raw, err := wire.DecodeImage(body.Image)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: image is not valid base64: %v", errors.ErrValidation, err))
			return
		}
		cmd.Image = raw
		cmd.ImageRef = ""
	} else if cmd.ImageRef != "" && s.options.KnownImageRef != nil && !s.options.KnownImageRef(cmd.ImageRef) {
		s.fail(w, r, fmt.Errorf("%w: unknown image reference", errors.ErrValidation))
		return
	}

	message, err := s.chat.SendMessage(r.Context(), cmd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.FromMessage(message))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	markRead := s.options.HistoryMarksRead
	if raw := r.URL.Query().Get("markRead"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: markRead must be a boolean", errors.ErrValidation))
			return
		}
		markRead = parsed
	}
	messages, err := s.chat.GetMessages(r.Context(), domain.HistoryQuery{
		ViewerID:      viewer,
		CounterpartID: domain.UserID(mux.Vars(r)["id"]),
		MarkRead:      markRead,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromMessages(messages))
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	count, err := s.chat.MarkRead(r.Context(), domain.MarkReadCommand{
		ViewerID:      viewer,
		CounterpartID: domain.UserID(mux.Vars(r)["id"]),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.MarkReadResponse{MarkedCount: count})
}

func decodeBody(r *http.Request, v any, limit int64) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, limit))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", errors.ErrValidation, err)
	}
	return nil
}
