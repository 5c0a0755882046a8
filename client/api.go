package client

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/wire"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// APIError is a structured failure answered by the server.
type APIError struct {
	Status  int
	Code    errors.Code
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the wire code back to the sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case errors.CodeValidation:
		return errors.ErrValidation
	case errors.CodeNotAuthenticated:
		return errors.ErrNotAuthenticated
	case errors.CodeNotFound:
		return errors.ErrUserNotFound
	case errors.CodeConflict:
		return errors.ErrUserAlreadyExists
	case errors.CodeUploadFailed:
		return errors.ErrUploadFailed
	case errors.CodeStoreUnavailable:
		return errors.ErrStoreUnavailable
	default:
		return nil
	}
}

// API is a thin client of the durable requests.
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

func (a *API) Register(ctx context.Context, name, email, password string) (wire.AuthResponse, error) {
	var out wire.AuthResponse
	err := a.do(ctx, http.MethodPost, "/api/auth/register", "", wire.RegisterRequest{Name: name, Email: email, Password: password}, &out)
	return out, err
}

func (a *API) Login(ctx context.Context, email, password string) (wire.AuthResponse, error) {
	var out wire.AuthResponse
	err := a.do(ctx, http.MethodPost, "/api/auth/login", "", wire.LoginRequest{Email: email, Password: password}, &out)
	return out, err
}

func (a *API) Summaries(ctx context.Context, token string) ([]domain.ConversationSummary, error) {
	var out []wire.Summary
	if err := a.do(ctx, http.MethodGet, "/api/messages/users", token, nil, &out); err != nil {
		return nil, err
	}
	return wire.ToSummaries(out), nil
}

func (a *API) History(ctx context.Context, token string, counterpart domain.UserID, markRead bool) ([]domain.Message, error) {
	path := "/api/messages/" + url.PathEscape(string(counterpart)) + "?markRead=" + strconv.FormatBool(markRead)
	var out []wire.Message
	if err := a.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(out))
	for _, m := range out {
		message, err := m.ToDomain()
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (a *API) MarkRead(ctx context.Context, token string, counterpart domain.UserID) (int, error) {
	var out wire.MarkReadResponse
	err := a.do(ctx, http.MethodPut, "/api/messages/read/"+url.PathEscape(string(counterpart)), token, nil, &out)
	return out.MarkedCount, err
}

func (a *API) Send(ctx context.Context, token string, receiver domain.UserID, body wire.SendMessageRequest) (domain.Message, error) {
	var out wire.Message
	if err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(string(receiver)), token, body, &out); err != nil {
		return domain.Message{}, err
	}
	return out.ToDomain()
}

func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var failure wire.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil {
			apiErr.Code = errors.Code(failure.Code)
			apiErr.Message = failure.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func encodeImage(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
