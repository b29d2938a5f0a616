package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-chat-client/apimodel"
	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
)

// Result is the normalised outcome of Gateway.Do.
type Result struct {
	OK         bool
	StatusCode int
	Body       []byte
	Failure    *Failure
}

// Failure describes a failed call. StatusCode is 0 when no response arrived.
type Failure struct {
	Kind       apperrors.Kind
	StatusCode int
	RawMessage string
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", f.Kind, f.RawMessage)
	}
	return fmt.Sprintf("%s (%d): %s", f.Kind, f.StatusCode, f.RawMessage)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Message is the user-facing description of the failure.
func (f *Failure) Message() string {
	return apperrors.Describe(f.Kind, f.StatusCode, f.RawMessage)
}

// Outcome is a decoded Result.
type Outcome[T any] struct {
	OK      bool
	Data    T
	Failure *Failure
}

// Call runs req and decodes a successful JSON body into T.
func Call[T any](ctx context.Context, g *Gateway, req Request) Outcome[T] {
	result := g.Do(ctx, req)
	if !result.OK {
		return Outcome[T]{Failure: result.Failure}
	}

	var data T
	if len(result.Body) == 0 {
		return Outcome[T]{OK: true, Data: data}
	}
	if err := json.Unmarshal(result.Body, &data); err != nil {
		return Outcome[T]{Failure: &Failure{
			Kind:       apperrors.KindUnknown,
			StatusCode: result.StatusCode,
			RawMessage: "malformed response body",
			Err:        err,
		}}
	}
	return Outcome[T]{OK: true, Data: data}
}

func newFailure(status int, body []byte) *Failure {
	return &Failure{
		Kind:       apperrors.Classify(status),
		StatusCode: status,
		RawMessage: rawMessage(body),
	}
}

// rawMessage pulls the server's explanation out of a FastAPI style error body.
func rawMessage(body []byte) string {
	var payload apimodel.ErrorBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	switch detail := payload.Detail.(type) {
	case string:
		if detail != "" {
			return detail
		}
	case []any:
		msgs := make([]string, 0, len(detail))
		for _, item := range detail {
			msgs = append(msgs, detailMessage(item))
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, ", ")
		}
	case nil:
	default:
		if data, err := json.Marshal(detail); err == nil {
			return string(data)
		}
	}

	if payload.Message != "" {
		return payload.Message
	}
	return ""
}

func detailMessage(item any) string {
	if m, ok := item.(map[string]any); ok {
		for _, key := range []string{"msg", "message"} {
			if s, ok := m[key].(string); ok && s != "" {
				return s
			}
		}
	}
	data, _ := json.Marshal(item)
	return string(data)
}
