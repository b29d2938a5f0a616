package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/go-chat-client/apimodel"
	apperrors "github.com/jrsteele09/go-chat-client/internal/errors"
	"github.com/jrsteele09/go-chat-client/token/refresh"
	"github.com/pkg/errors"
)

// Refresh exchanges refreshToken at /auth/refresh. It implements refresh.Refresher.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (refresh.Tokens, error) {
	resp, err := g.roundTrip(ctx, Request{
		Method: http.MethodPost,
		Path:   refreshPath,
		Body:   apimodel.RefreshRequest{RefreshToken: refreshToken},
	}, "")
	if err != nil {
		return refresh.Tokens{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return refresh.Tokens{}, errors.Wrap(err, "read refresh response")
	}
	if resp.StatusCode != http.StatusOK {
		return refresh.Tokens{}, newFailure(resp.StatusCode, body)
	}

	var payload apimodel.RefreshResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return refresh.Tokens{}, errors.Wrap(err, "decode refresh response")
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		return refresh.Tokens{}, apperrors.ErrMissingTokens
	}
	return refresh.Tokens{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}, nil
}
