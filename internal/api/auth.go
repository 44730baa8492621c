package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"reina/internal/core"
	"reina/internal/log"
	"reina/internal/session"
)

// TokenPair is the reply of /login and /refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

var errIncompleteTokens = errors.New("token reply without access token")

// Login exchanges credentials for tokens, then loads the profile to learn
// the display name. The session is written once with the tokens and once
// more with the name.
func (c *Client) Login(ctx context.Context, creds core.Credentials) (core.User, error) {
	if err := creds.Validate(); err != nil {
		return core.User{}, err
	}

	var tokens TokenPair
	call := Call{
		Method: http.MethodPost,
		Path:   "/login",
		Form:   url.Values{"username": {creds.Username}, "password": {creds.Password}},
	}
	if err := c.send(ctx, call, "", &tokens); err != nil {
		return core.User{}, fmt.Errorf("login: %w", err)
	}
	if tokens.AccessToken == "" {
		return core.User{}, fmt.Errorf("login: %w", errIncompleteTokens)
	}

	s := session.Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenKind:    tokens.TokenType,
	}
	c.store.Set(s)

	user, err := c.Me(ctx)
	if err != nil {
		c.store.Clear()
		return core.User{}, fmt.Errorf("load profile: %w", err)
	}

	// Me may have refreshed the tokens; keep whatever is current.
	s = c.store.Get()
	s.DisplayName = user.UserName
	c.store.Set(s)

	c.logger.Info("Logged in", log.FieldOperation, log.OpLogin, log.FieldUser, user.UserName)
	return user, nil
}

// Signup registers a new account. It does not log in.
func (c *Client) Signup(ctx context.Context, in core.Signup) (core.User, error) {
	if err := in.Validate(); err != nil {
		return core.User{}, err
	}
	var user core.User
	call := Call{Method: http.MethodPost, Path: "/signup", JSON: in}
	if err := c.send(ctx, call, "", &user); err != nil {
		return core.User{}, fmt.Errorf("signup: %w", err)
	}
	return user, nil
}

// Refresh calls the token refresh endpoint. It does not touch the session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var tokens TokenPair
	call := Call{
		Method: http.MethodPost,
		Path:   refreshPath,
		Form:   url.Values{"refresh_token": {refreshToken}},
	}
	if err := c.send(ctx, call, "", &tokens); err != nil {
		return TokenPair{}, err
	}
	if tokens.AccessToken == "" {
		return TokenPair{}, errIncompleteTokens
	}
	return tokens, nil
}

// Logout forgets the session. The API has no server-side logout.
func (c *Client) Logout() {
	c.store.Clear()
	c.logger.Info("Logged out", log.FieldOperation, log.OpLogout)
}

// Me returns the profile of the signed-in user.
func (c *Client) Me(ctx context.Context) (core.User, error) {
	if !c.store.Get().Authenticated() {
		return core.User{}, ErrNotAuthenticated
	}
	var user core.User
	if err := c.Execute(ctx, Call{Method: http.MethodGet, Path: "/me"}, &user); err != nil {
		return core.User{}, err
	}
	return user, nil
}

// UpdateIncome sets the user's net income.
func (c *Client) UpdateIncome(ctx context.Context, income core.Money) (core.User, error) {
	if err := income.Validate(); err != nil {
		return core.User{}, err
	}
	var user core.User
	call := Call{
		Method: http.MethodPut,
		Path:   "/update_income",
		JSON:   map[string]core.Money{"net_income": income},
	}
	if err := c.Execute(ctx, call, &user); err != nil {
		return core.User{}, err
	}
	return user, nil
}
