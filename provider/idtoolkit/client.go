package idtoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type client struct {
	cfg Config
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type oobRequest struct {
	RequestType string `json:"requestType"`
	Email       string `json:"email"`
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

type lookupUser struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	Disabled    bool   `json:"disabled"`
}

type lookupResponse struct {
	Users []lookupUser `json:"users"`
}

type refreshResponse struct {
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
}

func (c *client) signIn(ctx context.Context, email, password string) (*signInResponse, error) {
	var out signInResponse
	err := c.postJSON(ctx, c.cfg.IdentityEndpoint+"/accounts:signInWithPassword", signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &out)
	return &out, err
}

func (c *client) sendPasswordReset(ctx context.Context, email string) error {
	return c.postJSON(ctx, c.cfg.IdentityEndpoint+"/accounts:sendOobCode", oobRequest{
		RequestType: "PASSWORD_RESET",
		Email:       email,
	}, nil)
}

func (c *client) lookup(ctx context.Context, idToken string) (*lookupUser, error) {
	var out lookupResponse
	err := c.postJSON(ctx, c.cfg.IdentityEndpoint+"/accounts:lookup", lookupRequest{IDToken: idToken}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, &APIError{Status: http.StatusBadRequest, Code: CodeUserNotFound, Message: CodeUserNotFound}
	}
	return &out.Users[0], nil
}

func (c *client) refresh(ctx context.Context, refreshToken string) (*refreshResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.cfg.TokenEndpoint+"/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out refreshResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) postJSON(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(endpoint), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var body errorBody
		_ = json.Unmarshal(raw, &body)
		return newAPIError(resp.StatusCode, body)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("idtoolkit: decode response: %w", err)
	}
	return nil
}

func (c *client) endpoint(base string) string {
	return base + "?key=" + url.QueryEscape(c.cfg.APIKey)
}

func parseExpiresIn(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 3600
	}
	return n
}
