package oauth

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
	"time"

	"github.com/smallbiznis/caskr/pkg/telemetry/correlation"
	"golang.org/x/oauth2"
)

type revokeStyle int

const (
	revokeJSONBasicAuth revokeStyle = iota
	revokeForm
)

// oauth2Client is the x/oauth2 backed TokenClient shared by every provider.
type oauth2Client struct {
	conf        *oauth2.Config
	revokeURL   string
	revokeStyle revokeStyle
	defaultTTL  time.Duration
	httpClient  *http.Client
}

func (c *oauth2Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

func (c *oauth2Client) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := c.conf.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, err
	}
	return c.convert(tok), nil
}

func (c *oauth2Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	src := c.conf.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}
	converted := c.convert(tok)
	if converted.RefreshToken == "" {
		converted.RefreshToken = refreshToken
	}
	return converted, nil
}

func (c *oauth2Client) Revoke(ctx context.Context, token string) error {
	if c.revokeURL == "" {
		return ErrRevokeNotSupported
	}

	var (
		req *http.Request
		err error
	)
	switch c.revokeStyle {
	case revokeForm:
		form := url.Values{"token": {token}}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		body, _ := json.Marshal(map[string]string{"token": token})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(c.conf.ClientID, c.conf.ClientSecret)
	}
	req.Header.Set("Accept", "application/json")
	correlation.Inject(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("revoke failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *oauth2Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *oauth2Client) convert(tok *oauth2.Token) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry.UTC(),
	}
	if tok.Expiry.IsZero() {
		out.Expiry = time.Now().UTC().Add(c.defaultTTL)
	}
	if secs, ok := extraSeconds(tok.Extra("x_refresh_token_expires_in")); ok && secs > 0 {
		exp := time.Now().UTC().Add(time.Duration(secs) * time.Second)
		out.RefreshExpiry = &exp
	}
	if instance, ok := tok.Extra("instance_url").(string); ok {
		out.InstanceURL = instance
	}
	return out
}

func extraSeconds(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(val), true
	case int64:
		return val, true
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
