// Package directory is the client of the remote user directory, a
// reqres-compatible HTTP API keyed by small integer ids.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/userhub/internal/common"
	"github.com/dmitrijs2005/userhub/internal/netx"
	"github.com/dmitrijs2005/userhub/internal/server/models"
)

// Client talks to the directory. Failures are reported as
// common.ErrorNotFound (the directory has no such user) or
// common.ErrorUpstream (network, non-2xx or malformed payload).
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// remoteUser is the directory's wire shape of a user.
type remoteUser struct {
	ID        flexID `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Job       string `json:"job"`
	Avatar    string `json:"avatar"`
}

func (u *remoteUser) toModel() *models.User {
	return &models.User{
		ID:        string(u.ID),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Job:       u.Job,
		Avatar:    u.Avatar,
	}
}

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(s)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(common.APIKeyHeaderName, c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUpstream, err)
	}
	return resp, nil
}

func unexpectedStatus(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: unexpected status %d: %s", common.ErrorUpstream, resp.StatusCode, strings.TrimSpace(string(b)))
}

// GetUser reads user id live from the directory.
func (c *Client) GetUser(ctx context.Context, id int) (*models.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/users/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, common.ErrorNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, unexpectedStatus(resp)
	}

	var payload struct {
		Data *remoteUser `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", common.ErrorUpstream, err)
	}
	if payload.Data == nil || payload.Data.ID == "" {
		return nil, fmt.Errorf("%w: decode user: missing data", common.ErrorUpstream)
	}

	return payload.Data.toModel(), nil
}

// CreateUser posts in to the directory and returns the directory's
// representation. Fields the directory leaves out fall back to in.
func (c *Client) CreateUser(ctx context.Context, in *models.NewUser) (*models.User, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%w: encode user: %v", common.ErrorUpstream, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}

	var created remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: decode created user: %v", common.ErrorUpstream, err)
	}

	u := created.toModel()
	fill(&u.Email, in.Email)
	fill(&u.FirstName, in.FirstName)
	fill(&u.LastName, in.LastName)
	fill(&u.Job, in.Job)
	return u, nil
}

func fill(dst *string, fallback string) {
	if *dst == "" {
		*dst = fallback
	}
}

// Download fetches an avatar image with the directory's HTTP client.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	b, err := netx.Download(ctx, c.client, url)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorUpstream, err)
	}
	return b, nil
}
