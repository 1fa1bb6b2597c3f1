// Package gatekeeper is the Basic-Auth client for the door-access SaaS:
// list doors, trigger a check-in by door id. Nothing is stored locally.
package gatekeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/pkg/config"
)

type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(cfg config.GatekeeperConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListDoors(ctx context.Context) ([]domain.Door, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/doors", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Doors []struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			SiteName string `json:"site_name"`
		} `json:"doors"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	doors := make([]domain.Door, 0, len(out.Doors))
	for _, d := range out.Doors {
		doors = append(doors, domain.Door{ID: d.ID, Name: d.Name, SiteName: d.SiteName})
	}
	return doors, nil
}

// CheckIn fires the unlock for one door on behalf of a member. The SaaS
// records the visit; we only relay the member reference for its audit log.
func (c *Client) CheckIn(ctx context.Context, doorID int64, memberRef string) error {
	payload, err := json.Marshal(struct {
		DoorID    int64  `json:"door_id"`
		MemberRef string `json:"member_ref"`
	}{doorID, memberRef})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/doors/%d/checkin", c.baseURL, doorID), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.SetBasicAuth(c.username, c.password)

	res, err := c.http.Do(req)
	if err != nil {
		return &domain.RemoteError{Service: "gatekeeper", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &domain.RemoteError{
			Service: "gatekeeper",
			Status:  res.StatusCode,
			Err:     fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, strings.TrimSpace(string(snippet))),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &domain.RemoteError{Service: "gatekeeper", Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
