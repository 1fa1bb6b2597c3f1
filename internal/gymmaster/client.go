// Package gymmaster is the HTTP client for the member-management SaaS
// that owns members, memberships, the booking calendar and the profile
// fields the guest ledger lives in. The service treats it as an opaque
// remote: no state from here is cached beyond the catalog layer.
package gymmaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/pkg/config"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.GymMasterConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type LoginResult struct {
	Token    string `json:"token"`
	MemberID string `json:"memberid"`
	Expires  int64  `json:"expires,omitempty"`
}

type loginReq struct {
	APIKey   string `json:"api_key"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out struct {
		Result LoginResult `json:"result"`
		Error  string      `json:"error"`
	}
	err := c.post(ctx, "/portal/api/v1/login", loginReq{APIKey: c.apiKey, Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if out.Error != "" || out.Result.Token == "" {
		return nil, domain.ErrAuth
	}
	return &out.Result, nil
}

type SignupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	Phone        string `json:"phonecell,omitempty"`
	MembershipID int64  `json:"membershiptypeid"`
	ReferralCode string `json:"promotion_code,omitempty"`
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*LoginResult, error) {
	body := struct {
		APIKey string `json:"api_key"`
		SignupRequest
	}{APIKey: c.apiKey, SignupRequest: req}

	var out struct {
		Result LoginResult `json:"result"`
		Error  string      `json:"error"`
	}
	if err := c.post(ctx, "/portal/api/v1/signup", body, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &domain.RemoteError{Service: "gymmaster", Err: fmt.Errorf("signup rejected: %s", out.Error)}
	}
	return &out.Result, nil
}

type profileQuery struct {
	APIKey string `url:"api_key"`
	Token  string `url:"token"`
}

// Profile returns the member record plus the raw custom-field map the
// ledger codec reads.
func (c *Client) Profile(ctx context.Context, token string) (*domain.Member, map[string]string, error) {
	var out struct {
		Result struct {
			MemberID  string            `json:"memberid"`
			Email     string            `json:"email"`
			FirstName string            `json:"firstname"`
			LastName  string            `json:"lastname"`
			Phone     string            `json:"phonecell"`
			Fields    map[string]string `json:"custom_fields"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := c.get(ctx, "/portal/api/v1/member/profile", profileQuery{APIKey: c.apiKey, Token: token}, &out); err != nil {
		return nil, nil, err
	}
	if out.Error != "" {
		return nil, nil, authOrRemote(out.Error)
	}
	m := &domain.Member{
		ID:        out.Result.MemberID,
		Email:     out.Result.Email,
		FirstName: out.Result.FirstName,
		LastName:  out.Result.LastName,
		Phone:     out.Result.Phone,
	}
	fields := out.Result.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return m, fields, nil
}

// UpdateProfileField writes one free-text field. The store offers no
// multi-field transaction; callers send one request per field.
func (c *Client) UpdateProfileField(ctx context.Context, token, field, value string) error {
	body := struct {
		APIKey string `json:"api_key"`
		Token  string `json:"token"`
		Field  string `json:"field"`
		Value  string `json:"value"`
	}{c.apiKey, token, field, value}

	var out struct {
		Error string `json:"error"`
	}
	if err := c.post(ctx, "/portal/api/v1/member/profile/field", body, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return authOrRemote(out.Error)
	}
	return nil
}

func (c *Client) Memberships(ctx context.Context, token string) ([]domain.Membership, error) {
	var out struct {
		Result []struct {
			ID        int64  `json:"membershipid"`
			Name      string `json:"membershipname"`
			StartDate string `json:"startdate"`
			EndDate   string `json:"enddate"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := c.get(ctx, "/portal/api/v1/member/memberships", profileQuery{APIKey: c.apiKey, Token: token}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, authOrRemote(out.Error)
	}
	ms := make([]domain.Membership, 0, len(out.Result))
	for _, r := range out.Result {
		ms = append(ms, domain.Membership{ID: r.ID, Name: r.Name, StartDate: r.StartDate, EndDate: r.EndDate})
	}
	return ms, nil
}

func (c *Client) Clubs(ctx context.Context) ([]domain.Club, error) {
	var out struct {
		Result []domain.Club `json:"result"`
		Error  string        `json:"error"`
	}
	q := struct {
		APIKey string `url:"api_key"`
	}{c.apiKey}
	if err := c.get(ctx, "/portal/api/v1/clubs", q, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &domain.RemoteError{Service: "gymmaster", Err: fmt.Errorf("clubs: %s", out.Error)}
	}
	return out.Result, nil
}

type catalogQuery struct {
	APIKey string `url:"api_key"`
	ClubID int64  `url:"clubid"`
}

func (c *Client) Services(ctx context.Context, clubID int64) ([]domain.Service, error) {
	var out struct {
		Result []struct {
			ID          int64  `json:"serviceid"`
			Name        string `json:"servicename"`
			DurationMin int    `json:"duration_min"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := c.get(ctx, "/portal/api/v1/booking/services", catalogQuery{c.apiKey, clubID}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &domain.RemoteError{Service: "gymmaster", Err: fmt.Errorf("services: %s", out.Error)}
	}
	svcs := make([]domain.Service, 0, len(out.Result))
	for _, r := range out.Result {
		svcs = append(svcs, domain.Service{ID: r.ID, Name: r.Name, ClubID: clubID, DurationMin: r.DurationMin})
	}
	return svcs, nil
}

type bayQuery struct {
	APIKey    string `url:"api_key"`
	ServiceID int64  `url:"serviceid"`
}

func (c *Client) Bays(ctx context.Context, serviceID int64) ([]domain.Bay, error) {
	var out struct {
		Result []struct {
			ID     int64  `json:"resourceid"`
			Name   string `json:"resourcename"`
			ClubID int64  `json:"companyid"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := c.get(ctx, "/portal/api/v1/booking/resources", bayQuery{c.apiKey, serviceID}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &domain.RemoteError{Service: "gymmaster", Err: fmt.Errorf("resources: %s", out.Error)}
	}
	bays := make([]domain.Bay, 0, len(out.Result))
	for _, r := range out.Result {
		bays = append(bays, domain.Bay{ID: r.ID, Name: r.Name, ClubID: r.ClubID})
	}
	return bays, nil
}

type sessionsQuery struct {
	APIKey    string `url:"api_key"`
	Token     string `url:"token"`
	Day       string `url:"day"`
	ServiceID int64  `url:"serviceid,omitempty"`
}

// Sessions lists the day's existing reservations across bays; the
// availability checker runs against this snapshot.
func (c *Client) Sessions(ctx context.Context, token, day string, serviceID int64) ([]domain.Session, error) {
	var out struct {
		Result []struct {
			BookingID   int64  `json:"bookingid"`
			Day         string `json:"day"`
			StartTime   string `json:"starttime"`
			BayID       int64  `json:"resourceid"`
			ServiceName string `json:"servicename"`
			MemberID    string `json:"memberid"`
		} `json:"result"`
		Error string `json:"error"`
	}
	q := sessionsQuery{APIKey: c.apiKey, Token: token, Day: day, ServiceID: serviceID}
	if err := c.get(ctx, "/portal/api/v1/booking/sessions", q, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, authOrRemote(out.Error)
	}
	sessions := make([]domain.Session, 0, len(out.Result))
	for _, r := range out.Result {
		sessions = append(sessions, domain.Session{
			BookingID:   r.BookingID,
			Day:         r.Day,
			StartTime:   trimSeconds(r.StartTime),
			BayID:       r.BayID,
			ServiceName: r.ServiceName,
			MemberID:    r.MemberID,
		})
	}
	return sessions, nil
}

type ReservationRequest struct {
	Token        string `json:"token"`
	ServiceID    int64  `json:"serviceid"`
	ResourceID   int64  `json:"resourceid"`
	MembershipID int64  `json:"membershipid"`
	Day          string `json:"day"`
	StartTime    string `json:"starttime"`
}

// CreateReservation books one slot and returns the remote booking id.
// Each call is its own unit; the caller owns partial-success handling.
func (c *Client) CreateReservation(ctx context.Context, req ReservationRequest) (int64, error) {
	body := struct {
		APIKey string `json:"api_key"`
		ReservationRequest
	}{APIKey: c.apiKey, ReservationRequest: req}

	var out struct {
		Result struct {
			BookingID int64 `json:"bookingid"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := c.post(ctx, "/portal/api/v1/booking/book", body, &out); err != nil {
		return 0, err
	}
	if out.Error != "" {
		return 0, authOrRemote(out.Error)
	}
	if out.Result.BookingID == 0 {
		return 0, &domain.RemoteError{Service: "gymmaster", Err: fmt.Errorf("booking accepted without an id")}
	}
	return out.Result.BookingID, nil
}

func (c *Client) CancelReservation(ctx context.Context, token string, bookingID int64) error {
	body := struct {
		APIKey    string `json:"api_key"`
		Token     string `json:"token"`
		BookingID int64  `json:"bookingid"`
	}{c.apiKey, token, bookingID}

	var out struct {
		Error string `json:"error"`
	}
	if err := c.post(ctx, "/portal/api/v1/booking/cancel", body, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return authOrRemote(out.Error)
	}
	return nil
}

type fieldSearchQuery struct {
	APIKey   string `url:"api_key"`
	Field    string `url:"field"`
	Contains string `url:"contains"`
}

// AnyProfileFieldContains reports whether any member's named profile
// field contains the needle. Referral validation is only ever an
// existence check against recorded codes, never a uniqueness authority.
func (c *Client) AnyProfileFieldContains(ctx context.Context, field, needle string) (bool, error) {
	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
		Error string `json:"error"`
	}
	q := fieldSearchQuery{APIKey: c.apiKey, Field: field, Contains: needle}
	if err := c.get(ctx, "/portal/api/v1/member/search", q, &out); err != nil {
		return false, err
	}
	if out.Error != "" {
		return false, &domain.RemoteError{Service: "gymmaster", Err: fmt.Errorf("member search: %s", out.Error)}
	}
	return out.Result.Count > 0, nil
}

func (c *Client) get(ctx context.Context, path string, params interface{}, out interface{}) error {
	values, err := query.Values(params)
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	u := c.baseURL + path + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		return &domain.RemoteError{Service: "gymmaster", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return domain.ErrAuth
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &domain.RemoteError{
			Service: "gymmaster",
			Status:  res.StatusCode,
			Err:     fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, strings.TrimSpace(string(snippet))),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &domain.RemoteError{Service: "gymmaster", Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// authOrRemote maps the store's in-band error strings: token problems
// become ErrAuth, everything else is a remote failure.
func authOrRemote(msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "token") || strings.Contains(lower, "expired") || strings.Contains(lower, "login") {
		return domain.ErrAuth
	}
	return &domain.RemoteError{Service: "gymmaster", Err: fmt.Errorf("%s", msg)}
}

func trimSeconds(hhmmss string) string {
	if len(hhmmss) >= 5 {
		if _, err := time.Parse("15:04:05", hhmmss); err == nil {
			return hhmmss[:5]
		}
	}
	return hhmmss
}
