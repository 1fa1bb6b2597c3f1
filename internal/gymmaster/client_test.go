package gymmaster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/pkg/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GymMasterConfig{BaseURL: srv.URL, APIKey: "key-123"})
}

func TestLogin(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/portal/api/v1/login" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["api_key"] != "key-123" || body["email"] != "m@example.com" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"result":{"token":"tok-1","memberid":"42"}}`))
	})

	res, err := c.Login(context.Background(), "m@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token != "tok-1" || res.MemberID != "42" {
		t.Errorf("result = %+v", res)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"invalid login"}`))
	})

	_, err := c.Login(context.Background(), "m@example.com", "wrong")
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestProfileReturnsCustomFields(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "tok-1" {
			t.Errorf("token param = %q", got)
		}
		w.Write([]byte(`{"result":{"memberid":"42","email":"m@example.com","firstname":"Mo","lastname":"Nair","custom_fields":{"goals":"guestledger:v2:{}"}}}`))
	})

	m, fields, err := c.Profile(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if m.ID != "42" || m.FirstName != "Mo" {
		t.Errorf("member = %+v", m)
	}
	if fields["goals"] == "" {
		t.Errorf("fields = %v", fields)
	}
}

func TestExpiredTokenBecomesErrAuth(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"token expired"}`))
	})

	_, _, err := c.Profile(context.Background(), "stale")
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestCreateReservation(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["day"] != "2026-09-01" || body["starttime"] != "10:00" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"result":{"bookingid":888}}`))
	})

	id, err := c.CreateReservation(context.Background(), ReservationRequest{
		Token: "tok-1", ServiceID: 2, ResourceID: 3, MembershipID: 4,
		Day: "2026-09-01", StartTime: "10:00",
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if id != 888 {
		t.Errorf("booking id = %d", id)
	}
}

func TestServerErrorIsRemoteError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})

	_, err := c.Sessions(context.Background(), "tok-1", "2026-09-01", 0)
	var re *domain.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if re.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", re.Status)
	}
}

func TestSessionsTrimSeconds(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"bookingid":1,"day":"2026-09-01","starttime":"10:00:00","resourceid":3,"servicename":"Sim Bay"}]}`))
	})

	sessions, err := c.Sessions(context.Background(), "tok-1", "2026-09-01", 0)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].StartTime != "10:00" {
		t.Errorf("sessions = %+v", sessions)
	}
}
