package tablet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

func TestHTTPGatewaySave(t *testing.T) {
	n := activeNotice(uuid.New(), newTestClock().Now())

	tests := []struct {
		name        string
		status      int
		wantErr     bool
		wantGateway bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "conflictIsFailure", status: http.StatusConflict, wantErr: true, wantGateway: true},
		{name: "serverError", status: http.StatusInternalServerError, wantErr: true, wantGateway: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got notice.OrderNotice
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut {
					t.Errorf("method = %s, want PUT", r.Method)
				}
				if r.URL.Path != "/notices/"+n.ID.String() {
					t.Errorf("path = %s", r.URL.Path)
				}
				if r.URL.Query().Get("restaurant_id") != testRestaurant {
					t.Errorf("restaurant_id = %q", r.URL.Query().Get("restaurant_id"))
				}
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &got)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewHTTPGateway(srv.URL).Save(context.Background(), n, testRestaurant)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Save() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantGateway && !errors.Is(err, ErrGateway) {
				t.Errorf("Save() error = %v, want ErrGateway", err)
			}
			if got.ID != n.ID || got.Status != n.Status {
				t.Errorf("server received %+v", got)
			}
		})
	}
}

func TestHTTPGatewaySaveResult(t *testing.T) {
	clock := newTestClock()
	sent := activeNotice(uuid.New(), clock.Now())
	stored := sent.Clone()
	stored.Status = statuses.Acknowledged.Code()
	stored.UpdatedAt = sent.UpdatedAt.Add(time.Second)

	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
	}{
		{name: "applied", data: map[string]interface{}{"applied": true, "notice": sent}},
		{name: "stale", data: map[string]interface{}{"applied": false, "notice": stored}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": tt.data})
			}))
			defer srv.Close()

			err := NewHTTPGateway(srv.URL).Save(context.Background(), sent, testRestaurant)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Save() error = %v", err)
				}
				return
			}

			if !errors.Is(err, ErrSuperseded) {
				t.Fatalf("Save() error = %v, want ErrSuperseded", err)
			}
			if errors.Is(err, ErrGateway) {
				t.Errorf("stale save reported as unavailable")
			}
			var superseded *SupersededError
			if !errors.As(err, &superseded) {
				t.Fatalf("Save() error = %T, want *SupersededError", err)
			}
			if superseded.Current.Status != stored.Status || !superseded.Current.UpdatedAt.Equal(stored.UpdatedAt) {
				t.Errorf("stored copy = %s at %s", superseded.Current.Status, superseded.Current.UpdatedAt)
			}
		})
	}
}

func TestHTTPGatewayFetch(t *testing.T) {
	n := activeNotice(uuid.New(), newTestClock().Now())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notices" || r.URL.Query().Get("restaurant_id") != testRestaurant {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"notices": []notice.OrderNotice{n}},
		})
	}))
	defer srv.Close()

	got, err := NewHTTPGateway(srv.URL).Fetch(context.Background(), []string{testRestaurant})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != n.ID || !got[0].UpdatedAt.Equal(n.UpdatedAt) {
		t.Fatalf("Fetch() = %+v", got)
	}
}

func TestHTTPGatewayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPGateway(url).Fetch(context.Background(), []string{testRestaurant})
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("Fetch() error = %v, want ErrGateway", err)
	}
}
