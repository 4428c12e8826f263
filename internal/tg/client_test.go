package tg

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithBaseURL(srv.URL))
}

func TestGetUpdatesSendsOffsetAndTimeout(t *testing.T) {
	var gotPath, gotOffset, gotTimeout string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOffset = r.URL.Query().Get("offset")
		gotTimeout = r.URL.Query().Get("timeout")
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{"update_id": 42, "message": map[string]any{
					"message_id": 1,
					"chat":       map[string]any{"id": 100},
					"from":       map[string]any{"id": 7},
					"text":       "hello",
				}},
			},
		})
	})

	updates, err := client.GetUpdates(context.Background(), 42, 25)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}

	if gotPath != "/bottest-token/getUpdates" {
		t.Errorf("path = %q, want /bottest-token/getUpdates", gotPath)
	}
	if gotOffset != "42" {
		t.Errorf("offset = %q, want 42", gotOffset)
	}
	if gotTimeout != "25" {
		t.Errorf("timeout = %q, want 25", gotTimeout)
	}

	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	u := updates[0]
	if u.UpdateID != 42 {
		t.Errorf("update_id = %d, want 42", u.UpdateID)
	}
	if u.Message == nil || u.Message.Chat.ID != 100 || u.Message.Text != "hello" {
		t.Errorf("unexpected message: %+v", u.Message)
	}
	if u.Message.From == nil || u.Message.From.ID != 7 {
		t.Errorf("unexpected sender: %+v", u.Message.From)
	}
}

func TestGetUpdatesEmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": []any{}})
	})

	updates, err := client.GetUpdates(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("got %d updates, want 0", len(updates))
	}
}

func TestSendMessagePostsJSON(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	})

	if err := client.SendMessage(context.Background(), 100, "hi there"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q, want /bottest-token/sendMessage", gotPath)
	}
	if gotBody["chat_id"] != float64(100) {
		t.Errorf("chat_id = %v, want 100", gotBody["chat_id"])
	}
	if gotBody["text"] != "hi there" {
		t.Errorf("text = %v, want %q", gotBody["text"], "hi there")
	}
}

func TestUnauthorizedToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": 401, "description": "Unauthorized",
		})
	})

	_, err := client.GetMe(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestAPIErrorCarriesCodeAndDescription(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": 400, "description": "Bad Request: chat not found",
		})
	})

	err := client.SendMessage(context.Background(), 1, "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.Code != 400 {
		t.Errorf("code = %d, want 400", apiErr.Code)
	}
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on
	client := NewClient("test-token", WithBaseURL(srv.URL))

	_, err := client.GetUpdates(context.Background(), 0, 0)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T (%v), want *TransportError", err, err)
	}
}

func TestMalformedBodyIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.GetUpdates(context.Background(), 0, 0)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T (%v), want *TransportError", err, err)
	}
}
