package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akarpov/bowltab/internal/models"
)

func testFixtures() (*models.User, *models.Session, *models.Bowl) {
	user := &models.User{ID: "u1", TelegramID: 42, DisplayName: "Ivan", NotifyOnNewBowl: true}
	session := &models.Session{ID: "s1", Title: "Friday"}
	bowl := &models.Bowl{ID: "b1", Name: "Bowl 2"}
	return user, session, bowl
}

func TestBowlAddedDelivers(t *testing.T) {
	received := make(chan map[string]any, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n := NewTelegram("token")
	n.baseURL = ts.URL

	user, session, bowl := testFixtures()
	n.BowlAdded(user, session, bowl)

	select {
	case payload := <-received:
		if payload["chat_id"].(float64) != 42 {
			t.Errorf("chat_id = %v, want 42", payload["chat_id"])
		}
		if payload["text"] == "" {
			t.Error("empty message text")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestBowlAddedHonorsUserSetting(t *testing.T) {
	called := make(chan struct{}, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
	}))
	defer ts.Close()

	n := NewTelegram("token")
	n.baseURL = ts.URL

	user, session, bowl := testFixtures()
	user.NotifyOnNewBowl = false
	n.BowlAdded(user, session, bowl)

	select {
	case <-called:
		t.Fatal("notification sent despite disabled setting")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBowlAddedClientErrorIsNotRetried(t *testing.T) {
	calls := make(chan struct{}, 8)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- struct{}{}
		// Blocked bot: retrying will not help.
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	n := NewTelegram("token")
	n.baseURL = ts.URL

	user, session, bowl := testFixtures()
	n.BowlAdded(user, session, bowl)

	<-calls
	select {
	case <-calls:
		t.Fatal("permanent failure was retried")
	case <-time.After(300 * time.Millisecond):
	}
}
