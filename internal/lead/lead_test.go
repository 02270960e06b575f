package lead

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLogPostsFormFields(t *testing.T) {
	var got struct {
		contentType string
		firstName   string
		phone       string
		message     string
		hasPhone    bool
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got.contentType = r.Header.Get("Content-Type")
		got.firstName = r.PostForm.Get("firstName")
		got.message = r.PostForm.Get("message")
		_, got.hasPhone = r.PostForm["phoneNumber"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l := NewLogger(srv.URL, time.Second, nil)
	l.Log(context.Background(), Contact{FirstName: "Asha", Message: "I'm Asha, tell me about the pool"})

	if got.contentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", got.contentType)
	}
	if got.firstName != "Asha" || got.message != "I'm Asha, tell me about the pool" {
		t.Fatalf("unexpected form %+v", got)
	}
	if got.hasPhone {
		t.Fatalf("empty phone number should be omitted")
	}
}

func TestLogSwallowsWebhookFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := NewLogger(srv.URL, time.Second, nil)
	l.Log(context.Background(), Contact{FirstName: "Asha"})

	unreachable := NewLogger("http://127.0.0.1:1", 100*time.Millisecond, nil)
	unreachable.Log(context.Background(), Contact{FirstName: "Asha"})
}

func TestLogTimesOutSlowWebhook(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	l := NewLogger(srv.URL, 50*time.Millisecond, nil)
	start := time.Now()
	l.Log(context.Background(), Contact{FirstName: "Asha"})
	if time.Since(start) > 2*time.Second {
		t.Fatalf("webhook call was not bounded by the client timeout")
	}
}

func TestLogWithoutURLIsLocalOnly(t *testing.T) {
	l := NewLogger("", time.Second, nil)
	l.Log(context.Background(), Contact{FirstName: "Asha", PhoneNumber: "555"})

	var nilLogger *Logger
	nilLogger.Log(context.Background(), Contact{FirstName: "Asha"})
}
