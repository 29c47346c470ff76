package pushover_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"homechat/internal/infra/pushover"
)

func TestClient_Notify(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages.json" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = r.ParseForm()
		form = map[string]string{
			"token":   r.PostForm.Get("token"),
			"user":    r.PostForm.Get("user"),
			"message": r.PostForm.Get("message"),
		}
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("tok", "usr", server.URL)
	if err := client.Notify(context.Background(), "Zamanlayıcı Bitti: tamam"); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if form["token"] != "tok" || form["user"] != "usr" || form["message"] != "Zamanlayıcı Bitti: tamam" {
		t.Errorf("form: got %v", form)
	}
}

func TestClient_NotifyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("tok", "usr", server.URL)
	if err := client.Notify(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
}

func TestClient_Unconfigured(t *testing.T) {
	client := pushover.NewClientWithURL("", "", "http://127.0.0.1:1")
	if err := client.Notify(context.Background(), "x"); err != nil {
		t.Errorf("unconfigured client should be a no-op, got %v", err)
	}
}
