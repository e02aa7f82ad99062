package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"adx-systemv1/internal/model"
)

func TestWebhookNotifier_PostsTradePayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("payload not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alert := SignalAlert(&model.Signal{
		Symbol: "SBIN", Direction: model.Long,
		DIPlus: 24.5, DIMinus: 18.2, ADX: 31.0,
		Confidence: 0.72, EntryPrice: 245000,
	})
	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), alert); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Event != EventSignal || got.Symbol != "SBIN" {
		t.Errorf("expected event/symbol on the wire, got %q / %q", got.Event, got.Symbol)
	}
	if got.Fields["adx"] != "31.0" {
		t.Errorf("expected trade fields on the wire, got %v", got.Fields)
	}
	if got.TS == "" {
		t.Error("expected a timestamp on the wire")
	}
}

func TestWebhookNotifier_RejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), DeadlineAlert("SBIN"))
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestRenderTelegram_FieldsInStableOrder(t *testing.T) {
	text := renderTelegram(Alert{
		Level:   AlertWarning,
		Event:   EventExit,
		Symbol:  "TCS",
		Title:   "TCS closed (TRAILING_STOP)",
		Message: "SHORT 10",
		Fields:  map[string]string{"reason": "TRAILING_STOP", "pnl": "50.00", "exit": "4190.00"},
	})
	if !strings.HasPrefix(text, "⚠️") {
		t.Errorf("expected warning emoji prefix: %q", text)
	}
	exit := strings.Index(text, "`exit`")
	pnl := strings.Index(text, "`pnl`")
	reason := strings.Index(text, "`reason`")
	if exit < 0 || pnl < 0 || reason < 0 || !(exit < pnl && pnl < reason) {
		t.Errorf("expected fields sorted by key, got %q", text)
	}
	if !strings.Contains(text, "50\\.00") {
		t.Errorf("expected MarkdownV2-escaped values, got %q", text)
	}
}
