package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/model"
	"dugout-pulse/internal/window"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestSlackNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	notifier := NewSlackNotifier(srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Message{Text: "hello"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if received["text"] != "hello" {
		t.Fatalf("unexpected payload %#v", received)
	}
}

func TestSlackNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	err := NewSlackNotifier(srv.URL, time.Second, testLogger()).Notify(context.Background(), Message{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "invalid_token") {
		t.Fatalf("expected status error, got %v", err)
	}

	if err := NewSlackNotifier("", time.Second, testLogger()).Notify(context.Background(), Message{Text: "x"}); err == nil {
		t.Fatal("missing webhook should fail")
	}
}

func TestApproxTimesOnBase(t *testing.T) {
	if got := ApproxTimesOnBase(model.Batting{H: 2, BB: 2, HBP: 1}); got != 4 {
		t.Fatalf("hits plus walks: got %d", got)
	}
	if got := ApproxTimesOnBase(model.Batting{H: 3}); got != 3 {
		t.Fatalf("hits alone: got %d", got)
	}
}

func weekResult(name string, client bool, tier window.Tier, role model.Role) window.Result {
	line := model.Line{Batting: model.Batting{PA: 10, AB: 8, H: 4, BB: 2}, Pitching: model.Pitching{Outs: 18, ER: 1, K: 7}}
	return window.Result{
		PlayerName:  name,
		Team:        "State",
		IsClient:    client,
		Tags:        window.Tags{RosterPriority: 1},
		Window:      window.Week,
		Status:      window.StatusOK,
		Tier:        tier,
		Grade:       tier.Label(),
		Stats:       window.FormatStats(role, line),
		GamesPlayed: 3,
		Role:        role,
		Line:        line,
	}
}

func TestDigestPicksClientMovers(t *testing.T) {
	feed := &window.Feed{Windows: map[window.ID][]window.Result{
		window.Week: {
			weekResult("Hot Bat", true, window.TierHot, model.RoleHitter),
			weekResult("Hot Bat", true, window.TierHot, model.RoleHitter),
			weekResult("Cold Arm", true, window.TierCold, model.RolePitcher),
			weekResult("Recruit", false, window.TierHot, model.RoleHitter),
			weekResult("Meh", true, window.TierSolid, model.RoleHitter),
		},
	}}

	d := NewDigest(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
	d.AddFeed(feed)
	if d.Empty() {
		t.Fatal("digest should not be empty")
	}

	text := d.Message().Text
	if strings.Count(text, "Hot Bat") != 1 {
		t.Fatalf("duplicate callout in %q", text)
	}
	if strings.Contains(text, "Recruit") || strings.Contains(text, "Meh") {
		t.Fatalf("unexpected player in %q", text)
	}
	if !strings.Contains(text, "reached base ~6 times") {
		t.Fatalf("missing on-base callout in %q", text)
	}
	if !strings.Contains(text, "6 IP, 1.50 ERA") {
		t.Fatalf("missing pitcher line in %q", text)
	}
	if !strings.Contains(text, "2024-06-10") {
		t.Fatalf("missing run day in %q", text)
	}
}
