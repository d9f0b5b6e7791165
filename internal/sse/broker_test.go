package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain collects every message already queued on ch.
func drain(ch chan []byte, wait time.Duration) []string {
	time.Sleep(wait)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeIndexUpdated, Data: SkillEventData{Skill: "dagster", Paths: []string{"SKILL.md"}}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\nevent: index.updated\n") {
			t.Errorf("missing id or event type in %q", s)
		}
		if !strings.Contains(s, `"skill":"dagster","paths":["SKILL.md"]`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishSkillEvent_ReportThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishSkillEvent(KindUpdated, "dagster", []string{"SKILL.md"})
	b.PublishSkillEvent(KindDrift, "dagster", []string{"references/INDEX.md"})
	// Another skill has its own throttle window.
	b.PublishSkillEvent(KindUpdated, "dignified-python", []string{"SKILL.md"})

	reports := map[string]int{}
	skillEvents := 0
	for _, s := range drain(ch, 50*time.Millisecond) {
		if strings.Contains(s, "event: "+TypeReportUpdated) {
			for _, name := range []string{"dagster", "dignified-python"} {
				if strings.Contains(s, `"skill":"`+name+`"`) {
					reports[name]++
				}
			}
			continue
		}
		skillEvents++
	}

	if skillEvents != 3 {
		t.Errorf("skill events = %d, want 3", skillEvents)
	}
	if reports["dagster"] != 1 || reports["dignified-python"] != 1 {
		t.Errorf("report events = %v, want one per skill", reports)
	}
}

func TestPublishSkillEvent_Types(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishSkillEvent(KindInvalid, "dagster", []string{"references/bad.md"})
	b.PublishSkillEvent("bogus", "dagster", nil)

	var got []string
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-timeout:
			t.Fatalf("timeout, got %q", got)
		}
	}
	if !strings.Contains(got[0], "event: validation.failed\n") {
		t.Errorf("first event = %q", got[0])
	}
	if !strings.Contains(got[1], "event: report.updated\n") || !strings.Contains(got[1], `"skill":"dagster"`) {
		t.Errorf("report event = %q", got[1])
	}
	if extra := drain(ch, 50*time.Millisecond); len(extra) != 0 {
		t.Errorf("unknown kind produced events: %q", extra)
	}
}

func TestSubscribe_SkillFilter(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	only := b.Subscribe("dagster")
	defer b.Unsubscribe(only)
	all := b.Subscribe("")
	defer b.Unsubscribe(all)

	b.PublishSkillEvent(KindUpdated, "other", []string{"SKILL.md"})
	b.PublishSkillEvent(KindUpdated, "dagster", []string{"SKILL.md"})
	b.Publish(Event{Type: "global", Data: map[string]string{}})

	filtered := drain(only, 50*time.Millisecond)
	for _, s := range filtered {
		if strings.Contains(s, `"skill":"other"`) {
			t.Errorf("filtered client received %q", s)
		}
	}
	// index.updated + report.updated for dagster, plus the global event.
	if len(filtered) != 3 {
		t.Errorf("filtered client got %d events: %q", len(filtered), filtered)
	}
	if got := drain(all, 0); len(got) != 5 {
		t.Errorf("unfiltered client got %d events: %q", len(got), got)
	}
}

// syncRecorder guards the recorded body against the handler goroutine.
type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?skill=dagster", nil)
	req = req.WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishSkillEvent(KindDrift, "other", nil)
	b.PublishSkillEvent(KindDrift, "dagster", []string{"SKILL.md"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: index.drift") || !strings.Contains(body, `"skill":"dagster"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, `"skill":"other"`) {
		t.Errorf("handler ignored the skill filter: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: TypeIndexUpdated, Skill: "dagster", Data: SkillEventData{Skill: "dagster"}})
	b.PublishSkillEvent(KindUpdated, "dagster", nil)
}
