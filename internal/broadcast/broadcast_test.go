package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/park285/swiss-tournament-bot/internal/adapter/swisspresenter"
	"github.com/park285/swiss-tournament-bot/internal/msgcat"
	"github.com/park285/swiss-tournament-bot/internal/store/memstore"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
)

type roomSender struct {
	mu    sync.Mutex
	rooms map[string]int
}

func (r *roomSender) SendText(_ context.Context, room, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room]++
	return nil
}

func (r *roomSender) SendImage(context.Context, string, string) error { return nil }

func (r *roomSender) count(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[room]
}

func newPoster(t *testing.T, players ...string) (*Poster, *roomSender) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatal(err)
	}
	svc := tournament.NewService(memstore.New())
	for _, n := range players {
		if _, err := svc.RegisterPlayer(context.Background(), n); err != nil {
			t.Fatal(err)
		}
	}
	out := &roomSender{rooms: map[string]int{}}
	p := NewPoster(svc, swisspresenter.NewFormatter(cat, "!"), swisspresenter.NewPresenter(out, nil), []string{"a", "b"}, nil)
	return p, out
}

func TestPostEveryRoom(t *testing.T) {
	p, out := newPoster(t, "A", "B")
	if err := p.Post(context.Background()); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if out.count("a") != 1 || out.count("b") != 1 {
		t.Fatalf("rooms = %v", out.rooms)
	}
}

func TestPostSkipsEmptyTournament(t *testing.T) {
	p, out := newPoster(t)
	if err := p.Post(context.Background()); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(out.rooms) != 0 {
		t.Fatalf("empty tournament posted: %v", out.rooms)
	}
}

func TestSchedulerRunsJob(t *testing.T) {
	p, out := newPoster(t, "A")
	s, err := start(gocron.DurationJob(50*time.Millisecond), p)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })

	deadline := time.Now().Add(3 * time.Second)
	for out.count("a") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("job never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	p, _ := newPoster(t)
	if _, err := Start("not a cron", p); err == nil {
		t.Fatalf("expected cron parse error")
	}
	if _, err := Start("", p); err == nil {
		t.Fatalf("expected empty cron error")
	}
}

