package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/swiss-tournament-bot/internal/adapter/swisspresenter"
	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/irisfast"
	"github.com/park285/swiss-tournament-bot/internal/msgcat"
	"github.com/park285/swiss-tournament-bot/internal/store/memstore"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
)

type fakeEgress struct {
	mu     sync.Mutex
	texts  []string
	images int
}

func (f *fakeEgress) SendText(_ context.Context, _ string, m string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, m)
	return nil
}

func (f *fakeEgress) SendImage(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images++
	return nil
}

func (f *fakeEgress) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type pngStub struct{}

func (pngStub) RenderPNG(context.Context, []domain.Standing, string) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func newTestHandler(t *testing.T, cfg Config) (*Handler, *fakeEgress, *tournament.Service) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	out := &fakeEgress{}
	svc := tournament.NewService(memstore.New())
	h := NewHandler(svc,
		swisspresenter.NewFormatter(cat, cfg.Prefix),
		swisspresenter.NewPresenter(out, pngStub{}),
		cfg, nil)
	h.requestID = func() string { return "req-test" }
	return h, out, svc
}

func send(t *testing.T, h *Handler, room, user, text string) {
	t.Helper()
	msg := &irisfast.Message{Msg: text, Room: room, JSON: &irisfast.MessageJSON{UserID: user}}
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
}

func TestTournamentFlowOverChat(t *testing.T) {
	h, out, _ := newTestHandler(t, Config{})

	for _, n := range []string{"Alice", "Bob", "Carol", "Dave"} {
		send(t, h, "room", "u1", "!등록 "+n)
	}
	if !strings.Contains(out.last(), "Dave") || !strings.Contains(out.last(), "ID 4") {
		t.Fatalf("register reply: %q", out.last())
	}

	send(t, h, "room", "u1", "!결과 1 2")
	send(t, h, "room", "u1", "!report #3 #4")
	if !strings.Contains(out.last(), "#3") {
		t.Fatalf("report reply: %q", out.last())
	}

	send(t, h, "room", "u1", "!순위")
	if !strings.Contains(out.last(), "1. Alice (#1) 1승 0패") {
		t.Fatalf("standings reply: %q", out.last())
	}
	if out.images != 1 {
		t.Fatalf("expected standings card, got %d images", out.images)
	}

	send(t, h, "room", "u1", "!대진")
	if !strings.Contains(out.last(), "1. Alice (#1) vs Carol (#3)") || !strings.Contains(out.last(), "2. Bob (#2) vs Dave (#4)") {
		t.Fatalf("pairings reply: %q", out.last())
	}

	send(t, h, "room", "u1", "!인원")
	if !strings.Contains(out.last(), "4명") {
		t.Fatalf("count reply: %q", out.last())
	}
}

func TestErrorsAnsweredInRoom(t *testing.T) {
	h, out, svc := newTestHandler(t, Config{})
	ctx := context.Background()
	_, _ = svc.RegisterPlayer(ctx, "A")

	send(t, h, "room", "u", "!결과 1 1")
	if !strings.Contains(out.last(), "서로 달라야") {
		t.Fatalf("self match: %q", out.last())
	}
	send(t, h, "room", "u", "!결과 1 9")
	if !strings.Contains(out.last(), "등록되지 않은") {
		t.Fatalf("unknown player: %q", out.last())
	}
	send(t, h, "room", "u", "!결과 one 2")
	if !strings.Contains(out.last(), "one") {
		t.Fatalf("bad id: %q", out.last())
	}
	send(t, h, "room", "u", "!결과 1")
	if !strings.Contains(out.last(), "사용법") {
		t.Fatalf("usage: %q", out.last())
	}
	send(t, h, "room", "u", "!대진")
	if !strings.Contains(out.last(), "최소 2명") {
		t.Fatalf("not enough: %q", out.last())
	}
	_, _ = svc.RegisterPlayer(ctx, "B")
	_, _ = svc.RegisterPlayer(ctx, "C")
	send(t, h, "room", "u", "!대진")
	if !strings.Contains(out.last(), "현재 3명") {
		t.Fatalf("odd count: %q", out.last())
	}
	send(t, h, "room", "u", "!춤")
	if !strings.Contains(out.last(), "알 수 없는") {
		t.Fatalf("unknown command: %q", out.last())
	}
}

func TestResetRequiresAdmin(t *testing.T) {
	h, out, svc := newTestHandler(t, Config{AdminUsers: []string{"boss"}})
	ctx := context.Background()
	_, _ = svc.RegisterPlayer(ctx, "A")

	send(t, h, "room", "intern", "!초기화")
	if !strings.Contains(out.last(), "관리자") {
		t.Fatalf("expected denial: %q", out.last())
	}
	if n, _ := svc.CountPlayers(ctx); n != 1 {
		t.Fatalf("reset ran for non-admin")
	}

	send(t, h, "room", "boss", "!reset")
	if n, _ := svc.CountPlayers(ctx); n != 0 {
		t.Fatalf("admin reset did not clear players")
	}
}

func TestRoomFilterAndPrefix(t *testing.T) {
	h, out, _ := newTestHandler(t, Config{AllowedRooms: []string{"league"}})
	send(t, h, "lobby", "u", "!help")
	send(t, h, "league", "u", "help")
	if len(out.texts) != 0 {
		t.Fatalf("filtered messages got replies: %v", out.texts)
	}
	send(t, h, "league", "u", "!help")
	if !strings.Contains(out.last(), "!등록") {
		t.Fatalf("help reply: %q", out.last())
	}
}

func TestOnMessageAsync(t *testing.T) {
	h, out, _ := newTestHandler(t, Config{})
	h.OnMessage(&irisfast.Message{Msg: "!등록 Ada", Room: "r"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !strings.Contains(out.last(), "Ada") {
		t.Fatalf("async reply: %q", out.last())
	}
}
