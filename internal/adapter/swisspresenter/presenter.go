package swisspresenter

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/render"
)

// Sender is the outbound half of the chat transport.
type Sender interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

// Presenter delivers text and standings cards to a room.
type Presenter struct {
	out      Sender
	renderer render.Renderer
}

// NewPresenter builds a presenter; a nil renderer disables images.
func NewPresenter(out Sender, renderer render.Renderer) *Presenter {
	return &Presenter{out: out, renderer: renderer}
}

func (p *Presenter) Text(ctx context.Context, room, message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return p.out.SendText(ctx, room, message)
}

// Standings sends text first, then the rendered card. The text is already
// delivered when the image step fails.
func (p *Presenter) Standings(ctx context.Context, room, text, title string, rows []domain.Standing) error {
	if err := p.Text(ctx, room, text); err != nil {
		return err
	}
	if p.renderer == nil || len(rows) == 0 {
		return nil
	}
	png, err := p.renderer.RenderPNG(ctx, rows, title)
	if err != nil {
		return fmt.Errorf("render standings: %w", err)
	}
	return p.out.SendImage(ctx, room, base64.StdEncoding.EncodeToString(png))
}
