package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"github.com/park285/swiss-tournament-bot/internal/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Renderer draws a standings table as a PNG card.
type Renderer interface {
	RenderPNG(ctx context.Context, rows []domain.Standing, title string) ([]byte, error)
}

type StandingsRenderer struct {
	maxRows int
}

var _ Renderer = (*StandingsRenderer)(nil)

// NewStandingsRenderer draws at most maxRows rows; the rest are summarized
// in a footer line. maxRows <= 0 means 20.
func NewStandingsRenderer(maxRows int) *StandingsRenderer {
	if maxRows <= 0 {
		maxRows = 20
	}
	return &StandingsRenderer{maxRows: maxRows}
}

const (
	cardWidth     = 560
	sideMargin    = 24
	titleHeight   = 56
	headerHeight  = 32
	rowHeight     = 36
	footerHeight  = 32
	bottomMargin  = 20
	panelRadius   = 12
	iconSize      = 22
	rankColX      = sideMargin + 16
	nameColX      = sideMargin + 64
	winsColRight  = cardWidth - sideMargin - 136
	lossColRight  = cardWidth - sideMargin - 76
	matchColRight = cardWidth - sideMargin - 16
)

var (
	backgroundColor = color.NRGBA{R: 20, G: 22, B: 33, A: 255}
	titlePanelColor = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	rowEvenColor    = color.NRGBA{R: 32, G: 35, B: 52, A: 255}
	rowOddColor     = color.NRGBA{R: 38, G: 42, B: 62, A: 255}
	leaderRowColor  = color.NRGBA{R: 245, G: 197, B: 66, A: 60}
	textPrimary     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	textMuted       = color.NRGBA{R: 160, G: 168, B: 196, A: 255}
	accentColor     = color.NRGBA{R: 245, G: 197, B: 66, A: 255}
)

var (
	facesOnce   sync.Once
	regularFace font.Face
	boldFace    font.Face
	titleFace   font.Face
	facesErr    error
)

func loadFaces() (regular, bold, title font.Face, err error) {
	facesOnce.Do(func() {
		reg, perr := opentype.Parse(goregular.TTF)
		if perr != nil {
			facesErr = fmt.Errorf("parse regular font: %w", perr)
			return
		}
		bd, perr := opentype.Parse(gobold.TTF)
		if perr != nil {
			facesErr = fmt.Errorf("parse bold font: %w", perr)
			return
		}
		mk := func(f *opentype.Font, size float64) font.Face {
			face, ferr := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
			if ferr != nil && facesErr == nil {
				facesErr = fmt.Errorf("font face: %w", ferr)
			}
			return face
		}
		regularFace = mk(reg, 16)
		boldFace = mk(bd, 16)
		titleFace = mk(bd, 22)
	})
	return regularFace, boldFace, titleFace, facesErr
}

// RenderPNG lays out title, column header, one row per standing and an
// optional overflow footer.
func (r *StandingsRenderer) RenderPNG(ctx context.Context, rows []domain.Standing, title string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	regular, bold, titleF, err := loadFaces()
	if err != nil {
		return nil, err
	}

	shown := rows
	if len(shown) > r.maxRows {
		shown = shown[:r.maxRows]
	}
	hidden := len(rows) - len(shown)

	height := sideMargin + titleHeight + 12 + headerHeight + rowHeight*max(len(shown), 1) + bottomMargin
	if hidden > 0 {
		height += footerHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, cardWidth, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	y := sideMargin
	titleRect := image.Rect(sideMargin, y, cardWidth-sideMargin, y+titleHeight)
	drawRoundedPanel(img, titleRect, panelRadius, titlePanelColor)
	if strings.TrimSpace(title) == "" {
		title = "Standings"
	}
	drawCenteredString(&font.Drawer{Dst: img, Face: titleF}, titleRect,
		truncateWithEllipsis(titleF, title, titleRect.Dx()-32), textPrimary)
	y += titleHeight + 12

	head := &font.Drawer{Dst: img, Face: bold, Src: image.NewUniform(textMuted)}
	headBase := baselineIn(bold, y, headerHeight)
	drawAt(head, "#", rankColX, headBase)
	drawAt(head, "Player", nameColX, headBase)
	drawRight(head, "W", winsColRight, headBase)
	drawRight(head, "L", lossColRight, headBase)
	drawRight(head, "M", matchColRight, headBase)
	y += headerHeight

	if len(shown) == 0 {
		drawCenteredString(&font.Drawer{Dst: img, Face: regular}, image.Rect(sideMargin, y, cardWidth-sideMargin, y+rowHeight), "No players yet", textMuted)
	}

	trophy, terr := rasterizeIcon("trophy.svg", iconSize)
	for i, row := range shown {
		if i%16 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rowRect := image.Rect(sideMargin, y, cardWidth-sideMargin, y+rowHeight-4)
		bg := rowEvenColor
		if i%2 == 1 {
			bg = rowOddColor
		}
		drawRoundedPanel(img, rowRect, 8, bg)
		if i == 0 && row.Wins > 0 {
			drawRoundedPanel(img, rowRect, 8, leaderRowColor)
		}

		base := baselineIn(regular, rowRect.Min.Y, rowRect.Dy())
		d := &font.Drawer{Dst: img, Face: regular, Src: image.NewUniform(textPrimary)}
		if i == 0 && row.Wins > 0 && terr == nil {
			iy := rowRect.Min.Y + (rowRect.Dy()-iconSize)/2
			ir := image.Rect(rankColX-4, iy, rankColX-4+iconSize, iy+iconSize)
			imagedraw.Draw(img, ir, trophy, image.Point{}, imagedraw.Over)
		} else {
			drawAt(d, strconv.Itoa(i+1), rankColX, base)
		}

		name := fmt.Sprintf("%s (#%d)", row.Name, row.PlayerID)
		drawAt(d, truncateWithEllipsis(regular, name, winsColRight-nameColX-40), nameColX, base)

		d.Src = image.NewUniform(accentColor)
		drawRight(d, strconv.Itoa(row.Wins), winsColRight, base)
		d.Src = image.NewUniform(textPrimary)
		drawRight(d, strconv.Itoa(row.Losses()), lossColRight, base)
		d.Src = image.NewUniform(textMuted)
		drawRight(d, strconv.Itoa(row.Matches), matchColRight, base)
		y += rowHeight
	}
	if len(shown) == 0 {
		y += rowHeight
	}

	if hidden > 0 {
		footer := image.Rect(sideMargin, y, cardWidth-sideMargin, y+footerHeight)
		drawCenteredString(&font.Drawer{Dst: img, Face: regular}, footer, fmt.Sprintf("+%d more", hidden), textMuted)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func baselineIn(face font.Face, top, height int) int {
	m := face.Metrics()
	return top + (height+m.Ascent.Ceil()-m.Descent.Ceil())/2
}

func drawAt(d *font.Drawer, text string, x, baseline int) {
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}

func drawRight(d *font.Drawer, text string, right, baseline int) {
	drawAt(d, text, right-d.MeasureString(text).Round(), baseline)
}

func drawCenteredString(d *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	x := rect.Min.X + (rect.Dx()-d.MeasureString(text).Round())/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	d.Src = image.NewUniform(clr)
	drawAt(d, text, x, baselineIn(d.Face, rect.Min.Y, rect.Dy()))
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxWidth <= 0 {
		return trimmed
	}
	d := font.Drawer{Face: face}
	if d.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}
	const ellipsis = "..."
	runes := []rune(trimmed)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if c := string(runes) + ellipsis; d.MeasureString(c).Round() <= maxWidth {
			return c
		}
	}
	return ellipsis
}
