package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/*.svg
var iconFiles embed.FS

var (
	iconCache   = map[iconKey]*image.RGBA{}
	iconCacheMu sync.Mutex
)

type iconKey struct {
	name string
	size int
}

// rasterizeIcon renders an embedded SVG into a size x size RGBA image.
func rasterizeIcon(name string, size int) (*image.RGBA, error) {
	key := iconKey{name: name, size: size}
	iconCacheMu.Lock()
	defer iconCacheMu.Unlock()
	if img, ok := iconCache[key]; ok {
		return img, nil
	}

	data, err := iconFiles.ReadFile("assets/" + name)
	if err != nil {
		return nil, fmt.Errorf("read icon %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(normalizeSVG(data)))
	if err != nil {
		return nil, fmt.Errorf("parse icon %s: %w", name, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.W, icon.ViewBox.H = float64(size), float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	iconCache[key] = img
	return img, nil
}

// normalizeSVG drops the space oksvg rejects after ':' in inline styles.
func normalizeSVG(svg []byte) []byte {
	out := svg
	for _, prop := range []string{"fill", "stroke", "stop-color"} {
		out = bytes.ReplaceAll(out, []byte(prop+": "), []byte(prop+":"))
	}
	return out
}
