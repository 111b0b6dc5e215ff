// Package webmap provides the embedded map and point-picker pages.
package webmap

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed pages
var pagesFS embed.FS

// Page names served by the HTTP layer.
const (
	PageIndex  = "index.html"
	PagePick   = "pick.html"
	PageDelete = "delete.html"
)

// Render loads an embedded page and substitutes the map placeholders.
// Unknown pages are an error; unreplaced placeholders are not.
func Render(page string, lat, lon float64, zoom int) ([]byte, error) {
	raw, err := fs.ReadFile(pagesFS, "pages/"+page)
	if err != nil {
		return nil, fmt.Errorf("webmap page %s: %w", page, err)
	}
	out := strings.NewReplacer(
		"__LAT__", fmt.Sprintf("%.6f", lat),
		"__LON__", fmt.Sprintf("%.6f", lon),
		"__ZOOM__", fmt.Sprintf("%d", zoom),
	).Replace(string(raw))
	return []byte(out), nil
}
