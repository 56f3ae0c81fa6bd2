package imaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// DefaultFontPaths are Thai-capable fonts commonly installed on macOS,
// Linux and Windows, tried in order after any configured paths.
var DefaultFontPaths = []string{
	"/System/Library/Fonts/Supplemental/Thonburi.ttc",
	"/System/Library/Fonts/Thonburi.ttc",
	"/usr/share/fonts/truetype/noto/NotoSansThai-Regular.ttf",
	"/usr/share/fonts/opentype/noto/NotoSansThai-Regular.ttf",
	"/usr/share/fonts/truetype/tlwg/Garuda.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	`C:\Windows\Fonts\leelawad.ttf`,
}

const builtinFontName = "basicfont-7x13"

// loadFace returns the first font in paths that parses, or the built-in
// bitmap face when none does.
func loadFace(paths []string, size float64) (font.Face, string) {
	for _, path := range paths {
		face, err := openFace(path, size)
		if err != nil {
			continue
		}
		return face, path
	}
	return basicfont.Face7x13, builtinFontName
}

func openFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f *sfnt.Font
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		coll, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse collection %s: %w", path, err)
		}
		if coll.NumFonts() == 0 {
			return nil, fmt.Errorf("empty font collection %s", path)
		}
		f, err = coll.Font(0)
		if err != nil {
			return nil, fmt.Errorf("read font 0 of %s: %w", path, err)
		}
	} else {
		f, err = opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", path, err)
		}
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// wrapText splits text into lines no wider than maxWidth. Words wider than
// a line, as in scripts written without spaces, are broken between runes.
func wrapText(face font.Face, text string, maxWidth fixed.Int26_6) []string {
	var lines []string
	current := ""

	fits := func(s string) bool {
		return font.MeasureString(face, s) <= maxWidth
	}

	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if fits(candidate) {
			current = candidate
			continue
		}

		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		if fits(word) {
			current = word
			continue
		}

		for _, r := range word {
			next := current + string(r)
			if current != "" && !fits(next) {
				lines = append(lines, current)
				next = string(r)
			}
			current = next
		}
	}

	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
