package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bilgisen/newsroom/internal/utils"
	"github.com/go-resty/resty/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	canvasSize     = 1024
	gradientRatio  = 0.35
	gradientAlpha  = 200 // ~78% black at the bottom edge
	fontSize       = 48
	maxTextWidth   = 900 // ~88% of the canvas
	lineHeight     = 60
	bottomMargin   = 120
	shadowOffset   = 2
	jpegQuality    = 90
	hashNameLength = 16
)

// CompositorError reports which stage of compositing failed
type CompositorError struct {
	Stage string // fetch, render or write
	Ref   string
	Err   error
}

func (e *CompositorError) Error() string {
	return fmt.Sprintf("compose %s (%s): %v", e.Ref, e.Stage, e.Err)
}

func (e *CompositorError) Unwrap() error {
	return e.Err
}

// Config configures a Compositor
type Config struct {
	OutputDir string
	FontPaths []string // tried before DefaultFontPaths
	Timeout   time.Duration
}

// Compositor renders branded 1024x1024 headline images
type Compositor struct {
	client    *resty.Client
	outputDir string

	// font faces cache glyphs and are not safe for concurrent use
	mu       sync.Mutex
	face     font.Face
	fontName string
}

func New(cfg Config) *Compositor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	paths := append(append([]string{}, cfg.FontPaths...), DefaultFontPaths...)
	face, name := loadFace(paths, fontSize)

	return &Compositor{
		client:    resty.New().SetTimeout(cfg.Timeout),
		outputDir: cfg.OutputDir,
		face:      face,
		fontName:  name,
	}
}

// FontName reports the font file in use, or the built-in fallback name
func (c *Compositor) FontName() string {
	return c.fontName
}

// Compose fetches sourceRef, overlays headline and writes a JPEG. An empty
// outputPath derives the file name from the inputs, so identical inputs map
// to the same file.
func (c *Compositor) Compose(ctx context.Context, sourceRef, headline, outputPath string) (string, error) {
	src, err := c.load(ctx, sourceRef)
	if err != nil {
		return "", &CompositorError{Stage: "fetch", Ref: sourceRef, Err: err}
	}

	img, err := c.render(src, headline)
	if err != nil {
		return "", &CompositorError{Stage: "render", Ref: sourceRef, Err: err}
	}

	if outputPath == "" {
		outputPath = filepath.Join(c.outputDir, OutputName(sourceRef, headline))
	}
	if err := writeJPEG(outputPath, img); err != nil {
		return "", &CompositorError{Stage: "write", Ref: sourceRef, Err: err}
	}
	return outputPath, nil
}

// OutputName is the content-derived file name used when no path is given
func OutputName(sourceRef, headline string) string {
	return "news_" + utils.ShortHash(hashNameLength, sourceRef, headline) + ".jpg"
}

func (c *Compositor) load(ctx context.Context, ref string) (image.Image, error) {
	var data []byte

	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		resp, err := c.client.R().SetContext(ctx).Get(ref)
		if err != nil {
			return nil, fmt.Errorf("download failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("download returned status %d", resp.StatusCode())
		}
		data = resp.Body()
	case ref == "":
		return nil, errors.New("empty image reference")
	default:
		b, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
		if err != nil {
			return nil, err
		}
		data = b
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (c *Compositor) render(src image.Image, headline string) (img *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()

	bounds := image.Rect(0, 0, canvasSize, canvasSize)
	if src.Bounds().Empty() {
		return nil, errors.New("source image has no pixels")
	}

	canvas := image.NewRGBA(bounds)
	draw.CatmullRom.Scale(canvas, bounds, src, src.Bounds(), draw.Src, nil)

	applyGradient(canvas)

	c.mu.Lock()
	drawHeadline(canvas, c.face, headline)
	c.mu.Unlock()

	// Flatten onto opaque white so transparent sources encode cleanly
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(out, bounds, canvas, image.Point{}, draw.Over)
	return out, nil
}

// applyGradient darkens the bottom of the canvas with a linear black ramp
func applyGradient(canvas *image.RGBA) {
	b := canvas.Bounds()
	height := int(float64(b.Dy()) * gradientRatio)
	top := b.Max.Y - height

	for y := 0; y < height; y++ {
		alpha := uint8(y * gradientAlpha / height)
		row := image.Rect(b.Min.X, top+y, b.Max.X, top+y+1)
		draw.Draw(canvas, row, image.NewUniform(color.NRGBA{A: alpha}), image.Point{}, draw.Over)
	}
}

// drawHeadline centers each wrapped line, stacked upward from the bottom
// margin, with a drop shadow under white text.
func drawHeadline(canvas *image.RGBA, face font.Face, headline string) {
	lines := wrapText(face, headline, fixed.I(maxTextWidth))
	if len(lines) == 0 {
		return
	}

	ascent := face.Metrics().Ascent.Ceil()
	top := canvasSize - bottomMargin - len(lines)*lineHeight

	d := &font.Drawer{Dst: canvas, Face: face}
	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		x := (canvasSize - width) / 2
		baseline := top + i*lineHeight + ascent

		d.Src = image.Black
		d.Dot = fixed.P(x+shadowOffset, baseline+shadowOffset)
		d.DrawString(line)

		d.Src = image.White
		d.Dot = fixed.P(x, baseline)
		d.DrawString(line)
	}
}

// writeJPEG encodes to a temp file and renames it into place
func writeJPEG(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".compose-*.jpg")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode jpeg: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
