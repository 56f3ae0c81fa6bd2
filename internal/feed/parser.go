package feed

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Parser handles cleaning and normalizing feed items
type Parser struct {
	feeds       *gofeed.Parser
	placeholder string
}

func NewParser(placeholderImage string) *Parser {
	return &Parser{
		feeds:       gofeed.NewParser(),
		placeholder: placeholderImage,
	}
}

// Parse decodes an RSS, Atom or JSON feed body into candidates ordered most
// recent first. Entries without a title or usable link are skipped.
func (p *Parser) Parse(ctx context.Context, body []byte) ([]models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := p.feeds.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(parsed.Items))
	dated := true
	for _, entry := range parsed.Items {
		c, ok := p.candidate(entry)
		if !ok {
			continue
		}
		if c.Published.IsZero() {
			dated = false
		}
		candidates = append(candidates, c)
	}

	// Keep feed order unless every entry carries a date to sort by
	if dated {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Published.After(candidates[j].Published)
		})
	}
	return candidates, nil
}

func (p *Parser) candidate(entry *gofeed.Item) (models.Candidate, bool) {
	title := CleanHTML(entry.Title)
	link := extractLink(entry)
	if title == "" || link == "" {
		return models.Candidate{}, false
	}

	summary := entry.Description
	if strings.TrimSpace(summary) == "" {
		summary = entry.Content
	}

	var published time.Time
	switch {
	case entry.PublishedParsed != nil:
		published = *entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		published = *entry.UpdatedParsed
	}

	image := extractImage(entry)
	if image == "" {
		image = p.placeholder
	}

	return models.Candidate{
		Title:     title,
		URL:       link,
		Summary:   CleanHTML(summary),
		Published: published,
		ImageURL:  image,
	}, true
}

// CleanHTML removes HTML tags, decodes entities and normalizes whitespace
func CleanHTML(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return strings.Join(strings.Fields(input), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// extractLink prefers the entry link and falls back to a URL-shaped GUID
func extractLink(entry *gofeed.Item) string {
	if link := strings.TrimSpace(entry.Link); link != "" {
		return link
	}
	if strings.HasPrefix(entry.GUID, "http") {
		return strings.TrimSpace(entry.GUID)
	}
	return ""
}

// extractImage returns the first image reference attached to an entry:
// image enclosures, then media:content / media:thumbnail, then the parsed
// item image, then the first <img> in the body.
func extractImage(entry *gofeed.Item) string {
	for _, enc := range entry.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") || (enc.Type == "" && looksLikeImage(enc.URL)) {
			return enc.URL
		}
	}

	if media, ok := entry.Extensions["media"]; ok {
		if url := mediaImage(media); url != "" {
			return url
		}
	}

	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}

	for _, body := range []string{entry.Content, entry.Description} {
		if url := firstImgSrc(body); url != "" {
			return url
		}
	}
	return ""
}

func mediaImage(media map[string][]ext.Extension) string {
	var candidates []ext.Extension
	candidates = append(candidates, media["content"]...)
	for _, group := range media["group"] {
		candidates = append(candidates, group.Children["content"]...)
	}
	for _, c := range candidates {
		url := c.Attrs["url"]
		if url == "" {
			continue
		}
		if c.Attrs["medium"] == "image" || strings.HasPrefix(c.Attrs["type"], "image/") || looksLikeImage(url) {
			return url
		}
	}
	for _, t := range media["thumbnail"] {
		if url := t.Attrs["url"]; url != "" {
			return url
		}
	}
	return ""
}

func firstImgSrc(body string) string {
	if !strings.Contains(body, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

func looksLikeImage(url string) bool {
	clean := url
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	return imageExtensions[strings.ToLower(path.Ext(clean))]
}
