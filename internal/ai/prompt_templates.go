package ai

import (
	"fmt"
	"strings"

	"github.com/bilgisen/newsroom/internal/models"
)

const maxPromptSummaryRunes = 400

// PromptTemplates contains the prompt templates sent to the model
var PromptTemplates = struct {
	Rank    string
	Rewrite string
}{
	Rank: `You are the editor of a popular social media news page.
From the numbered news items below, choose the %d items your audience will find most interesting.

Respond with valid JSON only, in this exact shape:
{"indices": [<item numbers>]}

Use the item numbers shown (starting at 1). Do not repeat a number.

News items:
%s`,
	Rewrite: `You are an expert %[1]s journalist writing for a social media news page.
Rewrite the following news article in %[1]s.

Requirements:
1. Headline: catchy, natural %[1]s, at most %[2]d characters
2. Body: 200-300 words of engaging %[1]s prose, plain text paragraphs, no markdown headings

Respond with valid JSON only, in this exact shape:
{"headline": "...", "body": "..."}

Article:
Title: %[3]s

Summary: %[4]s`,
}

// BuildRankPrompt lists candidates with their 1-based numbers
func BuildRankPrompt(candidates []models.Candidate, n int) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, escapeForPrompt(c.Title))
		if summary := truncateRunes(escapeForPrompt(c.Summary), maxPromptSummaryRunes); summary != "" {
			fmt.Fprintf(&b, "   %s\n", summary)
		}
	}
	return fmt.Sprintf(PromptTemplates.Rank, n, b.String())
}

// BuildRewritePrompt creates the localization prompt for one article
func BuildRewritePrompt(language string, maxHeadline int, title, summary string) string {
	return fmt.Sprintf(PromptTemplates.Rewrite, language, maxHeadline, escapeForPrompt(title), escapeForPrompt(summary))
}

// escapeForPrompt flattens whitespace so the article cannot break the template
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
