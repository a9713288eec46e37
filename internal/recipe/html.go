package recipe

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minStepLength drops fragments that are too short to be an instruction.
const minStepLength = 10

var (
	brTag        = regexp.MustCompile(`(?i)<br\s*/?>`)
	numberedStep = regexp.MustCompile(`\d+\.\s+([^.!?]+[.!?])`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// StripHTML returns the text content of an HTML fragment with collapsed whitespace.
func StripHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapse(html)
	}
	return collapse(doc.Text())
}

// ParseInstructions splits free-form instruction HTML into steps. It tries
// paragraph and list elements, then <br> separated lines, then numbered
// steps, then sentences.
func ParseInstructions(html string) []Step {
	if strings.TrimSpace(html) == "" {
		return nil
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		var texts []string
		doc.Find("p, li").Each(func(_ int, s *goquery.Selection) {
			texts = append(texts, s.Text())
		})
		if len(texts) > 0 {
			return toSteps(texts)
		}
	}

	if parts := brTag.Split(html, -1); len(parts) > 1 {
		texts := make([]string, len(parts))
		for i, p := range parts {
			texts[i] = StripHTML(p)
		}
		return toSteps(texts)
	}

	if matches := numberedStep.FindAllStringSubmatch(html, -1); len(matches) > 0 {
		texts := make([]string, len(matches))
		for i, m := range matches {
			texts[i] = StripHTML(m[1])
		}
		return toSteps(texts)
	}

	return toSteps(splitSentences(StripHTML(html)))
}

func toSteps(texts []string) []Step {
	var steps []Step
	for _, t := range texts {
		t = collapse(t)
		if len(t) <= minStepLength {
			continue
		}
		steps = append(steps, Step{Number: len(steps) + 1, Text: t})
	}
	return steps
}

// splitSentences breaks text after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t') {
				out = append(out, text[start:i+1])
				start = i + 1
			}
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
