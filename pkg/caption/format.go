package caption

import (
	"unicode/utf8"

	"igrelay/pkg/models"
)

// Options control caption formatting.
type Options struct {
	// MaxLength is the destination's caption budget, in characters.
	MaxLength int
	// Tail marks a truncated caption, e.g. "...".
	Tail string
	// IncludeLink appends the post permalink to the caption.
	IncludeLink bool
}

// Format enforces the caption length budget and optionally appends the post
// permalink. Truncation happens at character boundaries with no attempt to
// preserve words. The result never exceeds MaxLength characters.
func Format(text, shortcode string, opts Options) string {
	if utf8.RuneCountInString(text) > opts.MaxLength {
		text = truncate(text, opts.MaxLength-utf8.RuneCountInString(opts.Tail)) + opts.Tail
	}

	if !opts.IncludeLink {
		return text
	}

	link := models.Permalink(shortcode)
	if text == "" {
		return link
	}

	link = "\n" + link
	if utf8.RuneCountInString(text)+utf8.RuneCountInString(link) > opts.MaxLength {
		keep := opts.MaxLength - utf8.RuneCountInString(opts.Tail) - utf8.RuneCountInString(link)
		text = truncate(text, keep) + opts.Tail
	}
	return text + link
}

// truncate cuts text to at most n characters.
func truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
