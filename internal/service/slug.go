package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// slugify lowercases and dashes a title into a URL-safe slug.
func slugify(raw string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastDash = false
		case !lastDash:
			sb.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(sb.String(), "-")
}

// uniqueSlug derives a slug and suffixes a counter until the existence check
// clears. The unique index remains the final arbiter for concurrent creators.
func uniqueSlug(ctx context.Context, base string, exists func(context.Context, string) (bool, error)) (string, error) {
	slug := slugify(base)
	if slug == "" {
		slug = "untitled"
	}
	candidate := slug
	for i := 2; ; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
}
