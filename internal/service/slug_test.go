package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Go From Scratch":        "go-from-scratch",
		"  C++ / Rust, 2024!  ":  "c-rust-2024",
		"ALREADY-dashed title":   "already-dashed-title",
		"trailing punctuation!!": "trailing-punctuation",
		"":                       "",
	}
	for input, want := range cases {
		assert.Equal(t, want, slugify(input), "input %q", input)
	}
}

func TestUniqueSlugFallsBackToUntitled(t *testing.T) {
	slug, err := uniqueSlug(context.Background(), "!!!", func(ctx context.Context, s string) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "untitled", slug)
}

func TestUniqueSlugCountsUpward(t *testing.T) {
	taken := map[string]bool{"news": true, "news-2": true, "news-3": true}
	slug, err := uniqueSlug(context.Background(), "News", func(ctx context.Context, s string) (bool, error) {
		return taken[s], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "news-4", slug)
}
