package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlight(t *testing.T) {
	assert.True(t, Highlight(true, true, false), "force wins over hide")
	assert.False(t, Highlight(false, true, true), "hide wins over pinned")
	assert.True(t, Highlight(false, false, true))
	assert.False(t, Highlight(false, false, false))
}

func TestNormalizePermalink(t *testing.T) {
	tests := map[string]string{
		"":                      "",
		"   ":                   "",
		"archives/hello":        "/archives/hello",
		" /archives/hello ":     "/archives/hello",
		"https://example.com/a": "https://example.com/a",
		"http://example.com/a":  "http://example.com/a",
		"//cdn.example.com/a":   "//cdn.example.com/a",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePermalink(in), in)
	}
}

func TestCloneEventsIsIndependent(t *testing.T) {
	orig := []Event{{Title: "a"}}
	clone := CloneEvents(orig)
	clone[0].Title = "b"
	assert.Equal(t, "a", orig[0].Title)
	assert.Nil(t, CloneEvents(nil))
}
