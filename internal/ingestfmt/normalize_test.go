package ingestfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("notes.txt"))
	assert.True(t, AllowedExtension("README.MD"))
	assert.True(t, AllowedExtension("script.py"))
	assert.False(t, AllowedExtension("report.pdf"))
	assert.False(t, AllowedExtension("archive.tar.gz"))
	assert.False(t, AllowedExtension("noext"))
}

func TestNormalizePassThrough(t *testing.T) {
	text, err := Normalize("notes.txt", []byte("Cats are mammals. Dogs are mammals too."))
	require.NoError(t, err)
	assert.Equal(t, "Cats are mammals. Dogs are mammals too.", text)
}

func TestNormalizeRejectsUnsupported(t *testing.T) {
	_, err := Normalize("report.pdf", []byte("%PDF-1.4"))
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestNormalizeRejectsBinary(t *testing.T) {
	_, err := Normalize("data.txt", []byte{0xff, 0xfe, 0x00, 0x80})
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestNormalizeMarkdown(t *testing.T) {
	md := "# Animals\n\nCats are *mammals*.\n\n- dogs\n- fish\n\n```go\nfmt.Println(\"hi\")\n```\n"
	text, err := Normalize("animals.md", []byte(md))
	require.NoError(t, err)
	assert.Contains(t, text, "Animals")
	assert.Contains(t, text, "Cats are mammals")
	assert.Contains(t, text, "dogs")
	assert.Contains(t, text, "fmt.Println")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "*")
	assert.NotContains(t, text, "```")
}
