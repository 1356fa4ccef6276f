package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyContent(t *testing.T) {
	c := New(Options{})
	assert.Nil(t, c.Split("doc.md", ""))
	assert.Nil(t, c.Split("doc.md", "   \n\n  "))
}

func TestSplitSmallDocumentSingleSlice(t *testing.T) {
	c := New(Options{})
	content := "# Getting Started\n\nInstall the package and run the init command."

	slices := c.Split("guide.md", content)
	require.Len(t, slices, 1)

	s := slices[0]
	assert.Equal(t, 0, s.Seq)
	assert.Equal(t, "Getting Started", s.Heading)
	assert.Contains(t, s.Content, "Install the package")
	assert.NotContains(t, s.Content, "Document:")
}

func TestSplitEmbedTextPrefix(t *testing.T) {
	c := New(Options{})
	content := "# API Guide\n\nIntro paragraph.\n\n## Authentication\n\nUse bearer tokens."

	slices := c.Split("api.md", content)
	require.NotEmpty(t, slices)

	last := slices[len(slices)-1]
	// Single slice covers the whole document here.
	assert.True(t, strings.HasPrefix(last.EmbedText, "Document: API Guide\n"))
}

func TestSplitSectionHeadingInPrefix(t *testing.T) {
	c := New(Options{MaxTokens: 20, OverlapTokens: 2})
	content := "# API Guide\n\n" + strings.Repeat("Intro text here. ", 10) +
		"\n\n## Authentication\n\n" + strings.Repeat("Token details. ", 10)

	slices := c.Split("api.md", content)
	require.Greater(t, len(slices), 1)

	var found bool
	for _, s := range slices {
		if s.Heading == "Authentication" {
			found = true
			assert.Contains(t, s.EmbedText, "Document: API Guide\n")
			assert.Contains(t, s.EmbedText, "Section: Authentication\n")
		}
	}
	assert.True(t, found, "expected a slice under the Authentication heading")
}

func TestSplitTitleEqualsHeadingOmitsSectionLine(t *testing.T) {
	c := New(Options{})
	content := "# Overview\n\nEverything lives under the top heading."

	slices := c.Split("doc.md", content)
	require.Len(t, slices, 1)
	assert.NotContains(t, slices[0].EmbedText, "Section:")
}

func TestSplitNoHeadingFallsBackToDocID(t *testing.T) {
	c := New(Options{})
	slices := c.Split("notes/readme.txt", "plain text without any headings at all")
	require.Len(t, slices, 1)
	assert.Contains(t, slices[0].EmbedText, "Document: notes/readme.txt")
	assert.Empty(t, slices[0].Heading)
}

func TestSplitRespectsMaxTokens(t *testing.T) {
	c := New(Options{MaxTokens: 25, OverlapTokens: 5})

	var sb strings.Builder
	sb.WriteString("# Long Document\n\n")
	for i := 0; i < 20; i++ {
		sb.WriteString("This paragraph pads the document with enough text to split.\n\n")
	}

	slices := c.Split("long.md", sb.String())
	require.Greater(t, len(slices), 2)

	for i, s := range slices {
		assert.Equal(t, i, s.Seq)
		assert.GreaterOrEqual(t, s.EndLine, s.StartLine)
	}
}

func TestSplitOverlapCarriesText(t *testing.T) {
	c := New(Options{MaxTokens: 25, OverlapTokens: 12})

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("Unique paragraph number ")
		sb.WriteString(strings.Repeat("x", i+1))
		sb.WriteString(" with filler words to reach a useful length.\n\n")
	}

	slices := c.Split("doc.md", sb.String())
	require.Greater(t, len(slices), 1)

	// Every consecutive pair shares boundary text: the next slice opens
	// with a suffix of the previous one, even when the trailing
	// paragraph is bigger than the overlap budget.
	for i := 1; i < len(slices); i++ {
		carried := strings.Split(slices[i].Content, "\n\n")[0]
		require.NotEmpty(t, carried, "slice %d carries no overlap", i)
		assert.True(t, strings.HasSuffix(slices[i-1].Content, carried),
			"slice %d does not open with a suffix of slice %d", i, i-1)
	}
}

func TestSplitOverlapBoundedByBudget(t *testing.T) {
	c := New(Options{MaxTokens: 25, OverlapTokens: 12})

	big := "alpha beta gamma delta " + strings.Repeat("filler words here ", 10)
	content := big + "\n\n" + "Short closing paragraph."

	slices := c.Split("doc.md", content)
	require.Greater(t, len(slices), 1)

	carried := strings.Split(slices[1].Content, "\n\n")[0]
	require.NotEmpty(t, carried)
	assert.True(t, strings.HasSuffix(slices[0].Content, carried))
	assert.LessOrEqual(t, len(carried), 12*TokensPerChar)
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		docID   string
		content string
		want    string
	}{
		{"top level heading", "a.md", "# My Title\n\ntext", "My Title"},
		{"skips deeper headings", "a.md", "## Sub\n\n# Real Title", "Real Title"},
		{"falls back to doc id", "docs/a.md", "no headings here", "docs/a.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.docID, tt.content))
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := New(Options{MaxTokens: 30, OverlapTokens: 5})
	content := "# T\n\n" + strings.Repeat("Paragraph content for determinism checks.\n\n", 12)

	a := c.Split("d.md", content)
	b := c.Split("d.md", content)
	assert.Equal(t, a, b)
}
