package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outlineDoc = `# User Guide

Intro text.

## Installation

Run the installer.

### Requirements

A recent OS.

## Configuration

Edit the config file.

### Advanced Configuration

Tune the knobs.

# Appendix

Extra material.
`

func TestOutline(t *testing.T) {
	headings := Outline(outlineDoc, 0)
	require.Len(t, headings, 6)

	assert.Equal(t, Heading{Level: 1, Text: "User Guide", Line: 1}, headings[0])
	assert.Equal(t, Heading{Level: 2, Text: "Installation", Line: 5}, headings[1])
	assert.Equal(t, Heading{Level: 3, Text: "Requirements", Line: 9}, headings[2])
	assert.Equal(t, "Appendix", headings[5].Text)
}

func TestOutlineMaxDepth(t *testing.T) {
	headings := Outline(outlineDoc, 2)
	require.Len(t, headings, 4)
	for _, h := range headings {
		assert.LessOrEqual(t, h.Level, 2)
	}
}

func TestOutlineEmpty(t *testing.T) {
	assert.Empty(t, Outline("no headings in this text", 0))
}

func TestExtractSectionCaseInsensitive(t *testing.T) {
	sec := ExtractSection(outlineDoc, "installation", false)
	require.NotNil(t, sec)

	assert.Equal(t, "Installation", sec.Heading)
	assert.Equal(t, 2, sec.Level)
	// Round trip: the first line of the content is the heading itself.
	firstLine := strings.SplitN(sec.Content, "\n", 2)[0]
	assert.Equal(t, "## Installation", firstLine)
	assert.GreaterOrEqual(t, sec.EndLine, sec.StartLine)
	// Without subsections the body stops before Requirements.
	assert.NotContains(t, sec.Content, "Requirements")
}

func TestExtractSectionWithSubsections(t *testing.T) {
	sec := ExtractSection(outlineDoc, "Installation", true)
	require.NotNil(t, sec)

	assert.Contains(t, sec.Content, "### Requirements")
	assert.Contains(t, sec.Content, "A recent OS.")
	// Stops at the next equal-level heading.
	assert.NotContains(t, sec.Content, "Configuration")
}

func TestExtractSectionSubstringMatch(t *testing.T) {
	sec := ExtractSection(outlineDoc, "advanced", false)
	require.NotNil(t, sec)
	assert.Equal(t, "Advanced Configuration", sec.Heading)
}

func TestExtractSectionLastSectionRunsToEnd(t *testing.T) {
	sec := ExtractSection(outlineDoc, "Appendix", true)
	require.NotNil(t, sec)
	assert.Contains(t, sec.Content, "Extra material.")
}

func TestExtractSectionNoMatch(t *testing.T) {
	assert.Nil(t, ExtractSection(outlineDoc, "nonexistent heading", false))
}
