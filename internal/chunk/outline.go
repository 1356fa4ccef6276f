package chunk

import "strings"

// Heading is one entry of a document outline.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
}

// Section is a heading together with its body text.
type Section struct {
	Heading   string `json:"heading"`
	Level     int    `json:"level"`
	Content   string `json:"content"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// Outline returns the document's headings in order, up to maxDepth
// levels deep. maxDepth <= 0 means no depth limit.
func Outline(content string, maxDepth int) []Heading {
	var headings []Heading
	for i, line := range strings.Split(content, "\n") {
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level := len(m[1])
		if maxDepth > 0 && level > maxDepth {
			continue
		}
		headings = append(headings, Heading{
			Level: level,
			Text:  strings.TrimSpace(m[2]),
			Line:  i + 1,
		})
	}
	return headings
}

// ExtractSection finds the first heading whose text contains query
// (case-insensitive) and returns that heading with its body. With
// includeSubsections, the body extends to the next heading of equal or
// higher level; otherwise it stops at any heading. Returns nil when no
// heading matches.
func ExtractSection(content, query string, includeSubsections bool) *Section {
	lines := strings.Split(content, "\n")
	queryLower := strings.ToLower(query)

	start := -1
	level := 0
	var text string
	for i, line := range lines {
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if strings.Contains(strings.ToLower(m[2]), queryLower) {
			start = i
			level = len(m[1])
			text = strings.TrimSpace(m[2])
			break
		}
	}
	if start == -1 {
		return nil
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		m := headingPattern.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		if !includeSubsections || len(m[1]) <= level {
			end = i
			break
		}
	}

	body := strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n")
	endLine := start + strings.Count(body, "\n") + 1

	return &Section{
		Heading:   text,
		Level:     level,
		Content:   body,
		StartLine: start + 1,
		EndLine:   endLine,
	}
}
