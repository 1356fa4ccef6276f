// Package chunk splits document text into token-bounded, overlapping
// slices and extracts heading structure for section lookups.
package chunk

import (
	"regexp"
	"strings"
)

// Chunking defaults.
const (
	// DefaultMaxTokens is the target slice size in tokens.
	DefaultMaxTokens = 400

	// DefaultOverlapTokens is the overlap between consecutive slices.
	DefaultOverlapTokens = 40

	// TokensPerChar approximates tokens from characters (4 chars = 1 token).
	TokensPerChar = 4
)

// headingPattern matches markdown headings: # Title through ###### Title.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// Slice is one embeddable unit of a document. Content is the original
// text shown to callers; EmbedText carries the context prefix and is
// used only for embedding.
type Slice struct {
	Content   string
	EmbedText string
	Heading   string
	Seq       int
	StartLine int
	EndLine   int
}

// Options configures the chunker.
type Options struct {
	MaxTokens     int
	OverlapTokens int
}

// Chunker splits documents into slices.
type Chunker struct {
	opts Options
}

// block is a paragraph-level unit with its nearest preceding heading.
type block struct {
	text      string
	heading   string
	startLine int
	endLine   int
	tokens    int
}

// New creates a chunker, applying defaults for zero options.
func New(opts Options) *Chunker {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.OverlapTokens < 0 || opts.OverlapTokens >= opts.MaxTokens {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	return &Chunker{opts: opts}
}

// Split chunks a document into token-bounded slices with overlap. Each
// slice carries its nearest preceding section heading and an embed text
// prefixed with the document title and that heading.
func (c *Chunker) Split(docID, content string) []Slice {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	title := Title(docID, content)
	lines := strings.Split(content, "\n")

	// Group lines into paragraph blocks, tracking the nearest heading.
	var blocks []block
	var cur strings.Builder
	curStart := 1
	heading := ""
	curHeading := ""

	flush := func(endLine int) {
		text := strings.TrimRight(cur.String(), "\n")
		if strings.TrimSpace(text) != "" {
			blocks = append(blocks, block{
				text:      text,
				heading:   curHeading,
				startLine: curStart,
				endLine:   endLine,
				tokens:    estimateTokens(text),
			})
		}
		cur.Reset()
	}

	for i, line := range lines {
		lineNum := i + 1
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush(lineNum - 1)
			heading = strings.TrimSpace(m[2])
			curHeading = heading
			curStart = lineNum
			cur.WriteString(line)
			cur.WriteString("\n")
			continue
		}
		if strings.TrimSpace(line) == "" && cur.Len() > 0 {
			flush(lineNum - 1)
			curStart = lineNum + 1
			curHeading = heading
			continue
		}
		if cur.Len() == 0 {
			curStart = lineNum
			curHeading = heading
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush(len(lines))

	// Pack blocks into slices up to MaxTokens, carrying the tail blocks
	// forward as overlap.
	var slices []Slice
	var pending []block
	pendingTokens := 0

	emit := func() {
		if len(pending) == 0 {
			return
		}
		texts := make([]string, len(pending))
		for i, b := range pending {
			texts[i] = b.text
		}
		body := strings.Join(texts, "\n\n")
		h := pending[0].heading
		slices = append(slices, Slice{
			Content:   body,
			EmbedText: embedText(title, h, body),
			Heading:   h,
			Seq:       len(slices),
			StartLine: pending[0].startLine,
			EndLine:   pending[len(pending)-1].endLine,
		})
	}

	for _, b := range blocks {
		if pendingTokens > 0 && pendingTokens+b.tokens > c.opts.MaxTokens {
			emit()
			pending, pendingTokens = overlapTail(pending, c.opts.OverlapTokens)
		}
		pending = append(pending, b)
		pendingTokens += b.tokens
	}
	emit()

	return slices
}

// overlapTail selects the trailing blocks carried into the next slice.
// When even the final block alone exceeds the budget, a token-bounded
// suffix of its text is carried instead, so consecutive slices always
// share text at the boundary.
func overlapTail(pending []block, budget int) ([]block, int) {
	if budget <= 0 || len(pending) == 0 {
		return nil, 0
	}
	var overlap []block
	tokens := 0
	for i := len(pending) - 1; i >= 0; i-- {
		if tokens+pending[i].tokens > budget {
			break
		}
		tokens += pending[i].tokens
		overlap = append([]block{pending[i]}, overlap...)
	}
	if len(overlap) > 0 {
		return overlap, tokens
	}

	last := pending[len(pending)-1]
	suffix := tailText(last.text, budget*TokensPerChar)
	if suffix == "" {
		return nil, 0
	}
	carried := block{
		text:      suffix,
		heading:   last.heading,
		startLine: last.endLine,
		endLine:   last.endLine,
		tokens:    estimateTokens(suffix),
	}
	return []block{carried}, carried.tokens
}

// tailText returns a suffix of text at most maxChars long, advanced to
// the next word boundary when it would cut a word.
func tailText(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := text[len(text)-maxChars:]
	if i := strings.IndexAny(cut, " \n"); i >= 0 && i+1 < len(cut) {
		cut = cut[i+1:]
	}
	return strings.TrimSpace(cut)
}

// embedText builds the context-prefixed string used for embedding. The
// section line is omitted when the heading matches the title or is empty.
func embedText(title, heading, body string) string {
	var sb strings.Builder
	sb.WriteString("Document: ")
	sb.WriteString(title)
	sb.WriteString("\n")
	if heading != "" && heading != title {
		sb.WriteString("Section: ")
		sb.WriteString(heading)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(body)
	return sb.String()
}

// Title extracts the document title: the first top-level heading, or
// the document ID if none exists.
func Title(docID, content string) string {
	for _, line := range strings.Split(content, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil && len(m[1]) == 1 {
			return strings.TrimSpace(m[2])
		}
	}
	return docID
}

// estimateTokens approximates token count from character count.
func estimateTokens(content string) int {
	return len(content) / TokensPerChar
}
