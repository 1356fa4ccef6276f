// Package output renders command results for humans and scripts:
// styled text on terminals, plain text on pipes, JSON on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/docindex/docindex/internal/chunk"
	"github.com/docindex/docindex/internal/search"
	"github.com/docindex/docindex/internal/store"
	"github.com/docindex/docindex/internal/syncer"
)

// snippetLimit truncates chunk content in result listings.
const snippetLimit = 240

// Renderer writes formatted results to one output stream.
type Renderer struct {
	w      io.Writer
	styles Styles
	asJSON bool
}

// NewRenderer picks styling from the stream: colors on a TTY, plain
// otherwise. NO_COLOR always disables colors; asJSON switches every
// render to one JSON document.
func NewRenderer(w io.Writer, asJSON bool) *Renderer {
	styles := PlainStyles()
	if !asJSON && isTTY(w) && !noColor() {
		styles = DefaultStyles()
	}
	return &Renderer{w: w, styles: styles, asJSON: asJSON}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func noColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

func (r *Renderer) renderJSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchResults renders a ranked result list.
func (r *Renderer) SearchResults(query string, results []search.Result) error {
	if r.asJSON {
		return r.renderJSON(results)
	}

	if len(results) == 0 {
		fmt.Fprintf(r.w, "No results for %q.\n", query)
		return nil
	}

	fmt.Fprintf(r.w, "%s\n\n", r.styles.Title.Render(fmt.Sprintf("Results for %q", query)))
	for i, res := range results {
		location := res.Collection + "/" + res.Document
		if res.Heading != "" {
			location += " › " + res.Heading
		}
		fmt.Fprintf(r.w, "%s %s  %s\n",
			r.styles.Accent.Render(fmt.Sprintf("%2d.", i+1)),
			r.styles.Title.Render(location),
			r.styles.Score.Render(fmt.Sprintf("score=%.4f distance=%.3f", res.Score, res.Distance)))
		fmt.Fprintf(r.w, "    %s\n\n", snippet(res.Content))
	}
	return nil
}

// Collections renders the collection listing.
func (r *Renderer) Collections(cols []*store.Collection) error {
	if r.asJSON {
		return r.renderJSON(cols)
	}

	if len(cols) == 0 {
		fmt.Fprintln(r.w, "No collections indexed.")
		return nil
	}

	for _, c := range cols {
		fmt.Fprintf(r.w, "%s  %s\n",
			r.styles.Title.Render(c.Name),
			r.styles.Dim.Render(c.ID))
		fmt.Fprintf(r.w, "  %s %d documents",
			r.styles.Label.Render("contains"), c.DocumentCount)
		if !c.LastSyncedAt.IsZero() {
			fmt.Fprintf(r.w, ", %s %s",
				r.styles.Label.Render("synced"),
				c.LastSyncedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(r.w)
		fmt.Fprintf(r.w, "  %s %s\n", r.styles.Label.Render("source"), c.Locator)
	}
	return nil
}

// Documents renders one page of a document listing.
func (r *Renderer) Documents(infos []*store.DocumentInfo, nextCursor string) error {
	if r.asJSON {
		return r.renderJSON(map[string]any{
			"documents":  infos,
			"nextCursor": nextCursor,
		})
	}

	for _, d := range infos {
		fmt.Fprintf(r.w, "%s  %s %s\n",
			r.styles.Accent.Render(d.ID),
			r.styles.Title.Render(d.Title),
			r.styles.Dim.Render(fmt.Sprintf("(%d bytes)", d.SizeBytes)))
	}
	if nextCursor != "" {
		fmt.Fprintf(r.w, "%s %s\n", r.styles.Label.Render("next cursor:"), nextCursor)
	}
	return nil
}

// SyncResult renders what one sync changed.
func (r *Renderer) SyncResult(result *syncer.Result) error {
	if r.asJSON {
		return r.renderJSON(result)
	}

	fmt.Fprintf(r.w, "%s %s\n",
		r.styles.Title.Render("Synced collection"),
		r.styles.Accent.Render(result.CollectionID))
	fmt.Fprintf(r.w, "  added %d, updated %d, removed %d (of %d entries)\n",
		result.Added, result.Updated, result.Removed, result.Total)
	return nil
}

// Outline renders a document's heading outline.
func (r *Renderer) Outline(headings []chunk.Heading) error {
	if r.asJSON {
		return r.renderJSON(headings)
	}

	for _, h := range headings {
		indent := strings.Repeat("  ", h.Level-1)
		fmt.Fprintf(r.w, "%s%s %s\n",
			indent,
			r.styles.Dim.Render(fmt.Sprintf("L%d", h.Line)),
			r.styles.Title.Render(h.Text))
	}
	return nil
}

// Section renders one extracted section, or a miss notice.
func (r *Renderer) Section(section *chunk.Section) error {
	if r.asJSON {
		if section == nil {
			return r.renderJSON(map[string]any{"found": false})
		}
		return r.renderJSON(section)
	}

	if section == nil {
		fmt.Fprintln(r.w, "No matching section.")
		return nil
	}
	fmt.Fprintln(r.w, section.Content)
	return nil
}

// Text renders a raw string, for document content passthrough.
func (r *Renderer) Text(s string) error {
	if r.asJSON {
		return r.renderJSON(s)
	}
	_, err := fmt.Fprintln(r.w, s)
	return err
}

func snippet(content string) string {
	oneLine := strings.Join(strings.Fields(content), " ")
	if len(oneLine) > snippetLimit {
		oneLine = oneLine[:snippetLimit] + "…"
	}
	return oneLine
}
