package task

import (
	"os"
	"regexp"
	"strings"

	"artbatch/internal/errors"
)

// Two sub-formats coexist in a task document and both are scanned over the
// full text.
//
// Structured entries carry explicit metadata:
//
//	### Cover Art
//	**Type:** image
//	**Backend:** gemini
//	**Output Name:** cover_art
//	**Extension:** png
//
//	```
//	A watercolor albatross over a stormy sea.
//	```
//
// Minimal entries are a heading followed by a fenced prompt, with optional
// blank lines between them; missing metadata is filled with defaults and the
// output name is derived from the heading.
// Heading and metadata groups are confined to single lines; only the prompt
// body may span lines. Letting the heading group cross newlines would make
// the minimal scan re-match a whole structured block under a garbage
// multi-line heading.
var (
	structuredPattern = regexp.MustCompile(`###[ \t]+([^\n]+?)[ \t]*\n` +
		`\*\*Type:\*\*[ \t]+(\w+)[ \t]*\n` +
		`\*\*Backend:\*\*[ \t]+(\w+)[ \t]*\n` +
		`\*\*Output Name:\*\*[ \t]+([^\n]+?)[ \t]*\n` +
		`\*\*Extension:\*\*[ \t]+(\w+)[ \t]*\n` +
		"(?s:.*?)```\n(?s:(.*?))\n```")

	minimalPattern = regexp.MustCompile("###[ \t]+([^\n]+?)[ \t]*\n(?:[ \t]*\n)*```\n(?s:(.*?))\n```")

	nonWordChars  = regexp.MustCompile(`[^\w\s-]`)
	separatorRuns = regexp.MustCompile(`[\s-]+`)
)

// Options configures parsing.
type Options struct {
	// DefaultBackend fills the backend of minimal entries. Empty means
	// DefaultBackend ("gemini").
	DefaultBackend string
}

// ParseFile reads and parses a task document. An unreadable file is fatal to
// the whole parse: no partial task list is returned.
func ParseFile(path string, opts Options) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewParseError(path, err)
	}
	return Parse(string(data), opts), nil
}

// Parse extracts all task definitions from document text. Both scans run over
// the full document; a heading captured by the structured scan is not
// duplicated by the minimal scan. Returned order is all structured matches in
// document order, then all non-duplicate minimal matches in document order.
//
// A malformed block is simply a non-match: it fails that block only, never
// the document, and never yields a partial task.
func Parse(content string, opts Options) []Task {
	defaultBackend := strings.ToLower(opts.DefaultBackend)
	if defaultBackend == "" {
		defaultBackend = DefaultBackend
	}

	var tasks []Task
	seen := make(map[string]bool)

	for _, m := range structuredPattern.FindAllStringSubmatch(content, -1) {
		t := Task{
			Name:       strings.TrimSpace(m[1]),
			Kind:       ParseKind(m[2]),
			Backend:    strings.ToLower(strings.TrimSpace(m[3])),
			OutputName: strings.TrimSpace(m[4]),
			Extension:  strings.ToLower(strings.TrimSpace(m[5])),
			Prompt:     strings.TrimSpace(m[6]),
		}
		if t.validate() != nil {
			continue
		}
		tasks = append(tasks, t)
		seen[t.Name] = true
	}

	for _, m := range minimalPattern.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(m[1])
		if seen[name] {
			// Structured entries take precedence for the same heading.
			continue
		}

		t := Task{
			Name:       name,
			Kind:       KindImage,
			Backend:    defaultBackend,
			OutputName: DeriveOutputName(name),
			Extension:  DefaultExtension,
			Prompt:     strings.TrimSpace(m[2]),
		}
		if t.validate() != nil {
			continue
		}
		tasks = append(tasks, t)
		seen[t.Name] = true
	}

	return tasks
}

// DeriveOutputName turns a heading into a filename stem: lowercase, strip
// characters outside word/space/hyphen, collapse whitespace and hyphen runs
// into single underscores.
//
//	"Cover Art!" -> "cover_art"
func DeriveOutputName(heading string) string {
	name := strings.ToLower(strings.TrimSpace(heading))
	name = nonWordChars.ReplaceAllString(name, "")
	name = separatorRuns.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}
