// Package report renders run and plan results for terminals, pull request
// comments and CI artifacts.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/monobuild/internal/foundation/normalization"
	"git.home.luguber.info/inful/monobuild/internal/run"
)

// Format selects the output representation.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

var formatNormalizer = normalization.NewNormalizer(map[string]Format{
	"text":     FormatText,
	"txt":      FormatText,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
	"json":     FormatJSON,
	"html":     FormatHTML,
}, FormatText)

// ParseFormat converts user input into a Format.
func ParseFormat(raw string) (Format, error) {
	if raw == "" {
		return FormatText, nil
	}
	return formatNormalizer.NormalizeWithError(raw)
}

// Formats lists the accepted format names.
func Formats() []string { return formatNormalizer.ValidKeys() }

// Render writes res to w in the given format.
func Render(w io.Writer, res *run.Result, format Format) error {
	switch format {
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(res))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case FormatHTML:
		return HTML(w, res)
	default:
		_, err := io.WriteString(w, Text(res))
		return err
	}
}

var htmlRenderer = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// HTML renders the markdown report as an HTML fragment.
func HTML(w io.Writer, res *run.Result) error {
	var buf bytes.Buffer
	if err := htmlRenderer.Convert([]byte(Markdown(res)), &buf); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
