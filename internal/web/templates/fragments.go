// Package templates renders the HTMX fragments returned by the import API.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/runimport/internal/core"
)

// ErrorAlert renders a dismissible error box with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		if code != "" {
			fmt.Fprintf(&b, `<p class="alert-code">Code: %s</p>`, templ.EscapeString(code))
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// PreviewSummary renders detected format, encoding, warnings and the
// sample rows of a preview.
func PreviewSummary(res *core.PreviewResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section class="preview">`)
		fmt.Fprintf(&b, `<p class="preview-message">%s</p>`, templ.EscapeString(res.Message))
		fmt.Fprintf(&b, `<dl><dt>Format</dt><dd>%s</dd><dt>Encoding</dt><dd>%s</dd>`,
			templ.EscapeString(string(res.Format)), templ.EscapeString(res.Encoding))
		fmt.Fprintf(&b, `<dt>Rows</dt><dd>%d (%d valid, %d invalid)</dd>`,
			res.TotalRows, res.ValidRows, res.InvalidRows)
		if res.EstimatedWorkoutType != "" {
			fmt.Fprintf(&b, `<dt>Workout</dt><dd>%s, %d fast laps</dd>`,
				templ.EscapeString(res.EstimatedWorkoutType), res.DashCount)
		}
		b.WriteString(`</dl>`)

		writeWarnings(&b, res.Warnings)

		b.WriteString(`<table class="preview-rows"><thead><tr>`)
		for _, col := range res.Columns {
			fmt.Fprintf(&b, `<th>%s</th>`, templ.EscapeString(col))
		}
		b.WriteString(`</tr></thead><tbody>`)
		for _, row := range res.SampleRows {
			b.WriteString(`<tr>`)
			for _, col := range res.Columns {
				fmt.Fprintf(&b, `<td>%s</td>`, templ.EscapeString(row[col]))
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table></section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportSummary renders the outcome of an import. stored is the number of
// records written to the database, or -1 when storage is disabled.
func ImportSummary(res *core.ImportResult, stored int64) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section class="import-result">`)
		fmt.Fprintf(&b, `<p class="import-message">%s</p>`, templ.EscapeString(res.Message))
		if stored >= 0 {
			fmt.Fprintf(&b, `<p class="import-stored">%d saved</p>`, stored)
		}
		writeWarnings(&b, res.Warnings)

		if len(res.FailedRows) > 0 {
			b.WriteString(`<ul class="failed-rows">`)
			for _, f := range res.FailedRows {
				fmt.Fprintf(&b, `<li>Row %d: %s</li>`, f.Row+1, templ.EscapeString(f.Error))
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeWarnings(b *strings.Builder, warnings []core.Warning) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString(`<ul class="warnings">`)
	for _, warn := range warnings {
		fmt.Fprintf(b, `<li class="warning-%s">%s</li>`,
			templ.EscapeString(string(warn.Severity)), templ.EscapeString(warn.Message))
	}
	b.WriteString(`</ul>`)
}
