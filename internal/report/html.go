package report

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/salesetl/internal/core"
	"github.com/JonMunkholm/salesetl/internal/load"
	"github.com/JonMunkholm/salesetl/internal/pipeline"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse;margin:1rem 0}
th,td{border:1px solid #d1d5db;padding:.35rem .6rem;text-align:left}
.PASSED{color:#047857}.FAILED{color:#b91c1c;font-weight:600}
.verdict{font-size:1.1rem;margin:1rem 0}`

// Page renders the run as a standalone HTML page. A nil result renders an
// empty state.
func Page(res *pipeline.Result) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>salesetl: latest run</title><style>`)
		p.raw(pageStyle)
		p.raw(`</style></head><body><h1>Latest pipeline run</h1>`)

		if res == nil {
			p.raw(`<p>No run has completed yet.</p></body></html>`)
			return p.err
		}

		p.raw(`<dl>`)
		p.field("Run", res.RunID)
		p.field("Started", res.StartedAt.Format("2006-01-02 15:04:05"))
		p.field("Source", res.SourcePath)
		p.field("Table", res.Table)
		p.field("Stage", string(res.Stage))
		p.field("Extracted", fmt.Sprintf("%d rows", res.Extracted))
		p.field("Transformed", fmt.Sprintf("%d rows (%d duplicates removed)", res.Transformed, res.DuplicatesRemoved))
		if res.Loaded {
			p.field("Loaded", fmt.Sprintf("%d rows", res.LoadedRows))
		}
		if res.Error != "" {
			p.field("Error", res.Error+" ("+res.ErrorCode+")")
		}
		p.raw(`</dl>`)

		if len(res.Checks) > 0 {
			checksTable(p, res.Report())
		}
		if res.Sample != nil {
			sampleTable(p, res.Sample)
		}
		p.raw(`</body></html>`)
		return p.err
	})
}

func checksTable(p *printer, rep core.Report) {
	p.raw(`<h2>Validation report</h2><table><thead><tr><th>Check</th><th>Status</th><th>Message</th><th>Time</th></tr></thead><tbody>`)
	for _, r := range rep.Results {
		p.raw(`<tr><td>`)
		p.text(r.CheckName)
		p.raw(`</td><td class="` + string(r.Status) + `">`)
		p.text(symbol(r.Status) + " " + string(r.Status))
		p.raw(`</td><td>`)
		p.text(r.Message)
		p.raw(`</td><td>`)
		p.text(r.Timestamp.Format("15:04:05"))
		p.raw(`</td></tr>`)
	}
	p.raw(`</tbody></table><p class="verdict">`)
	if rep.OK() {
		p.text(fmt.Sprintf("%s (%d/%d)", VerdictPassed, rep.Summary.Passed, rep.Summary.Total))
	} else {
		p.text(fmt.Sprintf("%d %s. Data was not loaded.", rep.Summary.Failed, VerdictFailed))
	}
	p.raw(`</p>`)
}

func sampleTable(p *printer, s *load.Sample) {
	p.raw(`<h2>Loaded sample</h2><table><thead><tr>`)
	for _, c := range s.Columns {
		p.raw(`<th>`)
		p.text(c)
		p.raw(`</th>`)
	}
	p.raw(`</tr></thead><tbody>`)
	for _, row := range s.Rows {
		p.raw(`<tr>`)
		for _, v := range row {
			p.raw(`<td>`)
			if v == nil {
				p.text("NULL")
			} else {
				p.text(fmt.Sprint(v))
			}
			p.raw(`</td>`)
		}
		p.raw(`</tr>`)
	}
	p.raw(`</tbody></table>`)
}

// printer writes HTML fragments and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) field(label, value string) {
	p.raw(`<dt>`)
	p.text(label)
	p.raw(`</dt><dd>`)
	p.text(value)
	p.raw(`</dd>`)
}
