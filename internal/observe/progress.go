package observe

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cheggaaa/pb/v3"

	"segweaver/internal/dag"
)

const progressTemplate pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{with string . "suffix"}}{{.}}{{end}}`

// Progress advances a terminal progress bar by one for every node that
// reaches a terminal state.
type Progress struct {
	bar *pb.ProgressBar
}

// NewProgress starts a bar over total nodes writing to w. total may be 0
// when the graph is not built yet; see SetTotal. Call Finish when the run
// returns.
func NewProgress(w io.Writer, total int) *Progress {
	bar := progressTemplate.New(total)
	bar.SetWriter(w)
	bar.Set("prefix", "nodes:")
	bar.Start()
	return &Progress{bar: bar}
}

func (p *Progress) ObserveNode(_ context.Context, ev dag.NodeEvent) {
	p.bar.Set("suffix", fmt.Sprintf("%s %s", ev.Name, strings.ToLower(string(ev.State))))
	p.bar.Increment()
}

func (p *Progress) SetTotal(total int) { p.bar.SetTotal(int64(total)) }

// Current returns the number of nodes seen so far.
func (p *Progress) Current() int64 { return p.bar.Current() }

func (p *Progress) Finish() {
	p.bar.Set("suffix", "done")
	p.bar.Finish()
}
