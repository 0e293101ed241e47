package build

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/bridge/pkg/rewrite"
)

// ClassResult is what the build did to one class.
type ClassResult struct {
	Path  string `cbor:"1,keyasint"` // slash-separated, below the classes directory
	Name  string `cbor:"2,keyasint"` // internal name
	Forks []int  `cbor:"3,keyasint"` // language levels written, base first

	rewrite.Counters `cbor:"4,keyasint"`
}

// Changed reports whether the class is worth a report line.
func (r *ClassResult) Changed() bool {
	return r.Counters != (rewrite.Counters{})
}

// Line formats the report line of the class:
//
//	-> pkg.Name  +1 fork  +2 bridges
func (r *ClassResult) Line() string {
	var b strings.Builder
	b.WriteString(" -> ")
	b.WriteString(displayPath(r.Path, r.Name))
	count := func(n int, noun string) {
		if n == 0 {
			return
		}
		b.WriteString("  +")
		b.WriteString(strconv.Itoa(n))
		b.WriteByte(' ')
		b.WriteString(noun)
		if n != 1 {
			b.WriteByte('s')
		}
	}
	count(r.Counters.Forks, "fork")
	count(r.Bridges, "bridge")
	count(r.Invocations, "invocation")
	count(r.Adjustments, "adjustment")
	count(r.Removals, "removal")
	return b.String()
}

// displayPath shows the class by its dotted name when the file sits where
// the name says, and by its path otherwise.
func displayPath(path, name string) string {
	i := strings.LastIndex(path, name)
	if i < 0 || strings.Contains(path[i+len(name):], "/") {
		return path
	}
	return path[:i] + strings.ReplaceAll(name, "/", ".")
}

// Report is the machine-readable record of one build.
type Report struct {
	RunID     string           `cbor:"1,keyasint"`
	Time      int64            `cbor:"2,keyasint"`
	ScanNanos int64            `cbor:"3,keyasint"`
	RunNanos  int64            `cbor:"4,keyasint"`
	Classes   []*ClassResult   `cbor:"5,keyasint"`
	Totals    rewrite.Counters `cbor:"6,keyasint"`
}

// WriteReport encodes the report of res to path.
func WriteReport(path string, res *Result) error {
	rep := &Report{
		RunID:     res.RunID,
		Time:      res.Started.Unix(),
		ScanNanos: int64(res.ScanTime),
		RunNanos:  int64(res.BuildTime),
		Classes:   res.Classes,
		Totals:    res.Totals,
	}
	data, err := cborEncMode.Marshal(rep)
	if err != nil {
		return fmt.Errorf("build: marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("build: writing report: %w", err)
	}
	return nil
}
