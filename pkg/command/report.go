package command

import (
	"github.com/matzehuels/flowsketch/pkg/errors"
)

// LineResult is the outcome of one executed line.
type LineResult struct {
	Line    int         `json:"line"`              // 1-based line number within the batch
	Text    string      `json:"text"`              // The line as executed
	Command string      `json:"command,omitempty"` // Keyword, empty when not recognized
	Code    errors.Code `json:"code,omitempty"`    // Diagnostic code, empty on success
	Message string      `json:"message,omitempty"` // Diagnostic message

	Err *errors.Error `json:"-"`
}

// OK reports whether the line was recognized and applied.
func (r LineResult) OK() bool {
	return r.Command != "" && r.Err == nil
}

// Report collects the results of one Execute call in line order.
type Report struct {
	Lines []LineResult `json:"lines"`
}

// Diagnostics returns the lines that produced a diagnostic.
func (r Report) Diagnostics() []LineResult {
	var out []LineResult
	for _, l := range r.Lines {
		if l.Err != nil {
			out = append(out, l)
		}
	}
	return out
}

// Executed returns the number of lines that were recognized and applied.
func (r Report) Executed() int {
	n := 0
	for _, l := range r.Lines {
		if l.OK() {
			n++
		}
	}
	return n
}

// Ignored returns the number of lines whose keyword was not recognized.
func (r Report) Ignored() int {
	n := 0
	for _, l := range r.Lines {
		if l.Command == "" && l.Err == nil {
			n++
		}
	}
	return n
}

// Refuse returns the report of a batch that was rejected as a whole, such
// as one sent to a closed session. Its single diagnostic has line 0.
func Refuse(err *errors.Error) Report {
	var r Report
	r.add(LineResult{Err: err})
	return r
}

// Refused returns the error of a report built by [Refuse], or nil.
func (r Report) Refused() *errors.Error {
	if len(r.Lines) == 1 && r.Lines[0].Line == 0 {
		return r.Lines[0].Err
	}
	return nil
}

func (r *Report) add(res LineResult) {
	if res.Err != nil {
		res.Code = res.Err.Code
		res.Message = res.Err.Message
	}
	r.Lines = append(r.Lines, res)
}
