// internal/scenario/report.go
package scenario

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index     int    `json:"index"`
	Action    Action `json:"action"`
	Account   string `json:"account,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Expected  string `json:"expected_error,omitempty"`
	Passed    bool   `json:"passed"`
}

func (s StepResult) failure() string {
	got := "success"
	if s.Error != "" {
		got = s.Error
	}
	want := "success"
	if s.Expected != "" {
		want = s.Expected
	}
	return fmt.Sprintf("step %d (%s): expected %s, got %s", s.Index, s.Action, want, got)
}

// Balance is a wallet's final token balance.
type Balance struct {
	Name    string `json:"name"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Report summarizes a scenario run.
type Report struct {
	Name               string       `json:"name"`
	Steps              []StepResult `json:"steps"`
	Balances           []Balance    `json:"balances"`
	Reserve            string       `json:"reserve"`
	ReserveInitialized bool         `json:"reserve_initialized"`
	OpenPositions      int          `json:"open_positions"`
	Failures           []string     `json:"failures,omitempty"`
}

// Passed reports whether every step and expectation held.
func (r *Report) Passed() bool {
	return len(r.Failures) == 0
}

// Print writes a human-readable table.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Scenario: %s\n\n", r.Name)
	fmt.Fprintln(tw, "#\tACTION\tACCOUNT\tRESULT\tDETAIL")
	for _, s := range r.Steps {
		result := "ok"
		switch {
		case !s.Passed:
			result = "FAIL"
		case s.ErrorKind != "":
			result = "rejected:" + s.ErrorKind
		}
		detail := s.Detail
		if s.Error != "" {
			detail = s.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Index, s.Action, s.Account, result, detail)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "WALLET\tACCOUNT\tBALANCE")
	for _, b := range r.Balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, b.Account, b.Amount)
	}
	fmt.Fprintf(tw, "\nFee reserve: %s (initialized: %t)\n", r.Reserve, r.ReserveInitialized)
	fmt.Fprintf(tw, "Open positions: %d\n", r.OpenPositions)

	if len(r.Failures) > 0 {
		fmt.Fprintf(tw, "\nFailures (%d):\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(tw, "  - %s\n", f)
		}
	}
	return tw.Flush()
}
