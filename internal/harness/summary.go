package harness

import (
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/joeycumines/playfeel/internal/findings"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Summary is the outcome of a completed run.
type Summary struct {
	RunID      string
	ReportPath string
	Findings   []findings.Finding
}

// Counts tallies Findings by status.
func (s Summary) Counts() (pass, fail, warn int) {
	for _, f := range s.Findings {
		switch f.Status {
		case findings.StatusPass:
			pass++
		case findings.StatusFail:
			fail++
		case findings.StatusWarn:
			warn++
		}
	}
	return pass, fail, warn
}

// DisplayName renders a scenario id for humans, e.g. "Run Skid".
func DisplayName(scenario string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(scenario, "-", " "))
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statusStyle = map[findings.Status]lipgloss.Style{
		findings.StatusPass: cellStyle.Foreground(lipgloss.Color("10")),
		findings.StatusFail: cellStyle.Foreground(lipgloss.Color("9")),
		findings.StatusWarn: cellStyle.Foreground(lipgloss.Color("11")),
	}
)

const statusColumn = 2

// Render writes the summary to w: a styled table when styled is set,
// otherwise one tab separated line per Finding.
func (s Summary) Render(w io.Writer, styled bool) error {
	pass, fail, warn := s.Counts()
	rows := make([][]string, 0, len(s.Findings))
	for _, f := range s.Findings {
		rows = append(rows, []string{
			DisplayName(f.Scenario),
			fmt.Sprintf("%d-%d", f.World, f.Level),
			string(f.Status),
			string(f.Blocker),
			string(f.ActionSource),
		})
	}

	if !styled {
		for _, r := range rows {
			if _, err := fmt.Fprintln(w, strings.Join(r, "\t")); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "run %s: %d pass, %d fail, %d warn\nfindings: %s\n", s.RunID, pass, fail, warn, s.ReportPath)
		return err
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Scenario", "Level", "Status", "Blocker", "Actions").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == statusColumn && row >= 0 && row < len(rows):
				if st, ok := statusStyle[findings.Status(rows[row][statusColumn])]; ok {
					return st
				}
			}
			return cellStyle
		})
	_, err := fmt.Fprintf(w, "%s\nrun %s: %d pass, %d fail, %d warn\nfindings: %s\n", t.String(), s.RunID, pass, fail, warn, s.ReportPath)
	return err
}
