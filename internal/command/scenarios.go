package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/joeycumines/playfeel/internal/choreography"
	"github.com/joeycumines/playfeel/internal/config"
	"github.com/joeycumines/playfeel/internal/harness"
	"github.com/joeycumines/playfeel/internal/signal"
)

// ScenariosCommand lists the scenarios and the timeline each would use.
type ScenariosCommand struct {
	*BaseCommand
	settingsBase
	format string
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(cfg *config.Config, environ map[string]string) *ScenariosCommand {
	return &ScenariosCommand{
		BaseCommand: NewBaseCommand(
			"scenarios",
			"List scenarios and their action sources",
			"scenarios [options]",
		),
		settingsBase: newSettingsBase(cfg, environ),
	}
}

// SetupFlags configures the flags for the scenarios command.
func (c *ScenariosCommand) SetupFlags(fs *flag.FlagSet) {
	c.bindSettings(c.Name(), fs)
	def, ok := c.cfg.Value(c.Name(), "format")
	if !ok {
		def = "auto"
	}
	fs.StringVar(&c.format, "format", def, "Listing format: auto, table, plain")
}

// Execute lists the scenarios.
func (c *ScenariosCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	s, err := c.resolved(c.Name())
	if err != nil {
		return err
	}
	buttons, err := choreography.DefaultButtons().With(c.cfg.Buttons)
	if err != nil {
		return fmt.Errorf("invalid [buttons] config: %w", err)
	}

	var styled bool
	switch c.format {
	case "", "auto":
		styled = harness.IsTerminal(stdout)
	case "table":
		styled = true
	case "plain":
	default:
		return fmt.Errorf("unknown format %q", c.format)
	}

	rows := make([][]string, 0, len(signal.Scenarios))
	for _, id := range signal.Scenarios {
		sc := choreography.Load(s.ScenariosDir, id, buttons)
		note := sc.Notes
		if sc.Err != nil {
			note = sc.Err.Error()
		}
		rows = append(rows, []string{
			id,
			harness.DisplayName(id),
			string(sc.Source),
			strconv.Itoa(len(sc.Steps)),
			strconv.Itoa(choreography.TotalFrames(sc.Steps)),
			note,
		})
	}

	if !styled {
		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tSOURCE\tSTEPS\tFRAMES\tNOTE")
		for _, r := range rows {
			_, _ = fmt.Fprintln(w, strings.Join(r, "\t"))
		}
		return w.Flush()
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Name", "Source", "Steps", "Frames", "Note").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err = fmt.Fprintln(stdout, t.String())
	return err
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)
