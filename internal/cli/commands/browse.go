package commands

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/format"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

const browseMaxColumnWidth = 32

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <LIB.TABLE>",
		Short: "Scroll through a dataset in the terminal",
		Long: `Open a full-screen, scrollable view of a dataset. Variables that carry
a format are shown formatted. Press q or esc to leave.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if !cmdCtx.Renderer.IsTTY() {
				return fmt.Errorf("browse needs a terminal; use print instead")
			}

			ds, err := cmdCtx.Engine.Dataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m, err := newBrowseModel(ds, cmdCtx.Engine.Formats())
			if err != nil {
				return err
			}

			p := tea.NewProgram(m,
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			_, err = p.Run()
			return err
		},
	}
	return cmd
}

type browseModel struct {
	title  string
	footer string
	table  table.Model
}

// newBrowseModel lays ds out as a bubbles table. Cells are rendered once up
// front; a format that fails on a value is an error.
func newBrowseModel(ds *dataset.Dataset, catalog *format.Catalog) (browseModel, error) {
	vars := ds.Catalog.Vars()
	display := catalog.Display()

	widths := make([]int, len(vars))
	for i, v := range vars {
		widths[i] = runewidth.StringWidth(v.Name)
	}

	rows := make([]table.Row, 0, ds.Len())
	for _, r := range ds.Rows {
		row := make(table.Row, len(vars))
		for i, v := range vars {
			val := r.At(i)
			text := val.Display(display)
			if v.Format != "" {
				var err error
				if text, err = catalog.Render(v.Format, val); err != nil {
					return browseModel{}, fmt.Errorf("%s: %w", v.Name, err)
				}
			}
			row[i] = text
			widths[i] = max(widths[i], runewidth.StringWidth(text))
		}
		rows = append(rows, row)
	}

	cols := make([]table.Column, len(vars))
	for i, v := range vars {
		cols[i] = table.Column{Title: v.Name, Width: min(widths[i], browseMaxColumnWidth)}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows), 20)+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)

	return browseModel{
		title:  fmt.Sprintf("%s (%d rows, %d variables)", ds.Name, ds.Len(), len(vars)),
		footer: "↑/↓ scroll • pgup/pgdn page • g/G top/bottom • q quit",
		table:  t,
	}, nil
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Title, footer and the header border.
		m.table.SetHeight(max(msg.Height-4, 3))
		m.table.SetWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Render(m.title)
	footer := lipgloss.NewStyle().Faint(true).Render(m.footer)
	return title + "\n" + m.table.View() + "\n" + footer + "\n"
}
