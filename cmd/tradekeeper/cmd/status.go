package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rustyeddy/tradekeeper/internal/app"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 1)

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pause flag, breaker, session and open trades",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, cleanup, err := buildApp()
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := renderStatus(a, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func renderStatus(a *app.App, now time.Time) (string, error) {
	paused, err := a.Pause.Paused()
	if err != nil {
		return "", err
	}
	stats, err := a.Breaker.Stats()
	if err != nil {
		return "", err
	}
	state, err := a.Breaker.State()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	line := func(k, v string) { fmt.Fprintf(&b, "%-10s %s\n", k+":", v) }

	if paused {
		line("Trading", badStyle.Render("PAUSED"))
	} else {
		line("Trading", goodStyle.Render("active"))
	}
	breaker := goodStyle.Render(string(state))
	if state == risk.Tripped {
		breaker = badStyle.Render(string(state))
	}
	line("Breaker", fmt.Sprintf("%s  %d/%d losses on %s", breaker, stats.LossesToday, a.Breaker.MaxLosses(), stats.Date))

	seg := string(a.Session.Segment(now))
	if a.Session.Contains(now) {
		line("Session", goodStyle.Render("open")+" "+dimStyle.Render(seg))
	} else {
		line("Session", dimStyle.Render("closed"))
	}

	for _, st := range []trade.Status{trade.Pending, trade.Live} {
		recs, err := a.Store.List(st)
		if err != nil {
			return "", err
		}
		if len(recs) == 0 {
			line(string(st), dimStyle.Render("none"))
			continue
		}
		for _, r := range recs {
			line(string(st), r.String())
		}
	}

	return titleStyle.Render("tradekeeper") + "\n" + boxStyle.Render(strings.TrimRight(b.String(), "\n")), nil
}
