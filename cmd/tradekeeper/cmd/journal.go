package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradekeeper/journal"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade ledger",
	Long: `Query and display archived trades from the SQLite ledger.

Subcommands:
  trade  - Get details of a specific trade by ticket
  today  - List trades closed today
  day    - List trades closed on a specific day

Days are bounded in the configured trading timezone.

Examples:
  tradekeeper journal trade 123456
  tradekeeper journal today
  tradekeeper journal day 2024-01-15`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <ticket>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite ledger (default from config)")
}

func openJournal() (*journal.SQLite, *time.Location, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Trading.Location()
	if err != nil {
		return nil, nil, err
	}
	path := journalDBPath
	if path == "" {
		if cfg.Journal.Type != "sqlite" {
			return nil, nil, fmt.Errorf("journal queries need the sqlite ledger, configured type is %q", cfg.Journal.Type)
		}
		path = cfg.Journal.DBPath
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return j, loc, nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	ticket, err := trade.ParseTicket(args[0])
	if err != nil {
		return err
	}
	j, _, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	e, err := j.Get(cmd.Context(), ticket)
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Println(journal.FormatTradeOrg(e))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	j, loc, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	return printDay(cmd, j, loc, risk.TradingDate(loc, time.Now()))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, loc, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	return printDay(cmd, j, loc, args[0])
}

func printDay(cmd *cobra.Command, j *journal.SQLite, loc *time.Location, day string) error {
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	entries, err := j.ListClosedBetween(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Println(journal.FormatTradesOrg(entries))
	s := journal.Summarize(entries)
	fmt.Printf("trades: %d  wins: %d  losses: %d  unknown: %d  net: %.2f\n",
		s.Trades, s.Wins, s.Losses, s.Unknown, s.Net)
	return nil
}

// dayBounds returns [start, end) of day in loc. The end is the next local
// midnight, so DST days are 23 or 25 hours long.
func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
