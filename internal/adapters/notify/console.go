package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/predictstats/internal/domain"
	"github.com/alejandrodnm/predictstats/internal/ports"
)

// defaultDays es cuántos buckets diarios se muestran en modo tabla.
const defaultDays = 7

// Console implementa ports.Reporter escribiendo en una terminal.
type Console struct {
	out   io.Writer
	table bool
	days  int
}

var _ ports.Reporter = (*Console)(nil)

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(table bool, days int) *Console {
	return NewConsoleWriter(os.Stdout, table, days)
}

// NewConsoleWriter crea un reporter sobre w (tests).
func NewConsoleWriter(w io.Writer, table bool, days int) *Console {
	if days <= 0 {
		days = defaultDays
	}
	return &Console{out: w, table: table, days: days}
}

// Report imprime una línea por ejecución y, en modo tabla, las estadísticas
// y los últimos días.
func (c *Console) Report(_ context.Context, r domain.Report) error {
	res := r.Result
	now := res.FinishedAt
	if now.IsZero() {
		now = time.Now()
	}

	if res.Status == domain.RunFailed && len(res.Written) == 0 {
		fmt.Fprintf(c.out, "[%s] run %s FAILED: %s\n", now.Format("15:04:05"), shortID(res.RunID), res.Error)
		return nil
	}

	c.printCompact(r, now)
	if c.table {
		c.printStats(r.Stats)
		c.printDaily(r.Daily)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(c.out, "  ⚠ %s\n", w)
	}
	if res.Error != "" {
		fmt.Fprintf(c.out, "  ✗ %s\n", res.Error)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(r domain.Report, now time.Time) {
	s := r.Stats
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] run %s %s → %d closed (W:%d L:%d) open:%d net $%s win %s vol $%s",
		now.Format("15:04:05"), shortID(r.Result.RunID), strings.ToUpper(string(r.Result.Status)),
		s.TotalTrades, s.ProfitableTrades, s.LosingTrades, s.OpenTrades,
		s.NetProfitUSDC.String(), s.WinRate, s.TotalVolumeUSDC.String())
	if s.Points != nil {
		fmt.Fprintf(&sb, " pts %.1f", *s.Points)
	}
	if s.Rank != nil {
		fmt.Fprintf(&sb, " #%d", *s.Rank)
	}
	fmt.Fprintf(&sb, " (%d blobs, %s)", len(r.Result.Written), r.Result.Duration().Round(time.Millisecond))
	fmt.Fprintln(c.out, sb.String())
}

// printStats imprime las estadísticas agregadas en una tabla de dos columnas.
func (c *Console) printStats(s domain.Statistics) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Closed trades", fmt.Sprintf("%d", s.TotalTrades))
	table.Append("Profitable / losing", fmt.Sprintf("%d / %d", s.ProfitableTrades, s.LosingTrades))
	table.Append("Open trades", fmt.Sprintf("%d", s.OpenTrades))
	table.Append("Win rate", s.WinRate)
	table.Append("Profit", "$"+s.TotalProfitUSDC.String())
	table.Append("Loss", "$"+s.TotalLossUSDC.String())
	table.Append("Net P&L", "$"+s.NetProfitUSDC.String())
	table.Append("Volume", "$"+s.TotalVolumeUSDC.String())
	table.Append("Window", fmt.Sprintf("%s → %s (%sh)", s.StartTime, s.LastUpdated, s.UptimeHours))
	table.Render()
}

// printDaily imprime los últimos c.days buckets diarios.
func (c *Console) printDaily(days []domain.Bucket) {
	if len(days) == 0 {
		fmt.Fprintln(c.out, "  no trades yet")
		return
	}
	if len(days) > c.days {
		days = days[:c.days]
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Day", "Trades", "W", "L", "Win%", "Profit", "Loss", "Net", "Volume")
	for _, b := range days {
		table.Append(
			b.Label,
			fmt.Sprintf("%d", b.Trades),
			fmt.Sprintf("%d", b.Wins),
			fmt.Sprintf("%d", b.Losses),
			b.WinRate,
			"$"+b.ProfitUSDC.String(),
			"$"+b.LossUSDC.String(),
			"$"+b.NetProfitUSDC.String(),
			"$"+b.VolumeUSDC.String(),
		)
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
