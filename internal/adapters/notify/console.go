package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alejandrodnm/parimut/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.EventSink escribiendo una línea por evento.
type Console struct {
	out io.Writer
}

// NewConsole crea un sink que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un sink para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Emit imprime el evento en una línea compacta.
func (c *Console) Emit(_ context.Context, e domain.Event) error {
	switch e.Kind {
	case domain.EventPlaced:
		fmt.Fprintf(c.out, "[%s] #%d placed market=%s owner=%s side=%s amount=%d\n",
			e.At.Format("15:04:05"), e.Seq, shortID(e.MarketID), e.Owner, e.Side, e.Amount)
	case domain.EventResolved:
		fmt.Fprintf(c.out, "[%s] #%d resolved market=%s winner=%s\n",
			e.At.Format("15:04:05"), e.Seq, shortID(e.MarketID), e.Side)
	case domain.EventClaimed:
		fmt.Fprintf(c.out, "[%s] #%d claimed market=%s owner=%s payout=%d\n",
			e.At.Format("15:04:05"), e.Seq, shortID(e.MarketID), e.Owner, e.Amount)
	default:
		fmt.Fprintf(c.out, "[%s] #%d %s market=%s\n",
			e.At.Format("15:04:05"), e.Seq, e.Kind, shortID(e.MarketID))
	}
	return nil
}

// PrintMarkets imprime la tabla de mercados para el comando list.
func (c *Console) PrintMarkets(markets []domain.Market) {
	if len(markets) == 0 {
		fmt.Fprintln(c.out, "no markets")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Question", "Status", "Close", "Fee bps", "Total YES", "Total NO", "Winner")

	for _, m := range markets {
		winner := "-"
		if m.Status == domain.StatusResolved {
			winner = m.Winner.String()
		}
		table.Append(
			shortID(m.ID),
			domain.TruncateQuestion(m.Question, m.ID, 40),
			m.Status.String(),
			m.CloseTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", m.FeeBps),
			fmt.Sprintf("%d", m.TotalYes),
			fmt.Sprintf("%d", m.TotalNo),
			winner,
		)
	}

	table.Render()
}

// shortID abrevia un UUID para que las líneas quepan en una terminal.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
