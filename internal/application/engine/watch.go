package engine

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/parimut/internal/domain"
)

// Watch sigue el log de un mercado entregando cada evento nuevo a fn, en
// orden de emisión, hasta que el contexto se cancela. El cursor es el seq
// del último evento entregado, así que no se repite ni se salta nada.
func (e *Engine) Watch(ctx context.Context, marketID string, afterSeq int64, fn func(domain.Event)) error {
	// Verificar que el mercado existe antes de entrar al loop.
	if _, err := e.ledger.GetMarket(ctx, marketID); err != nil {
		return fmt.Errorf("engine.Watch: %w", err)
	}

	// Una consulta por segundo, con burst para el arranque.
	limiter := rate.NewLimiter(rate.Limit(1), 2)

	cursor := afterSeq
	for {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("engine.Watch: %w", err)
		}

		events, err := e.ledger.Events(ctx, marketID, cursor)
		if err != nil {
			return fmt.Errorf("engine.Watch: %w", err)
		}
		for _, ev := range events {
			fn(ev)
			cursor = ev.Seq
		}
	}
}
