package ports

import (
	"context"

	"github.com/alejandrodnm/parimut/internal/domain"
)

// EventSink recibe los eventos ya confirmados por el ledger, para
// observadores externos. Un fallo del sink no deshace la operación:
// el log durable vive en el ledger, los sinks son fanout best-effort.
type EventSink interface {
	Emit(ctx context.Context, e domain.Event) error
}
