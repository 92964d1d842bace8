package domain

import "time"

// EventKind clasifica las entradas del event log.
type EventKind string

const (
	// EventPlaced — un stake aceptado. Amount es el stake, Side el lado.
	EventPlaced EventKind = "placed"
	// EventResolved — outcome fijado. Side transporta el winner.
	EventResolved EventKind = "resolved"
	// EventClaimed — payout ejecutado. Amount es lo pagado al owner.
	EventClaimed EventKind = "claimed"
)

// Event es una entrada append-only del log de un mercado.
// Seq lo asigna el ledger en orden de emisión; los observadores externos
// pueden usar Seq como cursor.
type Event struct {
	Seq      int64
	MarketID string
	Kind     EventKind
	Owner    string
	Side     Outcome
	Amount   uint64
	At       time.Time
}
