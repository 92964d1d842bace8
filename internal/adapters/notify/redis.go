package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/parimut/internal/domain"
)

// streamMaxLen limita el stream por mercado vía XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// Redis implementa ports.EventSink publicando cada evento en un canal
// Pub/Sub compartido y en un stream durable por mercado. El canal es
// efímero (solo lo ven suscriptores conectados); el stream conserva la
// historia reciente para consumidores que llegan tarde.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis crea el sink conectando al addr dado.
func NewRedis(addr, channel string) *Redis {
	return &Redis{
		rdb:     redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// NewRedisClient crea el sink sobre un cliente ya construido (tests).
func NewRedisClient(rdb *redis.Client, channel string) *Redis {
	return &Redis{rdb: rdb, channel: channel}
}

type eventPayload struct {
	Seq      int64  `json:"seq"`
	MarketID string `json:"market_id"`
	Kind     string `json:"kind"`
	Owner    string `json:"owner,omitempty"`
	Side     string `json:"side,omitempty"`
	Amount   uint64 `json:"amount,omitempty"`
	At       string `json:"at"`
}

// Emit serializa el evento y lo envía al canal y al stream del mercado.
func (r *Redis) Emit(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(eventPayload{
		Seq:      e.Seq,
		MarketID: e.MarketID,
		Kind:     string(e.Kind),
		Owner:    e.Owner,
		Side:     e.Side.String(),
		Amount:   e.Amount,
		At:       e.At.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("notify.Redis: marshal event: %w", err)
	}

	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify.Redis: publish %s: %w", r.channel, err)
	}

	args := &redis.XAddArgs{
		Stream: StreamKey(e.MarketID),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := r.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("notify.Redis: stream append %s: %w", e.MarketID, err)
	}
	return nil
}

// Close libera la conexión al servidor.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// StreamKey devuelve la clave del stream de eventos de un mercado.
func StreamKey(marketID string) string {
	return "parimut:events:" + marketID
}
