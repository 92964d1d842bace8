package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/parimut/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newOpenMarket(t *testing.T) domain.Market {
	t.Helper()
	m, err := domain.NewMarket("mkt-1", "Will X happen?", "alice", "oracle", now.Add(time.Hour), 500, now)
	require.NoError(t, err)
	return m
}

func TestNewMarket_Validation(t *testing.T) {
	longQuestion := make([]byte, domain.MaxQuestionLen+1)
	for i := range longQuestion {
		longQuestion[i] = 'x'
	}

	tests := []struct {
		name      string
		question  string
		closeTime time.Time
		feeBps    uint32
		resolver  string
	}{
		{"question too long", string(longQuestion), now.Add(time.Hour), 500, "oracle"},
		{"fee above 10%", "q", now.Add(time.Hour), 1001, "oracle"},
		{"close time too soon", "q", now.Add(59 * time.Second), 500, "oracle"},
		{"close time exactly at margin", "q", now.Add(domain.MinCloseMargin), 500, "oracle"},
		{"empty resolver", "q", now.Add(time.Hour), 500, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewMarket("mkt-1", tt.question, "alice", tt.resolver, tt.closeTime, tt.feeBps, now)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestNewMarket_Defaults(t *testing.T) {
	m := newOpenMarket(t)

	assert.Equal(t, domain.StatusOpen, m.Status)
	assert.Equal(t, domain.OutcomeUnset, m.Winner)
	assert.Zero(t, m.TotalYes)
	assert.Zero(t, m.TotalNo)
	assert.Equal(t, uint32(500), m.FeeBps)
}

func TestMarket_Close(t *testing.T) {
	m := newOpenMarket(t)

	// Antes del deadline
	err := m.Close(now.Add(30 * time.Minute))
	assert.ErrorIs(t, err, domain.ErrTooEarly)
	assert.Equal(t, domain.StatusOpen, m.Status)

	// En el deadline exacto ya se puede cerrar
	require.NoError(t, m.Close(now.Add(time.Hour)))
	assert.Equal(t, domain.StatusClosed, m.Status)

	// Segunda llamada falla, no no-opea
	err = m.Close(now.Add(2 * time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestMarket_Resolve(t *testing.T) {
	m := newOpenMarket(t)

	// Open → Resolved no está permitido
	err := m.Resolve(domain.OutcomeYes, "oracle")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	require.NoError(t, m.Close(now.Add(time.Hour)))

	err = m.Resolve(domain.OutcomeYes, "impostor")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, m.Resolve(domain.OutcomeYes, "oracle"))
	assert.Equal(t, domain.StatusResolved, m.Status)
	assert.Equal(t, domain.OutcomeYes, m.Winner)

	// Resolved es terminal
	err = m.Resolve(domain.OutcomeNo, "oracle")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestMarket_ResolveVoid(t *testing.T) {
	m := newOpenMarket(t)
	require.NoError(t, m.Close(now.Add(time.Hour)))

	// Unset es una resolución válida (void)
	require.NoError(t, m.Resolve(domain.OutcomeUnset, "oracle"))
	assert.Equal(t, domain.StatusResolved, m.Status)
	assert.Equal(t, domain.OutcomeUnset, m.Winner)
}

func TestMarket_AcceptsStake(t *testing.T) {
	m := newOpenMarket(t)

	require.NoError(t, m.AcceptsStake(now.Add(time.Minute)))

	// Pasado el deadline falla con Expired aunque nadie haya cerrado
	err := m.AcceptsStake(now.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrExpired)

	require.NoError(t, m.Close(now.Add(time.Hour)))
	err = m.AcceptsStake(now.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestMarket_AddStake(t *testing.T) {
	m := newOpenMarket(t)

	err := m.AddStake(domain.OutcomeUnset, 100_000)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = m.AddStake(domain.OutcomeYes, domain.MinStake-1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, m.AddStake(domain.OutcomeYes, 100_000))
	require.NoError(t, m.AddStake(domain.OutcomeNo, 50_000))
	require.NoError(t, m.AddStake(domain.OutcomeYes, 200_000))

	assert.Equal(t, uint64(300_000), m.TotalYes)
	assert.Equal(t, uint64(50_000), m.TotalNo)

	m.TotalYes = math.MaxUint64
	err = m.AddStake(domain.OutcomeYes, domain.MinStake)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestPosition_Accumulate(t *testing.T) {
	p := domain.NewPosition("mkt-1", "bob", domain.OutcomeYes)
	require.NoError(t, p.Accumulate(100_000))
	require.NoError(t, p.Accumulate(50_000))
	assert.Equal(t, uint64(150_000), p.Amount)

	p.Amount = math.MaxUint64
	err := p.Accumulate(1)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestPosition_Authorize(t *testing.T) {
	p := domain.NewPosition("mkt-1", "bob", domain.OutcomeYes)

	assert.NoError(t, p.Authorize("bob", "mkt-1"))
	assert.ErrorIs(t, p.Authorize("eve", "mkt-1"), domain.ErrUnauthorized)
	assert.ErrorIs(t, p.Authorize("bob", "mkt-2"), domain.ErrMismatch)

	p.Claimed = true
	assert.ErrorIs(t, p.Authorize("bob", "mkt-1"), domain.ErrAlreadyClaimed)
}

func TestVaultAddressing(t *testing.T) {
	assert.Equal(t, "vault_yes:m1", domain.VaultAddress(domain.VaultYes, "m1"))
	assert.Equal(t, "fee_vault:m1", domain.VaultAddress(domain.VaultFee, "m1"))
	assert.Equal(t, "position:m1:bob:1", domain.PositionAddress("m1", "bob", domain.OutcomeYes))
	assert.Equal(t, "position:m1:bob:2", domain.PositionAddress("m1", "bob", domain.OutcomeNo))

	// Inyectividad entre namespaces y mercados
	assert.NotEqual(t,
		domain.VaultAddress(domain.VaultYes, "m1"),
		domain.VaultAddress(domain.VaultNo, "m1"),
	)
	assert.NotEqual(t,
		domain.VaultAddress(domain.VaultYes, "m1"),
		domain.VaultAddress(domain.VaultYes, "m2"),
	)
}

func TestParseOutcome(t *testing.T) {
	o, err := domain.ParseOutcome("yes")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeYes, o)

	o, err = domain.ParseOutcome("void")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnset, o)

	_, err = domain.ParseOutcome("maybe")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
