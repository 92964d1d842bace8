package domain

import "errors"

// Errores centinela del protocolo. Los adapters y el engine los envuelven
// con contexto (`fmt.Errorf("pkg.Func: ...: %w", err)`); los callers
// clasifican con errors.Is.
var (
	// ErrInvalidInput — parámetro fuera de los límites del protocolo.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidStatus — la operación no aplica al estado actual del mercado.
	ErrInvalidStatus = errors.New("invalid market status")
	// ErrUnauthorized — el caller no tiene la capability requerida.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTooEarly — intento de cierre antes del deadline.
	ErrTooEarly = errors.New("too early to close")
	// ErrExpired — intento de apostar después del deadline.
	ErrExpired = errors.New("market expired")
	// ErrAlreadyClaimed — la posición ya movió su valor.
	ErrAlreadyClaimed = errors.New("position already claimed")
	// ErrNotWinner — la posición está en el lado perdedor.
	ErrNotWinner = errors.New("position not on winning side")
	// ErrMismatch — la posición no pertenece al mercado reclamado.
	ErrMismatch = errors.New("position does not match market")
	// ErrEmptyPot — no hay nada que distribuir.
	ErrEmptyPot = errors.New("empty pot")
	// ErrOverflow — la aritmética no cabe en uint64.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrInsufficientFunds — la cuenta o el vault no cubre el importe.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound — el registro no existe.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — el registro ya existe.
	ErrAlreadyExists = errors.New("already exists")
)
