package domain

import "fmt"

// VaultRole identifica una de las tres cuentas de valor de un mercado.
type VaultRole uint8

const (
	VaultYes VaultRole = iota
	VaultNo
	VaultFee
)

// Seed devuelve el tag de namespace del vault, estable entre versiones:
// forma parte de la derivación de direcciones persistidas.
func (r VaultRole) Seed() string {
	switch r {
	case VaultYes:
		return "vault_yes"
	case VaultNo:
		return "vault_no"
	case VaultFee:
		return "fee_vault"
	}
	return fmt.Sprintf("vault(%d)", uint8(r))
}

// String devuelve el nombre legible del rol.
func (r VaultRole) String() string { return r.Seed() }

// VaultForSide devuelve el vault que custodia los stakes del lado dado.
func VaultForSide(side Outcome) VaultRole {
	if side == OutcomeYes {
		return VaultYes
	}
	return VaultNo
}

// VaultAddress deriva la clave determinista del vault de un mercado.
// Inyectiva: namespace distinto o mercado distinto → dirección distinta.
func VaultAddress(role VaultRole, marketID string) string {
	return role.Seed() + ":" + marketID
}

// PositionAddress deriva la clave determinista de una posición.
// El índice de lado (1 = Yes, 2 = No) separa las dos posiciones de un
// mismo owner en un mismo mercado.
func PositionAddress(marketID, owner string, side Outcome) string {
	return fmt.Sprintf("position:%s:%s:%d", marketID, owner, side.SideIndex())
}
