package txengine

import "github.com/btcsuite/txengine/pkg/money"

// Target is the destination of a transaction.
type Target interface {
	// Label is a human-readable name of the destination.
	Label() string

	// Currency is the currency the destination receives.
	Currency() money.Currency

	isTarget()
}

// AddressTarget is an on-chain address.
type AddressTarget struct {
	Address string
	Asset   money.Currency

	// Name optionally replaces the address in confirmations.
	Name string
}

// Label returns the name of the target, or its address.
func (a AddressTarget) Label() string {
	if a.Name != "" {
		return a.Name
	}

	return a.Address
}

// Currency returns the asset the address receives.
func (a AddressTarget) Currency() money.Currency {
	return a.Asset
}

// FiatTarget is a fiat balance receiving the proceeds of a sell.
type FiatTarget struct {
	Fiat money.Currency
}

// Label returns the fiat currency code.
func (f FiatTarget) Label() string {
	return f.Fiat.Code + " balance"
}

// Currency returns the fiat currency.
func (f FiatTarget) Currency() money.Currency {
	return f.Fiat
}

// AccountTarget is a custodial account, such as an interest account.
type AccountTarget struct {
	Name  string
	Asset money.Currency
}

// Label returns the account name.
func (a AccountTarget) Label() string {
	return a.Name
}

// Currency returns the asset the account holds.
func (a AccountTarget) Currency() money.Currency {
	return a.Asset
}

func (AddressTarget) isTarget() {}
func (FiatTarget) isTarget()    {}
func (AccountTarget) isTarget() {}
