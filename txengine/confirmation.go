package txengine

import "github.com/btcsuite/txengine/pkg/money"

// Confirmation is a line shown to the user for review before a transaction is
// executed. The set of variants is closed.
type Confirmation interface {
	isConfirmation()
}

// ConfirmFrom names the source of the funds.
type ConfirmFrom struct {
	Label string
}

// ConfirmTo names the destination of the funds.
type ConfirmTo struct {
	Label string
}

// ConfirmAmount is the amount being moved.
type ConfirmAmount struct {
	Amount money.Money
}

// ConfirmSale is the crypto amount sold and the fiat it is expected to fetch
// at the quoted price.
type ConfirmSale struct {
	Amount    money.Money
	FiatValue money.Money
}

// ConfirmFeeSelection shows the chosen fee level next to the alternatives.
type ConfirmFeeSelection struct {
	Selection FeeSelection
}

// ConfirmNetworkFee is the network or service fee. It is shown even when the
// fee is zero.
type ConfirmNetworkFee struct {
	Fee money.Money
}

// ConfirmTotal is the total leaving the account. For fees paid in a
// different asset than the amount, Fee is that separate amount.
type ConfirmTotal struct {
	Amount money.Money
	Fee    money.Money
}

func (ConfirmFrom) isConfirmation()         {}
func (ConfirmTo) isConfirmation()           {}
func (ConfirmAmount) isConfirmation()       {}
func (ConfirmSale) isConfirmation()         {}
func (ConfirmFeeSelection) isConfirmation() {}
func (ConfirmNetworkFee) isConfirmation()   {}
func (ConfirmTotal) isConfirmation()        {}
