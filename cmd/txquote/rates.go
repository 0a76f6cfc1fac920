package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/txengine/pkg/money"
)

// errNoRate is returned for a pair that was not configured.
var errNoRate = errors.New("no rate configured")

// staticRates serves the exchange rates given on the command line. The
// inverse of every configured rate is served too.
type staticRates struct {
	rates map[[2]money.Currency]money.Rate
}

// newStaticRates indexes rates by pair.
func newStaticRates(rates []money.Rate) (*staticRates, error) {
	s := &staticRates{rates: make(map[[2]money.Currency]money.Rate)}
	for _, rate := range rates {
		inverse, err := rate.Inverse()
		if err != nil {
			return nil, err
		}

		s.rates[[2]money.Currency{rate.From, rate.To}] = rate
		s.rates[[2]money.Currency{rate.To, rate.From}] = inverse
	}

	return s, nil
}

// Rate returns the configured rate of the pair.
func (s *staticRates) Rate(_ context.Context, from,
	to money.Currency) (money.Rate, error) {

	rate, ok := s.rates[[2]money.Currency{from, to}]
	if !ok {
		return money.Rate{}, fmt.Errorf("%w: %s/%s", errNoRate, from,
			to)
	}

	return rate, nil
}

// fixedDisplay displays amounts in one fiat currency.
type fixedDisplay money.Currency

// SelectedFiat returns the display currency.
func (d fixedDisplay) SelectedFiat(context.Context) (money.Currency, error) {
	return money.Currency(d), nil
}
