// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txengine

import (
	"fmt"
	"maps"
	"strings"

	"github.com/btcsuite/txengine/pkg/money"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// CustomFeeUnset is the custom fee amount meaning "no custom fee given".
const CustomFeeUnset int64 = -1

// FeeLevel is a named tier selecting how aggressively a transaction is priced.
type FeeLevel uint8

const (
	// FeeLevelNone means no fee is chosen by the user, e.g. because the
	// price is owned by a quoting service.
	FeeLevelNone FeeLevel = iota

	// FeeLevelRegular is the standard network fee.
	FeeLevelRegular

	// FeeLevelPriority pays more for faster inclusion.
	FeeLevelPriority

	// FeeLevelCustom uses a fee rate supplied by the user.
	FeeLevelCustom
)

// allFeeLevels lists every level in enum order. The order defines the "first
// available" level.
var allFeeLevels = []FeeLevel{
	FeeLevelNone, FeeLevelRegular, FeeLevelPriority, FeeLevelCustom,
}

// String returns the string representation of a fee level.
func (l FeeLevel) String() string {
	switch l {
	case FeeLevelNone:
		return "none"

	case FeeLevelRegular:
		return "regular"

	case FeeLevelPriority:
		return "priority"

	case FeeLevelCustom:
		return "custom"

	default:
		return "unknown fee level"
	}
}

// IsValid returns true if l is a known fee level.
func (l FeeLevel) IsValid() bool {
	return l <= FeeLevelCustom
}

// ParseFeeLevel parses the string representation of a fee level.
func ParseFeeLevel(s string) (FeeLevel, error) {
	for _, level := range allFeeLevels {
		if strings.EqualFold(s, level.String()) {
			return level, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownFeeLevel, s)
}

// FeeSelection describes the fee choice offered to, and made by, the user.
type FeeSelection struct {
	// SelectedLevel is the level currently in use. It is always a member
	// of AvailableLevels once a transaction is initialised.
	SelectedLevel FeeLevel

	// AvailableLevels is the set of levels meaningful for this asset and
	// account combination.
	AvailableLevels fn.Set[FeeLevel]

	// Asset is the currency the network fee is paid in, if any.
	Asset fn.Option[money.Currency]

	// FeesForLevels holds the fee each available level would cost for
	// the current amount.
	FeesForLevels map[FeeLevel]money.Money

	// CustomAmount is the user supplied custom fee, CustomFeeUnset when
	// none was given.
	CustomAmount int64
}

// newFeeSelection returns a selection over the given levels with the first
// available level selected.
func newFeeSelection(asset fn.Option[money.Currency],
	levels ...FeeLevel) FeeSelection {

	available := fn.NewSet(levels...)

	return FeeSelection{
		SelectedLevel:   firstAvailable(available),
		AvailableLevels: available,
		Asset:           asset,
		FeesForLevels:   make(map[FeeLevel]money.Money),
		CustomAmount:    CustomFeeUnset,
	}
}

// firstAvailable returns the lowest available level in enum order.
func firstAvailable(available fn.Set[FeeLevel]) FeeLevel {
	for _, level := range allFeeLevels {
		if available.Contains(level) {
			return level
		}
	}

	return FeeLevelNone
}

// OrderedLevels returns the available levels in enum order.
func (f FeeSelection) OrderedLevels() []FeeLevel {
	levels := make([]FeeLevel, 0, len(f.AvailableLevels))
	for _, level := range allFeeLevels {
		if f.AvailableLevels.Contains(level) {
			levels = append(levels, level)
		}
	}

	return levels
}

// Copy returns a deep copy of the selection.
func (f FeeSelection) Copy() FeeSelection {
	available := fn.NewSet[FeeLevel]()
	for level := range f.AvailableLevels {
		available.Add(level)
	}

	fees := make(map[FeeLevel]money.Money, len(f.FeesForLevels))
	maps.Copy(fees, f.FeesForLevels)

	return FeeSelection{
		SelectedLevel:   f.SelectedLevel,
		AvailableLevels: available,
		Asset:           f.Asset,
		FeesForLevels:   fees,
		CustomAmount:    f.CustomAmount,
	}
}
