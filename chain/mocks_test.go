package chain

import (
	"context"
	"math/big"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/txengine/pkg/money"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// mockBTCNode is a mock implementation of the BTCNode interface.
type mockBTCNode struct {
	mock.Mock
}

// A compile-time assertion to ensure that mockBTCNode implements BTCNode.
var _ BTCNode = (*mockBTCNode)(nil)

// EstimateSmartFee implements the BTCNode interface.
func (m *mockBTCNode) EstimateSmartFee(confTarget int64,
	mode *btcjson.EstimateSmartFeeMode) (*btcjson.EstimateSmartFeeResult,
	error) {

	args := m.Called(confTarget, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*btcjson.EstimateSmartFeeResult), args.Error(1)
}

// ListUnspentMinMaxAddresses implements the BTCNode interface.
func (m *mockBTCNode) ListUnspentMinMaxAddresses(minConf, maxConf int,
	addrs []btcutil.Address) ([]btcjson.ListUnspentResult, error) {

	args := m.Called(minConf, maxConf, addrs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]btcjson.ListUnspentResult), args.Error(1)
}

// mockETHNode is a mock implementation of the ETHNode interface.
type mockETHNode struct {
	mock.Mock
}

// A compile-time assertion to ensure that mockETHNode implements ETHNode.
var _ ETHNode = (*mockETHNode)(nil)

// SuggestGasPrice implements the ETHNode interface.
func (m *mockETHNode) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*big.Int), args.Error(1)
}

// BalanceAt implements the ETHNode interface.
func (m *mockETHNode) BalanceAt(ctx context.Context, account common.Address,
	blockNumber *big.Int) (*big.Int, error) {

	args := m.Called(ctx, account, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*big.Int), args.Error(1)
}

// mockRateFetcher is a mock implementation of the RateFetcher interface.
type mockRateFetcher struct {
	mock.Mock
}

// A compile-time assertion to ensure that mockRateFetcher implements
// RateFetcher.
var _ RateFetcher = (*mockRateFetcher)(nil)

// Rate implements the RateFetcher interface.
func (m *mockRateFetcher) Rate(ctx context.Context, from,
	to money.Currency) (money.Rate, error) {

	args := m.Called(ctx, from, to)

	return args.Get(0).(money.Rate), args.Error(1)
}
