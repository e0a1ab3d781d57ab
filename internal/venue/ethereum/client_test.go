package ethereum

import (
	"context"
	"errors"
	"math/big"
	"testing"

	geth "github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

type fakeBackend struct {
	slot0    []byte
	callErr  error
	gasPrice *big.Int
	gasErr   error
}

func (b *fakeBackend) CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return b.slot0, b.callErr
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return b.gasPrice, b.gasErr
}

// slot0Return encodes sqrtPriceX96 as the first word of a slot0() response.
func slot0Return(sqrtPriceX96 *big.Int) []byte {
	out := make([]byte, 7*32)
	sqrtPriceX96.FillBytes(out[:32])
	return out
}

func testConfig() Config {
	return Config{
		UniswapPool:     "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
		Token0Decimals:  6,
		Token1Decimals:  18,
		Invert:          true,
		MaxGasPriceGwei: 100,
		SwapGasLimit:    140_000,
	}
}

func TestQuoteDecodesSlot0(t *testing.T) {
	// sqrtPriceX96 = 20000 * 2^96 gives a raw token1/token0 price of 4e8,
	// which after 6/18 decimal scaling and inversion is 2500 USD.
	sqrt := new(big.Int).Lsh(big.NewInt(20_000), 96)
	backend := &fakeBackend{slot0: slot0Return(sqrt)}
	c := NewWithBackend(testConfig(), backend)

	q, err := c.Quote(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2500.0, q.Price, 1e-6)
	assert.Equal(t, domain.ChainEthereum, q.Chain)
	assert.Equal(t, "uniswap_v3", q.Venue)
	assert.False(t, q.Proxy)
}

func TestQuoteZeroSqrtPriceIsNoPrice(t *testing.T) {
	backend := &fakeBackend{slot0: slot0Return(big.NewInt(0))}
	c := NewWithBackend(testConfig(), backend)

	_, err := c.Quote(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoPrice)
}

func TestQuotePropagatesCallError(t *testing.T) {
	backend := &fakeBackend{callErr: errors.New("connection refused")}
	c := NewWithBackend(testConfig(), backend)

	_, err := c.Quote(context.Background())
	assert.ErrorContains(t, err, "slot0 call")
}

func TestEstimateFee(t *testing.T) {
	// 20 gwei × 140k gas = 0.0028 ETH.
	backend := &fakeBackend{gasPrice: new(big.Int).Mul(big.NewInt(20), big.NewInt(1e9))}
	c := NewWithBackend(testConfig(), backend)

	cost, err := c.EstimateFee(context.Background(), 2500)
	require.NoError(t, err)
	assert.Equal(t, domain.ChainEthereum, cost.Chain)
	assert.InDelta(t, 0.0028, cost.NativeFee, 1e-12)
	assert.InDelta(t, 7.0, cost.USDFee, 1e-9)
}

func TestEstimateFeeCapsGasPrice(t *testing.T) {
	// 500 gwei suggested, capped at the 100 gwei ceiling.
	backend := &fakeBackend{gasPrice: new(big.Int).Mul(big.NewInt(500), big.NewInt(1e9))}
	c := NewWithBackend(testConfig(), backend)

	cost, err := c.EstimateFee(context.Background(), 2500)
	require.NoError(t, err)
	assert.InDelta(t, 0.014, cost.NativeFee, 1e-12)
	assert.InDelta(t, 35.0, cost.USDFee, 1e-9)
}
