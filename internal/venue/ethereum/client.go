// Package ethereum implements the Ethereum venue: Uniswap V3 spot pricing
// through an RPC node and gas-based fee estimation for the on-chain side of
// a trade.
package ethereum

import (
	"context"
	"fmt"
	"math"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// slot0Selector is the 4-byte selector of IUniswapV3Pool.slot0().
var slot0Selector = []byte{0x38, 0x50, 0xc7, 0xbd}

// backend is the subset of ethclient.Client the venue needs; tests substitute
// a fake.
type backend interface {
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

var _ backend = (*ethclient.Client)(nil)

// Config holds the venue parameters.
type Config struct {
	RpcURL string
	// UniswapPool is the V3 pool address quoted for the spot price.
	UniswapPool string
	// Token0Decimals/Token1Decimals are the pool's token decimals, needed to
	// scale sqrtPriceX96 into a human price.
	Token0Decimals int
	Token1Decimals int
	// Invert flips the pool price when the monitored asset is token1
	// (e.g. a USDC/WETH pool quoting WETH in USDC).
	Invert          bool
	MaxGasPriceGwei int64
	SwapGasLimit    uint64
}

// Client quotes the Uniswap V3 pool and estimates swap gas. It implements
// domain.PriceSource.
type Client struct {
	cfg     Config
	backend backend
	pool    common.Address
}

var _ domain.PriceSource = (*Client)(nil)

// New dials the RPC node and returns a Client.
func New(cfg Config) (*Client, error) {
	ec, err := ethclient.Dial(cfg.RpcURL)
	if err != nil {
		return nil, fmt.Errorf("ethereum: dial %s: %w", cfg.RpcURL, err)
	}
	return NewWithBackend(cfg, ec), nil
}

// NewWithBackend wires an existing backend, used by tests.
func NewWithBackend(cfg Config, b backend) *Client {
	return &Client{
		cfg:     cfg,
		backend: b,
		pool:    common.HexToAddress(cfg.UniswapPool),
	}
}

// Name implements domain.PriceSource.
func (c *Client) Name() string { return "uniswap_v3" }

// Quote implements domain.PriceSource by reading slot0 from the pool.
func (c *Client) Quote(ctx context.Context) (domain.PriceQuote, error) {
	price, err := c.PriceUSD(ctx)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return domain.PriceQuote{
		Price: price,
		Chain: domain.ChainEthereum,
		Venue: "uniswap_v3",
		Metadata: map[string]string{
			"pool": c.pool.Hex(),
		},
	}, nil
}

// PriceUSD returns the pool's current spot price for the monitored asset.
func (c *Client) PriceUSD(ctx context.Context) (float64, error) {
	out, err := c.backend.CallContract(ctx, geth.CallMsg{
		To:   &c.pool,
		Data: slot0Selector,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("ethereum: slot0 call: %w", err)
	}
	if len(out) < 32 {
		return 0, fmt.Errorf("ethereum: slot0 returned %d bytes", len(out))
	}

	sqrtPriceX96 := new(big.Int).SetBytes(out[:32])
	if sqrtPriceX96.Sign() == 0 {
		return 0, fmt.Errorf("ethereum: %w: pool reports zero sqrt price", domain.ErrNoPrice)
	}
	return c.scalePrice(sqrtPriceX96), nil
}

// scalePrice converts sqrtPriceX96 into the token price:
// raw = (sqrtPriceX96 / 2^96)^2 is token1 per token0 in raw units, then
// decimals scaling and optional inversion give the monitored asset's price.
func (c *Client) scalePrice(sqrtPriceX96 *big.Int) float64 {
	sqrt := new(big.Float).SetInt(sqrtPriceX96)
	sqrt.Quo(sqrt, new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96)))

	raw := new(big.Float).Mul(sqrt, sqrt)
	price, _ := raw.Float64()

	price *= math.Pow10(c.cfg.Token0Decimals - c.cfg.Token1Decimals)
	if c.cfg.Invert && price != 0 {
		price = 1 / price
	}
	return price
}

// EstimateFee prices one swap: the node's suggested gas price, capped at the
// configured ceiling, times the swap gas limit, converted through ethUSD.
func (c *Client) EstimateFee(ctx context.Context, ethUSD float64) (domain.LegCost, error) {
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return domain.LegCost{}, fmt.Errorf("ethereum: suggest gas price: %w", err)
	}

	capWei := new(big.Int).Mul(big.NewInt(c.cfg.MaxGasPriceGwei), big.NewInt(1e9))
	if gasPrice.Cmp(capWei) > 0 {
		gasPrice = capWei
	}

	feeWei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(c.cfg.SwapGasLimit))
	feeEth, _ := new(big.Float).Quo(
		new(big.Float).SetInt(feeWei),
		big.NewFloat(1e18),
	).Float64()

	return domain.LegCost{
		Chain:     domain.ChainEthereum,
		NativeFee: feeEth,
		USDFee:    feeEth * ethUSD,
	}, nil
}
