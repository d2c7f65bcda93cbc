// Package oracle turns raw price feed accounts into trusted price quotes.
//
// A feed is only accepted when it is the account the pool is bound to, is
// well formed and trading, is not older than the configured age, carries a
// strictly positive price and a confidence interval within the configured
// bound. The resolver is pure: it reads the account handed to it and never
// caches a quote across calls.
package oracle

import (
	"fmt"

	"github.com/holiman/uint256"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
	"github.com/lugondev/go-zion/pkg/view"
)

const bpsDenominator = 10_000

// Config bounds which feeds are trusted.
type Config struct {
	// MaxAgeSlots is the largest accepted distance between the current slot
	// and the feed's publish slot.
	MaxAgeSlots uint64

	// MaxConfidenceBps is the largest accepted confidence interval, in basis
	// points of the price.
	MaxConfidenceBps uint64
}

// Quote is a validated price normalized to fixed-point.
type Quote struct {
	Price       fixedpoint.Number
	Confidence  fixedpoint.Number
	PublishSlot uint64
}

// Bid is the conservative value of one unit when the pool receives it.
func (q Quote) Bid() (fixedpoint.Number, error) {
	bid, err := q.Price.Sub(q.Confidence)
	if err != nil || bid.IsZero() {
		return fixedpoint.Number{}, zerrors.NewError(zerrors.ErrCodeZeroPrice, "confidence band reaches zero")
	}
	return bid, nil
}

// Ask is the conservative value of one unit when the pool pays it out.
func (q Quote) Ask() (fixedpoint.Number, error) {
	ask, err := q.Price.Add(q.Confidence)
	if err != nil {
		return fixedpoint.Number{}, zerrors.Arithmetic("ask price", err)
	}
	return ask, nil
}

// Resolver validates feed accounts against a Config.
type Resolver struct {
	cfg Config
}

// NewResolver creates a resolver.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Config returns the resolver's bounds.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Resolve validates the feed account stored at feedKey and returns its quote.
// binding is the feed the pool trusts for this token.
func (r *Resolver) Resolve(binding, feedKey types.Pubkey, account *types.Account, currentSlot uint64) (Quote, error) {
	if !feedKey.Equals(binding) {
		return Quote{}, zerrors.InvalidOracleData(fmt.Sprintf("feed %s is not bound to the pool (want %s)", feedKey, binding))
	}
	if account == nil {
		return Quote{}, zerrors.InvalidOracleData(fmt.Sprintf("feed %s has no account data", feedKey))
	}

	feed, err := view.NewFeedView(account.Data)
	if err != nil {
		return Quote{}, zerrors.ErrInvalidOracleData.WithCause(err)
	}
	if feed.Version() != view.FeedVersion {
		return Quote{}, zerrors.InvalidOracleData(fmt.Sprintf("unsupported feed version %d", feed.Version()))
	}
	if feed.Status() != StatusTrading {
		return Quote{}, zerrors.InvalidOracleData(fmt.Sprintf("feed status %d is not trading", feed.Status()))
	}

	published := feed.PublishSlot()
	if published > currentSlot {
		return Quote{}, zerrors.InvalidOracleData(fmt.Sprintf("feed published at slot %d after current slot %d", published, currentSlot))
	}
	if age := currentSlot - published; age > r.cfg.MaxAgeSlots {
		return Quote{}, zerrors.StalePrice(age, r.cfg.MaxAgeSlots)
	}

	raw := feed.Price()
	switch {
	case raw < 0:
		return Quote{}, zerrors.ErrNegativePrice.WithDetails(map[string]any{"price": raw})
	case raw == 0:
		return Quote{}, zerrors.ErrZeroPrice
	}

	conf := feed.Conf()
	if !r.confidenceWithinBound(uint64(raw), conf) {
		return Quote{}, zerrors.InvalidOracleData(fmt.Sprintf(
			"confidence %d exceeds %d bps of price %d", conf, r.cfg.MaxConfidenceBps, raw))
	}

	price, err := fixedpoint.FromScaled(uint64(raw), feed.Expo())
	if err != nil {
		return Quote{}, zerrors.InvalidOracleData("price exponent out of range").WithCause(err)
	}
	if price.IsZero() {
		return Quote{}, zerrors.NewError(zerrors.ErrCodeZeroPrice, "price rounds to zero at engine precision")
	}
	confidence, err := fixedpoint.FromScaled(conf, feed.Expo())
	if err != nil {
		return Quote{}, zerrors.InvalidOracleData("confidence exponent out of range").WithCause(err)
	}

	return Quote{
		Price:       price,
		Confidence:  confidence,
		PublishSlot: published,
	}, nil
}

func (r *Resolver) confidenceWithinBound(price, conf uint64) bool {
	var lhs, rhs uint256.Int
	lhs.Mul(uint256.NewInt(conf), uint256.NewInt(bpsDenominator))
	rhs.Mul(uint256.NewInt(price), uint256.NewInt(r.cfg.MaxConfidenceBps))
	return !lhs.Gt(&rhs)
}
