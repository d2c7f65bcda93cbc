package oracle

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/shopspring/decimal"

	"github.com/lugondev/go-zion/pkg/view"
)

// Feed status values.
const (
	StatusUnknown uint32 = iota
	StatusTrading
	StatusHalted
)

// Feed is the decoded content of a price feed account.
type Feed struct {
	Status      uint32
	Expo        int32
	Price       int64
	Conf        uint64
	PublishSlot uint64
}

// EncodeFeed produces the account data for f.
func EncodeFeed(f Feed) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, view.FeedSize))
	enc := bin.NewBorshEncoder(buf)
	for _, v := range []any{
		view.FeedMagic,
		view.FeedVersion,
		f.Status,
		f.Expo,
		f.Price,
		f.Conf,
		f.PublishSlot,
		uint64(0),
	} {
		// Writes into a bytes.Buffer cannot fail.
		_ = enc.Encode(v)
	}
	return buf.Bytes()
}

// FeedFromDecimal builds a trading feed from human-readable price and
// confidence values expressed with the given exponent.
func FeedFromDecimal(price, conf decimal.Decimal, expo int32, publishSlot uint64) Feed {
	shift := -expo
	return Feed{
		Status:      StatusTrading,
		Expo:        expo,
		Price:       price.Shift(shift).IntPart(),
		Conf:        uint64(conf.Abs().Shift(shift).IntPart()),
		PublishSlot: publishSlot,
	}
}
