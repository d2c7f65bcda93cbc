package instruction

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/pkg/types"
)

func newKey() types.Pubkey {
	return solana.NewWallet().PublicKey()
}

func validInitialize() *Initialize {
	return &Initialize{
		InitialReserveA: 1_000,
		InitialReserveB: 2_000,
		Admin:           newKey(),
		MintA:           newKey(),
		MintB:           newKey(),
		ShareMint:       newKey(),
		VaultA:          newKey(),
		VaultB:          newKey(),
		OracleA:         newKey(),
		OracleB:         newKey(),
	}
}

func TestWireFormat(t *testing.T) {
	data, err := Encode(&Swap{TokenIn: types.SideB, AmountIn: 0x0102, MinAmountOut: 7})
	require.NoError(t, err)
	require.Equal(t, []byte{
		4,                      // tag
		1,                      // token in
		0x02, 0x01, 0, 0, 0, 0, 0, 0, // amount in
		7, 0, 0, 0, 0, 0, 0, 0, // min out
	}, data)

	data, err = Encode(validInitialize())
	require.NoError(t, err)
	require.Len(t, data, 1+8+8+8*32)
}

func TestDecodeEveryKind(t *testing.T) {
	ixs := []Instruction{
		validInitialize(),
		&AdminDeposit{AmountA: 10, AmountB: 20},
		&Deposit{Token: types.SideA, Amount: 30, MinSharesOut: 29},
		&Withdraw{SharesIn: 40, MinAmountAOut: 1, MinAmountBOut: 2},
		&Swap{TokenIn: types.SideA, AmountIn: 50, MinAmountOut: 49},
	}
	for _, ix := range ixs {
		t.Run(ix.Kind().String(), func(t *testing.T) {
			data, err := Encode(ix)
			require.NoError(t, err)
			require.Equal(t, byte(ix.Kind()), data[0])

			got, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, ix, got)
		})
	}
}

func TestDecodeRejectsMalformedData(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, zerrors.ErrInvalidInstruction)

	_, err = Decode([]byte{9})
	require.ErrorIs(t, err, zerrors.ErrInvalidInstruction)

	data, err := Encode(&Withdraw{SharesIn: 1})
	require.NoError(t, err)

	_, err = Decode(data[:len(data)-1])
	require.ErrorIs(t, err, zerrors.ErrInvalidInstruction)

	_, err = Decode(append(data, 0))
	require.ErrorIs(t, err, zerrors.ErrInvalidInstruction)
}

func TestValidate(t *testing.T) {
	sameMints := validInitialize()
	sameMints.MintB = sameMints.MintA

	missingOracle := validInitialize()
	missingOracle.OracleB = types.Pubkey{}

	zeroReserve := validInitialize()
	zeroReserve.InitialReserveB = 0

	tests := []struct {
		name string
		ix   Instruction
		want error
	}{
		{"initialize ok", validInitialize(), nil},
		{"initialize same mints", sameMints, zerrors.ErrInvalidInstruction},
		{"initialize missing oracle", missingOracle, zerrors.ErrInvalidInstruction},
		{"initialize zero reserve", zeroReserve, zerrors.ErrZeroAmount},
		{"admin deposit one side", NewAdminDeposit(types.SideB, 5), nil},
		{"admin deposit nothing", &AdminDeposit{}, zerrors.ErrZeroAmount},
		{"deposit zero", &Deposit{Token: types.SideA}, zerrors.ErrZeroAmount},
		{"deposit bad side", &Deposit{Token: 3, Amount: 1}, zerrors.ErrInvalidInstruction},
		{"withdraw zero", &Withdraw{}, zerrors.ErrZeroAmount},
		{"swap zero", &Swap{TokenIn: types.SideB}, zerrors.ErrZeroAmount},
		{"swap bad side", &Swap{TokenIn: 2, AmountIn: 1}, zerrors.ErrInvalidInstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ix.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewAdminDeposit(t *testing.T) {
	require.Equal(t, &AdminDeposit{AmountA: 5}, NewAdminDeposit(types.SideA, 5))
	require.Equal(t, &AdminDeposit{AmountB: 6}, NewAdminDeposit(types.SideB, 6))
}

func TestKindText(t *testing.T) {
	for k := KindInitialize; k <= KindSwap; k++ {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var got Kind
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, k, got)
	}

	var k Kind
	require.Error(t, k.UnmarshalText([]byte("close_pool")))
}
