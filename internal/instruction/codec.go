package instruction

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	zerrors "github.com/lugondev/go-zion/internal/errors"
)

// Encode serializes ix as tag byte plus Borsh payload.
func Encode(ix Instruction) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	if err := enc.WriteUint8(uint8(ix.Kind())); err != nil {
		return nil, fmt.Errorf("failed to write tag: %w", err)
	}
	if err := ix.MarshalWithEncoder(enc); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ix.Kind(), err)
	}
	return buf.Bytes(), nil
}

// Decode parses data produced by Encode. Unknown tags, short payloads and
// trailing bytes are rejected.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, zerrors.InvalidInstruction("empty instruction data")
	}

	var ix Instruction
	switch Kind(data[0]) {
	case KindInitialize:
		ix = new(Initialize)
	case KindAdminDeposit:
		ix = new(AdminDeposit)
	case KindDeposit:
		ix = new(Deposit)
	case KindWithdraw:
		ix = new(Withdraw)
	case KindSwap:
		ix = new(Swap)
	default:
		return nil, zerrors.InvalidInstruction(fmt.Sprintf("unknown instruction tag %d", data[0]))
	}

	dec := bin.NewBorshDecoder(data[1:])
	if err := ix.UnmarshalWithDecoder(dec); err != nil {
		return nil, zerrors.InvalidInstruction(fmt.Sprintf("malformed %s payload", ix.Kind())).WithCause(err)
	}
	if dec.Remaining() != 0 {
		return nil, zerrors.InvalidInstruction(fmt.Sprintf("%d trailing bytes after %s payload", dec.Remaining(), ix.Kind()))
	}
	return ix, nil
}

func encodeFields(enc *bin.Encoder, fields ...any) error {
	for _, f := range fields {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

func decodeFields(dec *bin.Decoder, fields ...any) error {
	for _, f := range fields {
		if err := dec.Decode(f); err != nil {
			return err
		}
	}
	return nil
}
