package near

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mr-tron/base58"
)

const (
	keyTypeED25519     = 0
	actionFunctionCall = 2
)

type FunctionCallAction struct {
	MethodName string
	Args       []byte
	Gas        uint64
	Deposit    *uint256.Int
}

type Transaction struct {
	SignerID   string
	PublicKey  ed25519.PublicKey
	Nonce      uint64
	ReceiverID string
	BlockHash  [32]byte
	Actions    []FunctionCallAction
}

// borsh is the subset of Borsh the transaction layout needs; integers little-endian,
// strings and vectors prefixed with a u32 length.
type borsh struct{ bytes.Buffer }

func (b *borsh) u8(v uint8) { b.WriteByte(v) }

func (b *borsh) u32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.Write(buf[:])
}

func (b *borsh) u64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	b.Write(buf[:])
}

func (b *borsh) u128(v *uint256.Int) error {
	if v == nil {
		v = new(uint256.Int)
	}
	if v.BitLen() > 128 {
		return fmt.Errorf("value %s overflows u128", v.Dec())
	}
	be := v.Bytes32()
	for i := 31; i >= 16; i-- {
		b.WriteByte(be[i])
	}
	return nil
}

func (b *borsh) str(s string) {
	b.u32(uint32(len(s)))
	b.WriteString(s)
}

func (b *borsh) vec(p []byte) {
	b.u32(uint32(len(p)))
	b.Write(p)
}

// Encode serializes the transaction in the layout the runtime hashes and signs.
func (tx *Transaction) Encode() ([]byte, error) {
	if len(tx.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes", len(tx.PublicKey))
	}
	var b borsh
	b.str(tx.SignerID)
	b.u8(keyTypeED25519)
	b.Write(tx.PublicKey)
	b.u64(tx.Nonce)
	b.str(tx.ReceiverID)
	b.Write(tx.BlockHash[:])
	b.u32(uint32(len(tx.Actions)))
	for _, a := range tx.Actions {
		b.u8(actionFunctionCall)
		b.str(a.MethodName)
		b.vec(a.Args)
		b.u64(a.Gas)
		if err := b.u128(a.Deposit); err != nil {
			return nil, fmt.Errorf("deposit: %w", err)
		}
	}
	return b.Bytes(), nil
}

// Sign returns the encoded SignedTransaction and the transaction hash.
func (tx *Transaction) Sign(key ed25519.PrivateKey) ([]byte, [32]byte, error) {
	raw, err := tx.Encode()
	if err != nil {
		return nil, [32]byte{}, err
	}
	hash := sha256.Sum256(raw)
	sig := ed25519.Sign(key, hash[:])

	var b borsh
	b.Write(raw)
	b.u8(keyTypeED25519)
	b.Write(sig)
	return b.Bytes(), hash, nil
}

// TxHash renders a transaction hash the way the RPC reports it.
func TxHash(hash [32]byte) string { return base58.Encode(hash[:]) }

func decodeHash(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("invalid block hash %q: %w", s, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("block hash %q has %d bytes", s, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
