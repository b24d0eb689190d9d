package near

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// storageAmountPerByte is the protocol's storage staking price, yoctoNEAR per byte.
var storageAmountPerByte = uint256.NewInt(10_000_000_000_000_000_000)

type Account struct {
	conn *Connection
	key  *KeyPair
	log  zerolog.Logger
}

type Balance struct {
	Total       *uint256.Int
	StateStaked *uint256.Int
	Staked      *uint256.Int
	Available   *uint256.Int
}

func (a *Account) ID() string { return a.key.AccountID }

// Balance splits the account balance the way wallets report it: storage
// staking is reserved out of the liquid amount unless more is already locked.
func (a *Account) Balance(ctx context.Context) (*Balance, error) {
	av, err := a.conn.ViewAccount(ctx, a.key.AccountID)
	if err != nil {
		return nil, err
	}
	staked := av.Locked.Int()
	stateStaked := new(uint256.Int).Mul(uint256.NewInt(av.StorageUsage), storageAmountPerByte)
	total := new(uint256.Int).Add(av.Amount.Int(), staked)

	reserved := staked
	if stateStaked.Gt(staked) {
		reserved = stateStaked
	}
	available := new(uint256.Int)
	if total.Gt(reserved) {
		available.Sub(total, reserved)
	}
	return &Balance{Total: total, StateStaked: stateStaked, Staked: staked, Available: available}, nil
}

// FunctionCall signs and submits one call of method on contractID, then blocks
// until the node returns the final outcome. A Failure status is returned as
// *ExecutionError together with the outcome.
func (a *Account) FunctionCall(ctx context.Context, contractID, method string, args any, gas uint64) (*FinalExecutionOutcome, error) {
	argBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	ak, err := a.conn.ViewAccessKey(ctx, a.key.AccountID, a.key.PublicKeyString())
	if err != nil {
		return nil, err
	}
	blockHash, err := decodeHash(ak.BlockHash)
	if err != nil {
		return nil, &RPCError{Method: "query", Err: err}
	}

	tx := &Transaction{
		SignerID:   a.key.AccountID,
		PublicKey:  a.key.PublicKey,
		Nonce:      ak.Nonce + 1,
		ReceiverID: contractID,
		BlockHash:  blockHash,
		Actions: []FunctionCallAction{{
			MethodName: method,
			Args:       argBytes,
			Gas:        gas,
			Deposit:    new(uint256.Int),
		}},
	}
	signed, hash, err := tx.Sign(a.key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	a.log.Info().
		Str("contract", contractID).
		Str("method", method).
		Uint64("gas", gas).
		Uint64("nonce", tx.Nonce).
		Str("tx", TxHash(hash)).
		Msg("submitting function call")

	out, err := a.conn.BroadcastTxCommit(ctx, signed)
	if err != nil {
		return nil, err
	}
	for _, l := range out.Logs() {
		a.log.Info().Str("method", method).Msg(l)
	}
	if f := out.Failure(); f != nil {
		return out, &ExecutionError{TxHash: out.TxHash(), Raw: f}
	}
	return out, nil
}

func (a *Account) CallView(ctx context.Context, contractID, method string, args any) ([]byte, error) {
	return a.conn.CallView(ctx, contractID, method, args)
}
