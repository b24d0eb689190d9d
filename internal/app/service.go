package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"battleship-near/internal/codec"
	"battleship-near/internal/game"
	"battleship-near/internal/near"
	"battleship-near/internal/prover"
)

var ErrGameNotFound = errors.New("game not found")

type Prover interface {
	ProveInit(ctx context.Context, st game.State) (string, error)
	ProveTurn(ctx context.Context, params game.RoundParams) (*prover.TurnResult, error)
}

type Chain interface {
	FunctionCall(ctx context.Context, contractID, method string, args any, gas uint64) (*near.FinalExecutionOutcome, error)
	CallView(ctx context.Context, contractID, method string, args any) ([]byte, error)
}

// Service runs one game operation: optional proof, then exactly one contract call.
type Service struct {
	Prover     Prover
	Chain      Chain
	ContractID string
	Gas        uint64
	Log        zerolog.Logger
}

type Result struct {
	Method  string
	Outcome *near.FinalExecutionOutcome
	Totals  near.Totals
}

type TurnResult struct {
	Result
	Shot  game.Position
	Round *prover.RoundResult // nil when the proving service sent only a receipt
}

// SubmitSeal sends the raw seal file at path to the contract's verify method.
func (s *Service) SubmitSeal(ctx context.Context, path string) (*Result, error) {
	seal, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seal: %w", err)
	}
	s.Log.Info().Str("path", path).Int("bytes", len(seal)).Msg("loaded seal")
	return s.call(ctx, "verify", codec.SealArgs{SealStr: base64.StdEncoding.EncodeToString(seal)})
}

func (s *Service) NewGame(ctx context.Context, name string, st game.State) (*Result, error) {
	receipt, err := s.proveInit(ctx, st)
	if err != nil {
		return nil, err
	}
	return s.call(ctx, "new_game", codec.NewGameArgs{Name: name, ReceiptStr: receipt})
}

// JoinGame proves the joining player's board and fires the opening shot.
func (s *Service) JoinGame(ctx context.Context, name string, st game.State, shot game.Position) (*Result, error) {
	if !shot.InBounds() {
		return nil, fmt.Errorf("shot %s is off the board", shot)
	}
	receipt, err := s.proveInit(ctx, st)
	if err != nil {
		return nil, err
	}
	return s.call(ctx, "join_game", codec.JoinGameArgs{
		Name:       name,
		ReceiptStr: receipt,
		ShotX:      shot.X,
		ShotY:      shot.Y,
	})
}

// Turn proves the outcome of the opponent's shot on st and answers with next.
// A nil next fires back at the same coordinates.
func (s *Service) Turn(ctx context.Context, name string, st game.State, shot game.Position, next *game.Position) (*TurnResult, error) {
	if !shot.InBounds() {
		return nil, fmt.Errorf("shot %s is off the board", shot)
	}
	fire := shot
	if next != nil {
		fire = *next
	}
	if !fire.InBounds() {
		return nil, fmt.Errorf("shot %s is off the board", fire)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board: %w", err)
	}

	proof, err := s.Prover.ProveTurn(ctx, game.RoundParams{State: st, Shot: shot})
	if err != nil {
		return nil, fmt.Errorf("prove turn: %w", err)
	}
	if proof.State != nil {
		s.Log.Info().Stringer("shot", shot).Str("hit", proof.State.HitKind()).Msg("turn proved")
	}

	res, err := s.call(ctx, "turn", codec.TurnArgs{
		Name:       name,
		ShotX:      fire.X,
		ShotY:      fire.Y,
		ReceiptStr: proof.Receipt,
	})
	if res == nil {
		return nil, err
	}
	return &TurnResult{Result: *res, Shot: fire, Round: proof.State}, err
}

// GameState reads the contract's view of a game without submitting a transaction.
func (s *Service) GameState(ctx context.Context, name string) (*codec.ContractGame, error) {
	raw, err := s.Chain.CallView(ctx, s.ContractID, "game_state", codec.GameStateArgs{Name: name})
	if err != nil {
		return nil, err
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		return nil, fmt.Errorf("game %q: %w", name, ErrGameNotFound)
	}
	var g codec.ContractGame
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode game_state: %w", err)
	}
	return &g, nil
}

func (s *Service) proveInit(ctx context.Context, st game.State) (string, error) {
	if err := st.Validate(); err != nil {
		return "", fmt.Errorf("invalid board: %w", err)
	}
	receipt, err := s.Prover.ProveInit(ctx, st)
	if err != nil {
		return "", fmt.Errorf("prove board: %w", err)
	}
	s.Log.Info().Int("receipt_len", len(receipt)).Msg("board proved")
	return receipt, nil
}

// call submits one transaction. A contract failure still yields a Result so
// the burnt gas can be reported alongside the error.
func (s *Service) call(ctx context.Context, method string, args any) (*Result, error) {
	out, err := s.Chain.FunctionCall(ctx, s.ContractID, method, args, s.Gas)
	if out == nil {
		return nil, err
	}
	res := &Result{Method: method, Outcome: out, Totals: near.Aggregate(out)}
	if err != nil && !errors.Is(err, near.ErrExecution) {
		return res, err
	}
	s.Log.Info().
		Str("method", method).
		Str("tx", out.TxHash()).
		Uint64("gas", res.Totals.Gas).
		Bool("failed", err != nil).
		Msg("transaction complete")
	return res, err
}
