package codec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"battleship-near/internal/game"
)

// Contract method arguments, field names as the contract expects them.

type SealArgs struct {
	SealStr string `json:"seal_str"`
}

type NewGameArgs struct {
	Name       string `json:"name"`
	ReceiptStr string `json:"receipt_str"`
}

type JoinGameArgs struct {
	Name       string `json:"name"`
	ReceiptStr string `json:"receipt_str"`
	ShotX      uint32 `json:"shot_x"`
	ShotY      uint32 `json:"shot_y"`
}

type TurnArgs struct {
	Name       string `json:"name"`
	ShotX      uint32 `json:"shot_x"`
	ShotY      uint32 `json:"shot_y"`
	ReceiptStr string `json:"receipt_str"`
}

type GameStateArgs struct {
	Name string `json:"name"`
}

// PlayerState and ContractGame mirror the contract's game_state view.
type PlayerState struct {
	ID    string    `json:"id"`
	Board [8]uint32 `json:"board"`
	ShotX uint32    `json:"shot_x"`
	ShotY uint32    `json:"shot_y"`
}

type ContractGame struct {
	NextTurn uint32      `json:"next_turn"`
	P1       PlayerState `json:"p1"`
	P2       PlayerState `json:"p2"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadState reads a board state file, YAML by extension, JSON otherwise.
func LoadState(path string) (game.State, error) {
	var st game.State
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &st)
	} else {
		err = json.Unmarshal(data, &st)
	}
	if err != nil {
		return st, fmt.Errorf("parse %s: %w", path, err)
	}
	return st, nil
}

func SaveState(path string, st game.State) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(st)
	} else {
		data, err = json.MarshalIndent(st, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
