package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"battleship-near/internal/codec"
	"battleship-near/internal/game"
	"battleship-near/internal/near"
	"battleship-near/internal/prover"
)

func TestExitCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&prover.UnreachableError{URL: "u", Err: errors.New("refused")}, exitProver},
		{fmt.Errorf("prove board: %w", &prover.RejectedError{URL: "u", Status: 500}), exitProver},
		{&near.RPCError{Method: "query", Err: errors.New("eof")}, exitRPC},
		{&near.ExecutionError{TxHash: "h", Raw: []byte(`{}`)}, exitContract},
		{errors.New("read seal: no such file"), exitLocal},
	}
	for _, tc := range cases {
		ec, ok := exitErr(tc.err).(cli.ExitCoder)
		require.True(t, ok)
		assert.Equal(t, tc.code, ec.ExitCode(), tc.err.Error())
	}
	assert.NoError(t, exitErr(nil))
}

func TestBoardCommand(t *testing.T) {
	for _, name := range []string{"board.json", "board.yaml"} {
		out := filepath.Join(t.TempDir(), name)
		var stdout bytes.Buffer
		err := newApp(&stdout, &bytes.Buffer{}).Run([]string{"battleship", "board", "--out", out, "--default-salt"})
		require.NoError(t, err)
		assert.Contains(t, stdout.String(), out)

		st, err := codec.LoadState(out)
		require.NoError(t, err)
		assert.NoError(t, st.Validate())
		assert.Equal(t, game.DefaultSalt, st.Salt)
	}
}
