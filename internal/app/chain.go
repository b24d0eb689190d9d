package app

import (
	"context"

	"github.com/rs/zerolog"

	"battleship-near/internal/near"
)

// NearChain dials the node on first use, so a failed proof never opens a
// connection.
type NearChain struct {
	NodeURL   string
	NetworkID string
	Key       *near.KeyPair
	Log       zerolog.Logger

	conn *near.Connection
	acct *near.Account
}

func (c *NearChain) Account(ctx context.Context) (*near.Account, error) {
	if c.acct != nil {
		return c.acct, nil
	}
	conn, err := near.Connect(ctx, c.NodeURL, c.NetworkID, c.Log)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.acct = conn.Account(c.Key)

	if b, err := c.acct.Balance(ctx); err == nil {
		c.Log.Info().
			Str("account", c.Key.AccountID).
			Str("total", near.FormatAmount(b.Total, 5)).
			Str("available", near.FormatAmount(b.Available, 5)).
			Msg("account balance")
	} else {
		c.Log.Warn().Err(err).Msg("balance unavailable")
	}
	return c.acct, nil
}

func (c *NearChain) FunctionCall(ctx context.Context, contractID, method string, args any, gas uint64) (*near.FinalExecutionOutcome, error) {
	acct, err := c.Account(ctx)
	if err != nil {
		return nil, err
	}
	return acct.FunctionCall(ctx, contractID, method, args, gas)
}

func (c *NearChain) CallView(ctx context.Context, contractID, method string, args any) ([]byte, error) {
	acct, err := c.Account(ctx)
	if err != nil {
		return nil, err
	}
	return acct.CallView(ctx, contractID, method, args)
}

func (c *NearChain) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
