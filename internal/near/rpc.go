package near

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
)

// Connection is a client handle to one NEAR RPC node.
type Connection struct {
	rpc       *rpc.Client
	networkID string
	log       zerolog.Logger
}

type NodeStatus struct {
	ChainID  string `json:"chain_id"`
	SyncInfo struct {
		LatestBlockHash   string `json:"latest_block_hash"`
		LatestBlockHeight uint64 `json:"latest_block_height"`
		Syncing           bool   `json:"syncing"`
	} `json:"sync_info"`
	Version struct {
		Version string `json:"version"`
	} `json:"version"`
}

type AccessKeyView struct {
	Nonce       uint64          `json:"nonce"`
	Permission  json.RawMessage `json:"permission"`
	BlockHeight uint64          `json:"block_height"`
	BlockHash   string          `json:"block_hash"`
}

type AccountView struct {
	Amount       Amount `json:"amount"`
	Locked       Amount `json:"locked"`
	CodeHash     string `json:"code_hash"`
	StorageUsage uint64 `json:"storage_usage"`
	BlockHeight  uint64 `json:"block_height"`
	BlockHash    string `json:"block_hash"`
}

type callResult struct {
	Result []int    `json:"result"`
	Logs   []string `json:"logs"`
}

// Connect dials nodeURL (http, https, ws or wss) and checks that the node answers.
func Connect(ctx context.Context, nodeURL, networkID string, log zerolog.Logger) (*Connection, error) {
	u, err := url.Parse(nodeURL)
	if err != nil {
		return nil, fmt.Errorf("parse node url: %w", err)
	}

	var client *rpc.Client
	switch u.Scheme {
	case "ws", "wss":
		client, err = rpc.DialWebsocketWithDialer(ctx, nodeURL, "", *websocket.DefaultDialer)
	case "http", "https":
		client, err = rpc.DialOptions(ctx, nodeURL, rpc.WithHTTPClient(&http.Client{}))
	default:
		return nil, fmt.Errorf("unsupported node url scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, wrapRPC("dial", err)
	}

	c := &Connection{
		rpc:       client,
		networkID: networkID,
		log:       log.With().Str("component", "near").Str("node", u.Host).Logger(),
	}
	st, err := c.Status(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	if st.ChainID != networkID {
		c.log.Warn().Str("chain_id", st.ChainID).Str("network_id", networkID).Msg("node serves a different chain")
	}
	c.log.Info().Str("chain_id", st.ChainID).Uint64("height", st.SyncInfo.LatestBlockHeight).Msg("connected")
	return c, nil
}

func (c *Connection) Close() { c.rpc.Close() }

func (c *Connection) NetworkID() string { return c.networkID }

func (c *Connection) call(ctx context.Context, result any, method string, args ...any) error {
	if err := c.rpc.CallContext(ctx, result, method, args...); err != nil {
		return wrapRPC(method, err)
	}
	return nil
}

func (c *Connection) Status(ctx context.Context) (*NodeStatus, error) {
	var st NodeStatus
	if err := c.call(ctx, &st, "status"); err != nil {
		return nil, err
	}
	return &st, nil
}

// query uses the positional form of the query method: [path, data].
// Some failures come back inside the result as an "error" string.
func (c *Connection) query(ctx context.Context, path, data string, out any) error {
	var raw json.RawMessage
	if err := c.call(ctx, &raw, "query", path, data); err != nil {
		return err
	}
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Error != "" {
		return &RPCError{Method: "query", Err: errors.New(probe.Error)}
	}
	return json.Unmarshal(raw, out)
}

func (c *Connection) ViewAccessKey(ctx context.Context, accountID, publicKey string) (*AccessKeyView, error) {
	var ak AccessKeyView
	if err := c.query(ctx, "access_key/"+accountID+"/"+publicKey, "", &ak); err != nil {
		return nil, err
	}
	return &ak, nil
}

func (c *Connection) ViewAccount(ctx context.Context, accountID string) (*AccountView, error) {
	var av AccountView
	if err := c.query(ctx, "account/"+accountID, "", &av); err != nil {
		return nil, err
	}
	return &av, nil
}

// CallView runs a read-only contract method and returns its raw return bytes.
func (c *Connection) CallView(ctx context.Context, contractID, method string, args any) ([]byte, error) {
	argBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	var res callResult
	if err := c.query(ctx, "call/"+contractID+"/"+method, base58.Encode(argBytes), &res); err != nil {
		return nil, err
	}
	for _, l := range res.Logs {
		c.log.Debug().Str("method", method).Msg(l)
	}
	out := make([]byte, len(res.Result))
	for i, v := range res.Result {
		out[i] = byte(v)
	}
	return out, nil
}

// BroadcastTxCommit submits a signed transaction and waits for its final outcome.
func (c *Connection) BroadcastTxCommit(ctx context.Context, signed []byte) (*FinalExecutionOutcome, error) {
	var out FinalExecutionOutcome
	if err := c.call(ctx, &out, "broadcast_tx_commit", base64.StdEncoding.EncodeToString(signed)); err != nil {
		return nil, err
	}
	return &out, nil
}

// Account binds a key to this connection.
func (c *Connection) Account(key *KeyPair) *Account {
	return &Account{
		conn: c,
		key:  key,
		log:  c.log.With().Str("account", key.AccountID).Logger(),
	}
}
