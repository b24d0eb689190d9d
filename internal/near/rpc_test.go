package near

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []string        `json:"params"`
}

// fakeNode answers the handful of NEAR RPC methods the client uses.
type fakeNode struct {
	t         *testing.T
	mu        sync.Mutex
	blockHash [32]byte
	nonce     uint64
	// outcome returned from broadcast_tx_commit; a JSON-RPC error when rpcErr is set
	outcome   string
	rpcErr    string
	queryErr  string
	viewValue []byte
	calls     []rpcRequest
	signed    [][]byte
	viewArgs  []byte
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	n := &fakeNode{
		t:         t,
		blockHash: sha256.Sum256([]byte("genesis")),
		nonce:     10,
		outcome:   sampleOutcome,
	}
	srv := httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	assert.NoError(n.t, json.NewDecoder(r.Body).Decode(&req))

	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, req)

	var (
		result any
		rpcErr string
	)
	switch req.Method {
	case "status":
		result = map[string]any{
			"chain_id":  "testnet",
			"sync_info": map[string]any{"latest_block_hash": base58.Encode(n.blockHash[:]), "latest_block_height": 100},
		}
	case "query":
		path := req.Params[0]
		switch {
		case n.queryErr != "":
			result = map[string]any{"error": n.queryErr, "logs": []string{}}
		case strings.HasPrefix(path, "access_key/"):
			result = map[string]any{
				"nonce":        n.nonce,
				"permission":   "FullAccess",
				"block_height": 100,
				"block_hash":   base58.Encode(n.blockHash[:]),
			}
		case strings.HasPrefix(path, "account/"):
			result = map[string]any{
				"amount":        "5000000000000000000000000",
				"locked":        "0",
				"code_hash":     "11111111111111111111111111111111",
				"storage_usage": 100000,
				"block_height":  100,
				"block_hash":    base58.Encode(n.blockHash[:]),
			}
		case strings.HasPrefix(path, "call/"):
			args, err := base58.Decode(req.Params[1])
			assert.NoError(n.t, err)
			n.viewArgs = args
			ints := make([]int, len(n.viewValue))
			for i, b := range n.viewValue {
				ints[i] = int(b)
			}
			result = map[string]any{"result": ints, "logs": []string{"viewed"}}
		default:
			n.t.Errorf("unexpected query path %q", path)
		}
	case "broadcast_tx_commit":
		raw, err := base64.StdEncoding.DecodeString(req.Params[0])
		assert.NoError(n.t, err)
		n.signed = append(n.signed, raw)
		if n.rpcErr != "" {
			rpcErr = n.rpcErr
		} else {
			result = json.RawMessage(n.outcome)
		}
	default:
		n.t.Errorf("unexpected method %q", req.Method)
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != "" {
		resp["error"] = json.RawMessage(rpcErr)
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(n.t, json.NewEncoder(w).Encode(resp))
}

func testAccount(t *testing.T, nodeURL string) *Account {
	t.Helper()
	conn, err := Connect(context.Background(), nodeURL, "testnet", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	priv := testKey()
	return conn.Account(&KeyPair{
		AccountID:  "alice.testnet",
		PublicKey:  priv.Public().(ed25519.PublicKey),
		PrivateKey: priv,
	})
}

func TestFunctionCall(t *testing.T) {
	node, srv := newFakeNode(t)
	acct := testAccount(t, srv.URL)

	args := map[string]any{"name": "my_fun_game", "shot_x": 5, "shot_y": 5, "receipt_str": "abc123"}
	out, err := acct.FunctionCall(context.Background(), "battleship.testnet", "turn", args, 300_000_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, "9Xn5", out.TxHash())

	require.Len(t, node.signed, 1)
	tx, body, sig := decodeSignedTx(t, node.signed[0])
	hash := sha256.Sum256(body)
	assert.True(t, ed25519.Verify(acct.key.PublicKey, hash[:], sig))
	assert.Equal(t, "alice.testnet", tx.SignerID)
	assert.Equal(t, "battleship.testnet", tx.ReceiverID)
	assert.Equal(t, uint64(11), tx.Nonce)
	assert.Equal(t, node.blockHash, tx.BlockHash)
	require.Len(t, tx.Actions, 1)
	assert.Equal(t, "turn", tx.Actions[0].MethodName)
	assert.Equal(t, uint64(300_000_000_000_000), tx.Actions[0].Gas)
	assert.True(t, tx.Actions[0].Deposit.IsZero())
	assert.JSONEq(t, `{"name":"my_fun_game","shot_x":5,"shot_y":5,"receipt_str":"abc123"}`, string(tx.Actions[0].Args))

	var methods []string
	for _, c := range node.calls {
		methods = append(methods, c.Method)
	}
	assert.Equal(t, []string{"status", "query", "broadcast_tx_commit"}, methods)
	assert.Equal(t, []string{"access_key/alice.testnet/" + acct.key.PublicKeyString(), ""}, node.calls[1].Params)
}

func TestFunctionCallFailure(t *testing.T) {
	node, srv := newFakeNode(t)
	node.outcome = strings.Replace(sampleOutcome,
		`"status": {"SuccessValue": "bnVsbA=="}`,
		`"status": {"Failure": {"ActionError": {"index": 0, "kind": {"FunctionCallError": {"ExecutionError": "Smart contract panicked: not your turn"}}}}}`, 1)
	acct := testAccount(t, srv.URL)

	out, err := acct.FunctionCall(context.Background(), "battleship.testnet", "turn", struct{}{}, 1)
	require.ErrorIs(t, err, ErrExecution)
	assert.NotErrorIs(t, err, ErrRPC)
	require.NotNil(t, out)

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "9Xn5", ee.TxHash)
	assert.Contains(t, string(ee.Raw), "not your turn")

	// gas is still reported for failed calls
	assert.Equal(t, uint64(2428118051132+3000000000000+223182562500), Aggregate(out).Gas)
}

func TestFunctionCallRPCError(t *testing.T) {
	node, srv := newFakeNode(t)
	node.rpcErr = `{"code":-32000,"message":"Server error","data":{"TxExecutionError":{"InvalidTxError":"Expired"}}}`
	acct := testAccount(t, srv.URL)

	_, err := acct.FunctionCall(context.Background(), "battleship.testnet", "turn", struct{}{}, 1)
	require.ErrorIs(t, err, ErrRPC)
	var re *RPCError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "broadcast_tx_commit", re.Method)
	assert.Equal(t, -32000, re.Code)
	assert.JSONEq(t, `{"TxExecutionError":{"InvalidTxError":"Expired"}}`, string(re.Data))
}

func TestQueryError(t *testing.T) {
	node, srv := newFakeNode(t)
	acct := testAccount(t, srv.URL)
	node.queryErr = "access key ed25519:xyz does not exist while viewing"

	_, err := acct.FunctionCall(context.Background(), "battleship.testnet", "turn", struct{}{}, 1)
	require.ErrorIs(t, err, ErrRPC)
	assert.ErrorContains(t, err, "does not exist")
	assert.Empty(t, node.signed)
}

func TestBalance(t *testing.T) {
	_, srv := newFakeNode(t)
	acct := testAccount(t, srv.URL)

	b, err := acct.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5", FormatAmount(b.Total, NominationExp))
	assert.Equal(t, "1", FormatAmount(b.StateStaked, NominationExp))
	assert.True(t, b.Staked.IsZero())
	assert.Equal(t, "4", FormatAmount(b.Available, NominationExp))
}

func TestCallView(t *testing.T) {
	node, srv := newFakeNode(t)
	node.viewValue = []byte(`{"next_turn":"p2"}`)
	acct := testAccount(t, srv.URL)

	got, err := acct.CallView(context.Background(), "battleship.testnet", "game_state", map[string]string{"name": "g"})
	require.NoError(t, err)
	assert.Equal(t, node.viewValue, got)
	assert.JSONEq(t, `{"name":"g"}`, string(node.viewArgs))
	assert.Equal(t, "call/battleship.testnet/game_state", node.calls[len(node.calls)-1].Params[0])
}

func TestConnectUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(context.Background(), url, "testnet", zerolog.Nop())
	assert.ErrorIs(t, err, ErrRPC)

	_, err = Connect(context.Background(), "ftp://node", "testnet", zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported node url scheme")
}
