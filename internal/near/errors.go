package near

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrRPC       = errors.New("rpc error")
	ErrExecution = errors.New("contract execution failed")
)

// RPCError is a failed RPC round trip. Code and Data are set when the node
// answered with a JSON-RPC error; Data is the node's error payload as sent.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
	Err     error
}

func (e *RPCError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("rpc %s: %v", e.Method, e.Err)
	}
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc %s: %s (code %d): %s", e.Method, e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("rpc %s: %s (code %d)", e.Method, e.Message, e.Code)
}

func (e *RPCError) Unwrap() []error { return []error{ErrRPC, e.Err} }

func wrapRPC(method string, err error) error {
	e := &RPCError{Method: method, Err: err}
	var re rpc.Error
	if errors.As(err, &re) {
		e.Code = re.ErrorCode()
		e.Message = re.Error()
		var de rpc.DataError
		if errors.As(err, &de) && de.ErrorData() != nil {
			if raw, mErr := json.Marshal(de.ErrorData()); mErr == nil {
				e.Data = raw
			}
		}
		return e
	}
	var he rpc.HTTPError
	if errors.As(err, &he) {
		e.Code = he.StatusCode
		e.Message = he.Status
		e.Data = json.RawMessage(he.Body)
	}
	return e
}

// ExecutionError carries the Failure object of a final outcome verbatim.
type ExecutionError struct {
	TxHash string
	Raw    json.RawMessage
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s (tx %s): %s", ErrExecution, e.TxHash, e.Raw)
}

func (e *ExecutionError) Unwrap() error { return ErrExecution }
