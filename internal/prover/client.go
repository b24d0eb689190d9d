package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"battleship-near/internal/game"
)

var (
	ErrUnreachable = errors.New("proving service unreachable")
	ErrRejected    = errors.New("proving service rejected the payload")
)

// UnreachableError is a transport failure: the request never got an HTTP answer.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: POST %s: %v", ErrUnreachable, e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() []error { return []error{ErrUnreachable, e.Err} }

// RejectedError is a non-2xx answer, or a 2xx answer without a usable receipt.
type RejectedError struct {
	URL    string
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: POST %s: status %d: %s", ErrRejected, e.URL, e.Status, e.Body)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// RoundResult is what the turn proof commits to: the updated state and the hit kind.
type RoundResult struct {
	State game.State      `json:"state"`
	Hit   json.RawMessage `json:"hit"`
}

// HitKind renders the hit as "Miss", "Hit" or "Sunk(n)".
func (r RoundResult) HitKind() string {
	var s string
	if err := json.Unmarshal(r.Hit, &s); err == nil {
		return s
	}
	var sunk struct {
		Sunk *int `json:"Sunk"`
	}
	if err := json.Unmarshal(r.Hit, &sunk); err == nil && sunk.Sunk != nil {
		return fmt.Sprintf("Sunk(%d)", *sunk.Sunk)
	}
	return string(r.Hit)
}

type TurnResult struct {
	State   *RoundResult `json:"state,omitempty"`
	Receipt string       `json:"receipt"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New returns a client for the proving service at baseURL. No timeout is set:
// proofs take as long as they take.
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     log.With().Str("component", "prover").Logger(),
	}
}

// ProveInit proves the initial board commitment and returns the receipt.
func (c *Client) ProveInit(ctx context.Context, st game.State) (string, error) {
	url := c.baseURL + "/prove/init"
	body, err := c.post(ctx, url, st)
	if err != nil {
		return "", err
	}
	receipt := strings.TrimSpace(string(body))
	// the service answers the bare receipt; accept a JSON envelope as well
	if strings.HasPrefix(receipt, "{") {
		var env TurnResult
		if err := json.Unmarshal(body, &env); err != nil {
			return "", &RejectedError{URL: url, Status: http.StatusOK, Body: "malformed receipt envelope: " + err.Error()}
		}
		receipt = env.Receipt
	}
	if receipt == "" {
		return "", &RejectedError{URL: url, Status: http.StatusOK, Body: "empty receipt"}
	}
	return receipt, nil
}

// ProveTurn proves the outcome of a shot against the committed board.
func (c *Client) ProveTurn(ctx context.Context, params game.RoundParams) (*TurnResult, error) {
	url := c.baseURL + "/prove/turn"
	body, err := c.post(ctx, url, params)
	if err != nil {
		return nil, err
	}
	var res TurnResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &RejectedError{URL: url, Status: http.StatusOK, Body: "malformed turn result: " + err.Error()}
	}
	if res.Receipt == "" {
		return nil, &RejectedError{URL: url, Status: http.StatusOK, Body: "empty receipt"}
	}
	return &res, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Info().Str("url", url).Int("bytes", len(data)).Msg("requesting proof")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UnreachableError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnreachableError{URL: url, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RejectedError{URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	c.log.Debug().Str("url", url).Int("bytes", len(body)).Msg("proof received")
	return body, nil
}
