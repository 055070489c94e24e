package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultBridge = "wss://bridge.walletconnect.org"

// bridgeMessage is the relay envelope exchanged on a bridge topic.
type bridgeMessage struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SignRequest asks the remote wallet to personal_sign params[0] with params[1].
type SignRequest struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// SignResponse carries either the signature or the rejection reason.
type SignResponse struct {
	ID     string     `json:"id"`
	Result string     `json:"result,omitempty"`
	Error  *SignError `json:"error,omitempty"`
}

// SignError is the error object returned by a wallet that declined to sign.
type SignError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ParseWalletConnectURI parses a WalletConnect URI and returns connection details
func ParseWalletConnectURI(uri string) (bridge string, handshakeTopic string, key string, err error) {
	uri = strings.TrimPrefix(uri, "wc:")

	parts := strings.SplitN(uri, "?", 2)
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("invalid URI format: missing query parameters")
	}

	// topic@version
	baseParts := strings.Split(parts[0], "@")
	if len(baseParts) != 2 {
		return "", "", "", fmt.Errorf("invalid URI format: missing version")
	}
	handshakeTopic = baseParts[0]
	key = baseParts[1]

	query := make(map[string]string)
	for _, param := range strings.Split(parts[1], "&") {
		if param == "" {
			continue
		}
		kv := strings.SplitN(param, "=", 2)
		if len(kv) == 2 {
			query[kv[0]] = kv[1]
		} else {
			query[kv[0]] = ""
		}
	}

	bridge = query["bridge"]
	if bridge == "" {
		bridge = defaultBridge
	}

	return bridge, handshakeTopic, key, nil
}

func dialBridge(ctx context.Context, uri string) (*websocket.Conn, string, error) {
	bridge, topic, _, err := ParseWalletConnectURI(uri)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse URI: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, bridge, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to bridge: %w", err)
	}

	if err := conn.WriteJSON(bridgeMessage{Topic: topic, Type: "sub"}); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to subscribe: %w", err)
	}
	return conn, topic, nil
}

// ErrBridgeClosed is returned by SignMessage once the bridge connection is gone.
var ErrBridgeClosed = errors.New("bridge connection closed")

// BridgeSigner delegates signing to a wallet reachable through a relay bridge.
// The remote wallet may take arbitrarily long or reject the request. One
// reader goroutine owns the connection and routes replies by request id, so
// an abandoned request never poisons the next one.
type BridgeSigner struct {
	address string
	topic   string
	conn    *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan SignResponse
	readErr error
	done    chan struct{}
}

// DialBridgeSigner connects to the bridge named in uri on behalf of address.
func DialBridgeSigner(ctx context.Context, uri, address string) (*BridgeSigner, error) {
	if !IsAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}

	conn, topic, err := dialBridge(ctx, uri)
	if err != nil {
		return nil, err
	}

	b := &BridgeSigner{
		address: address,
		topic:   topic,
		conn:    conn,
		pending: make(map[string]chan SignResponse),
		done:    make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

// From returns the remote account address.
func (b *BridgeSigner) From() string {
	return b.address
}

// SignMessage publishes a personal_sign request and waits for the matching
// reply. Cancelling ctx abandons the request; a late reply is dropped.
func (b *BridgeSigner) SignMessage(ctx context.Context, message string) (string, error) {
	req := SignRequest{
		ID:     uuid.NewString(),
		Method: "personal_sign",
		Params: []string{hexutil.Encode([]byte(message)), b.address},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	reply := make(chan SignResponse, 1)
	b.mu.Lock()
	if b.readErr != nil {
		err := b.readErr
		b.mu.Unlock()
		return "", err
	}
	b.pending[req.ID] = reply
	b.mu.Unlock()
	defer b.forget(req.ID)

	b.writeMu.Lock()
	err = b.conn.WriteJSON(bridgeMessage{Topic: b.topic, Type: "pub", Payload: payload})
	b.writeMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to publish sign request: %w", err)
	}

	select {
	case resp := <-reply:
		if resp.Error != nil {
			return "", fmt.Errorf("%s: %w", resp.Error.Message, ErrSignatureRejected)
		}
		return resp.Result, nil
	case <-b.done:
		b.mu.Lock()
		defer b.mu.Unlock()
		return "", b.readErr
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *BridgeSigner) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// readLoop delivers replies to waiting requests until the connection fails.
func (b *BridgeSigner) readLoop() {
	for {
		var msg bridgeMessage
		if err := b.conn.ReadJSON(&msg); err != nil {
			b.mu.Lock()
			b.readErr = fmt.Errorf("%w: %v", ErrBridgeClosed, err)
			b.mu.Unlock()
			close(b.done)
			return
		}
		if msg.Type != "pub" {
			continue
		}

		// our own requests relayed back carry a method
		var resp struct {
			SignResponse
			Method string `json:"method"`
		}
		if err := json.Unmarshal(msg.Payload, &resp); err != nil || resp.Method != "" {
			continue
		}

		b.mu.Lock()
		reply, ok := b.pending[resp.ID]
		delete(b.pending, resp.ID)
		b.mu.Unlock()
		if ok {
			reply <- resp.SignResponse
		}
	}
}

// Close closes the bridge connection
func (b *BridgeSigner) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Responder answers sign requests arriving on a bridge topic with a local wallet.
type Responder struct {
	wallet  *Wallet
	topic   string
	conn    *websocket.Conn
	approve func(message string) bool
}

// ConnectResponder subscribes w to the bridge named in uri. approve is asked
// for every message; a nil approve signs everything.
func ConnectResponder(ctx context.Context, uri string, w *Wallet, approve func(message string) bool) (*Responder, error) {
	conn, topic, err := dialBridge(ctx, uri)
	if err != nil {
		return nil, err
	}
	if approve == nil {
		approve = func(string) bool { return true }
	}

	return &Responder{
		wallet:  w,
		topic:   topic,
		conn:    conn,
		approve: approve,
	}, nil
}

// Serve handles incoming requests until ctx is done or the connection fails.
func (r *Responder) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.conn.SetReadDeadline(time.Now())
	}()

	for {
		var msg bridgeMessage
		if err := r.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		if msg.Type != "pub" {
			continue
		}

		var req SignRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil || req.Method != "personal_sign" || len(req.Params) == 0 {
			continue
		}

		resp := r.handle(req)
		payload, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		if err := r.conn.WriteJSON(bridgeMessage{Topic: r.topic, Type: "pub", Payload: payload}); err != nil {
			return fmt.Errorf("failed to publish response: %w", err)
		}
	}
}

func (r *Responder) handle(req SignRequest) SignResponse {
	data := messageBytes(req.Params[0])
	if len(req.Params) > 1 && !strings.EqualFold(req.Params[1], r.wallet.Address) {
		return SignResponse{ID: req.ID, Error: &SignError{Code: 4100, Message: "unknown account"}}
	}
	if !r.approve(string(data)) {
		return SignResponse{ID: req.ID, Error: &SignError{Code: 4001, Message: "user rejected the request"}}
	}

	signature, err := r.wallet.Sign(data)
	if err != nil {
		return SignResponse{ID: req.ID, Error: &SignError{Code: -32000, Message: err.Error()}}
	}
	return SignResponse{ID: req.ID, Result: hexutil.Encode(signature)}
}

// Close closes the bridge connection
func (r *Responder) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
