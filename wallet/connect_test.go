package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func TestParseWalletConnectURI(t *testing.T) {
	tests := []struct {
		name           string
		uri            string
		wantBridge     string
		wantTopic      string
		wantKey        string
		wantErr        bool
		expectedErrMsg string
	}{
		{
			name:       "Valid URI with default bridge",
			uri:        "wc:8a5e5bdc-a0e4-4702-ba63-8f1a5655744f@1?bridge=&key=41791102999c339c844880b23950704cc43aa840f3739e365323cda4dfa89e7a",
			wantBridge: "wss://bridge.walletconnect.org",
			wantTopic:  "8a5e5bdc-a0e4-4702-ba63-8f1a5655744f",
			wantKey:    "1",
		},
		{
			name:       "Valid URI with custom bridge",
			uri:        "wc:8a5e5bdc-a0e4-4702-ba63-8f1a5655744f@1?bridge=wss://custom.bridge.org&key=41791102999c339c844880b23950704cc43aa840f3739e365323cda4dfa89e7a",
			wantBridge: "wss://custom.bridge.org",
			wantTopic:  "8a5e5bdc-a0e4-4702-ba63-8f1a5655744f",
			wantKey:    "1",
		},
		{
			name:           "Missing query",
			uri:            "invalid-uri",
			wantErr:        true,
			expectedErrMsg: "invalid URI format",
		},
		{
			name:           "Missing version",
			uri:            "wc:topic?bridge=ws://localhost",
			wantErr:        true,
			expectedErrMsg: "missing version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge, topic, key, err := ParseWalletConnectURI(tt.uri)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.expectedErrMsg != "" {
					assert.Contains(t, err.Error(), tt.expectedErrMsg)
				}
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.wantBridge, bridge)
			assert.Equal(t, tt.wantTopic, topic)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

// remoteWallet plays the wallet side of the bridge: it answers the first
// sign request with reply.
func remoteWallet(t *testing.T, reply func(req SignRequest) SignResponse) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub bridgeMessage
		if err := conn.ReadJSON(&sub); err != nil || sub.Type != "sub" {
			t.Errorf("expected subscription, got %+v (%v)", sub, err)
			return
		}

		var msg bridgeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		var req SignRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			t.Errorf("failed to parse sign request: %v", err)
			return
		}
		if reply == nil {
			// hold the connection open without answering
			conn.ReadMessage()
			return
		}

		// unrelated traffic must be skipped
		conn.WriteJSON(bridgeMessage{Topic: sub.Topic, Type: "ack"})
		payload, _ := json.Marshal(SignResponse{ID: "other"})
		conn.WriteJSON(bridgeMessage{Topic: sub.Topic, Type: "pub", Payload: payload})

		payload, _ = json.Marshal(reply(req))
		conn.WriteJSON(bridgeMessage{Topic: sub.Topic, Type: "pub", Payload: payload})
		conn.ReadMessage()
	}))
}

func bridgeURI(server *httptest.Server) string {
	return "wc:test-topic@1?bridge=ws" + strings.TrimPrefix(server.URL, "http")
}

func TestBridgeSigner_SignMessage(t *testing.T) {
	remote, err := GenerateWallet()
	require.NoError(t, err)

	server := remoteWallet(t, func(req SignRequest) SignResponse {
		assert.Equal(t, "personal_sign", req.Method)
		data, err := hexutil.Decode(req.Params[0])
		assert.NoError(t, err)
		sig, err := remote.Sign(data)
		assert.NoError(t, err)
		return SignResponse{ID: req.ID, Result: hexutil.Encode(sig)}
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	signer, err := DialBridgeSigner(ctx, bridgeURI(server), remote.Address)
	require.NoError(t, err)
	defer signer.Close()

	assert.Equal(t, remote.Address, signer.From())

	sig, err := signer.SignMessage(ctx, "hello pig")
	require.NoError(t, err)

	recovered, err := RecoverAddress("hello pig", sig)
	require.NoError(t, err)
	assert.Equal(t, remote.Address, recovered.Hex())
}

func TestBridgeSigner_Rejected(t *testing.T) {
	server := remoteWallet(t, func(req SignRequest) SignResponse {
		return SignResponse{ID: req.ID, Error: &SignError{Code: 4001, Message: "user rejected the request"}}
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	signer, err := DialBridgeSigner(ctx, bridgeURI(server), "0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	require.NoError(t, err)
	defer signer.Close()

	_, err = signer.SignMessage(ctx, "hello pig")
	assert.ErrorIs(t, err, ErrSignatureRejected)
}

func TestBridgeSigner_ContextCancelled(t *testing.T) {
	server := remoteWallet(t, nil)
	defer server.Close()

	signer, err := DialBridgeSigner(context.Background(), bridgeURI(server), "0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	require.NoError(t, err)
	defer signer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = signer.SignMessage(ctx, "hello pig")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBridgeSigner_RetryAfterCancel(t *testing.T) {
	remote, err := GenerateWallet()
	require.NoError(t, err)

	// the remote wallet sits on the first request and answers the second
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub bridgeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		var ignored, second bridgeMessage
		if err := conn.ReadJSON(&ignored); err != nil {
			return
		}
		if err := conn.ReadJSON(&second); err != nil {
			return
		}

		var req SignRequest
		if err := json.Unmarshal(second.Payload, &req); err != nil {
			t.Errorf("failed to parse sign request: %v", err)
			return
		}
		data, _ := hexutil.Decode(req.Params[0])
		sig, _ := remote.Sign(data)
		payload, _ := json.Marshal(SignResponse{ID: req.ID, Result: hexutil.Encode(sig)})
		conn.WriteJSON(bridgeMessage{Topic: sub.Topic, Type: "pub", Payload: payload})
		conn.ReadMessage()
	}))
	defer server.Close()

	signer, err := DialBridgeSigner(context.Background(), bridgeURI(server), remote.Address)
	require.NoError(t, err)
	defer signer.Close()

	short, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = signer.SignMessage(short, "first")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sig, err := signer.SignMessage(ctx, "second")
	require.NoError(t, err)

	recovered, err := RecoverAddress("second", sig)
	require.NoError(t, err)
	assert.Equal(t, remote.Address, recovered.Hex())
}

func TestBridgeSigner_ClosedConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var sub bridgeMessage
		conn.ReadJSON(&sub)
		conn.Close()
	}))
	defer server.Close()

	signer, err := DialBridgeSigner(context.Background(), bridgeURI(server), "0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	require.NoError(t, err)
	defer signer.Close()

	select {
	case <-signer.done:
	case <-time.After(3 * time.Second):
		t.Fatal("reader did not notice the closed connection")
	}

	_, err = signer.SignMessage(context.Background(), "hello pig")
	assert.ErrorIs(t, err, ErrBridgeClosed)
}

func TestDialBridgeSigner_InvalidAddress(t *testing.T) {
	_, err := DialBridgeSigner(context.Background(), "wc:t@1?bridge=ws://127.0.0.1:1", "not-an-address")
	assert.Error(t, err)
}

func TestResponder_Serve(t *testing.T) {
	local, err := GenerateWallet()
	require.NoError(t, err)

	responses := make(chan SignResponse, 2)

	// dApp side: publish two requests, collect the answers
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub bridgeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}

		for _, msg := range []string{"approve me", "reject me"} {
			payload, _ := json.Marshal(SignRequest{
				ID:     msg,
				Method: "personal_sign",
				Params: []string{hexutil.Encode([]byte(msg)), local.Address},
			})
			conn.WriteJSON(bridgeMessage{Topic: sub.Topic, Type: "pub", Payload: payload})

			var reply bridgeMessage
			if err := conn.ReadJSON(&reply); err != nil {
				t.Errorf("failed to read reply: %v", err)
				return
			}
			var resp SignResponse
			json.Unmarshal(reply.Payload, &resp)
			responses <- resp
		}
		conn.ReadMessage()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	responder, err := ConnectResponder(ctx, bridgeURI(server), local, func(message string) bool {
		return message == "approve me"
	})
	require.NoError(t, err)
	defer responder.Close()

	go responder.Serve(ctx)

	for i := 0; i < 2; i++ {
		select {
		case resp := <-responses:
			switch resp.ID {
			case "approve me":
				require.Nil(t, resp.Error)
				recovered, err := RecoverAddress("approve me", resp.Result)
				require.NoError(t, err)
				assert.Equal(t, local.Address, recovered.Hex())
			case "reject me":
				require.NotNil(t, resp.Error)
				assert.Equal(t, 4001, resp.Error.Code)
			default:
				t.Fatalf("unexpected response id %q", resp.ID)
			}
		case <-ctx.Done():
			t.Fatal("timeout waiting for responder")
		}
	}
}
