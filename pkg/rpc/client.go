package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
)

// Client is safe for concurrent use; calls are serialized over one
// connection.
type Client struct {
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	mu      sync.Mutex
	nextID  atomic.Int64
}

// CallError is a failed call. It unwraps to the sentinel matching its code,
// so callers can use errors.Is(err, apperrors.ErrNotFound).
type CallError struct {
	Method  string
	Code    string
	Message string
	Details json.RawMessage
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Method, e.Message)
}

func (e *CallError) Unwrap() error {
	switch e.Code {
	case CodeInvalidArgument:
		return apperrors.ErrInvalidArgument
	case CodeNotFound:
		return apperrors.ErrNotFound
	case CodeAmbiguous:
		return apperrors.ErrAmbiguous
	case CodeUnavailable:
		return apperrors.ErrTimeout
	default:
		return apperrors.ErrInternal
	}
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(conn),
	}, nil
}

// Call invokes method and decodes the reply data into result, which may be
// nil. The context deadline, if any, bounds the whole round trip.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("setting deadline: %w", err)
	}

	req := Request{Method: method, ID: strconv.FormatInt(c.nextID.Add(1), 10), Params: raw}
	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	var resp struct {
		ID      string          `json:"id"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	}
	if err := c.decoder.Decode(&resp); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("response id %q does not match request id %q", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return &CallError{Method: method, Code: resp.Code, Message: resp.Error, Details: resp.Details}
	}
	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("unmarshaling into result: %w", err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
