// Package invoke provides synchronous function invocation over NATS
// request/reply. The rejection flow uses it to call the catalog
// remover and wait for the outcome before acknowledging its event;
// the success flow uses it to call the catalog writer.
package invoke

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/c360/photoflow/errors"
	"github.com/c360/photoflow/event"
	"github.com/c360/photoflow/metric"
)

// SubjectPrefix is prepended to function names to form invocation subjects.
const SubjectPrefix = "photoflow.invoke."

// Registered function names
const (
	FunctionCatalogWriter  = "catalog-writer"
	FunctionCatalogRemover = "catalog-remover"
)

// Response is the reply payload for an invocation
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Handler processes one upload event on behalf of an invoked function
type Handler func(ctx context.Context, ev event.UploadEvent) error

// requester issues a request and waits for the reply.
// natsclient.Client satisfies this.
type requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// Client invokes named functions and waits for their outcome
type Client struct {
	requester requester
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTimeout sets how long an invocation waits for its reply
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the client's logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables invocation metrics
func WithMetrics(m *metric.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates an invocation client
func NewClient(r requester, opts ...ClientOption) *Client {
	c := &Client{
		requester: r,
		timeout:   10 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke calls the named function with the event and blocks until the
// function replies or the timeout expires. A reply reporting failure
// returns ErrInvokeRejected; no reply in time returns ErrInvokeTimeout.
// Both are transient so the caller's event is redelivered.
func (c *Client) Invoke(ctx context.Context, function string, ev event.UploadEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapInvalid(err, "Client", "Invoke", "marshal event")
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	replyData, err := c.requester.Request(reqCtx, SubjectPrefix+function, data)
	duration := time.Since(start)

	if err != nil {
		status := "error"
		if stderrors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
			err = errors.ErrInvokeTimeout
		}
		if c.metrics != nil {
			c.metrics.RecordInvoke(function, status, duration)
		}
		return errors.WrapTransient(err, "Client", "Invoke", "call "+function)
	}

	var resp Response
	if err := json.Unmarshal(replyData, &resp); err != nil {
		if c.metrics != nil {
			c.metrics.RecordInvoke(function, "bad_reply", duration)
		}
		return errors.WrapInvalid(err, "Client", "Invoke", "decode reply from "+function)
	}

	if !resp.Success {
		if c.metrics != nil {
			c.metrics.RecordInvoke(function, "rejected", duration)
		}
		c.logger.Warn("invocation rejected", "function", function, "error", resp.Error)
		return errors.WrapTransient(errors.ErrInvokeRejected, "Client", "Invoke",
			function+" reported: "+resp.Error)
	}

	if c.metrics != nil {
		c.metrics.RecordInvoke(function, "success", duration)
	}
	return nil
}

// replySubscriber registers a request/reply responder.
// natsclient.Client satisfies this.
type replySubscriber interface {
	SubscribeReply(ctx context.Context, subject string, handler func(context.Context, []byte) []byte) error
}

// Register exposes a handler as an invocable function. The handler's
// error becomes the reply's failure message.
func Register(ctx context.Context, sub replySubscriber, function string, handler Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	return sub.SubscribeReply(ctx, SubjectPrefix+function, func(msgCtx context.Context, data []byte) []byte {
		var ev event.UploadEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Error("invocation request undecodable", "function", function, "error", err)
			return encodeResponse(Response{Success: false, Error: "undecodable request: " + err.Error()})
		}

		if err := handler(msgCtx, ev); err != nil {
			logger.Error("invocation handler failed", "function", function, "key", ev.Key, "error", err)
			return encodeResponse(Response{Success: false, Error: err.Error()})
		}

		return encodeResponse(Response{Success: true})
	})
}

func encodeResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// Response has only a bool and a string; this cannot fail
		return []byte(`{"success":false,"error":"encode failure"}`)
	}
	return data
}
