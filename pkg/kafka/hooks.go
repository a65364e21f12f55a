package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. BeforeHandle may enrich the context;
// returning an error skips the handler and sends the message down the failure path.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, attempts int, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, int, error) {}

// HookFuncs adapts plain functions to ConsumerHook. Nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, string, kafka.Message) (context.Context, error)
	After  func(context.Context, string, kafka.Message, int, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, topic, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, attempts int, err error) {
	if h.After != nil {
		h.After(ctx, topic, km, attempts, err)
	}
}

// HookChain runs hooks in order for BeforeHandle and in reverse for AfterHandle.
// A panicking hook is converted into an error and never crashes a worker.
type HookChain struct {
	hooks []ConsumerHook
}

func NewHookChain(hooks ...ConsumerHook) *HookChain {
	filtered := make([]ConsumerHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &HookChain{hooks: filtered}
}

func (c *HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message) (out context.Context, err error) {
	out = ctx
	for _, h := range c.hooks {
		next, herr := safeBefore(h, out, topic, km)
		if herr != nil {
			return out, herr
		}
		out = next
	}
	return out, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, attempts int, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		safeAfter(c.hooks[i], ctx, topic, km, attempts, err)
	}
}

func safeBefore(h ConsumerHook, ctx context.Context, topic string, km kafka.Message) (out context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = ctx, Permanent(fmt.Errorf("hook panic: %v", r))
		}
	}()
	return h.BeforeHandle(ctx, topic, km)
}

func safeAfter(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, attempts int, err error) {
	defer func() { _ = recover() }()
	h.AfterHandle(ctx, topic, km, attempts, err)
}

// Header keys shared by producers and consumers.
const (
	HeaderRequestID = "request_id"
	HeaderStatus    = "status"
	HeaderSource    = "source_topic"
)

type ctxKey string

const ctxRequestID ctxKey = "kafka_request_id"

// HeaderValue returns the first header value for key.
func HeaderValue(km kafka.Message, key string) string {
	for _, h := range km.Headers {
		if h.Key == key && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// WithRequestID stores a correlation id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestIDFrom returns the correlation id placed by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// RequestIDHook copies the request_id header (falling back to the message key) into the context.
var RequestIDHook = HookFuncs{
	Before: func(ctx context.Context, _ string, km kafka.Message) (context.Context, error) {
		id := HeaderValue(km, HeaderRequestID)
		if id == "" {
			id = string(km.Key)
		}
		return WithRequestID(ctx, id), nil
	},
}
