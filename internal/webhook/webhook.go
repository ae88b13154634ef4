// Package webhook delivers order payloads to the external order endpoint.
//
// The endpoint accepts a JSON document posted as text/plain and answers with
// {"ok": true} or {"ok": false, "error": "..."}. Anything else is a failure.
package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/prodishi/dishi-shop/internal/domain/order"
)

const (
	instrumentationName = "github.com/prodishi/dishi-shop/internal/webhook"
	contentType         = "text/plain;charset=utf-8"
	maxResponseBytes    = 1 << 20
)

// Options configures a Client.
type Options struct {
	Timeout        time.Duration
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Transport is the base round tripper, http.DefaultTransport if nil.
	Transport http.RoundTripper
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.Transport == nil {
		o.Transport = http.DefaultTransport
	}
}

// Client posts payloads to the order endpoint. It does not retry.
type Client struct {
	url        string
	http       *http.Client
	tracer     trace.Tracer
	deliveries metric.Int64Counter
}

var _ order.Submitter = (*Client)(nil)

// New creates a Client for the given endpoint URL.
func New(url string, opts Options) (*Client, error) {
	if url == "" {
		return nil, errors.New("webhook url is empty")
	}
	opts.setDefaults()

	deliveries, err := opts.MeterProvider.Meter(instrumentationName).Int64Counter(
		"shop.webhook.deliveries",
		metric.WithDescription("Order payload deliveries by type and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create deliveries counter")
	}

	return &Client{
		url: url,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: otelhttp.NewTransport(opts.Transport,
				otelhttp.WithTracerProvider(opts.TracerProvider),
				otelhttp.WithMeterProvider(opts.MeterProvider),
			),
		},
		tracer:     opts.TracerProvider.Tracer(instrumentationName),
		deliveries: deliveries,
	}, nil
}

// Submit posts the payload and interprets the answer. A well-formed negative
// answer is returned as *order.RejectedError.
func (c *Client) Submit(ctx context.Context, p *order.Payload) error {
	ctx, span := c.tracer.Start(ctx, "webhook.Submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("order.type", string(p.Type))),
	)
	defer span.End()

	result := "ok"
	err := c.submit(ctx, p)
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(p.Type)),
		attribute.String("result", result),
	))
	return err
}

func (c *Client) submit(ctx context.Context, p *order.Payload) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	p.Encode(e)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "post")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	zctx.From(ctx).Debug("Webhook answered",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return ParseResponse(body)
}

// ParseResponse interprets the endpoint's answer. Only an object with
// "ok": true is a success. The "error" string, when present, becomes the
// rejection reason.
func ParseResponse(body []byte) error {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return &order.RejectedError{}
	}

	var (
		ok     bool
		reason string
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch {
		case key == "ok" && d.Next() == jx.Bool:
			v, err := d.Bool()
			ok = v
			return err
		case key == "error" && d.Next() == jx.String:
			v, err := d.Str()
			reason = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return &order.RejectedError{}
	}

	if !ok {
		return &order.RejectedError{Reason: reason}
	}
	return nil
}

// Demo stands in for the endpoint when none is configured. It logs the
// payload and accepts it.
type Demo struct{}

var _ order.Submitter = Demo{}

func (Demo) Submit(ctx context.Context, p *order.Payload) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	p.Encode(e)

	zctx.From(ctx).Info("Demo payload",
		zap.String("type", string(p.Type)),
		zap.String("token", p.Token),
		zap.ByteString("payload", e.Bytes()),
	)
	return nil
}
