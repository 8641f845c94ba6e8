// Package publish sends completed runs to presentation consumers over NATS.
// Payloads are protobuf-encoded google.protobuf.Struct messages.
package publish

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourusername/pairs-arb-backtest/pkg/backtest"
	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

// Conn is the part of *nats.Conn the publisher uses
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// Publisher publishes run results on a subject
type Publisher struct {
	conn          Conn
	subject       string
	includeSeries bool
	log           *logrus.Entry
}

// Connect dials the NATS server
func Connect(url, subject string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("pairs-backtest"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return New(conn, subject, logger), nil
}

// New wraps an existing connection
func New(conn Conn, subject string, logger *logrus.Logger) *Publisher {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Publisher{
		conn:    conn,
		subject: subject,
		log:     logger.WithField("component", "Publisher"),
	}
}

// WithSeries makes Publish attach every frame column
func (p *Publisher) WithSeries(include bool) *Publisher {
	p.includeSeries = include
	return p
}

// Publish encodes r and publishes it on <subject>.<SYMBOLA>_<SYMBOLB>
func (p *Publisher) Publish(r *backtest.Result) error {
	payload, err := Encode(r, p.includeSeries)
	if err != nil {
		return err
	}
	subject := Subject(p.subject, r.SymbolA, r.SymbolB)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	p.log.WithFields(logrus.Fields{"subject": subject, "bytes": len(payload), "run_id": r.RunID}).Info("Published result")
	return nil
}

// Close closes the connection
func (p *Publisher) Close() {
	p.conn.Close()
}

// Subject builds the per-pair subject; characters NATS treats specially are dropped
func Subject(base, symbolA, symbolB string) string {
	return base + "." + token(symbolA) + "_" + token(symbolB)
}

func token(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '.', '*', '>', ' ', '=', '^', '/':
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// Encode builds the protobuf payload. Undefined numbers are null.
func Encode(r *backtest.Result, includeSeries bool) ([]byte, error) {
	summary, err := backtest.MarshalResultJSON(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(summary, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	if includeSeries && r.Frame != nil {
		dates := make([]interface{}, r.Frame.Len())
		for i, d := range r.Frame.Dates() {
			dates[i] = d.Format(backtest.DateLayout)
		}
		series := make(map[string]interface{}, len(r.Frame.Names()))
		for _, name := range r.Frame.Names() {
			values, _ := r.Frame.Get(name)
			list := make([]interface{}, len(values))
			for i, v := range values {
				if !stats.IsUndefined(v) {
					list[i] = v
				}
			}
			series[name] = list
		}
		fields["dates"] = dates
		fields["series"] = series
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}
	return proto.Marshal(msg)
}

// Decode parses a payload produced by Encode
func Decode(data []byte) (map[string]interface{}, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return msg.AsMap(), nil
}
