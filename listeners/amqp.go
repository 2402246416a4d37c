// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package listeners

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/vmware/stompsession-go/log"
)

const subscriptionsNotSupportedError = listenerError("Subscriptions are not supported")

// Publisher is the part of *amqp.Channel used to forward messages.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// DialPublisher connects to an AMQP broker and opens a channel.
func DialPublisher(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	return conn, ch, nil
}

// AmqpListener forwards the body of every SEND frame to an AMQP exchange. Sends that
// are part of a transaction are held back until the transaction is committed.
// An AmqpListener serves a single session.
type AmqpListener struct {
	publisher    Publisher
	exchange     string
	transactions map[string][]pendingMessage
}

type pendingMessage struct {
	destination string
	msg         amqp.Publishing
}

func NewAmqpListener(publisher Publisher, exchange string) *AmqpListener {
	return &AmqpListener{
		publisher:    publisher,
		exchange:     exchange,
		transactions: make(map[string][]pendingMessage),
	}
}

// RoutingKey converts a STOMP destination to an AMQP routing key:
// "/topic/stocks/nyse" becomes "stocks.nyse".
func RoutingKey(destination string) string {
	key := strings.TrimPrefix(destination, "/")
	for _, prefix := range []string{"queue/", "topic/", "exchange/"} {
		if strings.HasPrefix(key, prefix) {
			key = strings.TrimPrefix(key, prefix)
			break
		}
	}
	return strings.ReplaceAll(key, "/", ".")
}

var reservedHeaders = map[string]bool{
	frame.Destination:   true,
	frame.Transaction:   true,
	frame.Receipt:       true,
	frame.ContentLength: true,
	frame.ContentType:   true,
}

func newPublishing(headers *frame.Header, body []byte) amqp.Publishing {
	table := amqp.Table{}
	for i := 0; i < headers.Len(); i++ {
		key, value := headers.GetAt(i)
		if reservedHeaders[key] {
			continue
		}
		if _, exists := table[key]; !exists {
			table[key] = value
		}
	}
	return amqp.Publishing{
		Headers:     table,
		ContentType: headers.Get(frame.ContentType),
		MessageId:   uuid.New().String(),
		Timestamp:   time.Now(),
		Body:        body,
	}
}

func (l *AmqpListener) publish(destination string, msg amqp.Publishing) error {
	key := RoutingKey(destination)
	if err := l.publisher.Publish(l.exchange, key, false, false, msg); err != nil {
		log.Log.Errorf("failed to publish to '%s': %v", key, err)
		return fmt.Errorf("failed to forward message to '%s': %w", destination, err)
	}
	return nil
}

func transactionNotFound(tx string) error {
	return listenerError(fmt.Sprintf("Transaction '%s' not found", tx))
}

func (l *AmqpListener) Connect(ctx context.Context, headers *frame.Header) error {
	return nil
}

func (l *AmqpListener) Send(ctx context.Context, headers *frame.Header, body []byte) error {
	destination := headers.Get(frame.Destination)
	msg := newPublishing(headers, body)

	if tx, ok := headers.Contains(frame.Transaction); ok {
		pending, exists := l.transactions[tx]
		if !exists {
			return transactionNotFound(tx)
		}
		l.transactions[tx] = append(pending, pendingMessage{destination: destination, msg: msg})
		return nil
	}
	return l.publish(destination, msg)
}

func (l *AmqpListener) Subscribe(ctx context.Context, headers *frame.Header) error {
	return subscriptionsNotSupportedError
}

func (l *AmqpListener) Unsubscribe(ctx context.Context, headers *frame.Header) error {
	return nil
}

func (l *AmqpListener) Ack(ctx context.Context, headers *frame.Header) error {
	return nil
}

func (l *AmqpListener) Nack(ctx context.Context, headers *frame.Header) error {
	return nil
}

func (l *AmqpListener) Begin(ctx context.Context, headers *frame.Header) error {
	tx := headers.Get(frame.Transaction)
	if _, exists := l.transactions[tx]; exists {
		return listenerError(fmt.Sprintf("Transaction '%s' already started", tx))
	}
	l.transactions[tx] = []pendingMessage{}
	return nil
}

func (l *AmqpListener) Commit(ctx context.Context, headers *frame.Header) error {
	tx := headers.Get(frame.Transaction)
	pending, exists := l.transactions[tx]
	if !exists {
		return transactionNotFound(tx)
	}
	delete(l.transactions, tx)

	for _, p := range pending {
		if err := l.publish(p.destination, p.msg); err != nil {
			return err
		}
	}
	return nil
}

func (l *AmqpListener) Abort(ctx context.Context, headers *frame.Header) error {
	tx := headers.Get(frame.Transaction)
	if _, exists := l.transactions[tx]; !exists {
		return transactionNotFound(tx)
	}
	delete(l.transactions, tx)
	return nil
}

func (l *AmqpListener) Disconnect(ctx context.Context, headers *frame.Header) error {
	for tx := range l.transactions {
		delete(l.transactions, tx)
	}
	return nil
}
