// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package listeners

import (
	"context"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/vmware/stompsession-go/stompsession"
)

type chain []stompsession.CommandListener

// Chain returns a listener calling each of listeners in order. The first error stops
// the chain and is returned.
func Chain(listeners ...stompsession.CommandListener) stompsession.CommandListener {
	return chain(listeners)
}

func (c chain) each(fn func(l stompsession.CommandListener) error) error {
	for _, l := range c {
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}

func (c chain) Connect(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Connect(ctx, headers) })
}

func (c chain) Send(ctx context.Context, headers *frame.Header, body []byte) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Send(ctx, headers, body) })
}

func (c chain) Subscribe(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Subscribe(ctx, headers) })
}

func (c chain) Unsubscribe(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Unsubscribe(ctx, headers) })
}

func (c chain) Ack(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Ack(ctx, headers) })
}

func (c chain) Nack(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Nack(ctx, headers) })
}

func (c chain) Begin(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Begin(ctx, headers) })
}

func (c chain) Commit(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Commit(ctx, headers) })
}

func (c chain) Abort(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Abort(ctx, headers) })
}

func (c chain) Disconnect(ctx context.Context, headers *frame.Header) error {
	return c.each(func(l stompsession.CommandListener) error { return l.Disconnect(ctx, headers) })
}
