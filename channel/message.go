// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Message is a single payload relayed from the redirect page. Data holds the
// redirect parameters as URL-style key/value pairs. A leading "?" or "#", or
// a complete redirect URL, are accepted as well.
type Message struct {
	Data   string
	Origin string
}

// Values parses the message's Data. When Data is a complete URL, the
// fragment wins over the query since implicit responses use the fragment.
func (m Message) Values() (url.Values, error) {
	const op = "Message.Values"
	data := strings.TrimSpace(m.Data)
	if strings.Contains(data, "://") {
		u, err := url.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to parse redirect url: %w", op, err)
		}
		switch {
		case u.Fragment != "":
			data = u.Fragment
		default:
			data = u.RawQuery
		}
	}
	data = strings.TrimLeft(data, "?#")
	v, err := url.ParseQuery(data)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse message data: %w", op, err)
	}
	return v, nil
}

// MessageHandler handles one inbound Message.
type MessageHandler func(Message)

// MessageSource is the target for inbound redirect messages. Every Listen
// must be paired with exactly one call of the returned remove func.
type MessageSource interface {
	Listen(h MessageHandler) (remove func())
}

// Publisher delivers a Message to the registered handlers and returns how
// many were called.
type Publisher interface {
	Publish(m Message) int
}

// Relay is a MessageSource which delivers published messages to every
// registered handler.
type Relay struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]MessageHandler
}

// ensure that Relay implements the MessageSource and Publisher interfaces
var (
	_ MessageSource = (*Relay)(nil)
	_ Publisher     = (*Relay)(nil)
)

// NewRelay creates a new Relay
func NewRelay() *Relay {
	return &Relay{
		handlers: map[uint64]MessageHandler{},
	}
}

// Listen registers h. The returned func removes it and is safe to call more
// than once.
func (r *Relay) Listen(h MessageHandler) func() {
	if h == nil {
		return func() {}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = map[uint64]MessageHandler{}
	}
	id := r.next
	r.next++
	r.handlers[id] = h
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers, id)
		})
	}
}

// Publish delivers m to the handlers registered at the time of the call, in
// registration order. It returns the number of handlers called.
func (r *Relay) Publish(m Message) int {
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]MessageHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, r.handlers[id])
	}
	r.mu.Unlock()

	// handlers are called without holding the lock, so they may remove
	// themselves.
	for _, h := range handlers {
		h(m)
	}
	return len(handlers)
}

// Len returns the number of registered handlers.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}
