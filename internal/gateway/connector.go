package gateway

import (
	"context"
	"sync"
)

// Target is where and how to reach the gateway.
type Target struct {
	URL   string
	Token string
}

// TargetFunc resolves the current gateway target. It is consulted on
// every (re)connect so edits to the agent config take effect.
type TargetFunc func() (Target, error)

// Connector keeps one shared Client, dialing lazily and redialing after
// the connection drops.
type Connector struct {
	resolve TargetFunc
	opts    DialOptions

	mu     sync.Mutex
	client *Client
	subs   []func(Event)
	closed bool
}

// NewConnector returns a Connector that dials with opts.
func NewConnector(resolve TargetFunc, opts DialOptions) *Connector {
	return &Connector{resolve: resolve, opts: opts}
}

// Subscribe registers fn on the current and every future connection.
func (k *Connector) Subscribe(fn func(Event)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.subs = append(k.subs, fn)
	if k.client != nil {
		k.client.Subscribe(fn)
	}
}

// Client returns a live connection, dialing if needed.
func (k *Connector) Client(ctx context.Context) (*Client, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, ErrClosed
	}
	if k.client != nil && k.client.Err() == nil {
		return k.client, nil
	}
	if k.client != nil {
		k.client.Close()
		k.client = nil
	}

	target, err := k.resolve()
	if err != nil {
		return nil, err
	}
	opts := k.opts
	if target.Token != "" {
		opts.Token = target.Token
	}
	c, err := Dial(ctx, target.URL, opts)
	if err != nil {
		return nil, err
	}
	for _, fn := range k.subs {
		c.Subscribe(fn)
	}
	k.client = c
	return c, nil
}

// Close shuts the current connection, if any.
func (k *Connector) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	if k.client == nil {
		return nil
	}
	err := k.client.Close()
	k.client = nil
	return err
}
