// Package ethrpc wraps go-ethereum's client with a small endpoint pool:
// lookups run against the current endpoint and rotate to the next one on
// transport failure, so a single flaky provider does not take down
// payment verification.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

type Client struct {
	mu      sync.Mutex
	idx     int
	clients []*ethclient.Client
	urls    []string
}

// Dial connects to every endpoint; at least one must succeed.
func Dial(ctx context.Context, endpoints []string) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("no rpc endpoints configured")
	}

	c := &Client{}

	for _, url := range endpoints {
		ec, err := ethclient.DialContext(ctx, url)
		if err != nil {
			slog.Warn("rpc endpoint unavailable", "endpoint", url, "error", err)
			continue
		}

		c.clients = append(c.clients, ec)
		c.urls = append(c.urls, url)
	}

	if len(c.clients) == 0 {
		return nil, fmt.Errorf("dial rpc: all %d endpoints unreachable", len(endpoints))
	}

	return c, nil
}

func (c *Client) Close() {
	for _, ec := range c.clients {
		ec.Close()
	}
}

// TransactionByHash looks a transaction up on the current endpoint.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	var (
		tx      *types.Transaction
		pending bool
	)

	err := c.withFailover(ctx, func(ec *ethclient.Client) error {
		var ierr error
		tx, pending, ierr = ec.TransactionByHash(ctx, hash)

		return ierr
	})

	return tx, pending, err
}

// TransactionReceipt returns the mined receipt for hash.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var rcpt *types.Receipt

	err := c.withFailover(ctx, func(ec *ethclient.Client) error {
		var ierr error
		rcpt, ierr = ec.TransactionReceipt(ctx, hash)

		return ierr
	})

	return rcpt, err
}

// withFailover runs fn against the current endpoint and advances to the
// next one on transport errors. ethereum.NotFound is a valid answer and is
// returned as-is without rotating.
func (c *Client) withFailover(ctx context.Context, fn func(*ethclient.Client) error) error {
	c.mu.Lock()
	start := c.idx
	n := len(c.clients)
	c.mu.Unlock()

	var err error

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		pos := (start + i) % n

		err = fn(c.clients[pos])
		if err == nil || errors.Is(err, ethereum.NotFound) {
			return err
		}

		slog.Warn("rpc call failed, rotating endpoint", "endpoint", c.urls[pos], "error", err)

		c.mu.Lock()
		c.idx = (pos + 1) % n
		c.mu.Unlock()
	}

	return fmt.Errorf("all rpc endpoints failed: %w", err)
}
