package workerpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/zkstage/coordinator/pkg/types"
)

// ClientPool caches one gRPC connection per worker endpoint, mirroring the
// connection-cache idiom from this project's Raft lineage (dial once, reuse
// for the life of the process) generalized from "peer" to "worker".
type ClientPool struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewClientPool() *ClientPool {
	return &ClientPool{conns: make(map[string]*grpc.ClientConn)}
}

// Dial returns a ProverBackend for endpoint, dialing (with bounded
// exponential backoff on transient failure) and caching the connection on
// first use.
func (c *ClientPool) Dial(ctx context.Context, endpoint string, kind types.ProverKind) (ProverBackend, error) {
	c.mu.Lock()
	conn, ok := c.conns[endpoint]
	c.mu.Unlock()
	if ok {
		return newBackend(kind, conn), nil
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	var dialed *grpc.ClientConn
	err := backoff.Retry(func() error {
		conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dial worker %s: %w", endpoint, err)
		}
		dialed = conn
		return nil
	}, bo)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conns[endpoint] = dialed
	c.mu.Unlock()
	return newBackend(kind, dialed), nil
}
