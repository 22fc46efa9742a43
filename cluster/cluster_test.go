package cluster

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/datasource/memory"
	"github.com/stretchr/testify/require"
)

func startTestWorker(t *testing.T, coll grouped.Collection) (string, Node) {
	node, err := CreateWorker(coll, &NodeOptions{Host: "127.0.0.1"})
	require.Nil(t, err)
	addr, err := node.Listen()
	require.Nil(t, err)
	go func() {
		if err := node.Start(); err != nil {
			panic(err)
		}
	}()
	return addr.String(), node
}

func createShard(t *testing.T, partitions ...string) *memory.Collection {
	coll, err := memory.CreateCollectionFromJSONL(partitions...)
	require.Nil(t, err)
	return coll
}

func TestConnectAndProbe(t *testing.T) {
	ctx := context.Background()
	shardA := createShard(t, `{"a": 1}`, ``)
	shardB := createShard(t, ``, `{"b": 1}
		{"b": 2}`, `{"b": 3}`)
	addrA, workerA := startTestWorker(t, shardA)
	defer workerA.GracefulStop()
	addrB, workerB := startTestWorker(t, shardB)
	defer workerB.GracefulStop()

	coll, err := Connect(ctx, &NodeOptions{RPCTimeout: time.Second}, addrA, addrB)
	require.Nil(t, err)
	defer coll.Close()

	require.Equal(t, 5, coll.NumPartitions())
	expectedIDs := []string{
		shardA.GetPartition(0).ID(), shardA.GetPartition(1).ID(),
		shardB.GetPartition(0).ID(), shardB.GetPartition(1).ID(), shardB.GetPartition(2).ID(),
	}
	for i, id := range expectedIDs {
		require.Equal(t, id, coll.GetPartition(i).ID())
	}
	require.Equal(t, addrB, coll.GetPartition(3).(*RemotePartition).Worker())

	liveness := make([]bool, coll.NumPartitions())
	for i := range liveness {
		liveness[i], err = coll.ProbeNonEmpty(ctx, coll.GetPartition(i))
		require.Nil(t, err)
	}
	require.Equal(t, []bool{true, false, false, true, true}, liveness)

	rows, err := coll.NumRows(ctx)
	require.Nil(t, err)
	require.Equal(t, 4, rows)

	// probes observe changes made on the worker
	shardB.GetMemoryPartition(2).Truncate()
	nonEmpty, err := coll.ProbeNonEmpty(ctx, coll.GetPartition(4))
	require.Nil(t, err)
	require.False(t, nonEmpty)

	sub, err := coll.WithPartitions([]grouped.Partition{coll.GetPartition(3), coll.GetPartition(0)})
	require.Nil(t, err)
	require.Equal(t, 2, sub.NumPartitions())
	require.Equal(t, expectedIDs[3], sub.GetPartition(0).ID())
	subRows, err := sub.(grouped.RowCounter).NumRows(ctx)
	require.Nil(t, err)
	require.Equal(t, 3, subRows)
}

func TestProbeUnknownPartition(t *testing.T) {
	ctx := context.Background()
	addr, worker := startTestWorker(t, createShard(t, `{"a": 1}`))
	defer worker.Stop()
	coll, err := Connect(ctx, nil, addr)
	require.Nil(t, err)
	defer coll.Close()

	bogus := &RemotePartition{id: "missing", worker: coll.parts[0].worker}
	_, err = coll.ProbeNonEmpty(ctx, bogus)
	require.NotNil(t, err)
	_, err = coll.WithPartitions([]grouped.Partition{createShard(t, ``).GetPartition(0)})
	require.NotNil(t, err)
}

func TestProbeAfterWorkerStops(t *testing.T) {
	ctx := context.Background()
	addr, worker := startTestWorker(t, createShard(t, `{"a": 1}`))
	coll, err := Connect(ctx, &NodeOptions{RPCTimeout: 500 * time.Millisecond}, addr)
	require.Nil(t, err)
	defer coll.Close()
	require.Nil(t, worker.Stop())
	_, err = coll.ProbeNonEmpty(ctx, coll.GetPartition(0))
	require.NotNil(t, err)
}

func TestConnectUnreachableWorker(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	addr := lis.Addr().String()
	require.Nil(t, lis.Close())

	_, err = Connect(context.Background(), &NodeOptions{DialTimeout: 200 * time.Millisecond}, addr)
	require.NotNil(t, err)
}

func TestCreateNodeFromEnv(t *testing.T) {
	coll := createShard(t, `{"a": 1}`)
	defer os.Unsetenv(NodeAddrEnv)

	require.Nil(t, os.Setenv(NodeAddrEnv, "127.0.0.1:0"))
	node, err := CreateNode(coll, nil)
	require.Nil(t, err)
	addr, err := node.Listen()
	require.Nil(t, err)
	require.Equal(t, "127.0.0.1", addr.(*net.TCPAddr).IP.String())
	again, err := node.Listen()
	require.Nil(t, err)
	require.Equal(t, addr.String(), again.String())
	require.Nil(t, node.Stop())
	require.NotNil(t, node.Start())

	require.Nil(t, os.Setenv(NodeAddrEnv, "localhost"))
	_, err = CreateNode(coll, nil)
	require.NotNil(t, err)
	require.Nil(t, os.Setenv(NodeAddrEnv, "localhost:port"))
	_, err = CreateNode(coll, nil)
	require.NotNil(t, err)

	_, err = CreateWorker(nil, nil)
	require.NotNil(t, err)
}

func TestNodeOptionsDefaults(t *testing.T) {
	opts := &NodeOptions{Port: 9000}
	clone := CloneNodeOptions(opts)
	ensureDefaultNodeOptionsValues(clone)
	require.Equal(t, "0.0.0.0", clone.Host)
	require.Equal(t, 9000, clone.Port)
	require.Equal(t, 5*time.Second, clone.RPCTimeout)
	require.Equal(t, "0.0.0.0:9000", clone.connectionString())
	require.Equal(t, "", opts.Host)
}
