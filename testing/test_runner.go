package testing

import (
	"context"
	"fmt"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/cluster"
	"github.com/go-sif/grouped/datasource/memory"
	"github.com/go-sif/grouped/groupby"
	"github.com/go-sif/grouped/index"
)

// LocalCluster is a set of Workers on localhost, each serving one shard of a Collection
type LocalCluster struct {
	workers []cluster.Node
	addrs   []string
	shards  []*memory.Collection
	errors  chan error
}

// StartLocalCluster starts one Worker per shard on 127.0.0.1, each bound to an ephemeral port
func StartLocalCluster(shards []*memory.Collection, opts *cluster.NodeOptions) (*LocalCluster, error) {
	if opts == nil {
		opts = &cluster.NodeOptions{}
	}
	c := &LocalCluster{shards: shards, errors: make(chan error, len(shards))}
	for _, shard := range shards {
		wopts := cluster.CloneNodeOptions(opts)
		wopts.Host = "127.0.0.1"
		wopts.Port = 0
		worker, err := cluster.CreateWorker(shard, wopts)
		if err != nil {
			c.Stop()
			return nil, err
		}
		addr, err := worker.Listen()
		if err != nil {
			c.Stop()
			return nil, err
		}
		c.workers = append(c.workers, worker)
		c.addrs = append(c.addrs, addr.String())
		go func() {
			if err := worker.Start(); err != nil {
				c.errors <- err
			}
		}()
	}
	return c, nil
}

// Addrs returns the addresses of the Workers, in shard order
func (c *LocalCluster) Addrs() []string {
	res := make([]string, len(c.addrs))
	copy(res, c.addrs)
	return res
}

// Connect connects to every Worker in this cluster
func (c *LocalCluster) Connect(ctx context.Context, opts *cluster.NodeOptions) (*cluster.RemoteCollection, error) {
	select {
	case err := <-c.errors:
		return nil, err
	default:
	}
	return cluster.Connect(ctx, opts, c.addrs...)
}

// Stop stops every Worker immediately
func (c *LocalCluster) Stop() {
	for _, w := range c.workers {
		w.Stop()
	}
}

// GroupShards groups the rows of every shard by columns, producing an index whose positions refer
// to the Partitions of the whole cluster, in the order Connect lists them
func (c *LocalCluster) GroupShards(ctx context.Context, columns ...string) (grouped.BuildableGroupIndex, error) {
	idx := index.CreateGroupIndex()
	offset := 0
	for i, shard := range c.shards {
		v, err := groupby.Columns(ctx, shard, columns...)
		if err != nil {
			return nil, fmt.Errorf("Unable to group shard %d: %w", i, err)
		}
		err = v.ForEachGroup(func(key grouped.Key, positions []int) error {
			for _, pos := range positions {
				if err := idx.Append(key, pos+offset); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		offset += shard.NumPartitions()
	}
	return idx, nil
}

// LocalGroupedView runs a localhost cluster over shards and returns a GroupedView of the connected
// Collection, grouped by columns. The returned function closes the connection and stops the cluster.
func LocalGroupedView(ctx context.Context, shards []*memory.Collection, opts *cluster.NodeOptions, columns ...string) (view grouped.GroupedView, stop func(), err error) {
	// handle panics
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = anErr
			} else {
				panic(r)
			}
		}
	}()

	c, err := StartLocalCluster(shards, opts)
	if err != nil {
		return nil, nil, err
	}
	idx, err := c.GroupShards(ctx, columns...)
	if err != nil {
		c.Stop()
		return nil, nil, err
	}
	coll, err := c.Connect(ctx, opts)
	if err != nil {
		c.Stop()
		return nil, nil, err
	}
	stop = func() {
		coll.Close()
		c.Stop()
	}
	view, err = groupby.CreateGroupedView(coll, columns, nil, idx)
	if err != nil {
		stop()
		return nil, nil, err
	}
	return view, stop, nil
}
