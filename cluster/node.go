package cluster

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sif/grouped"
)

// NodeAddrEnv is the environment variable CreateNode reads its bind address from
const NodeAddrEnv = "GROUPED_NODE_ADDR"

// Node is a member of a grouped cluster, serving the Partitions of a Collection.
// Nodes present several methods to control their lifecycle.
type Node interface {
	ID() string
	Listen() (net.Addr, error)
	Start() error
	GracefulStop() error
	Stop() error
}

// NodeOptions are options for a Node, and for connections to Nodes
type NodeOptions struct {
	Port        int           // port for this Node to bind to (0 binds an ephemeral port)
	Host        string        // hostname for this Node to bind to
	RPCTimeout  time.Duration // timeout for all RPC calls
	DialTimeout time.Duration // how long to wait while connecting to a Node
}

// CloneNodeOptions makes a copy of a NodeOptions
func CloneNodeOptions(opts *NodeOptions) *NodeOptions {
	return &NodeOptions{
		Port:        opts.Port,
		Host:        opts.Host,
		RPCTimeout:  opts.RPCTimeout,
		DialTimeout: opts.DialTimeout,
	}
}

func ensureDefaultNodeOptionsValues(opts *NodeOptions) {
	if len(opts.Host) == 0 {
		opts.Host = "0.0.0.0"
	}
	if opts.RPCTimeout == 0 {
		opts.RPCTimeout = time.Duration(5) * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = time.Duration(5) * time.Second
	}
}

// connectionString returns the connection string for this node
func (o *NodeOptions) connectionString() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// CreateWorker creates a Node which serves the Partitions of a Collection
func CreateWorker(coll grouped.Collection, opts *NodeOptions) (Node, error) {
	return createWorker(coll, opts)
}

// CreateNode creates a Node serving a Collection, deriving its bind address from $GROUPED_NODE_ADDR
// (host:port) when it is set
func CreateNode(coll grouped.Collection, opts *NodeOptions) (Node, error) {
	if opts == nil {
		opts = &NodeOptions{}
	}
	opts = CloneNodeOptions(opts)
	if addr := os.Getenv(NodeAddrEnv); len(addr) > 0 {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("$%s=\"%s\" is not a valid host:port: %v", NodeAddrEnv, addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p < 0 {
			return nil, fmt.Errorf("$%s=\"%s\" does not contain a valid port", NodeAddrEnv, addr)
		}
		opts.Host = host
		opts.Port = p
	}
	return createWorker(coll, opts)
}
