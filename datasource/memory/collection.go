package memory

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/pkg/locker"
	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/internal/jsonrow"
	"github.com/tidwall/gjson"
)

// Collection is an in-memory, ordered sequence of JSON-lines Partitions.
// Collections derived via WithPartitions share Partitions with their parent.
type Collection struct {
	parts       []*Partition
	locks       *locker.Locker
	elementType grouped.ElementType
}

// CreateCollection is a factory for Collections. Each element of data is a Partition, made of JSON rows.
func CreateCollection(data [][][]byte) (*Collection, error) {
	c := &Collection{parts: make([]*Partition, 0, len(data)), locks: locker.New()}
	for i, rows := range data {
		for j, r := range rows {
			if !gjson.ValidBytes(r) {
				return nil, fmt.Errorf("Row %d of partition %d is not valid JSON", j, i)
			}
		}
		c.parts = append(c.parts, createPartition(c.locks, rows))
	}
	return c, nil
}

// CreateCollectionFromJSONL is a factory for Collections. Each argument is a Partition in
// JSON-lines format; blank lines are skipped.
func CreateCollectionFromJSONL(partitions ...string) (*Collection, error) {
	data := make([][][]byte, len(partitions))
	for i, p := range partitions {
		scanner := bufio.NewScanner(bytes.NewReader([]byte(p)))
		rows := make([][]byte, 0)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			rows = append(rows, append([]byte(nil), line...))
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		data[i] = rows
	}
	return CreateCollection(data)
}

// NumPartitions returns the number of Partitions in this Collection
func (c *Collection) NumPartitions() int {
	return len(c.parts)
}

// GetPartition returns the Partition at a position
func (c *Collection) GetPartition(pos int) grouped.Partition {
	return c.parts[pos]
}

// GetMemoryPartition returns the Partition at a position, with its in-memory methods available
func (c *Collection) GetMemoryPartition(pos int) *Partition {
	return c.parts[pos]
}

// ProbeNonEmpty reports whether a Partition of this Collection holds at least one row
func (c *Collection) ProbeNonEmpty(ctx context.Context, part grouped.Partition) (bool, error) {
	p, ok := part.(*Partition)
	if !ok {
		return false, fmt.Errorf("Partition %s was not created by an in-memory Collection", part.ID())
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.GetNumRows() > 0, nil
}

// WithPartitions creates a new Collection from an ordered list of in-memory Partitions
func (c *Collection) WithPartitions(parts []grouped.Partition) (grouped.Collection, error) {
	res := &Collection{parts: make([]*Partition, len(parts)), locks: c.locks, elementType: c.elementType}
	for i, part := range parts {
		p, ok := part.(*Partition)
		if !ok {
			return nil, fmt.Errorf("Partition %s was not created by an in-memory Collection", part.ID())
		}
		res.parts[i] = p
	}
	return res, nil
}

// WithElementType returns a copy of this Collection which reports the given ElementType
func (c *Collection) WithElementType(t grouped.ElementType) grouped.Collection {
	res := &Collection{parts: make([]*Partition, len(c.parts)), locks: c.locks, elementType: t}
	copy(res.parts, c.parts)
	return res
}

// NumRows returns the total number of rows across all Partitions
func (c *Collection) NumRows(ctx context.Context) (int, error) {
	total := 0
	for _, p := range c.parts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		total += p.GetNumRows()
	}
	return total, nil
}

// ResolveElementType infers the fields of this Collection's rows from the first row available
func (c *Collection) ResolveElementType(ctx context.Context) (grouped.ElementType, error) {
	if c.elementType != nil {
		return c.elementType, nil
	}
	for _, p := range c.parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var first []byte
		err := p.ForEachRow(func(r grouped.Row) error {
			first = r.Bytes()
			return errStopIteration
		})
		if err != nil && err != errStopIteration {
			return nil, err
		}
		if first != nil {
			return jsonrow.InferElementType(first)
		}
	}
	return nil, fmt.Errorf("Collection has no rows to infer an element type from")
}

var errStopIteration = fmt.Errorf("stop iteration")
