package file

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/internal/jsonrow"
)

// Collection is a sequence of JSON-lines files, each of which is a Partition
type Collection struct {
	parts []*Partition
}

// CreateCollection is a factory for Collections, with one Partition per file matching glob, in lexical order
func CreateCollection(glob string) (*Collection, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("glob %s produced 0 files", glob)
	}
	c := &Collection{parts: make([]*Partition, len(matches))}
	for i, path := range matches {
		c.parts[i] = &Partition{path: path}
	}
	return c, nil
}

// NumPartitions returns the number of Partitions in this Collection
func (c *Collection) NumPartitions() int {
	return len(c.parts)
}

// GetPartition returns the Partition at a position
func (c *Collection) GetPartition(pos int) grouped.Partition {
	return c.parts[pos]
}

// ProbeNonEmpty reports whether a file holds at least one row. A missing file is an error, not an empty Partition.
func (c *Collection) ProbeNonEmpty(ctx context.Context, part grouped.Partition) (bool, error) {
	p, ok := part.(*Partition)
	if !ok {
		return false, fmt.Errorf("Partition %s is not a file", part.ID())
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.hasRows()
}

// WithPartitions creates a new Collection from an ordered list of file Partitions
func (c *Collection) WithPartitions(parts []grouped.Partition) (grouped.Collection, error) {
	res := &Collection{parts: make([]*Partition, len(parts))}
	for i, part := range parts {
		p, ok := part.(*Partition)
		if !ok {
			return nil, fmt.Errorf("Partition %s is not a file", part.ID())
		}
		res.parts[i] = p
	}
	return res, nil
}

// NumRows returns the total number of rows across all files
func (c *Collection) NumRows(ctx context.Context) (int, error) {
	total := 0
	for _, p := range c.parts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := p.CountRows()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// ResolveElementType infers the fields of this Collection's rows from the first row of the first non-empty file
func (c *Collection) ResolveElementType(ctx context.Context) (grouped.ElementType, error) {
	for _, p := range c.parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		first, err := p.firstRow()
		if err != nil {
			return nil, err
		}
		if first != nil {
			return jsonrow.InferElementType(first)
		}
	}
	return nil, fmt.Errorf("Collection has no rows to infer an element type from")
}
