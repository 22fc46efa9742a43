package memory

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"log"

	"github.com/docker/docker/pkg/locker"
	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/internal/jsonrow"
	uuid "github.com/gofrs/uuid"
	"github.com/pierrec/lz4"
	"github.com/tidwall/gjson"
)

// Partition is an in-memory Partition of JSON rows. A Partition may be sealed, after which its
// rows are held lz4-compressed and it can no longer be appended to. Row counts are kept
// separately, so probing a sealed Partition never decompresses it.
type Partition struct {
	id       string
	locks    *locker.Locker
	rows     [][]byte
	sealed   []byte
	isSealed bool
	numRows  int
}

// createPartition creates a new Partition holding copies of the given rows
func createPartition(locks *locker.Locker, rows [][]byte) *Partition {
	id, err := uuid.NewV4()
	if err != nil {
		log.Fatalf("failed to generate UUID for Partition: %v", err)
	}
	p := &Partition{id: id.String(), locks: locks, rows: make([][]byte, 0, len(rows))}
	for _, r := range rows {
		p.rows = append(p.rows, append([]byte(nil), r...))
	}
	p.numRows = len(p.rows)
	return p
}

// ID retrieves the ID of this Partition
func (p *Partition) ID() string {
	return p.id
}

// GetNumRows retrieves the number of rows in this Partition
func (p *Partition) GetNumRows() int {
	p.locks.Lock(p.id)
	defer p.locks.Unlock(p.id)
	return p.numRows
}

// IsSealed returns true iff this Partition has been sealed
func (p *Partition) IsSealed() bool {
	p.locks.Lock(p.id)
	defer p.locks.Unlock(p.id)
	return p.isSealed
}

// AppendRow adds a JSON row to the end of this Partition
func (p *Partition) AppendRow(row []byte) error {
	if !gjson.ValidBytes(row) {
		return fmt.Errorf("Row is not valid JSON: %s", row)
	}
	p.locks.Lock(p.id)
	defer p.locks.Unlock(p.id)
	if p.isSealed {
		return fmt.Errorf("Partition %s is sealed", p.id)
	}
	p.rows = append(p.rows, append([]byte(nil), row...))
	p.numRows++
	return nil
}

// Truncate removes all rows from this Partition, unsealing it
func (p *Partition) Truncate() {
	p.locks.Lock(p.id)
	defer p.locks.Unlock(p.id)
	p.rows = p.rows[:0]
	p.sealed = nil
	p.isSealed = false
	p.numRows = 0
}

// Seal compresses the rows of this Partition
func (p *Partition) Seal() error {
	p.locks.Lock(p.id)
	defer p.locks.Unlock(p.id)
	if p.isSealed {
		return nil
	}
	var buf bytes.Buffer
	compressor := lz4.NewWriter(&buf)
	lenBuf := make([]byte, binary.MaxVarintLen64)
	for _, r := range p.rows {
		n := binary.PutUvarint(lenBuf, uint64(len(r)))
		if _, err := compressor.Write(lenBuf[:n]); err != nil {
			return err
		}
		if _, err := compressor.Write(r); err != nil {
			return err
		}
	}
	if err := compressor.Close(); err != nil {
		return err
	}
	p.sealed = buf.Bytes()
	p.rows = nil
	p.isSealed = true
	return nil
}

// unsealedRows returns the rows of this Partition, decompressing them if necessary. Must hold the Partition lock.
func (p *Partition) unsealedRows() ([][]byte, error) {
	if !p.isSealed {
		return append([][]byte(nil), p.rows...), nil
	}
	data, err := ioutil.ReadAll(lz4.NewReader(bytes.NewReader(p.sealed)))
	if err != nil {
		return nil, fmt.Errorf("Unable to decompress partition %s: %v", p.id, err)
	}
	r := bytes.NewReader(data)
	rows := make([][]byte, 0, p.numRows)
	for {
		l, err := binary.ReadUvarint(r)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("Corrupt row length in partition %s: %v", p.id, err)
		}
		row := make([]byte, l)
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("Corrupt row in partition %s: %v", p.id, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ForEachRow iterates over the Rows in this Partition
func (p *Partition) ForEachRow(fn func(row grouped.Row) error) error {
	p.locks.Lock(p.id)
	rows, err := p.unsealedRows()
	p.locks.Unlock(p.id)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := fn(jsonrow.New(r)); err != nil {
			return err
		}
	}
	return nil
}
