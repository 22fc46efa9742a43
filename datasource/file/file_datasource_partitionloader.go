package file

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/internal/jsonrow"
	"github.com/tidwall/gjson"
)

// Partition is a single JSON-lines file. Blank lines are not rows.
type Partition struct {
	path string
}

// ID returns the path of this Partition's file
func (p *Partition) ID() string {
	return p.path
}

// ToString returns a string representation of this Partition
func (p *Partition) ToString() string {
	return fmt.Sprintf("File partition filename: %s", p.path)
}

// scan calls fn with each non-blank line of the file, until fn returns false
func (p *Partition) scan(fn func(line []byte) (bool, error)) error {
	f, err := os.Open(p.path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("WARNING: couldn't close file %s: %v", p.path, err)
		}
	}()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		more, err := fn(line)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return scanner.Err()
}

func (p *Partition) hasRows() (bool, error) {
	found := false
	err := p.scan(func(line []byte) (bool, error) {
		found = true
		return false, nil
	})
	return found, err
}

func (p *Partition) firstRow() ([]byte, error) {
	var first []byte
	err := p.scan(func(line []byte) (bool, error) {
		first = append([]byte(nil), line...)
		return false, nil
	})
	return first, err
}

// CountRows counts the rows in this Partition's file
func (p *Partition) CountRows() (int, error) {
	count := 0
	err := p.scan(func(line []byte) (bool, error) {
		count++
		return true, nil
	})
	return count, err
}

// ForEachRow iterates over the Rows in this Partition's file
func (p *Partition) ForEachRow(fn func(row grouped.Row) error) error {
	lineNum := 0
	return p.scan(func(line []byte) (bool, error) {
		lineNum++
		if !gjson.ValidBytes(line) {
			return false, fmt.Errorf("Row %d of %s is not valid JSON", lineNum, p.path)
		}
		if err := fn(jsonrow.New(append([]byte(nil), line...))); err != nil {
			return false, err
		}
		return true, nil
	})
}
