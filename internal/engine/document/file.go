package document

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Load replaces the document with the lines read from r. Trailing "\n" and
// "\r\n" terminators are stripped. The document is left clean.
func (d *Document) Load(r io.Reader) error {
	br := bufio.NewReader(r)
	var rows []string
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")
			rows = append(rows, string(sanitize(line)))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
	}
	d.lines = d.lines[:0]
	for _, row := range rows {
		d.lines = append(d.lines, newLine([]byte(row), d.tabStop))
	}
	d.dirty = 0
	return nil
}

// LoadFile loads path into the document.
func (d *Document) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return d.Load(f)
}

// Bytes returns the document's contents with every line newline-terminated.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	for _, l := range d.lines {
		buf.Write(l.chars)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// SaveFile writes the document to path, truncating any previous content,
// and returns the number of bytes written. On success the document is
// marked clean.
func (d *Document) SaveFile(path string) (int, error) {
	data := d.Bytes()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("save %s: %w", path, err)
	}
	d.dirty = 0
	return len(data), nil
}
