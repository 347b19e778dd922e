// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/jeranaias/pagetutor/internal/util"
)

// Layout file extensions.
const (
	ExtJSON     = ".json"
	ExtJSONZstd = ".json.zst"
)

// ErrNoPages is returned for a document without pages.
var ErrNoPages = errors.New("layout document has no pages")

// Document is the on-disk layout of a whole document, as produced by the
// page extraction collaborator.
type Document struct {
	Name  string `json:"name"`
	Pages []Page `json:"pages"`
}

// Validate checks every page and rejects duplicate page numbers.
func (d *Document) Validate() error {
	if len(d.Pages) == 0 {
		return ErrNoPages
	}
	seen := make(map[int]bool, len(d.Pages))
	for _, p := range d.Pages {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Number] {
			return fmt.Errorf("duplicate page %d", p.Number)
		}
		seen[p.Number] = true
	}
	return nil
}

// Index builds an Index from the document.
func (d *Document) Index() (*Index, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	idx := NewIndex(d.Name)
	for _, p := range d.Pages {
		if err := idx.Put(p); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// DocumentFromIndex captures an index as a Document.
func DocumentFromIndex(idx *Index) *Document {
	return &Document{Name: idx.Name(), Pages: idx.Pages()}
}

// IsLayoutFile reports whether path has a layout file extension.
func IsLayoutFile(path string) bool {
	return strings.HasSuffix(path, ExtJSON) || strings.HasSuffix(path, ExtJSONZstd)
}

// Decode reads and validates a JSON document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode layout: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads a .json or .json.zst layout file. A document without a name
// takes the file's base name.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ExtJSONZstd) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	doc, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if doc.Name == "" {
		doc.Name = baseName(path)
	}
	return doc, nil
}

// SaveFile writes doc atomically, compressing with zstd when path ends in
// .json.zst.
func SaveFile(path string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	if strings.HasSuffix(path, ExtJSONZstd) {
		var buf bytes.Buffer
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}

	return util.AtomicWriteFile(path, data, 0644)
}

func baseName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ExtJSONZstd)
	return strings.TrimSuffix(base, ExtJSON)
}
