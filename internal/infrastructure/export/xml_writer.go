// Package export writes export documents to local disk.
package export

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"os"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// ErrWriterClosed is returned when writing to a finished document
var ErrWriterClosed = errors.New("export: document already closed")

// XMLWriter streams product records into one XML document
type XMLWriter struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	enc    *xml.Encoder
	closed bool
}

var _ catalog.DocumentWriter = (*XMLWriter)(nil)

// NewXMLWriter creates the file at path and writes the document header
func NewXMLWriter(path string) (*XMLWriter, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	buf := bufio.NewWriter(f)
	w := &XMLWriter{path: path, file: f, buf: buf, enc: xml.NewEncoder(buf)}

	if _, err := buf.WriteString(xml.Header); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: catalog.DocumentRoot}}); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Write appends one product record
func (w *XMLWriter) Write(record *catalog.ProductRecord) error {
	if w.closed {
		return ErrWriterClosed
	}
	return w.enc.Encode(record)
}

// Close ends the root element and flushes the file
func (w *XMLWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: catalog.DocumentRoot}}); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.enc.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// Path returns the document location
func (w *XMLWriter) Path() string {
	return w.path
}
