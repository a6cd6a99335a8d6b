// Package gzreader opens a rotated log file for line-by-line reading,
// transparently decompressing it if its name ends in ".gz" (§4.5's "logfiles
// globs commonly match rotated, gzip-compressed files"). It uses
// klauspost/compress's gzip implementation rather than compress/gzip, the
// same library the teacher bundles for its own binary decompression needs.
package gzreader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Open returns a *bufio.Scanner over path's lines and a closer to release
// the underlying file (and gzip reader, if any). Callers must call close
// when done, even on a scan error.
func Open(path string) (scanner *bufio.Scanner, closeFn func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}

	var r io.Reader = f
	closers := []func() error{f.Close}

	if strings.HasSuffix(path, ".gz") {
		gz, gerr := gzip.NewReader(f)
		if gerr != nil {
			f.Close()
			return nil, nil, fmt.Errorf("open gzip %s: %w", path, gerr)
		}
		r = gz
		closers = append([]func() error{gz.Close}, closers...)
	}

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return s, func() error {
		var first error
		for _, c := range closers {
			if e := c(); e != nil && first == nil {
				first = e
			}
		}
		return first
	}, nil
}
