package processor

import (
	"bytes"
	"io"
	"os"
)

// OutputFactory is a function that creates a writer to an output for the
// given location. Output factories typically use os.OpenFile to create files
// but this function allows the behavior to be customized.
type OutputFactory func(path string) (io.WriteCloser, error)

// DefaultOutputFactory returns the OutputFactory used when a Config does not
// name one. It writes each output next to its source file. The file is only
// replaced when its content changes, so that running the tool twice leaves
// modification times alone.
func DefaultOutputFactory() OutputFactory {
	return func(path string) (io.WriteCloser, error) {
		return &lazyFile{path: path}, nil
	}
}

// lazyFile buffers writes and writes the file on Close.
type lazyFile struct {
	path    string
	buf     bytes.Buffer
	changed bool
}

func (f *lazyFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *lazyFile) Close() error {
	existing, err := os.ReadFile(f.path)
	if err == nil && bytes.Equal(existing, f.buf.Bytes()) {
		return nil
	}
	f.changed = true
	return os.WriteFile(f.path, f.buf.Bytes(), 0666)
}

// Changed reports whether Close wrote the file.
func (f *lazyFile) Changed() bool {
	return f.changed
}

// MemoryOutput collects outputs in memory, keyed by path. It is useful for
// previews and tests.
type MemoryOutput map[string][]byte

// Factory returns an OutputFactory that stores into m.
func (m MemoryOutput) Factory() OutputFactory {
	return func(path string) (io.WriteCloser, error) {
		return &memFile{path: path, m: m}, nil
	}
}

type memFile struct {
	path string
	m    MemoryOutput
	buf  bytes.Buffer
}

func (f *memFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *memFile) Close() error {
	f.m[f.path] = f.buf.Bytes()
	return nil
}
