package sitemap

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gzip "github.com/klauspost/compress/gzip"
)

// WriteResult reports the byte sizes of a completed sink write.
type WriteResult struct {
	SizeBytes           int64
	CompressedSizeBytes int64
}

// Sink persists a named artifact plus a compressed companion. Implementations
// must be safe for concurrent use across distinct names; the regenerator
// never writes the same name concurrently.
type Sink interface {
	Write(name string, data []byte) (WriteResult, error)
}

// DirSink writes artifacts into a flat directory, each one alongside a
// ".gz" companion. Writes go through a temp file and rename so a crashed
// rebuild never leaves a truncated artifact where a crawler can fetch it.
type DirSink struct {
	Dir string
	// Level is the gzip compression level; zero means gzip.DefaultCompression.
	Level int
}

// NewDirSink creates the target directory if needed and returns a sink for it.
func NewDirSink(dir string) (*DirSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("sink directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DirSink{Dir: dir}, nil
}

// Write stores data under name and a gzipped copy under name+".gz",
// returning both byte sizes.
func (s *DirSink) Write(name string, data []byte) (WriteResult, error) {
	if filepath.Base(name) != name {
		return WriteResult{}, fmt.Errorf("artifact name %q must not contain path separators", name)
	}
	path := filepath.Join(s.Dir, name)

	if err := atomicWrite(path, data); err != nil {
		return WriteResult{}, err
	}
	res := WriteResult{SizeBytes: int64(len(data))}

	gz, err := s.compress(data)
	if err != nil {
		return res, err
	}
	if err := atomicWrite(path+".gz", gz); err != nil {
		return res, err
	}
	res.CompressedSizeBytes = int64(len(gz))
	return res, nil
}

func (s *DirSink) compress(data []byte) ([]byte, error) {
	level := s.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// atomicWrite writes to a sibling temp file and renames it into place.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// FormatBytes renders a human-readable size for logs and admin summaries.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
