package sitemap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	gzip "github.com/klauspost/compress/gzip"
)

func TestDirSink_WriteAndCompanion(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	data := bytes.Repeat([]byte("<url>https://example.com/a</url>\n"), 50)
	res, err := sink.Write("sitemap-locations.xml", data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if res.SizeBytes != int64(len(data)) {
		t.Errorf("SizeBytes = %d, want %d", res.SizeBytes, len(data))
	}
	if res.CompressedSizeBytes <= 0 || res.CompressedSizeBytes >= res.SizeBytes {
		t.Errorf("CompressedSizeBytes = %d, want positive and smaller than %d", res.CompressedSizeBytes, res.SizeBytes)
	}

	got, err := os.ReadFile(filepath.Join(dir, "sitemap-locations.xml"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("artifact bytes differ from written data")
	}

	gzBytes, err := os.ReadFile(filepath.Join(dir, "sitemap-locations.xml.gz"))
	if err != nil {
		t.Fatalf("read companion: %v", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(gzBytes))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer r.Close()
	decompressed, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("companion does not decompress to the artifact bytes")
	}
}

func TestDirSink_OverwriteReplacesArtifact(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	if _, err := sink.Write("sitemap.xml", []byte("first")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := sink.Write("sitemap.xml", []byte("second")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "sitemap.xml"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("artifact = %q, want %q", got, "second")
	}
}

func TestDirSink_RejectsPathSeparators(t *testing.T) {
	sink, err := NewDirSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	for _, name := range []string{"../escape.xml", "nested/sitemap.xml"} {
		if _, err := sink.Write(name, []byte("x")); err == nil {
			t.Errorf("Write(%q) succeeded, want error", name)
		}
	}
}

func TestNewDirSink_EmptyDir(t *testing.T) {
	if _, err := NewDirSink("   "); err == nil {
		t.Error("expected error for blank directory")
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:       "0 B",
		512:     "512 B",
		1024:    "1.00 KB",
		1536:    "1.50 KB",
		1 << 20: "1.00 MB",
		1 << 30: "1.00 GB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %s, want %s", in, got, want)
		}
	}
}
