package source

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/afero"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

func TestDirectorySourceReadsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sprites/player.png", "png")
	writeFile(t, dir, "x.json", `{"v":1}`)

	src, err := NewDirectory(dir)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	if src.Kind() != KindDirectory {
		t.Fatalf("unexpected kind %s", src.Kind())
	}
	if !src.Exists(vfs.MustParsePath("sprites/player.png")) {
		t.Fatalf("expected sprites/player.png to exist")
	}
	data, err := src.Read(vfs.MustParsePath("x.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"v":1}` {
		t.Fatalf("unexpected payload %s", data)
	}

	listed := slices.Collect(src.List())
	want := []vfs.Path{"sprites/player.png", "x.json"}
	if !slices.Equal(listed, want) {
		t.Fatalf("expected %v, got %v", want, listed)
	}
	// List 必须可重复遍历。
	if again := slices.Collect(src.List()); !slices.Equal(again, want) {
		t.Fatalf("second listing differs: %v", again)
	}
}

func TestDirectorySourceIgnoresFilesAddedAfterMount(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")

	src, err := NewDirectory(dir)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	writeFile(t, dir, "late.txt", "late")

	if src.Exists(vfs.MustParsePath("late.txt")) {
		t.Fatalf("files added after mount should not be visible")
	}
	if _, err := src.Read(vfs.MustParsePath("late.txt")); !errors.Is(err, vfs.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestDirectorySourceReportsReadErrorForVanishedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gone.txt", "bye")

	src, err := NewDirectory(dir)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "gone.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := src.Read(vfs.MustParsePath("gone.txt")); !errors.Is(err, vfs.ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead, got %v", err)
	}
}

func TestDirectorySourceOnMemMapFs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/maps/area.json", []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := NewDirectoryFs("mem://base", fsys)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	if src.Len() != 1 {
		t.Fatalf("expected 1 file, got %d", src.Len())
	}
	if !src.Exists(vfs.MustParsePath("maps/area.json")) {
		t.Fatalf("expected maps/area.json to exist")
	}
}

func TestArchiveSourceIndexesCentralDirectory(t *testing.T) {
	payload := buildZip(t, map[string]string{
		"sprites/player.png": "png",
		"x.json":             `{"v":2}`,
		"../escape.txt":      "nope",
	})

	src, err := NewArchiveReader("patch.zip", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	if src.Kind() != KindArchive {
		t.Fatalf("unexpected kind %s", src.Kind())
	}
	if src.Len() != 2 {
		t.Fatalf("expected 2 indexed files, got %d", src.Len())
	}
	data, err := src.Read(vfs.MustParsePath("x.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"v":2}` {
		t.Fatalf("unexpected payload %s", data)
	}
	if _, err := src.Read(vfs.MustParsePath("missing.json")); !errors.Is(err, vfs.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestArchiveSourceRejectsTruncatedArchive(t *testing.T) {
	payload := buildZip(t, map[string]string{"x.json": "{}"})
	truncated := payload[:len(payload)/2]

	_, err := NewArchiveReader("broken.zip", bytes.NewReader(truncated), int64(len(truncated)))
	if !errors.Is(err, vfs.ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead, got %v", err)
	}
}

func TestArchiveSourceReportsCorruptMember(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	body := []byte("corrupted body")
	w, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "bad.bin",
		Method:             zip.Store,
		CRC32:              0xdeadbeef,
		CompressedSize64:   uint64(len(body)),
		UncompressedSize64: uint64(len(body)),
	})
	if err != nil {
		t.Fatalf("create raw: %v", err)
	}
	if _, err := w.Write(body); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	src, err := NewArchiveReader("bad.zip", bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	if _, err := src.Read(vfs.MustParsePath("bad.bin")); !errors.Is(err, vfs.ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead for checksum mismatch, got %v", err)
	}
}

func TestOpenSelectsVariant(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "pkg")
	writeFile(t, pkg, "a.txt", "a")

	archivePath := filepath.Join(dir, "patch.zip")
	if err := os.WriteFile(archivePath, buildZip(t, map[string]string{"a.txt": "b"}), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	notZip := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(notZip, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	src, err := Open(pkg)
	if err != nil || src.Kind() != KindDirectory {
		t.Fatalf("expected directory source, got %v (%v)", src, err)
	}
	src, err = Open(archivePath)
	if err != nil || src.Kind() != KindArchive {
		t.Fatalf("expected archive source, got %v (%v)", src, err)
	}
	t.Cleanup(func() { _ = src.(*ArchiveSource).Close() })

	if _, err := Open(filepath.Join(dir, "missing")); !errors.Is(err, vfs.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
	if _, err := Open(notZip); !errors.Is(err, vfs.ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead for non-archive file, got %v", err)
	}
}

func TestMemorySourcePutDelete(t *testing.T) {
	mem := NewMemory()
	p := vfs.MustParsePath("injected/config.json")

	if mem.Exists(p) {
		t.Fatalf("empty memory source should not contain %s", p)
	}
	if err := mem.Put(p, []byte("{}")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mem.Exists(p) {
		t.Fatalf("expected %s after put", p)
	}
	if got := slices.Collect(mem.List()); !slices.Equal(got, []vfs.Path{p}) {
		t.Fatalf("unexpected listing %v", got)
	}
	if err := mem.Delete(p); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mem.Delete(p); !errors.Is(err, vfs.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound on second delete, got %v", err)
	}
	if _, err := mem.Read(p); !errors.Is(err, vfs.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
