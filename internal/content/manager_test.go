package content

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/keithlinneman/linnemanlabs-static/internal/log"
)

func TestManager_Empty(t *testing.T) {
	m := NewManager()

	if _, ok := m.Get(); ok {
		t.Fatal("empty manager should not report a snapshot")
	}
	if m.ReadyErr() == nil {
		t.Fatal("empty manager should not be ready")
	}
	if m.Source() != SourceUnknown {
		t.Fatalf("source = %q", m.Source())
	}
	if m.ContentVersion() != "" || m.ContentHash() != "" || !m.LoadedAt().IsZero() {
		t.Fatal("empty manager should report zero values")
	}
}

func TestManager_SetGet(t *testing.T) {
	m := NewManager()
	m.Set(Snapshot{
		FS:   fstest.MapFS{"index.html": {Data: []byte("x")}},
		Meta: Meta{Source: SourceS3, Version: "site.tar.gz", SHA256: "abc"},
	})

	s, ok := m.Get()
	if !ok {
		t.Fatal("snapshot expected")
	}
	if s.LoadedAt.IsZero() {
		t.Fatal("LoadedAt should default to now")
	}
	if m.ReadyErr() != nil {
		t.Fatal("manager should be ready")
	}
	if m.ContentVersion() != "site.tar.gz" || m.ContentHash() != "abc" || m.Source() != SourceS3 {
		t.Fatalf("accessors = %q %q %q", m.ContentVersion(), m.ContentHash(), m.Source())
	}
}

func TestManager_NilFSNotReady(t *testing.T) {
	m := NewManager()
	m.Set(Snapshot{Meta: Meta{Source: SourceDir}})
	if m.ReadyErr() == nil {
		t.Fatal("snapshot without FS should not be ready")
	}
}

func TestManager_SetCopies(t *testing.T) {
	m := NewManager()
	at := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{FS: fstest.MapFS{}, Meta: Meta{Version: "one"}, LoadedAt: at}
	m.Set(snap)
	snap.Meta.Version = "two"

	if m.ContentVersion() != "one" {
		t.Fatal("manager must not alias the caller's snapshot")
	}
	if !m.LoadedAt().Equal(at) {
		t.Fatalf("LoadedAt = %v", m.LoadedAt())
	}
}

func TestManager_ConcurrentSwap(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Set(Snapshot{FS: fstest.MapFS{}, Meta: Meta{Source: SourceS3}})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = m.Get()
				_ = m.ContentHash()
			}
		}()
	}
	wg.Wait()
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := LoadDir(context.Background(), log.Nop(), dir, "index.html")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if snap.Meta.Source != SourceDir {
		t.Fatalf("source = %q", snap.Meta.Source)
	}
	f, err := snap.FS.Open("index.html")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	f.Close()
}

func TestLoadDir_Errors(t *testing.T) {
	if _, err := LoadDir(context.Background(), nil, filepath.Join(t.TempDir(), "missing"), "index.html"); err == nil {
		t.Fatal("missing dir should fail")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(context.Background(), nil, file, "index.html"); err == nil {
		t.Fatal("file should not be accepted as a dir")
	}
}

func TestLoadDir_MissingIndexIsNotFatal(t *testing.T) {
	if _, err := LoadDir(context.Background(), nil, t.TempDir(), "index.html"); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
}
