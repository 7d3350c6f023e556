package vfs

import "testing"

func TestNormaliseWriteReadRoundTrip(t *testing.T) {
	fsys := New()
	if err := fsys.WriteFile("/a/b", "x"); err != nil {
		t.Fatal(err)
	}
	if got := fsys.ReadFile("a/b"); got != "x" {
		t.Fatalf("ReadFile(%q) = %q, want %q", "a/b", got, "x")
	}
	if !fsys.Exists("a/b") || !fsys.Exists("/a/b") {
		t.Fatal("expected both slashed and unslashed forms to exist")
	}
}

func TestReadMissingFileReturnsEmpty(t *testing.T) {
	fsys := New()
	if got := fsys.ReadFile("nope"); got != "" {
		t.Fatalf("expected empty string for missing file, got %q", got)
	}
	if fsys.Exists("nope") {
		t.Fatal("expected missing file to not exist")
	}
}

func TestIsDirectory(t *testing.T) {
	fsys := New()
	fsys.WriteFile("app/src/index.js", "x")
	if !fsys.IsDirectory("app") {
		t.Fatal("expected app to be a directory")
	}
	if !fsys.IsDirectory("app/src") {
		t.Fatal("expected app/src to be a directory")
	}
	if fsys.IsDirectory("app/src/index.js") {
		t.Fatal("a regular file must not be reported as a directory")
	}
}

func TestWriteFilePreservesEntryFlags(t *testing.T) {
	fsys := New()
	fsys.SetFiles(map[string]Record{
		"index.js": {Contents: "a", IsEntry: true, IsJSEntry: true},
	})
	fsys.WriteFile("index.js", "b")
	rec := fsys.Records()["index.js"]
	if rec.Contents != "b" {
		t.Fatalf("expected contents to be updated, got %q", rec.Contents)
	}
	if !rec.IsEntry || !rec.IsJSEntry {
		t.Fatal("expected entry flags to survive a write")
	}
}

func TestAppendFileMerges(t *testing.T) {
	fsys := New()
	fsys.WriteFile("log", "a")
	fsys.AppendFile("log", "b")
	if got := fsys.ReadFile("log"); got != "ab" {
		t.Fatalf("ReadFile() = %q, want %q", got, "ab")
	}
}

func TestDeleteFile(t *testing.T) {
	fsys := New()
	fsys.WriteFile("x", "1")
	fsys.DeleteFile("/x")
	if fsys.Exists("x") {
		t.Fatal("expected file to be gone after delete")
	}
}

func TestRmdirRemovesPrefix(t *testing.T) {
	fsys := New()
	fsys.WriteFile("node_modules/x/a.js", "1")
	fsys.WriteFile("node_modules/x/b.js", "2")
	fsys.WriteFile("app/index.js", "3")
	fsys.Rmdir("node_modules/x")
	if fsys.Exists("node_modules/x/a.js") || fsys.Exists("node_modules/x/b.js") {
		t.Fatal("expected node_modules/x contents to be removed")
	}
	if !fsys.Exists("app/index.js") {
		t.Fatal("unrelated file should survive rmdir")
	}
}

func TestReadDirReturnsAllPrefixedKeys(t *testing.T) {
	fsys := New()
	fsys.WriteFile("node_modules/x/package.json", "{}")
	fsys.WriteFile("node_modules/x/index.js", "x")
	fsys.WriteFile("node_modules/y/package.json", "{}")
	entries := fsys.ReadDir("node_modules/x")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), entries)
	}
}

type recordingProxy struct {
	writes []string
}

func (p *recordingProxy) WriteFile(path, contents string) error {
	p.writes = append(p.writes, path)
	return nil
}
func (p *recordingProxy) AppendFile(path, contents string) error { return nil }
func (p *recordingProxy) DeleteFile(path string) error           { return nil }
func (p *recordingProxy) Rmdir(path string) error                { return nil }
func (p *recordingProxy) SetFiles(files map[string]Record) error { return nil }
func (p *recordingProxy) Chdir(path string) error                { return nil }

func TestBoundProxyReceivesWrites(t *testing.T) {
	fsys := New()
	proxy := &recordingProxy{}
	fsys.Bind(proxy)
	fsys.WriteFile("a", "1")
	fsys.WriteFile("b", "2")
	if len(proxy.writes) != 2 {
		t.Fatalf("expected proxy to observe 2 writes, got %d", len(proxy.writes))
	}
}

func TestWatchReceivesEventsUntilUnsubscribed(t *testing.T) {
	fsys := New()
	events, unsubscribe := fsys.Watch()
	fsys.WriteFile("a", "1")
	select {
	case ev := <-events:
		if ev.Path != "a" || ev.Op != "write" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a buffered event")
	}
	unsubscribe()
	if _, ok := <-events; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}
