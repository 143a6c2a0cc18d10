package kv

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	disk, err := NewDisk(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	t.Cleanup(func() { _ = disk.Close() })

	lite, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"), 0)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })

	return map[string]Store{
		"memory": NewMemory(0),
		"disk":   disk,
		"sqlite": lite,
	}
}

func TestStoreBasics(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get("missing"); ok || err != nil {
				t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
			}

			if err := s.Set("a", []byte("one")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := s.Set("a", []byte("two")); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}

			got, ok, err := s.Get("a")
			if err != nil || !ok {
				t.Fatalf("Get(a) = ok %v, err %v", ok, err)
			}
			if string(got) != "two" {
				t.Errorf("Get(a) = %q, want %q", got, "two")
			}

			big := []byte(strings.Repeat("lecture ", 1000))
			if err := s.Set("big", big); err != nil {
				t.Fatalf("Set(big) failed: %v", err)
			}
			got, _, _ = s.Get("big")
			if !bytes.Equal(got, big) {
				t.Errorf("big value did not survive the store")
			}

			if err := s.Delete("a"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, ok, _ := s.Get("a"); ok {
				t.Errorf("key still present after Delete")
			}
			if err := s.Delete("a"); err != nil {
				t.Errorf("second Delete should be a no-op, got %v", err)
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	s := NewMemory(0)
	type cached struct {
		Resp string `json:"resp"`
	}

	if err := SetJSON(s, "k", map[int]cached{2: {Resp: "hi"}}); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	got, ok, err := GetJSON[map[int]cached](s, "k")
	if err != nil || !ok {
		t.Fatalf("GetJSON = ok %v, err %v", ok, err)
	}
	if got[2].Resp != "hi" {
		t.Errorf("got %+v", got)
	}

	_ = s.Set("bad", []byte("{not json"))
	if _, _, err := GetJSON[map[int]cached](s, "bad"); err == nil {
		t.Error("expected decode error for corrupt value")
	}
}

func TestMemoryQuota(t *testing.T) {
	m := NewMemory(10)

	if err := m.Set("huge", make([]byte, 11)); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	_ = m.Set("a", make([]byte, 4))
	_ = m.Set("b", make([]byte, 4))
	_, _, _ = m.Get("a") // a is now most recent
	_ = m.Set("c", make([]byte, 4))

	if _, ok, _ := m.Get("b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	if _, ok, _ := m.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if st := m.Stats(); st.Size > 10 {
		t.Errorf("size %d exceeds quota", st.Size)
	}
}

func TestDiskQuotaAndReopen(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 64)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}

	if err := d.Set("k", []byte("persisted")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := d.Set("too-big", make([]byte, 100)); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
	_ = d.Close()

	if _, _, err := d.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close: want ErrClosed, got %v", err)
	}

	reopened, err := NewDisk(dir, 64)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close() //nolint:errcheck

	got, ok, err := reopened.Get("k")
	if err != nil || !ok || string(got) != "persisted" {
		t.Errorf("after reopen Get = %q, %v, %v", got, ok, err)
	}
}

func TestOpenBackends(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendDisk, BackendSQLite} {
		s, c, err := Open(backend, t.TempDir(), 0)
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", backend, err)
		}
		if err := s.Set("x", []byte("y")); err != nil {
			t.Errorf("%s: Set failed: %v", backend, err)
		}
		_ = c.Close()
	}

	if _, _, err := Open("floppy", t.TempDir(), 0); err == nil {
		t.Error("expected error for unknown backend")
	}
}
