package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "vox.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLookupMissing(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Lookup(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveLookup(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, Record{Digest: "abc", Provider: "groq", Language: "en", Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Errorf("saved = %+v, want id and timestamp", saved)
	}

	got, err := s.Lookup(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != saved.ID || got.Text != "hello" || got.Language != "en" || got.Provider != "groq" {
		t.Errorf("got %+v", got)
	}
	if d := got.CreatedAt.Sub(saved.CreatedAt); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("created_at drifted by %v", d)
	}
}

func TestSaveReplacesSameDigest(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	s.Save(ctx, Record{Digest: "abc", Provider: "groq", Text: "first"})
	s.Save(ctx, Record{Digest: "abc", Provider: "deepgram", Text: "second"})

	got, err := s.Lookup(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "second" || got.Provider != "deepgram" {
		t.Errorf("got %+v", got)
	}
	recent, _ := s.Recent(ctx, 10)
	if len(recent) != 1 {
		t.Errorf("got %d rows, want 1", len(recent))
	}
}

func TestRecentOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, d := range []string{"a", "b", "c"} {
		if _, err := s.Save(ctx, Record{Digest: d, Provider: "fake", Text: d, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Digest != "c" || recent[1].Digest != "b" {
		t.Errorf("recent = %+v", recent)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vox.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Save(context.Background(), Record{Digest: "abc", Provider: "fake", Text: "kept"})
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Lookup(context.Background(), "abc")
	if err != nil || got.Text != "kept" {
		t.Errorf("got %+v, %v", got, err)
	}
}
