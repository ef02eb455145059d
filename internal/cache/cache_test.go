package cache

import (
	"bytes"
	"testing"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
)

func TestPublishPublishesTop(t *testing.T) {
	c := New()
	key := sourcekey.New(1, 0)
	rec, err := c.Publish(key, []byte{0x90, 0x90}, 4)
	if err != nil {
		t.Fatal(err)
	}
	top, ok := c.Lookup(key)
	if !ok || top != rec {
		t.Fatal("expected the just-published translation to be top")
	}
}

func TestPublishRespectsTranslationLimit(t *testing.T) {
	c := New()
	key := sourcekey.New(1, 0)
	r := c.RecordFor(key)
	r.MaxTranslations = 2

	if _, err := c.Publish(key, []byte{1}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Publish(key, []byte{2}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Publish(key, []byte{3}, 0); err == nil {
		t.Fatal("expected the third publish to exceed the translation limit")
	}
}

func TestAddIncomingIsIdempotent(t *testing.T) {
	rec := &TranslationRec{}
	if !rec.AddIncoming(0x1000) {
		t.Fatal("expected the first AddIncoming to succeed")
	}
	if rec.AddIncoming(0x1000) {
		t.Fatal("expected a duplicate AddIncoming to report false")
	}
	if len(rec.IncomingSites()) != 1 {
		t.Fatal("expected exactly one recorded incoming site")
	}
}

func TestDumpAndLoadRoundTripsMetadata(t *testing.T) {
	c := New()
	k1 := sourcekey.New(1, 0)
	k2 := sourcekey.New(2, 10)
	if _, err := c.Publish(k1, []byte{0xc3}, 8); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Publish(k2, []byte{0x90, 0x90, 0xc3}, 16); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Dump(c, &buf); err != nil {
		t.Fatal(err)
	}

	recs, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 dumped records, got %d", len(recs))
	}
	seen := map[sourcekey.SourceKey]DumpedRecord{}
	for _, r := range recs {
		seen[r.Key] = r
	}
	if r, ok := seen[k1]; !ok || r.CodeLength != 1 || r.StackPointerCeil != 8 {
		t.Fatalf("k1 round-trip mismatch: %+v", r)
	}
	if r, ok := seen[k2]; !ok || r.CodeLength != 3 || r.StackPointerCeil != 16 {
		t.Fatalf("k2 round-trip mismatch: %+v", r)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("garbage header data here")))
	if err == nil {
		t.Fatal("expected an error for a non-dump input")
	}
}
