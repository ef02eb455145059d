package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
)

// dumpMagic and dumpVersion tag the binary dump format: a single binary
// stream holding every record (no separate main/cold dumps and no text
// index are written); a version mismatch is treated as stale, matching the teacher's own
// cache-staleness handling (engine_cache.go's wazeroMagic/wazeroVersion
// header check) rather than attempting cross-version decode.
const (
	dumpMagic   = "TLJIT"
	dumpVersion = 1
)

// Dump writes every TranslationRec currently published in c to w, in the
// same header-then-records shape as the teacher's serializeCodes:
// magic, version, record count, then one (key, stack-ceil, code-length,
// code) tuple per record.
func Dump(c *Cache, w io.Writer) error {
	c.mu.RLock()
	var recs []*TranslationRec
	for _, r := range c.records {
		recs = append(recs, r.Translations()...)
	}
	c.mu.RUnlock()

	buf := &bytes.Buffer{}
	buf.WriteString(dumpMagic)
	buf.WriteByte(dumpVersion)
	writeU32(buf, uint32(len(recs)))
	for _, rec := range recs {
		writeU32(buf, uint32(rec.Key.Func))
		writeU32(buf, uint32(rec.Key.Offset))
		writeU64(buf, rec.StackPointerCeil)
		writeU64(buf, uint64(len(rec.Code)))
		buf.Write(rec.Code)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// DumpedRecord is one translation read back by Load, detached from any
// live Cache (cmd/tldump inspects these directly, without a code-cache
// arena backing them).
type DumpedRecord struct {
	Key              sourcekey.SourceKey
	StackPointerCeil uint64
	CodeLength       int
}

// Load reads back the header and per-record metadata Dump wrote,
// without mmapping the code bytes (cmd/tldump only ever inspects
// metadata offline; internal/engine reloads real translations by
// retranslating, not by replaying a dump, since a dump's code bytes are
// only valid for the process and code-cache layout that produced them).
func Load(r io.Reader) ([]DumpedRecord, error) {
	header := make([]byte, len(dumpMagic)+1+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("cache: reading dump header: %w", err)
	}
	if string(header[:len(dumpMagic)]) != dumpMagic {
		return nil, fmt.Errorf("cache: bad dump magic")
	}
	if header[len(dumpMagic)] != dumpVersion {
		return nil, fmt.Errorf("cache: dump version %d unsupported (want %d)", header[len(dumpMagic)], dumpVersion)
	}
	count := binary.LittleEndian.Uint32(header[len(dumpMagic)+1:])

	out := make([]DumpedRecord, 0, count)
	var u32buf [4]byte
	var u64buf [8]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, u32buf[:]); err != nil {
			return nil, fmt.Errorf("cache: reading func id: %w", err)
		}
		fn := binary.LittleEndian.Uint32(u32buf[:])
		if _, err := io.ReadFull(r, u32buf[:]); err != nil {
			return nil, fmt.Errorf("cache: reading offset: %w", err)
		}
		off := binary.LittleEndian.Uint32(u32buf[:])
		if _, err := io.ReadFull(r, u64buf[:]); err != nil {
			return nil, fmt.Errorf("cache: reading stack ceil: %w", err)
		}
		ceil := binary.LittleEndian.Uint64(u64buf[:])
		if _, err := io.ReadFull(r, u64buf[:]); err != nil {
			return nil, fmt.Errorf("cache: reading code length: %w", err)
		}
		codeLen := binary.LittleEndian.Uint64(u64buf[:])
		if _, err := io.CopyN(io.Discard, r, int64(codeLen)); err != nil {
			return nil, fmt.Errorf("cache: skipping code bytes: %w", err)
		}
		out = append(out, DumpedRecord{
			Key:              sourcekey.New(sourcekey.FuncID(fn), sourcekey.Offset(off)),
			StackPointerCeil: ceil,
			CodeLength:       int(codeLen),
		})
	}
	return out, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
