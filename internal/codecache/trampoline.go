package codecache

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
)

// Trampoline is one small thunk redirecting a call to a helper whose address
// is farther than a 32-bit relative displacement can reach (spec.md §4.1
// "Trampolines", §6 "Trampoline arena"): movabs imm64, scratch; jmp scratch;
// ud2. The ud2 is unreachable padding that turns a falls-through-by-mistake
// bug into an immediate illegal-instruction fault instead of silently
// executing whatever bytes happen to follow in the arena.
type Trampoline struct {
	Name   string
	Target uintptr
	Addr   uintptr
	hits   uint64
}

// Hit increments the optional per-trampoline call counter (spec.md §4.1:
// "Hot helpers are counted via an optional per-trampoline counter for
// profiling"). The emitted thunk (trampolineBytes) does not touch the
// counter; it only advances when Go code calls Hit directly.
func (t *Trampoline) Hit() { atomic.AddUint64(&t.hits, 1) }

// Hits returns the current hit count.
func (t *Trampoline) Hits() uint64 { return atomic.LoadUint64(&t.hits) }

// trampolineBytes returns movabs $target, %rax; jmp *%rax; ud2.
func trampolineBytes(target uintptr) []byte {
	b := make([]byte, 0, 14)
	b = append(b, 0x48, 0xB8) // REX.W + MOVABS rax, imm64
	var imm [8]byte
	binary.LittleEndian.PutUint64(imm[:], uint64(target))
	b = append(b, imm[:]...)
	b = append(b, 0xFF, 0xE0) // JMP rax
	b = append(b, 0x0F, 0x0B) // UD2
	return b
}

// Arena is the fixed-size thunk arena: one Trampoline per distinct helper
// address, allocated on first request so repeated calls to the same helper
// share a thunk (spec.md §3 "Code cache": "trampolines (fixed-size thunks
// to far helpers)").
type Arena struct {
	mu    sync.Mutex
	seg   *mmapSegment
	byPtr map[uintptr]*Trampoline
}

// NewArena allocates a trampoline arena of the given byte size.
func NewArena(size int) (*Arena, error) {
	seg, err := newMmapSegment(size)
	if err != nil {
		return nil, err
	}
	return &Arena{seg: seg, byPtr: map[uintptr]*Trampoline{}}, nil
}

// Get returns the trampoline for target, allocating and emitting it on
// first use.
func (a *Arena) Get(name string, target uintptr) (*Trampoline, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.byPtr[target]; ok {
		return t, nil
	}
	code := trampolineBytes(target)
	addr, err := a.seg.write(code)
	if err != nil {
		return nil, fmt.Errorf("codecache: trampoline arena exhausted: %w", err)
	}
	t := &Trampoline{Name: name, Target: target, Addr: addr}
	a.byPtr[target] = t
	return t, nil
}

// Close releases the arena's backing mapping.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seg.close()
}

// mmapSegment is a tiny bump allocator over a single RWX mapping, used for
// the trampoline arena where entries are never individually freed (spec.md
// §3: "the bytes are never freed — a treadmill drains outstanding requests
// before references are dropped").
type mmapSegment struct {
	mem []byte
	off int
}

func newMmapSegment(size int) (*mmapSegment, error) {
	mem, err := MmapCodeSegment(size)
	if err != nil {
		return nil, err
	}
	return &mmapSegment{mem: mem}, nil
}

func (s *mmapSegment) write(b []byte) (uintptr, error) {
	if s.off+len(b) > len(s.mem) {
		return 0, fmt.Errorf("codecache: segment full (cap=%d)", len(s.mem))
	}
	copy(s.mem[s.off:], b)
	addr := addrOf(s.mem[s.off:])
	s.off += len(b)
	return addr, nil
}

func (s *mmapSegment) close() error {
	return MunmapCodeSegment(s.mem)
}
