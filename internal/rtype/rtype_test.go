package rtype

import "testing"

func TestZeroValueIsVague(t *testing.T) {
	var t0 RuntimeType
	if !t0.Vague {
		t.Fatal("zero-value RuntimeType must be Vague")
	}
	if !t0.Valid() {
		t.Fatal("Vague must be valid")
	}
}

func TestRefAlwaysCarriesInner(t *testing.T) {
	boxed := Boxed(Known(KindInt))
	if !boxed.Valid() {
		t.Fatal("Boxed(int) should be valid")
	}
	broken := RuntimeType{Kind: KindRef}
	if broken.Valid() {
		t.Fatal("a KindRef with nil Inner must be invalid")
	}
}

func TestSpecializedImpliesObject(t *testing.T) {
	ok := SpecializedObject(42)
	if !ok.Valid() {
		t.Fatal("a specialized object type should be valid")
	}
	broken := RuntimeType{Kind: KindInt, Specialized: true}
	if broken.Valid() {
		t.Fatal("Specialized=true on a non-object Kind must be invalid")
	}
}

func TestEqualRecursesThroughRef(t *testing.T) {
	a := Boxed(Known(KindInt))
	b := Boxed(Known(KindInt))
	c := Boxed(Known(KindString))
	if !a.Equal(b) {
		t.Fatal("expected equal boxed-int types")
	}
	if a.Equal(c) {
		t.Fatal("expected unequal boxed types with different inner kinds")
	}
}

func TestMaybeRefCounted(t *testing.T) {
	if Known(KindInt).MaybeRefCounted() {
		t.Fatal("int should never be refcounted")
	}
	if !Known(KindString).MaybeRefCounted() {
		t.Fatal("string may be refcounted")
	}
	if !Vague().MaybeRefCounted() {
		t.Fatal("vague must be treated as maybe-refcounted")
	}
}

func TestConstructBoxedPanicsOnDirectKnown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Known(KindRef) to panic")
		}
	}()
	Known(KindRef)
}
