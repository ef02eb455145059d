//go:build debug_asm

package amd64debug

import "testing"

func TestCheckRet(t *testing.T) {
	if err := CheckRet(); err != nil {
		t.Fatal(err)
	}
}
