package arbor

import (
	"errors"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestRegisterRoutine(t *testing.T) {
	if err := RegisterRoutine("reexec-test-worker", payloadRoutine); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := RegisterRoutine("reexec-test-worker", payloadRoutine); !errors.Is(err, domain.ErrDuplicateFrameName) {
		t.Fatalf("duplicate register: got %v", err)
	}
	if err := RegisterRoutine("bad name", payloadRoutine); !errors.Is(err, domain.ErrFrameName) {
		t.Fatalf("invalid name: got %v", err)
	}
	if err := RegisterRoutine("reexec-test-nil", nil); !errors.Is(err, domain.ErrRoutineNotRegistered) {
		t.Fatalf("nil routine: got %v", err)
	}
}

func TestMainIsNoopInParent(t *testing.T) {
	handled, err := Main()
	if handled || err != nil {
		t.Fatalf("parent main: handled=%v err=%v", handled, err)
	}
}
