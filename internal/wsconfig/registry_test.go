package wsconfig

import (
	"testing"

	"github.com/tessera-io/wscore/wsframe"
	"github.com/tessera-io/wscore/wscore"
)

func testDirective(path string) Directive {
	return Directive{
		Path: path,
		Descriptor: wscore.Descriptor{
			APIVersion: wscore.APIVersion1,
			OnMessage:  func(any, *wscore.Server, wsframe.Opcode, []byte) int { return 0 },
		},
	}
}

func TestRegistry_BindRejectsDuplicatePath(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind(testDirective("/echo")); err != nil {
		t.Fatalf("first Bind: %v", err)
	}
	if err := r.Bind(testDirective("/echo")); err == nil {
		t.Fatal("second Bind on the same path: want error, got nil")
	}
}

func TestRegistry_AcquireUnknownPathFails(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Acquire("/nope"); ok {
		t.Fatal("Acquire on unbound path: want ok=false")
	}
}

func TestRegistry_AcquireReleaseRefCounting(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind(testDirective("/echo")); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	if got := r.RefCount("/echo"); got != 0 {
		t.Fatalf("RefCount before Acquire = %d, want 0", got)
	}

	if _, ok := r.Acquire("/echo"); !ok {
		t.Fatal("Acquire: want ok=true")
	}
	if _, ok := r.Acquire("/echo"); !ok {
		t.Fatal("second Acquire: want ok=true")
	}
	if got := r.RefCount("/echo"); got != 2 {
		t.Fatalf("RefCount after two Acquires = %d, want 2", got)
	}

	r.Release("/echo")
	if got := r.RefCount("/echo"); got != 1 {
		t.Fatalf("RefCount after one Release = %d, want 1", got)
	}

	r.Release("/echo")
	if got := r.RefCount("/echo"); got != 0 {
		t.Fatalf("RefCount after releasing to zero = %d, want 0", got)
	}

	// Releasing an already-zero count must not go negative.
	r.Release("/echo")
	if got := r.RefCount("/echo"); got != 0 {
		t.Fatalf("RefCount after over-release = %d, want 0", got)
	}
}

func TestRegistry_ReleaseUnknownPathIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Release("/never-bound") // must not panic
}

func TestRegistry_UnloadBlocksFutureAcquiresButNotExisting(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind(testDirective("/echo")); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	if _, ok := r.Acquire("/echo"); !ok {
		t.Fatal("Acquire before Unload: want ok=true")
	}

	r.Unload("/echo")

	if _, ok := r.Acquire("/echo"); ok {
		t.Fatal("Acquire after Unload: want ok=false")
	}
	// The reference already held before Unload is untouched.
	if got := r.RefCount("/echo"); got != 1 {
		t.Fatalf("RefCount after Unload = %d, want 1 (existing session still holds it)", got)
	}
}

func TestRegistry_UnloadUnknownPathIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unload("/never-bound") // must not panic
}
