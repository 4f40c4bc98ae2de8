package thread

import (
	"testing"
	"time"
)

func TestLifecycle(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	th := New("worker", func() {
		close(started)
		<-release
	})
	if th.IsAlive() {
		t.Fatal("thread alive before Start")
	}
	if err := th.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	if !th.IsAlive() {
		t.Fatal("thread not alive after Start returned and run body is blocked")
	}
	close(release)
	th.Join()
	if th.IsAlive() {
		t.Fatal("thread still alive after run body returned")
	}
}

func TestJoinTimeout(t *testing.T) {
	release := make(chan struct{})
	th := New("slow", func() { <-release })
	th.Start()
	if th.JoinTimeout(20 * time.Millisecond) {
		t.Fatal("JoinTimeout reported completion while run body still blocked")
	}
	close(release)
	if !th.JoinTimeout(time.Second) {
		t.Fatal("JoinTimeout reported timeout after run body returned")
	}
}

func TestPriorityClamp(t *testing.T) {
	th := New("t", nil)
	th.SetPriority(MinPriority - 100)
	if got := th.GetPriority(); got != MinPriority {
		t.Fatalf("low clamp: got %d want %d", got, MinPriority)
	}
	th.SetPriority(MaxPriority + 100)
	if got := th.GetPriority(); got != MaxPriority {
		t.Fatalf("high clamp: got %d want %d", got, MaxPriority)
	}
}

func TestStackSizeClamp(t *testing.T) {
	th := New("t", nil)
	if status := th.SetStackSize(1); status != 0 {
		t.Fatalf("SetStackSize(1) status = %d, want 0", status)
	}
	if got := th.GetStackSize(); got != platformMinStackSize {
		t.Fatalf("GetStackSize() = %d, want clamp to %d", got, platformMinStackSize)
	}
	if status := th.SetStackSize(-1); status == 0 {
		t.Fatal("SetStackSize(-1) should report non-zero status")
	}
}

func TestNameAccessors(t *testing.T) {
	th := New("alpha", nil)
	if got := th.GetName(); got != "alpha" {
		t.Fatalf("GetName() = %q, want alpha", got)
	}
	th.SetName("beta")
	if got := th.GetName(); got != "beta" {
		t.Fatalf("GetName() = %q, want beta", got)
	}
}
