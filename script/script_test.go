package script

import "testing"

func TestRegistryAddCallRemove(t *testing.T) {
	r := NewRegistry()
	r.Add("echo", Func(func(names, values []string) string {
		out := ""
		n := len(names)
		if len(values) < n {
			n = len(values)
		}
		for i := 0; i < n; i++ {
			out += names[i] + "=" + values[i] + ";"
		}
		return out
	}))

	got, err := r.Call("echo", []string{"x", "y"}, []string{"0.5", "-0.1"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if want := "x=0.5;y=-0.1;"; got != want {
		t.Fatalf("Call() = %q, want %q", got, want)
	}

	r.Remove("echo")
	if _, err := r.Call("echo", nil, nil); err == nil {
		t.Fatal("expected an error calling a removed script")
	}
}

func TestCallUnknownScript(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Call("missing", nil, nil); err == nil {
		t.Fatal("expected an error calling an unregistered script")
	}
}

func TestCallMismatchedArgLengths(t *testing.T) {
	r := NewRegistry()
	r.Add("count", Func(func(names, values []string) string {
		n := len(names)
		if len(values) < n {
			n = len(values)
		}
		if n != 1 {
			t.Fatalf("handler saw %d matched pairs, want 1", n)
		}
		return ""
	}))
	if _, err := r.Call("count", []string{"a", "b"}, []string{"1"}); err != nil {
		t.Fatalf("Call: %v", err)
	}
}
