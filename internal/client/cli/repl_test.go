package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
	bursts   []int
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) SignIn(ctx context.Context) error {
	f.calls = append(f.calls, "signin")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Account(ctx context.Context) error {
	f.calls = append(f.calls, "account")
	return nil
}
func (f *fakeExec) Burst(ctx context.Context, n int) error {
	f.calls = append(f.calls, "burst")
	f.bursts = append(f.bursts, n)
	return nil
}
func (f *fakeExec) Status(ctx context.Context) error {
	f.calls = append(f.calls, "status")
	return nil
}
func (f *fakeExec) Refresh(ctx context.Context) error {
	f.calls = append(f.calls, "refresh")
	return errors.New("ignored by the loop")
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}

func silence(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, len(a))
		for i, v := range a {
			parts[i], _ = v.(string)
		}
		printed = append(printed, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func TestRunREPL_Commands(t *testing.T) {
	silence(t)

	input := strings.Join([]string{
		"help",
		"signin",
		"help",
		"",
		"account",
		"burst",
		"burst 12",
		"burst nope",
		"status",
		"refresh",
		"foobar",
		"logout",
		"exit",
		"account",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, rdr(input))

	want := []string{"signin", "account", "burst", "burst", "status", "refresh", "logout"}
	if diff := cmp.Diff(want, exec.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{defaultBurst, 12}, exec.bursts); diff != "" {
		t.Fatalf("burst sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestRunREPL_UnknownAndQuit(t *testing.T) {
	printed := silence(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, rdr("get\nquit\n"))

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
	joined := strings.Join(*printed, "\n")
	if !strings.Contains(joined, "Unknown command: get") || !strings.Contains(joined, "Bye!") {
		t.Fatalf("unexpected output: %q", joined)
	}
}

func TestRunREPL_LastLineWithoutNewline(t *testing.T) {
	silence(t)

	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "s" }, rdr("status"))

	if diff := cmp.Diff([]string{"status"}, exec.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRunREPL_CancelledContext(t *testing.T) {
	silence(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, rdr("status\n"))

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
