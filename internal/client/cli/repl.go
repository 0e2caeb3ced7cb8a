package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

const defaultBurst = 5

// execIface is the command surface the REPL needs. *App satisfies it; tests
// provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	SignIn(ctx context.Context) error
	Account(ctx context.Context) error
	Burst(ctx context.Context, n int) error
	Status(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a
// until EOF, "exit" or "quit", or ctx is cancelled.
//
//	Signed out:
//	  - help           show available commands
//	  - signin         sign in (password, then MFA code if asked)
//	  - status         show the session state
//	  - exit | quit    leave the program
//
//	Signed in, additionally:
//	  - account        show account details
//	  - burst [n]      fetch the account n times concurrently
//	  - refresh        renew the access token now
//	  - logout         sign out
//
// Command errors are reported by the handlers themselves; the loop only
// keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("sk %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: account, burst [n], status, refresh, logout, exit")
			} else {
				printlnFn("Available commands: signin, status, exit")
			}

		case "signin", "login":
			_ = a.SignIn(ctx)

		case "status":
			_ = a.Status(ctx)

		case "account":
			_ = a.Account(ctx)

		case "burst":
			n := defaultBurst
			if len(args) > 0 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v <= 0 {
					printlnFn("Usage: burst [n]")
					continue
				}
				n = v
			}
			_ = a.Burst(ctx, n)

		case "refresh":
			_ = a.Refresh(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
