package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error

	Add(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Practice(ctx context.Context, args []string) error
	Archive(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Audio(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
}

type command func(ctx context.Context, args []string) error

// recordCommands maps the commands available after login to their handlers.
func recordCommands(a execIface) map[string]command {
	return map[string]command{
		"add":      a.Add,
		"l":        a.List,
		"list":     a.List,
		"show":     a.Show,
		"edit":     a.Edit,
		"practice": a.Practice,
		"p":        a.Practice,
		"archive":  a.Archive,
		"restore":  a.Restore,
		"delete":   a.Delete,
		"audio":    a.Audio,
		"sync":     a.Sync,
		"status":   a.Status,
	}
}

// runREPL starts a simple read–eval–print loop for the habitsync CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a' with the remaining tokens as
// arguments. The loop exits on scanner EOF or when the user types "exit"
// or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help              show available commands
//	  - register          create an account
//	  - login             authenticate
//	  - exit | quit       leave the program
//
//	Logged in:
//	  - add               add an affirmation
//	  - (l)ist [all]      list records, "all" includes archived
//	  - show <id>         show a single record
//	  - edit <id>         change text and target
//	  - (p)ractice <id>   count one repetition
//	  - archive <id>      hide a record from the list
//	  - restore <id>      bring an archived record back
//	  - delete <id>       delete a record everywhere
//	  - audio <id> <path> attach an audio file
//	  - sync              synchronize with the server now
//	  - status            show sync status
//	  - logout            log out
//
// Handler errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	commands := recordCommands(a)

	for {
		printlnFn(fmt.Sprintf("hs> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: add, (l)ist [all], show, edit, (p)ractice, archive, restore, delete, audio, sync, status, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			handler, ok := commands[cmd]
			switch {
			case !ok:
				printlnFn("Unknown command:", cmd)
			case !a.isLoggedIn():
				printlnFn("Please login first")
			default:
				err = handler(ctx, args)
			}
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
