// Package command provides a text command interface over an editing session
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/thereceipt/receipt-studio/internal/session"
)

// Executor executes commands against one session
type Executor struct {
	sess *session.Session
}

// NewExecutor creates a new command executor
func NewExecutor(sess *session.Session) *Executor {
	return &Executor{sess: sess}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Err     error                  `json:"-"`
}

func fail(err error) *Result {
	return &Result{Success: false, Error: err.Error(), Err: err}
}

func usage(text string) *Result {
	return &Result{Success: false, Error: "usage: " + text}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(ctx context.Context, cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return &Result{
			Success: false,
			Error:   "empty command",
		}
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "show":
		return e.handleShow(args)
	case "add":
		return e.handleAdd(args)
	case "remove", "rm":
		return e.handleRemove(args)
	case "dup":
		return e.handleDuplicate(args)
	case "move", "mv":
		return e.handleMove(args)
	case "set":
		return e.handleSet(args)
	case "settings":
		return e.handleSettings(args)
	case "rename":
		return e.handleRename(args)
	case "reset":
		return e.handleReset(args)
	case "export":
		return e.handleExport(ctx, args)
	case "save":
		return e.handleSave(ctx, args)
	case "print":
		return e.handlePrint(ctx, args)
	case "jobs":
		return e.handleJobs(args)
	case "help":
		return e.handleHelp(args)
	default:
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("unknown command: %s. Type 'help' for available commands", command),
		}
	}
}

// parseCommand parses a command string into parts, handling quoted strings
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoted := false
	quoteChar := byte(0)

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		if char == '"' || char == '\'' {
			if !inQuotes {
				inQuotes = true
				quoted = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(char)
			}
		} else if char == ' ' && !inQuotes {
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
		} else {
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}

	return parts
}
