package probe

import (
	"errors"
	"fmt"
)

// Operation is one unit of work named on the command line.
type Operation int

const (
	OpRead Operation = iota
	OpWrite
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Options is the result of parsing a command line.
type Options struct {
	// Ops holds the requested operations in the order they appeared.
	Ops []Operation

	// Key and Value override the written field; the Set flags distinguish
	// an explicit empty string from an absent flag.
	Key      string
	KeySet   bool
	Value    string
	ValueSet bool

	UseEmulator bool
	Debug       bool
	ShowHelp    bool
}

// ParseArgs interprets args, the command line after the program name.
// "read" and "write" tokens are collected in order and flags may appear
// anywhere between them. The token following -k/--key or -v/--value is
// consumed as that flag's payload no matter what it looks like. Errors
// name the offending token and are suitable for showing verbatim.
func ParseArgs(args []string) (*Options, error) {
	opts := &Options{}
	nextIsKey := false
	nextIsValue := false

	for _, arg := range args {
		switch {
		case nextIsKey:
			opts.Key = arg
			opts.KeySet = true
			nextIsKey = false
		case nextIsValue:
			opts.Value = arg
			opts.ValueSet = true
			nextIsValue = false
		case arg == "read":
			opts.Ops = append(opts.Ops, OpRead)
		case arg == "write":
			opts.Ops = append(opts.Ops, OpWrite)
		case arg == "-k" || arg == "--key":
			nextIsKey = true
		case arg == "-v" || arg == "--value":
			nextIsValue = true
		case arg == "-e" || arg == "--emulator":
			opts.UseEmulator = true
		case arg == "-d" || arg == "--debug":
			opts.Debug = true
		case arg == "-h" || arg == "--help":
			opts.ShowHelp = true
		default:
			return nil, fmt.Errorf("invalid argument: %s (run with --help for help)", arg)
		}
	}

	switch {
	case nextIsKey:
		return nil, errors.New("expected argument after --key")
	case nextIsValue:
		return nil, errors.New("expected argument after --value")
	case len(opts.Ops) == 0 && !opts.ShowHelp:
		return nil, errors.New("no arguments specified; run with --help for help")
	}

	return opts, nil
}
