package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

var errUnknownCommand = errors.New("unknown command")

// command describes one line of the script language
type command struct {
	Name  string
	Usage string
	Help  string
	run   func(in *interpreter, args string) error
}

var commands []command

func init() {
	commands = []command{
		{"set", "set <cell> <text>", "Set a cell; text starting with '=' is a formula", (*interpreter).set},
		{"clear", "clear <cell>", "Empty a cell", (*interpreter).clear},
		{"get", "get <cell>", "Print a cell's value", (*interpreter).get},
		{"text", "text <cell>", "Print a cell's text", (*interpreter).text},
		{"log", "log <cell>", "Print a cell's address and value", (*interpreter).log},
		{"size", "size", "Print the printable area as rows and columns", (*interpreter).size},
		{"print", "print values|texts", "Print the printable area", (*interpreter).print},
		{"deps", "deps <cell>", "Print every cell that depends on a cell", (*interpreter).deps},
		{"refs", "refs <cell>", "Print every cell a cell depends on", (*interpreter).refs},
		{"calc", "calc", "Evaluate every stale formula", (*interpreter).calc},
		{"help", "help", "List commands", (*interpreter).help},
	}
}

func lookupCommand(name string) *command {
	for i := range commands {
		if commands[i].Name == name {
			return &commands[i]
		}
	}
	return nil
}

// interpreter runs script commands against a single sheet
type interpreter struct {
	sheet  *spreadsheet.RunnableSheet
	out    io.Writer
	format string
	logger *slog.Logger
}

func newInterpreter(out io.Writer, cfg config, logger *slog.Logger) *interpreter {
	printLn := func(line string) {
		fmt.Fprintln(out, line)
	}
	opts := spreadsheet.Options{
		MaxEvalDepth: cfg.MaxDepth,
		Logger:       logger,
	}
	return &interpreter{
		sheet:  spreadsheet.NewRunnableSheetWithOptions(printLn, opts),
		out:    out,
		format: cfg.Format,
		logger: logger,
	}
}

// Run executes every line of r, stopping at the first failing command or at
// exit/quit
func (in *interpreter) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if isExitCommand(line) {
			return nil
		}
		if err := in.Exec(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

// Exec runs a single command line. blank lines and '#' comments do nothing.
// the sheet's error state is reset afterwards so one failure does not
// poison later commands
func (in *interpreter) Exec(line string) error {
	defer in.sheet.Reset()

	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || isExitCommand(line) {
		return nil
	}

	name, args := splitWord(line)
	cmd := lookupCommand(strings.ToLower(name))
	if cmd == nil {
		return fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
	in.logger.Debug("exec", "command", cmd.Name, "args", args)
	return cmd.run(in, args)
}

func (in *interpreter) set(args string) error {
	address, text := splitWord(args)
	if address == "" {
		return usageError("set")
	}
	return in.sheet.Set(address, text).Error()
}

func (in *interpreter) clear(args string) error {
	address, err := singleArg("clear", args)
	if err != nil {
		return err
	}
	return in.sheet.Clear(address).Error()
}

func (in *interpreter) get(args string) error {
	address, err := singleArg("get", args)
	if err != nil {
		return err
	}
	value := in.sheet.Value(address)
	if err := in.sheet.Error(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(in.out, spreadsheet.FormatPrimitive(value))
	return err
}

func (in *interpreter) text(args string) error {
	address, err := singleArg("text", args)
	if err != nil {
		return err
	}
	text := in.sheet.Text(address)
	if err := in.sheet.Error(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(in.out, text)
	return err
}

func (in *interpreter) log(args string) error {
	address, err := singleArg("log", args)
	if err != nil {
		return err
	}
	return in.sheet.Log(address).Error()
}

func (in *interpreter) size(args string) error {
	if args != "" {
		return usageError("size")
	}
	size := in.sheet.Sheet().PrintableSize()
	_, err := fmt.Fprintf(in.out, "%d %d\n", size.Rows, size.Cols)
	return err
}

func (in *interpreter) print(args string) error {
	var texts bool
	switch strings.ToLower(args) {
	case "values":
	case "texts":
		texts = true
	default:
		return usageError("print")
	}

	if in.format == formatTable {
		rows, err := in.sheet.Sheet().Rows(texts)
		if err != nil {
			return err
		}
		return writeTable(in.out, rows)
	}
	if texts {
		return in.sheet.PrintTexts(in.out).Error()
	}
	return in.sheet.PrintValues(in.out).Error()
}

func (in *interpreter) deps(args string) error {
	return in.printClosure("deps", args, in.sheet.Sheet().Dependents)
}

func (in *interpreter) refs(args string) error {
	return in.printClosure("refs", args, in.sheet.Sheet().Precedents)
}

func (in *interpreter) printClosure(name, args string, closure func(spreadsheet.Address) ([]spreadsheet.Address, error)) error {
	address, err := singleArg(name, args)
	if err != nil {
		return err
	}
	addr := spreadsheet.ParseAddress(address)
	if !addr.Valid() {
		return fmt.Errorf("%w: %q", spreadsheet.ErrInvalidPosition, address)
	}
	addrs, err := closure(addr)
	if err != nil {
		return err
	}
	names := make([]string, len(addrs))
	for i, a := range addrs {
		names[i] = a.String()
	}
	_, err = fmt.Fprintln(in.out, strings.Join(names, " "))
	return err
}

func (in *interpreter) calc(args string) error {
	if args != "" {
		return usageError("calc")
	}
	return in.sheet.Calculate().Error()
}

func (in *interpreter) help(string) error {
	out := bufio.NewWriter(in.out)
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-20s %s\n", cmd.Usage, cmd.Help)
	}
	return out.Flush()
}

func isExitCommand(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit":
		return true
	}
	return false
}

// splitWord splits off the first whitespace-delimited word. rest keeps its
// inner spacing
func splitWord(s string) (word, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

func singleArg(name, args string) (string, error) {
	word, rest := splitWord(args)
	if word == "" || rest != "" {
		return "", usageError(name)
	}
	return word, nil
}

func usageError(name string) error {
	return fmt.Errorf("usage: %s", lookupCommand(name).Usage)
}
