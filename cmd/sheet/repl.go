package main

import (
	"fmt"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// formulaBreaks are the characters after which a function name can start
const formulaBreaks = "=+-*/(,"

func runRepl(interp *interpreter) {
	fmt.Fprintln(interp.out, "sheet: type 'help' for commands, 'exit' to quit")

	p := prompt.New(
		func(line string) {
			if err := interp.Exec(line); err != nil {
				fmt.Fprintf(interp.out, "error: %v\n", err)
			}
		},
		func(d prompt.Document) []prompt.Suggest {
			return suggest(d.TextBeforeCursor())
		},
		prompt.OptionTitle("sheet"),
		prompt.OptionPrefix("sheet> "),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && isExitCommand(in)
		}),
	)
	p.Run()
}

// suggest completes the word before the cursor: a command name at the start
// of the line, the print mode after print, and function names inside a
// formula
func suggest(before string) []prompt.Suggest {
	name, rest := splitWord(before)
	if name == "" {
		return nil
	}
	if !strings.ContainsAny(strings.TrimLeft(before, " \t"), " \t") {
		return prompt.FilterHasPrefix(commandSuggestions(), name, true)
	}

	word := lastWord(before)
	switch strings.ToLower(name) {
	case "print":
		return prompt.FilterHasPrefix([]prompt.Suggest{
			{Text: "values", Description: "Print cell values"},
			{Text: "texts", Description: "Print cell texts"},
		}, word, true)
	case "set":
		if _, text := splitWord(rest); !strings.HasPrefix(text, "=") {
			return nil
		}
		return functionSuggestions(word)
	}
	return nil
}

func commandSuggestions() []prompt.Suggest {
	suggestions := make([]prompt.Suggest, 0, len(commands)+1)
	for _, cmd := range commands {
		suggestions = append(suggestions, prompt.Suggest{Text: cmd.Name, Description: cmd.Help})
	}
	return append(suggestions, prompt.Suggest{Text: "exit", Description: "Leave the shell"})
}

// functionSuggestions offers builtin names for the identifier at the end of
// word. each suggestion replaces the whole word, so it keeps the formula text
// before the identifier
func functionSuggestions(word string) []prompt.Suggest {
	cut := strings.LastIndexAny(word, formulaBreaks) + 1
	head, ident := word[:cut], strings.ToUpper(word[cut:])
	if ident == "" {
		return nil
	}

	var suggestions []prompt.Suggest
	for _, name := range spreadsheet.BuiltinFunctionNames() {
		if strings.HasPrefix(name, ident) {
			suggestions = append(suggestions, prompt.Suggest{Text: head + name + "(", Description: name})
		}
	}
	return suggestions
}

// lastWord returns the text after the last space, matching how the prompt
// replaces a word on completion
func lastWord(s string) string {
	return s[strings.LastIndexAny(s, " \t")+1:]
}
