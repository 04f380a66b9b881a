package command

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Action performs the editor side effect of a matched command and returns
// the text to speak back.
type Action func(ctx context.Context, m Match) (string, error)

type Command struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
	Action      Action
}

// Match is a successful lookup. Groups holds the pattern's submatches,
// Groups[0] being the whole transcript match.
type Match struct {
	Command    *Command
	Transcript string
	Groups     []string
}

// Arg returns capture group i, or "" when the pattern has no such group.
func (m Match) Arg(i int) string {
	if i < 0 || i >= len(m.Groups) {
		return ""
	}
	return m.Groups[i]
}

type Listing struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
}

// Table is an ordered command list. Order is priority: Match returns the
// first registered command whose pattern matches.
type Table struct {
	commands []Command
}

func NewTable(cmds ...Command) *Table {
	return &Table{commands: append([]Command(nil), cmds...)}
}

// Compile builds a case-insensitive command.
func Compile(name, pattern, description string, action Action) (Command, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Command{}, fmt.Errorf("compile %s pattern %q: %w", name, pattern, err)
	}
	if action == nil {
		return Command{}, fmt.Errorf("command %s has no action", name)
	}
	return Command{
		Name:        name,
		Pattern:     re,
		Description: description,
		Action:      action,
	}, nil
}

func MustCompile(name, pattern, description string, action Action) Command {
	cmd, err := Compile(name, pattern, description, action)
	if err != nil {
		panic(err)
	}
	return cmd
}

// Match does not trim or otherwise normalize the transcript.
func (t *Table) Match(transcript string) (Match, bool) {
	for i := range t.commands {
		cmd := &t.commands[i]
		groups := cmd.Pattern.FindStringSubmatch(transcript)
		if groups == nil {
			continue
		}
		return Match{Command: cmd, Transcript: transcript, Groups: groups}, true
	}
	return Match{}, false
}

// List reports patterns without the case-insensitivity prefix added by Compile.
func (t *Table) List() []Listing {
	out := make([]Listing, 0, len(t.commands))
	for _, cmd := range t.commands {
		src := strings.TrimPrefix(cmd.Pattern.String(), "(?i)")
		out = append(out, Listing{Pattern: src, Description: cmd.Description})
	}
	return out
}

func (t *Table) Len() int {
	return len(t.commands)
}
