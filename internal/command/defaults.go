package command

import (
	"context"
	"fmt"
	"strings"
)

// Editor is the host editor surface command actions drive.
type Editor interface {
	ExecuteCommand(ctx context.Context, id string, args ...any) error
	ShowInformation(ctx context.Context, text string) error
}

// editorAction runs one editor command and answers with a fixed reply.
func editorAction(ed Editor, id, reply string) Action {
	return func(ctx context.Context, _ Match) (string, error) {
		if err := ed.ExecuteCommand(ctx, id); err != nil {
			return "", fmt.Errorf("%s: %w", id, err)
		}
		return reply, nil
	}
}

func builtins(ed Editor) []Command {
	return []Command{
		MustCompile("open-file", `^open file$`, "Opens the file dialog",
			editorAction(ed, "workbench.action.files.openFile", "Opening file dialog")),
		MustCompile("save", `^save( file)?$`, "Saves the current file",
			editorAction(ed, "workbench.action.files.save", "File saved")),
		MustCompile("save-all", `^save all( files)?$`, "Saves all open files",
			editorAction(ed, "workbench.action.files.saveAll", "All files saved")),
		MustCompile("goto-line", `^go to line (\d+)$`, "Opens the go to line dialog",
			func(ctx context.Context, m Match) (string, error) {
				if err := ed.ExecuteCommand(ctx, "workbench.action.gotoLine"); err != nil {
					return "", fmt.Errorf("workbench.action.gotoLine: %w", err)
				}
				return "Go to line " + m.Arg(1), nil
			}),
		MustCompile("find", `^find$`, "Opens the find dialog",
			editorAction(ed, "actions.find", "Opening find dialog")),
		MustCompile("search", `^search$`, "Opens the search dialog",
			editorAction(ed, "workbench.action.findInFiles", "Opening search dialog")),
		MustCompile("undo", `^undo$`, "Undoes the last action",
			editorAction(ed, "undo", "Undoing last action")),
		MustCompile("redo", `^redo$`, "Redoes the last action",
			editorAction(ed, "redo", "Redoing last action")),
	}
}

// Defaults returns the built-in editor command table.
func Defaults(ed Editor) *Table {
	return Build(ed, true, nil)
}

// Build assembles the table: built-ins (when enabled), then extra, then
// list-commands, which always answers with the final table.
func Build(ed Editor, withBuiltins bool, extra []Command) *Table {
	t := &Table{}
	if withBuiltins {
		t.commands = append(t.commands, builtins(ed)...)
	}
	t.commands = append(t.commands, extra...)
	t.commands = append(t.commands, MustCompile("list-commands", `^list commands$`,
		"Lists all available voice commands",
		func(ctx context.Context, _ Match) (string, error) {
			if err := ed.ShowInformation(ctx, "Available voice commands:"); err != nil {
				return "", err
			}
			if err := ed.ShowInformation(ctx, FormatListing(t.List())); err != nil {
				return "", err
			}
			return "Here are the available voice commands", nil
		}))
	return t
}

func FormatListing(list []Listing) string {
	lines := make([]string, 0, len(list))
	for _, l := range list {
		lines = append(lines, fmt.Sprintf("\"%s\": %s", l.Pattern, l.Description))
	}
	return strings.Join(lines, "\n")
}
