package command

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileSpec struct {
	Commands []entrySpec `yaml:"commands"`
}

type entrySpec struct {
	Name          string `yaml:"name"`
	Pattern       string `yaml:"pattern"`
	Description   string `yaml:"description"`
	EditorCommand string `yaml:"editor_command"`
	Reply         string `yaml:"reply"`
}

// LoadFile reads user-defined commands. Each entry maps a pattern to one
// editor command. A blank path or a missing file yields no commands.
func LoadFile(path string, ed Editor) ([]Command, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read commands file %q: %w", path, err)
	}

	return parseFile(data, ed)
}

func parseFile(data []byte, ed Editor) ([]Command, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse commands file: %w", err)
	}

	cmds := make([]Command, 0, len(spec.Commands))
	for i, e := range spec.Commands {
		if e.Pattern == "" || e.EditorCommand == "" {
			return nil, fmt.Errorf("command %d: pattern and editor_command are required", i+1)
		}
		name := e.Name
		if name == "" {
			name = e.EditorCommand
		}
		reply := e.Reply
		if reply == "" {
			reply = "Done"
		}
		cmd, err := Compile(name, e.Pattern, e.Description, editorAction(ed, e.EditorCommand, reply))
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
