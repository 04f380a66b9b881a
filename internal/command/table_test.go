package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEditor struct {
	mu       sync.Mutex
	executed []string
	infos    []string
	failOn   string
}

func (f *fakeEditor) ExecuteCommand(_ context.Context, id string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.failOn {
		return errors.New("boom")
	}
	f.executed = append(f.executed, id)
	return nil
}

func (f *fakeEditor) ShowInformation(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, text)
	return nil
}

func noop(context.Context, Match) (string, error) { return "", nil }

func TestMatchReturnsFirstRegistered(t *testing.T) {
	t.Parallel()

	table := NewTable(
		MustCompile("specific", `^save all$`, "", noop),
		MustCompile("general", `^save`, "", noop),
	)

	m, ok := table.Match("save all")
	require.True(t, ok)
	assert.Equal(t, "specific", m.Command.Name)

	m, ok = table.Match("save now")
	require.True(t, ok)
	assert.Equal(t, "general", m.Command.Name)
}

func TestMatchNoMatch(t *testing.T) {
	t.Parallel()

	_, ok := Defaults(&fakeEditor{}).Match("what does this function do")
	assert.False(t, ok)
}

func TestMatchDoesNotTrim(t *testing.T) {
	t.Parallel()

	table := Defaults(&fakeEditor{})
	_, ok := table.Match(" save ")
	assert.False(t, ok)
}

func TestMatchCaseInsensitive(t *testing.T) {
	t.Parallel()

	m, ok := Defaults(&fakeEditor{}).Match("Save All Files")
	require.True(t, ok)
	assert.Equal(t, "save-all", m.Command.Name)
}

func TestDefaultsMatchEveryRule(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"open file":      "open-file",
		"save":           "save",
		"save file":      "save",
		"save all":       "save-all",
		"save all files": "save-all",
		"go to line 7":   "goto-line",
		"find":           "find",
		"search":         "search",
		"undo":           "undo",
		"redo":           "redo",
		"list commands":  "list-commands",
	}

	table := Defaults(&fakeEditor{})
	for transcript, want := range cases {
		m, ok := table.Match(transcript)
		if assert.True(t, ok, transcript) {
			assert.Equal(t, want, m.Command.Name, transcript)
		}
	}
}

func TestGotoLineCapture(t *testing.T) {
	t.Parallel()

	ed := &fakeEditor{}
	m, ok := Defaults(ed).Match("go to line 42")
	require.True(t, ok)
	assert.Equal(t, "42", m.Arg(1))
	assert.Equal(t, "", m.Arg(2))

	reply, err := m.Command.Action(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "Go to line 42", reply)
	assert.Equal(t, []string{"workbench.action.gotoLine"}, ed.executed)
}

func TestSaveActionReply(t *testing.T) {
	t.Parallel()

	ed := &fakeEditor{}
	m, ok := Defaults(ed).Match("save file")
	require.True(t, ok)

	reply, err := m.Command.Action(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "File saved", reply)
	assert.Equal(t, []string{"workbench.action.files.save"}, ed.executed)
}

func TestActionPropagatesEditorFailure(t *testing.T) {
	t.Parallel()

	ed := &fakeEditor{failOn: "undo"}
	m, ok := Defaults(ed).Match("undo")
	require.True(t, ok)

	_, err := m.Command.Action(context.Background(), m)
	assert.ErrorContains(t, err, "boom")
}

func TestListCommandsShowsTable(t *testing.T) {
	t.Parallel()

	ed := &fakeEditor{}
	table := Defaults(ed)
	m, ok := table.Match("list commands")
	require.True(t, ok)

	reply, err := m.Command.Action(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "Here are the available voice commands", reply)
	require.Len(t, ed.infos, 2)
	assert.Contains(t, ed.infos[1], `"^go to line (\d+)$": Opens the go to line dialog`)

	list := table.List()
	require.Len(t, list, 9)
	assert.Equal(t, "^open file$", list[0].Pattern)
	assert.Equal(t, "^list commands$", list[8].Pattern)
}

func TestCompileRejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := Compile("bad", `^(open`, "", noop)
	assert.Error(t, err)

	_, err = Compile("nil", `^x$`, "", nil)
	assert.Error(t, err)
}

func TestLoadFileAppendsCustomCommands(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "commands.yaml")
	content := `
commands:
  - name: terminal
    pattern: ^open terminal$
    description: Opens a terminal
    editor_command: workbench.action.terminal.new
    reply: Terminal opened
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ed := &fakeEditor{}
	extra, err := LoadFile(path, ed)
	require.NoError(t, err)
	require.Len(t, extra, 1)

	table := Build(ed, false, extra)
	assert.Equal(t, 2, table.Len())

	_, ok := table.Match("save")
	assert.False(t, ok)

	m, ok := table.Match("open terminal")
	require.True(t, ok)
	reply, err := m.Command.Action(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "Terminal opened", reply)
	assert.Equal(t, []string{"workbench.action.terminal.new"}, ed.executed)
}

func TestLoadFileMissingIsEmpty(t *testing.T) {
	t.Parallel()

	cmds, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), &fakeEditor{})
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestLoadFileRequiresEditorCommand(t *testing.T) {
	t.Parallel()

	_, err := parseFile([]byte("commands:\n  - pattern: ^x$\n"), &fakeEditor{})
	assert.ErrorContains(t, err, "editor_command")
}
