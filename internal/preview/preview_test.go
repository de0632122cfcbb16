package preview

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/ui"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"jsx", "Here:\n\n```jsx\nexport default () => <b/>;\n```\n", "export default () => <b/>;", true},
		{"tsx", "```tsx\n  const a: number = 1;  \n```", "const a: number = 1;", true},
		{"javascript", "```javascript\nconsole.log(1)\n```", "console.log(1)", true},
		{"react upper case", "```React\n<App/>\n```", "<App/>", true},
		{"first match wins", "```python\nprint(1)\n```\n\n```jsx\n<A/>\n```\n\n```jsx\n<B/>\n```", "<A/>", true},
		{"other language", "```go\nfunc main() {}\n```", "", false},
		{"no fence", "just `inline` code", "", false},
		{"empty block", "```jsx\n```", "", false},
		{"inside list", "- item\n\n  ```jsx\n  <Nested/>\n  ```\n", "<Nested/>", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractCode(tc.content)
			if ok != tc.ok || got != tc.want {
				t.Errorf("ExtractCode()=(%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestTrackerKeyedByTurnIndex(t *testing.T) {
	reply := "```jsx\n<Same/>\n```"
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "a"},
		{Role: conversation.RoleAssistant, Content: reply},
		{Role: conversation.RoleUser, Content: "again"},
		{Role: conversation.RoleAssistant, Content: reply},
	}
	tr := NewTracker()

	if !tr.Toggle(turns, 1) {
		t.Fatal("expected turn 1 to open")
	}
	if tr.IsOpen(3) {
		t.Fatal("identical content must not open a second preview")
	}
	if !tr.Toggle(turns, 3) {
		t.Fatal("expected turn 3 to open")
	}
	if tr.IsOpen(1) {
		t.Fatal("opening turn 3 must close turn 1")
	}
	if tr.Toggle(turns, 3) {
		t.Fatal("toggling the open preview must close it")
	}
	if _, open := tr.Open(); open {
		t.Fatal("no preview should be open")
	}
}

func TestTrackerRejectsIneligibleTurns(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "```jsx\n<User/>\n```"},
		{Role: conversation.RoleAssistant, Content: "no code here"},
	}
	tr := NewTracker()
	for i := range append(turns, conversation.Turn{}) {
		if tr.Toggle(turns, i) {
			t.Errorf("turn %d should not be previewable", i)
		}
	}
}

func TestTrackerSyncAfterClear(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "q"},
		{Role: conversation.RoleAssistant, Content: "```jsx\n<A/>\n```"},
	}
	tr := NewTracker()
	tr.Toggle(turns, 1)
	tr.Sync(nil)
	if _, open := tr.Open(); open {
		t.Fatal("preview should close when its turn disappears")
	}
}

func TestLatestEligible(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleAssistant, Content: "```jsx\n<A/>\n```"},
		{Role: conversation.RoleAssistant, Content: "plain"},
	}
	if i, ok := LatestEligible(turns); !ok || i != 0 {
		t.Errorf("got %d, %v", i, ok)
	}
	if _, ok := LatestEligible(nil); ok {
		t.Error("expected none")
	}
}

func TestProjectWriter(t *testing.T) {
	dir := t.TempDir()
	w := ProjectWriter{Dir: dir}
	code := "export default function App() { return <h1>hi</h1>; }"

	got, err := w.Render(context.Background(), code, Template)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != dir {
		t.Errorf("location=%q", got)
	}

	app, err := os.ReadFile(filepath.Join(dir, "src", "App.js"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(app)) != code {
		t.Errorf("App.js=%q", app)
	}

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		t.Fatal(err)
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		t.Fatal(err)
	}
	for _, dep := range []string{"react", "react-dom", "react-scripts"} {
		if pkg.Dependencies[dep] != "latest" {
			t.Errorf("dependency %s=%q", dep, pkg.Dependencies[dep])
		}
	}

	if _, err := w.Render(context.Background(), code, "vue"); err == nil {
		t.Error("expected error for unsupported template")
	}
}

func TestTerminalRenderer(t *testing.T) {
	out, err := TerminalRenderer{}.Render(context.Background(), "const a = 1;", Template)
	if err != nil {
		t.Fatal(err)
	}
	if ui.StripANSI(out) != "const a = 1;" {
		t.Errorf("got %q", ui.StripANSI(out))
	}
}
