package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samsaffron/streamchat/internal/ui"
)

// Renderer shows extracted code in an isolated environment. It returns a
// human-readable description of where the result can be seen.
type Renderer interface {
	Render(ctx context.Context, code, template string) (string, error)
}

// TerminalRenderer shows the code syntax highlighted, with no execution.
type TerminalRenderer struct {
	Language string
}

func (r TerminalRenderer) Render(ctx context.Context, code, template string) (string, error) {
	lang := r.Language
	if lang == "" {
		lang = "jsx"
	}
	return ui.NewHighlighter(lang).Highlight(code), nil
}

// ProjectWriter writes a runnable sandbox project for the code into Dir.
type ProjectWriter struct {
	Dir string
}

type packageJSON struct {
	Name         string            `json:"name"`
	Private      bool              `json:"private"`
	Main         string            `json:"main"`
	Scripts      map[string]string `json:"scripts"`
	Dependencies map[string]string `json:"dependencies"`
}

const indexJS = `import React from "react";
import { createRoot } from "react-dom/client";
import App from "./App";

createRoot(document.getElementById("root")).render(<App />);
`

const indexHTML = `<!DOCTYPE html>
<html>
  <head><meta charset="utf-8" /><title>preview</title></head>
  <body><div id="root"></div></body>
</html>
`

// Render writes App.js, index.js, public/index.html and package.json and
// returns the project directory.
func (w ProjectWriter) Render(ctx context.Context, code, template string) (string, error) {
	if template != Template {
		return "", fmt.Errorf("unsupported template %q", template)
	}
	if w.Dir == "" {
		return "", fmt.Errorf("no project directory configured")
	}

	pkg := packageJSON{
		Name:    "streamchat-preview",
		Private: true,
		Main:    "src/index.js",
		Scripts: map[string]string{
			"start": "react-scripts start",
			"build": "react-scripts build",
		},
		Dependencies: map[string]string{
			"react":         "latest",
			"react-dom":     "latest",
			"react-scripts": "latest",
		},
	}
	pkgData, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode package.json: %w", err)
	}

	files := map[string][]byte{
		"package.json":      append(pkgData, '\n'),
		"src/App.js":        []byte(code + "\n"),
		"src/index.js":      []byte(indexJS),
		"public/index.html": []byte(indexHTML),
	}
	for name, data := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path := filepath.Join(w.Dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	return w.Dir, nil
}
