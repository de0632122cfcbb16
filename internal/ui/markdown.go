package ui

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/muesli/termenv"
)

// Package-level renderer cache to avoid expensive recreation during streaming
var (
	mdRendererCache struct {
		sync.Mutex
		renderer *glamour.TermRenderer
		width    int
	}
)

// RenderMarkdown renders markdown content using glamour with standard styling.
// On error, returns the original content unchanged.
func RenderMarkdown(content string, width int) string {
	if content == "" {
		return ""
	}

	rendered, err := RenderMarkdownWithError(content, width)
	if err != nil {
		return content
	}
	return rendered
}

// RenderMarkdownWithError renders markdown content and returns any errors.
func RenderMarkdownWithError(content string, width int) (string, error) {
	mdRendererCache.Lock()
	defer mdRendererCache.Unlock()

	if mdRendererCache.renderer != nil && mdRendererCache.width == width {
		rendered, err := mdRendererCache.renderer.Render(content)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(rendered), nil
	}

	style := GlamourStyle()
	margin := uint(0)
	style.Document.Margin = &margin
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	style.CodeBlock.Margin = &margin

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	mdRendererCache.renderer = renderer
	mdRendererCache.width = width

	rendered, err := renderer.Render(content)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(rendered), nil
}

// GlamourStyle picks a dark or light style for the terminal background.
// STREAMCHAT_LIGHT forces the light style on or off.
func GlamourStyle() ansi.StyleConfig {
	if IsLightBackground() {
		return styles.LightStyleConfig
	}
	return styles.DraculaStyleConfig
}

// IsLightBackground reports whether the terminal uses a light background.
func IsLightBackground() bool {
	if termenv.EnvNoColor() {
		return false
	}
	if light, ok := lightOverride(os.Getenv("STREAMCHAT_LIGHT")); ok {
		return light
	}
	return !termenv.HasDarkBackground()
}

// lightOverride reads STREAMCHAT_LIGHT. ok is false when the value is unset
// or not a recognised boolean.
func lightOverride(raw string) (light, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on", "light":
		return true, true
	case "0", "false", "no", "off", "dark":
		return false, true
	}
	return false, false
}
