package web

import (
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"pct":       formatPct,
	"bytes":     formatBytes,
	"reltime":   formatRelativeTime,
	"labelTone": labelTone,
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// labelTone maps a label name to a CSS class for the result badge.
func labelTone(name string) string {
	switch name {
	case "Valid":
		return "tone-ok"
	case "SpamAds":
		return "tone-bad"
	case "LowQuality":
		return "tone-warn"
	case "RantWithoutVisit":
		return "tone-warn"
	}
	return "tone-neutral"
}
