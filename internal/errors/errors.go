package errors

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Report is an error recorded for display in the dev server.
type Report struct {
	PodPath   string
	Locale    string
	Message   string
	Traceback string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ErrorCollector keeps the most recent errors per pod path so the dev server
// can surface them until the offending file changes.
type ErrorCollector struct {
	reports map[string]Report
	mutex   sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{reports: make(map[string]Report)}
}

// Add records a report, replacing any previous one for the same pod path.
func (ec *ErrorCollector) Add(report Report) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now()
	}
	ec.reports[report.PodPath] = report
}

// AddItems records every item of an aggregate.
func (ec *ErrorCollector) AddItems(items []*ItemError) {
	for _, item := range items {
		ec.Add(Report{
			PodPath:   item.PodPath,
			Locale:    item.Locale,
			Message:   item.Error(),
			Traceback: item.Traceback,
			Severity:  ErrorSeverityError,
		})
	}
}

// Clear forgets the report for podPath.
func (ec *ErrorCollector) Clear(podPath string) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	delete(ec.reports, podPath)
}

// Reports returns all recorded reports.
func (ec *ErrorCollector) Reports() []Report {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]Report, 0, len(ec.reports))
	for _, r := range ec.reports {
		result = append(result, r)
	}
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.reports) > 0
}

// PageDetails describes a diagnostic page served by the dev server.
type PageDetails struct {
	Status     int
	Title      string
	Path       string
	Controller string
	PodPath    string
	Locale     string
	Err        error
	Traceback  string
}

// ErrorPage renders the HTML diagnostic page used for 404 and 500 responses.
func ErrorPage(d PageDetails) string {
	var b strings.Builder
	accent := "#ff6b6b"
	if d.Status == 404 {
		accent = "#feca57"
	}
	title := d.Title
	if title == "" {
		title = fmt.Sprintf("%d", d.Status)
	}

	fmt.Fprintf(&b, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body style="margin: 0; background: #1a202c; color: #e2e8f0; font-family: 'Monaco', 'Menlo', monospace; font-size: 14px;">
<div style="max-width: 1000px; margin: 0 auto; padding: 20px;">
	<h2 style="color: %s;">%d %s</h2>
	<table style="border-collapse: collapse; margin-bottom: 20px;">
`, html.EscapeString(title), accent, d.Status, html.EscapeString(title))

	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "\t\t<tr><td style=\"color: #a0aec0; padding-right: 15px;\">%s</td><td>%s</td></tr>\n",
			label, html.EscapeString(value))
	}
	row("Path", d.Path)
	row("Controller", d.Controller)
	row("Pod path", d.PodPath)
	row("Locale", d.Locale)
	b.WriteString("\t</table>\n")

	if d.Err != nil {
		fmt.Fprintf(&b, "\t<div style=\"background: #2d3748; padding: 15px; border-left: 4px solid %s; margin-bottom: 15px;\"><strong>%s</strong></div>\n",
			accent, html.EscapeString(d.Err.Error()))
	}
	traceback := d.Traceback
	if traceback == "" && d.Err != nil && d.Status >= 500 {
		traceback = Traceback(d.Err)
	}
	if traceback != "" {
		fmt.Fprintf(&b, "\t<pre style=\"background: #2d3748; padding: 15px; overflow: auto;\">%s</pre>\n",
			html.EscapeString(traceback))
	}
	b.WriteString("</div>\n</body>\n</html>\n")
	return b.String()
}
