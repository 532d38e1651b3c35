package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FormatError reports a malformed document: bad front matter, invalid YAML or
// a locale part missing its locale declaration. Offset is the byte offset of
// the offending part within the file.
type FormatError struct {
	PodPath string
	Offset  int
	Message string
	Cause   error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s:%d: %s", e.PodPath, e.Offset, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Cause }

// NewFormatError creates a FormatError.
func NewFormatError(podPath string, offset int, message string, cause error) *FormatError {
	return &FormatError{PodPath: podPath, Offset: offset, Message: message, Cause: cause}
}

// DocumentNotFoundError is returned when a requested document does not exist.
type DocumentNotFoundError struct {
	PodPath string
	Locale  string
}

func (e *DocumentNotFoundError) Error() string {
	if e.Locale != "" {
		return fmt.Sprintf("document not found: %s (locale %s)", e.PodPath, e.Locale)
	}
	return "document not found: " + e.PodPath
}

// CollectionNotFoundError is returned when a path has no owning collection.
type CollectionNotFoundError struct {
	Path string
}

func (e *CollectionNotFoundError) Error() string {
	return "collection not found: " + e.Path
}

// IsNotFound reports whether err is a missing document or collection.
func IsNotFound(err error) bool {
	var de *DocumentNotFoundError
	var ce *CollectionNotFoundError
	return errors.As(err, &de) || errors.As(err, &ce)
}

// PathSource identifies a document occupying a serving path.
type PathSource struct {
	PodPath string
	Locale  string
}

func (s PathSource) String() string {
	if s.Locale == "" {
		return s.PodPath
	}
	return s.PodPath + "@" + s.Locale
}

// DuplicatePathsError reports two distinct documents resolving to the same
// concrete serving path.
type DuplicatePathsError struct {
	Path     string
	Existing PathSource
	Incoming PathSource
}

func (e *DuplicatePathsError) Error() string {
	return fmt.Sprintf("duplicate serving path %s: %s and %s", e.Path, e.Existing, e.Incoming)
}

// PathFormatError is returned when a path format placeholder cannot be
// resolved.
type PathFormatError struct {
	Format       string
	Placeholders []string
	PodPath      string
}

func (e *PathFormatError) Error() string {
	msg := fmt.Sprintf("unresolved placeholders %s in path format %q",
		strings.Join(e.Placeholders, ", "), e.Format)
	if e.PodPath != "" {
		msg = e.PodPath + ": " + msg
	}
	return msg
}

// ItemError is a single failure inside an aggregate, keeping the pod path, the
// original error and a formatted traceback.
type ItemError struct {
	PodPath   string
	Locale    string
	Path      string
	Err       error
	Traceback string
}

func (e *ItemError) Error() string {
	var b strings.Builder
	b.WriteString(e.PodPath)
	if e.Locale != "" {
		b.WriteString("@" + e.Locale)
	}
	if e.Path != "" {
		b.WriteString(" (" + e.Path + ")")
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ItemError) Unwrap() error { return e.Err }

// aggregate is the shared implementation of BulkErrors and RenderErrors.
// Appends are safe for concurrent use.
type aggregate struct {
	mu    sync.Mutex
	items []*ItemError
}

func (a *aggregate) add(item *ItemError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, item)
}

func (a *aggregate) list() []*ItemError {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ItemError, len(a.items))
	copy(out, a.items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PodPath != out[j].PodPath {
			return out[i].PodPath < out[j].PodPath
		}
		return out[i].Locale < out[j].Locale
	})
	return out
}

func (a *aggregate) message(kind string) string {
	items := a.list()
	if len(items) == 1 {
		return fmt.Sprintf("%s: %v", kind, items[0])
	}
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, fmt.Sprintf("%s: %d errors", kind, len(items)))
	for _, item := range items {
		lines = append(lines, "  "+item.Error())
	}
	return strings.Join(lines, "\n")
}

// BulkErrors aggregates per-document load errors. The caller decides whether
// to abort.
type BulkErrors struct {
	aggregate
}

// NewBulkErrors creates an empty aggregate.
func NewBulkErrors() *BulkErrors { return &BulkErrors{} }

// Add records a load failure.
func (b *BulkErrors) Add(podPath, locale string, err error, traceback string) {
	b.add(&ItemError{PodPath: podPath, Locale: locale, Err: err, Traceback: traceback})
}

// Errors returns the recorded failures ordered by pod path.
func (b *BulkErrors) Errors() []*ItemError { return b.list() }

// Len returns the number of recorded failures.
func (b *BulkErrors) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// ErrOrNil returns b when it holds failures and nil otherwise.
func (b *BulkErrors) ErrOrNil() error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	return b
}

func (b *BulkErrors) Error() string { return b.message("failed to load documents") }

// Unwrap exposes the individual failures to errors.Is / errors.As.
func (b *BulkErrors) Unwrap() []error { return unwrapItems(b.list()) }

// RenderErrors aggregates per-route render failures collected across batches.
type RenderErrors struct {
	aggregate
}

// NewRenderErrors creates an empty aggregate.
func NewRenderErrors() *RenderErrors { return &RenderErrors{} }

// Add records a route failure.
func (r *RenderErrors) Add(item *ItemError) { r.add(item) }

// Errors returns the recorded failures ordered by pod path.
func (r *RenderErrors) Errors() []*ItemError { return r.list() }

// Len returns the number of recorded failures.
func (r *RenderErrors) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// ErrOrNil returns r when it holds failures and nil otherwise.
func (r *RenderErrors) ErrOrNil() error {
	if r == nil || r.Len() == 0 {
		return nil
	}
	return r
}

func (r *RenderErrors) Error() string { return r.message("failed to render routes") }

// Unwrap exposes the individual failures to errors.Is / errors.As.
func (r *RenderErrors) Unwrap() []error { return unwrapItems(r.list()) }

func unwrapItems(items []*ItemError) []error {
	out := make([]error, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
