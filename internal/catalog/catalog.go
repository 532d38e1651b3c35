// Package catalog reads, writes, extracts and merges gettext message
// catalogs (PO files) and serves translations by locale.
package catalog

import (
	"sort"
	"strings"
	"sync"
)

// Message is a single catalog entry.
type Message struct {
	ID string
	// Str is the translation; empty means untranslated.
	Str string
	// Comments are extracted comments ("#.").
	Comments []string
	// Locations are source references ("#:").
	Locations []string
	// Flags such as "fuzzy" ("#,").
	Flags    []string
	Obsolete bool
}

// HasFlag reports whether the message carries flag.
func (m *Message) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Fuzzy reports whether the translation needs review.
func (m *Message) Fuzzy() bool { return m.HasFlag("fuzzy") }

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

// Catalog is a set of messages for one locale. The template catalog has an
// empty locale.
type Catalog struct {
	Locale string
	// Header holds the metadata entry (msgid "") as key/value pairs.
	Header map[string]string

	mu       sync.RWMutex
	messages map[string]*Message
}

// New creates an empty catalog.
func New(locale string) *Catalog {
	return &Catalog{
		Locale:   locale,
		Header:   make(map[string]string),
		messages: make(map[string]*Message),
	}
}

// Add records an occurrence of id, merging locations, comments and flags
// into an existing entry. It returns the entry.
func (c *Catalog) Add(id, location, comment string, flags ...string) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.messages[id]
	if !ok {
		m = &Message{ID: id}
		c.messages[id] = m
	}
	m.Locations = appendUnique(m.Locations, location)
	m.Comments = appendUnique(m.Comments, comment)
	m.Flags = appendUnique(m.Flags, flags...)
	m.Obsolete = false
	return m
}

// Set stores a translation.
func (c *Catalog) Set(id, str string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.messages[id]
	if !ok {
		m = &Message{ID: id}
		c.messages[id] = m
	}
	m.Str = str
}

// Put stores m, replacing any entry with the same id.
func (c *Catalog) Put(m *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[m.ID] = m
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (*Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.messages[id]
	return m, ok
}

// Gettext translates id. Missing, empty, fuzzy and obsolete translations
// fall back to id.
func (c *Catalog) Gettext(id string) string {
	if c == nil {
		return id
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.messages[id]
	if !ok || m.Str == "" || m.Obsolete || m.Fuzzy() {
		return id
	}
	return m.Str
}

// Messages returns the active entries sorted by id.
func (c *Catalog) Messages() []*Message {
	return c.filter(func(m *Message) bool { return !m.Obsolete })
}

// ObsoleteMessages returns the obsolete entries sorted by id.
func (c *Catalog) ObsoleteMessages() []*Message {
	return c.filter(func(m *Message) bool { return m.Obsolete })
}

func (c *Catalog) filter(keep func(*Message) bool) []*Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Message, 0, len(c.messages))
	for _, m := range c.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of active entries.
func (c *Catalog) Len() int {
	return len(c.Messages())
}

// Untranslated returns the active entries without a usable translation.
func (c *Catalog) Untranslated() []*Message {
	return c.filter(func(m *Message) bool { return !m.Obsolete && (m.Str == "" || m.Fuzzy()) })
}

// MergeStats summarizes a Merge.
type MergeStats struct {
	Added    int
	Updated  int
	Obsolete int
}

// Merge updates c from a template catalog: new ids are added untranslated,
// existing entries take the template's locations and comments and keep their
// translation, and entries missing from the template become obsolete.
func (c *Catalog) Merge(template *Catalog) MergeStats {
	var stats MergeStats
	incoming := template.Messages()

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(incoming))
	for _, tm := range incoming {
		seen[tm.ID] = true
		m, ok := c.messages[tm.ID]
		if !ok {
			c.messages[tm.ID] = &Message{
				ID:        tm.ID,
				Comments:  append([]string(nil), tm.Comments...),
				Locations: append([]string(nil), tm.Locations...),
				Flags:     withoutFlag(tm.Flags, "fuzzy"),
			}
			stats.Added++
			continue
		}
		m.Comments = append([]string(nil), tm.Comments...)
		m.Locations = append([]string(nil), tm.Locations...)
		if m.Obsolete {
			m.Obsolete = false
		}
		stats.Updated++
	}
	for id, m := range c.messages {
		if !seen[id] && !m.Obsolete {
			m.Obsolete = true
			stats.Obsolete++
		}
	}
	return stats
}

func withoutFlag(flags []string, flag string) []string {
	var out []string
	for _, f := range flags {
		if f != flag {
			out = append(out, f)
		}
	}
	return out
}

// HeaderString renders the metadata entry in PO order.
func (c *Catalog) HeaderString() string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + ": " + c.Header[k] + "\n")
	}
	return b.String()
}
