package catalog

import (
	"bufio"
	"bytes"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chai2010/gettext-go/po"

	"github.com/conneroisu/grow/internal/errors"
)

const obsoletePrefix = "#~ "

// Parse reads a PO file into a catalog for locale. podPath is used in
// error messages only.
func Parse(r io.Reader, podPath, locale string) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeCatalog, "read catalog "+podPath)
	}
	active, obsolete, err := splitObsolete(data, podPath)
	if err != nil {
		return nil, err
	}

	c := New(locale)
	file, err := load(active, podPath)
	if err != nil {
		return nil, err
	}
	if file != nil {
		readHeader(c.Header, &file.MimeHeader)
		for i := range file.Messages {
			if file.Messages[i].MsgId != "" {
				c.Put(fromPO(&file.Messages[i], false))
			}
		}
	}

	old, err := load(obsolete, podPath)
	if err != nil {
		return nil, err
	}
	if old != nil {
		for i := range old.Messages {
			id := old.Messages[i].MsgId
			if _, ok := c.Get(id); !ok && id != "" {
				c.Put(fromPO(&old.Messages[i], true))
			}
		}
	}
	return c, nil
}

// splitObsolete separates "#~" entries from the active ones. Both halves
// keep the line numbering of data. Every quoted string is checked so that a
// malformed catalog is reported with its line.
func splitObsolete(data []byte, podPath string) ([]byte, []byte, error) {
	var active, obsolete bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		trimmed := strings.TrimSpace(text)
		target, other := &active, &obsolete
		if strings.HasPrefix(trimmed, "#~") {
			trimmed = strings.TrimSpace(trimmed[2:])
			text = trimmed
			target, other = &obsolete, &active
		}
		if err := checkQuoted(trimmed); err != nil {
			return nil, nil, errors.NewFormatError(podPath, line, err.Error(), nil)
		}
		target.WriteString(text)
		target.WriteByte('\n')
		other.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.WrapIO(err, errors.ErrCodeCatalog, "read catalog "+podPath)
	}
	return active.Bytes(), obsolete.Bytes(), nil
}

func checkQuoted(line string) error {
	if strings.HasPrefix(line, "#") || line == "" {
		return nil
	}
	value := line
	if !strings.HasPrefix(line, `"`) {
		_, rest, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(rest)
	}
	if _, err := strconv.Unquote(value); err != nil {
		return errors.New("invalid string " + value)
	}
	return nil
}

func load(data []byte, podPath string) (*po.File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	file, err := po.Load(data)
	if err != nil {
		return nil, errors.NewFormatError(podPath, 0, "invalid catalog", err)
	}
	return file, nil
}

func fromPO(pm *po.Message, obsolete bool) *Message {
	m := &Message{
		ID:       pm.MsgId,
		Str:      pm.MsgStr,
		Obsolete: obsolete,
	}
	if pm.ExtractedComment != "" {
		m.Comments = strings.Split(pm.ExtractedComment, "\n")
	}
	for i, file := range pm.ReferenceFile {
		location := file
		if i < len(pm.ReferenceLine) && pm.ReferenceLine[i] > 0 {
			location += ":" + strconv.Itoa(pm.ReferenceLine[i])
		}
		m.Locations = append(m.Locations, location)
	}
	for _, flag := range pm.Flags {
		if flag = strings.TrimSpace(flag); flag != "" {
			m.Flags = append(m.Flags, flag)
		}
	}
	return m
}

func toPO(m *Message) po.Message {
	pm := po.Message{MsgId: m.ID, MsgStr: m.Str}
	pm.ExtractedComment = strings.Join(m.Comments, "\n")
	locations := append([]string(nil), m.Locations...)
	sort.Strings(locations)
	for _, location := range locations {
		file, line := location, 0
		if i := strings.LastIndex(location, ":"); i > 0 {
			if n, err := strconv.Atoi(location[i+1:]); err == nil {
				file, line = location[:i], n
			}
		}
		pm.ReferenceFile = append(pm.ReferenceFile, file)
		pm.ReferenceLine = append(pm.ReferenceLine, line)
	}
	pm.Flags = append([]string(nil), m.Flags...)
	return pm
}

// headerFields maps metadata keys onto the fixed fields of a PO header.
// Other keys travel in UnknowFields.
func headerFields(h *po.Header) map[string]*string {
	return map[string]*string{
		"Project-Id-Version":        &h.ProjectIdVersion,
		"Report-Msgid-Bugs-To":      &h.ReportMsgidBugsTo,
		"POT-Creation-Date":         &h.POTCreationDate,
		"PO-Revision-Date":          &h.PORevisionDate,
		"Last-Translator":           &h.LastTranslator,
		"Language-Team":             &h.LanguageTeam,
		"Language":                  &h.Language,
		"MIME-Version":              &h.MimeVersion,
		"Content-Type":              &h.ContentType,
		"Content-Transfer-Encoding": &h.ContentTransferEncoding,
		"Plural-Forms":              &h.PluralForms,
		"X-Generator":               &h.XGenerator,
	}
}

func readHeader(dst map[string]string, h *po.Header) {
	for key, field := range headerFields(h) {
		if *field != "" {
			dst[key] = *field
		}
	}
	for key, value := range h.UnknowFields {
		dst[key] = value
	}
}

func writeHeader(h *po.Header, src map[string]string) {
	fields := headerFields(h)
	for key, value := range src {
		if field, ok := fields[key]; ok {
			*field = value
			continue
		}
		if h.UnknowFields == nil {
			h.UnknowFields = make(map[string]string)
		}
		h.UnknowFields[key] = value
	}
}

// Write serializes the catalog in PO format. Obsolete entries follow the
// active ones with every line prefixed by "#~".
func (c *Catalog) Write(w io.Writer) error {
	var file po.File
	writeHeader(&file.MimeHeader, c.Header)
	for _, m := range c.Messages() {
		file.Messages = append(file.Messages, toPO(m))
	}

	var buf bytes.Buffer
	buf.Write(file.Data())

	if obsolete := c.ObsoleteMessages(); len(obsolete) > 0 {
		var old po.File
		for _, m := range obsolete {
			old.Messages = append(old.Messages, toPO(m))
		}
		for _, line := range strings.Split(string(old.Data()), "\n") {
			if strings.TrimSpace(line) == "" {
				buf.WriteString("\n")
				continue
			}
			buf.WriteString(obsoletePrefix + line + "\n")
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.WrapIO(err, errors.ErrCodeCatalog, "write catalog")
	}
	return nil
}
