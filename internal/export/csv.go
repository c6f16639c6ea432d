// Package export renders an ordered entry sequence into a delimited text
// document that opens cleanly in common spreadsheet tools.
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"registro/internal/core"
)

// ErrEmptyExportSet signals that export was attempted with zero matching
// entries. Callers surface this to the user instead of producing a
// header-only download.
var ErrEmptyExportSet = errors.New("no entries to export")

// bom keeps non-ASCII text readable in spreadsheet imports.
const bom = "\uFEFF"

const dateLayout = "02/01/2006"

// recorderDisplayRunes bounds the recorder column to a short display form.
const recorderDisplayRunes = 8

var header = []string{"Data", "Tipo", "Categoria", "Importo", "Metodo", "Note", "Registrato da"}

// Write renders the entries to w in the given order: a BOM, a header row,
// then one row per entry. Textual fields are always double-quoted with
// embedded quotes doubled; the amount column is emitted unquoted.
func Write(w io.Writer, entries []core.Entry) error {
	if len(entries) == 0 {
		return ErrEmptyExportSet
	}

	var b strings.Builder
	b.WriteString(bom)

	for i, h := range header {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(h))
	}
	b.WriteByte('\n')

	for _, e := range entries {
		b.WriteString(quote(e.Date.Format(dateLayout)))
		b.WriteByte(',')
		b.WriteString(quote(typeLabel(e.Type)))
		b.WriteByte(',')
		b.WriteString(quote(e.Category))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(e.Amount.Units, 10))
		b.WriteByte(',')
		b.WriteString(quote(e.PaymentMethod))
		b.WriteByte(',')
		b.WriteString(quote(e.Memo))
		b.WriteByte(',')
		b.WriteString(quote(truncate(e.RecordedBy, recorderDisplayRunes)))
		b.WriteByte('\n')
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write export document: %w", err)
	}
	return nil
}

// Document is Write into a byte slice.
func Document(entries []core.Entry) ([]byte, error) {
	var b strings.Builder
	if err := Write(&b, entries); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// Filename builds the suggested download name: <label>_<month-or-all>.csv.
func Filename(ledgerLabel string, month *core.YearMonth) string {
	stem := "all"
	if month != nil {
		stem = month.String()
	}
	label := strings.TrimSpace(ledgerLabel)
	if label == "" {
		label = "registro"
	}
	// Keep the name safe for Content-Disposition and filesystems.
	label = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, label)
	return label + "_" + stem + ".csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func typeLabel(t core.EntryType) string {
	switch t {
	case core.Income:
		return "Entrata"
	case core.Expense:
		return "Uscita"
	}
	return string(t)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
