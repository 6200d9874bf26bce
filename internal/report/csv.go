package report

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"closeout/internal/core"
)

// ErrBadReport is returned when a report text does not follow the format.
var ErrBadReport = errors.New("malformed report text")

// WriteCSV renders t. The two title lines are written verbatim; everything
// from the column header on goes through encoding/csv.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := fmt.Fprintf(w, "%s\n%s\n", t.Title, t.Subtitle); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// CSV renders t into memory.
func CSV(t Table) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail.
	_ = WriteCSV(&buf, t)
	return buf.Bytes()
}

// ParseCSV reads a report written by WriteCSV.
func ParseCSV(r io.Reader) (Table, error) {
	br := bufio.NewReader(r)
	title, err := readLine(br)
	if err != nil {
		return Table{}, fmt.Errorf("%w: title: %v", ErrBadReport, err)
	}
	subtitle, err := readLine(br)
	if err != nil {
		return Table{}, fmt.Errorf("%w: subtitle: %v", ErrBadReport, err)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = len(Header)
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrBadReport, err)
	}
	if len(records) < 2 {
		return Table{}, fmt.Errorf("%w: expected header and totals lines", ErrBadReport)
	}
	if strings.Join(records[0], ",") != strings.Join(Header, ",") {
		return Table{}, fmt.Errorf("%w: unexpected header %v", ErrBadReport, records[0])
	}

	t := Table{Title: title, Subtitle: subtitle}
	for i, rec := range records[1 : len(records)-1] {
		d, err := core.ParseDate(rec[0])
		if err != nil {
			return Table{}, fmt.Errorf("%w: line %d: %v", ErrBadReport, i+4, err)
		}
		debit, tip, total, err := parseAmounts(rec[1:])
		if err != nil {
			return Table{}, fmt.Errorf("%w: line %d: %v", ErrBadReport, i+4, err)
		}
		t.Rows = append(t.Rows, core.DailyRecord{Date: d, Debit: debit, Tip: tip, Total: total})
	}

	last := records[len(records)-1]
	if last[0] != TotalLabel && last[0] != GrandTotalLabel {
		return Table{}, fmt.Errorf("%w: last line must start with %s or %s", ErrBadReport, TotalLabel, GrandTotalLabel)
	}
	debit, tip, total, err := parseAmounts(last[1:])
	if err != nil {
		return Table{}, fmt.Errorf("%w: totals: %v", ErrBadReport, err)
	}
	t.TotalLabel = last[0]
	t.Total = core.Totals{Debit: debit, Tip: tip, Total: total}
	return t, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseAmounts(fields []string) (core.Money, core.Money, core.Money, error) {
	var out [3]core.Money
	for i, f := range fields {
		m, err := core.ParseMoney(f)
		if err != nil {
			return core.Money{}, core.Money{}, core.Money{}, fmt.Errorf("%q: %w", f, err)
		}
		out[i] = m
	}
	return out[0], out[1], out[2], nil
}
