// Package normalize converts raw Clover batch objects into per-day amounts.
//
// Two record shapes are recognized: the Clover batch with
// batchDetails.batchTotals, and a flat object carrying total/tip/debit at the
// top level. The unit is decided once per record: when any amount is a numeric
// string or a fractional number every amount is in major units, otherwise
// integers are minor units. Epoch-millisecond timestamps are converted to the
// merchant location; date strings keep the calendar date they were written with.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"closeout/internal/clover"
	"closeout/internal/core"
)

// Fragment is the canonical contribution of one batch to a report day.
type Fragment struct {
	BatchID string
	Date    core.Date
	Debit   core.Money
	Tip     core.Money
	Total   core.Money
}

// Summary formats a fragment for a one-line batch view.
func (f Fragment) Summary() string {
	return fmt.Sprintf("Date: %s, Debit: $%s, Tips: $%s, Total: $%s", f.Date, f.Debit, f.Tip, f.Total)
}

type shape int

const (
	shapeUnknown shape = iota
	shapeClover
	shapeFlat
)

var (
	timestampKeys = []string{"createdTime", "closedTime", "date"}
	flatKeys      = []string{"total", "sales", "tip", "tips", "debit"}
)

// Normalizer holds the merchant location used for epoch timestamps.
type Normalizer struct {
	Location *time.Location
}

// New returns a Normalizer for loc (UTC when nil).
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Location: loc}
}

// Normalize maps one raw batch to a Fragment. Records without a timestamp or
// without any monetary field fail with core.ErrMalformedRecord.
func (n *Normalizer) Normalize(raw clover.RawBatch) (Fragment, error) {
	id := stringField(raw, "id")

	date, err := n.date(raw)
	if err != nil {
		return Fragment{}, malformed(id, err.Error())
	}

	var (
		total, tip, debit          core.Money
		hasTotal, hasTip, hasDebit bool
	)
	switch detectShape(raw) {
	case shapeClover:
		totals := object(object(raw["batchDetails"])["batchTotals"])
		sales := object(totals["sales"])
		tips := object(totals["tips"])
		major := majorUnits(sales["total"], tips["total"])
		if total, hasTotal, err = money(sales["total"], major); err != nil {
			return Fragment{}, malformed(id, "sales total: "+err.Error())
		}
		if tip, hasTip, err = money(tips["total"], major); err != nil {
			return Fragment{}, malformed(id, "tips total: "+err.Error())
		}
		if hasTip && tipCountIsZero(tips) {
			tip = core.Money{}
		}
	case shapeFlat:
		vals := make([]any, len(flatKeys))
		for i, k := range flatKeys {
			vals[i] = raw[k]
		}
		major := majorUnits(vals...)
		if total, hasTotal, err = firstMoney(raw, major, "total", "sales"); err != nil {
			return Fragment{}, malformed(id, err.Error())
		}
		if tip, hasTip, err = firstMoney(raw, major, "tip", "tips"); err != nil {
			return Fragment{}, malformed(id, err.Error())
		}
		if debit, hasDebit, err = firstMoney(raw, major, "debit"); err != nil {
			return Fragment{}, malformed(id, err.Error())
		}
	default:
		return Fragment{}, malformed(id, "no monetary fields")
	}

	if !hasTotal && !hasTip && !hasDebit {
		return Fragment{}, malformed(id, "no monetary fields")
	}
	if !hasTotal && hasDebit {
		total = debit.Add(tip)
	} else {
		debit = total.Sub(tip)
	}

	return Fragment{BatchID: id, Date: date, Debit: debit, Tip: tip, Total: total}, nil
}

func malformed(id, reason string) error {
	if id == "" {
		return fmt.Errorf("%w: %s", core.ErrMalformedRecord, reason)
	}
	return fmt.Errorf("%w: batch %s: %s", core.ErrMalformedRecord, id, reason)
}

func detectShape(raw clover.RawBatch) shape {
	if object(raw["batchDetails"]) != nil {
		return shapeClover
	}
	for _, k := range flatKeys {
		if v, ok := raw[k]; ok && v != nil {
			return shapeFlat
		}
	}
	return shapeUnknown
}

func (n *Normalizer) date(raw clover.RawBatch) (core.Date, error) {
	for _, key := range timestampKeys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case json.Number:
			ms, err := x.Int64()
			if err != nil {
				return core.Date{}, fmt.Errorf("%s: %q is not epoch milliseconds", key, x.String())
			}
			return n.fromMillis(key, ms)
		case float64:
			return n.fromMillis(key, int64(x))
		case int64:
			return n.fromMillis(key, x)
		case int:
			return n.fromMillis(key, int64(x))
		case string:
			return n.fromString(key, x)
		default:
			return core.Date{}, fmt.Errorf("%s: unsupported type %T", key, v)
		}
	}
	return core.Date{}, fmt.Errorf("missing timestamp")
}

func (n *Normalizer) fromMillis(key string, ms int64) (core.Date, error) {
	if ms <= 0 {
		return core.Date{}, fmt.Errorf("%s: missing timestamp", key)
	}
	return core.DateOf(time.UnixMilli(ms).In(n.Location)), nil
}

func (n *Normalizer) fromString(key, s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, fmt.Errorf("%s: missing timestamp", key)
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n.fromMillis(key, ms)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return core.DateOf(t), nil
	}
	if len(s) >= len(core.DateLayout) {
		if d, err := core.ParseDate(s[:len(core.DateLayout)]); err == nil {
			return d, nil
		}
	}
	return core.Date{}, fmt.Errorf("%s: unrecognized date %q", key, s)
}

// majorUnits reports whether a record carries its amounts in major units.
// A single numeric string or fractional number puts the whole record in
// major units; integers are minor units only when every amount is one.
func majorUnits(vals ...any) bool {
	for _, v := range vals {
		switch x := v.(type) {
		case string:
			return true
		case json.Number:
			if _, err := strconv.ParseInt(x.String(), 10, 64); err != nil {
				return true
			}
		case float64:
			if x != math.Trunc(x) || math.Abs(x) >= 1<<53 {
				return true
			}
		}
	}
	return false
}

// money converts one amount. Integers are cents unless major is set. The
// bool reports whether a value was present.
func money(v any, major bool) (core.Money, bool, error) {
	switch x := v.(type) {
	case nil:
		return core.Money{}, false, nil
	case json.Number:
		s := x.String()
		if cents, err := strconv.ParseInt(s, 10, 64); err == nil && !major {
			return core.MoneyFromCents(cents), true, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return core.Money{}, false, fmt.Errorf("invalid number %q", s)
		}
		return core.NewMoney(d), true, nil
	case float64:
		if !major && x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return core.MoneyFromCents(int64(x)), true, nil
		}
		return core.NewMoney(decimal.NewFromFloat(x)), true, nil
	case int64:
		if major {
			return core.NewMoney(decimal.NewFromInt(x)), true, nil
		}
		return core.MoneyFromCents(x), true, nil
	case int:
		if major {
			return core.NewMoney(decimal.NewFromInt(int64(x))), true, nil
		}
		return core.MoneyFromCents(int64(x)), true, nil
	case string:
		m, err := core.ParseMoney(x)
		if err != nil {
			return core.Money{}, false, fmt.Errorf("invalid amount %q", x)
		}
		return m, true, nil
	default:
		return core.Money{}, false, fmt.Errorf("unsupported amount type %T", v)
	}
}

func firstMoney(raw clover.RawBatch, major bool, keys ...string) (core.Money, bool, error) {
	for _, k := range keys {
		m, ok, err := money(raw[k], major)
		if err != nil {
			return core.Money{}, false, fmt.Errorf("%s: %w", k, err)
		}
		if ok {
			return m, true, nil
		}
	}
	return core.Money{}, false, nil
}

func tipCountIsZero(tips map[string]any) bool {
	v, ok := tips["count"]
	if !ok || v == nil {
		return false
	}
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return err == nil && n == 0
	case float64:
		return x == 0
	case int64:
		return x == 0
	case int:
		return x == 0
	}
	return false
}

func object(v any) map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return x
	case clover.RawBatch:
		return x
	}
	return nil
}

func stringField(raw clover.RawBatch, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}
