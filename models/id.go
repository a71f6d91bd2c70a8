package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// IDKind is the source type an identifier arrived with.
type IDKind int

const (
	IDNull IDKind = iota
	IDInteger
	IDDecimal
	IDText
)

func (k IDKind) String() string {
	switch k {
	case IDInteger:
		return "integer"
	case IDDecimal:
		return "decimal"
	case IDText:
		return "text"
	default:
		return "null"
	}
}

// ListingID carries an identifier together with the type the source used
// for it. The transformer never converts between kinds; the loader decides
// whether the kind fits the store column.
type ListingID struct {
	kind IDKind
	num  int64
	raw  string
}

func IntegerID(n int64) ListingID { return ListingID{kind: IDInteger, num: n} }

// DecimalID keeps a non-integral JSON number as its literal text.
func DecimalID(literal string) ListingID { return ListingID{kind: IDDecimal, raw: literal} }

func TextID(s string) ListingID { return ListingID{kind: IDText, raw: s} }

func NullID() ListingID { return ListingID{} }

// ParseListingID reads a raw JSON value without coercing its type:
// integral numbers become IDInteger, other numbers IDDecimal, strings IDText.
// Missing values, null, and any other JSON type become IDNull.
func ParseListingID(v json.RawMessage) ListingID {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return NullID()
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return NullID()
		}
		return TextID(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return NullID()
		}
		if i, err := n.Int64(); err == nil {
			return IntegerID(i)
		}
		return DecimalID(n.String())
	}
	return NullID()
}

func (id ListingID) Kind() IDKind { return id.kind }

func (id ListingID) IsNull() bool { return id.kind == IDNull }

// Value returns the identifier as a database/sql argument of its own kind.
func (id ListingID) Value() any {
	switch id.kind {
	case IDInteger:
		return id.num
	case IDDecimal, IDText:
		return id.raw
	default:
		return nil
	}
}

func (id ListingID) String() string {
	switch id.kind {
	case IDInteger:
		return strconv.FormatInt(id.num, 10)
	case IDDecimal:
		return id.raw
	case IDText:
		return strconv.Quote(id.raw)
	default:
		return "<null>"
	}
}

// GoString makes test failure output show the kind as well as the value.
func (id ListingID) GoString() string {
	return fmt.Sprintf("%s(%s)", id.kind, id)
}
