package record

import (
	"encoding/binary"
	"fmt"
)

// Record is an account entry: at most one value per field, encoded in field
// code order regardless of the order fields were set in.
type Record struct {
	fields [numFields + 1]Field
}

// New builds a record from fields. A repeated field keeps the last value.
func New(fields ...Field) (Record, error) {
	var r Record
	for _, f := range fields {
		if err := r.Set(f); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}

// Set stores f, replacing any earlier value of the same field.
func (r *Record) Set(f Field) error {
	if f == nil || !f.Code().Valid() {
		return fmt.Errorf("setting field: %w", ErrUnsupportedField)
	}
	r.fields[f.Code()] = f
	return nil
}

// Get returns the value stored for code.
func (r Record) Get(code FieldCode) (Field, bool) {
	if !code.Valid() {
		return nil, false
	}
	f := r.fields[code]
	return f, f != nil
}

// Len is the number of fields present.
func (r Record) Len() int {
	n := 0
	for _, f := range r.fields {
		if f != nil {
			n++
		}
	}
	return n
}

// Fields returns the present fields in code order.
func (r Record) Fields() []Field {
	res := make([]Field, 0, numFields)
	for _, f := range r.fields {
		if f != nil {
			res = append(res, f)
		}
	}
	return res
}

// Label returns the id field for log and error messages, or "" if unset.
func (r Record) Label() string {
	if f, ok := r.fields[FieldID].(Text); ok {
		return f.Value
	}
	return ""
}

// Encode returns the record payload: one tagged entry per present field.
// String and secret entries are [code][len][bytes]; the counter is
// [7][8][uint64 little-endian].
func (r Record) Encode() ([]byte, error) {
	var (
		res []byte
		err error
	)
	for _, f := range r.fields {
		if f == nil {
			continue
		}
		res, err = f.appendEntry(res)
		if err != nil {
			return nil, fmt.Errorf("encoding record %q: %w", r.Label(), err)
		}
	}
	return res, nil
}

// ContentType is the first byte of a block's plaintext header.
type ContentType uint8

const (
	ContentEmpty    ContentType = 3
	ContentData     ContentType = 4
	ContentSettings ContentType = 5
)

// HeaderSize is the size of the plaintext header that precedes a payload.
const HeaderSize = 4

// AppendHeader appends [type][reserved=0][seq little-endian].
func AppendHeader(dst []byte, t ContentType, seq uint16) []byte {
	dst = append(dst, byte(t), 0)
	return binary.LittleEndian.AppendUint16(dst, seq)
}

// WithHeader returns the payload prefixed by a header of type t. The sequence
// number is always zero for freshly written images.
func WithHeader(t ContentType, payload []byte) []byte {
	res := make([]byte, 0, HeaderSize+len(payload))
	res = AppendHeader(res, t, 0)
	return append(res, payload...)
}
