// Package record encodes account records into the tagged payload stored in
// one image block.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnsupportedField is returned for a field name or code outside the
// recognized set.
var ErrUnsupportedField = errors.New("unsupported field")

// ErrCapacityExceeded is returned when content does not fit the space
// reserved for it.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrFieldTooLong is returned when a value does not fit its one-byte length.
// It matches ErrCapacityExceeded under errors.Is.
var ErrFieldTooLong = fmt.Errorf("field value too long: %w", ErrCapacityExceeded)

// MaxValueLen is the largest value a single entry can carry.
const MaxValueLen = 255

// FieldCode is the on-disk tag of a field. Codes follow declaration order and
// are part of the storage format.
type FieldCode uint8

const (
	FieldID FieldCode = iota + 1
	FieldPrev
	FieldUser
	FieldEmail
	FieldPassword
	FieldHOTPSecret
	FieldHOTPCounter
	FieldTOTPSecret
	FieldComment
	FieldPassword2

	numFields = int(FieldPassword2)
)

var fieldNames = [...]string{
	FieldID:          "id",
	FieldPrev:        "prev",
	FieldUser:        "user",
	FieldEmail:       "email",
	FieldPassword:    "pw",
	FieldHOTPSecret:  "hotp_secret",
	FieldHOTPCounter: "hotp_counter",
	FieldTOTPSecret:  "totp_secret",
	FieldComment:     "comment",
	FieldPassword2:   "pw2",
}

func (c FieldCode) String() string {
	if c.Valid() {
		return fieldNames[c]
	}
	return fmt.Sprintf("field(%d)", uint8(c))
}

// Valid reports whether c is one of the recognized field codes.
func (c FieldCode) Valid() bool {
	return c >= FieldID && int(c) <= numFields
}

// Kind reports how the field's value is typed.
func (c FieldCode) Kind() Kind {
	switch c {
	case FieldID, FieldPrev, FieldUser, FieldEmail, FieldPassword, FieldComment, FieldPassword2:
		return KindString
	case FieldHOTPSecret, FieldTOTPSecret:
		return KindSecret
	case FieldHOTPCounter:
		return KindCounter
	default:
		return KindInvalid
	}
}

// FieldByName maps an input key such as "pw" to its code.
func FieldByName(name string) (FieldCode, error) {
	for c := FieldID; int(c) <= numFields; c++ {
		if fieldNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, ErrUnsupportedField)
}

// Kind classifies field values.
type Kind int

const (
	KindInvalid Kind = iota
	// KindString values are raw UTF-8 bytes.
	KindString
	// KindSecret values are raw bytes, base32 in the input.
	KindSecret
	// KindCounter values are 64-bit unsigned integers.
	KindCounter
)

// Field is one typed field value. The set of implementations is closed.
type Field interface {
	Code() FieldCode
	appendEntry(dst []byte) ([]byte, error)
}

// Text is a string-valued field (id, prev, user, email, pw, comment, pw2).
type Text struct {
	code  FieldCode
	Value string
}

// Secret is a binary field (hotp_secret, totp_secret).
type Secret struct {
	code  FieldCode
	Value []byte
}

// Counter is the hotp_counter field.
type Counter struct {
	Value uint64
}

func (f Text) Code() FieldCode   { return f.code }
func (f Secret) Code() FieldCode { return f.code }
func (Counter) Code() FieldCode  { return FieldHOTPCounter }

func (f Text) appendEntry(dst []byte) ([]byte, error) {
	return appendTLV(dst, f.code, []byte(f.Value))
}

func (f Secret) appendEntry(dst []byte) ([]byte, error) {
	return appendTLV(dst, f.code, f.Value)
}

func (f Counter) appendEntry(dst []byte) ([]byte, error) {
	dst = append(dst, byte(FieldHOTPCounter), 8)
	return binary.LittleEndian.AppendUint64(dst, f.Value), nil
}

func appendTLV(dst []byte, code FieldCode, v []byte) ([]byte, error) {
	if len(v) > MaxValueLen {
		return dst, fmt.Errorf("%s has %d bytes, limit %d: %w", code, len(v), MaxValueLen, ErrFieldTooLong)
	}
	dst = append(dst, byte(code), byte(len(v)))
	return append(dst, v...), nil
}

// NewText builds a string field. It fails for codes that are not string typed.
func NewText(code FieldCode, v string) (Text, error) {
	if code.Kind() != KindString {
		return Text{}, fmt.Errorf("%s is not a string field: %w", code, ErrUnsupportedField)
	}
	return Text{code: code, Value: v}, nil
}

// NewSecret builds a binary secret field.
func NewSecret(code FieldCode, v []byte) (Secret, error) {
	if code.Kind() != KindSecret {
		return Secret{}, fmt.Errorf("%s is not a secret field: %w", code, ErrUnsupportedField)
	}
	return Secret{code: code, Value: v}, nil
}

func ID(v string) Text        { return Text{code: FieldID, Value: v} }
func Prev(v string) Text      { return Text{code: FieldPrev, Value: v} }
func User(v string) Text      { return Text{code: FieldUser, Value: v} }
func Email(v string) Text     { return Text{code: FieldEmail, Value: v} }
func Password(v string) Text  { return Text{code: FieldPassword, Value: v} }
func Comment(v string) Text   { return Text{code: FieldComment, Value: v} }
func Password2(v string) Text { return Text{code: FieldPassword2, Value: v} }

func HOTPSecret(v []byte) Secret { return Secret{code: FieldHOTPSecret, Value: v} }
func TOTPSecret(v []byte) Secret { return Secret{code: FieldTOTPSecret, Value: v} }

func HOTPCounter(v uint64) Counter { return Counter{Value: v} }
