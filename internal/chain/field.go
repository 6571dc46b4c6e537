package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// Modulus is the order of the Pasta Fp field native to Mina state.
var Modulus, _ = new(big.Int).SetString("40000000000000000000000000000000224698fc094cf91b992d30ed00000001", 16)

// fieldSize is the big-endian width of an encoded Field.
const fieldSize = 32

// Field is an element of the state field. The zero value is 0.
type Field struct {
	v *big.Int
}

// NewField validates v as a canonical field element.
func NewField(v *big.Int) (Field, error) {
	if v == nil || v.Sign() < 0 {
		return Field{}, fmt.Errorf("field element must be non-negative")
	}
	if v.Cmp(Modulus) >= 0 {
		return Field{}, fmt.Errorf("field element %s exceeds modulus", v)
	}
	return Field{v: new(big.Int).Set(v)}, nil
}

// FieldFromUint64 converts a small integer.
func FieldFromUint64(u uint64) Field {
	return Field{v: new(big.Int).SetUint64(u)}
}

// FieldFromString parses a base-10 integer.
func FieldFromString(s string) (Field, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Field{}, fmt.Errorf("invalid field element %q", s)
	}
	return NewField(v)
}

// BigInt returns a copy of the element.
func (f Field) BigInt() *big.Int {
	if f.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(f.v)
}

func (f Field) IsZero() bool {
	return f.v == nil || f.v.Sign() == 0
}

func (f Field) Equal(o Field) bool {
	return f.BigInt().Cmp(o.BigInt()) == 0
}

func (f Field) String() string {
	return f.BigInt().String()
}

func (f Field) GoString() string {
	return "Field(" + f.String() + ")"
}
