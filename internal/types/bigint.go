package types

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// BigInt is a wei-precision integer column. Amounts are stored as decimal
// strings so sqlite never truncates them to float precision.
type BigInt struct {
	i big.Int
}

func NewBigInt(v *big.Int) BigInt {
	var b BigInt
	if v != nil {
		b.i.Set(v)
	}
	return b
}

func BigIntFromInt64(v int64) BigInt {
	var b BigInt
	b.i.SetInt64(v)
	return b
}

func BigIntFromString(s string) (BigInt, error) {
	var b BigInt
	if s == "" {
		return b, nil
	}
	if _, ok := b.i.SetString(s, 10); !ok {
		return BigInt{}, fmt.Errorf("invalid integer string %q", s)
	}
	return b, nil
}

// Int returns a copy of the underlying value.
func (b BigInt) Int() *big.Int {
	return new(big.Int).Set(&b.i)
}

func (b BigInt) Sign() int              { return b.i.Sign() }
func (b BigInt) Cmp(o BigInt) int       { return b.i.Cmp(&o.i) }
func (b BigInt) CmpInt(o *big.Int) int  { return b.i.Cmp(o) }
func (b BigInt) String() string         { return b.i.String() }
func (b BigInt) IsZero() bool           { return b.i.Sign() == 0 }

func (b BigInt) Add(o *big.Int) BigInt {
	var out BigInt
	out.i.Add(&b.i, o)
	return out
}

func (b BigInt) Sub(o *big.Int) BigInt {
	var out BigInt
	out.i.Sub(&b.i, o)
	return out
}

// Value implements driver.Valuer.
func (b BigInt) Value() (driver.Value, error) {
	return b.i.String(), nil
}

// Scan implements sql.Scanner.
func (b *BigInt) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		b.i.SetInt64(0)
		return nil
	case int64:
		b.i.SetInt64(v)
		return nil
	case string:
		return b.setString(v)
	case []byte:
		return b.setString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BigInt", src)
	}
}

func (b *BigInt) setString(s string) error {
	if s == "" {
		b.i.SetInt64(0)
		return nil
	}
	if _, ok := b.i.SetString(s, 10); !ok {
		return fmt.Errorf("invalid integer string %q", s)
	}
	return nil
}

// GormDataType keeps gorm from mapping the struct to a blob column.
func (BigInt) GormDataType() string {
	return "text"
}

// MarshalJSON renders the amount as a decimal string, matching the API's
// wei-string convention.
func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.i.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" || s == "" {
		b.i.SetInt64(0)
		return nil
	}
	return b.setString(s)
}
