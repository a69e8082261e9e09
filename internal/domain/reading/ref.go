package reading

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

type refKind uint8

const (
	refUUID refKind = iota + 1
	refString
	refInt
)

// Ref identifies a reading by one of the accepted representations: the UUID
// itself, its canonical text, or its 128-bit integer value. The zero Ref is
// not valid.
type Ref struct {
	kind refKind
	id   uuid.UUID
	text string
	num  *big.Int
}

func ByUUID(id uuid.UUID) Ref {
	return Ref{kind: refUUID, id: id}
}

func ByString(s string) Ref {
	return Ref{kind: refString, text: s}
}

func ByInt(n *big.Int) Ref {
	if n == nil {
		return Ref{kind: refInt}
	}
	return Ref{kind: refInt, num: new(big.Int).Set(n)}
}

func ByUint64(n uint64) Ref {
	return ByInt(new(big.Int).SetUint64(n))
}

// ParseRef builds a Ref from a loosely typed value.
func ParseRef(v any) (Ref, error) {
	switch x := v.(type) {
	case Ref:
		return x, nil
	case uuid.UUID:
		return ByUUID(x), nil
	case string:
		return ByString(x), nil
	case *big.Int:
		if x == nil {
			return Ref{}, fmt.Errorf("%w: got nil *big.Int", ErrIDType)
		}
		return ByInt(x), nil
	case big.Int:
		return ByInt(&x), nil
	case int:
		return ByInt(big.NewInt(int64(x))), nil
	case int8:
		return ByInt(big.NewInt(int64(x))), nil
	case int16:
		return ByInt(big.NewInt(int64(x))), nil
	case int32:
		return ByInt(big.NewInt(int64(x))), nil
	case int64:
		return ByInt(big.NewInt(x)), nil
	case uint:
		return ByUint64(uint64(x)), nil
	case uint8:
		return ByUint64(uint64(x)), nil
	case uint16:
		return ByUint64(uint64(x)), nil
	case uint32:
		return ByUint64(uint64(x)), nil
	case uint64:
		return ByUint64(x), nil
	}
	return Ref{}, fmt.Errorf("%w: got %T", ErrIDType, v)
}

var maxUUIDInt = new(big.Int).Lsh(big.NewInt(1), 128)

// UUID normalizes the reference to its canonical form.
func (r Ref) UUID() (uuid.UUID, error) {
	switch r.kind {
	case refUUID:
		return r.id, nil
	case refString:
		id, err := uuid.Parse(r.text)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %q is not a UUID", ErrIDValue, r.text)
		}
		return id, nil
	case refInt:
		if r.num == nil {
			return uuid.Nil, fmt.Errorf("%w: missing integer", ErrIDValue)
		}
		if r.num.Sign() < 0 || r.num.Cmp(maxUUIDInt) >= 0 {
			return uuid.Nil, fmt.Errorf("%w: %s is outside the 128-bit range", ErrIDValue, r.num)
		}
		var id uuid.UUID
		r.num.FillBytes(id[:])
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("%w: empty reference", ErrIDType)
}

func (r Ref) String() string {
	switch r.kind {
	case refUUID:
		return r.id.String()
	case refString:
		return r.text
	case refInt:
		if r.num != nil {
			return r.num.String()
		}
	}
	return "<invalid ref>"
}
