package dval

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dval is a sealed interface representing runtime values of the language.
type Dval interface {
	dval() // Sealed - only types in this package implement it
}

// DInt is a 64-bit integer.
type DInt int64

func (DInt) dval() {}

// DFloat is a 64-bit float.
type DFloat float64

func (DFloat) dval() {}

// DBool is a boolean.
type DBool bool

func (DBool) dval() {}

// DNull is the null value.
type DNull struct{}

func (DNull) dval() {}

// DChar is a single character.
type DChar rune

func (DChar) dval() {}

// DStr is a string.
type DStr string

func (DStr) dval() {}

// DID is a row identity.
type DID uuid.UUID

func (DID) dval() {}

// DDate is an instant in time.
type DDate time.Time

func (DDate) dval() {}

// DTitle is a short display string.
type DTitle string

func (DTitle) dval() {}

// DURL is a URL string.
type DURL string

func (DURL) dval() {}

// DList is an ordered list of values.
type DList []Dval

func (DList) dval() {}

// DObj maps field names to values. Insertion order is not significant.
type DObj map[string]Dval

func (DObj) dval() {}

// DIncomplete marks a value the evaluator could not compute yet.
type DIncomplete struct{}

func (DIncomplete) dval() {}

// DBlock is a closure over captured values.
type DBlock struct {
	Params   []string
	Captured DObj
	Body     func(args []Dval) (Dval, error)
}

func (DBlock) dval() {}

// ResponseMeta is the HTTP metadata attached to a DResponse.
type ResponseMeta struct {
	Status  int
	Headers map[string]string
}

// DResponse wraps a value with HTTP response metadata.
type DResponse struct {
	Meta ResponseMeta
	Body Dval
}

func (DResponse) dval() {}

// DDB is a handle on a user table, addressed by display name.
type DDB struct {
	Table string
}

func (DDB) dval() {}

// NewID returns a DID for u.
func NewID(u uuid.UUID) DID { return DID(u) }

// UUID returns the underlying identifier.
func (d DID) UUID() uuid.UUID { return uuid.UUID(d) }

// Time returns the underlying instant.
func (d DDate) Time() time.Time { return time.Time(d) }

// DatePrecision is the finest date resolution the store keeps.
const DatePrecision = time.Microsecond

// NewDate returns a DDate for t truncated to DatePrecision.
func NewDate(t time.Time) DDate { return DDate(t.Truncate(DatePrecision)) }

// SortedKeys returns the object's keys in ascending byte order.
func (o DObj) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the object.
func (o DObj) Clone() DObj {
	out := make(DObj, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// TipeOf returns the primitive tag for v. Lists and objects report TList
// and TObj; relation tipes are never inferred from a value.
func TipeOf(v Dval) Tipe {
	switch v.(type) {
	case DInt:
		return TInt
	case DFloat:
		return TFloat
	case DBool:
		return TBool
	case DNull:
		return TNull
	case DChar:
		return TChar
	case DStr:
		return TStr
	case DID:
		return TID
	case DDate:
		return TDate
	case DTitle:
		return TTitle
	case DURL:
		return TURL
	case DList:
		return TList
	case DObj:
		return TObj
	case DIncomplete:
		return TIncomplete
	case DBlock:
		return TBlock
	case DResponse:
		return TResponse
	case DDB:
		return TDB
	}
	return TAny
}

// IsRelation reports whether v is persisted through a related table: an
// object, or a list whose every element is an object. The empty list
// qualifies.
func IsRelation(v Dval) bool {
	switch x := v.(type) {
	case DObj:
		return true
	case DList:
		for _, el := range x {
			if _, ok := el.(DObj); !ok {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports structural equality. Blocks never compare equal.
func Equal(a, b Dval) bool {
	switch x := a.(type) {
	case DInt:
		y, ok := b.(DInt)
		return ok && x == y
	case DFloat:
		y, ok := b.(DFloat)
		if !ok {
			return false
		}
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return x == y
	case DBool:
		y, ok := b.(DBool)
		return ok && x == y
	case DNull:
		_, ok := b.(DNull)
		return ok
	case DChar:
		y, ok := b.(DChar)
		return ok && x == y
	case DStr:
		y, ok := b.(DStr)
		return ok && x == y
	case DID:
		y, ok := b.(DID)
		return ok && x == y
	case DDate:
		y, ok := b.(DDate)
		return ok && x.Time().Equal(y.Time())
	case DTitle:
		y, ok := b.(DTitle)
		return ok && x == y
	case DURL:
		y, ok := b.(DURL)
		return ok && x == y
	case DList:
		y, ok := b.(DList)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case DObj:
		y, ok := b.(DObj)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case DIncomplete:
		_, ok := b.(DIncomplete)
		return ok
	case DBlock:
		return false
	case DResponse:
		y, ok := b.(DResponse)
		if !ok || x.Meta.Status != y.Meta.Status || len(x.Meta.Headers) != len(y.Meta.Headers) {
			return false
		}
		for k, v := range x.Meta.Headers {
			if y.Meta.Headers[k] != v {
				return false
			}
		}
		return Equal(x.Body, y.Body)
	case DDB:
		y, ok := b.(DDB)
		return ok && x.Table == y.Table
	}
	return false
}

// String renders v for diagnostics. Object keys are sorted.
func String(v Dval) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

func writeValue(b *strings.Builder, v Dval) {
	switch x := v.(type) {
	case DInt:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case DFloat:
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 64))
	case DBool:
		b.WriteString(strconv.FormatBool(bool(x)))
	case DNull:
		b.WriteString("null")
	case DChar:
		b.WriteString(strconv.QuoteRune(rune(x)))
	case DStr:
		b.WriteString(strconv.Quote(string(x)))
	case DID:
		b.WriteString("<ID: " + x.UUID().String() + ">")
	case DDate:
		b.WriteString("<Date: " + x.Time().UTC().Format(time.RFC3339) + ">")
	case DTitle:
		b.WriteString("<Title: " + string(x) + ">")
	case DURL:
		b.WriteString("<Url: " + string(x) + ">")
	case DList:
		b.WriteByte('[')
		for i, el := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, el)
		}
		b.WriteByte(']')
	case DObj:
		b.WriteByte('{')
		for i, k := range x.SortedKeys() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			writeValue(b, x[k])
		}
		b.WriteByte('}')
	case DIncomplete:
		b.WriteString("<Incomplete>")
	case DBlock:
		b.WriteString("<Block>")
	case DResponse:
		fmt.Fprintf(b, "<Response %d: ", x.Meta.Status)
		writeValue(b, x.Body)
		b.WriteByte('>')
	case DDB:
		b.WriteString("<DB: " + x.Table + ">")
	default:
		fmt.Fprintf(b, "<unknown %T>", v)
	}
}
