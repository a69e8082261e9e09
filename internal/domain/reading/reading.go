package reading

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitMmolPerL Unit = "mmol/L"
	UnitMgPerDL  Unit = "mg/dL"
)

func (u Unit) IsValid() bool {
	switch u {
	case UnitMmolPerL, UnitMgPerDL:
		return true
	}
	return false
}

// GlucoseReading is one blood-glucose measurement taken from a patient.
// No unit conversion happens anywhere: Value is stored in whatever Unit it
// was recorded in.
type GlucoseReading struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	Value      decimal.Decimal
	Unit       Unit
	RecordedAt time.Time
}

type NewReadingCommand struct {
	// ID is generated when left as uuid.Nil.
	ID         uuid.UUID
	PatientID  uuid.UUID
	Value      decimal.Decimal
	Unit       Unit
	RecordedAt time.Time
}

func New(cmd NewReadingCommand) (*GlucoseReading, error) {
	id := cmd.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	r := &GlucoseReading{
		ID:         id,
		PatientID:  cmd.PatientID,
		Value:      cmd.Value,
		Unit:       cmd.Unit,
		RecordedAt: cmd.RecordedAt,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *GlucoseReading) Validate() error {
	var errs []string

	if r.ID == uuid.Nil {
		errs = append(errs, "reading_uuid is required")
	}
	if r.PatientID == uuid.Nil {
		errs = append(errs, "patient_uuid is required")
	}
	if !r.Unit.IsValid() {
		errs = append(errs, fmt.Sprintf("unit %q is invalid: must be one of %s, %s", r.Unit, UnitMmolPerL, UnitMgPerDL))
	}
	if r.RecordedAt.IsZero() {
		errs = append(errs, "recorded_at is required")
	}
	if err := checkValue(r.Value); err != nil {
		errs = append(errs, "value: "+err.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Equal compares every field. Values are compared by their canonical text so
// that "5.5" and "5.50" are different readings; timestamps by instant.
func (r *GlucoseReading) Equal(o *GlucoseReading) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.ID == o.ID &&
		r.PatientID == o.PatientID &&
		r.Unit == o.Unit &&
		FormatValue(r.Value) == FormatValue(o.Value) &&
		r.RecordedAt.Equal(o.RecordedAt)
}

// Clone returns a copy that shares nothing mutable with r.
func (r *GlucoseReading) Clone() *GlucoseReading {
	c := *r
	return &c
}

func (r *GlucoseReading) String() string {
	return fmt.Sprintf("GlucoseReading(%s patient=%s %s %s at %s)",
		r.ID, r.PatientID, FormatValue(r.Value), r.Unit, r.RecordedAt.Format(time.RFC3339Nano))
}

// FormatValue renders d keeping the scale it was created with. decimal's own
// String trims trailing zeros, which would turn "5.50" into "5.5".
func FormatValue(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// MaxValueDigits bounds how many digits FormatValue may write for a value,
// integer and fractional parts counted separately. Without it an exponent
// such as 1e-2000000000 would expand to gigabytes of text.
const MaxValueDigits = 64

func ParseValue(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	// Reject text no in-range value needs before decimal allocates for it.
	if len(s) > 2*MaxValueDigits+4 {
		return decimal.Decimal{}, fmt.Errorf("%w: %d characters is too long", ErrInvalidValue, len(s))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	if err := checkValue(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

func checkValue(d decimal.Decimal) error {
	exp := d.Exponent()
	if exp < -MaxValueDigits {
		return fmt.Errorf("%w: more than %d fractional digits", ErrInvalidValue, MaxValueDigits)
	}
	// Positive exponents are written out as trailing zeros.
	if intDigits := int64(d.NumDigits()) + int64(exp); intDigits > MaxValueDigits {
		return fmt.Errorf("%w: more than %d integer digits", ErrInvalidValue, MaxValueDigits)
	}
	return nil
}
