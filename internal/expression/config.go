package expression

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Field indexes one scalar facial parameter.
type Field int

const (
	LeftEyeOpenness Field = iota
	RightEyeOpenness
	LeftPupilX
	LeftPupilY
	RightPupilX
	RightPupilY
	PupilSize
	LeftBrowHeight
	LeftBrowAngle
	LeftBrowCurve
	RightBrowHeight
	RightBrowAngle
	RightBrowCurve
	MouthWidth
	MouthOpenness
	MouthCurve
	MouthOffsetX
	LeftCheekPuff
	RightCheekPuff
	NoseScrunch
	FieldCount
)

var fieldNames = [FieldCount]string{
	"leftEyeOpenness",
	"rightEyeOpenness",
	"leftPupilX",
	"leftPupilY",
	"rightPupilX",
	"rightPupilY",
	"pupilSize",
	"leftBrowHeight",
	"leftBrowAngle",
	"leftBrowCurve",
	"rightBrowHeight",
	"rightBrowAngle",
	"rightBrowCurve",
	"mouthWidth",
	"mouthOpenness",
	"mouthCurve",
	"mouthOffsetX",
	"leftCheekPuff",
	"rightCheekPuff",
	"noseScrunch",
}

func (f Field) String() string {
	if f < 0 || f >= FieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// FieldFromName looks a field up by its JSON name.
func FieldFromName(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return -1, false
}

// Config is a full set of facial parameters. Every field is a plain scalar so
// two configs can be blended field by field.
type Config [FieldCount]float64

// Get returns a field value; unknown fields read as zero.
func (c *Config) Get(f Field) float64 {
	if f < 0 || f >= FieldCount {
		return 0
	}
	return c[f]
}

// Set writes a field value. NaN and unknown fields are ignored.
func (c *Config) Set(f Field, v float64) {
	if f < 0 || f >= FieldCount || math.IsNaN(v) {
		return
	}
	c[f] = v
}

// Lerp blends c toward target by t.
func (c *Config) Lerp(target *Config, t float64) Config {
	var out Config
	for i := range c {
		out[i] = c[i] + (target[i]-c[i])*t
	}
	return out
}

// MarshalJSON encodes the config as an object keyed by field name.
func (c Config) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, FieldCount)
	for i, v := range c {
		m[fieldNames[i]] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts a (possibly partial) object keyed by field name.
// Fields missing from the object keep their value.
func (c *Config) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for name, v := range m {
		f, ok := FieldFromName(name)
		if !ok {
			return fmt.Errorf("unknown expression field %q", name)
		}
		c[f] = v
	}
	return nil
}

// Patch is a partial overlay: only the fields present replace the base.
type Patch map[Field]float64

// Apply returns base with the patch laid over it. base is not modified.
func (p Patch) Apply(base Config) Config {
	for f, v := range p {
		base.Set(f, v)
	}
	return base
}

// Fields returns the patched fields in index order.
func (p Patch) Fields() []Field {
	out := make([]Field, 0, len(p))
	for f := range p {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyBlink closes both eyes by amount (0 open, 1 shut).
func ApplyBlink(c Config, amount float64) Config {
	amount = clamp01(amount)
	c[LeftEyeOpenness] *= 1 - amount
	c[RightEyeOpenness] *= 1 - amount
	return c
}

// ApplyPupilOffset shifts both pupils.
func ApplyPupilOffset(c Config, dx, dy float64) Config {
	c[LeftPupilX] += dx
	c[RightPupilX] += dx
	c[LeftPupilY] += dy
	c[RightPupilY] += dy
	return c
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
