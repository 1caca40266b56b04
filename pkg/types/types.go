// Package types defines shared types for the Helioscope agent.
// Records produced here are what every sink sees, so their shape is the
// agent's output contract.
package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Source groups probes by the OS facility they read from.
type Source string

const (
	SourceSysinfo Source = "sysinfo"
	SourceProcfs  Source = "procfs"
)

// Known probe names. The order of KnownProbes is the order in which the
// runner invokes enabled probes.
const (
	ProbeStaticInfo  = "static_info"
	ProbeCPU         = "cpu"
	ProbeMemory      = "memory"
	ProbeDisk        = "disk"
	ProbeNetwork     = "network"
	ProbeTemperature = "temperature"
	ProbeForks       = "forks"
)

// KnownProbe names a probe and the config table it is enabled from.
type KnownProbe struct {
	Name   string
	Source Source
}

// KnownProbes is the canonical, ordered probe set.
var KnownProbes = []KnownProbe{
	{ProbeStaticInfo, SourceSysinfo},
	{ProbeCPU, SourceSysinfo},
	{ProbeMemory, SourceSysinfo},
	{ProbeDisk, SourceSysinfo},
	{ProbeNetwork, SourceSysinfo},
	{ProbeTemperature, SourceSysinfo},
	{ProbeForks, SourceProcfs},
}

// IsKnownProbe reports whether name is in KnownProbes.
func IsKnownProbe(name string) bool {
	for _, p := range KnownProbes {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Level is the severity of a record. Probes only produce LevelInfo.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Kind is the dynamic type held by a Value.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
)

// Value is one field value: an integer, float, string or boolean.
type Value struct {
	kind Kind
	str  string
	i    int64
	u    uint64
	f    float64
	b    bool
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Str() string    { return v.str }
func (v Value) Int() int64     { return v.i }
func (v Value) Uint() uint64   { return v.u }
func (v Value) Float() float64 { return v.f }
func (v Value) Bool() bool     { return v.b }

// Any returns the value as a plain Go value.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	default:
		return v.str
	}
}

// String renders the value the way it appears in text logs.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// Field is a named value inside a record.
type Field struct {
	Key   string
	Value Value
}

func String(key, val string) Field { return Field{key, Value{kind: KindString, str: val}} }
func Int(key string, val int64) Field {
	return Field{key, Value{kind: KindInt, i: val}}
}
func Uint(key string, val uint64) Field {
	return Field{key, Value{kind: KindUint, u: val}}
}
func Float(key string, val float64) Field {
	return Field{key, Value{kind: KindFloat, f: val}}
}
func Bool(key string, val bool) Field { return Field{key, Value{kind: KindBool, b: val}} }

// Percent formats pct (already scaled to 0-100) with FormatPercent.
func Percent(key string, pct float64) Field {
	return String(key, FormatPercent(pct))
}

// FormatPercent rounds half away from zero to one decimal place and renders
// the result with exactly one fractional digit.
func FormatPercent(pct float64) string {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		pct = 0
	}
	rounded := math.Round(pct*10) / 10
	if rounded == 0 {
		rounded = 0 // avoid "-0.0"
	}
	return strconv.FormatFloat(rounded, 'f', 1, 64)
}

// UsagePercent returns used/total*100, or 0 when total is 0.
func UsagePercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100.0
}

// Fields is an ordered field list. It marshals to a JSON object whose keys
// keep emission order.
type Fields []Field

// Get returns the first field named key.
func (fs Fields) Get(key string) (Value, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Keys returns field names in order.
func (fs Fields) Keys() []string {
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.Key
	}
	return keys
}

func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value.Any())
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Record is one metric observation. Probes fill Message and Fields; the
// runner stamps Probe, Level and Timestamp before handing it to a sink.
type Record struct {
	Probe     string    `json:"probe"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Fields    Fields    `json:"fields"`
}

// NewRecord creates an informational record.
func NewRecord(message string, fields ...Field) Record {
	return Record{
		Level:   LevelInfo,
		Message: message,
		Fields:  fields,
	}
}

// Stamp returns a copy of r tagged with probe and the UTC form of ts.
func (r Record) Stamp(probe string, ts time.Time) Record {
	r.Probe = probe
	r.Timestamp = ts.UTC()
	if r.Level == "" {
		r.Level = LevelInfo
	}
	return r
}
