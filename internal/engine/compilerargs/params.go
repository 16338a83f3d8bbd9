package compilerargs

import (
	"bytes"
	"encoding/json"
)

// Value is the recorded state of one flag. Which field is meaningful
// depends on Kind: Single for singletons, Values for ordered, cumulative and
// define flags, nothing for booleans (presence is the value).
type Value struct {
	Kind   FlagKind
	Single string
	Values []string

	seen map[string]struct{}
}

// Params maps flag tokens to their recorded values and remembers the order
// in which flags were first seen.
type Params struct {
	order  []string
	values map[string]*Value
}

func NewParams() *Params {
	return &Params{values: make(map[string]*Value)}
}

func (p *Params) entry(flag string, kind FlagKind) *Value {
	v, ok := p.values[flag]
	if !ok {
		v = &Value{Kind: kind}
		p.values[flag] = v
		p.order = append(p.order, flag)
	}
	return v
}

// SetSingle records a singleton value; the last call wins.
func (p *Params) SetSingle(flag, val string) {
	p.entry(flag, KindSingleton).Single = val
}

// Append records a value for an ordered flag, keeping duplicates.
func (p *Params) Append(flag, val string) {
	v := p.entry(flag, KindOrdered)
	v.Values = append(v.Values, val)
}

// Add records a value in a deduplicated set. Iteration follows insertion order.
func (p *Params) Add(flag string, kind FlagKind, val string) {
	v := p.entry(flag, kind)
	if v.seen == nil {
		v.seen = make(map[string]struct{})
	}
	if _, dup := v.seen[val]; dup {
		return
	}
	v.seen[val] = struct{}{}
	v.Values = append(v.Values, val)
}

// SetBool records the presence of a boolean flag.
func (p *Params) SetBool(flag string) {
	p.entry(flag, KindBoolean)
}

func (p *Params) Get(flag string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.values[flag]
	if !ok {
		return Value{}, false
	}
	return *v, true
}

// Single returns a singleton's value or "".
func (p *Params) Single(flag string) string {
	v, ok := p.Get(flag)
	if !ok {
		return ""
	}
	return v.Single
}

// Values returns the values of a list or set flag.
func (p *Params) Values(flag string) []string {
	v, ok := p.Get(flag)
	if !ok {
		return nil
	}
	return append([]string(nil), v.Values...)
}

func (p *Params) Has(flag string) bool {
	_, ok := p.Get(flag)
	return ok
}

// Flags lists recorded flags in first-seen order.
func (p *Params) Flags() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.order...)
}

func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}

// Args flattens the params into an argument list for re-invoking the toolchain.
func (p *Params) Args() []string {
	args := make([]string, 0, p.Len()*2)
	for _, flag := range p.Flags() {
		v := p.values[flag]
		switch v.Kind {
		case KindSingleton:
			args = append(args, flag, v.Single)
		case KindBoolean:
			args = append(args, flag)
		default:
			for _, val := range v.Values {
				args = append(args, flag, val)
			}
		}
	}
	return args
}

// MarshalJSON writes an object keyed by flag in first-seen order.
func (p *Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, flag := range p.Flags() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(flag)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v := p.values[flag]
		var val any
		switch v.Kind {
		case KindSingleton:
			val = v.Single
		case KindBoolean:
			val = true
		default:
			val = v.Values
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
