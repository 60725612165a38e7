package amf

// Properties is an insertion-ordered map of unique keys. The zero value is
// ready to use.
type Properties struct {
	keys   []string
	values map[string]Value
}

// Set inserts key or replaces its value in place, keeping its position.
func (p *Properties) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

func (p *Properties) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p *Properties) Delete(key string) bool {
	if _, ok := p.values[key]; !ok {
		return false
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	return true
}

func (p *Properties) Len() int {
	return len(p.keys)
}

// Keys returns a copy of the keys in insertion order.
func (p *Properties) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Range visits entries in insertion order until fn returns false.
func (p *Properties) Range(fn func(key string, v Value) bool) {
	for _, k := range p.keys {
		if !fn(k, p.values[k]) {
			return
		}
	}
}
