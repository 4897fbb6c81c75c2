package story

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Value è un valore JSON dei metadati. L'insieme dei tipi è chiuso:
// String, Number, Bool, Null, Array e *Object.
type Value interface {
	json.Marshaler
	isValue()
}

// String è una stringa JSON
type String string

// Number conserva il literal numerico originale (es. "1.50")
type Number string

// Bool è un booleano JSON
type Bool bool

// Null è il valore JSON null
type Null struct{}

// Array è una lista JSON
type Array []Value

func (String) isValue()  {}
func (Number) isValue()  {}
func (Bool) isValue()    {}
func (Null) isValue()    {}
func (Array) isValue()   {}
func (*Object) isValue() {}

func (s String) MarshalJSON() ([]byte, error) {
	return MarshalCompact(string(s))
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	if !json.Valid([]byte(n)) {
		return nil, fmt.Errorf("invalid number literal %q", string(n))
	}
	return []byte(n), nil
}

func (b Bool) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatBool(bool(b))), nil
}

func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (a Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Float restituisce il valore numerico del literal
func (n Number) Float() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Object è una mappa JSON che mantiene l'ordine di inserimento delle chiavi
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject crea un oggetto vuoto
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Len restituisce il numero di chiavi
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys restituisce le chiavi in ordine di inserimento
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Get restituisce il valore associato alla chiave
func (o *Object) Get(key string) (Value, bool) {
	if o == nil || o.values == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has verifica la presenza della chiave
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Set inserisce o sovrascrive; una chiave già presente mantiene la posizione
func (o *Object) Set(key string, v Value) {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if v == nil {
		v = Null{}
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Add inserisce solo se la chiave non esiste ancora
func (o *Object) Add(key string, v Value) bool {
	if o.Has(key) {
		return false
	}
	o.Set(key, v)
	return true
}

// Delete rimuove la chiave, restituisce false se non era presente
func (o *Object) Delete(key string) bool {
	if !o.Has(key) {
		return false
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// Clone esegue una copia superficiale
func (o *Object) Clone() *Object {
	out := NewObject()
	if o == nil {
		return out
	}
	for _, k := range o.keys {
		out.Set(k, o.values[k])
	}
	return out
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if o != nil {
		for i, k := range o.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := MarshalCompact(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalValue(o.values[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Object) UnmarshalJSON(data []byte) error {
	obj, err := ParseObject(data)
	if err != nil {
		return err
	}
	*o = *obj
	return nil
}

func marshalValue(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return v.MarshalJSON()
}

// MarshalCompact serializza senza indentazione e senza escape HTML
func MarshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalPretty serializza con indentazione di due spazi, senza escape HTML
func MarshalPretty(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseValue decodifica un documento JSON mantenendo l'ordine delle chiavi
// e i literal numerici.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	// niente dopo il valore principale
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("invalid character after top-level value")
		}
		return nil, err
	}
	return v, nil
}

// ParseObject decodifica un documento che deve essere un oggetto JSON
func ParseObject(data []byte) (*Object, error) {
	v, err := ParseValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("JSON value is not an object")
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := Array{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", rune(t))
		}
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// Text restituisce la rappresentazione testuale usata negli attributi HTML:
// stringhe senza virgolette, scalari come literal, contenitori come JSON compatto.
func Text(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case String:
		return string(t)
	case Number:
		return string(t)
	case Bool:
		return strconv.FormatBool(bool(t))
	case Null:
		return ""
	default:
		b, err := t.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// FromAny converte valori Go nativi (come quelli prodotti da encoding/json)
// nel tipo chiuso Value. Le chiavi delle mappe vengono ordinate.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case float64:
		return Number(strconv.FormatFloat(t, 'f', -1, 64)), nil
	case float32:
		return Number(strconv.FormatFloat(float64(t), 'f', -1, 32)), nil
	case int:
		return Number(strconv.Itoa(t)), nil
	case int64:
		return Number(strconv.FormatInt(t, 10)), nil
	case []any:
		arr := make(Array, 0, len(t))
		for _, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case []string:
		arr := make(Array, 0, len(t))
		for _, item := range t {
			arr = append(arr, String(item))
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported metadata value of type %T", x)
}
