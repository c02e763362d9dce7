package orm

import (
	"fmt"
	"math"
	"reflect"

	"github.com/nerrad567/recordstore/internal/infrastructure/database"
)

// recordValue returns the struct value behind rec.
func recordValue(rec any) (reflect.Value, error) {
	v := reflect.ValueOf(rec)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil record", ErrEncodingFailed)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNotStruct, v.Type())
	}
	return v, nil
}

// bindValues returns the positional bind values for rec, one per column
// in descriptor order. Any failure discards every value.
func bindValues(desc *Descriptor, c Codec, rec reflect.Value) ([]any, error) {
	args := make([]any, len(desc.Columns))
	for i, col := range desc.Columns {
		v, err := bindValue(col, c, rec.FieldByIndex(col.index))
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %w", ErrEncodingFailed, col.Name, err)
		}
		args[i] = v
	}
	return args, nil
}

func bindValue(col Column, c Codec, fv reflect.Value) (any, error) {
	switch col.enum {
	case EnumInteger:
		return fv.Interface().(IntegerEnum).RawInteger(), nil
	case EnumText:
		return fv.Interface().(TextEnum).RawText(), nil
	}

	if col.nullable && fv.IsNil() {
		return nil, nil
	}
	if col.pointer {
		fv = fv.Elem()
	}

	switch col.Kind {
	case KindText:
		return fv.String(), nil
	case KindInteger:
		if fv.CanInt() {
			return fv.Int(), nil
		}
		u := fv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows a signed 64-bit integer", u)
		}
		return int64(u), nil
	case KindReal:
		return fv.Float(), nil
	case KindBoolean:
		if fv.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case KindBlob:
		if col.rawBytes {
			return fv.Bytes(), nil
		}
		return c.Marshal(fv.Interface())
	default:
		return nil, fmt.Errorf("unsupported kind %s", col.Kind)
	}
}

// decodeRow assigns row values to the fields of dst, which must be an
// addressable struct value of desc.Type. Columns absent from row or
// holding NULL leave the field at its zero value.
func decodeRow(desc *Descriptor, c Codec, row database.StoredRow, dst reflect.Value) error {
	for _, col := range desc.Columns {
		raw, ok := row[col.Name]
		if !ok || raw == nil {
			continue
		}
		if err := assign(col, c, dst.FieldByIndex(col.index), raw); err != nil {
			return fmt.Errorf("%w: column %s: %w", ErrDecodingFailed, col.Name, err)
		}
	}
	return nil
}

func assign(col Column, c Codec, fv reflect.Value, raw any) error {
	switch col.enum {
	case EnumInteger:
		n, err := toInt64(raw)
		if err != nil {
			return err
		}
		return fv.Addr().Interface().(IntegerEnumSetter).SetRawInteger(n)
	case EnumText:
		s, err := toText(raw)
		if err != nil {
			return err
		}
		return fv.Addr().Interface().(TextEnumSetter).SetRawText(s)
	}

	target := fv
	if col.pointer {
		target = reflect.New(fv.Type().Elem()).Elem()
	}
	if err := assignValue(col, c, target, raw); err != nil {
		return err
	}
	if col.pointer {
		fv.Set(target.Addr())
	}
	return nil
}

func assignValue(col Column, c Codec, target reflect.Value, raw any) error {
	switch col.Kind {
	case KindText:
		s, err := toText(raw)
		if err != nil {
			return err
		}
		target.SetString(s)

	case KindInteger:
		n, err := toInt64(raw)
		if err != nil {
			return err
		}
		if target.CanInt() {
			if target.OverflowInt(n) {
				return fmt.Errorf("%d overflows %s", n, target.Type())
			}
			target.SetInt(n)
			return nil
		}
		if n < 0 || target.OverflowUint(uint64(n)) {
			return fmt.Errorf("%d overflows %s", n, target.Type())
		}
		target.SetUint(uint64(n))

	case KindReal:
		f, err := toFloat64(raw)
		if err != nil {
			return err
		}
		if target.OverflowFloat(f) {
			return fmt.Errorf("%g overflows %s", f, target.Type())
		}
		target.SetFloat(f)

	case KindBoolean:
		switch v := raw.(type) {
		case bool:
			target.SetBool(v)
		default:
			n, err := toInt64(raw)
			if err != nil {
				return err
			}
			target.SetBool(n != 0)
		}

	case KindBlob:
		data, err := toBytes(raw)
		if err != nil {
			return err
		}
		if col.rawBytes {
			target.SetBytes(append([]byte(nil), data...))
			return nil
		}
		if err := c.Unmarshal(data, target.Addr().Interface()); err != nil {
			return fmt.Errorf("%s payload: %w", c.Name(), err)
		}

	default:
		return fmt.Errorf("unsupported kind %s", col.Kind)
	}
	return nil
}

func toText(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("cannot read %T as text", raw)
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("cannot read %g as integer", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot read %T as integer", raw)
	}
}

func toFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("cannot read %T as real", raw)
	}
}

func toBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot read %T as blob", raw)
	}
}
