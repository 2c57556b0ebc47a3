// Package serializer turns fixed-shape values into a stable little-endian
// byte layout and back. It exists for savestate snapshots, whose format
// must not drift with compiler or library versions, so the walker supports
// exactly the kinds the guest state is made of: unsigned integers, arrays
// and structs of them.
package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
)

// Serialize accepts a value or pointer and returns its byte representation.
// Byte arrays become raw bytes; struct fields are written in declaration
// order. Unsupported kinds are a programming error.
func Serialize(v any) []byte {
	val := reflect.ValueOf(v)

	if val.Kind() == reflect.Ptr && !val.IsNil() {
		val = val.Elem()
	}

	buf := bytes.NewBuffer(make([]byte, 0, 4096))
	serializeValue(val, buf)

	return buf.Bytes()
}

// Deserialize reads data produced by Serialize back into target, which
// must be a non-nil pointer of the same shape. The data must be consumed
// exactly.
func Deserialize(data []byte, target any) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("deserialize target must be a non-nil pointer")
	}

	buf := bytes.NewBuffer(data)
	if err := deserializeValue(val.Elem(), buf); err != nil {
		return err
	}

	if buf.Len() > 0 {
		return fmt.Errorf("extra %d bytes left after deserialization", buf.Len())
	}

	return nil
}

// serializeValue writes value v to buf
func serializeValue(v reflect.Value, buf *bytes.Buffer) {
	typ := v.Type()

	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			serializeValue(v.Field(i), buf)
		}

	case reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			for i := 0; i < v.Len(); i++ {
				buf.WriteByte(byte(v.Index(i).Uint()))
			}
			return
		}
		for i := 0; i < v.Len(); i++ {
			serializeValue(v.Index(i), buf)
		}

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf.Write(EncodeLittleEndian(int(typ.Size()), v.Uint()))

	default:
		panic(fmt.Sprintf("unsupported kind: %s", v.Kind()))
	}
}

// deserializeValue is the recursive helper that reads from buf into value v
func deserializeValue(v reflect.Value, buf *bytes.Buffer) error {
	typ := v.Type()

	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := deserializeValue(v.Field(i), buf); err != nil {
				return fmt.Errorf("field %s: %w", typ.Field(i).Name, err)
			}
		}
		return nil

	case reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			raw := make([]byte, v.Len())
			if n, _ := buf.Read(raw); n != v.Len() {
				return fmt.Errorf("need %d bytes for %s, got %d", v.Len(), typ, n)
			}
			reflect.Copy(v, reflect.ValueOf(raw))
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := deserializeValue(v.Index(i), buf); err != nil {
				return err
			}
		}
		return nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		size := int(typ.Size())
		raw := make([]byte, size)
		if n, _ := buf.Read(raw); n != size {
			return fmt.Errorf("need %d bytes for %s, got %d", size, typ, n)
		}
		v.SetUint(DecodeLittleEndian(raw))
		return nil

	default:
		return fmt.Errorf("unsupported kind: %s", v.Kind())
	}
}

// EncodeLittleEndian encodes x into the given number of octets.
func EncodeLittleEndian(octets int, x uint64) []byte {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], x)
	out := make([]byte, octets)
	copy(out, scratch[:octets])
	return out
}

// DecodeLittleEndian decodes up to eight little-endian octets.
func DecodeLittleEndian(b []byte) uint64 {
	var scratch [8]byte
	copy(scratch[:], b)
	return binary.LittleEndian.Uint64(scratch[:])
}
