// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flagvar registers flags directly from struct fields tagged with a
// name, default, and usage string, so board bring-up parameters can live
// colocated with the struct that carries them to kernel.Init instead of as
// a pile of package-level flag variables.
package flagvar

import (
	"flag"
	"fmt"
	"reflect"
	"strconv"
	"time"
	"unsafe"
)

var flagValueType = reflect.TypeOf((*flag.Value)(nil)).Elem()

// consume reads t up to the first unescaped occurrence of sep.
func consume(t string, sep rune) (value, remaining string) {
	val := make([]rune, 0, len(t))
	escaped := false
	for i, r := range t {
		if r == '\\' {
			escaped = true
			continue
		}
		if !escaped && r == sep {
			return string(val), t[i:]
		}
		escaped = false
		val = append(val, r)
	}
	return string(val), ""
}

func parseField(t, field string, allowEmpty, expectMore bool) (value, remaining string, err error) {
	defer func() {
		if err != nil {
			return
		}
		if !allowEmpty && len(value) == 0 {
			err = fmt.Errorf("empty field for %v", field)
			return
		}
		if expectMore {
			if len(remaining) == 0 {
				err = fmt.Errorf("more fields expected after %v", field)
				return
			}
			if remaining[0] == ',' {
				remaining = remaining[1:]
			}
			return
		}
		if len(remaining) > 0 {
			err = fmt.Errorf("spurious text after %v", field)
		}
	}()
	if len(t) == 0 {
		return
	}
	if t[0] == '\'' {
		value, remaining = consume(t[1:], '\'')
		if len(remaining) == 0 {
			err = fmt.Errorf("missing close quote (') for %v", field)
			return
		}
		remaining = remaining[1:]
		return
	}
	value, remaining = consume(t, ',')
	return
}

// ParseFlagTag parses a "<name>,<default>,<usage>" tag into its components.
// Any field may be quoted with ' to embed a comma.
func ParseFlagTag(t string) (name, value, usage string, err error) {
	if len(t) == 0 {
		return "", "", "", fmt.Errorf("empty or missing tag")
	}
	name, remaining, err := parseField(t, "<name>", false, true)
	if err != nil {
		return
	}
	value, remaining, err = parseField(remaining, "<default-value>", true, true)
	if err != nil {
		return
	}
	usage, _, err = parseField(remaining, "<usage>", false, false)
	return
}

func defaultLiteralValue(typeName string) interface{} {
	switch typeName {
	case "int":
		return int(0)
	case "int64", "time.Duration":
		return int64(0)
	case "uint":
		return uint(0)
	case "uint64":
		return uint64(0)
	case "bool":
		return false
	case "float64":
		return float64(0)
	case "string":
		return ""
	}
	return nil
}

func literalDefault(typeName, literal string, initial interface{}) (value interface{}, err error) {
	if initial != nil {
		switch v := initial.(type) {
		case int, int64, uint, uint64, bool, float64, string, time.Duration:
			return v, nil
		}
	}
	if len(literal) == 0 {
		return defaultLiteralValue(typeName), nil
	}
	var tmp int64
	var utmp uint64
	switch typeName {
	case "int":
		tmp, err = strconv.ParseInt(literal, 10, 64)
		value = int(tmp)
	case "int64":
		tmp, err = strconv.ParseInt(literal, 10, 64)
		value = tmp
	case "uint":
		utmp, err = strconv.ParseUint(literal, 10, 64)
		value = uint(utmp)
	case "uint64":
		utmp, err = strconv.ParseUint(literal, 10, 64)
		value = utmp
	case "bool":
		value, err = strconv.ParseBool(literal)
	case "float64":
		value, err = strconv.ParseFloat(literal, 64)
	case "time.Duration":
		value, err = time.ParseDuration(literal)
	case "string":
		value = literal
	}
	return
}

func createVarFlag(fs *flag.FlagSet, fieldValue reflect.Value, name, value, description string) error {
	addr := fieldValue.Addr()
	if !addr.Type().Implements(flagValueType) {
		return fmt.Errorf("does not implement flag.Value")
	}
	dv := addr.Interface().(flag.Value)
	fs.Var(dv, name, description)
	if len(value) > 0 {
		if err := dv.Set(value); err != nil {
			return fmt.Errorf("failed to set initial default value: %v", err)
		}
	}
	return nil
}

func createFlagsBasedOnValue(fs *flag.FlagSet, initialValue interface{}, fieldValue reflect.Value, name, description string) bool {
	switch dv := initialValue.(type) {
	case int:
		fs.IntVar((*int)(unsafe.Pointer(fieldValue.Addr().Pointer())), name, dv, description)
	case int64:
		fs.Int64Var((*int64)(unsafe.Pointer(fieldValue.Addr().Pointer())), name, dv, description)
	case uint:
		fs.UintVar((*uint)(unsafe.Pointer(fieldValue.Addr().Pointer())), name, dv, description)
	case uint64:
		fs.Uint64Var((*uint64)(unsafe.Pointer(fieldValue.Addr().Pointer())), name, dv, description)
	case bool:
		fs.BoolVar((*bool)(unsafe.Pointer(fieldValue.Addr().Pointer())), name, dv, description)
	case float64:
		fs.Float64Var((*float64)(unsafe.Pointer(fieldValue.Addr().Pointer())), name, dv, description)
	case string:
		fs.StringVar((*string)(unsafe.Pointer(fieldValue.Addr().Pointer())), name, dv, description)
	case time.Duration:
		fs.DurationVar((*time.Duration)(unsafe.Pointer(fieldValue.Addr().Pointer())), name, dv, description)
	default:
		return false
	}
	return true
}

func getTypeVal(structWithFlags interface{}) (reflect.Type, reflect.Value, error) {
	typ := reflect.TypeOf(structWithFlags)
	val := reflect.ValueOf(structWithFlags)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
		val = reflect.Indirect(val)
	}
	if !val.CanAddr() {
		return nil, reflect.Value{}, fmt.Errorf("%T is not addressable", structWithFlags)
	}
	if typ.Kind() != reflect.Struct {
		return nil, reflect.Value{}, fmt.Errorf("%T is not a pointer to a struct", structWithFlags)
	}
	return typ, val, nil
}

// RegisterFlagsInStruct registers a flag for every field of structWithFlags
// tagged `tag:"name,default,usage"`, including fields of embedded untagged
// structs. valueDefaults supplies computed defaults (keyed by flag name)
// that override the tag's literal default.
func RegisterFlagsInStruct(fs *flag.FlagSet, tag string, structWithFlags interface{}, valueDefaults map[string]interface{}) error {
	typ, val, err := getTypeVal(structWithFlags)
	if err != nil {
		return err
	}
	for i := 0; i < typ.NumField(); i++ {
		fieldType := typ.Field(i)
		tags, ok := fieldType.Tag.Lookup(tag)
		if !ok {
			if fieldType.Type.Kind() == reflect.Struct && fieldType.Anonymous {
				if err := RegisterFlagsInStruct(fs, tag, val.Field(i).Addr().Interface(), valueDefaults); err != nil {
					return err
				}
			}
			continue
		}
		name, value, description, err := ParseFlagTag(tags)
		if err != nil {
			return fmt.Errorf("field %v: failed to parse tag %q: %v", fieldType.Name, tags, err)
		}
		if fs.Lookup(name) != nil {
			return fmt.Errorf("flag %v already defined", name)
		}

		fieldValue := val.Field(i)
		fieldTypeName := fieldType.Type.String()
		errPrefix := fmt.Sprintf("field %v of type %v for flag %v", fieldType.Name, fieldTypeName, name)

		if fieldType.Type.Kind() == reflect.Ptr {
			return fmt.Errorf("%v: field can't be a pointer", errPrefix)
		}

		initialValue, err := literalDefault(fieldTypeName, value, valueDefaults[name])
		if err != nil {
			return fmt.Errorf("%v: failed to set default: %v", errPrefix, err)
		}
		if initialValue == nil {
			if err := createVarFlag(fs, fieldValue, name, value, description); err != nil {
				return fmt.Errorf("%v: %v", errPrefix, err)
			}
			continue
		}
		if !createFlagsBasedOnValue(fs, initialValue, fieldValue, name, description) {
			return fmt.Errorf("%v: unsupported type %T", errPrefix, initialValue)
		}
	}
	return nil
}
