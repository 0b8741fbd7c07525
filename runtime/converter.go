package runtime

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// mapToStruct converts a map[string]any to a struct using mapstructure.
// It uses json tags for field mapping and supports time.Duration and time.Time conversions.
func mapToStruct(m map[string]any, target any) error {
	return decodeWithTag(m, target, "json")
}

// mapToStructFromYAML is mapToStruct for config structs, which carry yaml tags.
func mapToStructFromYAML(m map[string]any, target any) error {
	return decodeWithTag(m, target, "yaml")
}

func decodeWithTag(m map[string]any, target any, tag string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: tag,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			floatToIntegerHookFunc(),
		),
		WeaklyTypedInput: true, // Allow type coercion (e.g., "10" -> int)
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("failed to decode map to struct: %w", err)
	}

	return nil
}

// floatToIntegerHookFunc only lets a float into an integer field when it is a
// whole number that fits the field. Plain mapstructure truncates toward zero.
func floatToIntegerHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Float32 && from.Kind() != reflect.Float64 {
			return data, nil
		}

		var lower, upper float64
		switch to.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			upper = math.Ldexp(1, to.Bits()-1)
			lower = -upper
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			upper = math.Ldexp(1, to.Bits())
		default:
			return data, nil
		}

		f := reflect.ValueOf(data).Float()
		if math.Trunc(f) != f {
			return nil, fmt.Errorf("%v is not an integer", data)
		}
		if f < lower || f >= upper {
			return nil, fmt.Errorf("%v is out of range for %s", data, to.Kind())
		}
		return data, nil
	}
}
