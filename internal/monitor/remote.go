package monitor

import (
	"encoding/json"

	"github.com/chromedp/cdproto/runtime"
)

// remoteValue converts a CDP RemoteObject into a plain Go value suitable for
// console message formatting.
func remoteValue(obj *runtime.RemoteObject) interface{} {
	if obj == nil {
		return nil
	}

	// Infinity, -Infinity, NaN, -0, bigint.
	if obj.UnserializableValue != "" {
		return string(obj.UnserializableValue)
	}

	if obj.Value != nil {
		var v interface{}
		if err := json.Unmarshal(obj.Value, &v); err == nil {
			return v
		}
		return string(obj.Value)
	}

	if obj.Type == runtime.TypeUndefined {
		return "undefined"
	}
	if obj.Subtype == runtime.SubtypeNull {
		return nil
	}

	if obj.Preview != nil {
		return previewValue(obj.Preview)
	}
	if obj.Description != "" {
		return obj.Description
	}
	return string(obj.Type)
}

// previewValue rebuilds a readable value from an ObjectPreview. Previews are
// shallow; overflowing entries are marked rather than fetched.
func previewValue(preview *runtime.ObjectPreview) interface{} {
	if preview == nil {
		return nil
	}

	if preview.Subtype == runtime.SubtypeArray {
		arr := make([]interface{}, 0, len(preview.Properties))
		for _, prop := range preview.Properties {
			arr = append(arr, propertyValue(prop))
		}
		if preview.Overflow {
			arr = append(arr, "...")
		}
		return arr
	}

	obj := make(map[string]interface{}, len(preview.Properties))
	for _, prop := range preview.Properties {
		obj[prop.Name] = propertyValue(prop)
	}
	if preview.Overflow {
		obj["..."] = "(truncated)"
	}
	return obj
}

// propertyValue decodes a single PropertyPreview.
func propertyValue(prop *runtime.PropertyPreview) interface{} {
	switch prop.Type {
	case runtime.TypeNumber:
		var v float64
		if err := json.Unmarshal([]byte(prop.Value), &v); err == nil {
			return v
		}
		return prop.Value
	case runtime.TypeBoolean:
		return prop.Value == "true"
	case runtime.TypeString:
		return prop.Value
	case runtime.TypeUndefined:
		return "undefined"
	case runtime.TypeObject:
		if prop.Subtype == runtime.SubtypeNull {
			return nil
		}
		return prop.Value
	default:
		return prop.Value
	}
}
