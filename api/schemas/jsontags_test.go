package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// TestStructJSONTags uses reflection to verify that the `json` tags on struct
// fields are correct. The action and event structs are wire contracts with the
// model and the interface clients, so tag drift breaks parsing silently.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "ActionInvocation",
			structRef: schemas.ActionInvocation{},
			expectedTags: map[string]string{
				"Name":       "action",
				"Coordinate": "coordinate,omitempty",
				"Text":       "text,omitempty",
				"Keys":       "keys,omitempty",
				"Pixels":     "pixels,omitempty",
				"Seconds":    "time,omitempty",
				"Status":     "status,omitempty",
			},
		},
		{
			name:      "ToolCall",
			structRef: schemas.ToolCall{},
			expectedTags: map[string]string{
				"Name":      "name",
				"Arguments": "arguments,omitempty",
			},
		},
		{
			name:      "AssistantEvent",
			structRef: schemas.AssistantEvent{},
			expectedTags: map[string]string{
				"Type":    "type",
				"Message": "message,omitempty",
				"Data":    "data,omitempty",
			},
		},
		{
			name:      "ConversationTurn",
			structRef: schemas.ConversationTurn{},
			expectedTags: map[string]string{
				"Role":   "role",
				"Text":   "content",
				"Images": "images,omitempty",
			},
		},
		{
			name:      "Story",
			structRef: schemas.Story{},
			expectedTags: map[string]string{
				"ID":       "id",
				"Title":    "title",
				"Category": "category,omitempty",
				"Source":   "source,omitempty",
				"Date":     "date,omitempty",
				"URL":      "url,omitempty",
				"Image":    "image,omitempty",
				"Body":     "body,omitempty",
			},
		},
		{
			name:      "DeviceInfo",
			structRef: schemas.DeviceInfo{},
			expectedTags: map[string]string{
				"Alias":      "alias",
				"Addr":       "ip",
				"Model":      "model",
				"Type":       "type",
				"IsOn":       "is_on",
				"Brightness": "brightness,omitempty",
				"IsColor":    "is_color",
				"Color":      "color,omitempty",
			},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			structType := reflect.TypeOf(tt.structRef)
			actualTags := make(map[string]string)

			for i := 0; i < structType.NumField(); i++ {
				field := structType.Field(i)
				jsonTag := field.Tag.Get("json")
				if jsonTag != "" {
					actualTags[field.Name] = jsonTag
				}
			}

			assert.Equal(t, tt.expectedTags, actualTags, "JSON tags for struct %s do not match expectations", tt.name)
		})
	}
}
