// Package tags turns the run's tag list into queue message attributes and
// extracts the correlation identifier used as the FIFO grouping key.
package tags

import (
	"fmt"
	"strings"

	errspkg "github.com/drblury/sqsreporter/internal/runtime/errors"
	"github.com/drblury/sqsreporter/internal/runtime/jsoncodec"
)

// CorrelationKey is the tag whose value identifies the test run.
const CorrelationKey = "testId"

// StringDataType is the queue attribute type every tag value is sent as.
const StringDataType = "String"

// Tag is a single key/value pair supplied by the environment or config.
type Tag struct {
	Key   string `json:"key" mapstructure:"key"`
	Value string `json:"value" mapstructure:"value"`
}

// Attribute is a typed message attribute value.
type Attribute struct {
	DataType    string
	StringValue string
}

// Correlation holds everything derived from the tag list. It is built once
// and never mutated.
type Correlation struct {
	attributes map[string]Attribute
	id         string
	hasID      bool
}

// Resolve builds the attribute map and correlation identifier. Later
// duplicates of a key overwrite earlier ones.
func Resolve(list []Tag) Correlation {
	c := Correlation{attributes: make(map[string]Attribute, len(list))}
	for _, tag := range list {
		if tag.Key == CorrelationKey {
			c.id = tag.Value
			c.hasID = true
		}
		c.attributes[tag.Key] = Attribute{DataType: StringDataType, StringValue: tag.Value}
	}
	return c
}

// ID returns the correlation identifier and whether a testId tag was present.
func (c Correlation) ID() (string, bool) {
	return c.id, c.hasID
}

// GroupID returns the grouping key for queue submission, nil when absent.
func (c Correlation) GroupID() *string {
	if !c.hasID {
		return nil
	}
	id := c.id
	return &id
}

// Attributes returns a copy of the attribute map.
func (c Correlation) Attributes() map[string]Attribute {
	out := make(map[string]Attribute, len(c.attributes))
	for k, v := range c.attributes {
		out[k] = v
	}
	return out
}

// Len reports the number of distinct attribute keys.
func (c Correlation) Len() int {
	return len(c.attributes)
}

// Parse decodes a JSON list of {key, value} objects. Blank input yields an
// empty list.
func Parse(raw string) ([]Tag, error) {
	if strings.TrimSpace(raw) == "" {
		return []Tag{}, nil
	}
	var list []Tag
	if err := jsoncodec.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", errspkg.ErrMalformedTags, err)
	}
	if list == nil {
		list = []Tag{}
	}
	return list, nil
}
