package images

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrUnexpectedShape means the image source answered with JSON that is
// neither a list of page entries nor a {results: [...]} envelope.
var ErrUnexpectedShape = errors.New("unexpected image source response shape")

// ErrNoImageData marks an entry that carries no image payload.
var ErrNoImageData = errors.New("entry has no image_data")

const entrySchema = `{
  "type": "object",
  "properties": {
    "page_number": {"type": ["integer", "string", "null"], "pattern": "^-?[0-9]+$"},
    "image_data": {"type": ["string", "null"]}
  }
}`

var (
	listSchema = mustCompile("image-list.json", `{
  "type": "array",
  "items": `+entrySchema+`
}`)

	envelopeSchema = mustCompile("image-envelope.json", `{
  "type": "object",
  "required": ["results"],
  "properties": {
    "results": {"type": "array", "items": `+entrySchema+`}
  }
}`)
)

// entry is one image record as served by the image source.
type entry struct {
	PageNumber json.Number `json:"page_number"`
	ImageData  *string     `json:"image_data"`
}

func mustCompile(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("images: load schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// decodeEntries classifies body and returns its entries.
func decodeEntries(body []byte) ([]entry, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode image source response: %w", err)
	}

	var list []entry
	switch {
	case doc == nil:
		return nil, nil
	case listSchema.Validate(doc) == nil:
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to decode image list: %w", err)
		}
	case envelopeSchema.Validate(doc) == nil:
		var env struct {
			Results []entry `json:"results"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("failed to decode image envelope: %w", err)
		}
		list = env.Results
	default:
		return nil, ErrUnexpectedShape
	}
	return list, nil
}

func (e entry) pageNumber() int {
	n, err := e.PageNumber.Int64()
	if err != nil {
		return 0
	}
	return int(n)
}

func (e entry) image() (string, error) {
	if e.ImageData == nil || strings.TrimSpace(*e.ImageData) == "" {
		return "", ErrNoImageData
	}
	return stripDataURL(*e.ImageData), nil
}
