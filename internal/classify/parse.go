package classify

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OtherCategory is assigned whenever the model answer cannot be trusted.
const OtherCategory = "Other"

// jsonObjectRe spans the first "{" to the last "}" so prose around the object is ignored.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// answerSchema accepts the object shape the model is asked to return. Missing or
// null fields are tolerated and treated as empty.
var answerSchema = jsonschema.MustCompileString("answer.json", `{
  "type": "object",
  "properties": {
    "text": {"type": ["string", "null"]},
    "type": {"type": ["string", "null"]}
  }
}`)

// Result is the extracted text and category for one creative.
type Result struct {
	Text   string `json:"text"`
	Type   string `json:"type"`
	Cached bool   `json:"-"`
	Tokens int    `json:"-"` // Total tokens billed; zero on cache hits
}

// ExtractJSON returns the outermost brace-delimited span of s, if any.
func ExtractJSON(s string) (string, bool) {
	m := jsonObjectRe.FindString(s)
	return m, m != ""
}

// Parse turns a raw model answer into a Result. The boolean is false when the
// answer held no usable JSON object and the fallback {"", Other} was returned.
// A well-formed answer naming an unknown category still parses, with its type
// replaced by Other.
func Parse(raw string, categories []string) (Result, bool) {
	fallback := Result{Text: "", Type: OtherCategory}

	js, ok := ExtractJSON(strings.TrimSpace(raw))
	if !ok {
		return fallback, false
	}

	var doc any
	if err := json.Unmarshal([]byte(js), &doc); err != nil {
		return fallback, false
	}
	if err := answerSchema.Validate(doc); err != nil {
		return fallback, false
	}

	obj := doc.(map[string]any)
	text, _ := obj["text"].(string)
	typ, _ := obj["type"].(string)

	text = strings.TrimSpace(text)
	typ = strings.TrimSpace(typ)
	if typ == "" || !slices.Contains(categories, typ) {
		typ = OtherCategory
	}
	return Result{Text: text, Type: typ}, true
}
