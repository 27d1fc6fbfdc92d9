package render

import (
	"encoding/base64"
	"math/rand"

	"github.com/flosch/pongo2/v6"
)

// Helpers is the fixed allow-list of functions and constants a template may
// reach. It is handed to the environment explicitly; nothing else from the
// host process is visible inside the sandbox.
type Helpers struct {
	rng *rand.Rand
}

// NewHelpers builds the helper surface. seed feeds the pseudo-random
// helpers; every other helper is deterministic.
func NewHelpers(seed int64) *Helpers {
	return &Helpers{rng: rand.New(rand.NewSource(seed))}
}

// Context returns the helper bindings to merge into a template's
// evaluation context.
func (h *Helpers) Context() pongo2.Context {
	return pongo2.Context{
		// Pseudo-random surface.
		"randint": h.randint,
		"choice":  h.choice,

		// Character classes.
		"ascii_lowercase": "abcdefghijklmnopqrstuvwxyz",
		"ascii_uppercase": "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"ascii_letters":   "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"digits":          "0123456789",
		"punctuation":     `!"#$%&'()*+,-./:;<=>?@[\]^_` + "`{|}~",

		// Base64 codec.
		"b64encode": b64encode,
		"b64decode": b64decode,

		// Aggregate constructors.
		"list": makeList,
		"dict": makeDict,
	}
}

// randint returns a random integer in [a, b], both ends inclusive.
func (h *Helpers) randint(a, b int) int {
	if b < a {
		a, b = b, a
	}
	return a + h.rng.Intn(b-a+1)
}

// choice picks a random element of a sequence, or "" for an empty one.
func (h *Helpers) choice(v *pongo2.Value) *pongo2.Value {
	n := v.Len()
	if n == 0 {
		return pongo2.AsValue("")
	}
	return v.Index(h.rng.Intn(n))
}

func b64encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func b64decode(s string) string {
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ""
	}
	return string(out)
}

func makeList(items ...*pongo2.Value) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, it := range items {
		out = append(out, it.Interface())
	}
	return out
}

// makeDict builds a map from alternating key/value arguments. A trailing
// unpaired key maps to nil.
func makeDict(items ...*pongo2.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		key := items[i].String()
		if i+1 < len(items) {
			out[key] = items[i+1].Interface()
		} else {
			out[key] = nil
		}
	}
	return out
}
