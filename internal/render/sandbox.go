// Package render evaluates user-authored tag templates inside a restricted
// environment. Template content is fully untrusted: the environment exposes
// an explicit helper allow-list and nothing else, and the execution pool
// runs each evaluation in an isolated worker process under a wall-clock
// deadline.
package render

import (
	"fmt"
	"io"
	"time"

	"github.com/flosch/pongo2/v6"
)

// Bindings are the variables a template may reference, fixed per render
// job. Args is the shell-style tokenization of the invoking message.
type Bindings struct {
	Author  string   `json:"author"`
	Channel string   `json:"channel"`
	Server  string   `json:"server"`
	Args    []string `json:"args"`
}

// bannedTags reach outside the template's own text (filesystem includes,
// cross-template inheritance). They fail at parse time.
var bannedTags = []string{"include", "extends", "import", "ssi"}

// denyLoader is a template loader that refuses every path, so no template
// construct can reach the filesystem even if a banned tag is missed.
type denyLoader struct{}

func (denyLoader) Abs(base, name string) string { return name }

func (denyLoader) Get(path string) (io.Reader, error) {
	return nil, fmt.Errorf("template loading is disabled in the sandbox")
}

func newSandboxSet() (*pongo2.TemplateSet, error) {
	set := pongo2.NewSet("sandbox", denyLoader{})
	for _, tag := range bannedTags {
		if err := set.BanTag(tag); err != nil {
			return nil, fmt.Errorf("ban tag %q: %w", tag, err)
		}
	}
	return set, nil
}

// Render evaluates templateText against b. Identical inputs produce
// identical output unless the template calls a random helper. All failures
// come back as *Error; Render never panics into the caller.
func Render(templateText string, b Bindings) (out string, err error) {
	return renderSeeded(templateText, b, time.Now().UnixNano())
}

// renderSeeded is Render with a fixed random seed, split out so tests can
// pin the pseudo-random helpers.
func renderSeeded(templateText string, b Bindings, seed int64) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = NewError(fmt.Sprintf("template panicked: %v", r))
		}
	}()

	set, err := newSandboxSet()
	if err != nil {
		return "", NewError(err.Error())
	}

	tpl, err := set.FromString(templateText)
	if err != nil {
		return "", NewError(err.Error())
	}

	ctx := NewHelpers(seed).Context()
	ctx["author"] = b.Author
	ctx["channel"] = b.Channel
	ctx["server"] = b.Server
	ctx["args"] = b.Args

	rendered, err := tpl.Execute(ctx)
	if err != nil {
		return "", NewError(err.Error())
	}
	return rendered, nil
}
