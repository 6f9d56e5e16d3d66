package loader

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/spf13/cast"

	"github.com/zjrosen/hotswap/internal/cachemanager"
	"github.com/zjrosen/hotswap/internal/domain/live"
	"github.com/zjrosen/hotswap/internal/log"
)

// Return coercions for template output.
const (
	ReturnString = "string"
	ReturnInt    = "int"
	ReturnFloat  = "float"
	ReturnBool   = "bool"
	ReturnNone   = "none"
)

// scope is the data a body template executes against.
type scope struct {
	Args []any
	// Self is a snapshot of the receiver's fields; nil for functions.
	Self map[string]any
	// Invoke calls another method on the same receiver.
	Invoke func(name string, args ...any) (any, error)
	// Set assigns a receiver field and renders nothing.
	Set func(name string, value any) (string, error)
}

var funcs = template.FuncMap{
	"add":   func(a, b any) int { return cast.ToInt(a) + cast.ToInt(b) },
	"sub":   func(a, b any) int { return cast.ToInt(a) - cast.ToInt(b) },
	"mul":   func(a, b any) int { return cast.ToInt(a) * cast.ToInt(b) },
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	"join":  func(sep string, v any) string { return strings.Join(cast.ToStringSlice(v), sep) },
	"str":   cast.ToString,
}

// programCache shares compiled templates between loads, keyed by the SHA-256
// of the body text. A changed body has a different key, so a reload can never
// run a stale program.
type programCache struct {
	cache   *cachemanager.InMemoryCacheManager[*template.Template]
	compile func(ctx context.Context, key string, body string) (*template.Template, error)
}

func newProgramCache() *programCache {
	cache := cachemanager.NewInMemoryCacheManager[*template.Template](
		"templates", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	rt := cachemanager.NewReadThroughCache[*template.Template, string](cache, parseBody, false)
	return &programCache{
		cache: cache,
		compile: func(ctx context.Context, key, body string) (*template.Template, error) {
			return rt.GetWithRefresh(ctx, key, body, cachemanager.DefaultExpiration)
		},
	}
}

func parseBody(_ context.Context, body string) (*template.Template, error) {
	log.Debug(log.CatLoader, "compiling body", "bytes", len(body))
	return template.New("body").Funcs(funcs).Option("missingkey=error").Parse(body)
}

func (c *programCache) len() int {
	return c.cache.Len()
}

// program is a compiled body plus its return coercion.
type program struct {
	tmpl    *template.Template
	returns string
}

func (c *programCache) get(ctx context.Context, body, returns string) (*program, error) {
	switch returns {
	case "", ReturnString, ReturnInt, ReturnFloat, ReturnBool, ReturnNone:
	default:
		return nil, fmt.Errorf("unknown return type %q", returns)
	}
	tmpl, err := c.compile(ctx, digest([]byte(body)), body)
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	return &program{tmpl: tmpl, returns: returns}, nil
}

func (p *program) run(s scope) (any, error) {
	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, s); err != nil {
		return nil, fmt.Errorf("execute body: %w", err)
	}
	return coerce(sb.String(), p.returns)
}

func (p *program) function() live.Func {
	return func(args ...any) (any, error) {
		return p.run(scope{Args: args})
	}
}

// method runs with self as receiver; Invoke and Set act on self, never on
// whatever handle the call came through.
func (p *program) method() live.Method {
	return func(self *live.Object, args ...any) (any, error) {
		return p.run(scope{
			Args:   args,
			Self:   self.Fields(),
			Invoke: self.Invoke,
			Set: func(name string, value any) (string, error) {
				self.Set(name, value)
				return "", nil
			},
		})
	}
}

func coerce(out, returns string) (any, error) {
	switch returns {
	case ReturnInt:
		return cast.ToIntE(strings.TrimSpace(out))
	case ReturnFloat:
		return cast.ToFloat64E(strings.TrimSpace(out))
	case ReturnBool:
		return cast.ToBoolE(strings.TrimSpace(out))
	case ReturnNone:
		return nil, nil
	default:
		return out, nil
	}
}
