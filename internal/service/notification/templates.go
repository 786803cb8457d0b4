package notification

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/domainwatch/internal/domain"
)

type messageTemplate struct {
	subject string
	body    string
}

var builtinTemplates = map[domain.Category]messageTemplate{
	domain.CategoryRegistrationChanges: {
		subject: "Registration changes detected for {{ domain }}",
		body: `We noticed registration changes for {{ domain }}:
{% for c in changes %}
- {{ c.field }}: {{ c.previous | default: "none" }} -> {{ c.new | default: "none" }}{% endfor %}

If you did not make these changes, contact your registrar.`,
	},
	domain.CategoryCertificateChanges: {
		subject: "Certificate changes detected for {{ domain }}",
		body: `The TLS certificate served by {{ domain }} changed:
{% for c in changes %}
- {{ c.field }}: {{ c.previous | default: "none" }} -> {{ c.new | default: "none" }}{% endfor %}`,
	},
	domain.CategoryProviderChanges: {
		subject: "Provider changes detected for {{ domain }}",
		body: `The infrastructure behind {{ domain }} changed:
{% for c in changes %}
- {{ c.field }}: {{ c.previous | default: "none" }} -> {{ c.new | default: "none" }}{% endfor %}`,
	},
	domain.CategoryVerification: {
		subject: "Ownership verification revoked for {{ domain }}",
		body: `We could not confirm ownership of {{ domain }} since {{ failed_since }}.
Verification has been revoked and monitoring alerts are paused until the
{{ method | default: "verification" }} record is published again.`,
	},
}

// Renderer renders the built-in Liquid templates, caching parsed templates.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // key -> *liquid.Template
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{engine: liquid.NewEngine()}
}

// Render returns the subject and body for category.
func (r *Renderer) Render(category domain.Category, vars map[string]interface{}) (string, string, error) {
	tpl, ok := builtinTemplates[category]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrNoTemplate, category)
	}
	subject, err := r.render(string(category)+":subject", tpl.subject, vars)
	if err != nil {
		return "", "", err
	}
	body, err := r.render(string(category)+":body", tpl.body, vars)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject), strings.TrimSpace(body), nil
}

func (r *Renderer) render(key, src string, vars map[string]interface{}) (string, error) {
	var tpl *liquid.Template
	if cached, ok := r.cache.Load(key); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := r.engine.ParseString(src)
		if err != nil {
			return "", fmt.Errorf("parse template %s: %w", key, err)
		}
		r.cache.Store(key, parsed)
		tpl = parsed
	}

	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", key, err)
	}
	return out, nil
}
