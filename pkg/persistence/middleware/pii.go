package middleware

import (
	"context"
	"regexp"

	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/ports"
)

const maskedValue = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks the values of context keys matching any of the
// patterns before a session is persisted. Masking is lossy: the engine keeps
// working with the unmasked in-memory session, but restarts resume from the
// masked record.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Create(ctx context.Context, session *domain.Session) error {
	return m.next.Create(ctx, m.masked(session))
}

func (m *piiMiddleware) Save(ctx context.Context, session *domain.Session) error {
	return m.next.Save(ctx, m.masked(session))
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*domain.Session, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

// masked clones the session so the engine's in-memory copy is untouched.
func (m *piiMiddleware) masked(session *domain.Session) *domain.Session {
	cloned := session.Clone()
	maskMap(cloned.Context.Public, m.patterns)
	maskMap(cloned.Context.Private, m.patterns)
	return cloned
}

func maskMap(data map[string]any, patterns []*regexp.Regexp) {
	for k, v := range data {
		for _, p := range patterns {
			if p.MatchString(k) {
				data[k] = maskedValue
				break
			}
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
