package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/acp/internal/symbols"
	"github.com/phobologic/acp/internal/vocab"
)

func byType(sugs []vocab.Suggestion) map[vocab.AnnotationType]vocab.Suggestion {
	out := map[vocab.AnnotationType]vocab.Suggestion{}
	for _, s := range sugs {
		_, dup := out[s.Type]
		if dup {
			panic("duplicate suggestion type " + string(s.Type))
		}
		out[s.Type] = s
	}
	return out
}

func TestComponents(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"src", "auth", "user_service", "user", "service"}, Components("src/Auth/user_service.py"))
	assert.Equal(t, []string{"main"}, Components("main.go"))
	assert.Nil(t, Components(""))
}

func TestPathSuggest(t *testing.T) {
	t.Parallel()

	h := NewPathHeuristics(nil)
	got := byType(h.Suggest("src/auth/handlers/login.ts", 1, "src/auth/handlers/login.ts"))
	require.Contains(t, got, vocab.Domain)
	assert.Equal(t, "authentication", got[vocab.Domain].Value)
	assert.Equal(t, 0.7, got[vocab.Domain].Confidence)
	assert.Equal(t, vocab.Heuristic, got[vocab.Domain].Source)
	require.Contains(t, got, vocab.Layer)
	assert.Equal(t, "handler", got[vocab.Layer].Value)
	assert.Equal(t, 0.6, got[vocab.Layer].Confidence)

	assert.Empty(t, h.Suggest("x", 1, "main.go"))
	assert.Equal(t, "database", h.DomainFor("app/models/user.py"))
	assert.Equal(t, "model", h.LayerFor("app/models/user.py"))
}

func TestPathCustomFirst(t *testing.T) {
	t.Parallel()

	h := NewPathHeuristics(map[string]string{"Ledger": "accounting"})
	got := byType(h.Suggest("f", 1, "auth/ledger/post.go"))
	assert.Equal(t, "accounting", got[vocab.Domain].Value)
	assert.Equal(t, 0.8, got[vocab.Domain].Confidence)
}

func TestNamingSuggest(t *testing.T) {
	t.Parallel()

	var n NamingHeuristics
	got := byType(n.Suggest("validateToken", 4, "validateToken"))
	assert.Equal(t, "restricted", got[vocab.Lock].Value)
	assert.Equal(t, "security-sensitive", got[vocab.AiHint].Value)
	assert.Equal(t, "security", got[vocab.Domain].Value)

	got = byType(n.Suggest("UserRepository", 1, "UserRepository"))
	assert.Equal(t, "data", got[vocab.Domain].Value)
	assert.Equal(t, "repository", got[vocab.Layer].Value)

	got = byType(n.Suggest("mockStore", 1, "mockStore"))
	assert.Equal(t, "tests", got[vocab.Domain].Value)
	assert.Equal(t, 0.9, got[vocab.Domain].Confidence)

	got = byType(n.Suggest("wipParser", 1, "wipParser"))
	assert.Equal(t, "experimental", got[vocab.Stability].Value)

	got = byType(n.Suggest("OrderService", 1, "OrderService"))
	assert.Equal(t, "service", got[vocab.Layer].Value)

	assert.Empty(t, n.Suggest("render", 1, "render"))
}

func TestSplitIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"getUserName", []string{"get", "User", "Name"}},
		{"parse_http_request", []string{"parse", "http", "request"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
		{"kebab-case-name", []string{"kebab", "case", "name"}},
		{"UserService", []string{"User", "Service"}},
		{"v2Client", []string{"v2", "Client"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitIdentifier(tt.in), tt.in)
	}
}

func TestConjugate(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"fix":     "Fixes",
		"patch":   "Patches",
		"push":    "Pushes",
		"deploy":  "Deploys",
		"apply":   "Applies",
		"bless":   "Blesses",
		"focus":   "Focuses",
		"analyze": "Analyzes",
		"details": "Details",
	}
	for in, want := range tests {
		assert.Equal(t, want, Conjugate(in), in)
	}
}

func TestSummaryFromIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind symbols.Kind
		want string
		ok   bool
	}{
		{"getUserName", symbols.Function, "Gets user name", true},
		{"is_valid", symbols.Function, "Checks if valid", true},
		{"initDatabase", symbols.Method, "Initializes database", true},
		{"mkdir", symbols.Function, "Creates directory", true},
		{"deployRelease", symbols.Function, "Deploys release", true},
		{"run", symbols.Function, "run function", true},
		{"focusInput", symbols.Function, "Focuses input", true},
		{"processRows", symbols.Function, "Processes rows", true},
		{"UserService", symbols.Class, "User service", true},
		{"HTTPClient", symbols.Struct, "Http client", true},
		{"Reader", symbols.Interface, "Reader interface", true},
		{"Display", symbols.Trait, "Display trait", true},
		{"MAX_SIZE", symbols.Constant, "", false},
	}
	for _, tt := range tests {
		got, ok := SummaryFromIdentifier(tt.name, tt.kind)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}
