package index

// defaultSynonyms is the brain tools' built-in query-expansion table,
// ported verbatim (pre-stem) from brain_search.py's _build_synonym_dict.
// Entries are stemmed and made bidirectional at build time.
var defaultSynonyms = map[string][]string{
	"otp":     {"one-time-purchase", "one-time", "onetime"},
	"ff":      {"growth-platform"},
	"launch":  {"release", "deploy", "ship", "rollout"},
	"bug":     {"issue", "defect", "error", "problem"},
	"feature": {"function", "capability"},
	"user":    {"customer", "client"},
	"team":    {"squad", "group"},
	"test":    {"verify", "validate", "check"},
	"config":  {"set", "configure"},
	"auth":    {"authenticate", "login", "signin"},
	"api":     {"endpoint", "service"},
	"db":      {"database", "store"},
	"ui":      {"interface", "frontend", "ux"},
}

// buildSynonyms stems every entry in the default table plus any
// config-supplied extras, then makes the whole table bidirectional, per
// SPEC_FULL.md open question #1 ("config-overridable with built-in
// defaults").
func buildSynonyms(extra map[string][]string) map[string][]string {
	raw := map[string][]string{}
	for k, v := range defaultSynonyms {
		raw[k] = append([]string(nil), v...)
	}
	for k, v := range extra {
		raw[k] = append(raw[k], v...)
	}

	out := map[string][]string{}
	addEdge := func(a, b string) {
		for _, existing := range out[a] {
			if existing == b {
				return
			}
		}
		out[a] = append(out[a], b)
	}

	for key, values := range raw {
		sk := stem(key)
		for _, v := range values {
			sv := stem(v)
			addEdge(sk, sv)
			addEdge(sv, sk)
		}
	}
	return out
}
