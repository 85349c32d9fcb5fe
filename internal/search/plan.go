/*
 * MIT License
 *
 * Copyright (c) 2026 The netspeed Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package search

import (
	"strings"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// plan is the engine request derived from one query plus the post-processing
// switches the intent demands.
type plan struct {
	intent Intent
	query  map[string]any

	// exactFields/exactValues parameterize the exactness sort script: a row
	// whose value on any of these fields equals any of these values sorts
	// first.
	exactFields []string
	exactValues []string

	forceAllIndices bool // MAC queries span the whole family
	onePerFile      bool // keep one representative row per file
	perFileSeeds    bool // issue one seed query per file when historical
	dedupeBySwitch  bool // switch-port results collapse per hostname
	skipMACDedupe   bool // KEM results keep every row
}

// buildPlan converts a detected intent into a concrete engine query.
func buildPlan(intent Intent, query, field string) *plan {
	q := strings.TrimSpace(query)
	p := &plan{intent: intent}

	switch intent {
	case IntentPhone:
		digits := strings.TrimPrefix(q, "+")
		values := dedupeStrings([]string{"+" + digits, digits})
		p.query = boolShould(
			termsOn("Line Number.keyword", values)...,
		)
		p.exactFields = []string{"Line Number.keyword"}
		p.exactValues = values
		p.onePerFile = true
		p.perFileSeeds = true

	case IntentSerial:
		values := caseVariants(q)
		fields := []string{
			"Serial Number.keyword",
			"KEM 1 Serial Number.keyword",
			"KEM 2 Serial Number.keyword",
		}
		var clauses []map[string]any
		for _, f := range fields {
			clauses = append(clauses, termsOn(f, values)...)
			for _, v := range values {
				clauses = append(clauses, map[string]any{"prefix": map[string]any{f: v}})
			}
		}
		p.query = boolShould(clauses...)
		p.exactFields = fields
		p.exactValues = values
		p.onePerFile = true
		p.perFileSeeds = true

	case IntentMAC:
		canonical, _ := NormalizeMAC(q)
		values := MACVariants(canonical)
		fields := []string{"MAC Address.keyword", "MAC Address 2.keyword"}
		var clauses []map[string]any
		for _, f := range fields {
			clauses = append(clauses, termsOn(f, values)...)
		}
		p.query = boolShould(clauses...)
		p.exactFields = fields
		p.exactValues = values
		p.forceAllIndices = true
		p.onePerFile = true

	case IntentHostnameCode:
		lower := strings.ToLower(q)
		values := caseVariants(q)
		p.query = boolShould(
			append(
				termsOn("Switch Hostname.keyword", values),
				map[string]any{"term": map[string]any{"Switch Hostname.lower": lower}},
				map[string]any{"prefix": map[string]any{"Switch Hostname.lower": lower}},
				map[string]any{"prefix": map[string]any{"Switch Hostname.lower": lower + "."}},
			)...,
		)
		p.exactFields = []string{"Switch Hostname.lower"}
		p.exactValues = []string{lower}

	case IntentFQDN:
		lower := strings.ToLower(q)
		p.query = map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{{
					"script": map[string]any{
						"script": map[string]any{
							"source": "doc.containsKey('Switch Hostname') && doc['Switch Hostname'].size() > 0 && doc['Switch Hostname'].value.toLowerCase() == params.q",
							"params": map[string]any{"q": lower},
						},
					},
				}},
				"should": []map[string]any{
					{"term": map[string]any{"Switch Hostname.keyword": map[string]any{"value": q, "boost": 10}}},
					{"wildcard": map[string]any{"Switch Hostname.lower": map[string]any{"value": "*" + lower + "*"}}},
				},
			},
		}
		p.exactFields = []string{"Switch Hostname.lower"}
		p.exactValues = []string{lower}

	case IntentSwitchPort:
		lower := strings.ToLower(q)
		p.query = map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{{
					"script": map[string]any{
						"script": map[string]any{
							"source": "doc.containsKey('Switch Port') && doc['Switch Port'].size() > 0 && doc['Switch Port'].value.toLowerCase() == params.q",
							"params": map[string]any{"q": lower},
						},
					},
				}},
			},
		}
		p.exactFields = []string{"Switch Port.lower"}
		p.exactValues = []string{lower}
		p.dedupeBySwitch = true

	case IntentIPFull:
		p.query = boolShould(
			map[string]any{"term": map[string]any{"IP Address.keyword": map[string]any{"value": q, "boost": 10}}},
			map[string]any{"prefix": map[string]any{"IP Address.keyword": q}},
		)
		p.exactFields = []string{"IP Address.keyword"}
		p.exactValues = []string{q}

	case IntentIPPartial:
		clauses := []map[string]any{
			{"prefix": map[string]any{"IP Address.keyword": q}},
		}
		if !strings.HasSuffix(q, ".") {
			// Boost the octet-aligned continuation so 10.2 prefers 10.2.x
			// over 10.20.x without excluding it.
			clauses = append(clauses, map[string]any{
				"prefix": map[string]any{"IP Address.keyword": map[string]any{"value": q + ".", "boost": 5}},
			})
		}
		p.query = boolShould(clauses...)

	case IntentVLAN:
		p.query = map[string]any{"term": map[string]any{"Voice VLAN": q}}
		p.exactFields = []string{"Voice VLAN"}
		p.exactValues = []string{q}

	case IntentModel:
		values := []string{"CP-" + q, "DP-" + q}
		p.query = boolShould(termsOn("Model Name.keyword", values)...)
		p.exactFields = []string{"Model Name.keyword"}
		p.exactValues = values

	case IntentKEM:
		p.query = boolShould(
			map[string]any{"term": map[string]any{"KEM": "KEM"}},
			map[string]any{"term": map[string]any{"KEM 2": "KEM"}},
		)
		p.exactFields = []string{"KEM", "KEM 2"}
		p.exactValues = []string{"KEM"}
		p.skipMACDedupe = true

	case IntentField:
		lower := strings.ToLower(q)
		exact := fieldExactPath(field)
		p.query = boolShould(
			map[string]any{"term": map[string]any{exact: map[string]any{"value": q, "boost": 10}}},
			map[string]any{"term": map[string]any{field + ".lower": lower}},
			map[string]any{"wildcard": map[string]any{field + ".lower": map[string]any{"value": "*" + lower + "*"}}},
		)
		p.exactFields = []string{exact, field + ".lower"}
		p.exactValues = []string{q, lower}

	default:
		p.query = genericQuery(q)
		p.exactFields = []string{
			"Line Number.keyword", "Serial Number.keyword", "MAC Address.keyword",
			"IP Address.keyword", "Switch Hostname.lower", "Model Name.keyword",
		}
		p.exactValues = caseVariants(q)
	}

	return p
}

// genericQuery is the fallback: boosted exact terms on the common fields, a
// wildcard query_string over everything, and targeted MAC and hostname
// variants for fragments the other detectors rejected.
func genericQuery(q string) map[string]any {
	lower := strings.ToLower(q)
	clauses := []map[string]any{
		{"multi_match": map[string]any{
			"query": q,
			"fields": []string{
				"Line Number^5", "Serial Number^5", "MAC Address^5",
				"IP Address^4", "Switch Hostname^3", "Model Name^2",
			},
			"boost": 10,
		}},
		{"query_string": map[string]any{
			"query":            "*" + escapeQueryString(lower) + "*",
			"fields":           []string{"*", "*.lower"},
			"analyze_wildcard": true,
		}},
	}

	// A hex fragment shorter than a full MAC still deserves a substring
	// match against both MAC columns.
	stripped := reMACSeparator.ReplaceAllString(q, "")
	if len(stripped) >= 4 && isHexString(stripped) {
		for _, f := range []string{"MAC Address.keyword", "MAC Address 2.keyword"} {
			clauses = append(clauses,
				map[string]any{"wildcard": map[string]any{f: map[string]any{"value": "*" + strings.ToUpper(stripped) + "*"}}},
				map[string]any{"wildcard": map[string]any{f: map[string]any{"value": "*" + strings.ToLower(stripped) + "*"}}},
			)
		}
	}
	clauses = append(clauses,
		map[string]any{"prefix": map[string]any{"Switch Hostname.lower": lower}},
	)

	return boolShould(clauses...)
}

// buildBody assembles the full request body: query, deterministic three-key
// sort and the result window.
func (p *plan) buildBody(preferred []string, size int) map[string]any {
	body := map[string]any{
		"query":            p.query,
		"size":             size,
		"track_total_hits": true,
		"sort":             p.buildSort(preferred),
	}
	return body
}

// buildSort produces the three-key sort: exactness first, then Creation
// Date descending, then the preferred-file tie-break.
func (p *plan) buildSort(preferred []string) []any {
	sorts := make([]any, 0, 3)
	if len(p.exactFields) > 0 {
		sorts = append(sorts, map[string]any{
			"_script": map[string]any{
				"type":  "number",
				"order": "asc",
				"script": map[string]any{
					"source": "for (f in params.fields) { if (doc.containsKey(f) && doc[f].size() > 0 && params.values.contains(doc[f].value)) { return 0; } } return 1;",
					"params": map[string]any{
						"fields": p.exactFields,
						"values": p.exactValues,
					},
				},
			},
		})
	}
	sorts = append(sorts, map[string]any{
		"Creation Date": map[string]any{"order": "desc", "unmapped_type": "date"},
	})
	if preferred == nil {
		preferred = []string{}
	}
	sorts = append(sorts, map[string]any{
		"_script": map[string]any{
			"type":  "number",
			"order": "asc",
			"script": map[string]any{
				"source": "def n = doc.containsKey('File Name') && doc['File Name'].size() > 0 ? doc['File Name'].value : ''; int i = params.preferred.indexOf(n); return i < 0 ? params.preferred.size() : i;",
				"params": map[string]any{"preferred": preferred},
			},
		},
	})
	return sorts
}

// boolShould wraps clauses in a bool query requiring at least one match.
func boolShould(clauses ...map[string]any) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"should":               clauses,
			"minimum_should_match": 1,
		},
	}
}

// termsOn emits one term clause per value.
func termsOn(field string, values []string) []map[string]any {
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		out = append(out, map[string]any{"term": map[string]any{field: v}})
	}
	return out
}

// caseVariants returns the query as typed plus upper and lower spellings.
func caseVariants(q string) []string {
	return dedupeStrings([]string{q, strings.ToUpper(q), strings.ToLower(q)})
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			continue
		}
		return false
	}
	return len(s) > 0
}

// escapeQueryString neutralizes query_string syntax so user input stays a
// literal (the surrounding wildcards are added by the caller).
func escapeQueryString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '+', '-', '=', '>', '<', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/', '&', '|':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fieldExactPath maps a display field to the sub-field used for exact terms.
func fieldExactPath(field string) string {
	switch field {
	case netspeed.FieldCreationDate, netspeed.FieldRowNumber, netspeed.FieldFileName:
		return field
	default:
		return field + ".keyword"
	}
}
