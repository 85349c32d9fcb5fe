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
	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// lowercaseNormalizer is declared in every index's settings so .lower
// sub-fields match case-insensitively.
const lowercaseNormalizer = "lowercase_normalizer"

// indexSettings is shared by all indices: single shard, no replicas, a slow
// refresh that the bulk path overrides with an explicit refresh at the end.
func indexSettings() map[string]any {
	return map[string]any{
		"index": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"refresh_interval":   "30s",
			"max_result_window":  config.MaxResultWindow,
		},
		"analysis": map[string]any{
			"normalizer": map[string]any{
				lowercaseNormalizer: map[string]any{
					"type":   "custom",
					"filter": []string{"lowercase"},
				},
			},
		},
	}
}

// keywordField maps a CSV column as keyword with .keyword and .lower
// sub-fields, so exact, case-insensitive and wildcard paths all resolve.
func keywordField() map[string]any {
	return map[string]any{
		"type": "keyword",
		"fields": map[string]any{
			"keyword": map[string]any{"type": "keyword"},
			"lower":   map[string]any{"type": "keyword", "normalizer": lowercaseNormalizer},
		},
	}
}

// textField maps a column as analyzed text with the same sub-fields, used
// where substring matching inside the value matters (IP, MAC, model).
func textField() map[string]any {
	return map[string]any{
		"type": "text",
		"fields": map[string]any{
			"keyword": map[string]any{"type": "keyword"},
			"lower":   map[string]any{"type": "keyword", "normalizer": lowercaseNormalizer},
		},
	}
}

// netspeedMapping is the fixed per-file index mapping. Extension columns
// arriving with future exports fall under the dynamic template and behave
// like every other keyword column.
func netspeedMapping() map[string]any {
	props := map[string]any{
		netspeed.FieldRowNumber:    map[string]any{"type": "keyword"},
		netspeed.FieldFileName:     map[string]any{"type": "keyword"},
		netspeed.FieldCreationDate: map[string]any{"type": "date", "format": "yyyy-MM-dd"},
	}
	for _, h := range netspeed.CanonicalHeaders() {
		switch h {
		case netspeed.FieldIPAddress, netspeed.FieldMACAddress, netspeed.FieldMACAddress2, netspeed.FieldModelName:
			props[h] = textField()
		default:
			props[h] = keywordField()
		}
	}
	return map[string]any{
		"settings": indexSettings(),
		"mappings": map[string]any{
			"dynamic_templates": []map[string]any{
				{
					"extensions_as_keywords": map[string]any{
						"match_mapping_type": "string",
						"mapping":            keywordField(),
					},
				},
			},
			"properties": props,
		},
	}
}

// statsMapping covers the global snapshot index. Histograms and detail
// arrays ride along in _source without being indexed; timelines aggregate
// them client-side.
func statsMapping() map[string]any {
	return map[string]any{
		"settings": indexSettings(),
		"mappings": map[string]any{
			"properties": map[string]any{
				"file":          map[string]any{"type": "keyword"},
				"date":          map[string]any{"type": "date", "format": "yyyy-MM-dd"},
				"totalPhones":   map[string]any{"type": "long"},
				"totalSwitches": map[string]any{"type": "long"},
				"phonesWithKEM": map[string]any{"type": "long"},
				"totalKEMs":     map[string]any{"type": "long"},
				"detailed":      map[string]any{"type": "boolean"},
				"locations":     map[string]any{"type": "keyword"},
				"cityCodes":     map[string]any{"type": "keyword"},

				"phonesByModel":       map[string]any{"type": "object", "enabled": false},
				"phonesByModelJustiz": map[string]any{"type": "object", "enabled": false},
				"phonesByModelJVA":    map[string]any{"type": "object", "enabled": false},
			},
		},
	}
}

// statsLocationMapping covers the per-location snapshot index.
func statsLocationMapping() map[string]any {
	return map[string]any{
		"settings": indexSettings(),
		"mappings": map[string]any{
			"properties": map[string]any{
				"file":          map[string]any{"type": "keyword"},
				"date":          map[string]any{"type": "date", "format": "yyyy-MM-dd"},
				"location":      map[string]any{"type": "keyword"},
				"city":          map[string]any{"type": "keyword"},
				"totalPhones":   map[string]any{"type": "long"},
				"totalSwitches": map[string]any{"type": "long"},
				"phonesWithKEM": map[string]any{"type": "long"},

				"phonesByModel":       map[string]any{"type": "object", "enabled": false},
				"phonesByModelJustiz": map[string]any{"type": "object", "enabled": false},
				"phonesByModelJVA":    map[string]any{"type": "object", "enabled": false},
				"vlanUsage":           map[string]any{"type": "object", "enabled": false},
				"switches":            map[string]any{"type": "object", "enabled": false},
				"kemPhones":           map[string]any{"type": "object", "enabled": false},
			},
		},
	}
}

// archiveMapping covers the long-lived row archive. Rows look exactly like
// per-file documents plus the snapshot_* annotations the retention policy
// and archive queries key on.
func archiveMapping() map[string]any {
	m := netspeedMapping()
	props := m["mappings"].(map[string]any)["properties"].(map[string]any)
	props["snapshot_file"] = map[string]any{"type": "keyword"}
	props["snapshot_date"] = map[string]any{"type": "date", "format": "yyyy-MM-dd"}
	return m
}

// mappingFor picks the mapping for any index the driver creates.
func mappingFor(index string) map[string]any {
	switch index {
	case netspeed.StatsIndex:
		return statsMapping()
	case netspeed.StatsLocationIndex:
		return statsLocationMapping()
	case netspeed.ArchiveIndex:
		return archiveMapping()
	default:
		return netspeedMapping()
	}
}
