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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		field  string
		intent Intent
	}{
		{"phone with plus", "+4960213981023", "", IntentPhone},
		{"phone digits only", "4960213981023", "", IntentPhone},
		{"phone fielded", "06021398102", netspeed.FieldLineNumber, IntentPhone},
		{"twelve digits stay phone", "123456789012", "", IntentPhone},

		{"mac bare", "AABBCCDDEEFF", "", IntentMAC},
		{"mac colons", "aa:bb:cc:dd:ee:ff", "", IntentMAC},
		{"mac hyphens", "AA-BB-CC-DD-EE-FF", "", IntentMAC},
		{"mac cisco dots", "aabb.ccdd.eeff", "", IntentMAC},
		{"mac sep prefix", "SEPAABBCCDDEEFF", "", IntentMAC},

		{"hostname code short", "ABX01", "", IntentHostnameCode},
		{"hostname code lower", "abx01", "", IntentHostnameCode},
		{"hostname full", "ABX01ZSL4750P", "", IntentHostnameCode},
		{"hostname mid with letters after code", "MUX01ZS12", "", IntentHostnameCode},
		{"serial not hostname", "FCH2140D0KU", "", IntentSerial},

		{"fqdn", "abx01zsl4750p.juwin.bayern.de", "", IntentFQDN},

		{"switch port fielded", "GigabitEthernet1/0/24", netspeed.FieldSwitchPort, IntentSwitchPort},

		{"ip full", "10.15.27.144", "", IntentIPFull},
		{"ip partial with dot", "10.15.", "", IntentIPPartial},
		{"ip partial two octets", "10.15", "", IntentIPPartial},
		{"ip partial fielded bare digits", "10", netspeed.FieldIPAddress, IntentIPPartial},

		{"vlan three digits", "803", "", IntentVLAN},
		{"model four digits", "8851", "", IntentModel},
		{"kem keyword", "KEM", "", IntentKEM},
		{"kem lower", "kem", "", IntentKEM},

		{"serial", "FVH21360D0X", "", IntentSerial},
		{"generic free text", "some words", "", IntentGeneric},
		{"generic bare digits", "12", "", IntentGeneric},
		{"fielded fallback", "half", netspeed.FieldModelName, IntentField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.intent, DetectIntent(tt.query, tt.field),
				"query=%q field=%q", tt.query, tt.field)
		})
	}
}

func TestNormalizeMAC(t *testing.T) {
	for _, q := range []string{
		"AABBCCDDEEFF",
		"aabbccddeeff",
		"AA:BB:CC:DD:EE:FF",
		"aa-bb-cc-dd-ee-ff",
		"aabb.ccdd.eeff",
		"SEPAABBCCDDEEFF",
		"sepaabbccddeeff",
	} {
		mac, ok := NormalizeMAC(q)
		require.True(t, ok, q)
		assert.Equal(t, "AABBCCDDEEFF", mac, q)
	}

	for _, q := range []string{"AABBCCDDEEF", "AABBCCDDEEFF00", "GGBBCCDDEEFF", "hello"} {
		_, ok := NormalizeMAC(q)
		assert.False(t, ok, q)
	}
}

func TestMACVariants(t *testing.T) {
	variants := MACVariants("AABBCCDDEEFF")
	assert.Contains(t, variants, "AABBCCDDEEFF")
	assert.Contains(t, variants, "aabbccddeeff")
	assert.Contains(t, variants, "SEPAABBCCDDEEFF")
	assert.Contains(t, variants, "AA:BB:CC:DD:EE:FF")
	assert.Contains(t, variants, "aa-bb-cc-dd-ee-ff")
	assert.Contains(t, variants, "aabb.ccdd.eeff")

	seen := make(map[string]bool)
	for _, v := range variants {
		assert.False(t, seen[v], "duplicate variant %s", v)
		seen[v] = true
	}
}

func TestHostnameCodeBounds(t *testing.T) {
	// Length 6 and 7 are ambiguous and must fall through to other intents.
	assert.False(t, isHostnameCode("ABX01Z"))
	assert.False(t, isHostnameCode("ABX01ZS"))
	// Mid length requires letters right after the code.
	assert.True(t, isHostnameCode("ABX01ZSL4"))
	assert.False(t, isHostnameCode("ABX0140DK"))
	// Thirteen and longer always qualifies.
	assert.True(t, isHostnameCode("ABX01ZSL4750P"))
}
