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

package netspeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
		ok       bool
	}{
		{"ABX01ZSL4750P.juwin.bayern.de", "ABX01", true},
		{"abx01zsl4750p.juwin.bayern.de", "ABX01", true},
		{"MUCX50SW01.juwin.bayern.de", "MUC50", true},
		{"NUE01ACCESS7.juwin.bayern.de", "NUE01", true},
		{"AUG51ZSL01", "AUG51", true},
		{"sw-core-1.example.com", "", false},
		{"", "", false},
		{"A1B2C3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			got, ok := ExtractLocation(tt.hostname)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCityCode(t *testing.T) {
	assert.Equal(t, "ABX", CityCode("ABX01"))
	assert.Equal(t, "MUC", CityCode("MUC50"))
	assert.Equal(t, "AB", CityCode("AB"))
}

func TestClassifyHostname(t *testing.T) {
	tests := []struct {
		hostname string
		want     JVAClass
	}{
		{"MUCX50SW01.juwin.bayern.de", ClassJVA},
		{"AUG51ZSL01.juwin.bayern.de", ClassJVA},
		{"NUE01ACCESS7.juwin.bayern.de", ClassJustiz},
		{"ABX01ZSL4750P.juwin.bayern.de", ClassJustiz},
		// No resolvable location defaults to Justiz.
		{"unknown-switch.local", ClassJustiz},
		{"", ClassJustiz},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyHostname(tt.hostname), tt.hostname)
	}
}

func TestKEMCount(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want int
	}{
		{"none", Record{FieldKEM: "", FieldKEM2: ""}, 0},
		{"one", Record{FieldKEM: "KEM"}, 1},
		{"two", Record{FieldKEM: "KEM", FieldKEM2: "KEM"}, 2},
		{"whitespace only is empty", Record{FieldKEM: "  "}, 0},
		{"line token fallback", Record{FieldLineNumber: "+4960213981023 (KEM)"}, 1},
		{"two line tokens", Record{FieldLineNumber: "+49602139 KEM KEM"}, 2},
		{"fields win over line tokens", Record{FieldKEM: "KEM", FieldLineNumber: "x KEM KEM"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KEMCount(tt.rec))
		})
	}
}

func TestLineDigits(t *testing.T) {
	assert.Equal(t, "4960213981023", LineDigits("+4960213981023"))
	assert.Equal(t, "4960213981023", LineDigits("+4960213981023 (KEM)"))
	assert.Equal(t, "", LineDigits("KEM"))
}

func TestDisplayHeaders(t *testing.T) {
	headers := DisplayHeaders([]string{"Zusatz", "Anlage", FieldModelName})

	assert.Equal(t, FieldRowNumber, headers[0])
	assert.Equal(t, FieldFileName, headers[1])
	assert.Equal(t, FieldCreationDate, headers[2])
	assert.Contains(t, headers, FieldKEM1Serial)
	assert.Contains(t, headers, FieldKEM2Serial)

	// Extras are appended alphabetically and never duplicated.
	assert.Equal(t, "Anlage", headers[len(headers)-2])
	assert.Equal(t, "Zusatz", headers[len(headers)-1])
	count := 0
	for _, h := range headers {
		if h == FieldModelName {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
