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
	"regexp"
	"strings"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// Intent is the detected meaning of a query string. Detection order is
// fixed; earlier intents shadow later ones (a 12-digit number is a phone,
// not a MAC, and a hostname-shaped token is never treated as a serial).
type Intent int

const (
	IntentGeneric Intent = iota
	IntentSwitchPort
	IntentPhone
	IntentMAC
	IntentHostnameCode
	IntentFQDN
	IntentIPFull
	IntentIPPartial
	IntentVLAN
	IntentModel
	IntentKEM
	IntentSerial
	IntentField
)

// String names the intent for logs and metrics labels.
func (i Intent) String() string {
	switch i {
	case IntentSwitchPort:
		return "switch_port"
	case IntentPhone:
		return "phone"
	case IntentMAC:
		return "mac"
	case IntentHostnameCode:
		return "hostname_code"
	case IntentFQDN:
		return "fqdn"
	case IntentIPFull:
		return "ip_full"
	case IntentIPPartial:
		return "ip_partial"
	case IntentVLAN:
		return "vlan"
	case IntentModel:
		return "model"
	case IntentKEM:
		return "kem"
	case IntentSerial:
		return "serial"
	case IntentField:
		return "field"
	default:
		return "generic"
	}
}

var (
	rePhone        = regexp.MustCompile(`^\+?\d{7,}$`)
	reHex12        = regexp.MustCompile(`^[0-9A-Fa-f]{12}$`)
	reCodePrefix   = regexp.MustCompile(`^[A-Za-z]{3}[0-9]{2}`)
	reIPFull       = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
	reIPPartial    = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){0,2}\.?$`)
	reVLAN         = regexp.MustCompile(`^\d{3}$`)
	reModel4       = regexp.MustCompile(`^\d{4}$`)
	reSerialLoose  = regexp.MustCompile(`^[A-Za-z0-9]{5,15}$`)
	reMACSeparator = regexp.MustCompile(`[:\-\.\s]`)
)

// DetectIntent classifies a query. field narrows detection where noted;
// an empty field means a free-text query.
func DetectIntent(query, field string) Intent {
	q := strings.TrimSpace(query)
	if q == "" {
		return IntentGeneric
	}

	if field == netspeed.FieldSwitchPort {
		return IntentSwitchPort
	}
	if rePhone.MatchString(q) && (field == "" || field == netspeed.FieldLineNumber) {
		return IntentPhone
	}
	if _, ok := NormalizeMAC(q); ok {
		return IntentMAC
	}
	if isHostnameCode(q) {
		return IntentHostnameCode
	}
	if strings.Contains(q, ".") && containsLetter(q) {
		return IntentFQDN
	}
	if reIPFull.MatchString(q) {
		return IntentIPFull
	}
	if isPartialIP(q, field) {
		return IntentIPPartial
	}
	if field == "" && reVLAN.MatchString(q) {
		return IntentVLAN
	}
	if reModel4.MatchString(q) && (field == "" || field == netspeed.FieldModelName) {
		return IntentModel
	}
	if strings.EqualFold(q, "KEM") {
		return IntentKEM
	}
	if isSerialShaped(q) {
		return IntentSerial
	}
	if field != "" {
		return IntentField
	}
	return IntentGeneric
}

// NormalizeMAC strips separators and an optional SEP prefix, then accepts
// exactly 12 hex characters. Returns the canonical upper-case form.
func NormalizeMAC(q string) (string, bool) {
	s := reMACSeparator.ReplaceAllString(strings.TrimSpace(q), "")
	if len(s) >= 15 && strings.EqualFold(s[:3], "SEP") {
		s = s[3:]
	}
	if !reHex12.MatchString(s) {
		return "", false
	}
	return strings.ToUpper(s), true
}

// MACVariants builds the stored spellings of one canonical MAC: bare,
// SEP-prefixed, colon-, hyphen- and Cisco-dot-separated, each in both cases.
func MACVariants(canonical string) []string {
	upper := strings.ToUpper(canonical)
	lower := strings.ToLower(canonical)

	joinEvery := func(s, sep string, n int) string {
		var parts []string
		for i := 0; i < len(s); i += n {
			parts = append(parts, s[i:i+n])
		}
		return strings.Join(parts, sep)
	}

	variants := []string{
		upper, lower,
		"SEP" + upper, "sep" + lower,
		joinEvery(upper, ":", 2), joinEvery(lower, ":", 2),
		joinEvery(upper, "-", 2), joinEvery(lower, "-", 2),
		joinEvery(upper, ".", 4), joinEvery(lower, ".", 4),
	}
	return dedupeStrings(variants)
}

// isHostnameCode matches queries that start like a location code. Short
// codes (exactly 5) and full hostnames (13 and longer) always qualify;
// mid-length tokens only when the characters right after the code are
// letters, which separates switch names from serial numbers.
func isHostnameCode(q string) bool {
	if !reCodePrefix.MatchString(q) {
		return false
	}
	switch n := len(q); {
	case n == 5:
		return true
	case n >= 13:
		return true
	case n >= 8 && n <= 12:
		return isLetter(q[5]) && isLetter(q[6])
	default:
		return false
	}
}

// isPartialIP accepts 1-3 octets with an optional trailing dot. Free-text
// queries must contain a dot so bare numbers never become IP prefixes.
func isPartialIP(q, field string) bool {
	if !reIPPartial.MatchString(q) {
		return false
	}
	if reIPFull.MatchString(q) {
		return false
	}
	if field == netspeed.FieldIPAddress {
		return true
	}
	return strings.Contains(q, ".")
}

// isSerialShaped accepts alphanumeric tokens of serial length that carry at
// least one letter. Pure hex of MAC length and hostname-shaped tokens were
// already claimed by earlier detectors.
func isSerialShaped(q string) bool {
	return reSerialLoose.MatchString(q) && containsLetter(q)
}

func containsLetter(s string) bool {
	for i := 0; i < len(s); i++ {
		if isLetter(s[i]) {
			return true
		}
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
