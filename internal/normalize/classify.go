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

package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// DefaultDomains are the hostname suffixes that identify a switch FQDN cell.
var DefaultDomains = []string{".juwin.bayern.de"}

var (
	reSwitchPort = regexp.MustCompile(`(?i)^[a-z]*ethernet\d+/\d+/\d+$`)
	reModelName  = regexp.MustCompile(`^(?:CP|DP)-\d+`)
	reMACPrefix  = regexp.MustCompile(`^SEP[0-9A-F]{12}$`)
	reLineNumber = regexp.MustCompile(`^\+?\d{7,15}$`)
	reSubnetMask = regexp.MustCompile(`^255\.`)
	reVoiceVLAN  = regexp.MustCompile(`^\d{1,4}$`)
	reMACBare    = regexp.MustCompile(`^[0-9A-F]{12}$`)
	reSerial     = regexp.MustCompile(`^[A-Z][A-Z0-9]{8,14}$`)
	reSpeed      = regexp.MustCompile(`(?i)^(?:auto|full|half|\d+(?:\s*(?:half|full|mbps|gbps|mb|gb))?)$`)
	reKEM        = regexp.MustCompile(`^KEM[12]?$`)

	reDottedQuad = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)
	reLooseLine  = regexp.MustCompile(`^\+?\d+$`)
	reHexLoose   = regexp.MustCompile(`^[0-9A-Fa-f]{12}$`)
)

// matcher binds one cell pattern to the canonical fields it may populate,
// in preference order. The matcher list itself is priority ordered; the
// first matcher whose pattern fits and that still has an empty target wins.
type matcher struct {
	fields []string
	match  func(string) bool
}

// classifier assigns the cells of one raw row to canonical fields.
type classifier struct {
	matchers []matcher
}

func newClassifier(domains []string) *classifier {
	if len(domains) == 0 {
		domains = DefaultDomains
	}
	suffixes := make([]string, len(domains))
	for i, d := range domains {
		suffixes[i] = strings.ToLower(d)
	}
	isHostname := func(v string) bool {
		lower := strings.ToLower(v)
		for _, s := range suffixes {
			if strings.HasSuffix(lower, s) {
				return true
			}
		}
		return false
	}

	return &classifier{matchers: []matcher{
		{fields: []string{netspeed.FieldSwitchHostname}, match: isHostname},
		{fields: []string{netspeed.FieldSwitchPort}, match: reSwitchPort.MatchString},
		{fields: []string{netspeed.FieldModelName}, match: reModelName.MatchString},
		{fields: []string{netspeed.FieldMACAddress2}, match: reMACPrefix.MatchString},
		{fields: []string{netspeed.FieldIPAddress}, match: isPrivateIP},
		{fields: []string{netspeed.FieldLineNumber}, match: reLineNumber.MatchString},
		{fields: []string{netspeed.FieldSubnetMask}, match: reSubnetMask.MatchString},
		{fields: []string{netspeed.FieldVoiceVLAN}, match: reVoiceVLAN.MatchString},
		{fields: []string{netspeed.FieldMACAddress}, match: reMACBare.MatchString},
		{fields: []string{netspeed.FieldSerialNumber}, match: isSerial},
		{fields: []string{netspeed.FieldSpeed1, netspeed.FieldSpeed2}, match: reSpeed.MatchString},
		{fields: []string{netspeed.FieldKEM, netspeed.FieldKEM2}, match: reKEM.MatchString},
	}}
}

// isPrivateIP reports whether v is a dotted quad inside the RFC1918 or
// loopback ranges. Export rows only ever carry phone addresses from those
// ranges; anything else is some other kind of cell.
func isPrivateIP(v string) bool {
	if !reDottedQuad.MatchString(v) {
		return false
	}
	octets := strings.Split(v, ".")
	first, err := strconv.Atoi(octets[0])
	if err != nil {
		return false
	}
	switch first {
	case 10, 127:
		return true
	case 192:
		return octets[1] == "168"
	case 172:
		second, err := strconv.Atoi(octets[1])
		return err == nil && second >= 16 && second <= 31
	}
	return false
}

// isSerial matches device serials: uppercase alphanumeric, leading letter,
// 9 to 15 characters. 12-hex MAC lookalikes are claimed by the MAC matcher
// first because it sits higher in the priority list.
func isSerial(v string) bool {
	return reSerial.MatchString(v)
}

// classify maps one raw row into a canonical record. It returns the record
// and the number of cells recognized by pattern. Cells no pattern claimed
// are placed positionally into the remaining canonical fields, skipping
// fields the value obviously cannot belong to.
func (c *classifier) classify(cells []string) (netspeed.Record, int) {
	rec := make(netspeed.Record, len(netspeed.CanonicalHeaders())+3)
	for _, h := range netspeed.CanonicalHeaders() {
		rec[h] = ""
	}

	matched := 0
	var leftovers []string
	for _, raw := range cells {
		cell := strings.TrimSpace(raw)
		if cell == "" {
			continue
		}
		if c.assign(rec, cell) {
			matched++
		} else {
			leftovers = append(leftovers, cell)
		}
	}

	for _, cell := range leftovers {
		for _, field := range netspeed.CanonicalHeaders() {
			if rec[field] != "" || rejectPositional(field, cell) {
				continue
			}
			rec[field] = cell
			break
		}
	}
	return rec, matched
}

// assign places cell into the highest-priority matching field that is still
// empty. A pattern whose targets are all taken falls through to the next
// pattern, so the second numeric cell of a row lands in Speed rather than
// overwriting Voice VLAN.
func (c *classifier) assign(rec netspeed.Record, cell string) bool {
	for _, m := range c.matchers {
		if !m.match(cell) {
			continue
		}
		for _, field := range m.fields {
			if rec[field] == "" {
				rec[field] = cell
				return true
			}
		}
	}
	return false
}

// portModeWords is the vocabulary of switch and PC port mode cells. The
// mode columns are the positional catch-all at the end of the canonical
// order; these words must fall through to them.
var portModeWords = map[string]bool{
	"auto": true, "full": true, "half": true,
	"trunk": true, "access": true, "desirable": true, "dynamic": true,
	"on": true, "off": true, "none": true, "unknown": true,
}

// rejectPositional guards fields against positional leftovers that
// obviously do not belong, so a port mode like "trunk" can never become a
// model name and a subnet mask can never become an IP address. Speed and
// VLAN accept no positional fill at all: every value they could legally
// hold is already claimed by pattern.
func rejectPositional(field, v string) bool {
	switch field {
	case netspeed.FieldIPAddress:
		return !reDottedQuad.MatchString(v) || strings.HasPrefix(v, "255.")
	case netspeed.FieldSubnetMask:
		return !strings.HasPrefix(v, "255.")
	case netspeed.FieldLineNumber:
		return !reLooseLine.MatchString(v)
	case netspeed.FieldVoiceVLAN, netspeed.FieldSpeed1, netspeed.FieldSpeed2:
		return true
	case netspeed.FieldMACAddress, netspeed.FieldMACAddress2:
		return !reHexLoose.MatchString(stripMACSeparators(v))
	case netspeed.FieldSerialNumber:
		return !isLooseSerial(v)
	case netspeed.FieldKEM, netspeed.FieldKEM2:
		return !strings.Contains(strings.ToUpper(v), "KEM")
	case netspeed.FieldSwitchHostname:
		return !strings.Contains(v, ".")
	case netspeed.FieldModelName:
		return portModeWords[strings.ToLower(v)] || reDottedQuad.MatchString(v)
	case netspeed.FieldSwitchPort:
		return portModeWords[strings.ToLower(v)]
	}
	return false
}

func isLooseSerial(v string) bool {
	if len(v) < 5 || len(v) > 15 {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}

// stripMACSeparators removes the separators and the SEP device prefix from
// a MAC-like value, leaving the bare hex digits.
func stripMACSeparators(v string) string {
	v = strings.TrimPrefix(strings.TrimPrefix(v, "SEP"), "sep")
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '-', '.':
			return -1
		}
		return r
	}, v)
}
