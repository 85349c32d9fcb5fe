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

// Package stats computes per-snapshot aggregates, persists them as dated
// snapshot documents and serves timeline queries with gap carry-forward.
package stats

import (
	"sort"
	"strconv"
	"strings"

	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// UnknownModel folds misparsed model cells into one histogram bucket.
const UnknownModel = "Unknown"

// ModelCounts is a phone-count histogram keyed by model name.
type ModelCounts map[string]int

func (m ModelCounts) add(model string) { m[model]++ }

// Clone returns an independent copy.
func (m ModelCounts) Clone() ModelCounts {
	if m == nil {
		return nil
	}
	out := make(ModelCounts, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// VLANCount is one VLAN with its phone count on a switch.
type VLANCount struct {
	VLAN  string `json:"vlan"`
	Count int    `json:"count"`
}

// SwitchVLANs lists the VLANs seen behind one switch.
type SwitchVLANs struct {
	Hostname string      `json:"hostname"`
	VLANs    []VLANCount `json:"vlans"`
}

// KEMPhone identifies one phone carrying at least one expansion module.
type KEMPhone struct {
	Model      string `json:"model"`
	MAC        string `json:"mac"`
	Serial     string `json:"serial"`
	Switch     string `json:"switch"`
	IP         string `json:"ip,omitempty"`
	KEMModules int    `json:"kemModules"`
}

// LocationDetail is the per-location slice of one snapshot.
type LocationDetail struct {
	Location            string         `json:"location"`
	City                string         `json:"city"`
	TotalPhones         int            `json:"totalPhones"`
	TotalSwitches       int            `json:"totalSwitches"`
	PhonesWithKEM       int            `json:"phonesWithKEM"`
	PhonesByModel       ModelCounts    `json:"phonesByModel"`
	PhonesByModelJustiz ModelCounts    `json:"phonesByModelJustiz"`
	PhonesByModelJVA    ModelCounts    `json:"phonesByModelJVA"`
	VLANUsage           map[string]int `json:"vlanUsage"`
	Switches            []SwitchVLANs  `json:"switches"`
	KEMPhones           []KEMPhone     `json:"kemPhones"`
}

// Snapshot is the full aggregate of one (file, date) ingest.
type Snapshot struct {
	File string `json:"file"`
	Date string `json:"date"`

	TotalPhones   int `json:"totalPhones"`
	TotalSwitches int `json:"totalSwitches"`
	PhonesWithKEM int `json:"phonesWithKEM"`
	TotalKEMs     int `json:"totalKEMs"`

	Locations []string `json:"locations"`
	CityCodes []string `json:"cityCodes"`

	PhonesByModel       ModelCounts `json:"phonesByModel"`
	PhonesByModelJustiz ModelCounts `json:"phonesByModelJustiz"`
	PhonesByModelJVA    ModelCounts `json:"phonesByModelJVA"`

	TotalPhonesJustiz   int `json:"totalPhonesJustiz"`
	TotalPhonesJVA      int `json:"totalPhonesJVA"`
	TotalSwitchesJustiz int `json:"totalSwitchesJustiz"`
	TotalSwitchesJVA    int `json:"totalSwitchesJVA"`

	// Details holds per-location aggregates, persisted as separate documents
	// by detailed snapshot runs.
	Details map[string]*LocationDetail `json:"-"`
}

// Compute aggregates a normalized row set into one snapshot. Rows are
// deduplicated here with the same rule the indexing path uses so the two
// pipelines always agree on totals.
func Compute(file, date string, rows []netspeed.Record) *Snapshot {
	rows = normalize.Dedupe(rows)

	snap := &Snapshot{
		File:                file,
		Date:                date,
		PhonesByModel:       make(ModelCounts),
		PhonesByModelJustiz: make(ModelCounts),
		PhonesByModelJVA:    make(ModelCounts),
		Details:             make(map[string]*LocationDetail),
	}

	switches := make(map[string]bool)
	switchesJustiz := make(map[string]bool)
	switchesJVA := make(map[string]bool)
	locations := make(map[string]bool)
	cities := make(map[string]bool)

	// switch -> vlan -> phone count, per location
	switchVLANs := make(map[string]map[string]map[string]int)
	kemSeen := make(map[string]map[string]bool)

	for _, rec := range rows {
		hostname := strings.TrimSpace(rec.Get(netspeed.FieldSwitchHostname))
		location, hasLocation := netspeed.ExtractLocation(hostname)
		class := netspeed.ClassifyHostname(hostname)
		model := foldModel(rec.Get(netspeed.FieldModelName))
		kems := netspeed.KEMCount(rec)

		snap.TotalPhones++
		snap.PhonesByModel.add(model)
		if class == netspeed.ClassJVA {
			snap.TotalPhonesJVA++
			snap.PhonesByModelJVA.add(model)
		} else {
			snap.TotalPhonesJustiz++
			snap.PhonesByModelJustiz.add(model)
		}
		if kems > 0 {
			snap.PhonesWithKEM++
			snap.TotalKEMs += kems
		}
		if hostname != "" {
			switches[hostname] = true
			if class == netspeed.ClassJVA {
				switchesJVA[hostname] = true
			} else {
				switchesJustiz[hostname] = true
			}
		}
		if !hasLocation {
			continue
		}

		locations[location] = true
		cities[netspeed.CityCode(location)] = true

		detail := snap.Details[location]
		if detail == nil {
			detail = &LocationDetail{
				Location:            location,
				City:                netspeed.CityCode(location),
				PhonesByModel:       make(ModelCounts),
				PhonesByModelJustiz: make(ModelCounts),
				PhonesByModelJVA:    make(ModelCounts),
				VLANUsage:           make(map[string]int),
			}
			snap.Details[location] = detail
			switchVLANs[location] = make(map[string]map[string]int)
			kemSeen[location] = make(map[string]bool)
		}

		detail.TotalPhones++
		detail.PhonesByModel.add(model)
		if class == netspeed.ClassJVA {
			detail.PhonesByModelJVA.add(model)
		} else {
			detail.PhonesByModelJustiz.add(model)
		}

		vlan := strings.TrimSpace(rec.Get(netspeed.FieldVoiceVLAN))
		if vlan != "" {
			detail.VLANUsage[vlan]++
		}
		if hostname != "" {
			perSwitch := switchVLANs[location][hostname]
			if perSwitch == nil {
				perSwitch = make(map[string]int)
				switchVLANs[location][hostname] = perSwitch
			}
			if vlan != "" {
				perSwitch[vlan]++
			}
		}

		if kems > 0 {
			detail.PhonesWithKEM++
			key := strings.ToUpper(rec.Get(netspeed.FieldMACAddress)) + "|" + rec.Get(netspeed.FieldSerialNumber)
			if !kemSeen[location][key] {
				kemSeen[location][key] = true
				detail.KEMPhones = append(detail.KEMPhones, KEMPhone{
					Model:      rec.Get(netspeed.FieldModelName),
					MAC:        rec.Get(netspeed.FieldMACAddress),
					Serial:     rec.Get(netspeed.FieldSerialNumber),
					Switch:     hostname,
					IP:         rec.Get(netspeed.FieldIPAddress),
					KEMModules: kems,
				})
			}
		}
	}

	snap.TotalSwitches = len(switches)
	snap.TotalSwitchesJustiz = len(switchesJustiz)
	snap.TotalSwitchesJVA = len(switchesJVA)
	snap.Locations = sortedKeys(locations)
	snap.CityCodes = sortedKeys(cities)

	for location, detail := range snap.Details {
		hosts := switchVLANs[location]
		detail.TotalSwitches = len(hosts)
		detail.Switches = make([]SwitchVLANs, 0, len(hosts))
		for hostname, vlans := range hosts {
			sv := SwitchVLANs{Hostname: hostname, VLANs: make([]VLANCount, 0, len(vlans))}
			for vlan, count := range vlans {
				sv.VLANs = append(sv.VLANs, VLANCount{VLAN: vlan, Count: count})
			}
			sortVLANs(sv.VLANs)
			detail.Switches = append(detail.Switches, sv)
		}
		sort.Slice(detail.Switches, func(i, j int) bool {
			return detail.Switches[i].Hostname < detail.Switches[j].Hostname
		})
		sort.Slice(detail.KEMPhones, func(i, j int) bool {
			a, b := detail.KEMPhones[i], detail.KEMPhones[j]
			if a.Serial != b.Serial {
				return a.Serial < b.Serial
			}
			return a.MAC < b.MAC
		})
	}

	return snap
}

// foldModel buckets model names that cannot be real models: MAC look-alikes
// and anything shorter than four characters.
func foldModel(model string) string {
	model = strings.TrimSpace(model)
	if len(model) < 4 {
		return UnknownModel
	}
	if stripped := strings.Map(dropMACSeparators, model); len(stripped) == 12 && isHex(stripped) {
		return UnknownModel
	}
	return model
}

func dropMACSeparators(r rune) rune {
	switch r {
	case ':', '-', '.', ' ':
		return -1
	}
	return r
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			continue
		}
		return false
	}
	return len(s) > 0
}

// sortVLANs orders numeric VLAN ids ascending before everything else; the
// rest sorts lexicographically.
func sortVLANs(vlans []VLANCount) {
	sort.Slice(vlans, func(i, j int) bool {
		a, aerr := strconv.Atoi(vlans[i].VLAN)
		b, berr := strconv.Atoi(vlans[j].VLAN)
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return vlans[i].VLAN < vlans[j].VLAN
		}
	})
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
