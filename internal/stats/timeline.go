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

package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// snapshotFetchSize bounds timeline fetches; snapshots accrue one per file
// per day, so this covers decades.
const snapshotFetchSize = 10000

// ErrInvalidLocation rejects timeline location queries that are neither a
// 3-character city prefix nor a 5-character location code.
var ErrInvalidLocation = errors.New("location query must be a 3-char city or 5-char location code")

// TimelineEntry is one day of the statistics series.
type TimelineEntry struct {
	Date           string `json:"date"`
	TotalPhones    int    `json:"totalPhones"`
	TotalSwitches  int    `json:"totalSwitches"`
	TotalLocations int    `json:"totalLocations"`
	TotalCities    int    `json:"totalCities"`
	PhonesWithKEM  int    `json:"phonesWithKEM"`
	TotalKEMs      int    `json:"totalKEMs"`

	PhonesByModel       ModelCounts `json:"phonesByModel,omitempty"`
	PhonesByModelJustiz ModelCounts `json:"phonesByModelJustiz,omitempty"`
	PhonesByModelJVA    ModelCounts `json:"phonesByModelJVA,omitempty"`
}

// globalSnapshot is the parsed subset of a stored global snapshot document.
type globalSnapshot struct {
	File          string
	Date          string
	TotalPhones   int
	TotalSwitches int
	PhonesWithKEM int
	TotalKEMs     int
	Locations     int
	Cities        int

	PhonesByModel       ModelCounts
	PhonesByModelJustiz ModelCounts
	PhonesByModelJVA    ModelCounts
}

// locationSnapshot is the parsed subset of a per-location snapshot document.
type locationSnapshot struct {
	File          string
	Date          string
	Location      string
	City          string
	TotalPhones   int
	TotalSwitches int
	PhonesWithKEM int
	PhonesByModel ModelCounts
}

// GlobalTimeline returns the day-by-day global series. Missing days repeat
// the previous day. limit > 0 keeps only the trailing days.
func (e *Engine) GlobalTimeline(ctx context.Context, limit int) ([]TimelineEntry, error) {
	key := fmt.Sprintf("timeline|%d", limit)
	if cached, ok := e.cache.get(key); ok {
		return cached.([]TimelineEntry), nil
	}

	docs, err := e.fetchGlobalSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	entries := tailEntries(buildGlobalSeries(docs), limit)
	e.cache.put(key, entries)
	return entries, nil
}

// LocationTimeline returns the day-by-day series for one location code or
// one 3-character city prefix.
func (e *Engine) LocationTimeline(ctx context.Context, q string, limit int) ([]TimelineEntry, error) {
	q = strings.ToUpper(strings.TrimSpace(q))
	if len(q) != 3 && len(q) != 5 {
		return nil, ErrInvalidLocation
	}

	key := fmt.Sprintf("timeline_loc|%s|%d", q, limit)
	if cached, ok := e.cache.get(key); ok {
		return cached.([]TimelineEntry), nil
	}

	var match map[string]any
	if len(q) == 5 {
		match = map[string]any{"term": map[string]any{"location": q}}
	} else {
		match = map[string]any{"prefix": map[string]any{"location": q}}
	}
	docs, err := e.fetchLocationSnapshots(ctx, match)
	if err != nil {
		return nil, err
	}
	entries := tailEntries(buildLocationSeries(docs), limit)
	e.cache.put(key, entries)
	return entries, nil
}

// TopOptions select and shape a top-N timeline.
type TopOptions struct {
	Count    int      // how many keys to rank, default 10
	Extras   []string // keys always included regardless of rank
	Limit    int      // trailing days, 0 = whole window
	Mode     string   // "per_key" (default) or "aggregate"
	Group    string   // "city" or "location" (default)
	FromMMDD string   // optional "MM-DD" window anchor
}

// TopResult is an aligned set of daily series for the selected keys.
type TopResult struct {
	Dates  []string         `json:"dates"`
	Keys   []string         `json:"keys"`
	Series map[string][]int `json:"series,omitempty"`
	Values []int            `json:"values,omitempty"`
}

// TopLocations ranks cities or locations by phone count on the latest day
// and returns their daily series.
func (e *Engine) TopLocations(ctx context.Context, opts TopOptions) (*TopResult, error) {
	if opts.Count <= 0 {
		opts.Count = 10
	}
	if opts.Mode == "" {
		opts.Mode = "per_key"
	}
	if opts.Group == "" {
		opts.Group = "location"
	}

	key := fmt.Sprintf("top|%d|%s|%d|%s|%s|%s",
		opts.Count, strings.Join(opts.Extras, ","), opts.Limit, opts.Mode, opts.Group, opts.FromMMDD)
	if cached, ok := e.cache.get(key); ok {
		return cached.(*TopResult), nil
	}

	docs, err := e.fetchLocationSnapshots(ctx, map[string]any{"match_all": map[string]any{}})
	if err != nil {
		return nil, err
	}
	result := buildTopSeries(docs, opts)
	e.cache.put(key, result)
	return result, nil
}

// Cities returns the distinct city codes of the most recent snapshot.
func (e *Engine) Cities(ctx context.Context) ([]string, error) {
	key := "cities"
	if cached, ok := e.cache.get(key); ok {
		return cached.([]string), nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	res, err := e.es.Query(ctx, []string{netspeed.StatsIndex}, map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []any{map[string]any{"date": map[string]any{"order": "desc"}}},
		"size":  1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}
	var cities []string
	if len(res.Hits) > 0 {
		if arr, ok := res.Hits[0].Source["cityCodes"].([]any); ok {
			for _, v := range arr {
				if s, ok := v.(string); ok {
					cities = append(cities, s)
				}
			}
		}
	}
	sort.Strings(cities)
	e.cache.put(key, cities)
	return cities, nil
}

func (e *Engine) fetchGlobalSnapshots(ctx context.Context) ([]globalSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	res, err := e.es.Query(ctx, []string{netspeed.StatsIndex}, map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []any{map[string]any{"date": map[string]any{"order": "asc"}}},
		"size":  snapshotFetchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}
	docs := make([]globalSnapshot, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docs = append(docs, parseGlobalSnapshot(hit.Source))
	}
	return docs, nil
}

func (e *Engine) fetchLocationSnapshots(ctx context.Context, match map[string]any) ([]locationSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	res, err := e.es.Query(ctx, []string{netspeed.StatsLocationIndex}, map[string]any{
		"query": map[string]any{"bool": map[string]any{"filter": []any{match}}},
		"sort":  []any{map[string]any{"date": map[string]any{"order": "asc"}}},
		"size":  snapshotFetchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch location snapshots: %w", err)
	}
	docs := make([]locationSnapshot, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docs = append(docs, parseLocationSnapshot(hit.Source))
	}
	return docs, nil
}

// buildGlobalSeries collapses same-day snapshots, preferring the canonical
// current file over rotations and backups, and fills gaps by carrying the
// previous day forward.
func buildGlobalSeries(docs []globalSnapshot) []TimelineEntry {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Date != docs[j].Date {
			return docs[i].Date < docs[j].Date
		}
		ri, rj := fileRank(docs[i].File), fileRank(docs[j].File)
		if ri != rj {
			return ri < rj
		}
		return docs[i].File < docs[j].File
	})

	byDate := make(map[string]TimelineEntry)
	for _, doc := range docs {
		if _, taken := byDate[doc.Date]; taken {
			continue
		}
		byDate[doc.Date] = TimelineEntry{
			Date:                doc.Date,
			TotalPhones:         doc.TotalPhones,
			TotalSwitches:       doc.TotalSwitches,
			TotalLocations:      doc.Locations,
			TotalCities:         doc.Cities,
			PhonesWithKEM:       doc.PhonesWithKEM,
			TotalKEMs:           doc.TotalKEMs,
			PhonesByModel:       doc.PhonesByModel,
			PhonesByModelJustiz: doc.PhonesByModelJustiz,
			PhonesByModelJVA:    doc.PhonesByModelJVA,
		}
	}
	return fillDays(byDate)
}

// buildLocationSeries takes the per-day elementwise maximum of each location
// across files, then sums the maxima across locations per day. The max step
// keeps a location from counting twice when two files cover the same day.
func buildLocationSeries(docs []locationSnapshot) []TimelineEntry {
	type dayLoc struct{ date, loc string }
	maxes := make(map[dayLoc]locationSnapshot)
	for _, doc := range docs {
		k := dayLoc{doc.Date, doc.Location}
		cur, ok := maxes[k]
		if !ok {
			maxes[k] = doc
			continue
		}
		cur.TotalPhones = maxInt(cur.TotalPhones, doc.TotalPhones)
		cur.TotalSwitches = maxInt(cur.TotalSwitches, doc.TotalSwitches)
		cur.PhonesWithKEM = maxInt(cur.PhonesWithKEM, doc.PhonesWithKEM)
		cur.PhonesByModel = maxModelCounts(cur.PhonesByModel, doc.PhonesByModel)
		maxes[k] = cur
	}

	type dayAgg struct {
		entry     TimelineEntry
		locations map[string]bool
		cities    map[string]bool
	}
	byDate := make(map[string]*dayAgg)
	for k, doc := range maxes {
		agg := byDate[k.date]
		if agg == nil {
			agg = &dayAgg{
				entry:     TimelineEntry{Date: k.date, PhonesByModel: make(ModelCounts)},
				locations: make(map[string]bool),
				cities:    make(map[string]bool),
			}
			byDate[k.date] = agg
		}
		agg.entry.TotalPhones += doc.TotalPhones
		agg.entry.TotalSwitches += doc.TotalSwitches
		agg.entry.PhonesWithKEM += doc.PhonesWithKEM
		for model, count := range doc.PhonesByModel {
			agg.entry.PhonesByModel[model] += count
		}
		agg.locations[k.loc] = true
		agg.cities[netspeed.CityCode(k.loc)] = true
	}

	entries := make(map[string]TimelineEntry, len(byDate))
	for date, agg := range byDate {
		agg.entry.TotalLocations = len(agg.locations)
		agg.entry.TotalCities = len(agg.cities)
		entries[date] = agg.entry
	}
	return fillDays(entries)
}

// buildTopSeries ranks keys by their carry-forward value on the latest day.
func buildTopSeries(docs []locationSnapshot, opts TopOptions) *TopResult {
	type dayLoc struct{ date, loc string }
	maxes := make(map[dayLoc]int)
	for _, doc := range docs {
		k := dayLoc{doc.Date, doc.Location}
		maxes[k] = maxInt(maxes[k], doc.TotalPhones)
	}

	// key -> date -> phone count
	perKey := make(map[string]map[string]int)
	dateSet := make(map[string]bool)
	for k, phones := range maxes {
		key := k.loc
		if opts.Group == "city" {
			key = netspeed.CityCode(k.loc)
		}
		byDate := perKey[key]
		if byDate == nil {
			byDate = make(map[string]int)
			perKey[key] = byDate
		}
		byDate[k.date] += phones
		dateSet[k.date] = true
	}
	if len(dateSet) == 0 {
		return &TopResult{Dates: []string{}, Keys: []string{}}
	}

	dates := windowDates(dateSet, opts.FromMMDD)

	// carry-forward series per key over the full history, then cut to window
	series := make(map[string][]int, len(perKey))
	allDays := windowDates(dateSet, "")
	for key, byDate := range perKey {
		full := make([]int, len(allDays))
		prev := 0
		for i, day := range allDays {
			if v, ok := byDate[day]; ok {
				prev = v
			}
			full[i] = prev
		}
		series[key] = alignToWindow(allDays, full, dates)
	}

	keys := rankKeys(series, opts.Count)
	for _, extra := range opts.Extras {
		extra = strings.ToUpper(strings.TrimSpace(extra))
		if extra == "" || containsString(keys, extra) {
			continue
		}
		keys = append(keys, extra)
		if _, ok := series[extra]; !ok {
			series[extra] = make([]int, len(dates))
		}
	}

	if opts.Limit > 0 && len(dates) > opts.Limit {
		cut := len(dates) - opts.Limit
		dates = dates[cut:]
		for key := range series {
			series[key] = series[key][cut:]
		}
	}

	result := &TopResult{Dates: dates, Keys: keys}
	if opts.Mode == "aggregate" {
		values := make([]int, len(dates))
		for _, key := range keys {
			for i, v := range series[key] {
				values[i] += v
			}
		}
		result.Values = values
	} else {
		picked := make(map[string][]int, len(keys))
		for _, key := range keys {
			picked[key] = series[key]
		}
		result.Series = picked
	}
	return result
}

// fillDays expands a sparse date map into a contiguous daily series,
// repeating the previous day where a date is missing.
func fillDays(byDate map[string]TimelineEntry) []TimelineEntry {
	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		t, err := time.Parse(netspeed.DateFormat, d)
		if err != nil {
			continue
		}
		dates = append(dates, t)
	}
	if len(dates) == 0 {
		return nil
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	start, end := dates[0], dates[len(dates)-1]
	out := make([]TimelineEntry, 0, int(end.Sub(start).Hours()/24)+1)
	var prev TimelineEntry
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		ds := day.Format(netspeed.DateFormat)
		if entry, ok := byDate[ds]; ok {
			prev = entry
		}
		prev.Date = ds
		out = append(out, prev)
	}
	return out
}

// windowDates returns the contiguous run of days covering the observed
// dates. A non-empty "MM-DD" anchor moves the start to the most recent
// occurrence of that month-day at or before the latest observed date.
func windowDates(dateSet map[string]bool, fromMMDD string) []string {
	var start, end time.Time
	for d := range dateSet {
		t, err := time.Parse(netspeed.DateFormat, d)
		if err != nil {
			continue
		}
		if start.IsZero() || t.Before(start) {
			start = t
		}
		if end.IsZero() || t.After(end) {
			end = t
		}
	}
	if start.IsZero() {
		return nil
	}

	if anchor, ok := parseMMDD(fromMMDD, end); ok && anchor.After(start) {
		start = anchor
	}

	out := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		out = append(out, day.Format(netspeed.DateFormat))
	}
	return out
}

// parseMMDD resolves "MM-DD" to the latest matching calendar day not after
// the reference date.
func parseMMDD(mmdd string, ref time.Time) (time.Time, bool) {
	if mmdd == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("01-02", mmdd)
	if err != nil {
		return time.Time{}, false
	}
	anchor := time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if anchor.After(ref) {
		anchor = anchor.AddDate(-1, 0, 0)
	}
	return anchor, true
}

// alignToWindow cuts a full-history series down to the window, which is
// always a suffix of the full day range.
func alignToWindow(allDays []string, full []int, window []string) []int {
	if len(window) == 0 {
		return nil
	}
	offset := len(allDays) - len(window)
	if offset <= 0 {
		return full
	}
	return full[offset:]
}

// rankKeys picks the top-N keys by their value on the last day, ties broken
// by key name.
func rankKeys(series map[string][]int, n int) []string {
	type ranked struct {
		key   string
		value int
	}
	all := make([]ranked, 0, len(series))
	for key, values := range series {
		v := 0
		if len(values) > 0 {
			v = values[len(values)-1]
		}
		all = append(all, ranked{key, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].value != all[j].value {
			return all[i].value > all[j].value
		}
		return all[i].key < all[j].key
	})
	if n > len(all) {
		n = len(all)
	}
	keys := make([]string, 0, n)
	for _, r := range all[:n] {
		keys = append(keys, r.key)
	}
	return keys
}

func tailEntries(entries []TimelineEntry, limit int) []TimelineEntry {
	if limit > 0 && len(entries) > limit {
		return entries[len(entries)-limit:]
	}
	return entries
}

// fileRank orders same-day snapshot sources: the legacy current name wins,
// then timestamped currents, rotations, backups, and stray names last.
func fileRank(name string) int {
	info, ok := netspeed.ParseFileName(name)
	if !ok {
		return 4
	}
	switch info.Kind {
	case netspeed.KindCurrent:
		if !info.HasTimestamp() {
			return 0
		}
		return 1
	case netspeed.KindRotation:
		return 2
	case netspeed.KindBackup:
		return 3
	default:
		return 4
	}
}

func parseGlobalSnapshot(src map[string]any) globalSnapshot {
	return globalSnapshot{
		File:                asString(src["file"]),
		Date:                asString(src["date"]),
		TotalPhones:         asInt(src["totalPhones"]),
		TotalSwitches:       asInt(src["totalSwitches"]),
		PhonesWithKEM:       asInt(src["phonesWithKEM"]),
		TotalKEMs:           asInt(src["totalKEMs"]),
		Locations:           listLen(src["locations"]),
		Cities:              listLen(src["cityCodes"]),
		PhonesByModel:       asModelCounts(src["phonesByModel"]),
		PhonesByModelJustiz: asModelCounts(src["phonesByModelJustiz"]),
		PhonesByModelJVA:    asModelCounts(src["phonesByModelJVA"]),
	}
}

func parseLocationSnapshot(src map[string]any) locationSnapshot {
	return locationSnapshot{
		File:          asString(src["file"]),
		Date:          asString(src["date"]),
		Location:      asString(src["location"]),
		City:          asString(src["city"]),
		TotalPhones:   asInt(src["totalPhones"]),
		TotalSwitches: asInt(src["totalSwitches"]),
		PhonesWithKEM: asInt(src["phonesWithKEM"]),
		PhonesByModel: asModelCounts(src["phonesByModel"]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt tolerates both decoded JSON numbers and native ints from tests.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func listLen(v any) int {
	switch arr := v.(type) {
	case []any:
		return len(arr)
	case []string:
		return len(arr)
	}
	return 0
}

func asModelCounts(v any) ModelCounts {
	switch m := v.(type) {
	case map[string]any:
		out := make(ModelCounts, len(m))
		for k, val := range m {
			out[k] = asInt(val)
		}
		return out
	case ModelCounts:
		return m.Clone()
	}
	return nil
}

func maxModelCounts(a, b ModelCounts) ModelCounts {
	if a == nil {
		return b.Clone()
	}
	out := a.Clone()
	for k, v := range b {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
