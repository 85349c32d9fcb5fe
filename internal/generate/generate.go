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

// Package generate produces realistic netspeed export fixtures for local
// development and tests: a current file plus backdated rotations, covering
// the 11, 14, 15 and 16 column layout generations, KEM-equipped phones,
// duplicate rows and the JVA and Justiz hostname shapes. Output is fully
// determined by the seed.
package generate

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// Defaults applied by New for unset options.
const (
	DefaultPhones    = 250
	DefaultRotations = 6
)

const (
	domainSuffix = ".juwin.bayern.de"
	writeBufSize = 8 * 1024
	portsPerSW   = 44
	maxPhones    = 50000
)

// Options configures one fixture run. Zero values mean defaults; a negative
// Rotations writes only the current file.
type Options struct {
	// Dir is the directory the files are written into. Required.
	Dir string

	// Phones is the fleet size of the current file.
	Phones int

	// Rotations is the number of netspeed.csv.N files. Older rotations
	// carry fewer phones and earlier column layouts.
	Rotations int

	// Seed fixes the generated content. Equal seeds produce byte-equal
	// files.
	Seed int64

	// BaseTime is the modification time of the current file; rotation N
	// is backdated N days from it. Zero means now.
	BaseTime time.Time
}

// Result reports what a run wrote.
type Result struct {
	Files []string // file names in write order, current first
	Rows  int      // data rows across all files, duplicates included
}

// Generator writes export fixture sets.
type Generator struct {
	logger *slog.Logger
	opts   Options
}

// New creates a generator. Unset options fall back to defaults.
func New(logger *slog.Logger, opts Options) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Phones <= 0 {
		opts.Phones = DefaultPhones
	}
	// The address and MAC schemes stay collision-free up to this size.
	if opts.Phones > maxPhones {
		opts.Phones = maxPhones
	}
	if opts.Rotations == 0 {
		opts.Rotations = DefaultRotations
	}
	if opts.Rotations < 0 {
		opts.Rotations = 0
	}
	return &Generator{logger: logger, opts: opts}
}

// site is one generated building: the hostname location prefix, the phone
// number area code, the second octet of its 10.x.0.0/16 block, its voice
// VLAN and its share of the fleet. Sites listed later joined the network
// later, so older rotations miss them first.
type site struct {
	host   string
	area   string
	octet  int
	vlan   string
	weight int
	zsl    bool // ZSL switch naming instead of SW
}

var sites = []site{
	{host: "MUC01", area: "89", octet: 16, vlan: "803", weight: 5},
	{host: "MUC02", area: "89", octet: 17, vlan: "804", weight: 3},
	{host: "NUE01", area: "911", octet: 24, vlan: "210", weight: 4},
	{host: "AUG01", area: "821", octet: 32, vlan: "411", weight: 3},
	{host: "WUE01", area: "931", octet: 40, vlan: "520", weight: 3},
	{host: "MUCX50", area: "89", octet: 18, vlan: "850", weight: 2},
	{host: "NUEX51", area: "911", octet: 25, vlan: "251", weight: 2},
	{host: "BAM01", area: "951", octet: 44, vlan: "615", weight: 2},
	{host: "REG01", area: "941", octet: 48, vlan: "320", weight: 2},
	{host: "AUG51", area: "821", octet: 33, vlan: "451", weight: 1, zsl: true},
	{host: "ABX01", area: "6021", octet: 52, vlan: "730", weight: 2, zsl: true},
	{host: "HOX02", area: "9281", octet: 56, vlan: "940", weight: 1, zsl: true},
}

// phone is one generated device. All cell values are preformatted strings;
// the row structs only select which of them a layout generation carries.
type phone struct {
	ip     string
	line   string
	serial string
	model  string
	kems   int
	mac    string
	host   string
	port   string
	vlan   string
	speed  string
	pcOff  bool
}

// Run writes the fixture set into Options.Dir, creating it if needed.
// Existing files of the same names are overwritten.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	if g.opts.Dir == "" {
		return nil, fmt.Errorf("output directory not set")
	}
	if err := os.MkdirAll(g.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := g.opts.BaseTime
	if base.IsZero() {
		base = time.Now()
	}

	fleet := g.buildFleet()
	res := &Result{}

	current := withDuplicates(fleet, g.opts.Seed)
	if err := g.writeFile(ctx, netspeed.CurrentLegacyName, current, 16, base, res); err != nil {
		return nil, err
	}

	for i := 1; i <= g.opts.Rotations; i++ {
		older := olderFleet(fleet, i, g.opts.Rotations, g.opts.Seed)
		name := fmt.Sprintf("%s.%d", netspeed.CurrentLegacyName, i)
		mtime := base.Add(-time.Duration(i) * 24 * time.Hour)
		if err := g.writeFile(ctx, name, older, variantFor(i), mtime, res); err != nil {
			return nil, err
		}
	}

	g.logger.Info("fixture set complete",
		"dir", g.opts.Dir, "files", len(res.Files), "rows", res.Rows, "seed", g.opts.Seed)
	return res, nil
}

// buildFleet allocates phones to sites by weight, in site order. The random
// stream only feeds per-phone attributes, so the site layout is stable
// across seeds while serials, models and KEM fit vary.
func (g *Generator) buildFleet() []phone {
	rng := rand.New(rand.NewSource(g.opts.Seed))

	total := 0
	for _, s := range sites {
		total += s.weight
	}

	fleet := make([]phone, 0, g.opts.Phones)
	remaining := g.opts.Phones
	for si, s := range sites {
		count := g.opts.Phones * s.weight / total
		if si == len(sites)-1 || count > remaining {
			count = remaining
		}
		jva := siteIsJVA(s.host)
		for k := 0; k < count; k++ {
			fleet = append(fleet, g.buildPhone(rng, s, si, k, jva))
		}
		remaining -= count
	}
	return fleet
}

func (g *Generator) buildPhone(rng *rand.Rand, s site, siteIdx, k int, jva bool) phone {
	sw := k/portsPerSW + 1

	p := phone{
		ip:     fmt.Sprintf("10.%d.%d.%d", s.octet, k/240, 10+k%240),
		line:   fmt.Sprintf("+49%s559%04d", s.area, 1000+k),
		serial: buildSerial(rng),
		model:  pickModel(rng),
		mac:    buildMAC(siteIdx, k),
		host:   switchName(s, sw) + domainSuffix,
		port:   fmt.Sprintf("GigabitEthernet1/0/%d", k%portsPerSW+1),
		vlan:   s.vlan,
		speed:  pickSpeed(rng),
		pcOff:  jva,
	}
	if hasKEMSupport(p.model) {
		switch n := rng.Intn(100); {
		case n < 5:
			p.kems = 2
		case n < 20:
			p.kems = 1
		}
	}
	return p
}

// siteIsJVA derives the prison flag from the location code the hostname
// prefix resolves to, the same way the statistics pipeline does.
func siteIsJVA(hostPrefix string) bool {
	loc, ok := netspeed.ExtractLocation(hostPrefix + "SW001" + domainSuffix)
	return ok && netspeed.IsJVALocation(loc)
}

func switchName(s site, sw int) string {
	if s.zsl {
		return fmt.Sprintf("%sZSL47%02dP", s.host, sw)
	}
	return fmt.Sprintf("%sSW%03d", s.host, sw)
}

// serialAlphabet omits I and O, matching the look of vendor serials.
const serialAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

var serialPrefixes = []string{"FCH", "FOC", "FCW"}

// buildSerial produces an 11-character vendor serial: plant code, year and
// week, four assembly characters. The plant codes contain non-hex letters,
// so a serial can never be mistaken for a bare MAC address.
func buildSerial(rng *rand.Rand) string {
	var b strings.Builder
	b.WriteString(serialPrefixes[rng.Intn(len(serialPrefixes))])
	fmt.Fprintf(&b, "%02d%02d", 20+rng.Intn(5), 1+rng.Intn(52))
	for i := 0; i < 4; i++ {
		b.WriteByte(serialAlphabet[rng.Intn(len(serialAlphabet))])
	}
	return b.String()
}

// macOUIs are vendor prefixes. Each contains at least one hex letter, so a
// generated MAC is never a pure digit string.
var macOUIs = []string{"64A0E7", "A4B439", "F87B20", "2C3F38"}

func buildMAC(siteIdx, k int) string {
	return fmt.Sprintf("%s%02X%04X", macOUIs[siteIdx%len(macOUIs)], siteIdx, k)
}

func pickModel(rng *rand.Rand) string {
	switch n := rng.Intn(15); {
	case n < 5:
		return "CP-8851"
	case n < 9:
		return "CP-8841"
	case n < 13:
		return "CP-7841"
	case n < 14:
		return "CP-8861"
	default:
		return "DP-9851"
	}
}

func hasKEMSupport(model string) bool {
	return model == "CP-8851" || model == "CP-8861"
}

func pickSpeed(rng *rand.Rand) string {
	switch n := rng.Intn(100); {
	case n < 90:
		return "1000"
	case n < 98:
		return "100"
	default:
		return "auto"
	}
}

// withDuplicates scatters degraded duplicate rows through the fleet, the
// way re-registered phones show up twice in real exports. The duplicate
// loses its KEM and speed cells, so deduplication keeps the original.
func withDuplicates(fleet []phone, seed int64) []phone {
	rng := rand.New(rand.NewSource(seed + 1))
	out := make([]phone, 0, len(fleet)+len(fleet)/32)
	for _, p := range fleet {
		out = append(out, p)
		if rng.Intn(100) < 2 {
			d := p
			d.kems = 0
			d.speed = ""
			out = append(out, d)
		}
	}
	return out
}

// olderFleet is the fleet as it looked N rotations ago: the newest share of
// phones is not deployed yet and a few addresses differ from a later DHCP
// lease.
func olderFleet(fleet []phone, rotation, rotations int, seed int64) []phone {
	keep := len(fleet) - rotation*len(fleet)/(2*(rotations+1))
	if keep < 1 {
		keep = 1
	}
	older := make([]phone, keep)
	copy(older, fleet[:keep])

	rng := rand.New(rand.NewSource(seed + 100*int64(rotation)))
	for i := range older {
		if rng.Intn(100) < 4 {
			older[i].ip = shiftLastOctet(older[i].ip, rng)
		}
	}
	return older
}

func shiftLastOctet(ip string, rng *rand.Rand) string {
	dot := strings.LastIndex(ip, ".")
	if dot < 0 {
		return ip
	}
	return ip[:dot+1] + strconv.Itoa(100 + rng.Intn(150))
}

// variantFor maps a rotation index to the column layout in force when that
// file was current. The export gained columns over the years, so older
// rotations use earlier generations.
func variantFor(rotation int) int {
	switch {
	case rotation <= 1:
		return 16
	case rotation <= 2:
		return 15
	case rotation <= 4:
		return 14
	default:
		return 11
	}
}

func (g *Generator) writeFile(ctx context.Context, name string, fleet []phone, cols int, mtime time.Time, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(g.opts.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	bw := bufio.NewWriterSize(f, writeBufSize)
	cw := csv.NewWriter(bw)
	cw.Comma = ';'

	if err := gocsv.MarshalCSVWithoutHeaders(project(fleet, cols), gocsv.NewSafeCSVWriter(cw)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		return fmt.Errorf("failed to set mtime of %s: %w", name, err)
	}

	res.Files = append(res.Files, name)
	res.Rows += len(fleet)
	g.logger.Debug("wrote export fixture", "file", name, "rows", len(fleet), "columns", cols)
	return nil
}

// The row structs mirror the four column layout generations of the real
// export. Files are written without a header line; the tags document which
// canonical field each column carries.

type row16 struct {
	IPAddress      string `csv:"IP Address"`
	LineNumber     string `csv:"Line Number"`
	SerialNumber   string `csv:"Serial Number"`
	ModelName      string `csv:"Model Name"`
	KEM            string `csv:"KEM"`
	KEM2           string `csv:"KEM 2"`
	MACAddress     string `csv:"MAC Address"`
	MACAddress2    string `csv:"MAC Address 2"`
	SubnetMask     string `csv:"Subnet Mask"`
	VoiceVLAN      string `csv:"Voice VLAN"`
	Speed1         string `csv:"Speed 1"`
	Speed2         string `csv:"Speed 2"`
	SwitchHostname string `csv:"Switch Hostname"`
	SwitchPort     string `csv:"Switch Port"`
	SwitchPortMode string `csv:"Switch Port Mode"`
	PCPortMode     string `csv:"PC Port Mode"`
}

type row15 struct {
	IPAddress      string `csv:"IP Address"`
	LineNumber     string `csv:"Line Number"`
	SerialNumber   string `csv:"Serial Number"`
	ModelName      string `csv:"Model Name"`
	KEM            string `csv:"KEM"`
	KEM2           string `csv:"KEM 2"`
	MACAddress     string `csv:"MAC Address"`
	MACAddress2    string `csv:"MAC Address 2"`
	SubnetMask     string `csv:"Subnet Mask"`
	VoiceVLAN      string `csv:"Voice VLAN"`
	Speed1         string `csv:"Speed 1"`
	Speed2         string `csv:"Speed 2"`
	SwitchHostname string `csv:"Switch Hostname"`
	SwitchPort     string `csv:"Switch Port"`
	SwitchPortMode string `csv:"Switch Port Mode"`
}

type row14 struct {
	IPAddress      string `csv:"IP Address"`
	LineNumber     string `csv:"Line Number"`
	SerialNumber   string `csv:"Serial Number"`
	ModelName      string `csv:"Model Name"`
	KEM            string `csv:"KEM"`
	KEM2           string `csv:"KEM 2"`
	MACAddress     string `csv:"MAC Address"`
	MACAddress2    string `csv:"MAC Address 2"`
	SubnetMask     string `csv:"Subnet Mask"`
	VoiceVLAN      string `csv:"Voice VLAN"`
	Speed1         string `csv:"Speed 1"`
	Speed2         string `csv:"Speed 2"`
	SwitchHostname string `csv:"Switch Hostname"`
	SwitchPort     string `csv:"Switch Port"`
}

type row11 struct {
	IPAddress      string `csv:"IP Address"`
	LineNumber     string `csv:"Line Number"`
	SerialNumber   string `csv:"Serial Number"`
	ModelName      string `csv:"Model Name"`
	MACAddress     string `csv:"MAC Address"`
	SubnetMask     string `csv:"Subnet Mask"`
	VoiceVLAN      string `csv:"Voice VLAN"`
	Speed1         string `csv:"Speed 1"`
	Speed2         string `csv:"Speed 2"`
	SwitchHostname string `csv:"Switch Hostname"`
	SwitchPort     string `csv:"Switch Port"`
}

func (p phone) kemCells() (string, string) {
	switch p.kems {
	case 2:
		return "KEM", "KEM"
	case 1:
		return "KEM", ""
	default:
		return "", ""
	}
}

func (p phone) modeCells() (string, string) {
	if p.pcOff {
		return "auto", "off"
	}
	return "auto", "auto"
}

const subnetMask = "255.255.255.0"

func project(fleet []phone, cols int) any {
	switch cols {
	case 15:
		rows := make([]row15, len(fleet))
		for i, p := range fleet {
			kem1, kem2 := p.kemCells()
			mode1, _ := p.modeCells()
			rows[i] = row15{p.ip, p.line, p.serial, p.model, kem1, kem2,
				p.mac, "SEP" + p.mac, subnetMask, p.vlan, p.speed, p.speed,
				p.host, p.port, mode1}
		}
		return rows
	case 14:
		rows := make([]row14, len(fleet))
		for i, p := range fleet {
			kem1, kem2 := p.kemCells()
			rows[i] = row14{p.ip, p.line, p.serial, p.model, kem1, kem2,
				p.mac, "SEP" + p.mac, subnetMask, p.vlan, p.speed, p.speed,
				p.host, p.port}
		}
		return rows
	case 11:
		rows := make([]row11, len(fleet))
		for i, p := range fleet {
			rows[i] = row11{p.ip, p.line, p.serial, p.model,
				p.mac, subnetMask, p.vlan, p.speed, p.speed,
				p.host, p.port}
		}
		return rows
	default:
		rows := make([]row16, len(fleet))
		for i, p := range fleet {
			kem1, kem2 := p.kemCells()
			mode1, mode2 := p.modeCells()
			rows[i] = row16{p.ip, p.line, p.serial, p.model, kem1, kem2,
				p.mac, "SEP" + p.mac, subnetMask, p.vlan, p.speed, p.speed,
				p.host, p.port, mode1, mode2}
		}
		return rows
	}
}
