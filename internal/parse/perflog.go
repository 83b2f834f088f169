// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// FieldRule extracts one "LABEL = value UNIT" line inside a section.
type FieldRule struct {
	// Label is the text left of '=' after trimming.
	Label string
	// Key is the name the value is reported under.
	Key string
	// Unit is stripped from the end of the value when present.
	Unit string
}

// SectionGrammar describes one block of the report. Begin and End match whole
// lines; when Begin has a capture group it holds the rotor number, otherwise
// the section belongs to rotor 1.
type SectionGrammar struct {
	Name   string
	Begin  *regexp.Regexp
	End    *regexp.Regexp
	Fields []FieldRule
}

// Grammar is the set of sections recognised in a report. Report variants are
// supported by adding sections, not by changing the scanner.
type Grammar struct {
	Sections []SectionGrammar
}

// SectionRotorLoads is the per-rotor loads block of the performance report.
const SectionRotorLoads = "rotor-loads"

// RotorLoads matches blocks of the form
//
//	ROTOR   1 LOADS
//	  TOTAL THRUST      =    120.4568 LB
//	  TOTAL YAW MOMENT  =     -3.2100 FT-LB
//	  POWER COEFFICIENT =  0.41200D-03
//	  ROTOR EFFICIENCY  =       71.20 %
//	END ROTOR   1 LOADS
var RotorLoads = SectionGrammar{
	Name:  SectionRotorLoads,
	Begin: regexp.MustCompile(`^\s*ROTOR\s+(\d+)\s+LOADS\s*$`),
	End:   regexp.MustCompile(`^\s*END\s+ROTOR\s+\d+\s+LOADS\s*$`),
	Fields: []FieldRule{
		{Label: "TOTAL THRUST", Key: types.PerfTotalThrust, Unit: "LB"},
		{Label: "TOTAL YAW MOMENT", Key: types.PerfTotalYaw, Unit: "FT-LB"},
		{Label: "POWER COEFFICIENT", Key: types.PerfPowerCoef},
		{Label: "ROTOR EFFICIENCY", Key: types.PerfRotorEff, Unit: "%"},
	},
}

// DefaultGrammar recognises the report layout written by the solver.
var DefaultGrammar = Grammar{Sections: []SectionGrammar{RotorLoads}}

// Report holds the values scanned from a performance log, by section name
// and rotor number.
type Report struct {
	file     string
	grammar  Grammar
	sections map[string]map[int]map[string]float64
}

// ScanReport runs the section state machine over r. A section that begins
// but never ends, a missing field, or an unparseable value is an error. When
// a rotor's section appears more than once the last occurrence wins.
func ScanReport(r io.Reader, file string, g Grammar) (*Report, error) {
	rep := &Report{file: file, grammar: g, sections: make(map[string]map[int]map[string]float64)}

	var (
		cur    *SectionGrammar
		rotor  int
		values map[string]float64
		lineNo int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := sc.Text()

		if cur == nil {
			for i := range g.Sections {
				sg := &g.Sections[i]
				m := sg.Begin.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				rotor = 1
				if len(m) > 1 {
					n, err := strconv.Atoi(m[1])
					if err != nil {
						return nil, &types.ParseError{File: file, Marker: sg.Name,
							Err: fmt.Errorf("%w: rotor number %q on line %d", types.ErrMalformedNumber, m[1], lineNo)}
					}
					rotor = n
				}
				cur, values = sg, make(map[string]float64, len(sg.Fields))
				break
			}
			continue
		}

		if cur.End.MatchString(line) {
			for _, f := range cur.Fields {
				if _, ok := values[f.Key]; !ok {
					return nil, &types.ParseError{File: file,
						Marker: fmt.Sprintf("%s rotor %d: %s", cur.Name, rotor, f.Label), Err: types.ErrMarkerNotFound}
				}
			}
			if rep.sections[cur.Name] == nil {
				rep.sections[cur.Name] = make(map[int]map[string]float64)
			}
			rep.sections[cur.Name][rotor] = values
			cur = nil
			continue
		}

		label, raw, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		for _, f := range cur.Fields {
			if label != f.Label {
				continue
			}
			v, err := parseNumber(stripUnit(raw, f.Unit))
			if err != nil {
				return nil, &types.ParseError{File: file,
					Marker: fmt.Sprintf("%s rotor %d: %s (line %d)", cur.Name, rotor, f.Label, lineNo), Err: err}
			}
			values[f.Key] = v
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &types.ParseError{File: file, Err: err}
	}
	if cur != nil {
		return nil, &types.ParseError{File: file,
			Marker: fmt.Sprintf("end of %s rotor %d", cur.Name, rotor), Err: types.ErrMarkerNotFound}
	}
	return rep, nil
}

func stripUnit(raw, unit string) string {
	s := strings.TrimSpace(raw)
	if unit != "" {
		s = strings.TrimSpace(strings.TrimSuffix(s, unit))
	}
	return s
}

// Rotors returns the rotor numbers found for a section, ascending.
func (r *Report) Rotors(section string) []int {
	var out []int
	for n := range r.sections[section] {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Section returns the values of one rotor's section. A report without the
// section at all fails with types.ErrMarkerNotFound; a report that has the
// section only for other rotors fails with types.ErrRotorSectionMissing.
func (r *Report) Section(section string, rotor int) (map[string]float64, error) {
	byRotor := r.sections[section]
	if len(byRotor) == 0 {
		return nil, &types.ParseError{File: r.file, Marker: section, Err: types.ErrMarkerNotFound}
	}
	values, ok := byRotor[rotor]
	if !ok {
		return nil, &types.ParseError{File: r.file, Marker: fmt.Sprintf("%s rotor %d", section, rotor),
			Err: fmt.Errorf("%w: report has rotors %v", types.ErrRotorSectionMissing, r.Rotors(section))}
	}
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}

// ReadReport scans the performance log at path with DefaultGrammar.
func ReadReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &types.ParseError{File: path, Err: types.ErrFileMissing}
		}
		return nil, &types.ParseError{File: path, Err: err}
	}
	defer f.Close()
	return ScanReport(f, path, DefaultGrammar)
}

// ExtractPerformance returns the rotor-loads scalars of one rotor: at least
// TotalThrust, TotalYaw, PowerCoef and RotorEff.
func ExtractPerformance(path string, rotor int) (map[string]float64, error) {
	rep, err := ReadReport(path)
	if err != nil {
		return nil, err
	}
	return rep.Section(SectionRotorLoads, rotor)
}

// ExtractRotors returns the rotor-loads scalars of rotors 1..n keyed by
// types.PerformanceColumn. Every rotor section must be present.
func ExtractRotors(path string, n int) (map[string]float64, error) {
	rep, err := ReadReport(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, n*len(types.PerformanceKeys))
	for rotor := 1; rotor <= n; rotor++ {
		values, err := rep.Section(SectionRotorLoads, rotor)
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			out[types.PerformanceColumn(k, rotor)] = v
		}
	}
	return out, nil
}
