// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

const observerTable = `  Observer     X       Y       Z    Thickness   Loading    Total
     1       0.0    -4.0    -1.0     61.20      70.11     70.63
     2       0.0    -4.0     0.0     62.75      72.40     72.84

     3       0.0    -4.0     1.0    0.6031D+02  71.93     71.10
`

const singleRotorLog = ` CHARM PERFORMANCE REPORT
 CONVERGED AFTER   3 REVS

 ROTOR   1 LOADS
   TOTAL THRUST      =     120.456789 LB
   TOTAL YAW MOMENT  =      -3.2100 FT-LB
   POWER COEFFICIENT =   0.41200D-03
   ROTOR EFFICIENCY  =      71.20 %
 END ROTOR   1 LOADS

 RUN COMPLETE
`

const dualRotorLog = ` ROTOR   1 LOADS
   TOTAL THRUST      =     100.0 LB
   TOTAL YAW MOMENT  =      -1.5 FT-LB
   POWER COEFFICIENT =   0.0004
   ROTOR EFFICIENCY  =      70.0 %
 END ROTOR   1 LOADS
 ROTOR   2 LOADS
   TOTAL THRUST      =      98.5 LB
   TOTAL YAW MOMENT  =       1.4 FT-LB
   POWER COEFFICIENT =   0.00039
   ROTOR EFFICIENCY  =      69.5 %
 END ROTOR   2 LOADS
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestObserverTableValue(t *testing.T) {
	path := writeTemp(t, "obs.dat", observerTable)

	tests := []struct {
		name     string
		observer int
		column   string
		want     float64
		wantErr  error
	}{
		{name: "first row", observer: 1, column: "Total", want: 70.63},
		{name: "blank lines skipped", observer: 3, column: "Total", want: 71.10},
		{name: "fortran exponent", observer: 3, column: "Thickness", want: 60.31},
		{name: "row past end", observer: 4, column: "Total", wantErr: types.ErrRowOutOfRange},
		{name: "observer zero", observer: 0, column: "Total", wantErr: types.ErrRowOutOfRange},
		{name: "unknown column", observer: 1, column: "Broadband", wantErr: types.ErrColumnMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractObserver(path, tt.observer, tt.column)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, types.ErrParse)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestObserverTableShape(t *testing.T) {
	tbl, err := ReadObserverTable(writeTemp(t, "obs.dat", observerTable))
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"Observer", "X", "Y", "Z", "Thickness", "Loading", "Total"}, tbl.Columns())

	// N+1 is the first index out of range.
	_, err = tbl.Value(tbl.Len()+1, "Total")
	assert.ErrorIs(t, err, types.ErrRowOutOfRange)
}

func TestObserverTableErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ExtractObserver(filepath.Join(t.TempDir(), "absent.dat"), 1, "Total")
		require.ErrorIs(t, err, types.ErrParse)
		assert.ErrorIs(t, err, types.ErrFileMissing)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ReadObserverTable(writeTemp(t, "empty.dat", "\n\n"))
		require.ErrorIs(t, err, types.ErrParse)
		assert.ErrorIs(t, err, types.ErrMarkerNotFound)
	})

	t.Run("non numeric cell", func(t *testing.T) {
		path := writeTemp(t, "bad.dat", "Observer Total\n1 ******\n")
		_, err := ExtractObserver(path, 1, "Total")
		require.ErrorIs(t, err, types.ErrParse)
		assert.ErrorIs(t, err, types.ErrMalformedNumber)
	})

	t.Run("nan cell", func(t *testing.T) {
		path := writeTemp(t, "nan.dat", "Observer Total\n1 NaN\n")
		_, err := ExtractObserver(path, 1, "Total")
		assert.ErrorIs(t, err, types.ErrMalformedNumber)
	})

	t.Run("short row", func(t *testing.T) {
		path := writeTemp(t, "short.dat", "Observer X Total\n1 0.0\n")
		_, err := ExtractObserver(path, 1, "Total")
		assert.ErrorIs(t, err, types.ErrColumnMissing)
	})
}

func TestExtractObservers(t *testing.T) {
	path := writeTemp(t, "obs.dat", observerTable)

	got, err := ExtractObservers(path, []int{2, 1}, "Total")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Observer2": 72.84, "Observer1": 70.63}, got)

	_, err = ExtractObservers(path, []int{1, 21}, "Total")
	assert.ErrorIs(t, err, types.ErrRowOutOfRange)
}

func TestExtractPerformanceSingleRotor(t *testing.T) {
	path := writeTemp(t, "perf.out", singleRotorLog)

	got, err := ExtractPerformance(path, 1)
	require.NoError(t, err)
	for _, key := range []string{types.PerfTotalThrust, types.PerfTotalYaw, types.PerfPowerCoef, types.PerfRotorEff} {
		assert.Contains(t, got, key)
	}
	assert.InDelta(t, 120.456789, got[types.PerfTotalThrust], 1e-9)
	assert.InDelta(t, -3.21, got[types.PerfTotalYaw], 1e-9)
	assert.InDelta(t, 0.000412, got[types.PerfPowerCoef], 1e-12)
	assert.InDelta(t, 71.2, got[types.PerfRotorEff], 1e-9)
}

func TestExtractPerformanceSecondRotorMissing(t *testing.T) {
	path := writeTemp(t, "perf.out", singleRotorLog)

	_, err := ExtractPerformance(path, 2)
	require.ErrorIs(t, err, types.ErrRotorSectionMissing)
	assert.ErrorIs(t, err, types.ErrParse)
	assert.NotErrorIs(t, err, types.ErrMarkerNotFound)

	_, err = ExtractRotors(path, 2)
	assert.ErrorIs(t, err, types.ErrRotorSectionMissing)
}

func TestExtractRotorsDual(t *testing.T) {
	path := writeTemp(t, "perf.out", dualRotorLog)

	got, err := ExtractRotors(path, 2)
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.InDelta(t, 100.0, got["TotalThrust"], 1e-9)
	assert.InDelta(t, 98.5, got["TotalThrust2"], 1e-9)
	assert.InDelta(t, 69.5, got["RotorEff2"], 1e-9)

	rep, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rep.Rotors(SectionRotorLoads))
}

func TestExtractPerformanceErrors(t *testing.T) {
	tests := []struct {
		name    string
		log     string
		wantErr error
	}{
		{
			name:    "no loads section",
			log:     " CHARM PERFORMANCE REPORT\n RUN COMPLETE\n",
			wantErr: types.ErrMarkerNotFound,
		},
		{
			name:    "missing field",
			log:     strings.Replace(singleRotorLog, "   ROTOR EFFICIENCY  =      71.20 %\n", "", 1),
			wantErr: types.ErrMarkerNotFound,
		},
		{
			name:    "unterminated section",
			log:     strings.Replace(singleRotorLog, " END ROTOR   1 LOADS\n", "", 1),
			wantErr: types.ErrMarkerNotFound,
		},
		{
			name:    "malformed value",
			log:     strings.Replace(singleRotorLog, "120.456789 LB", "1.2.3 LB", 1),
			wantErr: types.ErrMalformedNumber,
		},
		{
			name:    "unexpected unit",
			log:     strings.Replace(singleRotorLog, "-3.2100 FT-LB", "-3.2100 N-M", 1),
			wantErr: types.ErrMalformedNumber,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractPerformance(writeTemp(t, "perf.out", tt.log), 1)
			require.ErrorIs(t, err, types.ErrParse)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := ExtractPerformance(filepath.Join(t.TempDir(), "absent.out"), 1)
		assert.ErrorIs(t, err, types.ErrFileMissing)
	})
}

func TestScanReportLastSectionWins(t *testing.T) {
	log := singleRotorLog + strings.Replace(singleRotorLog, "120.456789", "130.0", 1)
	rep, err := ScanReport(strings.NewReader(log), "perf.out", DefaultGrammar)
	require.NoError(t, err)

	got, err := rep.Section(SectionRotorLoads, 1)
	require.NoError(t, err)
	assert.InDelta(t, 130.0, got[types.PerfTotalThrust], 1e-9)
}

func TestScanReportCustomSection(t *testing.T) {
	hover := SectionGrammar{
		Name:  "hover",
		Begin: regexp.MustCompile(`^\s*HOVER SUMMARY\s*$`),
		End:   regexp.MustCompile(`^\s*END HOVER SUMMARY\s*$`),
		Fields: []FieldRule{
			{Label: "FIGURE OF MERIT", Key: "FigureOfMerit"},
		},
	}
	g := Grammar{Sections: []SectionGrammar{RotorLoads, hover}}
	log := singleRotorLog + " HOVER SUMMARY\n   FIGURE OF MERIT = 0.68\n END HOVER SUMMARY\n"

	rep, err := ScanReport(strings.NewReader(log), "perf.out", g)
	require.NoError(t, err)

	got, err := rep.Section("hover", 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.68, got["FigureOfMerit"], 1e-9)

	loads, err := rep.Section(SectionRotorLoads, 1)
	require.NoError(t, err)
	assert.Len(t, loads, 4)
}
