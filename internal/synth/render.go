// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// The solver reads these files with a fixed-format column parser: angles
// must carry exactly two decimals and positional offsets exactly one.

func formatAngle(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOffset(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

const geometryHeader = `# Generated BG File
KBGEOM
    0
NSEG
    10
CUTOUT
    0.0680
SL(ISEG)
    .0417  .0417  .0417  .0417  .0417   .0417   .0833 .5000  .0313  .0104
CHORD(ISEG)
    .1200  .1172  .1145  .1354  .1458   .1563   .1771  .1667 .0833  .0729   .0213
ELOFSG(ISEG) - (elastic axis offset)
    11*0.0
SWEEPD(ISEG)
    5.0  -10.0  -10.0  -10.0  -20.0  -10.0  -5.0  2.0  0.0  0.0
`

const geometryTrailer = `THIKND(ISEG)
    11*0.1200
KFLAP(ISEG)
    11*0
FLAPND(ISEG)
    11*0.0
FLHNGE(ISEG)
    11*0.0
FLDEFL(ISEG)
    11*0.0
NCAM
    0
NCHORD  NSPAN  ICOS
    1      -72    0
`

func renderGeometry(dv types.DesignVector) string {
	twists := dv.SegmentTwists()
	fields := make([]string, len(twists))
	for i, t := range twists {
		fields[i] = formatAngle(t)
	}

	var b strings.Builder
	b.WriteString(geometryHeader)
	b.WriteString("TWRD (Blade root twist at zero collective in degrees)\n")
	fmt.Fprintf(&b, "    %s\n", formatAngle(dv[types.VarTwist]))
	b.WriteString("TWSTGD(ISEG)\n")
	fmt.Fprintf(&b, "    %s\n", strings.Join(fields, "  "))
	b.WriteString("ANHD(ISEG)\n")
	fmt.Fprintf(&b, "    11*%s\n", formatAngle(dv[types.VarAnhedral]))
	b.WriteString(geometryTrailer)
	return b.String()
}

const rotorWakeTrailer = `ICOLL   COLL     CT
    0      0     .004
ITRIM    A1W    B1W    A1S    B1S
    0      0.0    0.0    0.0    0.0
NOWAKE   ICNVCT   NWAKES   NPWAKE   IFAR   MBCVE
    0        2        1       10       0      0
KSCHEME  KPC
    0      0
NCUT   AOVLAP   ISKEW   IUNS
    1       -1       1      1
NZONE   (NVORT(I), I=1,NZONE)
    3       30  30  2
(NPTFW(I), I=1,NZONE)
    48  48  96
(CORLIM(NV,IZONE,1), NV=1,NVORT(IZONE) IZONE=1 (Min core radii)
    15*0.5  15*0.01
(CORLIM(NV,IZONE,2), NV=1,NVORT(IZONE) IZONE=1 (Max core radii)
    1.0
(CORLIM(NV,IZONE,1), NV=1,NVORT(IZONE) IZONE=2 (Min core radii)
    0.01
(CORLIM(NV,IZONE,2), NV=1,NVORT(IZONE) IZONE=2 (Max core radii)
    1.0
(CORLIM(NV,IZONE,1), NV=1,NVORT(IZONE) IZONE=3 (Min core radii)
    0.5  0.1
(CORLIM(NV,IZONE,2), NV=1,NVORT(IZONE) IZONE=3 (Max core radii)
    0.5  0.1
(CUTLIM(NV,IZONE,1), NV=1,NVORT(IZONE) IZONE=1 (Min cutoff distances)
    15*0.5  15*0.01
(CUTLIM(NV,IZONE,2), NV=1,NVORT(IZONE)  IZONE=1 (Max cutoff distances)
    1.0
(CUTLIM(NV,IZONE,1), NV=1,NVORT (IZONE) IZONE=2 (Min cutoff distances)
    0.01
(CUTLIM(NV,IZONE,2), NV=1,NVORT(IZONE) IZONE=2 (Max cutoff distances)
    1.0
(CUTLIM(NV, IZONE,1), NV=1,NVORT(IZONE) IZONE=3 (Min cutoff distances)
    0.5  0.1
(CUTLIM(NV,IZONE,2), NV=1,NVORT(IZONE) IZONE=3 (Max cutoff distances)
    0.5  0.1
IDYNM
    1
SRAD   SHGHT
    0.0    0.0
NHHI (Higher harmonic cyclic pitch input flag)
    0
`

// rotorTilt is the fixed rotor shaft tilt in degrees.
const rotorTilt = 30.0

func renderRotorWake(dv types.DesignVector, topo types.Topology, omega float64) string {
	// A single rotor has no partner to be offset from.
	offset := 0.0
	if topo.Rotors == 2 {
		offset = dv[types.VarZDistance]
	}

	var b strings.Builder
	b.WriteString("# Generated RW File \n")
	b.WriteString("NBLADE  OMEGA\n")
	fmt.Fprintf(&b, "    %d      %s\n", topo.BladesPerRotor(), strconv.FormatFloat(omega, 'f', -1, 64))
	b.WriteString("IROTAT      XROTOR           X,Y,Z tilt     ITILT\n")
	fmt.Fprintf(&b, "    1     0.0   0.0  %s    0.0  0.0  %s      1\n", formatOffset(offset), formatOffset(rotorTilt))
	b.WriteString(rotorWakeTrailer)
	return b.String()
}

const descriptorTrailer = `SSPD     RHO
    1116.    0.002378
SFRAME
    1
U   V   W      P   Q   R
    0.0 0.0 0.0    0.0 0.0 0.0
NPSI    NREV    CONVG1    CONVG2   CONVG3   MREV
    24      3     -1.0     -1.0      -1.0      0
IRST  IFREE  IGPR
    0      0      0
IOUT   NRS   (ROUT(I),I=1,NRS)
    4     10  0.2  0.3  0.4  0.5  0.6  0.7  0.8  0.9  0.95  0.99
NPRINT   IBLPLT   (IFILPLT(I),I=1,4)
    0        0        3  3  3  3
KOPT
    0
ISCAN (Scan plane flag)
    1
ISTRSS (Stress calculation flag)
    0
IFV    IQUIK1
    0       1
ISURF
    0
ISHIP
    0
IRECON   NOISE
    0        4
ACOUSTICS_CODE
    1
NLS
    0
`

func renderRunDescriptor(cfg types.SynthesisConfig, topo types.Topology, files InputSet) string {
	geometry := filepath.Base(files.Geometry)
	wake := filepath.Base(files.RotorWake)

	// Rotor blocks in solver order. Two rotors share the geometry; the first
	// keeps the static base wake file and the second gets the generated one.
	wakes := []string{wake}
	if topo.Rotors == 2 {
		wakes = []string{cfg.BaseRotorWakeFile, wake}
	}

	var b strings.Builder
	b.WriteString("# Generated Name File\n")
	b.WriteString("KSIM\n    0\n")
	fmt.Fprintf(&b, "NROTOR\n    %d\n", topo.Rotors)
	fmt.Fprintf(&b, "PATHNAME\n    %s\n", cfg.PathName)
	for i, w := range wakes {
		fmt.Fprintf(&b, "INPUT FILENAMES Rotor %d\n", i+1)
		fmt.Fprintf(&b, "    %s\n", w)
		fmt.Fprintf(&b, "    %s\n", geometry)
		fmt.Fprintf(&b, "    %s\n", cfg.BladeDynamicsFile)
		fmt.Fprintf(&b, "    %s\n", cfg.AirfoilFile)
		b.WriteString("    None\n")
	}
	b.WriteString(descriptorTrailer)
	return b.String()
}
