// Package netlist parses the line-oriented, case-insensitive OpenETran
// input format (§6) into an intermediate representation that pkg/engine
// expands into poles, spans, and device instances. Parsing is kept
// separate from circuit construction, unlike the original's interleaved
// read_*/add_* calls, since nothing about node/pole wiring is needed to
// validate the token stream itself.
package netlist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/epri-oss/openetran-go/internal/oeerr"
)

// Mode selects how the header line describes the timing and pole count.
type Mode int

const (
	ModeUniform Mode = iota // "N P span_len left_z right_z dT Tmax"
	ModeTime                // "time N dT Tmax"
	Mode2DT                 // "2dt N P span_len left_z right_z dT Tmax dT_switch"
)

// Header carries the first logical line's fields; unused fields for a
// given Mode are left at zero. LeftZ/RightZ request a matched
// surge-impedance termination (the span's own Yp) at that end of the
// pole chain, matching the original's int left_end_z/right_end_z flags.
type Header struct {
	Mode               Mode
	N, P               int
	SpanLen            float64
	LeftZ, RightZ      bool
	DT, TMax, DTSwitch float64
}

// ConductorSpec is one `conductor k height x radius v0` line.
type ConductorSpec struct {
	Index                 int
	Height, X, Radius, V0 float64
}

// CableSpec is one `cable k Zs vProp vpf` line.
type CableSpec struct {
	Index              int
	ZSurge, VProp, VPF float64
}

// SpanBlock is one `span ID ... end` section; Conductors and Cables are
// mutually exclusive per the mixed-lines error.
type SpanBlock struct {
	ID         string
	Conductors []ConductorSpec
	Cables     []CableSpec
}

// LineSpec is one network-mode `line from to span_id length term_left
// term_right` record.
type LineSpec struct {
	From, To            int
	SpanID              string
	Length              float64
	TermLeft, TermRight float64
}

// DeviceBlock is one device-kind record: its numeric parameters in
// declaration order, whether the leading parameter's sign requested an
// automatic ammeter (the original's "negative means monitor" idiom),
// the pair list, and the pole selector.
type DeviceBlock struct {
	Kind       string
	Params     []float64
	Monitor    bool
	MonitorInt int // meter's explicit mtype selector, when Kind == "meter"
	Pairs      [][2]int
	PoleSpec   string // "all", "odd", "even", or "" if PoleList is explicit
	PoleList   []int
}

// LabelSpec is a `labelpole`/`labelphase` record.
type LabelSpec struct {
	Index int
	Text  string
}

// Netlist is the fully parsed, unexpanded input file.
type Netlist struct {
	Header      Header
	Spans       map[string]*SpanBlock
	Lines       []LineSpec
	Devices     []DeviceBlock
	PoleLabels  []LabelSpec
	PhaseLabels []LabelSpec
}

// lexer flattens the input into a single token stream, dropping blank
// lines and '*'-prefixed comment lines, mirroring the original parser's
// token-at-a-time reads regardless of line breaks.
type lexer struct {
	tokens []string
	pos    int
}

func newLexer(r io.Reader) (*lexer, error) {
	lx := &lexer{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		lx.tokens = append(lx.tokens, strings.Fields(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lx, nil
}

func (lx *lexer) done() bool { return lx.pos >= len(lx.tokens) }

func (lx *lexer) peek() (string, bool) {
	if lx.done() {
		return "", false
	}
	return lx.tokens[lx.pos], true
}

func (lx *lexer) next() (string, bool) {
	tok, ok := lx.peek()
	if ok {
		lx.pos++
	}
	return tok, ok
}

func (lx *lexer) nextDouble() (float64, error) {
	tok, ok := lx.next()
	if !ok {
		return 0, oeerr.New(oeerr.ErrNoBuffer, "unexpected end of input, expected a number")
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, oeerr.Wrap(oeerr.ErrParsePhases, err, "cannot parse %q as a number", tok)
	}
	return v, nil
}

func (lx *lexer) nextInt() (int, error) {
	tok, ok := lx.next()
	if !ok {
		return 0, oeerr.New(oeerr.ErrNoBuffer, "unexpected end of input, expected an integer")
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, oeerr.Wrap(oeerr.ErrBadPoleCount, err, "cannot parse %q as an integer", tok)
	}
	return v, nil
}

// Parse reads a complete netlist from r.
func Parse(r io.Reader) (*Netlist, error) {
	lx, err := newLexer(r)
	if err != nil {
		return nil, err
	}

	nl := &Netlist{Spans: make(map[string]*SpanBlock)}

	tok, ok := lx.peek()
	if !ok {
		return nil, oeerr.New(oeerr.ErrNoBuffer, "empty input file")
	}
	switch strings.ToLower(tok) {
	case "time":
		lx.next()
		nl.Header.Mode = ModeTime
		if nl.Header.N, err = lx.nextInt(); err != nil {
			return nil, err
		}
		if nl.Header.DT, err = lx.nextDouble(); err != nil {
			return nil, err
		}
		if nl.Header.TMax, err = lx.nextDouble(); err != nil {
			return nil, err
		}
	case "2dt":
		lx.next()
		nl.Header.Mode = Mode2DT
		if err := parseUniformHeader(lx, &nl.Header); err != nil {
			return nil, err
		}
		if nl.Header.DTSwitch, err = lx.nextDouble(); err != nil {
			return nil, err
		}
	default:
		nl.Header.Mode = ModeUniform
		if err := parseUniformHeader(lx, &nl.Header); err != nil {
			return nil, err
		}
	}

	for !lx.done() {
		tok, _ := lx.peek()
		switch strings.ToLower(tok) {
		case "span":
			lx.next()
			sb, err := parseSpan(lx)
			if err != nil {
				return nil, err
			}
			nl.Spans[sb.ID] = sb
		case "line":
			lx.next()
			ls, err := parseLine(lx)
			if err != nil {
				return nil, err
			}
			nl.Lines = append(nl.Lines, ls)
		case "labelpole":
			lx.next()
			idx, err := lx.nextInt()
			if err != nil {
				return nil, err
			}
			text, _ := lx.next()
			nl.PoleLabels = append(nl.PoleLabels, LabelSpec{Index: idx, Text: text})
		case "labelphase":
			lx.next()
			idx, err := lx.nextInt()
			if err != nil {
				return nil, err
			}
			text, _ := lx.next()
			nl.PhaseLabels = append(nl.PhaseLabels, LabelSpec{Index: idx, Text: text})
		default:
			db, err := parseDevice(lx, tok)
			if err != nil {
				return nil, err
			}
			nl.Devices = append(nl.Devices, db)
		}
	}

	return nl, nil
}

func parseUniformHeader(lx *lexer, h *Header) error {
	var err error
	if h.N, err = lx.nextInt(); err != nil {
		return err
	}
	if h.P, err = lx.nextInt(); err != nil {
		return err
	}
	if h.SpanLen, err = lx.nextDouble(); err != nil {
		return err
	}
	lz, err := lx.nextInt()
	if err != nil {
		return err
	}
	h.LeftZ = lz != 0
	rz, err := lx.nextInt()
	if err != nil {
		return err
	}
	h.RightZ = rz != 0
	if h.DT, err = lx.nextDouble(); err != nil {
		return err
	}
	if h.TMax, err = lx.nextDouble(); err != nil {
		return err
	}
	return nil
}

func parseSpan(lx *lexer) (*SpanBlock, error) {
	id, ok := lx.next()
	if !ok {
		return nil, oeerr.New(oeerr.ErrNoBuffer, "span missing an identifier")
	}
	sb := &SpanBlock{ID: id}
	for {
		tok, ok := lx.peek()
		if !ok {
			return nil, oeerr.New(oeerr.ErrMissingConductor, "span %q missing \"end\"", id)
		}
		switch strings.ToLower(tok) {
		case "end":
			lx.next()
			if len(sb.Conductors) > 0 && len(sb.Cables) > 0 {
				return nil, oeerr.New(oeerr.ErrMixedLines, "span %q mixes conductor and cable definitions", id)
			}
			if len(sb.Conductors) == 0 && len(sb.Cables) == 0 {
				return nil, oeerr.New(oeerr.ErrMissingConductor, "span %q has no conductors", id)
			}
			return sb, nil
		case "conductor":
			lx.next()
			var c ConductorSpec
			var err error
			if c.Index, err = lx.nextInt(); err != nil {
				return nil, err
			}
			if c.Height, err = lx.nextDouble(); err != nil {
				return nil, err
			}
			if c.X, err = lx.nextDouble(); err != nil {
				return nil, err
			}
			if c.Radius, err = lx.nextDouble(); err != nil {
				return nil, err
			}
			if c.V0, err = lx.nextDouble(); err != nil {
				return nil, err
			}
			if c.Radius <= 0 {
				return nil, oeerr.New(oeerr.ErrRadius, "conductor %d in span %q: bad radius %g", c.Index, id, c.Radius)
			}
			if c.Height <= 0 {
				return nil, oeerr.New(oeerr.ErrHeight, "conductor %d in span %q: bad height %g", c.Index, id, c.Height)
			}
			sb.Conductors = append(sb.Conductors, c)
		case "cable":
			lx.next()
			var c CableSpec
			var err error
			if c.Index, err = lx.nextInt(); err != nil {
				return nil, err
			}
			if c.ZSurge, err = lx.nextDouble(); err != nil {
				return nil, err
			}
			if c.VProp, err = lx.nextDouble(); err != nil {
				return nil, err
			}
			if c.VPF, err = lx.nextDouble(); err != nil {
				return nil, err
			}
			sb.Cables = append(sb.Cables, c)
		default:
			return nil, oeerr.New(oeerr.ErrConductorN, "unexpected token %q inside span %q", tok, id)
		}
	}
}

func parseLine(lx *lexer) (LineSpec, error) {
	var ls LineSpec
	var err error
	if ls.From, err = lx.nextInt(); err != nil {
		return ls, err
	}
	if ls.To, err = lx.nextInt(); err != nil {
		return ls, err
	}
	spanID, ok := lx.next()
	if !ok {
		return ls, oeerr.New(oeerr.ErrNoBuffer, "line record missing span id")
	}
	ls.SpanID = spanID
	if ls.Length, err = lx.nextDouble(); err != nil {
		return ls, err
	}
	if ls.TermLeft, err = lx.nextDouble(); err != nil {
		return ls, err
	}
	if ls.TermRight, err = lx.nextDouble(); err != nil {
		return ls, err
	}
	return ls, nil
}

// deviceParamCount is the number of leading numeric parameters for each
// device kind, grounded on each original read_<kind> function; the
// leading parameter's sign requests an automatic ammeter for the kinds
// marked in signedMonitor.
var deviceParamCount = map[string]int{
	"ground":      5, // R60 rho e0 L length
	"resistor":    1, // ohms
	"inductor":    2, // r l
	"capacitor":   1, // farads
	"transformer": 2, // r l
	"customer":    16, // N Lp Ls1 Ls2 Ra Rn Dan Daa dropLen rHG rho e0 lHG dHG lcm length
	"insulator":   4,  // cfo vb beta de
	"arrester":    4,  // vKnee vGap rSlope l
	"arrbez":      6,  // v10 vGap uRef l length monitor
	"newarr":      6,
	"lpm":         3, // cfo e0 k
	"pipegap":     2, // vknee r
	"surge":       4, // peak tf tt tstart
	"steepfront":  5, // peak tf tt tstart si
	"meter":       1, // mtype
}

var signedMonitor = map[string]bool{
	"ground":   true,
	"arrester": true,
	"arrbez":   true,
	"newarr":   true,
	"pipegap":  true,
}

func parseDevice(lx *lexer, kind string) (DeviceBlock, error) {
	lx.next()
	lowerKind := strings.ToLower(kind)
	n, known := deviceParamCount[lowerKind]
	if !known {
		return DeviceBlock{}, oeerr.New(oeerr.ErrUnmatchedPairs, "unrecognized device or section keyword %q", kind)
	}
	db := DeviceBlock{Kind: lowerKind, Params: make([]float64, 0, n)}

	for i := 0; i < n; i++ {
		if lowerKind == "meter" {
			v, err := lx.nextInt()
			if err != nil {
				return db, err
			}
			db.MonitorInt = v
			continue
		}
		v, err := lx.nextDouble()
		if err != nil {
			return db, err
		}
		if i == 0 && signedMonitor[lowerKind] && v < 0 {
			v = -v
			db.Monitor = true
		}
		if (lowerKind == "newarr" || lowerKind == "arrbez") && i == n-1 {
			db.Monitor = v != 0
			continue
		}
		db.Params = append(db.Params, v)
	}

	return parsePairsAndPoles(lx, db)
}

func parsePairsAndPoles(lx *lexer, db DeviceBlock) (DeviceBlock, error) {
	tok, ok := lx.next()
	if !ok || strings.ToLower(tok) != "pairs" {
		return db, oeerr.New(oeerr.ErrUnmatchedPairs, "device %q missing \"pairs\" section", db.Kind)
	}
	for {
		tok, ok := lx.peek()
		if !ok {
			return db, oeerr.New(oeerr.ErrUnmatchedPairs, "device %q missing \"poles\" section", db.Kind)
		}
		if strings.ToLower(tok) == "poles" {
			break
		}
		j, err := lx.nextInt()
		if err != nil {
			return db, oeerr.Wrap(oeerr.ErrBadPair, err, "device %q: bad pair", db.Kind)
		}
		k, err := lx.nextInt()
		if err != nil {
			return db, oeerr.Wrap(oeerr.ErrBadPair, err, "device %q: bad pair", db.Kind)
		}
		db.Pairs = append(db.Pairs, [2]int{j, k})
	}
	lx.next() // consume "poles"

	tok, ok = lx.peek()
	if !ok {
		return db, oeerr.New(oeerr.ErrBadPole, "device %q missing pole list", db.Kind)
	}
	switch strings.ToLower(tok) {
	case "all", "odd", "even":
		lx.next()
		db.PoleSpec = strings.ToLower(tok)
	default:
		for {
			tok, ok := lx.peek()
			if !ok {
				break
			}
			if _, err := strconv.Atoi(tok); err != nil {
				break
			}
			v, _ := lx.nextInt()
			db.PoleList = append(db.PoleList, v)
		}
		if len(db.PoleList) == 0 {
			return db, oeerr.New(oeerr.ErrBadPole, "device %q has an empty pole list", db.Kind)
		}
	}
	return db, nil
}

// ExpandPoles resolves a device block's pole selector against the
// header's pole count into the explicit ordered list of pole numbers
// (1-based, matching the original's pole indexing).
func (db DeviceBlock) ExpandPoles(n int) []int {
	if db.PoleSpec == "" {
		return db.PoleList
	}
	var poles []int
	for i := 1; i <= n; i++ {
		switch db.PoleSpec {
		case "all":
			poles = append(poles, i)
		case "odd":
			if i%2 == 1 {
				poles = append(poles, i)
			}
		case "even":
			if i%2 == 0 {
				poles = append(poles, i)
			}
		}
	}
	return poles
}

// String reports a human-readable summary, useful in error messages and
// logs that name the offending device block.
func (db DeviceBlock) String() string {
	return fmt.Sprintf("%s(params=%v pairs=%v poles=%s%v)", db.Kind, db.Params, db.Pairs, db.PoleSpec, db.PoleList)
}
