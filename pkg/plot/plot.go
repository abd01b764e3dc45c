// Package plot writes per-step meter samples to CSV, tab-delimited, or
// the original's packed binary ELT format (§6).
package plot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/epri-oss/openetran-go/internal/oeerr"
	"github.com/epri-oss/openetran-go/pkg/device"
)

// MeterName derives the §6 column/slot name for a meter: P{pole}:{from}-{to}
// for a voltmeter, P{pole}:{from}-{tag} for an ammeter.
func MeterName(m *device.Meter) string {
	switch m.Kind {
	case device.MeterVolt:
		return fmt.Sprintf("P%d:%d-%d", m.Pole, m.From, m.To)
	case device.MeterArresterAmps:
		return fmt.Sprintf("P%d:%d-IARR", m.Pole, m.From)
	case device.MeterGroundAmps:
		return fmt.Sprintf("P%d:%d-IPG", m.Pole, m.From)
	case device.MeterHouseGroundAmps:
		return fmt.Sprintf("P%d:%d-IHG", m.Pole, m.From)
	case device.MeterX2Amps:
		return fmt.Sprintf("P%d:%d-IX2", m.Pole, m.From)
	case device.MeterPipeGapAmps:
		return fmt.Sprintf("P%d:%d-IPIPE", m.Pole, m.From)
	default:
		return fmt.Sprintf("P%d:%d-?", m.Pole, m.From)
	}
}

// Writer accepts one sample row per accepted simulation step.
type Writer interface {
	WriteStep(t float64, values []float64) error
	Close() error
}

// delimWriter backs both the CSV and TAB formats, which differ only in
// their field separator.
type delimWriter struct {
	w   *bufio.Writer
	f   *os.File
	sep string
}

func newDelimWriter(path string, sep string, meters []*device.Meter) (*delimWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, oeerr.Wrap(oeerr.ErrNoBuffer, err, "creating plot file %q", path)
	}
	dw := &delimWriter{w: bufio.NewWriter(f), f: f, sep: sep}

	names := make([]string, 0, len(meters)+1)
	names = append(names, "Time")
	for _, m := range meters {
		names = append(names, MeterName(m))
	}
	if _, err := io.WriteString(dw.w, strings.Join(names, sep)+"\n"); err != nil {
		f.Close()
		return nil, oeerr.Wrap(oeerr.ErrNoBuffer, err, "writing plot header %q", path)
	}
	return dw, nil
}

// NewCSV opens a comma-delimited plot file with a header row naming meters.
func NewCSV(path string, meters []*device.Meter) (Writer, error) {
	return newDelimWriter(path, ",", meters)
}

// NewTab opens a tab-delimited plot file with a header row naming meters.
func NewTab(path string, meters []*device.Meter) (Writer, error) {
	return newDelimWriter(path, "\t", meters)
}

func (dw *delimWriter) WriteStep(t float64, values []float64) error {
	fields := make([]string, 0, len(values)+1)
	fields = append(fields, fmt.Sprintf("%g", t))
	for _, v := range values {
		fields = append(fields, fmt.Sprintf("%g", v))
	}
	_, err := io.WriteString(dw.w, strings.Join(fields, dw.sep)+"\n")
	return err
}

func (dw *delimWriter) Close() error {
	if err := dw.w.Flush(); err != nil {
		dw.f.Close()
		return err
	}
	return dw.f.Close()
}

const (
	eltSignature  = "OpenETran 1.00"
	eltVerMajor   = 2
	eltVerMinor   = 0
	eltFreqBase   = 376.999
	eltVBase      = 1.0
	eltNameWidth  = 9
	eltTitleWidth = 80
	eltMaxTitles  = 5
	eltHeaderSize = 496 // #pragma pack(2) layout below, fixed regardless of meter count
)

// eltHeader mirrors WritePlotFile.c's packed OutputFileHeader exactly
// (field order and widths), so the header is binary-compatible with the
// original reader even though this package writes it with encoding/binary
// rather than a packed C struct.
type eltHeader struct {
	Size             uint16
	Signature        [16]byte
	VerMajor         uint16
	VerMinor         uint16
	FBase            float64
	VBase            float64
	TStart, TFinish  int32
	DTStart          float64
	DTFinish         float64
	DDeltaT          float64
	NStep            uint16
	NVoltage         uint16
	NCurrent         uint16
	SizeVoltageName  uint16
	SizeCurrentName  uint16
	IdxVoltageNames  int32
	IdxCurrentNames  int32
	IdxBaseData      int32
	IdxData          int32
	Title1, Title2   [80]byte
	Title3, Title4   [80]byte
	Title5           [80]byte
}

// eltWriter implements the original's packed binary format: the fixed
// header above, voltage-then-current name slots, up to five title
// lines, then one t+values record per step. The header is rewritten at
// Close with NStep set to the record count, matching the original's
// FinalizeSTOHeader rewind; TFinish and DTFinish keep their values from
// NewELT.
type eltWriter struct {
	f        *os.File
	w        *bufio.Writer
	header   eltHeader
	steps    int
}

// NewELT opens a binary ELT plot file and writes its header. Voltage
// meters must precede current meters in voltMeters/currentMeters per
// §6's "voltage-then-current order".
func NewELT(path string, dTStart, dTFinish, dDeltaT float64, voltMeters, currentMeters []*device.Meter, titles []string) (Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, oeerr.Wrap(oeerr.ErrNoBuffer, err, "creating plot file %q", path)
	}
	ew := &eltWriter{f: f, w: bufio.NewWriter(f)}

	h := &ew.header
	h.Size = eltHeaderSize
	copy(h.Signature[:], eltSignature)
	h.VerMajor, h.VerMinor = eltVerMajor, eltVerMinor
	h.FBase, h.VBase = eltFreqBase, eltVBase
	h.DTStart, h.DTFinish, h.DDeltaT = dTStart, dTFinish, dDeltaT
	h.NVoltage, h.NCurrent = uint16(len(voltMeters)), uint16(len(currentMeters))
	h.SizeVoltageName, h.SizeCurrentName = eltNameWidth, eltNameWidth
	h.IdxVoltageNames = eltHeaderSize
	h.IdxCurrentNames = h.IdxVoltageNames + eltNameWidth*int32(h.NVoltage)
	h.IdxData = h.IdxCurrentNames + eltNameWidth*int32(h.NCurrent) + eltTitleWidth*eltMaxTitles
	if len(titles) > 0 {
		copy(h.Title1[:], titles[0])
	}
	if len(titles) > 1 {
		copy(h.Title2[:], titles[1])
	}
	if len(titles) > 2 {
		copy(h.Title3[:], titles[2])
	}
	if len(titles) > 3 {
		copy(h.Title4[:], titles[3])
	}
	if len(titles) > 4 {
		copy(h.Title5[:], titles[4])
	}

	if err := binary.Write(ew.f, binary.LittleEndian, &ew.header); err != nil {
		f.Close()
		return nil, oeerr.Wrap(oeerr.ErrNoBuffer, err, "writing ELT header %q", path)
	}
	for _, m := range voltMeters {
		if _, err := ew.f.Write(fixedBytes(MeterName(m), eltNameWidth)); err != nil {
			f.Close()
			return nil, err
		}
	}
	for _, m := range currentMeters {
		if _, err := ew.f.Write(fixedBytes(MeterName(m), eltNameWidth)); err != nil {
			f.Close()
			return nil, err
		}
	}
	for _, title := range [][eltTitleWidth]byte{h.Title1, h.Title2, h.Title3, h.Title4, h.Title5} {
		if _, err := ew.f.Write(title[:]); err != nil {
			f.Close()
			return nil, err
		}
	}
	return ew, nil
}

func fixedBytes(s string, width int) []byte {
	b := make([]byte, width)
	copy(b, s)
	return b
}

func (ew *eltWriter) WriteStep(t float64, values []float64) error {
	if err := binary.Write(ew.w, binary.LittleEndian, t); err != nil {
		return err
	}
	for _, v := range values {
		if err := binary.Write(ew.w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	ew.steps++
	return nil
}

// Close flushes remaining records and rewrites the header with NStep, matching
// the original's end-of-run header patch (needed when a flashover halts
// the run before Tmax).
func (ew *eltWriter) Close() error {
	if err := ew.w.Flush(); err != nil {
		ew.f.Close()
		return err
	}
	if ew.steps > 0xffff {
		ew.header.NStep = 0xffff
	} else {
		ew.header.NStep = uint16(ew.steps)
	}
	if _, err := ew.f.Seek(0, io.SeekStart); err != nil {
		ew.f.Close()
		return err
	}
	if err := binary.Write(ew.f, binary.LittleEndian, &ew.header); err != nil {
		ew.f.Close()
		return err
	}
	return ew.f.Close()
}
