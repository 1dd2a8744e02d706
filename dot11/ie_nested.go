package dot11

import "encoding/binary"

// A Subelement is one TLV nested inside an element's payload. Subelement
// payloads are kept as received.
type Subelement struct {
	ID   uint8
	Data []byte
}

// parseSubelements walks a nested TLV list, checking every declared length
// against the remaining bytes before slicing.
func parseSubelements(b []byte) ([]Subelement, error) {
	var out []Subelement
	for i := 0; i < len(b); {
		if len(b)-i < 2 {
			return nil, malformed("subelement: truncated header at %d", i)
		}
		id, l := b[i], int(b[i+1])
		i += 2
		if l > len(b)-i {
			return nil, malformed("subelement %d: length %d overruns %d", id, l, len(b)-i)
		}
		out = append(out, Subelement{ID: id, Data: clone(b[i : i+l])})
		i += l
	}
	return out, nil
}

func appendSubelements(b []byte, ss []Subelement) ([]byte, error) {
	for _, s := range ss {
		if len(s.Data) > 255 {
			return nil, malformed("subelement %d: length %d", s.ID, len(s.Data))
		}
		b = append(b, s.ID, byte(len(s.Data)))
		b = append(b, s.Data...)
	}
	return b, nil
}

// Fast BSS Transition subelement IDs.
const (
	FTSubelementR1KHID uint8 = 1
	FTSubelementGTK    uint8 = 2
	FTSubelementR0KHID uint8 = 3
	FTSubelementIGTK   uint8 = 4
)

// FastTransition is the Fast BSS Transition element (802.11r).
type FastTransition struct {
	RSNXEUsed    bool
	ElementCount uint8
	MIC          [16]byte
	ANonce       [32]byte
	SNonce       [32]byte
	Subelements  []Subelement
}

const ftFixedLen = 2 + 16 + 32 + 32

func (f *FastTransition) unmarshal(b []byte) error {
	if len(b) < ftFixedLen {
		return malformed("fast transition: length %d", len(b))
	}
	w, err := readWord(micControlLayout, b[0:2])
	if err != nil {
		return err
	}
	f.RSNXEUsed = w.isSet("rsnxe_used")
	f.ElementCount = uint8(w.get("element_count"))
	copy(f.MIC[:], b[2:18])
	copy(f.ANonce[:], b[18:50])
	copy(f.SNonce[:], b[50:82])

	f.Subelements, err = parseSubelements(b[ftFixedLen:])
	return err
}

func (f *FastTransition) marshal() ([]byte, error) {
	b, err := newWord(micControlLayout).
		flag("rsnxe_used", f.RSNXEUsed).
		set("element_count", uint32(f.ElementCount)).
		append(make([]byte, 0, ftFixedLen))
	if err != nil {
		return nil, err
	}
	b = append(b, f.MIC[:]...)
	b = append(b, f.ANonce[:]...)
	b = append(b, f.SNonce[:]...)
	return appendSubelements(b, f.Subelements)
}

// MultipleBSSID advertises nontransmitted BSSIDs. Each Nontransmitted BSSID
// Profile subelement (ID 0) itself holds an element list.
type MultipleBSSID struct {
	MaxIndicator uint8
	Subelements  []Subelement
}

func (m *MultipleBSSID) unmarshal(b []byte) error {
	if len(b) < 1 {
		return malformed("multiple BSSID: empty")
	}
	m.MaxIndicator = b[0]

	var err error
	m.Subelements, err = parseSubelements(b[1:])
	return err
}

func (m *MultipleBSSID) marshal() ([]byte, error) {
	return appendSubelements([]byte{m.MaxIndicator}, m.Subelements)
}

// BSSIDInfo is the BSSID Information field of a Neighbor Report.
type BSSIDInfo struct {
	Reachability       uint8
	Security           bool
	KeyScope           bool
	SpectrumManagement bool
	QoS                bool
	APSD               bool
	RadioMeasurement   bool
	DelayedBlockAck    bool
	ImmediateBlockAck  bool
	MobilityDomain     bool
	HighThroughput     bool
	VeryHighThroughput bool
	FTM                bool
	HighEfficiency     bool
	ERBSS              bool
}

// NeighborReport describes one neighboring BSS.
type NeighborReport struct {
	BSSID          [6]byte
	Info           BSSIDInfo
	OperatingClass uint8
	Channel        uint8
	PHYType        uint8
	Subelements    []Subelement
}

const neighborReportFixedLen = 13

func (n *NeighborReport) unmarshal(b []byte) error {
	if len(b) < neighborReportFixedLen {
		return malformed("neighbor report: length %d", len(b))
	}
	copy(n.BSSID[:], b[0:6])

	w, err := readWord(bssidInfoLayout, b[6:10])
	if err != nil {
		return err
	}
	n.Info = BSSIDInfo{
		Reachability:       uint8(w.get("reachability")),
		Security:           w.isSet("security"),
		KeyScope:           w.isSet("key_scope"),
		SpectrumManagement: w.isSet("spectrum_mgmt"),
		QoS:                w.isSet("qos"),
		APSD:               w.isSet("apsd"),
		RadioMeasurement:   w.isSet("radio_measurement"),
		DelayedBlockAck:    w.isSet("delayed_block_ack"),
		ImmediateBlockAck:  w.isSet("immediate_block_ack"),
		MobilityDomain:     w.isSet("mobility_domain"),
		HighThroughput:     w.isSet("high_throughput"),
		VeryHighThroughput: w.isSet("very_high_throughput"),
		FTM:                w.isSet("ftm"),
		HighEfficiency:     w.isSet("high_efficiency"),
		ERBSS:              w.isSet("er_bss"),
	}
	n.OperatingClass, n.Channel, n.PHYType = b[10], b[11], b[12]

	n.Subelements, err = parseSubelements(b[neighborReportFixedLen:])
	return err
}

func (n *NeighborReport) marshal() ([]byte, error) {
	b := append(make([]byte, 0, neighborReportFixedLen), n.BSSID[:]...)

	i := n.Info
	b, err := newWord(bssidInfoLayout).
		set("reachability", uint32(i.Reachability)).
		flag("security", i.Security).
		flag("key_scope", i.KeyScope).
		flag("spectrum_mgmt", i.SpectrumManagement).
		flag("qos", i.QoS).
		flag("apsd", i.APSD).
		flag("radio_measurement", i.RadioMeasurement).
		flag("delayed_block_ack", i.DelayedBlockAck).
		flag("immediate_block_ack", i.ImmediateBlockAck).
		flag("mobility_domain", i.MobilityDomain).
		flag("high_throughput", i.HighThroughput).
		flag("very_high_throughput", i.VeryHighThroughput).
		flag("ftm", i.FTM).
		flag("high_efficiency", i.HighEfficiency).
		flag("er_bss", i.ERBSS).
		append(b)
	if err != nil {
		return nil, err
	}

	b = append(b, n.OperatingClass, n.Channel, n.PHYType)
	return appendSubelements(b, n.Subelements)
}

// MeasurementMode is the Measurement Request Mode field.
type MeasurementMode struct {
	Parallel          bool
	Enable            bool
	Request           bool
	Report            bool
	DurationMandatory bool
}

// Measurement types carried in a MeasurementRequest.
const (
	MeasurementBasic       uint8 = 0
	MeasurementCCA         uint8 = 1
	MeasurementRPI         uint8 = 2
	MeasurementChannelLoad uint8 = 3
	MeasurementBeacon      uint8 = 5
)

// MeasurementRequest is one Measurement Request element. The request body
// depends on Type and is kept as received.
type MeasurementRequest struct {
	Token   uint8
	Mode    MeasurementMode
	Type    uint8
	Request []byte
}

func (m *MeasurementRequest) unmarshal(b []byte) error {
	if len(b) < 3 {
		return malformed("measurement request: length %d", len(b))
	}
	w, err := readWord(measurementModeLayout, b[1:2])
	if err != nil {
		return err
	}
	m.Token = b[0]
	m.Mode = MeasurementMode{
		Parallel:          w.isSet("parallel"),
		Enable:            w.isSet("enable"),
		Request:           w.isSet("request"),
		Report:            w.isSet("report"),
		DurationMandatory: w.isSet("duration_mandatory"),
	}
	m.Type = b[2]
	m.Request = clone(b[3:])
	return nil
}

func (m *MeasurementRequest) marshal() ([]byte, error) {
	b, err := newWord(measurementModeLayout).
		flag("parallel", m.Mode.Parallel).
		flag("enable", m.Mode.Enable).
		flag("request", m.Mode.Request).
		flag("report", m.Mode.Report).
		flag("duration_mandatory", m.Mode.DurationMandatory).
		append([]byte{m.Token})
	if err != nil {
		return nil, err
	}
	b = append(b, m.Type)
	return append(b, m.Request...), nil
}

// BeaconRequest decodes the body of a beacon measurement request.
type BeaconRequest struct {
	OperatingClass   uint8
	Channel          uint8
	RandomizationTUs uint16
	DurationTUs      uint16
	Mode             uint8
	BSSID            [6]byte
	Subelements      []Subelement
}

// Beacon decodes Request as a beacon request. It reports false when Type
// is not MeasurementBeacon or the body is malformed.
func (m *MeasurementRequest) Beacon() (*BeaconRequest, bool) {
	b := m.Request
	if m.Type != MeasurementBeacon || len(b) < 13 {
		return nil, false
	}
	ss, err := parseSubelements(b[13:])
	if err != nil {
		return nil, false
	}
	r := &BeaconRequest{
		OperatingClass:   b[0],
		Channel:          b[1],
		RandomizationTUs: binary.LittleEndian.Uint16(b[2:4]),
		DurationTUs:      binary.LittleEndian.Uint16(b[4:6]),
		Mode:             b[6],
		Subelements:      ss,
	}
	copy(r.BSSID[:], b[7:13])
	return r, true
}
