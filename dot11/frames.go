package dot11

import (
	"encoding/binary"
	"fmt"
	"net"
)

// A FrameType selects a management frame body layout.
type FrameType int

// Frame types known to the codec.
const (
	FrameBeacon FrameType = iota
	FrameProbeRequest
	FrameProbeResponse
	FrameAssocRequest
	FrameAssocResponse
	FrameReassocRequest
	FrameReassocResponse
	FrameAuthentication
	FrameDeauthentication
	FrameDisassociation
	FrameAddTSRequest
	FrameAddTSResponse
	FrameDelTSRequest
	FrameQoSMapConfigure
	FrameTPCRequest
	FrameTPCReport
	FrameChannelSwitch
	FrameMeasurementRequest
	FrameNeighborReportResponse
)

// String returns the name of a FrameType.
func (t FrameType) String() string {
	if fi, ok := tables[t]; ok {
		return fi.Name
	}
	return fmt.Sprintf("FrameType(%d)", int(t))
}

// A Frame is a decoded management frame body. Each concrete type holds its
// fixed fields and embeds Elements.
type Frame interface {
	Type() FrameType
	elements() *Elements
	unmarshalFixed(b []byte)
	marshalFixed(b []byte) ([]byte, error)
}

// newFrame returns an empty frame value for t.
func newFrame(t FrameType) Frame {
	switch t {
	case FrameBeacon:
		return new(Beacon)
	case FrameProbeRequest:
		return new(ProbeRequest)
	case FrameProbeResponse:
		return new(ProbeResponse)
	case FrameAssocRequest:
		return new(AssocRequest)
	case FrameAssocResponse:
		return new(AssocResponse)
	case FrameReassocRequest:
		return new(ReassocRequest)
	case FrameReassocResponse:
		return new(ReassocResponse)
	case FrameAuthentication:
		return new(Authentication)
	case FrameDeauthentication:
		return new(Deauthentication)
	case FrameDisassociation:
		return new(Disassociation)
	case FrameAddTSRequest:
		return new(AddTSRequest)
	case FrameAddTSResponse:
		return new(AddTSResponse)
	case FrameDelTSRequest:
		return new(DelTSRequest)
	case FrameQoSMapConfigure:
		return new(QoSMapConfigure)
	case FrameTPCRequest:
		return new(TPCRequestAction)
	case FrameTPCReport:
		return new(TPCReportAction)
	case FrameChannelSwitch:
		return new(ChannelSwitchAction)
	case FrameMeasurementRequest:
		return new(MeasurementRequestAction)
	case FrameNeighborReportResponse:
		return new(NeighborReportResponse)
	default:
		return nil
	}
}

// CapabilityInfo is the Capability Information fixed field.
type CapabilityInfo struct {
	ESS                bool
	IBSS               bool
	CFPollable         bool
	CFPollRequest      bool
	Privacy            bool
	ShortPreamble      bool
	SpectrumManagement bool
	QoS                bool
	ShortSlotTime      bool
	APSD               bool
	RadioMeasurement   bool
	EPD                bool
}

// ParseCapabilityInfo decodes a Capability Information field held in host
// order, as nl80211 reports it for a scanned BSS.
func ParseCapabilityInfo(v uint16) CapabilityInfo {
	var c CapabilityInfo
	c.decode(binary.LittleEndian.AppendUint16(nil, v))
	return c
}

func (c *CapabilityInfo) decode(b []byte) {
	// The fixed header length has been checked, so this cannot fail.
	w, err := readWord(capabilityInfoLayout, b)
	if err != nil {
		return
	}
	*c = CapabilityInfo{
		ESS:                w.isSet("ess"),
		IBSS:               w.isSet("ibss"),
		CFPollable:         w.isSet("cf_pollable"),
		CFPollRequest:      w.isSet("cf_poll_request"),
		Privacy:            w.isSet("privacy"),
		ShortPreamble:      w.isSet("short_preamble"),
		SpectrumManagement: w.isSet("spectrum_mgmt"),
		QoS:                w.isSet("qos"),
		ShortSlotTime:      w.isSet("short_slot_time"),
		APSD:               w.isSet("apsd"),
		RadioMeasurement:   w.isSet("radio_measurement"),
		EPD:                w.isSet("epd"),
	}
}

func (c *CapabilityInfo) encode(b []byte) ([]byte, error) {
	return newWord(capabilityInfoLayout).
		flag("ess", c.ESS).
		flag("ibss", c.IBSS).
		flag("cf_pollable", c.CFPollable).
		flag("cf_poll_request", c.CFPollRequest).
		flag("privacy", c.Privacy).
		flag("short_preamble", c.ShortPreamble).
		flag("spectrum_mgmt", c.SpectrumManagement).
		flag("qos", c.QoS).
		flag("short_slot_time", c.ShortSlotTime).
		flag("apsd", c.APSD).
		flag("radio_measurement", c.RadioMeasurement).
		flag("epd", c.EPD).
		append(b)
}

// A StatusCode is an IEEE 802.11 status code.
type StatusCode uint16

// Status codes used by this package.
const (
	StatusCodeSuccess                StatusCode = 0
	StatusCodeUnspecified            StatusCode = 1
	StatusCodeCapabilitiesMismatch   StatusCode = 10
	StatusCodeAPFull                 StatusCode = 17
	StatusCodeRequestDeclined        StatusCode = 37
	StatusCodeInvalidParameters      StatusCode = 38
	StatusCodeInvalidRSNCapabilities StatusCode = 45
	StatusCodeTSNotCreated           StatusCode = 47
)

// A ReasonCode is an IEEE 802.11 reason code.
type ReasonCode uint16

// Reason codes used by this package.
const (
	ReasonUnspecified     ReasonCode = 1
	ReasonDeauthLeaving   ReasonCode = 3
	ReasonInactivity      ReasonCode = 4
	ReasonDisassocLeaving ReasonCode = 8
	ReasonQoSUnspecified  ReasonCode = 32
	ReasonEndTS           ReasonCode = 37
	ReasonUnknownTS       ReasonCode = 38
)

// Beacon is a Beacon frame body.
type Beacon struct {
	Timestamp      uint64
	BeaconInterval uint16
	Capability     CapabilityInfo
	Elements
}

// Type implements Frame.
func (*Beacon) Type() FrameType { return FrameBeacon }

func (f *Beacon) unmarshalFixed(b []byte) {
	f.Timestamp = binary.LittleEndian.Uint64(b[0:8])
	f.BeaconInterval = binary.LittleEndian.Uint16(b[8:10])
	f.Capability.decode(b[10:12])
}

func (f *Beacon) marshalFixed(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint64(b, f.Timestamp)
	b = binary.LittleEndian.AppendUint16(b, f.BeaconInterval)
	return f.Capability.encode(b)
}

// ProbeResponse is a Probe Response frame body. Its fixed fields match a
// Beacon's.
type ProbeResponse struct {
	Timestamp      uint64
	BeaconInterval uint16
	Capability     CapabilityInfo
	Elements
}

// Type implements Frame.
func (*ProbeResponse) Type() FrameType { return FrameProbeResponse }

func (f *ProbeResponse) unmarshalFixed(b []byte) {
	f.Timestamp = binary.LittleEndian.Uint64(b[0:8])
	f.BeaconInterval = binary.LittleEndian.Uint16(b[8:10])
	f.Capability.decode(b[10:12])
}

func (f *ProbeResponse) marshalFixed(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint64(b, f.Timestamp)
	b = binary.LittleEndian.AppendUint16(b, f.BeaconInterval)
	return f.Capability.encode(b)
}

// ProbeRequest is a Probe Request frame body.
type ProbeRequest struct {
	Elements
}

// Type implements Frame.
func (*ProbeRequest) Type() FrameType { return FrameProbeRequest }

func (*ProbeRequest) unmarshalFixed([]byte) {}

func (*ProbeRequest) marshalFixed(b []byte) ([]byte, error) { return b, nil }

// AssocRequest is an Association Request frame body.
type AssocRequest struct {
	Capability     CapabilityInfo
	ListenInterval uint16
	Elements
}

// Type implements Frame.
func (*AssocRequest) Type() FrameType { return FrameAssocRequest }

func (f *AssocRequest) unmarshalFixed(b []byte) {
	f.Capability.decode(b[0:2])
	f.ListenInterval = binary.LittleEndian.Uint16(b[2:4])
}

func (f *AssocRequest) marshalFixed(b []byte) ([]byte, error) {
	b, err := f.Capability.encode(b)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint16(b, f.ListenInterval), nil
}

// ReassocRequest is a Reassociation Request frame body.
type ReassocRequest struct {
	Capability     CapabilityInfo
	ListenInterval uint16
	CurrentAP      net.HardwareAddr
	Elements
}

// Type implements Frame.
func (*ReassocRequest) Type() FrameType { return FrameReassocRequest }

func (f *ReassocRequest) unmarshalFixed(b []byte) {
	f.Capability.decode(b[0:2])
	f.ListenInterval = binary.LittleEndian.Uint16(b[2:4])
	f.CurrentAP = net.HardwareAddr(clone(b[4:10]))
}

func (f *ReassocRequest) marshalFixed(b []byte) ([]byte, error) {
	if len(f.CurrentAP) != 6 {
		return nil, fmt.Errorf("current AP address %q is not an EUI-48", f.CurrentAP.String())
	}
	b, err := f.Capability.encode(b)
	if err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint16(b, f.ListenInterval)
	return append(b, f.CurrentAP...), nil
}

// AssocResponse is an Association Response frame body.
type AssocResponse struct {
	Capability CapabilityInfo
	Status     StatusCode
	AID        uint16
	Elements
}

// Type implements Frame.
func (*AssocResponse) Type() FrameType { return FrameAssocResponse }

func (f *AssocResponse) unmarshalFixed(b []byte) {
	f.Capability.decode(b[0:2])
	f.Status = StatusCode(binary.LittleEndian.Uint16(b[2:4]))
	f.AID = binary.LittleEndian.Uint16(b[4:6])
}

func (f *AssocResponse) marshalFixed(b []byte) ([]byte, error) {
	b, err := f.Capability.encode(b)
	if err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(f.Status))
	return binary.LittleEndian.AppendUint16(b, f.AID), nil
}

// ReassocResponse is a Reassociation Response frame body.
type ReassocResponse struct {
	Capability CapabilityInfo
	Status     StatusCode
	AID        uint16
	Elements
}

// Type implements Frame.
func (*ReassocResponse) Type() FrameType { return FrameReassocResponse }

func (f *ReassocResponse) unmarshalFixed(b []byte) {
	f.Capability.decode(b[0:2])
	f.Status = StatusCode(binary.LittleEndian.Uint16(b[2:4]))
	f.AID = binary.LittleEndian.Uint16(b[4:6])
}

func (f *ReassocResponse) marshalFixed(b []byte) ([]byte, error) {
	b, err := f.Capability.encode(b)
	if err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(f.Status))
	return binary.LittleEndian.AppendUint16(b, f.AID), nil
}

// Authentication algorithm numbers.
const (
	AuthOpenSystem uint16 = 0
	AuthSharedKey  uint16 = 1
	AuthFT         uint16 = 2
	AuthSAE        uint16 = 3
)

// Authentication is an Authentication frame body.
type Authentication struct {
	Algorithm uint16
	Sequence  uint16
	Status    StatusCode
	Elements
}

// Type implements Frame.
func (*Authentication) Type() FrameType { return FrameAuthentication }

func (f *Authentication) unmarshalFixed(b []byte) {
	f.Algorithm = binary.LittleEndian.Uint16(b[0:2])
	f.Sequence = binary.LittleEndian.Uint16(b[2:4])
	f.Status = StatusCode(binary.LittleEndian.Uint16(b[4:6]))
}

func (f *Authentication) marshalFixed(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint16(b, f.Algorithm)
	b = binary.LittleEndian.AppendUint16(b, f.Sequence)
	return binary.LittleEndian.AppendUint16(b, uint16(f.Status)), nil
}

// Deauthentication is a Deauthentication frame body.
type Deauthentication struct {
	Reason ReasonCode
	Elements
}

// Type implements Frame.
func (*Deauthentication) Type() FrameType { return FrameDeauthentication }

func (f *Deauthentication) unmarshalFixed(b []byte) {
	f.Reason = ReasonCode(binary.LittleEndian.Uint16(b[0:2]))
}

func (f *Deauthentication) marshalFixed(b []byte) ([]byte, error) {
	return binary.LittleEndian.AppendUint16(b, uint16(f.Reason)), nil
}

// Disassociation is a Disassociation frame body.
type Disassociation struct {
	Reason ReasonCode
	Elements
}

// Type implements Frame.
func (*Disassociation) Type() FrameType { return FrameDisassociation }

func (f *Disassociation) unmarshalFixed(b []byte) {
	f.Reason = ReasonCode(binary.LittleEndian.Uint16(b[0:2]))
}

func (f *Disassociation) marshalFixed(b []byte) ([]byte, error) {
	return binary.LittleEndian.AppendUint16(b, uint16(f.Reason)), nil
}

// The fixed fields of action frames follow the category and action octets,
// which the codec reads and writes from the frame type's Table.

// AddTSRequest is a QoS ADDTS Request action frame body.
type AddTSRequest struct {
	DialogToken uint8
	Elements
}

// Type implements Frame.
func (*AddTSRequest) Type() FrameType { return FrameAddTSRequest }

func (f *AddTSRequest) unmarshalFixed(b []byte) { f.DialogToken = b[0] }

func (f *AddTSRequest) marshalFixed(b []byte) ([]byte, error) {
	return append(b, f.DialogToken), nil
}

// AddTSResponse is a QoS ADDTS Response action frame body.
type AddTSResponse struct {
	DialogToken uint8
	Status      StatusCode
	Elements
}

// Type implements Frame.
func (*AddTSResponse) Type() FrameType { return FrameAddTSResponse }

func (f *AddTSResponse) unmarshalFixed(b []byte) {
	f.DialogToken = b[0]
	f.Status = StatusCode(binary.LittleEndian.Uint16(b[1:3]))
}

func (f *AddTSResponse) marshalFixed(b []byte) ([]byte, error) {
	return binary.LittleEndian.AppendUint16(append(b, f.DialogToken), uint16(f.Status)), nil
}

// DelTSRequest is a QoS DELTS action frame body.
type DelTSRequest struct {
	TSInfo TSInfo
	Reason ReasonCode
	Elements
}

// Type implements Frame.
func (*DelTSRequest) Type() FrameType { return FrameDelTSRequest }

func (f *DelTSRequest) unmarshalFixed(b []byte) {
	// Length was checked against the fixed header.
	_ = f.TSInfo.decode(b[0:tsInfoLen])
	f.Reason = ReasonCode(binary.LittleEndian.Uint16(b[3:5]))
}

func (f *DelTSRequest) marshalFixed(b []byte) ([]byte, error) {
	b, err := f.TSInfo.encode(b)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint16(b, uint16(f.Reason)), nil
}

// QoSMapConfigure is a QoS Map Configure action frame body.
type QoSMapConfigure struct {
	Elements
}

// Type implements Frame.
func (*QoSMapConfigure) Type() FrameType { return FrameQoSMapConfigure }

func (*QoSMapConfigure) unmarshalFixed([]byte) {}

func (*QoSMapConfigure) marshalFixed(b []byte) ([]byte, error) { return b, nil }

// TPCRequestAction is a spectrum management TPC Request action frame body.
type TPCRequestAction struct {
	DialogToken uint8
	Elements
}

// Type implements Frame.
func (*TPCRequestAction) Type() FrameType { return FrameTPCRequest }

func (f *TPCRequestAction) unmarshalFixed(b []byte) { f.DialogToken = b[0] }

func (f *TPCRequestAction) marshalFixed(b []byte) ([]byte, error) {
	return append(b, f.DialogToken), nil
}

// TPCReportAction is a spectrum management TPC Report action frame body.
type TPCReportAction struct {
	DialogToken uint8
	Elements
}

// Type implements Frame.
func (*TPCReportAction) Type() FrameType { return FrameTPCReport }

func (f *TPCReportAction) unmarshalFixed(b []byte) { f.DialogToken = b[0] }

func (f *TPCReportAction) marshalFixed(b []byte) ([]byte, error) {
	return append(b, f.DialogToken), nil
}

// ChannelSwitchAction is a spectrum management Channel Switch Announcement
// action frame body.
type ChannelSwitchAction struct {
	Elements
}

// Type implements Frame.
func (*ChannelSwitchAction) Type() FrameType { return FrameChannelSwitch }

func (*ChannelSwitchAction) unmarshalFixed([]byte) {}

func (*ChannelSwitchAction) marshalFixed(b []byte) ([]byte, error) { return b, nil }

// MeasurementRequestAction is a Radio Measurement Request action frame body.
type MeasurementRequestAction struct {
	DialogToken uint8
	Repetitions uint16
	Elements
}

// Type implements Frame.
func (*MeasurementRequestAction) Type() FrameType { return FrameMeasurementRequest }

func (f *MeasurementRequestAction) unmarshalFixed(b []byte) {
	f.DialogToken = b[0]
	f.Repetitions = binary.LittleEndian.Uint16(b[1:3])
}

func (f *MeasurementRequestAction) marshalFixed(b []byte) ([]byte, error) {
	return binary.LittleEndian.AppendUint16(append(b, f.DialogToken), f.Repetitions), nil
}

// NeighborReportResponse is a Radio Measurement Neighbor Report Response
// action frame body.
type NeighborReportResponse struct {
	DialogToken uint8
	Elements
}

// Type implements Frame.
func (*NeighborReportResponse) Type() FrameType { return FrameNeighborReportResponse }

func (f *NeighborReportResponse) unmarshalFixed(b []byte) { f.DialogToken = b[0] }

func (f *NeighborReportResponse) marshalFixed(b []byte) ([]byte, error) {
	return append(b, f.DialogToken), nil
}
