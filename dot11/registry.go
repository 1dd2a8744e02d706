package dot11

import (
	"fmt"

	"github.com/wlanctl/wifi/internal/bitfield"
)

// A Layout names how an element payload is structured.
type Layout int

// Possible Layout values.
const (
	LayoutFixed Layout = iota
	LayoutVariable
	LayoutBitPacked
	LayoutNested
	LayoutOpaque
)

// String returns the name of a Layout.
func (l Layout) String() string {
	switch l {
	case LayoutFixed:
		return "fixed"
	case LayoutVariable:
		return "variable"
	case LayoutBitPacked:
		return "bit-packed"
	case LayoutNested:
		return "nested"
	case LayoutOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// A Descriptor describes one element: how it is identified, its payload
// bounds and how its payload is decoded into and encoded from Elements.
// MinLen and MaxLen bound the payload after the Key's prefix (the extension
// id, or the OUI, type and subtype).
type Descriptor struct {
	Key          Key
	Name         string
	MinLen       int
	MaxLen       int
	Layout       Layout
	Bits         []*bitfield.Layout
	Multi        bool
	Truncate     bool
	Fragmentable bool

	decode func(e *Elements, k Key, b []byte) error
	encode func(e *Elements) ([][]byte, error)
	count  func(e *Elements) int
}

type descOption func(d *Descriptor)

// truncating decodes the first MaxLen octets of an oversize payload.
func truncating() descOption { return func(d *Descriptor) { d.Truncate = true } }

func fragmentable() descOption { return func(d *Descriptor) { d.Fragmentable = true } }

func bits(ls ...*bitfield.Layout) descOption {
	return func(d *Descriptor) { d.Bits = append(d.Bits, ls...) }
}

type payloadPtr[T any] interface {
	*T
	payload
}

// single builds the descriptor of an element that appears at most once and
// is stored behind a pointer field of Elements.
func single[T any, P payloadPtr[T]](k Key, name string, min, max int, l Layout,
	field func(e *Elements) **T, opts ...descOption) *Descriptor {
	d := &Descriptor{
		Key:    k,
		Name:   name,
		MinLen: min,
		MaxLen: max,
		Layout: l,
		decode: func(e *Elements, k Key, b []byte) error {
			v := new(T)
			if kp, ok := any(P(v)).(keyed); ok {
				kp.setKey(k)
			}
			if err := P(v).unmarshal(b); err != nil {
				return err
			}
			*field(e) = v
			return nil
		},
		encode: func(e *Elements) ([][]byte, error) {
			v := *field(e)
			if v == nil {
				return nil, nil
			}
			b, err := P(v).marshal()
			if err != nil {
				return nil, err
			}
			return [][]byte{b}, nil
		},
		count: func(e *Elements) int {
			if *field(e) == nil {
				return 0
			}
			return 1
		},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// multi builds the descriptor of an element that may repeat and is stored
// in a slice field of Elements.
func multi[T any, P payloadPtr[T]](k Key, name string, min, max int, l Layout,
	field func(e *Elements) *[]T, opts ...descOption) *Descriptor {
	d := &Descriptor{
		Key:    k,
		Name:   name,
		MinLen: min,
		MaxLen: max,
		Layout: l,
		Multi:  true,
		decode: func(e *Elements, k Key, b []byte) error {
			v := new(T)
			if kp, ok := any(P(v)).(keyed); ok {
				kp.setKey(k)
			}
			if err := P(v).unmarshal(b); err != nil {
				return err
			}
			*field(e) = append(*field(e), *v)
			return nil
		},
		encode: func(e *Elements) ([][]byte, error) {
			vs := *field(e)
			out := make([][]byte, 0, len(vs))
			for i := range vs {
				b, err := P(&vs[i]).marshal()
				if err != nil {
					return nil, err
				}
				out = append(out, b)
			}
			return out, nil
		},
		count: func(e *Elements) int { return len(*field(e)) },
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

const maxSupportedRates = 8

// catalog returns every descriptor the codec knows.
func catalog() []*Descriptor {
	return []*Descriptor{
		single[SSID](idKey(ElementSSID), "SSID", 0, 32, LayoutVariable,
			func(e *Elements) **SSID { return &e.SSID }),
		single[Rates](idKey(ElementSupportedRates), "Supported Rates", 1, maxSupportedRates, LayoutVariable,
			func(e *Elements) **Rates { return &e.SupportedRates }, truncating()),
		single[DSParameterSet](idKey(ElementDSParameterSet), "DS Parameter Set", 1, 1, LayoutFixed,
			func(e *Elements) **DSParameterSet { return &e.DSParameterSet }),
		single[TIM](idKey(ElementTIM), "TIM", 4, 254, LayoutFixed,
			func(e *Elements) **TIM { return &e.TIM }),
		single[Country](idKey(ElementCountry), "Country", 3, 254, LayoutFixed,
			func(e *Elements) **Country { return &e.Country }),
		single[BSSLoad](idKey(ElementBSSLoad), "BSS Load", 4, 5, LayoutFixed,
			func(e *Elements) **BSSLoad { return &e.BSSLoad }),
		single[EDCAParameterSet](idKey(ElementEDCAParameterSet), "EDCA Parameter Set", 18, 18, LayoutBitPacked,
			func(e *Elements) **EDCAParameterSet { return &e.EDCAParameterSet },
			bits(apQoSInfoLayout, aciAIFSNLayout, ecwLayout)),
		single[TSPEC](idKey(ElementTSPEC), "TSPEC", tspecLen, tspecLen, LayoutBitPacked,
			func(e *Elements) **TSPEC { return &e.TSPEC }, bits(tsInfoLayout)),
		multi[TCLAS](idKey(ElementTCLAS), "TCLAS", 5, 255, LayoutOpaque,
			func(e *Elements) *[]TCLAS { return &e.TCLAS }),
		single[Schedule](idKey(ElementSchedule), "Schedule", 12, 12, LayoutFixed,
			func(e *Elements) **Schedule { return &e.Schedule }, bits(scheduleInfoLayout)),
		single[ChallengeText](idKey(ElementChallengeText), "Challenge Text", 1, 253, LayoutVariable,
			func(e *Elements) **ChallengeText { return &e.ChallengeText }),
		single[PowerConstraint](idKey(ElementPowerConstraint), "Power Constraint", 1, 1, LayoutFixed,
			func(e *Elements) **PowerConstraint { return &e.PowerConstraint }),
		single[PowerCapability](idKey(ElementPowerCapability), "Power Capability", 2, 2, LayoutFixed,
			func(e *Elements) **PowerCapability { return &e.PowerCapability }),
		single[TPCRequest](idKey(ElementTPCRequest), "TPC Request", 0, 0, LayoutFixed,
			func(e *Elements) **TPCRequest { return &e.TPCRequest }),
		single[TPCReport](idKey(ElementTPCReport), "TPC Report", 2, 2, LayoutFixed,
			func(e *Elements) **TPCReport { return &e.TPCReport }),
		single[SupportedChannels](idKey(ElementSupportedChannels), "Supported Channels", 2, maxSupportedChannels, LayoutVariable,
			func(e *Elements) **SupportedChannels { return &e.SupportedChannels }, truncating()),
		single[ChannelSwitch](idKey(ElementChannelSwitch), "Channel Switch Announcement", 3, 3, LayoutFixed,
			func(e *Elements) **ChannelSwitch { return &e.ChannelSwitch }),
		multi[MeasurementRequest](idKey(ElementMeasurementRequest), "Measurement Request", 3, 255, LayoutBitPacked,
			func(e *Elements) *[]MeasurementRequest { return &e.MeasurementRequests }, bits(measurementModeLayout)),
		single[ERPInfo](idKey(ElementERPInfo), "ERP Information", 1, 1, LayoutBitPacked,
			func(e *Elements) **ERPInfo { return &e.ERPInfo }, bits(erpInfoLayout)),
		single[TSDelay](idKey(ElementTSDelay), "TS Delay", 4, 4, LayoutFixed,
			func(e *Elements) **TSDelay { return &e.TSDelay }),
		single[TCLASProcessing](idKey(ElementTCLASProcessing), "TCLAS Processing", 1, 1, LayoutFixed,
			func(e *Elements) **TCLASProcessing { return &e.TCLASProcessing }),
		single[HTCapabilities](idKey(ElementHTCapabilities), "HT Capabilities", 26, 26, LayoutBitPacked,
			func(e *Elements) **HTCapabilities { return &e.HTCapabilities },
			bits(htCapabilityInfoLayout, ampduParamsLayout)),
		single[QoSInfo](idKey(ElementQoSCapability), "QoS Capability", 1, 1, LayoutBitPacked,
			func(e *Elements) **QoSInfo { return &e.QoSCapability }, bits(qosInfoLayout)),
		single[RSN](idKey(ElementRSN), "RSN", 2, 254, LayoutNested,
			func(e *Elements) **RSN { return &e.RSN }, bits(rsnCapabilitiesLayout)),
		single[Rates](idKey(ElementExtendedRates), "Extended Supported Rates", 1, 255, LayoutVariable,
			func(e *Elements) **Rates { return &e.ExtendedRates }),
		multi[NeighborReport](idKey(ElementNeighborReport), "Neighbor Report", neighborReportFixedLen, 255, LayoutNested,
			func(e *Elements) *[]NeighborReport { return &e.NeighborReports }, bits(bssidInfoLayout)),
		single[MobilityDomain](idKey(ElementMobilityDomain), "Mobility Domain", 3, 3, LayoutFixed,
			func(e *Elements) **MobilityDomain { return &e.MobilityDomain }, bits(ftCapabilityLayout)),
		single[FastTransition](idKey(ElementFastTransition), "Fast BSS Transition", ftFixedLen, 255, LayoutNested,
			func(e *Elements) **FastTransition { return &e.FastTransition }, bits(micControlLayout)),
		single[TimeoutInterval](idKey(ElementTimeoutInterval), "Timeout Interval", 5, 5, LayoutFixed,
			func(e *Elements) **TimeoutInterval { return &e.TimeoutInterval }),
		single[OperatingClasses](idKey(ElementOperatingClasses), "Supported Operating Classes", 1, 255, LayoutVariable,
			func(e *Elements) **OperatingClasses { return &e.OperatingClasses }),
		single[HTOperation](idKey(ElementHTOperation), "HT Operation", 22, 22, LayoutBitPacked,
			func(e *Elements) **HTOperation { return &e.HTOperation },
			bits(htOperationInfo1Layout, htOperationInfo2Layout, htOperationInfo3Layout)),
		single[SecondaryChannelOffset](idKey(ElementSecondaryChannelOffset), "Secondary Channel Offset", 1, 1, LayoutFixed,
			func(e *Elements) **SecondaryChannelOffset { return &e.SecondaryChannelOffset }),
		single[RMEnabledCapabilities](idKey(ElementRMEnabledCapabilities), "RM Enabled Capabilities", 5, 5, LayoutFixed,
			func(e *Elements) **RMEnabledCapabilities { return &e.RMEnabledCapabilities }),
		single[MultipleBSSID](idKey(ElementMultipleBSSID), "Multiple BSSID", 1, 255, LayoutNested,
			func(e *Elements) **MultipleBSSID { return &e.MultipleBSSID }),
		single[BSSCoexistence](idKey(ElementBSSCoexistence), "20/40 BSS Coexistence", 1, 1, LayoutBitPacked,
			func(e *Elements) **BSSCoexistence { return &e.BSSCoexistence }, bits(bssCoexistenceLayout)),
		single[OBSSScanParameters](idKey(ElementOBSSScanParameters), "Overlapping BSS Scan Parameters", 14, 14, LayoutFixed,
			func(e *Elements) **OBSSScanParameters { return &e.OBSSScanParameters }),
		single[Interworking](idKey(ElementInterworking), "Interworking", 1, 9, LayoutFixed,
			func(e *Elements) **Interworking { return &e.Interworking }, bits(accessNetworkLayout)),
		single[QoSMap](idKey(ElementQoSMap), "QoS Map", 16, 16+2*maxDSCPExceptions, LayoutVariable,
			func(e *Elements) **QoSMap { return &e.QoSMap }),
		single[ExtendedCapabilities](idKey(ElementExtendedCapabilities), "Extended Capabilities", 1, 255, LayoutVariable,
			func(e *Elements) **ExtendedCapabilities { return &e.ExtendedCapabilities }),
		single[VHTCapabilities](idKey(ElementVHTCapabilities), "VHT Capabilities", 12, 12, LayoutBitPacked,
			func(e *Elements) **VHTCapabilities { return &e.VHTCapabilities }, bits(vhtCapabilityInfoLayout)),
		single[VHTOperation](idKey(ElementVHTOperation), "VHT Operation", 5, 5, LayoutFixed,
			func(e *Elements) **VHTOperation { return &e.VHTOperation }),
		single[TransmitPowerEnvelope](idKey(ElementTransmitPowerEnvelope), "Transmit Power Envelope", 2, 5, LayoutFixed,
			func(e *Elements) **TransmitPowerEnvelope { return &e.TransmitPowerEnvelope }),
		single[OperatingMode](idKey(ElementOperatingMode), "Operating Mode Notification", 1, 1, LayoutBitPacked,
			func(e *Elements) **OperatingMode { return &e.OperatingMode }, bits(operatingModeLayout)),
		single[HECapabilities](extKey(ExtHECapabilities), "HE Capabilities", 21, 54, LayoutFixed,
			func(e *Elements) **HECapabilities { return &e.HECapabilities }),
		single[HEOperation](extKey(ExtHEOperation), "HE Operation", 6, 15, LayoutBitPacked,
			func(e *Elements) **HEOperation { return &e.HEOperation },
			bits(heOperationParamsLayout, bssColorLayout)),
		single[MultiLink](extKey(ExtMultiLink), "Multi-Link", 1, 1024, LayoutOpaque,
			func(e *Elements) **MultiLink { return &e.MultiLink }, fragmentable()),

		single[Opaque](vendorKey(OUIMicrosoft, ouiTypeWPA), "WPA", 4, 251, LayoutOpaque,
			func(e *Elements) **Opaque { return &e.WPA }),
		single[WMMInfo](vendorSubKey(OUIMicrosoft, ouiTypeWMM, wmmSubtypeInfo), "WMM Information", 2, 2, LayoutBitPacked,
			func(e *Elements) **WMMInfo { return &e.WMMInfo }, bits(qosInfoLayout)),
		single[WMMParameter](vendorSubKey(OUIMicrosoft, ouiTypeWMM, wmmSubtypeParameter), "WMM Parameter", 19, 19, LayoutBitPacked,
			func(e *Elements) **WMMParameter { return &e.WMMParameter },
			bits(apQoSInfoLayout, aciAIFSNLayout, ecwLayout)),
		single[Opaque](vendorKey(OUIMicrosoft, ouiTypeWSC), "WSC", 0, 251, LayoutOpaque,
			func(e *Elements) **Opaque { return &e.WSC }),
		single[Opaque](vendorKey(OUIWFA, ouiTypeP2P), "P2P", 0, 251, LayoutOpaque,
			func(e *Elements) **Opaque { return &e.P2P }),
		multi[VendorSpecific](genericVendor, "Vendor Specific", 3, 255, LayoutOpaque,
			func(e *Elements) *[]VendorSpecific { return &e.Vendor }),
	}
}

// maxSupportedChannels bounds the Supported Channels list in octets.
const maxSupportedChannels = 96

// A Registry is the validated, read-only catalog of element descriptors.
// It is safe for concurrent use.
type Registry struct {
	descs []*Descriptor
	byKey map[Key]*Descriptor
}

// NewRegistry builds the descriptor catalog and validates it: keys are
// unique, length bounds are consistent, every bit-packed layout is well
// formed, and every frame-type table refers only to known descriptors.
func NewRegistry() (*Registry, error) {
	return newRegistry(catalog())
}

func newRegistry(descs []*Descriptor) (*Registry, error) {
	r := &Registry{
		descs: descs,
		byKey: make(map[Key]*Descriptor, len(descs)),
	}

	for _, d := range descs {
		if _, ok := r.byKey[d.Key]; ok {
			return nil, fmt.Errorf("dot11: duplicate descriptor for element %s", d.Key)
		}
		if d.MinLen < 0 || d.MinLen > d.MaxLen {
			return nil, fmt.Errorf("dot11: element %s: invalid length bounds %d..%d", d.Key, d.MinLen, d.MaxLen)
		}
		if !d.Fragmentable && d.Key.prefixLen()+d.MaxLen > 255 {
			return nil, fmt.Errorf("dot11: element %s: maximum length %d does not fit one element", d.Key, d.MaxLen)
		}
		if d.Layout == LayoutBitPacked && len(d.Bits) == 0 {
			return nil, fmt.Errorf("dot11: element %s: bit-packed without a layout", d.Key)
		}
		for _, l := range d.Bits {
			if err := l.Validate(); err != nil {
				return nil, fmt.Errorf("dot11: element %s: %w", d.Key, err)
			}
		}
		r.byKey[d.Key] = d
	}

	for _, l := range bitLayouts {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("dot11: %w", err)
		}
	}

	for _, fi := range tables {
		for _, en := range fi.Entries {
			d, ok := r.byKey[en.Key]
			if !ok {
				return nil, fmt.Errorf("dot11: %s table lists unknown element %s", fi.Type, en.Key)
			}
			if !d.Multi && en.Max != 1 {
				return nil, fmt.Errorf("dot11: %s table allows %d of single element %s", fi.Type, en.Max, en.Key)
			}
			if en.Max < 1 {
				return nil, fmt.Errorf("dot11: %s table allows no instances of %s", fi.Type, en.Key)
			}
		}
	}

	return r, nil
}

var defaultRegistry = mustRegistry()

func mustRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the registry built at process start.
func DefaultRegistry() *Registry { return defaultRegistry }

// Descriptors returns every descriptor in catalog order.
func (r *Registry) Descriptors() []*Descriptor {
	return append([]*Descriptor(nil), r.descs...)
}

// Lookup returns the descriptor for k if frame type t permits it. Vendor
// keys fall back from {OUI, type, subtype} to {OUI, type} and then to the
// generic vendor descriptor. A false result means the element is unknown
// to t and is skipped by the Unpacker.
func (r *Registry) Lookup(t FrameType, k Key) (*Descriptor, bool) {
	fi, ok := tables[t]
	if !ok {
		return nil, false
	}

	for _, c := range fallbacks(k) {
		d, ok := r.byKey[c]
		if !ok {
			continue
		}
		if _, ok := fi.entry(c); ok {
			return d, true
		}
	}
	return nil, false
}

// fallbacks lists the keys tried for k, most specific first.
func fallbacks(k Key) []Key {
	if k.ID != ElementVendor || k == genericVendor {
		return []Key{k}
	}

	ks := make([]Key, 0, 3)
	if k.HasSubtype {
		ks = append(ks, k)
		k.Subtype, k.HasSubtype = 0, false
	}
	return append(ks, k, genericVendor)
}

// keyOf derives the most specific key an element body could match.
// ok is false for an extension element without an extension id.
func keyOf(id ElementID, body []byte) (Key, bool) {
	switch id {
	case ElementExtension:
		if len(body) < 1 {
			return Key{}, false
		}
		return extKey(body[0]), true
	case ElementVendor:
		var o OUI
		switch {
		case len(body) >= 5:
			copy(o[:], body)
			return vendorSubKey(o, body[3], body[4]), true
		case len(body) == 4:
			copy(o[:], body)
			return vendorKey(o, body[3]), true
		default:
			return genericVendor, true
		}
	default:
		return idKey(id), true
	}
}

// resolve finds the descriptor for an element body in frame type t.
func (r *Registry) resolve(t FrameType, id ElementID, body []byte) (*Descriptor, bool) {
	k, ok := keyOf(id, body)
	if !ok {
		return nil, false
	}
	return r.Lookup(t, k)
}

func (r *Registry) descriptor(k Key) *Descriptor { return r.byKey[k] }
