package dot11

// An Entry is one element slot in a frame type's table.
type Entry struct {
	Key       Key
	Mandatory bool
	// Max is the maximum number of instances: 1 for single elements.
	Max int
}

// FrameInfo describes the body layout of one frame type: its fixed header
// and the ordered list of elements it may carry. Entries are in canonical
// emission order.
type FrameInfo struct {
	Type     FrameType
	Name     string
	FixedLen int

	// IsAction frames start with the Category and ActionCode octets, which
	// are counted in FixedLen.
	IsAction   bool
	Category   uint8
	ActionCode uint8

	Entries []Entry
	index   map[Key]int
}

func (fi *FrameInfo) entry(k Key) (Entry, bool) {
	i, ok := fi.index[k]
	if !ok {
		return Entry{}, false
	}
	return fi.Entries[i], true
}

// headerLen is the number of fixed octets before the frame's own fields.
func (fi *FrameInfo) headerLen() int {
	if fi.IsAction {
		return 2
	}
	return 0
}

// Table returns the immutable description of frame type t.
func Table(t FrameType) (*FrameInfo, error) {
	fi, ok := tables[t]
	if !ok {
		return nil, ErrUnknownFrameType
	}
	return fi, nil
}

// Action frame categories.
const (
	categorySpectrumMgmt     = 0
	categoryQoS              = 1
	categoryRadioMeasurement = 5
)

func mandatory(k Key) Entry { return Entry{Key: k, Mandatory: true, Max: 1} }
func optional(k Key) Entry { return Entry{Key: k, Max: 1} }
func repeated(k Key, n int) Entry { return Entry{Key: k, Max: n} }

var (
	ssid        = idKey(ElementSSID)
	rates       = idKey(ElementSupportedRates)
	wpa         = vendorKey(OUIMicrosoft, ouiTypeWPA)
	wmmInfo     = vendorSubKey(OUIMicrosoft, ouiTypeWMM, wmmSubtypeInfo)
	wmmParam    = vendorSubKey(OUIMicrosoft, ouiTypeWMM, wmmSubtypeParameter)
	wsc         = vendorKey(OUIMicrosoft, ouiTypeWSC)
	p2p         = vendorKey(OUIWFA, ouiTypeP2P)
	heCaps      = extKey(ExtHECapabilities)
	heOperation = extKey(ExtHEOperation)
	multiLink   = extKey(ExtMultiLink)
)

const maxVendorElements = 16

func ids(xs ...ElementID) []Entry {
	es := make([]Entry, 0, len(xs))
	for _, id := range xs {
		es = append(es, optional(idKey(id)))
	}
	return es
}

func concat(ess ...[]Entry) []Entry {
	var out []Entry
	for _, es := range ess {
		out = append(out, es...)
	}
	return out
}

// beaconEntries is shared by Beacon and Probe Response, which differ only
// in the TIM.
func beaconEntries(tim bool) []Entry {
	head := []Entry{mandatory(ssid), mandatory(rates), optional(idKey(ElementDSParameterSet))}
	if tim {
		head = append(head, optional(idKey(ElementTIM)))
	}
	return concat(
		head,
		ids(
			ElementCountry,
			ElementPowerConstraint,
			ElementChannelSwitch,
			ElementTPCReport,
			ElementERPInfo,
			ElementExtendedRates,
			ElementRSN,
			ElementBSSLoad,
			ElementEDCAParameterSet,
			ElementMultipleBSSID,
			ElementRMEnabledCapabilities,
			ElementMobilityDomain,
			ElementOperatingClasses,
			ElementHTCapabilities,
			ElementHTOperation,
			ElementBSSCoexistence,
			ElementOBSSScanParameters,
			ElementExtendedCapabilities,
			ElementInterworking,
			ElementVHTCapabilities,
			ElementVHTOperation,
			ElementTransmitPowerEnvelope,
			ElementOperatingMode,
		),
		[]Entry{
			optional(heCaps),
			optional(heOperation),
			optional(multiLink),
			optional(wpa),
			optional(wmmParam),
			optional(wsc),
			optional(p2p),
			repeated(genericVendor, maxVendorElements),
		},
	)
}

func requestEntries(reassoc bool) []Entry {
	es := concat(
		[]Entry{mandatory(ssid), mandatory(rates)},
		ids(
			ElementExtendedRates,
			ElementPowerCapability,
			ElementSupportedChannels,
			ElementRSN,
			ElementQoSCapability,
			ElementRMEnabledCapabilities,
			ElementMobilityDomain,
		),
	)
	if reassoc {
		es = append(es, optional(idKey(ElementFastTransition)))
	}
	return concat(
		es,
		ids(
			ElementOperatingClasses,
			ElementHTCapabilities,
			ElementBSSCoexistence,
			ElementExtendedCapabilities,
			ElementInterworking,
			ElementVHTCapabilities,
			ElementOperatingMode,
		),
		[]Entry{
			optional(heCaps),
			optional(multiLink),
			optional(wpa),
			optional(wmmInfo),
			optional(wsc),
			optional(p2p),
			repeated(genericVendor, maxVendorElements),
		},
	)
}

func responseEntries() []Entry {
	return concat(
		[]Entry{mandatory(rates)},
		ids(
			ElementExtendedRates,
			ElementEDCAParameterSet,
			ElementRMEnabledCapabilities,
			ElementRSN,
			ElementMobilityDomain,
			ElementFastTransition,
			ElementTimeoutInterval,
			ElementHTCapabilities,
			ElementHTOperation,
			ElementBSSCoexistence,
			ElementOBSSScanParameters,
			ElementExtendedCapabilities,
			ElementQoSMap,
			ElementVHTCapabilities,
			ElementVHTOperation,
			ElementOperatingMode,
		),
		[]Entry{
			optional(heCaps),
			optional(heOperation),
			optional(multiLink),
			optional(wmmParam),
			optional(wsc),
			optional(p2p),
			repeated(genericVendor, maxVendorElements),
		},
	)
}

var vendorOnly = []Entry{repeated(genericVendor, maxVendorElements)}

func newTables(fis ...*FrameInfo) map[FrameType]*FrameInfo {
	m := make(map[FrameType]*FrameInfo, len(fis))
	for _, fi := range fis {
		fi.index = make(map[Key]int, len(fi.Entries))
		for i, e := range fi.Entries {
			fi.index[e.Key] = i
		}
		m[fi.Type] = fi
	}
	return m
}

// tables is the single source of element order and presence rules for
// both the Unpacker and the Packer.
var tables = newTables(
	&FrameInfo{Type: FrameBeacon, Name: "Beacon", FixedLen: 12, Entries: beaconEntries(true)},
	&FrameInfo{Type: FrameProbeRequest, Name: "Probe Request", FixedLen: 0, Entries: concat(
		[]Entry{mandatory(ssid), mandatory(rates)},
		ids(
			ElementExtendedRates,
			ElementDSParameterSet,
			ElementOperatingClasses,
			ElementHTCapabilities,
			ElementBSSCoexistence,
			ElementExtendedCapabilities,
			ElementInterworking,
			ElementVHTCapabilities,
		),
		[]Entry{
			optional(heCaps),
			optional(multiLink),
			optional(wmmInfo),
			optional(wsc),
			optional(p2p),
			repeated(genericVendor, maxVendorElements),
		},
	)},
	&FrameInfo{Type: FrameProbeResponse, Name: "Probe Response", FixedLen: 12, Entries: beaconEntries(false)},
	&FrameInfo{Type: FrameAssocRequest, Name: "Association Request", FixedLen: 4, Entries: requestEntries(false)},
	&FrameInfo{Type: FrameAssocResponse, Name: "Association Response", FixedLen: 6, Entries: responseEntries()},
	&FrameInfo{Type: FrameReassocRequest, Name: "Reassociation Request", FixedLen: 10, Entries: requestEntries(true)},
	&FrameInfo{Type: FrameReassocResponse, Name: "Reassociation Response", FixedLen: 6, Entries: responseEntries()},
	&FrameInfo{Type: FrameAuthentication, Name: "Authentication", FixedLen: 6, Entries: concat(
		ids(
			ElementChallengeText,
			ElementRSN,
			ElementMobilityDomain,
			ElementFastTransition,
			ElementTimeoutInterval,
		),
		[]Entry{optional(multiLink)},
		vendorOnly,
	)},
	&FrameInfo{Type: FrameDeauthentication, Name: "Deauthentication", FixedLen: 2, Entries: vendorOnly},
	&FrameInfo{Type: FrameDisassociation, Name: "Disassociation", FixedLen: 2, Entries: vendorOnly},
	&FrameInfo{
		Type: FrameAddTSRequest, Name: "ADDTS Request", FixedLen: 3,
		IsAction: true, Category: categoryQoS, ActionCode: 0,
		Entries: concat(
			[]Entry{
				mandatory(idKey(ElementTSPEC)),
				repeated(idKey(ElementTCLAS), 2),
				optional(idKey(ElementTCLASProcessing)),
			},
			vendorOnly,
		),
	},
	&FrameInfo{
		Type: FrameAddTSResponse, Name: "ADDTS Response", FixedLen: 5,
		IsAction: true, Category: categoryQoS, ActionCode: 1,
		Entries: concat(
			[]Entry{
				optional(idKey(ElementTSDelay)),
				mandatory(idKey(ElementTSPEC)),
				repeated(idKey(ElementTCLAS), 2),
				optional(idKey(ElementTCLASProcessing)),
				optional(idKey(ElementSchedule)),
			},
			vendorOnly,
		),
	},
	&FrameInfo{
		Type: FrameDelTSRequest, Name: "DELTS Request", FixedLen: 7,
		IsAction: true, Category: categoryQoS, ActionCode: 2,
		Entries: vendorOnly,
	},
	&FrameInfo{
		Type: FrameQoSMapConfigure, Name: "QoS Map Configure", FixedLen: 2,
		IsAction: true, Category: categoryQoS, ActionCode: 4,
		Entries: []Entry{mandatory(idKey(ElementQoSMap))},
	},
	&FrameInfo{
		Type: FrameTPCRequest, Name: "TPC Request", FixedLen: 3,
		IsAction: true, Category: categorySpectrumMgmt, ActionCode: 2,
		Entries: []Entry{mandatory(idKey(ElementTPCRequest))},
	},
	&FrameInfo{
		Type: FrameTPCReport, Name: "TPC Report", FixedLen: 3,
		IsAction: true, Category: categorySpectrumMgmt, ActionCode: 3,
		Entries: []Entry{mandatory(idKey(ElementTPCReport))},
	},
	&FrameInfo{
		Type: FrameChannelSwitch, Name: "Channel Switch Announcement", FixedLen: 2,
		IsAction: true, Category: categorySpectrumMgmt, ActionCode: 4,
		Entries: []Entry{
			mandatory(idKey(ElementChannelSwitch)),
			optional(idKey(ElementSecondaryChannelOffset)),
		},
	},
	&FrameInfo{
		Type: FrameMeasurementRequest, Name: "Radio Measurement Request", FixedLen: 5,
		IsAction: true, Category: categoryRadioMeasurement, ActionCode: 0,
		Entries: []Entry{
			{Key: idKey(ElementMeasurementRequest), Mandatory: true, Max: 5},
		},
	},
	&FrameInfo{
		Type: FrameNeighborReportResponse, Name: "Neighbor Report Response", FixedLen: 3,
		IsAction: true, Category: categoryRadioMeasurement, ActionCode: 5,
		Entries: []Entry{repeated(idKey(ElementNeighborReport), 15)},
	},
)

// FrameTypes returns every frame type with a table, in FrameType order.
func FrameTypes() []FrameType {
	ts := make([]FrameType, 0, len(tables))
	for t := FrameBeacon; t <= FrameNeighborReportResponse; t++ {
		if _, ok := tables[t]; ok {
			ts = append(ts, t)
		}
	}
	return ts
}
