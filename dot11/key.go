package dot11

import "fmt"

// An ElementID is an 802.11 element tag.
type ElementID uint8

// Element IDs known to the registry. Names follow 802.11-2020 Table 9-92.
const (
	ElementSSID                   ElementID = 0
	ElementSupportedRates         ElementID = 1
	ElementDSParameterSet         ElementID = 3
	ElementTIM                    ElementID = 5
	ElementCountry                ElementID = 7
	ElementBSSLoad                ElementID = 11
	ElementEDCAParameterSet       ElementID = 12
	ElementTSPEC                  ElementID = 13
	ElementTCLAS                  ElementID = 14
	ElementSchedule               ElementID = 15
	ElementChallengeText          ElementID = 16
	ElementPowerConstraint        ElementID = 32
	ElementPowerCapability        ElementID = 33
	ElementTPCRequest             ElementID = 34
	ElementTPCReport              ElementID = 35
	ElementSupportedChannels      ElementID = 36
	ElementChannelSwitch          ElementID = 37
	ElementMeasurementRequest     ElementID = 38
	ElementERPInfo                ElementID = 42
	ElementTSDelay                ElementID = 43
	ElementTCLASProcessing        ElementID = 44
	ElementHTCapabilities         ElementID = 45
	ElementQoSCapability          ElementID = 46
	ElementRSN                    ElementID = 48
	ElementExtendedRates          ElementID = 50
	ElementNeighborReport         ElementID = 52
	ElementMobilityDomain         ElementID = 54
	ElementFastTransition         ElementID = 55
	ElementTimeoutInterval        ElementID = 56
	ElementOperatingClasses       ElementID = 59
	ElementHTOperation            ElementID = 61
	ElementSecondaryChannelOffset ElementID = 62
	ElementRMEnabledCapabilities  ElementID = 70
	ElementMultipleBSSID          ElementID = 71
	ElementBSSCoexistence         ElementID = 72
	ElementOBSSScanParameters     ElementID = 74
	ElementInterworking           ElementID = 107
	ElementQoSMap                 ElementID = 110
	ElementExtendedCapabilities   ElementID = 127
	ElementVHTCapabilities        ElementID = 191
	ElementVHTOperation           ElementID = 192
	ElementTransmitPowerEnvelope  ElementID = 195
	ElementOperatingMode          ElementID = 199
	ElementVendor                 ElementID = 221
	ElementFragment               ElementID = 242
	ElementExtension              ElementID = 255
)

// Element ID Extension values, carried in the first payload byte of an
// ElementExtension element.
const (
	ExtHECapabilities uint8 = 35
	ExtHEOperation    uint8 = 36
	ExtMultiLink      uint8 = 107
)

// An OUI is an IEEE Organizationally Unique Identifier.
type OUI [3]byte

// String returns the colon-separated form of an OUI.
func (o OUI) String() string {
	return fmt.Sprintf("%02x:%02x:%02x", o[0], o[1], o[2])
}

// Vendor OUIs and OUI types known to the registry.
var (
	OUIMicrosoft = OUI{0x00, 0x50, 0xf2}
	OUIWFA       = OUI{0x50, 0x6f, 0x9a}
)

const (
	ouiTypeWPA = 1
	ouiTypeWMM = 2
	ouiTypeWSC = 4
	ouiTypeP2P = 9

	wmmSubtypeInfo      = 0
	wmmSubtypeParameter = 1
)

// A Key identifies an element descriptor: a tag, plus the extension id for
// extension elements, plus the OUI, OUI type and optional subtype for
// vendor-specific elements. The zero OUI under ElementVendor is the generic
// vendor descriptor.
type Key struct {
	ID         ElementID
	Ext        uint8
	OUI        OUI
	OUIType    uint8
	Subtype    uint8
	HasSubtype bool
}

func idKey(id ElementID) Key { return Key{ID: id} }

func extKey(ext uint8) Key { return Key{ID: ElementExtension, Ext: ext} }

func vendorKey(oui OUI, typ uint8) Key {
	return Key{ID: ElementVendor, OUI: oui, OUIType: typ}
}

func vendorSubKey(oui OUI, typ, sub uint8) Key {
	return Key{ID: ElementVendor, OUI: oui, OUIType: typ, Subtype: sub, HasSubtype: true}
}

// genericVendor is the wildcard key for unrecognized vendor elements.
var genericVendor = idKey(ElementVendor)

// String returns a compact representation of a Key.
func (k Key) String() string {
	switch {
	case k.ID == ElementExtension:
		return fmt.Sprintf("%d/%d", k.ID, k.Ext)
	case k.ID == ElementVendor && k == genericVendor:
		return "221/*"
	case k.ID == ElementVendor && k.HasSubtype:
		return fmt.Sprintf("221/%s/%d/%d", k.OUI, k.OUIType, k.Subtype)
	case k.ID == ElementVendor:
		return fmt.Sprintf("221/%s/%d", k.OUI, k.OUIType)
	default:
		return fmt.Sprintf("%d", k.ID)
	}
}

// prefixLen is the number of payload bytes the key itself occupies on the
// wire: the extension id, or the OUI, type and subtype.
func (k Key) prefixLen() int {
	switch {
	case k.ID == ElementExtension:
		return 1
	case k.ID == ElementVendor && k == genericVendor:
		return 0
	case k.ID == ElementVendor && k.HasSubtype:
		return 5
	case k.ID == ElementVendor:
		return 4
	default:
		return 0
	}
}

// appendPrefix appends the key's payload prefix to b.
func (k Key) appendPrefix(b []byte) []byte {
	switch k.prefixLen() {
	case 1:
		return append(b, k.Ext)
	case 4:
		return append(append(b, k.OUI[:]...), k.OUIType)
	case 5:
		return append(append(b, k.OUI[:]...), k.OUIType, k.Subtype)
	}
	return b
}
