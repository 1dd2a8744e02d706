// Package wifi provides access to IEEE 802.11 WiFi devices on Linux using
// nl80211. Information elements reported by the kernel are decoded, and
// elements handed to the kernel are built, with package dot11.
package wifi

import (
	"fmt"
	"net"
	"time"

	"github.com/wlanctl/wifi/dot11"
)

// An InterfaceType is the operating mode of an Interface. The ordering
// follows nl80211's interface type constants.
type InterfaceType int

// Interface types known to nl80211.
const (
	InterfaceTypeUnspecified InterfaceType = iota
	InterfaceTypeAdHoc
	InterfaceTypeStation
	InterfaceTypeAP
	InterfaceTypeAPVLAN
	InterfaceTypeWDS
	InterfaceTypeMonitor
	InterfaceTypeMeshPoint
	InterfaceTypeP2PClient
	InterfaceTypeP2PGroupOwner
	InterfaceTypeP2PDevice
	InterfaceTypeOCB
	InterfaceTypeNAN
)

var interfaceTypeNames = [...]string{
	InterfaceTypeUnspecified:   "unspecified",
	InterfaceTypeAdHoc:         "ad-hoc",
	InterfaceTypeStation:       "station",
	InterfaceTypeAP:            "access point",
	InterfaceTypeAPVLAN:        "access point/VLAN",
	InterfaceTypeWDS:           "wireless distribution",
	InterfaceTypeMonitor:       "monitor",
	InterfaceTypeMeshPoint:     "mesh point",
	InterfaceTypeP2PClient:     "P2P client",
	InterfaceTypeP2PGroupOwner: "P2P group owner",
	InterfaceTypeP2PDevice:     "P2P device",
	InterfaceTypeOCB:           "outside context of BSS",
	InterfaceTypeNAN:           "near-me area network",
}

// String returns the string representation of an InterfaceType.
func (t InterfaceType) String() string {
	if t < 0 || int(t) >= len(interfaceTypeNames) {
		return fmt.Sprintf("unknown(%d)", t)
	}
	return interfaceTypeNames[t]
}

// An Interface is a WiFi network interface.
type Interface struct {
	Index        int
	Name         string
	HardwareAddr net.HardwareAddr

	// PHY is the physical device the interface belongs to, and Device its
	// virtual device number within that PHY.
	PHY    int
	Device int

	Type InterfaceType

	// Frequency is the operating frequency in MHz, if the interface is up.
	Frequency int
}

// A BSS is an 802.11 basic service set seen by an Interface.
type BSS struct {
	// SSID is the decoded network name, or empty if the BSS hides it or its
	// elements could not be decoded.
	SSID string

	// BSSID is the hardware address of the access point.
	BSSID net.HardwareAddr

	// Frequency is the operating frequency in MHz.
	Frequency int

	BeaconInterval time.Duration

	// LastSeen is the age of the kernel's scan entry.
	LastSeen time.Duration

	Status BSSStatus

	// Signal is the received signal strength in dBm, or 0 if the driver
	// did not report one.
	Signal float64

	Capability dot11.CapabilityInfo

	// Elements holds the information elements of the most recent beacon or
	// probe response. It is nil if the elements were structurally invalid;
	// Outcome then carries the fatal anomaly.
	Elements *dot11.Elements
	Outcome  dot11.Outcome
}

// Channel returns the primary channel of the BSS, preferring the DS
// Parameter Set element over the reported frequency.
func (b *BSS) Channel() int {
	if b.Elements != nil && b.Elements.DSParameterSet != nil {
		return int(b.Elements.DSParameterSet.Channel)
	}
	return FrequencyToChannel(b.Frequency)
}

// Load returns the BSS Load element, or nil if the BSS did not advertise one.
func (b *BSS) Load() *dot11.BSSLoad {
	if b.Elements == nil {
		return nil
	}
	return b.Elements.BSSLoad
}

// Protected reports whether the BSS advertises RSN or WPA security.
func (b *BSS) Protected() bool {
	if b.Elements == nil {
		return b.Capability.Privacy
	}
	return b.Elements.RSN != nil || b.Elements.WPA != nil || b.Capability.Privacy
}

// A BSSStatus indicates the current status of client within a BSS.
type BSSStatus int

const (
	BSSStatusAuthenticated BSSStatus = iota
	BSSStatusAssociated
	BSSStatusIBSSJoined

	// BSSStatusNotAssociated is reported for scan entries the client has no
	// relationship with. nl80211 omits the status attribute for those.
	BSSStatusNotAssociated
)

// String returns the string representation of a BSSStatus.
func (s BSSStatus) String() string {
	switch s {
	case BSSStatusAuthenticated:
		return "authenticated"
	case BSSStatusAssociated:
		return "associated"
	case BSSStatusIBSSJoined:
		return "IBSS joined"
	case BSSStatusNotAssociated:
		return "not associated"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// A Band is a WiFi frequency band, numbered as nl80211 numbers them.
type Band int

// Standard WiFi frequency bands.
const (
	Band2GHz Band = iota
	Band5GHz
	Band60GHz
	Band6GHz
)

// A PHY is a wireless device and the capabilities it reports per band.
type PHY struct {
	Index int
	Name  string

	// The interface types this device supports.
	SupportedIftypes []InterfaceType

	// ExtendedCapabilities is the device's Extended Capabilities field.
	ExtendedCapabilities dot11.ExtendedCapabilities

	// ExtendedFeatures is the nl80211 extended feature bitmap.
	ExtendedFeatures []byte

	BandAttributes []BandAttributes
}

// BandAttributes represent the RF band-specific attributes.
type BandAttributes struct {
	Band Band

	// HT and VHT capabilities in element form, nil if not supported. The
	// kernel reports no transmit beamforming or ASEL fields, so those are
	// zero.
	HTCapabilities  *dot11.HTCapabilities
	VHTCapabilities *dot11.VHTCapabilities

	FrequencyAttributes []FrequencyAttrs
	BitrateAttributes   []BitrateAttrs
}

// FrequencyAttrs represents the attributes of a WiFi frequency/channel.
type FrequencyAttrs struct {
	// Frequency is the radio frequency in MHz.
	Frequency int

	// Disabled indicates that the channel is disabled due to regulatory
	// requirements.
	Disabled bool

	// NoIR indicates that no mechanisms that initiate radiation are
	// permitted on this channel.
	NoIR bool

	// RadarDetection indicates that radar detection is mandatory on this
	// channel.
	RadarDetection bool

	// MaxTxPower is the maximum transmission power in dBm.
	MaxTxPower float64
}

// BitrateAttrs represents the attributes of a legacy bitrate.
type BitrateAttrs struct {
	// Bitrate is in Mbit/s.
	Bitrate float64

	// ShortPreamble indicates that a short preamble is supported in the
	// 2.4GHz band.
	ShortPreamble bool
}

// HasExtendedFeature reports whether nl80211 extended feature bit feature is
// set for the PHY.
func (p *PHY) HasExtendedFeature(feature uint) bool {
	if feature/8 >= uint(len(p.ExtendedFeatures)) {
		return false
	}
	return p.ExtendedFeatures[feature/8]&(1<<(feature%8)) != 0
}

// Capabilities returns the station capabilities of the band that contains
// freq, or of the first band with bitrates when no band contains it. The
// PHY's extended capabilities are included.
func (p *PHY) Capabilities(freq int) (*dot11.Capabilities, error) {
	var band *BandAttributes
	for i := range p.BandAttributes {
		b := &p.BandAttributes[i]
		if freq != 0 && b.hasFrequency(freq) {
			band = b
			break
		}
		if band == nil && len(b.BitrateAttributes) > 0 {
			band = b
		}
	}
	if band == nil {
		return nil, fmt.Errorf("wifi: PHY %d reports no band with bitrates", p.Index)
	}

	caps := band.capabilities()
	for bit := 0; bit < 8*len(p.ExtendedCapabilities); bit++ {
		if p.ExtendedCapabilities.Bit(bit) {
			caps.ExtendedCapabilities = append(caps.ExtendedCapabilities, bit)
		}
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	return caps, nil
}

// Capabilities returns the station capabilities the band supports: its
// legacy rates and its HT and VHT capabilities.
func (b *BandAttributes) Capabilities() (*dot11.Capabilities, error) {
	caps := b.capabilities()
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	return caps, nil
}

func (b *BandAttributes) capabilities() *dot11.Capabilities {
	var caps dot11.Capabilities
	for _, r := range b.BitrateAttributes {
		caps.Rates = append(caps.Rates, r.Bitrate)
		if r.ShortPreamble {
			caps.ShortPreamble = true
		}
	}
	if b.HTCapabilities != nil {
		caps.HT = b.HTCapabilities.Config()
		if b.VHTCapabilities != nil {
			caps.VHT = b.VHTCapabilities.Config()
		}
	}
	return &caps
}

func (b *BandAttributes) hasFrequency(freq int) bool {
	for _, f := range b.FrequencyAttributes {
		if f.Frequency == freq {
			return true
		}
	}
	return false
}

// FrequencyToChannel returns the channel number given the frequency in MHz, as
// defined by IEEE 802.11-2020 Annex E. It returns 0 for unknown frequencies.
func FrequencyToChannel(freq int) int {
	switch {
	case freq == 2484:
		return 14
	case freq >= 2412 && freq < 2484:
		return (freq - 2407) / 5
	case freq >= 4910 && freq <= 4980:
		return (freq - 4000) / 5
	case freq == 5935:
		return 2
	case freq > 5950 && freq <= 7115:
		return (freq - 5950) / 5
	case freq >= 5000 && freq <= 5900:
		return (freq - 5000) / 5
	case freq >= 58320 && freq <= 70200:
		return (freq - 56160) / 2160
	default:
		return 0
	}
}

// ChannelToFrequency returns the frequency given the channel number and the
// band, as there are overlapping channel numbers between bands.
func ChannelToFrequency(channel int, band Band) int {
	if channel <= 0 {
		return 0
	}

	switch band {
	case Band2GHz:
		if channel == 14 {
			return 2484
		} else if channel < 14 {
			return 2407 + channel*5
		}
	case Band5GHz:
		if channel >= 182 && channel <= 196 {
			return 4000 + channel*5
		}
		return 5000 + channel*5
	case Band6GHz:
		if channel == 2 {
			return 5935
		}
		if channel <= 233 {
			return 5950 + channel*5
		}
	case Band60GHz:
		if channel <= 6 {
			return 56160 + channel*2160
		}
	}
	return 0
}
