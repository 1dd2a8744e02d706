package dot11

import (
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Capabilities is a station's static capability snapshot, usually loaded
// from a TOML file. Once validated it is only read, and the request
// builders derive every transmitted capability element from it.
type Capabilities struct {
	ListenInterval uint16 `toml:"listen_interval"`
	ShortPreamble  bool   `toml:"short_preamble"`
	ShortSlotTime  bool   `toml:"short_slot_time"`

	// Rates and BasicRates are in Mbit/s. Basic rates must also appear in
	// Rates.
	Rates      []float64 `toml:"rates"`
	BasicRates []float64 `toml:"basic_rates"`

	// ExtendedCapabilities lists the bit numbers to set in the Extended
	// Capabilities element.
	ExtendedCapabilities []int `toml:"extended_capabilities"`

	Power    *PowerConfig    `toml:"power"`
	Channels []ChannelConfig `toml:"channels"`
	WMM      *WMMConfig      `toml:"wmm"`
	HT       *HTConfig       `toml:"ht"`
	VHT      *VHTConfig      `toml:"vht"`
}

// PowerConfig is the transmit power range in dBm.
type PowerConfig struct {
	Min int8 `toml:"min"`
	Max int8 `toml:"max"`
}

// ChannelConfig is one Supported Channels subband.
type ChannelConfig struct {
	First uint8 `toml:"first"`
	Count uint8 `toml:"count"`
}

// WMMConfig enables WMM and names the access categories that use U-APSD:
// any of "vo", "vi", "bk" and "be".
type WMMConfig struct {
	UAPSD       []string `toml:"uapsd"`
	MaxSPLength uint8    `toml:"max_sp_length"`
}

// HTConfig describes the station's HT capabilities.
type HTConfig struct {
	LDPC               bool   `toml:"ldpc"`
	ChannelWidth40     bool   `toml:"channel_width_40"`
	SMPowerSave        string `toml:"sm_power_save"`
	Greenfield         bool   `toml:"greenfield"`
	ShortGI20          bool   `toml:"short_gi_20"`
	ShortGI40          bool   `toml:"short_gi_40"`
	TxSTBC             bool   `toml:"tx_stbc"`
	RxSTBC             uint8  `toml:"rx_stbc"`
	MaxAMSDU7935       bool   `toml:"max_amsdu_7935"`
	FortyMHzIntolerant bool   `toml:"forty_mhz_intolerant"`
	MaxAMPDUExponent   uint8  `toml:"max_ampdu_exponent"`
	MinMPDUSpacing     uint8  `toml:"min_mpdu_spacing"`

	// RxMCS lists the supported receive MCS indices, 0 through 76.
	RxMCS []int `toml:"rx_mcs"`
}

// VHTConfig describes the station's VHT capabilities.
type VHTConfig struct {
	MaxMPDULength         uint8 `toml:"max_mpdu_length"`
	SupportedChannelWidth uint8 `toml:"supported_channel_width"`
	RxLDPC                bool  `toml:"rx_ldpc"`
	ShortGI80             bool  `toml:"short_gi_80"`
	ShortGI160            bool  `toml:"short_gi_160"`
	TxSTBC                bool  `toml:"tx_stbc"`
	RxSTBC                uint8 `toml:"rx_stbc"`
	SUBeamformer          bool  `toml:"su_beamformer"`
	SUBeamformee          bool  `toml:"su_beamformee"`
	MaxAMPDUExponent      uint8 `toml:"max_ampdu_exponent"`

	// SpatialStreams streams each support MCS 0 through MaxMCS, which is
	// 7, 8 or 9.
	SpatialStreams int `toml:"spatial_streams"`
	MaxMCS         int `toml:"max_mcs"`
}

// DecodeCapabilities reads and validates a TOML capability snapshot.
func DecodeCapabilities(r io.Reader) (*Capabilities, error) {
	var c Capabilities
	md, err := toml.NewDecoder(r).Decode(&c)
	if err != nil {
		return nil, fmt.Errorf("dot11: parse capabilities: %w", err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return nil, fmt.Errorf("dot11: unknown capability keys: %v", keys)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCapabilities reads and validates the TOML capability snapshot at path.
func LoadCapabilities(path string) (*Capabilities, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dot11: load capabilities: %w", err)
	}
	defer f.Close()

	return DecodeCapabilities(f)
}

// Validate checks that every capability can be encoded.
func (c *Capabilities) Validate() error {
	_, err := c.base()
	return err
}

// ProbeRequest builds a Probe Request for ssid. An empty ssid is the
// wildcard SSID.
func (c *Capabilities) ProbeRequest(ssid []byte) (*ProbeRequest, error) {
	e, err := c.base()
	if err != nil {
		return nil, err
	}
	if err := e.setSSID(ssid); err != nil {
		return nil, err
	}
	return &ProbeRequest{Elements: *e}, nil
}

// AssocRequest builds an Association Request for ssid. rsn may be nil for
// an open network.
func (c *Capabilities) AssocRequest(ssid []byte, rsn *RSN) (*AssocRequest, error) {
	e, err := c.request(ssid, rsn)
	if err != nil {
		return nil, err
	}
	return &AssocRequest{
		Capability:     c.capabilityInfo(),
		ListenInterval: c.ListenInterval,
		Elements:       *e,
	}, nil
}

// ReassocRequest builds a Reassociation Request for ssid, moving from the
// access point currentAP.
func (c *Capabilities) ReassocRequest(ssid []byte, currentAP net.HardwareAddr, rsn *RSN) (*ReassocRequest, error) {
	if len(currentAP) != 6 {
		return nil, fmt.Errorf("dot11: current AP address %q is not an EUI-48", currentAP.String())
	}
	e, err := c.request(ssid, rsn)
	if err != nil {
		return nil, err
	}
	return &ReassocRequest{
		Capability:     c.capabilityInfo(),
		ListenInterval: c.ListenInterval,
		CurrentAP:      append(net.HardwareAddr(nil), currentAP...),
		Elements:       *e,
	}, nil
}

func (c *Capabilities) capabilityInfo() CapabilityInfo {
	return CapabilityInfo{
		ESS:                true,
		ShortPreamble:      c.ShortPreamble,
		ShortSlotTime:      c.ShortSlotTime,
		SpectrumManagement: c.Power != nil,
	}
}

// request adds the association-only elements to the base set.
func (c *Capabilities) request(ssid []byte, rsn *RSN) (*Elements, error) {
	e, err := c.base()
	if err != nil {
		return nil, err
	}
	if err := e.setSSID(ssid); err != nil {
		return nil, err
	}

	if p := c.Power; p != nil {
		e.PowerCapability = &PowerCapability{Min: p.Min, Max: p.Max}
	}
	if len(c.Channels) > 0 {
		sc := make(SupportedChannels, 0, len(c.Channels))
		for _, ch := range c.Channels {
			sc = append(sc, ChannelRange{First: ch.First, Count: ch.Count})
		}
		e.SupportedChannels = &sc
	}
	if rsn != nil {
		r := *rsn
		e.RSN = &r
	}
	if w := c.WMM; w != nil {
		qi, err := w.qosInfo()
		if err != nil {
			return nil, err
		}
		e.WMMInfo = &WMMInfo{Version: 1, QoSInfo: qi}
	}

	return e, nil
}

// base builds the elements common to every request: rates, extended
// capabilities, HT and VHT.
func (c *Capabilities) base() (*Elements, error) {
	var e Elements

	rs, err := c.rates()
	if err != nil {
		return nil, err
	}
	e.SetRates(rs)

	if len(c.ExtendedCapabilities) > 0 {
		var ec ExtendedCapabilities
		for _, bit := range c.ExtendedCapabilities {
			if bit < 0 || bit >= 8*255 {
				return nil, fmt.Errorf("dot11: extended capability bit %d out of range", bit)
			}
			for len(ec) <= bit/8 {
				ec = append(ec, 0)
			}
			ec[bit/8] |= 1 << (bit % 8)
		}
		e.ExtendedCapabilities = &ec
	}

	if p := c.Power; p != nil && p.Min > p.Max {
		return nil, fmt.Errorf("dot11: power range %d..%d dBm is inverted", p.Min, p.Max)
	}
	for _, ch := range c.Channels {
		if ch.First == 0 || ch.Count == 0 {
			return nil, fmt.Errorf("dot11: invalid channel range %d+%d", ch.First, ch.Count)
		}
	}
	if 2*len(c.Channels) > maxSupportedChannels {
		return nil, fmt.Errorf("dot11: %d channel ranges, at most %d", len(c.Channels), maxSupportedChannels/2)
	}
	if w := c.WMM; w != nil {
		if _, err := w.qosInfo(); err != nil {
			return nil, err
		}
	}

	if c.HT != nil {
		ht, err := c.HT.capabilities()
		if err != nil {
			return nil, err
		}
		e.HTCapabilities = ht
	}
	if c.VHT != nil {
		if c.HT == nil {
			return nil, fmt.Errorf("dot11: VHT capabilities require HT capabilities")
		}
		vht, err := c.VHT.capabilities()
		if err != nil {
			return nil, err
		}
		e.VHTCapabilities = vht
	}

	return &e, nil
}

func (e *Elements) setSSID(ssid []byte) error {
	if len(ssid) > 32 {
		return fmt.Errorf("dot11: SSID length %d, at most 32", len(ssid))
	}
	s := SSID(clone(ssid))
	e.SSID = &s
	return nil
}

// rates converts the configured rates to 500 kbit/s units, flagging the
// basic rates.
func (c *Capabilities) rates() (Rates, error) {
	if len(c.Rates) == 0 {
		return nil, fmt.Errorf("dot11: no rates configured")
	}
	if len(c.Rates) > maxSupportedRates+255 {
		return nil, fmt.Errorf("dot11: %d rates configured", len(c.Rates))
	}

	basic := make(map[Rate]bool, len(c.BasicRates))
	for _, m := range c.BasicRates {
		r, err := toRate(m)
		if err != nil {
			return nil, err
		}
		basic[r] = true
	}

	rs := make(Rates, 0, len(c.Rates))
	seen := make(map[Rate]bool, len(c.Rates))
	for _, m := range c.Rates {
		r, err := toRate(m)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			return nil, fmt.Errorf("dot11: duplicate rate %v Mbit/s", m)
		}
		seen[r] = true

		if basic[r] {
			r |= 0x80
		}
		rs = append(rs, r)
	}
	for r := range basic {
		if !seen[r] {
			return nil, fmt.Errorf("dot11: basic rate %v Mbit/s is not a supported rate", float64(r)/2)
		}
	}

	return rs, nil
}

func toRate(mbps float64) (Rate, error) {
	u := mbps * 2
	if u < 1 || u > 127 || u != math.Trunc(u) {
		return 0, fmt.Errorf("dot11: invalid rate %v Mbit/s", mbps)
	}
	return Rate(u), nil
}

func (w *WMMConfig) qosInfo() (QoSInfo, error) {
	if w.MaxSPLength > 3 {
		return QoSInfo{}, fmt.Errorf("dot11: WMM max service period length %d, at most 3", w.MaxSPLength)
	}

	qi := QoSInfo{MaxSPLength: w.MaxSPLength}
	for _, ac := range w.UAPSD {
		switch strings.ToLower(strings.TrimSpace(ac)) {
		case "vo":
			qi.VOUAPSD = true
		case "vi":
			qi.VIUAPSD = true
		case "bk":
			qi.BKUAPSD = true
		case "be":
			qi.BEUAPSD = true
		default:
			return QoSInfo{}, fmt.Errorf("dot11: unknown WMM access category %q", ac)
		}
	}
	return qi, nil
}

// SM power save modes as carried in the HT capability information field.
var smPowerSaveModes = map[string]uint8{
	"static":   0,
	"dynamic":  1,
	"disabled": 3,
	"":         3,
}

func (h *HTConfig) capabilities() (*HTCapabilities, error) {
	sm, ok := smPowerSaveModes[strings.ToLower(h.SMPowerSave)]
	if !ok {
		return nil, fmt.Errorf("dot11: unknown SM power save mode %q", h.SMPowerSave)
	}
	switch {
	case h.RxSTBC > 3:
		return nil, fmt.Errorf("dot11: HT rx STBC %d, at most 3", h.RxSTBC)
	case h.MaxAMPDUExponent > 3:
		return nil, fmt.Errorf("dot11: HT max A-MPDU exponent %d, at most 3", h.MaxAMPDUExponent)
	case h.MinMPDUSpacing > 7:
		return nil, fmt.Errorf("dot11: HT min MPDU spacing %d, at most 7", h.MinMPDUSpacing)
	}

	ht := &HTCapabilities{
		Info: HTCapabilityInfo{
			LDPC:               h.LDPC,
			ChannelWidth40:     h.ChannelWidth40,
			SMPowerSave:        sm,
			Greenfield:         h.Greenfield,
			ShortGI20:          h.ShortGI20,
			ShortGI40:          h.ShortGI40,
			TxSTBC:             h.TxSTBC,
			RxSTBC:             h.RxSTBC,
			MaxAMSDU7935:       h.MaxAMSDU7935,
			FortyMHzIntolerant: h.FortyMHzIntolerant,
		},
		MaxAMPDUExponent: h.MaxAMPDUExponent,
		MinMPDUSpacing:   h.MinMPDUSpacing,
	}

	for _, mcs := range h.RxMCS {
		if mcs < 0 || mcs > 76 {
			return nil, fmt.Errorf("dot11: HT MCS index %d out of range", mcs)
		}
		ht.SupportedMCS[mcs/8] |= 1 << (mcs % 8)
	}
	if len(h.RxMCS) > 0 {
		// Tx MCS set defined, equal to the Rx set.
		ht.SupportedMCS[12] = 0x01
	}

	return ht, nil
}

// vhtMCSNotSupported marks a spatial stream as unused in a VHT MCS map.
const vhtMCSNotSupported = 3

func (v *VHTConfig) capabilities() (*VHTCapabilities, error) {
	switch {
	case v.MaxMPDULength > 2:
		return nil, fmt.Errorf("dot11: VHT max MPDU length %d, at most 2", v.MaxMPDULength)
	case v.SupportedChannelWidth > 2:
		return nil, fmt.Errorf("dot11: VHT supported channel width %d, at most 2", v.SupportedChannelWidth)
	case v.RxSTBC > 4:
		return nil, fmt.Errorf("dot11: VHT rx STBC %d, at most 4", v.RxSTBC)
	case v.MaxAMPDUExponent > 7:
		return nil, fmt.Errorf("dot11: VHT max A-MPDU exponent %d, at most 7", v.MaxAMPDUExponent)
	case v.SpatialStreams < 1 || v.SpatialStreams > 8:
		return nil, fmt.Errorf("dot11: VHT spatial streams %d, want 1 through 8", v.SpatialStreams)
	case v.MaxMCS < 7 || v.MaxMCS > 9:
		return nil, fmt.Errorf("dot11: VHT max MCS %d, want 7, 8 or 9", v.MaxMCS)
	}

	var m uint16
	for nss := 0; nss < 8; nss++ {
		x := uint16(vhtMCSNotSupported)
		if nss < v.SpatialStreams {
			x = uint16(v.MaxMCS - 7)
		}
		m |= x << (2 * nss)
	}

	return &VHTCapabilities{
		Info: VHTCapabilityInfo{
			MaxMPDULength:         v.MaxMPDULength,
			SupportedChannelWidth: v.SupportedChannelWidth,
			RxLDPC:                v.RxLDPC,
			ShortGI80:             v.ShortGI80,
			ShortGI160:            v.ShortGI160,
			TxSTBC:                v.TxSTBC,
			RxSTBC:                v.RxSTBC,
			SUBeamformer:          v.SUBeamformer,
			SUBeamformee:          v.SUBeamformee,
			MaxAMPDUExponent:      v.MaxAMPDUExponent,
		},
		MCS: VHTMCSNSS{
			RxMCSMap: m,
			TxMCSMap: m,
		},
	}, nil
}

// Config returns the configuration that rebuilds h. Fields the
// configuration cannot express, such as transmit beamforming and the
// delayed block ack bit, are dropped.
func (h *HTCapabilities) Config() *HTConfig {
	i := h.Info
	sm := "disabled"
	switch i.SMPowerSave {
	case 0:
		sm = "static"
	case 1:
		sm = "dynamic"
	}

	c := &HTConfig{
		LDPC:               i.LDPC,
		ChannelWidth40:     i.ChannelWidth40,
		SMPowerSave:        sm,
		Greenfield:         i.Greenfield,
		ShortGI20:          i.ShortGI20,
		ShortGI40:          i.ShortGI40,
		TxSTBC:             i.TxSTBC,
		RxSTBC:             i.RxSTBC,
		MaxAMSDU7935:       i.MaxAMSDU7935,
		FortyMHzIntolerant: i.FortyMHzIntolerant,
		MaxAMPDUExponent:   h.MaxAMPDUExponent,
		MinMPDUSpacing:     h.MinMPDUSpacing,
	}
	for mcs := 0; mcs <= 76; mcs++ {
		if h.SupportedMCS[mcs/8]&(1<<(mcs%8)) != 0 {
			c.RxMCS = append(c.RxMCS, mcs)
		}
	}
	return c
}

// Config returns the configuration that rebuilds v, or nil if its receive
// MCS map supports no spatial stream. The map is reduced to a stream count
// and the maximum MCS of the first stream.
func (v *VHTCapabilities) Config() *VHTConfig {
	m := v.MCS.RxMCSMap
	if m&3 == vhtMCSNotSupported {
		return nil
	}

	streams := 0
	for nss := 0; nss < 8 && (m>>(2*nss))&3 != vhtMCSNotSupported; nss++ {
		streams++
	}

	i := v.Info
	return &VHTConfig{
		MaxMPDULength:         i.MaxMPDULength,
		SupportedChannelWidth: i.SupportedChannelWidth,
		RxLDPC:                i.RxLDPC,
		ShortGI80:             i.ShortGI80,
		ShortGI160:            i.ShortGI160,
		TxSTBC:                i.TxSTBC,
		RxSTBC:                i.RxSTBC,
		SUBeamformer:          i.SUBeamformer,
		SUBeamformee:          i.SUBeamformee,
		MaxAMPDUExponent:      i.MaxAMPDUExponent,
		SpatialStreams:        streams,
		MaxMCS:                7 + int(m&3),
	}
}
