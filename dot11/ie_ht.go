package dot11

import "encoding/binary"

// HTCapabilityInfo is the HT Capability Information field.
type HTCapabilityInfo struct {
	LDPC               bool
	ChannelWidth40     bool
	SMPowerSave        uint8
	Greenfield         bool
	ShortGI20          bool
	ShortGI40          bool
	TxSTBC             bool
	RxSTBC             uint8
	DelayedBlockAck    bool
	MaxAMSDU7935       bool
	DSSSCCK40          bool
	FortyMHzIntolerant bool
	LSIGTXOPProtection bool
}

// HTCapabilities is the HT Capabilities element (IEEE 802.11-2020 9.4.2.55).
type HTCapabilities struct {
	Info             HTCapabilityInfo
	MaxAMPDUExponent uint8
	MinMPDUSpacing   uint8
	SupportedMCS     [16]byte
	ExtendedCaps     uint16
	TxBeamforming    uint32
	ASELCapabilities uint8
}

func (h *HTCapabilities) unmarshal(b []byte) error {
	if err := wantLen("HT capabilities", b, 26); err != nil {
		return err
	}
	w, err := readWord(htCapabilityInfoLayout, b[0:2])
	if err != nil {
		return err
	}
	h.Info = HTCapabilityInfo{
		LDPC:               w.isSet("ldpc"),
		ChannelWidth40:     w.isSet("channel_width_40"),
		SMPowerSave:        uint8(w.get("sm_power_save")),
		Greenfield:         w.isSet("greenfield"),
		ShortGI20:          w.isSet("sgi_20"),
		ShortGI40:          w.isSet("sgi_40"),
		TxSTBC:             w.isSet("tx_stbc"),
		RxSTBC:             uint8(w.get("rx_stbc")),
		DelayedBlockAck:    w.isSet("delayed_block_ack"),
		MaxAMSDU7935:       w.isSet("max_amsdu_7935"),
		DSSSCCK40:          w.isSet("dsss_cck_40"),
		FortyMHzIntolerant: w.isSet("forty_mhz_intolerant"),
		LSIGTXOPProtection: w.isSet("lsig_txop_protection"),
	}

	a, err := readWord(ampduParamsLayout, b[2:3])
	if err != nil {
		return err
	}
	h.MaxAMPDUExponent = uint8(a.get("max_length_exponent"))
	h.MinMPDUSpacing = uint8(a.get("min_mpdu_spacing"))

	copy(h.SupportedMCS[:], b[3:19])
	h.ExtendedCaps = binary.LittleEndian.Uint16(b[19:21])
	h.TxBeamforming = binary.LittleEndian.Uint32(b[21:25])
	h.ASELCapabilities = b[25]
	return nil
}

func (h *HTCapabilities) marshal() ([]byte, error) {
	i := h.Info
	b, err := newWord(htCapabilityInfoLayout).
		flag("ldpc", i.LDPC).
		flag("channel_width_40", i.ChannelWidth40).
		set("sm_power_save", uint32(i.SMPowerSave)).
		flag("greenfield", i.Greenfield).
		flag("sgi_20", i.ShortGI20).
		flag("sgi_40", i.ShortGI40).
		flag("tx_stbc", i.TxSTBC).
		set("rx_stbc", uint32(i.RxSTBC)).
		flag("delayed_block_ack", i.DelayedBlockAck).
		flag("max_amsdu_7935", i.MaxAMSDU7935).
		flag("dsss_cck_40", i.DSSSCCK40).
		flag("forty_mhz_intolerant", i.FortyMHzIntolerant).
		flag("lsig_txop_protection", i.LSIGTXOPProtection).
		append(make([]byte, 0, 26))
	if err != nil {
		return nil, err
	}

	b, err = newWord(ampduParamsLayout).
		set("max_length_exponent", uint32(h.MaxAMPDUExponent)).
		set("min_mpdu_spacing", uint32(h.MinMPDUSpacing)).
		append(b)
	if err != nil {
		return nil, err
	}

	b = append(b, h.SupportedMCS[:]...)
	b = binary.LittleEndian.AppendUint16(b, h.ExtendedCaps)
	b = binary.LittleEndian.AppendUint32(b, h.TxBeamforming)
	return append(b, h.ASELCapabilities), nil
}

// ParseHTCapabilityInfo decodes an HT Capability Information field held in
// host order, as nl80211 reports it per band.
func ParseHTCapabilityInfo(v uint16) HTCapabilityInfo {
	b := make([]byte, 26)
	binary.LittleEndian.PutUint16(b, v)

	var h HTCapabilities
	_ = h.unmarshal(b)
	return h.Info
}

// HTOperation is the HT Operation element (IEEE 802.11-2020 9.4.2.56).
type HTOperation struct {
	PrimaryChannel          uint8
	SecondaryChannelOffset  uint8
	STAChannelWidth         bool
	RIFS                    bool
	HTProtection            uint8
	NonGreenfieldPresent    bool
	OBSSNonHTPresent        bool
	CenterFrequencySegment2 uint8
	DualBeacon              bool
	DualCTSProtection       bool
	STBCBeacon              bool
	BasicMCS                [16]byte
}

func (h *HTOperation) unmarshal(b []byte) error {
	if err := wantLen("HT operation", b, 22); err != nil {
		return err
	}
	h.PrimaryChannel = b[0]

	w1, err := readWord(htOperationInfo1Layout, b[1:2])
	if err != nil {
		return err
	}
	w2, err := readWord(htOperationInfo2Layout, b[2:4])
	if err != nil {
		return err
	}
	w3, err := readWord(htOperationInfo3Layout, b[4:6])
	if err != nil {
		return err
	}

	h.SecondaryChannelOffset = uint8(w1.get("secondary_channel_offset"))
	h.STAChannelWidth = w1.isSet("sta_channel_width")
	h.RIFS = w1.isSet("rifs")
	h.HTProtection = uint8(w2.get("ht_protection"))
	h.NonGreenfieldPresent = w2.isSet("non_greenfield_present")
	h.OBSSNonHTPresent = w2.isSet("obss_non_ht_present")
	h.CenterFrequencySegment2 = uint8(w2.get("center_frequency_segment_2"))
	h.DualBeacon = w3.isSet("dual_beacon")
	h.DualCTSProtection = w3.isSet("dual_cts_protection")
	h.STBCBeacon = w3.isSet("stbc_beacon")

	copy(h.BasicMCS[:], b[6:22])
	return nil
}

func (h *HTOperation) marshal() ([]byte, error) {
	b := make([]byte, 1, 22)
	b[0] = h.PrimaryChannel

	b, err := newWord(htOperationInfo1Layout).
		set("secondary_channel_offset", uint32(h.SecondaryChannelOffset)).
		flag("sta_channel_width", h.STAChannelWidth).
		flag("rifs", h.RIFS).
		append(b)
	if err != nil {
		return nil, err
	}
	b, err = newWord(htOperationInfo2Layout).
		set("ht_protection", uint32(h.HTProtection)).
		flag("non_greenfield_present", h.NonGreenfieldPresent).
		flag("obss_non_ht_present", h.OBSSNonHTPresent).
		set("center_frequency_segment_2", uint32(h.CenterFrequencySegment2)).
		append(b)
	if err != nil {
		return nil, err
	}
	b, err = newWord(htOperationInfo3Layout).
		flag("dual_beacon", h.DualBeacon).
		flag("dual_cts_protection", h.DualCTSProtection).
		flag("stbc_beacon", h.STBCBeacon).
		append(b)
	if err != nil {
		return nil, err
	}

	return append(b, h.BasicMCS[:]...), nil
}

// VHTCapabilityInfo is the VHT Capabilities Information field.
type VHTCapabilityInfo struct {
	MaxMPDULength         uint8
	SupportedChannelWidth uint8
	RxLDPC                bool
	ShortGI80             bool
	ShortGI160            bool
	TxSTBC                bool
	RxSTBC                uint8
	SUBeamformer          bool
	SUBeamformee          bool
	BeamformeeSTS         uint8
	SoundingDimensions    uint8
	MUBeamformer          bool
	MUBeamformee          bool
	TXOPPowerSave         bool
	HTCVHT                bool
	MaxAMPDUExponent      uint8
	LinkAdaptation        uint8
	RxAntennaPattern      bool
	TxAntennaPattern      bool
	ExtendedNSSBW         uint8
}

// VHTMCSNSS is the Supported VHT-MCS and NSS Set field.
type VHTMCSNSS struct {
	RxMCSMap      uint16
	RxHighestRate uint16
	TxMCSMap      uint16
	TxHighestRate uint16
}

// VHTCapabilities is the VHT Capabilities element (IEEE 802.11-2020 9.4.2.157).
type VHTCapabilities struct {
	Info VHTCapabilityInfo
	MCS  VHTMCSNSS
}

func (v *VHTCapabilities) unmarshal(b []byte) error {
	if err := wantLen("VHT capabilities", b, 12); err != nil {
		return err
	}
	w, err := readWord(vhtCapabilityInfoLayout, b[0:4])
	if err != nil {
		return err
	}
	v.Info = VHTCapabilityInfo{
		MaxMPDULength:         uint8(w.get("max_mpdu_length")),
		SupportedChannelWidth: uint8(w.get("supported_channel_width")),
		RxLDPC:                w.isSet("rx_ldpc"),
		ShortGI80:             w.isSet("sgi_80"),
		ShortGI160:            w.isSet("sgi_160"),
		TxSTBC:                w.isSet("tx_stbc"),
		RxSTBC:                uint8(w.get("rx_stbc")),
		SUBeamformer:          w.isSet("su_beamformer"),
		SUBeamformee:          w.isSet("su_beamformee"),
		BeamformeeSTS:         uint8(w.get("beamformee_sts")),
		SoundingDimensions:    uint8(w.get("sounding_dimensions")),
		MUBeamformer:          w.isSet("mu_beamformer"),
		MUBeamformee:          w.isSet("mu_beamformee"),
		TXOPPowerSave:         w.isSet("txop_ps"),
		HTCVHT:                w.isSet("htc_vht"),
		MaxAMPDUExponent:      uint8(w.get("max_ampdu_exponent")),
		LinkAdaptation:        uint8(w.get("link_adaptation")),
		RxAntennaPattern:      w.isSet("rx_antenna_pattern"),
		TxAntennaPattern:      w.isSet("tx_antenna_pattern"),
		ExtendedNSSBW:         uint8(w.get("extended_nss_bw")),
	}
	v.MCS = VHTMCSNSS{
		RxMCSMap:      binary.LittleEndian.Uint16(b[4:6]),
		RxHighestRate: binary.LittleEndian.Uint16(b[6:8]),
		TxMCSMap:      binary.LittleEndian.Uint16(b[8:10]),
		TxHighestRate: binary.LittleEndian.Uint16(b[10:12]),
	}
	return nil
}

func (v *VHTCapabilities) marshal() ([]byte, error) {
	i := v.Info
	b, err := newWord(vhtCapabilityInfoLayout).
		set("max_mpdu_length", uint32(i.MaxMPDULength)).
		set("supported_channel_width", uint32(i.SupportedChannelWidth)).
		flag("rx_ldpc", i.RxLDPC).
		flag("sgi_80", i.ShortGI80).
		flag("sgi_160", i.ShortGI160).
		flag("tx_stbc", i.TxSTBC).
		set("rx_stbc", uint32(i.RxSTBC)).
		flag("su_beamformer", i.SUBeamformer).
		flag("su_beamformee", i.SUBeamformee).
		set("beamformee_sts", uint32(i.BeamformeeSTS)).
		set("sounding_dimensions", uint32(i.SoundingDimensions)).
		flag("mu_beamformer", i.MUBeamformer).
		flag("mu_beamformee", i.MUBeamformee).
		flag("txop_ps", i.TXOPPowerSave).
		flag("htc_vht", i.HTCVHT).
		set("max_ampdu_exponent", uint32(i.MaxAMPDUExponent)).
		set("link_adaptation", uint32(i.LinkAdaptation)).
		flag("rx_antenna_pattern", i.RxAntennaPattern).
		flag("tx_antenna_pattern", i.TxAntennaPattern).
		set("extended_nss_bw", uint32(i.ExtendedNSSBW)).
		append(make([]byte, 0, 12))
	if err != nil {
		return nil, err
	}

	b = binary.LittleEndian.AppendUint16(b, v.MCS.RxMCSMap)
	b = binary.LittleEndian.AppendUint16(b, v.MCS.RxHighestRate)
	b = binary.LittleEndian.AppendUint16(b, v.MCS.TxMCSMap)
	return binary.LittleEndian.AppendUint16(b, v.MCS.TxHighestRate), nil
}

// ParseVHTCapabilityInfo decodes a VHT Capabilities Information field held
// in host order.
func ParseVHTCapabilityInfo(v uint32) VHTCapabilityInfo {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b, v)

	var h VHTCapabilities
	_ = h.unmarshal(b)
	return h.Info
}

// ParseVHTMCSNSS decodes the 8-byte Supported VHT-MCS and NSS Set field.
func ParseVHTMCSNSS(b []byte) (VHTMCSNSS, error) {
	if err := wantLen("VHT MCS set", b, 8); err != nil {
		return VHTMCSNSS{}, err
	}
	return VHTMCSNSS{
		RxMCSMap:      binary.LittleEndian.Uint16(b[0:2]),
		RxHighestRate: binary.LittleEndian.Uint16(b[2:4]),
		TxMCSMap:      binary.LittleEndian.Uint16(b[4:6]),
		TxHighestRate: binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// VHTOperation is the VHT Operation element. Center frequency segments are
// channel numbers.
type VHTOperation struct {
	ChannelWidth uint8
	CCFS0        uint8
	CCFS1        uint8
	BasicMCSMap  uint16
}

func (v *VHTOperation) unmarshal(b []byte) error {
	if err := wantLen("VHT operation", b, 5); err != nil {
		return err
	}
	v.ChannelWidth, v.CCFS0, v.CCFS1 = b[0], b[1], b[2]
	v.BasicMCSMap = binary.LittleEndian.Uint16(b[3:5])
	return nil
}

func (v *VHTOperation) marshal() ([]byte, error) {
	return binary.LittleEndian.AppendUint16([]byte{v.ChannelWidth, v.CCFS0, v.CCFS1}, v.BasicMCSMap), nil
}

// TransmitPowerEnvelope carries the maximum transmit power per channel
// width, in units of 0.5 dBm.
type TransmitPowerEnvelope struct {
	Info     uint8
	MaxPower []int8
}

func (t *TransmitPowerEnvelope) unmarshal(b []byte) error {
	if len(b) < 2 || len(b) > 5 {
		return malformed("transmit power envelope: length %d", len(b))
	}
	t.Info = b[0]
	t.MaxPower = make([]int8, len(b)-1)
	for i := range t.MaxPower {
		t.MaxPower[i] = int8(b[i+1])
	}
	return nil
}

func (t *TransmitPowerEnvelope) marshal() ([]byte, error) {
	b := []byte{t.Info}
	for _, p := range t.MaxPower {
		b = append(b, byte(p))
	}
	return b, nil
}

// OperatingMode is the Operating Mode Notification element.
type OperatingMode struct {
	ChannelWidth uint8
	BW160        bool
	NoLDPC       bool
	RxNSS        uint8
	RxNSSType    bool
}

func (o *OperatingMode) unmarshal(b []byte) error {
	if err := wantLen("operating mode", b, 1); err != nil {
		return err
	}
	w, err := readWord(operatingModeLayout, b)
	if err != nil {
		return err
	}
	*o = OperatingMode{
		ChannelWidth: uint8(w.get("channel_width")),
		BW160:        w.isSet("bw_160"),
		NoLDPC:       w.isSet("no_ldpc"),
		RxNSS:        uint8(w.get("rx_nss")),
		RxNSSType:    w.isSet("rx_nss_type"),
	}
	return nil
}

func (o *OperatingMode) marshal() ([]byte, error) {
	return newWord(operatingModeLayout).
		set("channel_width", uint32(o.ChannelWidth)).
		flag("bw_160", o.BW160).
		flag("no_ldpc", o.NoLDPC).
		set("rx_nss", uint32(o.RxNSS)).
		flag("rx_nss_type", o.RxNSSType).
		append(nil)
}

// HECapabilities is the HE Capabilities extension element. The MCS/NSS set
// and PPE thresholds that follow the PHY capabilities vary in length with
// the PHY channel width bits and are kept as received.
type HECapabilities struct {
	MAC  [6]byte
	PHY  [11]byte
	Rest []byte
}

func (h *HECapabilities) unmarshal(b []byte) error {
	if len(b) < 21 {
		return malformed("HE capabilities: length %d", len(b))
	}
	copy(h.MAC[:], b[0:6])
	copy(h.PHY[:], b[6:17])
	h.Rest = clone(b[17:])
	return nil
}

func (h *HECapabilities) marshal() ([]byte, error) {
	b := make([]byte, 0, 17+len(h.Rest))
	b = append(b, h.MAC[:]...)
	b = append(b, h.PHY[:]...)
	return append(b, h.Rest...), nil
}

// BSSColor is the BSS Color Information field.
type BSSColor struct {
	Color    uint8
	Partial  bool
	Disabled bool
}

// HEVHTOperationInfo is carried when an HE BSS also operates as VHT.
type HEVHTOperationInfo struct {
	ChannelWidth uint8
	CCFS0        uint8
	CCFS1        uint8
}

// SixGHzOperationInfo describes a 6 GHz BSS.
type SixGHzOperationInfo struct {
	PrimaryChannel uint8
	Control        uint8
	CCFS0          uint8
	CCFS1          uint8
	MinRate        uint8
}

// HEOperation is the HE Operation extension element. The optional trailing
// fields are present exactly when their pointer is non-nil; the matching
// presence bits in the parameters are derived from them.
type HEOperation struct {
	DefaultPEDuration uint8
	TWTRequired       bool
	TXOPRTSThreshold  uint16
	ERSUDisable       bool
	Color             BSSColor
	BasicMCSNSS       uint16
	VHTOperation      *HEVHTOperationInfo
	MaxCoHostedBSSID  *uint8
	SixGHz            *SixGHzOperationInfo
}

func (h *HEOperation) unmarshal(b []byte) error {
	if len(b) < 6 {
		return malformed("HE operation: length %d", len(b))
	}
	p, err := readWord(heOperationParamsLayout, b[0:3])
	if err != nil {
		return err
	}
	c, err := readWord(bssColorLayout, b[3:4])
	if err != nil {
		return err
	}

	*h = HEOperation{
		DefaultPEDuration: uint8(p.get("default_pe_duration")),
		TWTRequired:       p.isSet("twt_required"),
		TXOPRTSThreshold:  uint16(p.get("txop_rts_threshold")),
		ERSUDisable:       p.isSet("er_su_disable"),
		Color: BSSColor{
			Color:    uint8(c.get("color")),
			Partial:  c.isSet("partial"),
			Disabled: c.isSet("disabled"),
		},
		BasicMCSNSS: binary.LittleEndian.Uint16(b[4:6]),
	}

	want := 6
	if p.isSet("vht_operation_present") {
		want += 3
	}
	if p.isSet("co_hosted_bss") {
		want++
	}
	if p.isSet("six_ghz_operation_present") {
		want += 5
	}
	if len(b) != want {
		return malformed("HE operation: length %d, presence bits need %d", len(b), want)
	}

	rest := b[6:]
	if p.isSet("vht_operation_present") {
		h.VHTOperation = &HEVHTOperationInfo{ChannelWidth: rest[0], CCFS0: rest[1], CCFS1: rest[2]}
		rest = rest[3:]
	}
	if p.isSet("co_hosted_bss") {
		x := rest[0]
		h.MaxCoHostedBSSID = &x
		rest = rest[1:]
	}
	if p.isSet("six_ghz_operation_present") {
		h.SixGHz = &SixGHzOperationInfo{
			PrimaryChannel: rest[0],
			Control:        rest[1],
			CCFS0:          rest[2],
			CCFS1:          rest[3],
			MinRate:        rest[4],
		}
	}
	return nil
}

func (h *HEOperation) marshal() ([]byte, error) {
	b, err := newWord(heOperationParamsLayout).
		set("default_pe_duration", uint32(h.DefaultPEDuration)).
		flag("twt_required", h.TWTRequired).
		set("txop_rts_threshold", uint32(h.TXOPRTSThreshold)).
		flag("vht_operation_present", h.VHTOperation != nil).
		flag("co_hosted_bss", h.MaxCoHostedBSSID != nil).
		flag("er_su_disable", h.ERSUDisable).
		flag("six_ghz_operation_present", h.SixGHz != nil).
		append(make([]byte, 0, 15))
	if err != nil {
		return nil, err
	}
	b, err = newWord(bssColorLayout).
		set("color", uint32(h.Color.Color)).
		flag("partial", h.Color.Partial).
		flag("disabled", h.Color.Disabled).
		append(b)
	if err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint16(b, h.BasicMCSNSS)

	if v := h.VHTOperation; v != nil {
		b = append(b, v.ChannelWidth, v.CCFS0, v.CCFS1)
	}
	if h.MaxCoHostedBSSID != nil {
		b = append(b, *h.MaxCoHostedBSSID)
	}
	if s := h.SixGHz; s != nil {
		b = append(b, s.PrimaryChannel, s.Control, s.CCFS0, s.CCFS1, s.MinRate)
	}
	return b, nil
}
