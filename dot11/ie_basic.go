package dot11

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// A payload is an element body that can be decoded from and encoded to the
// bytes that follow the element header (and the key prefix, if any).
type payload interface {
	unmarshal(b []byte) error
	marshal() ([]byte, error)
}

// A keyed payload records the descriptor key it was decoded under.
type keyed interface {
	setKey(k Key)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func wantLen(name string, b []byte, n int) error {
	if len(b) != n {
		return malformed("%s: length %d, want %d", name, len(b), n)
	}
	return nil
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// An SSID is the service set identifier, up to 32 octets. It is not
// required to be valid UTF-8.
type SSID []byte

// String safely decodes the SSID as UTF-8, replacing invalid sequences.
func (s SSID) String() string {
	b := []byte(s)
	buf := bytes.NewBuffer(nil)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]

		buf.WriteRune(r)
	}

	return buf.String()
}

func (s *SSID) unmarshal(b []byte) error { *s = clone(b); return nil }
func (s *SSID) marshal() ([]byte, error) { return clone(*s), nil }

// A Rate is a data rate in units of 500 kb/s. The high bit marks a rate in
// the BSS basic rate set.
type Rate uint8

// Basic reports whether r is a member of the basic rate set.
func (r Rate) Basic() bool { return r&0x80 != 0 }

// Kbps returns the rate in kb/s, without the basic flag.
func (r Rate) Kbps() int { return int(r&0x7f) * 500 }

// Rates is a Supported Rates or Extended Supported Rates list.
type Rates []Rate

func (r *Rates) unmarshal(b []byte) error {
	rs := make(Rates, len(b))
	for i := range b {
		rs[i] = Rate(b[i])
	}
	*r = rs
	return nil
}

func (r *Rates) marshal() ([]byte, error) {
	b := make([]byte, len(*r))
	for i, x := range *r {
		b[i] = byte(x)
	}
	return b, nil
}

// DSParameterSet carries the current channel for DSSS PHYs.
type DSParameterSet struct {
	Channel uint8
}

func (d *DSParameterSet) unmarshal(b []byte) error {
	if err := wantLen("DS parameter set", b, 1); err != nil {
		return err
	}
	d.Channel = b[0]
	return nil
}

func (d *DSParameterSet) marshal() ([]byte, error) { return []byte{d.Channel}, nil }

// TIM is the Traffic Indication Map.
type TIM struct {
	DTIMCount     uint8
	DTIMPeriod    uint8
	BitmapControl uint8
	Bitmap        []byte
}

func (t *TIM) unmarshal(b []byte) error {
	if len(b) < 4 {
		return malformed("TIM: length %d", len(b))
	}
	t.DTIMCount = b[0]
	t.DTIMPeriod = b[1]
	t.BitmapControl = b[2]
	t.Bitmap = clone(b[3:])
	return nil
}

func (t *TIM) marshal() ([]byte, error) {
	b := []byte{t.DTIMCount, t.DTIMPeriod, t.BitmapControl}
	return append(b, t.Bitmap...), nil
}

// A CountryTriplet is a subband: a first channel, a channel count and a
// maximum transmit power in dBm. First channels of 201 and above denote an
// operating extension identifier instead.
type CountryTriplet struct {
	FirstChannel uint8
	NumChannels  uint8
	MaxPower     uint8
}

// Country carries the regulatory country string and subband triplets.
// Validating the triplets against a regulatory domain is the caller's
// responsibility.
type Country struct {
	Code     [3]byte
	Triplets []CountryTriplet

	// Padded records the optional trailing pad octet used to keep the
	// element length even.
	Padded bool
}

func (c *Country) unmarshal(b []byte) error {
	if len(b) < 3 {
		return malformed("country: length %d", len(b))
	}
	copy(c.Code[:], b[:3])
	b = b[3:]

	if len(b)%3 == 1 && b[len(b)-1] == 0 {
		c.Padded = true
		b = b[:len(b)-1]
	}
	if len(b)%3 != 0 {
		return malformed("country: %d trailing octets", len(b)%3)
	}

	c.Triplets = make([]CountryTriplet, 0, len(b)/3)
	for i := 0; i < len(b); i += 3 {
		c.Triplets = append(c.Triplets, CountryTriplet{
			FirstChannel: b[i],
			NumChannels:  b[i+1],
			MaxPower:     b[i+2],
		})
	}

	return nil
}

func (c *Country) marshal() ([]byte, error) {
	b := append([]byte(nil), c.Code[:]...)
	for _, t := range c.Triplets {
		b = append(b, t.FirstChannel, t.NumChannels, t.MaxPower)
	}
	if c.Padded {
		b = append(b, 0)
	}
	return b, nil
}

// BSSLoad is an Information Element containing measurements of the load on
// the BSS.
type BSSLoad struct {
	// Version: Indicates the version of the BSS Load Element. Can be 1 or 2;
	// zero packs the standard version 2 form.
	Version int

	// StationCount: total number of STA currently associated with this BSS.
	StationCount uint16

	// ChannelUtilization: Percentage of time (linearly scaled 0 to 255)
	// that the AP sensed the medium was busy.
	ChannelUtilization uint8

	// AvailableAdmissionCapacity: remaining amount of medium time available
	// via explicit admission control, in units of 32 us/s for version 2.
	AvailableAdmissionCapacity uint16
}

// String returns the string representation of a BSSLoad.
func (l BSSLoad) String() string {
	switch l.Version {
	case 1:
		return fmt.Sprintf("BSSLoad Version: %d    stationCount: %d    channelUtilization: %d/255     availableAdmissionCapacity: %d",
			l.Version, l.StationCount, l.ChannelUtilization, l.AvailableAdmissionCapacity)
	case 2:
		return fmt.Sprintf("BSSLoad Version: %d    stationCount: %d    channelUtilization: %d/255     availableAdmissionCapacity: %d [*32us/s]",
			l.Version, l.StationCount, l.ChannelUtilization, l.AvailableAdmissionCapacity)
	default:
		return fmt.Sprintf("invalid BSSLoad Version: %d", l.Version)
	}
}

// unmarshal decodes version 2 (802.11e CCA, 5 octets) and Cisco QBSS
// version 1 (4 octets) BSS Load elements, as Wireshark and iw do.
func (l *BSSLoad) unmarshal(b []byte) error {
	switch len(b) {
	case 5:
		l.Version = 2
		l.StationCount = binary.LittleEndian.Uint16(b[0:2])
		l.ChannelUtilization = b[2]
		l.AvailableAdmissionCapacity = binary.LittleEndian.Uint16(b[3:5])
	case 4:
		l.Version = 1
		l.StationCount = binary.LittleEndian.Uint16(b[0:2])
		l.ChannelUtilization = b[2]
		l.AvailableAdmissionCapacity = uint16(b[3])
	default:
		return malformed("BSS load: length %d", len(b))
	}
	return nil
}

func (l *BSSLoad) marshal() ([]byte, error) {
	b := make([]byte, 2, 5)
	binary.LittleEndian.PutUint16(b, l.StationCount)
	b = append(b, l.ChannelUtilization)

	switch l.Version {
	case 1:
		if l.AvailableAdmissionCapacity > 0xff {
			return nil, malformed("BSS load: version 1 capacity %d", l.AvailableAdmissionCapacity)
		}
		return append(b, uint8(l.AvailableAdmissionCapacity)), nil
	case 0, 2:
		return binary.LittleEndian.AppendUint16(b, l.AvailableAdmissionCapacity), nil
	default:
		return nil, malformed("BSS load: version %d", l.Version)
	}
}

// PowerConstraint is the local power constraint in dB.
type PowerConstraint struct {
	Reduction uint8
}

func (p *PowerConstraint) unmarshal(b []byte) error {
	if err := wantLen("power constraint", b, 1); err != nil {
		return err
	}
	p.Reduction = b[0]
	return nil
}

func (p *PowerConstraint) marshal() ([]byte, error) { return []byte{p.Reduction}, nil }

// PowerCapability is a station's minimum and maximum transmit power in dBm.
type PowerCapability struct {
	Min int8
	Max int8
}

func (p *PowerCapability) unmarshal(b []byte) error {
	if err := wantLen("power capability", b, 2); err != nil {
		return err
	}
	p.Min, p.Max = int8(b[0]), int8(b[1])
	return nil
}

func (p *PowerCapability) marshal() ([]byte, error) {
	return []byte{byte(p.Min), byte(p.Max)}, nil
}

// TPCRequest has no body; its presence is the request.
type TPCRequest struct{}

func (*TPCRequest) unmarshal(b []byte) error {
	return wantLen("TPC request", b, 0)
}

func (*TPCRequest) marshal() ([]byte, error) { return []byte{}, nil }

// TPCReport is a transmit power and link margin report.
type TPCReport struct {
	TransmitPower int8
	LinkMargin    int8
}

func (t *TPCReport) unmarshal(b []byte) error {
	if err := wantLen("TPC report", b, 2); err != nil {
		return err
	}
	t.TransmitPower, t.LinkMargin = int8(b[0]), int8(b[1])
	return nil
}

func (t *TPCReport) marshal() ([]byte, error) {
	return []byte{byte(t.TransmitPower), byte(t.LinkMargin)}, nil
}

// A ChannelRange is a first channel and a count of channels.
type ChannelRange struct {
	First uint8
	Count uint8
}

// SupportedChannels lists the channel ranges a station can operate on.
type SupportedChannels []ChannelRange

func (s *SupportedChannels) unmarshal(b []byte) error {
	if len(b)%2 != 0 {
		return malformed("supported channels: odd length %d", len(b))
	}
	cs := make(SupportedChannels, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		cs = append(cs, ChannelRange{First: b[i], Count: b[i+1]})
	}
	*s = cs
	return nil
}

func (s *SupportedChannels) marshal() ([]byte, error) {
	b := make([]byte, 0, 2*len(*s))
	for _, r := range *s {
		b = append(b, r.First, r.Count)
	}
	return b, nil
}

// ChannelSwitch is a Channel Switch Announcement.
type ChannelSwitch struct {
	// Mode set means no further frames until the switch.
	Mode       uint8
	NewChannel uint8
	Count      uint8
}

func (c *ChannelSwitch) unmarshal(b []byte) error {
	if err := wantLen("channel switch", b, 3); err != nil {
		return err
	}
	c.Mode, c.NewChannel, c.Count = b[0], b[1], b[2]
	return nil
}

func (c *ChannelSwitch) marshal() ([]byte, error) {
	return []byte{c.Mode, c.NewChannel, c.Count}, nil
}

// ERPInfo is the Extended Rate PHY information element.
type ERPInfo struct {
	NonERPPresent      bool
	UseProtection      bool
	BarkerPreambleMode bool
}

func (e *ERPInfo) unmarshal(b []byte) error {
	if err := wantLen("ERP information", b, 1); err != nil {
		return err
	}
	w, err := readWord(erpInfoLayout, b)
	if err != nil {
		return err
	}
	e.NonERPPresent = w.isSet("non_erp_present")
	e.UseProtection = w.isSet("use_protection")
	e.BarkerPreambleMode = w.isSet("barker_preamble")
	return nil
}

func (e *ERPInfo) marshal() ([]byte, error) {
	return newWord(erpInfoLayout).
		flag("non_erp_present", e.NonERPPresent).
		flag("use_protection", e.UseProtection).
		flag("barker_preamble", e.BarkerPreambleMode).
		append(nil)
}

// SecondaryChannelOffset places the secondary 20 MHz channel above (1) or
// below (3) the primary, or nowhere (0).
type SecondaryChannelOffset struct {
	Offset uint8
}

func (s *SecondaryChannelOffset) unmarshal(b []byte) error {
	if err := wantLen("secondary channel offset", b, 1); err != nil {
		return err
	}
	s.Offset = b[0]
	return nil
}

func (s *SecondaryChannelOffset) marshal() ([]byte, error) { return []byte{s.Offset}, nil }

// OperatingClasses is the Supported Operating Classes element.
type OperatingClasses struct {
	Current uint8
	Classes []uint8
}

func (o *OperatingClasses) unmarshal(b []byte) error {
	if len(b) < 1 {
		return malformed("operating classes: empty")
	}
	o.Current = b[0]
	o.Classes = clone(b[1:])
	return nil
}

func (o *OperatingClasses) marshal() ([]byte, error) {
	return append([]byte{o.Current}, o.Classes...), nil
}

// ExtendedCapabilities is a little-endian capability bitmap.
type ExtendedCapabilities []byte

// Bit reports whether capability bit n is set.
func (e ExtendedCapabilities) Bit(n int) bool {
	if n < 0 || n/8 >= len(e) {
		return false
	}
	return e[n/8]&(1<<(n%8)) != 0
}

// Extended capability bits referenced by this package.
const (
	ExtCapBSSTransition = 19
	ExtCapInterworking  = 31
	ExtCapQoSMap        = 32
)

func (e *ExtendedCapabilities) unmarshal(b []byte) error { *e = clone(b); return nil }
func (e *ExtendedCapabilities) marshal() ([]byte, error) { return clone(*e), nil }

// RMEnabledCapabilities is the 5-octet radio measurement capability bitmap.
type RMEnabledCapabilities [5]byte

func (r *RMEnabledCapabilities) unmarshal(b []byte) error {
	if err := wantLen("RM enabled capabilities", b, 5); err != nil {
		return err
	}
	copy(r[:], b)
	return nil
}

func (r *RMEnabledCapabilities) marshal() ([]byte, error) { return clone(r[:]), nil }

// BSSCoexistence is the 20/40 BSS Coexistence element.
type BSSCoexistence struct {
	InformationRequest    bool
	FortyMHzIntolerant    bool
	TwentyMHzWidthRequest bool
	OBSSExemptionRequest  bool
	OBSSExemptionGrant    bool
}

func (c *BSSCoexistence) unmarshal(b []byte) error {
	if err := wantLen("20/40 BSS coexistence", b, 1); err != nil {
		return err
	}
	w, err := readWord(bssCoexistenceLayout, b)
	if err != nil {
		return err
	}
	c.InformationRequest = w.isSet("information_request")
	c.FortyMHzIntolerant = w.isSet("forty_mhz_intolerant")
	c.TwentyMHzWidthRequest = w.isSet("twenty_mhz_width_request")
	c.OBSSExemptionRequest = w.isSet("obss_exemption_request")
	c.OBSSExemptionGrant = w.isSet("obss_exemption_grant")
	return nil
}

func (c *BSSCoexistence) marshal() ([]byte, error) {
	return newWord(bssCoexistenceLayout).
		flag("information_request", c.InformationRequest).
		flag("forty_mhz_intolerant", c.FortyMHzIntolerant).
		flag("twenty_mhz_width_request", c.TwentyMHzWidthRequest).
		flag("obss_exemption_request", c.OBSSExemptionRequest).
		flag("obss_exemption_grant", c.OBSSExemptionGrant).
		append(nil)
}

// OBSSScanParameters are the Overlapping BSS scan parameters, in TUs
// except for the trigger interval (seconds) and delay factor.
type OBSSScanParameters struct {
	PassiveDwell             uint16
	ActiveDwell              uint16
	TriggerInterval          uint16
	PassiveTotalPerChannel   uint16
	ActiveTotalPerChannel    uint16
	WidthTransitionDelay     uint16
	ActivityThresholdPercent uint16
}

func (o *OBSSScanParameters) fields() []*uint16 {
	return []*uint16{
		&o.PassiveDwell,
		&o.ActiveDwell,
		&o.TriggerInterval,
		&o.PassiveTotalPerChannel,
		&o.ActiveTotalPerChannel,
		&o.WidthTransitionDelay,
		&o.ActivityThresholdPercent,
	}
}

func (o *OBSSScanParameters) unmarshal(b []byte) error {
	if err := wantLen("OBSS scan parameters", b, 14); err != nil {
		return err
	}
	for i, f := range o.fields() {
		*f = binary.LittleEndian.Uint16(b[2*i:])
	}
	return nil
}

func (o *OBSSScanParameters) marshal() ([]byte, error) {
	b := make([]byte, 0, 14)
	for _, f := range o.fields() {
		b = binary.LittleEndian.AppendUint16(b, *f)
	}
	return b, nil
}

// AccessNetworkOptions is the first octet of the Interworking element.
type AccessNetworkOptions struct {
	Type     uint8
	Internet bool
	ASRA     bool
	ESR      bool
	UESA     bool
}

// Venue is a venue group and type pair.
type Venue struct {
	Group uint8
	Type  uint8
}

// Interworking advertises external network access. Venue and HESSID are
// optional; their presence is implied by the element length.
type Interworking struct {
	Options AccessNetworkOptions
	Venue   *Venue
	HESSID  *[6]byte
}

func (i *Interworking) unmarshal(b []byte) error {
	w, err := readWord(accessNetworkLayout, b)
	if err != nil {
		return err
	}
	i.Options = AccessNetworkOptions{
		Type:     uint8(w.get("type")),
		Internet: w.isSet("internet"),
		ASRA:     w.isSet("asra"),
		ESR:      w.isSet("esr"),
		UESA:     w.isSet("uesa"),
	}

	rest := b[1:]
	switch len(rest) {
	case 0:
	case 2:
		i.Venue = &Venue{Group: rest[0], Type: rest[1]}
	case 6:
		i.HESSID = new([6]byte)
		copy(i.HESSID[:], rest)
	case 8:
		i.Venue = &Venue{Group: rest[0], Type: rest[1]}
		i.HESSID = new([6]byte)
		copy(i.HESSID[:], rest[2:])
	default:
		return malformed("interworking: length %d", len(b))
	}

	return nil
}

func (i *Interworking) marshal() ([]byte, error) {
	b, err := newWord(accessNetworkLayout).
		set("type", uint32(i.Options.Type)).
		flag("internet", i.Options.Internet).
		flag("asra", i.Options.ASRA).
		flag("esr", i.Options.ESR).
		flag("uesa", i.Options.UESA).
		append(nil)
	if err != nil {
		return nil, err
	}

	if i.Venue != nil {
		b = append(b, i.Venue.Group, i.Venue.Type)
	}
	if i.HESSID != nil {
		b = append(b, i.HESSID[:]...)
	}
	return b, nil
}

// TimeoutInterval carries a typed timeout, for example the association
// comeback time.
type TimeoutInterval struct {
	Type  uint8
	Value uint32
}

func (t *TimeoutInterval) unmarshal(b []byte) error {
	if err := wantLen("timeout interval", b, 5); err != nil {
		return err
	}
	t.Type = b[0]
	t.Value = binary.LittleEndian.Uint32(b[1:5])
	return nil
}

func (t *TimeoutInterval) marshal() ([]byte, error) {
	return binary.LittleEndian.AppendUint32([]byte{t.Type}, t.Value), nil
}

// MobilityDomain identifies an 802.11r mobility domain.
type MobilityDomain struct {
	MDID            uint16
	FTOverDS        bool
	ResourceRequest bool
}

func (m *MobilityDomain) unmarshal(b []byte) error {
	if err := wantLen("mobility domain", b, 3); err != nil {
		return err
	}
	m.MDID = binary.LittleEndian.Uint16(b[0:2])
	w, err := readWord(ftCapabilityLayout, b[2:])
	if err != nil {
		return err
	}
	m.FTOverDS = w.isSet("over_ds")
	m.ResourceRequest = w.isSet("resource_request")
	return nil
}

func (m *MobilityDomain) marshal() ([]byte, error) {
	b := binary.LittleEndian.AppendUint16(nil, m.MDID)
	return newWord(ftCapabilityLayout).
		flag("over_ds", m.FTOverDS).
		flag("resource_request", m.ResourceRequest).
		append(b)
}

// ChallengeText is the shared key authentication challenge.
type ChallengeText []byte

func (c *ChallengeText) unmarshal(b []byte) error { *c = clone(b); return nil }
func (c *ChallengeText) marshal() ([]byte, error) { return clone(*c), nil }
