//go:build linux

package wifi

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"github.com/rs/zerolog"
	"github.com/wlanctl/wifi/dot11"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sys/unix"
)

var (
	ErrNotSupported      = errors.New("not supported")
	ErrScanGroupNotFound = errors.New("scan multicast group unavailable")
	ErrScanAborted       = errors.New("scan aborted by the kernel")
	ErrScanValidation    = errors.New("scan validation failed")
)

// A client is the Linux implementation of the Client's operations, which
// makes use of generic netlink and nl80211.
type client struct {
	c             *genetlink.Conn
	familyID      uint16
	familyVersion uint8

	codec *dot11.Codec
	log   zerolog.Logger

	// scan serializes Scan calls.
	scan sync.Mutex
}

// newClient dials a generic netlink connection and verifies that nl80211
// is available for use by this package.
func newClient(cfg *config) (*client, error) {
	c, err := genetlink.Dial(nil)
	if err != nil {
		return nil, err
	}

	// Strict checking is best effort, as older kernels reject it.
	for _, o := range []netlink.ConnOption{
		netlink.ExtendedAcknowledge,
		netlink.GetStrictCheck,
	} {
		_ = c.SetOption(o, true)
	}

	return initClient(c, cfg)
}

func initClient(c *genetlink.Conn, cfg *config) (*client, error) {
	family, err := c.GetFamily(unix.NL80211_GENL_NAME)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	return &client{
		c:             c,
		familyID:      family.ID,
		familyVersion: family.Version,
		codec:         cfg.codec,
		log:           cfg.log,
	}, nil
}

// Close closes the client's generic netlink connection.
func (c *client) Close() error { return c.c.Close() }

// SetDeadline sets the read and write deadlines associated with the connection.
func (c *client) SetDeadline(t time.Time) error { return c.c.SetDeadline(t) }

// SetReadDeadline sets the read deadline associated with the connection.
func (c *client) SetReadDeadline(t time.Time) error { return c.c.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline associated with the connection.
func (c *client) SetWriteDeadline(t time.Time) error { return c.c.SetWriteDeadline(t) }

// Interfaces requests that nl80211 return a list of all WiFi interfaces present
// on this system.
func (c *client) Interfaces() ([]*Interface, error) {
	msgs, err := c.get(unix.NL80211_CMD_GET_INTERFACE, netlink.Dump, nil, nil)
	if err != nil {
		return nil, err
	}

	ifis := make([]*Interface, 0, len(msgs))
	for _, m := range msgs {
		var ifi Interface
		if err := ifi.decode(m.Data); err != nil {
			return nil, err
		}
		ifis = append(ifis, &ifi)
	}
	return ifis, nil
}

// PHYs dumps every wireless device and its per-band capabilities.
func (c *client) PHYs() ([]*PHY, error) { return c.phys(nil) }

// PHY returns the wireless device ifi belongs to.
func (c *client) PHY(ifi *Interface) (*PHY, error) {
	phys, err := c.phys(ifi)
	if err != nil {
		return nil, err
	}

	for _, p := range phys {
		if p.Index == ifi.PHY {
			return p, nil
		}
	}
	return nil, fmt.Errorf("wifi: no PHY %d for interface %q: %w", ifi.PHY, ifi.Name, os.ErrNotExist)
}

// phys requests a split wiphy dump, optionally filtered to ifi's device.
// A split dump spreads one device over several messages, which are merged
// by device index.
func (c *client) phys(ifi *Interface) ([]*PHY, error) {
	msgs, err := c.get(
		unix.NL80211_CMD_GET_WIPHY,
		netlink.Dump,
		ifi,
		func(ae *netlink.AttributeEncoder) {
			ae.Flag(unix.NL80211_ATTR_SPLIT_WIPHY_DUMP, true)
		},
	)
	if err != nil {
		return nil, err
	}

	var (
		phys    []*PHY
		byIndex = make(map[int]*PHY)
	)
	for _, m := range msgs {
		attrs, err := netlink.UnmarshalAttributes(m.Data)
		if err != nil {
			return nil, err
		}

		idx := 0
		for _, a := range attrs {
			if a.Type == unix.NL80211_ATTR_WIPHY {
				idx = int(nlenc.Uint32(a.Data))
			}
		}

		p, ok := byIndex[idx]
		if !ok {
			p = &PHY{Index: idx}
			byIndex[idx] = p
			phys = append(phys, p)
		}
		if err := p.decode(m.Data); err != nil {
			return nil, err
		}
	}
	return phys, nil
}

// BSS returns the BSS the interface is authenticated or associated with.
func (c *client) BSS(ifi *Interface) (*BSS, error) {
	bsss, err := c.AccessPoints(ifi)
	if err != nil {
		return nil, err
	}

	for _, b := range bsss {
		if b.Status != BSSStatusNotAssociated {
			return b, nil
		}
	}
	return nil, fmt.Errorf("wifi: no BSS for interface %q: %w", ifi.Name, os.ErrNotExist)
}

// AccessPoints dumps the kernel's scan results for the interface.
func (c *client) AccessPoints(ifi *Interface) ([]*BSS, error) {
	msgs, err := c.get(unix.NL80211_CMD_GET_SCAN, netlink.Dump, ifi, nil)
	if err != nil {
		return nil, err
	}

	bsss := make([]*BSS, 0, len(msgs))
	for _, m := range msgs {
		attrs, err := netlink.UnmarshalAttributes(m.Data)
		if err != nil {
			return nil, err
		}

		for _, a := range attrs {
			if a.Type != unix.NL80211_ATTR_BSS {
				continue
			}

			b, err := c.parseBSS(a.Data)
			if err != nil {
				return nil, err
			}
			bsss = append(bsss, b)
		}
	}
	return bsss, nil
}

// Connect starts connecting the interface to an open network. ies, if
// non-empty, are appended by the kernel to the association request.
func (c *client) Connect(ifi *Interface, ssid string, ies []byte) error {
	_, err := c.get(
		unix.NL80211_CMD_CONNECT,
		netlink.Acknowledge,
		ifi,
		func(ae *netlink.AttributeEncoder) {
			ae.Bytes(unix.NL80211_ATTR_SSID, []byte(ssid))
			ae.Uint32(unix.NL80211_ATTR_AUTH_TYPE, unix.NL80211_AUTHTYPE_OPEN_SYSTEM)
			if len(ies) > 0 {
				ae.Bytes(unix.NL80211_ATTR_IE, ies)
			}
		},
	)
	return err
}

// Disconnect disconnects the interface.
func (c *client) Disconnect(ifi *Interface) error {
	_, err := c.get(unix.NL80211_CMD_DISCONNECT, netlink.Acknowledge, ifi, nil)
	return err
}

// ConnectWPAPSK starts a WPA2-PSK connection with the 4-way handshake
// offloaded to the device. ies carries the RSN element the request
// advertises.
func (c *client) ConnectWPAPSK(ifi *Interface, ssid, psk string, ies []byte) error {
	support, err := c.checkExtFeature(ifi, unix.NL80211_EXT_FEATURE_4WAY_HANDSHAKE_STA_PSK)
	if err != nil {
		return err
	}
	if !support {
		return ErrNotSupported
	}

	_, err = c.get(
		unix.NL80211_CMD_CONNECT,
		netlink.Acknowledge,
		ifi,
		func(ae *netlink.AttributeEncoder) {
			ae.Bytes(unix.NL80211_ATTR_SSID, []byte(ssid))
			ae.Uint32(unix.NL80211_ATTR_WPA_VERSIONS, unix.NL80211_WPA_VERSION_2)
			ae.Uint32(unix.NL80211_ATTR_CIPHER_SUITE_GROUP, uint32(dot11.CipherCCMP128))
			ae.Uint32(unix.NL80211_ATTR_CIPHER_SUITES_PAIRWISE, uint32(dot11.CipherCCMP128))
			ae.Uint32(unix.NL80211_ATTR_AKM_SUITES, uint32(dot11.AKMPSK))
			ae.Flag(unix.NL80211_ATTR_WANT_1X_4WAY_HS, true)
			ae.Bytes(unix.NL80211_ATTR_PMK, wpaPassphrase([]byte(ssid), []byte(psk)))
			ae.Uint32(unix.NL80211_ATTR_AUTH_TYPE, unix.NL80211_AUTHTYPE_OPEN_SYSTEM)
			if len(ies) > 0 {
				ae.Bytes(unix.NL80211_ATTR_IE, ies)
			}
		},
	)
	return err
}

// wpaPassphrase derives the WPA pairwise master key from an SSID and
// passphrase.
func wpaPassphrase(ssid, psk []byte) []byte {
	return pbkdf2.Key(psk, ssid, 4096, 32, sha1.New)
}

// Scan triggers a scan for ssids on the interface and waits for the
// kernel to announce new results. It uses a separate connection joined to
// nl80211's scan multicast group.
//
// If a scan is already in progress the kernel returns EBUSY. If a result
// notification cannot be validated, the returned error includes
// ErrScanValidation.
func (c *client) Scan(ctx context.Context, ifi *Interface, ssids []string, ies []byte) error {
	c.scan.Lock()
	defer c.scan.Unlock()

	conn, err := genetlink.Dial(&netlink.Config{Strict: true})
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	family, err := conn.GetFamily(unix.NL80211_GENL_NAME)
	if err != nil {
		return err
	}

	var id uint32
	for _, g := range family.Groups {
		if g.Name == unix.NL80211_MULTICAST_GROUP_SCAN {
			id = g.ID
			break
		}
	}
	if id == 0 {
		return ErrScanGroupNotFound
	}
	if err := conn.JoinGroup(id); err != nil {
		return err
	}
	defer func() { _ = conn.LeaveGroup(id) }()

	data, err := scanRequest(ifi, ssids, ies)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer close(result)
		result <- listenNewScanResults(ctx, conn, ifi.Index, c.familyVersion)
	}()

	c.log.Debug().
		Str("interface", ifi.Name).
		Int("ssids", len(ssids)).
		Int("ie_bytes", len(ies)).
		Msg("triggering scan")

	_, err = conn.Send(
		genetlink.Message{
			Header: genetlink.Header{
				Command: unix.NL80211_CMD_TRIGGER_SCAN,
				Version: c.familyVersion,
			},
			Data: data,
		},
		family.ID,
		netlink.Request|netlink.Acknowledge,
	)
	if err != nil {
		// Closing conn unblocks the listener.
		return err
	}

	return <-result
}

// scanRequest encodes the attributes of a TRIGGER_SCAN request. An empty
// ssids list scans for the wildcard SSID.
func scanRequest(ifi *Interface, ssids []string, ies []byte) ([]byte, error) {
	if len(ssids) == 0 {
		ssids = []string{""}
	}

	ae := netlink.NewAttributeEncoder()
	ifi.encode(ae)
	ae.Nested(unix.NL80211_ATTR_SCAN_SSIDS, func(nae *netlink.AttributeEncoder) error {
		for i, s := range ssids {
			nae.Bytes(uint16(i+1), []byte(s))
		}
		return nil
	})
	if len(ies) > 0 {
		ae.Bytes(unix.NL80211_ATTR_IE, ies)
	}
	return ae.Encode()
}

// listenNewScanResults receives on conn until nl80211 announces new scan
// results or an aborted scan for the interface with index ifiIndex.
//
// The caller must not receive on conn and is responsible for closing it.
func listenNewScanResults(ctx context.Context, conn *genetlink.Conn, ifiIndex int, familyVersion uint8) error {
	for ctx.Err() == nil {
		msgs, _, err := conn.Receive()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}

		for _, m := range msgs {
			if m.Header.Version != familyVersion {
				continue
			}

			switch m.Header.Command {
			case unix.NL80211_CMD_SCAN_ABORTED:
				return ErrScanAborted
			case unix.NL80211_CMD_NEW_SCAN_RESULTS:
				var ifi Interface
				if err := ifi.decode(m.Data); err != nil {
					return errors.Join(ErrScanValidation, err)
				}
				if ifi.Index == ifiIndex {
					return nil
				}
			}
		}
	}

	return ctx.Err()
}

// get performs a request/response interaction with nl80211. params, if
// non-nil, adds attributes after the interface's.
func (c *client) get(
	cmd uint8,
	flags netlink.HeaderFlags,
	ifi *Interface,
	params func(ae *netlink.AttributeEncoder),
) ([]genetlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	ifi.encode(ae)
	if params != nil {
		params(ae)
	}

	b, err := ae.Encode()
	if err != nil {
		return nil, err
	}

	return c.c.Execute(
		genetlink.Message{
			Header: genetlink.Header{
				Command: cmd,
				Version: c.familyVersion,
			},
			Data: b,
		},
		c.familyID,
		netlink.Request|flags,
	)
}

// parseBSS decodes the nested NL80211_ATTR_BSS attributes of one scan
// result. Elements that fail to decode are logged and recorded in the
// Outcome; they never fail the whole dump.
func (c *client) parseBSS(b []byte) (*BSS, error) {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return nil, err
	}

	bss := BSS{Status: BSSStatusNotAssociated}
	var ies, beaconIEs []byte
	for ad.Next() {
		switch ad.Type() {
		case unix.NL80211_BSS_BSSID:
			bss.BSSID = net.HardwareAddr(ad.Bytes())
		case unix.NL80211_BSS_FREQUENCY:
			bss.Frequency = int(ad.Uint32())
		case unix.NL80211_BSS_BEACON_INTERVAL:
			// Time units of 1024 microseconds.
			bss.BeaconInterval = time.Duration(ad.Uint16()) * 1024 * time.Microsecond
		case unix.NL80211_BSS_SEEN_MS_AGO:
			bss.LastSeen = time.Duration(ad.Uint32()) * time.Millisecond
		case unix.NL80211_BSS_STATUS:
			bss.Status = BSSStatus(ad.Uint32())
		case unix.NL80211_BSS_CAPABILITY:
			bss.Capability = dot11.ParseCapabilityInfo(ad.Uint16())
		case unix.NL80211_BSS_SIGNAL_MBM:
			bss.Signal = float64(int32(ad.Uint32())) / 100
		case unix.NL80211_BSS_INFORMATION_ELEMENTS:
			ies = ad.Bytes()
		case unix.NL80211_BSS_BEACON_IES:
			beaconIEs = ad.Bytes()
		}
	}
	if err := ad.Err(); err != nil {
		return nil, err
	}

	// The kernel reports probe response elements when it has them, and
	// otherwise only the beacon's.
	t := dot11.FrameProbeResponse
	if ies == nil && beaconIEs != nil {
		t, ies = dot11.FrameBeacon, beaconIEs
	}
	if ies == nil {
		return &bss, nil
	}

	e, o, err := c.codec.UnpackElements(t, ies)
	bss.Elements, bss.Outcome = e, o
	switch {
	case err != nil:
		c.log.Debug().
			Err(err).
			Stringer("bssid", bss.BSSID).
			Msg("discarding undecodable BSS elements")
	case o.Status == dot11.StatusWarning:
		c.log.Debug().
			Stringer("bssid", bss.BSSID).
			Int("warnings", len(o.Warnings)).
			Msg("BSS elements decoded with warnings")
	}
	if e != nil && e.SSID != nil {
		bss.SSID = e.SSID.String()
	}

	return &bss, nil
}

// encode adds the attributes identifying ifi. If ifi is nil, encode is a
// no-op.
func (ifi *Interface) encode(ae *netlink.AttributeEncoder) {
	if ifi == nil {
		return
	}
	ae.Uint32(unix.NL80211_ATTR_IFINDEX, uint32(ifi.Index))
}

// decode parses the attributes of an nl80211 interface message.
func (ifi *Interface) decode(b []byte) error {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return err
	}

	for ad.Next() {
		switch ad.Type() {
		case unix.NL80211_ATTR_IFINDEX:
			ifi.Index = int(ad.Uint32())
		case unix.NL80211_ATTR_IFNAME:
			ifi.Name = ad.String()
		case unix.NL80211_ATTR_MAC:
			ifi.HardwareAddr = net.HardwareAddr(ad.Bytes())
		case unix.NL80211_ATTR_WIPHY:
			ifi.PHY = int(ad.Uint32())
		case unix.NL80211_ATTR_IFTYPE:
			ifi.Type = InterfaceType(ad.Uint32())
		case unix.NL80211_ATTR_WDEV:
			ifi.Device = int(ad.Uint64())
		case unix.NL80211_ATTR_WIPHY_FREQ:
			ifi.Frequency = int(ad.Uint32())
		}
	}
	return ad.Err()
}

// checkExtFeature reports whether the interface's PHY advertises the
// nl80211 extended feature bit.
func (c *client) checkExtFeature(ifi *Interface, feature uint) (bool, error) {
	p, err := c.PHY(ifi)
	if err != nil {
		return false, err
	}
	return p.HasExtendedFeature(feature), nil
}

// decode merges one message of a split wiphy dump into p.
func (p *PHY) decode(b []byte) error {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return err
	}

	for ad.Next() {
		switch ad.Type() {
		case unix.NL80211_ATTR_WIPHY_NAME:
			p.Name = ad.String()
		case unix.NL80211_ATTR_SUPPORTED_IFTYPES:
			// Each interface type is a flag attribute of that type.
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					p.SupportedIftypes = append(p.SupportedIftypes, InterfaceType(nad.Type()))
				}
				return nil
			})
		case unix.NL80211_ATTR_EXT_CAPA:
			p.ExtendedCapabilities = dot11.ExtendedCapabilities(ad.Bytes())
		case unix.NL80211_ATTR_EXT_FEATURES:
			p.ExtendedFeatures = ad.Bytes()
		case unix.NL80211_ATTR_WIPHY_BANDS:
			// Bands are nested by their nl80211 band number.
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					nad.Nested(p.band(Band(nad.Type())).decode)
				}
				return nil
			})
		}
	}
	return ad.Err()
}

// band returns the attributes of band b, adding them if absent.
func (p *PHY) band(b Band) *BandAttributes {
	for i := range p.BandAttributes {
		if p.BandAttributes[i].Band == b {
			return &p.BandAttributes[i]
		}
	}
	p.BandAttributes = append(p.BandAttributes, BandAttributes{Band: b})
	return &p.BandAttributes[len(p.BandAttributes)-1]
}

func (b *BandAttributes) decode(ad *netlink.AttributeDecoder) error {
	for ad.Next() {
		switch ad.Type() {
		case unix.NL80211_BAND_ATTR_HT_CAPA:
			b.ht().Info = dot11.ParseHTCapabilityInfo(ad.Uint16())
		case unix.NL80211_BAND_ATTR_HT_MCS_SET:
			copy(b.ht().SupportedMCS[:], ad.Bytes())
		case unix.NL80211_BAND_ATTR_HT_AMPDU_FACTOR:
			b.ht().MaxAMPDUExponent = ad.Uint8()
		case unix.NL80211_BAND_ATTR_HT_AMPDU_DENSITY:
			b.ht().MinMPDUSpacing = ad.Uint8()
		case unix.NL80211_BAND_ATTR_VHT_CAPA:
			b.vht().Info = dot11.ParseVHTCapabilityInfo(ad.Uint32())
		case unix.NL80211_BAND_ATTR_VHT_MCS_SET:
			mcs, err := dot11.ParseVHTMCSNSS(ad.Bytes())
			if err != nil {
				return err
			}
			b.vht().MCS = mcs
		case unix.NL80211_BAND_ATTR_FREQS:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					var f FrequencyAttrs
					nad.Nested(f.decode)
					b.FrequencyAttributes = append(b.FrequencyAttributes, f)
				}
				return nil
			})
		case unix.NL80211_BAND_ATTR_RATES:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					var r BitrateAttrs
					nad.Nested(r.decode)
					b.BitrateAttributes = append(b.BitrateAttributes, r)
				}
				return nil
			})
		}
	}
	return nil
}

func (b *BandAttributes) ht() *dot11.HTCapabilities {
	if b.HTCapabilities == nil {
		b.HTCapabilities = new(dot11.HTCapabilities)
	}
	return b.HTCapabilities
}

func (b *BandAttributes) vht() *dot11.VHTCapabilities {
	if b.VHTCapabilities == nil {
		b.VHTCapabilities = new(dot11.VHTCapabilities)
	}
	return b.VHTCapabilities
}

func (f *FrequencyAttrs) decode(ad *netlink.AttributeDecoder) error {
	for ad.Next() {
		switch ad.Type() {
		case unix.NL80211_FREQUENCY_ATTR_FREQ:
			f.Frequency = int(ad.Uint32())
		case unix.NL80211_FREQUENCY_ATTR_DISABLED:
			f.Disabled = true
		case unix.NL80211_FREQUENCY_ATTR_NO_IR:
			f.NoIR = true
		case unix.NL80211_FREQUENCY_ATTR_RADAR:
			f.RadarDetection = true
		case unix.NL80211_FREQUENCY_ATTR_MAX_TX_POWER:
			// mBm
			f.MaxTxPower = float64(ad.Uint32()) / 100
		}
	}
	return nil
}

func (r *BitrateAttrs) decode(ad *netlink.AttributeDecoder) error {
	for ad.Next() {
		switch ad.Type() {
		case unix.NL80211_BITRATE_ATTR_RATE:
			// Units of 100 kbit/s.
			r.Bitrate = float64(ad.Uint32()) / 10
		case unix.NL80211_BITRATE_ATTR_2GHZ_SHORTPREAMBLE:
			r.ShortPreamble = true
		}
	}
	return nil
}
