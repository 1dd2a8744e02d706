//go:build linux

package wifi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/genetlink/genltest"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wlanctl/wifi/dot11"
	"golang.org/x/sys/unix"
)

func TestLinux_clientInterfacesOK(t *testing.T) {
	want := []*Interface{
		{
			Index:        1,
			Name:         "wlan0",
			HardwareAddr: net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0xde, 0xad},
			PHY:          0,
			Device:       1,
			Type:         InterfaceTypeStation,
			Frequency:    2412,
		},
		{
			HardwareAddr: net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0xde, 0xae},
			PHY:          0,
			Device:       2,
			Type:         InterfaceTypeP2PDevice,
		},
	}

	msgs := make([]genetlink.Message, 0, len(want))
	for _, ifi := range want {
		msgs = append(msgs, genetlink.Message{
			Header: genetlink.Header{Command: unix.NL80211_CMD_NEW_INTERFACE},
			Data:   mustMarshalAttributes(ifi.attributes()),
		})
	}

	const flags = netlink.Request | netlink.Dump

	c := testClient(t, genltest.CheckRequest(familyID, unix.NL80211_CMD_GET_INTERFACE, flags,
		func(_ genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
			return msgs, nil
		},
	))

	got, err := c.Interfaces()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected interfaces (-want +got):\n%s", diff)
	}
}

func TestLinux_clientBSSNotExist(t *testing.T) {
	tests := []struct {
		name string
		msgs []genetlink.Message
		err  error
	}{
		{
			name: "no BSS attribute",
			msgs: []genetlink.Message{{
				Header: genetlink.Header{Command: unix.NL80211_CMD_NEW_SCAN_RESULTS},
				Data: mustMarshalAttributes([]netlink.Attribute{{
					Type: unix.NL80211_ATTR_IFINDEX,
					Data: nlenc.Uint32Bytes(1),
				}}),
			}},
		},
		{
			name: "no status attribute",
			msgs: []genetlink.Message{scanResult(bssAttrs{
				bssid: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			})},
		},
		{
			name: "no messages",
			err:  io.EOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(_ genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
				return tt.msgs, tt.err
			})

			_, err := c.BSS(&Interface{Index: 1, Name: "wlan0"})
			if !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("expected is not exist, got: %v", err)
			}
		})
	}
}

func TestLinux_clientBSSOK(t *testing.T) {
	codec := dot11.NewCodec()
	ccmp := dot11.CipherCCMP128
	ssid := dot11.SSID("Hello, 世界")
	rates := dot11.Rates{0x82, 0x84, 0x8b, 0x96, 0x0c, 0x12, 0x18, 0x24}

	elems := &dot11.Elements{
		SSID:           &ssid,
		SupportedRates: &rates,
		DSParameterSet: &dot11.DSParameterSet{Channel: 6},
		RSN: &dot11.RSN{
			Version:         1,
			GroupCipher:     &ccmp,
			PairwiseCiphers: []dot11.CipherSuite{dot11.CipherCCMP128},
			AKMs:            []dot11.AKMSuite{dot11.AKMPSK},
			Capabilities:    &dot11.RSNCapabilities{},
		},
		BSSLoad: &dot11.BSSLoad{Version: 2, StationCount: 4, ChannelUtilization: 30, AvailableAdmissionCapacity: 1000},
	}
	ies, err := codec.PackElements(dot11.FrameProbeResponse, elems)
	require.NoError(t, err)

	want := &BSS{
		SSID:           "Hello, 世界",
		BSSID:          net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		Frequency:      2437,
		BeaconInterval: 100 * 1024 * time.Microsecond,
		LastSeen:       10 * time.Second,
		Status:         BSSStatusAssociated,
		Signal:         -45.5,
		Capability:     dot11.CapabilityInfo{ESS: true, Privacy: true, ShortSlotTime: true},
		Elements:       elems,
	}

	ifi := &Interface{
		Index:        1,
		HardwareAddr: net.HardwareAddr{0xe, 0xad, 0xbe, 0xef, 0xde, 0xad},
	}

	const flags = netlink.Request | netlink.Dump

	c := testClient(t, genltest.CheckRequest(familyID, unix.NL80211_CMD_GET_SCAN, flags,
		func(greq genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
			attrs, err := netlink.UnmarshalAttributes(greq.Data)
			if err != nil {
				t.Fatalf("failed to unmarshal attributes: %v", err)
			}

			wantAttrs := []netlink.Attribute{{
				Type: unix.NL80211_ATTR_IFINDEX,
				Data: nlenc.Uint32Bytes(uint32(ifi.Index)),
			}}
			if diff := diffNetlinkAttributes(wantAttrs, attrs); diff != "" {
				t.Fatalf("unexpected request netlink attributes (-want +got):\n%s", diff)
			}

			return []genetlink.Message{
				scanResult(bssAttrs{bssid: net.HardwareAddr{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}}),
				scanResult(bssAttrs{
					bssid:      want.BSSID,
					freq:       want.Frequency,
					interval:   100,
					seenMS:     10000,
					status:     uint32(BSSStatusAssociated),
					capability: 0x0411,
					signalMBM:  -4550,
					ies:        ies,
				}),
			}, nil
		},
	))

	got, err := c.BSS(ifi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected BSS (-want +got):\n%s", diff)
	}

	assert.Equal(t, 6, got.Channel())
	assert.True(t, got.Protected())
	assert.Equal(t, uint16(4), got.Load().StationCount)
}

func TestLinux_clientAccessPointsDecodeFailures(t *testing.T) {
	codec := dot11.NewCodec()
	ssid := dot11.SSID("beacon-only")
	rates := dot11.Rates{0x82}

	beaconIEs, err := codec.PackElements(dot11.FrameBeacon, &dot11.Elements{SSID: &ssid, SupportedRates: &rates})
	require.NoError(t, err)

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	c := testClient(t, func(_ genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
		return []genetlink.Message{
			// Element length runs past the buffer.
			scanResult(bssAttrs{
				bssid: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
				ies:   []byte{0x00, 0x05, 'a'},
			}),
			// Duplicate SSID.
			scanResult(bssAttrs{
				bssid: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
				ies:   []byte{0x00, 0x01, 'a', 0x01, 0x01, 0x82, 0x00, 0x01, 'b'},
			}),
			scanResult(bssAttrs{
				bssid:     net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x03},
				beaconIEs: beaconIEs,
			}),
		}, nil
	}, WithLogger(log))

	bsss, err := c.AccessPoints(&Interface{Index: 1})
	require.NoError(t, err)
	require.Len(t, bsss, 3)

	assert.Nil(t, bsss[0].Elements)
	assert.Empty(t, bsss[0].SSID)
	assert.Equal(t, dot11.StatusFatal, bsss[0].Outcome.Status)
	require.NotNil(t, bsss[0].Outcome.Fatal)
	assert.ErrorIs(t, bsss[0].Outcome.Fatal.Err, dot11.ErrElementOverrun)

	assert.Equal(t, "a", bsss[1].SSID)
	assert.Equal(t, dot11.StatusWarning, bsss[1].Outcome.Status)

	assert.Equal(t, "beacon-only", bsss[2].SSID)
	assert.Equal(t, dot11.StatusSuccess, bsss[2].Outcome.Status)

	for _, b := range bsss {
		assert.Equal(t, BSSStatusNotAssociated, b.Status)
	}

	logs := buf.String()
	assert.Contains(t, logs, "discarding undecodable BSS elements")
	assert.Contains(t, logs, "BSS elements decoded with warnings")
}

func TestLinux_clientConnect(t *testing.T) {
	ifi := &Interface{Index: 3, Name: "wlan0"}

	const flags = netlink.Request | netlink.Acknowledge

	var got map[uint16][]byte
	c := testClient(t, genltest.CheckRequest(familyID, unix.NL80211_CMD_CONNECT, flags,
		func(greq genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
			got = attributeMap(t, greq.Data)
			return ackMessage(greq), nil
		},
	))

	require.NoError(t, c.Connect(ifi, "office", extCaps))

	want := map[uint16][]byte{
		unix.NL80211_ATTR_IFINDEX:   nlenc.Uint32Bytes(3),
		unix.NL80211_ATTR_SSID:      []byte("office"),
		unix.NL80211_ATTR_AUTH_TYPE: nlenc.Uint32Bytes(unix.NL80211_AUTHTYPE_OPEN_SYSTEM),
		unix.NL80211_ATTR_IE:        extCaps,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected connect attributes (-want +got):\n%s", diff)
	}
}

func TestLinux_clientDisconnect(t *testing.T) {
	ifi := &Interface{Index: 7, Name: "wlan1"}

	const flags = netlink.Request | netlink.Acknowledge

	var got map[uint16][]byte
	c := testClient(t, genltest.CheckRequest(familyID, unix.NL80211_CMD_DISCONNECT, flags,
		func(greq genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
			got = attributeMap(t, greq.Data)
			return ackMessage(greq), nil
		},
	))

	require.NoError(t, c.Disconnect(ifi))

	want := map[uint16][]byte{
		unix.NL80211_ATTR_IFINDEX: nlenc.Uint32Bytes(7),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected disconnect attributes (-want +got):\n%s", diff)
	}
}

func TestLinux_clientPHYs(t *testing.T) {
	const flags = netlink.Request | netlink.Dump

	c := testClient(t, genltest.CheckRequest(familyID, unix.NL80211_CMD_GET_WIPHY, flags,
		func(greq genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
			got := attributeMap(t, greq.Data)
			assert.Contains(t, got, uint16(unix.NL80211_ATTR_SPLIT_WIPHY_DUMP))
			assert.NotContains(t, got, uint16(unix.NL80211_ATTR_IFINDEX))

			return []genetlink.Message{
				wiphyMessage(t, func(ae *netlink.AttributeEncoder) {
					ae.Uint32(unix.NL80211_ATTR_WIPHY, 0)
					ae.String(unix.NL80211_ATTR_WIPHY_NAME, "phy0")
					ae.Nested(unix.NL80211_ATTR_SUPPORTED_IFTYPES, func(nae *netlink.AttributeEncoder) error {
						nae.Flag(unix.NL80211_IFTYPE_STATION, true)
						nae.Flag(unix.NL80211_IFTYPE_AP, true)
						return nil
					})
					ae.Bytes(unix.NL80211_ATTR_EXT_CAPA, []byte{0x04, 0x00, 0x08})
				}),
				// The split dump carries each band in its own message.
				wiphyMessage(t, func(ae *netlink.AttributeEncoder) {
					ae.Uint32(unix.NL80211_ATTR_WIPHY, 0)
					ae.Nested(unix.NL80211_ATTR_WIPHY_BANDS, func(nae *netlink.AttributeEncoder) error {
						nae.Nested(unix.NL80211_BAND_2GHZ, func(bae *netlink.AttributeEncoder) error {
							bae.Nested(unix.NL80211_BAND_ATTR_FREQS, frequencies(2412))
							bae.Nested(unix.NL80211_BAND_ATTR_RATES, bitrates(true, 10, 20, 55, 110))
							return nil
						})
						return nil
					})
				}),
				wiphyMessage(t, func(ae *netlink.AttributeEncoder) {
					ae.Uint32(unix.NL80211_ATTR_WIPHY, 0)
					ae.Nested(unix.NL80211_ATTR_WIPHY_BANDS, func(nae *netlink.AttributeEncoder) error {
						nae.Nested(unix.NL80211_BAND_5GHZ, testBand5GHz)
						return nil
					})
				}),
				wiphyMessage(t, func(ae *netlink.AttributeEncoder) {
					ae.Uint32(unix.NL80211_ATTR_WIPHY, 1)
					ae.String(unix.NL80211_ATTR_WIPHY_NAME, "phy1")
				}),
			}, nil
		},
	))

	phys, err := c.PHYs()
	require.NoError(t, err)

	want := []*PHY{
		{
			Index:                0,
			Name:                 "phy0",
			SupportedIftypes:     []InterfaceType{InterfaceTypeStation, InterfaceTypeAP},
			ExtendedCapabilities: dot11.ExtendedCapabilities{0x04, 0x00, 0x08},
			BandAttributes: []BandAttributes{
				{
					Band:                Band2GHz,
					FrequencyAttributes: []FrequencyAttrs{{Frequency: 2412, MaxTxPower: 20}},
					BitrateAttributes: []BitrateAttrs{
						{Bitrate: 1, ShortPreamble: true},
						{Bitrate: 2, ShortPreamble: true},
						{Bitrate: 5.5, ShortPreamble: true},
						{Bitrate: 11, ShortPreamble: true},
					},
				},
				{
					Band:            Band5GHz,
					HTCapabilities:  testHTCapabilities(),
					VHTCapabilities: testVHTCapabilities(),
					FrequencyAttributes: []FrequencyAttrs{
						{Frequency: 5180, MaxTxPower: 20},
						{Frequency: 5260, MaxTxPower: 20, NoIR: true, RadarDetection: true},
					},
					BitrateAttributes: []BitrateAttrs{{Bitrate: 6}, {Bitrate: 12}, {Bitrate: 24}},
				},
			},
		},
		{Index: 1, Name: "phy1"},
	}
	if diff := cmp.Diff(want, phys, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected PHYs (-want +got):\n%s", diff)
	}
}

func TestLinux_clientPHYCapabilitiesElements(t *testing.T) {
	ifi := &Interface{Index: 3, Name: "wlan0", PHY: 2}

	c := testClient(t, func(greq genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
		assert.Equal(t, nlenc.Uint32Bytes(3), attributeMap(t, greq.Data)[unix.NL80211_ATTR_IFINDEX])

		return []genetlink.Message{wiphyMessage(t, func(ae *netlink.AttributeEncoder) {
			ae.Uint32(unix.NL80211_ATTR_WIPHY, 2)
			ae.Nested(unix.NL80211_ATTR_WIPHY_BANDS, func(nae *netlink.AttributeEncoder) error {
				nae.Nested(unix.NL80211_BAND_5GHZ, testBand5GHz)
				return nil
			})
		})}, nil
	})

	p, err := c.PHY(ifi)
	require.NoError(t, err)
	require.Len(t, p.BandAttributes, 1)

	caps, err := p.BandAttributes[0].Capabilities()
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 12, 24}, caps.Rates)

	ar, err := caps.AssocRequest([]byte("office"), nil)
	require.NoError(t, err)

	got, err := dot11.NewCodec().PackElements(dot11.FrameAssocRequest, &dot11.Elements{
		HTCapabilities:  ar.HTCapabilities,
		VHTCapabilities: ar.VHTCapabilities,
	})
	require.NoError(t, err)

	want := []byte{
		// HT Capabilities.
		0x2d, 0x1a,
		0x6f, 0x01,
		0x1b,
		0xff, 0xff, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
		0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00,
		// VHT Capabilities.
		0xbf, 0x0c,
		0xb2, 0x11, 0x80, 0x03,
		0xfa, 0xff, 0x00, 0x00, 0xfa, 0xff, 0x00, 0x00,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected HT/VHT elements (-want +got):\n%s", diff)
	}
}

func TestLinux_clientPHYNotExist(t *testing.T) {
	ifi := &Interface{Index: 3, Name: "wlan0", PHY: 4}

	c := testClient(t, func(_ genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
		return []genetlink.Message{wiphyMessage(t, func(ae *netlink.AttributeEncoder) {
			ae.Uint32(unix.NL80211_ATTR_WIPHY, 0)
		})}, nil
	})

	_, err := c.PHY(ifi)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLinux_ClientConnectPHYCapabilities(t *testing.T) {
	ifi := &Interface{Index: 3, Name: "wlan0", Frequency: 5180}

	tests := []struct {
		name  string
		bands bool
		want  []byte
	}{
		{
			name:  "extended capabilities from PHY",
			bands: true,
			want:  []byte{0x7f, 0x03, 0x04, 0x00, 0x08},
		},
		{
			name: "PHY without bitrates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var connect map[uint16][]byte
			lc := testClient(t, func(greq genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
				switch greq.Header.Command {
				case unix.NL80211_CMD_GET_WIPHY:
					return []genetlink.Message{wiphyMessage(t, func(ae *netlink.AttributeEncoder) {
						ae.Uint32(unix.NL80211_ATTR_WIPHY, 0)
						ae.Bytes(unix.NL80211_ATTR_EXT_CAPA, []byte{0x04, 0x00, 0x08})
						if tt.bands {
							ae.Nested(unix.NL80211_ATTR_WIPHY_BANDS, func(nae *netlink.AttributeEncoder) error {
								nae.Nested(unix.NL80211_BAND_5GHZ, testBand5GHz)
								return nil
							})
						}
					})}, nil
				case unix.NL80211_CMD_CONNECT:
					connect = attributeMap(t, greq.Data)
					return ackMessage(greq), nil
				default:
					return nil, fmt.Errorf("unexpected command %d", greq.Header.Command)
				}
			})

			cfg, err := newConfig(nil)
			require.NoError(t, err)
			c := &Client{c: lc, cfg: cfg}

			require.NoError(t, c.Connect(ifi, "office"))
			require.NotNil(t, connect)
			assert.Equal(t, tt.want, connect[unix.NL80211_ATTR_IE])
		})
	}
}

func TestLinux_clientConnectWPAPSK(t *testing.T) {
	ifi := &Interface{Index: 3, Name: "wlan0"}

	tests := []struct {
		name     string
		features []byte
		err      error
	}{
		{
			name:     "supported",
			features: extFeatures(unix.NL80211_EXT_FEATURE_4WAY_HANDSHAKE_STA_PSK),
		},
		{
			name:     "feature bit clear",
			features: make([]byte, unix.NL80211_EXT_FEATURE_4WAY_HANDSHAKE_STA_PSK/8+1),
			err:      ErrNotSupported,
		},
		{
			name: "feature list too short",
			err:  ErrNotSupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var connect map[uint16][]byte
			c := testClient(t, func(greq genetlink.Message, nreq netlink.Message) ([]genetlink.Message, error) {
				switch greq.Header.Command {
				case unix.NL80211_CMD_GET_WIPHY:
					assert.Equal(t, netlink.Request|netlink.Dump, nreq.Header.Flags)
					return []genetlink.Message{{
						Header: genetlink.Header{Command: unix.NL80211_CMD_NEW_WIPHY},
						Data: mustMarshalAttributes([]netlink.Attribute{{
							Type: unix.NL80211_ATTR_EXT_FEATURES,
							Data: tt.features,
						}}),
					}}, nil
				case unix.NL80211_CMD_CONNECT:
					connect = attributeMap(t, greq.Data)
					return ackMessage(greq), nil
				default:
					return nil, fmt.Errorf("unexpected command %d", greq.Header.Command)
				}
			})

			err := c.ConnectWPAPSK(ifi, "office", "correct horse", rsnPSK)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, connect, "no connect request may be sent")
				return
			}
			require.NoError(t, err)

			assert.Equal(t, []byte("office"), connect[unix.NL80211_ATTR_SSID])
			assert.Equal(t, nlenc.Uint32Bytes(unix.NL80211_WPA_VERSION_2), connect[unix.NL80211_ATTR_WPA_VERSIONS])
			assert.Equal(t, nlenc.Uint32Bytes(0x000fac04), connect[unix.NL80211_ATTR_CIPHER_SUITE_GROUP])
			assert.Equal(t, nlenc.Uint32Bytes(0x000fac04), connect[unix.NL80211_ATTR_CIPHER_SUITES_PAIRWISE])
			assert.Equal(t, nlenc.Uint32Bytes(0x000fac02), connect[unix.NL80211_ATTR_AKM_SUITES])
			assert.Contains(t, connect, uint16(unix.NL80211_ATTR_WANT_1X_4WAY_HS))
			assert.Equal(t, wpaPassphrase([]byte("office"), []byte("correct horse")), connect[unix.NL80211_ATTR_PMK])
			assert.Equal(t, rsnPSK, connect[unix.NL80211_ATTR_IE])
		})
	}
}

func TestLinux_wpaPassphrase(t *testing.T) {
	// IEEE 802.11-2020 J.4.2 test vector.
	want := []byte{
		0xf4, 0x2c, 0x6f, 0xc5, 0x2d, 0xf0, 0xeb, 0xef,
		0x9e, 0xbb, 0x4b, 0x90, 0xb3, 0x8a, 0x5f, 0x90,
		0x2e, 0x83, 0xfe, 0x1b, 0x13, 0x5a, 0x70, 0xe2,
		0x3a, 0xed, 0x76, 0x2e, 0x97, 0x10, 0xa1, 0x2e,
	}
	assert.Equal(t, want, wpaPassphrase([]byte("IEEE"), []byte("password")))
}

func TestLinux_scanRequest(t *testing.T) {
	ifi := &Interface{Index: 2}

	tests := []struct {
		name  string
		ssids []string
		ies   []byte
		want  []netlink.Attribute
	}{
		{
			name: "wildcard",
			want: []netlink.Attribute{{Type: 1, Data: []byte{}}},
		},
		{
			name:  "directed with elements",
			ssids: []string{"office", "lab"},
			ies:   extCaps,
			want: []netlink.Attribute{
				{Type: 1, Data: []byte("office")},
				{Type: 2, Data: []byte("lab")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := scanRequest(ifi, tt.ssids, tt.ies)
			require.NoError(t, err)

			attrs := attributeMap(t, b)
			assert.Equal(t, nlenc.Uint32Bytes(2), attrs[unix.NL80211_ATTR_IFINDEX])
			if tt.ies != nil {
				assert.Equal(t, tt.ies, attrs[unix.NL80211_ATTR_IE])
			} else {
				assert.NotContains(t, attrs, uint16(unix.NL80211_ATTR_IE))
			}

			nested, err := netlink.UnmarshalAttributes(attrs[unix.NL80211_ATTR_SCAN_SSIDS])
			require.NoError(t, err)
			if diff := diffNetlinkAttributes(tt.want, nested); diff != "" {
				t.Fatalf("unexpected scan SSIDs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLinux_listenNewScanResults(t *testing.T) {
	notify := func(cmd uint8, data []byte) genetlink.Message {
		return genetlink.Message{
			Header: genetlink.Header{Command: cmd, Version: 1},
			Data:   data,
		}
	}
	ifindex := func(i uint32) []byte {
		return mustMarshalAttributes([]netlink.Attribute{{
			Type: unix.NL80211_ATTR_IFINDEX,
			Data: nlenc.Uint32Bytes(i),
		}})
	}

	tests := []struct {
		name string
		msgs [][]genetlink.Message
		err  error
	}{
		{
			name: "results for interface",
			msgs: [][]genetlink.Message{
				{notify(unix.NL80211_CMD_TRIGGER_SCAN, ifindex(1))},
				{notify(unix.NL80211_CMD_NEW_SCAN_RESULTS, ifindex(2))},
				{notify(unix.NL80211_CMD_NEW_SCAN_RESULTS, ifindex(1))},
			},
		},
		{
			name: "aborted",
			msgs: [][]genetlink.Message{
				{notify(unix.NL80211_CMD_SCAN_ABORTED, ifindex(1))},
			},
			err: ErrScanAborted,
		},
		{
			name: "malformed notification",
			msgs: [][]genetlink.Message{
				// Attribute length past the end of the message.
				{notify(unix.NL80211_CMD_NEW_SCAN_RESULTS, []byte{0x08, 0x00, 0x03, 0x00})},
			},
			err: ErrScanValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var i int
			conn := genltest.Dial(func(_ genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
				if i >= len(tt.msgs) {
					return nil, io.EOF
				}
				i++
				return tt.msgs[i-1], nil
			})
			defer conn.Close()

			err := listenNewScanResults(context.Background(), conn, 1, 1)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.msgs), i)
		})
	}
}

func TestLinux_initClientErrorCloseConn(t *testing.T) {
	c := genltest.Dial(func(_ genetlink.Message, _ netlink.Message) ([]genetlink.Message, error) {
		// Assume that nl80211 does not exist on this system.
		return nil, genltest.Error(int(syscall.ENOENT))
	})

	cfg, err := newConfig(nil)
	require.NoError(t, err)

	if _, err := initClient(c, cfg); err == nil {
		t.Fatal("no error occurred, but expected one")
	}
}

const familyID = 26

func testClient(t *testing.T, fn genltest.Func, opts ...Option) *client {
	t.Helper()

	family := genetlink.Family{
		ID:      familyID,
		Name:    unix.NL80211_GENL_NAME,
		Version: 1,
	}

	c := genltest.Dial(genltest.ServeFamily(family, func(greq genetlink.Message, nreq netlink.Message) ([]genetlink.Message, error) {
		if diff := cmp.Diff(int(family.ID), int(nreq.Header.Type)); diff != "" {
			t.Fatalf("unexpected generic netlink family ID (-want +got):\n%s", diff)
		}

		if diff := cmp.Diff(family.Version, greq.Header.Version); diff != "" {
			t.Fatalf("unexpected generic netlink family version (-want +got):\n%s", diff)
		}

		msgs, err := fn(greq, nreq)
		if err != nil {
			return nil, err
		}

		for i := range msgs {
			if msgs[i].Header.Version == 0 {
				msgs[i].Header.Version = family.Version
			}
		}
		return msgs, nil
	}))

	cfg, err := newConfig(opts)
	if err != nil {
		t.Fatalf("failed to build config: %v", err)
	}

	client, err := initClient(c, cfg)
	if err != nil {
		t.Fatalf("failed to initialize test client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client
}

// bssAttrs holds the nested attributes of one scan result. Zero fields
// are omitted.
type bssAttrs struct {
	bssid      net.HardwareAddr
	freq       int
	interval   uint16
	seenMS     uint32
	status     uint32
	capability uint16
	signalMBM  int32
	ies        []byte
	beaconIEs  []byte
}

func scanResult(b bssAttrs) genetlink.Message {
	attrs := []netlink.Attribute{{Type: unix.NL80211_BSS_BSSID, Data: b.bssid}}
	add := func(typ uint16, data []byte) {
		attrs = append(attrs, netlink.Attribute{Type: typ, Data: data})
	}

	if b.freq != 0 {
		add(unix.NL80211_BSS_FREQUENCY, nlenc.Uint32Bytes(uint32(b.freq)))
	}
	if b.interval != 0 {
		add(unix.NL80211_BSS_BEACON_INTERVAL, nlenc.Uint16Bytes(b.interval))
	}
	if b.seenMS != 0 {
		add(unix.NL80211_BSS_SEEN_MS_AGO, nlenc.Uint32Bytes(b.seenMS))
	}
	if b.status != 0 {
		add(unix.NL80211_BSS_STATUS, nlenc.Uint32Bytes(b.status))
	}
	if b.capability != 0 {
		add(unix.NL80211_BSS_CAPABILITY, nlenc.Uint16Bytes(b.capability))
	}
	if b.signalMBM != 0 {
		add(unix.NL80211_BSS_SIGNAL_MBM, nlenc.Uint32Bytes(uint32(b.signalMBM)))
	}
	if b.ies != nil {
		add(unix.NL80211_BSS_INFORMATION_ELEMENTS, b.ies)
	}
	if b.beaconIEs != nil {
		add(unix.NL80211_BSS_BEACON_IES, b.beaconIEs)
	}

	return genetlink.Message{
		Header: genetlink.Header{Command: unix.NL80211_CMD_NEW_SCAN_RESULTS},
		Data: mustMarshalAttributes([]netlink.Attribute{{
			Type: unix.NL80211_ATTR_BSS,
			Data: mustMarshalAttributes(attrs),
		}}),
	}
}

// ackMessage echoes the request's command so Execute has one reply.
func ackMessage(greq genetlink.Message) []genetlink.Message {
	return []genetlink.Message{{Header: genetlink.Header{Command: greq.Header.Command}}}
}

func extFeatures(bit uint) []byte {
	b := make([]byte, bit/8+1)
	b[bit/8] |= 1 << (bit % 8)
	return b
}

func attributeMap(t *testing.T, b []byte) map[uint16][]byte {
	t.Helper()

	attrs, err := netlink.UnmarshalAttributes(b)
	if err != nil {
		t.Fatalf("failed to unmarshal attributes: %v", err)
	}

	m := make(map[uint16][]byte, len(attrs))
	for _, a := range attrs {
		m[a.Type&^(netlink.Nested|netlink.NetByteOrder)] = a.Data
	}
	return m
}

// diffNetlinkAttributes compares two []netlink.Attributes after zeroing their
// length fields that make equality checks in testing difficult.
func diffNetlinkAttributes(want, got []netlink.Attribute) string {
	if len(want) != len(got) {
		return cmp.Diff(want, got)
	}

	for i := range want {
		want[i].Length = 0
		got[i].Length = 0
	}

	return cmp.Diff(want, got, cmpopts.EquateEmpty())
}

func wiphyMessage(t *testing.T, fn func(ae *netlink.AttributeEncoder)) genetlink.Message {
	t.Helper()

	ae := netlink.NewAttributeEncoder()
	fn(ae)
	b, err := ae.Encode()
	if err != nil {
		t.Fatalf("failed to encode wiphy attributes: %v", err)
	}

	return genetlink.Message{
		Header: genetlink.Header{Command: unix.NL80211_CMD_NEW_WIPHY},
		Data:   b,
	}
}

// testBand5GHz encodes a 5 GHz band with HT and VHT support.
func testBand5GHz(ae *netlink.AttributeEncoder) error {
	ae.Uint16(unix.NL80211_BAND_ATTR_HT_CAPA, 0x016f)
	ae.Bytes(unix.NL80211_BAND_ATTR_HT_MCS_SET, testHTCapabilities().SupportedMCS[:])
	ae.Uint8(unix.NL80211_BAND_ATTR_HT_AMPDU_FACTOR, 3)
	ae.Uint8(unix.NL80211_BAND_ATTR_HT_AMPDU_DENSITY, 6)
	ae.Uint32(unix.NL80211_BAND_ATTR_VHT_CAPA, 0x038011b2)
	ae.Bytes(unix.NL80211_BAND_ATTR_VHT_MCS_SET, []byte{0xfa, 0xff, 0x00, 0x00, 0xfa, 0xff, 0x00, 0x00})
	ae.Nested(unix.NL80211_BAND_ATTR_FREQS, frequencies(5180, -5260))
	ae.Nested(unix.NL80211_BAND_ATTR_RATES, bitrates(false, 60, 120, 240))
	return nil
}

func testHTCapabilities() *dot11.HTCapabilities {
	h := &dot11.HTCapabilities{
		Info:             dot11.ParseHTCapabilityInfo(0x016f),
		MaxAMPDUExponent: 3,
		MinMPDUSpacing:   6,
	}
	h.SupportedMCS[0], h.SupportedMCS[1], h.SupportedMCS[12] = 0xff, 0xff, 0x01
	return h
}

func testVHTCapabilities() *dot11.VHTCapabilities {
	return &dot11.VHTCapabilities{
		Info: dot11.ParseVHTCapabilityInfo(0x038011b2),
		MCS:  dot11.VHTMCSNSS{RxMCSMap: 0xfffa, TxMCSMap: 0xfffa},
	}
}

// frequencies encodes channels at 20 dBm. A negative frequency is a radar
// channel on which initiating radiation is not permitted.
func frequencies(freqs ...int) func(ae *netlink.AttributeEncoder) error {
	return func(ae *netlink.AttributeEncoder) error {
		for i, f := range freqs {
			ae.Nested(uint16(i), func(nae *netlink.AttributeEncoder) error {
				if f < 0 {
					f = -f
					nae.Flag(unix.NL80211_FREQUENCY_ATTR_NO_IR, true)
					nae.Flag(unix.NL80211_FREQUENCY_ATTR_RADAR, true)
				}
				nae.Uint32(unix.NL80211_FREQUENCY_ATTR_FREQ, uint32(f))
				nae.Uint32(unix.NL80211_FREQUENCY_ATTR_MAX_TX_POWER, 2000)
				return nil
			})
		}
		return nil
	}
}

// bitrates encodes legacy rates in units of 100 kbit/s.
func bitrates(shortPreamble bool, rates ...uint32) func(ae *netlink.AttributeEncoder) error {
	return func(ae *netlink.AttributeEncoder) error {
		for i, r := range rates {
			ae.Nested(uint16(i), func(nae *netlink.AttributeEncoder) error {
				nae.Uint32(unix.NL80211_BITRATE_ATTR_RATE, r)
				nae.Flag(unix.NL80211_BITRATE_ATTR_2GHZ_SHORTPREAMBLE, shortPreamble)
				return nil
			})
		}
		return nil
	}
}

func mustMarshalAttributes(attrs []netlink.Attribute) []byte {
	b, err := netlink.MarshalAttributes(attrs)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal attributes: %v", err))
	}

	return b
}

func (ifi *Interface) attributes() []netlink.Attribute {
	return []netlink.Attribute{
		{Type: unix.NL80211_ATTR_IFINDEX, Data: nlenc.Uint32Bytes(uint32(ifi.Index))},
		{Type: unix.NL80211_ATTR_IFNAME, Data: nlenc.Bytes(ifi.Name)},
		{Type: unix.NL80211_ATTR_MAC, Data: ifi.HardwareAddr},
		{Type: unix.NL80211_ATTR_WIPHY, Data: nlenc.Uint32Bytes(uint32(ifi.PHY))},
		{Type: unix.NL80211_ATTR_IFTYPE, Data: nlenc.Uint32Bytes(uint32(ifi.Type))},
		{Type: unix.NL80211_ATTR_WDEV, Data: nlenc.Uint64Bytes(uint64(ifi.Device))},
		{Type: unix.NL80211_ATTR_WIPHY_FREQ, Data: nlenc.Uint32Bytes(uint32(ifi.Frequency))},
	}
}
