package wifi

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/wlanctl/wifi/dot11"
)

var (
	errInvalidSSID       = errors.New("wifi: SSID must be 1 to 32 bytes")
	errInvalidPassphrase = errors.New("wifi: WPA passphrase must be 8 to 63 characters")
)

// A Client is a type which can access WiFi device actions and statistics
// using operating system-specific operations.
type Client struct {
	c   *client
	cfg *config
}

type config struct {
	codec *dot11.Codec
	log   zerolog.Logger
	caps  *dot11.Capabilities
}

// An Option configures a Client.
type Option func(cfg *config)

// WithCodec sets the codec used for information elements. By default a
// codec over the default registry, sharing the Client's logger, is used.
func WithCodec(c *dot11.Codec) Option {
	return func(cfg *config) { cfg.codec = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) { cfg.log = l }
}

// WithCapabilities supplies the local station capabilities. Elements the
// kernel does not build itself, such as Extended Capabilities, are then
// added to scan and connect requests. Without it the capabilities the
// interface's PHY reports are used.
func WithCapabilities(c *dot11.Capabilities) Option {
	return func(cfg *config) { cfg.caps = c }
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{log: zerolog.Nop()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.codec == nil {
		cfg.codec = dot11.NewCodec(dot11.WithLogger(cfg.log))
	}
	if cfg.caps != nil {
		if err := cfg.caps.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// New creates a new Client.
func New(opts ...Option) (*Client, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{c: c, cfg: cfg}, nil
}

// Close releases resources used by a Client.
func (c *Client) Close() error {
	return c.c.Close()
}

// SetDeadline sets the read and write deadlines associated with the connection.
func (c *Client) SetDeadline(t time.Time) error {
	return c.c.SetDeadline(t)
}

// SetReadDeadline sets the read deadline associated with the connection.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.c.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline associated with the connection.
func (c *Client) SetWriteDeadline(t time.Time) error {
	return c.c.SetWriteDeadline(t)
}

// Interfaces returns a list of the system's WiFi network interfaces.
func (c *Client) Interfaces() ([]*Interface, error) {
	return c.c.Interfaces()
}

// PHYs returns the system's wireless devices and their per-band
// capabilities.
func (c *Client) PHYs() ([]*PHY, error) {
	return c.c.PHYs()
}

// PHY returns the wireless device ifi belongs to. It returns an error
// wrapping os.ErrNotExist if nl80211 does not report it.
func (c *Client) PHY(ifi *Interface) (*PHY, error) {
	return c.c.PHY(ifi)
}

// BSS retrieves the BSS associated with a WiFi interface. It returns an
// error wrapping os.ErrNotExist if the interface is not associated.
func (c *Client) BSS(ifi *Interface) (*BSS, error) {
	return c.c.BSS(ifi)
}

// AccessPoints returns every BSS in the kernel's scan results for ifi.
// A BSS whose elements could not be decoded is still returned, with nil
// Elements and the failure in its Outcome.
func (c *Client) AccessPoints(ifi *Interface) ([]*BSS, error) {
	return c.c.AccessPoints(ifi)
}

// Scan triggers a scan on ifi and waits for the kernel to report new
// results, or for ctx to be done. With no ssids a wildcard scan is made.
//
// Use AccessPoints to retrieve the results.
func (c *Client) Scan(ctx context.Context, ifi *Interface, ssids ...string) error {
	for _, s := range ssids {
		if len(s) > 32 {
			return errInvalidSSID
		}
	}

	caps, err := c.capabilities(ifi)
	if err != nil {
		return err
	}
	ies, err := c.cfg.requestElements(dot11.FrameProbeRequest, caps, nil)
	if err != nil {
		return err
	}
	return c.c.Scan(ctx, ifi, ssids, ies)
}

// Connect starts connecting the interface to the specified open network.
func (c *Client) Connect(ifi *Interface, ssid string) error {
	if len(ssid) == 0 || len(ssid) > 32 {
		return errInvalidSSID
	}

	caps, err := c.capabilities(ifi)
	if err != nil {
		return err
	}
	ies, err := c.cfg.requestElements(dot11.FrameAssocRequest, caps, nil)
	if err != nil {
		return err
	}
	return c.c.Connect(ifi, ssid, ies)
}

// ConnectWPAPSK starts connecting the interface to the specified SSID using
// WPA2-PSK with CCMP. The 4-way handshake is offloaded to the device, so
// the device must support it.
func (c *Client) ConnectWPAPSK(ifi *Interface, ssid, psk string) error {
	if len(ssid) == 0 || len(ssid) > 32 {
		return errInvalidSSID
	}
	if len(psk) < 8 || len(psk) > 63 {
		return errInvalidPassphrase
	}

	caps, err := c.capabilities(ifi)
	if err != nil {
		return err
	}
	ies, err := c.cfg.requestElements(dot11.FrameAssocRequest, caps, wpa2PSK())
	if err != nil {
		return err
	}
	return c.c.ConnectWPAPSK(ifi, ssid, psk, ies)
}

// Disconnect disconnects the interface.
func (c *Client) Disconnect(ifi *Interface) error {
	return c.c.Disconnect(ifi)
}

// wpa2PSK is the RSN element advertised for a WPA2-PSK association.
func wpa2PSK() *dot11.RSN {
	ccmp := dot11.CipherCCMP128
	return &dot11.RSN{
		Version:         1,
		GroupCipher:     &ccmp,
		PairwiseCiphers: []dot11.CipherSuite{dot11.CipherCCMP128},
		AKMs:            []dot11.AKMSuite{dot11.AKMPSK},
		Capabilities:    &dot11.RSNCapabilities{},
	}
}

// capabilities returns the configured capabilities or, without them, those
// of ifi's PHY. A PHY whose capabilities cannot be expressed yields nil.
func (c *Client) capabilities(ifi *Interface) (*dot11.Capabilities, error) {
	if c.cfg.caps != nil {
		return c.cfg.caps, nil
	}

	p, err := c.c.PHY(ifi)
	if err != nil {
		return nil, err
	}
	caps, err := p.Capabilities(ifi.Frequency)
	if err != nil {
		c.cfg.log.Debug().
			Err(err).
			Int("phy", p.Index).
			Msg("PHY capabilities unusable for requests")
		return nil, nil
	}
	return caps, nil
}

// requestElements packs the extra elements passed to nl80211 with a scan or
// connect request, in the order frame type t requires. The kernel builds
// SSID, rates, HT and VHT itself. It returns nil if there is nothing to add.
func (cfg *config) requestElements(t dot11.FrameType, caps *dot11.Capabilities, rsn *dot11.RSN) ([]byte, error) {
	e := &dot11.Elements{RSN: rsn}

	if caps != nil {
		var (
			f   *dot11.Elements
			err error
		)
		switch t {
		case dot11.FrameProbeRequest:
			var pr *dot11.ProbeRequest
			pr, err = caps.ProbeRequest(nil)
			if pr != nil {
				f = &pr.Elements
			}
		default:
			var ar *dot11.AssocRequest
			ar, err = caps.AssocRequest(nil, nil)
			if ar != nil {
				f = &ar.Elements
			}
		}
		if err != nil {
			return nil, err
		}
		e.ExtendedCapabilities = f.ExtendedCapabilities
	}

	if e.RSN == nil && e.ExtendedCapabilities == nil {
		return nil, nil
	}
	return cfg.codec.PackElements(t, e)
}
