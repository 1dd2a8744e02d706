package dot11

// Opaque is a vendor element the codec recognizes but does not decode
// further, such as WPA, WSC and P2P. OUI and Type record the descriptor it
// was decoded under; on encode they are taken from the descriptor.
type Opaque struct {
	OUI  OUI
	Type uint8
	Data []byte
}

func (o *Opaque) setKey(k Key) { o.OUI, o.Type = k.OUI, k.OUIType }

func (o *Opaque) unmarshal(b []byte) error { o.Data = clone(b); return nil }
func (o *Opaque) marshal() ([]byte, error) { return clone(o.Data), nil }

// VendorSpecific is an unrecognized vendor element. Data holds everything
// after the OUI.
type VendorSpecific struct {
	OUI  OUI
	Data []byte
}

func (v *VendorSpecific) unmarshal(b []byte) error {
	if len(b) < 3 {
		return malformed("vendor specific: length %d", len(b))
	}
	copy(v.OUI[:], b[:3])
	v.Data = clone(b[3:])
	return nil
}

func (v *VendorSpecific) marshal() ([]byte, error) {
	return append(clone(v.OUI[:]), v.Data...), nil
}

// MultiLink is the Multi-Link extension element body, kept as received.
// Bodies longer than one element are carried in Fragment elements.
type MultiLink []byte

func (m *MultiLink) unmarshal(b []byte) error { *m = clone(b); return nil }
func (m *MultiLink) marshal() ([]byte, error) { return clone(*m), nil }
