package dot11

import (
	"encoding/binary"
	"fmt"
)

// A CipherSuite is an RSN cipher suite selector: an OUI followed by a suite
// type, stored big-endian as it appears on the wire.
type CipherSuite uint32

// Cipher suites defined by IEEE 802.11-2020 Table 9-149.
const (
	CipherUseGroup   CipherSuite = 0x000fac00
	CipherWEP40      CipherSuite = 0x000fac01
	CipherTKIP       CipherSuite = 0x000fac02
	CipherCCMP128    CipherSuite = 0x000fac04
	CipherWEP104     CipherSuite = 0x000fac05
	CipherBIPCMAC128 CipherSuite = 0x000fac06
	CipherGCMP128    CipherSuite = 0x000fac08
	CipherGCMP256    CipherSuite = 0x000fac09
	CipherCCMP256    CipherSuite = 0x000fac0a
	CipherBIPGMAC128 CipherSuite = 0x000fac0b
	CipherBIPGMAC256 CipherSuite = 0x000fac0c
	CipherBIPCMAC256 CipherSuite = 0x000fac0d
)

var cipherNames = map[CipherSuite]string{
	CipherUseGroup:   "Use group cipher suite",
	CipherWEP40:      "WEP-40",
	CipherTKIP:       "TKIP",
	CipherCCMP128:    "CCMP-128",
	CipherWEP104:     "WEP-104",
	CipherBIPCMAC128: "BIP-CMAC-128",
	CipherGCMP128:    "GCMP-128",
	CipherGCMP256:    "GCMP-256",
	CipherCCMP256:    "CCMP-256",
	CipherBIPGMAC128: "BIP-GMAC-128",
	CipherBIPGMAC256: "BIP-GMAC-256",
	CipherBIPCMAC256: "BIP-CMAC-256",
}

// String returns the name of a well-known cipher suite, or its selector.
func (c CipherSuite) String() string {
	if s, ok := cipherNames[c]; ok {
		return s
	}
	return fmt.Sprintf("%06x:%d", uint32(c)>>8, uint8(c))
}

// An AKMSuite is an RSN authentication and key management suite selector.
type AKMSuite uint32

// AKM suites defined by IEEE 802.11-2020 Table 9-151.
const (
	AKM8021X       AKMSuite = 0x000fac01
	AKMPSK         AKMSuite = 0x000fac02
	AKMFT8021X     AKMSuite = 0x000fac03
	AKMFTPSK       AKMSuite = 0x000fac04
	AKM8021XSHA256 AKMSuite = 0x000fac05
	AKMPSKSHA256   AKMSuite = 0x000fac06
	AKMSAE         AKMSuite = 0x000fac08
	AKMFTSAE       AKMSuite = 0x000fac09
	AKMOWE         AKMSuite = 0x000fac12
)

var akmNames = map[AKMSuite]string{
	AKM8021X:       "802.1X",
	AKMPSK:         "PSK",
	AKMFT8021X:     "FT/802.1X",
	AKMFTPSK:       "FT/PSK",
	AKM8021XSHA256: "802.1X/SHA-256",
	AKMPSKSHA256:   "PSK/SHA-256",
	AKMSAE:         "SAE",
	AKMFTSAE:       "FT/SAE",
	AKMOWE:         "OWE",
}

// String returns the name of a well-known AKM suite, or its selector.
func (a AKMSuite) String() string {
	if s, ok := akmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("%06x:%d", uint32(a)>>8, uint8(a))
}

// A PMKID identifies a cached pairwise master key.
type PMKID [16]byte

// RSNCapabilities is the RSN Capabilities field.
type RSNCapabilities struct {
	Preauth            bool
	NoPairwise         bool
	PTKSAReplayCounter uint8
	GTKSAReplayCounter uint8
	MFPRequired        bool
	MFPCapable         bool
	JointMultiband     bool
	PeerKey            bool
	SPPAMSDUCapable    bool
	SPPAMSDURequired   bool
	PBAC               bool
	ExtendedKeyID      bool
	OCVC               bool
}

func (c *RSNCapabilities) decode(b []byte) error {
	w, err := readWord(rsnCapabilitiesLayout, b)
	if err != nil {
		return err
	}
	*c = RSNCapabilities{
		Preauth:            w.isSet("preauth"),
		NoPairwise:         w.isSet("no_pairwise"),
		PTKSAReplayCounter: uint8(w.get("ptksa_replay_counter")),
		GTKSAReplayCounter: uint8(w.get("gtksa_replay_counter")),
		MFPRequired:        w.isSet("mfpr"),
		MFPCapable:         w.isSet("mfpc"),
		JointMultiband:     w.isSet("joint_multiband"),
		PeerKey:            w.isSet("peerkey"),
		SPPAMSDUCapable:    w.isSet("spp_amsdu_capable"),
		SPPAMSDURequired:   w.isSet("spp_amsdu_required"),
		PBAC:               w.isSet("pbac"),
		ExtendedKeyID:      w.isSet("extended_key_id"),
		OCVC:               w.isSet("ocvc"),
	}
	return nil
}

func (c *RSNCapabilities) encode(b []byte) ([]byte, error) {
	return newWord(rsnCapabilitiesLayout).
		flag("preauth", c.Preauth).
		flag("no_pairwise", c.NoPairwise).
		set("ptksa_replay_counter", uint32(c.PTKSAReplayCounter)).
		set("gtksa_replay_counter", uint32(c.GTKSAReplayCounter)).
		flag("mfpr", c.MFPRequired).
		flag("mfpc", c.MFPCapable).
		flag("joint_multiband", c.JointMultiband).
		flag("peerkey", c.PeerKey).
		flag("spp_amsdu_capable", c.SPPAMSDUCapable).
		flag("spp_amsdu_required", c.SPPAMSDURequired).
		flag("pbac", c.PBAC).
		flag("extended_key_id", c.ExtendedKeyID).
		flag("ocvc", c.OCVC).
		append(b)
}

// Uint16 returns the capabilities as the host-order value of the field.
func (c RSNCapabilities) Uint16() uint16 {
	// Replay counters are the only multi-bit fields.
	c.PTKSAReplayCounter &= 3
	c.GTKSAReplayCounter &= 3
	b, _ := c.encode(nil)
	return binary.LittleEndian.Uint16(b)
}

// RSN is the Robust Security Network element (IEEE 802.11-2020 9.4.2.24).
//
// Every field after Version is optional on the wire and may only be omitted
// together with everything that follows it. A nil list or pointer is absent;
// an empty non-nil list is encoded with a zero count.
type RSN struct {
	Version         uint16
	GroupCipher     *CipherSuite
	PairwiseCiphers []CipherSuite
	AKMs            []AKMSuite
	Capabilities    *RSNCapabilities
	PMKIDs          []PMKID
	GroupMgmtCipher *CipherSuite
}

var (
	errRSNInvalidVersion = malformed("RSN: version 0")
	errRSNTruncatedCount = malformed("RSN: truncated suite count")
	errRSNTruncatedList  = malformed("RSN: truncated suite list")
	errRSNTruncatedPMKID = malformed("RSN: truncated PMKID list")
	errRSNTrailingData   = malformed("RSN: trailing data")
)

// endsAfterAKMs reports whether the element stopped right after the AKM
// suite list, the shape left by senders that drop the capabilities field.
func (r *RSN) endsAfterAKMs() bool {
	return r.AKMs != nil && r.Capabilities == nil && r.PMKIDs == nil && r.GroupMgmtCipher == nil
}

func readSuites(b []byte, pos int) ([]uint32, int, error) {
	if len(b) < pos+2 {
		return nil, pos, errRSNTruncatedCount
	}
	n := int(binary.LittleEndian.Uint16(b[pos : pos+2]))
	pos += 2

	// Compare against the remaining length before allocating so a hostile
	// count cannot size the slice.
	if n > (len(b)-pos)/4 {
		return nil, pos, errRSNTruncatedList
	}

	out := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, binary.BigEndian.Uint32(b[pos:pos+4]))
		pos += 4
	}
	return out, pos, nil
}

func (r *RSN) unmarshal(b []byte) error {
	*r = RSN{}
	if len(b) < 2 {
		return malformed("RSN: length %d", len(b))
	}

	r.Version = binary.LittleEndian.Uint16(b[:2])
	if r.Version == 0 {
		return errRSNInvalidVersion
	}
	pos := 2
	if pos == len(b) {
		return nil
	}

	if len(b) < pos+4 {
		return errRSNTruncatedList
	}
	g := CipherSuite(binary.BigEndian.Uint32(b[pos : pos+4]))
	r.GroupCipher = &g
	pos += 4
	if pos == len(b) {
		return nil
	}

	pcs, pos, err := readSuites(b, pos)
	if err != nil {
		return err
	}
	r.PairwiseCiphers = make([]CipherSuite, len(pcs))
	for i, s := range pcs {
		r.PairwiseCiphers[i] = CipherSuite(s)
	}
	if pos == len(b) {
		return nil
	}

	akms, pos, err := readSuites(b, pos)
	if err != nil {
		return err
	}
	r.AKMs = make([]AKMSuite, len(akms))
	for i, s := range akms {
		r.AKMs[i] = AKMSuite(s)
	}
	if pos == len(b) {
		return nil
	}

	if len(b) < pos+2 {
		return errRSNTrailingData
	}
	r.Capabilities = new(RSNCapabilities)
	if err := r.Capabilities.decode(b[pos : pos+2]); err != nil {
		return err
	}
	pos += 2
	if pos == len(b) {
		return nil
	}

	if len(b) < pos+2 {
		return errRSNTrailingData
	}
	n := int(binary.LittleEndian.Uint16(b[pos : pos+2]))
	pos += 2
	if n > (len(b)-pos)/16 {
		return errRSNTruncatedPMKID
	}
	r.PMKIDs = make([]PMKID, n)
	for i := range r.PMKIDs {
		copy(r.PMKIDs[i][:], b[pos:pos+16])
		pos += 16
	}
	if pos == len(b) {
		return nil
	}

	if len(b) != pos+4 {
		return errRSNTrailingData
	}
	gm := CipherSuite(binary.BigEndian.Uint32(b[pos : pos+4]))
	r.GroupMgmtCipher = &gm
	return nil
}

func (r *RSN) marshal() ([]byte, error) {
	// Find the last present field; everything before it is written, with
	// defaults standing in for absent ones.
	last := 0
	switch {
	case r.GroupMgmtCipher != nil:
		last = 6
	case r.PMKIDs != nil:
		last = 5
	case r.Capabilities != nil:
		last = 4
	case r.AKMs != nil:
		last = 3
	case r.PairwiseCiphers != nil:
		last = 2
	case r.GroupCipher != nil:
		last = 1
	}

	b := binary.LittleEndian.AppendUint16(make([]byte, 0, 64), r.Version)
	if last >= 1 {
		g := CipherCCMP128
		if r.GroupCipher != nil {
			g = *r.GroupCipher
		}
		b = binary.BigEndian.AppendUint32(b, uint32(g))
	}
	if last >= 2 {
		b = binary.LittleEndian.AppendUint16(b, uint16(len(r.PairwiseCiphers)))
		for _, c := range r.PairwiseCiphers {
			b = binary.BigEndian.AppendUint32(b, uint32(c))
		}
	}
	if last >= 3 {
		b = binary.LittleEndian.AppendUint16(b, uint16(len(r.AKMs)))
		for _, a := range r.AKMs {
			b = binary.BigEndian.AppendUint32(b, uint32(a))
		}
	}
	if last >= 4 {
		var caps RSNCapabilities
		if r.Capabilities != nil {
			caps = *r.Capabilities
		}
		var err error
		if b, err = caps.encode(b); err != nil {
			return nil, err
		}
	}
	if last >= 5 {
		b = binary.LittleEndian.AppendUint16(b, uint16(len(r.PMKIDs)))
		for _, p := range r.PMKIDs {
			b = append(b, p[:]...)
		}
	}
	if last >= 6 {
		b = binary.BigEndian.AppendUint32(b, uint32(*r.GroupMgmtCipher))
	}
	return b, nil
}
