package dot11

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// mgmtTypes maps the management subtypes with a fixed body layout to their
// frame type. Action frames are resolved from their payload.
var mgmtTypes = map[layers.Dot11Type]FrameType{
	layers.Dot11TypeMgmtBeacon:            FrameBeacon,
	layers.Dot11TypeMgmtProbeReq:          FrameProbeRequest,
	layers.Dot11TypeMgmtProbeResp:         FrameProbeResponse,
	layers.Dot11TypeMgmtAssociationReq:    FrameAssocRequest,
	layers.Dot11TypeMgmtAssociationResp:   FrameAssocResponse,
	layers.Dot11TypeMgmtReassociationReq:  FrameReassocRequest,
	layers.Dot11TypeMgmtReassociationResp: FrameReassocResponse,
	layers.Dot11TypeMgmtAuthentication:    FrameAuthentication,
	layers.Dot11TypeMgmtDeauthentication:  FrameDeauthentication,
	layers.Dot11TypeMgmtDisassociation:    FrameDisassociation,
}

// FrameTypeOf returns the body frame type of a decoded 802.11 header. For
// action frames the category and action octets at the start of the
// payload select the type.
func FrameTypeOf(d *layers.Dot11) (FrameType, error) {
	if t, ok := mgmtTypes[d.Type]; ok {
		return t, nil
	}

	switch d.Type {
	case layers.Dot11TypeMgmtAction, layers.Dot11TypeMgmtActionNoAck:
		p := d.LayerPayload()
		if len(p) < 2 {
			return 0, ErrTruncated
		}
		for _, t := range FrameTypes() {
			fi := tables[t]
			if fi.IsAction && fi.Category == p[0] && fi.ActionCode == p[1] {
				return t, nil
			}
		}
		return 0, fmt.Errorf("%w: action category %d, action %d", ErrUnknownFrameType, p[0], p[1])
	}

	return 0, fmt.Errorf("%w: 802.11 type %v", ErrUnknownFrameType, d.Type)
}

// dot11Type is the inverse of FrameTypeOf.
func dot11Type(t FrameType) (layers.Dot11Type, bool) {
	if fi, ok := tables[t]; ok && fi.IsAction {
		return layers.Dot11TypeMgmtAction, true
	}
	for dt, ft := range mgmtTypes {
		if ft == t {
			return dt, true
		}
	}
	return 0, false
}

// DecodeLayer unpacks the body carried by a decoded 802.11 management
// header.
func (c *Codec) DecodeLayer(d *layers.Dot11) (Frame, Outcome, error) {
	t, err := FrameTypeOf(d)
	if err != nil {
		var o Outcome
		o.fail(Key{}, 0, err)
		return nil, o, err
	}
	return c.Unpack(t, d.LayerPayload())
}

// SerializeFrame packs f and serializes it behind the 802.11 header h into
// buf, followed by the frame check sequence. The header's type is set from
// f; h itself is not modified.
func (c *Codec) SerializeFrame(buf gopacket.SerializeBuffer, opts gopacket.SerializeOptions, h *layers.Dot11, f Frame) error {
	dt, ok := dot11Type(f.Type())
	if !ok {
		return &EncodeError{Frame: f.Type(), Err: ErrUnknownFrameType}
	}

	body, err := c.Pack(f)
	if err != nil {
		return err
	}

	hdr := *h
	hdr.Type = dt
	if err := gopacket.SerializeLayers(buf, opts, &hdr, gopacket.Payload(body)); err != nil {
		return err
	}

	// layers.Dot11 expects a trailing FCS when decoding.
	sum := crc32.ChecksumIEEE(buf.Bytes())
	fcs, err := buf.AppendBytes(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(fcs, sum)
	return nil
}
