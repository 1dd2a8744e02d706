package dot11

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot11(t layers.Dot11Type, payload []byte) *layers.Dot11 {
	return &layers.Dot11{
		BaseLayer: layers.BaseLayer{Payload: payload},
		Type:      t,
	}
}

func TestFrameTypeOf(t *testing.T) {
	tests := []struct {
		name string
		d    *layers.Dot11
		want FrameType
		err  error
	}{
		{
			name: "beacon",
			d:    dot11(layers.Dot11TypeMgmtBeacon, nil),
			want: FrameBeacon,
		},
		{
			name: "reassociation response",
			d:    dot11(layers.Dot11TypeMgmtReassociationResp, nil),
			want: FrameReassocResponse,
		},
		{
			name: "ADDTS response",
			d:    dot11(layers.Dot11TypeMgmtAction, []byte{categoryQoS, 1, 0}),
			want: FrameAddTSResponse,
		},
		{
			name: "neighbor report without ack",
			d:    dot11(layers.Dot11TypeMgmtActionNoAck, []byte{categoryRadioMeasurement, 5, 0}),
			want: FrameNeighborReportResponse,
		},
		{
			name: "short action",
			d:    dot11(layers.Dot11TypeMgmtAction, []byte{categoryQoS}),
			err:  ErrTruncated,
		},
		{
			name: "unknown action",
			d:    dot11(layers.Dot11TypeMgmtAction, []byte{127, 0}),
			err:  ErrUnknownFrameType,
		},
		{
			name: "data frame",
			d:    dot11(layers.Dot11TypeData, nil),
			err:  ErrUnknownFrameType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FrameTypeOf(tt.d)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDot11TypeInverse(t *testing.T) {
	for _, ft := range FrameTypes() {
		dt, ok := dot11Type(ft)
		require.True(t, ok, "no 802.11 type for %s", ft)

		fi, err := Table(ft)
		require.NoError(t, err)

		var payload []byte
		if fi.IsAction {
			payload = []byte{fi.Category, fi.ActionCode}
		}
		got, err := FrameTypeOf(dot11(dt, payload))
		require.NoError(t, err)
		assert.Equal(t, ft, got)
	}
}

func TestSerializeFrameDecodeLayer(t *testing.T) {
	c := NewCodec()
	bssid := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

	for _, f := range testFrames() {
		t.Run(f.Type().String(), func(t *testing.T) {
			h := &layers.Dot11{
				Address1:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
				Address2:       bssid,
				Address3:       bssid,
				SequenceNumber: 42,
			}

			buf := gopacket.NewSerializeBuffer()
			require.NoError(t, c.SerializeFrame(buf, gopacket.SerializeOptions{}, h, f))
			assert.Equal(t, layers.Dot11Type(0), h.Type, "header must not be modified")

			p := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeDot11, gopacket.Default)
			d, ok := p.Layer(layers.LayerTypeDot11).(*layers.Dot11)
			require.True(t, ok, "no 802.11 layer")
			assert.Equal(t, bssid, d.Address2)
			assert.True(t, d.ChecksumValid())

			got, o, err := c.DecodeLayer(d)
			require.NoError(t, err)
			require.Equal(t, StatusSuccess, o.Status)
			if diff := cmp.Diff(f, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("unexpected frame (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeLayerUnknownType(t *testing.T) {
	f, o, err := NewCodec().DecodeLayer(dot11(layers.Dot11TypeCtrlAck, nil))
	assert.ErrorIs(t, err, ErrUnknownFrameType)
	assert.Nil(t, f)
	assert.Equal(t, StatusFatal, o.Status)
}
