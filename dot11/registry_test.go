package dot11

import (
	"bytes"
	"strings"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	if diff := cmp.Diff(len(catalog()), len(r.Descriptors())); diff != "" {
		t.Fatalf("unexpected descriptor count (-want +got):\n%s", diff)
	}
}

func TestNewRegistryErrors(t *testing.T) {
	tests := []struct {
		name  string
		descs func() []*Descriptor
		msg   string
	}{
		{
			name: "duplicate key",
			descs: func() []*Descriptor {
				ds := catalog()
				return append(ds, ds[0])
			},
			msg: "duplicate descriptor",
		},
		{
			name: "inverted bounds",
			descs: func() []*Descriptor {
				ds := catalog()
				ds[0].MinLen, ds[0].MaxLen = 10, 2
				return ds
			},
			msg: "invalid length bounds",
		},
		{
			name: "too long for one element",
			descs: func() []*Descriptor {
				ds := catalog()
				ds[0].MaxLen = 300
				return ds
			},
			msg: "does not fit one element",
		},
		{
			name: "table lists unknown element",
			descs: func() []*Descriptor {
				return catalog()[1:]
			},
			msg: "lists unknown element",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRegistry(tt.descs())
			if err == nil {
				t.Fatal("expected an error, but none occurred")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("expected error containing %q, got: %v", tt.msg, err)
			}
		})
	}
}

func TestRegistryTablesConsistent(t *testing.T) {
	r := DefaultRegistry()

	for _, ft := range FrameTypes() {
		fi, err := Table(ft)
		if err != nil {
			t.Fatalf("no table for %s: %v", ft, err)
		}

		seen := make(map[Key]bool)
		for _, en := range fi.Entries {
			if seen[en.Key] {
				t.Errorf("%s: element %s listed twice", ft, en.Key)
			}
			seen[en.Key] = true

			d, ok := r.Lookup(ft, en.Key)
			if !ok {
				t.Errorf("%s: lookup of listed element %s failed", ft, en.Key)
				continue
			}
			if d.Key != en.Key {
				t.Errorf("%s: lookup of %s returned %s", ft, en.Key, d.Key)
			}
		}

		if fi.IsAction && fi.FixedLen < 2 {
			t.Errorf("%s: action frame fixed length %d", ft, fi.FixedLen)
		}
	}

	if _, err := Table(FrameType(99)); err != ErrUnknownFrameType {
		t.Fatalf("expected ErrUnknownFrameType, got: %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	tests := []struct {
		name string
		t    FrameType
		k    Key
		want Key
		ok   bool
	}{
		{
			name: "plain element",
			t:    FrameBeacon,
			k:    idKey(ElementSSID),
			want: idKey(ElementSSID),
			ok:   true,
		},
		{
			name: "element not in table",
			t:    FrameDeauthentication,
			k:    idKey(ElementSSID),
		},
		{
			name: "extension",
			t:    FrameBeacon,
			k:    extKey(ExtHEOperation),
			want: extKey(ExtHEOperation),
			ok:   true,
		},
		{
			name: "unknown extension",
			t:    FrameBeacon,
			k:    extKey(200),
		},
		{
			name: "vendor subtype",
			t:    FrameBeacon,
			k:    vendorSubKey(OUIMicrosoft, ouiTypeWMM, wmmSubtypeParameter),
			want: wmmParam,
			ok:   true,
		},
		{
			name: "vendor subtype falls back to type",
			t:    FrameBeacon,
			k:    vendorSubKey(OUIMicrosoft, ouiTypeWPA, 1),
			want: wpa,
			ok:   true,
		},
		{
			name: "vendor subtype not in table falls back to generic",
			t:    FrameBeacon,
			k:    vendorSubKey(OUIMicrosoft, ouiTypeWMM, wmmSubtypeInfo),
			want: genericVendor,
			ok:   true,
		},
		{
			name: "unknown OUI",
			t:    FrameProbeRequest,
			k:    vendorKey(OUI{0x00, 0x10, 0x18}, 2),
			want: genericVendor,
			ok:   true,
		},
		{
			name: "vendor without generic slot",
			t:    FrameTPCRequest,
			k:    vendorKey(OUIMicrosoft, ouiTypeWPA),
		},
		{
			name: "unknown frame type",
			t:    FrameType(99),
			k:    idKey(ElementSSID),
		},
	}

	r := DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := r.Lookup(tt.t, tt.k)
			if ok != tt.ok {
				t.Fatalf("unexpected lookup result: %v", ok)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, d.Key); diff != "" {
				t.Fatalf("unexpected key (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		name string
		id   ElementID
		body []byte
		want Key
		ok   bool
	}{
		{
			name: "plain",
			id:   ElementRSN,
			body: []byte{1, 0},
			want: idKey(ElementRSN),
			ok:   true,
		},
		{
			name: "extension",
			id:   ElementExtension,
			body: []byte{ExtHECapabilities, 0},
			want: extKey(ExtHECapabilities),
			ok:   true,
		},
		{
			name: "empty extension",
			id:   ElementExtension,
		},
		{
			name: "vendor with subtype",
			id:   ElementVendor,
			body: []byte{0x00, 0x50, 0xf2, 0x02, 0x01, 0x01},
			want: vendorSubKey(OUIMicrosoft, 2, 1),
			ok:   true,
		},
		{
			name: "vendor type only",
			id:   ElementVendor,
			body: []byte{0x50, 0x6f, 0x9a, 0x09},
			want: vendorKey(OUIWFA, 9),
			ok:   true,
		},
		{
			name: "short vendor",
			id:   ElementVendor,
			body: []byte{0x00, 0x50},
			want: genericVendor,
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := keyOf(tt.id, tt.body)
			if ok != tt.ok {
				t.Fatalf("unexpected ok: %v", ok)
			}
			if diff := cmp.Diff(tt.want, k); diff != "" {
				t.Fatalf("unexpected key (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKeyPrefix(t *testing.T) {
	for _, d := range DefaultRegistry().Descriptors() {
		p := d.Key.appendPrefix(nil)
		if len(p) != d.Key.prefixLen() {
			t.Errorf("%s: prefix %x has length %d, want %d", d.Key, p, len(p), d.Key.prefixLen())
		}
		if d.Key.prefixLen() == 0 {
			continue
		}

		k, ok := keyOf(d.Key.ID, p)
		if !ok || k != d.Key {
			t.Errorf("%s: prefix %x resolves to %s", d.Key, p, k)
		}
	}
}

func TestBitLayoutsRoundTrip(t *testing.T) {
	for _, l := range bitLayouts {
		l := l
		t.Run(l.Name, func(t *testing.T) {
			f := func(word uint32) bool {
				b := make([]byte, l.Size())
				for i := range b {
					b[i] = byte(word >> (8 * i))
				}

				v, err := l.Unpack(b)
				if err != nil {
					return false
				}
				got, err := l.Pack(v)
				if err != nil {
					return false
				}
				if !bytes.Equal(b, got) {
					return false
				}

				// The same word read through the reversed layout yields the
				// fields in reverse order.
				rv := l.Reverse().Split(word & (1<<l.Width - 1))
				for i := range v {
					if v[i] != rv[len(rv)-1-i] {
						return false
					}
				}
				return true
			}

			if err := quick.Check(f, nil); err != nil {
				t.Fatalf("layout %s not symmetric: %v", l.Name, err)
			}
		})
	}
}
