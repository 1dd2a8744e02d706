package dot11

import (
	"fmt"
	"reflect"
)

// Pack encodes f as a frame body: the fixed fields, then every present
// element in the frame type's table order. Pack never truncates; a payload
// above its descriptor's maximum fails with ErrOverflow. f is not modified.
// A nil f, or a nil pointer of a frame type, fails with ErrNilFrame.
func (c *Codec) Pack(f Frame) ([]byte, error) {
	if f == nil {
		return nil, &EncodeError{Frame: noFrame, Err: ErrNilFrame}
	}
	if v := reflect.ValueOf(f); v.Kind() == reflect.Ptr && v.IsNil() {
		err := &EncodeError{Frame: f.Type(), Err: ErrNilFrame}
		c.metrics.observeEncode(f.Type(), err)
		return nil, err
	}

	b, err := c.pack(f)
	c.metrics.observeEncode(f.Type(), err)
	return b, err
}

func (c *Codec) pack(f Frame) ([]byte, error) {
	t := f.Type()
	fi, ok := tables[t]
	if !ok {
		return nil, &EncodeError{Frame: t, Err: ErrUnknownFrameType}
	}

	b := make([]byte, 0, 256)
	if fi.IsAction {
		b = append(b, fi.Category, fi.ActionCode)
	}

	b, err := f.marshalFixed(b)
	if err != nil {
		return nil, &EncodeError{Frame: t, Err: fmt.Errorf("%w: %v", errFixedField, err)}
	}

	return c.appendElements(b, fi, f.elements())
}

// PackElements encodes only the elements of e, as permitted and ordered by
// frame type t.
func (c *Codec) PackElements(t FrameType, e *Elements) ([]byte, error) {
	b, err := c.packElements(t, e)
	c.metrics.observeEncode(t, err)
	return b, err
}

func (c *Codec) packElements(t FrameType, e *Elements) ([]byte, error) {
	fi, ok := tables[t]
	if !ok {
		return nil, &EncodeError{Frame: t, Err: ErrUnknownFrameType}
	}
	return c.appendElements(make([]byte, 0, 256), fi, e)
}

func (c *Codec) appendElements(b []byte, fi *FrameInfo, e *Elements) ([]byte, error) {
	t := fi.Type

	for _, d := range c.reg.descs {
		if d.count(e) == 0 {
			continue
		}
		if _, ok := fi.entry(d.Key); !ok {
			return nil, &EncodeError{Frame: t, Key: d.Key, Err: ErrElementNotPermitted}
		}
	}

	for _, en := range fi.Entries {
		d := c.reg.descriptor(en.Key)
		ps, err := d.encode(e)
		if err != nil {
			return nil, &EncodeError{Frame: t, Key: d.Key, Err: err}
		}
		if len(ps) > en.Max {
			return nil, &EncodeError{Frame: t, Key: d.Key, Err: fmt.Errorf("%w: %d instances of %s, at most %d",
				ErrOverflow, len(ps), d.Name, en.Max)}
		}

		for _, p := range ps {
			if b, err = appendElement(b, d, p); err != nil {
				return nil, &EncodeError{Frame: t, Key: d.Key, Err: err}
			}
		}
	}

	return b, nil
}

// appendElement writes one element: header, key prefix and payload. A
// fragmentable body longer than one element continues in Fragment
// elements.
func appendElement(b []byte, d *Descriptor, p []byte) ([]byte, error) {
	if len(p) > d.MaxLen {
		return nil, fmt.Errorf("%w: %s payload length %d, at most %d", ErrOverflow, d.Name, len(p), d.MaxLen)
	}

	body := d.Key.appendPrefix(make([]byte, 0, d.Key.prefixLen()+len(p)))
	body = append(body, p...)

	if len(body) <= 255 {
		b = append(b, byte(d.Key.ID), byte(len(body)))
		return append(b, body...), nil
	}
	if !d.Fragmentable {
		return nil, fmt.Errorf("%w: %s element length %d", ErrOverflow, d.Name, len(body))
	}

	b = append(b, byte(d.Key.ID), 255)
	b = append(b, body[:255]...)
	for rest := body[255:]; len(rest) > 0; {
		n := len(rest)
		if n > 255 {
			n = 255
		}
		b = append(b, byte(ElementFragment), byte(n))
		b = append(b, rest[:n]...)
		rest = rest[n:]
	}
	return b, nil
}
