package dot11

import "fmt"

// Unpack decodes a management frame body of type t: the fixed fields, then
// the element list. The frame type is never inferred from b.
//
// Structural problems return a nil Frame and a *DecodeError; recoverable
// element anomalies are reported in the Outcome's Warnings and the Frame
// is still returned. Unpack never reads outside b.
func (c *Codec) Unpack(t FrameType, b []byte) (Frame, Outcome, error) {
	f, o, err := c.unpack(t, b)
	c.metrics.observeDecode(t, &o)
	return f, o, err
}

func (c *Codec) unpack(t FrameType, b []byte) (Frame, Outcome, error) {
	var o Outcome
	w := &walker{c: c, t: t, o: &o}

	fi, ok := tables[t]
	if !ok {
		err := w.fatal(Key{}, 0, ErrUnknownFrameType)
		return nil, o, err
	}
	w.fi = fi

	if len(b) < fi.FixedLen {
		err := w.fatal(Key{}, len(b), ErrTruncated)
		return nil, o, err
	}
	if fi.IsAction && (b[0] != fi.Category || b[1] != fi.ActionCode) {
		err := w.fatal(Key{}, 0, ErrActionMismatch)
		return nil, o, err
	}

	f := newFrame(t)
	f.unmarshalFixed(b[fi.headerLen():fi.FixedLen])

	w.e = f.elements()
	if err := w.run(b, fi.FixedLen); err != nil {
		return nil, o, err
	}
	return f, o, nil
}

// UnpackElements decodes a bare element list, such as the information
// elements the kernel reports for a scanned BSS, under the presence rules
// of frame type t.
func (c *Codec) UnpackElements(t FrameType, b []byte) (*Elements, Outcome, error) {
	var o Outcome
	w := &walker{c: c, t: t, o: &o, e: new(Elements)}

	var err error
	if fi, ok := tables[t]; ok {
		w.fi = fi
		err = w.run(b, 0)
	} else {
		err = w.fatal(Key{}, 0, ErrUnknownFrameType)
	}

	c.metrics.observeDecode(t, &o)
	if err != nil {
		return nil, o, err
	}
	return w.e, o, nil
}

// A walker holds the state of one element walk.
type walker struct {
	c  *Codec
	t  FrameType
	fi *FrameInfo
	e  *Elements
	o  *Outcome

	// overrun is the final element if its length ran past the buffer.
	overrun *overrun
}

type overrun struct {
	id       ElementID
	offset   int
	declared int
	avail    []byte
}

// run walks the elements in b[start:], then rectifies and checks the
// mandatory elements.
func (w *walker) run(b []byte, start int) error {
	for i := start; i < len(b); {
		if len(b)-i < 2 {
			return w.fatal(Key{}, i, ErrTruncated)
		}

		id, n := ElementID(b[i]), int(b[i+1])
		body := i + 2
		if n > len(b)-body {
			w.overrun = &overrun{id: id, offset: i, declared: n, avail: b[body:]}
			break
		}
		next := body + n

		d, ok := w.c.reg.resolve(w.t, id, b[body:next])
		if !ok {
			w.o.Skipped++
			w.c.log.Debug().
				Stringer("frame", w.t).
				Uint8("element", uint8(id)).
				Int("offset", i).
				Msg("skipping unknown element")
			i = next
			continue
		}

		data := b[body:next]
		if d.Fragmentable && n == 255 {
			var err error
			if data, next, err = w.defragment(b, data, next); err != nil {
				return err
			}
		}

		if err := w.element(d, data[d.Key.prefixLen():], i); err != nil {
			return err
		}
		i = next
	}

	if err := w.rectify(); err != nil {
		return err
	}
	return w.checkMandatory(len(b))
}

// defragment appends the Fragment elements that follow a full-length
// element to its payload.
func (w *walker) defragment(b, data []byte, next int) ([]byte, int, error) {
	out := clone(data)
	for len(b)-next >= 2 && ElementID(b[next]) == ElementFragment {
		n := int(b[next+1])
		if n > len(b)-next-2 {
			return nil, next, w.fatal(idKey(ElementFragment), next, ErrElementOverrun)
		}
		out = append(out, b[next+2:next+2+n]...)
		next += 2 + n
		if n < 255 {
			break
		}
	}
	return out, next, nil
}

// element decodes one element payload p into the walker's Elements.
func (w *walker) element(d *Descriptor, p []byte, off int) error {
	en, _ := w.fi.entry(d.Key)

	if d.count(w.e) >= en.Max {
		err := ErrDuplicateElement
		if d.Multi {
			err = ErrTooManyElements
		}
		w.warn(d.Key, off, err)
		return nil
	}

	if len(p) > d.MaxLen && d.Truncate {
		w.warn(d.Key, off, ErrSequenceTruncated)
		p = p[:d.MaxLen]
	}
	if len(p) < d.MinLen || len(p) > d.MaxLen {
		return w.invalid(en, off, fmt.Errorf("%w: %s payload length %d outside %d..%d",
			ErrElementLength, d.Name, len(p), d.MinLen, d.MaxLen))
	}

	if err := d.decode(w.e, d.Key, p); err != nil {
		return w.invalid(en, off, fmt.Errorf("%w: %v", ErrElementLength, err))
	}
	return nil
}

// invalid records a malformed element: fatal when the table marks it
// mandatory, a warning otherwise. The element stays absent.
func (w *walker) invalid(en Entry, off int, err error) error {
	if en.Mandatory {
		return w.fatal(en.Key, off, err)
	}
	w.warn(en.Key, off, err)
	return nil
}

func (w *walker) checkMandatory(end int) error {
	for _, en := range w.fi.Entries {
		if !en.Mandatory {
			continue
		}
		if d := w.c.reg.descriptor(en.Key); d != nil && d.count(w.e) == 0 {
			return w.fatal(en.Key, end, ErrMissingElement)
		}
	}
	return nil
}

func (w *walker) warn(k Key, off int, err error) {
	w.o.warn(k, off, err)
	w.c.log.Warn().
		Stringer("frame", w.t).
		Stringer("element", k).
		Int("offset", off).
		Err(err).
		Msg("element anomaly")
}

func (w *walker) fatal(k Key, off int, err error) error {
	w.o.fail(k, off, err)
	w.c.log.Debug().
		Stringer("frame", w.t).
		Stringer("element", k).
		Int("offset", off).
		Err(err).
		Msg("dropping frame")
	return &DecodeError{Frame: w.t, Key: k, Offset: off, Err: err}
}
