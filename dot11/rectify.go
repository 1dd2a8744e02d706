package dot11

// A quirk repairs one known, benign malformation left by real access
// points. It reports whether it claimed the walk's overrun.
type quirk struct {
	name string
	fix  func(w *walker, ov *overrun) bool
}

// quirks is the complete allow-list. Anything they do not claim is a
// structural error.
var quirks = []quirk{
	{name: "rsn-missing-capabilities", fix: rsnMissingCapabilities},
}

// rectify runs after the element walk. An overrunning final element is
// fatal unless a quirk claims it.
func (w *walker) rectify() error {
	ov := w.overrun
	if ov == nil {
		return nil
	}

	for _, q := range quirks {
		if !q.fix(w, ov) {
			continue
		}
		w.c.log.Warn().
			Stringer("frame", w.t).
			Uint8("element", uint8(ov.id)).
			Int("offset", ov.offset).
			Str("quirk", q.name).
			Msg("rectified element")
		return nil
	}

	k, ok := keyOf(ov.id, ov.avail)
	if !ok {
		k = idKey(ov.id)
	}
	return w.fatal(k, ov.offset, ErrElementOverrun)
}

const rsnCapabilitiesLen = 2

// rsnMissingCapabilities accepts an RSN element that is the last element,
// whose declared length exceeds the remaining bytes by exactly the size of
// the capabilities field, and whose remaining bytes form a complete RSN
// ending after the AKM suite list. The capabilities default to zero.
func rsnMissingCapabilities(w *walker, ov *overrun) bool {
	if ov.id != ElementRSN || ov.declared-len(ov.avail) != rsnCapabilitiesLen {
		return false
	}

	k := idKey(ElementRSN)
	d, ok := w.c.reg.Lookup(w.t, k)
	if !ok || d.count(w.e) > 0 || len(ov.avail) < d.MinLen {
		return false
	}

	var r RSN
	if err := r.unmarshal(ov.avail); err != nil || !r.endsAfterAKMs() {
		return false
	}
	r.Capabilities = new(RSNCapabilities)

	w.e.RSN = &r
	w.warn(k, ov.offset, ErrRSNCapabilitiesMissing)
	return true
}
