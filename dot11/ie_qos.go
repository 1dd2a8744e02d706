package dot11

import "encoding/binary"

// QoSInfo is the QoS Info field as sent by a non-AP station.
type QoSInfo struct {
	VOUAPSD     bool
	VIUAPSD     bool
	BKUAPSD     bool
	BEUAPSD     bool
	QAck        bool
	MaxSPLength uint8
	MoreDataAck bool
}

func (q *QoSInfo) decode(b []byte) error {
	w, err := readWord(qosInfoLayout, b)
	if err != nil {
		return err
	}
	*q = QoSInfo{
		VOUAPSD:     w.isSet("vo_uapsd"),
		VIUAPSD:     w.isSet("vi_uapsd"),
		BKUAPSD:     w.isSet("bk_uapsd"),
		BEUAPSD:     w.isSet("be_uapsd"),
		QAck:        w.isSet("q_ack"),
		MaxSPLength: uint8(w.get("max_sp_length")),
		MoreDataAck: w.isSet("more_data_ack"),
	}
	return nil
}

func (q *QoSInfo) encode(b []byte) ([]byte, error) {
	return newWord(qosInfoLayout).
		flag("vo_uapsd", q.VOUAPSD).
		flag("vi_uapsd", q.VIUAPSD).
		flag("bk_uapsd", q.BKUAPSD).
		flag("be_uapsd", q.BEUAPSD).
		flag("q_ack", q.QAck).
		set("max_sp_length", uint32(q.MaxSPLength)).
		flag("more_data_ack", q.MoreDataAck).
		append(b)
}

func (q *QoSInfo) unmarshal(b []byte) error {
	if err := wantLen("QoS capability", b, 1); err != nil {
		return err
	}
	return q.decode(b)
}

func (q *QoSInfo) marshal() ([]byte, error) { return q.encode(nil) }

// APQoSInfo is the QoS Info field as sent by an access point.
type APQoSInfo struct {
	ParameterSetCount uint8
	QAck              bool
	QueueRequest      bool
	TXOPRequest       bool
	UAPSD             bool
}

func (q *APQoSInfo) decode(b []byte) error {
	w, err := readWord(apQoSInfoLayout, b)
	if err != nil {
		return err
	}
	*q = APQoSInfo{
		ParameterSetCount: uint8(w.get("parameter_set_count")),
		QAck:              w.isSet("q_ack"),
		QueueRequest:      w.isSet("queue_request"),
		TXOPRequest:       w.isSet("txop_request"),
		UAPSD:             w.isSet("uapsd"),
	}
	return nil
}

func (q *APQoSInfo) encode(b []byte) ([]byte, error) {
	return newWord(apQoSInfoLayout).
		set("parameter_set_count", uint32(q.ParameterSetCount)).
		flag("q_ack", q.QAck).
		flag("queue_request", q.QueueRequest).
		flag("txop_request", q.TXOPRequest).
		flag("uapsd", q.UAPSD).
		append(b)
}

// ACParameters is one access category parameter record.
type ACParameters struct {
	AIFSN     uint8
	ACM       bool
	ACI       uint8
	ECWMin    uint8
	ECWMax    uint8
	TXOPLimit uint16
}

const acParametersLen = 4

func (a *ACParameters) decode(b []byte) error {
	if len(b) < acParametersLen {
		return malformed("AC parameters: length %d", len(b))
	}
	aw, err := readWord(aciAIFSNLayout, b[0:1])
	if err != nil {
		return err
	}
	ew, err := readWord(ecwLayout, b[1:2])
	if err != nil {
		return err
	}
	*a = ACParameters{
		AIFSN:     uint8(aw.get("aifsn")),
		ACM:       aw.isSet("acm"),
		ACI:       uint8(aw.get("aci")),
		ECWMin:    uint8(ew.get("ecw_min")),
		ECWMax:    uint8(ew.get("ecw_max")),
		TXOPLimit: binary.LittleEndian.Uint16(b[2:4]),
	}
	return nil
}

func (a *ACParameters) encode(b []byte) ([]byte, error) {
	b, err := newWord(aciAIFSNLayout).
		set("aifsn", uint32(a.AIFSN)).
		flag("acm", a.ACM).
		set("aci", uint32(a.ACI)).
		append(b)
	if err != nil {
		return nil, err
	}
	b, err = newWord(ecwLayout).
		set("ecw_min", uint32(a.ECWMin)).
		set("ecw_max", uint32(a.ECWMax)).
		append(b)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint16(b, a.TXOPLimit), nil
}

func decodeACs(ps *[4]ACParameters, b []byte) error {
	for i := range ps {
		if err := ps[i].decode(b[i*acParametersLen:]); err != nil {
			return err
		}
	}
	return nil
}

func encodeACs(ps *[4]ACParameters, b []byte) ([]byte, error) {
	var err error
	for i := range ps {
		if b, err = ps[i].encode(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// EDCAParameterSet carries the per-access-category contention parameters
// for best effort, background, video and voice, in that order.
type EDCAParameterSet struct {
	QoSInfo APQoSInfo
	Params  [4]ACParameters
}

func (e *EDCAParameterSet) unmarshal(b []byte) error {
	if err := wantLen("EDCA parameter set", b, 18); err != nil {
		return err
	}
	if err := e.QoSInfo.decode(b[0:1]); err != nil {
		return err
	}
	// b[1] is reserved.
	return decodeACs(&e.Params, b[2:])
}

func (e *EDCAParameterSet) marshal() ([]byte, error) {
	b, err := e.QoSInfo.encode(make([]byte, 0, 18))
	if err != nil {
		return nil, err
	}
	return encodeACs(&e.Params, append(b, 0))
}

// TSInfo is the 3-octet traffic stream info field.
type TSInfo struct {
	TrafficType  uint8
	TSID         uint8
	Direction    uint8
	AccessPolicy uint8
	Aggregation  bool
	APSD         bool
	UserPriority uint8
	AckPolicy    uint8
	Schedule     bool
}

const tsInfoLen = 3

func (t *TSInfo) decode(b []byte) error {
	w, err := readWord(tsInfoLayout, b)
	if err != nil {
		return err
	}
	*t = TSInfo{
		TrafficType:  uint8(w.get("traffic_type")),
		TSID:         uint8(w.get("tsid")),
		Direction:    uint8(w.get("direction")),
		AccessPolicy: uint8(w.get("access_policy")),
		Aggregation:  w.isSet("aggregation"),
		APSD:         w.isSet("apsd"),
		UserPriority: uint8(w.get("user_priority")),
		AckPolicy:    uint8(w.get("ack_policy")),
		Schedule:     w.isSet("schedule"),
	}
	return nil
}

func (t *TSInfo) encode(b []byte) ([]byte, error) {
	return newWord(tsInfoLayout).
		set("traffic_type", uint32(t.TrafficType)).
		set("tsid", uint32(t.TSID)).
		set("direction", uint32(t.Direction)).
		set("access_policy", uint32(t.AccessPolicy)).
		flag("aggregation", t.Aggregation).
		flag("apsd", t.APSD).
		set("user_priority", uint32(t.UserPriority)).
		set("ack_policy", uint32(t.AckPolicy)).
		flag("schedule", t.Schedule).
		append(b)
}

// TSPEC is a traffic specification. Intervals are in microseconds and
// rates in bits per second.
type TSPEC struct {
	Info               TSInfo
	NominalMSDUSize    uint16
	MaxMSDUSize        uint16
	MinServiceInterval uint32
	MaxServiceInterval uint32
	InactivityInterval uint32
	SuspensionInterval uint32
	ServiceStartTime   uint32
	MinDataRate        uint32
	MeanDataRate       uint32
	PeakDataRate       uint32
	BurstSize          uint32
	DelayBound         uint32
	MinPHYRate         uint32
	SurplusBandwidth   uint16
	MediumTime         uint16
}

const tspecLen = 55

func (t *TSPEC) u32s() []*uint32 {
	return []*uint32{
		&t.MinServiceInterval,
		&t.MaxServiceInterval,
		&t.InactivityInterval,
		&t.SuspensionInterval,
		&t.ServiceStartTime,
		&t.MinDataRate,
		&t.MeanDataRate,
		&t.PeakDataRate,
		&t.BurstSize,
		&t.DelayBound,
		&t.MinPHYRate,
	}
}

func (t *TSPEC) unmarshal(b []byte) error {
	if err := wantLen("TSPEC", b, tspecLen); err != nil {
		return err
	}
	if err := t.Info.decode(b[0:tsInfoLen]); err != nil {
		return err
	}
	t.NominalMSDUSize = binary.LittleEndian.Uint16(b[3:5])
	t.MaxMSDUSize = binary.LittleEndian.Uint16(b[5:7])

	off := 7
	for _, f := range t.u32s() {
		*f = binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
	}

	t.SurplusBandwidth = binary.LittleEndian.Uint16(b[off : off+2])
	t.MediumTime = binary.LittleEndian.Uint16(b[off+2 : off+4])
	return nil
}

func (t *TSPEC) marshal() ([]byte, error) {
	b, err := t.Info.encode(make([]byte, 0, tspecLen))
	if err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint16(b, t.NominalMSDUSize)
	b = binary.LittleEndian.AppendUint16(b, t.MaxMSDUSize)
	for _, f := range t.u32s() {
		b = binary.LittleEndian.AppendUint32(b, *f)
	}
	b = binary.LittleEndian.AppendUint16(b, t.SurplusBandwidth)
	return binary.LittleEndian.AppendUint16(b, t.MediumTime), nil
}

// TCLAS is a traffic classifier. Parameters depend on ClassifierType and
// are kept opaque.
type TCLAS struct {
	UserPriority   uint8
	ClassifierType uint8
	ClassifierMask uint8
	Parameters     []byte
}

func (t *TCLAS) unmarshal(b []byte) error {
	if len(b) < 3 {
		return malformed("TCLAS: length %d", len(b))
	}
	t.UserPriority = b[0]
	t.ClassifierType = b[1]
	t.ClassifierMask = b[2]
	t.Parameters = clone(b[3:])
	return nil
}

func (t *TCLAS) marshal() ([]byte, error) {
	b := []byte{t.UserPriority, t.ClassifierType, t.ClassifierMask}
	return append(b, t.Parameters...), nil
}

// TCLASProcessing selects how multiple TCLAS elements are combined.
type TCLASProcessing struct {
	Processing uint8
}

func (t *TCLASProcessing) unmarshal(b []byte) error {
	if err := wantLen("TCLAS processing", b, 1); err != nil {
		return err
	}
	t.Processing = b[0]
	return nil
}

func (t *TCLASProcessing) marshal() ([]byte, error) { return []byte{t.Processing}, nil }

// ScheduleInfo identifies the traffic stream a Schedule applies to.
type ScheduleInfo struct {
	Aggregation bool
	TSID        uint8
	Direction   uint8
}

// Schedule is the service schedule granted for a traffic stream.
type Schedule struct {
	Info                  ScheduleInfo
	ServiceStartTime      uint32
	ServiceInterval       uint32
	SpecificationInterval uint16
}

func (s *Schedule) unmarshal(b []byte) error {
	if err := wantLen("schedule", b, 12); err != nil {
		return err
	}
	w, err := readWord(scheduleInfoLayout, b)
	if err != nil {
		return err
	}
	s.Info = ScheduleInfo{
		Aggregation: w.isSet("aggregation"),
		TSID:        uint8(w.get("tsid")),
		Direction:   uint8(w.get("direction")),
	}
	s.ServiceStartTime = binary.LittleEndian.Uint32(b[2:6])
	s.ServiceInterval = binary.LittleEndian.Uint32(b[6:10])
	s.SpecificationInterval = binary.LittleEndian.Uint16(b[10:12])
	return nil
}

func (s *Schedule) marshal() ([]byte, error) {
	b, err := newWord(scheduleInfoLayout).
		flag("aggregation", s.Info.Aggregation).
		set("tsid", uint32(s.Info.TSID)).
		set("direction", uint32(s.Info.Direction)).
		append(make([]byte, 0, 12))
	if err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint32(b, s.ServiceStartTime)
	b = binary.LittleEndian.AppendUint32(b, s.ServiceInterval)
	return binary.LittleEndian.AppendUint16(b, s.SpecificationInterval), nil
}

// TSDelay is the delay in TUs before a rejected TS may be retried.
type TSDelay struct {
	Delay uint32
}

func (t *TSDelay) unmarshal(b []byte) error {
	if err := wantLen("TS delay", b, 4); err != nil {
		return err
	}
	t.Delay = binary.LittleEndian.Uint32(b)
	return nil
}

func (t *TSDelay) marshal() ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, t.Delay), nil
}

// A DSCPException maps one DSCP value to a user priority.
type DSCPException struct {
	DSCP         uint8
	UserPriority uint8
}

// A DSCPRange maps an inclusive DSCP range to the user priority at its
// index. Low and High of 255 leave the user priority unused.
type DSCPRange struct {
	Low  uint8
	High uint8
}

// QoSMap maps DSCP values to 802.11 user priorities.
type QoSMap struct {
	Exceptions []DSCPException
	Ranges     [8]DSCPRange
}

const maxDSCPExceptions = 21

func (q *QoSMap) unmarshal(b []byte) error {
	if len(b) < 16 || len(b)%2 != 0 {
		return malformed("QoS map: length %d", len(b))
	}

	n := (len(b) - 16) / 2
	if n > maxDSCPExceptions {
		return malformed("QoS map: %d exceptions", n)
	}

	q.Exceptions = make([]DSCPException, n)
	for i := range q.Exceptions {
		q.Exceptions[i] = DSCPException{DSCP: b[2*i], UserPriority: b[2*i+1]}
	}

	r := b[2*n:]
	for i := range q.Ranges {
		q.Ranges[i] = DSCPRange{Low: r[2*i], High: r[2*i+1]}
	}
	return nil
}

func (q *QoSMap) marshal() ([]byte, error) {
	if len(q.Exceptions) > maxDSCPExceptions {
		return nil, ErrOverflow
	}
	b := make([]byte, 0, 16+2*len(q.Exceptions))
	for _, e := range q.Exceptions {
		b = append(b, e.DSCP, e.UserPriority)
	}
	for _, r := range q.Ranges {
		b = append(b, r.Low, r.High)
	}
	return b, nil
}

// WMMInfo is the WMM Information vendor element sent by stations.
type WMMInfo struct {
	Version uint8
	QoSInfo QoSInfo
}

func (w *WMMInfo) unmarshal(b []byte) error {
	if err := wantLen("WMM information", b, 2); err != nil {
		return err
	}
	w.Version = b[0]
	return w.QoSInfo.decode(b[1:])
}

func (w *WMMInfo) marshal() ([]byte, error) {
	return w.QoSInfo.encode([]byte{w.Version})
}

// WMMParameter is the WMM Parameter vendor element sent by access points.
type WMMParameter struct {
	Version uint8
	QoSInfo APQoSInfo
	Params  [4]ACParameters
}

func (w *WMMParameter) unmarshal(b []byte) error {
	if err := wantLen("WMM parameter", b, 19); err != nil {
		return err
	}
	w.Version = b[0]
	if err := w.QoSInfo.decode(b[1:2]); err != nil {
		return err
	}
	// b[2] is reserved.
	return decodeACs(&w.Params, b[3:])
}

func (w *WMMParameter) marshal() ([]byte, error) {
	b, err := w.QoSInfo.encode([]byte{w.Version})
	if err != nil {
		return nil, err
	}
	return encodeACs(&w.Params, append(b, 0))
}
