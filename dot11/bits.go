package dot11

import "github.com/wlanctl/wifi/internal/bitfield"

// Bit-packed field layouts. Each declares the order it was authored in; the
// wire format does not depend on it.
var (
	capabilityInfoLayout = bitfield.MustNew("capability-info", bitfield.LSBFirst, 16,
		bitfield.F("ess", 1),
		bitfield.F("ibss", 1),
		bitfield.F("cf_pollable", 1),
		bitfield.F("cf_poll_request", 1),
		bitfield.F("privacy", 1),
		bitfield.F("short_preamble", 1),
		bitfield.F("", 2),
		bitfield.F("spectrum_mgmt", 1),
		bitfield.F("qos", 1),
		bitfield.F("short_slot_time", 1),
		bitfield.F("apsd", 1),
		bitfield.F("radio_measurement", 1),
		bitfield.F("epd", 1),
		bitfield.F("", 2),
	)

	erpInfoLayout = bitfield.MustNew("erp-info", bitfield.LSBFirst, 8,
		bitfield.F("non_erp_present", 1),
		bitfield.F("use_protection", 1),
		bitfield.F("barker_preamble", 1),
		bitfield.F("", 5),
	)

	qosInfoLayout = bitfield.MustNew("qos-info", bitfield.LSBFirst, 8,
		bitfield.F("vo_uapsd", 1),
		bitfield.F("vi_uapsd", 1),
		bitfield.F("bk_uapsd", 1),
		bitfield.F("be_uapsd", 1),
		bitfield.F("q_ack", 1),
		bitfield.F("max_sp_length", 2),
		bitfield.F("more_data_ack", 1),
	)

	apQoSInfoLayout = bitfield.MustNew("ap-qos-info", bitfield.LSBFirst, 8,
		bitfield.F("parameter_set_count", 4),
		bitfield.F("q_ack", 1),
		bitfield.F("queue_request", 1),
		bitfield.F("txop_request", 1),
		bitfield.F("uapsd", 1),
	)

	aciAIFSNLayout = bitfield.MustNew("aci-aifsn", bitfield.LSBFirst, 8,
		bitfield.F("aifsn", 4),
		bitfield.F("acm", 1),
		bitfield.F("aci", 2),
		bitfield.F("", 1),
	)

	ecwLayout = bitfield.MustNew("ecw", bitfield.LSBFirst, 8,
		bitfield.F("ecw_min", 4),
		bitfield.F("ecw_max", 4),
	)

	tsInfoLayout = bitfield.MustNew("ts-info", bitfield.LSBFirst, 24,
		bitfield.F("traffic_type", 1),
		bitfield.F("tsid", 4),
		bitfield.F("direction", 2),
		bitfield.F("access_policy", 2),
		bitfield.F("aggregation", 1),
		bitfield.F("apsd", 1),
		bitfield.F("user_priority", 3),
		bitfield.F("ack_policy", 2),
		bitfield.F("schedule", 1),
		bitfield.F("", 7),
	)

	scheduleInfoLayout = bitfield.MustNew("schedule-info", bitfield.LSBFirst, 16,
		bitfield.F("aggregation", 1),
		bitfield.F("tsid", 4),
		bitfield.F("direction", 2),
		bitfield.F("", 9),
	)

	// Authored most significant bit first, as in big-endian driver headers.
	htCapabilityInfoLayout = bitfield.MustNew("ht-capability-info", bitfield.MSBFirst, 16,
		bitfield.F("lsig_txop_protection", 1),
		bitfield.F("forty_mhz_intolerant", 1),
		bitfield.F("", 1),
		bitfield.F("dsss_cck_40", 1),
		bitfield.F("max_amsdu_7935", 1),
		bitfield.F("delayed_block_ack", 1),
		bitfield.F("rx_stbc", 2),
		bitfield.F("tx_stbc", 1),
		bitfield.F("sgi_40", 1),
		bitfield.F("sgi_20", 1),
		bitfield.F("greenfield", 1),
		bitfield.F("sm_power_save", 2),
		bitfield.F("channel_width_40", 1),
		bitfield.F("ldpc", 1),
	)

	ampduParamsLayout = bitfield.MustNew("ampdu-params", bitfield.LSBFirst, 8,
		bitfield.F("max_length_exponent", 2),
		bitfield.F("min_mpdu_spacing", 3),
		bitfield.F("", 3),
	)

	htOperationInfo1Layout = bitfield.MustNew("ht-operation-info-1", bitfield.LSBFirst, 8,
		bitfield.F("secondary_channel_offset", 2),
		bitfield.F("sta_channel_width", 1),
		bitfield.F("rifs", 1),
		bitfield.F("", 4),
	)

	htOperationInfo2Layout = bitfield.MustNew("ht-operation-info-2", bitfield.LSBFirst, 16,
		bitfield.F("ht_protection", 2),
		bitfield.F("non_greenfield_present", 1),
		bitfield.F("", 1),
		bitfield.F("obss_non_ht_present", 1),
		bitfield.F("center_frequency_segment_2", 8),
		bitfield.F("", 3),
	)

	htOperationInfo3Layout = bitfield.MustNew("ht-operation-info-3", bitfield.MSBFirst, 16,
		bitfield.F("", 7),
		bitfield.F("stbc_beacon", 1),
		bitfield.F("dual_cts_protection", 1),
		bitfield.F("dual_beacon", 1),
		bitfield.F("", 6),
	)

	vhtCapabilityInfoLayout = bitfield.MustNew("vht-capability-info", bitfield.LSBFirst, 32,
		bitfield.F("max_mpdu_length", 2),
		bitfield.F("supported_channel_width", 2),
		bitfield.F("rx_ldpc", 1),
		bitfield.F("sgi_80", 1),
		bitfield.F("sgi_160", 1),
		bitfield.F("tx_stbc", 1),
		bitfield.F("rx_stbc", 3),
		bitfield.F("su_beamformer", 1),
		bitfield.F("su_beamformee", 1),
		bitfield.F("beamformee_sts", 3),
		bitfield.F("sounding_dimensions", 3),
		bitfield.F("mu_beamformer", 1),
		bitfield.F("mu_beamformee", 1),
		bitfield.F("txop_ps", 1),
		bitfield.F("htc_vht", 1),
		bitfield.F("max_ampdu_exponent", 3),
		bitfield.F("link_adaptation", 2),
		bitfield.F("rx_antenna_pattern", 1),
		bitfield.F("tx_antenna_pattern", 1),
		bitfield.F("extended_nss_bw", 2),
	)

	rsnCapabilitiesLayout = bitfield.MustNew("rsn-capabilities", bitfield.MSBFirst, 16,
		bitfield.F("", 1),
		bitfield.F("ocvc", 1),
		bitfield.F("extended_key_id", 1),
		bitfield.F("pbac", 1),
		bitfield.F("spp_amsdu_required", 1),
		bitfield.F("spp_amsdu_capable", 1),
		bitfield.F("peerkey", 1),
		bitfield.F("joint_multiband", 1),
		bitfield.F("mfpc", 1),
		bitfield.F("mfpr", 1),
		bitfield.F("gtksa_replay_counter", 2),
		bitfield.F("ptksa_replay_counter", 2),
		bitfield.F("no_pairwise", 1),
		bitfield.F("preauth", 1),
	)

	operatingModeLayout = bitfield.MustNew("operating-mode", bitfield.LSBFirst, 8,
		bitfield.F("channel_width", 2),
		bitfield.F("bw_160", 1),
		bitfield.F("no_ldpc", 1),
		bitfield.F("rx_nss", 3),
		bitfield.F("rx_nss_type", 1),
	)

	bssCoexistenceLayout = bitfield.MustNew("bss-coexistence", bitfield.LSBFirst, 8,
		bitfield.F("information_request", 1),
		bitfield.F("forty_mhz_intolerant", 1),
		bitfield.F("twenty_mhz_width_request", 1),
		bitfield.F("obss_exemption_request", 1),
		bitfield.F("obss_exemption_grant", 1),
		bitfield.F("", 3),
	)

	measurementModeLayout = bitfield.MustNew("measurement-request-mode", bitfield.LSBFirst, 8,
		bitfield.F("parallel", 1),
		bitfield.F("enable", 1),
		bitfield.F("request", 1),
		bitfield.F("report", 1),
		bitfield.F("duration_mandatory", 1),
		bitfield.F("", 3),
	)

	heOperationParamsLayout = bitfield.MustNew("he-operation-params", bitfield.LSBFirst, 24,
		bitfield.F("default_pe_duration", 3),
		bitfield.F("twt_required", 1),
		bitfield.F("txop_rts_threshold", 10),
		bitfield.F("vht_operation_present", 1),
		bitfield.F("co_hosted_bss", 1),
		bitfield.F("er_su_disable", 1),
		bitfield.F("six_ghz_operation_present", 1),
		bitfield.F("", 6),
	)

	bssColorLayout = bitfield.MustNew("bss-color", bitfield.LSBFirst, 8,
		bitfield.F("color", 6),
		bitfield.F("partial", 1),
		bitfield.F("disabled", 1),
	)

	accessNetworkLayout = bitfield.MustNew("access-network-options", bitfield.LSBFirst, 8,
		bitfield.F("type", 4),
		bitfield.F("internet", 1),
		bitfield.F("asra", 1),
		bitfield.F("esr", 1),
		bitfield.F("uesa", 1),
	)

	ftCapabilityLayout = bitfield.MustNew("ft-capability", bitfield.LSBFirst, 8,
		bitfield.F("over_ds", 1),
		bitfield.F("resource_request", 1),
		bitfield.F("", 6),
	)

	micControlLayout = bitfield.MustNew("mic-control", bitfield.LSBFirst, 16,
		bitfield.F("rsnxe_used", 1),
		bitfield.F("", 7),
		bitfield.F("element_count", 8),
	)

	bssidInfoLayout = bitfield.MustNew("bssid-info", bitfield.LSBFirst, 32,
		bitfield.F("reachability", 2),
		bitfield.F("security", 1),
		bitfield.F("key_scope", 1),
		bitfield.F("spectrum_mgmt", 1),
		bitfield.F("qos", 1),
		bitfield.F("apsd", 1),
		bitfield.F("radio_measurement", 1),
		bitfield.F("delayed_block_ack", 1),
		bitfield.F("immediate_block_ack", 1),
		bitfield.F("mobility_domain", 1),
		bitfield.F("high_throughput", 1),
		bitfield.F("very_high_throughput", 1),
		bitfield.F("ftm", 1),
		bitfield.F("high_efficiency", 1),
		bitfield.F("er_bss", 1),
		bitfield.F("", 16),
	)
)

// bitLayouts lists every layout above, for registry validation.
var bitLayouts = []*bitfield.Layout{
	capabilityInfoLayout,
	erpInfoLayout,
	qosInfoLayout,
	apQoSInfoLayout,
	aciAIFSNLayout,
	ecwLayout,
	tsInfoLayout,
	scheduleInfoLayout,
	htCapabilityInfoLayout,
	ampduParamsLayout,
	htOperationInfo1Layout,
	htOperationInfo2Layout,
	htOperationInfo3Layout,
	vhtCapabilityInfoLayout,
	rsnCapabilitiesLayout,
	operatingModeLayout,
	bssCoexistenceLayout,
	measurementModeLayout,
	heOperationParamsLayout,
	bssColorLayout,
	accessNetworkLayout,
	ftCapabilityLayout,
	micControlLayout,
	bssidInfoLayout,
}

// A word accumulates or exposes named field values of one layout.
type word struct {
	l *bitfield.Layout
	v bitfield.Values
}

func newWord(l *bitfield.Layout) *word {
	return &word{l: l, v: make(bitfield.Values, len(l.Fields))}
}

// readWord decodes the layout's word from the start of b.
func readWord(l *bitfield.Layout, b []byte) (*word, error) {
	v, err := l.Unpack(b)
	if err != nil {
		return nil, malformed("%s: %v", l.Name, err)
	}

	return &word{l: l, v: v}, nil
}

func (w *word) set(name string, x uint32) *word {
	if i := w.l.Index(name); i >= 0 {
		w.v[i] = x
	}
	return w
}

func (w *word) flag(name string, b bool) *word {
	if b {
		return w.set(name, 1)
	}
	return w.set(name, 0)
}

func (w *word) get(name string) uint32 { return w.l.Get(w.v, name) }

func (w *word) isSet(name string) bool { return w.get(name) != 0 }

// append packs the word onto b.
func (w *word) append(b []byte) ([]byte, error) {
	p, err := w.l.Pack(w.v)
	if err != nil {
		return nil, err
	}
	return append(b, p...), nil
}
