package dot11

// Elements holds the information elements of one frame body. A nil pointer
// or an empty slice means the element is absent. Which fields a frame type
// may carry, and in what order they are emitted, is fixed by its Table.
type Elements struct {
	SSID                   *SSID
	SupportedRates         *Rates
	DSParameterSet         *DSParameterSet
	TIM                    *TIM
	Country                *Country
	BSSLoad                *BSSLoad
	EDCAParameterSet       *EDCAParameterSet
	TSPEC                  *TSPEC
	TCLAS                  []TCLAS
	Schedule               *Schedule
	ChallengeText          *ChallengeText
	PowerConstraint        *PowerConstraint
	PowerCapability        *PowerCapability
	TPCRequest             *TPCRequest
	TPCReport              *TPCReport
	SupportedChannels      *SupportedChannels
	ChannelSwitch          *ChannelSwitch
	MeasurementRequests    []MeasurementRequest
	ERPInfo                *ERPInfo
	TSDelay                *TSDelay
	TCLASProcessing        *TCLASProcessing
	HTCapabilities         *HTCapabilities
	QoSCapability          *QoSInfo
	RSN                    *RSN
	ExtendedRates          *Rates
	NeighborReports        []NeighborReport
	MobilityDomain         *MobilityDomain
	FastTransition         *FastTransition
	TimeoutInterval        *TimeoutInterval
	OperatingClasses       *OperatingClasses
	HTOperation            *HTOperation
	SecondaryChannelOffset *SecondaryChannelOffset
	RMEnabledCapabilities  *RMEnabledCapabilities
	MultipleBSSID          *MultipleBSSID
	BSSCoexistence         *BSSCoexistence
	OBSSScanParameters     *OBSSScanParameters
	Interworking           *Interworking
	QoSMap                 *QoSMap
	ExtendedCapabilities   *ExtendedCapabilities
	VHTCapabilities        *VHTCapabilities
	VHTOperation           *VHTOperation
	TransmitPowerEnvelope  *TransmitPowerEnvelope
	OperatingMode          *OperatingMode
	HECapabilities         *HECapabilities
	HEOperation            *HEOperation
	MultiLink              *MultiLink

	WPA          *Opaque
	WMMInfo      *WMMInfo
	WMMParameter *WMMParameter
	WSC          *Opaque
	P2P          *Opaque
	Vendor       []VendorSpecific
}

// Rates returns the combined Supported Rates and Extended Supported Rates.
func (e *Elements) Rates() Rates {
	var rs Rates
	if e.SupportedRates != nil {
		rs = append(rs, *e.SupportedRates...)
	}
	if e.ExtendedRates != nil {
		rs = append(rs, *e.ExtendedRates...)
	}
	return rs
}

// SetRates stores rs as Supported Rates, spilling entries past the eighth
// into Extended Supported Rates.
func (e *Elements) SetRates(rs Rates) {
	e.SupportedRates, e.ExtendedRates = nil, nil
	if len(rs) == 0 {
		return
	}

	n := len(rs)
	if n > maxSupportedRates {
		n = maxSupportedRates
	}
	sr := append(Rates(nil), rs[:n]...)
	e.SupportedRates = &sr

	if len(rs) > n {
		xr := append(Rates(nil), rs[n:]...)
		e.ExtendedRates = &xr
	}
}

// elements returns the receiver, so that frames embedding Elements satisfy
// Frame.
func (e *Elements) elements() *Elements { return e }
