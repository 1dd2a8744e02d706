// Package dot11 encodes and decodes 802.11 management and action frame
// bodies: the fixed fields that follow the MAC header and the list of
// Information Elements after them.
//
// A single catalog of element descriptors (the Registry) drives both
// directions. Per frame type, a Table lists which elements may appear, in
// which order they are emitted, how many instances are allowed and which are
// mandatory. A Codec combines a Registry with optional logging and metrics:
//
//	c := dot11.NewCodec()
//	f, out, err := c.Unpack(dot11.FrameBeacon, body)
//	if err != nil {
//		// structural failure: drop the frame
//	}
//	if out.Status == dot11.StatusWarning {
//		// recoverable anomalies are listed in out.Warnings
//	}
//	b := f.(*dot11.Beacon)
//
// Decoding tolerates unknown elements, oversize rate sets and one known
// access point firmware defect (an RSN element whose trailing capability
// field is missing), and never reads past the end of the buffer.
package dot11
