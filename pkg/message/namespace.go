package message

import "fmt"

// Namespace constants for the SOAP envelopes and the MSV3 protocol versions.
const (
	NsSOAP11 = "http://schemas.xmlsoap.org/soap/envelope/"
	NsSOAP12 = "http://www.w3.org/2003/05/soap-envelope"
	NsMSV3v1 = "urn:msv3:v1"
	NsMSV3v2 = "urn:msv3:v2"
)

// PrefixMSV3 is the element prefix used for every MSV3 element we emit.
const PrefixMSV3 = "msv3"

// MSV3 operation names. The operation element in the SOAP body carries the
// same name.
const (
	ActionAvailability = "VerfuegbarkeitAbfragen"
	ActionSubmitOrder  = "BestellungAbsenden"
	ActionPlaceOrder   = "bestellen"
)

// Namespace returns the MSV3 namespace URI for a protocol version.
func Namespace(version int) (string, error) {
	switch version {
	case 1:
		return NsMSV3v1, nil
	case 2:
		return NsMSV3v2, nil
	default:
		return "", fmt.Errorf("unsupported MSV3 protocol version %d", version)
	}
}

// SOAPAction returns the quoted SOAPAction header value for an operation,
// e.g. "urn:msv3:v2/VerfuegbarkeitAbfragen".
func SOAPAction(namespace, action string) string {
	return `"` + namespace + "/" + action + `"`
}

// qualified returns a prefixed MSV3 element name.
func qualified(local string) string {
	return PrefixMSV3 + ":" + local
}
