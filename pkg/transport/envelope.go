package transport

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-msv3/pkg/message"
)

var (
	envelopeMarker = regexp.MustCompile(`<([A-Za-z_][\w.-]*:)?Envelope[\s>/]`)
	faultMarker    = regexp.MustCompile(`<([A-Za-z_][\w.-]*:)?Fault[\s>/]`)
	secretElement  = regexp.MustCompile(`(<([A-Za-z_][\w.-]*:)?passwort>)[^<]*(</([A-Za-z_][\w.-]*:)?passwort>)`)
)

// BuildEnvelope wraps an operation fragment in a SOAP envelope. The
// operation element carries the client system, user and secret ahead of the
// fragment.
func BuildEnvelope(v SOAPVersion, ep *message.Endpoint, action string, fragment []byte) ([]byte, error) {
	ns, err := ep.Namespace()
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", v.Namespace())
	env.CreateAttr("xmlns:"+message.PrefixMSV3, ns)

	body := env.CreateElement("soap:Body")
	op := body.CreateElement(message.PrefixMSV3 + ":" + action)

	clientSystem := ep.ClientSystem
	if clientSystem == "" {
		clientSystem = message.DefaultClientSystem
	}
	op.CreateElement(message.PrefixMSV3 + ":clientSoftwareKennung").SetText(clientSystem)
	op.CreateElement(message.PrefixMSV3 + ":benutzerkennung").SetText(ep.User)
	op.CreateElement(message.PrefixMSV3 + ":passwort").SetText(ep.Secret)

	if len(fragment) > 0 {
		frag := etree.NewDocument()
		if err := frag.ReadFromBytes(fragment); err != nil {
			return nil, fmt.Errorf("parsing body fragment: %w", err)
		}
		if frag.Root() == nil {
			return nil, errors.New("body fragment has no root element")
		}
		op.AddChild(frag.Root())
	}

	return doc.WriteToBytes()
}

// HasEnvelope reports whether a body looks like a SOAP envelope.
func HasEnvelope(body []byte) bool {
	return envelopeMarker.Match(body)
}

// HasFault reports whether a body carries a SOAP fault element.
func HasFault(body []byte) bool {
	return faultMarker.Match(body)
}

// RedactSecrets masks the password element of an envelope.
func RedactSecrets(body []byte) []byte {
	return secretElement.ReplaceAll(body, []byte("${1}***${3}"))
}
