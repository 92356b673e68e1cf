package response

import (
	"strings"

	"github.com/beevik/etree"
)

// Fault text elements in order of preference. The end-user text is meant to
// be shown to pharmacy staff, the others are technical.
var faultTextPaths = []string{
	".//*[local-name()='EndanwenderFehlertext']",
	".//*[local-name()='endUserText']",
	".//*[local-name()='Fehlertext']",
	".//*[local-name()='faultstring']",
	".//*[local-name()='Reason']/*[local-name()='Text']",
}

var faultCodePaths = []string{
	".//*[local-name()='faultcode']",
	".//*[local-name()='Code']/*[local-name()='Value']",
}

// Result is the outcome of Parse. Exactly one of Payload or Fault is set on
// success paths; on a parse failure both are empty and Raw holds the body.
type Result struct {
	Success bool
	Payload []byte
	Plain   bool
	Fault   *ProtocolFault
	Raw     []byte

	parseErr *ParseError
}

// Err returns the typed business-level error of the result, or nil.
func (r *Result) Err() error {
	switch {
	case r.Fault != nil:
		return r.Fault
	case r.parseErr != nil:
		return r.parseErr
	default:
		return nil
	}
}

type parseOptions struct {
	endpoint string
}

// Option configures Parse.
type Option func(*parseOptions)

// WithEndpoint attributes errors to the URL that produced the body.
func WithEndpoint(url string) Option {
	return func(o *parseOptions) {
		o.endpoint = url
	}
}

// Parse classifies a raw response body. It never panics and never returns
// an error directly; failures are carried in the Result.
//
// transportOK reports whether the HTTP exchange itself succeeded. A body
// that is not XML is passed through as plain text when it did.
func Parse(raw []byte, transportOK bool, opts ...Option) (res *Result) {
	o := &parseOptions{}
	for _, opt := range opts {
		opt(o)
	}

	res = &Result{Raw: raw}
	defer func() {
		if r := recover(); r != nil {
			*res = Result{Raw: raw, parseErr: &ParseError{
				Endpoint: o.endpoint,
				Reason:   "unexpected document structure",
				Body:     string(raw),
			}}
		}
	}()

	doc := etree.NewDocument()
	err := doc.ReadFromBytes(raw)
	if err != nil || doc.Root() == nil {
		if transportOK {
			res.Success = true
			res.Plain = true
			res.Payload = raw
			return res
		}
		reason := "body is not XML"
		if err == nil {
			reason = "body has no root element"
		}
		res.parseErr = &ParseError{Endpoint: o.endpoint, Reason: reason, Body: string(raw), Err: err}
		return res
	}

	if fault := doc.FindElement("//*[local-name()='Fault']"); fault != nil {
		res.Fault = &ProtocolFault{
			Endpoint: o.endpoint,
			Code:     firstText(fault, faultCodePaths),
			Message:  firstText(fault, faultTextPaths),
		}
		if res.Fault.Message == "" {
			res.Fault.Message = "unspecified fault"
		}
		return res
	}

	content := doc.Root()
	if body := doc.FindElement("//*[local-name()='Body']"); body != nil {
		children := body.ChildElements()
		if len(children) == 0 {
			res.parseErr = &ParseError{Endpoint: o.endpoint, Reason: "SOAP body is empty", Body: string(raw)}
			return res
		}
		content = children[0]
	}

	payload, err := detach(content)
	if err != nil {
		res.parseErr = &ParseError{Endpoint: o.endpoint, Reason: "serializing body content", Body: string(raw), Err: err}
		return res
	}

	res.Success = true
	res.Payload = payload
	return res
}

func firstText(el *etree.Element, paths []string) string {
	for _, p := range paths {
		if found := el.FindElement(p); found != nil {
			if text := strings.TrimSpace(found.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// detach serializes el as a standalone document, carrying over the namespace
// declarations it inherits from its ancestors.
func detach(el *etree.Element) ([]byte, error) {
	root := el.Copy()
	declared := make(map[string]bool)
	for _, a := range root.Attr {
		if isNamespaceDecl(a) {
			declared[a.FullKey()] = true
		}
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if isNamespaceDecl(a) && !declared[a.FullKey()] {
				declared[a.FullKey()] = true
				root.CreateAttr(a.FullKey(), a.Value)
			}
		}
	}

	doc := etree.NewDocument()
	doc.SetRoot(root)
	return doc.WriteToBytes()
}

func isNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}
