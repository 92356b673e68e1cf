package transport

import (
	"reflect"
	"testing"
)

func TestCandidates(t *testing.T) {
	got := Candidates("https://wholesaler.example/msv3", 2, "VerfuegbarkeitAbfragen")
	want := []string{
		"https://wholesaler.example/msv3/v2.0/VerfuegbarkeitAbfragen",
		"https://wholesaler.example/msv3/2.0/VerfuegbarkeitAbfragen",
		"https://wholesaler.example/msv3/v2.0",
		"https://wholesaler.example/msv3/VerfuegbarkeitAbfragen",
		"https://wholesaler.example/msv3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected candidates:\n got %v\nwant %v", got, want)
	}
}

func TestCandidates_TrailingSlash(t *testing.T) {
	got := Candidates(" https://wholesaler.example/msv3/ ", 1, "bestellen")
	if got[0] != "https://wholesaler.example/msv3/v1.0/bestellen" {
		t.Errorf("unexpected first candidate %q", got[0])
	}
	if got[len(got)-1] != "https://wholesaler.example/msv3" {
		t.Errorf("unexpected last candidate %q", got[len(got)-1])
	}
}

func TestPlan(t *testing.T) {
	urls := []string{"a", "b"}

	routes := plan(urls, nil)
	if len(routes) != 4 {
		t.Fatalf("expected 4 routes, got %d", len(routes))
	}
	if routes[0] != (Route{URL: "a", ContentType: ContentTypeSOAP12}) {
		t.Errorf("unexpected first route %+v", routes[0])
	}
	if routes[1] != (Route{URL: "a", ContentType: ContentTypeSOAP11}) {
		t.Errorf("unexpected second route %+v", routes[1])
	}

	preferred := Route{URL: "b", ContentType: ContentTypeSOAP11}
	routes = plan(urls, &preferred)
	if len(routes) != 4 {
		t.Fatalf("expected preferred route not to be repeated, got %d routes", len(routes))
	}
	if routes[0] != preferred {
		t.Errorf("expected preferred route first, got %+v", routes[0])
	}
}

func TestRoute_SOAPVersion(t *testing.T) {
	if (Route{ContentType: ContentTypeSOAP11}).SOAPVersion() != SOAP11 {
		t.Error("text/xml should pair with SOAP 1.1")
	}
	if (Route{ContentType: ContentTypeSOAP12}).SOAPVersion() != SOAP12 {
		t.Error("application/soap+xml should pair with SOAP 1.2")
	}
}
