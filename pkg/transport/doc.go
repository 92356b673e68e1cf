// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport delivers MSV3 operations to wholesalers over HTTPS.

Wholesalers differ in URL layout, SOAP version and how they authenticate, so
the Negotiator probes a fixed matrix of URL and content type combinations and
stops at the first acceptable answer.

# Attempt Order

For each candidate URL, most specific first:

	{base}/v{version}.0/{action}
	{base}/{version}.0/{action}
	{base}/v{version}.0
	{base}/{action}
	{base}

both content types are tried in order:

	application/soap+xml   (SOAP 1.2 envelope)
	text/xml               (SOAP 1.1 envelope)

Every request carries preemptive basic authentication, a browser-like
User-Agent, an Accept header covering SOAP and XML, and a SOAPAction header
of the form "<namespace>/<action>".

# Outcomes

A 2xx status or any body containing a SOAP envelope is accepted, including a
500 carrying a fault. 404 and 405 skip the remaining content types of that
URL. Attempts never run in parallel, which guarantees at most one accepted
order submission.

When the matrix is exhausted Send returns one of:

	*ConnectivityError        no attempt got an HTTP response
	*AuthenticationError      every answer was 401
	*ExhaustedFallbackError   last status and a body snippet of at most 1000 characters

# Client Usage

	n := transport.NewNegotiator(transport.Config{
	    Observer: auditObserver,
	    Routes:   transport.NewRouteMemory(),
	})
	resp, err := n.Send(ctx, endpoint, message.ActionAvailability, fragment)

Each attempt is reported to the configured AttemptObserver with the password
element redacted, traced as an OpenTelemetry client span and counted in the
msv3.transport.attempts metric.
*/
package transport
