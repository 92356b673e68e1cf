// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package msv3 provides the client for MSV3 pharmacy wholesaler services.

# Client Creation

	client, err := msv3.NewClient(&msv3.Config{
	    Transport: transport.Config{HTTPS: transport.DefaultHTTPSConfig()},
	    Cache:     cache.New(),
	    Audit:     audit.NewLogger(sink),
	})

# Operations

	positions, err := client.QueryAvailability(ctx, endpoint, items)
	result, err := client.SubmitOrder(ctx, endpoint, orderID, positions)
	lines, err := client.PlaceOrder(ctx, endpoint, orderID, positions)

Each call builds the operation body, negotiates URL and SOAP variant with
the wholesaler, parses the answer and updates the availability cache.
Every HTTP attempt is handed to the audit logger before the call returns.

CheckAvailability answers from the cache where possible and only queries
the wholesaler for the remaining items. Compare queries several wholesalers
concurrently and returns their offers ordered by priority.

# Errors

Failures are typed and inspected with errors.As:
  - *transport.ConnectivityError
  - *transport.AuthenticationError
  - *transport.ExhaustedFallbackError
  - *response.ProtocolFault
  - *response.ParseError

An order that may have reached the wholesaler before the caller cancelled
is reported with ErrOutcomeUnknown and must be reconciled out of band.
*/
package msv3
