// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message provides the MSV3 data model and the builders for the
operation-specific XML fragments.

# Operations

Three operations are supported, each identified by the name of its SOAP body
element:

	ActionAvailability = "VerfuegbarkeitAbfragen"
	ActionSubmitOrder  = "BestellungAbsenden"
	ActionPlaceOrder   = "bestellen"

# Building Fragments

The builders return the operation body only; the transport package wraps it
in a SOAP envelope together with the credential elements:

	ep := &message.Endpoint{ID: "phoenix", Version: 2, BaseURL: "https://msv3.example/msv3"}
	body, err := message.BuildAvailabilityQuery(ep, []message.AvailabilityItem{
	    {ItemID: "01234567", Quantity: 3},
	})

Optional elements (MinHaltbarkeit, Kundennummer, Filiale, Liefervorgabe) are
only written when a value is present.

# Namespaces

The protocol version of the endpoint selects the namespace:

	NsMSV3v1 = "urn:msv3:v1"
	NsMSV3v2 = "urn:msv3:v2"
*/
package message
