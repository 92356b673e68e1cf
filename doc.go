// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gomsv3 implements a client for MSV3, the SOAP based protocol German
pharmacies use to query stock and place orders with pharmaceutical
wholesalers.

# Overview

go-msv3 builds MSV3 requests, negotiates the URL layout and SOAP variant
each wholesaler actually accepts, parses answers including SOAP faults, and
derives a normalized availability status from the wholesaler's partial
fulfillment records. Derived results are kept in a short lived cache and
every exchange is written to an audit log.

# Protocol Versions

  - MSV3 v1: namespace urn:msv3:v1
  - MSV3 v2: namespace urn:msv3:v2
  - SOAP 1.2 (application/soap+xml) and SOAP 1.1 (text/xml)

# Package Structure

The library is organized into the following packages:

	github.com/sirosfoundation/go-msv3/pkg/msv3         - Main client API
	github.com/sirosfoundation/go-msv3/pkg/message      - Endpoint model and operation bodies
	github.com/sirosfoundation/go-msv3/pkg/transport    - Envelopes, URL/content type negotiation, HTTPS
	github.com/sirosfoundation/go-msv3/pkg/response     - Fault detection and payload decoding
	github.com/sirosfoundation/go-msv3/pkg/availability - Status derivation from delivery shares
	github.com/sirosfoundation/go-msv3/pkg/cache        - Availability cache
	github.com/sirosfoundation/go-msv3/pkg/audit        - Request log

# Quick Start

To query availability:

	import (
	    "github.com/sirosfoundation/go-msv3/pkg/cache"
	    "github.com/sirosfoundation/go-msv3/pkg/message"
	    "github.com/sirosfoundation/go-msv3/pkg/msv3"
	)

	endpoint := &message.Endpoint{
	    ID:             "phoenix",
	    Version:        2,
	    BaseURL:        "https://msv3.example.de/msv3",
	    User:           user,
	    Secret:         secret,
	    CustomerNumber: "123456",
	}

	client, _ := msv3.NewClient(&msv3.Config{Cache: cache.New()})
	positions, err := client.QueryAvailability(ctx, endpoint, []message.AvailabilityItem{
	    {ItemID: "01234567", Quantity: 3},
	})

# Availability Status

Order answers list shares per position. They are reduced to one of
SOFORT_LIEFERBAR, TEILLIEFERBAR, NACHLIEFERUNG_MOEGLICH, NICHT_LIEFERBAR or
UNBEKANNT; see package availability for the rules.

# Tooling

The msv3ctl command probes wholesaler connections, runs availability
queries and orders, and lists the audit log.

# License

BSD-2-Clause License
*/
package gomsv3
