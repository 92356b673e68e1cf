// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package availability derives a normalized availability status for an order
line from the wholesaler's share ("Anteil") records.

Wholesalers describe how an ordered quantity will be fulfilled as a list of
shares, each tagged with free text such as "delivery now" or "no delivery but
back-order possible". Derive turns that list into one of five status codes.

# Rule Table

A share counts as immediately deliverable when its type tag contains one of
DeliveryKeywords and none of NoDeliveryKeywords or BackOrderKeywords. Matching
is a case-insensitive substring match. The rules are evaluated in order:

	deliverable sum >= ordered quantity   SOFORT_LIEFERBAR
	deliverable sum > 0                   TEILLIEFERBAR
	any share tagged as back-order        NACHLIEFERUNG_MOEGLICH
	any share tagged as no delivery       NICHT_LIEFERBAR
	otherwise (including no shares)       UNBEKANNT

NextDelivery is the earliest delivery timestamp across all shares. Reason and
Type are taken from the first share.
*/
package availability
