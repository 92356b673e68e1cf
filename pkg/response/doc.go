// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package response classifies wholesaler answers and decodes MSV3 payloads.

Parse locates SOAP faults anywhere in the document by local name, since
wholesalers disagree on prefixes and SOAP versions. Fault messages prefer the
end-user text (EndanwenderFehlertext) over technical fault strings. Without a
fault the first child of the SOAP Body is returned as payload. Bodies that are
not XML are passed through as plain text when the HTTP exchange succeeded and
reported as a ParseError otherwise.

The Decode functions turn payloads into message and availability types using
namespace-agnostic lookups with per-field alias lists.
*/
package response
