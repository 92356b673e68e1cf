// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package audit records every exchange with a wholesaler.
//
// A Logger truncates request and response bodies, stamps each entry with an
// ID and a timestamp and hands it to a Sink. Recording never fails the
// business operation: errors are returned for callers that care and are
// otherwise only logged.
//
// Available sinks:
//   - FileSink writes JSON lines to a size-rotated file
//   - MultiSink fans out to several sinks
//
// A storage backed sink lives with the storage implementations.
package audit
