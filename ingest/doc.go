// Package ingest feeds position reports from external sources into the
// tracking router.
//
// Two adapters are provided:
//   - MQTTConsumer subscribes to a broker topic carrying JSON position
//     payloads, one message per report.
//   - GTFSRTPoller periodically fetches a GTFS-RT VehiclePositions feed
//     and turns each vehicle entity into a report for one configured
//     organization.
//
// Both sources are at-least-once and may deliver out of order or
// duplicated; the router's staleness rule absorbs that, so adapters just
// forward everything they can parse and count the rest.
package ingest
