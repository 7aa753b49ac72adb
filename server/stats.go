// File: server/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

// Stats is a snapshot of reactor counters. Connections and Upgraded are
// gauges; the rest are totals since start.
type Stats struct {
	Connections        int64
	Upgraded           int64
	Accepted           int64
	Disconnected       int64
	RejectedHandshakes int64
	ProtocolErrors     int64
	Overflows          int64
	RateLimited        int64
	BytesIn            int64
	BytesOut           int64
	MessagesIn         int64
	MessagesOut        int64
	Rebuilds           int64
}

// publish copies the counters into the reusable metrics map.
func (st *Stats) publish(dst map[string]int64) {
	dst["ws.connections"] = st.Connections
	dst["ws.upgraded"] = st.Upgraded
	dst["ws.accepted"] = st.Accepted
	dst["ws.disconnected"] = st.Disconnected
	dst["ws.rejected_handshakes"] = st.RejectedHandshakes
	dst["ws.protocol_errors"] = st.ProtocolErrors
	dst["ws.overflows"] = st.Overflows
	dst["ws.rate_limited"] = st.RateLimited
	dst["ws.bytes_in"] = st.BytesIn
	dst["ws.bytes_out"] = st.BytesOut
	dst["ws.messages_in"] = st.MessagesIn
	dst["ws.messages_out"] = st.MessagesOut
	dst["ws.poll_rebuilds"] = st.Rebuilds
}
