package console

import (
	"sync/atomic"
)

// AdapterMetrics contains atomic metrics for a console adapter.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type AdapterMetrics struct {
	// CommandSendCount indicates the number of commands sent (including
	// the mode-negotiation commands of Open).
	CommandSendCount atomic.Uint64
	// LineRecvCount indicates the number of reply lines consumed.
	LineRecvCount atomic.Uint64
	// AskCount indicates the number of completed ask cycles.
	AskCount atomic.Uint64

	// EchoErrCount indicates the number of non-empty echo lines seen.
	EchoErrCount atomic.Uint64
	// AckErrCount indicates the number of acknowledgement mismatches.
	AckErrCount atomic.Uint64
	// ResyncCount indicates the number of input flushes performed to
	// realign the conversation.
	ResyncCount atomic.Uint64
}

func (m *AdapterMetrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *AdapterMetrics) incLineRecvCount() {
	m.LineRecvCount.Add(1)
}

func (m *AdapterMetrics) incAskCount() {
	m.AskCount.Add(1)
}

func (m *AdapterMetrics) incEchoErrCount() {
	m.EchoErrCount.Add(1)
}

func (m *AdapterMetrics) incAckErrCount() {
	m.AckErrCount.Add(1)
}

func (m *AdapterMetrics) incResyncCount() {
	m.ResyncCount.Add(1)
}
