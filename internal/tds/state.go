package tds

import "go.uber.org/atomic"

// ConnState enumerates the connection lifecycle (spec §4.6).
type ConnState int32

const (
	StateConnecting ConnState = iota
	StatePreLogin
	StateSSLNegotiation
	StateLoggingIn
	StateReady
	StateSending
	StateReceiving
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StatePreLogin:
		return "PRELOGIN"
	case StateSSLNegotiation:
		return "SSL_NEGOTIATION"
	case StateLoggingIn:
		return "LOGGING_IN"
	case StateReady:
		return "READY"
	case StateSending:
		return "SENDING"
	case StateReceiving:
		return "RECEIVING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// legalTransitions enumerates every state change the connection may
// make. transition reports an attempt outside this table by returning
// false and leaving the state unchanged; the caller decides which error
// to surface (ErrExchangeInProgress, a ProtocolError).
var legalTransitions = map[ConnState][]ConnState{
	StateConnecting:     {StatePreLogin, StateClosed},
	StatePreLogin:       {StateSSLNegotiation, StateLoggingIn, StateClosed},
	StateSSLNegotiation: {StateLoggingIn, StateClosed},
	StateLoggingIn:      {StateReady, StateClosed},
	StateReady:          {StateSending, StateClosed},
	StateSending:        {StateReceiving, StateClosed},
	StateReceiving:      {StateReady, StateClosed},
	StateClosed:         {},
}

// stateCell is a lock-free single-slot holder for the connection state,
// guarded by compare-and-swap rather than a mutex (spec §5: "atomic
// single-slot cells (CAS) for connection state").
type stateCell struct {
	v atomic.Int32
}

func newStateCell(initial ConnState) *stateCell {
	c := &stateCell{}
	c.v.Store(int32(initial))
	return c
}

func (c *stateCell) load() ConnState {
	return ConnState(c.v.Load())
}

// transition attempts to move from the cell's current state to next. It
// retries the CAS loop so a concurrent reader of the current state (for
// logging or metrics) cannot cause a spurious failure; it only fails
// when the current state does not legally permit next.
func (c *stateCell) transition(next ConnState) bool {
	for {
		cur := ConnState(c.v.Load())
		if !canTransition(cur, next) {
			return false
		}
		if c.v.CAS(int32(cur), int32(next)) {
			return true
		}
	}
}

// forceClose unconditionally moves the cell to StateClosed; CLOSED is
// reachable from every other state, so this never needs to retry past
// a concurrent legal transition.
func (c *stateCell) forceClose() {
	c.v.Store(int32(StateClosed))
}

func canTransition(from, to ConnState) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransactionStatus classifies the connection's transactional mode
// (spec §6 Upward API: Connection.transaction_status()).
type TransactionStatus int32

const (
	// TxAutoCommit is the default mode: every statement commits on its
	// own, no transaction descriptor is open.
	TxAutoCommit TransactionStatus = iota
	// TxExplicit means the out-of-scope statement layer has requested an
	// explicit transaction (e.g. issued BEGIN TRANSACTION text) but the
	// server's ENVCHANGE(BeginTx) confirming it has not arrived yet.
	// Nothing in the core sets this value, and Connection has no method
	// that sets it.
	TxExplicit
	// TxStarted means the server confirmed an open transaction via
	// ENVCHANGE(BeginTx); TransactionDescriptor() is meaningful.
	TxStarted
)

func (s TransactionStatus) String() string {
	switch s {
	case TxAutoCommit:
		return "AUTO_COMMIT"
	case TxExplicit:
		return "EXPLICIT"
	case TxStarted:
		return "STARTED"
	default:
		return "UNKNOWN"
	}
}
