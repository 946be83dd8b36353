package tds

import (
	"io"
	"log"
	"net"
	"testing"

	"github.com/sqlwire/go-tds/internal/config"
)

func newBareConnection(t *testing.T) *Connection {
	t.Helper()
	clientSide, _ := net.Pipe()
	c := &Connection{
		conn:   clientSide,
		framer: NewFramer(DefaultPacketSize),
		state:  newStateCell(StateReady),
		cfg:    config.Default(),
		log:    log.New(io.Discard, "", 0),
	}
	c.collation.Store(Collation{})
	t.Cleanup(func() { c.Close() })
	return c
}

// TestApplyEnvChangeBeginTxSetsStarted pins down the type-byte mix-up
// the core used to have: ENVCHANGE(BeginTx) must report TxStarted, and
// ENVCHANGE(CommitTx/RollbackTx) must report TxAutoCommit, never the
// reverse.
func TestApplyEnvChangeBeginTxSetsStarted(t *testing.T) {
	c := newBareConnection(t)
	desc := uint64(0x0102030405060708)

	var descBytes [8]byte
	for i := 0; i < 8; i++ {
		descBytes[i] = byte(desc >> (8 * i))
	}

	c.applyEnvChange(&EnvChangeToken{Type: EnvBeginTx, NewValue: descBytes[:]})
	if c.TransactionStatus() != TxStarted {
		t.Fatalf("got %v, want TxStarted", c.TransactionStatus())
	}
	if c.TransactionDescriptor() != desc {
		t.Fatalf("got descriptor %x, want %x", c.TransactionDescriptor(), desc)
	}

	c.applyEnvChange(&EnvChangeToken{Type: EnvCommitTx, NewValue: descBytes[:]})
	if c.TransactionStatus() != TxAutoCommit {
		t.Fatalf("got %v, want TxAutoCommit", c.TransactionStatus())
	}
}

// TestApplyEnvChangeSQLCollationUpdatesCollation covers the previously
// dead path: ENVCHANGE(SQLCollation) must be the thing that makes
// Connection.Collation() return something other than the zero value.
func TestApplyEnvChangeSQLCollationUpdatesCollation(t *testing.T) {
	c := newBareConnection(t)
	want := Collation{LCID: 0x0409, SortID: 52}

	c.applyEnvChange(&EnvChangeToken{Type: EnvSQLCollation, NewValue: want.Marshal()})

	if got := c.Collation(); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
