package tds

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"go.uber.org/atomic"

	"github.com/sqlwire/go-tds/internal/config"
	"github.com/sqlwire/go-tds/internal/metrics"
)

// Connection owns exactly one TDS session: one TCP (or TLS-wrapped TCP)
// socket, one Framer, and the atomic cells tracking everything the
// server can change unilaterally mid-session (spec §4.6/§5).
type Connection struct {
	conn   net.Conn
	framer *Framer
	state  *stateCell

	transactionDescriptor atomic.Uint64
	transactionStatus     atomic.Int32
	collation             atomic.Value // Collation
	columnEncryption      atomic.Bool

	serverName string
	database   string

	negotiatedTDSVersion uint32
	serverProgName       string

	cfg *config.Config
	log *log.Logger
}

// DialOptions carries the credentials and target the core needs to
// complete PRELOGIN+LOGIN7; nothing here is persisted beyond the
// handshake except ServerName/Database (surfaced via accessors).
type DialOptions struct {
	Address      string // host:port, already resolved; no instance-name lookup
	Database     string
	UserName     string
	Password     string
	AppName      string
	HostName     string
	TLSConfig    *tls.Config // nil is fine for TLSOff/TLSPreferred-without-cert-checking use
}

// Dial opens a TCP connection, negotiates PRELOGIN/TLS, and completes
// LOGIN7, returning a Connection in StateReady.
func Dial(ctx context.Context, opts DialOptions, cfg *config.Config) (*Connection, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	logger := log.New(os.Stderr, "[tds] ", log.LstdFlags)

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, &ConnectionLostError{Cause: err}
	}

	c := &Connection{
		conn:       rawConn,
		framer:     NewFramer(cfg.PacketSize),
		state:      newStateCell(StateConnecting),
		serverName: opts.Address,
		database:   opts.Database,
		cfg:        cfg,
		log:        logger,
	}
	c.collation.Store(Collation{})
	if cfg.LoginTimeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(cfg.LoginTimeout))
	}

	loginStart := time.Now()
	defer func() {
		metrics.LoginDuration.Observe(time.Since(loginStart).Seconds())
	}()

	if !c.state.transition(StatePreLogin) {
		return nil, &ProtocolError{Message: "tds: illegal state at dial start"}
	}
	metrics.ConnectionState.Reset()
	metrics.ConnectionState.WithLabelValues(StatePreLogin.String()).Set(1)

	desired := tlsModeToEncryption(cfg.TLS)
	negotiated, err := NegotiateTLS(c.conn, c.framer, desired)
	if err != nil {
		c.fail(err)
		return nil, err
	}

	if negotiated == EncryptOn || negotiated == EncryptReq {
		if !c.state.transition(StateSSLNegotiation) {
			return nil, &ProtocolError{Message: "tds: illegal state before ssl negotiation"}
		}
		metrics.ConnectionState.Reset()
		metrics.ConnectionState.WithLabelValues(StateSSLNegotiation.String()).Set(1)

		tlsCfg := opts.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		tlsConn, err := wrapTLS(c.conn, c.framer, tlsCfg)
		if err != nil {
			c.fail(err)
			return nil, err
		}
		c.conn = tlsConn
	}

	if !c.state.transition(StateLoggingIn) {
		return nil, &ProtocolError{Message: "tds: illegal state before login7"}
	}
	metrics.ConnectionState.Reset()
	metrics.ConnectionState.WithLabelValues(StateLoggingIn.String()).Set(1)

	if err := c.doLogin(opts); err != nil {
		c.fail(err)
		return nil, err
	}
	_ = c.conn.SetDeadline(time.Time{})

	if !c.state.transition(StateReady) {
		return nil, &ProtocolError{Message: "tds: illegal state after login7"}
	}
	metrics.ConnectionState.Reset()
	metrics.ConnectionState.WithLabelValues(StateReady.String()).Set(1)

	c.log.Printf("connected to %s database=%q", opts.Address, opts.Database)
	return c, nil
}

func tlsModeToEncryption(m config.TLSMode) Encryption {
	switch m {
	case config.TLSOff:
		return EncryptNotSup
	case config.TLSRequired:
		return EncryptReq
	default:
		return EncryptOn
	}
}

func (c *Connection) doLogin(opts DialOptions) error {
	info := &Login7Info{
		TDSVersion:          TDS74,
		PacketSize:           uint32(c.framer.PacketSize()),
		ClientProgVer:        0x07000000,
		ClientPID:            uint32(os.Getpid()),
		ConnectionID:         newConnectionID(),
		OptionFlags1:         OF1UseDB | OF1SetLang,
		TypeFlags:            TFSQLTDS7,
		ClientTimeZone:       0,
		ClientLCID:           0x00000409,
		HostName:             opts.HostName,
		UserName:             opts.UserName,
		Password:             opts.Password,
		AppName:              opts.AppName,
		ServerName:           opts.Address,
		ClientInterfaceName:  "go-tds",
		Database:             opts.Database,
	}

	payload := BuildLogin7(info)
	for _, pkt := range c.framer.Split(PacketLogin7, payload) {
		if err := c.writeRaw(pkt); err != nil {
			return err
		}
	}

	return c.drainLoginResponse()
}

// drainLoginResponse reads the LOGIN7 response stream: ENVCHANGE
// tokens (database/packet size/collation), an optional
// FEATUREEXTACK, a LOGINACK, and a terminal DONE. A LOGINACK-free
// stream that ends in DONE(error) surfaces the preceding ERROR as a
// ServerError; anything else malformed is a ProtocolError.
func (c *Connection) drainLoginResponse() error {
	_, payload, _, err := ReadMessage(c.conn)
	if err != nil {
		return err
	}

	r := newByteReader(payload)
	var sawLoginAck bool
	var pending *ServerError

	for r.remaining() > 0 {
		tokenType, err := r.byte()
		if err != nil {
			return err
		}

		switch tokenType {
		case tokenEnvChange:
			env, err := decodeEnvChangeToken(r)
			if err != nil {
				return err
			}
			c.applyEnvChange(env)
		case tokenInfo:
			if _, err := decodeInfoToken(false, r); err != nil {
				return err
			}
		case tokenError:
			info, err := decodeInfoToken(true, r)
			if err != nil {
				return err
			}
			pending = info.AsServerError()
			metrics.ServerErrors.Inc()
		case tokenLoginAck:
			ack, err := decodeLoginAckToken(r)
			if err != nil {
				return err
			}
			sawLoginAck = true
			c.negotiatedTDSVersion = ack.TDSVersion
			c.serverProgName = ack.ProgName
			c.log.Printf("server: %s", ack.String())
		case tokenFeatureExtAck:
			feat, err := decodeFeatureExtAckToken(r)
			if err != nil {
				return err
			}
			c.columnEncryption.Store(feat.ColumnEncryptionSupported())
		case tokenDone:
			done, err := decodeDoneToken(tokenDone, r)
			if err != nil {
				return err
			}
			if done.HasError() && pending != nil {
				return pending
			}
			if done.Final() {
				if !sawLoginAck {
					return &ProtocolError{Message: "tds: login response had no LOGINACK"}
				}
				return nil
			}
		default:
			return &ProtocolError{Message: fmt.Sprintf("tds: unexpected token 0x%02X in login response", tokenType)}
		}
	}

	return &ProtocolError{Message: "tds: login response ended without DONE"}
}

func (c *Connection) applyEnvChange(env *EnvChangeToken) {
	switch env.Type {
	case EnvPacketSize:
		var size int
		fmt.Sscanf(decodeUTF16LE(env.NewValue), "%d", &size)
		if size > 0 {
			c.framer.SetPacketSize(size)
		}
	case EnvDatabase:
		c.database = decodeUTF16LE(env.NewValue)
	case EnvSQLCollation:
		if coll, ok := env.Collation(); ok {
			c.collation.Store(coll)
		}
	case EnvBeginTx:
		if desc, ok := env.TransactionDescriptor(); ok {
			c.transactionDescriptor.Store(desc)
		}
		c.transactionStatus.Store(int32(TxStarted))
	case EnvCommitTx, EnvRollbackTx, EnvEnlistDTC, EnvDefectTx:
		// A new value that is not 8 bytes (a commit or rollback sends an
		// empty one) leaves no open transaction, so the descriptor is 0.
		desc, _ := env.TransactionDescriptor()
		c.transactionDescriptor.Store(desc)
		c.transactionStatus.Store(int32(TxAutoCommit))
	}
}

func (c *Connection) writeRaw(pkt []byte) error {
	if _, err := c.conn.Write(pkt); err != nil {
		return &ConnectionLostError{Cause: err}
	}
	if len(pkt) >= HeaderSize {
		metrics.PacketsTotal.WithLabelValues("out", PacketType(pkt[0]).String()).Inc()
	}
	metrics.BytesTotal.WithLabelValues("out").Add(float64(len(pkt)))
	return nil
}

func (c *Connection) fail(err error) {
	stage := c.state.load()
	c.state.forceClose()
	metrics.ConnectionState.Reset()
	metrics.ConnectionState.WithLabelValues(StateClosed.String()).Set(1)
	if _, ok := err.(*ProtocolError); ok {
		metrics.ProtocolErrors.WithLabelValues(stage.String()).Inc()
	}
	c.log.Printf("connection failed: %v", err)
	_ = c.conn.Close()
}

// TransactionDescriptor returns the current 8-byte transaction
// descriptor, or 0 if there is no open transaction.
func (c *Connection) TransactionDescriptor() uint64 {
	return c.transactionDescriptor.Load()
}

// TransactionStatus reports the connection's current transactional
// mode, as last confirmed by an ENVCHANGE(BeginTx/CommitTx/RollbackTx).
func (c *Connection) TransactionStatus() TransactionStatus {
	return TransactionStatus(c.transactionStatus.Load())
}

// Collation returns the server's current default collation, as most
// recently reported by an ENVCHANGE(SQLCollation), during login or in
// a later response.
func (c *Connection) Collation() Collation {
	v := c.collation.Load()
	if v == nil {
		return Collation{}
	}
	return v.(Collation)
}

// ServerName returns the address this connection dialed.
func (c *Connection) ServerName() string {
	return c.serverName
}

// NegotiatedTDSVersion returns the TDS protocol version the server
// acknowledged in LOGINACK, or 0 before login completes.
func (c *Connection) NegotiatedTDSVersion() uint32 {
	return c.negotiatedTDSVersion
}

// ServerProgName returns the server program name reported in LOGINACK
// (e.g. "Microsoft SQL Server"), or "" before login completes.
func (c *Connection) ServerProgName() string {
	return c.serverProgName
}

// ColumnEncryptionSupported reports whether the server acknowledged
// the column-encryption feature during login.
func (c *Connection) ColumnEncryptionSupported() bool {
	return c.columnEncryption.Load()
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnState {
	return c.state.load()
}

// PacketSize returns the currently negotiated packet size.
func (c *Connection) PacketSize() int {
	return c.framer.PacketSize()
}

// Database returns the database most recently reported active, either
// from LOGIN7's requested database or a later ENVCHANGE(Database).
func (c *Connection) Database() string {
	return c.database
}

// Close tears down the connection unconditionally. Safe to call from
// any state, including concurrently with an in-flight Exchange (which
// will observe a ConnectionLostError on its next read).
func (c *Connection) Close() error {
	c.state.forceClose()
	metrics.ConnectionState.Reset()
	metrics.ConnectionState.WithLabelValues(StateClosed.String()).Set(1)
	return c.conn.Close()
}

// newConnectionID generates a pseudo-random LOGIN7 ConnectionID. The
// server does not validate it; it only appears in server-side traces.
func newConnectionID() uint32 {
	return rand.Uint32()
}
