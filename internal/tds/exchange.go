package tds

import (
	"context"
	"fmt"
	"time"

	"github.com/sqlwire/go-tds/internal/metrics"
)

// ExchangeEvent is one item the exchange engine's response stream
// delivers downstream (spec §4.7: exchange(requests_source) ->
// response_stream). Exactly one field is populated per event, in the
// order the server's tokens arrive: a COLMETADATA starts a new result
// set, each following ROW/NBCROW belongs to it, and the stream always
// ends with a Done (terminal: Final() true) or an Err.
type ExchangeEvent struct {
	Columns      *ColMetadata
	Row          *Row
	ReturnStatus *int32
	Info         *InfoToken
	ServerErr    *ServerError
	Done         *DoneToken
	Err          error
}

func (e ExchangeEvent) empty() bool {
	return e.Columns == nil && e.Row == nil && e.ReturnStatus == nil &&
		e.Info == nil && e.ServerErr == nil && e.Done == nil && e.Err == nil
}

// ExchangeResult is the old non-streaming aggregate shape: every
// (ColMetadata, Row...) result set, any RETURNSTATUS, informational
// messages, and the terminal DONE. DrainExchange assembles one from a
// channel Exchange returns.
type ExchangeResult struct {
	ResultSets   []*ResultSet
	ReturnStatus *int32
	Info         []*InfoToken
	ServerErr    *ServerError
	Done         *DoneToken
}

// ResultSet is one COLMETADATA and the rows decoded under it, up to
// the next COLMETADATA or the end of the response.
type ResultSet struct {
	Columns *ColMetadata
	Rows    []*Row
}

// DrainExchange pulls every event off a channel returned by Exchange
// until it closes, assembling the old aggregate ExchangeResult shape.
// A caller that wants to apply its own back-pressure (spec §4.7)
// should range over the channel directly instead of calling this.
func DrainExchange(events <-chan ExchangeEvent) (*ExchangeResult, error) {
	result := &ExchangeResult{}
	var curSet *ResultSet

	for e := range events {
		switch {
		case e.Err != nil:
			return nil, e.Err
		case e.Columns != nil:
			curSet = &ResultSet{Columns: e.Columns}
			result.ResultSets = append(result.ResultSets, curSet)
		case e.Row != nil:
			if curSet == nil {
				return nil, &ProtocolError{Message: "tds: ROW event with no preceding COLMETADATA"}
			}
			curSet.Rows = append(curSet.Rows, e.Row)
		case e.ReturnStatus != nil:
			result.ReturnStatus = e.ReturnStatus
		case e.Info != nil:
			result.Info = append(result.Info, e.Info)
		case e.ServerErr != nil:
			result.ServerErr = e.ServerErr
		case e.Done != nil:
			result.Done = e.Done
		}
	}
	return result, nil
}

// Exchange submits one logical request (SQLBatch or RPC payload,
// already built by the caller) and returns a channel of decoded
// response events, per spec §4.7's exchange(requests_source) ->
// response_stream contract. The core allows exactly one outstanding
// exchange per connection at a time (spec §5); a second call while one
// is in flight returns ErrExchangeInProgress.
//
// The channel is bounded (cfg.ExchangeQueueDepth); the decoder blocks
// sending the next event once it is full, so a slow consumer throttles
// how far ahead of it the socket read/decode loop runs (spec §5's
// "downstream back-pressure (awaits consumer demand)" suspension
// point). Cancelling ctx sends an ATTENTION; from then on an event is
// delivered only if the channel has room and is dropped otherwise, so a
// consumer that keeps reading still receives the server's
// attention-acknowledging DONE. The engine keeps draining the socket
// until that DONE arrives, at which point the connection returns to
// READY and the channel closes.
func (c *Connection) Exchange(ctx context.Context, pktType PacketType, payload []byte) (<-chan ExchangeEvent, error) {
	if c.state.load() == StateClosed {
		return nil, ErrConnectionClosed
	}
	if !c.state.transition(StateSending) {
		return nil, ErrExchangeInProgress
	}

	if pktType == PacketSQLBatch {
		c.log.Printf("sql_batch: %s", previewSQLBatch(skipAllHeaders(payload), c.cfg))
	}

	depth := c.cfg.ExchangeQueueDepth
	if depth < 1 {
		depth = 1
	}
	ch := make(chan ExchangeEvent, depth)
	cancelCh := make(chan struct{})

	go c.runExchange(ctx, pktType, payload, ch, cancelCh)

	return ch, nil
}

// runExchange drives one exchange end to end on its own goroutine:
// write the request, stream-decode the response, handle cancellation,
// and return the connection to READY. It always closes ch before
// returning.
func (c *Connection) runExchange(ctx context.Context, pktType PacketType, payload []byte, ch chan<- ExchangeEvent, cancelCh chan struct{}) {
	defer close(ch)

	start := time.Now()
	outcome := "ok"
	sawServerErr := false
	defer func() {
		metrics.ExchangeDuration.Observe(time.Since(start).Seconds())
		if sawServerErr && outcome == "ok" {
			outcome = "server_error"
		}
		metrics.ExchangesTotal.WithLabelValues(outcome).Inc()
	}()

	deliver := func(e ExchangeEvent) {
		if e.ServerErr != nil {
			sawServerErr = true
		}
		select {
		case ch <- e:
		case <-cancelCh:
			// After cancellation the consumer may have stopped reading:
			// queue the event if the channel has room, otherwise drop it.
			select {
			case ch <- e:
			default:
			}
		}
	}

	for _, pkt := range c.framer.Split(pktType, payload) {
		if err := c.writeRaw(pkt); err != nil {
			c.fail(err)
			outcome = "error"
			deliver(ExchangeEvent{Err: err})
			return
		}
	}

	if !c.state.transition(StateReceiving) {
		outcome = "error"
		deliver(ExchangeEvent{Err: &ProtocolError{Message: "tds: illegal state after send"}})
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- c.decodeResponseStream(deliver)
	}()

	var readErr error
	select {
	case readErr = <-done:
	case <-ctx.Done():
		close(cancelCh)
		if err := c.sendAttention(); err != nil {
			c.fail(err)
			outcome = "error"
			<-done
			deliver(ExchangeEvent{Err: err})
			return
		}
		readErr = <-done // drain until the server's ATTENTION ack completes the stream
	}

	if readErr != nil {
		c.fail(readErr)
		outcome = "error"
		deliver(ExchangeEvent{Err: readErr})
		return
	}

	if !c.state.transition(StateReady) {
		outcome = "error"
	}
}

// sendAttention writes an empty ATTENTION-typed packet to cancel the
// in-flight request, drawing its packet_id from the connection's
// shared Framer like every other outbound message (spec §5: the
// packet-id counter is "written only by the outbound encoder"). The
// server always answers with a DONE carrying the Attn status bit,
// which decodeResponseStream treats as the stream's terminal token.
func (c *Connection) sendAttention() error {
	for _, pkt := range c.framer.Split(PacketAttention, nil) {
		if err := c.writeRaw(pkt); err != nil {
			return err
		}
	}
	return nil
}

// decodeResponseStream is the back-pressured streaming decoder. It
// reads TDS packets one at a time, off the wire only as needed, and
// decodes as many complete tokens as the bytes already buffered allow
// before reading another packet — so a deliver() call that blocks
// because the consumer hasn't pulled the previous event yet also
// blocks the next socket read, exactly the "decoder blocks on send
// when the consumer is slow" behavior the engine exists to provide.
//
// packet_id is required to be contiguous mod 256 within the message
// (spec §3), same invariant ReadMessage checks for the non-streaming
// callers (login, PRELOGIN).
func (c *Connection) decodeResponseStream(deliver func(ExchangeEvent)) error {
	var buf []byte
	consumed := 0
	eom := false

	var haveFirst bool
	var expectedID byte
	var curCols *ColMetadata

	for {
		if !eom {
			hdr, pkt, err := ReadPacket(c.conn)
			if err != nil {
				return err
			}
			if !haveFirst {
				expectedID = hdr.PacketID
				haveFirst = true
			} else if hdr.PacketID != expectedID {
				return &ProtocolError{Message: fmt.Sprintf("packet id gap: expected %d, got %d", expectedID, hdr.PacketID)}
			}
			expectedID++

			metrics.PacketsTotal.WithLabelValues("in", hdr.Type.String()).Inc()
			metrics.BytesTotal.WithLabelValues("in").Add(float64(len(pkt)))

			if hdr.PayloadLength() > 0 {
				buf = append(buf, pkt[HeaderSize:]...)
			}
			if hdr.IsEOM() {
				eom = true
			}
		}

		for consumed < len(buf) {
			r := newByteReader(buf[consumed:])
			tokenType, err := r.byte()
			if err == nil {
				var event ExchangeEvent
				event, curCols, err = c.decodeExchangeToken(tokenType, r, curCols)
				if err == nil {
					consumed += r.pos
					if !event.empty() {
						deliver(event)
					}
					if event.Done != nil && event.Done.Final() {
						return nil
					}
					continue
				}
			}
			if !eom {
				break // token incomplete; wait for the next packet
			}
			return err
		}

		if eom && consumed >= len(buf) {
			return &ProtocolError{Message: "tds: exchange response ended without DONE(final)"}
		}
	}
}

// decodeExchangeToken decodes one token from r (already positioned
// past the type byte) into an ExchangeEvent, returning the ColMetadata
// a following ROW/NBCROW should decode against. ENVCHANGE is applied
// directly to connection state and never surfaced as an event, same as
// the login response path.
func (c *Connection) decodeExchangeToken(tokenType byte, r *byteReader, curCols *ColMetadata) (ExchangeEvent, *ColMetadata, error) {
	switch tokenType {
	case tokenColMetadata:
		meta, err := decodeColMetadataToken(r)
		if err != nil {
			return ExchangeEvent{}, curCols, err
		}
		return ExchangeEvent{Columns: meta}, meta, nil

	case tokenRow:
		if curCols == nil {
			return ExchangeEvent{}, curCols, &ProtocolError{Message: "tds: ROW token with no preceding COLMETADATA"}
		}
		row, err := decodeRowToken(curCols, r)
		if err != nil {
			return ExchangeEvent{}, curCols, err
		}
		return ExchangeEvent{Row: row}, curCols, nil

	case tokenNBCRow:
		if curCols == nil {
			return ExchangeEvent{}, curCols, &ProtocolError{Message: "tds: NBCROW token with no preceding COLMETADATA"}
		}
		row, err := decodeNBCRowToken(curCols, r)
		if err != nil {
			return ExchangeEvent{}, curCols, err
		}
		return ExchangeEvent{Row: row}, curCols, nil

	case tokenReturnStatus:
		status, err := decodeReturnStatusToken(r)
		if err != nil {
			return ExchangeEvent{}, curCols, err
		}
		return ExchangeEvent{ReturnStatus: &status}, curCols, nil

	case tokenInfo:
		info, err := decodeInfoToken(false, r)
		if err != nil {
			return ExchangeEvent{}, curCols, err
		}
		return ExchangeEvent{Info: info}, curCols, nil

	case tokenError:
		info, err := decodeInfoToken(true, r)
		if err != nil {
			return ExchangeEvent{}, curCols, err
		}
		metrics.ServerErrors.Inc()
		return ExchangeEvent{ServerErr: info.AsServerError()}, curCols, nil

	case tokenEnvChange:
		env, err := decodeEnvChangeToken(r)
		if err != nil {
			return ExchangeEvent{}, curCols, err
		}
		c.applyEnvChange(env)
		return ExchangeEvent{}, curCols, nil

	case tokenOrder:
		if _, err := decodeOrderToken(r); err != nil {
			return ExchangeEvent{}, curCols, err
		}
		return ExchangeEvent{}, curCols, nil

	case tokenDone, tokenDoneProc, tokenDoneInProc:
		d, err := decodeDoneToken(tokenType, r)
		if err != nil {
			return ExchangeEvent{}, curCols, err
		}
		return ExchangeEvent{Done: d}, curCols, nil

	default:
		return ExchangeEvent{}, curCols, &ProtocolError{Message: fmt.Sprintf("tds: unexpected token 0x%02X in exchange response", tokenType)}
	}
}
