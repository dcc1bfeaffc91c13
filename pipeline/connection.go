package pipeline

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/galileosky/ingest-gateway/config"
	"github.com/galileosky/ingest-gateway/logging"
	"github.com/galileosky/ingest-gateway/metrics"
	"github.com/galileosky/ingest-gateway/records"
	"github.com/galileosky/ingest-gateway/wire"
)

// RecordForm selects which of the three §4.4 decoders a connection's Main
// frames are run through. The wire format gives no in-band discriminator
// between them (spec.md §9 Open Question 1 only resolves coordinate
// scaling, not this); this implementation resolves the remaining ambiguity
// by making the form a per-connection configuration choice, set by
// whatever provisions the device (e.g. by IMEI prefix or bind port),
// defaulting to the ordinary tag-walk form every Galileosky firmware
// variant supports.
type RecordForm int

const (
	FormMain RecordForm = iota
	FormCompressed
	FormType33
)

// connState is the Connection Pipeline's state machine (§4.5): Idle while
// waiting for bytes, Draining while the framer still holds complete
// frames, Closed once the socket goes away.
type connState int

const (
	stateIdle connState = iota
	stateDraining
	stateClosed
)

// Connection owns one TCP socket end to end: framing, record parsing and
// enqueueing onto the shared Queue. It is read by exactly one goroutine,
// so lastIMEI (via ParserContext) needs no synchronization (§5).
type Connection struct {
	id     string
	conn   net.Conn
	reader *bufio.Reader
	framer *wire.Framer
	parser *records.Parser
	ctx    *records.ParserContext
	queue  *Queue
	log    logrus.FieldLogger
	cfg    *config.Config
	form   RecordForm

	state            connState
	firstPartialSeen time.Time
	sawPartial       bool
}

// NewConnection wraps an accepted net.Conn.
func NewConnection(conn net.Conn, queue *Queue, cfg *config.Config, form RecordForm, log logrus.FieldLogger) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:     id,
		conn:   conn,
		reader: bufio.NewReader(conn),
		framer: wire.NewFramer(cfg.FramerMaxPacketSize, cfg.FramerValidateChecksum),
		parser: &records.Parser{EmitRawUnknownTags: cfg.ParserEmitRawUnknownTags},
		ctx:    records.NewParserContext(),
		queue:  queue,
		cfg:    cfg,
		form:   form,
		log:    logging.ConnectionLogger(log, id, remoteAddr(conn)),
		state:  stateIdle,
	}
}

func remoteAddr(conn net.Conn) string {
	if conn == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}

// Serve reads the connection until it closes or the idle read timeout
// fires, feeding bytes to the framer and draining whatever frames become
// available after each read (§4.5's Idle -> Draining -> Idle cycle).
func (c *Connection) Serve() {
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()
	defer c.conn.Close()

	readBuf := make([]byte, 4096)
	idleTimeout := c.cfg.IdleReadTimeout()

	for {
		if idleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		}

		n, err := c.reader.Read(readBuf)
		if n > 0 {
			c.framer.Feed(readBuf[:n])
			c.state = stateDraining
			c.drain()
			c.state = stateIdle
		}
		if err != nil {
			if err != io.EOF {
				c.log.WithError(err).Debug("connection read error")
			}
			break
		}
	}

	c.drain()
	c.state = stateClosed
}

// drain pulls every complete frame (or resync step) currently buffered,
// acking and enqueueing as it goes (§4.5 Draining state).
func (c *Connection) drain() {
	c.framer.Drain(c.onFrame, c.onFramingError)
	c.maybeSendIncompleteProbe()
}

func (c *Connection) onFramingError(ferr *wire.FramingError) {
	metrics.FramingErrorCount.WithLabelValues(ferr.Kind.String()).Inc()
	c.log.WithField("offset", ferr.Offset).WithField("kind", ferr.Kind.String()).
		Debug("framing error, resyncing")
}

func (c *Connection) onFrame(frame *wire.Frame) {
	switch frame.HeaderKind() {
	case wire.HeaderMain, wire.HeaderIgnorable:
		c.acceptFrame(frame)
	default:
		// Extension headers pass the CRC check but carry no records the
		// core parser understands; nothing to ack or enqueue (§3).
	}
}

// acceptFrame implements the ack-before-sink-call ordering guarantee
// (§5): the confirmation write happens before any record from this frame
// reaches the queue, so a device only advances its outbox once the
// gateway has durably committed to the frame's bytes.
func (c *Connection) acceptFrame(frame *wire.Frame) {
	ack := frame.Ack()
	if _, err := c.conn.Write(ack[:]); err != nil {
		c.log.WithError(err).Warn("ack write failed, closing connection")
		c.conn.Close()
		return
	}

	if frame.HeaderKind() == wire.HeaderIgnorable || len(frame.Payload) == 0 {
		return
	}

	recs, errs := c.parseRecords(frame.Payload)
	for _, e := range errs {
		if pe, ok := e.(*records.ParseError); ok {
			metrics.ParseErrorCount.WithLabelValues(pe.Kind.String()).Inc()
		}
	}

	for _, rec := range recs {
		metrics.RecordsParsed.WithLabelValues(c.formLabel()).Inc()
		c.queue.Enqueue(rec)
	}
}

func (c *Connection) parseRecords(payload []byte) ([]*records.Record, []error) {
	switch c.form {
	case FormCompressed:
		return c.parser.ParseCompressed(c.ctx, payload)
	case FormType33:
		return c.parser.ParseType33(c.ctx, payload)
	default:
		return c.parser.ParseMain(c.ctx, payload)
	}
}

func (c *Connection) formLabel() string {
	switch c.form {
	case FormCompressed:
		return "compressed"
	case FormType33:
		return "type33"
	default:
		return "main"
	}
}

// maybeSendIncompleteProbe implements the feature-flagged firmware
// workaround of §6: if a partial header-plus-length has sat in the
// framer's buffer for more than 2 seconds, nudge the device with the
// canned 3-byte probe.
func (c *Connection) maybeSendIncompleteProbe() {
	if !c.cfg.PipelineSendIncompleteProbe {
		return
	}
	if c.framer.Buffered() == 0 {
		c.sawPartial = false
		return
	}
	if !c.sawPartial {
		c.sawPartial = true
		c.firstPartialSeen = time.Now()
		return
	}
	if time.Since(c.firstPartialSeen) > 2*time.Second {
		c.conn.Write(wire.IncompletePacketProbe[:])
		c.sawPartial = false
	}
}
