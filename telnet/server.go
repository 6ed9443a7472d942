// Package telnet implements the trainer's remote command port.
//
// The port lets a second terminal (or a script) drive the running trainer:
//   - Clients log in with a callsign
//   - Command lines go to the same processor as the local command bar
//   - Every logged contact is broadcast to all connected clients
//   - Telnet protocol handling (IAC sequences, line ending conversion)
//
// Architecture:
//   - One goroutine per connected client (handleClient) plus one sender
//   - Broadcast is non-blocking; a full client queue drops the line for
//     that client only
//
// Client Session Flow:
//  1. Client connects → Welcome message sent
//  2. Prompt for callsign → Client enters callsign
//  3. Login complete → Greeting
//  4. Command loop → Process commands and receive logged contacts
//  5. Client types BYE or disconnects → Session ends
package telnet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	ztelnet "github.com/ziutek/telnet"

	"qsotrainer/callsign"
	"qsotrainer/stats"
)

// Telnet protocol constants (RFC 854).
const (
	IAC  = 255 // Interpret As Command - starts telnet command sequence
	DONT = 254 // Request client to disable an option
	DO   = 253 // Request client to enable an option
	WONT = 252 // Client refuses to enable an option
	WILL = 251 // Client agrees to enable an option
	SB   = 250 // Subnegotiation begins
	SE   = 240 // Subnegotiation ends
)

const (
	telnetEchoServer = "server"
	telnetEchoLocal  = "local"
	telnetEchoOff    = "off"
)

const (
	defaultClientBufferSize = 64
	defaultSendDeadline     = 2 * time.Second
	defaultLoginLineLimit   = 32
	defaultCommandLineLimit = 128
	defaultWelcomeMessage   = "QSO trainer command port\n"
	defaultLoginPrompt      = "Please enter your callsign: "
)

// CommandProcessor answers one command line. A response of "BYE" ends the
// client's session.
type CommandProcessor interface {
	ProcessCommand(cmd string) string
}

// ServerOptions configures the command port.
type ServerOptions struct {
	// Port 0 picks a free port; see Addr.
	Port             int
	MaxConnections   int
	WelcomeMessage   string
	LoginPrompt      string
	ClientBuffer     int
	KeepaliveSeconds int
	SkipHandshake    bool
	// Transport is "native" or "ziutek".
	Transport        string
	EchoMode         string
	LoginLineLimit   int
	CommandLineLimit int
}

// Server is the multi-client command port.
type Server struct {
	opts      ServerOptions
	processor CommandProcessor
	useZiutek bool
	listener  net.Listener
	clients   map[string]*Client
	clientsMu sync.RWMutex
	shutdown  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64
}

// Client is one logged-in session.
type Client struct {
	conn        net.Conn
	reader      *bufio.Reader
	writer      *bufio.Writer
	writeMu     sync.Mutex
	callsign    string
	address     string
	connected   time.Time
	lines       chan string
	echoInput   bool
	skipNextEOL bool // consume a single LF/NUL after CR (RFC 854)
	dropCount   atomic.Uint64
}

// NewServer creates a command port backed by processor.
func NewServer(opts ServerOptions, processor CommandProcessor) *Server {
	opts = normalizeServerOptions(opts)
	return &Server{
		opts:      opts,
		processor: processor,
		useZiutek: opts.Transport == "ziutek",
		clients:   make(map[string]*Client),
		shutdown:  make(chan struct{}),
	}
}

func normalizeServerOptions(opts ServerOptions) ServerOptions {
	if opts.ClientBuffer <= 0 {
		opts.ClientBuffer = defaultClientBufferSize
	}
	if opts.WelcomeMessage == "" {
		opts.WelcomeMessage = defaultWelcomeMessage
	}
	if opts.LoginPrompt == "" {
		opts.LoginPrompt = defaultLoginPrompt
	}
	opts.Transport = strings.ToLower(strings.TrimSpace(opts.Transport))
	if opts.Transport == "" {
		opts.Transport = "native"
	}
	opts.EchoMode = strings.ToLower(strings.TrimSpace(opts.EchoMode))
	if opts.EchoMode == "" {
		opts.EchoMode = telnetEchoServer
	}
	if opts.LoginLineLimit <= 0 {
		opts.LoginLineLimit = defaultLoginLineLimit
	}
	if opts.CommandLineLimit <= 0 {
		opts.CommandLineLimit = defaultCommandLineLimit
	}
	return opts
}

// Start listens and accepts clients in the background.
func (s *Server) Start() error {
	listener, err := listenWithReuse(fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("telnet: listen on port %d: %w", s.opts.Port, err)
	}
	s.listener = listener
	log.Printf("Telnet: command port listening on %s (%s transport)", listener.Addr(), s.opts.Transport)

	if s.opts.KeepaliveSeconds > 0 {
		s.wg.Add(1)
		go s.keepaliveLoop(time.Duration(s.opts.KeepaliveSeconds) * time.Second)
	}
	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Addr is the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// listenWithReuse enables SO_REUSEADDR so we can rebind quickly after a crash/exit.
// It falls back to a standard Listen when the control call fails.
func listenWithReuse(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			controlErr := c.Control(func(fd uintptr) {
				sockErr = setReuseAddr(fd)
			})
			if controlErr != nil {
				return controlErr
			}
			return sockErr
		},
	}
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return net.Listen("tcp", addr)
	}
	return listener, nil
}

// keepaliveLoop emits a CRLF to every client so idle sessions survive NAT
// timeouts while the band is quiet.
func (s *Server) keepaliveLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.Broadcast("")
		}
	}
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Telnet: accept error: %v", err)
			continue
		}

		if s.opts.MaxConnections > 0 && s.GetClientCount() >= s.opts.MaxConnections {
			_, _ = conn.Write([]byte("Server full. Try again later.\r\n"))
			conn.Close()
			log.Printf("Telnet: rejected %s: max connections reached (%d)", conn.RemoteAddr(), s.opts.MaxConnections)
			continue
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetKeepAlive(true)
			_ = tcp.SetKeepAlivePeriod(2 * time.Minute)
		}
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()

	address := conn.RemoteAddr().String()
	log.Printf("Telnet: new connection from %s", address)

	readerConn := conn
	writerConn := conn
	if s.useZiutek {
		tconn, err := ztelnet.NewConn(conn)
		if err != nil {
			log.Printf("Telnet: failed to wrap connection from %s: %v", address, err)
			return
		}
		readerConn = tconn
		writerConn = tconn
	}
	client := &Client{
		conn:      conn,
		reader:    bufio.NewReader(readerConn),
		writer:    bufio.NewWriter(writerConn),
		address:   address,
		connected: time.Now().UTC(),
		lines:     make(chan string, s.opts.ClientBuffer),
		echoInput: s.opts.EchoMode == telnetEchoServer,
	}

	s.negotiateTelnet(client)
	_ = client.Send(s.opts.WelcomeMessage)

	call, ok := s.login(client)
	if !ok {
		return
	}
	client.callsign = call
	log.Printf("Telnet: %s logged in as %s", address, call)

	s.registerClient(client)
	defer s.unregisterClient(client)
	go client.sender()

	_ = client.Send(fmt.Sprintf("Hello %s. Type HELP for commands, BYE to leave.\n", call))

	for {
		line, err := client.ReadLine(s.opts.CommandLineLimit, "command", true)
		if err != nil {
			var inputErr *InputValidationError
			if errors.As(err, &inputErr) {
				_ = client.Send(inputErr.message() + "\n")
				continue
			}
			log.Printf("Telnet: %s disconnected: %v", client.callsign, err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s.processor == nil {
			continue
		}
		response := s.processor.ProcessCommand(line)
		if response == "BYE" {
			_ = client.Send("73!\n")
			log.Printf("Telnet: %s logged out", client.callsign)
			return
		}
		if response != "" {
			_ = client.Send(response)
		}
	}
}

// login prompts until the client sends a valid callsign or hangs up.
func (s *Server) login(client *Client) (string, bool) {
	for {
		_ = client.Send(s.opts.LoginPrompt)
		line, err := client.ReadLine(s.opts.LoginLineLimit, "login", false)
		if err != nil {
			var inputErr *InputValidationError
			if errors.As(err, &inputErr) {
				_ = client.Send(inputErr.message() + "\n")
				continue
			}
			log.Printf("Telnet: error reading callsign from %s: %v", client.address, err)
			return "", false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			_ = client.Send("Callsign cannot be empty.\n")
			continue
		}
		call := callsign.Normalize(line)
		if !callsign.IsValid(call) {
			_ = client.Send("Invalid callsign.\n")
			continue
		}
		return call, true
	}
}

// negotiateTelnet performs minimal option negotiation to keep echo behavior
// predictable across telnet clients. It writes directly to the raw connection
// to avoid IAC escaping by higher-level telnet transports.
func (s *Server) negotiateTelnet(client *Client) {
	if s.opts.SkipHandshake || client == nil || client.conn == nil {
		return
	}
	conn := client.conn
	// Suppress go-ahead for full-duplex sessions.
	sendTelnetOption(conn, WILL, 3)
	sendTelnetOption(conn, DO, 3)

	switch s.opts.EchoMode {
	case telnetEchoLocal:
		sendTelnetOption(conn, WONT, 1)
	case telnetEchoOff:
		sendTelnetOption(conn, WONT, 1)
		sendTelnetOption(conn, DONT, 1)
	default:
		sendTelnetOption(conn, WILL, 1)
		sendTelnetOption(conn, DONT, 1)
	}
}

func sendTelnetOption(conn net.Conn, command, option byte) {
	if conn == nil {
		return
	}
	if err := conn.SetWriteDeadline(time.Now().Add(defaultSendDeadline)); err != nil {
		return
	}
	_, _ = conn.Write([]byte{IAC, command, option})
	_ = conn.SetWriteDeadline(time.Time{})
}

// RecordQSO broadcasts a logged contact to every client.
func (s *Server) RecordQSO(rec stats.QSORecord) {
	s.Broadcast(FormatQSO(rec))
}

// FormatQSO renders rec as one plain line.
func FormatQSO(rec stats.QSORecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "QSO %03d %s %s %d WPM %d pt", rec.Serial, rec.EnteredCall, rec.EnteredExchange, rec.StationWPM, rec.Points)
	if !rec.CallsignCorrect {
		fmt.Fprintf(&b, " (call %s)", rec.ExpectedCall)
	}
	if !rec.ExchangeCorrect {
		fmt.Fprintf(&b, " (exch %s)", rec.ExpectedExchange)
	}
	return b.String()
}

// Broadcast queues line for every client. A full client queue drops the line
// for that client only.
func (s *Server) Broadcast(line string) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.lines <- line:
		default:
			if n := c.dropCount.Add(1); n == 1 || n%100 == 0 {
				log.Printf("Telnet: %s is not keeping up; dropped %d lines", c.callsign, n)
			}
			s.dropped.Add(1)
		}
	}
}

// Dropped is the number of lines dropped across all clients.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

func (c *Client) sender() {
	for line := range c.lines {
		if err := c.Send(line + "\n"); err != nil {
			log.Printf("Telnet: %s disconnecting: write failure: %v", c.callsign, err)
			// Closing the connection ends the read loop, which unregisters.
			_ = c.conn.Close()
			for range c.lines {
			}
			return
		}
	}
}

// registerClient adds client, evicting an older session under the same call.
func (s *Server) registerClient(client *Client) {
	var evicted *Client
	s.clientsMu.Lock()
	if existing, ok := s.clients[client.callsign]; ok {
		evicted = existing
	}
	s.clients[client.callsign] = client
	total := len(s.clients)
	s.clientsMu.Unlock()

	if evicted != nil {
		_ = evicted.Send("Logged in from another session.\n")
		evicted.conn.Close()
		log.Printf("Telnet: evicted existing session for %s", client.callsign)
	}
	log.Printf("Telnet: registered %s (total: %d)", client.callsign, total)
}

func (s *Server) unregisterClient(client *Client) {
	s.clientsMu.Lock()
	if current, ok := s.clients[client.callsign]; ok && current == client {
		delete(s.clients, client.callsign)
	}
	total := len(s.clients)
	s.clientsMu.Unlock()
	// Broadcast sends under the read lock, so no send can follow the delete.
	close(client.lines)
	log.Printf("Telnet: unregistered %s (total: %d)", client.callsign, total)
}

// GetClientCount returns the number of logged-in clients.
func (s *Server) GetClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Stop closes the listener and every client connection.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		log.Println("Telnet: stopping command port")
		close(s.shutdown)
		if s.listener != nil {
			s.listener.Close()
		}
		s.clientsMu.RLock()
		for _, client := range s.clients {
			client.conn.Close()
		}
		s.clientsMu.RUnlock()
		s.wg.Wait()
	})
}

// Send writes message with CRLF line endings under a write deadline so a
// wedged client cannot stall its sender.
func (c *Client) Send(message string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn != nil {
		if err := c.conn.SetWriteDeadline(time.Now().Add(defaultSendDeadline)); err != nil {
			return err
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	message = strings.ReplaceAll(message, "\r\n", "\n")
	message = strings.ReplaceAll(message, "\n", "\r\n")
	if _, err := c.writer.WriteString(message); err != nil {
		return err
	}
	return c.writer.Flush()
}
