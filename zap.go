// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpcproxy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/rpcproxy/log"
)

var (
	ErrZAPClosed      = errors.New("zap: connection closed")
	ErrZAPTimeout     = errors.New("zap: request timeout")
	ErrZAPInvalidResp = errors.New("zap: invalid response")
)

const (
	maxFrameSize      = 64 * 1024 * 1024
	zapResponseWait   = 30 * time.Second
	zapAcceptBackoff  = 5 * time.Millisecond
	zapMaxMethodBytes = 1<<16 - 1
)

// MessageType identifies ZAP message types
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
	MsgError    MessageType = 0x03
	MsgNotify   MessageType = 0x04
)

// RemoteError is a failure reported by the remote handler. Message is the
// handler's error text.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ZAPConn represents a ZAP connection for RPC
type ZAPConn struct {
	conn     net.Conn
	writeMu  sync.Mutex
	pending  sync.Map // requestID -> chan *ZAPResponse
	nextID   atomic.Uint32
	closed   atomic.Bool
	readDone chan struct{}
}

// ZAPResponse holds a response from a ZAP call
type ZAPResponse struct {
	Data []byte
	Err  error
}

// ZAPDial connects to a ZAP server
func ZAPDial(ctx context.Context, addr string) (*ZAPConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("zap dial: %w", err)
	}

	zc := &ZAPConn{
		conn:     conn,
		readDone: make(chan struct{}),
	}
	go zc.readLoop()
	return zc, nil
}

// frame lays out [4 len][1 type][header][method?][payload].
func frame(t MessageType, header []byte, method string, payload []byte) ([]byte, error) {
	if len(method) > zapMaxMethodBytes {
		return nil, fmt.Errorf("zap: method name too long (%d bytes)", len(method))
	}
	msgLen := 1 + len(header) + len(payload)
	if t == MsgRequest || t == MsgNotify {
		msgLen += 2 + len(method)
	}

	buf := make([]byte, 4, 4+msgLen)
	binary.BigEndian.PutUint32(buf, uint32(msgLen))
	buf = append(buf, byte(t))
	buf = append(buf, header...)
	if t == MsgRequest || t == MsgNotify {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(method)))
		buf = append(buf, method...)
	}
	return append(buf, payload...), nil
}

// readFrame reads one length-prefixed message.
func readFrame(r io.Reader, header []byte) ([]byte, error) {
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	msgLen := binary.BigEndian.Uint32(header)
	if msgLen == 0 || msgLen > maxFrameSize {
		return nil, fmt.Errorf("zap: invalid frame length %d", msgLen)
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (z *ZAPConn) write(buf []byte) error {
	z.writeMu.Lock()
	defer z.writeMu.Unlock()
	if _, err := z.conn.Write(buf); err != nil {
		return fmt.Errorf("zap write: %w", err)
	}
	return nil
}

// Call makes a ZAP RPC call
func (z *ZAPConn) Call(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if z.closed.Load() {
		return nil, ErrZAPClosed
	}

	requestID := z.nextID.Add(1)
	respCh := make(chan *ZAPResponse, 1)
	z.pending.Store(requestID, respCh)
	defer z.pending.Delete(requestID)

	var id [4]byte
	binary.BigEndian.PutUint32(id[:], requestID)
	buf, err := frame(MsgRequest, id[:], method, payload)
	if err != nil {
		return nil, err
	}
	if err := z.write(buf); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Data, nil
	case <-z.readDone:
		return nil, ErrZAPClosed
	}
}

// Notify sends a one-way notification (no response expected)
func (z *ZAPConn) Notify(ctx context.Context, method string, payload []byte) error {
	if z.closed.Load() {
		return ErrZAPClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := frame(MsgNotify, nil, method, payload)
	if err != nil {
		return err
	}
	return z.write(buf)
}

func (z *ZAPConn) readLoop() {
	defer close(z.readDone)

	header := make([]byte, 4)
	for {
		msg, err := readFrame(z.conn, header)
		if err != nil {
			if !z.closed.Load() && !errors.Is(err, io.EOF) {
				log.Warnf("zap: read from %s: %v", z.conn.RemoteAddr(), err)
			}
			return
		}
		if len(msg) < 5 {
			continue
		}

		msgType := MessageType(msg[0])
		requestID := binary.BigEndian.Uint32(msg[1:5])
		payload := msg[5:]

		ch, ok := z.pending.Load(requestID)
		if !ok {
			continue
		}
		respCh := ch.(chan *ZAPResponse)
		switch msgType {
		case MsgResponse:
			respCh <- &ZAPResponse{Data: payload}
		case MsgError:
			respCh <- &ZAPResponse{Err: &RemoteError{Message: string(payload)}}
		default:
			respCh <- &ZAPResponse{Err: ErrZAPInvalidResp}
		}
	}
}

// Close closes the connection
func (z *ZAPConn) Close() error {
	if z.closed.Swap(true) {
		return nil
	}
	return z.conn.Close()
}

// ZAPServer handles incoming ZAP RPC requests
type ZAPServer struct {
	listener net.Listener
	handler  ZAPHandler
	conns    sync.Map
	closed   atomic.Bool
}

// ZAPHandler handles ZAP requests
type ZAPHandler interface {
	HandleZAP(ctx context.Context, method string, payload []byte) ([]byte, error)
}

// ZAPHandlerFunc is a function adapter for ZAPHandler
type ZAPHandlerFunc func(ctx context.Context, method string, payload []byte) ([]byte, error)

func (f ZAPHandlerFunc) HandleZAP(ctx context.Context, method string, payload []byte) ([]byte, error) {
	return f(ctx, method, payload)
}

// NewZAPServer creates a new ZAP server
func NewZAPServer(listener net.Listener, handler ZAPHandler) *ZAPServer {
	return &ZAPServer{
		listener: listener,
		handler:  handler,
	}
}

// Serve accepts connections until the server is closed or ctx is done.
func (s *ZAPServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			log.Warnf("zap: accept: %v", err)
			time.Sleep(zapAcceptBackoff)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *ZAPServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	var writeMu sync.Mutex
	header := make([]byte, 4)
	for {
		msg, err := readFrame(conn, header)
		if err != nil {
			return
		}

		switch MessageType(msg[0]) {
		case MsgRequest:
			if len(msg) < 7 {
				continue
			}
			requestID := binary.BigEndian.Uint32(msg[1:5])
			method, payload, ok := splitMethod(msg[5:])
			if !ok {
				continue
			}
			go func() {
				respData, err := s.handler.HandleZAP(ctx, method, payload)
				writeMu.Lock()
				defer writeMu.Unlock()
				s.sendResponse(conn, requestID, respData, err)
			}()

		case MsgNotify:
			method, payload, ok := splitMethod(msg[1:])
			if !ok {
				continue
			}
			go func() {
				if _, err := s.handler.HandleZAP(ctx, method, payload); err != nil {
					log.Debugf("zap: notify %s: %v", method, err)
				}
			}()
		}
	}
}

// splitMethod parses [2 methodLen][method][payload].
func splitMethod(b []byte) (string, []byte, bool) {
	if len(b) < 2 {
		return "", nil, false
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return "", nil, false
	}
	return string(b[2 : 2+n]), b[2+n:], true
}

func (s *ZAPServer) sendResponse(conn net.Conn, requestID uint32, data []byte, err error) {
	msgType, payload := MsgResponse, data
	if err != nil {
		msgType, payload = MsgError, []byte(err.Error())
	}

	var id [4]byte
	binary.BigEndian.PutUint32(id[:], requestID)
	buf, _ := frame(msgType, id[:], "", payload)

	conn.SetWriteDeadline(time.Now().Add(zapResponseWait))
	if _, err := conn.Write(buf); err != nil {
		log.Warnf("zap: write response %d: %v", requestID, err)
	}
}

// Close closes the server
func (s *ZAPServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ interface{}) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address
func (s *ZAPServer) Addr() net.Addr {
	return s.listener.Addr()
}
