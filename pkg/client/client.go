// Package client talks to an event management server over named pipes.
//
// A client registers once on the server's registration pipe, receives a
// session id, and then owns a dedicated request/response pipe pair until
// Quit. Calls on one Client must not be made concurrently.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andy6609/ems-pipe-server/internal/pipe"
	"github.com/andy6609/ems-pipe-server/internal/protocol"
)

// ErrFailed is returned when the server answers a command with status 1.
var ErrFailed = errors.New("server reported failure")

type Client struct {
	sessionID uint64
	reqPath   string
	respPath  string
	req       *os.File
	resp      *os.File
	reader    *bufio.Reader
}

// Setup creates the client's pipes, registers with the server listening on
// serverPath, and opens the session. It blocks until a server worker picks
// the session up.
func Setup(serverPath, reqPath, respPath string) (*Client, error) {
	if err := pipe.Create(reqPath); err != nil {
		return nil, err
	}
	if err := pipe.Create(respPath); err != nil {
		_ = pipe.Remove(reqPath)
		return nil, err
	}
	c := &Client{reqPath: reqPath, respPath: respPath}

	id, err := register(serverPath, protocol.Registration{RequestPath: reqPath, ResponsePath: respPath})
	if err != nil {
		c.removePipes()
		return nil, err
	}
	c.sessionID = id

	// Same order as the server worker: request pipe, then response pipe.
	c.req, err = pipe.OpenWrite(reqPath)
	if err != nil {
		c.removePipes()
		return nil, err
	}
	c.resp, err = pipe.OpenRead(respPath)
	if err != nil {
		c.req.Close()
		c.removePipes()
		return nil, err
	}
	c.reader = bufio.NewReader(c.resp)
	return c, nil
}

// register runs the registration exchange. The registration pipe is shared
// by every client, so the exchange is serialized with the registration lock;
// otherwise two clients could read each other's replies. The server takes the
// same lock before waking its reader, so the exchange never sees an empty open.
func register(serverPath string, reg protocol.Registration) (uint64, error) {
	lock, err := pipe.OpenLock(serverPath)
	if err != nil {
		return 0, err
	}
	defer lock.Close()
	if err := lock.Lock(); err != nil {
		return 0, err
	}
	defer lock.Unlock()

	w, err := pipe.OpenWrite(serverPath)
	if err != nil {
		return 0, err
	}
	if _, err := io.WriteString(w, reg.Encode()); err != nil {
		w.Close()
		return 0, fmt.Errorf("send registration: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	r, err := pipe.OpenRead(serverPath)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read session id: %w", err)
	}
	return protocol.ParseSessionID(line)
}

func (c *Client) SessionID() uint64 { return c.sessionID }

func (c *Client) Create(eventID, rows, cols uint) error {
	_, err := c.call(protocol.Command{Op: protocol.OpCreate, EventID: eventID, Rows: rows, Cols: cols})
	return err
}

func (c *Client) Reserve(eventID uint, seats []protocol.Seat) error {
	_, err := c.call(protocol.Command{Op: protocol.OpReserve, EventID: eventID, Seats: seats})
	return err
}

// Show returns the seat grid of an event, one line per row.
func (c *Client) Show(eventID uint) (string, error) {
	return c.call(protocol.Command{Op: protocol.OpShow, EventID: eventID})
}

// List returns the ids of every event, one per line.
func (c *Client) List() (string, error) {
	return c.call(protocol.Command{Op: protocol.OpList})
}

// Wait asks the server to pause this session for the given number of
// seconds. It returns once the request is sent; there is no reply.
func (c *Client) Wait(seconds uint) error {
	return c.Send(protocol.Command{Op: protocol.OpWait, Seconds: seconds}.Encode())
}

// Send writes a raw request line without waiting for a reply.
func (c *Client) Send(line string) error {
	if _, err := io.WriteString(c.req, line); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Quit closes the session and removes the client's pipes.
func (c *Client) Quit() error {
	err := errors.Join(c.req.Close(), c.resp.Close())
	c.removePipes()
	return err
}

func (c *Client) call(cmd protocol.Command) (string, error) {
	if err := c.Send(cmd.Encode()); err != nil {
		return "", err
	}
	resp, err := protocol.ReadResponse(c.reader)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.Status != protocol.StatusOK {
		return "", ErrFailed
	}
	return resp.Payload, nil
}

func (c *Client) removePipes() {
	_ = pipe.Remove(c.reqPath)
	_ = pipe.Remove(c.respPath)
}
