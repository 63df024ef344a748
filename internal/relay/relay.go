// Package relay bridges a room session and a pair of line-oriented streams.
//
// Room events become JSON envelopes on the output stream, one line per
// event, and every JSON line read from the input stream is published into
// the room. Malformed input lines and room errors are reported through a
// Reporter and never stop the relay; data addressed to another client is
// dropped without comment.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/BioHazard786/droprelay/internal/signaling"
)

// maxLineSize bounds a single input line. SDP offers with many candidates
// stay well below it. Longer lines are skipped and reported.
const maxLineSize = 1024 * 1024

// ErrLineTooLong is reported for input lines over maxLineSize.
var ErrLineTooLong = errors.New("input line too long")

// inputLine is one line of input, or the reason it was skipped.
type inputLine struct {
	data []byte
	err  error
}

// Room is the part of a room session the relay drives.
type Room interface {
	Events() <-chan signaling.Event
	Publish(message json.RawMessage) error
}

// Reporter receives diagnostics that must stay off the output stream.
type Reporter interface {
	Report(err error)
}

// Relay translates between one Room and one input/output stream pair.
type Relay struct {
	room     Room
	in       io.Reader
	out      *LineWriter
	reporter Reporter

	// clientID is learned from the opened event and only read by Run's loop.
	clientID string
}

func New(room Room, in io.Reader, out io.Writer, reporter Reporter) *Relay {
	return &Relay{
		room:     room,
		in:       in,
		out:      NewLineWriter(out),
		reporter: reporter,
	}
}

// Run relays until the input stream ends or ctx is cancelled. It returns
// nil at end of input, the read error if the input failed, and ctx.Err()
// on cancellation. The room closing its event stream does not stop Run:
// input is still read and publish failures are reported per line.
func (r *Relay) Run(ctx context.Context) error {
	lines := make(chan inputLine)
	readErr := make(chan error, 1)
	go r.readLines(ctx, lines, readErr)

	events := r.room.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				slog.Debug("room event stream ended")
				events = nil
				continue
			}
			r.handleEvent(ev)

		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			r.handleLine(line)
		}
	}
}

// readLines sends each input line, without its terminator, to lines. It
// closes lines once the input is exhausted, after leaving the read error
// (nil at EOF) in errc.
func (r *Relay) readLines(ctx context.Context, lines chan<- inputLine, errc chan<- error) {
	defer close(lines)

	br := bufio.NewReaderSize(r.in, 64*1024)
	for {
		line, ok, err := readLine(br, maxLineSize)
		if ok {
			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}

		if errors.Is(err, io.EOF) {
			errc <- nil
			return
		}
		if err != nil {
			errc <- fmt.Errorf("read input: %w", err)
			return
		}
	}
}

// readLine reads up to the next newline. A line longer than limit is drained
// and returned with ErrLineTooLong instead of its content. ok is false only
// when nothing was read before err. A final line without a newline is
// returned together with io.EOF.
func readLine(br *bufio.Reader, limit int) (line inputLine, ok bool, err error) {
	var (
		buf     []byte
		n       int
		tooLong bool
	)

	for {
		chunk, readErr := br.ReadSlice('\n')
		n += len(chunk)
		if !tooLong {
			buf = append(buf, chunk...)
			// Leave room for a CRLF terminator.
			if len(buf) > limit+2 {
				tooLong = true
				buf = nil
			}
		}

		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		err = readErr
		break
	}

	if n == 0 {
		return inputLine{}, false, err
	}

	buf = bytes.TrimSuffix(buf, []byte("\n"))
	buf = bytes.TrimSuffix(buf, []byte("\r"))
	if tooLong || len(buf) > limit {
		return inputLine{err: fmt.Errorf("skip input line of %d bytes: %w", n, ErrLineTooLong)}, true, err
	}
	return inputLine{data: buf}, true, err
}

func (r *Relay) handleLine(line inputLine) {
	if line.err != nil {
		r.reporter.Report(line.err)
		return
	}

	var message json.RawMessage
	if err := json.Unmarshal(line.data, &message); err != nil {
		r.reporter.Report(fmt.Errorf("parse input line: %w", err))
		return
	}

	if err := r.room.Publish(message); err != nil {
		r.reporter.Report(err)
	}
}

func (r *Relay) handleEvent(ev signaling.Event) {
	switch ev.Kind {
	case signaling.EventOpened:
		if ev.Err != nil {
			r.reporter.Report(ev.Err)
			return
		}
		r.clientID = ev.ClientID

	case signaling.EventSubscriptionOpened:
		if ev.Err != nil {
			r.reporter.Report(ev.Err)
			return
		}
		r.write(JoinEnvelope(r.clientID))

	case signaling.EventMembersSnapshot:
		for _, m := range ev.Members {
			r.write(MemberJoinEnvelope(m))
		}

	case signaling.EventMemberJoined:
		r.write(MemberJoinEnvelope(ev.Member))

	case signaling.EventMemberLeft:
		r.write(MemberLeaveEnvelope(ev.Member))

	case signaling.EventDataReceived:
		if !addressedTo(ev.Payload, r.clientID) {
			return
		}
		data, err := withMember(ev.Payload, ev.Member)
		if err != nil {
			r.reporter.Report(fmt.Errorf("attach sender to message: %w", err))
			return
		}
		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			slog.Debug("relaying " + describeSignal(ev.Payload, ev.Member))
		}
		r.write(DataEnvelope(data))

	case signaling.EventClosed:
		if ev.Err != nil {
			r.reporter.Report(ev.Err)
		}

	default:
		slog.Debug("ignoring room event", "kind", ev.Kind)
	}
}

func (r *Relay) write(env Envelope) {
	if err := r.out.WriteEnvelope(env); err != nil {
		r.reporter.Report(fmt.Errorf("write output: %w", err))
	}
}
