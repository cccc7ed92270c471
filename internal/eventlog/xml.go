package eventlog

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"vshell/internal/shell"
)

const (
	rootElement = "session"
	xmlFooter   = "</" + rootElement + ">\n"
)

var ErrClosed = errors.New("event log closed")

type xmlEvent struct {
	XMLName xml.Name  `xml:"event"`
	Time    time.Time `xml:"time,attr"`
	Verb    string    `xml:"verb,attr"`
	Path    string    `xml:"path,attr"`
	Kind    string    `xml:"kind,attr,omitempty"`
	Message string    `xml:"message"`
	Error   string    `xml:"error,omitempty"`
}

func toXML(ev shell.Event) xmlEvent {
	return xmlEvent{
		Time:    ev.Time,
		Verb:    ev.Verb,
		Path:    ev.Path,
		Kind:    ev.Kind,
		Message: ev.Message,
		Error:   ev.Error,
	}
}

func (x xmlEvent) event() shell.Event {
	return shell.Event{
		Time:    x.Time,
		Verb:    x.Verb,
		Message: x.Message,
		Error:   x.Error,
		Kind:    x.Kind,
		Path:    x.Path,
	}
}

// XMLWriter appends events to an XML document, one <event> element per
// command. The document is only well formed after Close, but ReadXML
// accepts a log that was never closed.
type XMLWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

// NewXMLWriter writes the document header to w.
func NewXMLWriter(w io.Writer) (*XMLWriter, error) {
	if _, err := io.WriteString(w, xml.Header+"<"+rootElement+">\n"); err != nil {
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}
	x := &XMLWriter{w: w}
	if c, ok := w.(io.Closer); ok {
		x.closer = c
	}
	return x, nil
}

// CreateXMLFile creates (or truncates) the file at path and starts a log
// in it.
func CreateXMLFile(path string) (*XMLWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	x, err := NewXMLWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return x, nil
}

func (x *XMLWriter) Record(ctx context.Context, ev shell.Event) error {
	data, err := xml.MarshalIndent(toXML(ev), "  ", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrClosed
	}
	if _, err := x.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close terminates the document and closes the underlying writer when it
// is a Closer.
func (x *XMLWriter) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true

	_, err := io.WriteString(x.w, xmlFooter)
	if x.closer != nil {
		err = errors.Join(err, x.closer.Close())
	}
	return err
}

// WriteXML writes a complete document holding events.
func WriteXML(w io.Writer, events []shell.Event) error {
	x, err := NewXMLWriter(w)
	if err != nil {
		return err
	}
	x.closer = nil
	for _, ev := range events {
		if err := x.Record(context.Background(), ev); err != nil {
			return err
		}
	}
	return x.Close()
}

// ReadXML decodes the events of a log. A missing closing tag is tolerated
// so logs of sessions still running can be read.
func ReadXML(r io.Reader) ([]shell.Event, error) {
	d := xml.NewDecoder(io.MultiReader(r, strings.NewReader(xmlFooter)))

	var (
		events []shell.Event
		inRoot bool
	)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read log: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inRoot {
				if t.Name.Local != rootElement {
					return nil, fmt.Errorf("failed to read log: unexpected element <%s>", t.Name.Local)
				}
				inRoot = true
				continue
			}
			var xe xmlEvent
			if err := d.DecodeElement(&xe, &t); err != nil {
				return nil, fmt.Errorf("failed to decode event: %w", err)
			}
			events = append(events, xe.event())
		case xml.EndElement:
			// the first closing root tag ends the log, the appended one is never reached
			return events, nil
		}
	}
}
