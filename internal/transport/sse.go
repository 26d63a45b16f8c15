package transport

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one parsed Server-Sent Event.
type SSEEvent struct {
	Event string
	Data  string
	ID    string
}

// SSEParser pulls successive SSEEvent values from a Server-Sent-Events
// body, line-framed per the wire format every supported provider uses.
type SSEParser struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
	err     error
}

// NewSSEParser wraps body, which the parser owns: Close releases it.
func NewSSEParser(body io.ReadCloser) *SSEParser {
	return &SSEParser{scanner: bufio.NewScanner(body), body: body}
}

// Next returns the next event, or io.EOF when the stream ends cleanly.
func (p *SSEParser) Next() (*SSEEvent, error) {
	if p.err != nil {
		return nil, p.err
	}

	event := &SSEEvent{}
	var dataLines []string

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 || event.Event != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		colon := strings.Index(line, ":")
		if colon == -1 {
			continue
		}
		field, value := line[:colon], line[colon+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			event.ID = value
		}
	}

	if err := p.scanner.Err(); err != nil {
		p.err = err
		return nil, err
	}
	if len(dataLines) > 0 || event.Event != "" {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}
	p.err = io.EOF
	return nil, io.EOF
}

// Close releases the underlying response body.
func (p *SSEParser) Close() error {
	return p.body.Close()
}

// IsDone reports whether event is a vendor stream terminator (OpenAI-family
// "data: [DONE]").
func IsDone(event *SSEEvent) bool {
	return event != nil && strings.TrimSpace(event.Data) == "[DONE]"
}
