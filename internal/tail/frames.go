package tail

import (
	"bufio"
	"io"
	"strings"
)

// Frame is one Server-Sent Events message.
type Frame struct {
	ID   string
	Data string
}

// ReadFrames parses an event stream from r and calls fn for every complete frame with data.
// Comment lines and unknown fields are ignored.
func ReadFrames(r io.Reader, fn func(Frame) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		frame Frame
		data  []string
	)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			if len(data) > 0 {
				frame.Data = strings.Join(data, "\n")
				if err := fn(frame); err != nil {
					return err
				}
			}
			frame, data = Frame{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			frame.ID = value
		case "data":
			data = append(data, value)
		}
	}
	return scanner.Err()
}
