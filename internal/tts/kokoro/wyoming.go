package kokoro

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wyoming protocol format (per event):
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)

// Upper bounds for the lengths announced in an event header.
const (
	maxJSONLen    = 1 << 20
	maxPayloadLen = 16 << 20
)

type wyomingEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// writeEvent sends a Wyoming event over w.
func writeEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	jsonBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	header := fmt.Sprintf("%d %d\n", len(jsonBytes), len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(jsonBytes); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// readEvent reads one Wyoming event from r.
func readEvent(r *bufio.Reader) (*wyomingEvent, []byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	parts := strings.Fields(line)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", strings.TrimSpace(line))
	}
	jsonLen, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing json_length: %w", err)
	}
	payloadLen, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing payload_length: %w", err)
	}

	if jsonLen < 0 || jsonLen > maxJSONLen {
		return nil, nil, fmt.Errorf("wyoming json_length %d out of range", jsonLen)
	}
	if payloadLen < 0 || payloadLen > maxPayloadLen {
		return nil, nil, fmt.Errorf("wyoming payload_length %d out of range", payloadLen)
	}

	jsonBuf := make([]byte, jsonLen+1) // +1 for the \n
	if _, err := io.ReadFull(r, jsonBuf); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}

	var evt wyomingEvent
	if err := json.Unmarshal(jsonBuf[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}

// intField reads a numeric field from event data. JSON numbers decode as
// float64.
func intField(data map[string]any, key string) (int, bool) {
	v, ok := data[key].(float64)
	return int(v), ok
}
