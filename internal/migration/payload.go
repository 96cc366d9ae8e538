package migration

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/moneo-app/moneo/internal/encoding"
	"github.com/moneo-app/moneo/internal/entity"
)

// DecodePayload reads an export file of unknown text encoding and decodes it
// into a Payload. Unknown top-level keys are rejected so a truncated or
// foreign file fails loudly instead of importing nothing.
func DecodePayload(r io.Reader) (Payload, error) {
	utf8r, err := encoding.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	var raw map[string][]map[string]any

	dec := json.NewDecoder(utf8r)
	dec.UseNumber()

	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	payload := make(Payload, len(raw))

	for name, rows := range raw {
		if _, ok := entity.TypeForCollection(name); !ok {
			return nil, fmt.Errorf("unknown collection %q in payload", name)
		}

		payload[name] = rows
	}

	return payload, nil
}
