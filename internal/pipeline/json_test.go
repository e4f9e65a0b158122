package pipeline_test

import (
	"bytes"
	"encoding/json"
)

func jsonUnmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
