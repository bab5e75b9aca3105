package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Content is one template file: text, or raw bytes when the manifest spells
// the file as a numeric byte array.
type Content struct {
	text   string
	data   []byte
	binary bool
}

func Text(s string) Content      { return Content{text: s} }
func Binary(b []byte) Content    { return Content{data: bytes.Clone(b), binary: true} }
func (c Content) IsBinary() bool { return c.binary }

// Bytes returns the raw file bytes.
func (c Content) Bytes() []byte {
	if c.binary {
		return bytes.Clone(c.data)
	}
	return []byte(c.text)
}

// UnmarshalJSON accepts a string, an array of byte values, or a Node Buffer
// object ({"type":"Buffer","data":[...]}).
func (c *Content) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("template: empty content")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Text(s)
		return nil
	case '[':
		data, err := byteArray(b)
		if err != nil {
			return err
		}
		*c = Content{data: data, binary: true}
		return nil
	case '{':
		var buf struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(b, &buf); err != nil {
			return err
		}
		if buf.Type != "Buffer" {
			return fmt.Errorf("template: unsupported content object type %q", buf.Type)
		}
		data, err := byteArray(buf.Data)
		if err != nil {
			return err
		}
		*c = Content{data: data, binary: true}
		return nil
	}
	return fmt.Errorf("template: content must be a string or byte array, got %s", b)
}

func byteArray(b []byte) ([]byte, error) {
	var nums []int
	if err := json.Unmarshal(b, &nums); err != nil {
		return nil, fmt.Errorf("template: byte array: %w", err)
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("template: byte array value %d out of range at %d", n, i)
		}
		out[i] = byte(n)
	}
	return out, nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if !c.binary {
		return json.Marshal(c.text)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range c.data {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(v)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
