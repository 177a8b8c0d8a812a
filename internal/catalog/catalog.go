package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotObject = errors.New("catalog must be a JSON object")

// Activity is one entry of the board as served by GET /activities.
type Activity struct {
	Name         string   `json:"-"`
	Description  string   `json:"description"`
	Schedule     string   `json:"schedule"`
	Participants []string `json:"participants"`
}

// Catalog is an immutable snapshot of every activity, kept in the order the
// server listed them.
type Catalog struct {
	activities []Activity
	index      map[string]int
}

// New builds a catalog from activities. A later duplicate name replaces the
// earlier entry but keeps its position.
func New(activities ...Activity) Catalog {
	c := Catalog{index: make(map[string]int, len(activities))}
	for _, a := range activities {
		a.Participants = cloneParticipants(a.Participants)
		if i, ok := c.index[a.Name]; ok {
			c.activities[i] = a
			continue
		}
		c.index[a.Name] = len(c.activities)
		c.activities = append(c.activities, a)
	}
	return c
}

func (c Catalog) Len() int { return len(c.activities) }

// Activities returns a copy of the activities in server order.
func (c Catalog) Activities() []Activity {
	out := make([]Activity, len(c.activities))
	for i, a := range c.activities {
		a.Participants = cloneParticipants(a.Participants)
		out[i] = a
	}
	return out
}

func (c Catalog) Names() []string {
	out := make([]string, len(c.activities))
	for i, a := range c.activities {
		out[i] = a.Name
	}
	return out
}

func (c Catalog) Get(name string) (Activity, bool) {
	i, ok := c.index[name]
	if !ok {
		return Activity{}, false
	}
	a := c.activities[i]
	a.Participants = cloneParticipants(a.Participants)
	return a, true
}

// Decode parses the GET /activities payload. Object key order is preserved,
// which encoding/json's map decoding would lose.
func Decode(data []byte) (Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Catalog{}, ErrNotObject
	}

	var activities []Activity
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Catalog{}, fmt.Errorf("decode catalog: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return Catalog{}, fmt.Errorf("decode catalog: unexpected key %v", tok)
		}
		var a Activity
		if err := dec.Decode(&a); err != nil {
			return Catalog{}, fmt.Errorf("decode activity %q: %w", name, err)
		}
		a.Name = name
		activities = append(activities, a)
	}
	if _, err := dec.Token(); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	return New(activities...), nil
}

// MarshalJSON writes the catalog back in the server's wire shape.
func (c Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range c.activities {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		if a.Participants == nil {
			a.Participants = []string{}
		}
		value, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func cloneParticipants(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
