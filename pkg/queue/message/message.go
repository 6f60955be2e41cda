package message

import (
	"fmt"
)

// Message announces a generated archive: its index and the number of documents in it.
// On the wire it is "<index>_<entries>".
type Message struct {
	Index   int
	Entries int
}

func (m *Message) String() string {
	return fmt.Sprintf("%d_%d", m.Index, m.Entries)
}
