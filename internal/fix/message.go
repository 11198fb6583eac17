package fix

import (
	"sort"
	"strconv"
	"strings"

	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// Standard header and trailer fields. Set places them in the matching
// section of the underlying quickfix message.
var (
	headerTags = map[Tag]bool{
		8: true, 9: true, TagMsgType: true, 43: true, 49: true, 56: true, 57: true,
		TagMsgSeqNum: true, TagSenderSubID: true, TagSendingTime: true, 122: true,
	}
	trailerTags = map[Tag]bool{10: true}
)

// Message wraps a quickfix message with tag-level accessors that search
// header, body and trailer. Messages received from a session are wrapped
// without copying.
type Message struct {
	raw *quickfix.Message
}

// NewMessage creates a message of the given MsgType
func NewMessage(msgType string) *Message {
	m := &Message{raw: quickfix.NewMessage()}
	m.raw.Header.SetString(quickfix.Tag(TagMsgType), msgType)
	return m
}

// Wrap returns a Message backed by raw
func Wrap(raw *quickfix.Message) *Message {
	return &Message{raw: raw}
}

// Raw returns the underlying quickfix message
func (m *Message) Raw() *quickfix.Message {
	return m.raw
}

// MsgType returns the message type (tag 35)
func (m *Message) MsgType() string {
	return m.Get(TagMsgType)
}

func (m *Message) section(tag Tag) *quickfix.FieldMap {
	switch {
	case headerTags[tag]:
		return &m.raw.Header.FieldMap
	case trailerTags[tag]:
		return &m.raw.Trailer.FieldMap
	default:
		return &m.raw.Body.FieldMap
	}
}

// holder returns the section carrying tag, or nil
func (m *Message) holder(tag Tag) *quickfix.FieldMap {
	t := quickfix.Tag(tag)
	for _, fm := range []*quickfix.FieldMap{&m.raw.Header.FieldMap, &m.raw.Body.FieldMap, &m.raw.Trailer.FieldMap} {
		if fm.Has(t) {
			return fm
		}
	}
	return nil
}

// Set sets a field, replacing any existing value
func (m *Message) Set(tag Tag, value string) *Message {
	m.section(tag).SetString(quickfix.Tag(tag), value)
	return m
}

// SetIfAbsent sets a field only when it is not present yet
func (m *Message) SetIfAbsent(tag Tag, value string) *Message {
	if !m.Has(tag) {
		m.Set(tag, value)
	}
	return m
}

// Get returns the field value or "" when absent
func (m *Message) Get(tag Tag) string {
	v, _ := m.Lookup(tag)
	return v
}

// Lookup returns the field value and whether it is present
func (m *Message) Lookup(tag Tag) (string, bool) {
	fm := m.holder(tag)
	if fm == nil {
		return "", false
	}
	v, err := fm.GetString(quickfix.Tag(tag))
	if err != nil {
		return "", false
	}
	return v, true
}

// Has reports whether the tag is present
func (m *Message) Has(tag Tag) bool {
	return m.holder(tag) != nil
}

// Int returns the field parsed as an int64
func (m *Message) Int(tag Tag) (int64, bool) {
	fm := m.holder(tag)
	if fm == nil {
		return 0, false
	}
	n, err := fm.GetInt(quickfix.Tag(tag))
	if err != nil {
		return 0, false
	}
	return int64(n), true
}

// Decimal returns the field parsed as a decimal
func (m *Message) Decimal(tag Tag) (decimal.Decimal, bool) {
	fm := m.holder(tag)
	if fm == nil {
		return decimal.Zero, false
	}
	var v quickfix.FIXDecimal
	if err := fm.GetField(quickfix.Tag(tag), &v); err != nil {
		return decimal.Zero, false
	}
	return v.Decimal, true
}

// Tags returns the present tags in ascending order
func (m *Message) Tags() []Tag {
	var tags []Tag
	for _, fm := range []*quickfix.FieldMap{&m.raw.Header.FieldMap, &m.raw.Body.FieldMap, &m.raw.Trailer.FieldMap} {
		for _, t := range fm.Tags() {
			tags = append(tags, Tag(t))
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Clone returns a copy of the message's fields
func (m *Message) Clone() *Message {
	c := &Message{raw: quickfix.NewMessage()}
	for _, t := range m.Tags() {
		c.Set(t, m.Get(t))
	}
	return c
}

// String renders the message as tag=value pairs separated by '|'
func (m *Message) String() string {
	var b strings.Builder
	for i, t := range m.Tags() {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(int(t)))
		b.WriteByte('=')
		b.WriteString(m.Get(t))
	}
	return b.String()
}
