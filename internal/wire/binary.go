package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"discofabric/internal/ring"
)

// Marshal/Unmarshal implement a small deterministic binary encoding:
// fixed-width tags and integers in big-endian, length-prefixed strings and
// slices. There is no varint or schema negotiation — the wire format is
// fixed by this package's version of the protocol, matching the "deployment
// choice, but shared by all nodes" framing of the directory wire protocol.

func putString(buf *bytes.Buffer, s string) {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", fmt.Errorf("wire: read string length: %w", err)
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("wire: read string body: %w", err)
		}
	}
	return string(buf), nil
}

func putStringSlice(buf *bytes.Buffer, ss []string) {
	var cntBuf [2]byte
	binary.BigEndian.PutUint16(cntBuf[:], uint16(len(ss)))
	buf.Write(cntBuf[:])
	for _, s := range ss {
		putString(buf, s)
	}
}

func getStringSlice(r *bytes.Reader) ([]string, error) {
	var cntBuf [2]byte
	if _, err := io.ReadFull(r, cntBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: read slice count: %w", err)
	}
	n := binary.BigEndian.Uint16(cntBuf[:])
	out := make([]string, 0, n)
	for i := uint16(0); i < n; i++ {
		s, err := getString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func putRegistrant(buf *bytes.Buffer, info RegistrantInfo) {
	putString(buf, info.ID)
	putString(buf, info.Addr)
	var portBuf [4]byte
	binary.BigEndian.PutUint32(portBuf[:], uint32(info.Port))
	buf.Write(portBuf[:])
}

func getRegistrant(r *bytes.Reader) (RegistrantInfo, error) {
	id, err := getString(r)
	if err != nil {
		return RegistrantInfo{}, err
	}
	addr, err := getString(r)
	if err != nil {
		return RegistrantInfo{}, err
	}
	var portBuf [4]byte
	if _, err := io.ReadFull(r, portBuf[:]); err != nil {
		return RegistrantInfo{}, fmt.Errorf("wire: read port: %w", err)
	}
	return RegistrantInfo{ID: id, Addr: addr, Port: int(binary.BigEndian.Uint32(portBuf[:]))}, nil
}

func putRegistrantSlice(buf *bytes.Buffer, rs []RegistrantInfo) {
	var cntBuf [2]byte
	binary.BigEndian.PutUint16(cntBuf[:], uint16(len(rs)))
	buf.Write(cntBuf[:])
	for _, r := range rs {
		putRegistrant(buf, r)
	}
}

func getRegistrantSlice(r *bytes.Reader) ([]RegistrantInfo, error) {
	var cntBuf [2]byte
	if _, err := io.ReadFull(r, cntBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: read registrant count: %w", err)
	}
	n := binary.BigEndian.Uint16(cntBuf[:])
	if n == 0 {
		return nil, nil
	}
	out := make([]RegistrantInfo, 0, n)
	for i := uint16(0); i < n; i++ {
		info, err := getRegistrant(r)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Marshal encodes the envelope deterministically.
func (e *Envelope) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(e.Type))
	buf.WriteByte(byte(e.Mode))
	if e.HasKey {
		buf.WriteByte(1)
		buf.Write(e.Key[:])
	} else {
		buf.WriteByte(0)
		var zero [ring.ByteLen]byte
		buf.Write(zero[:])
	}
	putString(&buf, e.Correlation)

	switch e.Type {
	case MessageRegister:
		buf.WriteByte(byte(e.Register.Role))
		putRegistrant(&buf, e.Register.Info)
		putStringSlice(&buf, e.Register.Topics)
	case MessageIsReady, MessageLookupAll:
		// empty request payload
	case MessageLookupByTopic:
		putStringSlice(&buf, e.LookupByTopic.Topics)
	default:
		return nil, fmt.Errorf("wire: marshal: unknown message type %d", e.Type)
	}
	return buf.Bytes(), nil
}

// UnmarshalEnvelope decodes bytes previously produced by Envelope.Marshal.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	r := bytes.NewReader(data)

	typByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: read message type: %w", err)
	}
	modeByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: read routing mode: %w", err)
	}
	hasKeyByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: read key flag: %w", err)
	}
	var key ring.ID
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, fmt.Errorf("wire: read key: %w", err)
	}
	correlation, err := getString(r)
	if err != nil {
		return nil, err
	}

	e := &Envelope{
		Type:        MessageType(typByte),
		Mode:        RoutingMode(modeByte),
		HasKey:      hasKeyByte == 1,
		Key:         key,
		Correlation: correlation,
	}

	switch e.Type {
	case MessageRegister:
		roleByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("wire: read role: %w", err)
		}
		info, err := getRegistrant(r)
		if err != nil {
			return nil, err
		}
		topics, err := getStringSlice(r)
		if err != nil {
			return nil, err
		}
		e.Register = RegisterPayload{Role: Role(roleByte), Info: info, Topics: topics}
	case MessageIsReady, MessageLookupAll:
		// empty request payload
	case MessageLookupByTopic:
		topics, err := getStringSlice(r)
		if err != nil {
			return nil, err
		}
		e.LookupByTopic = LookupByTopicPayload{Topics: topics}
	default:
		return nil, fmt.Errorf("wire: unmarshal: unknown message type %d", e.Type)
	}
	return e, nil
}

// Marshal encodes the reply deterministically.
func (rep *Reply) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(rep.Type))
	buf.WriteByte(byte(rep.Status))
	putString(&buf, rep.Reason)

	switch rep.Type {
	case MessageRegister:
		// no payload beyond status/reason
	case MessageIsReady:
		if rep.IsReady.Ready {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case MessageLookupByTopic, MessageLookupAll:
		putRegistrantSlice(&buf, rep.Lookup.Registrants)
	default:
		return nil, fmt.Errorf("wire: marshal reply: unknown message type %d", rep.Type)
	}
	return buf.Bytes(), nil
}

// UnmarshalReply decodes bytes previously produced by Reply.Marshal.
func UnmarshalReply(data []byte) (*Reply, error) {
	r := bytes.NewReader(data)

	typByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: read reply message type: %w", err)
	}
	statusByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: read status: %w", err)
	}
	reason, err := getString(r)
	if err != nil {
		return nil, err
	}

	rep := &Reply{
		Type:   MessageType(typByte),
		Status: Status(statusByte),
		Reason: reason,
	}

	switch rep.Type {
	case MessageRegister:
		// no payload
	case MessageIsReady:
		readyByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("wire: read ready flag: %w", err)
		}
		rep.IsReady = IsReadyReply{Ready: readyByte == 1}
	case MessageLookupByTopic, MessageLookupAll:
		regs, err := getRegistrantSlice(r)
		if err != nil {
			return nil, err
		}
		rep.Lookup = LookupReply{Registrants: regs}
	default:
		return nil, fmt.Errorf("wire: unmarshal reply: unknown message type %d", rep.Type)
	}
	return rep, nil
}
