package ot

import (
	"encoding/binary"

	"github.com/cait-sith-go/threshold-ecdsa/internal/params"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
)

// This file gives the handful of message types that actually cross a
// protocol engine's wire (as opposed to staying local to a two-party OT
// exchange run in a single process) binary codecs. Everything else in this
// package is consumed directly by Go code on both ends and never needs to
// be serialized.

type wireWriter struct{ buf []byte }

func (w *wireWriter) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *wireWriter) bytes(b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, b...)
}

type wireReader struct{ buf []byte }

func (r *wireReader) raw(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, protocol.Fail(component, protocol.Malformed, errTruncatedWire)
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}

func (r *wireReader) bytes() ([]byte, error) {
	lenBuf, err := r.raw(4)
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf)
	return r.raw(int(n))
}

func (m *CorreOTReceiveMessage) MarshalBinary() ([]byte, error) {
	w := &wireWriter{}
	var nBuf [4]byte
	binary.BigEndian.PutUint32(nBuf[:], uint32(len(m._U)))
	w.raw(nBuf[:])
	for _, u := range m._U {
		w.raw(u[:])
	}
	return w.buf, nil
}

func (m *CorreOTReceiveMessage) UnmarshalBinary(data []byte) error {
	r := &wireReader{buf: data}
	nBuf, err := r.raw(4)
	if err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(nBuf)
	m._U = make([][params.SecBytes]byte, n)
	for i := range m._U {
		row, err := r.raw(params.SecBytes)
		if err != nil {
			return err
		}
		copy(m._U[i][:], row)
	}
	return nil
}

func (m *ExtendedOTReceiveMessage) MarshalBinary() ([]byte, error) {
	correBytes, err := m.correMsg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w := &wireWriter{}
	w.bytes(correBytes)
	w.raw(m.choiceSum[:])
	w.raw(m.rowSum[:])
	return w.buf, nil
}

func (m *ExtendedOTReceiveMessage) UnmarshalBinary(data []byte) error {
	r := &wireReader{buf: data}
	correBytes, err := r.bytes()
	if err != nil {
		return err
	}
	m.correMsg = new(CorreOTReceiveMessage)
	if err := m.correMsg.UnmarshalBinary(correBytes); err != nil {
		return err
	}
	choiceBytes, err := r.raw(params.SecBytes)
	if err != nil {
		return err
	}
	copy(m.choiceSum[:], choiceBytes)
	rowBytes, err := r.raw(len(m.rowSum))
	if err != nil {
		return err
	}
	copy(m.rowSum[:], rowBytes)
	return nil
}

// writeScalarSlice and readScalarSlice give any []curve.Scalar a
// length-prefixed wire form, shared by every Gilboa MtA message below
// that carries more than one scalar.
func writeScalarSlice(w *wireWriter, scalars []curve.Scalar) error {
	var nBuf [4]byte
	binary.BigEndian.PutUint32(nBuf[:], uint32(len(scalars)))
	w.raw(nBuf[:])
	for _, s := range scalars {
		b, err := s.MarshalBinary()
		if err != nil {
			return err
		}
		w.bytes(b)
	}
	return nil
}

func readScalarSlice(r *wireReader, group curve.Curve) ([]curve.Scalar, error) {
	nBuf, err := r.raw(4)
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(nBuf)
	out := make([]curve.Scalar, n)
	for i := range out {
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		s := group.NewScalar()
		if err := s.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// EncodeMtASendRound1 and DecodeMtASendRound1 let a MtASendRound1Message
// cross an engine channel.
func EncodeMtASendRound1(msg *MtASendRound1Message) ([]byte, error) {
	w := &wireWriter{}
	if err := writeScalarSlice(w, msg.C0); err != nil {
		return nil, err
	}
	if err := writeScalarSlice(w, msg.C1); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func DecodeMtASendRound1(group curve.Curve, data []byte) (*MtASendRound1Message, error) {
	r := &wireReader{buf: data}
	c0, err := readScalarSlice(r, group)
	if err != nil {
		return nil, err
	}
	c1, err := readScalarSlice(r, group)
	if err != nil {
		return nil, err
	}
	return &MtASendRound1Message{C0: c0, C1: c1}, nil
}

// EncodeMtAReceiveRound1 and DecodeMtAReceiveRound1 do the same for the
// receiver's (seed, χ_1) reply.
func EncodeMtAReceiveRound1(msg *MtAReceiveRound1Message) ([]byte, error) {
	w := &wireWriter{}
	w.bytes(msg.Seed)
	chiBytes, err := msg.Chi1.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w.bytes(chiBytes)
	return w.buf, nil
}

func DecodeMtAReceiveRound1(group curve.Curve, data []byte) (*MtAReceiveRound1Message, error) {
	r := &wireReader{buf: data}
	seed, err := r.bytes()
	if err != nil {
		return nil, err
	}
	chiBytes, err := r.bytes()
	if err != nil {
		return nil, err
	}
	chi1 := group.NewScalar()
	if err := chi1.UnmarshalBinary(chiBytes); err != nil {
		return nil, err
	}
	return &MtAReceiveRound1Message{Seed: seed, Chi1: chi1}, nil
}
