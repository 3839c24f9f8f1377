// Package v1 contains the envelopes exchanged with the bridge, matching
// vexlink.proto.
package v1

import (
	proto "github.com/golang/protobuf/proto"
)

// Request asks the bridge to issue a brain command.
type Request struct {
	Seq       uint64 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Command   uint32 `protobuf:"varint,2,opt,name=command,proto3" json:"command,omitempty"`
	Message   []byte `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
	TimeoutMs uint32 `protobuf:"varint,4,opt,name=timeout_ms,json=timeoutMs,proto3" json:"timeout_ms,omitempty"`
	NoReply   bool   `protobuf:"varint,5,opt,name=no_reply,json=noReply,proto3" json:"no_reply,omitempty"`
}

func (m *Request) Reset()         { *m = Request{} }
func (m *Request) String() string { return proto.CompactTextString(m) }
func (*Request) ProtoMessage()    {}

// Response is the result of a Request.
type Response struct {
	Seq      uint64 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Message  []byte `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
	TimedOut bool   `protobuf:"varint,3,opt,name=timed_out,json=timedOut,proto3" json:"timed_out,omitempty"`
	Error    string `protobuf:"bytes,4,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *Response) Reset()         { *m = Response{} }
func (m *Response) String() string { return proto.CompactTextString(m) }
func (*Response) ProtoMessage()    {}

// MotorQuery asks for all telemetry fields of a motor.
type MotorQuery struct {
	Seq       uint64 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Motor     int32  `protobuf:"varint,2,opt,name=motor,proto3" json:"motor,omitempty"`
	MaxWaitMs uint32 `protobuf:"varint,3,opt,name=max_wait_ms,json=maxWaitMs,proto3" json:"max_wait_ms,omitempty"`
}

func (m *MotorQuery) Reset()         { *m = MotorQuery{} }
func (m *MotorQuery) String() string { return proto.CompactTextString(m) }
func (*MotorQuery) ProtoMessage()    {}

// MotorValue is a telemetry field, Present is false if not answered.
type MotorValue struct {
	Name    string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Value   string `protobuf:"bytes,2,opt,name=value,proto3" json:"value,omitempty"`
	Present bool   `protobuf:"varint,3,opt,name=present,proto3" json:"present,omitempty"`
}

func (m *MotorValue) Reset()         { *m = MotorValue{} }
func (m *MotorValue) String() string { return proto.CompactTextString(m) }
func (*MotorValue) ProtoMessage()    {}

// MotorReport answers a MotorQuery.
type MotorReport struct {
	Seq    uint64        `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Motor  int32         `protobuf:"varint,2,opt,name=motor,proto3" json:"motor,omitempty"`
	Name   string        `protobuf:"bytes,3,opt,name=name,proto3" json:"name,omitempty"`
	Values []*MotorValue `protobuf:"bytes,4,rep,name=values,proto3" json:"values,omitempty"`
	Error  string        `protobuf:"bytes,5,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *MotorReport) Reset()         { *m = MotorReport{} }
func (m *MotorReport) String() string { return proto.CompactTextString(m) }
func (*MotorReport) ProtoMessage()    {}
