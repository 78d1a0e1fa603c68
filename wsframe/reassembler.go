package wsframe

// Message is a complete logical WebSocket message: the concatenation of a
// non-continuation frame and any following continuation frames, terminated
// by the first frame with Fin=true. It carries the opcode of the first
// frame in the sequence.
type Message struct {
	Opcode  OpCode
	Content []byte
}

// Reassembler accumulates a sequence of frames into a logical Message,
// handling continuation (opcode 0) fragments. It is not safe for
// concurrent use; each connection owns exactly one Reassembler.
type Reassembler struct {
	opcode  OpCode
	content []byte
	active  bool
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Add feeds a decoded frame into the reassembler. If the frame completes a
// logical message (Fin=true), Add returns that Message and resets internal
// state for the next message. Otherwise it returns ok=false.
func (r *Reassembler) Add(f Frame) (msg Message, ok bool) {
	if f.Opcode == OpContinuation {
		if !r.active {
			// A continuation frame with no preceding start frame; treat its
			// payload as starting an (opcode-less) message rather than
			// panicking on a malformed client.
			r.opcode = OpContinuation
			r.active = true
		}
		r.content = append(r.content, f.Payload...)
	} else {
		r.opcode = f.Opcode
		r.content = append([]byte(nil), f.Payload...)
		r.active = true
	}

	if !f.Fin {
		return Message{}, false
	}

	msg = Message{Opcode: r.opcode, Content: r.content}
	r.content = nil
	r.active = false
	return msg, true
}
