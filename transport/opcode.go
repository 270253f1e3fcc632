package transport

// OpCode identifies a message on the wire, request or response.
type OpCode byte

const (
	OpDecode    OpCode = 'D'
	OpSubscribe OpCode = 'S'
	OpList      OpCode = 'L'
	OpAck       OpCode = 'A'
	OpError     OpCode = 'E'
	OpDebug     OpCode = 'G'
)
