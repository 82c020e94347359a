package vm

import "fmt"

// DefaultMaxDepth is the call-stack depth limit used when none is configured.
const DefaultMaxDepth = 1024

// CallStack is the LIFO of active frames. The top frame is the one executing.
type CallStack struct {
	frames   []*Frame
	maxDepth int
}

// NewCallStack creates an empty call stack holding at most maxDepth frames.
// A maxDepth of zero or less means DefaultMaxDepth.
func NewCallStack(maxDepth int) *CallStack {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &CallStack{maxDepth: maxDepth}
}

// Push makes f the top frame.
func (s *CallStack) Push(f *Frame) error {
	if len(s.frames) >= s.maxDepth {
		return fmt.Errorf("%w: %d frames calling %s", ErrStackOverflow, len(s.frames), f)
	}
	s.frames = append(s.frames, f)
	return nil
}

// Pop removes and returns the top frame.
func (s *CallStack) Pop() (*Frame, error) {
	n := len(s.frames)
	if n == 0 {
		return nil, ErrCallStackUnderflow
	}
	f := s.frames[n-1]
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]
	return f, nil
}

// Top returns the executing frame, or nil when the stack is empty.
func (s *CallStack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Depth returns the number of frames.
func (s *CallStack) Depth() int {
	return len(s.frames)
}

// MaxDepth returns the depth limit.
func (s *CallStack) MaxDepth() int {
	return s.maxDepth
}

// Frames returns the frames from the outermost to the top.
func (s *CallStack) Frames() []*Frame {
	return append([]*Frame(nil), s.frames...)
}
