package vm

import (
	"fmt"
	"math"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/heap"
)

// channel is an unbuffered channel. Goroutines blocked on a channel wait
// in one of its queues, keeping their operands on their operand stacks.
type channel struct {
	id        int
	senders   *arraylist.List // of *goroutine, operand stack ends with channel and value
	receivers *arraylist.List // of *goroutine, operand stack ends with channel
}

func (ch *channel) String() string {
	return fmt.Sprintf("<channel #%d>", ch.id)
}

// dequeue removes the goroutine waiting longest.
func dequeue(waiting *arraylist.List) (*goroutine, bool) {
	first, ok := waiting.Get(0)
	if !ok {
		return nil, false
	}
	waiting.Remove(0)
	return first.(*goroutine), true
}

func makeChannel(m *Machine, _ []heap.Addr) (heap.Addr, error) {
	if len(m.channels) > math.MaxUint16 {
		return heap.Nil, srceval.ExceptionError.New("too many channels")
	}
	ch := &channel{
		id:        len(m.channels),
		senders:   arraylist.New(),
		receivers: arraylist.New(),
	}
	a := m.alloc(tagChannel, 1)
	m.heap.SetRaw(a)
	m.check(m.heap.SetField(a, uint16(ch.id)))
	m.channels = append(m.channels, ch)
	return a, nil
}

func (m *Machine) channelAt(a heap.Addr) (*channel, error) {
	if m.heap.Tag(a) != tagChannel {
		return nil, srceval.RuntimeTypeError.New("Expected channel, got %s.", m.typeName(a))
	}
	return m.channels[m.heap.Field(a)], nil
}

// send hands over the value on top of the operand stack to a goroutine
// waiting to receive from the channel below it. If there is none, the
// sender blocks until a receiver arrives. Send leaves undefined.
func (m *Machine) send(g *goroutine) error {
	ch, err := m.channelAt(g.peek(1))
	if err != nil {
		return err
	}
	if r, ok := dequeue(ch.receivers); ok {
		r.stack[len(r.stack)-1] = g.peek(0)
		m.wake(r)
		g.drop(2)
		g.push(m.undefined)
		return nil
	}
	tracer().Debugf("goroutine #%d blocks sending on %s", g.id, ch)
	ch.senders.Add(g)
	g.state = blocked
	return nil
}

// receive replaces the channel on top of the operand stack by a value
// sent to it. If no sender is waiting, the receiver blocks until one
// arrives.
func (m *Machine) receive(g *goroutine) error {
	ch, err := m.channelAt(g.peek(0))
	if err != nil {
		return err
	}
	if s, ok := dequeue(ch.senders); ok {
		g.stack[len(g.stack)-1] = s.peek(0)
		s.drop(2)
		s.push(m.undefined)
		m.wake(s)
		return nil
	}
	tracer().Debugf("goroutine #%d blocks receiving on %s", g.id, ch)
	ch.receivers.Add(g)
	g.state = blocked
	return nil
}
