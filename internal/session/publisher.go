package session

import "github.com/DoyleJ11/rally-backend/internal/types"

// ticket is one queued event. An empty to means every attached
// connection.
type ticket struct {
	to  string
	msg chan types.ServerMessage
}

// publisher delivers room events in the order the room committed them,
// while letting slow events (narrated shots) resolve off the room loop.
// Each queued ticket yields exactly one message.
type publisher struct {
	queue chan ticket
	out   *Broadcaster
	done  chan struct{}
}

func newPublisher(out *Broadcaster, size int) *publisher {
	p := &publisher{
		queue: make(chan ticket, size),
		out:   out,
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *publisher) run() {
	defer close(p.done)
	for t := range p.queue {
		msg := <-t.msg
		if t.to == "" {
			p.out.Broadcast(msg)
			continue
		}
		p.out.SendTo(t.to, msg)
	}
	p.out.CloseAll()
}

func (p *publisher) emit(msg types.ServerMessage) {
	p.emitTo("", msg)
}

// emitTo queues msg for one connection only, behind everything already
// queued for the room.
func (p *publisher) emitTo(connID string, msg types.ServerMessage) {
	t := ticket{to: connID, msg: make(chan types.ServerMessage, 1)}
	t.msg <- msg
	p.queue <- t
}

// emitAsync queues the result of resolve, which runs on its own goroutine.
func (p *publisher) emitAsync(resolve func() types.ServerMessage) {
	t := ticket{msg: make(chan types.ServerMessage, 1)}
	go func() { t.msg <- resolve() }()
	p.queue <- t
}

// close stops accepting events; queued ones are still delivered before
// every outbox is closed.
func (p *publisher) close() {
	close(p.queue)
}
