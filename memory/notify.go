package memory

// Target addresses a notification: the whole room, or one connection.
type Target struct {
	Room bool
	Conn string
}

// ToRoom addresses every current member of the session.
func ToRoom() Target { return Target{Room: true} }

// ToConnection addresses a single connection.
func ToConnection(id string) Target { return Target{Conn: id} }

// Notification is one outbound event and who should receive it.
type Notification struct {
	Target Target
	Event  any
}

// Emit delivers notifications. members is the session membership at the
// moment of emission and is what room-addressed notifications fan out to.
// Sessions call it while holding their own lock, so it must not block and
// must not call back into the session.
type Emit func(members []string, notes []Notification)

type batch []Notification

func (b *batch) room(ev any) {
	*b = append(*b, Notification{Target: ToRoom(), Event: ev})
}

func (b *batch) to(conn string, ev any) {
	*b = append(*b, Notification{Target: ToConnection(conn), Event: ev})
}
