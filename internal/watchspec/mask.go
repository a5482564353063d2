package watchspec

import (
	"sort"
	"strings"
)

// Mask is a set of filesystem event kinds. Bit values follow the Linux
// inotify ABI so the inotify backend can hand them to the kernel unchanged.
type Mask uint32

const (
	Access       Mask = 0x00000001
	Modify       Mask = 0x00000002
	Attrib       Mask = 0x00000004
	CloseWrite   Mask = 0x00000008
	CloseNoWrite Mask = 0x00000010
	Open         Mask = 0x00000020
	MovedFrom    Mask = 0x00000040
	MovedTo      Mask = 0x00000080
	Create       Mask = 0x00000100
	Delete       Mask = 0x00000200
	DeleteSelf   Mask = 0x00000400
	MoveSelf     Mask = 0x00000800

	OnlyDir    Mask = 0x01000000
	DontFollow Mask = 0x02000000
	ExclUnlink Mask = 0x04000000
	MaskAdd    Mask = 0x20000000
	Oneshot    Mask = 0x80000000

	Close     = CloseWrite | CloseNoWrite
	Move      = MovedFrom | MovedTo
	AllEvents = Access | Modify | Attrib | CloseWrite | CloseNoWrite | Open |
		MovedFrom | MovedTo | Create | Delete | DeleteSelf | MoveSelf

	// Flags are watch options rather than event kinds
	Flags = OnlyDir | DontFollow | ExclUnlink | MaskAdd | Oneshot
)

var eventNames = map[string]Mask{
	"ACCESS":        Access,
	"ATTRIB":        Attrib,
	"CLOSE_WRITE":   CloseWrite,
	"CLOSE_NOWRITE": CloseNoWrite,
	"CLOSE":         Close,
	"CREATE":        Create,
	"DELETE":        Delete,
	"DELETE_SELF":   DeleteSelf,
	"MODIFY":        Modify,
	"MOVE_SELF":     MoveSelf,
	"MOVED_FROM":    MovedFrom,
	"MOVED_TO":      MovedTo,
	"MOVE":          Move,
	"OPEN":          Open,
	"ALL_EVENTS":    AllEvents,
	"DONT_FOLLOW":   DontFollow,
	"EXCL_UNLINK":   ExclUnlink,
	"MASK_ADD":      MaskAdd,
	"ONESHOT":       Oneshot,
	"ONLYDIR":       OnlyDir,
}

// single-bit names used by String, in kernel bit order
var bitNames = []struct {
	bit  Mask
	name string
}{
	{Access, "ACCESS"},
	{Modify, "MODIFY"},
	{Attrib, "ATTRIB"},
	{CloseWrite, "CLOSE_WRITE"},
	{CloseNoWrite, "CLOSE_NOWRITE"},
	{Open, "OPEN"},
	{MovedFrom, "MOVED_FROM"},
	{MovedTo, "MOVED_TO"},
	{Create, "CREATE"},
	{Delete, "DELETE"},
	{DeleteSelf, "DELETE_SELF"},
	{MoveSelf, "MOVE_SELF"},
	{OnlyDir, "ONLYDIR"},
	{DontFollow, "DONT_FOLLOW"},
	{ExclUnlink, "EXCL_UNLINK"},
	{MaskAdd, "MASK_ADD"},
	{Oneshot, "ONESHOT"},
}

// ParseEvent converts an event name to its mask. Both "EVENT" and
// "IN_EVENT" spellings are accepted, case-insensitively.
func ParseEvent(name string) (Mask, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "IN_")
	m, ok := eventNames[key]
	return m, ok
}

// EventNames returns every accepted event name, sorted.
func EventNames() []string {
	names := make([]string, 0, len(eventNames))
	for name := range eventNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Events returns the mask without its option flags.
func (m Mask) Events() Mask {
	return m &^ Flags
}

// Has reports whether any bit of other is set in m.
func (m Mask) Has(other Mask) bool {
	return m&other != 0
}

// Names lists the single-bit names set in m, in kernel bit order.
func (m Mask) Names() []string {
	var parts []string
	for _, b := range bitNames {
		if m&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	return parts
}

func (m Mask) String() string {
	if m == 0 {
		return "0"
	}
	return strings.Join(m.Names(), "|")
}
