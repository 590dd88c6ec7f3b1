package ring

import "fmt"

// Node is a single member of the directory ring: a process running the
// discovery fabric, reachable at Addr:Port and identified by ID.
type Node struct {
	ID   ID
	Name string
	Addr string
	Port int
}

// HostPort returns the dialable address of the node.
func (n Node) HostPort() string {
	return fmt.Sprintf("%s:%d", n.Addr, n.Port)
}

func (n Node) String() string {
	return fmt.Sprintf("%s@%s (%s)", n.Name, n.HostPort(), n.ID.ToHexString())
}
