package events

// NodeAction is "resolved", "invalidated" or "missing".
type NodeAction string

const (
	NodeResolved    NodeAction = "resolved"
	NodeInvalidated NodeAction = "invalidated"
	NodeMissing     NodeAction = "missing"
)

// NodeEvent is emitted when the registry cache changes or a lookup finds no
// eligible node.
type NodeEvent struct {
	Action   NodeAction
	NodeID   string
	Platform string
}
