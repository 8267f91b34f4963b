package http

const (
	// Call is the single route of the dispatch protocol. Every generated
	// method is posted to it, with the method name as the last path
	// segment.
	Call = "Call"
)

// MethodVar is the route variable holding the method name.
const MethodVar = "method"
